package jira

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/golovatskygroup/mcp-atlassian/internal/dispatch"
	"github.com/golovatskygroup/mcp-atlassian/pkg/mcp"
)

const (
	defaultMaxResults = 50
	defaultIssueType  = "Task"
	unassigned        = "Unassigned"
)

// IssueSummary is one row of jira_search_issues. Missing assignee reads
// "Unassigned" and missing priority reads "".
type IssueSummary struct {
	Key      string `json:"key"`
	Summary  string `json:"summary"`
	Status   string `json:"status"`
	Assignee string `json:"assignee"`
	Priority string `json:"priority"`
	Created  string `json:"created"`
	Updated  string `json:"updated"`
}

// IssueDetail is the jira_get_issue result. Optional fields are left out when the
// remote value is missing.
type IssueDetail struct {
	Key         string  `json:"key"`
	Summary     string  `json:"summary"`
	Description *string `json:"description,omitempty"`
	Status      string  `json:"status"`
	Assignee    *string `json:"assignee,omitempty"`
	Reporter    string  `json:"reporter"`
	Created     string  `json:"created"`
	Updated     string  `json:"updated"`
	Priority    *string `json:"priority,omitempty"`
	IssueType   string  `json:"issue_type"`
	Project     string  `json:"project"`
}

type ProjectSummary struct {
	Key  string `json:"key"`
	Name string `json:"name"`
	ID   string `json:"id"`
}

func decodeArgs(args json.RawMessage, v any) error {
	if err := json.Unmarshal(args, v); err != nil {
		return fmt.Errorf("invalid input: %w", err)
	}
	return nil
}

func name(n *Named) string {
	if n == nil {
		return ""
	}
	return n.Name
}

func displayName(u *User) string {
	if u == nil {
		return ""
	}
	return u.DisplayName
}

type searchIssuesInput struct {
	JQL        string `json:"jql"`
	MaxResults *int   `json:"max_results,omitempty"`
}

func searchIssues(ctx context.Context, api API, args json.RawMessage) (*mcp.CallToolResult, error) {
	var in searchIssuesInput
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}
	maxResults := defaultMaxResults
	if in.MaxResults != nil {
		maxResults = *in.MaxResults
	}

	issues, err := api.SearchIssues(ctx, in.JQL, maxResults)
	if err != nil {
		return nil, err
	}
	out := make([]IssueSummary, 0, len(issues))
	for _, is := range issues {
		f := is.Fields
		row := IssueSummary{
			Key:      is.Key,
			Summary:  f.Summary,
			Status:   name(f.Status),
			Assignee: unassigned,
			Priority: name(f.Priority),
			Created:  f.Created,
			Updated:  f.Updated,
		}
		if f.Assignee != nil {
			row.Assignee = f.Assignee.DisplayName
		}
		out = append(out, row)
	}
	return dispatch.JSONResult(out), nil
}

type issueKeyInput struct {
	IssueKey string `json:"issue_key"`
}

func getIssue(ctx context.Context, api API, args json.RawMessage) (*mcp.CallToolResult, error) {
	var in issueKeyInput
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}
	issue, err := api.GetIssue(ctx, in.IssueKey)
	if err != nil {
		return nil, err
	}

	f := issue.Fields
	out := IssueDetail{
		Key:         issue.Key,
		Summary:     f.Summary,
		Description: f.Description,
		Status:      name(f.Status),
		Reporter:    displayName(f.Reporter),
		Created:     f.Created,
		Updated:     f.Updated,
		IssueType:   name(f.IssueType),
	}
	if f.Assignee != nil {
		out.Assignee = &f.Assignee.DisplayName
	}
	if f.Priority != nil {
		out.Priority = &f.Priority.Name
	}
	if f.Project != nil {
		out.Project = f.Project.Key
	}
	return dispatch.JSONResult(out), nil
}

type createIssueInput struct {
	ProjectKey  string  `json:"project_key"`
	Summary     string  `json:"summary"`
	Description *string `json:"description,omitempty"`
	IssueType   string  `json:"issue_type,omitempty"`
	Priority    *string `json:"priority,omitempty"`
	Assignee    *string `json:"assignee,omitempty"`
}

func createIssue(ctx context.Context, api API, args json.RawMessage) (*mcp.CallToolResult, error) {
	var in createIssueInput
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}
	issueType := in.IssueType
	if issueType == "" {
		issueType = defaultIssueType
	}

	// Priority advertises a default in the schema but is only sent when given.
	fields := map[string]any{
		"project":   map[string]string{"key": in.ProjectKey},
		"summary":   in.Summary,
		"issuetype": map[string]string{"name": issueType},
	}
	if in.Description != nil {
		fields["description"] = *in.Description
	}
	if in.Priority != nil {
		fields["priority"] = map[string]string{"name": *in.Priority}
	}
	if in.Assignee != nil {
		fields["assignee"] = map[string]string{"name": *in.Assignee}
	}

	created, err := api.CreateIssue(ctx, fields)
	if err != nil {
		return nil, err
	}
	return dispatch.TextResult(fmt.Sprintf("Created issue: %s\nURL: %s", created.Key, created.Self)), nil
}

type updateFields struct {
	Summary     *string `json:"summary,omitempty"`
	Description *string `json:"description,omitempty"`
	Priority    *string `json:"priority,omitempty"`
	Assignee    *string `json:"assignee,omitempty"`
}

type updateIssueInput struct {
	IssueKey string       `json:"issue_key"`
	Fields   updateFields `json:"fields"`
}

// remoteFields keeps the four editable fields and converts references to the
// {"name": ...} shape. Anything else in the input is dropped.
func (u updateFields) remoteFields() map[string]any {
	out := map[string]any{}
	if u.Summary != nil {
		out["summary"] = *u.Summary
	}
	if u.Description != nil {
		out["description"] = *u.Description
	}
	if u.Priority != nil {
		out["priority"] = map[string]string{"name": *u.Priority}
	}
	if u.Assignee != nil {
		out["assignee"] = map[string]string{"name": *u.Assignee}
	}
	return out
}

func updateIssue(ctx context.Context, api API, args json.RawMessage) (*mcp.CallToolResult, error) {
	var in updateIssueInput
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}
	if err := api.UpdateIssue(ctx, in.IssueKey, in.Fields.remoteFields()); err != nil {
		return nil, err
	}
	return dispatch.TextResult("Updated issue: " + in.IssueKey), nil
}

type addCommentInput struct {
	IssueKey string `json:"issue_key"`
	Comment  string `json:"comment"`
}

func addComment(ctx context.Context, api API, args json.RawMessage) (*mcp.CallToolResult, error) {
	var in addCommentInput
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}
	if err := api.AddComment(ctx, in.IssueKey, in.Comment); err != nil {
		return nil, err
	}
	return dispatch.TextResult("Added comment to issue: " + in.IssueKey), nil
}

type transitionIssueInput struct {
	IssueKey string `json:"issue_key"`
	Status   string `json:"status"`
}

func transitionIssue(ctx context.Context, api API, args json.RawMessage) (*mcp.CallToolResult, error) {
	var in transitionIssueInput
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}
	transitions, err := api.GetTransitions(ctx, in.IssueKey)
	if err != nil {
		return nil, err
	}

	for _, tr := range transitions {
		if strings.EqualFold(tr.To.Name, in.Status) {
			if err := api.DoTransition(ctx, in.IssueKey, tr.ID); err != nil {
				return nil, err
			}
			return dispatch.TextResult(fmt.Sprintf("Transitioned issue %s to status: %s", in.IssueKey, in.Status)), nil
		}
	}

	available := make([]string, 0, len(transitions))
	for _, tr := range transitions {
		available = append(available, tr.To.Name)
	}
	return dispatch.TextResult(fmt.Sprintf("Cannot transition to '%s'. Available statuses: %s",
		in.Status, strings.Join(available, ", "))), nil
}

func getProjects(ctx context.Context, api API, _ json.RawMessage) (*mcp.CallToolResult, error) {
	projects, err := api.ListProjects(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]ProjectSummary, 0, len(projects))
	for _, p := range projects {
		out = append(out, ProjectSummary{Key: p.Key, Name: p.Name, ID: p.ID})
	}
	return dispatch.JSONResult(out), nil
}
