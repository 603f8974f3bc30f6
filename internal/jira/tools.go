package jira

import (
	"encoding/json"

	"github.com/golovatskygroup/mcp-atlassian/internal/dispatch"
	"github.com/golovatskygroup/mcp-atlassian/pkg/mcp"
)

const (
	ToolSearchIssues    = "jira_search_issues"
	ToolGetIssue        = "jira_get_issue"
	ToolCreateIssue     = "jira_create_issue"
	ToolUpdateIssue     = "jira_update_issue"
	ToolAddComment      = "jira_add_comment"
	ToolTransitionIssue = "jira_transition_issue"
	ToolGetProjects     = "jira_get_projects"
)

// Tools returns the Jira catalog bound to its handlers.
func Tools() []dispatch.Tool[API] {
	return []dispatch.Tool[API]{
		{
			Tool: mcp.Tool{
				Name:        ToolSearchIssues,
				Description: "Search for Jira issues using JQL",
				InputSchema: json.RawMessage(`{
					"type": "object",
					"properties": {
						"jql": {"type": "string", "description": "JQL query string"},
						"max_results": {"type": "integer", "description": "Maximum number of results to return", "default": 50}
					},
					"required": ["jql"]
				}`),
			},
			Handle: searchIssues,
		},
		{
			Tool: mcp.Tool{
				Name:        ToolGetIssue,
				Description: "Get details of a specific Jira issue",
				InputSchema: json.RawMessage(`{
					"type": "object",
					"properties": {
						"issue_key": {"type": "string", "description": "Issue key (e.g., PROJ-123)"}
					},
					"required": ["issue_key"]
				}`),
			},
			Handle: getIssue,
		},
		{
			Tool: mcp.Tool{
				Name:        ToolCreateIssue,
				Description: "Create a new Jira issue",
				InputSchema: json.RawMessage(`{
					"type": "object",
					"properties": {
						"project_key": {"type": "string", "description": "Project key"},
						"summary": {"type": "string", "description": "Issue summary"},
						"description": {"type": "string", "description": "Issue description"},
						"issue_type": {"type": "string", "description": "Issue type (e.g., Bug, Task, Story)", "default": "Task"},
						"priority": {"type": "string", "description": "Priority (e.g., High, Medium, Low)", "default": "Medium"},
						"assignee": {"type": "string", "description": "Assignee username"}
					},
					"required": ["project_key", "summary"]
				}`),
			},
			Handle: createIssue,
		},
		{
			Tool: mcp.Tool{
				Name:        ToolUpdateIssue,
				Description: "Update an existing Jira issue",
				InputSchema: json.RawMessage(`{
					"type": "object",
					"properties": {
						"issue_key": {"type": "string", "description": "Issue key (e.g., PROJ-123)"},
						"fields": {
							"type": "object",
							"description": "Fields to update",
							"properties": {
								"summary": {"type": "string"},
								"description": {"type": "string"},
								"priority": {"type": "string"},
								"assignee": {"type": "string"}
							}
						}
					},
					"required": ["issue_key", "fields"]
				}`),
			},
			Handle: updateIssue,
		},
		{
			Tool: mcp.Tool{
				Name:        ToolAddComment,
				Description: "Add a comment to a Jira issue",
				InputSchema: json.RawMessage(`{
					"type": "object",
					"properties": {
						"issue_key": {"type": "string", "description": "Issue key (e.g., PROJ-123)"},
						"comment": {"type": "string", "description": "Comment text"}
					},
					"required": ["issue_key", "comment"]
				}`),
			},
			Handle: addComment,
		},
		{
			Tool: mcp.Tool{
				Name:        ToolTransitionIssue,
				Description: "Transition a Jira issue to a different status",
				InputSchema: json.RawMessage(`{
					"type": "object",
					"properties": {
						"issue_key": {"type": "string", "description": "Issue key (e.g., PROJ-123)"},
						"status": {"type": "string", "description": "Target status (e.g., In Progress, Done)"}
					},
					"required": ["issue_key", "status"]
				}`),
			},
			Handle: transitionIssue,
		},
		{
			Tool: mcp.Tool{
				Name:        ToolGetProjects,
				Description: "Get list of Jira projects",
				InputSchema: json.RawMessage(`{"type": "object", "properties": {}}`),
			},
			Handle: getProjects,
		},
	}
}
