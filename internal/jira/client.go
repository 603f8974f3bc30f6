package jira

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/golovatskygroup/mcp-atlassian/internal/atlassian"
	"github.com/golovatskygroup/mcp-atlassian/internal/config"
	"github.com/golovatskygroup/mcp-atlassian/internal/session"
)

// API is the subset of the Jira REST API v2 the tools use.
type API interface {
	SearchIssues(ctx context.Context, jql string, maxResults int) ([]Issue, error)
	GetIssue(ctx context.Context, key string) (*Issue, error)
	CreateIssue(ctx context.Context, fields map[string]any) (*CreatedIssue, error)
	UpdateIssue(ctx context.Context, key string, fields map[string]any) error
	AddComment(ctx context.Context, key, body string) error
	GetTransitions(ctx context.Context, key string) ([]Transition, error)
	DoTransition(ctx context.Context, key, transitionID string) error
	ListProjects(ctx context.Context) ([]Project, error)
}

type Issue struct {
	ID     string      `json:"id"`
	Key    string      `json:"key"`
	Self   string      `json:"self"`
	Fields IssueFields `json:"fields"`
}

type IssueFields struct {
	Summary     string      `json:"summary"`
	Description *string     `json:"description"`
	Status      *Named      `json:"status"`
	Assignee    *User       `json:"assignee"`
	Reporter    *User       `json:"reporter"`
	Priority    *Named      `json:"priority"`
	IssueType   *Named      `json:"issuetype"`
	Project     *ProjectRef `json:"project"`
	Created     string      `json:"created"`
	Updated     string      `json:"updated"`
}

type Named struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

type User struct {
	Name        string `json:"name,omitempty"`
	DisplayName string `json:"displayName"`
}

type ProjectRef struct {
	Key string `json:"key"`
}

type CreatedIssue struct {
	ID   string `json:"id"`
	Key  string `json:"key"`
	Self string `json:"self"`
}

type Transition struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	To   Named  `json:"to"`
}

type Project struct {
	ID   string `json:"id"`
	Key  string `json:"key"`
	Name string `json:"name"`
}

// Client implements API against <base>/rest/api/2.
type Client struct {
	rest *atlassian.Client
}

func NewClient(creds config.Credentials, httpCfg config.HTTPConfig, log zerolog.Logger) *Client {
	return &Client{rest: atlassian.NewClient(atlassian.Options{
		Product:   "Jira",
		BaseURL:   creds.URL,
		APIPath:   "/rest/api/2",
		Username:  creds.Username,
		APIToken:  creds.APIToken,
		UserAgent: httpCfg.UserAgent,
		Timeout:   httpCfg.Timeout,
		Logger:    log,
	})}
}

// Connect returns the session build function for the Jira server.
func Connect(cfg config.Config, log zerolog.Logger) session.BuildFunc[API] {
	return func(context.Context) (API, error) {
		creds, err := config.ResolveCredentials(config.JiraPrefix, cfg.Jira)
		if err != nil {
			return nil, err
		}
		log.Info().Str("url", creds.URL).Bool("cloud", creds.Cloud).Msg("connected to Jira")
		return NewClient(creds, cfg.HTTP, log), nil
	}
}

func issuePath(key string) string { return "/issue/" + url.PathEscape(key) }

func (c *Client) SearchIssues(ctx context.Context, jql string, maxResults int) ([]Issue, error) {
	q := url.Values{}
	q.Set("jql", jql)
	q.Set("maxResults", strconv.Itoa(maxResults))

	var out struct {
		Issues []Issue `json:"issues"`
	}
	if err := c.rest.Do(ctx, http.MethodGet, "/search", q, nil, &out); err != nil {
		return nil, err
	}
	return out.Issues, nil
}

func (c *Client) GetIssue(ctx context.Context, key string) (*Issue, error) {
	var issue Issue
	if err := c.rest.Do(ctx, http.MethodGet, issuePath(key), nil, nil, &issue); err != nil {
		return nil, err
	}
	return &issue, nil
}

func (c *Client) CreateIssue(ctx context.Context, fields map[string]any) (*CreatedIssue, error) {
	var out CreatedIssue
	if err := c.rest.Do(ctx, http.MethodPost, "/issue", nil, map[string]any{"fields": fields}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateIssue(ctx context.Context, key string, fields map[string]any) error {
	return c.rest.Do(ctx, http.MethodPut, issuePath(key), nil, map[string]any{"fields": fields}, nil)
}

func (c *Client) AddComment(ctx context.Context, key, body string) error {
	return c.rest.Do(ctx, http.MethodPost, issuePath(key)+"/comment", nil, map[string]string{"body": body}, nil)
}

func (c *Client) GetTransitions(ctx context.Context, key string) ([]Transition, error) {
	var out struct {
		Transitions []Transition `json:"transitions"`
	}
	if err := c.rest.Do(ctx, http.MethodGet, issuePath(key)+"/transitions", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Transitions, nil
}

func (c *Client) DoTransition(ctx context.Context, key, transitionID string) error {
	body := map[string]any{"transition": map[string]string{"id": transitionID}}
	return c.rest.Do(ctx, http.MethodPost, issuePath(key)+"/transitions", nil, body, nil)
}

func (c *Client) ListProjects(ctx context.Context) ([]Project, error) {
	var out []Project
	if err := c.rest.Do(ctx, http.MethodGet, "/project", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}
