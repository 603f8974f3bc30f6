package confluence

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/golovatskygroup/mcp-atlassian/internal/atlassian"
	"github.com/golovatskygroup/mcp-atlassian/internal/config"
	"github.com/golovatskygroup/mcp-atlassian/internal/session"
)

// API is the subset of the Confluence REST API the tools use.
type API interface {
	Search(ctx context.Context, cql string, limit int) ([]SearchResult, error)
	GetPage(ctx context.Context, id, expand string) (*Content, error)
	CreatePage(ctx context.Context, req CreatePageRequest) (*Content, error)
	UpdatePage(ctx context.Context, req UpdatePageRequest) (*Content, error)
	DeletePage(ctx context.Context, id string) error
	ListSpaces(ctx context.Context, limit int) ([]Space, error)
	ListChildPages(ctx context.Context, id string, limit int) ([]Content, error)
	AttachFile(ctx context.Context, pageID, fileName string, file io.Reader, comment string) error
	// WebURL absolutises a relative _links.webui value.
	WebURL(rel string) string
}

type Content struct {
	ID      string    `json:"id"`
	Type    string    `json:"type"`
	Title   string    `json:"title"`
	Space   *SpaceRef `json:"space,omitempty"`
	Version *Version  `json:"version,omitempty"`
	Body    *Body     `json:"body,omitempty"`
	Links   Links     `json:"_links"`
}

type SpaceRef struct {
	Key  string `json:"key"`
	Name string `json:"name,omitempty"`
}

type Version struct {
	Number  int    `json:"number"`
	When    string `json:"when,omitempty"`
	Message string `json:"message,omitempty"`
	By      *User  `json:"by,omitempty"`
}

type User struct {
	DisplayName string `json:"displayName"`
}

type Body struct {
	Storage *Storage `json:"storage,omitempty"`
}

type Storage struct {
	Value          string `json:"value"`
	Representation string `json:"representation"`
}

type Links struct {
	WebUI string `json:"webui,omitempty"`
}

type SearchResult struct {
	Content Content `json:"content"`
}

type Space struct {
	ID   int64  `json:"id"`
	Key  string `json:"key"`
	Name string `json:"name"`
	Type string `json:"type"`
}

type CreatePageRequest struct {
	SpaceKey string
	Title    string
	Body     string
	ParentID string
}

type UpdatePageRequest struct {
	ID             string
	Title          string
	Body           string
	Version        int
	VersionComment string
}

// Client implements API against the v1 REST API (<base>/rest/api).
type Client struct {
	rest *atlassian.Client
}

// NewClient builds a client for creds. Cloud sites on *.atlassian.net serve the
// API under /wiki, which is appended when missing.
func NewClient(creds config.Credentials, httpCfg config.HTTPConfig, log zerolog.Logger) *Client {
	return &Client{rest: atlassian.NewClient(atlassian.Options{
		Product:   "Confluence",
		BaseURL:   normalizeBaseURL(creds.URL, creds.Cloud),
		APIPath:   "/rest/api",
		Username:  creds.Username,
		APIToken:  creds.APIToken,
		UserAgent: httpCfg.UserAgent,
		Timeout:   httpCfg.Timeout,
		Logger:    log,
	})}
}

// Connect returns the session build function: credentials are resolved from the
// environment (with file fallbacks) when the first tool call arrives.
func Connect(cfg config.Config, log zerolog.Logger) session.BuildFunc[API] {
	return func(context.Context) (API, error) {
		creds, err := config.ResolveCredentials(config.ConfluencePrefix, cfg.Confluence)
		if err != nil {
			return nil, err
		}
		log.Info().Str("url", creds.URL).Bool("cloud", creds.Cloud).Msg("connected to Confluence")
		return NewClient(creds, cfg.HTTP, log), nil
	}
}

func normalizeBaseURL(baseURL string, cloud bool) string {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	lower := strings.ToLower(baseURL)
	if cloud && strings.Contains(lower, ".atlassian.net") && !strings.HasSuffix(lower, "/wiki") {
		baseURL += "/wiki"
	}
	return baseURL
}

func (c *Client) WebURL(rel string) string { return c.rest.WebURL(rel) }

func (c *Client) Search(ctx context.Context, cql string, limit int) ([]SearchResult, error) {
	q := url.Values{}
	q.Set("cql", cql)
	q.Set("limit", strconv.Itoa(limit))
	q.Set("expand", "content.space")

	var out struct {
		Results []SearchResult `json:"results"`
	}
	if err := c.rest.Do(ctx, http.MethodGet, "/search", q, nil, &out); err != nil {
		return nil, err
	}
	return out.Results, nil
}

func (c *Client) GetPage(ctx context.Context, id, expand string) (*Content, error) {
	q := url.Values{}
	if strings.TrimSpace(expand) != "" {
		q.Set("expand", expand)
	}
	var page Content
	if err := c.rest.Do(ctx, http.MethodGet, "/content/"+url.PathEscape(id), q, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

type idRef struct {
	ID string `json:"id"`
}

type contentWrite struct {
	ID        string    `json:"id,omitempty"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Space     *SpaceRef `json:"space,omitempty"`
	Ancestors []idRef   `json:"ancestors,omitempty"`
	Body      Body      `json:"body"`
	Version   *Version  `json:"version,omitempty"`
}

func (c *Client) CreatePage(ctx context.Context, req CreatePageRequest) (*Content, error) {
	payload := contentWrite{
		Type:  "page",
		Title: req.Title,
		Space: &SpaceRef{Key: req.SpaceKey},
		Body:  Body{Storage: &Storage{Value: req.Body, Representation: "storage"}},
	}
	if req.ParentID != "" {
		payload.Ancestors = []idRef{{ID: req.ParentID}}
	}
	var page Content
	if err := c.rest.Do(ctx, http.MethodPost, "/content", nil, payload, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Client) UpdatePage(ctx context.Context, req UpdatePageRequest) (*Content, error) {
	if req.Version < 1 {
		return nil, fmt.Errorf("update page %s: version must be >= 1", req.ID)
	}
	payload := contentWrite{
		ID:      req.ID,
		Type:    "page",
		Title:   req.Title,
		Body:    Body{Storage: &Storage{Value: req.Body, Representation: "storage"}},
		Version: &Version{Number: req.Version, Message: req.VersionComment},
	}
	var page Content
	if err := c.rest.Do(ctx, http.MethodPut, "/content/"+url.PathEscape(req.ID), nil, payload, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Client) DeletePage(ctx context.Context, id string) error {
	return c.rest.Do(ctx, http.MethodDelete, "/content/"+url.PathEscape(id), nil, nil, nil)
}

func (c *Client) ListSpaces(ctx context.Context, limit int) ([]Space, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	var out struct {
		Results []Space `json:"results"`
	}
	if err := c.rest.Do(ctx, http.MethodGet, "/space", q, nil, &out); err != nil {
		return nil, err
	}
	return out.Results, nil
}

func (c *Client) ListChildPages(ctx context.Context, id string, limit int) ([]Content, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	var out struct {
		Results []Content `json:"results"`
	}
	if err := c.rest.Do(ctx, http.MethodGet, "/content/"+url.PathEscape(id)+"/child/page", q, nil, &out); err != nil {
		return nil, err
	}
	return out.Results, nil
}

// AttachFile creates the attachment, or adds a new version when a file with the
// same name is already attached.
func (c *Client) AttachFile(ctx context.Context, pageID, fileName string, file io.Reader, comment string) error {
	fields := map[string]string{"minorEdit": "true"}
	if comment != "" {
		fields["comment"] = comment
	}
	return c.rest.Upload(ctx, http.MethodPut, "/content/"+url.PathEscape(pageID)+"/child/attachment", "file", fileName, file, fields, nil)
}
