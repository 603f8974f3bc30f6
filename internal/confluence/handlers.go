package confluence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/golovatskygroup/mcp-atlassian/internal/dispatch"
	"github.com/golovatskygroup/mcp-atlassian/pkg/mcp"
)

const (
	defaultLimit          = 25
	defaultExpand         = "body.storage,version"
	defaultVersionComment = "Updated via MCP"
)

type handlers struct {
	fs afero.Fs
}

// SearchHit is one row of confluence_search_content.
type SearchHit struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Type  string `json:"type"`
	Space string `json:"space"`
	URL   string `json:"url"`
}

// PageSummary is the confluence_get_page result.
type PageSummary struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Space       string  `json:"space"`
	Version     int     `json:"version"`
	CreatedBy   string  `json:"created_by"`
	CreatedDate string  `json:"created_date"`
	URL         string  `json:"url"`
	Content     *string `json:"content,omitempty"`
}

type SpaceSummary struct {
	Key  string `json:"key"`
	Name string `json:"name"`
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

type ChildSummary struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

func decodeArgs(args json.RawMessage, v any) error {
	if err := json.Unmarshal(args, v); err != nil {
		return fmt.Errorf("invalid input: %w", err)
	}
	return nil
}

func limitOrDefault(v *int) int {
	if v == nil {
		return defaultLimit
	}
	return *v
}

func spaceKey(c Content) string {
	if c.Space == nil {
		return ""
	}
	return c.Space.Key
}

type searchContentInput struct {
	CQL   string `json:"cql"`
	Limit *int   `json:"limit,omitempty"`
}

func (h *handlers) searchContent(ctx context.Context, api API, args json.RawMessage) (*mcp.CallToolResult, error) {
	var in searchContentInput
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}
	results, err := api.Search(ctx, in.CQL, limitOrDefault(in.Limit))
	if err != nil {
		return nil, err
	}

	hits := make([]SearchHit, 0, len(results))
	for _, r := range results {
		hits = append(hits, SearchHit{
			ID:    r.Content.ID,
			Title: r.Content.Title,
			Type:  r.Content.Type,
			Space: spaceKey(r.Content),
			URL:   api.WebURL(r.Content.Links.WebUI),
		})
	}
	return dispatch.JSONResult(hits), nil
}

type getPageInput struct {
	PageID     string  `json:"page_id"`
	Expand     *string `json:"expand,omitempty"`
	BodyFormat string  `json:"body_format,omitempty"`
}

// withRequiredExpand adds the expansions the page projection reads.
func withRequiredExpand(expand string) string {
	parts := make([]string, 0, 4)
	seen := map[string]bool{}
	for _, p := range strings.Split(expand, ",") {
		p = strings.TrimSpace(p)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		parts = append(parts, p)
	}
	for _, p := range []string{"space", "version"} {
		if !seen[p] {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ",")
}

func (h *handlers) getPage(ctx context.Context, api API, args json.RawMessage) (*mcp.CallToolResult, error) {
	var in getPageInput
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}
	expand := defaultExpand
	if in.Expand != nil {
		expand = *in.Expand
	}

	page, err := api.GetPage(ctx, in.PageID, withRequiredExpand(expand))
	if err != nil {
		return nil, err
	}

	out := PageSummary{
		ID:    page.ID,
		Title: page.Title,
		Space: spaceKey(*page),
		URL:   api.WebURL(page.Links.WebUI),
	}
	if v := page.Version; v != nil {
		out.Version = v.Number
		out.CreatedDate = v.When
		if v.By != nil {
			out.CreatedBy = v.By.DisplayName
		}
	}
	if page.Body != nil && page.Body.Storage != nil {
		content := page.Body.Storage.Value
		if strings.EqualFold(in.BodyFormat, "text") {
			if content, err = StorageToText(content); err != nil {
				return nil, err
			}
		}
		out.Content = &content
	}
	return dispatch.JSONResult(out), nil
}

type createPageInput struct {
	SpaceKey string `json:"space_key"`
	Title    string `json:"title"`
	Content  string `json:"content"`
	ParentID string `json:"parent_id,omitempty"`
}

func (h *handlers) createPage(ctx context.Context, api API, args json.RawMessage) (*mcp.CallToolResult, error) {
	var in createPageInput
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}
	page, err := api.CreatePage(ctx, CreatePageRequest{
		SpaceKey: in.SpaceKey,
		Title:    in.Title,
		Body:     in.Content,
		ParentID: strings.TrimSpace(in.ParentID),
	})
	if err != nil {
		return nil, err
	}
	return dispatch.TextResult(fmt.Sprintf("Created page: %s\nID: %s\nURL: %s",
		page.Title, page.ID, api.WebURL(page.Links.WebUI))), nil
}

type updatePageInput struct {
	PageID         string  `json:"page_id"`
	Content        string  `json:"content"`
	Title          string  `json:"title,omitempty"`
	VersionComment *string `json:"version_comment,omitempty"`
}

func (h *handlers) updatePage(ctx context.Context, api API, args json.RawMessage) (*mcp.CallToolResult, error) {
	var in updatePageInput
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}
	comment := defaultVersionComment
	if in.VersionComment != nil {
		comment = *in.VersionComment
	}

	// The current page supplies the version to bump and the title to keep.
	current, err := api.GetPage(ctx, in.PageID, "version")
	if err != nil {
		return nil, err
	}
	next := 1
	if current.Version != nil {
		next = current.Version.Number + 1
	}
	title := in.Title
	if title == "" {
		title = current.Title
	}

	page, err := api.UpdatePage(ctx, UpdatePageRequest{
		ID:             in.PageID,
		Title:          title,
		Body:           in.Content,
		Version:        next,
		VersionComment: comment,
	})
	if err != nil {
		return nil, err
	}
	version := next
	if page.Version != nil {
		version = page.Version.Number
	}
	return dispatch.TextResult(fmt.Sprintf("Updated page: %s\nVersion: %d", page.Title, version)), nil
}

type pageIDInput struct {
	PageID string `json:"page_id"`
}

func (h *handlers) deletePage(ctx context.Context, api API, args json.RawMessage) (*mcp.CallToolResult, error) {
	var in pageIDInput
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}
	if err := api.DeletePage(ctx, in.PageID); err != nil {
		return nil, err
	}
	return dispatch.TextResult("Deleted page with ID: " + in.PageID), nil
}

type limitInput struct {
	Limit *int `json:"limit,omitempty"`
}

func (h *handlers) getSpaces(ctx context.Context, api API, args json.RawMessage) (*mcp.CallToolResult, error) {
	var in limitInput
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}
	spaces, err := api.ListSpaces(ctx, limitOrDefault(in.Limit))
	if err != nil {
		return nil, err
	}
	out := make([]SpaceSummary, 0, len(spaces))
	for _, s := range spaces {
		out = append(out, SpaceSummary{Key: s.Key, Name: s.Name, ID: s.ID, Type: s.Type})
	}
	return dispatch.JSONResult(out), nil
}

type pageChildrenInput struct {
	PageID string `json:"page_id"`
	Limit  *int   `json:"limit,omitempty"`
}

func (h *handlers) getPageChildren(ctx context.Context, api API, args json.RawMessage) (*mcp.CallToolResult, error) {
	var in pageChildrenInput
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}
	children, err := api.ListChildPages(ctx, in.PageID, limitOrDefault(in.Limit))
	if err != nil {
		return nil, err
	}
	out := make([]ChildSummary, 0, len(children))
	for _, c := range children {
		out = append(out, ChildSummary{ID: c.ID, Title: c.Title, URL: api.WebURL(c.Links.WebUI)})
	}
	return dispatch.JSONResult(out), nil
}

type addAttachmentInput struct {
	PageID   string `json:"page_id"`
	FilePath string `json:"file_path"`
	Comment  string `json:"comment,omitempty"`
}

func (h *handlers) addAttachment(ctx context.Context, api API, args json.RawMessage) (*mcp.CallToolResult, error) {
	var in addAttachmentInput
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}

	// A missing file is reported as plain text, the upload is never attempted.
	exists, err := afero.Exists(h.fs, in.FilePath)
	if err != nil {
		return nil, err
	}
	if !exists {
		return dispatch.TextResult("Error: File not found: " + in.FilePath), nil
	}

	f, err := h.fs.Open(in.FilePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return dispatch.TextResult("Error: File not found: " + in.FilePath), nil
		}
		return nil, fmt.Errorf("open %s: %w", in.FilePath, err)
	}
	defer f.Close()

	name := filepath.Base(in.FilePath)
	if err := api.AttachFile(ctx, in.PageID, name, f, in.Comment); err != nil {
		return nil, err
	}
	return dispatch.TextResult(fmt.Sprintf("Attached file: %s to page %s", name, in.PageID)), nil
}
