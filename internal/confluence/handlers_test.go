package confluence

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/golovatskygroup/mcp-atlassian/internal/dispatch"
	"github.com/golovatskygroup/mcp-atlassian/internal/session"
	"github.com/golovatskygroup/mcp-atlassian/pkg/mcp"
)

type attachCall struct {
	pageID, fileName, body, comment string
}

type fakeAPI struct {
	calls []string

	searchResults []SearchResult
	searchLimit   int
	searchCQL     string

	page       *Content
	getExpands []string

	created *CreatePageRequest
	updated *UpdatePageRequest

	spaces      []Space
	spacesLimit int

	children      []Content
	childrenLimit int

	attached *attachCall
	err      error
}

func (f *fakeAPI) Search(_ context.Context, cql string, limit int) ([]SearchResult, error) {
	f.calls = append(f.calls, "Search")
	f.searchCQL, f.searchLimit = cql, limit
	return f.searchResults, f.err
}

func (f *fakeAPI) GetPage(_ context.Context, id, expand string) (*Content, error) {
	f.calls = append(f.calls, "GetPage")
	f.getExpands = append(f.getExpands, expand)
	if f.err != nil {
		return nil, f.err
	}
	return f.page, nil
}

func (f *fakeAPI) CreatePage(_ context.Context, req CreatePageRequest) (*Content, error) {
	f.calls = append(f.calls, "CreatePage")
	f.created = &req
	return &Content{ID: "42", Title: req.Title, Links: Links{WebUI: "/spaces/" + req.SpaceKey + "/pages/42"}}, f.err
}

func (f *fakeAPI) UpdatePage(_ context.Context, req UpdatePageRequest) (*Content, error) {
	f.calls = append(f.calls, "UpdatePage")
	f.updated = &req
	return &Content{ID: req.ID, Title: req.Title, Version: &Version{Number: req.Version}}, f.err
}

func (f *fakeAPI) DeletePage(_ context.Context, id string) error {
	f.calls = append(f.calls, "DeletePage:"+id)
	return f.err
}

func (f *fakeAPI) ListSpaces(_ context.Context, limit int) ([]Space, error) {
	f.calls = append(f.calls, "ListSpaces")
	f.spacesLimit = limit
	return f.spaces, f.err
}

func (f *fakeAPI) ListChildPages(_ context.Context, id string, limit int) ([]Content, error) {
	f.calls = append(f.calls, "ListChildPages")
	f.childrenLimit = limit
	return f.children, f.err
}

func (f *fakeAPI) AttachFile(_ context.Context, pageID, fileName string, file io.Reader, comment string) error {
	f.calls = append(f.calls, "AttachFile")
	b, err := io.ReadAll(file)
	if err != nil {
		return err
	}
	f.attached = &attachCall{pageID: pageID, fileName: fileName, body: string(b), comment: comment}
	return f.err
}

func (f *fakeAPI) WebURL(rel string) string { return "https://wiki.example.com" + rel }

func callTool(t *testing.T, api API, fs afero.Fs, name, args string) *mcp.CallToolResult {
	t.Helper()
	d, err := dispatch.New(Tools(fs), session.Ready[API](api), zerolog.Nop())
	require.NoError(t, err)
	res := d.Call(context.Background(), name, json.RawMessage(args))
	require.NotNil(t, res)
	return res
}

func decodeText(t *testing.T, res *mcp.CallToolResult, v any) {
	t.Helper()
	require.False(t, res.IsError, res.Text())
	require.NoError(t, json.Unmarshal([]byte(res.Text()), v))
}

func TestCatalogNamesAndRequiredArgs(t *testing.T) {
	tools := Tools(afero.NewMemMapFs())
	want := map[string][]string{
		ToolSearchContent:   {"cql"},
		ToolGetPage:         {"page_id"},
		ToolCreatePage:      {"space_key", "title", "content"},
		ToolUpdatePage:      {"page_id", "content"},
		ToolDeletePage:      {"page_id"},
		ToolGetSpaces:       nil,
		ToolGetPageChildren: {"page_id"},
		ToolAddAttachment:   {"page_id", "file_path"},
	}
	require.Len(t, tools, len(want))
	for _, tool := range tools {
		var schema struct {
			Type     string   `json:"type"`
			Required []string `json:"required"`
		}
		require.NoError(t, json.Unmarshal(tool.InputSchema, &schema), tool.Name)
		assert.Equal(t, "object", schema.Type, tool.Name)
		assert.Equal(t, want[tool.Name], schema.Required, tool.Name)
		assert.NotEmpty(t, tool.Description, tool.Name)
	}
}

func TestSearchContent(t *testing.T) {
	api := &fakeAPI{searchResults: []SearchResult{{Content: Content{
		ID: "1", Title: "Runbook", Type: "page",
		Space: &SpaceRef{Key: "OPS"},
		Links: Links{WebUI: "/spaces/OPS/pages/1"},
	}}}}

	res := callTool(t, api, nil, ToolSearchContent, `{"cql":"type=page"}`)
	var hits []map[string]any
	decodeText(t, res, &hits)

	require.Len(t, hits, 1)
	assert.Equal(t, map[string]any{
		"id": "1", "title": "Runbook", "type": "page", "space": "OPS",
		"url": "https://wiki.example.com/spaces/OPS/pages/1",
	}, hits[0])
	assert.Equal(t, "type=page", api.searchCQL)
	assert.Equal(t, 25, api.searchLimit)
}

func TestSearchContentExplicitLimitAndEmpty(t *testing.T) {
	api := &fakeAPI{}
	res := callTool(t, api, nil, ToolSearchContent, `{"cql":"x","limit":3}`)
	assert.Equal(t, "[]", res.Text())
	assert.Equal(t, 3, api.searchLimit)
}

func TestSearchContentOutputIsIndented(t *testing.T) {
	api := &fakeAPI{searchResults: []SearchResult{{Content: Content{ID: "1"}}}}
	res := callTool(t, api, nil, ToolSearchContent, `{"cql":"x"}`)
	assert.Contains(t, res.Text(), "[\n  {\n    \"id\": \"1\",")
}

func TestGetPage(t *testing.T) {
	api := &fakeAPI{page: &Content{
		ID: "7", Title: "Design",
		Space:   &SpaceRef{Key: "ENG"},
		Version: &Version{Number: 4, When: "2024-01-02T03:04:05.000Z", By: &User{DisplayName: "Ada"}},
		Body:    &Body{Storage: &Storage{Value: "<p>Hi</p>"}},
		Links:   Links{WebUI: "/pages/7"},
	}}

	res := callTool(t, api, nil, ToolGetPage, `{"page_id":"7"}`)
	var got map[string]any
	decodeText(t, res, &got)

	assert.Equal(t, map[string]any{
		"id": "7", "title": "Design", "space": "ENG", "version": float64(4),
		"created_by": "Ada", "created_date": "2024-01-02T03:04:05.000Z",
		"url": "https://wiki.example.com/pages/7", "content": "<p>Hi</p>",
	}, got)
	assert.Equal(t, []string{"body.storage,version,space"}, api.getExpands)
}

func TestGetPageWithoutBodyOmitsContent(t *testing.T) {
	api := &fakeAPI{page: &Content{ID: "7", Title: "Design", Version: &Version{Number: 1}}}
	res := callTool(t, api, nil, ToolGetPage, `{"page_id":"7","expand":"version"}`)

	var got map[string]any
	decodeText(t, res, &got)
	_, ok := got["content"]
	assert.False(t, ok)
	assert.Equal(t, "", got["space"])
	assert.Equal(t, []string{"version,space"}, api.getExpands)
}

func TestGetPageAsText(t *testing.T) {
	api := &fakeAPI{page: &Content{
		ID:   "7",
		Body: &Body{Storage: &Storage{Value: "<p>Hello <strong>world</strong></p><ul><li>One</li></ul>"}},
	}}
	res := callTool(t, api, nil, ToolGetPage, `{"page_id":"7","body_format":"text"}`)

	var got PageSummary
	decodeText(t, res, &got)
	require.NotNil(t, got.Content)
	assert.Equal(t, "Hello world\n\n- One", *got.Content)
}

func TestGetPageRejectsUnknownBodyFormat(t *testing.T) {
	api := &fakeAPI{}
	res := callTool(t, api, nil, ToolGetPage, `{"page_id":"7","body_format":"view"}`)
	assert.True(t, res.IsError)
	assert.Empty(t, api.calls)
}

func TestCreatePage(t *testing.T) {
	api := &fakeAPI{}
	res := callTool(t, api, nil, ToolCreatePage, `{"space_key":"ENG","title":"New","content":"<p>x</p>","parent_id":"9"}`)

	assert.False(t, res.IsError)
	assert.Equal(t, "Created page: New\nID: 42\nURL: https://wiki.example.com/spaces/ENG/pages/42", res.Text())
	require.NotNil(t, api.created)
	assert.Equal(t, CreatePageRequest{SpaceKey: "ENG", Title: "New", Body: "<p>x</p>", ParentID: "9"}, *api.created)
}

func TestCreatePageMissingRequired(t *testing.T) {
	api := &fakeAPI{}
	res := callTool(t, api, nil, ToolCreatePage, `{"space_key":"ENG","title":"New"}`)
	assert.True(t, res.IsError)
	assert.Contains(t, res.Text(), "Error: ")
	assert.Empty(t, api.calls)
}

func TestUpdatePageBumpsVersionAndKeepsTitle(t *testing.T) {
	api := &fakeAPI{page: &Content{ID: "5", Title: "Old title", Version: &Version{Number: 3}}}
	res := callTool(t, api, nil, ToolUpdatePage, `{"page_id":"5","content":"<p>new</p>"}`)

	assert.Equal(t, "Updated page: Old title\nVersion: 4", res.Text())
	assert.Equal(t, []string{"GetPage", "UpdatePage"}, api.calls)
	require.NotNil(t, api.updated)
	assert.Equal(t, UpdatePageRequest{
		ID: "5", Title: "Old title", Body: "<p>new</p>", Version: 4, VersionComment: "Updated via MCP",
	}, *api.updated)
}

func TestUpdatePageWithTitleAndComment(t *testing.T) {
	api := &fakeAPI{page: &Content{ID: "5", Title: "Old", Version: &Version{Number: 1}}}
	res := callTool(t, api, nil, ToolUpdatePage, `{"page_id":"5","content":"c","title":"Fresh","version_comment":"typo"}`)

	assert.Equal(t, "Updated page: Fresh\nVersion: 2", res.Text())
	assert.Equal(t, "typo", api.updated.VersionComment)
	assert.Len(t, api.calls, 2)
}

func TestDeletePage(t *testing.T) {
	api := &fakeAPI{}
	res := callTool(t, api, nil, ToolDeletePage, `{"page_id":"11"}`)
	assert.Equal(t, "Deleted page with ID: 11", res.Text())
	assert.Equal(t, []string{"DeletePage:11"}, api.calls)
}

func TestGetSpaces(t *testing.T) {
	api := &fakeAPI{spaces: []Space{{ID: 98307, Key: "ENG", Name: "Engineering", Type: "global"}}}
	res := callTool(t, api, nil, ToolGetSpaces, `{}`)

	var got []map[string]any
	decodeText(t, res, &got)
	assert.Equal(t, []map[string]any{{"key": "ENG", "name": "Engineering", "id": float64(98307), "type": "global"}}, got)
	assert.Equal(t, 25, api.spacesLimit)
}

func TestGetSpacesNullArguments(t *testing.T) {
	api := &fakeAPI{}
	res := callTool(t, api, nil, ToolGetSpaces, `null`)
	assert.Equal(t, "[]", res.Text())
	assert.Equal(t, 25, api.spacesLimit)
}

func TestGetPageChildren(t *testing.T) {
	api := &fakeAPI{children: []Content{{ID: "2", Title: "Child", Links: Links{WebUI: "/pages/2"}}}}
	res := callTool(t, api, nil, ToolGetPageChildren, `{"page_id":"1","limit":10}`)

	var got []ChildSummary
	decodeText(t, res, &got)
	assert.Equal(t, []ChildSummary{{ID: "2", Title: "Child", URL: "https://wiki.example.com/pages/2"}}, got)
	assert.Equal(t, 10, api.childrenLimit)
}

func TestAddAttachment(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/tmp/report.csv", []byte("a,b\n1,2\n"), 0o644))

	api := &fakeAPI{}
	res := callTool(t, api, fs, ToolAddAttachment, `{"page_id":"3","file_path":"/tmp/report.csv","comment":"weekly"}`)

	assert.False(t, res.IsError)
	assert.Equal(t, "Attached file: report.csv to page 3", res.Text())
	require.NotNil(t, api.attached)
	assert.Equal(t, attachCall{pageID: "3", fileName: "report.csv", body: "a,b\n1,2\n", comment: "weekly"}, *api.attached)
}

func TestAddAttachmentMissingFile(t *testing.T) {
	api := &fakeAPI{}
	res := callTool(t, api, afero.NewMemMapFs(), ToolAddAttachment, `{"page_id":"3","file_path":"/nope.txt"}`)

	assert.False(t, res.IsError)
	assert.Equal(t, "Error: File not found: /nope.txt", res.Text())
	assert.Empty(t, api.calls)
}

func TestRemoteErrorBecomesErrorText(t *testing.T) {
	api := &fakeAPI{err: errors.New("Confluence API error (404): No content found")}
	res := callTool(t, api, nil, ToolDeletePage, `{"page_id":"1"}`)
	assert.True(t, res.IsError)
	assert.Equal(t, "Error: Confluence API error (404): No content found", res.Text())
}

func TestWithRequiredExpand(t *testing.T) {
	assert.Equal(t, "space,version", withRequiredExpand(""))
	assert.Equal(t, "body.storage,version,space", withRequiredExpand("body.storage, version,"))
	assert.Equal(t, "space,version", withRequiredExpand("space,version"))
}
