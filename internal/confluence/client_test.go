package confluence

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/golovatskygroup/mcp-atlassian/internal/config"
)

type recorded struct {
	method, path, rawQuery string
	body                   map[string]any
}

func newServer(t *testing.T, reply string) (*Client, *[]recorded) {
	t.Helper()
	var reqs []recorded
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recorded{method: r.Method, path: r.URL.Path, rawQuery: r.URL.RawQuery}
		if b, _ := io.ReadAll(r.Body); len(b) > 0 && strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
			_ = json.Unmarshal(b, &rec.body)
		}
		reqs = append(reqs, rec)
		if reply == "" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(srv.Close)

	creds := config.Credentials{URL: srv.URL, Username: "u", APIToken: "t", Cloud: true}
	return NewClient(creds, config.Default().HTTP, zerolog.Nop()), &reqs
}

func TestClientSearch(t *testing.T) {
	cl, reqs := newServer(t, `{"results":[{"content":{"id":"1","type":"page","title":"A","space":{"key":"ENG"},"_links":{"webui":"/x"}}}]}`)

	res, err := cl.Search(context.Background(), `space = "ENG"`, 25)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "ENG", res[0].Content.Space.Key)

	require.Len(t, *reqs, 1)
	r := (*reqs)[0]
	assert.Equal(t, "/rest/api/search", r.path)
	assert.Contains(t, r.rawQuery, "limit=25")
	assert.Contains(t, r.rawQuery, "expand=content.space")
	assert.Contains(t, r.rawQuery, "cql=space+%3D+%22ENG%22")
}

func TestClientCreatePage(t *testing.T) {
	cl, reqs := newServer(t, `{"id":"42","title":"T","_links":{"webui":"/p/42"}}`)

	page, err := cl.CreatePage(context.Background(), CreatePageRequest{SpaceKey: "ENG", Title: "T", Body: "<p>b</p>", ParentID: "9"})
	require.NoError(t, err)
	assert.Equal(t, "42", page.ID)

	r := (*reqs)[0]
	assert.Equal(t, http.MethodPost, r.method)
	assert.Equal(t, "/rest/api/content", r.path)
	assert.Equal(t, "page", r.body["type"])
	assert.Equal(t, map[string]any{"key": "ENG"}, r.body["space"])
	assert.Equal(t, []any{map[string]any{"id": "9"}}, r.body["ancestors"])
	assert.Equal(t, map[string]any{"storage": map[string]any{"value": "<p>b</p>", "representation": "storage"}}, r.body["body"])
}

func TestClientUpdatePage(t *testing.T) {
	cl, reqs := newServer(t, `{"id":"5","title":"T","version":{"number":4}}`)

	page, err := cl.UpdatePage(context.Background(), UpdatePageRequest{ID: "5", Title: "T", Body: "b", Version: 4, VersionComment: "c"})
	require.NoError(t, err)
	assert.Equal(t, 4, page.Version.Number)

	r := (*reqs)[0]
	assert.Equal(t, http.MethodPut, r.method)
	assert.Equal(t, "/rest/api/content/5", r.path)
	assert.Equal(t, map[string]any{"number": float64(4), "message": "c"}, r.body["version"])
	_, hasAncestors := r.body["ancestors"]
	assert.False(t, hasAncestors)
}

func TestClientUpdatePageRejectsZeroVersion(t *testing.T) {
	cl, reqs := newServer(t, `{}`)
	_, err := cl.UpdatePage(context.Background(), UpdatePageRequest{ID: "5"})
	assert.Error(t, err)
	assert.Empty(t, *reqs)
}

func TestClientDeleteAndLists(t *testing.T) {
	cl, reqs := newServer(t, "")
	require.NoError(t, cl.DeletePage(context.Background(), "8"))
	assert.Equal(t, http.MethodDelete, (*reqs)[0].method)
	assert.Equal(t, "/rest/api/content/8", (*reqs)[0].path)

	cl, reqs = newServer(t, `{"results":[{"id":1,"key":"ENG","name":"Eng","type":"global"}]}`)
	spaces, err := cl.ListSpaces(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, []Space{{ID: 1, Key: "ENG", Name: "Eng", Type: "global"}}, spaces)
	assert.Equal(t, "/rest/api/space", (*reqs)[0].path)
	assert.Equal(t, "limit=10", (*reqs)[0].rawQuery)

	cl, reqs = newServer(t, `{"results":[{"id":"2","title":"C"}]}`)
	children, err := cl.ListChildPages(context.Background(), "1", 5)
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, "/rest/api/content/1/child/page", (*reqs)[0].path)
}

func TestClientAttachFile(t *testing.T) {
	var fileName, minorEdit, token string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/rest/api/content/3/child/attachment", r.URL.Path)
		token = r.Header.Get("X-Atlassian-Token")
		require.NoError(t, r.ParseMultipartForm(1<<20))
		_, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		fileName = hdr.Filename
		minorEdit = r.FormValue("minorEdit")
		_, _ = w.Write([]byte(`{"results":[]}`))
	}))
	defer srv.Close()

	cl := NewClient(config.Credentials{URL: srv.URL, Username: "u", APIToken: "t"}, config.HTTPConfig{}, zerolog.Nop())
	require.NoError(t, cl.AttachFile(context.Background(), "3", "a.txt", strings.NewReader("x"), ""))
	assert.Equal(t, "a.txt", fileName)
	assert.Equal(t, "true", minorEdit)
	assert.Equal(t, "no-check", token)
}

func TestNormalizeBaseURL(t *testing.T) {
	assert.Equal(t, "https://acme.atlassian.net/wiki", normalizeBaseURL("https://acme.atlassian.net/", true))
	assert.Equal(t, "https://acme.atlassian.net/wiki", normalizeBaseURL("https://acme.atlassian.net/wiki", true))
	assert.Equal(t, "https://acme.atlassian.net", normalizeBaseURL("https://acme.atlassian.net", false))
	assert.Equal(t, "https://wiki.corp.local/confluence", normalizeBaseURL("https://wiki.corp.local/confluence/", true))
}

func TestConnectRequiresCredentials(t *testing.T) {
	t.Setenv("CONFLUENCE_URL", "")
	t.Setenv("CONFLUENCE_USERNAME", "")
	t.Setenv("CONFLUENCE_API_TOKEN", "")

	_, err := Connect(config.Default(), zerolog.Nop())(context.Background())
	require.Error(t, err)
	assert.Equal(t, "CONFLUENCE_URL, CONFLUENCE_USERNAME, and CONFLUENCE_API_TOKEN must be set", err.Error())
}

func TestConnectBuildsClient(t *testing.T) {
	t.Setenv("CONFLUENCE_URL", "https://acme.atlassian.net")
	t.Setenv("CONFLUENCE_USERNAME", "me@acme.io")
	t.Setenv("CONFLUENCE_API_TOKEN", "tok")
	t.Setenv("CONFLUENCE_CLOUD", "TRUE")

	api, err := Connect(config.Default(), zerolog.Nop())(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://acme.atlassian.net/wiki/pages/1", api.WebURL("/pages/1"))
}
