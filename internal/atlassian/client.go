// Package atlassian is the REST plumbing shared by the Jira and Confluence clients:
// authentication, JSON request/response handling, error shaping and uploads.
package atlassian

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ErrHTMLOrRedirect is returned when the API answers with a login page or redirect
// instead of JSON, which usually means the base URL or credentials are wrong.
var ErrHTMLOrRedirect = errors.New("api returned html/redirect (likely login page)")

// Options configure a Client.
type Options struct {
	Product   string // "Jira" or "Confluence", used in messages
	BaseURL   string // site base, e.g. https://example.atlassian.net/wiki
	APIPath   string // e.g. /rest/api or /rest/api/2
	Username  string
	APIToken  string
	UserAgent string
	Timeout   time.Duration
	Transport http.RoundTripper
	Logger    zerolog.Logger
}

// Client talks JSON to one Atlassian REST API root.
type Client struct {
	product    string
	baseURL    string
	apiBase    string
	authHeader string
	userAgent  string
	c          *http.Client
}

func NewClient(opts Options) *Client {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	ua := opts.UserAgent
	if ua == "" {
		ua = "mcp-atlassian"
	}
	auth := ""
	if opts.Username != "" || opts.APIToken != "" {
		auth = "Basic " + base64.StdEncoding.EncodeToString([]byte(opts.Username+":"+opts.APIToken))
	}
	return &Client{
		product:    opts.Product,
		baseURL:    base,
		apiBase:    base + opts.APIPath,
		authHeader: auth,
		userAgent:  ua,
		c: &http.Client{
			Timeout:   opts.Timeout,
			Transport: NewLoggingTransport(opts.Transport, opts.Logger),
			// Do not follow redirects automatically. Server/DC instances redirect
			// unauthenticated API calls to HTML login pages.
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// BaseURL is the site base used to absolutise relative web links.
func (c *Client) BaseURL() string { return c.baseURL }

// WebURL joins the site base with a relative web UI link.
func (c *Client) WebURL(rel string) string { return c.baseURL + rel }

// Do sends a JSON request to apiPath (relative to the API root) and decodes a JSON
// response into out when out is non-nil.
func (c *Client) Do(ctx context.Context, method, apiPath string, query url.Values, body any, out any) error {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", c.product, err)
		}
		r = bytes.NewReader(b)
	}

	req, err := c.newRequest(ctx, method, apiPath, query, r)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, out)
}

// Upload sends a multipart form with one file part plus plain fields.
func (c *Client) Upload(ctx context.Context, method, apiPath, fileField, fileName string, file io.Reader, fields map[string]string, out any) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile(fileField, fileName)
	if err != nil {
		return fmt.Errorf("failed to create multipart: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return fmt.Errorf("failed to write field %s: %w", k, err)
		}
	}
	if err := w.Close(); err != nil {
		return err
	}

	req, err := c.newRequest(ctx, method, apiPath, nil, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	// Attachment endpoints require the XSRF opt-out header.
	req.Header.Set("X-Atlassian-Token", "no-check")
	return c.send(req, out)
}

func (c *Client) newRequest(ctx context.Context, method, apiPath string, query url.Values, body io.Reader) (*http.Request, error) {
	u := c.apiBase + apiPath
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	if c.authHeader != "" {
		req.Header.Set("Authorization", c.authHeader)
	}
	return req, nil
}

func (c *Client) send(req *http.Request, out any) error {
	resp, err := c.c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response: %w", c.product, err)
	}

	ct := strings.ToLower(resp.Header.Get("Content-Type"))
	if (resp.StatusCode >= 300 && resp.StatusCode < 400) || strings.Contains(ct, "text/html") || looksLikeHTML(b) {
		return fmt.Errorf("%s %w: status=%d location=%s", c.product, ErrHTMLOrRedirect, resp.StatusCode, resp.Header.Get("Location"))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{
			Product: c.product,
			Status:  resp.StatusCode,
			Message: summarizeErrorBody(b),
			Hint:    authHint(c.product, resp.StatusCode, b),
		}
	}
	if out == nil || len(bytes.TrimSpace(b)) == 0 {
		return nil
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("decode %s response: %w", c.product, err)
	}
	return nil
}

func looksLikeHTML(b []byte) bool {
	s := strings.TrimSpace(strings.ToLower(string(b)))
	if s == "" {
		return false
	}
	return strings.HasPrefix(s, "<!doctype html") || strings.HasPrefix(s, "<html") || (strings.Contains(s, "<html") && strings.Contains(s, "<body"))
}
