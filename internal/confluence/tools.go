package confluence

import (
	"encoding/json"

	"github.com/spf13/afero"

	"github.com/golovatskygroup/mcp-atlassian/internal/dispatch"
	"github.com/golovatskygroup/mcp-atlassian/pkg/mcp"
)

const (
	ToolSearchContent   = "confluence_search_content"
	ToolGetPage         = "confluence_get_page"
	ToolCreatePage      = "confluence_create_page"
	ToolUpdatePage      = "confluence_update_page"
	ToolDeletePage      = "confluence_delete_page"
	ToolGetSpaces       = "confluence_get_spaces"
	ToolGetPageChildren = "confluence_get_page_children"
	ToolAddAttachment   = "confluence_add_attachment"
)

// Tools returns the Confluence catalog bound to its handlers. Attachments are read
// from fs.
func Tools(fs afero.Fs) []dispatch.Tool[API] {
	h := &handlers{fs: fs}
	return []dispatch.Tool[API]{
		{
			Tool: mcp.Tool{
				Name:        ToolSearchContent,
				Description: "Search for Confluence content using CQL",
				InputSchema: json.RawMessage(`{
					"type": "object",
					"properties": {
						"cql": {"type": "string", "description": "CQL query string"},
						"limit": {"type": "integer", "description": "Maximum number of results to return", "default": 25}
					},
					"required": ["cql"]
				}`),
			},
			Handle: h.searchContent,
		},
		{
			Tool: mcp.Tool{
				Name:        ToolGetPage,
				Description: "Get a Confluence page by ID",
				InputSchema: json.RawMessage(`{
					"type": "object",
					"properties": {
						"page_id": {"type": "string", "description": "Page ID"},
						"expand": {"type": "string", "description": "Properties to expand (e.g., body.storage,version)", "default": "body.storage,version"},
						"body_format": {"type": "string", "description": "Return content as raw storage XHTML or as plain text.", "enum": ["storage", "text"], "default": "storage"}
					},
					"required": ["page_id"]
				}`),
			},
			Handle: h.getPage,
		},
		{
			Tool: mcp.Tool{
				Name:        ToolCreatePage,
				Description: "Create a new Confluence page",
				InputSchema: json.RawMessage(`{
					"type": "object",
					"properties": {
						"space_key": {"type": "string", "description": "Space key where the page will be created"},
						"title": {"type": "string", "description": "Page title"},
						"content": {"type": "string", "description": "Page content in storage format (HTML)"},
						"parent_id": {"type": "string", "description": "Parent page ID (optional)"}
					},
					"required": ["space_key", "title", "content"]
				}`),
			},
			Handle: h.createPage,
		},
		{
			Tool: mcp.Tool{
				Name:        ToolUpdatePage,
				Description: "Update an existing Confluence page",
				InputSchema: json.RawMessage(`{
					"type": "object",
					"properties": {
						"page_id": {"type": "string", "description": "Page ID"},
						"title": {"type": "string", "description": "New page title"},
						"content": {"type": "string", "description": "New page content in storage format (HTML)"},
						"version_comment": {"type": "string", "description": "Comment for this version"}
					},
					"required": ["page_id", "content"]
				}`),
			},
			Handle: h.updatePage,
		},
		{
			Tool: mcp.Tool{
				Name:        ToolDeletePage,
				Description: "Delete a Confluence page",
				InputSchema: json.RawMessage(`{
					"type": "object",
					"properties": {
						"page_id": {"type": "string", "description": "Page ID to delete"}
					},
					"required": ["page_id"]
				}`),
			},
			Handle: h.deletePage,
		},
		{
			Tool: mcp.Tool{
				Name:        ToolGetSpaces,
				Description: "Get list of Confluence spaces",
				InputSchema: json.RawMessage(`{
					"type": "object",
					"properties": {
						"limit": {"type": "integer", "description": "Maximum number of spaces to return", "default": 25}
					}
				}`),
			},
			Handle: h.getSpaces,
		},
		{
			Tool: mcp.Tool{
				Name:        ToolGetPageChildren,
				Description: "Get child pages of a specific page",
				InputSchema: json.RawMessage(`{
					"type": "object",
					"properties": {
						"page_id": {"type": "string", "description": "Parent page ID"},
						"limit": {"type": "integer", "description": "Maximum number of children to return", "default": 25}
					},
					"required": ["page_id"]
				}`),
			},
			Handle: h.getPageChildren,
		},
		{
			Tool: mcp.Tool{
				Name:        ToolAddAttachment,
				Description: "Add an attachment to a Confluence page",
				InputSchema: json.RawMessage(`{
					"type": "object",
					"properties": {
						"page_id": {"type": "string", "description": "Page ID"},
						"file_path": {"type": "string", "description": "Path to the file to attach"},
						"comment": {"type": "string", "description": "Comment for the attachment"}
					},
					"required": ["page_id", "file_path"]
				}`),
			},
			Handle: h.addAttachment,
		},
	}
}
