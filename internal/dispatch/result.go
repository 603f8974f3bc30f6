package dispatch

import (
	"encoding/json"

	"github.com/golovatskygroup/mcp-atlassian/pkg/mcp"
)

func TextResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.ContentBlock{{Type: "text", Text: text}}}
}

func ErrorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.ContentBlock{{Type: "text", Text: "Error: " + msg}}, IsError: true}
}

// JSONResult renders v as two-space indented JSON text.
func JSONResult(v any) *mcp.CallToolResult {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return ErrorResult(err.Error())
	}
	return TextResult(string(b))
}
