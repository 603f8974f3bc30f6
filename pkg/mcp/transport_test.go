package mcp

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransportReadsLinesUntilEOF(t *testing.T) {
	in := strings.NewReader("{\"jsonrpc\":\"2.0\",\"id\":1,\"method\":\"ping\"}\n\n{\"jsonrpc\":\"2.0\",\"method\":\"notifications/initialized\"}")
	tr := NewTransport(in, io.Discard)

	req, err := tr.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "ping", req.Method)
	assert.False(t, req.IsNotification())

	_, err = tr.ReadMessage()
	assert.ErrorIs(t, err, ErrEmptyLine)

	req, err = tr.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "notifications/initialized", req.Method)
	assert.True(t, req.IsNotification())

	_, err = tr.ReadMessage()
	assert.True(t, errors.Is(err, io.EOF))
}

func TestTransportRejectsMalformedJSON(t *testing.T) {
	tr := NewTransport(strings.NewReader("not json\n"), io.Discard)
	_, err := tr.ReadMessage()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse message")
}

func TestTransportWritesOneResponsePerLine(t *testing.T) {
	var out bytes.Buffer
	tr := NewTransport(strings.NewReader(""), &out)

	resp, err := NewResponse(json.RawMessage(`7`), map[string]any{})
	require.NoError(t, err)
	require.NoError(t, tr.WriteResponse(resp))
	require.NoError(t, tr.WriteResponse(NewErrorResponse(nil, MethodNotFound, "nope")))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":7,"result":{}}`, lines[0])
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":null,"error":{"code":-32601,"message":"nope"}}`, lines[1])
}

func TestCallToolResultText(t *testing.T) {
	r := &CallToolResult{Content: []ContentBlock{{Type: "text", Text: "a"}, {Type: "image"}, {Type: "text", Text: "b"}}}
	assert.Equal(t, "ab", r.Text())
	assert.Equal(t, "", (*CallToolResult)(nil).Text())
}
