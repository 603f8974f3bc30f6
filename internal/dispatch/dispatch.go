// Package dispatch routes tool calls to handlers and turns every failure into a text
// result, so a single bad call never reaches the transport as a fault.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/golovatskygroup/mcp-atlassian/internal/session"
	"github.com/golovatskygroup/mcp-atlassian/pkg/mcp"
)

// Handler runs one tool against an established client C.
type Handler[C any] func(ctx context.Context, client C, args json.RawMessage) (*mcp.CallToolResult, error)

// Tool pairs a catalog entry with its handler.
type Tool[C any] struct {
	mcp.Tool
	Handle Handler[C]
}

type entry[C any] struct {
	tool   Tool[C]
	schema *jsonschema.Schema
}

// Dispatcher owns the lookup table for one service.
type Dispatcher[C any] struct {
	order   []string
	entries map[string]entry[C]
	session *session.Manager[C]
	log     zerolog.Logger
}

// New builds a dispatcher. Input schemas are compiled up front; a schema that does
// not compile or a duplicate name is a programming error reported here.
func New[C any](tools []Tool[C], sess *session.Manager[C], log zerolog.Logger) (*Dispatcher[C], error) {
	d := &Dispatcher[C]{
		entries: make(map[string]entry[C], len(tools)),
		session: sess,
		log:     log,
	}
	for _, t := range tools {
		if t.Name == "" || t.Handle == nil {
			return nil, fmt.Errorf("tool %q: name and handler are required", t.Name)
		}
		if _, dup := d.entries[t.Name]; dup {
			return nil, fmt.Errorf("tool %q registered twice", t.Name)
		}
		s, err := compileSchema(t.Name, t.InputSchema)
		if err != nil {
			return nil, fmt.Errorf("invalid inputSchema for %s: %w", t.Name, err)
		}
		d.entries[t.Name] = entry[C]{tool: t, schema: s}
		d.order = append(d.order, t.Name)
	}
	return d, nil
}

// Tools returns the catalog in registration order.
func (d *Dispatcher[C]) Tools() []mcp.Tool {
	out := make([]mcp.Tool, 0, len(d.order))
	for _, name := range d.order {
		out = append(out, d.entries[name].tool.Tool)
	}
	return out
}

// Call invokes the named tool. It always returns a result, never an error.
func (d *Dispatcher[C]) Call(ctx context.Context, name string, args json.RawMessage) (res *mcp.CallToolResult) {
	log := d.log.With().Str("tool", name).Str("call_id", uuid.NewString()).Logger()
	start := time.Now()

	e, ok := d.entries[name]
	if !ok {
		log.Warn().Strs("closest", d.suggest(name)).Msg("unknown tool")
		return TextResult("Unknown tool: " + name)
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("tool handler panicked")
			res = ErrorResult(fmt.Sprint(r))
		}
		if res != nil && res.IsError {
			log.Warn().Str("error", res.Text()).Dur("duration", time.Since(start)).Msg("tool call failed")
			return
		}
		log.Info().Dur("duration", time.Since(start)).Msg("tool call")
	}()

	client, err := d.session.Get(ctx)
	if err != nil {
		return ErrorResult(err.Error())
	}

	args = normalizeArgs(args)
	var decoded any
	if err := json.Unmarshal(args, &decoded); err != nil {
		return ErrorResult("invalid arguments: " + err.Error())
	}
	if err := validateArgs(name, e.schema, decoded); err != nil {
		return ErrorResult(err.Error())
	}

	out, err := e.tool.Handle(ctx, client, args)
	if err != nil {
		return ErrorResult(err.Error())
	}
	if out == nil {
		return TextResult("")
	}
	return out
}

func (d *Dispatcher[C]) suggest(name string) []string {
	ranks := fuzzy.RankFindNormalizedFold(name, d.order)
	sort.Sort(ranks)
	out := make([]string, 0, 3)
	for _, r := range ranks {
		if len(out) == 3 {
			break
		}
		out = append(out, r.Target)
	}
	return out
}

func normalizeArgs(args json.RawMessage) json.RawMessage {
	trimmed := bytes.TrimSpace(args)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return json.RawMessage("{}")
	}
	return trimmed
}
