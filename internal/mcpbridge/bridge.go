// Package mcpbridge serves every registered keyword as an MCP tool over
// Streamable HTTP.
package mcpbridge

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog/log"

	"github.com/lydakis/rfremote/pkg/dispatch"
	"github.com/lydakis/rfremote/pkg/registry"
)

const serverName = "rfremote"

// Bridge is an http.Handler speaking MCP. Tools are rebuilt from the
// registry the first time they are needed after a library changes.
type Bridge struct {
	reg  *registry.Registry
	disp *dispatch.Dispatcher
	mcp  *server.MCPServer
	http *server.StreamableHTTPServer

	mu    sync.Mutex
	dirty bool
}

// New creates a bridge for the libraries in reg, served at endpoint.
func New(reg *registry.Registry, disp *dispatch.Dispatcher, endpoint, version string) *Bridge {
	b := &Bridge{
		reg:   reg,
		disp:  disp,
		dirty: true,
	}

	hooks := &server.Hooks{}
	hooks.AddBeforeListTools(func(context.Context, any, *mcp.ListToolsRequest) {
		b.sync()
	})
	hooks.AddBeforeCallTool(func(context.Context, any, *mcp.CallToolRequest) {
		b.sync()
	})

	b.mcp = server.NewMCPServer(serverName, version,
		server.WithToolCapabilities(true),
		server.WithHooks(hooks),
	)
	b.http = server.NewStreamableHTTPServer(b.mcp, server.WithEndpointPath(endpoint))
	reg.OnChange(func(string) { b.invalidate() })
	return b
}

func (b *Bridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.http.ServeHTTP(w, r)
}

func (b *Bridge) invalidate() {
	b.mu.Lock()
	b.dirty = true
	b.mu.Unlock()
}

// sync rebuilds the tool set when the registry changed since the last build.
func (b *Bridge) sync() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.dirty {
		return
	}

	var tools []server.ServerTool
	seen := make(map[string]bool)
	for _, path := range b.reg.Paths() {
		names, err := b.disp.KeywordNames(path)
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("skipping library in MCP tool list")
			continue
		}
		for _, kw := range names {
			if kw == dispatch.StopKeyword {
				continue
			}
			name := ToolName(path, kw)
			if seen[name] {
				log.Warn().Str("tool", name).Str("path", path).Str("keyword", kw).Msg("duplicate MCP tool name")
				continue
			}
			seen[name] = true
			tools = append(tools, server.ServerTool{
				Tool:    b.describe(name, path, kw),
				Handler: b.handler(path, kw),
			})
		}
	}

	b.mcp.SetTools(tools...)
	b.dirty = false
	log.Debug().Int("tools", len(tools)).Msg("MCP tools synchronised")
}

func (b *Bridge) describe(name, path, kw string) mcp.Tool {
	doc, _ := b.disp.KeywordDocumentation(path, kw)
	args, _ := b.disp.KeywordArguments(path, kw)

	desc := doc
	if len(args) > 0 {
		if desc != "" {
			desc += "\n\n"
		}
		desc += "Arguments: " + strings.Join(args, ", ")
	}
	return mcp.Tool{
		Name:        name,
		Description: desc,
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"args": map[string]any{
					"type":        "array",
					"description": "Positional keyword arguments",
				},
				"kwargs": map[string]any{
					"type":        "object",
					"description": "Named keyword arguments",
				},
			},
		},
	}
}

func (b *Bridge) handler(path, kw string) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, err := keywordArgs(request.GetArguments())
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		resp := b.disp.RunKeyword(ctx, path, kw, args)
		result := mcp.NewToolResultStructuredOnly(resp.Map())
		result.IsError = !resp.Passed()
		return result, nil
	}
}

func keywordArgs(input map[string]any) ([]any, error) {
	args := []any{}
	if raw, ok := input["args"]; ok && raw != nil {
		list, ok := raw.([]any)
		if !ok {
			return nil, fmt.Errorf("args must be an array, got %T", raw)
		}
		args = append(args, list...)
	}
	if raw, ok := input["kwargs"]; ok && raw != nil {
		named, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("kwargs must be an object, got %T", raw)
		}
		args = dispatch.AppendNamed(args, named)
	}
	return args, nil
}

// ToolName names the tool for keyword kw of the library at path: the path
// segments joined by dots, then the keyword, with spaces as underscores.
// Keywords of the root library keep their own name.
func ToolName(path, kw string) string {
	kw = strings.ReplaceAll(strings.TrimSpace(kw), " ", "_")
	lib := strings.ReplaceAll(strings.Trim(path, "/"), "/", ".")
	if lib == "" {
		return kw
	}
	return lib + "." + kw
}
