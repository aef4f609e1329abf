package mcplib

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/lydakis/rfremote/pkg/library"
)

// introspectTimeout bounds tool listing for the context-free introspection
// calls.
const introspectTimeout = 30 * time.Second

// Library exposes the tools of one configured MCP server as keywords.
type Library struct {
	path string
	pool *Pool
}

var _ library.Library = (*Library)(nil)

// Library returns the keyword library for the MCP server configured at path.
// The connection is opened on first use.
func (p *Pool) Library(path string) *Library {
	return &Library{path: path, pool: p}
}

// Libraries returns a library for every configured path.
func (p *Pool) Libraries() map[string]*Library {
	out := make(map[string]*Library, len(p.libs))
	for path := range p.libs {
		out[path] = p.Library(path)
	}
	return out
}

func (l *Library) Name() string {
	return "mcp:" + l.path
}

func (l *Library) Implementation() any {
	return l
}

func (l *Library) introspect() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), introspectTimeout)
}

// KeywordNames lists the server's tool names.
func (l *Library) KeywordNames() ([]string, error) {
	ctx, cancel := l.introspect()
	defer cancel()

	tools, err := l.pool.Tools(ctx, l.path)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(tools))
	for i, t := range tools {
		names[i] = t.Name
	}
	return names, nil
}

func (l *Library) KeywordArguments(name string) ([]string, error) {
	ctx, cancel := l.introspect()
	defer cancel()

	tool, err := l.pool.Tool(ctx, l.path, name)
	if err != nil {
		return nil, err
	}
	schema, err := inputSchema(tool)
	if err != nil {
		return nil, err
	}
	return argumentSpec(schema), nil
}

func (l *Library) KeywordDocumentation(name string) (string, error) {
	ctx, cancel := l.introspect()
	defer cancel()

	tool, err := l.pool.Tool(ctx, l.path, name)
	if err != nil {
		return "", err
	}
	return tool.Description, nil
}

// RunKeyword calls the tool name with args bound to its input schema.
func (l *Library) RunKeyword(ctx context.Context, name string, args []any) (any, error) {
	tool, err := l.pool.Tool(ctx, l.path, name)
	if err != nil {
		return nil, err
	}
	schema, err := inputSchema(tool)
	if err != nil {
		return nil, err
	}
	bound, err := bindArgs(args, schema)
	if err != nil {
		return nil, err
	}
	compiled, err := compileToolArgs(bound, schema)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	result, err := l.pool.CallTool(ctx, l.path, tool.Name, compiled)
	if err != nil {
		return nil, fmt.Errorf("calling %s: %w", tool.Name, err)
	}
	log.Debug().Str("path", l.path).Str("tool", tool.Name).Dur("elapsed", time.Since(start)).Msg("tool call finished")
	return keywordResult(result)
}
