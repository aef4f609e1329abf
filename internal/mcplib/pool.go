// Package mcplib serves the tools of external MCP servers as keyword
// libraries.
package mcplib

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/lydakis/rfremote/internal/config"
)

// clientName identifies rfremote to MCP servers.
const clientName = "rfremote"

// connection wraps an MCP client with its transport.
type connection struct {
	listTools func(ctx context.Context) ([]mcp.Tool, error)
	callTool  func(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error)
	close     func() error

	tools []mcp.Tool // cached after the first successful list
}

type dialFunc func(ctx context.Context, lcfg config.LibraryConfig, info mcp.Implementation) (*connection, error)

// Pool manages MCP server connections keyed by library path, creating them
// on demand and closing them once idle.
type Pool struct {
	libs      map[string]config.LibraryConfig
	info      mcp.Implementation
	dial      dialFunc
	keepalive *Keepalive

	mu    sync.Mutex
	conns map[string]*connection
}

// NewPool creates a pool for the configured libraries. version is reported
// to servers as the client version.
func NewPool(libs map[string]config.LibraryConfig, version string) *Pool {
	p := &Pool{
		libs:  libs,
		info:  mcp.Implementation{Name: clientName, Version: version},
		dial:  dial,
		conns: make(map[string]*connection),
	}
	p.keepalive = NewKeepalive(p.idleTimeout, p.Close)
	return p
}

func dial(ctx context.Context, lcfg config.LibraryConfig, info mcp.Implementation) (*connection, error) {
	switch {
	case lcfg.IsStdio():
		return connectStdio(ctx, lcfg, info)
	case lcfg.IsHTTP():
		return connectHTTP(ctx, lcfg, info)
	default:
		return nil, fmt.Errorf("no command or url configured")
	}
}

func (p *Pool) idleTimeout(path string) time.Duration {
	return p.libs[path].IdleTimeoutDuration()
}

func (p *Pool) getOrCreate(ctx context.Context, path string) (*connection, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if conn, ok := p.conns[path]; ok {
		return conn, nil
	}

	lcfg, ok := p.libs[path]
	if !ok {
		return nil, fmt.Errorf("unknown library: %s", path)
	}

	conn, err := p.dial(ctx, lcfg, p.info)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", path, err)
	}
	p.conns[path] = conn
	return conn, nil
}

func (p *Pool) invalidate(path string, conn *connection) {
	p.mu.Lock()
	if current, ok := p.conns[path]; ok && current == conn {
		delete(p.conns, path)
	}
	p.mu.Unlock()

	if conn != nil && conn.close != nil {
		conn.close() //nolint: errcheck
	}
}

// Tools returns the tools served for path. The list is cached until the
// connection is closed or fails.
func (p *Pool) Tools(ctx context.Context, path string) ([]mcp.Tool, error) {
	p.keepalive.Begin(path)
	defer p.keepalive.End(path)

	conn, err := p.getOrCreate(ctx, path)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	cached := conn.tools
	p.mu.Unlock()
	if cached != nil {
		return cached, nil
	}

	tools, err := conn.listTools(ctx)
	if err != nil {
		p.invalidate(path, conn)
		return nil, err
	}
	if tools == nil {
		tools = []mcp.Tool{}
	}

	p.mu.Lock()
	conn.tools = tools
	p.mu.Unlock()
	return tools, nil
}

// Tool returns the tool named name served for path.
func (p *Pool) Tool(ctx context.Context, path, name string) (mcp.Tool, error) {
	tools, err := p.Tools(ctx, path)
	if err != nil {
		return mcp.Tool{}, err
	}
	for _, t := range tools {
		if t.Name == name {
			return t, nil
		}
	}
	return mcp.Tool{}, fmt.Errorf("tool %s not found on library %s", name, path)
}

// CallTool invokes a tool with already compiled arguments.
func (p *Pool) CallTool(ctx context.Context, path, tool string, args map[string]any) (*mcp.CallToolResult, error) {
	p.keepalive.Begin(path)
	defer p.keepalive.End(path)

	conn, err := p.getOrCreate(ctx, path)
	if err != nil {
		return nil, err
	}

	result, err := conn.callTool(ctx, tool, args)
	if err != nil {
		p.invalidate(path, conn)
		return nil, err
	}
	return result, nil
}

// Close disconnects the library at path.
func (p *Pool) Close(path string) {
	p.mu.Lock()
	conn, ok := p.conns[path]
	if ok {
		delete(p.conns, path)
	}
	p.mu.Unlock()

	if ok && conn.close != nil {
		conn.close() //nolint: errcheck
	}
}

// CloseAll stops the idle timers and disconnects every library.
func (p *Pool) CloseAll() {
	p.keepalive.Stop()

	p.mu.Lock()
	conns := p.conns
	p.conns = make(map[string]*connection)
	p.mu.Unlock()

	for _, conn := range conns {
		if conn.close != nil {
			conn.close() //nolint: errcheck
		}
	}
}

// inputSchema decodes a tool's input schema into generic JSON values.
func inputSchema(t mcp.Tool) (map[string]any, error) {
	raw := t.RawInputSchema
	if len(raw) == 0 {
		b, err := json.Marshal(t.InputSchema)
		if err != nil {
			return nil, err
		}
		raw = b
	}
	var schema map[string]any
	if err := json.Unmarshal(raw, &schema); err != nil {
		return nil, fmt.Errorf("parsing input schema of %s: %w", t.Name, err)
	}
	return schema, nil
}
