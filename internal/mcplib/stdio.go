package mcplib

import (
	"context"
	"fmt"
	"sort"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/lydakis/rfremote/internal/config"
)

func connectStdio(ctx context.Context, lcfg config.LibraryConfig, info mcp.Implementation) (*connection, error) {
	env := make([]string, 0, len(lcfg.Env))
	for k, v := range lcfg.Env {
		env = append(env, k+"="+v)
	}
	sort.Strings(env)

	c, err := mcpclient.NewStdioMCPClient(lcfg.Command, env, lcfg.Args...)
	if err != nil {
		return nil, fmt.Errorf("creating stdio client: %w", err)
	}
	if err := initialize(ctx, c, info); err != nil {
		c.Close()
		return nil, err
	}
	return clientConnection(c), nil
}

// protocolVersion is the MCP revision requested during initialization.
const protocolVersion = "2025-11-25"

func initialize(ctx context.Context, c *mcpclient.Client, info mcp.Implementation) error {
	if _, err := c.Initialize(ctx, mcp.InitializeRequest{
		Params: mcp.InitializeParams{
			ProtocolVersion: protocolVersion,
			ClientInfo:      info,
			Capabilities:    mcp.ClientCapabilities{},
		},
	}); err != nil {
		return fmt.Errorf("initializing: %w", err)
	}
	return nil
}

func clientConnection(c *mcpclient.Client) *connection {
	return &connection{
		listTools: func(ctx context.Context) ([]mcp.Tool, error) {
			var tools []mcp.Tool
			req := mcp.ListToolsRequest{}
			for {
				result, err := c.ListTools(ctx, req)
				if err != nil {
					return nil, err
				}
				tools = append(tools, result.Tools...)
				if result.NextCursor == "" {
					return tools, nil
				}
				req.Params.Cursor = result.NextCursor
			}
		},
		callTool: func(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error) {
			return c.CallTool(ctx, mcp.CallToolRequest{
				Params: mcp.CallToolParams{
					Name:      name,
					Arguments: args,
				},
			})
		},
		close: func() error {
			return c.Close()
		},
	}
}
