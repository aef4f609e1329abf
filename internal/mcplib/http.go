package mcplib

import (
	"context"
	"fmt"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/lydakis/rfremote/internal/config"
	"github.com/lydakis/rfremote/internal/httpheaders"
)

func connectHTTP(ctx context.Context, lcfg config.LibraryConfig, info mcp.Implementation) (*connection, error) {
	headers := httpheaders.WithDefaults(lcfg.Headers, map[string]string{
		"User-Agent": info.Name + "/" + info.Version,
	})

	c, err := mcpclient.NewStreamableHttpClient(lcfg.URL, transport.WithHTTPHeaders(headers))
	if err != nil {
		return nil, fmt.Errorf("creating HTTP client: %w", err)
	}
	if err := c.Start(ctx); err != nil {
		c.Close()
		return nil, fmt.Errorf("starting HTTP client: %w", err)
	}
	if err := initialize(ctx, c, info); err != nil {
		c.Close()
		return nil, err
	}
	return clientConnection(c), nil
}
