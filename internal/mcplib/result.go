package mcplib

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// errEmptyResult is returned for a nil tool result.
var errEmptyResult = errors.New("tool returned no result")

// keywordResult converts a tool result into a keyword return value. A tool
// error becomes the keyword failure, carrying the tool's text. Structured
// content wins over the content list; a single content item is returned
// as is and several are returned as a list.
func keywordResult(result *mcp.CallToolResult) (any, error) {
	if result == nil {
		return nil, errEmptyResult
	}

	if result.IsError {
		msg := strings.TrimSpace(strings.Join(textParts(result.Content), "\n"))
		if msg == "" {
			msg = "tool reported an error"
		}
		return nil, errors.New(msg)
	}

	if result.StructuredContent != nil {
		return normalizeJSON(result.StructuredContent), nil
	}

	var parts []any
	for _, content := range result.Content {
		if v, ok := renderContent(content); ok {
			parts = append(parts, v)
		}
	}
	switch len(parts) {
	case 0:
		return nil, nil
	case 1:
		return parts[0], nil
	default:
		return parts, nil
	}
}

func textParts(contents []mcp.Content) []string {
	var out []string
	for _, content := range contents {
		if v, ok := renderContent(content); ok {
			if s, ok := v.(string); ok {
				out = append(out, s)
			}
		}
	}
	return out
}

// renderContent returns text as a string and binary payloads decoded.
func renderContent(content mcp.Content) (any, bool) {
	switch c := content.(type) {
	case mcp.TextContent:
		return c.Text, true
	case *mcp.TextContent:
		return c.Text, true
	case mcp.ImageContent:
		return decodeBase64(c.Data)
	case *mcp.ImageContent:
		return decodeBase64(c.Data)
	case mcp.EmbeddedResource:
		return renderResource(c.Resource)
	case *mcp.EmbeddedResource:
		return renderResource(c.Resource)
	default:
		raw, err := json.Marshal(content)
		if err != nil {
			return nil, false
		}
		var typed struct {
			Type string `json:"type"`
			Text string `json:"text"`
			Data string `json:"data"`
		}
		if json.Unmarshal(raw, &typed) != nil {
			return nil, false
		}
		switch typed.Type {
		case "text":
			return typed.Text, true
		case "image", "audio":
			return decodeBase64(typed.Data)
		default:
			return string(raw), true
		}
	}
}

func renderResource(resource mcp.ResourceContents) (any, bool) {
	switch r := resource.(type) {
	case mcp.TextResourceContents:
		return r.Text, true
	case *mcp.TextResourceContents:
		return r.Text, true
	case mcp.BlobResourceContents:
		return decodeBase64(r.Blob)
	case *mcp.BlobResourceContents:
		return decodeBase64(r.Blob)
	default:
		return nil, false
	}
}

func decodeBase64(encoded string) (any, bool) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, false
	}
	return data, true
}

// normalizeJSON round-trips v through JSON so typed values reach the
// transport as maps, slices and scalars.
func normalizeJSON(v any) any {
	raw, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return v
	}
	return out
}
