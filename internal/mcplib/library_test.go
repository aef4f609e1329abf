package mcplib

import (
	"context"
	"reflect"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/lydakis/rfremote/pkg/library"
)

func issueTools() []mcp.Tool {
	return []mcp.Tool{
		{
			Name:        "create_issue",
			Description: "Opens an issue.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"title":    map[string]any{"type": "string"},
					"priority": map[string]any{"type": "integer", "default": 3},
				},
				Required: []string{"title"},
			},
		},
		{Name: "ping"},
	}
}

func TestLibraryIntrospection(t *testing.T) {
	conn := &connection{
		listTools: func(context.Context) ([]mcp.Tool, error) { return issueTools(), nil },
	}
	p := newFakePool(map[string]*connection{"issues": conn})
	defer p.CloseAll()

	var lib library.Library = p.Library("/issues")
	if lib.Name() != "mcp:/issues" {
		t.Fatalf("Name() = %q", lib.Name())
	}

	names, err := lib.KeywordNames()
	if err != nil || !reflect.DeepEqual(names, []string{"create_issue", "ping"}) {
		t.Fatalf("KeywordNames() = %v, %v", names, err)
	}

	args, err := lib.KeywordArguments("create_issue")
	if err != nil || !reflect.DeepEqual(args, []string{"title", "priority=3"}) {
		t.Fatalf("KeywordArguments() = %v, %v", args, err)
	}

	doc, err := lib.KeywordDocumentation("create_issue")
	if err != nil || doc != "Opens an issue." {
		t.Fatalf("KeywordDocumentation() = %q, %v", doc, err)
	}

	if _, err := lib.KeywordArguments("missing"); err == nil {
		t.Fatal("KeywordArguments(missing) error = nil, want not found")
	}
}

func TestLibraryRunKeywordBindsAndCoerces(t *testing.T) {
	var gotName string
	var gotArgs map[string]any
	conn := &connection{
		listTools: func(context.Context) ([]mcp.Tool, error) { return issueTools(), nil },
		callTool: func(_ context.Context, name string, args map[string]any) (*mcp.CallToolResult, error) {
			gotName, gotArgs = name, args
			return mcp.NewToolResultText("issue #12"), nil
		},
	}
	p := newFakePool(map[string]*connection{"issues": conn})
	defer p.CloseAll()

	got, err := p.Library("/issues").RunKeyword(context.Background(), "create_issue", []any{"Broken build", "priority=1"})
	if err != nil {
		t.Fatalf("RunKeyword() error = %v", err)
	}
	if got != "issue #12" {
		t.Fatalf("RunKeyword() = %#v, want issue #12", got)
	}
	if gotName != "create_issue" {
		t.Fatalf("called tool %q", gotName)
	}
	if want := map[string]any{"title": "Broken build", "priority": int64(1)}; !reflect.DeepEqual(gotArgs, want) {
		t.Fatalf("tool args = %#v, want %#v", gotArgs, want)
	}
}

func TestLibraryRunKeywordReportsToolError(t *testing.T) {
	conn := &connection{
		listTools: func(context.Context) ([]mcp.Tool, error) { return issueTools(), nil },
		callTool: func(context.Context, string, map[string]any) (*mcp.CallToolResult, error) {
			return mcp.NewToolResultError("rate limited"), nil
		},
	}
	p := newFakePool(map[string]*connection{"issues": conn})
	defer p.CloseAll()

	_, err := p.Library("/issues").RunKeyword(context.Background(), "create_issue", []any{"x"})
	if err == nil || err.Error() != "rate limited" {
		t.Fatalf("RunKeyword() error = %v, want rate limited", err)
	}
}

func TestLibraryRunKeywordRejectsMissingArguments(t *testing.T) {
	called := false
	conn := &connection{
		listTools: func(context.Context) ([]mcp.Tool, error) { return issueTools(), nil },
		callTool: func(context.Context, string, map[string]any) (*mcp.CallToolResult, error) {
			called = true
			return nil, nil
		},
	}
	p := newFakePool(map[string]*connection{"issues": conn})
	defer p.CloseAll()

	if _, err := p.Library("/issues").RunKeyword(context.Background(), "create_issue", nil); err == nil {
		t.Fatal("RunKeyword() error = nil, want missing title")
	}
	if called {
		t.Fatal("tool called despite invalid arguments")
	}
}

func TestPoolLibrariesCoversConfiguredPaths(t *testing.T) {
	p := newFakePool(map[string]*connection{"a": {}, "b": {}})
	defer p.CloseAll()

	libs := p.Libraries()
	if len(libs) != 2 || libs["/a"] == nil || libs["/b"] == nil {
		t.Fatalf("Libraries() = %v", libs)
	}
}
