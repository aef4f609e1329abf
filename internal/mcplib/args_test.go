package mcplib

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
)

func searchSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query":   map[string]any{"type": "string"},
			"limit":   map[string]any{"type": "integer", "default": float64(10)},
			"exact":   map[string]any{"type": "boolean"},
			"weight":  map[string]any{"type": "number"},
			"labels":  map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"filters": map[string]any{"type": "object", "properties": map[string]any{"state": map[string]any{"type": "string"}}},
			"repo":    map[string]any{"type": "string"},
		},
		"required": []any{"repo", "query"},
	}
}

func TestArgumentSpecOrdersRequiredThenOptional(t *testing.T) {
	got := argumentSpec(searchSchema())
	want := []string{"repo", "query", "exact=", "filters=", "labels=", "limit=10", "weight="}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("argumentSpec() = %v, want %v", got, want)
	}
}

func TestArgumentSpecEmptySchema(t *testing.T) {
	if got := argumentSpec(map[string]any{"type": "object"}); len(got) != 0 {
		t.Fatalf("argumentSpec() = %v, want empty", got)
	}
}

func TestBindArgsPositionalAndNamed(t *testing.T) {
	got, err := bindArgs([]any{"lydakis/rfremote", "keyword", "limit=5", "exact=true"}, searchSchema())
	if err != nil {
		t.Fatalf("bindArgs() error = %v", err)
	}
	want := map[string]any{"repo": "lydakis/rfremote", "query": "keyword", "limit": "5", "exact": "true"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("bindArgs() = %#v, want %#v", got, want)
	}
}

func TestBindArgsKeepsUnknownAssignmentsPositional(t *testing.T) {
	got, err := bindArgs([]any{"a=b", "x"}, searchSchema())
	if err != nil {
		t.Fatalf("bindArgs() error = %v", err)
	}
	if got["repo"] != "a=b" || got["query"] != "x" {
		t.Fatalf("bindArgs() = %#v, want literal a=b for repo", got)
	}
}

func TestBindArgsErrors(t *testing.T) {
	tests := []struct {
		name string
		args []any
		want string
	}{
		{"positional after named", []any{"query=x", "repo"}, "follows named"},
		{"duplicate", []any{"query=x", "query=y"}, "multiple values"},
		{"too many", []any{1, 2, 3, 4, 5, 6, 7, 8}, "at most 7"},
	}
	for _, tt := range tests {
		_, err := bindArgs(tt.args, searchSchema())
		if err == nil || !strings.Contains(err.Error(), tt.want) {
			t.Fatalf("%s: bindArgs() error = %v, want %q", tt.name, err, tt.want)
		}
		if !errors.Is(err, mcp.ErrInvalidParams) {
			t.Fatalf("%s: error %v is not ErrInvalidParams", tt.name, err)
		}
	}
}

func TestCompileToolArgsCoercesKeywordStrings(t *testing.T) {
	raw := map[string]any{
		"repo":    "r",
		"query":   42,
		"limit":   " 7 ",
		"exact":   "false",
		"weight":  "0.25",
		"labels":  `["bug","docs"]`,
		"filters": `{"state":"open"}`,
	}
	got, err := compileToolArgs(raw, searchSchema())
	if err != nil {
		t.Fatalf("compileToolArgs() error = %v", err)
	}
	want := map[string]any{
		"repo":    "r",
		"query":   "42",
		"limit":   int64(7),
		"exact":   false,
		"weight":  0.25,
		"labels":  []any{"bug", "docs"},
		"filters": map[string]any{"state": "open"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("compileToolArgs() = %#v, want %#v", got, want)
	}
}

func TestCompileToolArgsWrapsScalarIntoArray(t *testing.T) {
	got, err := compileToolArgs(map[string]any{"repo": "r", "query": "q", "labels": "bug"}, searchSchema())
	if err != nil {
		t.Fatalf("compileToolArgs() error = %v", err)
	}
	if !reflect.DeepEqual(got["labels"], []any{"bug"}) {
		t.Fatalf("labels = %#v, want [bug]", got["labels"])
	}
}

func TestCompileToolArgsIntegralFloat(t *testing.T) {
	got, err := compileToolArgs(map[string]any{"repo": "r", "query": "q", "limit": 3.0}, searchSchema())
	if err != nil {
		t.Fatalf("compileToolArgs() error = %v", err)
	}
	if got["limit"] != int64(3) {
		t.Fatalf("limit = %#v, want int64(3)", got["limit"])
	}
}

func TestCompileToolArgsRejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]any
		want string
	}{
		{"missing required", map[string]any{"repo": "r"}, `missing required argument "query"`},
		{"unknown", map[string]any{"repo": "r", "query": "q", "color": "red"}, `unknown argument "color"`},
		{"fractional integer", map[string]any{"repo": "r", "query": "q", "limit": 1.5}, `"limit" must be integer`},
		{"text integer", map[string]any{"repo": "r", "query": "q", "limit": "many"}, `"limit" must be integer`},
		{"bool as number", map[string]any{"repo": "r", "query": "q", "weight": true}, `"weight" must be number`},
		{"bad boolean", map[string]any{"repo": "r", "query": "q", "exact": "maybe"}, `"exact" must be boolean`},
		{"list as string", map[string]any{"repo": []any{"r"}, "query": "q"}, `"repo" must be string`},
		{"bad object", map[string]any{"repo": "r", "query": "q", "filters": "[1]"}, `"filters" must be object`},
		{"nested unknown", map[string]any{"repo": "r", "query": "q", "filters": map[string]any{"x": 1}}, `unknown argument "filters.x"`},
	}
	for _, tt := range tests {
		_, err := compileToolArgs(tt.raw, searchSchema())
		if err == nil || !strings.Contains(err.Error(), tt.want) {
			t.Fatalf("%s: compileToolArgs() error = %v, want %q", tt.name, err, tt.want)
		}
	}
}

func TestCompileToolArgsRejectsNonObjectSchema(t *testing.T) {
	_, err := compileToolArgs(map[string]any{}, map[string]any{"type": "array"})
	if err == nil || !strings.Contains(err.Error(), "must be object") {
		t.Fatalf("compileToolArgs() error = %v, want schema type error", err)
	}
}

func TestCompileToolArgsWithoutSchemaPassesThrough(t *testing.T) {
	raw := map[string]any{"anything": "goes"}
	got, err := compileToolArgs(raw, nil)
	if err != nil || !reflect.DeepEqual(got, raw) {
		t.Fatalf("compileToolArgs() = %#v, %v", got, err)
	}
}
