package mcplib

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/spf13/cast"
)

// parameterNames returns the schema's properties in keyword argument order:
// required ones in declared order, then optional ones sorted by name.
func parameterNames(schema map[string]any) (names []string, required map[string]bool) {
	props, _ := schema["properties"].(map[string]any)
	required = requiredSet(schema)

	for _, name := range requiredList(schema) {
		if _, ok := props[name]; ok || len(props) == 0 {
			names = append(names, name)
		}
	}
	var optional []string
	for name := range props {
		if !required[name] {
			optional = append(optional, name)
		}
	}
	sort.Strings(optional)
	return append(names, optional...), required
}

// argumentSpec describes a tool's parameters in remote-library form:
// "name" for required and "name=default" for optional parameters.
func argumentSpec(schema map[string]any) []string {
	names, required := parameterNames(schema)
	props, _ := schema["properties"].(map[string]any)

	spec := make([]string, 0, len(names))
	for _, name := range names {
		if required[name] {
			spec = append(spec, name)
			continue
		}
		prop, _ := props[name].(map[string]any)
		spec = append(spec, name+"="+defaultText(prop["default"]))
	}
	return spec
}

func defaultText(v any) string {
	switch v.(type) {
	case nil:
		return ""
	case map[string]any, []any:
		b, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(b)
	default:
		return cast.ToString(v)
	}
}

// bindArgs maps keyword arguments onto tool arguments. Positional values
// fill parameters in parameterNames order; a "name=value" string binds by
// name when name is a parameter. Positional values may not follow named ones.
func bindArgs(args []any, schema map[string]any) (map[string]any, error) {
	names, _ := parameterNames(schema)
	known := make(map[string]bool, len(names))
	for _, name := range names {
		known[name] = true
	}

	out := make(map[string]any, len(args))
	named := false
	for i, arg := range args {
		if key, value, ok := namedArg(arg, known); ok {
			if _, dup := out[key]; dup {
				return nil, invalidParamsError("got multiple values for argument %q", key)
			}
			out[key] = value
			named = true
			continue
		}
		if named {
			return nil, invalidParamsError("positional argument %d follows named arguments", i+1)
		}
		if i >= len(names) {
			return nil, invalidParamsError("expected at most %d arguments, got %d", len(names), len(args))
		}
		out[names[i]] = arg
	}
	return out, nil
}

func namedArg(arg any, known map[string]bool) (string, string, bool) {
	s, ok := arg.(string)
	if !ok {
		return "", "", false
	}
	key, value, ok := strings.Cut(s, "=")
	if !ok || !known[key] {
		return "", "", false
	}
	return key, value, true
}

// compileToolArgs checks raw against the tool's input schema and converts
// values to the schema types. Keyword arguments usually arrive as strings.
func compileToolArgs(raw map[string]any, schema map[string]any) (map[string]any, error) {
	if raw == nil {
		raw = map[string]any{}
	}
	if len(schema) == 0 {
		return raw, nil
	}

	typ := schemaType(schema)
	if typ != "" && typ != "object" {
		return nil, invalidParamsError("tool input schema must be object, got %q", typ)
	}
	return coerceObject(raw, schema, "")
}

func coerceObject(raw map[string]any, schema map[string]any, path string) (map[string]any, error) {
	if raw == nil {
		raw = map[string]any{}
	}

	props, _ := schema["properties"].(map[string]any)
	if len(props) > 0 {
		for key := range raw {
			if _, ok := props[key]; !ok {
				return nil, invalidParamsError("unknown argument %q", dottedPath(path, key))
			}
		}
	}
	for key := range requiredSet(schema) {
		if _, ok := raw[key]; !ok {
			return nil, invalidParamsError("missing required argument %q", dottedPath(path, key))
		}
	}

	out := make(map[string]any, len(raw))
	for key, value := range raw {
		propSchema, _ := props[key].(map[string]any)
		if propSchema == nil {
			out[key] = value
			continue
		}
		coerced, err := coerceValue(value, propSchema, dottedPath(path, key))
		if err != nil {
			return nil, err
		}
		out[key] = coerced
	}
	return out, nil
}

func coerceValue(value any, schema map[string]any, path string) (any, error) {
	if schema == nil || value == nil {
		return value, nil
	}

	switch schemaType(schema) {
	case "string":
		return coerceString(value, path)
	case "integer":
		return coerceInteger(value, path)
	case "number":
		return coerceNumber(value, path)
	case "boolean":
		return coerceBoolean(value, path)
	case "array":
		return coerceArray(value, schema, path)
	case "object":
		return coerceObjectValue(value, schema, path)
	default:
		return value, nil
	}
}

func coerceString(value any, path string) (string, error) {
	switch value.(type) {
	case map[string]any, []any, []byte:
		return "", invalidParamsType(path, "string", value)
	}
	s, err := cast.ToStringE(value)
	if err != nil {
		return "", invalidParamsType(path, "string", value)
	}
	return s, nil
}

func coerceInteger(value any, path string) (int64, error) {
	switch v := value.(type) {
	case float32:
		if f := float64(v); math.Trunc(f) != f {
			return 0, invalidParamsError("argument %q must be integer", path)
		}
	case float64:
		if math.Trunc(v) != v {
			return 0, invalidParamsError("argument %q must be integer", path)
		}
	case bool:
		return 0, invalidParamsType(path, "integer", value)
	case string:
		value = strings.TrimSpace(v)
	}
	i, err := cast.ToInt64E(value)
	if err != nil {
		return 0, invalidParamsError("argument %q must be integer: %v", path, err)
	}
	return i, nil
}

func coerceNumber(value any, path string) (float64, error) {
	switch v := value.(type) {
	case bool:
		return 0, invalidParamsType(path, "number", value)
	case string:
		value = strings.TrimSpace(v)
	}
	f, err := cast.ToFloat64E(value)
	if err != nil {
		return 0, invalidParamsError("argument %q must be number: %v", path, err)
	}
	return f, nil
}

func coerceBoolean(value any, path string) (bool, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case string:
		b, err := cast.ToBoolE(strings.TrimSpace(v))
		if err != nil {
			return false, invalidParamsError("argument %q must be boolean: %v", path, err)
		}
		return b, nil
	default:
		return false, invalidParamsType(path, "boolean", value)
	}
}

func coerceArray(value any, schema map[string]any, path string) ([]any, error) {
	itemsSchema, _ := schema["items"].(map[string]any)

	var items []any
	switch v := value.(type) {
	case []any:
		items = v
	case []string:
		items = make([]any, len(v))
		for i, s := range v {
			items[i] = s
		}
	case string:
		trimmed := strings.TrimSpace(v)
		if !strings.HasPrefix(trimmed, "[") {
			items = []any{v}
			break
		}
		if err := json.Unmarshal([]byte(trimmed), &items); err != nil {
			return nil, invalidParamsError("argument %q must be JSON array: %v", path, err)
		}
	default:
		items = []any{v}
	}

	out := make([]any, 0, len(items))
	for i, item := range items {
		coerced, err := coerceValue(item, itemsSchema, indexedPath(path, i))
		if err != nil {
			return nil, err
		}
		out = append(out, coerced)
	}
	return out, nil
}

func coerceObjectValue(value any, schema map[string]any, path string) (map[string]any, error) {
	switch v := value.(type) {
	case map[string]any:
		return coerceObject(v, schema, path)
	case string:
		var parsed any
		if err := json.Unmarshal([]byte(strings.TrimSpace(v)), &parsed); err != nil {
			return nil, invalidParamsError("argument %q must be JSON object: %v", path, err)
		}
		obj, ok := parsed.(map[string]any)
		if !ok {
			return nil, invalidParamsError("argument %q must be object", path)
		}
		return coerceObject(obj, schema, path)
	default:
		return nil, invalidParamsType(path, "object", value)
	}
}

func requiredList(schema map[string]any) []string {
	switch v := schema["required"].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func requiredSet(schema map[string]any) map[string]bool {
	out := map[string]bool{}
	for _, name := range requiredList(schema) {
		out[name] = true
	}
	return out
}

func schemaType(schema map[string]any) string {
	if schema == nil {
		return ""
	}
	if t, ok := schema["type"].(string); ok {
		return strings.TrimSpace(strings.ToLower(t))
	}
	if _, ok := schema["properties"]; ok {
		return "object"
	}
	return ""
}

func invalidParamsType(path, want string, got any) error {
	return invalidParamsError("argument %q must be %s, got %T", path, want, got)
}

func invalidParamsError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", mcp.ErrInvalidParams, fmt.Sprintf(format, args...))
}

func dottedPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

func indexedPath(path string, idx int) string {
	return fmt.Sprintf("%s[%d]", path, idx)
}
