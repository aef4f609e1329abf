package library

import (
	"context"
	"fmt"
	"reflect"
	"sort"
)

// docsMethod is the optional method a method-set library uses to document
// its keywords. It is never exposed as a keyword itself.
const docsMethod = "KeywordDocs"

// Methods exposes every exported method of an object as a keyword.
// Arguments are converted to the parameter types, a leading context.Context
// parameter is injected and a trailing error result reports failures.
type Methods struct {
	impl     any
	name     string
	names    []string
	keywords map[string]*methodKeyword
	docs     map[string]string
}

var _ Library = (*Methods)(nil)

type methodKeyword struct {
	*boundMethod
	params       []reflect.Type
	variadicElem reflect.Type
}

// FromMethods builds a library from obj's exported method set.
func FromMethods(obj any) (*Methods, error) {
	if obj == nil {
		return nil, fmt.Errorf("%w: library is nil", ErrResolution)
	}
	v := reflect.ValueOf(obj)
	t := v.Type()

	m := &Methods{
		impl:     obj,
		name:     TypeName(obj),
		keywords: make(map[string]*methodKeyword, t.NumMethod()),
		docs:     map[string]string{},
	}

	for i := 0; i < t.NumMethod(); i++ {
		method := t.Method(i)
		if method.Name == docsMethod {
			continue
		}
		kw, err := newMethodKeyword(method.Name, v.Method(i))
		if err != nil {
			return nil, fmt.Errorf("%w %s: %v", ErrResolution, m.name, err)
		}
		m.keywords[method.Name] = kw
		m.names = append(m.names, method.Name)
	}
	if len(m.keywords) == 0 {
		return nil, fmt.Errorf("%w %s: no exported methods", ErrResolution, m.name)
	}
	sort.Strings(m.names)

	if docs := v.MethodByName(docsMethod); docs.IsValid() {
		fn, ok := docs.Interface().(func() map[string]string)
		if !ok {
			return nil, shapeError(v, docsMethod, docs.Type())
		}
		for name, doc := range fn() {
			m.docs[name] = doc
		}
	}
	return m, nil
}

func newMethodKeyword(name string, fn reflect.Value) (*methodKeyword, error) {
	t := fn.Type()
	bm := &boundMethod{name: name, fn: fn}
	if !bm.setResults(t) {
		return nil, fmt.Errorf("method %s has unsupported results %s", name, t)
	}
	in := inputs(t)
	if len(in) > 0 && in[0] == contextType {
		bm.withContext = true
		in = in[1:]
	}
	kw := &methodKeyword{boundMethod: bm, params: in}
	if t.IsVariadic() {
		kw.variadicElem = in[len(in)-1].Elem()
		kw.params = in[:len(in)-1]
	}
	return kw, nil
}

func (m *Methods) Name() string {
	return m.name
}

func (m *Methods) Implementation() any {
	return m.impl
}

func (m *Methods) KeywordNames() ([]string, error) {
	return append([]string(nil), m.names...), nil
}

func (m *Methods) RunKeyword(ctx context.Context, name string, args []any) (any, error) {
	kw, ok := m.keywords[name]
	if !ok {
		return nil, &InvocationError{Op: "run_keyword", Keyword: name, Err: fmt.Errorf("no keyword named %q", name)}
	}
	in, err := kw.arguments(args)
	if err != nil {
		return nil, &InvocationError{Op: "run_keyword", Keyword: name, Err: err}
	}
	out, err := kw.call(ctx, "run_keyword", name, in...)
	if err != nil {
		return nil, err
	}
	if !out.IsValid() {
		return nil, nil
	}
	return out.Interface(), nil
}

func (m *Methods) KeywordArguments(name string) ([]string, error) {
	kw, ok := m.keywords[name]
	if !ok {
		return nil, &InvocationError{Op: "get_keyword_arguments", Keyword: name, Err: fmt.Errorf("no keyword named %q", name)}
	}
	out := make([]string, 0, len(kw.params)+1)
	for i := range kw.params {
		out = append(out, fmt.Sprintf("arg%d", i+1))
	}
	if kw.variadicElem != nil {
		out = append(out, "*args")
	}
	return out, nil
}

func (m *Methods) KeywordDocumentation(name string) (string, error) {
	return m.docs[name], nil
}

func (kw *methodKeyword) arguments(args []any) ([]reflect.Value, error) {
	switch {
	case len(args) < len(kw.params):
		return nil, fmt.Errorf("keyword %s expected %d arguments, got %d", kw.name, len(kw.params), len(args))
	case kw.variadicElem == nil && len(args) > len(kw.params):
		return nil, fmt.Errorf("keyword %s expected %d arguments, got %d", kw.name, len(kw.params), len(args))
	}

	in := make([]reflect.Value, 0, len(args))
	for i, arg := range args {
		target := kw.variadicElem
		if i < len(kw.params) {
			target = kw.params[i]
		}
		v, err := convertValue(arg, target)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i+1, err)
		}
		in = append(in, v)
	}
	return in, nil
}
