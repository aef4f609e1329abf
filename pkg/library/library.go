// Package library normalizes keyword libraries into a uniform capability set
// that the dispatcher can call without knowing the library's native shape.
package library

import (
	"context"
	"fmt"
	"io"
	"reflect"
)

// AnyArguments is the argument signature reported when a library cannot
// describe a keyword's parameters.
var AnyArguments = []string{"*args"}

// Library is the capability set every registered library exposes.
type Library interface {
	Name() string
	KeywordNames() ([]string, error)
	RunKeyword(ctx context.Context, name string, args []any) (any, error)
	KeywordArguments(name string) ([]string, error)
	KeywordDocumentation(name string) (string, error)
	Implementation() any
}

// Keywords is implemented by objects that already expose the keyword
// operations directly. NewStatic wraps them without any resolution step.
type Keywords interface {
	KeywordNames() []string
	RunKeyword(ctx context.Context, name string, args []any) (any, error)
	KeywordArguments(name string) []string
	KeywordDocumentation(name string) string
}

// New picks the adapter variant for impl:
//   - a Library is used as is
//   - a Keywords implementer is wrapped by NewStatic
//   - an object exposing any dynamic API method is resolved by NewDynamic,
//     which fails when a mandatory method is missing
//   - anything else exposes its exported methods through FromMethods
func New(impl any) (Library, error) {
	if impl == nil {
		return nil, fmt.Errorf("%w: library is nil", ErrResolution)
	}
	switch v := impl.(type) {
	case Library:
		return v, nil
	case Keywords:
		return NewStatic(v), nil
	}
	if hasDynamicAPI(reflect.ValueOf(impl)) {
		return NewDynamic(impl)
	}
	return FromMethods(impl)
}

// TypeName returns the qualified type name used as a library display name.
func TypeName(impl any) string {
	t := reflect.TypeOf(impl)
	if t == nil {
		return "<nil>"
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.PkgPath() == "" || t.Name() == "" {
		return t.String()
	}
	return t.PkgPath() + "." + t.Name()
}

type outputKey struct{}

// WithOutput returns a context whose keywords write captured output to w.
func WithOutput(ctx context.Context, w io.Writer) context.Context {
	return context.WithValue(ctx, outputKey{}, w)
}

// Output returns the writer keywords should log to. Text written here is
// reported back to the caller in the response output field.
func Output(ctx context.Context) io.Writer {
	if ctx == nil {
		return io.Discard
	}
	if w, ok := ctx.Value(outputKey{}).(io.Writer); ok && w != nil {
		return w
	}
	return io.Discard
}
