package library

import "context"

// Static adapts an object that implements Keywords. Every call is passed
// straight through.
type Static struct {
	impl Keywords
	name string
}

var _ Library = (*Static)(nil)

// NewStatic wraps impl.
func NewStatic(impl Keywords) *Static {
	return &Static{impl: impl, name: TypeName(impl)}
}

func (s *Static) Name() string {
	return s.name
}

func (s *Static) KeywordNames() ([]string, error) {
	names := s.impl.KeywordNames()
	if names == nil {
		names = []string{}
	}
	return names, nil
}

func (s *Static) RunKeyword(ctx context.Context, name string, args []any) (any, error) {
	return s.impl.RunKeyword(ctx, name, args)
}

func (s *Static) KeywordArguments(name string) ([]string, error) {
	args := s.impl.KeywordArguments(name)
	if args == nil {
		args = []string{}
	}
	return args, nil
}

func (s *Static) KeywordDocumentation(name string) (string, error) {
	return s.impl.KeywordDocumentation(name), nil
}

func (s *Static) Implementation() any {
	return s.impl
}
