package library

import (
	"context"
	"fmt"
	"reflect"
	"runtime/debug"
)

// Method names looked up on dynamic libraries, in order of preference.
var (
	keywordNamesMethods         = []string{"GetKeywordNames", "KeywordNames"}
	runKeywordMethods           = []string{"RunKeyword"}
	keywordArgumentsMethods     = []string{"GetKeywordArguments", "KeywordArguments"}
	keywordDocumentationMethods = []string{"GetKeywordDocumentation", "KeywordDocumentation"}
)

var (
	stringType      = reflect.TypeOf("")
	stringSliceType = reflect.TypeOf([]string(nil))
)

// Dynamic adapts an arbitrary object that follows the dynamic library API by
// method name. The methods are resolved once at construction and every call
// goes through reflection.
type Dynamic struct {
	impl any
	name string

	keywordNames         *boundMethod
	runKeyword           *boundMethod
	keywordArguments     *boundMethod
	keywordDocumentation *boundMethod
}

var _ Library = (*Dynamic)(nil)

// NewDynamic resolves the dynamic API on obj. The keyword names and run
// keyword methods are mandatory. Argument and documentation methods are
// optional and fall back to AnyArguments and "".
func NewDynamic(obj any) (*Dynamic, error) {
	if obj == nil {
		return nil, fmt.Errorf("%w: library is nil", ErrResolution)
	}
	v := reflect.ValueOf(obj)
	name := TypeName(obj)

	d := &Dynamic{impl: obj, name: name}
	var err error
	if d.keywordNames, err = resolve(v, keywordNamesMethods, nil, stringSliceType); err != nil {
		return nil, err
	}
	if d.keywordNames == nil {
		return nil, fmt.Errorf("%w %s: missing %s method", ErrResolution, name, keywordNamesMethods[0])
	}
	if d.runKeyword, err = resolveRunKeyword(v); err != nil {
		return nil, err
	}
	if d.runKeyword == nil {
		return nil, fmt.Errorf("%w %s: missing %s method", ErrResolution, name, runKeywordMethods[0])
	}
	if d.keywordArguments, err = resolve(v, keywordArgumentsMethods, []reflect.Type{stringType}, stringSliceType); err != nil {
		return nil, err
	}
	if d.keywordDocumentation, err = resolve(v, keywordDocumentationMethods, []reflect.Type{stringType}, stringType); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Dynamic) Name() string {
	return d.name
}

func (d *Dynamic) Implementation() any {
	return d.impl
}

func (d *Dynamic) KeywordNames() ([]string, error) {
	out, err := d.keywordNames.call(context.Background(), "get_keyword_names", "")
	if err != nil {
		return nil, err
	}
	if !out.IsValid() {
		return []string{}, nil
	}
	return out.Interface().([]string), nil
}

func (d *Dynamic) RunKeyword(ctx context.Context, name string, args []any) (any, error) {
	argsValue, err := d.runKeyword.argsValue(args)
	if err != nil {
		return nil, &InvocationError{Op: "run_keyword", Keyword: name, Err: err}
	}
	out, err := d.runKeyword.call(ctx, "run_keyword", name, reflect.ValueOf(name), argsValue)
	if err != nil {
		return nil, err
	}
	if !out.IsValid() {
		return nil, nil
	}
	return out.Interface(), nil
}

func (d *Dynamic) KeywordArguments(name string) ([]string, error) {
	if d.keywordArguments == nil {
		return append([]string(nil), AnyArguments...), nil
	}
	out, err := d.keywordArguments.call(context.Background(), "get_keyword_arguments", name, reflect.ValueOf(name))
	if err != nil {
		return nil, err
	}
	if !out.IsValid() {
		return []string{}, nil
	}
	return out.Interface().([]string), nil
}

func (d *Dynamic) KeywordDocumentation(name string) (string, error) {
	if d.keywordDocumentation == nil {
		return "", nil
	}
	out, err := d.keywordDocumentation.call(context.Background(), "get_keyword_documentation", name, reflect.ValueOf(name))
	if err != nil {
		return "", err
	}
	return out.String(), nil
}

func hasDynamicAPI(v reflect.Value) bool {
	for _, group := range [][]string{keywordNamesMethods, runKeywordMethods} {
		for _, name := range group {
			if v.MethodByName(name).IsValid() {
				return true
			}
		}
	}
	return false
}

// boundMethod is a resolved method value plus the shape facts needed to call it.
type boundMethod struct {
	name        string
	fn          reflect.Value
	withContext bool
	withError   bool
	hasValue    bool
	variadic    bool
	argsType    reflect.Type // run keyword only
}

func resolve(v reflect.Value, names []string, params []reflect.Type, result reflect.Type) (*boundMethod, error) {
	for _, name := range names {
		fn := v.MethodByName(name)
		if !fn.IsValid() {
			continue
		}
		m := &boundMethod{name: name, fn: fn}
		t := fn.Type()
		in := inputs(t)
		if len(in) > 0 && in[0] == contextType {
			m.withContext = true
			in = in[1:]
		}
		if t.IsVariadic() || len(in) != len(params) {
			return nil, shapeError(v, name, t)
		}
		for i := range in {
			if in[i] != params[i] {
				return nil, shapeError(v, name, t)
			}
		}
		if !m.setResults(t) || !m.hasValue || t.Out(0) != result {
			return nil, shapeError(v, name, t)
		}
		return m, nil
	}
	return nil, nil
}

func resolveRunKeyword(v reflect.Value) (*boundMethod, error) {
	for _, name := range runKeywordMethods {
		fn := v.MethodByName(name)
		if !fn.IsValid() {
			continue
		}
		m := &boundMethod{name: name, fn: fn, variadic: fn.Type().IsVariadic()}
		t := fn.Type()
		in := inputs(t)
		if len(in) > 0 && in[0] == contextType {
			m.withContext = true
			in = in[1:]
		}
		if len(in) != 2 || in[0] != stringType || in[1].Kind() != reflect.Slice {
			return nil, shapeError(v, name, t)
		}
		m.argsType = in[1]
		if !m.setResults(t) {
			return nil, shapeError(v, name, t)
		}
		return m, nil
	}
	return nil, nil
}

func inputs(t reflect.Type) []reflect.Type {
	in := make([]reflect.Type, t.NumIn())
	for i := range in {
		in[i] = t.In(i)
	}
	return in
}

// setResults accepts (), (T), (error) and (T, error).
func (m *boundMethod) setResults(t reflect.Type) bool {
	switch t.NumOut() {
	case 0:
		return true
	case 1:
		if t.Out(0) == errorType {
			m.withError = true
		} else {
			m.hasValue = true
		}
		return true
	case 2:
		if t.Out(1) != errorType {
			return false
		}
		m.withError = true
		m.hasValue = true
		return true
	default:
		return false
	}
}

func shapeError(v reflect.Value, name string, t reflect.Type) error {
	return fmt.Errorf("%w %s: method %s has unsupported signature %s", ErrResolution, TypeName(v.Interface()), name, t)
}

func (m *boundMethod) argsValue(args []any) (reflect.Value, error) {
	if m.argsType == reflect.TypeOf([]any(nil)) {
		return reflect.ValueOf(args), nil
	}
	if args == nil {
		args = []any{}
	}
	return convertValue(args, m.argsType)
}

// call invokes the method. A failure returned or raised by the method itself
// is reported with its own message; a failure of the call machinery carries
// the machinery's message.
func (m *boundMethod) call(ctx context.Context, op, keyword string, args ...reflect.Value) (out reflect.Value, err error) {
	in := make([]reflect.Value, 0, len(args)+1)
	if m.withContext {
		if ctx == nil {
			ctx = context.Background()
		}
		in = append(in, reflect.ValueOf(ctx))
	}
	in = append(in, args...)

	defer func() {
		if r := recover(); r != nil {
			out = reflect.Value{}
			err = &InvocationError{Op: op, Keyword: keyword, Err: &PanicError{Value: r}, Trace: string(debug.Stack())}
		}
	}()

	var results []reflect.Value
	if m.variadic {
		results = m.fn.CallSlice(in)
	} else {
		results = m.fn.Call(in)
	}

	if m.withError {
		if errVal := results[len(results)-1]; !errVal.IsNil() {
			cause := errVal.Interface().(error)
			return reflect.Value{}, &InvocationError{Op: op, Keyword: keyword, Err: cause, Trace: Trace(cause)}
		}
	}
	if !m.hasValue {
		return reflect.Value{}, nil
	}
	value := results[0]
	if isNil(value) {
		return reflect.Value{}, nil
	}
	return value, nil
}

func isNil(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Interface, reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return v.IsNil()
	default:
		return !v.IsValid()
	}
}
