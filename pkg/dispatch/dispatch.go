// Package dispatch routes keyword requests to registered libraries and turns
// every outcome into a well-formed Response.
package dispatch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/lydakis/rfremote/pkg/library"
)

const (
	// StopKeyword is the keyword remote callers use to stop the server.
	StopKeyword = "stop_remote_server"

	// StopRefusal is returned as output when remote stopping is disabled.
	StopRefusal = "This Robot Framework remote server does not allow stopping"

	stopDocumentation = "Stop the remote server unless stopping is disabled.\n\n" +
		"Return ``True/False`` depending was server stopped or not."
)

// ErrUnknownPath is returned by introspection calls for unregistered paths.
var ErrUnknownPath = errors.New("no library registered at path")

// Lookup resolves a request path to a library.
type Lookup interface {
	Get(path string) (library.Library, bool)
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithStopPolicy sets the gate consulted by the stop keyword. The default
// allows stopping.
func WithStopPolicy(allow func() bool) Option {
	return func(d *Dispatcher) { d.allowStop = allow }
}

// WithStopper sets what the stop keyword triggers once allowed. stop must
// not block on the request that invoked it.
func WithStopper(stop func()) Option {
	return func(d *Dispatcher) { d.stop = stop }
}

// Dispatcher is safe for concurrent use. It holds no per-request state.
type Dispatcher struct {
	libs      Lookup
	allowStop func() bool
	stop      func()
}

// New returns a dispatcher over libs.
func New(libs Lookup, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		libs:      libs,
		allowStop: func() bool { return true },
		stop:      func() {},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Dispatcher) lookup(path string) (library.Library, error) {
	lib, ok := d.libs.Get(path)
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownPath, path)
	}
	return lib, nil
}

// KeywordNames lists the keywords at path, including the stop keyword.
func (d *Dispatcher) KeywordNames(path string) ([]string, error) {
	lib, err := d.lookup(path)
	if err != nil {
		return nil, err
	}
	names, err := lib.KeywordNames()
	if err != nil {
		return nil, err
	}
	out := append([]string{}, names...)
	if !contains(out, StopKeyword) {
		out = append(out, StopKeyword)
	}
	return out, nil
}

// KeywordArguments describes the parameters of a keyword.
func (d *Dispatcher) KeywordArguments(path, name string) ([]string, error) {
	lib, err := d.lookup(path)
	if err != nil {
		return nil, err
	}
	if name == StopKeyword && !declares(lib, StopKeyword) {
		return []string{}, nil
	}
	args, err := lib.KeywordArguments(name)
	if err != nil {
		return nil, err
	}
	if args == nil {
		return []string{}, nil
	}
	return args, nil
}

// KeywordDocumentation returns the documentation of a keyword.
func (d *Dispatcher) KeywordDocumentation(path, name string) (string, error) {
	lib, err := d.lookup(path)
	if err != nil {
		return "", err
	}
	if name == StopKeyword && !declares(lib, StopKeyword) {
		return stopDocumentation, nil
	}
	return lib.KeywordDocumentation(name)
}

// KeywordInfo is the per-keyword entry of LibraryInformation.
type KeywordInfo struct {
	Args  []string
	Doc   string
	Tags  []string
	Types []string
}

// Map returns the wire form of the entry.
func (k KeywordInfo) Map() map[string]any {
	return map[string]any{
		"args":  k.Args,
		"doc":   k.Doc,
		"tags":  k.Tags,
		"types": k.Types,
	}
}

// LibraryInformation collects arguments and documentation of every keyword
// at path in one call.
func (d *Dispatcher) LibraryInformation(path string) (map[string]KeywordInfo, error) {
	names, err := d.KeywordNames(path)
	if err != nil {
		return nil, err
	}
	out := make(map[string]KeywordInfo, len(names))
	for _, name := range names {
		args, err := d.KeywordArguments(path, name)
		if err != nil {
			return nil, fmt.Errorf("keyword %s arguments: %w", name, err)
		}
		doc, err := d.KeywordDocumentation(path, name)
		if err != nil {
			return nil, fmt.Errorf("keyword %s documentation: %w", name, err)
		}
		out[name] = KeywordInfo{Args: args, Doc: doc, Tags: []string{}, Types: []string{}}
	}
	return out, nil
}

// RunKeyword runs a keyword and never fails: routing errors, keyword errors
// and panics all become FAIL responses.
func (d *Dispatcher) RunKeyword(ctx context.Context, path, name string, args []any) (resp Response) {
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			msg := fmt.Sprint(r)
			if msg == "" {
				msg = fmt.Sprintf("%T", r)
			}
			resp = fail(msg)
			resp.Traceback = string(debug.Stack())
		}
		logResult(path, name, resp, time.Since(start))
	}()

	lib, err := d.lookup(path)
	if err != nil {
		return fail(fmt.Sprintf("No library registered at path %q", path))
	}

	names, err := lib.KeywordNames()
	if err != nil {
		return failure(err, "")
	}
	if name == StopKeyword && !contains(names, StopKeyword) {
		return d.stopKeyword()
	}
	if !contains(names, name) {
		return fail(fmt.Sprintf("No keyword named %q in library %s", name, lib.Name()))
	}

	var out outputBuffer
	value, err := lib.RunKeyword(library.WithOutput(ctx, &out), name, args)
	if err != nil {
		return failure(err, out.String())
	}
	return pass(value, out.String())
}

func (d *Dispatcher) stopKeyword() Response {
	if !d.allowStop() {
		return pass(nil, StopRefusal)
	}
	d.stop()
	return pass(true, "")
}

func failure(err error, output string) Response {
	resp := fail(errorMessage(err))
	resp.Output = output
	resp.Traceback = library.Trace(err)
	resp.Continuable = library.IsContinuable(err)
	resp.Fatal = library.IsFatal(err)
	return resp
}

// errorMessage is err's text, or the type name of its innermost cause when
// the text is empty. A failure always carries a non-empty error.
func errorMessage(err error) string {
	if msg := err.Error(); msg != "" {
		return msg
	}
	cause := err
	for next := errors.Unwrap(cause); next != nil; next = errors.Unwrap(cause) {
		cause = next
	}
	var p *library.PanicError
	if errors.As(cause, &p) && p.Value != nil {
		return fmt.Sprintf("%T", p.Value)
	}
	return fmt.Sprintf("%T", cause)
}

func logResult(path, name string, resp Response, elapsed time.Duration) {
	if resp.Passed() {
		log.Debug().Str("path", path).Str("keyword", name).Dur("elapsed", elapsed).Msg("keyword passed")
		return
	}
	log.Error().Str("path", path).Str("keyword", name).Dur("elapsed", elapsed).Str("error", resp.Error).Msg("keyword failed")
}

func declares(lib library.Library, name string) bool {
	names, err := lib.KeywordNames()
	return err == nil && contains(names, name)
}

func contains(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

// outputBuffer collects keyword output. Keywords may write from goroutines
// they start themselves.
type outputBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *outputBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *outputBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// AppendNamed appends named arguments to args as name=value strings sorted
// by name, the form keywords receive them in.
func AppendNamed(args []any, named map[string]any) []any {
	keys := make([]string, 0, len(named))
	for k := range named {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, fmt.Sprintf("%s=%v", k, named[k]))
	}
	return args
}
