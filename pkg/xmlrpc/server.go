package xmlrpc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/lydakis/rfremote/pkg/dispatch"
	"github.com/lydakis/rfremote/pkg/registry"
)

// Robot Framework remote protocol methods.
const (
	MethodKeywordNames         = "get_keyword_names"
	MethodRunKeyword           = "run_keyword"
	MethodKeywordArguments     = "get_keyword_arguments"
	MethodKeywordDocumentation = "get_keyword_documentation"
	MethodKeywordTags          = "get_keyword_tags"
	MethodKeywordTypes         = "get_keyword_types"
	MethodLibraryInformation   = "get_library_information"
)

const (
	defaultMaxBodyBytes    = 32 << 20
	defaultShutdownTimeout = 5 * time.Second

	// defaultHandlerPath is where XML-RPC clients post when their URL has no path.
	defaultHandlerPath = "/RPC2"
)

// ErrBound is returned by Bind when the server is already listening.
var ErrBound = errors.New("xmlrpc server already bound")

// Dispatcher is the keyword surface served over XML-RPC.
type Dispatcher interface {
	KeywordNames(path string) ([]string, error)
	RunKeyword(ctx context.Context, path, name string, args []any) dispatch.Response
	KeywordArguments(path, name string) ([]string, error)
	KeywordDocumentation(path, name string) (string, error)
	LibraryInformation(path string) (map[string]dispatch.KeywordInfo, error)
}

type prefixHandler struct {
	prefix  string
	handler http.Handler
}

// Server serves a Dispatcher over HTTP. It can be bound and unbound
// repeatedly.
type Server struct {
	dispatcher Dispatcher

	// MaxBodyBytes caps request bodies.
	MaxBodyBytes int64
	// ShutdownTimeout bounds how long Unbind waits for in-flight requests.
	ShutdownTimeout time.Duration

	handlersMu sync.RWMutex
	handlers   []prefixHandler

	mu       sync.Mutex
	httpSrv  *http.Server
	listener net.Listener
	wg       sync.WaitGroup
}

// NewServer creates a server for d.
func NewServer(d Dispatcher) *Server {
	return &Server{
		dispatcher:      d,
		MaxBodyBytes:    defaultMaxBodyBytes,
		ShutdownTimeout: defaultShutdownTimeout,
	}
}

// Handle routes requests under prefix to h instead of the XML-RPC endpoint.
func (s *Server) Handle(prefix string, h http.Handler) {
	s.handlersMu.Lock()
	defer s.handlersMu.Unlock()
	s.handlers = append(s.handlers, prefixHandler{prefix: prefix, handler: h})
	sort.SliceStable(s.handlers, func(i, j int) bool {
		return len(s.handlers[i].prefix) > len(s.handlers[j].prefix)
	})
}

// Bind starts listening on host:port and returns the bound port. Port 0
// picks an ephemeral port.
func (s *Server) Bind(host string, port int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.httpSrv != nil {
		return 0, ErrBound
	}

	addr := net.JoinHostPort(host, strconv.Itoa(port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return 0, fmt.Errorf("listening on %s: %w", addr, err)
	}
	tcpAddr, ok := ln.Addr().(*net.TCPAddr)
	if !ok {
		ln.Close()
		return 0, fmt.Errorf("listener on %s is not tcp", addr)
	}

	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.httpSrv = srv
	s.listener = ln

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Str("addr", addr).Msg("xmlrpc server stopped")
		}
	}()
	return tcpAddr.Port, nil
}

// Unbind stops listening and waits for in-flight requests. It is a no-op
// when the server is not bound.
func (s *Server) Unbind() error {
	s.mu.Lock()
	srv := s.httpSrv
	s.httpSrv = nil
	s.listener = nil
	s.mu.Unlock()
	if srv == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.ShutdownTimeout)
	defer cancel()
	err := srv.Shutdown(ctx)
	if err != nil {
		err = errors.Join(err, srv.Close())
	}
	s.wg.Wait()
	return err
}

// Addr returns the bound address, or nil when not listening.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h := s.handlerFor(r.URL.Path); h != nil {
		h.ServeHTTP(w, r)
		return
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "XML-RPC requests must use POST", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	call, err := DecodeCall(http.MaxBytesReader(w, r.Body, s.MaxBodyBytes))
	if err != nil {
		writeFault(w, &Fault{Code: FaultParse, String: fmt.Sprintf("invalid request: %v", err)})
		return
	}

	path := requestPath(r.URL.Path)
	result, err := s.invoke(r.Context(), path, call)
	if err != nil {
		var fault *Fault
		if !errors.As(err, &fault) {
			fault = &Fault{Code: FaultApplication, String: err.Error()}
		}
		log.Warn().Str("path", path).Str("method", call.Method).Str("fault", fault.String).Msg("xmlrpc fault")
		writeFault(w, fault)
		return
	}
	if err := EncodeResponse(w, result); err != nil {
		log.Error().Err(err).Str("path", path).Str("method", call.Method).Msg("writing xmlrpc response")
	}
}

func (s *Server) handlerFor(path string) http.Handler {
	s.handlersMu.RLock()
	defer s.handlersMu.RUnlock()
	for _, ph := range s.handlers {
		if path == ph.prefix || strings.HasPrefix(path, strings.TrimSuffix(ph.prefix, "/")+"/") {
			return ph.handler
		}
	}
	return nil
}

func (s *Server) invoke(ctx context.Context, path string, call *Call) (any, error) {
	d := s.dispatcher
	switch call.Method {
	case MethodKeywordNames:
		return d.KeywordNames(path)
	case MethodRunKeyword:
		name, args, err := runKeywordParams(call.Params)
		if err != nil {
			return nil, err
		}
		return d.RunKeyword(ctx, path, name, args).Map(), nil
	case MethodKeywordArguments:
		name, err := keywordParam(call)
		if err != nil {
			return nil, err
		}
		return d.KeywordArguments(path, name)
	case MethodKeywordDocumentation:
		name, err := keywordParam(call)
		if err != nil {
			return nil, err
		}
		return d.KeywordDocumentation(path, name)
	case MethodKeywordTags, MethodKeywordTypes:
		if _, err := keywordParam(call); err != nil {
			return nil, err
		}
		return []string{}, nil
	case MethodLibraryInformation:
		info, err := d.LibraryInformation(path)
		if err != nil {
			return nil, err
		}
		out := make(map[string]any, len(info))
		for name, kw := range info {
			out[name] = kw.Map()
		}
		return out, nil
	default:
		return nil, &Fault{Code: FaultUnknownMethod, String: fmt.Sprintf("unknown method: %s", call.Method)}
	}
}

func keywordParam(call *Call) (string, error) {
	if len(call.Params) != 1 {
		return "", &Fault{Code: FaultInvalidParams, String: fmt.Sprintf("%s expects 1 argument, got %d", call.Method, len(call.Params))}
	}
	name, ok := call.Params[0].(string)
	if !ok {
		return "", &Fault{Code: FaultInvalidParams, String: fmt.Sprintf("%s expects a keyword name", call.Method)}
	}
	return name, nil
}

// runKeywordParams accepts (name), (name, args) and (name, args, kwargs).
// Named arguments are appended as name=value strings sorted by name.
func runKeywordParams(params []any) (string, []any, error) {
	if len(params) < 1 || len(params) > 3 {
		return "", nil, &Fault{Code: FaultInvalidParams, String: fmt.Sprintf("run_keyword expects 1 to 3 arguments, got %d", len(params))}
	}
	name, ok := params[0].(string)
	if !ok {
		return "", nil, &Fault{Code: FaultInvalidParams, String: "run_keyword expects a keyword name"}
	}
	args := []any{}
	if len(params) > 1 {
		list, ok := params[1].([]any)
		if !ok {
			return "", nil, &Fault{Code: FaultInvalidParams, String: "run_keyword expects an argument array"}
		}
		args = append(args, list...)
	}
	if len(params) > 2 {
		kwargs, ok := params[2].(map[string]any)
		if !ok {
			return "", nil, &Fault{Code: FaultInvalidParams, String: "run_keyword expects a keyword argument struct"}
		}
		args = dispatch.AppendNamed(args, kwargs)
	}
	return name, args, nil
}

// requestPath maps a request URL path onto a registry key.
func requestPath(path string) string {
	clean, err := registry.Clean(path)
	if err != nil {
		return path
	}
	if clean == defaultHandlerPath {
		return "/"
	}
	return clean
}

func writeFault(w http.ResponseWriter, f *Fault) {
	if err := EncodeFault(w, f); err != nil {
		log.Error().Err(err).Msg("writing xmlrpc fault")
	}
}
