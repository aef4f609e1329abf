// Package server owns the library registry and the listening lifecycle of a
// remote keyword server.
package server

import (
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/lydakis/rfremote/pkg/dispatch"
	"github.com/lydakis/rfremote/pkg/library"
	"github.com/lydakis/rfremote/pkg/registry"
	"github.com/lydakis/rfremote/pkg/xmlrpc"
)

// Port sentinels reported by Port.
const (
	PortUnconfigured = -1
	PortStopped      = -2
)

// DefaultHost is the interface bound when SetHost is never called.
const DefaultHost = "127.0.0.1"

var (
	ErrMultiplePorts = errors.New("Serving on multiple ports is no longer supported. Please use putLibrary with different paths instead.")
	ErrListening     = errors.New("server is already listening")
	ErrInvalidPort   = errors.New("invalid port")
)

// Transport is the network side of the server.
type Transport interface {
	// Bind starts listening and returns the bound port. Port 0 requests an
	// ephemeral port.
	Bind(host string, port int) (int, error)
	// Unbind stops listening. It is a no-op when not listening.
	Unbind() error
}

// Option configures a Server.
type Option func(*Server)

// WithTransport replaces the XML-RPC transport.
func WithTransport(fn func(d *dispatch.Dispatcher) Transport) Option {
	return func(s *Server) { s.newTransport = fn }
}

type state int

const (
	stateIdle state = iota
	stateListening
	stateStopped
)

type prefixHandler struct {
	prefix  string
	handler http.Handler
}

// run is one listening period. stopReq is signalled by the stop keyword and
// done is closed once the transport is unbound.
type run struct {
	stopReq  chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

func newRun() *run {
	return &run{stopReq: make(chan struct{}), done: make(chan struct{})}
}

func (r *run) requestStop() {
	r.stopOnce.Do(func() { close(r.stopReq) })
}

// Server serves registered libraries. Start, Stop, SetPort and SetHost must
// not be called concurrently with each other; library registration is safe
// at any time.
type Server struct {
	mu           sync.Mutex
	host         string
	configured   int
	bound        int
	explicitPort bool
	state        state
	handlers     []prefixHandler
	transport    Transport
	newTransport func(d *dispatch.Dispatcher) Transport

	legacy    atomic.Bool
	allowStop atomic.Bool
	current   atomic.Pointer[run]

	reg  *registry.Registry
	disp *dispatch.Dispatcher
}

// New creates a server with no libraries and no port.
func New(opts ...Option) *Server {
	s := &Server{
		host:       DefaultHost,
		configured: PortUnconfigured,
		reg:        registry.New(),
		newTransport: func(d *dispatch.Dispatcher) Transport {
			return xmlrpc.NewServer(d)
		},
	}
	s.allowStop.Store(true)
	s.disp = dispatch.New(s.reg,
		dispatch.WithStopPolicy(s.AllowStop),
		dispatch.WithStopper(s.requestStop),
	)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetPort sets the port used by the next Start. Zero requests an ephemeral
// port. After a stop, Port reports the new port until the next Start.
func (s *Server) SetPort(port int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == stateListening {
		return ErrListening
	}
	if s.legacy.Load() {
		return ErrMultiplePorts
	}
	if port < 0 || port > 65535 {
		return fmt.Errorf("%w %d", ErrInvalidPort, port)
	}
	s.configured = port
	s.explicitPort = true
	if s.state == stateStopped {
		s.state = stateIdle
	}
	return nil
}

// Port reports the bound port while listening, PortStopped after a stop,
// otherwise the configured port or PortUnconfigured.
func (s *Server) Port() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case stateListening:
		return s.bound
	case stateStopped:
		return PortStopped
	default:
		return s.configured
	}
}

// SetHost sets the interface the next Start binds.
func (s *Server) SetHost(host string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == stateListening {
		return ErrListening
	}
	s.host = host
	return nil
}

func (s *Server) Host() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.host
}

// SetAllowStop sets whether remote callers may stop the server.
func (s *Server) SetAllowStop(allow bool) {
	s.allowStop.Store(allow)
}

func (s *Server) AllowStop() bool {
	return s.allowStop.Load()
}

// PutLibrary registers impl at path, replacing any library already there.
// It may be called while listening.
func (s *Server) PutLibrary(path string, impl any) error {
	if s.legacy.Load() {
		return ErrMultiplePorts
	}
	lib, err := library.New(impl)
	if err != nil {
		return err
	}
	if err := s.reg.Put(path, lib); err != nil {
		return err
	}
	log.Debug().Str("path", path).Str("library", lib.Name()).Msg("library registered")
	return nil
}

// AddLibrary serves impl at "/" on port. It only works for a server that
// has neither an explicit port nor any registered path.
//
// Deprecated: use SetPort and PutLibrary.
func (s *Server) AddLibrary(impl any, port int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == stateListening {
		return ErrListening
	}
	if s.explicitPort || s.legacy.Load() || s.reg.Len() > 0 {
		return ErrMultiplePorts
	}
	if port < 0 || port > 65535 {
		return fmt.Errorf("%w %d", ErrInvalidPort, port)
	}
	lib, err := library.New(impl)
	if err != nil {
		return err
	}
	if err := s.reg.Put("/", lib); err != nil {
		return err
	}
	s.configured = port
	s.legacy.Store(true)
	return nil
}

// Libraries returns a snapshot of the registered libraries by path.
func (s *Server) Libraries() map[string]library.Library {
	return s.reg.Entries()
}

func (s *Server) Registry() *registry.Registry {
	return s.reg
}

func (s *Server) Dispatcher() *dispatch.Dispatcher {
	return s.disp
}

// Handle mounts h under prefix next to the keyword endpoint. The transport
// must support extra handlers.
func (s *Server) Handle(prefix string, h http.Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = append(s.handlers, prefixHandler{prefix: prefix, handler: h})
	if s.transport != nil {
		mount(s.transport, prefix, h)
	}
}

func mount(t Transport, prefix string, h http.Handler) {
	if m, ok := t.(interface{ Handle(string, http.Handler) }); ok {
		m.Handle(prefix, h)
		return
	}
	log.Warn().Str("prefix", prefix).Msg("transport does not support extra handlers")
}

// Start binds the transport. Libraries registered before or after Start are
// served.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == stateListening {
		return ErrListening
	}
	if s.transport == nil {
		s.transport = s.newTransport(s.disp)
		for _, ph := range s.handlers {
			mount(s.transport, ph.prefix, ph.handler)
		}
	}

	port := s.configured
	if port < 0 {
		port = 0
	}
	bound, err := s.transport.Bind(s.host, port)
	if err != nil {
		return fmt.Errorf("starting remote server: %w", err)
	}
	s.bound = bound
	s.state = stateListening

	r := newRun()
	s.current.Store(r)
	go s.watch(r)

	log.Info().Str("host", s.host).Int("port", bound).Strs("paths", s.reg.Paths()).Msg("remote server listening")
	return nil
}

// Stop unbinds the transport. Stopping a server that is not listening is a
// no-op.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopLocked(s.current.Load())
}

func (s *Server) stopLocked(r *run) error {
	if s.state != stateListening || r == nil || s.current.Load() != r {
		return nil
	}
	err := s.transport.Unbind()
	s.state = stateStopped
	s.bound = 0
	close(r.done)
	if err != nil {
		log.Error().Err(err).Msg("stopping remote server")
		return fmt.Errorf("stopping remote server: %w", err)
	}
	log.Info().Msg("remote server stopped")
	return nil
}

// Stopped returns a channel closed when the current listening period ends,
// including stops requested remotely. It is already closed when the server
// is not listening.
func (s *Server) Stopped() <-chan struct{} {
	if r := s.current.Load(); r != nil {
		return r.done
	}
	closed := make(chan struct{})
	close(closed)
	return closed
}

// requestStop is the stop keyword's hook. It runs on a request goroutine so
// it only signals; the watcher performs the unbind.
func (s *Server) requestStop() {
	if r := s.current.Load(); r != nil {
		log.Info().Msg("remote stop requested")
		r.requestStop()
	}
}

func (s *Server) watch(r *run) {
	select {
	case <-r.stopReq:
		s.mu.Lock()
		defer s.mu.Unlock()
		_ = s.stopLocked(r)
	case <-r.done:
	}
}
