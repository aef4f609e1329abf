// Package daemon runs the rfremote server: configuration in, listening
// server out, until a signal or a remote stop ends the run.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/lydakis/rfremote/internal/config"
	"github.com/lydakis/rfremote/internal/logging"
	"github.com/lydakis/rfremote/internal/mcpbridge"
	"github.com/lydakis/rfremote/internal/mcplib"
	"github.com/lydakis/rfremote/internal/paths"
	"github.com/lydakis/rfremote/pkg/server"
)

// NoPortFile disables writing the port file.
const NoPortFile = "-"

// Options adjusts one serve run. Zero values keep the configured settings.
type Options struct {
	ConfigPath string
	Host       string
	Port       *int
	AllowStop  *bool
	PortFile   string
	Version    string
	Stderr     io.Writer

	// Ready is called with the bound port once the server is listening.
	Ready func(port int)
}

var (
	loadConfigFn = func(path string) (*config.Config, error) {
		if path == "" {
			return config.Load()
		}
		return config.LoadFrom(path)
	}
	validateConfigFn = config.Validate
	notifySignalsFn  = func(ch chan<- os.Signal) {
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	}
)

// Run serves the configured libraries until ctx is cancelled, the process
// is signalled, or a client calls the stop keyword.
func Run(ctx context.Context, opts Options) error {
	cfg, err := loadConfigFn(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	applyOverrides(cfg, opts)
	if verr := validateConfigFn(cfg); verr != nil {
		return fmt.Errorf("invalid config: %w", verr)
	}

	stderr := opts.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}
	if _, err := logging.Init(stderr, logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat}); err != nil {
		return err
	}

	pool := mcplib.NewPool(cfg.Libraries, opts.Version)
	defer pool.CloseAll()

	srv, err := newServer(cfg, pool, opts.Version)
	if err != nil {
		return err
	}
	if err := srv.Start(); err != nil {
		return err
	}
	defer srv.Stop() //nolint: errcheck

	port := srv.Port()
	portFile := opts.PortFile
	if portFile == "" {
		portFile = paths.PortFile()
	}
	if portFile != NoPortFile {
		if err := writePortFile(portFile, port); err != nil {
			log.Warn().Err(err).Str("file", portFile).Msg("could not record port")
		} else {
			defer os.Remove(portFile)
		}
	}
	if opts.Ready != nil {
		opts.Ready(port)
	}

	sigCh := make(chan os.Signal, 1)
	notifySignalsFn(sigCh)
	defer signal.Stop(sigCh)

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	case <-srv.Stopped():
		log.Info().Msg("stopped by remote request")
	}
	return nil
}

func applyOverrides(cfg *config.Config, opts Options) {
	if opts.Host != "" {
		cfg.Host = opts.Host
	}
	if opts.Port != nil {
		cfg.Port = *opts.Port
	}
	if opts.AllowStop != nil {
		cfg.AllowStop = *opts.AllowStop
	}
}

func newServer(cfg *config.Config, pool *mcplib.Pool, version string) (*server.Server, error) {
	srv := server.New()
	if err := srv.SetHost(cfg.Host); err != nil {
		return nil, err
	}
	if err := srv.SetPort(cfg.Port); err != nil {
		return nil, err
	}
	srv.SetAllowStop(cfg.AllowStop)

	libs := pool.Libraries()
	libPaths := make([]string, 0, len(libs))
	for path := range libs {
		libPaths = append(libPaths, path)
	}
	sort.Strings(libPaths)
	var errs []error
	for _, path := range libPaths {
		if err := srv.PutLibrary(path, libs[path]); err != nil {
			errs = append(errs, fmt.Errorf("library %s: %w", path, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	if len(libPaths) == 0 {
		log.Warn().Msg("no libraries configured")
	}

	if cfg.MCPPath != "" {
		srv.Handle(cfg.MCPPath, mcpbridge.New(srv.Registry(), srv.Dispatcher(), cfg.MCPPath, version))
	}
	return srv, nil
}

func writePortFile(path string, port int) error {
	return paths.WriteFileAtomic(path, []byte(strconv.Itoa(port)+"\n"), 0600)
}

// ReadPortFile returns the port recorded by a running server.
func ReadPortFile(path string) (int, error) {
	if path == "" {
		path = paths.PortFile()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	port, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || port <= 0 || port > 65535 {
		return 0, fmt.Errorf("port file %s: invalid port %q", path, data)
	}
	return port, nil
}
