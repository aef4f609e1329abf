package daemon

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/lydakis/rfremote/internal/config"
	"github.com/lydakis/rfremote/pkg/dispatch"
	"github.com/lydakis/rfremote/pkg/xmlrpc"
)

func stubConfig(t *testing.T, cfg *config.Config) {
	t.Helper()
	oldLoad, oldNotify := loadConfigFn, notifySignalsFn
	loadConfigFn = func(string) (*config.Config, error) { return cfg, nil }
	notifySignalsFn = func(chan<- os.Signal) {}
	t.Cleanup(func() {
		loadConfigFn, notifySignalsFn = oldLoad, oldNotify
	})
}

func echoMCPServer(t *testing.T) string {
	t.Helper()
	s := mcpserver.NewMCPServer("daemon-test", "1.0.0")
	s.AddTool(mcp.Tool{
		Name: "echo",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]any{"text": map[string]any{"type": "string"}},
			Required:   []string{"text"},
		},
	}, func(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return mcp.NewToolResultText(request.GetString("text", "")), nil
	})
	ts := mcpserver.NewTestStreamableHTTPServer(s)
	t.Cleanup(ts.Close)
	return ts.URL
}

type runHandle struct {
	port     int
	portFile string
	cancel   context.CancelFunc
	done     chan error
}

func startRun(t *testing.T, cfg *config.Config, opts Options) *runHandle {
	t.Helper()
	stubConfig(t, cfg)

	ready := make(chan int, 1)
	opts.Ready = func(port int) { ready <- port }
	opts.Stderr = io.Discard
	if opts.PortFile == "" {
		opts.PortFile = filepath.Join(t.TempDir(), "port")
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := &runHandle{portFile: opts.PortFile, cancel: cancel, done: make(chan error, 1)}
	go func() { h.done <- Run(ctx, opts) }()
	t.Cleanup(func() {
		cancel()
		<-h.done
	})

	select {
	case h.port = <-ready:
	case err := <-h.done:
		t.Fatalf("Run() returned early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not become ready")
	}
	return h
}

func (h *runHandle) wait(t *testing.T) error {
	t.Helper()
	select {
	case err := <-h.done:
		h.done <- err
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return")
		return nil
	}
}

func (h *runHandle) client(path string) *xmlrpc.Client {
	return xmlrpc.NewClient(fmt.Sprintf("http://127.0.0.1:%d%s", h.port, path), nil)
}

func testConfig(t *testing.T) *config.Config {
	cfg := config.Default()
	cfg.Port = 0
	cfg.LogLevel = "error"
	cfg.Libraries["/tools"] = config.LibraryConfig{URL: echoMCPServer(t)}
	return cfg
}

func TestRunServesConfiguredLibrariesUntilCancelled(t *testing.T) {
	h := startRun(t, testConfig(t), Options{Version: "test"})
	ctx := context.Background()

	names, err := h.client("/tools").KeywordNames(ctx)
	if err != nil {
		t.Fatalf("KeywordNames() error = %v", err)
	}
	if want := []string{"echo", dispatch.StopKeyword}; !reflect.DeepEqual(names, want) {
		t.Fatalf("KeywordNames() = %v, want %v", names, want)
	}

	resp, err := h.client("/tools").RunKeyword(ctx, "echo", []any{"hi"})
	if err != nil || !resp.Passed() || resp.Return != "hi" {
		t.Fatalf("RunKeyword(echo) = %+v, %v", resp, err)
	}

	port, err := ReadPortFile(h.portFile)
	if err != nil || port != h.port {
		t.Fatalf("ReadPortFile() = %d, %v; want %d", port, err, h.port)
	}

	h.cancel()
	if err := h.wait(t); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if _, err := os.Stat(h.portFile); !os.IsNotExist(err) {
		t.Fatalf("port file still present after shutdown: %v", err)
	}
}

func TestRunEndsOnRemoteStop(t *testing.T) {
	h := startRun(t, testConfig(t), Options{})

	resp, err := h.client("/tools").Stop(context.Background())
	if err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if !resp.Passed() || resp.Return != true {
		t.Fatalf("Stop() = %+v, want PASS with return true", resp)
	}
	if err := h.wait(t); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
}

func TestRunRefusesRemoteStopWhenOverridden(t *testing.T) {
	allow := false
	h := startRun(t, testConfig(t), Options{AllowStop: &allow})

	resp, err := h.client("/tools").Stop(context.Background())
	if err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if resp.Output != dispatch.StopRefusal {
		t.Fatalf("Stop() = %+v, want refusal", resp)
	}
	select {
	case err := <-h.done:
		t.Fatalf("Run() returned after refused stop: %v", err)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestRunMountsMCPBridge(t *testing.T) {
	h := startRun(t, testConfig(t), Options{})

	body := strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-06-18","capabilities":{},"clientInfo":{"name":"t","version":"1"}}}`)
	req, err := http.NewRequest(http.MethodPost, fmt.Sprintf("http://127.0.0.1:%d/_mcp", h.port), body)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST /_mcp error = %v", err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(data), `"serverInfo"`) {
		t.Fatalf("POST /_mcp = %d %s", resp.StatusCode, data)
	}
}

func TestRunPortOverride(t *testing.T) {
	port := 0
	cfg := testConfig(t)
	cfg.Port = 1
	h := startRun(t, cfg, Options{Port: &port, PortFile: NoPortFile})
	if h.port <= 1 {
		t.Fatalf("port = %d, want ephemeral port", h.port)
	}
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Port = 70000
	stubConfig(t, cfg)

	err := Run(context.Background(), Options{Stderr: io.Discard})
	if err == nil || !strings.Contains(err.Error(), "invalid config") {
		t.Fatalf("Run() error = %v, want invalid config", err)
	}
}

func TestReadPortFileRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "port")
	if err := os.WriteFile(path, []byte("not-a-port\n"), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if _, err := ReadPortFile(path); err == nil {
		t.Fatal("ReadPortFile() error = nil, want error")
	}
	if err := os.WriteFile(path, []byte("8270\n"), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if port, err := ReadPortFile(path); err != nil || port != 8270 {
		t.Fatalf("ReadPortFile() = %d, %v; want 8270", port, err)
	}
}
