package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lydakis/rfremote/internal/config"
	"github.com/lydakis/rfremote/pkg/dispatch"
	"github.com/lydakis/rfremote/pkg/library"
	"github.com/lydakis/rfremote/pkg/registry"
	"github.com/lydakis/rfremote/pkg/xmlrpc"
)

type calcLib struct{}

func (calcLib) KeywordNames() []string { return []string{"Concat", "Counts", "Fail"} }

func (calcLib) RunKeyword(ctx context.Context, name string, args []any) (any, error) {
	switch name {
	case "Concat":
		fmt.Fprint(library.Output(ctx), "joining")
		var b strings.Builder
		for _, a := range args {
			fmt.Fprint(&b, a)
		}
		return b.String(), nil
	case "Counts":
		return map[string]any{"n": len(args)}, nil
	default:
		return nil, errors.New("told to fail")
	}
}

func (calcLib) KeywordArguments(name string) []string {
	if name == "Concat" {
		return []string{"*parts"}
	}
	return nil
}

func (calcLib) KeywordDocumentation(name string) string {
	if name == "Concat" {
		return "Joins parts.\nNo separator."
	}
	return ""
}

type stopRecorder struct{ stopped bool }

func startKeywordServer(t *testing.T, allowStop bool) (string, *stopRecorder) {
	t.Helper()
	reg := registry.New()
	lib, err := library.New(calcLib{})
	if err != nil {
		t.Fatalf("library.New() error = %v", err)
	}
	if err := reg.Put("/calc", lib); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	rec := &stopRecorder{}
	disp := dispatch.New(reg,
		dispatch.WithStopPolicy(func() bool { return allowStop }),
		dispatch.WithStopper(func() { rec.stopped = true }),
	)
	ts := httptest.NewServer(xmlrpc.NewServer(disp))
	t.Cleanup(ts.Close)
	return ts.URL, rec
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	out, errOut := captureRoot(t)
	code := RunContext(context.Background(), args)
	return code, out.String(), errOut.String()
}

func TestKeywordsCommand(t *testing.T) {
	url, _ := startKeywordServer(t, true)

	code, out, errOut := runCLI(t, "keywords", "--url", url+"/calc")
	if code != ExitOK {
		t.Fatalf("code = %d, want %d (stderr %q)", code, ExitOK, errOut)
	}
	want := "Concat\nCounts\nFail\n" + dispatch.StopKeyword + "\n"
	if out != want {
		t.Fatalf("stdout = %q, want %q", out, want)
	}
}

func TestKeywordsCommandVerbose(t *testing.T) {
	url, _ := startKeywordServer(t, true)

	code, out, _ := runCLI(t, "keywords", "-v", "--url", url+"/calc")
	if code != ExitOK {
		t.Fatalf("code = %d, want %d", code, ExitOK)
	}
	if !strings.Contains(out, "Concat(*parts)\n    Joins parts.\n    No separator.\n") {
		t.Fatalf("stdout = %q", out)
	}
	if !strings.Contains(out, "Counts()\n") {
		t.Fatalf("stdout = %q, want Counts()", out)
	}
}

func TestKeywordsCommandUnknownPath(t *testing.T) {
	url, _ := startKeywordServer(t, true)

	code, _, errOut := runCLI(t, "keywords", "--url", url+"/missing")
	if code != ExitUsageErr {
		t.Fatalf("code = %d, want %d", code, ExitUsageErr)
	}
	if !strings.Contains(errOut, "rfremote keywords:") {
		t.Fatalf("stderr = %q", errOut)
	}
}

func TestRunCommandPass(t *testing.T) {
	url, _ := startKeywordServer(t, true)

	code, out, errOut := runCLI(t, "run", "--url", url+"/calc", "Concat", "a", "-b", "--c")
	if code != ExitOK {
		t.Fatalf("code = %d, want %d (stderr %q)", code, ExitOK, errOut)
	}
	if out != "a-b--c\n" {
		t.Fatalf("stdout = %q, want %q", out, "a-b--c\n")
	}
	if errOut != "joining\n" {
		t.Fatalf("stderr = %q, want keyword output", errOut)
	}
}

func TestRunCommandPrintsStructuredReturnAsJSON(t *testing.T) {
	url, _ := startKeywordServer(t, true)

	code, out, _ := runCLI(t, "run", "--url", url+"/calc", "Counts", "x", "y")
	if code != ExitOK {
		t.Fatalf("code = %d, want %d", code, ExitOK)
	}
	if out != `{"n":2}`+"\n" {
		t.Fatalf("stdout = %q", out)
	}
}

func TestRunCommandFail(t *testing.T) {
	url, _ := startKeywordServer(t, true)

	code, out, errOut := runCLI(t, "run", "--url", url+"/calc", "Fail")
	if code != ExitKeywordFailed {
		t.Fatalf("code = %d, want %d", code, ExitKeywordFailed)
	}
	if out != "" {
		t.Fatalf("stdout = %q, want empty", out)
	}
	if !strings.Contains(errOut, "told to fail") {
		t.Fatalf("stderr = %q", errOut)
	}
}

func TestRunCommandMissingKeyword(t *testing.T) {
	code, _, errOut := runCLI(t, "run", "--url", "http://127.0.0.1:1")
	if code != ExitUsageErr {
		t.Fatalf("code = %d, want %d", code, ExitUsageErr)
	}
	if !strings.Contains(errOut, "missing keyword name") {
		t.Fatalf("stderr = %q", errOut)
	}
}

func TestRunCommandUnreachableServer(t *testing.T) {
	code, _, _ := runCLI(t, "run", "--url", "http://127.0.0.1:1/calc", "Concat")
	if code != ExitInternal {
		t.Fatalf("code = %d, want %d", code, ExitInternal)
	}
}

func TestStopCommand(t *testing.T) {
	url, rec := startKeywordServer(t, true)

	code, out, _ := runCLI(t, "stop", "--url", url+"/calc")
	if code != ExitOK {
		t.Fatalf("code = %d, want %d", code, ExitOK)
	}
	if out != "stopped\n" || !rec.stopped {
		t.Fatalf("stdout = %q, stopped = %v", out, rec.stopped)
	}
}

func TestStopCommandRefused(t *testing.T) {
	url, rec := startKeywordServer(t, false)

	code, _, errOut := runCLI(t, "stop", "--url", url+"/calc")
	if code != ExitKeywordFailed {
		t.Fatalf("code = %d, want %d", code, ExitKeywordFailed)
	}
	if !strings.Contains(errOut, dispatch.StopRefusal) || rec.stopped {
		t.Fatalf("stderr = %q, stopped = %v", errOut, rec.stopped)
	}
}

func stubClientConfig(t *testing.T, cfg *config.Config, port int) {
	t.Helper()
	oldLoad, oldRead := loadConfigFn, readPortFileFn
	t.Cleanup(func() {
		loadConfigFn = oldLoad
		readPortFileFn = oldRead
	})
	loadConfigFn = func(string) (*config.Config, error) { return cfg, nil }
	readPortFileFn = func(string) (int, error) {
		if port == 0 {
			return 0, os.ErrNotExist
		}
		return port, nil
	}
}

func TestTargetURL(t *testing.T) {
	cfg := config.Default()
	cfg.Host = "0.0.0.0"
	cfg.Port = 9000
	stubClientConfig(t, cfg, 0)

	tests := []struct {
		args []string
		want string
	}{
		{nil, "http://127.0.0.1:9000/"},
		{[]string{"--library", "mylib/"}, "http://127.0.0.1:9000/mylib"},
		{[]string{"--url", "http://remote:1/x", "--library", "ignored"}, "http://remote:1/x"},
	}
	for _, tt := range tests {
		f, err := parseCommandArgs(tt.args, targetFlags)
		if err != nil {
			t.Fatalf("parseCommandArgs(%q) error = %v", tt.args, err)
		}
		got, err := targetURL(f)
		if err != nil || got != tt.want {
			t.Fatalf("targetURL(%q) = %q, %v; want %q", tt.args, got, err, tt.want)
		}
	}
}

func TestTargetURLEphemeralPortUsesPortFile(t *testing.T) {
	cfg := config.Default()
	cfg.Port = 0
	stubClientConfig(t, cfg, 43210)

	f, _ := parseCommandArgs(nil, targetFlags)
	got, err := targetURL(f)
	if err != nil || got != "http://127.0.0.1:43210/" {
		t.Fatalf("targetURL() = %q, %v", got, err)
	}
}

func TestTargetURLEphemeralPortWithoutServer(t *testing.T) {
	cfg := config.Default()
	cfg.Port = 0
	stubClientConfig(t, cfg, 0)

	f, _ := parseCommandArgs(nil, targetFlags)
	if _, err := targetURL(f); err == nil || !strings.Contains(err.Error(), "no running server") {
		t.Fatalf("targetURL() error = %v", err)
	}
}

func TestTargetURLReadsConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("host = \"localhost\"\nport = 8271\n"), 0600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	f, _ := parseCommandArgs([]string{"--config", path}, targetFlags)
	got, err := targetURL(f)
	if err != nil || got != "http://localhost:8271/" {
		t.Fatalf("targetURL() = %q, %v", got, err)
	}
}

func TestClassifyClientError(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&xmlrpc.Fault{Code: xmlrpc.FaultApplication}, ExitUsageErr},
		{fmt.Errorf("wrapped: %w", &xmlrpc.Fault{Code: xmlrpc.FaultUnknownMethod}), ExitUsageErr},
		{&xmlrpc.Fault{Code: xmlrpc.FaultParse}, ExitInternal},
		{errors.New("connection refused"), ExitInternal},
	}
	for _, tt := range tests {
		if got := classifyClientError(tt.err); got != tt.want {
			t.Fatalf("classifyClientError(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestWriteResponseVerboseTraceback(t *testing.T) {
	var out, errOut bytes.Buffer
	resp := dispatch.Response{Status: dispatch.StatusFail, Error: "boom", Traceback: "at frame"}
	if code := writeResponse(resp, true, &out, &errOut); code != ExitKeywordFailed {
		t.Fatalf("writeResponse() = %d, want %d", code, ExitKeywordFailed)
	}
	if errOut.String() != "boom\nat frame\n" {
		t.Fatalf("stderr = %q", errOut.String())
	}
}
