package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"

	"github.com/lydakis/rfremote/internal/config"
	"github.com/lydakis/rfremote/internal/daemon"
	"github.com/lydakis/rfremote/pkg/dispatch"
	"github.com/lydakis/rfremote/pkg/registry"
	"github.com/lydakis/rfremote/pkg/xmlrpc"
)

var (
	loadConfigFn = func(path string) (*config.Config, error) {
		if path == "" {
			return config.Load()
		}
		return config.LoadFrom(path)
	}
	readPortFileFn = daemon.ReadPortFile
)

var targetFlags = commandFlags{
	values: []string{"url", "config", "library", "port-file"},
}

// targetURL resolves the library endpoint: --url wins, otherwise host and
// port come from the config, falling back to the port file when the
// configured port is ephemeral.
func targetURL(f *parsedFlags) (string, error) {
	if f.isSet("url") {
		return f.value("url"), nil
	}
	cfg, err := loadConfigFn(f.value("config"))
	if err != nil {
		return "", fmt.Errorf("loading config: %w", err)
	}
	port := cfg.Port
	if port == 0 {
		port, err = readPortFileFn(f.value("port-file"))
		if err != nil {
			return "", fmt.Errorf("configured port is ephemeral and no running server was found: %w", err)
		}
	}
	host := cfg.Host
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}

	path := "/"
	if f.isSet("library") {
		path, err = registry.Clean(f.value("library"))
		if err != nil {
			return "", err
		}
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(port)) + path, nil
}

func newClient(f *parsedFlags) (*xmlrpc.Client, error) {
	url, err := targetURL(f)
	if err != nil {
		return nil, err
	}
	return xmlrpc.NewClient(url, nil), nil
}

func keywordsCommand() command {
	flags := targetFlags
	flags.bools = []string{"verbose"}
	flags.aliases = map[string]string{"-v": "verbose"}
	return command{
		name:    "keywords",
		summary: "List the keywords of a running server's library",
		flags:   flags,
		run:     runKeywords,
	}
}

func runKeywords(ctx context.Context, f *parsedFlags, stdout, stderr io.Writer) int {
	if len(f.args) > 0 {
		fmt.Fprintf(stderr, "rfremote keywords: unexpected argument: %s\n", f.args[0])
		return ExitUsageErr
	}
	c, err := newClient(f)
	if err != nil {
		fmt.Fprintf(stderr, "rfremote keywords: %v\n", err)
		return ExitUsageErr
	}

	names, err := c.KeywordNames(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "rfremote keywords: %v\n", err)
		return classifyClientError(err)
	}
	for _, name := range names {
		if !f.flag("verbose") {
			fmt.Fprintln(stdout, name)
			continue
		}
		args, err := c.KeywordArguments(ctx, name)
		if err != nil {
			fmt.Fprintf(stderr, "rfremote keywords: %v\n", err)
			return classifyClientError(err)
		}
		doc, err := c.KeywordDocumentation(ctx, name)
		if err != nil {
			fmt.Fprintf(stderr, "rfremote keywords: %v\n", err)
			return classifyClientError(err)
		}
		printKeyword(stdout, name, args, doc)
	}
	return ExitOK
}

func runCommand() command {
	flags := targetFlags
	flags.bools = []string{"verbose"}
	flags.aliases = map[string]string{"-v": "verbose"}
	flags.stopAtPositional = true
	return command{
		name:    "run",
		summary: "Run a keyword on a running server",
		flags:   flags,
		run:     runKeyword,
	}
}

func runKeyword(ctx context.Context, f *parsedFlags, stdout, stderr io.Writer) int {
	if len(f.args) == 0 {
		fmt.Fprintln(stderr, "rfremote run: missing keyword name")
		return ExitUsageErr
	}
	c, err := newClient(f)
	if err != nil {
		fmt.Fprintf(stderr, "rfremote run: %v\n", err)
		return ExitUsageErr
	}

	args := make([]any, 0, len(f.args)-1)
	for _, a := range f.args[1:] {
		args = append(args, a)
	}
	resp, err := c.RunKeyword(ctx, f.args[0], args)
	if err != nil {
		fmt.Fprintf(stderr, "rfremote run: %v\n", err)
		return classifyClientError(err)
	}
	return writeResponse(resp, f.flag("verbose"), stdout, stderr)
}

func stopCommand() command {
	return command{
		name:    "stop",
		summary: "Ask a running server to stop",
		flags:   targetFlags,
		run:     runStop,
	}
}

func runStop(ctx context.Context, f *parsedFlags, stdout, stderr io.Writer) int {
	if len(f.args) > 0 {
		fmt.Fprintf(stderr, "rfremote stop: unexpected argument: %s\n", f.args[0])
		return ExitUsageErr
	}
	c, err := newClient(f)
	if err != nil {
		fmt.Fprintf(stderr, "rfremote stop: %v\n", err)
		return ExitUsageErr
	}
	resp, err := c.Stop(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "rfremote stop: %v\n", err)
		return classifyClientError(err)
	}
	if resp.Output == dispatch.StopRefusal {
		fmt.Fprintln(stderr, resp.Output)
		return ExitKeywordFailed
	}
	if code := writeResponse(resp, false, io.Discard, stderr); code != ExitOK {
		return code
	}
	fmt.Fprintln(stdout, "stopped")
	return ExitOK
}

// writeResponse prints a keyword response: the return value on stdout, the
// keyword output and failures on stderr.
func writeResponse(resp dispatch.Response, verbose bool, stdout, stderr io.Writer) int {
	if resp.Output != "" {
		fmt.Fprint(stderr, ensureNewline(resp.Output))
	}
	if !resp.Passed() {
		fmt.Fprintln(stderr, resp.Error)
		if verbose && resp.Traceback != "" {
			fmt.Fprint(stderr, ensureNewline(resp.Traceback))
		}
		return ExitKeywordFailed
	}
	if resp.Return != nil {
		fmt.Fprint(stdout, ensureNewline(renderValue(resp.Return)))
	}
	return ExitOK
}

func renderValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case []byte:
		return string(val)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}

func ensureNewline(s string) string {
	if strings.HasSuffix(s, "\n") {
		return s
	}
	return s + "\n"
}

func classifyClientError(err error) int {
	var fault *xmlrpc.Fault
	if errors.As(err, &fault) {
		switch fault.Code {
		case xmlrpc.FaultUnknownMethod, xmlrpc.FaultInvalidParams, xmlrpc.FaultApplication:
			return ExitUsageErr
		}
	}
	return ExitInternal
}
