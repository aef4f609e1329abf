package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/lydakis/rfremote/internal/daemon"
)

var runDaemonFn = daemon.Run

func serveCommand() command {
	return command{
		name:    "serve",
		summary: "Serve the configured libraries until stopped",
		flags: commandFlags{
			values: []string{"config", "host", "port", "port-file"},
			bools:  []string{"allow-stop"},
		},
		run: runServe,
	}
}

func runServe(ctx context.Context, f *parsedFlags, _, stderr io.Writer) int {
	if len(f.args) > 0 {
		fmt.Fprintf(stderr, "rfremote serve: unexpected argument: %s\n", f.args[0])
		return ExitUsageErr
	}
	port, err := f.intValue("port")
	if err != nil {
		fmt.Fprintf(stderr, "rfremote serve: %v\n", err)
		return ExitUsageErr
	}

	err = runDaemonFn(ctx, daemon.Options{
		ConfigPath: f.value("config"),
		Host:       f.value("host"),
		Port:       port,
		AllowStop:  f.optionalBool("allow-stop"),
		PortFile:   f.value("port-file"),
		Version:    buildVersion,
		Stderr:     stderr,
	})
	if err != nil {
		fmt.Fprintf(stderr, "rfremote serve: %v\n", err)
		return ExitInternal
	}
	return ExitOK
}
