package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/lydakis/rfremote/internal/config"
	"github.com/lydakis/rfremote/internal/paths"
)

func initCommand() command {
	return command{
		name:    "init",
		summary: "Write a default config file",
		flags: commandFlags{
			values: []string{"config"},
			bools:  []string{"force"},
		},
		run: runInit,
	}
}

func runInit(_ context.Context, f *parsedFlags, stdout, stderr io.Writer) int {
	if len(f.args) > 0 {
		fmt.Fprintf(stderr, "rfremote init: unexpected argument: %s\n", f.args[0])
		return ExitUsageErr
	}
	path := f.value("config")
	if path == "" {
		path = paths.ConfigFile()
	}

	_, err := os.Stat(path)
	switch {
	case err == nil && !f.flag("force"):
		fmt.Fprintf(stderr, "rfremote init: %s already exists (use --force to overwrite)\n", path)
		return ExitUsageErr
	case err != nil && !errors.Is(err, fs.ErrNotExist):
		fmt.Fprintf(stderr, "rfremote init: %v\n", err)
		return ExitInternal
	}

	if err := config.SaveTo(path, config.Default()); err != nil {
		fmt.Fprintf(stderr, "rfremote init: %v\n", err)
		return ExitInternal
	}
	fmt.Fprintf(stdout, "wrote %s\n", path)
	return ExitOK
}
