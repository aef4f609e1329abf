// Package cli implements the rfremote command line.
package cli

import (
	"context"
	"fmt"
	"io"
)

// Exit codes.
const (
	ExitOK            = 0
	ExitKeywordFailed = 1
	ExitUsageErr      = 2
	ExitInternal      = 3
)

type command struct {
	name    string
	summary string
	flags   commandFlags
	run     func(ctx context.Context, f *parsedFlags, stdout, stderr io.Writer) int
}

var commands []command

func init() {
	commands = []command{
		serveCommand(),
		keywordsCommand(),
		runCommand(),
		stopCommand(),
		initCommand(),
	}
}

func lookupCommand(name string) (command, bool) {
	for _, c := range commands {
		if c.name == name {
			return c, true
		}
	}
	return command{}, false
}

// Run is the main CLI entry point. Returns an exit code.
func Run(args []string) int {
	return RunContext(context.Background(), args)
}

// RunContext is Run with a context that ends long-running commands.
func RunContext(ctx context.Context, args []string) int {
	if handled, code := handleRootFlags(args); handled {
		return code
	}
	if len(args) == 0 {
		printRootHelp(rootStderr)
		return ExitUsageErr
	}

	cmd, ok := lookupCommand(args[0])
	if !ok {
		fmt.Fprintf(rootStderr, "rfremote: unknown command: %s\n", args[0])
		fmt.Fprintln(rootStderr, "Run 'rfremote --help' for usage.")
		return ExitUsageErr
	}

	rest := args[1:]
	if wantsHelp(rest, cmd.flags) {
		printCommandHelp(rootStdout, cmd)
		return ExitOK
	}

	parsed, err := parseCommandArgs(rest, cmd.flags)
	if err != nil {
		fmt.Fprintf(rootStderr, "rfremote %s: %v\n", cmd.name, err)
		return ExitUsageErr
	}
	return cmd.run(ctx, parsed, rootStdout, rootStderr)
}

// wantsHelp reports a -h/--help before any positional argument of a
// command that passes its positionals through.
func wantsHelp(args []string, spec commandFlags) bool {
	for _, arg := range args {
		switch {
		case arg == "-h" || arg == "--help":
			return true
		case arg == "--":
			return false
		case spec.stopAtPositional && len(arg) > 0 && arg[0] != '-':
			return false
		}
	}
	return false
}
