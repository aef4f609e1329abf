package cli

import (
	"fmt"
	"io"
	"strings"
)

// flagHelp documents every flag by long name. Commands print the entries
// for the flags they accept.
var flagHelp = map[string]string{
	"config":     "--config <file>       Config file (default: $XDG_CONFIG_HOME/rfremote/config.toml).",
	"host":       "--host <addr>         Interface to listen on.",
	"port":       "--port <n>            Port to listen on; 0 picks a free port.",
	"port-file":  "--port-file <file>    Where the bound port is recorded (\"-\" disables).",
	"allow-stop": "--allow-stop          Let clients stop the server remotely (--no-allow-stop refuses).",
	"url":        "--url <url>           Library endpoint, e.g. http://127.0.0.1:8270/mylib.",
	"library":    "--library <path>      Library path on the configured server (default: /).",
	"verbose":    "--verbose, -v         Show arguments and documentation, or failure tracebacks.",
	"force":      "--force               Overwrite an existing file.",
}

var commandUsage = map[string]string{
	"serve":    "rfremote serve [FLAGS]",
	"keywords": "rfremote keywords [FLAGS]",
	"run":      "rfremote run [FLAGS] <keyword> [ARG...]",
	"stop":     "rfremote stop [FLAGS]",
	"init":     "rfremote init [FLAGS]",
}

func printRootHelp(out io.Writer) {
	fmt.Fprintln(out, "Usage:")
	fmt.Fprintln(out, "  rfremote <command> [FLAGS]")
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Commands:")
	for _, c := range commands {
		fmt.Fprintf(out, "  %-10s %s\n", c.name, c.summary)
	}
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Global flags:")
	fmt.Fprintln(out, "  --help, -h       Show help")
	fmt.Fprintln(out, "  --version, -V    Show version")
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Run 'rfremote <command> --help' for command flags.")
}

func printCommandHelp(w io.Writer, cmd command) {
	fmt.Fprintf(w, "Usage: %s\n", commandUsage[cmd.name])
	fmt.Fprintf(w, "\n%s.\n", cmd.summary)

	fmt.Fprintln(w, "\nFlags:")
	names := append(append([]string{}, cmd.flags.values...), cmd.flags.bools...)
	for _, name := range names {
		if line, ok := flagHelp[name]; ok {
			fmt.Fprintf(w, "  %s\n", line)
		}
	}
	fmt.Fprintln(w, "  --help, -h            Show this help output.")

	if cmd.name == "run" {
		fmt.Fprintln(w, "\nArguments after the keyword name are passed as strings.")
		fmt.Fprintln(w, "\nExit codes:")
		fmt.Fprintln(w, "  0 keyword passed, 1 keyword failed, 2 usage or lookup error, 3 transport error")
	}
}

// printKeyword prints one keyword in `keywords --verbose` form.
func printKeyword(w io.Writer, name string, args []string, doc string) {
	fmt.Fprintf(w, "%s(%s)\n", name, strings.Join(args, ", "))
	doc = strings.TrimSpace(doc)
	if doc == "" {
		return
	}
	for _, line := range strings.Split(doc, "\n") {
		fmt.Fprintf(w, "    %s\n", line)
	}
}
