package cli

import (
	"fmt"
	"io"
	"os"
	"runtime/debug"
)

var (
	rootStdout io.Writer = os.Stdout
	rootStderr io.Writer = os.Stderr

	// buildVersion is set with -ldflags "-X .../internal/cli.buildVersion=v1.2.3";
	// otherwise the module version from build info is used.
	buildVersion = "dev"
)

func init() {
	if info, ok := debug.ReadBuildInfo(); ok {
		buildVersion = moduleVersion(buildVersion, info.Main.Version)
	}
}

// Version reports the binary version.
func Version() string {
	return buildVersion
}

// moduleVersion prefers a linked-in version over the module's, and ignores
// the placeholder versions of local builds.
func moduleVersion(linked, module string) string {
	if linked != "" && linked != "dev" {
		return linked
	}
	switch module {
	case "", "(devel)":
		return linked
	default:
		return module
	}
}

// handleRootFlags answers invocations that consist of one global flag.
func handleRootFlags(args []string) (bool, int) {
	if len(args) != 1 {
		return false, 0
	}
	switch args[0] {
	case "--version", "-V", "version":
		fmt.Fprintf(rootStdout, "rfremote %s\n", buildVersion)
	case "--help", "-h", "help":
		printRootHelp(rootStdout)
	default:
		return false, 0
	}
	return true, ExitOK
}
