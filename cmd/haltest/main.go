// Command haltest decides whether automated conformance tests should run
// against a HAL on a device, from the framework compatibility matrix and
// the framework- and device-side HAL manifests.
package main

import (
	"fmt"
	"io"
	"os"
)

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run is the entrypoint, split out for testing.
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		usage(stderr)
		return 1
	}

	switch args[1] {
	case "check":
		return runCheckCmd(args[2:], stdout, stderr)
	case "batch":
		return runBatchCmd(args[2:], stdout, stderr)
	case "help", "-h", "--help":
		usage(stdout)
		return 0
	}

	fmt.Fprintf(stderr, "unknown command %q\n\n", args[1])
	usage(stderr)
	return 1
}

func usage(w io.Writer) {
	fmt.Fprint(w, `haltest decides whether conformance tests should run against a HAL,
and which service instances they should target.

Usage:
  haltest check  -matrix FILE -framework-manifest FILE -device-manifest FILE
                 -package NAME -version M.m -interface NAME [-arch 32|64|32+64]
                 [-mode compliance|noncompliance] [-report DIR] [-store FILE]
  haltest batch  -matrix FILE -framework-manifest FILE -device-manifest FILE
                 -queries FILE [-report DIR] [-store FILE]
  haltest help

Environment:
  HALTEST_LOG_LEVEL      DEBUG, INFO, WARN or ERROR (default INFO)
  HALTEST_STORE_PATH     default SQLite decision store path
  HALTEST_TELEMETRY      "true" enables OTLP export
  HALTEST_OTLP_ENDPOINT  OTLP gRPC endpoint (default localhost:4317)
`)
}
