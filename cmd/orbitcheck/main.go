package main

import (
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/guillemso1er/orbitcheck-sub001/pkg/config"
)

const version = "0.1.0"

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run dispatches subcommands. With no arguments the server runs.
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		runServer()
		return 0
	}

	switch args[1] {
	case "server", "serve":
		runServer()
		return 0
	case "sweep":
		return runSweepCmd(args[2:], stdout, stderr)
	case "refresh-domains":
		return runRefreshDomainsCmd(args[2:], stdout, stderr)
	case "provision":
		return runProvisionCmd(args[2:], stdout, stderr)
	case "load-geo":
		return runLoadGeoCmd(args[2:], stdout, stderr)
	case "health":
		return runHealthCmd(stdout, stderr)
	case "version", "--version":
		fmt.Fprintf(stdout, "orbitcheck %s\n", version)
		return 0
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	default:
		if args[1][0] == '-' {
			runServer()
			return 0
		}
		fmt.Fprintf(stderr, "Unknown command: %s\n", args[1])
		printUsage(stderr)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "")
	fmt.Fprintf(w, "OrbiCheck %s - data hygiene and order risk for commerce\n", version)
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "USAGE:")
	fmt.Fprintln(w, "  orbitcheck <command> [flags]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "SERVICE:")
	fmt.Fprintln(w, "  server           Run the API server (default)")
	fmt.Fprintln(w, "  health           Check a running server over HTTP")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "OPERATIONS:")
	fmt.Fprintln(w, "  provision        Create a project and mint its credentials")
	fmt.Fprintln(w, "  sweep            Run one log-retention pass (archive + delete)")
	fmt.Fprintln(w, "  refresh-domains  Rebuild the disposable-domain set from its source list")
	fmt.Fprintln(w, "  load-geo         Import country-bounds CSV / GeoNames postal TSV reference data")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  version          Show version information")
	fmt.Fprintln(w, "  help             Show this help")
	fmt.Fprintln(w, "")
}

func runHealthCmd(out, errOut io.Writer) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(errOut, "config: %v\n", err)
		return 1
	}

	resp, err := http.Get("http://localhost:" + cfg.Port + "/health")
	if err != nil {
		fmt.Fprintf(errOut, "Health check failed: %v\n", err)
		return 1
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(errOut, "Health check failed: status %d\n", resp.StatusCode)
		return 1
	}

	fmt.Fprintln(out, "OK")
	return 0
}
