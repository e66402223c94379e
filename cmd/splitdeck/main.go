// Command splitdeck runs a browser-based terminal workspace: tabs of split
// panes served over a local web server, plus a status dashboard and a
// quick-launch helper for running servers.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/splitdeck/splitdeck/internal/ui"
)

// version is stamped by release builds via -ldflags.
var version = "dev"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "web":
		handleWeb(os.Args[2:])
	case "status":
		handleStatus(os.Args[2:])
	case "open":
		handleOpen(os.Args[2:])
	case "version", "--version", "-v":
		fmt.Printf("splitdeck %s\n", version)
	case "help", "--help", "-h":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command %q\n\n", os.Args[1])
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("Usage: splitdeck <command> [options]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  web      Start the web server hosting the terminal workspace")
	fmt.Println("  status   Inspect tabs, panes and resumable sessions in a TUI")
	fmt.Println("  open     Open a project as a new tab on a running server")
	fmt.Println("  version  Print the version")
	fmt.Println()
	fmt.Println("Run 'splitdeck <command> -h' for command options.")
}

// handleStatus runs the read-only workspace dashboard.
func handleStatus(args []string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	profile := fs.String("profile", "", "Profile to inspect (default $SPLITDECK_PROFILE or \"default\")")

	fs.Usage = func() {
		fmt.Println("Usage: splitdeck status [options]")
		fmt.Println()
		fmt.Println("Show the persisted workspace: tabs, panes and resumable sessions.")
		fmt.Println()
		fmt.Println("Options:")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(os.Stderr, "Error: unexpected arguments: %v\n", fs.Args())
		fs.Usage()
		os.Exit(1)
	}

	if err := ui.Run(*profile); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
