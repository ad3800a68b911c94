// Command loom compiles observed graphs into sealed artifacts, steps
// cases against them, and runs the warm-tier autonomic loop. Output
// defaults to out=os.Stdout/err=os.Stderr, both overridable so tests
// can capture them.
package main

import (
	"fmt"
	"io"
	"os"

	flag "github.com/spf13/pflag"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		printUsage(stderr)
		return 2
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "compile":
		return runCompile(rest, stdout, stderr)
	case "run":
		return runRun(rest, stdout, stderr)
	case "replay":
		return runReplay(rest, stdout, stderr)
	case "counterfactual":
		return runCounterfactual(rest, stdout, stderr)
	case "serve":
		return runServe(rest, stdout, stderr)
	case "-h", "--help", "help":
		printUsage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command %q\n", cmd)
		printUsage(stderr)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `loom - core workflow execution engine

Usage:
  loom <command> [flags]

Commands:
  compile         compile an observed graph into a sealed artifact
  run             admit a case against an artifact and step it to completion
  replay          re-run a case's receipt chain against a fixed artifact
  counterfactual  re-run a case's receipt chain against an alternate artifact
  serve           start the warm-tier autonomic loop and a metrics endpoint

Run 'loom <command> --help' for flags specific to a command.
`)
}

func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}
