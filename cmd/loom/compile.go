package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/rubintree/loom/compiler"
	"github.com/rubintree/loom/doctrine"
	"github.com/rubintree/loom/graph"
)

func runCompile(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("compile", stderr)
	input := fs.StringP("input", "i", "", "path to an observed graph (JSON-LD or Turtle)")
	format := fs.String("format", "jsonld", "input format: jsonld|turtle")
	doctrinePath := fs.String("doctrine", "", "path to a doctrine.yaml override (defaults used if empty)")
	out := fs.StringP("out", "o", "", "write the sealed artifact's canonical bytes to this path")
	noColor := fs.Bool("no-color", false, "disable colorized output")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *input == "" {
		fmt.Fprintln(stderr, "compile: --input is required")
		return 2
	}
	color.NoColor = *noColor || os.Getenv("NO_COLOR") != ""

	raw, err := os.ReadFile(*input)
	if err != nil {
		fmt.Fprintf(stderr, "compile: read input: %v\n", err)
		return 1
	}

	var snapshot graph.Graph
	switch strings.ToLower(*format) {
	case "jsonld":
		snapshot, err = graph.ParseJSONLD(raw)
	case "turtle":
		snapshot, err = graph.ParseTurtle(raw)
	default:
		fmt.Fprintf(stderr, "compile: unknown --format %q\n", *format)
		return 2
	}
	if err != nil {
		fmt.Fprintf(stderr, "compile: parse input: %v\n", err)
		return 1
	}

	cfg := doctrine.Default()
	if *doctrinePath != "" {
		cfg, err = doctrine.LoadFile(*doctrinePath)
		if err != nil {
			fmt.Fprintf(stderr, "compile: load doctrine: %v\n", err)
			return 1
		}
	}

	artifact, hashA, receipt, err := compiler.Compile(snapshot, cfg, compiler.NewSystemCalendar())
	if err != nil {
		color.New(color.FgRed).Fprintf(stdout, "Rejected: %v\n", err)
		return 1
	}

	color.New(color.FgGreen).Fprintf(stdout, "Proven: compiled successfully\n")
	fmt.Fprintf(stdout, "H(A):        %s\n", hex.EncodeToString(hashA[:]))
	fmt.Fprintf(stdout, "H(O):        %s\n", hex.EncodeToString(receipt.HashO[:]))
	fmt.Fprintf(stdout, "H(doctrine): %s\n", hex.EncodeToString(receipt.HashDoctrine[:]))
	fmt.Fprintf(stdout, "nodes: %d, timers: %d\n", receipt.NodeCount, receipt.TimerCount)

	if *out != "" {
		if err := os.WriteFile(*out, artifact.Marshal(), 0o644); err != nil {
			fmt.Fprintf(stderr, "compile: write artifact: %v\n", err)
			return 1
		}
		fmt.Fprintf(stdout, "wrote %s\n", *out)
	}
	return 0
}
