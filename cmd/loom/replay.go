package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/google/uuid"

	"github.com/rubintree/loom/doctrine"
	"github.com/rubintree/loom/executor"
)

// runReplay reruns a recorded observable segment against a fixed
// artifact with no wall clock: every timer event the original run saw
// must be present in the fixture's event list, drawn from recorded
// TimerIR plans rather than the system clock. Bit-identical chain
// hashes across runs is the conformance test for determinism.
func runReplay(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("replay", stderr)
	artifactPath := fs.StringP("artifact", "a", "", "path to the sealed artifact the trace was recorded against")
	fixturePath := fs.StringP("fixture", "f", "", "path to the recorded external-event fixture")
	doctrinePath := fs.String("doctrine", "", "path to a doctrine.yaml override (defaults used if empty)")
	expectChainHash := fs.String("expect-chain-hash", "", "hex chain hash the recorded run produced, to verify bit-identical replay")
	maxSteps := fs.Int("max-steps", 10000, "abort after this many Step calls without completion")
	noColor := fs.Bool("no-color", false, "disable colorized output")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *artifactPath == "" || *fixturePath == "" {
		fmt.Fprintln(stderr, "replay: --artifact and --fixture are required")
		return 2
	}
	color.NoColor = *noColor || os.Getenv("NO_COLOR") != ""

	artifact, err := loadArtifact(*artifactPath)
	if err != nil {
		fmt.Fprintf(stderr, "replay: %v\n", err)
		return 1
	}
	f, err := loadFixture(*fixturePath)
	if err != nil {
		fmt.Fprintf(stderr, "replay: load fixture: %v\n", err)
		return 1
	}
	cfg := doctrine.Default()
	if *doctrinePath != "" {
		cfg, err = doctrine.LoadFile(*doctrinePath)
		if err != nil {
			fmt.Fprintf(stderr, "replay: load doctrine: %v\n", err)
			return 1
		}
	}

	c, err := executor.Admit(artifact, uuid.New(), executor.InitialInputs{Roles: f.Roles}, cfg)
	if err != nil {
		color.New(color.FgRed).Fprintf(stdout, "Rejected: admission failed: %v\n", err)
		return 1
	}

	result, chainHash, seq, err := chainRun(c, artifact, f, *maxSteps, nil)
	if err != nil {
		fmt.Fprintf(stderr, "replay: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "outcome: %s (%s)\n", stepKindName(result.Kind), result.Reason)
	fmt.Fprintf(stdout, "receipts: %d, chain hash: %s\n", seq, hex.EncodeToString(chainHash[:]))

	if *expectChainHash == "" {
		return 0
	}
	want, err := hex.DecodeString(*expectChainHash)
	if err != nil {
		fmt.Fprintf(stderr, "replay: --expect-chain-hash: %v\n", err)
		return 2
	}
	if hex.EncodeToString(chainHash[:]) == hex.EncodeToString(want) {
		color.New(color.FgGreen).Fprintln(stdout, "Proven: replay is bit-identical to the recorded trace")
		return 0
	}
	color.New(color.FgRed).Fprintln(stdout, "Rejected: replay diverged from the recorded trace")
	return 1
}

func stepKindName(k executor.StepKind) string {
	switch k {
	case executor.StepCompleted:
		return "Completed"
	case executor.StepBlocked:
		return "Blocked"
	case executor.StepFault:
		return "Fault"
	case executor.StepCancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}
