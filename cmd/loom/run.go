package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/google/uuid"

	"github.com/rubintree/loom/doctrine"
	"github.com/rubintree/loom/executor"
	"github.com/rubintree/loom/ir"
)

func runRun(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("run", stderr)
	artifactPath := fs.StringP("artifact", "a", "", "path to a sealed artifact (produced by 'loom compile --out')")
	rolesPath := fs.String("roles", "", "path to a JSON object of role bindings (optional)")
	fixturePath := fs.String("fixture", "", "path to a recorded external-event fixture (optional)")
	doctrinePath := fs.String("doctrine", "", "path to a doctrine.yaml override (defaults used if empty)")
	maxSteps := fs.Int("max-steps", 10000, "abort after this many Step calls without completion")
	noColor := fs.Bool("no-color", false, "disable colorized output")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *artifactPath == "" {
		fmt.Fprintln(stderr, "run: --artifact is required")
		return 2
	}
	color.NoColor = *noColor || os.Getenv("NO_COLOR") != ""

	artifact, err := loadArtifact(*artifactPath)
	if err != nil {
		fmt.Fprintf(stderr, "run: %v\n", err)
		return 1
	}

	cfg := doctrine.Default()
	if *doctrinePath != "" {
		cfg, err = doctrine.LoadFile(*doctrinePath)
		if err != nil {
			fmt.Fprintf(stderr, "run: load doctrine: %v\n", err)
			return 1
		}
	}

	var f fixture
	if *fixturePath != "" {
		f, err = loadFixture(*fixturePath)
		if err != nil {
			fmt.Fprintf(stderr, "run: load fixture: %v\n", err)
			return 1
		}
	}
	roles := f.Roles
	if roles == nil {
		roles = map[string]string{}
	}
	if *rolesPath != "" {
		raw, err := os.ReadFile(*rolesPath)
		if err != nil {
			fmt.Fprintf(stderr, "run: read roles: %v\n", err)
			return 1
		}
		if err := json.Unmarshal(raw, &roles); err != nil {
			fmt.Fprintf(stderr, "run: parse roles: %v\n", err)
			return 1
		}
	}

	caseID := uuid.New()
	c, err := executor.Admit(artifact, caseID, executor.InitialInputs{Roles: roles}, cfg)
	if err != nil {
		color.New(color.FgRed).Fprintf(stdout, "Rejected: admission failed: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "case: %s\n", caseID)

	result, chainHash, seq, err := chainRun(c, artifact, f, *maxSteps, func(step int, r executor.StepResult) {
		if len(r.FiredNodes) > 0 {
			fmt.Fprintf(stdout, "  step %d: fired=%v\n", step, r.FiredNodes)
		}
	})
	if err != nil {
		color.New(color.FgRed).Fprintf(stdout, "Fault: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "receipts: %d, chain hash: %s\n", seq, hex.EncodeToString(chainHash[:]))

	switch result.Kind {
	case executor.StepCompleted:
		color.New(color.FgGreen).Fprintf(stdout, "Completed: %s\n", result.Reason)
		return 0
	case executor.StepFault:
		color.New(color.FgRed).Fprintf(stdout, "Faulted: %s\n", result.Reason)
		return 1
	case executor.StepCancelled:
		color.New(color.FgYellow).Fprintf(stdout, "Cancelled: %s\n", result.Reason)
		return 0
	case executor.StepBlocked:
		color.New(color.FgYellow).Fprintf(stdout, "Blocked: %s (ticks used: %d)\n", result.Reason, c.TicksUsed)
		return 0
	}

	fmt.Fprintf(stderr, "run: exceeded --max-steps=%d without reaching a terminal state\n", *maxSteps)
	return 1
}

func loadArtifact(path string) (*ir.Artifact, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	a, err := ir.Unmarshal(raw)
	if err != nil {
		return nil, fmt.Errorf("unmarshal artifact: %w", err)
	}
	return a, nil
}
