package main

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/google/uuid"

	"github.com/rubintree/loom/doctrine"
	"github.com/rubintree/loom/executor"
	"github.com/rubintree/loom/ir"
	"github.com/rubintree/loom/mapek"
)

// firing is one recorded (node, pattern) pair from a run's sequence of
// Step calls, kept just long enough to diff two runs positionally.
type firing struct {
	Node    uint32
	Pattern uint8
}

func runCounterfactual(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("counterfactual", stderr)
	baselinePath := fs.StringP("artifact", "a", "", "path to the baseline sealed artifact")
	alternatePath := fs.String("alternate-artifact", "", "path to an alternate sealed artifact (defaults to --artifact)")
	fixturePath := fs.StringP("fixture", "f", "", "path to the recorded external-event fixture")
	doctrinePath := fs.String("doctrine", "", "path to the baseline doctrine.yaml override (defaults used if empty)")
	alternateDoctrinePath := fs.String("alternate-doctrine", "", "path to an alternate doctrine.yaml override (defaults to --doctrine)")
	maxSteps := fs.Int("max-steps", 10000, "abort after this many Step calls without completion, per run")
	noColor := fs.Bool("no-color", false, "disable colorized output")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *baselinePath == "" || *fixturePath == "" {
		fmt.Fprintln(stderr, "counterfactual: --artifact and --fixture are required")
		return 2
	}
	if *alternatePath == "" && *alternateDoctrinePath == "" {
		fmt.Fprintln(stderr, "counterfactual: at least one of --alternate-artifact or --alternate-doctrine is required")
		return 2
	}
	color.NoColor = *noColor || os.Getenv("NO_COLOR") != ""

	f, err := loadFixture(*fixturePath)
	if err != nil {
		fmt.Fprintf(stderr, "counterfactual: load fixture: %v\n", err)
		return 1
	}

	baselineArtifact, err := loadArtifact(*baselinePath)
	if err != nil {
		fmt.Fprintf(stderr, "counterfactual: %v\n", err)
		return 1
	}
	alternateArtifactPath := *alternatePath
	if alternateArtifactPath == "" {
		alternateArtifactPath = *baselinePath
	}
	alternateArtifact, err := loadArtifact(alternateArtifactPath)
	if err != nil {
		fmt.Fprintf(stderr, "counterfactual: %v\n", err)
		return 1
	}

	baselineCfg, err := loadDoctrineOrDefault(*doctrinePath)
	if err != nil {
		fmt.Fprintf(stderr, "counterfactual: load doctrine: %v\n", err)
		return 1
	}
	alternateDoctrinePathResolved := *alternateDoctrinePath
	if alternateDoctrinePathResolved == "" {
		alternateDoctrinePathResolved = *doctrinePath
	}
	alternateCfg, err := loadDoctrineOrDefault(alternateDoctrinePathResolved)
	if err != nil {
		fmt.Fprintf(stderr, "counterfactual: load alternate doctrine: %v\n", err)
		return 1
	}

	baseline, baselineChain, baselineSeq, err := runOnce(baselineArtifact, baselineCfg, f, *maxSteps)
	if err != nil {
		fmt.Fprintf(stderr, "counterfactual: baseline run: %v\n", err)
		return 1
	}
	alternate, alternateChain, alternateSeq, err := runOnce(alternateArtifact, alternateCfg, f, *maxSteps)
	if err != nil {
		fmt.Fprintf(stderr, "counterfactual: alternate run: %v\n", err)
		return 1
	}

	diff := mapek.CounterfactualDiff{
		BaselineOutcome:   stepKindName(baseline.result.Kind),
		AlternateOutcome:  stepKindName(alternate.result.Kind),
		ChainHashDiverged: baselineChain != alternateChain,
		ReceiptDelta:      diffFirings(baseline.firings, alternate.firings),
		SLODelta: map[string]float64{
			"ticks_used": float64(alternate.ticksUsed - baseline.ticksUsed),
			"receipts":   float64(alternateSeq) - float64(baselineSeq),
		},
	}
	printDiff(stdout, diff, baselineSeq, alternateSeq, baseline.ticksUsed, alternate.ticksUsed)
	return 0
}

// diffFirings positionally compares two runs' fired-node sequences,
// reporting every position where the pattern or node diverges, or
// where one run fired and the other had already stopped.
func diffFirings(baseline, alternate []firing) []mapek.ReceiptDiff {
	n := len(baseline)
	if len(alternate) > n {
		n = len(alternate)
	}
	var diffs []mapek.ReceiptDiff
	for i := 0; i < n; i++ {
		var b, a firing
		bOK := i < len(baseline)
		aOK := i < len(alternate)
		if bOK {
			b = baseline[i]
		}
		if aOK {
			a = alternate[i]
		}
		if bOK && aOK && b == a {
			continue
		}
		diffs = append(diffs, mapek.ReceiptDiff{
			Seq:              uint64(i),
			BaselineNode:     b.Node,
			BaselinePattern:  b.Pattern,
			AlternateNode:    a.Node,
			AlternatePattern: a.Pattern,
			BaselineOnly:     bOK && !aOK,
			AlternateOnly:    aOK && !bOK,
		})
	}
	return diffs
}

func loadDoctrineOrDefault(path string) (doctrine.Doctrine, error) {
	if path == "" {
		return doctrine.Default(), nil
	}
	return doctrine.LoadFile(path)
}

type runOutcome struct {
	result    executor.StepResult
	ticksUsed int
	firings   []firing
}

func runOnce(a *ir.Artifact, cfg doctrine.Doctrine, f fixture, maxSteps int) (runOutcome, [32]byte, uint64, error) {
	c, err := executor.Admit(a, uuid.New(), executor.InitialInputs{Roles: f.Roles}, cfg)
	if err != nil {
		return runOutcome{}, [32]byte{}, 0, err
	}
	var firings []firing
	onStep := func(_ int, result executor.StepResult) {
		for _, node := range result.FiredNodes {
			pattern := uint8(0)
			if int(node) < len(a.Nodes) {
				pattern = uint8(a.Nodes[node].Pattern)
			}
			firings = append(firings, firing{Node: node, Pattern: pattern})
		}
	}
	result, chainHash, seq, err := chainRun(c, a, f, maxSteps, onStep)
	if err != nil {
		return runOutcome{}, [32]byte{}, 0, err
	}
	return runOutcome{result: result, ticksUsed: c.TicksUsed, firings: firings}, chainHash, seq, nil
}

func printDiff(stdout io.Writer, d mapek.CounterfactualDiff, baselineReceipts, alternateReceipts uint64, baselineTicks, alternateTicks int) {
	fmt.Fprintf(stdout, "%-22s %-14s %-14s\n", "", "baseline", "alternate")
	fmt.Fprintf(stdout, "%-22s %-14s %-14s\n", "outcome", d.BaselineOutcome, d.AlternateOutcome)
	fmt.Fprintf(stdout, "%-22s %-14d %-14d\n", "receipts", baselineReceipts, alternateReceipts)
	fmt.Fprintf(stdout, "%-22s %-14d %-14d\n", "ticks used", baselineTicks, alternateTicks)
	fmt.Fprintf(stdout, "%-22s %d\n", "diverged receipts", len(d.ReceiptDelta))
	for _, metric := range []string{"ticks_used", "receipts"} {
		fmt.Fprintf(stdout, "%-22s %+g\n", "slo delta:"+metric, d.SLODelta[metric])
	}

	if d.BaselineOutcome == d.AlternateOutcome && !d.ChainHashDiverged {
		color.New(color.FgGreen).Fprintln(stdout, "Proven: alternate run produced an identical outcome")
		return
	}
	color.New(color.FgYellow).Fprintln(stdout, "Diverged: alternate run produced a different outcome or receipt chain")
}
