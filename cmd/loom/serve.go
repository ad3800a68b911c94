package main

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rubintree/loom/doctrine"
	"github.com/rubintree/loom/ir"
	"github.com/rubintree/loom/kvstore"
	"github.com/rubintree/loom/mapek"
	"github.com/rubintree/loom/overlay"
)

const overlayContentTag byte = 0x30

func runServe(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("serve", stderr)
	artifactPath := fs.StringP("artifact", "a", "", "path to the sealed artifact the autonomic loop watches and may promote overlays for")
	specID := fs.String("spec-id", "default", "promotion-index key this artifact is installed under")
	kvPath := fs.String("kv-path", "loom.db", "bbolt file backing the cold-tier promotion index")
	doctrinePath := fs.String("doctrine", "", "path to a doctrine.yaml override (defaults used if empty)")
	listenAddr := fs.String("listen-addr", ":9090", "address the /metrics endpoint listens on")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *artifactPath == "" {
		fmt.Fprintln(stderr, "serve: --artifact is required")
		return 2
	}

	artifact, err := loadArtifact(*artifactPath)
	if err != nil {
		fmt.Fprintf(stderr, "serve: %v\n", err)
		return 1
	}

	cfg := doctrine.Default()
	if *doctrinePath != "" {
		cfg, err = doctrine.LoadFile(*doctrinePath)
		if err != nil {
			fmt.Fprintf(stderr, "serve: load doctrine: %v\n", err)
			return 1
		}
	}

	store, err := kvstore.OpenBolt(*kvPath)
	if err != nil {
		fmt.Fprintf(stderr, "serve: open kv store: %v\n", err)
		return 1
	}
	defer store.Close()
	index := overlay.NewPromotionIndex(store, cfg)

	reg := prometheus.NewRegistry()
	knowledge := mapek.NewKnowledge()
	monitor := mapek.NewMonitor(reg)
	validator := overlay.NewValidator(artifact, cfg).WithCertificateStore(store)

	current := artifact
	execute := func(ctx context.Context, proposal mapek.OverlayProposal) error {
		o := overlayFromPlan(proposal.Plan)
		report, err := validator.Validate(ctx, o)
		if err != nil {
			return err
		}
		if !report.Proven {
			return nil
		}
		next, err := overlay.Apply(current, o)
		if err != nil {
			return err
		}
		prevHash := current.HashA()
		if err := index.Promote(*specID, o, prevHash, next); err != nil {
			return err
		}
		current = next
		return nil
	}

	controller := mapek.NewController(cfg, knowledge, monitor, execute)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := controller.Start(ctx); err != nil {
		fmt.Fprintf(stderr, "serve: start autonomic loop: %v\n", err)
		return 1
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: *listenAddr, Handler: mux}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Fprintf(stderr, "serve: metrics server: %v\n", err)
		}
	}()

	fmt.Fprintf(stdout, "loom serve: listening on %s, spec-id=%s\n", *listenAddr, *specID)
	<-ctx.Done()

	fmt.Fprintln(stdout, "loom serve: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	_ = controller.Stop()
	return 0
}

// overlayFromPlan assembles a validator-ready Overlay from one
// cycle's candidate Plan, computing ID as a tagged content hash over
// the plan's actions so the validator's memoization cache keys on
// what the plan actually proposes rather than its random UUID.
func overlayFromPlan(plan *mapek.Plan) *overlay.Overlay {
	o := &overlay.Overlay{}
	if plan == nil {
		return o
	}
	var preimage []byte
	for _, a := range plan.Actions {
		change := overlay.Change{
			TargetPatternID: a.TargetPatternID,
			Delta:           a.Delta,
			TargetTicks:     a.TargetTicks,
		}
		switch a.Type {
		case mapek.ActionScaleMultiInstance:
			change.Kind = overlay.ChangeScaleMultiInstance
		case mapek.ActionAdjustPerformance:
			change.Kind = overlay.ChangeAdjustPerformance
		case mapek.ActionWidenPolicy:
			change.Kind = overlay.ChangeWidenPolicy
		case mapek.ActionNarrowPolicy:
			change.Kind = overlay.ChangeNarrowPolicy
		}
		if a.HasPolicy {
			change.Policy = a.Policy
		}
		o.Changes = append(o.Changes, change)
		o.Scope.PatternIDs = append(o.Scope.PatternIDs, change.TargetPatternID)
		preimage = append(preimage, encodeChange(change)...)
	}
	o.ID = ir.Hash256(overlayContentTag, preimage)
	return o
}

func encodeChange(c overlay.Change) []byte {
	buf := make([]byte, 0, 24)
	buf = append(buf, byte(c.Kind), c.TargetPatternID)
	var idx [4]byte
	binary.LittleEndian.PutUint32(idx[:], c.TargetNodeIndex)
	buf = append(buf, idx[:]...)
	var delta [4]byte
	binary.LittleEndian.PutUint32(delta[:], uint32(c.Delta))
	buf = append(buf, delta[:]...)
	var ticks [8]byte
	binary.LittleEndian.PutUint64(ticks[:], uint64(int64(c.TargetTicks)))
	buf = append(buf, ticks[:]...)
	return buf
}
