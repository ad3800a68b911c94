package overlay

import (
	"context"
	"testing"

	"github.com/rubintree/loom/doctrine"
	"github.com/rubintree/loom/ir"
	"github.com/rubintree/loom/kvstore"
	"github.com/stretchr/testify/require"
)

func buildArtifact(t *testing.T) *ir.Artifact {
	t.Helper()
	nodes := []ir.NodeIR{
		{Index: 0, Pattern: ir.PatternSequence, InMask: ir.Mask128{}, OutMask: ir.Mask128{}.Set(1)},
		{Index: 1, Pattern: ir.PatternImplicitTermination, InMask: ir.Mask128{}.Set(0)},
	}
	a, err := ir.Seal([32]byte{1}, [32]byte{2}, nodes, nil, nil)
	require.NoError(t, err)
	return a
}

func TestValidateAcceptsWellScopedOverlay(t *testing.T) {
	a := buildArtifact(t)
	d := doctrine.Default()
	v := NewValidator(a, d)

	o := &Overlay{
		ID:      [32]byte{9},
		Scope:   Scope{PatternIDs: []uint8{uint8(ir.PatternSequence)}},
		Changes: []Change{{Kind: ChangeAdjustPerformance, TargetTicks: 4}},
	}

	report, err := v.Validate(context.Background(), o)
	require.NoError(t, err)
	require.True(t, report.Proven)
	require.True(t, o.IsProven())
	require.Equal(t, Proven, o.State)
}

func TestValidateRejectsUnknownPattern(t *testing.T) {
	a := buildArtifact(t)
	v := NewValidator(a, doctrine.Default())

	o := &Overlay{ID: [32]byte{1}, Scope: Scope{PatternIDs: []uint8{200}}}
	report, err := v.Validate(context.Background(), o)
	require.NoError(t, err)
	require.False(t, report.Proven)
	require.Equal(t, Rejected, o.State)
	require.False(t, o.IsProven())
}

func TestValidateRejectsPerformanceOverrun(t *testing.T) {
	a := buildArtifact(t)
	d := doctrine.Default()
	v := NewValidator(a, d)

	o := &Overlay{
		ID:      [32]byte{2},
		Changes: []Change{{Kind: ChangeAdjustPerformance, TargetTicks: d.MaxExecTicks + 1}},
	}
	report, err := v.Validate(context.Background(), o)
	require.NoError(t, err)
	require.False(t, report.Proven)
}

func TestValidateRejectsGuardViolation(t *testing.T) {
	a := buildArtifact(t)
	d := doctrine.Default()
	v := NewValidator(a, d)

	o := &Overlay{
		ID:      [32]byte{3},
		Changes: []Change{{Kind: ChangeScaleMultiInstance, Delta: int32(d.MaxRunLen) + 1}},
	}
	report, err := v.Validate(context.Background(), o)
	require.NoError(t, err)
	require.False(t, report.Proven)
}

func TestValidateMemoizesByOverlayID(t *testing.T) {
	a := buildArtifact(t)
	v := NewValidator(a, doctrine.Default())

	o1 := &Overlay{ID: [32]byte{7}}
	report1, err := v.Validate(context.Background(), o1)
	require.NoError(t, err)

	o2 := &Overlay{ID: [32]byte{7}}
	report2, err := v.Validate(context.Background(), o2)
	require.NoError(t, err)

	require.Equal(t, report1, report2)
	require.Equal(t, o1.State, o2.State)
}

func TestPromoteRefusesUnprovenOverlay(t *testing.T) {
	idx := NewPromotionIndex(&fakeStore{data: map[string]string{}}, doctrine.Default())
	o := &Overlay{ID: [32]byte{1}, State: Unproven}
	a := buildArtifact(t)
	err := idx.Promote("spec-a", o, [32]byte{}, a)
	require.Error(t, err)
}

func TestPromoteRejectsBeyondConcurrencyCap(t *testing.T) {
	d := doctrine.Default()
	d.MaxConcurrentAdaptations = 1
	idx := NewPromotionIndex(&fakeStore{data: map[string]string{}}, d)

	release, err := idx.BeginAdaptation("spec-a")
	require.NoError(t, err)
	require.Equal(t, 1, idx.InFlightAdaptations())

	o := &Overlay{ID: [32]byte{2}}
	markProven(o)
	a := buildArtifact(t)
	err = idx.Promote("spec-b", o, [32]byte{}, a)
	require.Error(t, err)
	var ce *CodedError
	require.ErrorAs(t, err, &ce)
	require.Equal(t, ErrConcurrencyCapped, ce.Code)

	release()
	require.Equal(t, 0, idx.InFlightAdaptations())
	err = idx.Promote("spec-b", o, [32]byte{}, a)
	require.NoError(t, err)
}

func TestValidatePersistsProofCertificate(t *testing.T) {
	a := buildArtifact(t)
	d := doctrine.Default()
	store := &fakeStore{data: map[string]string{}}
	v := NewValidator(a, d).WithCertificateStore(store)

	o := &Overlay{
		ID:      [32]byte{11},
		Scope:   Scope{PatternIDs: []uint8{uint8(ir.PatternSequence)}},
		Changes: []Change{{Kind: ChangeAdjustPerformance, TargetTicks: 4}},
	}
	report, err := v.Validate(context.Background(), o)
	require.NoError(t, err)
	require.True(t, report.Proven)

	cert, ok, err := LoadCertificate(store, o.ID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, o.ID, cert.OverlayID)
	require.Equal(t, report.Obligations, cert.ObligationResults)
	require.NotEqual(t, [32]byte{}, cert.Hash)
}

type fakeStore struct {
	data map[string]string
}

func (s *fakeStore) Get(key []byte) ([]byte, bool, error) {
	v, ok := s.data[string(key)]
	if !ok {
		return nil, false, nil
	}
	return []byte(v), true, nil
}
func (s *fakeStore) Put(key, value []byte) error {
	s.data[string(key)] = string(value)
	return nil
}
func (s *fakeStore) CompareAndSwap(key, oldValue, newValue []byte) (bool, error) {
	cur, ok := s.data[string(key)]
	if ok != (len(oldValue) > 0) || (ok && cur != string(oldValue)) {
		return false, nil
	}
	s.data[string(key)] = string(newValue)
	return true, nil
}
func (s *fakeStore) ScanPrefix(prefix []byte) ([]kvstore.KV, error) {
	return nil, nil
}
func (s *fakeStore) Close() error { return nil }
