package receipt

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/rubintree/loom/ir"
)

func sampleReceipts(caseID uuid.UUID, n int) []Receipt {
	out := make([]Receipt, n)
	for i := 0; i < n; i++ {
		out[i] = Receipt{
			CaseID:           caseID,
			Seq:              uint64(i),
			SrcNode:          uint32(i),
			DstMask:          ir.Mask128{}.Set(uint32(i + 1)),
			PatternID:        1,
			DeltaTimestampNS: int64(i * 1000),
		}
	}
	return out
}

func TestRingAppendAssignsSequentialSeq(t *testing.T) {
	r := NewRing(8)
	caseID := uuid.New()
	for i, rcpt := range sampleReceipts(caseID, 4) {
		seq := r.Append(rcpt)
		require.Equal(t, uint64(i), seq)
	}
	require.Equal(t, 4, r.Len())
}

func TestRingEvictsOldestWhenFull(t *testing.T) {
	r := NewRing(2)
	caseID := uuid.New()
	for _, rcpt := range sampleReceipts(caseID, 5) {
		r.Append(rcpt)
	}
	require.Equal(t, 2, r.Len())
	window := r.Window()
	require.Equal(t, uint64(3), window[0].Seq)
	require.Equal(t, uint64(4), window[1].Seq)
}

func TestChainHashChangesPerReceipt(t *testing.T) {
	caseID := uuid.New()
	receipts := sampleReceipts(caseID, 2)
	var chain [32]byte
	h1 := ChainHash(chain, receipts[0])
	h2 := ChainHash(h1, receipts[1])
	require.NotEqual(t, h1, h2)
	require.NotEqual(t, chain, h1)
}

func TestFoldIsDeterministic(t *testing.T) {
	caseID := uuid.New()
	window := sampleReceipts(caseID, 8)
	f1 := Fold(window, FoldRecord{})
	f2 := Fold(window, FoldRecord{})
	require.Equal(t, f1, f2)
	require.Equal(t, uint64(8), f1.Count)
	require.Equal(t, uint64(0), f1.MinSeq)
	require.Equal(t, uint64(7), f1.MaxSeq)
}

func TestFoldChainsPriorRoot(t *testing.T) {
	caseID := uuid.New()
	first := Fold(sampleReceipts(caseID, 4), FoldRecord{})
	second := Fold(sampleReceipts(caseID, 4), first)
	require.Equal(t, uint64(8), second.Count)
	require.NotEqual(t, first.CombinedHash, second.CombinedHash)
}

func TestFoldHandlesOddWindow(t *testing.T) {
	caseID := uuid.New()
	window := sampleReceipts(caseID, 5)
	f := Fold(window, FoldRecord{})
	require.Equal(t, uint64(5), f.Count)
}

func TestElideRecordsIdempotentReceipt(t *testing.T) {
	f := FoldRecord{}
	state := [32]byte{1, 2, 3}
	elided := Elide(&f, Receipt{}, state, state)
	require.True(t, elided)
	require.Equal(t, uint64(1), f.ElidedCount)

	elided = Elide(&f, Receipt{}, state, [32]byte{9})
	require.False(t, elided)
	require.Equal(t, uint64(1), f.ElidedCount)
}

type fakeStore struct {
	data map[string][]byte
}

func (s *fakeStore) Get(key []byte) ([]byte, bool, error) {
	v, ok := s.data[string(key)]
	return v, ok, nil
}

func TestVerifyFindsLiveRingReceipt(t *testing.T) {
	caseID := uuid.New()
	r := NewRing(8)
	for _, rcpt := range sampleReceipts(caseID, 3) {
		r.Append(rcpt)
	}
	ok, err := Verify(&fakeStore{data: map[string][]byte{}}, r, FoldRecord{}, caseID, 1)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestVerifyFallsBackToFold(t *testing.T) {
	caseID := uuid.New()
	r := NewRing(8) // empty: the window has already been folded away
	fold := FoldRecord{Count: 4, MinSeq: 0, MaxSeq: 3}
	key := foldKey(caseID, 0, 3)
	store := &fakeStore{data: map[string][]byte{string(key): {1}}}

	ok, err := Verify(store, r, fold, caseID, 2)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestVerifyMissingReturnsFalse(t *testing.T) {
	caseID := uuid.New()
	r := NewRing(8)
	ok, err := Verify(&fakeStore{data: map[string][]byte{}}, r, FoldRecord{}, caseID, 99)
	require.NoError(t, err)
	require.False(t, ok)
}
