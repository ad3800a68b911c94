package receipt

import (
	"github.com/google/uuid"
)

// KVGetter is the narrow read contract Verify needs from cold
// storage: everything else the kvstore package adds (Put, CAS, scan)
// is irrelevant to verification.
type KVGetter interface {
	Get(key []byte) ([]byte, bool, error)
}

// Verify reports whether the receipt (caseID, seq) is accounted for:
// first by finding it in ring's live window, otherwise by checking
// that seq lies in fold's [MinSeq, MaxSeq] range and that a record for
// that fold exists in store. It checks presence only: no leaf or fold
// hash is recomputed or compared.
func Verify(store KVGetter, ring *Ring, fold FoldRecord, caseID uuid.UUID, seq uint64) (bool, error) {
	for _, r := range ring.Window() {
		if r.CaseID == caseID && r.Seq == seq {
			return true, nil
		}
	}
	if fold.Count > 0 && seq >= fold.MinSeq && seq <= fold.MaxSeq {
		key := foldKey(caseID, fold.MinSeq, fold.MaxSeq)
		_, ok, err := store.Get(key)
		if err != nil {
			return false, err
		}
		return ok, nil
	}
	return false, nil
}

func foldKey(caseID uuid.UUID, minSeq, maxSeq uint64) []byte {
	idBytes, _ := caseID.MarshalBinary()
	key := make([]byte, 0, 16+8+8)
	key = append(key, idBytes...)
	key = append(key, encodeSeq(minSeq)...)
	key = append(key, encodeSeq(maxSeq)...)
	return key
}

func encodeSeq(s uint64) []byte {
	b := make([]byte, 8)
	for i := 0; i < 8; i++ {
		b[i] = byte(s >> (8 * uint(7-i)))
	}
	return b
}
