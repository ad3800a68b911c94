// Package receipt implements Γ: the append-only, hash-chained
// transition log and its logarithmic-growth fold tree.
package receipt

import (
	"crypto/sha3"
	"encoding/binary"

	"github.com/google/uuid"

	"github.com/rubintree/loom/ir"
)

// Receipt is one hot-path transition record. Fields are small
// integers only, no free-form data, matching the "never logs, never
// allocates beyond its own struct" discipline of the executor that
// produces it. DstMask is the full 128-bit token mask: a workflow's
// node count is bounded only by Mask128's width, so a narrower field
// would silently drop destinations at index >= 32.
type Receipt struct {
	CaseID           uuid.UUID
	Seq              uint64
	SrcNode          uint32
	DstMask          ir.Mask128
	PatternID        uint8
	DeltaTimestampNS int64
	FoldPtr          uint64
}

const (
	leafTag byte = 0x40
	nodeTag byte = 0x41
)

func encodeReceipt(r Receipt) []byte {
	buf := make([]byte, 0, 16+8+4+16+1+8+8)
	idBytes, _ := r.CaseID.MarshalBinary()
	buf = append(buf, idBytes...)
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], r.Seq)
	buf = append(buf, tmp[:]...)
	var tmp4 [4]byte
	binary.LittleEndian.PutUint32(tmp4[:], r.SrcNode)
	buf = append(buf, tmp4[:]...)
	binary.LittleEndian.PutUint64(tmp[:], r.DstMask[0])
	buf = append(buf, tmp[:]...)
	binary.LittleEndian.PutUint64(tmp[:], r.DstMask[1])
	buf = append(buf, tmp[:]...)
	buf = append(buf, r.PatternID)
	binary.LittleEndian.PutUint64(tmp[:], uint64(r.DeltaTimestampNS))
	buf = append(buf, tmp[:]...)
	binary.LittleEndian.PutUint64(tmp[:], r.FoldPtr)
	buf = append(buf, tmp[:]...)
	return buf
}

// leafHash returns the domain-separated leaf hash of one receipt, the
// unit the fold tree combines.
func leafHash(r Receipt) [32]byte {
	return hash256(leafTag, encodeReceipt(r))
}

func hash256(tag byte, b []byte) [32]byte {
	h := sha3.New256()
	h.Write([]byte{tag})
	h.Write(b)
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// ChainHash returns chain_hash_i = H(chain_hash_{i-1} ‖ receipt_i),
// the linear per-case chain a verifier walks to confirm integrity.
func ChainHash(prevChainHash [32]byte, r Receipt) [32]byte {
	buf := make([]byte, 0, 32+len(encodeReceipt(r)))
	buf = append(buf, prevChainHash[:]...)
	buf = append(buf, encodeReceipt(r)...)
	return hash256(nodeTag, buf)
}
