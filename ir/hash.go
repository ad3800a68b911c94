package ir

import (
	"crypto/sha3"

	"golang.org/x/crypto/blake2b"
)

// Domain-separation tags for tagged hashing, one per record kind, so a
// NodeIR hash can never collide with a TimerIR hash or a fold-tree node
// hash under the same preimage bytes.
const (
	tagNodeLeaf  byte = 0x10
	tagTimerLeaf byte = 0x11
	tagTrailer   byte = 0x1F
)

// Hash256 computes the canonical content hash used for H(A), the
// artifact trailer: SHA3-256 over a tagged preimage. H(O) is computed
// by the graph package itself.
func Hash256(tag byte, b []byte) [32]byte {
	buf := make([]byte, 0, 1+len(b))
	buf = append(buf, tag)
	buf = append(buf, b...)
	return sha3.Sum256(buf)
}

// FastHash256 is a blake2b-256 tagged hash, an alternative to Hash256
// where SHA3's external verifiability is not required and throughput
// matters more. The overlay validator's cache does not use it: that
// cache is keyed by the caller-supplied Overlay.ID.
func FastHash256(tag byte, b []byte) [32]byte {
	h, _ := blake2b.New256(nil)
	h.Write([]byte{tag})
	h.Write(b)
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

func hashNode(n NodeIR) [32]byte {
	return Hash256(tagNodeLeaf, encodeNode(n))
}

func hashTimer(t TimerIR) [32]byte {
	return Hash256(tagTimerLeaf, encodeTimer(t))
}
