package ir

import (
	"encoding/binary"
	"sort"
)

var magic = [8]byte{'L', 'O', 'O', 'M', 'A', 'R', 'T', '1'}

const artifactVersion uint32 = 1

// Artifact is the sealed, immutable A: packed node/timer records, a
// dense pattern index, a role table, and a content hash. Once Seal
// returns an Artifact it is never mutated.
type Artifact struct {
	HashO        [32]byte
	HashDoctrine [32]byte
	Nodes        []NodeIR
	Timers       []TimerIR
	RoleTable    []byte
	hashA        [32]byte
}

// PatternIndex returns the dense pattern_id → node-index-set table,
// built lazily from Nodes. Index 0 is unused; valid keys are 1..43.
func (a *Artifact) PatternIndex() [MaxPattern + 1][]uint32 {
	var idx [MaxPattern + 1][]uint32
	for _, n := range a.Nodes {
		if n.Pattern.Valid() {
			idx[n.Pattern] = append(idx[n.Pattern], n.Index)
		}
	}
	for p := range idx {
		sort.Slice(idx[p], func(i, j int) bool { return idx[p][i] < idx[p][j] })
	}
	return idx
}

// HashA returns H(A), the trailer content hash, as set by Seal or
// Unmarshal; a zero-value Artifact reports the all-zero hash.
func (a *Artifact) HashA() [32]byte {
	return a.hashA
}

// Seal finalizes the artifact: sorts nodes by index (stability under
// the canonical form, ensuring determinism), computes the trailer hash,
// and returns the artifact ready for Marshal. It is idempotent:
// sealing an already-sealed artifact reproduces the same H(A).
func Seal(hashO, hashDoctrine [32]byte, nodes []NodeIR, timers []TimerIR, roleTable []byte) (*Artifact, error) {
	sorted := append([]NodeIR(nil), nodes...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Index < sorted[j].Index })
	sortedTimers := append([]TimerIR(nil), timers...)
	sort.Slice(sortedTimers, func(i, j int) bool { return sortedTimers[i].NodeIndex < sortedTimers[j].NodeIndex })

	a := &Artifact{
		HashO:        hashO,
		HashDoctrine: hashDoctrine,
		Nodes:        sorted,
		Timers:       sortedTimers,
		RoleTable:    append([]byte(nil), roleTable...),
	}
	body := a.body()
	a.hashA = Hash256(tagTrailer, body)
	return a, nil
}

// body returns every artifact byte preceding the trailer: the exact
// preimage the trailer hash is computed over (the "canonical_trailer
// ... self-hash of all preceding bytes").
func (a *Artifact) body() []byte {
	var buf []byte
	buf = append(buf, magic[:]...)
	var versionFlags [8]byte
	binary.LittleEndian.PutUint32(versionFlags[0:4], artifactVersion)
	buf = append(buf, versionFlags[:]...)
	buf = append(buf, a.HashO[:]...)
	buf = append(buf, a.HashDoctrine[:]...)

	var counts [16]byte
	binary.LittleEndian.PutUint32(counts[0:4], uint32(len(a.Nodes)))
	binary.LittleEndian.PutUint32(counts[4:8], uint32(len(a.Timers)))
	binary.LittleEndian.PutUint64(counts[8:16], uint64(len(magic)+8+32+32+16+len(a.Nodes)*nodeIRWireSize+len(a.Timers)*timerIRWireSize))
	buf = append(buf, counts[:]...)

	for _, n := range a.Nodes {
		buf = append(buf, encodeNode(n)...)
	}
	for _, t := range a.Timers {
		buf = append(buf, encodeTimer(t)...)
	}
	for p, idxs := range a.PatternIndex() {
		var hdr [8]byte
		binary.LittleEndian.PutUint32(hdr[0:4], uint32(p))
		binary.LittleEndian.PutUint32(hdr[4:8], uint32(len(idxs)))
		buf = append(buf, hdr[:]...)
		for _, i := range idxs {
			var b [4]byte
			binary.LittleEndian.PutUint32(b[:], i)
			buf = append(buf, b[:]...)
		}
	}
	buf = append(buf, a.RoleTable...)
	return buf
}

// Marshal serializes the sealed artifact to its canonical byte form,
// trailer included. Round-tripping Marshal/Unmarshal is byte-identical
// (serialize-then-parse of IR yields byte-identical IR).
func (a *Artifact) Marshal() []byte {
	body := a.body()
	return append(body, a.hashA[:]...)
}

// Unmarshal parses a sealed artifact and verifies its trailer hash.
func Unmarshal(b []byte) (*Artifact, error) {
	const headerFixed = 8 + 8 + 32 + 32 + 16
	if len(b) < headerFixed+32 {
		return nil, coded(ErrMalformedRecord, "artifact: truncated header")
	}
	if string(b[0:8]) != string(magic[:]) {
		return nil, coded(ErrMalformedRecord, "artifact: bad magic")
	}
	off := 16 // skip magic + version/flags
	var hashO, hashDoctrine [32]byte
	copy(hashO[:], b[off:off+32])
	off += 32
	copy(hashDoctrine[:], b[off:off+32])
	off += 32
	nodeCount := binary.LittleEndian.Uint32(b[off : off+4])
	timerCount := binary.LittleEndian.Uint32(b[off+4 : off+8])
	off += 16 // counts(8) + pattern_index_offset(8)

	nodes := make([]NodeIR, 0, nodeCount)
	for i := uint32(0); i < nodeCount; i++ {
		if off+nodeIRWireSize > len(b) {
			return nil, coded(ErrMalformedRecord, "artifact: truncated node array")
		}
		n, err := decodeNode(b[off : off+nodeIRWireSize])
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
		off += nodeIRWireSize
	}
	timers := make([]TimerIR, 0, timerCount)
	for i := uint32(0); i < timerCount; i++ {
		if off+timerIRWireSize > len(b) {
			return nil, coded(ErrMalformedRecord, "artifact: truncated timer array")
		}
		t, err := decodeTimer(b[off : off+timerIRWireSize])
		if err != nil {
			return nil, err
		}
		timers = append(timers, t)
		off += timerIRWireSize
	}
	for p := 0; p <= int(MaxPattern); p++ {
		if off+8 > len(b) {
			return nil, coded(ErrMalformedRecord, "artifact: truncated pattern index header")
		}
		count := binary.LittleEndian.Uint32(b[off+4 : off+8])
		off += 8
		sz := int(count) * 4
		if off+sz > len(b) {
			return nil, coded(ErrMalformedRecord, "artifact: truncated pattern index body")
		}
		off += sz
	}
	if off+32 > len(b) {
		return nil, coded(ErrMalformedRecord, "artifact: truncated trailer")
	}
	roleTable := append([]byte(nil), b[off:len(b)-32]...)
	var trailer [32]byte
	copy(trailer[:], b[len(b)-32:])

	a := &Artifact{
		HashO:        hashO,
		HashDoctrine: hashDoctrine,
		Nodes:        nodes,
		Timers:       timers,
		RoleTable:    roleTable,
		hashA:        trailer,
	}
	if !a.Verify() {
		return nil, coded(ErrTrailerMismatch, "artifact: trailer hash mismatch")
	}
	return a, nil
}

// Verify recomputes the trailer hash and compares it against the
// stored H(A), the mechanism behind invariant 1 (content addressing).
func (a *Artifact) Verify() bool {
	return Hash256(tagTrailer, a.body()) == a.hashA
}
