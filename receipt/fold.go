package receipt

// FoldRecord is a tier-1/tier-2 fold: a contiguous receipt range
// replaced by (count, min_seq, max_seq, combined_hash), plus the
// elision count Elide records rather than mutating a retained leaf.
type FoldRecord struct {
	Count        uint64
	MinSeq       uint64
	MaxSeq       uint64
	CombinedHash [32]byte
	ElidedCount  uint64
}

// Fold combines window (a contiguous, in-order receipt range) with
// prior into a new FoldRecord, using a position-aware Merkle pairing
// — explicitly not XOR, which hides swapped-pair tampering — with the
// odd-node carry-forward rule.
// When prior.Count > 0 its CombinedHash is folded in as the leftmost
// leaf, so repeated folding over time produces one chain of fold
// roots rather than a forest.
func Fold(window []Receipt, prior FoldRecord) FoldRecord {
	if len(window) == 0 {
		return prior
	}

	leaves := make([][32]byte, 0, len(window)+1)
	if prior.Count > 0 {
		leaves = append(leaves, prior.CombinedHash)
	}
	for _, r := range window {
		leaves = append(leaves, leafHash(r))
	}

	root := merkleFold(leaves)

	minSeq := window[0].Seq
	if prior.Count > 0 && prior.MinSeq < minSeq {
		minSeq = prior.MinSeq
	}
	maxSeq := window[len(window)-1].Seq

	return FoldRecord{
		Count:        prior.Count + uint64(len(window)),
		MinSeq:       minSeq,
		MaxSeq:       maxSeq,
		CombinedHash: root,
		ElidedCount:  prior.ElidedCount,
	}
}

// merkleFold folds a leaf-hash level up to a single root, pairing
// adjacent hashes and carrying an odd trailing hash forward unchanged.
func merkleFold(level [][32]byte) [32]byte {
	if len(level) == 1 {
		return level[0]
	}
	for len(level) > 1 {
		next := make([][32]byte, 0, (len(level)+1)/2)
		for i := 0; i < len(level); {
			if i == len(level)-1 {
				next = append(next, level[i])
				i++
				continue
			}
			buf := make([]byte, 0, 64)
			buf = append(buf, level[i][:]...)
			buf = append(buf, level[i+1][:]...)
			next = append(next, hash256(nodeTag, buf))
			i += 2
		}
		level = next
	}
	return level[0]
}

// Elide reports whether r is idempotent against the state produced by
// the immediately preceding receipt (hash(state_i) == hash(state_{i-1})),
// updating fold's elision count if so. The caller is responsible for
// not appending an elided receipt as a new leaf; the fold's
// CombinedHash is never recomputed by Elide itself.
func Elide(fold *FoldRecord, r Receipt, prevStateHash, curStateHash [32]byte) bool {
	_ = r
	if prevStateHash != curStateHash {
		return false
	}
	fold.ElidedCount++
	return true
}
