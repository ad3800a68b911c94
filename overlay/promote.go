package overlay

import (
	"fmt"
	"sync"

	"github.com/rubintree/loom/doctrine"
	"github.com/rubintree/loom/ir"
	"github.com/rubintree/loom/kvstore"
)

// PromotionIndex is the cold-storage CAS point: one installed-hash
// entry per spec id. Installed versions of A for a given spec id form
// a totally-ordered chain under Λ. It also enforces doctrine's
// max_concurrent_adaptations: the count of adaptations admitted but
// not yet resolved, across every spec id, may never exceed the cap.
type PromotionIndex struct {
	store    kvstore.Store
	doctrine doctrine.Doctrine

	mu        sync.Mutex
	inFlight  map[string]int
	totalOpen int
}

// NewPromotionIndex wraps store for promotion bookkeeping, enforcing
// d's concurrency cap on every Promote call.
func NewPromotionIndex(store kvstore.Store, d doctrine.Doctrine) *PromotionIndex {
	return &PromotionIndex{store: store, doctrine: d, inFlight: make(map[string]int)}
}

func indexKey(specID string) []byte {
	return append([]byte("index:workflow:"), specID...)
}

// Installed returns the currently-installed artifact hash for specID,
// or false if nothing has been promoted yet.
func (idx *PromotionIndex) Installed(specID string) ([32]byte, bool, error) {
	v, ok, err := idx.store.Get(indexKey(specID))
	if err != nil || !ok {
		return [32]byte{}, false, err
	}
	var h [32]byte
	copy(h[:], v)
	return h, true, nil
}

// InFlightAdaptations returns the number of adaptations currently
// admitted and not yet released, across every spec id.
func (idx *PromotionIndex) InFlightAdaptations() int {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.totalOpen
}

// BeginAdaptation admits one adaptation attempt for specID, refusing
// it with ErrConcurrencyCapped if doctrine.MaxConcurrentAdaptations
// adaptations are already in flight anywhere in the system. The
// returned release func must be called exactly once regardless of how
// the attempt ends; Promote calls it automatically when it is the one
// to admit the attempt. A non-positive cap disables the check.
func (idx *PromotionIndex) BeginAdaptation(specID string) (release func(), err error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.doctrine.MaxConcurrentAdaptations > 0 && idx.totalOpen >= idx.doctrine.MaxConcurrentAdaptations {
		return nil, coded(ErrConcurrencyCapped, fmt.Sprintf("max_concurrent_adaptations reached (%d)", idx.doctrine.MaxConcurrentAdaptations))
	}
	idx.totalOpen++
	idx.inFlight[specID]++
	var once sync.Once
	release = func() {
		once.Do(func() {
			idx.mu.Lock()
			defer idx.mu.Unlock()
			idx.totalOpen--
			idx.inFlight[specID]--
			if idx.inFlight[specID] <= 0 {
				delete(idx.inFlight, specID)
			}
		})
	}
	return release, nil
}

// Promote installs overlay o's resulting artifact under specID via
// compare-and-swap against prevHash, first admitting the attempt
// against doctrine's concurrency cap. On CAS loss the caller (normally
// mapek.Controller's ExecuteFunc) is responsible for re-deriving the
// overlay against the new base and re-validating — Promote itself
// only reports the race rather than retrying internally.
func (idx *PromotionIndex) Promote(specID string, o *Overlay, prevHash [32]byte, newArtifact *ir.Artifact) error {
	if !o.IsProven() {
		return coded(ErrNotProven, "overlay is not Proven")
	}
	release, err := idx.BeginAdaptation(specID)
	if err != nil {
		return err
	}
	defer release()

	newHash := newArtifact.HashA()
	// A zero prevHash means nothing is installed yet: a nil expected
	// value asks the store for an absent key.
	var expected []byte
	if prevHash != ([32]byte{}) {
		expected = prevHash[:]
	}
	ok, err := idx.store.CompareAndSwap(indexKey(specID), expected, newHash[:])
	if err != nil {
		return err
	}
	if !ok {
		return coded(ErrPromotionRaced, "installed hash changed since overlay was derived")
	}
	return nil
}
