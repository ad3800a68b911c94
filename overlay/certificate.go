package overlay

import (
	"encoding/json"
	"log/slog"

	"github.com/rubintree/loom/ir"
	"github.com/rubintree/loom/kvstore"
)

const certificateTag byte = 0x41

// ProofCertificate is ΔΣ's persisted proof-obligation verdict: every
// obligation result reached during validation, plus a content hash
// binding them to the overlay they were run against, so a stored
// certificate can be checked for tamper independent of re-running the
// obligations.
type ProofCertificate struct {
	OverlayID         [32]byte
	ObligationResults []ObligationResult
	Hash              [32]byte
}

// NewProofCertificate composes and hashes a certificate from overlayID
// and a validation report's obligations.
func NewProofCertificate(overlayID [32]byte, report ValidationReport) ProofCertificate {
	c := ProofCertificate{OverlayID: overlayID, ObligationResults: report.Obligations}
	c.Hash = hashCertificate(c)
	return c
}

func hashCertificate(c ProofCertificate) [32]byte {
	buf, _ := json.Marshal(struct {
		OverlayID         [32]byte
		ObligationResults []ObligationResult
	}{c.OverlayID, c.ObligationResults})
	return ir.Hash256(certificateTag, buf)
}

func certificateKey(overlayID [32]byte) []byte {
	return append([]byte(kvstore.PrefixOverlay), overlayID[:]...)
}

// PersistCertificate writes cert under overlay:<overlay id> in store.
func PersistCertificate(store kvstore.Store, cert ProofCertificate) error {
	buf, err := json.Marshal(cert)
	if err != nil {
		return err
	}
	return store.Put(certificateKey(cert.OverlayID), buf)
}

// LoadCertificate reads back the certificate persisted for overlayID,
// if any.
func LoadCertificate(store kvstore.Store, overlayID [32]byte) (ProofCertificate, bool, error) {
	raw, ok, err := store.Get(certificateKey(overlayID))
	if err != nil || !ok {
		return ProofCertificate{}, false, err
	}
	var cert ProofCertificate
	if err := json.Unmarshal(raw, &cert); err != nil {
		return ProofCertificate{}, false, err
	}
	return cert, true, nil
}

// WithCertificateStore attaches store to v so every subsequent
// Validate call persists a ProofCertificate for its report. Optional:
// a Validator with no store attached still validates and memoizes
// in-process, it just has nothing to show a cold-storage reader.
func (v *Validator) WithCertificateStore(store kvstore.Store) *Validator {
	v.certStore = store
	return v
}

func (v *Validator) persistCertificate(o *Overlay, report ValidationReport) {
	if v.certStore == nil {
		return
	}
	cert := NewProofCertificate(o.ID, report)
	if err := PersistCertificate(v.certStore, cert); err != nil {
		slog.Default().Warn("persist proof certificate failed", slog.String("error", err.Error()))
	}
}
