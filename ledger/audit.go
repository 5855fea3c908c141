package ledger

import (
	"context"
	"errors"
	"fmt"

	"xdao.co/provchain/model"
	"xdao.co/provchain/provenance"
)

// SignatureVerifier checks a recorded signature over the claim preimage.
type SignatureVerifier interface {
	Verify(claim, sig []byte, chain [][]byte) error
}

// Audit re-checks the record for h from what the ledger holds:
//
//   - the stored claim must hash to h
//   - the payload bytes, when available, must match the asset binding
//   - the signature must verify, when v is non-nil
//
// Failed checks are reported in the AuditReport; the error is only for
// lookup failures.
func (l *Ledger) Audit(ctx context.Context, h provenance.ClaimHash, v SignatureVerifier) (model.AuditReport, error) {
	s, err := l.load(ctx, h)
	if err != nil {
		return model.AuditReport{}, err
	}
	claim := s.entry.Claim
	report := model.AuditReport{ClaimHash: h.String(), Problems: []string{}}

	if got := claim.Hash(); got == h {
		report.ClaimOK = true
	} else {
		report.Problems = append(report.Problems, fmt.Sprintf("stored claim hashes to %s", got))
	}

	payload, err := l.payload(ctx, s)
	switch {
	case err == nil:
		report.PayloadChecked = true
		if problem := checkBinding(claim.Binding, payload); problem != "" {
			report.Problems = append(report.Problems, problem)
		} else {
			report.PayloadOK = true
		}
	case errors.Is(err, ErrNotFound):
		report.Problems = append(report.Problems, "payload unavailable: "+err.Error())
	default:
		return model.AuditReport{}, err
	}

	if v != nil {
		report.SignatureChecked = true
		if err := v.Verify(claim.Bytes(), s.entry.Signature, s.entry.CertificateChain); err != nil {
			report.Problems = append(report.Problems, "signature: "+err.Error())
		} else {
			report.SignatureOK = true
		}
	}

	l.logger.InfoContext(ctx, "audit",
		"claim", h.Short(),
		"ok", report.OK(),
		"problems", len(report.Problems),
	)
	return report, nil
}

// checkBinding mirrors provenance.Verify: the stored payload is the bound
// content for both binding kinds. A box range locates that content inside
// some larger asset the ledger never holds.
func checkBinding(b provenance.AssetBinding, payload []byte) string {
	if got := provenance.Sum(payload); got != b.Hash() {
		return fmt.Sprintf("payload hashes to %s, %s binding expects %s", got.Short(), b.Kind(), b.Hash().Short())
	}
	return ""
}
