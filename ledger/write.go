package ledger

import (
	"context"
	"database/sql"
	"fmt"

	"xdao.co/provchain/provenance"
)

var _ provenance.Journal = (*Ledger)(nil)

// Record implements provenance.Journal.
func (l *Ledger) Record(e provenance.Entry) error {
	return l.RecordContext(context.Background(), e)
}

// RecordContext stores e. Recording a claim hash that is already present is
// a no-op, so re-running a deterministic pipeline does not grow the ledger.
func (l *Ledger) RecordContext(ctx context.Context, e provenance.Entry) error {
	if e.Claim.Hash() != e.ClaimHash {
		return fmt.Errorf("%w: %s", ErrInvalidEntry, e.ClaimHash)
	}

	var inline any
	var payloadCID sql.NullString
	if e.Payload != nil {
		if l.blobs != nil {
			id, err := l.blobs.Put(ctx, e.Payload)
			if err != nil {
				return fmt.Errorf("ledger: store payload: %w", err)
			}
			payloadCID = sql.NullString{String: id.String(), Valid: true}
		} else {
			inline = nonNil(e.Payload)
		}
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ledger: begin: %w", err)
	}
	defer tx.Rollback()

	claim := e.Claim
	b := claim.Binding
	off, n := b.Range()
	res, err := tx.ExecContext(ctx, `
		INSERT INTO manifests
		(claim_hash, manifest_id, generator, binding_kind, binding_hash, binding_offset, binding_length,
		 media_type, payload, payload_cid, signature, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(claim_hash) DO NOTHING
	`,
		e.ClaimHash.String(), e.ManifestID, claim.Generator,
		b.Kind().String(), b.Hash().String(), int64(off), int64(n),
		e.MediaType, inline, payloadCID, nonNil(e.Signature), nullable(e.Timestamp),
	)
	if err != nil {
		return fmt.Errorf("ledger: insert manifest: %w", err)
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		l.logger.DebugContext(ctx, "manifest already recorded", "claim", e.ClaimHash.Short())
		return tx.Commit()
	}

	for i, ing := range claim.Ingredients {
		ioff, in := ing.Binding.Range()
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO ingredients
			(claim_hash, position, parent_hash, binding_kind, binding_hash, binding_offset, binding_length, relation)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`,
			e.ClaimHash.String(), i, ing.ClaimHash.String(),
			ing.Binding.Kind().String(), ing.Binding.Hash().String(), int64(ioff), int64(in),
			ing.Relation.String(),
		); err != nil {
			return fmt.Errorf("ledger: insert ingredient %d: %w", i, err)
		}
	}
	for i, a := range claim.Assertions {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO assertions (claim_hash, position, label, mime_type, data)
			VALUES (?, ?, ?, ?, ?)
		`, e.ClaimHash.String(), i, a.Label, a.MimeType, nonNil(a.Data)); err != nil {
			return fmt.Errorf("ledger: insert assertion %d: %w", i, err)
		}
	}
	for i, der := range e.CertificateChain {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO certificates (claim_hash, position, der) VALUES (?, ?, ?)
		`, e.ClaimHash.String(), i, nonNil(der)); err != nil {
			return fmt.Errorf("ledger: insert certificate %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("ledger: commit: %w", err)
	}
	l.logger.DebugContext(ctx, "manifest recorded",
		"claim", e.ClaimHash.Short(),
		"generator", claim.Generator,
		"ingredients", len(claim.Ingredients),
	)
	return nil
}

func nonNil(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}

// nullable binds nil as SQL NULL.
func nullable(b []byte) any {
	if b == nil {
		return nil
	}
	return b
}
