package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ipfs/go-cid"

	"xdao.co/provchain/model"
	"xdao.co/provchain/provenance"
	"xdao.co/provchain/storage"
)

// stored is one manifest row with its child rows.
type stored struct {
	entry      provenance.Entry
	inline     []byte
	hasInline  bool
	payloadCID string
}

func (l *Ledger) load(ctx context.Context, h provenance.ClaimHash) (*stored, error) {
	var (
		s                     stored
		manifestID, generator string
		kind, bindingHash     string
		off, n                int64
		mediaType             string
		inline, sig, ts       []byte
		payloadCID            sql.NullString
	)
	err := l.db.QueryRowContext(ctx, `
		SELECT manifest_id, generator, binding_kind, binding_hash, binding_offset, binding_length,
		       media_type, payload, payload_cid, signature, timestamp
		FROM manifests WHERE claim_hash = ?
	`, h.String()).Scan(&manifestID, &generator, &kind, &bindingHash, &off, &n,
		&mediaType, &inline, &payloadCID, &sig, &ts)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, h)
	}
	if err != nil {
		return nil, fmt.Errorf("ledger: read manifest: %w", err)
	}

	binding, err := model.Binding{Kind: kind, Hash: bindingHash, Offset: uint64(off), Length: uint64(n)}.ToBinding()
	if err != nil {
		return nil, fmt.Errorf("ledger: manifest %s: %w", h.Short(), err)
	}
	claim := provenance.Claim{Generator: generator, Binding: binding}
	if claim.Ingredients, err = l.ingredients(ctx, h); err != nil {
		return nil, err
	}
	if claim.Assertions, err = l.assertions(ctx, h); err != nil {
		return nil, err
	}
	chain, err := l.certificates(ctx, h)
	if err != nil {
		return nil, err
	}

	s.entry = provenance.Entry{
		Claim:            claim,
		ClaimHash:        h,
		ManifestID:       manifestID,
		MediaType:        mediaType,
		Signature:        sig,
		CertificateChain: chain,
		Timestamp:        ts,
	}
	s.inline, s.hasInline = inline, inline != nil
	s.payloadCID = payloadCID.String
	return &s, nil
}

func (l *Ledger) ingredients(ctx context.Context, h provenance.ClaimHash) ([]provenance.IngredientRef, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT parent_hash, binding_kind, binding_hash, binding_offset, binding_length, relation
		FROM ingredients WHERE claim_hash = ? ORDER BY position
	`, h.String())
	if err != nil {
		return nil, fmt.Errorf("ledger: read ingredients: %w", err)
	}
	defer rows.Close()

	var out []provenance.IngredientRef
	for rows.Next() {
		var parent, kind, bh, rel string
		var off, n int64
		if err := rows.Scan(&parent, &kind, &bh, &off, &n, &rel); err != nil {
			return nil, fmt.Errorf("ledger: scan ingredient: %w", err)
		}
		ref, err := model.Ingredient{
			ClaimHash: parent,
			Binding:   model.Binding{Kind: kind, Hash: bh, Offset: uint64(off), Length: uint64(n)},
			Relation:  rel,
		}.ToRef()
		if err != nil {
			return nil, fmt.Errorf("ledger: ingredient of %s: %w", h.Short(), err)
		}
		out = append(out, ref)
	}
	return out, rows.Err()
}

func (l *Ledger) assertions(ctx context.Context, h provenance.ClaimHash) ([]provenance.CustomAssertion, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT label, mime_type, data FROM assertions WHERE claim_hash = ? ORDER BY position
	`, h.String())
	if err != nil {
		return nil, fmt.Errorf("ledger: read assertions: %w", err)
	}
	defer rows.Close()

	var out []provenance.CustomAssertion
	for rows.Next() {
		var a provenance.CustomAssertion
		if err := rows.Scan(&a.Label, &a.MimeType, &a.Data); err != nil {
			return nil, fmt.Errorf("ledger: scan assertion: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (l *Ledger) certificates(ctx context.Context, h provenance.ClaimHash) ([][]byte, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT der FROM certificates WHERE claim_hash = ? ORDER BY position
	`, h.String())
	if err != nil {
		return nil, fmt.Errorf("ledger: read certificates: %w", err)
	}
	defer rows.Close()

	var out [][]byte
	for rows.Next() {
		var der []byte
		if err := rows.Scan(&der); err != nil {
			return nil, fmt.Errorf("ledger: scan certificate: %w", err)
		}
		out = append(out, der)
	}
	return out, rows.Err()
}

func (l *Ledger) payload(ctx context.Context, s *stored) ([]byte, error) {
	if s.hasInline {
		return s.inline, nil
	}
	if s.payloadCID == "" {
		return nil, fmt.Errorf("%w: no payload recorded for %s", ErrNotFound, s.entry.ClaimHash.Short())
	}
	if l.blobs == nil {
		return nil, fmt.Errorf("%w: payload %s is in a blob store that is not configured", ErrNotFound, s.payloadCID)
	}
	id, err := cid.Decode(s.payloadCID)
	if err != nil {
		return nil, fmt.Errorf("ledger: payload cid %q: %w", s.payloadCID, err)
	}
	b, err := l.blobs.Get(ctx, id)
	if storage.IsNotFound(err) {
		return nil, fmt.Errorf("%w: payload %s", ErrNotFound, s.payloadCID)
	}
	return b, err
}

// Get returns the recorded entry for h. Entry.Payload is filled when the
// payload bytes are available.
func (l *Ledger) Get(ctx context.Context, h provenance.ClaimHash) (provenance.Entry, error) {
	s, err := l.load(ctx, h)
	if err != nil {
		return provenance.Entry{}, err
	}
	b, err := l.payload(ctx, s)
	switch {
	case err == nil:
		s.entry.Payload = b
	case !errors.Is(err, ErrNotFound):
		return provenance.Entry{}, err
	}
	return s.entry, nil
}

// Manifest returns the JSON view of the entry for h.
func (l *Ledger) Manifest(ctx context.Context, h provenance.ClaimHash) (model.Manifest, error) {
	s, err := l.load(ctx, h)
	if err != nil {
		return model.Manifest{}, err
	}
	return model.FromEntry(s.entry, s.payloadCID), nil
}

// Payload returns the canonical payload bytes recorded for h.
func (l *Ledger) Payload(ctx context.Context, h provenance.ClaimHash) ([]byte, error) {
	s, err := l.load(ctx, h)
	if err != nil {
		return nil, err
	}
	return l.payload(ctx, s)
}

// Children returns the records listing h as an ingredient, in recording
// order.
func (l *Ledger) Children(ctx context.Context, h provenance.ClaimHash) ([]provenance.ClaimHash, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT DISTINCT i.claim_hash, m.seq
		FROM ingredients i JOIN manifests m ON m.claim_hash = i.claim_hash
		WHERE i.parent_hash = ?
		ORDER BY m.seq
	`, h.String())
	if err != nil {
		return nil, fmt.Errorf("ledger: read children: %w", err)
	}
	defer rows.Close()

	var out []provenance.ClaimHash
	for rows.Next() {
		var s string
		var seq int64
		if err := rows.Scan(&s, &seq); err != nil {
			return nil, fmt.Errorf("ledger: scan child: %w", err)
		}
		c, err := provenance.ParseClaimHash(s)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Has reports whether h is recorded.
func (l *Ledger) Has(ctx context.Context, h provenance.ClaimHash) (bool, error) {
	var one int
	err := l.db.QueryRowContext(ctx, `SELECT 1 FROM manifests WHERE claim_hash = ?`, h.String()).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// Restore reads the payload recorded for h, decodes it, and passes it
// through provenance.Verify. The result is as trustworthy as any other
// verified value: the claim hash must match h and the decoded payload must
// hash to the recorded binding.
func Restore[T provenance.Payload](ctx context.Context, l *Ledger, h provenance.ClaimHash, decode func([]byte) (T, error)) (provenance.Verified[T], error) {
	s, err := l.load(ctx, h)
	if err != nil {
		return provenance.Verified[T]{}, err
	}
	b, err := l.payload(ctx, s)
	if err != nil {
		return provenance.Verified[T]{}, err
	}
	p, err := decode(b)
	if err != nil {
		return provenance.Verified[T]{}, fmt.Errorf("ledger: decode payload of %s: %w", h.Short(), err)
	}
	record := s.entry.Claim.Record()
	return provenance.Verify(provenance.NewUnverified(p, record), h)
}
