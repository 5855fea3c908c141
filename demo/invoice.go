package demo

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"xdao.co/provchain/pipeline"
	"xdao.co/provchain/provenance"
)

const InvoiceMediaType = "application/x-invoice"

// Invoice is encoded as "<id>:<amount>" in decimal.
type Invoice struct {
	ID     uint32
	Amount uint32
}

func (i Invoice) CanonicalBytes() []byte {
	return []byte(strconv.FormatUint(uint64(i.ID), 10) + ":" + strconv.FormatUint(uint64(i.Amount), 10))
}

func (i Invoice) ContentHash() provenance.ContentHash { return provenance.Sum(i.CanonicalBytes()) }
func (i Invoice) MediaType() string                   { return InvoiceMediaType }

func parseInvoice(b provenance.Bytes) (Invoice, error) {
	id, amount, ok := strings.Cut(string(b), ":")
	if !ok || strings.Contains(amount, ":") {
		return Invoice{}, errDecode("invoice", "want <id>:<amount>, got %q", string(b))
	}
	i, err := strconv.ParseUint(id, 10, 32)
	if err != nil {
		return Invoice{}, errDecode("invoice", "id: %v", err)
	}
	a, err := strconv.ParseUint(amount, 10, 32)
	if err != nil {
		return Invoice{}, errDecode("invoice", "amount: %v", err)
	}
	return Invoice{ID: uint32(i), Amount: uint32(a)}, nil
}

// ParseInvoice turns verified bytes into an Invoice. It only accepts
// provenance.Verified input, so received bytes must pass Verify first.
var ParseInvoice = pipeline.TryMap("parse_invoice", parseInvoice)

// IngestInvoice verifies received bytes against the claim hash announced
// by their sender and parses them.
func IngestInvoice(ctx context.Context, received provenance.Unverified[provenance.Bytes], expected provenance.ClaimHash) (provenance.Verified[Invoice], error) {
	v, err := provenance.Verify(received, expected)
	if err != nil {
		return provenance.Verified[Invoice]{}, err
	}
	return ParseInvoice.Apply(ctx, v)
}

// ExternalInvoice fabricates what a remote sender would hand over: the raw
// bytes, a root record bound to them, and the claim hash it announces.
func ExternalInvoice(raw []byte, generator string) (provenance.Unverified[provenance.Bytes], provenance.ClaimHash) {
	payload := provenance.Bytes(raw)
	claim := provenance.Claim{
		Generator: generator,
		Binding:   provenance.HashBinding(payload.ContentHash()),
	}
	h := claim.Hash()
	return provenance.NewUnverified(payload, claim.Record()), h
}

type decodeError struct {
	what string
	msg  string
}

func (e *decodeError) Error() string { return fmt.Sprintf("demo: decode %s: %s", e.what, e.msg) }

func errDecode(what, format string, args ...any) error {
	return &decodeError{what: what, msg: fmt.Sprintf(format, args...)}
}
