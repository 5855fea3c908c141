package storage

import (
	"context"
	"fmt"

	"github.com/ipfs/go-cid"

	"xdao.co/provchain/cidutil"
	"xdao.co/provchain/provenance"
)

// PutPayload stores the canonical bytes of p. It fails for payloads without
// canonical bytes and for payloads whose content hash is not the sha256 of
// those bytes, since such objects could not be found again by content hash.
func PutPayload(ctx context.Context, cas CAS, p provenance.Payload) (cid.Cid, error) {
	data, ok := provenance.CanonicalBytesOf(p)
	if !ok {
		return cid.Undef, fmt.Errorf("storage: payload %T has no canonical bytes", p)
	}
	want := cidutil.FromContentHash(p.ContentHash())
	id, err := cas.Put(ctx, data)
	if err != nil {
		return cid.Undef, err
	}
	if !id.Equals(want) {
		return cid.Undef, ErrCIDMismatch
	}
	return id, nil
}

// GetByContentHash fetches the bytes whose sha256 is h.
func GetByContentHash(ctx context.Context, cas CAS, h provenance.ContentHash) ([]byte, error) {
	return cas.Get(ctx, cidutil.FromContentHash(h))
}
