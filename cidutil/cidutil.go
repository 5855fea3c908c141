package cidutil

import (
	"fmt"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
	"github.com/opencontainers/go-digest"

	"xdao.co/provchain/provenance"
)

// CIDv1RawSHA256 returns a CIDv1 string using the "raw" multicodec
// and a sha2-256 multihash.
func CIDv1RawSHA256(data []byte) string {
	c, err := CIDv1RawSHA256CID(data)
	if err != nil {
		return ""
	}
	return c.String()
}

// CIDv1RawSHA256CID returns a CIDv1 (raw + sha2-256) derived from data.
func CIDv1RawSHA256CID(data []byte) (cid.Cid, error) {
	sum, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return cid.Undef, err
	}
	return cid.NewCidV1(cid.Raw, sum), nil
}

// FromContentHash wraps an existing content hash as a raw CIDv1. The CID
// equals CIDv1RawSHA256CID of the payload's canonical bytes.
func FromContentHash(h provenance.ContentHash) cid.Cid {
	mh, err := multihash.Encode(h[:], multihash.SHA2_256)
	if err != nil {
		// Encode only fails for unknown codes or oversized digests.
		panic(err)
	}
	return cid.NewCidV1(cid.Raw, mh)
}

// FromClaimHash names a claim hash as a CIDv1 with the raw codec, for
// logs and cross-references between manifest stores.
func FromClaimHash(h provenance.ClaimHash) cid.Cid {
	return FromContentHash(provenance.ContentHash(h))
}

// ContentHashOf extracts the sha2-256 digest of a CID.
func ContentHashOf(c cid.Cid) (provenance.ContentHash, error) {
	var h provenance.ContentHash
	dec, err := multihash.Decode(c.Hash())
	if err != nil {
		return h, err
	}
	if dec.Code != multihash.SHA2_256 || len(dec.Digest) != provenance.HashSize {
		return h, fmt.Errorf("cid %s is not a sha2-256 CID", c)
	}
	copy(h[:], dec.Digest)
	return h, nil
}

// Digest renders a content hash in OCI digest form ("sha256:<hex>").
func Digest(h provenance.ContentHash) digest.Digest {
	return digest.NewDigestFromEncoded(digest.SHA256, h.String())
}

// ParseDigest accepts an OCI digest string and returns its content hash.
func ParseDigest(s string) (provenance.ContentHash, error) {
	d, err := digest.Parse(s)
	if err != nil {
		return provenance.ContentHash{}, err
	}
	if d.Algorithm() != digest.SHA256 {
		return provenance.ContentHash{}, fmt.Errorf("unsupported digest algorithm %q", d.Algorithm())
	}
	return provenance.ParseContentHash(d.Encoded())
}
