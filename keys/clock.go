package keys

import (
	"time"

	"xdao.co/provchain/provenance"
)

// Clock adds local timestamps to a signer so builds that require a
// timestamp can proceed. The token is "<RFC 3339 UTC time> <claim hex>"; it
// is produced locally and carries no third-party trust.
type Clock struct {
	provenance.Signer
	Now func() time.Time
}

// WithClock wraps s with a Clock using time.Now.
func WithClock(s provenance.Signer) *Clock {
	return &Clock{Signer: s, Now: time.Now}
}

func (c *Clock) Timestamp(claim provenance.ClaimHash) ([]byte, error) {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	return []byte(now().UTC().Format(time.RFC3339) + " " + claim.String()), nil
}

var _ provenance.Timestamper = (*Clock)(nil)
