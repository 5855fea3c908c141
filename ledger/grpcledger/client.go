package grpcledger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"xdao.co/provchain/compliance"
	"xdao.co/provchain/ledger"
	"xdao.co/provchain/model"
	"xdao.co/provchain/provenance"
)

// Client reads a remote ledger. Errors are mapped back to the ledger
// sentinels, so callers can treat a Client like a local *ledger.Ledger.
type Client struct {
	cc     *grpc.ClientConn
	client LedgerClient

	// Timeout applies per RPC when non-zero.
	Timeout time.Duration
}

var _ Source = (*Client)(nil)

// Dial creates a client for target. extra is appended to the default
// insecure transport option.
func Dial(target string, extra ...grpc.DialOption) (*Client, error) {
	opts := append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, extra...)
	cc, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, err
	}
	return &Client{cc: cc, client: NewLedgerClient(cc)}, nil
}

func (c *Client) Close() error {
	if c == nil || c.cc == nil {
		return nil
	}
	return c.cc.Close()
}

func (c *Client) Manifest(ctx context.Context, h provenance.ClaimHash) (model.Manifest, error) {
	var m model.Manifest
	ctx, cancel := c.rpcContext(ctx)
	defer cancel()
	reply, err := c.client.Manifest(ctx, wrapperspb.String(h.String()))
	if err != nil {
		return m, mapRPC(err)
	}
	return m, decode(reply, &m)
}

// Entry is Manifest converted back to a journal entry.
func (c *Client) Entry(ctx context.Context, h provenance.ClaimHash) (provenance.Entry, error) {
	m, err := c.Manifest(ctx, h)
	if err != nil {
		return provenance.Entry{}, err
	}
	return m.ToEntry()
}

func (c *Client) Payload(ctx context.Context, h provenance.ClaimHash) ([]byte, error) {
	ctx, cancel := c.rpcContext(ctx)
	defer cancel()
	reply, err := c.client.Payload(ctx, wrapperspb.String(h.String()))
	if err != nil {
		return nil, mapRPC(err)
	}
	return reply.GetValue(), nil
}

func (c *Client) Lineage(ctx context.Context, h provenance.ClaimHash, mode compliance.ComplianceMode) (model.Lineage, error) {
	var l model.Lineage
	req, err := json.Marshal(model.LineageRequest{ClaimHash: h.String(), Compliance: model.FromCompliance(mode)})
	if err != nil {
		return l, err
	}
	ctx, cancel := c.rpcContext(ctx)
	defer cancel()
	reply, err := c.client.Lineage(ctx, wrapperspb.Bytes(req))
	if err != nil {
		return l, mapRPC(err)
	}
	return l, decode(reply, &l)
}

// Audit runs on the server with the server's verifier; v must be nil.
func (c *Client) Audit(ctx context.Context, h provenance.ClaimHash, v ledger.SignatureVerifier) (model.AuditReport, error) {
	var r model.AuditReport
	if v != nil {
		return r, fmt.Errorf("grpcledger: remote audit uses the server's verifier")
	}
	ctx, cancel := c.rpcContext(ctx)
	defer cancel()
	reply, err := c.client.Audit(ctx, wrapperspb.String(h.String()))
	if err != nil {
		return r, mapRPC(err)
	}
	return r, decode(reply, &r)
}

func (c *Client) rpcContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.Timeout)
}

func decode(reply *wrapperspb.BytesValue, v any) error {
	if err := json.Unmarshal(reply.GetValue(), v); err != nil {
		return fmt.Errorf("grpcledger: decode reply: %w", err)
	}
	return nil
}

func mapRPC(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.NotFound:
		return fmt.Errorf("%w (remote: %s)", ledger.ErrNotFound, st.Message())
	case codes.FailedPrecondition:
		return fmt.Errorf("%w (remote: %s)", ledger.ErrMissingAncestor, st.Message())
	default:
		return err
	}
}
