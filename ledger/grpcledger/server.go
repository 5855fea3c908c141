package grpcledger

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"xdao.co/provchain/compliance"
	"xdao.co/provchain/ledger"
	"xdao.co/provchain/model"
	"xdao.co/provchain/provenance"
)

// Source is what the service reads from. *ledger.Ledger and *Client both
// satisfy it.
type Source interface {
	Manifest(ctx context.Context, h provenance.ClaimHash) (model.Manifest, error)
	Payload(ctx context.Context, h provenance.ClaimHash) ([]byte, error)
	Lineage(ctx context.Context, h provenance.ClaimHash, mode compliance.ComplianceMode) (model.Lineage, error)
	Audit(ctx context.Context, h provenance.ClaimHash, v ledger.SignatureVerifier) (model.AuditReport, error)
}

var _ Source = (*ledger.Ledger)(nil)

// Server exposes a Source over the Ledger gRPC service.
type Server struct {
	UnimplementedLedgerServer
	Ledger Source

	// Verifier checks signatures during Audit. Nil skips the check.
	Verifier ledger.SignatureVerifier

	Logger *slog.Logger
}

func (s *Server) Manifest(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.BytesValue, error) {
	h, err := s.claimHash(in.GetValue())
	if err != nil {
		return nil, err
	}
	m, err := s.Ledger.Manifest(ctx, h)
	if err != nil {
		return nil, s.mapErr(ctx, "Manifest", err)
	}
	return encode(m)
}

func (s *Server) Payload(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.BytesValue, error) {
	h, err := s.claimHash(in.GetValue())
	if err != nil {
		return nil, err
	}
	b, err := s.Ledger.Payload(ctx, h)
	if err != nil {
		return nil, s.mapErr(ctx, "Payload", err)
	}
	return wrapperspb.Bytes(b), nil
}

func (s *Server) Lineage(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	var req model.LineageRequest
	if err := json.Unmarshal(in.GetValue(), &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, model.NewError(model.ErrInvalidRequest, err.Error()).Error())
	}
	mode, err := req.Compliance.Mode()
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, model.NewError(model.ErrInvalidRequest, err.Error()).Error())
	}
	h, err := s.claimHash(req.ClaimHash)
	if err != nil {
		return nil, err
	}
	l, err := s.Ledger.Lineage(ctx, h, mode)
	if err != nil {
		return nil, s.mapErr(ctx, "Lineage", err)
	}
	return encode(l)
}

func (s *Server) Audit(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.BytesValue, error) {
	h, err := s.claimHash(in.GetValue())
	if err != nil {
		return nil, err
	}
	r, err := s.Ledger.Audit(ctx, h, s.Verifier)
	if err != nil {
		return nil, s.mapErr(ctx, "Audit", err)
	}
	return encode(r)
}

func (s *Server) claimHash(v string) (provenance.ClaimHash, error) {
	if s == nil || s.Ledger == nil {
		return provenance.ClaimHash{}, status.Error(codes.FailedPrecondition, "missing ledger")
	}
	h, err := provenance.ParseClaimHash(v)
	if err != nil {
		return h, status.Error(codes.InvalidArgument, model.NewError(model.ErrInvalidClaimHash, err.Error()).Error())
	}
	return h, nil
}

func encode(v any) (*wrapperspb.BytesValue, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return wrapperspb.Bytes(b), nil
}

func (s *Server) mapErr(ctx context.Context, op string, err error) error {
	var code codes.Code
	var coded *model.CodedError
	switch {
	case errors.Is(err, ledger.ErrMissingAncestor):
		code, coded = codes.FailedPrecondition, model.NewError(model.ErrMissingAncestor, err.Error())
	case errors.Is(err, ledger.ErrNotFound):
		code, coded = codes.NotFound, model.NewError(model.ErrNotFound, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		code, coded = codes.Internal, model.NewError(model.ErrInternal, err.Error())
		if s.Logger != nil {
			s.Logger.ErrorContext(ctx, "ledger rpc failed", "op", op, "error", err)
		}
	}
	return status.Error(code, coded.Error())
}
