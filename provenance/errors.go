package provenance

import "errors"

// Kind is a stable category for programmatic error handling.
//
// Callers should branch on Kind/RuleID rather than matching error strings.
// Error() text names the failed check and may evolve.
type Kind string

const (
	// KindVerification covers claim-hash and asset-binding mismatches, and
	// values that did not come from a trusted constructor.
	KindVerification Kind = "Verification"
	// KindSigning covers signer failures and builder misuse at sign time.
	KindSigning Kind = "Signing"
	// KindBinding covers asset-binding construction failures.
	KindBinding Kind = "Binding"
	// KindDerivation covers failures of the wrapped transform function.
	KindDerivation Kind = "Derivation"
)

// Rule identifiers carried by *Error.
const (
	RuleClaimMismatch   = "PROV-VERIFY-001"
	RuleBindingMismatch = "PROV-VERIFY-002"
	RuleUnsealed        = "PROV-VERIFY-003"

	RuleSignerFailed     = "PROV-SIGN-001"
	RuleTimestampMissing = "PROV-SIGN-002"
	RuleJournalFailed    = "PROV-SIGN-003"
	RuleBuilderConsumed  = "PROV-SIGN-004"

	RuleBoxRange = "PROV-BIND-001"

	RuleTransformFailed = "PROV-DERIVE-001"
	RuleTooFewInputs    = "PROV-DERIVE-002"
	RuleDuplicateParam  = "PROV-DERIVE-003"
)

// Error is the library's structured error type.
//
// Message is intended for humans; do not match on it.
type Error struct {
	Kind    Kind
	RuleID  string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func newError(kind Kind, ruleID, msg string) error {
	return &Error{Kind: kind, RuleID: ruleID, Message: msg}
}

func wrapError(kind Kind, ruleID, msg string, cause error) error {
	if cause == nil {
		return newError(kind, ruleID, msg)
	}
	return &Error{Kind: kind, RuleID: ruleID, Message: msg, Cause: cause}
}

// DerivationError wraps the failure of a transform function. The original
// message stays visible through Error() and errors.Unwrap.
func DerivationError(name string, cause error) error {
	msg := "transform failed"
	if name != "" {
		msg = "transform " + name + " failed"
	}
	return wrapError(KindDerivation, RuleTransformFailed, msg, cause)
}

// IsKind reports whether err is (or wraps) a *Error with the given Kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}

// RuleID returns the stable RuleID for a structured error, or "" if unknown.
func RuleID(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	return e.RuleID
}
