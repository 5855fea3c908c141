package compliance

import "fmt"

// ComplianceMode selects how a lineage walk treats ancestors that are not
// in the ledger.
//
// Strict mode fails the walk on the first missing ancestor.
// Permissive mode completes the walk and reports missing ancestors
// explicitly, so a partial ledger still yields a usable view.
type ComplianceMode int

const (
	Permissive ComplianceMode = iota
	Strict
)

func (m ComplianceMode) String() string {
	switch m {
	case Permissive:
		return "permissive"
	case Strict:
		return "strict"
	default:
		return fmt.Sprintf("ComplianceMode(%d)", int(m))
	}
}

// Parse accepts "strict" or "permissive"; the empty string is Permissive.
func Parse(s string) (ComplianceMode, error) {
	switch s {
	case "", "permissive":
		return Permissive, nil
	case "strict":
		return Strict, nil
	default:
		return Permissive, fmt.Errorf("compliance: unknown mode %q", s)
	}
}
