package compliance

import "testing"

func TestParseRoundTrip(t *testing.T) {
	for _, m := range []ComplianceMode{Permissive, Strict} {
		got, err := Parse(m.String())
		if err != nil || got != m {
			t.Fatalf("Parse(%q) = %v, %v", m.String(), got, err)
		}
	}
	if got, err := Parse(""); err != nil || got != Permissive {
		t.Fatalf("Parse(\"\") = %v, %v", got, err)
	}
	if _, err := Parse("lenient"); err == nil {
		t.Fatalf("expected error for unknown mode")
	}
}
