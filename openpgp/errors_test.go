package openpgp

import (
	"testing"

	"github.com/pkg/errors"
)

func TestWrapPreservesUnderlyingKind(t *testing.T) {
	base := parseErr("truncated", "test fixture")
	wrapped := wrap(base, "reading fixture")

	var pe *ParseError
	if !errors.As(wrapped, &pe) {
		t.Fatal("errors.As should find the underlying *ParseError through wrap")
	}
	if pe.Reason != "truncated" {
		t.Fatalf("unexpected reason: %q", pe.Reason)
	}
}

func TestWrapNilIsNil(t *testing.T) {
	if wrap(nil, "context") != nil {
		t.Fatal("wrap(nil,...) should return nil")
	}
}

func TestErrorMessagesIncludeReason(t *testing.T) {
	cases := []struct {
		err error
		want string
	}{
		{unsupportedErr("BZip2 compression (encode)"), "unsupported algorithm"},
		{permissionErr("needs_unlock"), "permission error"},
		{cryptoErr("invalid_key_material"), "crypto error"},
		{integrityErr("mdc_mismatch"), "integrity error"},
		{policyErr("unknown_critical_subpacket"), "policy error"},
	}
	for _, c := range cases {
		if !containsString(c.err.Error(), c.want) {
			t.Fatalf("error message %q does not mention %q", c.err.Error(), c.want)
		}
	}
}

func containsString(haystack, needle string) bool {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return true
		}
	}
	return false
}
