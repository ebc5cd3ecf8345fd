package openpgp

import "testing"

func TestDefaultEntropyReadLength(t *testing.T) {
	b, err := DefaultEntropy.Read(32)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(b) != 32 {
		t.Fatalf("expected 32 bytes, got %d", len(b))
	}
}

func TestDefaultEntropyReadVaries(t *testing.T) {
	a, err := DefaultEntropy.Read(32)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	b, err := DefaultEntropy.Read(32)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(a) == string(b) {
		t.Fatal("two successive entropy reads should not be identical (suspiciously)")
	}
}
