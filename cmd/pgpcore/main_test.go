package main

import (
	"testing"

	"nullprogram.com/x/pgpcore/openpgp"
)

func TestKDFDeterministic(t *testing.T) {
	a := kdf([]byte("hunter2"), []byte("alice@example.com"), 1)
	b := kdf([]byte("hunter2"), []byte("alice@example.com"), 1)
	if string(a) != string(b) {
		t.Fatal("kdf should be deterministic for identical inputs")
	}
	if len(a) != 64 {
		t.Fatalf("expected a 64-byte seed, got %d bytes", len(a))
	}
}

func TestKDFVariesByUID(t *testing.T) {
	a := kdf([]byte("hunter2"), []byte("alice@example.com"), 1)
	b := kdf([]byte("hunter2"), []byte("bob@example.com"), 1)
	if string(a) == string(b) {
		t.Fatal("kdf output should depend on the uid salt")
	}
}

func TestParseTransferableKeyRoundTrip(t *testing.T) {
	km := openpgp.NewKeyManager()
	key, err := km.NewKey(openpgp.KeyParams{Algorithm: openpgp.PubKeyEdDSA, Created: 1700000000})
	if err != nil {
		t.Fatalf("NewKey: %v", err)
	}
	if _, err := km.AddUID(key, "Eve <eve@example.com>", openpgp.SignOpts{Created: 1700000001}); err != nil {
		t.Fatalf("AddUID: %v", err)
	}

	var buf []byte
	buf = append(buf, key.Primary.SerializePublicKeyPacket(false)...)
	for _, id := range key.Identities {
		buf = append(buf, id.UID.Serialize()...)
		for _, sig := range id.SelfCerts {
			buf = append(buf, sig.Serialize()...)
		}
	}

	pkts, err := openpgp.ParseAll(buf)
	if err != nil {
		t.Fatalf("ParseAll: %v", err)
	}
	reloaded, err := parseTransferableKey(pkts)
	if err != nil {
		t.Fatalf("parseTransferableKey: %v", err)
	}
	if string(reloaded.Primary.Fingerprint()) != string(key.Primary.Fingerprint()) {
		t.Fatal("reloaded key fingerprint mismatch")
	}
	if len(reloaded.Identities) != 1 || reloaded.Identities[0].UID.Value != "Eve <eve@example.com>" {
		t.Fatalf("reloaded identities mismatch: %+v", reloaded.Identities)
	}
}
