package openpgp

import "testing"

func TestFingerprintStableAcrossCalls(t *testing.T) {
	km := NewKeyManager()
	key, err := km.NewKey(KeyParams{Algorithm: PubKeyEdDSA, Created: 1700000000})
	if err != nil {
		t.Fatalf("NewKey: %v", err)
	}
	a := key.Primary.Fingerprint()
	b := key.Primary.Fingerprint()
	if string(a) != string(b) {
		t.Fatal("fingerprint not stable across calls")
	}
	if len(a) != 20 {
		t.Fatalf("expected a 20-byte SHA-1 fingerprint, got %d bytes", len(a))
	}
	if key.Primary.KeyID() != be64(a[len(a)-8:]) {
		t.Fatal("KeyID should be the low 64 bits of the fingerprint")
	}
}

func TestFingerprintDiffersBetweenKeys(t *testing.T) {
	km := NewKeyManager()
	a, err := km.NewKey(KeyParams{Algorithm: PubKeyEdDSA, Created: 1700000000})
	if err != nil {
		t.Fatalf("NewKey: %v", err)
	}
	b, err := km.NewKey(KeyParams{Algorithm: PubKeyEdDSA, Created: 1700000000})
	if err != nil {
		t.Fatalf("NewKey: %v", err)
	}
	if string(a.Primary.Fingerprint()) == string(b.Primary.Fingerprint()) {
		t.Fatal("two freshly generated keys should not share a fingerprint")
	}
}

func TestProtectUnlockRoundTrip(t *testing.T) {
	km := NewKeyManager()
	key, err := km.NewKey(KeyParams{Algorithm: PubKeyEdDSA, Created: 1700000000})
	if err != nil {
		t.Fatalf("NewKey: %v", err)
	}
	provider := DefaultCryptoProvider{}
	originalSecret := key.Primary.Secret[0]

	passphrase := []byte("correct horse battery staple")
	if err := key.Primary.Protect(provider, DefaultEntropy, passphrase, CipherAES256, HashSHA256); err != nil {
		t.Fatalf("Protect: %v", err)
	}
	if key.Primary.Secret != nil {
		t.Fatal("Protect should clear the plaintext secret")
	}
	if !key.Primary.IsProtected() {
		t.Fatal("IsProtected should report true after Protect")
	}

	unlocked, err := key.Primary.Unlock(provider, passphrase)
	if err != nil {
		t.Fatalf("Unlock with correct passphrase: %v", err)
	}
	defer unlocked.Release()

	if string(key.Primary.Secret[0]) != string(originalSecret) {
		t.Fatal("unlocked secret does not match the original")
	}
}

func TestUnlockRejectsWrongPassphrase(t *testing.T) {
	km := NewKeyManager()
	key, err := km.NewKey(KeyParams{Algorithm: PubKeyEdDSA, Created: 1700000000})
	if err != nil {
		t.Fatalf("NewKey: %v", err)
	}
	provider := DefaultCryptoProvider{}
	if err := key.Primary.Protect(provider, DefaultEntropy, []byte("right password"), CipherAES256, HashSHA256); err != nil {
		t.Fatalf("Protect: %v", err)
	}

	if _, err := key.Primary.Unlock(provider, []byte("wrong password")); err == nil {
		t.Fatal("expected Unlock to fail with the wrong passphrase")
	}
}

func TestKeyMaterialPacketRoundTrip(t *testing.T) {
	km := NewKeyManager()
	key, err := km.NewKey(KeyParams{Algorithm: PubKeyEdDSA, Created: 1700000000})
	if err != nil {
		t.Fatalf("NewKey: %v", err)
	}
	pub := key.Primary.PubkeyOf()
	encoded := pub.SerializePublicKeyPacket(false)

	pkt, tail, err := ParsePacket(encoded)
	if err != nil {
		t.Fatalf("ParsePacket: %v", err)
	}
	if len(tail) != 0 {
		t.Fatalf("unexpected tail: %x", tail)
	}
	if pkt.Tag != TagPublicKey {
		t.Fatalf("wrong tag: got %d want %d", pkt.Tag, TagPublicKey)
	}

	parsed, err := ParseKeyMaterial(pkt)
	if err != nil {
		t.Fatalf("ParseKeyMaterial: %v", err)
	}
	if string(parsed.Fingerprint()) != string(pub.Fingerprint()) {
		t.Fatal("fingerprint changed across packet round trip")
	}
}
