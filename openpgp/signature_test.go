package openpgp

import "testing"

func generateTestEdDSAKey(t *testing.T) *KeyMaterial {
	t.Helper()
	km := NewKeyManager()
	key, err := km.NewKey(KeyParams{Algorithm: PubKeyEdDSA, Created: 1700000000})
	if err != nil {
		t.Fatalf("NewKey: %v", err)
	}
	return key.Primary
}

func TestSignVerifyBinaryDocument(t *testing.T) {
	engine := NewSignatureEngine()
	signer := generateTestEdDSAKey(t)
	doc := BinaryDocument{Data: []byte("attack at dawn")}

	sig, err := engine.Sign(doc, signer, SigBinaryDocument, SignOpts{Created: 1700000001})
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	v := engine.Verify(doc, sig, signer.PubkeyOf())
	if !v.OK {
		t.Fatalf("expected valid signature, got: %+v", v)
	}
}

func TestVerifyRejectsTamperedDocument(t *testing.T) {
	engine := NewSignatureEngine()
	signer := generateTestEdDSAKey(t)
	doc := BinaryDocument{Data: []byte("attack at dawn")}

	sig, err := engine.Sign(doc, signer, SigBinaryDocument, SignOpts{Created: 1700000001})
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	tampered := BinaryDocument{Data: []byte("attack at dusk")}
	v := engine.Verify(tampered, sig, signer.PubkeyOf())
	if v.OK {
		t.Fatal("expected verification failure for tampered document")
	}
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	engine := NewSignatureEngine()
	signer := generateTestEdDSAKey(t)
	other := generateTestEdDSAKey(t)
	doc := BinaryDocument{Data: []byte("attack at dawn")}

	sig, err := engine.Sign(doc, signer, SigBinaryDocument, SignOpts{Created: 1700000001})
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	v := engine.Verify(doc, sig, other.PubkeyOf())
	if v.OK {
		t.Fatal("expected verification failure against the wrong key")
	}
}

func TestSignatureSerializeParseRoundTrip(t *testing.T) {
	engine := NewSignatureEngine()
	signer := generateTestEdDSAKey(t)
	doc := BinaryDocument{Data: []byte("round trip me")}

	sig, err := engine.Sign(doc, signer, SigBinaryDocument, SignOpts{Created: 1700000001})
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	body := sig.marshalBody()
	reparsed, err := ParseSignaturePacket(body)
	if err != nil {
		t.Fatalf("ParseSignaturePacket: %v", err)
	}
	if !bytesEqual(reparsed.marshalBody(), body) {
		t.Fatal("signature did not round-trip byte for byte")
	}

	v := engine.Verify(doc, reparsed, signer.PubkeyOf())
	if !v.OK {
		t.Fatalf("reparsed signature failed to verify: %+v", v)
	}
}

func TestSignatureExpiration(t *testing.T) {
	engine := NewSignatureEngine()
	signer := generateTestEdDSAKey(t)
	doc := BinaryDocument{Data: []byte("expires soon")}

	sig, err := engine.Sign(doc, signer, SigBinaryDocument, SignOpts{Created: 1700000001, Expires: 10})
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	delta, has := sig.Expiration()
	if !has {
		t.Fatal("expected an expiration time to be recorded")
	}
	if delta != 10 {
		t.Fatalf("expiration delta mismatch: got %d want %d", delta, 10)
	}
}
