package openpgp

import "testing"

func newTestKey(t *testing.T) *Key {
	t.Helper()
	km := NewKeyManager()
	key, err := km.NewKey(KeyParams{Algorithm: PubKeyEdDSA, Created: 1700000000})
	if err != nil {
		t.Fatalf("NewKey: %v", err)
	}
	return key
}

func TestAddUIDMarksFirstPrimary(t *testing.T) {
	km := NewKeyManager()
	key := newTestKey(t)

	if _, err := km.AddUID(key, "Alice <alice@example.com>", SignOpts{Created: 1700000001}); err != nil {
		t.Fatalf("AddUID: %v", err)
	}
	if _, err := km.AddUID(key, "Alice Work <alice@work.example.com>", SignOpts{Created: 1700000002}); err != nil {
		t.Fatalf("AddUID (second): %v", err)
	}

	if len(key.Identities) != 2 {
		t.Fatalf("expected 2 identities, got %d", len(key.Identities))
	}
	if !key.Identities[0].Primary {
		t.Fatal("first-added UID should default to primary")
	}
	if key.Identities[1].Primary {
		t.Fatal("second-added UID should not be primary by default")
	}
}

func TestAddUIDSelfCertVerifies(t *testing.T) {
	km := NewKeyManager()
	key := newTestKey(t)
	sig, err := km.AddUID(key, "Bob <bob@example.com>", SignOpts{Created: 1700000001})
	if err != nil {
		t.Fatalf("AddUID: %v", err)
	}

	subject := UIDCertSubject{Primary: key.Primary, UID: []byte("Bob <bob@example.com>")}
	v := km.Engine.Verify(subject, sig, key.Primary.PubkeyOf())
	if !v.OK {
		t.Fatalf("self-certification failed to verify: %+v", v)
	}
}

func TestAddSubkeyBindingVerifies(t *testing.T) {
	km := NewKeyManager()
	key := newTestKey(t)
	subPub, subSec, err := edwardsFromSeed(make([]byte, 32))
	if err != nil {
		t.Fatalf("edwardsFromSeed: %v", err)
	}
	_ = subPub
	subkey := &KeyMaterial{
		Algorithm: PubKeyEdDSA, Created: 1700000000,
		OID: curveOID["Ed25519"],
		Public: [][]byte{append([]byte{0x40}, subPub...)},
		Secret: [][]byte{subSec},
	}

	binding, err := km.AddSubkey(key, subkey, KeyFlagEncryptComm|KeyFlagEncryptStorage)
	if err != nil {
		t.Fatalf("AddSubkey: %v", err)
	}
	if len(key.Subkeys) != 1 {
		t.Fatalf("expected 1 subkey, got %d", len(key.Subkeys))
	}

	subject := KeyBindingSubject{Primary: key.Primary, Subkey: subkey}
	v := km.Engine.Verify(subject, binding, key.Primary.PubkeyOf())
	if !v.OK {
		t.Fatalf("subkey binding failed to verify: %+v", v)
	}
}

func TestRevokePrimaryKey(t *testing.T) {
	km := NewKeyManager()
	key := newTestKey(t)
	if key.IsRevoked() {
		t.Fatal("freshly generated key should not be revoked")
	}

	sig, err := km.Revoke(key, RevokeTarget{}, 0x00, "compromised")
	if err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if !key.IsRevoked() {
		t.Fatal("key should be revoked after Revoke")
	}

	subject := DirectKeySubject{Primary: key.Primary}
	v := km.Engine.Verify(subject, sig, key.Primary.PubkeyOf())
	if !v.OK {
		t.Fatalf("revocation signature failed to verify: %+v", v)
	}
}

func TestPubkeyOfStripsSecrets(t *testing.T) {
	km := NewKeyManager()
	key := newTestKey(t)
	if _, err := km.AddUID(key, "Carol <carol@example.com>", SignOpts{Created: 1700000001}); err != nil {
		t.Fatalf("AddUID: %v", err)
	}

	pubOnly := km.PubkeyOf(key)
	if pubOnly.Primary.Secret != nil {
		t.Fatal("PubkeyOf should strip the primary's secret material")
	}
	if len(pubOnly.Identities) != 1 {
		t.Fatalf("expected identities preserved, got %d", len(pubOnly.Identities))
	}
}

func TestNewKeyECDSASignVerify(t *testing.T) {
	km := NewKeyManager()
	key, err := km.NewKey(KeyParams{Algorithm: PubKeyECDSA, Curve: "NIST P-256", Created: 1700000000})
	if err != nil {
		t.Fatalf("NewKey (ECDSA): %v", err)
	}
	if key.Primary.Algorithm != PubKeyECDSA {
		t.Fatalf("expected ECDSA key material, got algorithm %d", key.Primary.Algorithm)
	}

	doc := BinaryDocument{Data: []byte("ecdsa test document")}
	sig, err := km.Engine.Sign(doc, key.Primary, SigBinaryDocument, SignOpts{Created: 1700000001})
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	v := km.Engine.Verify(doc, sig, key.Primary.PubkeyOf())
	if !v.OK {
		t.Fatalf("ECDSA signature failed to verify: %+v", v)
	}
}

func TestDelUID(t *testing.T) {
	km := NewKeyManager()
	key := newTestKey(t)
	if _, err := km.AddUID(key, "Dave <dave@example.com>", SignOpts{Created: 1700000001}); err != nil {
		t.Fatalf("AddUID: %v", err)
	}
	if key.GetUID("Dave <dave@example.com>") == nil {
		t.Fatal("GetUID should find the freshly added identity")
	}
	if !key.DelUID("Dave <dave@example.com>") {
		t.Fatal("DelUID should report success removing an existing UID")
	}
	if key.GetUID("Dave <dave@example.com>") != nil {
		t.Fatal("GetUID should no longer find a deleted identity")
	}
	if key.DelUID("Dave <dave@example.com>") {
		t.Fatal("DelUID should report failure removing an already-gone UID")
	}
}
