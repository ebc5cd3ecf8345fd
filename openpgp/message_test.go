package openpgp

import "testing"

func TestLiteralCompressSerializeParseRoundTrip(t *testing.T) {
	p := NewMessagePipeline()
	lit, err := p.NewLiteral([]byte("hello, world"), "greeting.txt", false, 'u', CompressionZIP)
	if err != nil {
		t.Fatalf("NewLiteral: %v", err)
	}
	if lit.Kind != MessageCompressed {
		t.Fatalf("expected a compressed wrapper, got kind %v", lit.Kind)
	}

	body, err := p.Serialize(lit, false)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	pkts, err := ParseAll(body)
	if err != nil {
		t.Fatalf("ParseAll: %v", err)
	}
	parsed, err := buildInner(pkts)
	if err != nil {
		t.Fatalf("buildInner: %v", err)
	}
	if string(parsed.payloadBytes()) != "hello, world" {
		t.Fatalf("payload mismatch after round trip: got %q", parsed.payloadBytes())
	}
}

func TestLiteralSensitiveForcesConsoleFilename(t *testing.T) {
	p := NewMessagePipeline()
	lit, err := p.NewLiteral([]byte("secret"), "realname.txt", true, 'b', CompressionUncompressed)
	if err != nil {
		t.Fatalf("NewLiteral: %v", err)
	}
	if lit.Literal.Filename != "_CONSOLE" {
		t.Fatalf("sensitive literal should force filename _CONSOLE, got %q", lit.Literal.Filename)
	}
}

func TestSignVerifyMessagePipeline(t *testing.T) {
	p := NewMessagePipeline()
	km := NewKeyManager()
	key, err := km.NewKey(KeyParams{Algorithm: PubKeyEdDSA, Created: 1700000000})
	if err != nil {
		t.Fatalf("NewKey: %v", err)
	}

	lit, err := p.NewLiteral([]byte("sign me"), "", false, 'b', CompressionUncompressed)
	if err != nil {
		t.Fatalf("NewLiteral: %v", err)
	}
	signed, err := p.Sign(lit, key.Primary, SigBinaryDocument, SignOpts{Created: 1700000001})
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if signed.Kind != MessageSigned || len(signed.Signatures) != 1 {
		t.Fatalf("unexpected signed message: %+v", signed)
	}

	subject, err := documentSubject(signed.Inner, SigBinaryDocument)
	if err != nil {
		t.Fatalf("documentSubject: %v", err)
	}
	v := p.Engine.Verify(subject, signed.Signatures[0], key.Primary.PubkeyOf())
	if !v.OK {
		t.Fatalf("message signature failed to verify: %+v", v)
	}
}

func TestEncryptDecryptPassphraseRoundTrip(t *testing.T) {
	p := NewMessagePipeline()
	lit, err := p.NewLiteral([]byte("for your eyes only"), "", false, 'b', CompressionUncompressed)
	if err != nil {
		t.Fatalf("NewLiteral: %v", err)
	}

	enc, err := p.Encrypt(lit, EncryptOpts{Passphrases: [][]byte{[]byte("swordfish")}, Cipher: CipherAES256})
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	body, err := p.Serialize(enc, false)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	pkts, err := ParseAll(body)
	if err != nil {
		t.Fatalf("ParseAll: %v", err)
	}
	reparsed, err := ParseEncryptedMessage(pkts)
	if err != nil {
		t.Fatalf("ParseEncryptedMessage: %v", err)
	}

	out, err := p.Decrypt(reparsed, []byte("swordfish"))
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if string(out.Ciphertext) != "for your eyes only" {
		t.Fatalf("decrypted payload mismatch: got %q", out.Ciphertext)
	}
}

func TestDecryptRejectsWrongPassphrase(t *testing.T) {
	p := NewMessagePipeline()
	lit, err := p.NewLiteral([]byte("for your eyes only"), "", false, 'b', CompressionUncompressed)
	if err != nil {
		t.Fatalf("NewLiteral: %v", err)
	}
	enc, err := p.Encrypt(lit, EncryptOpts{Passphrases: [][]byte{[]byte("swordfish")}, Cipher: CipherAES256})
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if _, err := p.Decrypt(enc, []byte("wrong passphrase")); err == nil {
		t.Fatal("expected Decrypt to fail with the wrong passphrase")
	}
}

func TestEncryptDecryptRecipientRoundTrip(t *testing.T) {
	p := NewMessagePipeline()
	km := NewKeyManager()
	primary, err := km.NewKey(KeyParams{Algorithm: PubKeyEdDSA, Created: 1700000000})
	if err != nil {
		t.Fatalf("NewKey: %v", err)
	}
	seed := make([]byte, 32)
	for i := range seed {
		seed[i] = byte(i + 1)
	}
	subPub, err := curve25519Base(seed)
	if err != nil {
		t.Fatalf("curve25519Base: %v", err)
	}
	subkey := &KeyMaterial{
		Algorithm: PubKeyECDH, Created: 1700000000,
		OID: curveOID["Curve25519"],
		KDF: []byte{0x01, HashSHA256, CipherAES128},
		Public: [][]byte{append([]byte{0x40}, subPub...)},
		Secret: [][]byte{seed},
	}
	if _, err := km.AddSubkey(primary, subkey, KeyFlagEncryptComm|KeyFlagEncryptStorage); err != nil {
		t.Fatalf("AddSubkey: %v", err)
	}

	lit, err := p.NewLiteral([]byte("recipient message"), "", false, 'b', CompressionUncompressed)
	if err != nil {
		t.Fatalf("NewLiteral: %v", err)
	}
	enc, err := p.Encrypt(lit, EncryptOpts{Recipients: []*KeyMaterial{subkey}, Cipher: CipherAES256})
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	out, err := p.Decrypt(enc, nil, subkey)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if string(out.Ciphertext) != "recipient message" {
		t.Fatalf("decrypted payload mismatch: got %q", out.Ciphertext)
	}
}

func TestCleartextSignSerializeRoundTrip(t *testing.T) {
	p := NewMessagePipeline()
	km := NewKeyManager()
	key, err := km.NewKey(KeyParams{Algorithm: PubKeyEdDSA, Created: 1700000000})
	if err != nil {
		t.Fatalf("NewKey: %v", err)
	}

	msg := p.NewCleartext([]byte("line one\nline two"))
	signed, err := p.SignCleartext(msg, key.Primary, SignOpts{Created: 1700000001})
	if err != nil {
		t.Fatalf("SignCleartext: %v", err)
	}

	out, err := p.Serialize(signed, false)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	kind, _, _, err := ArmorDecode(extractSignatureArmor(out))
	if err != nil {
		t.Fatalf("ArmorDecode of embedded signature block: %v", err)
	}
	if kind != ArmorSignature {
		t.Fatalf("expected an embedded SIGNATURE block, got %q", kind)
	}

	subject := CanonicalDocument{Text: msg.Text}
	v := p.Engine.Verify(subject, signed.Signatures[0], key.Primary.PubkeyOf())
	if !v.OK {
		t.Fatalf("cleartext signature failed to verify: %+v", v)
	}
}

// extractSignatureArmor returns the substring starting at the embedded
// "-----BEGIN PGP SIGNATURE-----" block inside a cleartext-signed message.
func extractSignatureArmor(b []byte) []byte {
	const marker = "-----BEGIN PGP SIGNATURE-----"
	idx := indexOf(b, []byte(marker))
	if idx < 0 {
		return b
	}
	return b[idx:]
}

func indexOf(haystack, needle []byte) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		match := true
		for j := range needle {
			if haystack[i+j] != needle[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}
