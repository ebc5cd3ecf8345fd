package openpgp

import "testing"

func TestCipherKeyLen(t *testing.T) {
	cases := map[byte]int{
		CipherCAST5: 16,
		CipherBlowfish: 16,
		CipherAES128: 16,
		CipherAES192: 24,
		CipherAES256: 32,
	}
	for algo, want := range cases {
		got, err := cipherKeyLen(algo)
		if err != nil {
			t.Fatalf("cipherKeyLen(%d): %v", algo, err)
		}
		if got != want {
			t.Fatalf("cipherKeyLen(%d) = %d, want %d", algo, got, want)
		}
	}
	if _, err := cipherKeyLen(0xff); err == nil {
		t.Fatal("expected an error for an unknown cipher")
	}
}

func TestCipherBlockLen(t *testing.T) {
	cases := map[byte]int{
		CipherCAST5: 8,
		CipherBlowfish: 8,
		CipherAES128: 16,
		CipherAES192: 16,
		CipherAES256: 16,
	}
	for algo, want := range cases {
		got, err := cipherBlockLen(algo)
		if err != nil {
			t.Fatalf("cipherBlockLen(%d): %v", algo, err)
		}
		if got != want {
			t.Fatalf("cipherBlockLen(%d) = %d, want %d", algo, got, want)
		}
	}
	if _, err := cipherBlockLen(0xff); err == nil {
		t.Fatal("expected an error for an unknown cipher")
	}
}

func TestSymCFBEncryptDecryptRoundTrip(t *testing.T) {
	p := DefaultCryptoProvider{}
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	plaintext := []byte("the quick brown fox jumps over the lazy dog")

	ct, err := p.SymCFBEncrypt(CipherAES256, key, nil, plaintext)
	if err != nil {
		t.Fatalf("SymCFBEncrypt: %v", err)
	}
	if string(ct) == string(plaintext) {
		t.Fatal("ciphertext should not equal plaintext")
	}

	pt, err := p.SymCFBDecrypt(CipherAES256, key, nil, ct)
	if err != nil {
		t.Fatalf("SymCFBDecrypt: %v", err)
	}
	if string(pt) != string(plaintext) {
		t.Fatalf("round trip mismatch: got %q want %q", pt, plaintext)
	}
}

func TestHashDeterministic(t *testing.T) {
	p := DefaultCryptoProvider{}
	a, err := p.Hash(HashSHA256, []byte("hello"), []byte("world"))
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	b, err := p.Hash(HashSHA256, []byte("hello"), []byte("world"))
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if string(a) != string(b) {
		t.Fatal("Hash should be deterministic over identical inputs")
	}
	if len(a) != 32 {
		t.Fatalf("expected a 32-byte SHA-256 digest, got %d bytes", len(a))
	}
}
