// This is free and unencumbered software released into the public domain.

package openpgp

import (
	"crypto"
	"crypto/aes"
	"crypto/cipher"
	"crypto/dsa"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	_ "crypto/sha1"
	_ "crypto/sha256"
	_ "crypto/sha512"
	"math/big"

	"golang.org/x/crypto/blowfish"
	"golang.org/x/crypto/cast5"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/ed25519"
	"golang.org/x/crypto/openpgp/elgamal"
)

// DefaultCryptoProvider is the one in-module CryptoProvider, covering
// the full signature/encryption algorithm matrix: RSA, DSA, ElGamal,
// ECDSA, ECDH, and EdDSA.
type DefaultCryptoProvider struct{}

func (DefaultCryptoProvider) Hash(algo byte, data...[]byte) ([]byte, error) {
	h, err := newHash(algo)
	if err != nil {
		return nil, err
	}
	for _, d := range data {
		h.Write(d)
	}
	return h.Sum(nil), nil
}

func (DefaultCryptoProvider) Sign(pkAlgo byte, secret *KeyMaterial, hashAlgo byte, digest []byte) ([][]byte, error) {
	if secret.Secret == nil {
		return nil, permissionErr("needs_unlock")
	}
	switch pkAlgo {
	case PubKeyEdDSA:
		seed := secret.Secret[0]
		priv := ed25519.NewKeyFromSeed(padTo(seed, 32))
		sig := ed25519.Sign(priv, digest)
		return [][]byte{sig[:32], sig[32:]}, nil

	case PubKeyRSA:
		n := new(big.Int).SetBytes(secret.Public[0])
		e := int(new(big.Int).SetBytes(secret.Public[1]).Int64())
		d := new(big.Int).SetBytes(secret.Secret[0])
		priv := &rsa.PrivateKey{PublicKey: rsa.PublicKey{N: n, E: e}, D: d}
		priv.Precompute()
		h, err := cryptoHashID(hashAlgo)
		if err != nil {
			return nil, err
		}
		sig, err := rsa.SignPKCS1v15(rand.Reader, priv, h, digest)
		if err != nil {
			return nil, cryptoErr("invalid_signature")
		}
		return [][]byte{sig}, nil

	case PubKeyDSA:
		p := new(big.Int).SetBytes(secret.Public[0])
		q := new(big.Int).SetBytes(secret.Public[1])
		g := new(big.Int).SetBytes(secret.Public[2])
		x := new(big.Int).SetBytes(secret.Secret[0])
		priv := &dsa.PrivateKey{
			PublicKey: dsa.PublicKey{Parameters: dsa.Parameters{P: p, Q: q, G: g}},
			X: x,
		}
		qlen := len(q.Bytes())
		trimmed := truncateToQ(digest, qlen)
		r, s, err := dsa.Sign(rand.Reader, priv, trimmed)
		if err != nil {
			return nil, cryptoErr("invalid_signature")
		}
		return [][]byte{r.Bytes(), s.Bytes()}, nil

	case PubKeyECDSA:
		curve, err := curveFromOID(secret.OID)
		if err != nil {
			return nil, err
		}
		d := new(big.Int).SetBytes(secret.Secret[0])
		priv := &ecdsa.PrivateKey{PublicKey: ecdsa.PublicKey{Curve: curve}, D: d}
		trimmed := truncateToQ(digest, (curve.Params().BitSize+7)/8)
		r, s, err := ecdsa.Sign(rand.Reader, priv, trimmed)
		if err != nil {
			return nil, cryptoErr("invalid_signature")
		}
		return [][]byte{r.Bytes(), s.Bytes()}, nil

	default:
		return nil, unsupportedErr("public-key algorithm")
	}
}

func (DefaultCryptoProvider) Verify(pkAlgo byte, public *KeyMaterial, hashAlgo byte, digest []byte, sig [][]byte) (bool, error) {
	switch pkAlgo {
	case PubKeyEdDSA:
		if len(sig) != 2 {
			return false, parseErr("bad_mpi", "eddsa signature")
		}
		pub := ed25519.PublicKey(padTo(public.Public[0], 32))
		full := append(padTo(sig[0], 32), padTo(sig[1], 32)...)
		return ed25519.Verify(pub, digest, full), nil

	case PubKeyRSA:
		n := new(big.Int).SetBytes(public.Public[0])
		e := int(new(big.Int).SetBytes(public.Public[1]).Int64())
		pub := &rsa.PublicKey{N: n, E: e}
		h, err := cryptoHashID(hashAlgo)
		if err != nil {
			return false, err
		}
		if len(sig) != 1 {
			return false, parseErr("bad_mpi", "rsa signature")
		}
		err = rsa.VerifyPKCS1v15(pub, h, digest, sig[0])
		return err == nil, nil

	case PubKeyDSA:
		if len(sig) != 2 {
			return false, parseErr("bad_mpi", "dsa signature")
		}
		p := new(big.Int).SetBytes(public.Public[0])
		q := new(big.Int).SetBytes(public.Public[1])
		g := new(big.Int).SetBytes(public.Public[2])
		y := new(big.Int).SetBytes(public.Public[3])
		pub := &dsa.PublicKey{Parameters: dsa.Parameters{P: p, Q: q, G: g}, Y: y}
		qlen := len(q.Bytes())
		trimmed := truncateToQ(digest, qlen)
		r := new(big.Int).SetBytes(sig[0])
		s := new(big.Int).SetBytes(sig[1])
		return dsa.Verify(pub, trimmed, r, s), nil

	case PubKeyECDSA:
		if len(sig) != 2 {
			return false, parseErr("bad_mpi", "ecdsa signature")
		}
		curve, err := curveFromOID(public.OID)
		if err != nil {
			return false, err
		}
		x, y := elliptic.Unmarshal(curve, public.Public[0])
		if x == nil {
			return false, cryptoErr("invalid_key_material")
		}
		pub := &ecdsa.PublicKey{Curve: curve, X: x, Y: y}
		trimmed := truncateToQ(digest, (curve.Params().BitSize+7)/8)
		r := new(big.Int).SetBytes(sig[0])
		s := new(big.Int).SetBytes(sig[1])
		return ecdsa.Verify(pub, trimmed, r, s), nil

	default:
		return false, unsupportedErr("public-key algorithm")
	}
}

func (DefaultCryptoProvider) PKEncrypt(pkAlgo byte, public *KeyMaterial, material []byte) ([][]byte, error) {
	switch pkAlgo {
	case PubKeyRSA:
		n := new(big.Int).SetBytes(public.Public[0])
		e := int(new(big.Int).SetBytes(public.Public[1]).Int64())
		pub := &rsa.PublicKey{N: n, E: e}
		ct, err := rsa.EncryptPKCS1v15(rand.Reader, pub, material)
		if err != nil {
			return nil, cryptoErr("bad_padding")
		}
		return [][]byte{ct}, nil

	case PubKeyElGamal:
		p := new(big.Int).SetBytes(public.Public[0])
		g := new(big.Int).SetBytes(public.Public[1])
		y := new(big.Int).SetBytes(public.Public[2])
		pub := &elgamal.PublicKey{P: p, G: g, Y: y}
		c1, c2, err := elgamal.Encrypt(rand.Reader, pub, material)
		if err != nil {
			return nil, cryptoErr("bad_padding")
		}
		return [][]byte{c1.Bytes(), c2.Bytes()}, nil

	case PubKeyECDH:
		if !bytesEqual(public.OID, curveOID["Curve25519"]) {
			// Only Curve25519 is supported by this provider; other
			// curves would need their own scalar multiplication.
			return nil, unsupportedErr("ECDH curve")
		}
		var ephPriv, ephPub, shared [32]byte
		if _, err := rand.Read(ephPriv[:]); err != nil {
			return nil, wrap(err, "ecdh ephemeral")
		}
		curve25519.ScalarBaseMult(&ephPub, &ephPriv)
		var recipPub [32]byte
		copy(recipPub[:], public.Public[0][1:]) // strip 0x40 native-point prefix
		curve25519.ScalarMult(&shared, &ephPriv, &recipPub)
		kek, err := DefaultCryptoProvider{}.ECDHKEK(public.Fingerprint(), public.KDF[1], public.KDF[2], shared[:])
		if err != nil {
			return nil, err
		}
		wrapped, err := aesKeyWrap(kek, material)
		if err != nil {
			return nil, err
		}
		return [][]byte{append([]byte{0x40}, ephPub[:]...), wrapped}, nil

	default:
		return nil, unsupportedErr("public-key algorithm")
	}
}

func (DefaultCryptoProvider) PKDecrypt(pkAlgo byte, secret *KeyMaterial, mpis [][]byte) ([]byte, error) {
	if secret.Secret == nil {
		return nil, permissionErr("needs_unlock")
	}
	switch pkAlgo {
	case PubKeyRSA:
		n := new(big.Int).SetBytes(secret.Public[0])
		e := int(new(big.Int).SetBytes(secret.Public[1]).Int64())
		d := new(big.Int).SetBytes(secret.Secret[0])
		priv := &rsa.PrivateKey{PublicKey: rsa.PublicKey{N: n, E: e}, D: d}
		priv.Precompute()
		pt, err := rsa.DecryptPKCS1v15(rand.Reader, priv, mpis[0])
		if err != nil {
			return nil, cryptoErr("bad_padding")
		}
		return pt, nil

	case PubKeyElGamal:
		p := new(big.Int).SetBytes(secret.Public[0])
		g := new(big.Int).SetBytes(secret.Public[1])
		y := new(big.Int).SetBytes(secret.Public[2])
		x := new(big.Int).SetBytes(secret.Secret[0])
		priv := &elgamal.PrivateKey{
			PublicKey: elgamal.PublicKey{P: p, G: g, Y: y},
			X: x,
		}
		c1 := new(big.Int).SetBytes(mpis[0])
		c2 := new(big.Int).SetBytes(mpis[1])
		pt, err := elgamal.Decrypt(priv, c1, c2)
		if err != nil {
			return nil, cryptoErr("bad_padding")
		}
		return pt, nil

	case PubKeyECDH:
		var ephPub, priv, shared [32]byte
		copy(ephPub[:], mpis[0][1:])
		copy(priv[:], padTo(secret.Secret[0], 32))
		curve25519.ScalarMult(&shared, &priv, &ephPub)
		kek, err := DefaultCryptoProvider{}.ECDHKEK(secret.Fingerprint(), secret.KDF[1], secret.KDF[2], shared[:])
		if err != nil {
			return nil, err
		}
		return aesKeyUnwrap(kek, mpis[1])

	default:
		return nil, unsupportedErr("public-key algorithm")
	}
}

func (DefaultCryptoProvider) SymCFBEncrypt(algo byte, key, iv, plaintext []byte) ([]byte, error) {
	block, err := newBlockCipher(algo, key)
	if err != nil {
		return nil, err
	}
	if len(iv) == 0 {
		iv = make([]byte, block.BlockSize())
	}
	out := make([]byte, len(plaintext))
	cipher.NewCFBEncrypter(block, iv).XORKeyStream(out, plaintext)
	return out, nil
}

func (DefaultCryptoProvider) SymCFBDecrypt(algo byte, key, iv, ciphertext []byte) ([]byte, error) {
	block, err := newBlockCipher(algo, key)
	if err != nil {
		return nil, err
	}
	if len(iv) == 0 {
		iv = make([]byte, block.BlockSize())
	}
	out := make([]byte, len(ciphertext))
	cipher.NewCFBDecrypter(block, iv).XORKeyStream(out, ciphertext)
	return out, nil
}

func newBlockCipher(algo byte, key []byte) (cipher.Block, error) {
	switch algo {
	case CipherAES128, CipherAES192, CipherAES256:
		return aes.NewCipher(key)
	case CipherCAST5:
		return cast5.NewCipher(key)
	case CipherBlowfish:
		return blowfish.NewCipher(key)
	default:
		return nil, unsupportedErr("symmetric cipher")
	}
}

func (DefaultCryptoProvider) S2KDerive(spec S2KSpec, passphrase []byte, outLen int) ([]byte, error) {
	return deriveS2K(spec, passphrase, outLen)
}

// ECDHKEK derives the AES key-wrap key per RFC 6637 §7: a KDF over
// (shared-point-X || algorithm-derived "Anonymous Sender" param || the
// recipient fingerprint), truncated to the wrap cipher's key size. The
// digest is not expanded, so kdfHash must produce at least that many
// bytes.
func (DefaultCryptoProvider) ECDHKEK(fingerprint []byte, kdfHash, kdfCipher byte, shared []byte) ([]byte, error) {
	h, err := newHash(kdfHash)
	if err != nil {
		return nil, err
	}
	h.Write(marshal32be(1)) // KDF param: 32-bit counter, always 1 here
	h.Write(shared)
	h.Write([]byte{0x03, 0x01, kdfHash, kdfCipher})
	h.Write([]byte("Anonymous Sender "))
	h.Write(fingerprint)
	digest := h.Sum(nil)
	keyLen, err := cipherKeyLen(kdfCipher)
	if err != nil {
		return nil, err
	}
	return digest[:keyLen], nil
}

// cryptoHashID maps this module's hash-algorithm byte to the
// crypto.Hash value rsa.SignPKCS1v15/VerifyPKCS1v15 need for their
// DigestInfo prefix. The underscore imports above register each
// implementation with the crypto package.
func cryptoHashID(algo byte) (crypto.Hash, error) {
	switch algo {
	case HashSHA1:
		return crypto.SHA1, nil
	case HashSHA256:
		return crypto.SHA256, nil
	case HashSHA384:
		return crypto.SHA384, nil
	case HashSHA512:
		return crypto.SHA512, nil
	case HashSHA224:
		return crypto.SHA224, nil
	default:
		return 0, unsupportedErr("hash algorithm")
	}
}

func padTo(b []byte, n int) []byte {
	if len(b) >= n {
		return b[len(b)-n:]
	}
	out := make([]byte, n)
	copy(out[n-len(b):], b)
	return out
}

// truncateToQ truncates a digest to the leftmost q-bits-worth of bytes,
// as required for DSA/ECDSA when the hash is wider than the group
// order.
func truncateToQ(digest []byte, qBytes int) []byte {
	if len(digest) <= qBytes {
		return digest
	}
	return digest[:qBytes]
}

func curveFromOID(oid []byte) (elliptic.Curve, error) {
	switch {
	case len(oid) == 5 && oid[4] == 0x0a: // secp256k1 / 1.3.132.0.10
		return nil, unsupportedErr("secp256k1 (no stdlib curve implementation)")
	case len(oid) == 8: // P-256: 1.2.840.10045.3.1.7
		return elliptic.P256(), nil
	case len(oid) == 5 && oid[4] == 0x22: // P-384: 1.3.132.0.34
		return elliptic.P384(), nil
	case len(oid) == 5 && oid[4] == 0x23: // P-521: 1.3.132.0.35
		return elliptic.P521(), nil
	default:
		return nil, unsupportedErr("elliptic curve")
	}
}

// aesKeyWrapIV is the RFC 3394 default integrity-check value.
var aesKeyWrapIV = []byte{0xa6, 0xa6, 0xa6, 0xa6, 0xa6, 0xa6, 0xa6, 0xa6}

// aesKeyWrap implements RFC 3394 key wrap over PKCS#5-padded plaintext
// (RFC 6637 §8), used to protect an ECDH recipient's session key.
func aesKeyWrap(kek, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(kek)
	if err != nil {
		return nil, cryptoErr("invalid_key_material")
	}
	pad := 8 - len(plaintext)%8
	if pad == 0 {
		pad = 8
	}
	padded := append(append([]byte(nil), plaintext...), make([]byte, pad)...)
	for i := 0; i < pad; i++ {
		padded[len(plaintext)+i] = byte(pad)
	}

	n := len(padded) / 8
	r := make([][]byte, n)
	for i := range r {
		r[i] = append([]byte(nil), padded[i*8:i*8+8]...)
	}
	a := append([]byte(nil), aesKeyWrapIV...)
	buf := make([]byte, 16)
	for j := 0; j < 6; j++ {
		for i := 0; i < n; i++ {
			copy(buf[:8], a)
			copy(buf[8:], r[i])
			block.Encrypt(buf, buf)
			t := uint64(n*j + i + 1)
			a = xorUint64(buf[:8], t)
			r[i] = append([]byte(nil), buf[8:]...)
		}
	}
	out := append([]byte(nil), a...)
	for _, blk := range r {
		out = append(out, blk...)
	}
	return out, nil
}

// aesKeyUnwrap is the inverse of aesKeyWrap, validating the integrity
// value and stripping the PKCS#5-style pad.
func aesKeyUnwrap(kek, wrapped []byte) ([]byte, error) {
	block, err := aes.NewCipher(kek)
	if err != nil {
		return nil, cryptoErr("invalid_key_material")
	}
	if len(wrapped) < 16 || len(wrapped)%8 != 0 {
		return nil, integrityErr("checksum_mismatch")
	}
	a := append([]byte(nil), wrapped[:8]...)
	n := len(wrapped)/8 - 1
	r := make([][]byte, n)
	for i := range r {
		r[i] = append([]byte(nil), wrapped[8+i*8:8+i*8+8]...)
	}
	buf := make([]byte, 16)
	for j := 5; j >= 0; j-- {
		for i := n - 1; i >= 0; i-- {
			t := uint64(n*j + i + 1)
			copy(buf[:8], xorUint64(a, t))
			copy(buf[8:], r[i])
			block.Decrypt(buf, buf)
			a = append([]byte(nil), buf[:8]...)
			r[i] = append([]byte(nil), buf[8:]...)
		}
	}
	for i, b := range aesKeyWrapIV {
		if a[i] != b {
			return nil, integrityErr("checksum_mismatch")
		}
	}
	out := make([]byte, 0, n*8)
	for _, blk := range r {
		out = append(out, blk...)
	}
	if len(out) == 0 {
		return nil, integrityErr("checksum_mismatch")
	}
	pad := int(out[len(out)-1])
	if pad < 1 || pad > 8 || pad > len(out) {
		return nil, integrityErr("checksum_mismatch")
	}
	return out[:len(out)-pad], nil
}

func xorUint64(a []byte, t uint64) []byte {
	out := append([]byte(nil), a...)
	for i := 0; i < 8; i++ {
		out[7-i] ^= byte(t >> uint(8*i))
	}
	return out
}
