// This is free and unencumbered software released into the public domain.

package openpgp

import (
	"crypto/sha1"
	"crypto/subtle"
	"encoding/binary"
)

// KeyMaterial holds one key's (algorithm, mpi_vector) pair plus, for a
// secret key, either cleartext secret MPIs or an S2K-wrapped envelope,
// across the full algorithm matrix.
type KeyMaterial struct {
	Algorithm byte
	Created int64

	// Public holds the algorithm-specific public MPI vector, in the
	// per-algorithm order (RSA: n,e; DSA: p,q,g,y;
	// ElGamal: p,g,y; ECDSA/EdDSA/ECDH: the point alone, with the curve
	// OID and ECDH KDF params held in OID and KDF).
	Public [][]byte
	OID []byte // ECDSA/ECDH/EdDSA curve OID, nil otherwise
	KDF []byte // ECDH KDF params (0x01||hash||cipher), nil otherwise

	// Secret, when non-nil, holds the cleartext secret MPI vector. It is
	// nil whenever the key is protected-but-locked or public-only.
	Secret [][]byte

	// Protection, when non-nil, describes how Secret is wrapped when the
	// key is serialized, and unlockWrapped holds the ciphertext that
	// backs a locked key (Secret is nil in that state).
	Protection *Protection
	unlockWrapped []byte

	fingerprint []byte
}

// Protection is the S2K envelope: (s2k_spec, symmetric_algorithm,
// iv, ciphertext). The module always emits the SHA-1 integrity tag
// (type 0xFE); it parses the legacy protected format (a bare cipher
// identifier, 2-byte checksum) only on read, never on write.
type Protection struct {
	S2K S2KSpec
	Cipher byte
	IV []byte
}

// IsProtected reports whether this key's secret is S2K-wrapped.
func (k *KeyMaterial) IsProtected() bool { return k.Protection != nil }

// IsUnlocked reports whether cleartext secret MPIs are currently held.
func (k *KeyMaterial) IsUnlocked() bool { return k.Secret != nil }

// IsSecret reports whether this KeyMaterial carries any secret
// information at all (locked or unlocked).
func (k *KeyMaterial) IsSecret() bool { return k.Secret != nil || k.unlockWrapped != nil }

// publicKeyBody serializes the public-key portion of a key packet body:
// version, created, algorithm, and the algorithm's MPI vector, per
// RFC 4880 §5.5.2. This is the body the fingerprint formula hashes.
func (k *KeyMaterial) publicKeyBody() []byte {
	out := make([]byte, 0, 64)
	out = append(out, 0x04)
	out = append(out, marshal32be(uint32(k.Created))...)
	out = append(out, k.Algorithm)
	switch k.Algorithm {
	case PubKeyECDSA, PubKeyEdDSA:
		out = append(out, byte(len(k.OID)))
		out = append(out, k.OID...)
		out = append(out, mpi(k.Public[0])...)
	case PubKeyECDH:
		out = append(out, byte(len(k.OID)))
		out = append(out, k.OID...)
		out = append(out, mpi(k.Public[0])...)
		out = append(out, byte(len(k.KDF)))
		out = append(out, k.KDF...)
	default:
		for _, m := range k.Public {
			out = append(out, mpi(m)...)
		}
	}
	return out
}

// Fingerprint is the 20-byte SHA-1 over 0x99||len16||public_key_body.
// The low 8 bytes are the KeyID; the low 4 are the ShortKeyID.
func (k *KeyMaterial) Fingerprint() []byte {
	if k.fingerprint != nil {
		return k.fingerprint
	}
	body := k.publicKeyBody()
	h := sha1.New()
	h.Write([]byte{0x99})
	h.Write(marshal16be(uint16(len(body))))
	h.Write(body)
	k.fingerprint = h.Sum(nil)
	return k.fingerprint
}

// KeyID returns the low 8 bytes of the fingerprint.
func (k *KeyMaterial) KeyID() uint64 {
	fp := k.Fingerprint()
	return binary.BigEndian.Uint64(fp[12:20])
}

// ShortKeyID returns the low 4 bytes of the fingerprint.
func (k *KeyMaterial) ShortKeyID() uint32 {
	fp := k.Fingerprint()
	return binary.BigEndian.Uint32(fp[16:20])
}

// SerializePublic emits the packet body for a public-key (or
// public-subkey) packet: just the public-key portion.
func (k *KeyMaterial) SerializePublic() []byte {
	return k.publicKeyBody()
}

// SerializeSecret emits the packet body for a secret-key (or
// secret-subkey) packet, including the protection octet and either the
// cleartext secret MPIs with a trailing checksum, or the S2K envelope.
// It returns PermissionError{needs_unlock} if the key is protected and
// currently locked.
func (k *KeyMaterial) SerializeSecret(provider CryptoProvider) ([]byte, error) {
	out := append([]byte(nil), k.publicKeyBody()...)

	if k.Protection == nil {
		out = append(out, 0x00)
		secBody := marshalSecretMPIs(k.Algorithm, k.Secret)
		out = append(out, secBody...)
		out = append(out, marshal16be(checksum(secBody))...)
		return out, nil
	}

	if k.Secret == nil && k.unlockWrapped == nil {
		return nil, permissionErr("needs_unlock")
	}

	// Secret non-nil alongside Protection means Unlock populated the
	// cleartext cache without clearing the wrapped envelope; re-emit that
	// envelope unchanged instead of re-deriving the wrapping key (Unlock
	// never retains the passphrase, so a fresh derivation here would
	// silently wrap with a nil passphrase).
	if k.unlockWrapped != nil {
		out = append(out, 0xFE)
		out = append(out, k.Protection.Cipher)
		out = append(out, s2kSpecBytes(k.Protection.S2K)...)
		out = append(out, k.Protection.IV...)
		out = append(out, k.unlockWrapped...)
		return out, nil
	}

	secBody := marshalSecretMPIs(k.Algorithm, k.Secret)
	tag := sha1.Sum(secBody)
	plain := append(append([]byte(nil), secBody...), tag[:]...)
	keyLen, err := cipherKeyLen(k.Protection.Cipher)
	if err != nil {
		return nil, err
	}
	key, err := provider.S2KDerive(k.Protection.S2K, nil, keyLen)
	if err != nil {
		return nil, err
	}
	ct, err := provider.SymCFBEncrypt(k.Protection.Cipher, key, k.Protection.IV, plain)
	if err != nil {
		return nil, err
	}
	out = append(out, 0xFE)
	out = append(out, k.Protection.Cipher)
	out = append(out, s2kSpecBytes(k.Protection.S2K)...)
	out = append(out, k.Protection.IV...)
	out = append(out, ct...)
	return out, nil
}

func s2kSpecBytes(s S2KSpec) []byte {
	out := []byte{s.Kind, s.Hash}
	switch s.Kind {
	case S2KSalted:
		out = append(out, s.Salt...)
	case S2KIteratedSalted:
		out = append(out, s.Salt...)
		out = append(out, s.Count)
	}
	return out
}

func marshalSecretMPIs(algo byte, secret [][]byte) []byte {
	var out []byte
	switch algo {
	case PubKeyEdDSA:
		out = append(out, mpi(secret[0])...)
	default:
		for _, m := range secret {
			out = append(out, mpi(m)...)
		}
	}
	return out
}

// Protect wraps the currently-unlocked secret in a fresh S2K envelope
// using passphrase, cipher, and hash, calibrating the iteration count to
// roughly 65-130ms. It returns PermissionError{needs_unlock} if
// no cleartext secret is currently held.
func (k *KeyMaterial) Protect(provider CryptoProvider, entropy Entropy, passphrase []byte, cipher, hashAlgo byte) error {
	if k.Secret == nil {
		return permissionErr("needs_unlock")
	}
	blockLen, err := cipherBlockLen(cipher)
	if err != nil {
		return err
	}
	keyLen, err := cipherKeyLen(cipher)
	if err != nil {
		return err
	}
	saltIV, err := entropy.Read(8 + blockLen)
	if err != nil {
		return err
	}
	spec := S2KSpec{
		Kind: S2KIteratedSalted,
		Hash: hashAlgo,
		Salt: saltIV[:8],
		Count: calibrateS2KCount(hashAlgo, 100),
	}
	key, err := provider.S2KDerive(spec, passphrase, keyLen)
	if err != nil {
		return err
	}
	secBody := marshalSecretMPIs(k.Algorithm, k.Secret)
	tag := sha1.Sum(secBody)
	plain := append(append([]byte(nil), secBody...), tag[:]...)
	ct, err := provider.SymCFBEncrypt(cipher, key, saltIV[8:], plain)
	if err != nil {
		return err
	}
	k.Protection = &Protection{S2K: spec, Cipher: cipher, IV: append([]byte(nil), saltIV[8:]...)}
	k.unlockWrapped = ct
	k.Secret = nil
	return nil
}

// Unlocked is the scoped handle Unlock returns: secret MPIs live only
// inside it, and Release zeroizes them deterministically on every exit
// path. Callers should `defer u.Release()` immediately after Unlock.
type Unlocked struct {
	key *KeyMaterial
	secret [][]byte
}

// Release zeroizes the secret MPI buffers and detaches them from the
// scope. It is idempotent.
func (u *Unlocked) Release() {
	if u == nil {
		return
	}
	for _, m := range u.secret {
		for i := range m {
			m[i] = 0
		}
	}
	u.secret = nil
}

// Unlock decrypts a protected secret, validates its SHA-1 integrity tag,
// and returns a scoped handle. The legacy 2-byte checksum is not checked,
// so a key in the legacy protected format fails to unlock. If the key is
// not protected, Unlock is a no-op success (the secret is already
// available).
func (k *KeyMaterial) Unlock(provider CryptoProvider, passphrase []byte) (*Unlocked, error) {
	if k.Protection == nil {
		if k.Secret == nil {
			return nil, permissionErr("needs_unlock")
		}
		return &Unlocked{key: k, secret: k.Secret}, nil
	}
	if k.unlockWrapped == nil {
		return nil, permissionErr("needs_unlock")
	}
	keyLen, err := cipherKeyLen(k.Protection.Cipher)
	if err != nil {
		return nil, err
	}
	key, err := provider.S2KDerive(k.Protection.S2K, passphrase, keyLen)
	if err != nil {
		return nil, err
	}
	plain, err := provider.SymCFBDecrypt(k.Protection.Cipher, key, k.Protection.IV, k.unlockWrapped)
	if err != nil {
		return nil, cryptoErr("invalid_key_material")
	}
	if len(plain) < 20 {
		return nil, cryptoErr("invalid_key_material")
	}
	secBody, tag := plain[:len(plain)-20], plain[len(plain)-20:]
	want := sha1.Sum(secBody)
	if subtle.ConstantTimeCompare(want[:], tag) == 0 {
		return nil, cryptoErr("invalid_key_material")
	}
	secret, err := unmarshalSecretMPIs(k.Algorithm, secBody)
	if err != nil {
		return nil, err
	}
	k.Secret = secret
	return &Unlocked{key: k, secret: secret}, nil
}

func unmarshalSecretMPIs(algo byte, body []byte) ([][]byte, error) {
	count := secretMPICount(algo)
	out := make([][]byte, 0, count)
	for i := 0; i < count; i++ {
		v, tail, err := mpiDecodeAny(body)
		if err != nil {
			return nil, err
		}
		out = append(out, append([]byte(nil), v...))
		body = tail
	}
	return out, nil
}

func secretMPICount(algo byte) int {
	switch algo {
	case PubKeyRSA:
		return 4 // d, p, q, u
	case PubKeyDSA:
		return 1 // x
	case PubKeyElGamal:
		return 1 // x
	case PubKeyECDSA, PubKeyECDH, PubKeyEdDSA:
		return 1 // d / seed
	default:
		return 1
	}
}

// SerializePublicKeyPacket frames SerializePublic as a complete
// Public-Key or Public-Subkey packet.
func (k *KeyMaterial) SerializePublicKeyPacket(subkey bool) []byte {
	tag := TagPublicKey
	if subkey {
		tag = TagPublicSubkey
	}
	return writePacket(tag, k.SerializePublic())
}

// SerializeSecretKeyPacket frames SerializeSecret as a complete
// Secret-Key or Secret-Subkey packet.
func (k *KeyMaterial) SerializeSecretKeyPacket(provider CryptoProvider, subkey bool) ([]byte, error) {
	tag := TagSecretKey
	if subkey {
		tag = TagSecretSubkey
	}
	body, err := k.SerializeSecret(provider)
	if err != nil {
		return nil, err
	}
	return writePacket(tag, body), nil
}

// ParseKeyMaterial parses a public-key, public-subkey, secret-key, or
// secret-subkey packet body into a KeyMaterial (the inverse of
// SerializePublic/SerializeSecret).
func ParseKeyMaterial(pkt Packet) (*KeyMaterial, error) {
	body := pkt.Body
	isSecret := pkt.Tag == TagSecretKey || pkt.Tag == TagSecretSubkey
	if len(body) < 6 || body[0] != 0x04 {
		return nil, parseErr("bad_version", "only v4 keys are supported")
	}
	created := int64(be32(body[1:5]))
	algo := body[5]
	rest := body[6:]

	km := &KeyMaterial{Algorithm: algo, Created: created}
	switch algo {
	case PubKeyECDSA, PubKeyEdDSA, PubKeyECDH:
		if len(rest) < 1 {
			return nil, parseErr("truncated", "curve OID length")
		}
		oidLen := int(rest[0])
		if len(rest) < 1+oidLen {
			return nil, parseErr("truncated", "curve OID")
		}
		km.OID = append([]byte(nil), rest[1:1+oidLen]...)
		rest = rest[1+oidLen:]
		point, tail, err := mpiDecodeAny(rest)
		if err != nil {
			return nil, err
		}
		km.Public = [][]byte{point}
		rest = tail
		if algo == PubKeyECDH {
			if len(rest) < 1 {
				return nil, parseErr("truncated", "ECDH KDF params")
			}
			kdfLen := int(rest[0])
			if len(rest) < 1+kdfLen {
				return nil, parseErr("truncated", "ECDH KDF params")
			}
			km.KDF = append([]byte(nil), rest[1:1+kdfLen]...)
			rest = rest[1+kdfLen:]
		}
	default:
		count := publicMPICount(algo)
		for i := 0; i < count; i++ {
			v, tail, err := mpiDecodeAny(rest)
			if err != nil {
				return nil, err
			}
			km.Public = append(km.Public, v)
			rest = tail
		}
	}

	if !isSecret {
		return km, nil
	}
	if len(rest) < 1 {
		return nil, parseErr("truncated", "secret key protection octet")
	}
	switch rest[0] {
	case 0x00:
		secBody := rest[1 : len(rest)-2]
		secret, err := unmarshalSecretMPIs(algo, secBody)
		if err != nil {
			return nil, err
		}
		km.Secret = secret
	case 0xFE:
		cipher := rest[1]
		s2kBody := rest[2:]
		spec, consumed, err := parseS2KSpec(s2kBody)
		if err != nil {
			return nil, err
		}
		blockLen, err := cipherBlockLen(cipher)
		if err != nil {
			return nil, err
		}
		iv := s2kBody[consumed : consumed+blockLen]
		ct := s2kBody[consumed+blockLen:]
		km.Protection = &Protection{S2K: spec, Cipher: cipher, IV: append([]byte(nil), iv...)}
		km.unlockWrapped = append([]byte(nil), ct...)
	default:
		// Non-zero, non-0xFE is a bare cipher algorithm identifier: legacy
		// 2-byte-checksum protected format, accepted read-only.
		cipher := rest[0]
		s2kBody := rest[1:]
		spec, consumed, err := parseS2KSpec(s2kBody)
		if err != nil {
			return nil, err
		}
		blockLen, err := cipherBlockLen(cipher)
		if err != nil {
			return nil, err
		}
		iv := s2kBody[consumed : consumed+blockLen]
		ct := s2kBody[consumed+blockLen:]
		km.Protection = &Protection{S2K: spec, Cipher: cipher, IV: append([]byte(nil), iv...)}
		km.unlockWrapped = append([]byte(nil), ct...)
	}
	return km, nil
}

func publicMPICount(algo byte) int {
	switch algo {
	case PubKeyRSA:
		return 2 // n, e
	case PubKeyDSA:
		return 4 // p, q, g, y
	case PubKeyElGamal:
		return 3 // p, g, y
	default:
		return 1
	}
}

// parseS2KSpec parses an S2K specifier and returns the number of bytes
// consumed, mirroring s2kSpecBytes's encoding.
func parseS2KSpec(b []byte) (S2KSpec, int, error) {
	if len(b) < 2 {
		return S2KSpec{}, 0, parseErr("truncated", "s2k specifier")
	}
	spec := S2KSpec{Kind: b[0], Hash: b[1]}
	switch spec.Kind {
	case S2KSimple:
		return spec, 2, nil
	case S2KSalted:
		if len(b) < 10 {
			return S2KSpec{}, 0, parseErr("truncated", "salted s2k")
		}
		spec.Salt = append([]byte(nil), b[2:10]...)
		return spec, 10, nil
	case S2KIteratedSalted:
		if len(b) < 11 {
			return S2KSpec{}, 0, parseErr("truncated", "iterated-salted s2k")
		}
		spec.Salt = append([]byte(nil), b[2:10]...)
		spec.Count = b[10]
		return spec, 11, nil
	default:
		return S2KSpec{}, 0, unsupportedErr("s2k kind")
	}
}

// PubkeyOf returns a copy of k with any secret material (cleartext or
// wrapped) stripped, for KeyManager.PubkeyOf.
func (k *KeyMaterial) PubkeyOf() *KeyMaterial {
	cp := *k
	cp.Secret = nil
	cp.Protection = nil
	cp.unlockWrapped = nil
	return &cp
}
