// This is free and unencumbered software released into the public domain.

package openpgp

import "time"

// UserID is a User ID packet's body: a single UTF-8 string, typically
// "Name <email>" (RFC 4880 §5.11).
type UserID struct {
	Value string
}

func (u *UserID) bytes() []byte { return []byte(u.Value) }

func (u *UserID) serialize() []byte { return writePacket(TagUserID, u.bytes()) }

// Serialize emits this UserID as a complete User ID packet.
func (u *UserID) Serialize() []byte { return u.serialize() }

// Identity binds one UserID to the primary key with one or more
// certifications. Exactly one UID may be marked primary.
type Identity struct {
	UID *UserID
	SelfCerts []*Signature
	ThirdPartyCerts []*Signature
	Primary bool
}

// currentSelfCert returns the self-certification with the greatest
// SignatureCreationTime, ties broken by serialized byte order.
func (id *Identity) currentSelfCert() *Signature {
	var best *Signature
	for _, s := range id.SelfCerts {
		if best == nil {
			best = s
			continue
		}
		if s.Created() > best.Created() {
			best = s
		} else if s.Created() == best.Created() {
			if bytesGreater(s.Serialize(), best.Serialize()) {
				best = s
			}
		}
	}
	return best
}

func bytesGreater(a, b []byte) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i] > b[i]
		}
	}
	return len(a) > len(b)
}

// Subkey is one subkey, its binding signature(s), optional embedded
// cross-signature, and any revocation.
type Subkey struct {
	Key *KeyMaterial
	Binding *Signature
	Revocation *Signature
	usageFlags byte
}

// Key is the in-memory Transferable Key: primary + direct-key
// signatures + identities + subkeys, in emission order.
type Key struct {
	Primary *KeyMaterial
	DirectSigs []*Signature
	Identities []*Identity
	Subkeys []*Subkey
	Revocation *Signature
	RevokerPub []byte // designated revoker fingerprint, if any
	RevokerSensitive bool
}

// IsRevoked reports whether this key carries a primary-key revocation
// signature. Trust evaluation of who issued it is out of scope; this
// only checks presence.
func (k *Key) IsRevoked() bool { return k.Revocation != nil }

// GetUID returns the first identity matching name exactly, or nil.
func (k *Key) GetUID(name string) *Identity {
	for _, id := range k.Identities {
		if id.UID.Value == name {
			return id
		}
	}
	return nil
}

// DelUID removes the first identity matching name exactly. It reports
// whether anything was removed.
func (k *Key) DelUID(name string) bool {
	for i, id := range k.Identities {
		if id.UID.Value == name {
			k.Identities = append(k.Identities[:i], k.Identities[i+1:]...)
			return true
		}
	}
	return false
}

// KeyManager assembles, certifies, and revokes Transferable Keys.
// Every emission is required to round-trip through the parser;
// roundTripCheck below is the shared helper that enforces this.
type KeyManager struct {
	Engine *SignatureEngine
}

// NewKeyManager returns a manager using the default SignatureEngine.
func NewKeyManager() *KeyManager {
	return &KeyManager{Engine: NewSignatureEngine()}
}

// KeyParams selects the algorithm and algorithm-specific size/curve for
// NewKey.
type KeyParams struct {
	Algorithm byte
	Bits int // RSA/DSA/ElGamal modulus size
	Curve string // ECDSA/ECDH/EdDSA curve name, see curveOID
	Created int64 // zero means time.Now
	// Seed, when non-nil, deterministically derives the secret (e.g. from
	// KDF(passphrase)). When nil, Entropy supplies fresh randomness.
	Seed []byte
}

// NewKey creates an unbound primary secret key.
func (m *KeyManager) NewKey(params KeyParams) (*Key, error) {
	created := params.Created
	if created == 0 {
		created = time.Now().Unix()
	}
	km, err := generateKeyMaterial(m.Engine, params, created)
	if err != nil {
		return nil, err
	}
	return &Key{Primary: km}, nil
}

func generateKeyMaterial(e *SignatureEngine, params KeyParams, created int64) (*KeyMaterial, error) {
	switch params.Algorithm {
	case PubKeyEdDSA:
		seed := params.Seed
		if seed == nil {
			var err error
			seed, err = e.Entropy.Read(32)
			if err != nil {
				return nil, err
			}
		}
		pub, sec, err := edwardsFromSeed(seed)
		if err != nil {
			return nil, err
		}
		return &KeyMaterial{
			Algorithm: PubKeyEdDSA, Created: created,
			OID: curveOID["Ed25519"],
			Public: [][]byte{append([]byte{0x40}, pub...)},
			Secret: [][]byte{sec},
		}, nil

	case PubKeyECDH:
		seed := params.Seed
		if seed == nil {
			var err error
			seed, err = e.Entropy.Read(32)
			if err != nil {
				return nil, err
			}
		}
		pub, err := curve25519Base(seed)
		if err != nil {
			return nil, err
		}
		return &KeyMaterial{
			Algorithm: PubKeyECDH, Created: created,
			OID: curveOID["Curve25519"],
			KDF: []byte{0x01, HashSHA256, CipherAES128},
			Public: [][]byte{append([]byte{0x40}, pub...)},
			Secret: [][]byte{seed},
		}, nil

	case PubKeyRSA:
		return generateRSA(params.Bits, created)

	case PubKeyECDSA:
		curve := params.Curve
		if curve == "" {
			curve = "NIST P-256"
		}
		return generateECDSA(curve, created)

	default:
		return nil, unsupportedErr("key generation algorithm")
	}
}

// AddUID appends a user ID and its self-certification. The first
// UID added is primary unless opts.Primary is explicitly set false.
func (m *KeyManager) AddUID(k *Key, uidValue string, opts SignOpts) (*Signature, error) {
	if k.Primary.Secret == nil {
		return nil, permissionErr("needs_unlock")
	}
	uid := &UserID{Value: uidValue}
	isFirst := len(k.Identities) == 0
	primary := opts.Primary
	if primary == nil && isFirst {
		t := true
		primary = &t
	}
	opts.Primary = primary
	if opts.Features == 0 {
		opts.Features = FeatureModificationDetection
	}
	if !opts.hasKeyFlags {
		// Asserts sign and certify on the primary's own self-cert: some
		// implementations treat an absent KeyFlags subpacket as if every
		// flag were zero.
		opts = WithKeyFlags(opts, KeyFlagSign|KeyFlagCertify)
	}

	sig, err := m.Engine.Sign(UIDCertSubject{Primary: k.Primary, UID: uid.bytes()}, k.Primary, SigPositiveCert, opts)
	if err != nil {
		return nil, err
	}
	if err := roundTripCheck(sig); err != nil {
		return nil, err
	}

	if primary != nil && *primary {
		for _, id := range k.Identities {
			id.Primary = false
		}
	}
	k.Identities = append(k.Identities, &Identity{UID: uid, SelfCerts: []*Signature{sig}, Primary: primary != nil && *primary})
	return sig, nil
}

// AddSubkey binds subkey to k's primary with the given usage flags. If
// usageFlags includes KeyFlagSign, a PrimaryBinding cross-signature is
// additionally produced by the subkey and embedded in the binding
// signature's unhashed area via EmbeddedSignature.
func (m *KeyManager) AddSubkey(k *Key, subkey *KeyMaterial, usageFlags byte) (*Signature, error) {
	if k.Primary.Secret == nil {
		return nil, permissionErr("needs_unlock")
	}
	opts := WithKeyFlags(SignOpts{}, usageFlags)
	bindingSig, err := m.Engine.Sign(KeyBindingSubject{Primary: k.Primary, Subkey: subkey}, k.Primary, SigSubkeyBinding, opts)
	if err != nil {
		return nil, err
	}

	if usageFlags&KeyFlagSign != 0 {
		if subkey.Secret == nil {
			return nil, permissionErr("needs_unlock")
		}
		crossSig, err := m.Engine.Sign(KeyBindingSubject{Primary: k.Primary, Subkey: subkey}, subkey, SigPrimaryBinding, SignOpts{})
		if err != nil {
			return nil, err
		}
		if err := roundTripCheck(crossSig); err != nil {
			return nil, err
		}
		bindingSig.Unhashed = append(bindingSig.Unhashed, Subpacket{
			Type: SubEmbeddedSignature,
			Data: crossSig.marshalBody(),
		})
	}

	if err := roundTripCheck(bindingSig); err != nil {
		return nil, err
	}
	k.Subkeys = append(k.Subkeys, &Subkey{Key: subkey, Binding: bindingSig, usageFlags: usageFlags})
	return bindingSig, nil
}

// Revoker records a designated revoker for k by emitting a self-signature
// carrying a RevocationKey subpacket.
func (m *KeyManager) Revoker(k *Key, designatedFingerprint []byte, sensitive bool) (*Signature, error) {
	if k.Primary.Secret == nil {
		return nil, permissionErr("needs_unlock")
	}
	class := byte(0x80)
	if sensitive {
		class |= 0x40
	}
	data := append([]byte{class, PubKeyRSA}, designatedFingerprint...)
	sig, err := m.Engine.Sign(DirectKeySubject{Primary: k.Primary}, k.Primary, SigDirectlyOnKey, SignOpts{RevocationKeyData: data})
	if err != nil {
		return nil, err
	}
	if err := roundTripCheck(sig); err != nil {
		return nil, err
	}
	k.RevokerPub = designatedFingerprint
	k.RevokerSensitive = sensitive
	return sig, nil
}

// RevokeTarget selects what Revoke acts on.
type RevokeTarget struct {
	Subkey *KeyMaterial // nil means the primary key itself
	Certification *Signature // non-nil revokes a prior certification
	UID []byte // required alongside Certification
}

// Revoke produces a KeyRevocation, SubkeyRevocation, or
// CertificationRevocation signature depending on target's kind.
func (m *KeyManager) Revoke(k *Key, target RevokeTarget, reasonCode byte, comment string) (*Signature, error) {
	if k.Primary.Secret == nil {
		return nil, permissionErr("needs_unlock")
	}
	opts := SignOpts{HasReason: true, ReasonCode: reasonCode, ReasonText: comment}

	switch {
	case target.Certification != nil:
		sig, err := m.Engine.Sign(UIDCertSubject{Primary: k.Primary, UID: target.UID}, k.Primary, SigCertificationRevocation, opts)
		if err != nil {
			return nil, err
		}
		return sig, roundTripCheck(sig)

	case target.Subkey != nil:
		sig, err := m.Engine.Sign(KeyBindingSubject{Primary: k.Primary, Subkey: target.Subkey}, k.Primary, SigSubkeyRevocation, opts)
		if err != nil {
			return nil, err
		}
		if err := roundTripCheck(sig); err != nil {
			return nil, err
		}
		for _, sk := range k.Subkeys {
			if sk.Key == target.Subkey {
				sk.Revocation = sig
			}
		}
		return sig, nil

	default:
		sig, err := m.Engine.Sign(DirectKeySubject{Primary: k.Primary}, k.Primary, SigKeyRevocation, opts)
		if err != nil {
			return nil, err
		}
		if err := roundTripCheck(sig); err != nil {
			return nil, err
		}
		k.Revocation = sig
		logRevocation(k.Primary.KeyID(), reasonCode)
		return sig, nil
	}
}

// PubkeyOf rebuilds a transferable public block: primary and every
// subkey stripped of secret material, all signatures preserved.
func (m *KeyManager) PubkeyOf(k *Key) *Key {
	out := &Key{
		Primary: k.Primary.PubkeyOf(),
		DirectSigs: k.DirectSigs,
		Revocation: k.Revocation,
		RevokerPub: k.RevokerPub,
	}
	for _, id := range k.Identities {
		out.Identities = append(out.Identities, &Identity{
			UID: id.UID, SelfCerts: id.SelfCerts,
			ThirdPartyCerts: id.ThirdPartyCerts, Primary: id.Primary,
		})
	}
	for _, sk := range k.Subkeys {
		out.Subkeys = append(out.Subkeys, &Subkey{
			Key: sk.Key.PubkeyOf(), Binding: sk.Binding,
			Revocation: sk.Revocation, usageFlags: sk.usageFlags,
		})
	}
	return out
}

// roundTripCheck asserts serialize(parse(x)) == x, catching any
// internal inconsistency in subpacket assembly before a signature leaves
// the package.
func roundTripCheck(sig *Signature) error {
	body := sig.marshalBody()
	reparsed, err := ParseSignaturePacket(body)
	if err != nil {
		return wrap(err, "signature round-trip")
	}
	if !bytesEqual(reparsed.marshalBody(), body) {
		return parseErr("bad_length", "signature failed round-trip check")
	}
	return nil
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
