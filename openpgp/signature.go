// This is free and unencumbered software released into the public domain.

package openpgp

import (
	"bytes"
	"time"
)

// Signature types.
const (
	SigBinaryDocument = 0x00
	SigCanonicalDocument = 0x01
	SigStandalone = 0x02
	SigGenericCert = 0x10
	SigPersonaCert = 0x11
	SigCasualCert = 0x12
	SigPositiveCert = 0x13
	SigSubkeyBinding = 0x18
	SigPrimaryBinding = 0x19
	SigDirectlyOnKey = 0x1F
	SigKeyRevocation = 0x20
	SigSubkeyRevocation = 0x28
	SigCertificationRevocation = 0x30
	SigTimestamp = 0x40
)

// Revocation reason codes (RFC 4880 §5.2.3.23).
const (
	RevocationNoReason = 0
	RevocationKeySuperseded = 1
	RevocationKeyCompromised = 2
	RevocationKeyRetired = 3
	RevocationUIDNoLonger = 32
)

// Signature is an immutable OpenPGP signature packet: once emitted
// it is never mutated, and Verify never mutates it either.
type Signature struct {
	Version int
	Type byte
	PubKeyAlgo byte
	HashAlgo byte
	Hashed []Subpacket
	Unhashed []Subpacket
	Preview [2]byte
	MPIs [][]byte
}

// Created returns the SignatureCreationTime subpacket's value, or zero if
// absent (which should not happen for anything this engine emits).
func (s *Signature) Created() int64 {
	if sp, ok := findSubpacket(s.Hashed, s.Unhashed, SubSignatureCreationTime); ok && len(sp.Data) == 4 {
		return int64(be32(sp.Data))
	}
	return 0
}

// Expiration returns (delta, true) if a SignatureExpirationTime
// subpacket is present, delta being seconds from Created.
func (s *Signature) Expiration() (int64, bool) {
	if sp, ok := findSubpacket(s.Hashed, s.Unhashed, SubSignatureExpirationTime); ok && len(sp.Data) == 4 {
		return int64(be32(sp.Data)), true
	}
	return 0, false
}

// IssuerKeyID returns the Issuer subpacket's key ID, which is all-zero
// when the signature was made with throw_keyid.
func (s *Signature) IssuerKeyID() uint64 {
	if sp, ok := findSubpacket(s.Hashed, s.Unhashed, SubIssuer); ok && len(sp.Data) == 8 {
		return be64(sp.Data)
	}
	return 0
}

func be32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

func be64(b []byte) uint64 {
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v
}

// hashedTrailer builds the trailer appended after the canonical
// subject material: the signature's own hashed area, followed by the v4
// trailer 0x04 0xFF len32(hashed_section).
func (s *Signature) hashedTrailer() []byte {
	hashedSubs := marshalSubpackets(s.Hashed)
	out := make([]byte, 0, 6+len(hashedSubs)+6)
	out = append(out, 0x04, s.Type, s.PubKeyAlgo, s.HashAlgo)
	out = append(out, marshal16be(uint16(len(hashedSubs)))...)
	out = append(out, hashedSubs...)
	section := out // version||type||algo||algo||len||subs, i.e. the hashed section proper per RFC 4880 §5.2.4
	out = append(out, 0x04, 0xff)
	out = append(out, marshal32be(uint32(len(section)))...)
	return out
}

func (s *Signature) marshalBody() []byte {
	out := []byte{0x04, s.Type, s.PubKeyAlgo, s.HashAlgo}
	hashedSubs := marshalSubpackets(s.Hashed)
	out = append(out, marshal16be(uint16(len(hashedSubs)))...)
	out = append(out, hashedSubs...)
	unhashedSubs := marshalSubpackets(s.Unhashed)
	out = append(out, marshal16be(uint16(len(unhashedSubs)))...)
	out = append(out, unhashedSubs...)
	out = append(out, s.Preview[:]...)
	for _, m := range s.MPIs {
		out = append(out, mpi(m)...)
	}
	return out
}

// Serialize emits this signature as a complete packet.
func (s *Signature) Serialize() []byte {
	return writePacket(TagSignature, s.marshalBody())
}

// ParseSignaturePacket parses a signature packet body. A well-formed v3
// signature is accepted read-only; it is never re-serialized as v3 by
// this module.
func ParseSignaturePacket(body []byte) (*Signature, error) {
	if len(body) < 1 {
		return nil, parseErr("truncated", "signature packet")
	}
	version := int(body[0])
	if version == 3 {
		return parseV3Signature(body)
	}
	if version != 4 {
		return nil, unsupportedErr("signature packet version")
	}
	if len(body) < 4 {
		return nil, parseErr("truncated", "signature header")
	}
	sig := &Signature{Version: 4, Type: body[1], PubKeyAlgo: body[2], HashAlgo: body[3]}
	rest := body[4:]
	if len(rest) < 2 {
		return nil, parseErr("truncated", "hashed subpacket length")
	}
	hlen := int(be16(rest))
	rest = rest[2:]
	if hlen > len(rest) {
		return nil, parseErr("truncated", "hashed subpackets")
	}
	hashed, err := parseSubpackets(rest[:hlen])
	if err != nil {
		return nil, err
	}
	sig.Hashed = hashed
	rest = rest[hlen:]

	if len(rest) < 2 {
		return nil, parseErr("truncated", "unhashed subpacket length")
	}
	ulen := int(be16(rest))
	rest = rest[2:]
	if ulen > len(rest) {
		return nil, parseErr("truncated", "unhashed subpackets")
	}
	unhashed, err := parseSubpackets(rest[:ulen])
	if err != nil {
		return nil, err
	}
	sig.Unhashed = unhashed
	rest = rest[ulen:]

	if len(rest) < 2 {
		return nil, parseErr("truncated", "hash preview")
	}
	copy(sig.Preview[:], rest[:2])
	rest = rest[2:]

	for len(rest) > 0 {
		v, tail, err := mpiDecodeAny(rest)
		if err != nil {
			return nil, err
		}
		sig.MPIs = append(sig.MPIs, append([]byte(nil), v...))
		rest = tail
	}
	return sig, nil
}

func parseV3Signature(body []byte) (*Signature, error) {
	// RFC 4880 §5.2.2: version(1) hashedlen(1,=5) type(1) created(4)
	// keyid(8) pkalgo(1) hashalgo(1) preview(2) mpis...
	if len(body) < 19 {
		return nil, parseErr("truncated", "v3 signature")
	}
	sig := &Signature{Version: 3, Type: body[2], PubKeyAlgo: body[15], HashAlgo: body[16]}
	sig.Hashed = []Subpacket{
		{Type: SubSignatureCreationTime, Data: append([]byte(nil), body[3:7]...)},
	}
	sig.Unhashed = []Subpacket{
		{Type: SubIssuer, Data: append([]byte(nil), body[7:15]...)},
	}
	copy(sig.Preview[:], body[17:19])
	rest := body[19:]
	for len(rest) > 0 {
		v, tail, err := mpiDecodeAny(rest)
		if err != nil {
			return nil, err
		}
		sig.MPIs = append(sig.MPIs, append([]byte(nil), v...))
		rest = tail
	}
	return sig, nil
}

func be16(b []byte) uint16 { return uint16(b[0])<<8 | uint16(b[1]) }

// HashableSubject supplies the canonical pre-trailer hash material for a
// signature type.
type HashableSubject interface {
	hashPrefix() []byte
}

// BinaryDocument is the subject for SigBinaryDocument: the raw bytes,
// unmodified.
type BinaryDocument struct{ Data []byte }

func (d BinaryDocument) hashPrefix() []byte { return d.Data }

// CanonicalDocument is the subject for SigCanonicalDocument: CRLF
// normalized, trailing per-line whitespace stripped.
type CanonicalDocument struct{ Text []byte }

func (d CanonicalDocument) hashPrefix() []byte {
	var buf bytes.Buffer
	canonicalTextHash(&buf, d.Text)
	return buf.Bytes()
}

// keyPrefix is the 0x99||len16||public_key_body prefix RFC 4880 requires
// for key-binding, revocation, and direct-key signatures.
func keyPrefix(k *KeyMaterial) []byte {
	body := k.publicKeyBody()
	out := []byte{0x99}
	out = append(out, marshal16be(uint16(len(body)))...)
	return append(out, body...)
}

// DirectKeySubject is the subject for SigDirectlyOnKey and
// SigKeyRevocation: just the primary key's prefix.
type DirectKeySubject struct{ Primary *KeyMaterial }

func (d DirectKeySubject) hashPrefix() []byte { return keyPrefix(d.Primary) }

// KeyBindingSubject is the subject for SigSubkeyBinding,
// SigSubkeyRevocation, and SigPrimaryBinding: primary prefix concatenated
// with subkey prefix.
type KeyBindingSubject struct{ Primary, Subkey *KeyMaterial }

func (d KeyBindingSubject) hashPrefix() []byte {
	return append(keyPrefix(d.Primary), keyPrefix(d.Subkey)...)
}

// UIDCertSubject is the subject for certification signature types over a
// UserID: primary prefix || 0xB4 || len32 || uid_bytes.
type UIDCertSubject struct {
	Primary *KeyMaterial
	UID []byte
}

func (d UIDCertSubject) hashPrefix() []byte {
	out := keyPrefix(d.Primary)
	out = append(out, 0xb4)
	out = append(out, marshal32be(uint32(len(d.UID)))...)
	return append(out, d.UID...)
}

// UserAttributeCertSubject is as UIDCertSubject but for a User Attribute
// packet, using 0xD1 in place of 0xB4.
type UserAttributeCertSubject struct {
	Primary *KeyMaterial
	Attribute []byte
}

func (d UserAttributeCertSubject) hashPrefix() []byte {
	out := keyPrefix(d.Primary)
	out = append(out, 0xd1)
	out = append(out, marshal32be(uint32(len(d.Attribute)))...)
	return append(out, d.Attribute...)
}

// StandaloneSubject is the subject for signature types that sign no
// external material, only their own hashed subpackets (SigStandalone,
// SigTimestamp).
type StandaloneSubject struct{}

func (StandaloneSubject) hashPrefix() []byte { return nil }

// SignOpts configures subpacket emission for Sign.
type SignOpts struct {
	Created int64 // zero means time.Now
	ThrowKeyID bool
	Expires int64 // seconds from Created; 0 means no expiration
	Revocable *bool
	Notation map[string]string
	PolicyURI string
	TrustDepth int
	TrustAmount int
	HasTrust bool
	Regex string
	Exportable *bool
	KeyExpiration int64
	HasKeyExpiration bool
	Keyserver string
	KeyserverPrefs []byte
	PreferredCiphers []byte
	PreferredHashes []byte
	PreferredComp []byte
	Primary *bool
	Features byte
	ReasonCode byte
	ReasonText string
	HasReason bool
	RevocationKeyData []byte // class||algo||fingerprint, see SubRevocationKey

	// keyFlags carries the KeyFlags subpacket (type=27) for binding and
	// self-cert signatures. It is set through WithKeyFlags, which
	// KeyManager.AddSubkey and KeyManager.AddUID use.
	keyFlags *byte
	hasKeyFlags bool
}

// WithKeyFlags returns a copy of opts carrying the given KeyFlags byte.
func WithKeyFlags(opts SignOpts, flags byte) SignOpts {
	opts.keyFlags = &flags
	opts.hasKeyFlags = true
	return opts
}

// SignatureEngine builds and verifies signatures.
type SignatureEngine struct {
	Provider CryptoProvider
	Entropy Entropy
}

// NewSignatureEngine returns an engine using the module's default
// CryptoProvider and Entropy.
func NewSignatureEngine() *SignatureEngine {
	return &SignatureEngine{Provider: DefaultCryptoProvider{}, Entropy: DefaultEntropy}
}

// usageAllows reports whether a key's self-certified KeyFlags permit the
// given signature type. A nil flags pointer (key with no recorded flags)
// permits everything.
func usageAllows(flags *byte, sigType byte) bool {
	if flags == nil {
		return true
	}
	switch sigType {
	case SigBinaryDocument, SigCanonicalDocument, SigStandalone, SigTimestamp:
		return *flags&KeyFlagSign != 0
	case SigGenericCert, SigPersonaCert, SigCasualCert, SigPositiveCert,
		SigDirectlyOnKey, SigKeyRevocation, SigSubkeyRevocation,
		SigCertificationRevocation, SigSubkeyBinding:
		return *flags&KeyFlagCertify != 0 || *flags&KeyFlagSign != 0
	case SigPrimaryBinding:
		return *flags&KeyFlagSign != 0
	default:
		return true
	}
}

// Sign builds and signs a signature over subject with signerSecret,
// which must be unlocked.
func (e *SignatureEngine) Sign(subject HashableSubject, signerSecret *KeyMaterial, sigType byte, opts SignOpts) (*Signature, error) {
	if signerSecret.Secret == nil {
		return nil, permissionErr("needs_unlock")
	}

	created := opts.Created
	if created == 0 {
		created = time.Now().Unix()
	}

	hashAlgo := byte(HashSHA256)
	if signerSecret.Algorithm == PubKeyDSA || signerSecret.Algorithm == PubKeyECDSA {
		hashAlgo = ecdsaDSAHash(signerSecret)
	}

	var hashed []Subpacket
	hashed = append(hashed, Subpacket{Type: SubSignatureCreationTime, Data: marshal32be(uint32(created))})
	hashed = append(hashed, Subpacket{Type: SubIssuerFingerprint, Data: append([]byte{0x04}, signerSecret.Fingerprint()...)})

	if opts.ThrowKeyID {
		hashed = append(hashed, Subpacket{Type: SubIssuer, Data: make([]byte, 8)})
	} else {
		var idb [8]byte
		putBE64(idb[:], signerSecret.KeyID())
		hashed = append(hashed, Subpacket{Type: SubIssuer, Data: idb[:]})
	}

	if opts.Expires != 0 {
		hashed = append(hashed, Subpacket{Type: SubSignatureExpirationTime, Data: marshal32be(uint32(opts.Expires))})
	}
	if opts.Revocable != nil && !*opts.Revocable {
		hashed = append(hashed, Subpacket{Type: SubRevocable, Data: []byte{0}})
	}
	for k, v := range opts.Notation {
		flags := byte(0)
		if isTextual(v) {
			flags = 0x80
		}
		data := make([]byte, 8)
		data[0] = flags
		nameLen := marshal16be(uint16(len(k)))
		valLen := marshal16be(uint16(len(v)))
		data = append(data, nameLen...)
		data = append(data, valLen...)
		data = append(data, []byte(k)...)
		data = append(data, []byte(v)...)
		hashed = append(hashed, Subpacket{Type: SubNotationData, Data: data})
	}
	if opts.PolicyURI != "" {
		hashed = append(hashed, Subpacket{Type: SubPolicyURI, Data: []byte(opts.PolicyURI)})
	}
	if opts.HasTrust {
		hashed = append(hashed, Subpacket{Type: SubTrustSignature, Data: []byte{byte(opts.TrustDepth), byte(opts.TrustAmount)}})
	}
	if opts.Regex != "" {
		re := append([]byte(opts.Regex), 0)
		hashed = append(hashed, Subpacket{Type: SubRegularExpression, Data: re})
	}
	if opts.Exportable != nil {
		v := byte(0)
		if *opts.Exportable {
			v = 1
		}
		hashed = append(hashed, Subpacket{Type: SubExportable, Data: []byte{v}})
	}
	if opts.HasKeyExpiration {
		hashed = append(hashed, Subpacket{Type: SubKeyExpirationTime, Data: marshal32be(uint32(opts.KeyExpiration))})
	}
	if opts.Keyserver != "" {
		hashed = append(hashed, Subpacket{Type: SubPreferredKeyServer, Data: []byte(opts.Keyserver)})
	}
	if opts.KeyserverPrefs != nil {
		hashed = append(hashed, Subpacket{Type: SubKeyServerPreferences, Data: opts.KeyserverPrefs})
	}
	if opts.PreferredCiphers != nil {
		hashed = append(hashed, Subpacket{Type: SubPreferredSymmetric, Data: opts.PreferredCiphers})
	}
	if opts.PreferredHashes != nil {
		hashed = append(hashed, Subpacket{Type: SubPreferredHash, Data: opts.PreferredHashes})
	}
	if opts.PreferredComp != nil {
		hashed = append(hashed, Subpacket{Type: SubPreferredCompression, Data: opts.PreferredComp})
	}
	if opts.Primary != nil && *opts.Primary {
		hashed = append(hashed, Subpacket{Type: SubPrimaryUserID, Data: []byte{1}})
	}
	if opts.Features != 0 {
		hashed = append(hashed, Subpacket{Type: SubFeatures, Data: []byte{opts.Features}})
	}
	if opts.HasReason {
		data := append([]byte{opts.ReasonCode}, []byte(opts.ReasonText)...)
		hashed = append(hashed, Subpacket{Type: SubReasonForRevocation, Data: data})
	}
	if opts.hasKeyFlags {
		hashed = append(hashed, Subpacket{Type: SubKeyFlags, Data: []byte{*opts.keyFlags}})
	}
	if opts.RevocationKeyData != nil {
		hashed = append(hashed, Subpacket{Type: SubRevocationKey, Data: opts.RevocationKeyData})
	}

	sig := &Signature{
		Version: 4,
		Type: sigType,
		PubKeyAlgo: signerSecret.Algorithm,
		HashAlgo: hashAlgo,
		Hashed: hashed,
	}

	digest, err := e.digestFor(subject, sig)
	if err != nil {
		return nil, err
	}

	truncated := digest
	if signerSecret.Algorithm == PubKeyDSA || signerSecret.Algorithm == PubKeyECDSA {
		q := qLenFor(signerSecret)
		if len(digest) < q {
			return nil, policyErr("algorithm_downgrade")
		}
		truncated = digest[:q]
	}

	mpis, err := e.Provider.Sign(signerSecret.Algorithm, signerSecret, hashAlgo, truncated)
	if err != nil {
		return nil, err
	}
	sig.MPIs = mpis
	copy(sig.Preview[:], digest[:2])
	return sig, nil
}

// digestFor computes the full digest: subject's canonical material
// followed by the signature's own hashed-area trailer (for a v3
// signature, by its type and 4-byte creation time instead).
func (e *SignatureEngine) digestFor(subject HashableSubject, sig *Signature) ([]byte, error) {
	if sig.Version == 3 {
		return e.Provider.Hash(sig.HashAlgo, subject.hashPrefix(), []byte{sig.Type}, marshal32be(uint32(sig.Created())))
	}
	trailer := sig.hashedTrailer()
	return e.Provider.Hash(sig.HashAlgo, subject.hashPrefix(), trailer)
}

func ecdsaDSAHash(k *KeyMaterial) byte {
	switch len(k.OID) {
	case 5:
		if k.OID[4] == 0x22 {
			return HashSHA384
		}
		if k.OID[4] == 0x23 {
			return HashSHA512
		}
	}
	return HashSHA256
}

func qLenFor(k *KeyMaterial) int {
	switch k.Algorithm {
	case PubKeyDSA:
		if len(k.Public) > 1 {
			return len(k.Public[1])
		}
		return 20
	case PubKeyECDSA:
		return (curveBitSize(k.OID) + 7) / 8
	}
	return 32
}

func curveBitSize(oid []byte) int {
	switch {
	case len(oid) == 8:
		return 256
	case len(oid) == 5 && oid[4] == 0x22:
		return 384
	case len(oid) == 5 && oid[4] == 0x23:
		return 521
	}
	return 256
}

func isTextual(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < 0x20 && s[i] != '\n' && s[i] != '\t' {
			return false
		}
	}
	return true
}

func putBE64(b []byte, v uint64) {
	for i := 7; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
}

// SignatureVerification is one signature's outcome. It is a value,
// never an exception: callers inspect OK/IsExpired/Reason.
type SignatureVerification struct {
	Sig *Signature
	OK bool
	IsExpired bool
	Reason string
}

// VerificationSet aggregates the outcomes of verifying one or more
// signatures over one subject.
type VerificationSet struct {
	Verifications []SignatureVerification
}

// Valid reports whether every included verification is ok and none are
// expired, unless includeExpired relaxes the latter condition.
func (v *VerificationSet) Valid(includeExpired bool) bool {
	if len(v.Verifications) == 0 {
		return false
	}
	for _, sv := range v.Verifications {
		if !sv.OK {
			return false
		}
		if sv.IsExpired && !includeExpired {
			return false
		}
	}
	return true
}

// Verify checks sig over subject against candidatePublic.
func (e *SignatureEngine) Verify(subject HashableSubject, sig *Signature, candidatePublic *KeyMaterial) SignatureVerification {
	if typ, bad := unknownCriticalSubpacket(sig.Hashed); bad {
		log.WithField("subpacket", typ).Debug("verify: unknown critical subpacket, signature rejected")
		return SignatureVerification{Sig: sig, OK: false, Reason: "UnknownCriticalSubpacket"}
	}
	logUnknownNonCriticalSubpackets("verify: hashed area", sig.Hashed)
	logUnknownNonCriticalSubpackets("verify: unhashed area", sig.Unhashed)

	issuer := sig.IssuerKeyID()
	if issuer != 0 && issuer != candidatePublic.KeyID() {
		return SignatureVerification{Sig: sig, OK: false, Reason: "KeyIDMismatch"}
	}

	if sig.Created() < candidatePublic.Created {
		return SignatureVerification{Sig: sig, OK: false, Reason: "SignatureBeforeKeyCreation"}
	}

	digest, err := e.digestFor(subject, sig)
	if err != nil {
		return SignatureVerification{Sig: sig, OK: false, Reason: err.Error()}
	}
	truncated := digest
	if sig.PubKeyAlgo == PubKeyDSA || sig.PubKeyAlgo == PubKeyECDSA {
		q := qLenFor(candidatePublic)
		if len(digest) >= q {
			truncated = digest[:q]
		}
	}

	ok, err := e.Provider.Verify(sig.PubKeyAlgo, candidatePublic, sig.HashAlgo, truncated, sig.MPIs)
	if err != nil {
		return SignatureVerification{Sig: sig, OK: false, Reason: err.Error()}
	}
	if !ok {
		return SignatureVerification{Sig: sig, OK: false, Reason: "BadSignature"}
	}

	result := SignatureVerification{Sig: sig, OK: true}
	if delta, has := sig.Expiration(); has {
		expiresAt := sig.Created() + delta
		if time.Now().Unix() > expiresAt {
			result.IsExpired = true
			logExpiredSignature(candidatePublic.KeyID())
		}
	}
	return result
}
