// This is free and unencumbered software released into the public domain.

package openpgp

import (
	"bytes"
	"compress/bzip2"
	"io"
	"time"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zlib"
)

// MessageKind is the Variant tag of the Message sum type.
type MessageKind int

const (
	MessageLiteral MessageKind = iota
	MessageCompressed
	MessageSigned
	MessageEncrypted
	MessageCleartext
)

// LiteralData is a Literal Data packet's content (RFC 4880 §5.9).
type LiteralData struct {
	Format byte // 'b' binary, 't' text, 'u' utf8
	Filename string
	ModTime int64
	Data []byte
	IsSensitive bool
}

// SessionKeyPacket is a Public-Key or Symmetric-Key Encrypted Session
// Key packet, discriminated by IsPublicKey.
type SessionKeyPacket struct {
	IsPublicKey bool

	// PKESK fields.
	KeyID uint64 // zero means throw_keyid
	PKAlgo byte
	EncryptedKey [][]byte

	// SKESK fields.
	CipherAlgo byte
	S2K S2KSpec
	ESK []byte // absent (nil) when the derived key is the session key itself
}

// Message is the tagged union: exactly one of the kind-specific field
// groups below is meaningful for a given Kind.
type Message struct {
	Kind MessageKind

	Literal *LiteralData

	CompressAlgo byte
	Inner *Message

	OnePass []*onePassSignature
	Signatures []*Signature

	Sessions []SessionKeyPacket
	CipherAlgo byte
	Ciphertext []byte // the decrypted plaintext once Decrypt succeeds; nil otherwise
	sealed []byte // the still-encrypted container body, present until Decrypt

	Text []byte // Cleartext
	HashAlgosUsed []byte
}

// onePassSignature is a One-Pass Signature packet (RFC 4880 §5.4), the
// preamble MessagePipeline.Sign writes before a Signed container's inner
// message so streaming verifiers can start hashing immediately.
type onePassSignature struct {
	SigType byte
	HashAlgo byte
	PubKeyAlgo byte
	KeyID uint64
	Nested bool
}

func (o *onePassSignature) marshal() []byte {
	body := []byte{0x03, o.SigType, o.HashAlgo, o.PubKeyAlgo}
	idb := make([]byte, 8)
	putBE64(idb, o.KeyID)
	body = append(body, idb...)
	nested := byte(0)
	if o.Nested {
		nested = 1
	}
	body = append(body, nested)
	return writePacket(TagOnePassSignature, body)
}

func parseOnePassSignature(body []byte) (*onePassSignature, error) {
	if len(body) != 13 {
		return nil, parseErr("truncated", "one-pass signature")
	}
	return &onePassSignature{
		SigType: body[1], HashAlgo: body[2], PubKeyAlgo: body[3],
		KeyID: be64(body[4:12]), Nested: body[12] != 0,
	}, nil
}

// ParseEncryptedMessage assembles an Encrypted Message from a leading
// run of PKESK/SKESK packets followed by a SymEncIntegrityProtected
// container. It does not decrypt; call MessagePipeline.Decrypt on
// the result.
func ParseEncryptedMessage(pkts []Packet) (*Message, error) {
	var sessions []SessionKeyPacket
	i := 0
	for i < len(pkts) {
		switch pkts[i].Tag {
		case TagPublicKeyEncryptedSessionKey:
			body := pkts[i].Body
			if len(body) < 10 || body[0] != 0x03 {
				return nil, parseErr("bad_version", "PKESK")
			}
			keyID := be64(body[1:9])
			pkAlgo := body[9]
			mpis, _, err := decodeMPIVector(body[10:], pkAlgoCipherTextCount(pkAlgo))
			if err != nil {
				return nil, err
			}
			sessions = append(sessions, SessionKeyPacket{IsPublicKey: true, KeyID: keyID, PKAlgo: pkAlgo, EncryptedKey: mpis})
			i++
		case TagSymmetricKeyEncryptedSession:
			body := pkts[i].Body
			if len(body) < 2 || body[0] != 0x04 {
				return nil, parseErr("bad_version", "SKESK")
			}
			cipher := body[1]
			spec, consumed, err := parseS2KSpec(body[2:])
			if err != nil {
				return nil, err
			}
			esk := body[2+consumed:]
			skesk := SessionKeyPacket{CipherAlgo: cipher, S2K: spec}
			if len(esk) > 0 {
				skesk.ESK = append([]byte(nil), esk...)
			}
			sessions = append(sessions, skesk)
			i++
		case TagSymEncIntegrityProtected:
			if len(pkts[i].Body) < 1 || pkts[i].Body[0] != 1 {
				return nil, parseErr("bad_version", "symmetrically encrypted integrity protected data")
			}
			return &Message{Kind: MessageEncrypted, Sessions: sessions, sealed: append([]byte(nil), pkts[i].Body[1:]...)}, nil
		default:
			return nil, parseErr("bad_tag", "expected session key packet or encrypted container")
		}
	}
	return nil, parseErr("truncated", "missing encrypted data container")
}

func pkAlgoCipherTextCount(algo byte) int {
	switch algo {
	case PubKeyRSA:
		return 1
	case PubKeyElGamal, PubKeyECDH:
		return 2
	default:
		return 1
	}
}

func decodeMPIVector(b []byte, count int) ([][]byte, []byte, error) {
	out := make([][]byte, 0, count)
	for i := 0; i < count; i++ {
		v, tail, err := mpiDecodeAny(b)
		if err != nil {
			return nil, nil, err
		}
		out = append(out, v)
		b = tail
	}
	return out, b, nil
}

// MessagePipeline builds and consumes Message values.
type MessagePipeline struct {
	Provider CryptoProvider
	Entropy Entropy
	Engine *SignatureEngine
}

// NewMessagePipeline returns a pipeline using the module's default
// CryptoProvider and Entropy.
func NewMessagePipeline() *MessagePipeline {
	return &MessagePipeline{Provider: DefaultCryptoProvider{}, Entropy: DefaultEntropy, Engine: NewSignatureEngine()}
}

// NewLiteral builds a Literal message, optionally wrapped in a
// Compressed container. When sensitive is true, filename is
// forced to "_CONSOLE" per GnuPG convention.
func (p *MessagePipeline) NewLiteral(payload []byte, filename string, sensitive bool, format byte, compression byte) (*Message, error) {
	if sensitive {
		filename = "_CONSOLE"
	}
	lit := &Message{Kind: MessageLiteral, Literal: &LiteralData{
		Format: format, Filename: filename, ModTime: time.Now().Unix(),
		Data: payload, IsSensitive: sensitive,
	}}
	if compression == CompressionUncompressed {
		return lit, nil
	}
	return &Message{Kind: MessageCompressed, CompressAlgo: compression, Inner: lit}, nil
}

// NewCleartext stores a copy of text, unmodified, for cleartext-signed
// framing. Canonicalization is applied when the text is hashed
// (canonicalTextHash) and when it is dash-escaped for output.
func (p *MessagePipeline) NewCleartext(text []byte) *Message {
	return &Message{Kind: MessageCleartext, Text: append([]byte(nil), text...)}
}

func (d *LiteralData) serializeBody() []byte {
	out := []byte{d.Format, byte(len(d.Filename))}
	out = append(out, []byte(d.Filename)...)
	out = append(out, marshal32be(uint32(d.ModTime))...)
	out = append(out, d.Data...)
	return out
}

func parseLiteralData(body []byte) (*LiteralData, error) {
	if len(body) < 6 {
		return nil, parseErr("truncated", "literal data header")
	}
	format := body[0]
	nlen := int(body[1])
	if len(body) < 2+nlen+4 {
		return nil, parseErr("truncated", "literal data filename")
	}
	filename := string(body[2 : 2+nlen])
	rest := body[2+nlen:]
	modTime := int64(be32(rest[:4]))
	data := rest[4:]
	return &LiteralData{Format: format, Filename: filename, ModTime: modTime, Data: data, IsSensitive: filename == "_CONSOLE"}, nil
}

// serializeInner serializes Literal/Compressed/Signed messages (not
// Encrypted or Cleartext, which have their own top-level framing) to the
// packet sequence that sits inside an encrypted container or at the top
// of a plain message.
func (p *MessagePipeline) serializeInner(m *Message) ([]byte, error) {
	switch m.Kind {
	case MessageLiteral:
		return writePacket(TagLiteralData, m.Literal.serializeBody()), nil

	case MessageCompressed:
		raw, err := p.serializeInner(m.Inner)
		if err != nil {
			return nil, err
		}
		compressed, err := compress(m.CompressAlgo, raw)
		if err != nil {
			return nil, err
		}
		body := append([]byte{m.CompressAlgo}, compressed...)
		return writePacket(TagCompressedData, body), nil

	case MessageSigned:
		var out []byte
		for i, ops := range m.OnePass {
			ops.Nested = i != len(m.OnePass)-1
			out = append(out, ops.marshal()...)
		}
		inner, err := p.serializeInner(m.Inner)
		if err != nil {
			return nil, err
		}
		out = append(out, inner...)
		for i := len(m.Signatures) - 1; i >= 0; i-- {
			out = append(out, m.Signatures[i].Serialize()...)
		}
		return out, nil

	default:
		return nil, unsupportedErr("message kind for inner serialization")
	}
}

func compress(algo byte, data []byte) ([]byte, error) {
	var buf bytes.Buffer
	switch algo {
	case CompressionZIP:
		w, err := flate.NewWriter(&buf, flate.DefaultCompression)
		if err != nil {
			return nil, wrap(err, "zip compress")
		}
		w.Write(data)
		w.Close()
	case CompressionZLIB:
		w := zlib.NewWriter(&buf)
		w.Write(data)
		w.Close()
	case CompressionBZip2:
		// No BZip2 encoder exists anywhere in the retrieved corpus or its
		// transitive dependency graph; stdlib compress/bzip2 is
		// decode-only. See SPEC_FULL.md / DESIGN.md.
		return nil, unsupportedErr("BZip2 compression (encode)")
	default:
		return data, nil
	}
	return buf.Bytes(), nil
}

func decompress(algo byte, data []byte) ([]byte, error) {
	var r io.Reader
	switch algo {
	case CompressionZIP:
		r = flate.NewReader(bytes.NewReader(data))
	case CompressionZLIB:
		zr, err := zlib.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, wrap(err, "zlib decompress")
		}
		defer zr.Close()
		r = zr
	case CompressionBZip2:
		r = bzip2.NewReader(bytes.NewReader(data))
	default:
		return data, nil
	}
	return io.ReadAll(r)
}

// EncryptOpts configures MessagePipeline.Encrypt.
type EncryptOpts struct {
	Recipients []*KeyMaterial
	Passphrases [][]byte
	Cipher byte
	SessionKey []byte // when nil, a fresh key of Cipher's length is generated
	ThrowKeyID bool
}

// buildSessions produces one PKESK per recipient and one SKESK per
// passphrase in opts, all wrapping sessionKey under cipher.
func (p *MessagePipeline) buildSessions(sessionKey []byte, cipher byte, opts EncryptOpts) ([]SessionKeyPacket, error) {
	keyLen, err := cipherKeyLen(cipher)
	if err != nil {
		return nil, err
	}

	var sessions []SessionKeyPacket
	sum := checksum(sessionKey)
	material := append(append([]byte{cipher}, sessionKey...), byte(sum>>8), byte(sum))

	for _, recip := range opts.Recipients {
		mpis, err := p.Provider.PKEncrypt(recip.Algorithm, recip, material)
		if err != nil {
			return nil, err
		}
		keyID := recip.KeyID()
		if opts.ThrowKeyID {
			keyID = 0
		}
		sessions = append(sessions, SessionKeyPacket{
			IsPublicKey: true, KeyID: keyID, PKAlgo: recip.Algorithm, EncryptedKey: mpis,
		})
	}

	for _, pass := range opts.Passphrases {
		salt, err := p.Entropy.Read(8)
		if err != nil {
			return nil, err
		}
		spec := S2KSpec{Kind: S2KIteratedSalted, Hash: HashSHA256, Salt: salt, Count: calibrateS2KCount(HashSHA256, 100)}
		derived, err := p.Provider.S2KDerive(spec, pass, keyLen)
		if err != nil {
			return nil, err
		}
		skesk := SessionKeyPacket{CipherAlgo: cipher, S2K: spec}
		if bytesEqual(derived, sessionKey) {
			// The derived key already is the session key; no ESK needed.
		} else {
			esk, err := p.Provider.SymCFBEncrypt(cipher, derived, make([]byte, 0), append([]byte{cipher}, sessionKey...))
			if err != nil {
				return nil, err
			}
			skesk.ESK = esk
		}
		sessions = append(sessions, skesk)
	}
	return sessions, nil
}

// rewrapSessions adds PKESK/SKESK packets to an already-sealed Encrypted
// message without touching its ciphertext: opts.SessionKey must be the
// same session key the container was originally sealed under, so every
// session-key packet attached to it (old and new) unlocks the same
// plaintext. This is how a second passphrase or recipient is added to a
// message that's already encrypted, rather than nesting a fresh
// encryption layer around opaque ciphertext.
func (p *MessagePipeline) rewrapSessions(msg *Message, opts EncryptOpts) (*Message, error) {
	if opts.SessionKey == nil {
		return nil, unsupportedErr("encrypt: re-wrapping an encrypted message requires its original session key")
	}
	keyLen, err := cipherKeyLen(msg.CipherAlgo)
	if err != nil {
		return nil, err
	}
	if len(opts.SessionKey) != keyLen {
		return nil, parseErr("bad_length", "session key length does not match the container's cipher")
	}
	sessions, err := p.buildSessions(opts.SessionKey, msg.CipherAlgo, opts)
	if err != nil {
		return nil, err
	}
	return &Message{
		Kind: MessageEncrypted,
		Sessions: append(append([]SessionKeyPacket(nil), msg.Sessions...), sessions...),
		CipherAlgo: msg.CipherAlgo,
		sealed: msg.sealed,
	}, nil
}

// Encrypt wraps msg in a SymEncIntegrityProtected container with one
// PKESK per recipient and one SKESK per passphrase. If msg is itself
// already an Encrypted message, Encrypt instead attaches the new
// recipients/passphrases as additional session-key packets over the
// existing ciphertext (see rewrapSessions); opts.SessionKey must then
// carry the session key the message was originally sealed with.
func (p *MessagePipeline) Encrypt(msg *Message, opts EncryptOpts) (*Message, error) {
	if msg.Kind == MessageEncrypted {
		return p.rewrapSessions(msg, opts)
	}

	cipher := opts.Cipher
	if cipher == 0 {
		cipher = CipherAES256
	}
	keyLen, err := cipherKeyLen(cipher)
	if err != nil {
		return nil, err
	}
	sessionKey := opts.SessionKey
	if sessionKey == nil {
		sessionKey, err = p.Entropy.Read(keyLen)
		if err != nil {
			return nil, err
		}
	}

	sessions, err := p.buildSessions(sessionKey, cipher, opts)
	if err != nil {
		return nil, err
	}

	plain, err := p.serializeInner(msg)
	if err != nil {
		return nil, err
	}
	mdcDigest, err := p.Provider.Hash(HashSHA1, plain, []byte{0xd3, 0x14})
	if err != nil {
		return nil, err
	}
	plainWithMDC := append(append([]byte(nil), plain...), writePacket(TagModificationDetectionCode, mdcDigest)...)

	blockLen, err := cipherBlockLen(cipher)
	if err != nil {
		return nil, err
	}
	quick, err := p.Entropy.Read(blockLen + 2)
	if err != nil {
		return nil, err
	}
	quick[blockLen] = quick[blockLen-2]
	quick[blockLen+1] = quick[blockLen-1]
	prefixed := append(quick, plainWithMDC...)

	ct, err := p.Provider.SymCFBEncrypt(cipher, sessionKey, make([]byte, 0), prefixed)
	if err != nil {
		return nil, err
	}

	return &Message{Kind: MessageEncrypted, Sessions: sessions, CipherAlgo: cipher, sealed: ct}, nil
}

// Decrypt tries each SKESK against passphrase (if non-nil) and each
// PKESK against secretKeys, accepting the first that yields a session
// key whose quickcheck bytes match. MDC failure is always fatal.
func (p *MessagePipeline) Decrypt(msg *Message, passphrase []byte, secretKeys...*KeyMaterial) (*Message, error) {
	if msg.Kind != MessageEncrypted {
		return nil, unsupportedErr("decrypt: not an encrypted message")
	}

	var sessionKey []byte
	var cipher byte

	quickcheck := func(c byte, key []byte) bool {
		blockLen, err := cipherBlockLen(c)
		if err != nil {
			return false
		}
		prefix, err := p.Provider.SymCFBDecrypt(c, key, nil, msg.sealed)
		return err == nil && len(prefix) >= blockLen+2 &&
			prefix[blockLen-2] == prefix[blockLen] && prefix[blockLen-1] == prefix[blockLen+1]
	}

	if passphrase != nil {
		for _, sess := range msg.Sessions {
			if sess.IsPublicKey {
				continue
			}
			keyLen, err := cipherKeyLen(sess.CipherAlgo)
			if err != nil {
				continue
			}
			derived, err := p.Provider.S2KDerive(sess.S2K, passphrase, keyLen)
			if err != nil {
				continue
			}
			if sess.ESK == nil {
				if !quickcheck(sess.CipherAlgo, derived) {
					continue
				}
				sessionKey, cipher = derived, sess.CipherAlgo
				break
			}
			plain, err := p.Provider.SymCFBDecrypt(sess.CipherAlgo, derived, make([]byte, 0), sess.ESK)
			if err != nil || len(plain) < 1 || !quickcheck(plain[0], plain[1:]) {
				continue
			}
			cipher = plain[0]
			sessionKey = plain[1:]
			break
		}
	}

	for _, sk := range secretKeys {
		if sessionKey != nil {
			break
		}
		for _, sess := range msg.Sessions {
			if !sess.IsPublicKey {
				continue
			}
			if sess.KeyID != 0 && sess.KeyID != sk.KeyID() {
				continue
			}
			material, err := p.Provider.PKDecrypt(sess.PKAlgo, sk, sess.EncryptedKey)
			if err != nil || len(material) < 3 {
				continue
			}
			want := material[len(material)-2:]
			body := material[1 : len(material)-2]
			if checksum(body) != be16(want) || !quickcheck(material[0], body) {
				continue
			}
			cipher, sessionKey = material[0], body
			break
		}
	}

	if sessionKey == nil {
		return nil, cryptoErr("invalid_key_material")
	}

	prefixed, err := p.Provider.SymCFBDecrypt(cipher, sessionKey, make([]byte, 0), msg.sealed)
	if err != nil {
		return nil, cryptoErr("invalid_key_material")
	}
	blockLen, err := cipherBlockLen(cipher)
	if err != nil {
		return nil, err
	}
	if len(prefixed) < blockLen+2 {
		return nil, integrityErr("checksum_mismatch")
	}
	if prefixed[blockLen-2] != prefixed[blockLen] || prefixed[blockLen-1] != prefixed[blockLen+1] {
		return nil, integrityErr("checksum_mismatch")
	}
	plainWithMDC := prefixed[blockLen+2:]

	mdcPkt, mdcBody, rest, err := splitTrailingMDC(plainWithMDC)
	if err != nil {
		return nil, err
	}
	want, err := p.Provider.Hash(HashSHA1, rest, []byte{0xd3, 0x14})
	if err != nil {
		return nil, err
	}
	if !mdcPkt || !bytesEqual(mdcBody, want) {
		return nil, integrityErr("mdc_mismatch")
	}

	inner, err := parseInner(rest)
	if err != nil {
		return nil, err
	}
	inner.Ciphertext = inner.payloadBytes()
	return inner, nil
}

func splitTrailingMDC(plainWithMDC []byte) (ok bool, digest, rest []byte, err error) {
	if len(plainWithMDC) < 22 {
		return false, nil, nil, integrityErr("mdc_missing")
	}
	tail := plainWithMDC[len(plainWithMDC)-22:]
	if tail[0] != 0xd3 || tail[1] != 0x14 {
		return false, nil, nil, integrityErr("mdc_missing")
	}
	return true, tail[2:], plainWithMDC[:len(plainWithMDC)-22], nil
}

// payloadBytes returns the flattened plaintext bytes of a Literal
// message, descending through any Compressed/Signed wrapping.
func (m *Message) payloadBytes() []byte {
	switch m.Kind {
	case MessageLiteral:
		return m.Literal.Data
	case MessageCompressed, MessageSigned:
		return m.Inner.payloadBytes()
	default:
		return nil
	}
}

// parseInner parses the packet sequence found inside a decrypted
// container or at the top level of a plain message: Literal, Compressed,
// or OnePassSignature+...+Signature (Signed).
func parseInner(b []byte) (*Message, error) {
	pkts, err := ParseAll(b)
	if err != nil {
		return nil, err
	}
	return buildInner(pkts)
}

func buildInner(pkts []Packet) (*Message, error) {
	if len(pkts) == 0 {
		return nil, parseErr("truncated", "empty message")
	}
	switch pkts[0].Tag {
	case TagLiteralData:
		lit, err := parseLiteralData(pkts[0].Body)
		if err != nil {
			return nil, err
		}
		return &Message{Kind: MessageLiteral, Literal: lit}, nil

	case TagCompressedData:
		if len(pkts[0].Body) < 1 {
			return nil, parseErr("truncated", "compressed data")
		}
		algo := pkts[0].Body[0]
		raw, err := decompress(algo, pkts[0].Body[1:])
		if err != nil {
			return nil, err
		}
		innerPkts, err := ParseAll(raw)
		if err != nil {
			return nil, err
		}
		inner, err := buildInner(innerPkts)
		if err != nil {
			return nil, err
		}
		return &Message{Kind: MessageCompressed, CompressAlgo: algo, Inner: inner}, nil

	case TagOnePassSignature:
		var ops []*onePassSignature
		i := 0
		for i < len(pkts) && pkts[i].Tag == TagOnePassSignature {
			o, err := parseOnePassSignature(pkts[i].Body)
			if err != nil {
				return nil, err
			}
			ops = append(ops, o)
			i++
		}
		innerEnd := len(pkts) - len(ops)
		inner, err := buildInner(pkts[i:innerEnd])
		if err != nil {
			return nil, err
		}
		var sigs []*Signature
		for _, p := range pkts[innerEnd:] {
			if p.Tag != TagSignature {
				return nil, parseErr("bad_tag", "expected signature after one-pass preamble")
			}
			s, err := ParseSignaturePacket(p.Body)
			if err != nil {
				return nil, err
			}
			sigs = append(sigs, s)
		}
		return &Message{Kind: MessageSigned, OnePass: ops, Inner: inner, Signatures: sigs}, nil

	default:
		return nil, unsupportedErr("unrecognized message packet sequence")
	}
}

// Sign wraps msg in a Signed container: a OnePassSignature preamble and
// trailing Signature. Signing an already-Signed message prepends the new
// OnePassSignature and Signature to the existing ones. An Encrypted
// message is not signed: Sign returns UnsupportedAlgorithm for it, and
// no signature is placed outside an encrypted container.
func (p *MessagePipeline) Sign(msg *Message, signer *KeyMaterial, sigType byte, opts SignOpts) (*Message, error) {
	if msg.Kind == MessageEncrypted {
		return nil, unsupportedErr("sign: wrap the plaintext before encrypting, not after")
	}
	subject, err := documentSubject(msg, sigType)
	if err != nil {
		return nil, err
	}
	sig, err := p.Engine.Sign(subject, signer, sigType, opts)
	if err != nil {
		return nil, err
	}
	ops := &onePassSignature{SigType: sigType, HashAlgo: sig.HashAlgo, PubKeyAlgo: signer.Algorithm, KeyID: signer.KeyID()}
	return &Message{
		Kind: MessageSigned,
		OnePass: append([]*onePassSignature{ops}, msg.innerOnePass()...),
		Inner: msg.innerMost(),
		Signatures: append([]*Signature{sig}, msg.innerSignatures()...),
	}, nil
}

func (m *Message) innerOnePass() []*onePassSignature {
	if m.Kind == MessageSigned {
		return m.OnePass
	}
	return nil
}

func (m *Message) innerSignatures() []*Signature {
	if m.Kind == MessageSigned {
		return m.Signatures
	}
	return nil
}

func (m *Message) innerMost() *Message {
	if m.Kind == MessageSigned {
		return m.Inner
	}
	return m
}

func documentSubject(msg *Message, sigType byte) (HashableSubject, error) {
	data := msg.payloadBytes()
	if data == nil && msg.Kind != MessageLiteral {
		return nil, unsupportedErr("sign: message has no literal payload to sign")
	}
	if sigType == SigCanonicalDocument {
		return CanonicalDocument{Text: data}, nil
	}
	return BinaryDocument{Data: data}, nil
}

// Serialize emits msg as a complete sequence of packets (or, for
// Cleartext, as dash-escaped armored text), optionally ASCII-armored.
func (p *MessagePipeline) Serialize(msg *Message, armored bool) ([]byte, error) {
	if msg.Kind == MessageCleartext {
		return p.serializeCleartext(msg)
	}
	if msg.Kind == MessageEncrypted {
		body := msg.serializeSessions()
		body = append(body, writePacket(TagSymEncIntegrityProtected, append([]byte{1}, msg.sealed...))...)
		if armored {
			return ArmorEncode(ArmorMessage, body, nil), nil
		}
		return body, nil
	}
	body, err := p.serializeInner(msg)
	if err != nil {
		return nil, err
	}
	if armored {
		kind := ArmorMessage
		return ArmorEncode(kind, body, nil), nil
	}
	return body, nil
}

func (m *Message) serializeSessions() []byte {
	var out []byte
	for _, s := range m.Sessions {
		if s.IsPublicKey {
			body := []byte{0x03}
			idb := make([]byte, 8)
			putBE64(idb, s.KeyID)
			body = append(body, idb...)
			body = append(body, s.PKAlgo)
			for _, mp := range s.EncryptedKey {
				body = append(body, mpi(mp)...)
			}
			out = append(out, writePacket(TagPublicKeyEncryptedSessionKey, body)...)
		} else {
			body := []byte{0x04, s.CipherAlgo}
			body = append(body, s2kSpecBytes(s.S2K)...)
			body = append(body, s.ESK...)
			out = append(out, writePacket(TagSymmetricKeyEncryptedSession, body)...)
		}
	}
	return out
}

// serializeCleartext produces the full "SIGNED MESSAGE" armored block,
// dash-escaping the body and listing every hash algorithm used.
func (p *MessagePipeline) serializeCleartext(msg *Message) ([]byte, error) {
	var out bytes.Buffer
	out.WriteString("-----BEGIN PGP SIGNED MESSAGE-----\n")
	hashNames := map[byte]string{HashSHA1: "SHA1", HashSHA256: "SHA256", HashSHA384: "SHA384", HashSHA512: "SHA512", HashSHA224: "SHA224"}
	var names []string
	for _, a := range msg.HashAlgosUsed {
		if n, ok := hashNames[a]; ok {
			names = append(names, n)
		}
	}
	if len(names) > 0 {
		out.WriteString("Hash: ")
		for i, n := range names {
			if i > 0 {
				out.WriteString(",")
			}
			out.WriteString(n)
		}
		out.WriteString("\n")
	}
	out.WriteString("\n")
	out.Write(dashEscape(msg.Text))
	out.WriteString("\n")

	var sigBody []byte
	for _, s := range msg.Signatures {
		sigBody = append(sigBody, s.Serialize()...)
	}
	out.Write(ArmorEncode(ArmorSignature, sigBody, nil))
	return out.Bytes(), nil
}

// SignCleartext signs msg.Text as a CanonicalDocument and attaches the
// resulting signature to a Cleartext message.
func (p *MessagePipeline) SignCleartext(msg *Message, signer *KeyMaterial, opts SignOpts) (*Message, error) {
	if msg.Kind != MessageCleartext {
		return nil, unsupportedErr("sign-cleartext: not a cleartext message")
	}
	sig, err := p.Engine.Sign(CanonicalDocument{Text: msg.Text}, signer, SigCanonicalDocument, opts)
	if err != nil {
		return nil, err
	}
	out := &Message{Kind: MessageCleartext, Text: msg.Text, Signatures: append(append([]*Signature(nil), msg.Signatures...), sig)}
	out.HashAlgosUsed = append(out.HashAlgosUsed, sig.HashAlgo)
	return out, nil
}
