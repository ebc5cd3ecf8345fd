// This is free and unencumbered software released into the public domain.

package openpgp

import (
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"hash"
	"time"
)

// S2K specifier kinds.
const (
	S2KSimple = 0
	S2KSalted = 1
	S2KIteratedSalted = 3
)

// HashAlgorithm identifiers used by S2K and SignatureEngine.
const (
	HashSHA1 = 2
	HashSHA256 = 8
	HashSHA384 = 9
	HashSHA512 = 10
	HashSHA224 = 11
)

func newHash(algo byte) (hash.Hash, error) {
	switch algo {
	case HashSHA1:
		return sha1.New(), nil
	case HashSHA256:
		return sha256.New(), nil
	case HashSHA384:
		return sha512.New384(), nil
	case HashSHA512:
		return sha512.New(), nil
	case HashSHA224:
		return sha256.New224(), nil
	default:
		return nil, unsupportedErr("hash algorithm")
	}
}

// S2KSpec describes one of the three string-to-key procedures.
type S2KSpec struct {
	Kind byte // S2KSimple, S2KSalted, S2KIteratedSalted
	Hash byte
	Salt []byte // required for Salted and IteratedSalted
	Count byte // encoded iteration count, IteratedSalted only
}

// encodeS2KCount converts a decoded byte count to the single-octet
// encoding RFC 4880 §3.7.1.3 defines, by inverting decodeS2KCount.
func encodeS2KCount(count int) byte {
	// Find the smallest encoded value c such that decodeS2KCount(c) >= count.
	for c := 0; c < 256; c++ {
		if decodeS2KCount(byte(c)) >= count {
			return byte(c)
		}
	}
	return 0xff
}

// decodeS2KCount expands the single-octet encoded iteration count to the
// actual byte count hashed, per RFC 4880 §3.7.1.3.
func decodeS2KCount(c byte) int {
	return (16 + int(c&15)) << (uint(c>>4) + 6)
}

// deriveS2K runs the given spec over passphrase, producing outLen key
// bytes. Multiple hash invocations are chained (RFC 4880 §3.7.1) when
// outLen exceeds one hash's digest size; this module's supported hash set
// only needs single-invocation derivation for AES-128/192/256, CAST5, and
// Blowfish key sizes, but the loop is written generally.
func deriveS2K(spec S2KSpec, passphrase []byte, outLen int) ([]byte, error) {
	out := make([]byte, 0, outLen)
	for i := 0; len(out) < outLen; i++ {
		h, err := newHash(spec.Hash)
		if err != nil {
			return nil, err
		}
		h.Write(make([]byte, i)) // preload one zero octet per earlier invocation
		switch spec.Kind {
		case S2KSimple:
			h.Write(passphrase)
		case S2KSalted:
			h.Write(spec.Salt)
			h.Write(passphrase)
		case S2KIteratedSalted:
			// This is S2K as actually implemented by GnuPG and PGP: the
			// byte count counts bytes of (salt||passphrase) repeated, not
			// invocations of the combined string.
			full := make([]byte, len(spec.Salt)+len(passphrase))
			copy(full, spec.Salt)
			copy(full[len(spec.Salt):], passphrase)
			count := decodeS2KCount(spec.Count)
			if count < len(full) {
				count = len(full)
			}
			iterations := count / len(full)
			for i := 0; i < iterations; i++ {
				h.Write(full)
			}
			tail := count - iterations*len(full)
			h.Write(full[:tail])
		default:
			return nil, unsupportedErr("s2k spec")
		}
		out = append(out, h.Sum(nil)...)
	}
	return out[:outLen], nil
}

// calibrateS2KCount picks an iteration byte count such that derivation
// takes roughly targetMillis on the current hardware. It times a fixed
// small sample and scales.
func calibrateS2KCount(hashAlgo byte, targetMillis int64) byte {
	const sample = 1 << 16 // bytes
	salt := make([]byte, 8)
	start := time.Now()
	h, err := newHash(hashAlgo)
	if err != nil {
		return 0xff
	}
	full := make([]byte, len(salt))
	copy(full, salt)
	h.Write(full)
	chunk := make([]byte, sample)
	h.Write(chunk)
	elapsed := time.Since(start)
	if elapsed <= 0 {
		return 0xff
	}
	perByte := float64(elapsed) / float64(sample+len(salt))
	wantBytes := float64(targetMillis) * float64(time.Millisecond) / perByte
	return encodeS2KCount(int(wantBytes))
}
