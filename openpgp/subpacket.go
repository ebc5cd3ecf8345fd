// This is free and unencumbered software released into the public domain.

package openpgp

import "encoding/binary"

// Subpacket types relevant to SignatureEngine. knownSubpacketTypes below
// lists the types this module interprets; every subpacket, known or not,
// is stored and round-trips as raw type and data bytes.
const (
	SubSignatureCreationTime = 2
	SubSignatureExpirationTime = 3
	SubExportable = 4
	SubTrustSignature = 5
	SubRegularExpression = 6
	SubRevocable = 7
	SubKeyExpirationTime = 9
	SubPreferredSymmetric = 11
	SubRevocationKey = 12
	SubIssuer = 16
	SubNotationData = 20
	SubPreferredHash = 21
	SubPreferredCompression = 22
	SubKeyServerPreferences = 23
	SubPreferredKeyServer = 24
	SubPrimaryUserID = 25
	SubPolicyURI = 26
	SubKeyFlags = 27
	SubSignersUserID = 28
	SubReasonForRevocation = 29
	SubFeatures = 30
	SubSignatureTarget = 31
	SubEmbeddedSignature = 32
	SubIssuerFingerprint = 33
)

// Subpacket is (critical_flag, type, body), carried in a signature's
// hashed or unhashed area.
type Subpacket struct {
	Critical bool
	Type byte
	Data []byte
}

func (s Subpacket) marshal() []byte {
	typeByte := s.Type
	if s.Critical {
		typeByte |= 0x80
	}
	body := make([]byte, 0, len(s.Data)+1)
	body = append(body, typeByte)
	body = append(body, s.Data...)
	return append(subpacketLength(len(body)), body...)
}

// subpacketLength encodes the 1/2/5-byte variable length that precedes a
// subpacket's (type||data) body.
func subpacketLength(n int) []byte {
	switch {
	case n < 192:
		return []byte{byte(n)}
	case n < 8384:
		n -= 192
		return []byte{byte(192 + (n >> 8)), byte(n & 0xff)}
	default:
		b := make([]byte, 5)
		b[0] = 255
		binary.BigEndian.PutUint32(b[1:], uint32(n))
		return b
	}
}

// parseSubpackets reads a back-to-back sequence of subpackets filling
// exactly len(b) bytes, as found in a signature's hashed or unhashed area.
func parseSubpackets(b []byte) ([]Subpacket, error) {
	var out []Subpacket
	for len(b) > 0 {
		n, rest, err := readSubpacketLength(b)
		if err != nil {
			return nil, err
		}
		if n < 1 || n > len(rest) {
			return nil, parseErr("truncated", "subpacket body")
		}
		typeByte := rest[0]
		out = append(out, Subpacket{
			Critical: typeByte&0x80 != 0,
			Type: typeByte &^ 0x80,
			Data: append([]byte(nil), rest[1:n]...),
		})
		b = rest[n:]
	}
	return out, nil
}

func readSubpacketLength(b []byte) (n int, tail []byte, err error) {
	if len(b) < 1 {
		return 0, nil, parseErr("truncated", "subpacket length")
	}
	b0 := b[0]
	switch {
	case b0 < 192:
		return int(b0), b[1:], nil
	case b0 < 255:
		if len(b) < 2 {
			return 0, nil, parseErr("truncated", "subpacket 2-byte length")
		}
		return ((int(b0) - 192) << 8) + int(b[1]) + 192, b[2:], nil
	default:
		if len(b) < 5 {
			return 0, nil, parseErr("truncated", "subpacket 5-byte length")
		}
		return int(binary.BigEndian.Uint32(b[1:5])), b[5:], nil
	}
}

func marshalSubpackets(subs []Subpacket) []byte {
	var out []byte
	for _, s := range subs {
		out = append(out, s.marshal()...)
	}
	return out
}

// findSubpacket returns the first subpacket of the given type, searching
// the hashed area before the unhashed area (hashed-area data is
// authenticated; unhashed-area data of the same type is informational
// only and must never override a hashed value).
func findSubpacket(hashed, unhashed []Subpacket, typ byte) (Subpacket, bool) {
	for _, s := range hashed {
		if s.Type == typ {
			return s, true
		}
	}
	for _, s := range unhashed {
		if s.Type == typ {
			return s, true
		}
	}
	return Subpacket{}, false
}

// knownSubpacketTypes is every subpacket type this module interprets;
// anything else round-trips as raw bytes rather than being acted on.
var knownSubpacketTypes = map[byte]bool{
	SubSignatureCreationTime: true, SubSignatureExpirationTime: true,
	SubExportable: true, SubTrustSignature: true, SubRegularExpression: true,
	SubRevocable: true, SubKeyExpirationTime: true, SubPreferredSymmetric: true,
	SubRevocationKey: true, SubIssuer: true, SubNotationData: true,
	SubPreferredHash: true, SubPreferredCompression: true,
	SubKeyServerPreferences: true, SubPreferredKeyServer: true,
	SubPrimaryUserID: true, SubPolicyURI: true, SubKeyFlags: true,
	SubSignersUserID: true, SubReasonForRevocation: true, SubFeatures: true,
	SubSignatureTarget: true, SubEmbeddedSignature: true,
	SubIssuerFingerprint: true,
}

// unknownCriticalSubpacket reports whether subs contains a critical
// subpacket of a type this module does not interpret; such a signature
// must fail verification.
func unknownCriticalSubpacket(subs []Subpacket) (byte, bool) {
	for _, s := range subs {
		if s.Critical && !knownSubpacketTypes[s.Type] {
			return s.Type, true
		}
	}
	return 0, false
}

// logUnknownNonCriticalSubpackets logs every subpacket in subs that this
// module does not interpret but, being non-critical, must preserve and
// carry through verification rather than reject.
func logUnknownNonCriticalSubpackets(context string, subs []Subpacket) {
	for _, s := range subs {
		if !s.Critical && !knownSubpacketTypes[s.Type] {
			logPreservedSubpacket(context, s.Type)
		}
	}
}
