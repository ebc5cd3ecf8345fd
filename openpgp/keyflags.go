// This is free and unencumbered software released into the public domain.

package openpgp

// KeyFlags (RFC 4880 §5.2.3.21), carried in the KeyFlags subpacket
// (type=27).
const (
	KeyFlagCertify = 1 << 0
	KeyFlagSign = 1 << 1
	KeyFlagEncryptComm = 1 << 2
	KeyFlagEncryptStorage = 1 << 3
	KeyFlagAuthenticate = 1 << 5
)

// Features subpacket (type=30) bit flags.
const (
	FeatureModificationDetection = 1 << 0
)

// curveOID maps a named curve to its RFC 6637 / rfc4880bis OID encoding.
var curveOID = map[string][]byte{
	"NIST P-256": {0x2a, 0x86, 0x48, 0xce, 0x3d, 0x03, 0x01, 0x07},
	"NIST P-384": {0x2b, 0x81, 0x04, 0x00, 0x22},
	"NIST P-521": {0x2b, 0x81, 0x04, 0x00, 0x23},
	"SECP256k1": {0x2b, 0x81, 0x04, 0x00, 0x0a},
	"Ed25519": {0x2b, 0x06, 0x01, 0x04, 0x01, 0xda, 0x47, 0x0f, 0x01},
	"Curve25519": {0x2b, 0x06, 0x01, 0x04, 0x01, 0x97, 0x55, 0x01, 0x05, 0x01},
}
