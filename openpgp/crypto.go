// This is free and unencumbered software released into the public domain.

package openpgp

// Public-key algorithm identifiers (RFC 4880 §9.1).
const (
	PubKeyRSA = 1
	PubKeyElGamal = 16
	PubKeyDSA = 17
	PubKeyECDH = 18
	PubKeyECDSA = 19
	PubKeyEdDSA = 22
)

// Symmetric-cipher algorithm identifiers (RFC 4880 §9.2).
const (
	CipherPlaintext = 0
	CipherCAST5 = 3
	CipherBlowfish = 4
	CipherAES128 = 7
	CipherAES192 = 8
	CipherAES256 = 9
)

// CompressionAlgorithm identifiers (RFC 4880 §9.3).
const (
	CompressionUncompressed = 0
	CompressionZIP = 1
	CompressionZLIB = 2
	CompressionBZip2 = 3
)

func cipherKeyLen(algo byte) (int, error) {
	switch algo {
	case CipherCAST5, CipherBlowfish:
		return 16, nil
	case CipherAES128:
		return 16, nil
	case CipherAES192:
		return 24, nil
	case CipherAES256:
		return 32, nil
	default:
		return 0, unsupportedErr("symmetric cipher")
	}
}

func cipherBlockLen(algo byte) (int, error) {
	switch algo {
	case CipherCAST5, CipherBlowfish:
		return 8, nil
	case CipherAES128, CipherAES192, CipherAES256:
		return 16, nil
	default:
		return 0, unsupportedErr("symmetric cipher")
	}
}

// CryptoProvider is the capability boundary over cryptographic primitives.
// The core never touches key material's mathematics directly;
// every signature, encryption, and KDF operation routes through here so a
// caller can substitute a hardware-backed or FIPS-validated provider.
type CryptoProvider interface {
	// Hash computes algo's digest over the concatenation of data.
	Hash(algo byte, data...[]byte) ([]byte, error)

	// Sign produces an algorithm-specific MPI vector over digest using
	// secret (the algorithm-specific secret material held by KeyMaterial).
	Sign(pkAlgo byte, secret *KeyMaterial, hashAlgo byte, digest []byte) ([][]byte, error)

	// Verify checks an algorithm-specific MPI vector signature over
	// digest using public.
	Verify(pkAlgo byte, public *KeyMaterial, hashAlgo byte, digest []byte, sig [][]byte) (bool, error)

	// PKEncrypt wraps sessionKeyMaterial (the cipher-prefixed session key
	// plus its 16-bit checksum) for a PKESK packet.
	PKEncrypt(pkAlgo byte, public *KeyMaterial, sessionKeyMaterial []byte) ([][]byte, error)

	// PKDecrypt recovers the session-key material a PKESK packet carries.
	PKDecrypt(pkAlgo byte, secret *KeyMaterial, mpis [][]byte) ([]byte, error)

	// SymCFBEncrypt/Decrypt run algo in CFB mode with the given key
	// and IV (a zero IV of the correct block length when iv is nil or
	// empty).
	SymCFBEncrypt(algo byte, key, iv, plaintext []byte) ([]byte, error)
	SymCFBDecrypt(algo byte, key, iv, ciphertext []byte) ([]byte, error)

	// S2KDerive runs one of the three S2K procedures: simple, salted, or
	// iterated-and-salted.
	S2KDerive(spec S2KSpec, passphrase []byte, outLen int) ([]byte, error)

	// ECDHKEK derives the key-encryption key for an ECDH recipient from
	// its fingerprint and the shared point, per RFC 6637 §8.
	ECDHKEK(fingerprint []byte, kdfHash, kdfCipher byte, shared []byte) ([]byte, error)
}
