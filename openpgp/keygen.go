// This is free and unencumbered software released into the public domain.

package openpgp

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"math/big"

	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/ed25519"
)

// edwardsFromSeed derives an Ed25519 key pair from a 32-byte seed,
// returning raw public/private halves rather than a fixed struct.
func edwardsFromSeed(seed []byte) (pub, priv []byte, err error) {
	if len(seed) != 32 {
		return nil, nil, parseErr("bad_mpi", "ed25519 seed must be 32 bytes")
	}
	key := ed25519.NewKeyFromSeed(seed)
	return append([]byte(nil), key[32:]...), append([]byte(nil), key[:32]...), nil
}

// curve25519Base computes the public point for an X25519 (ECDH) secret.
func curve25519Base(secret []byte) ([]byte, error) {
	if len(secret) != 32 {
		return nil, parseErr("bad_mpi", "curve25519 secret must be 32 bytes")
	}
	var priv, pub [32]byte
	copy(priv[:], secret)
	curve25519.ScalarBaseMult(&pub, &priv)
	return pub[:], nil
}

// generateRSA creates an RSA KeyMaterial of the given modulus size,
// with the standard "n,e" public / "d,p,q,u" secret MPI layout.
func generateRSA(bits int, created int64) (*KeyMaterial, error) {
	if bits == 0 {
		bits = 2048
	}
	priv, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, wrap(err, "rsa key generation")
	}
	priv.Precompute()
	n := priv.N.Bytes()
	e := big.NewInt(int64(priv.E)).Bytes()
	d := priv.D.Bytes()
	p := priv.Primes[0].Bytes()
	q := priv.Primes[1].Bytes()
	u := priv.Precomputed.Qinv.Bytes()
	return &KeyMaterial{
		Algorithm: PubKeyRSA, Created: created,
		Public: [][]byte{n, e},
		Secret: [][]byte{d, p, q, u},
	}, nil
}

// namedCurve resolves a curveOID entry to its stdlib elliptic.Curve, for
// the curves Go's standard library implements natively.
func namedCurve(name string) (elliptic.Curve, error) {
	switch name {
	case "NIST P-256":
		return elliptic.P256(), nil
	case "NIST P-384":
		return elliptic.P384(), nil
	case "NIST P-521":
		return elliptic.P521(), nil
	default:
		return nil, unsupportedErr("curve generation")
	}
}

// generateECDSA creates an ECDSA KeyMaterial over curveName, using the
// standard oid+point public layout and single-scalar secret.
func generateECDSA(curveName string, created int64) (*KeyMaterial, error) {
	curve, err := namedCurve(curveName)
	if err != nil {
		return nil, err
	}
	priv, err := ecdsa.GenerateKey(curve, rand.Reader)
	if err != nil {
		return nil, wrap(err, "ecdsa key generation")
	}
	point := elliptic.Marshal(curve, priv.X, priv.Y)
	return &KeyMaterial{
		Algorithm: PubKeyECDSA, Created: created,
		OID: curveOID[curveName],
		Public: [][]byte{point},
		Secret: [][]byte{priv.D.Bytes()},
	}, nil
}
