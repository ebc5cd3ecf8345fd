// This is free and unencumbered software released into the public domain.

package openpgp

import "github.com/sirupsen/logrus"

// log is the package-wide structured logger, used to carry the
// "preserved, never failing" behavior for unknown non-critical
// subpackets and similar non-fatal conditions; the CLI itself writes
// fatal errors directly to stderr instead.
var log = logrus.New()

// logPreservedSubpacket records that an unrecognized non-critical
// subpacket was kept verbatim on re-emit rather than dropped.
func logPreservedSubpacket(context string, typ byte) {
	log.WithFields(logrus.Fields{
		"component": "codec",
		"subpacket": typ,
	}).Debugf("%s: preserving unrecognized non-critical subpacket", context)
}

// logExpiredSignature records that a verified signature is past its
// expiration; VerificationSet still reports it as ok.
func logExpiredSignature(keyID uint64) {
	log.WithFields(logrus.Fields{
		"component": "signature",
		"key_id": keyID,
	}).Debug("signature verified but expired")
}

// logRevocation records a revocation signature being attached to or
// observed on a key, without evaluating trust (that remains out of scope).
func logRevocation(keyID uint64, reason byte) {
	log.WithFields(logrus.Fields{
		"component": "key",
		"key_id": keyID,
		"reason": reason,
	}).Info("key revocation observed")
}
