// This is free and unencumbered software released into the public domain.

package openpgp

import (
	"fmt"

	"github.com/pkg/errors"
)

// ParseError describes a malformed packet, subpacket, or armor block.
type ParseError struct {
	Reason string // truncated, bad_tag, bad_length, bad_mpi, bad_armor_crc, bad_version
	Detail string
}

func (e *ParseError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("openpgp: parse error: %s", e.Reason)
	}
	return fmt.Sprintf("openpgp: parse error: %s: %s", e.Reason, e.Detail)
}

func parseErr(reason, detail string) error {
	return errors.WithStack(&ParseError{Reason: reason, Detail: detail})
}

// UnsupportedAlgorithm is returned when a packet or operation names an
// algorithm this module does not implement.
type UnsupportedAlgorithm struct {
	Which string
}

func (e *UnsupportedAlgorithm) Error() string {
	return fmt.Sprintf("openpgp: unsupported algorithm: %s", e.Which)
}

func unsupportedErr(which string) error {
	return errors.WithStack(&UnsupportedAlgorithm{Which: which})
}

// PermissionError is returned when an operation is attempted against a
// locked secret or a key whose usage flags forbid it.
type PermissionError struct {
	Reason string // needs_unlock, wrong_usage_flag
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("openpgp: permission error: %s", e.Reason)
}

func permissionErr(reason string) error {
	return errors.WithStack(&PermissionError{Reason: reason})
}

// CryptoError reports a failure from the CryptoProvider boundary.
type CryptoError struct {
	Reason string // invalid_signature, invalid_key_material, bad_padding
}

func (e *CryptoError) Error() string {
	return fmt.Sprintf("openpgp: crypto error: %s", e.Reason)
}

func cryptoErr(reason string) error {
	return errors.WithStack(&CryptoError{Reason: reason})
}

// IntegrityError is fatal: any plaintext already produced must be discarded.
type IntegrityError struct {
	Reason string // mdc_missing, mdc_mismatch, checksum_mismatch
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("openpgp: integrity error: %s", e.Reason)
}

func integrityErr(reason string) error {
	return errors.WithStack(&IntegrityError{Reason: reason})
}

// PolicyError reports a signature that fails policy checks rather than
// cryptographic verification.
type PolicyError struct {
	Reason string // unknown_critical_subpacket, algorithm_downgrade
}

func (e *PolicyError) Error() string {
	return fmt.Sprintf("openpgp: policy error: %s", e.Reason)
}

func policyErr(reason string) error {
	return errors.WithStack(&PolicyError{Reason: reason})
}

// wrap adds operation context to err without losing its underlying kind;
// errors.As still finds the original *ParseError / *CryptoError / etc.
func wrap(err error, context string) error {
	if err == nil {
		return nil
	}
	return errors.Wrap(err, context)
}
