// This is free and unencumbered software released into the public domain.

package openpgp

import "encoding/binary"

// mpi encodes a big-endian byte string as an OpenPGP multi-precision
// integer: a 16-bit bit-length followed by the minimal-length byte string
// (leading zero bytes stripped, per RFC 4880 §3.2).
func mpi(b []byte) []byte {
	for len(b) > 0 && b[0] == 0 {
		b = b[1:]
	}
	bitlen := 0
	if len(b) > 0 {
		bitlen = (len(b)-1)*8 + bitlen8(b[0])
	}
	out := make([]byte, 2, 2+len(b))
	binary.BigEndian.PutUint16(out, uint16(bitlen))
	out = append(out, b...)
	return out
}

func bitlen8(b byte) int {
	n := 0
	for b != 0 {
		n++
		b >>= 1
	}
	return n
}

// mpiDecode reads one MPI from b and returns its raw value left-padded to
// exactly size bytes (or unpadded when size <= 0), plus the remaining tail
// of b. It returns a nil value slice if b is too short, the declared bit
// length doesn't fit the available bytes, or the value is longer than
// size.
func mpiDecode(b []byte, size int) (value, tail []byte) {
	if len(b) < 2 {
		return nil, b
	}
	bits := int(binary.BigEndian.Uint16(b))
	n := (bits + 7) / 8
	if n > len(b)-2 {
		return nil, b
	}
	raw := b[2 : 2+n]
	tail = b[2+n:]
	if size <= 0 {
		return raw, tail
	}
	value = make([]byte, size)
	if n > size {
		return nil, b
	}
	copy(value[size-n:], raw)
	return value, tail
}

// mpiDecodeAny reads one MPI from b without a fixed output size, returning
// the raw minimal-length bytes exactly as encoded.
func mpiDecodeAny(b []byte) (value, tail []byte, err error) {
	if len(b) < 2 {
		return nil, b, parseErr("truncated", "mpi header")
	}
	bits := int(binary.BigEndian.Uint16(b))
	n := (bits + 7) / 8
	if n > len(b)-2 {
		return nil, b, parseErr("truncated", "mpi body")
	}
	return b[2 : 2+n], b[2+n:], nil
}

// checksum is the mod-65536 checksum RFC 4880 §5.5.3 uses over cleartext
// secret-key MPI bytes.
func checksum(b []byte) uint16 {
	var sum uint16
	for _, c := range b {
		sum += uint16(c)
	}
	return sum
}

func marshal32be(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

func marshal16be(v uint16) []byte {
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, v)
	return b
}
