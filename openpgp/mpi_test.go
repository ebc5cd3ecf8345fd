package openpgp

import "testing"

func TestMPIRoundTrip(t *testing.T) {
	cases := [][]byte{
		{0x01},
		{0x00, 0x01},
		{0xff, 0xff, 0xff},
		{0x00},
	}
	for _, c := range cases {
		encoded := mpi(c)
		decoded, tail := mpiDecode(encoded, 0)
		if len(tail) != 0 {
			t.Fatalf("mpiDecode left %d trailing bytes for %x", len(tail), c)
		}
		trimmed := c
		for len(trimmed) > 1 && trimmed[0] == 0 {
			trimmed = trimmed[1:]
		}
		if len(trimmed) == 1 && trimmed[0] == 0 {
			trimmed = nil
		}
		if len(decoded) != len(trimmed) {
			t.Fatalf("round trip length mismatch: got %x want %x", decoded, trimmed)
		}
	}
}

func TestMPIDecodeFixedSize(t *testing.T) {
	encoded := mpi([]byte{0x01})
	decoded, tail := mpiDecode(encoded, 4)
	if len(tail) != 0 {
		t.Fatalf("unexpected tail: %x", tail)
	}
	want := []byte{0x00, 0x00, 0x00, 0x01}
	if len(decoded) != 4 || decoded[3] != 0x01 {
		t.Fatalf("mpiDecode fixed-size padding wrong: got %x want %x", decoded, want)
	}
}

func TestMPIDecodeAny(t *testing.T) {
	encoded := mpi([]byte{0x01, 0x02, 0x03})
	encoded = append(encoded, 0xaa, 0xbb)
	v, tail, err := mpiDecodeAny(encoded)
	if err != nil {
		t.Fatalf("mpiDecodeAny: %v", err)
	}
	if len(tail) != 2 || tail[0] != 0xaa || tail[1] != 0xbb {
		t.Fatalf("mpiDecodeAny left wrong tail: %x", tail)
	}
	if len(v) != 3 {
		t.Fatalf("mpiDecodeAny wrong length: %x", v)
	}
}

func TestChecksum(t *testing.T) {
	a := checksum([]byte{0x01, 0x02})
	b := checksum([]byte{0x01, 0x02})
	if a != b {
		t.Fatal("checksum not deterministic")
	}
	if got := checksum([]byte{0xff, 0xff, 0x02}); got != 0x0200 {
		t.Fatalf("checksum should be the byte sum mod 65536: got %#04x want 0x0200", got)
	}
}
