package openpgp

import "testing"

func TestWritePacketParsePacketRoundTrip(t *testing.T) {
	body := []byte("hello world packet body")
	encoded := writePacket(TagLiteralData, body)
	pkt, tail, err := ParsePacket(encoded)
	if err != nil {
		t.Fatalf("ParsePacket: %v", err)
	}
	if len(tail) != 0 {
		t.Fatalf("unexpected tail: %x", tail)
	}
	if pkt.Tag != TagLiteralData {
		t.Fatalf("tag mismatch: got %d want %d", pkt.Tag, TagLiteralData)
	}
	if string(pkt.Body) != string(body) {
		t.Fatalf("body mismatch: got %q want %q", pkt.Body, body)
	}
	if !pkt.NewFormat {
		t.Fatal("writePacket should always produce new-format packets")
	}
}

func TestParseAllMultiplePackets(t *testing.T) {
	var buf []byte
	buf = append(buf, writePacket(TagUserID, []byte("alice"))...)
	buf = append(buf, writePacket(TagUserID, []byte("bob"))...)
	buf = append(buf, writePacket(TagMarker, nil)...)

	pkts, err := ParseAll(buf)
	if err != nil {
		t.Fatalf("ParseAll: %v", err)
	}
	if len(pkts) != 3 {
		t.Fatalf("expected 3 packets, got %d", len(pkts))
	}
	if string(pkts[0].Body) != "alice" || string(pkts[1].Body) != "bob" {
		t.Fatalf("unexpected packet bodies: %q %q", pkts[0].Body, pkts[1].Body)
	}
	if pkts[2].Tag != TagMarker || len(pkts[2].Body) != 0 {
		t.Fatalf("unexpected marker packet: %+v", pkts[2])
	}
}

func TestWriteNewLengthSizes(t *testing.T) {
	small := writeNewLength(10)
	if len(small) != 1 || small[0] != 10 {
		t.Fatalf("small length encoding wrong: %x", small)
	}
	medium := writeNewLength(1000)
	if len(medium) != 2 {
		t.Fatalf("medium length encoding should be 2 bytes: %x", medium)
	}
	large := writeNewLength(100000)
	if len(large) != 5 || large[0] != 255 {
		t.Fatalf("large length encoding wrong: %x", large)
	}
}

func TestParsePacketTruncated(t *testing.T) {
	if _, _, err := ParsePacket(nil); err == nil {
		t.Fatal("expected error parsing empty input")
	}
	// A new-format header claiming a body longer than what follows.
	bad := []byte{0xc0 | TagUserID, 10, 'a', 'b'}
	if _, _, err := ParsePacket(bad); err == nil {
		t.Fatal("expected error for truncated packet body")
	}
}

func TestOldFormatHeaderParses(t *testing.T) {
	// Old-format packet, tag 13 (UserID), 1-byte length, 3-byte body.
	body := []byte("bob")
	old := []byte{0x80 | (13 << 2) | 0x00, byte(len(body))}
	old = append(old, body...)
	pkt, tail, err := ParsePacket(old)
	if err != nil {
		t.Fatalf("ParsePacket old-format: %v", err)
	}
	if len(tail) != 0 {
		t.Fatalf("unexpected tail: %x", tail)
	}
	if pkt.Tag != TagUserID || pkt.NewFormat {
		t.Fatalf("unexpected parsed packet: %+v", pkt)
	}
	if string(pkt.Body) != "bob" {
		t.Fatalf("body mismatch: %q", pkt.Body)
	}
}
