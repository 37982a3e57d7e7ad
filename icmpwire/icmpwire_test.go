package icmpwire_test

import (
	"testing"

	"github.com/zzping/pinger/icmpwire"
)

func TestBuildParseRoundTrip(t *testing.T) {
	pkt := icmpwire.BuildEchoRequest(0x1234, 7)
	if icmpwire.Type(pkt) != icmpwire.TypeEchoRequest {
		t.Fatalf("type = %d, want %d", icmpwire.Type(pkt), icmpwire.TypeEchoRequest)
	}
	reply := icmpwire.ParseEchoReply(pkt)
	if reply.Ident != 0x1234 || reply.Seq != 7 {
		t.Errorf("got ident=%#x seq=%d, want ident=0x1234 seq=7", reply.Ident, reply.Seq)
	}
}

func TestChecksumZeroesOut(t *testing.T) {
	pkt := icmpwire.BuildEchoRequest(1, 1)
	// Summing the whole packet including its own checksum field must
	// fold to zero, the standard one's-complement self-check.
	var sum uint32
	for i := 0; i+1 < len(pkt); i += 2 {
		sum += uint32(pkt[i])<<8 | uint32(pkt[i+1])
	}
	for sum>>16 != 0 {
		sum = (sum & 0xffff) + (sum >> 16)
	}
	if sum != 0xffff {
		t.Errorf("checksum self-check = %#x, want 0xffff", sum)
	}
}

func TestParseEchoReplyTruncated(t *testing.T) {
	// Must not panic on a short buffer; that hazard belongs to the
	// transport layer, not this parser.
	r := icmpwire.ParseEchoReply([]byte{8, 0})
	if r.Ident != 0 || r.Seq != 0 {
		t.Errorf("got %+v, want zero value", r)
	}
}
