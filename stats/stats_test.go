package stats_test

import (
	"testing"

	"github.com/zzping/pinger/stats"
)

// TestUDPStatsEncoding reproduces scenario S3: for (addr="10.0.0.1",
// inflight=3, avg_rtt=2500us, last_reply=150ms, loss=1.25%), the
// datagram is the tagged 5-tuple ("10.0.0.1", 3, 2500, 150, 1250).
func TestUDPStatsEncoding(t *testing.T) {
	f := stats.Frame{
		Addr:          "10.0.0.1",
		InflightCount: 3,
		AvgRTT:        2500000, // 2.5ms in ns == 2500us
		LastReplyAge:  150000000,
		PacketLossPct: 1.25,
	}
	b, err := stats.EncodeDatagram(f)
	if err != nil {
		t.Fatalf("EncodeDatagram: %v", err)
	}
	got, err := stats.DecodeDatagram(b)
	if err != nil {
		t.Fatalf("DecodeDatagram: %v", err)
	}
	want := stats.Datagram{
		Addr:               "10.0.0.1",
		InflightCount:      3,
		AvgRTTMicros:       2500,
		LastReplyAgeMillis: 150,
		PacketLossX100000:  1250,
	}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestDecodeDatagramWellFormed(t *testing.T) {
	good, _ := stats.EncodeDatagram(stats.Frame{Addr: "x"})
	// A well-formed datagram of a zero-valued frame decodes without
	// the length error.
	if _, err := stats.DecodeDatagram(good); err != nil {
		t.Errorf("unexpected error on well-formed datagram: %v", err)
	}
}
