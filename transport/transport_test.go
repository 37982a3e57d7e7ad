package transport_test

import (
	"testing"
	"time"

	"github.com/zzping/pinger/transport"
)

func TestRecvOneTimeoutClampPanics(t *testing.T) {
	conn, err := transport.Listen("")
	if err != nil {
		t.Skipf("no ICMP socket permission in this environment: %v", err)
	}
	defer conn.Close()

	defer func() {
		if recover() == nil {
			t.Errorf("RecvOne with an over-long timeout did not panic")
		}
	}()
	_, _, _ = conn.RecvOne(transport.MaxRecvTimeout + time.Second)
}

func TestRecvOneTimesOutCleanly(t *testing.T) {
	conn, err := transport.Listen("")
	if err != nil {
		t.Skipf("no ICMP socket permission in this environment: %v", err)
	}
	defer conn.Close()

	_, ok, err := conn.RecvOne(10 * time.Millisecond)
	if err != nil {
		t.Fatalf("RecvOne: %v", err)
	}
	if ok {
		t.Errorf("RecvOne reported a packet with nothing sent")
	}
}
