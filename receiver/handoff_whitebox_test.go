package receiver

import (
	"testing"
	"time"

	"github.com/zzping/pinger/probe"
)

func TestTryHandoffContention(t *testing.T) {
	var b Buffer
	b.mu.Lock()
	scratch := []probe.Data{{Seq: 1, ArrivedAt: time.Now()}}
	if b.tryHandoff(scratch) {
		t.Errorf("tryHandoff succeeded while the buffer was held locked")
	}
	b.mu.Unlock()

	if !b.tryHandoff(scratch) {
		t.Errorf("tryHandoff failed on an uncontended buffer")
	}
	if got := b.Take(); len(got) != 1 {
		t.Errorf("Take() after handoff = %+v, want one entry", got)
	}
}
