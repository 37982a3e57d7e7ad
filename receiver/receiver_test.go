package receiver_test

import (
	"testing"

	"github.com/zzping/pinger/receiver"
)

func TestBufferTakeEmpty(t *testing.T) {
	var b receiver.Buffer
	if got := b.Take(); got != nil {
		t.Errorf("Take() on empty buffer = %v, want nil", got)
	}
}
