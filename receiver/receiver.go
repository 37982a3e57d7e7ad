// Package receiver runs the dedicated receive-side goroutine (C3):
// it drains the ICMP transport's receive side into a local scratch
// list and periodically hands that list off to a shared buffer that
// the main loop drains. The handoff uses a non-blocking try-lock on
// the producer side so a busy main loop never stalls the receiver.
package receiver

import (
	"log"
	"sync"
	"time"

	"github.com/zzping/pinger/icmpwire"
	"github.com/zzping/pinger/probe"
	"github.com/zzping/pinger/transport"
)

func init() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
}

// pollInterval is both the recv_one timeout and the minimum spacing
// between handoff attempts, per §4.3.
const pollInterval = 100 * time.Microsecond

// Buffer is the single object shared between the receiver goroutine
// and the main loop. The producer (receiver) only ever TryLocks it;
// the consumer (main loop) Locks it, the way the concurrency model in
// §5 requires: acquire-copy-release on the consumer side, try-acquire
// on the producer side.
type Buffer struct {
	mu      sync.Mutex
	pending []probe.Data
}

// Take removes and returns everything currently buffered, blocking
// only as long as it takes to swap a slice header.
func (b *Buffer) Take() []probe.Data {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.pending) == 0 {
		return nil
	}
	out := b.pending
	b.pending = nil
	return out
}

// tryHandoff attempts a non-blocking append of scratch into the
// buffer. It returns true only if the lock was acquired; scratch
// itself is left untouched, so the caller resets it after a success.
func (b *Buffer) tryHandoff(scratch []probe.Data) bool {
	if !b.mu.TryLock() {
		return false
	}
	defer b.mu.Unlock()
	b.pending = append(b.pending, scratch...)
	return true
}

// Loop runs the receiver goroutine until stop is closed. conn is the
// ICMP transport to poll; buf is the shared handoff buffer. Loss of
// the scratch list on process termination is acceptable: replies that
// never made it into buf simply round-trip to "in-flight became
// lost", which the matcher already handles.
func Loop(stop <-chan struct{}, conn *transport.ICMP4, buf *Buffer) {
	var scratch []probe.Data
	lastHandoff := time.Now()

	for {
		select {
		case <-stop:
			return
		default:
		}

		recv, ok, err := conn.RecvOne(pollInterval)
		if err != nil {
			log.Printf("receiver: recv error: %v", err)
		} else if ok {
			reply := icmpwire.ParseEchoReply(recv.Packet)
			scratch = append(scratch, probe.Data{
				Seq:       reply.Seq,
				Ident:     reply.Ident,
				Addr:      recv.Src,
				ArrivedAt: time.Now(),
			})
		}

		if len(scratch) > 0 && time.Since(lastHandoff) >= pollInterval {
			if buf.tryHandoff(scratch) {
				scratch = nil
				lastHandoff = time.Now()
			}
		}
	}
}
