// Package destination implements C4 (per-destination state) and C6
// (matcher & retention): one probe target's identity, its pacing
// clock, and the three ordered queues — in-flight, received, lost —
// that every probe sent to it passes through exactly once.
package destination

import (
	"errors"
	"fmt"
	"log"
	"math/rand"
	"net"
	"time"

	"github.com/zzping/pinger/probe"
)

func init() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
}

// ConfigError is returned by New when addr cannot be parsed as an
// IPv4 literal. It is fatal at startup, never in the hot path.
type ConfigError struct {
	Addr string
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("destination: invalid address %q: %v", e.Addr, e.Err)
}
func (e *ConfigError) Unwrap() error { return e.Err }

var errNotIPv4 = errors.New("not an IPv4 literal")

// RetentionConfig supplies the three aging windows consumed by
// Cleanup, per §4.6.
type RetentionConfig struct {
	ForgetInflight time.Duration
	ForgetRecv     time.Duration
	ForgetLost     time.Duration
}

// Destination holds everything C5/C6/C7 need for one probe target.
// It is single-owner: only the main thread mutates it (§5).
type Destination struct {
	Addr     string
	IP       net.IP
	Interval time.Duration
	Ident    uint16

	seq          uint16
	lastSentMono time.Time

	Inflight []probe.Sent
	Received []probe.Sent
	Lost     []probe.Sent

	SentTotal uint64
	RecvTotal uint64

	rng *rand.Rand
}

// New resolves addr, assigns a random ident, and arms the destination
// to send immediately on its first scheduler pass (last_sent_mono set
// interval in the past), per §4.4.
func New(addr string, interval time.Duration, rng *rand.Rand) (*Destination, error) {
	ip := net.ParseIP(addr)
	if ip == nil || ip.To4() == nil {
		return nil, &ConfigError{Addr: addr, Err: errNotIPv4}
	}
	now := time.Now()
	return &Destination{
		Addr:         addr,
		IP:           ip.To4(),
		Interval:     interval,
		Ident:        uint16(rng.Intn(1 << 16)),
		seq:          1,
		lastSentMono: now.Add(-interval),
		rng:          rng,
	}, nil
}

// Seq returns the sequence number that will be used on the next send.
func (d *Destination) Seq() uint16 { return d.seq }

// LastSentMono returns the pacing timestamp of the destination's last
// emission (or now-interval, before any send).
func (d *Destination) LastSentMono() time.Time { return d.lastSentMono }

// DelayUntilEligible returns max(0, lastSentMono+interval-now), the
// value the scheduler sorts on to find the most-overdue destination.
func (d *Destination) DelayUntilEligible(now time.Time) time.Duration {
	elig := d.lastSentMono.Add(d.Interval)
	if elig.Before(now) {
		return 0
	}
	return elig.Sub(now)
}

// Send records the admission/pacing decision already made by the
// scheduler: assigns the outgoing Sent entry, advances last_sent_mono
// with jitter, and draws a new random sequence number, per §4.5 step
// 2's "on a send" clause. It returns the Sent value the caller should
// hand to the transport (its Data fields are exactly what must be
// serialized by icmpwire).
func (d *Destination) Send(now time.Time) probe.Sent {
	s := probe.Sent{
		Data: probe.Data{
			Seq:   d.seq,
			Ident: d.Ident,
			Addr:  d.Addr,
		},
		SentMono: now,
		SentWall: now,
	}
	d.Inflight = append(d.Inflight, s)
	jitter := time.Duration(d.rng.Intn(100)) * time.Microsecond
	d.lastSentMono = now.Add(-jitter)
	d.seq = uint16(d.rng.Intn(1 << 16))
	d.SentTotal++
	return s
}

// CanSend reports whether the admission limiter allows another send:
// the in-flight queue must be under threshold, a value the scheduler
// draws fresh (uniformly from [16,64)) for each destination it
// considers.
func (d *Destination) CanSend(threshold int) bool {
	return len(d.Inflight) < threshold
}

// Match correlates an inbound reply to an in-flight probe, per §4.6.
// It returns true iff a match was made. A reply whose ident does not
// belong to this destination must not be passed here at all; callers
// dispatch by ident before calling Match.
func (d *Destination) Match(p probe.Data) bool {
	matched := -1
	for i := range d.Inflight {
		s := &d.Inflight[i]
		if s.Data.Seq != p.Seq || s.HasRTT() {
			continue
		}
		rtt := p.ArrivedAt.Sub(s.SentMono)
		if rtt < 0 {
			// Reply raced ahead of our send-time stamp (duplicate-reply
			// hazard): leave unset and keep scanning, per §4.6.
			continue
		}
		s.SetRTT(rtt)
		matched = i
		break
	}
	if matched < 0 {
		return false
	}
	d.RecvTotal++
	d.drainMatched()
	return true
}

// drainMatched moves every matched (rtt set) entry out of Inflight
// and into Received, in order, per §4.6's "drain inflight of all
// entries with rtt != none" clause.
func (d *Destination) drainMatched() {
	var keep []probe.Sent
	for _, s := range d.Inflight {
		if s.HasRTT() {
			d.Received = append(d.Received, s)
		} else {
			keep = append(keep, s)
		}
	}
	d.Inflight = keep
}

// Cleanup ages and evicts entries per the compound retention windows
// in §4.6: inflight older than forget_recv moves to lost; inflight
// older than forget_inflight is dropped outright; received older than
// forget_inflight+forget_recv is dropped; lost older than
// forget_inflight+forget_lost is dropped. Order matters: each step
// only ever removes what the prior step didn't already relocate.
func (d *Destination) Cleanup(cfg RetentionConfig, now time.Time) {
	var stillInflight []probe.Sent
	for _, s := range d.Inflight {
		age := now.Sub(s.SentMono)
		switch {
		case age >= cfg.ForgetRecv:
			d.Lost = append(d.Lost, s)
		default:
			stillInflight = append(stillInflight, s)
		}
	}
	d.Inflight = stillInflight

	d.Inflight = dropOlderThan(d.Inflight, now, cfg.ForgetInflight)
	d.Received = dropOlderThan(d.Received, now, cfg.ForgetInflight+cfg.ForgetRecv)
	d.Lost = dropOlderThan(d.Lost, now, cfg.ForgetInflight+cfg.ForgetLost)
}

func dropOlderThan(q []probe.Sent, now time.Time, window time.Duration) []probe.Sent {
	var keep []probe.Sent
	for _, s := range q {
		if now.Sub(s.SentMono) < window {
			keep = append(keep, s)
		}
	}
	return keep
}

// ReceivedLast returns the Received entries whose sent+rtt falls
// within window of now, required by C7.
func (d *Destination) ReceivedLast(window time.Duration, now time.Time) []probe.Sent {
	var out []probe.Sent
	for _, s := range d.Received {
		if now.Sub(s.SentMono.Add(s.RTT)) <= window {
			out = append(out, s)
		}
	}
	return out
}

// InflightAfter returns Inflight entries older than window (likely
// lost but not yet aged out), required by C7.
func (d *Destination) InflightAfter(window time.Duration, now time.Time) []probe.Sent {
	var out []probe.Sent
	for _, s := range d.Inflight {
		if now.Sub(s.SentMono) > window {
			out = append(out, s)
		}
	}
	return out
}

// MeanRecvTime returns the arithmetic mean RTT over ReceivedLast(window),
// or ok=false if that set is empty.
func (d *Destination) MeanRecvTime(window time.Duration, now time.Time) (mean time.Duration, ok bool) {
	recent := d.ReceivedLast(window, now)
	if len(recent) == 0 {
		return 0, false
	}
	var sum time.Duration
	for _, s := range recent {
		sum += s.RTT
	}
	return sum / time.Duration(len(recent)), true
}
