// Package scheduler implements C5: pacing emissions across all
// configured destinations so that, per destination, inter-packet
// spacing stays at or above its configured interval, while bounding
// the aggregate send rate.
package scheduler

import (
	"log"
	"math/rand"
	"sort"
	"time"

	"golang.org/x/time/rate"

	"github.com/zzping/pinger/destination"
	"github.com/zzping/pinger/icmpwire"
	"github.com/zzping/pinger/transport"
)

func init() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
}

// Scheduler paces sends across a fixed set of destinations over a
// single shared ICMP transport, per §4.5.
type Scheduler struct {
	Dests         []*destination.Destination
	PrecisionMult float64

	conn    *transport.ICMP4
	rng     *rand.Rand
	limiter *rate.Limiter
}

// New builds a scheduler over dests. limiter is a belt-and-suspenders
// global rate cap on top of the harmonic pacing GetDelay computes;
// pass rate.NewLimiter(rate.Inf, 1) to disable it.
func New(conn *transport.ICMP4, dests []*destination.Destination, precisionMult float64, limiter *rate.Limiter) *Scheduler {
	return &Scheduler{
		Dests:         dests,
		PrecisionMult: precisionMult,
		conn:          conn,
		rng:           rand.New(rand.NewSource(time.Now().UnixNano())),
		limiter:       limiter,
	}
}

// GetDelay returns the recommended spacing between scheduler passes:
// 1/(precision_mult * sum(1/interval_i)), the average spacing needed
// to keep the aggregate send rate flat across all destinations. With
// no destinations configured it returns 1ms.
func (s *Scheduler) GetDelay() time.Duration {
	if len(s.Dests) == 0 {
		return time.Millisecond
	}
	var rateSum float64
	for _, d := range s.Dests {
		if d.Interval > 0 {
			rateSum += 1.0 / d.Interval.Seconds()
		}
	}
	if rateSum <= 0 || s.PrecisionMult <= 0 {
		return time.Millisecond
	}
	seconds := 1.0 / (s.PrecisionMult * rateSum)
	return time.Duration(seconds * float64(time.Second))
}

type candidate struct {
	index int
	delay time.Duration
}

// SendAll builds destinations in most-overdue-first order and sends
// to each one eligible, until limit sends have gone out (limit<=0
// means traverse all destinations). It returns the number of packets
// actually sent.
func (s *Scheduler) SendAll(limit int) int {
	now := time.Now()
	minDelay := s.GetDelay()

	cands := make([]candidate, len(s.Dests))
	for i, d := range s.Dests {
		cands[i] = candidate{index: i, delay: d.DelayUntilEligible(now)}
	}
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].delay < cands[j].delay })

	count := 0
	for _, c := range cands {
		d := s.Dests[c.index]
		// Admission limiter threshold is drawn fresh per candidate, per
		// §4.5 step 2.
		threshold := 16 + s.rng.Intn(48)
		if !d.CanSend(threshold) {
			continue
		}
		if now.Sub(d.LastSentMono())+minDelay < d.Interval {
			continue
		}
		if s.limiter != nil && !s.limiter.Allow() {
			continue
		}
		sent := d.Send(now)
		packet := icmpwire.BuildEchoRequest(sent.Data.Ident, sent.Data.Seq)
		if err := s.conn.Send(packet, d.Addr); err != nil {
			log.Printf("scheduler: %v", err)
			continue
		}
		count++
		if limit > 0 && count >= limit {
			return count
		}
	}
	return count
}
