// Package stats implements C7 (the per-refresh statistics aggregator)
// and C8 (the fixed-shape UDP stats wire encoder).
package stats

import (
	"time"

	"github.com/zzping/pinger/destination"
)

// pcktLossInflightTime and pcktLossRecvTime are the fixed windows C7
// uses to compute packets_lost/packets_recv, per §4.7.
const (
	pcktLossInflightTime = 300 * time.Millisecond
	pcktLossRecvTime     = time.Second
)

// Frame is one destination's computed statistics for one refresh.
type Frame struct {
	Addr          string
	InflightCount int
	RecvPerSec    float64
	PacketsLost   int
	PacketsRecv   int
	PacketLossPct float64
	AvgRTT        time.Duration
	LastReplyAge  time.Duration
}

// Compute derives a Frame for d at now. refreshPeriod is 1s/refresh_freq;
// processUptime bounds the recv_per_sec denominator before forget_recv
// has had time to fill up.
func Compute(d *destination.Destination, interval, forgetRecv, refreshPeriod, processUptime time.Duration, now time.Time) Frame {
	f := Frame{Addr: d.Addr}
	f.InflightCount = len(d.Inflight)

	denom := forgetRecv
	if processUptime < denom {
		denom = processUptime
	}
	if denom > 0 {
		f.RecvPerSec = float64(len(d.Received)) / denom.Seconds()
	}

	f.PacketsLost = len(d.InflightAfter(pcktLossInflightTime, now)) + len(d.Lost)
	f.PacketsRecv = len(d.ReceivedLast(pcktLossRecvTime, now))
	f.PacketLossPct = 100 * float64(f.PacketsLost) / (float64(f.PacketsLost) + float64(f.PacketsRecv) + 0.1)

	avgWindow := interval * 5
	if refreshPeriod > avgWindow {
		avgWindow = refreshPeriod
	}
	if mean, ok := d.MeanRecvTime(avgWindow, now); ok {
		f.AvgRTT = mean
	}

	if len(d.Received) > 0 {
		last := d.Received[len(d.Received)-1]
		f.LastReplyAge = now.Sub(last.SentMono)
	} else {
		// No reply has ever arrived (or Cleanup aged the last one out):
		// report it as stale since the last refresh, per §4.7.
		f.LastReplyAge = refreshPeriod
	}
	return f
}
