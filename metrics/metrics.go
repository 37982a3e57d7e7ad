// Package metrics defines prometheus metric types and provides convenience
// methods to add accounting to various parts of the pipeline.
//
// When defining new operations or metrics, these are helpful values to track:
//  - things coming into or go out of the system: packets, frames, records.
//  - the success or error status of any of the above.
//  - the distribution of processing latency.
package metrics

import (
	"log"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PacketsSentCount counts Echo Requests sent, per destination.
	PacketsSentCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pinger_packets_sent_total",
			Help: "Number of Echo Request packets sent.",
		}, []string{"dest"})

	// PacketsRecvCount counts Echo Replies matched to an in-flight
	// request, per destination.
	PacketsRecvCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pinger_packets_recv_total",
			Help: "Number of Echo Reply packets matched to a sent packet.",
		}, []string{"dest"})

	// PacketsLostCount counts packets that aged out of the inflight
	// queue without a matching reply, per destination.
	PacketsLostCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pinger_packets_lost_total",
			Help: "Number of packets presumed lost (no reply before forget_recv).",
		}, []string{"dest"})

	// InflightGauge tracks the current size of each destination's
	// inflight queue.
	InflightGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pinger_inflight_packets",
			Help: "Current count of sent, unacknowledged packets.",
		}, []string{"dest"})

	// RTTHistogram tracks matched round-trip-time samples.
	RTTHistogram = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "pinger_rtt_seconds",
			Help: "Round-trip time distribution for matched replies.",
			Buckets: []float64{
				0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005,
				0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5,
			},
		}, []string{"dest"})

	// SchedulerDelayHistogram tracks the harmonic-sum pacing delay
	// SendAll computed before each wakeup.
	SchedulerDelayHistogram = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pinger_scheduler_delay_seconds",
			Help:    "GetDelay() harmonic-sum pacing interval distribution.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 20),
		},
	)

	// RecvErrorCount counts receiver-loop ICMP read errors that are
	// not a plain timeout.
	RecvErrorCount = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pinger_recv_error_total",
			Help: "Number of non-timeout errors from the ICMP receive loop.",
		},
	)

	// LogWriteErrorCount counts failed appends to a destination's
	// on-disk frame log, per §7 (logged and swallowed, never fatal).
	LogWriteErrorCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pinger_log_write_error_total",
			Help: "Number of failed frame log writes.",
		}, []string{"dest"})

	// CodecBytesOutCount counts bytes written by the FrameDataQ codec,
	// per destination.
	CodecBytesOutCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pinger_codec_bytes_out_total",
			Help: "Number of bytes written to compressed FrameDataQ logs.",
		}, []string{"dest"})

	// UDPStatsSentCount counts UDP stats datagrams sent to the GUI
	// client address.
	UDPStatsSentCount = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pinger_udp_stats_sent_total",
			Help: "Number of UDP stats datagrams sent.",
		},
	)
)

// init() prints a log message to let the user know that the package has been
// loaded and the metrics registered. The metrics are auto-registered, which
// means they are registered as soon as this package is loaded, and the exact
// time this occurs (and whether this occurs at all in a given context) can be
// opaque.
func init() {
	log.Println("Prometheus metrics in pinger.metrics are registered.")
}
