// Command pingerd runs the ICMP probing daemon: it loads a YAML
// configuration file, opens one raw/unprivileged ICMP socket, probes
// every configured destination on its own cadence, and periodically
// reports per-destination stats over UDP and to a per-destination
// on-disk frame log.
package main

import (
	"context"
	"flag"
	"io"
	"log"
	"math/rand"
	"net"
	"os"
	"time"

	"github.com/m-lab/go/flagx"
	"github.com/m-lab/go/prometheusx"
	"github.com/m-lab/go/rtx"

	"golang.org/x/time/rate"

	"github.com/zzping/pinger/config"
	"github.com/zzping/pinger/destination"
	"github.com/zzping/pinger/framelog"
	"github.com/zzping/pinger/metrics"
	"github.com/zzping/pinger/notify"
	"github.com/zzping/pinger/receiver"
	"github.com/zzping/pinger/scheduler"
	"github.com/zzping/pinger/stats"
	"github.com/zzping/pinger/transport"
	"github.com/zzping/pinger/zstd"
)

func init() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
}

var (
	configPath = flag.String("config", "daemon_config.yaml", "Path to the daemon's YAML configuration file")
	promPort   = flag.String("prom", ":9090", "Prometheus metrics export address and port")
	logDir     = flag.String("logdir", ".", "Directory to write per-destination frame logs into")

	refreshInterval = flag.Duration("refresh", time.Second, "How often to refresh stats and append a frame log record")
	reportEvery     = flag.Duration("report-every", 15*time.Second, "How often a frame log record carries a full keyframe timestamp instead of an elapsed delta")
	sendBudget      = flag.Int("send-budget", 64, "Maximum packets SendAll may send per scheduler iteration, 0 for unlimited")
	compress        = flag.Bool("compress", false, "Pipe frame logs through an external zstd process instead of writing them plain")
)

func main() {
	flag.Parse()
	flagx.ArgsFromEnv(flag.CommandLine)

	promSrv := prometheusx.MustStartPrometheus(*promPort)
	defer promSrv.Shutdown(context.Background())

	cfg, err := config.FromFile(*configPath)
	rtx.Must(err, "could not load config %s", *configPath)

	conn, err := transport.Listen("")
	rtx.Must(err, "could not open ICMP socket")
	defer conn.Close()

	events := notify.NullServer()
	if *notify.Filename != "" {
		events = notify.New(*notify.Filename)
		rtx.Must(events.Listen(), "could not listen on event socket %s", *notify.Filename)
		eventsCtx, cancelEvents := context.WithCancel(context.Background())
		defer cancelEvents()
		go events.Serve(eventsCtx)
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	byIdent := make(map[uint16]*destination.Destination, len(cfg.PingTargets))
	dests := make([]*destination.Destination, 0, len(cfg.PingTargets))
	logFiles := make(map[uint16]io.WriteCloser, len(cfg.PingTargets))
	for _, target := range cfg.PingTargets {
		if target.Frequency == 0 {
			log.Printf("pingerd: skipping target %s with zero frequency", target.Address)
			continue
		}
		interval := time.Second / time.Duration(target.Frequency)
		dest, err := destination.New(target.Address, interval, rng)
		if err != nil {
			log.Printf("pingerd: skipping target %s: %v", target.Address, err)
			continue
		}
		dests = append(dests, dest)
		byIdent[dest.Ident] = dest

		f, err := openLogFile(*logDir, target.Address, *compress)
		if err != nil {
			log.Printf("pingerd: could not open log file for %s: %v", target.Address, err)
			continue
		}
		logFiles[dest.Ident] = f
		defer f.Close()
	}

	retention := destination.RetentionConfig{
		ForgetInflight: time.Duration(cfg.KeepPackets.InflightSecs) * time.Second,
		ForgetRecv:     time.Duration(cfg.KeepPackets.RecvSecs) * time.Second,
		ForgetLost:     time.Duration(cfg.KeepPackets.LostSecs) * time.Second,
	}

	precisionMult := cfg.PrecisionMult
	if precisionMult <= 0 {
		precisionMult = 1.0
	}
	limiter := rate.NewLimiter(rate.Limit(10000), 100)
	sched := scheduler.New(conn, dests, precisionMult, limiter)

	var statsConn net.Conn
	if cfg.UDPClientAddress != "" {
		statsConn, err = net.Dial("udp", cfg.UDPClientAddress)
		if err != nil {
			log.Printf("pingerd: could not dial UDP client address %s: %v", cfg.UDPClientAddress, err)
		}
	}

	buf := &receiver.Buffer{}
	stop := make(chan struct{})
	go receiver.Loop(stop, conn, buf)
	defer close(stop)

	processStart := time.Now()
	lastRefresh := time.Now().Add(-time.Minute)
	lastReport := time.Now().Add(-time.Minute)

	for {
		sched.SendAll(*sendBudget)
		dispatchReplies(buf, byIdent, events)

		if time.Since(lastRefresh) < *refreshInterval {
			time.Sleep(sched.GetDelay())
			continue
		}
		now := time.Now()
		elapsedSinceRefresh := now.Sub(lastRefresh)
		lastRefresh = now

		for _, d := range dests {
			// Count the in-flight entries Cleanup is about to move to
			// Lost; it may drop old Lost entries in the same pass.
			newlyLost := 0
			for _, s := range d.Inflight {
				if now.Sub(s.SentMono) >= retention.ForgetRecv {
					newlyLost++
				}
			}
			d.Cleanup(retention, now)
			metrics.PacketsLostCount.WithLabelValues(d.Addr).Add(float64(newlyLost))
			for i := 0; i < newlyLost; i++ {
				events.Lost(d.Addr, d.Ident)
			}
		}

		isKeyframe := now.Sub(lastReport) >= *reportEvery
		elapsedSinceReport := now.Sub(lastReport)
		if isKeyframe {
			lastReport = now
		}

		for _, d := range dests {
			frame := stats.Compute(d, d.Interval, retention.ForgetRecv, elapsedSinceRefresh, time.Since(processStart), now)

			metrics.InflightGauge.WithLabelValues(d.Addr).Set(float64(frame.InflightCount))
			metrics.PacketsRecvCount.WithLabelValues(d.Addr).Add(float64(frame.PacketsRecv))

			if statsConn != nil {
				datagram, err := stats.EncodeDatagram(frame)
				if err != nil {
					log.Printf("pingerd: stats encode error for %s: %v", d.Addr, err)
				} else if _, err := statsConn.Write(datagram); err != nil {
					log.Printf("pingerd: UDP send error for %s: %v", d.Addr, err)
				} else {
					metrics.UDPStatsSentCount.Inc()
				}
			}

			f, ok := logFiles[d.Ident]
			if !ok {
				continue
			}
			fd := buildFrameData(d, elapsedSinceRefresh, elapsedSinceReport, isKeyframe, now)
			if err := framelog.Encode(f, fd); err != nil {
				metrics.LogWriteErrorCount.WithLabelValues(d.Addr).Inc()
				log.Printf("pingerd: frame log write error for %s: %v", d.Addr, err)
			}
		}
	}
}

// dispatchReplies drains the receiver's handoff buffer and matches
// each reply against the destination its ident belongs to.
func dispatchReplies(buf *receiver.Buffer, byIdent map[uint16]*destination.Destination, events notify.Server) {
	for _, p := range buf.Take() {
		d, ok := byIdent[p.Ident]
		if !ok {
			continue
		}
		if d.Match(p) && len(d.Received) > 0 {
			metrics.RTTHistogram.WithLabelValues(d.Addr).Observe(d.Received[len(d.Received)-1].RTT.Seconds())
			events.Recovered(d.Addr, d.Ident)
		}
	}
}

func logFileName(dir, addr string) string {
	safe := make([]byte, 0, len(addr))
	for _, c := range []byte(addr) {
		if c == '.' || c == ':' {
			safe = append(safe, '_')
		} else {
			safe = append(safe, c)
		}
	}
	return dir + "/" + string(safe) + ".fdq"
}

// openLogFile opens a destination's frame log. With compress set, records
// are piped through an external zstd process instead of written plain,
// and the .zst file is truncated at startup since a zstd stream cannot
// be resumed mid-stream across daemon restarts; a plain log is appended
// to.
func openLogFile(dir, addr string, compress bool) (io.WriteCloser, error) {
	name := logFileName(dir, addr)
	if compress {
		return zstd.NewWriter(name + ".zst")
	}
	return os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}

func buildFrameData(d *destination.Destination, window, elapsedSinceReport time.Duration, isKeyframe bool, now time.Time) framelog.FrameData {
	recv := d.ReceivedLast(window+window/2, now)
	inflight := d.InflightAfter(window, now)

	recvUs := make([]uint32, 0, len(recv))
	for _, p := range recv {
		recvUs = append(recvUs, uint32(p.RTT.Microseconds()))
	}
	sortUint32s(recvUs)

	fd := framelog.FrameData{
		Inflight:    len(inflight),
		LostPackets: len(d.Lost),
		RecvUs:      recvUs,
	}
	if isKeyframe {
		fd.IsKeyframe = true
		fd.Timestamp = now
	} else {
		fd.Elapsed = elapsedSinceReport
	}
	return fd
}

func sortUint32s(s []uint32) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}
