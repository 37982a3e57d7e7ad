// Main package in csvtool implements a command line tool for converting
// FrameDataQ log files into CSV, one row per decoded percentile record.
package main

import (
	"io"
	"log"
	"os"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/m-lab/go/rtx"

	"github.com/zzping/pinger/compress/framedataq"
	"github.com/zzping/pinger/zstd"
)

func init() {
	// Always prepend the filename and line number.
	log.SetFlags(log.LstdFlags | log.Lshortfile)
}

var (
	// A variable to enable mocking for testing.
	logFatal = log.Fatal
)

// Row is one FrameDataQ record flattened to scalar, gocsv-taggable
// fields. RecvUsP0..RecvUsP100 are the 7 percentile buckets computed
// by framedataq.ComputePercentiles (0, 12.5, 25, 50, 75, 87.5, 100).
type Row struct {
	Timestamp   int64   `csv:"timestamp"`
	SubsecMs    uint32  `csv:"subsec_ms"`
	Inflight    float32 `csv:"inflight"`
	LostPackets float32 `csv:"lost_packets"`
	RecvUsLen   int     `csv:"recv_us_len"`
	RecvUsP0    int64   `csv:"recv_us_p0"`
	RecvUsP12   int64   `csv:"recv_us_p12_5"`
	RecvUsP25   int64   `csv:"recv_us_p25"`
	RecvUsP50   int64   `csv:"recv_us_p50"`
	RecvUsP75   int64   `csv:"recv_us_p75"`
	RecvUsP87   int64   `csv:"recv_us_p87_5"`
	RecvUsP100  int64   `csv:"recv_us_p100"`
}

// readRows decodes every record from a FrameDataQ stream into CSV rows.
func readRows(rdr io.Reader) ([]*Row, error) {
	it, err := framedataq.NewFDCodecIter(rdr)
	if err != nil {
		return nil, err
	}
	var rows []*Row
	for {
		rec, ok, err := it.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		rows = append(rows, &Row{
			Timestamp:   rec.Timestamp,
			SubsecMs:    rec.SubsecMs.Value,
			Inflight:    rec.Inflight,
			LostPackets: rec.LostPackets,
			RecvUsLen:   rec.RecvUsLen,
			RecvUsP0:    rec.RecvUs[0],
			RecvUsP12:   rec.RecvUs[1],
			RecvUsP25:   rec.RecvUs[2],
			RecvUsP50:   rec.RecvUs[3],
			RecvUsP75:   rec.RecvUs[4],
			RecvUsP87:   rec.RecvUs[5],
			RecvUsP100:  rec.RecvUs[6],
		})
	}
	return rows, nil
}

func toCSV(rows []*Row, wtr io.Writer) error {
	return gocsv.Marshal(rows, wtr)
}

// openFile either opens a file, or opens and unzips a file that ends with .zst
func openFile(fn string) (io.ReadCloser, error) {
	if strings.HasSuffix(fn, ".zst") {
		return zstd.NewReader(fn), nil
	}
	return os.Open(fn)
}

func main() {
	args := os.Args[1:]

	var source io.ReadCloser
	var err error
	source = os.Stdin
	if len(args) == 1 {
		source, err = openFile(args[0])
		rtx.Must(err, "Could not open file %q", args[0])
	} else if len(args) > 1 {
		logFatal("Too many command-line arguments.")
	}
	defer source.Close()

	rows, err := readRows(source)
	rtx.Must(err, "Could not read FrameDataQ records")
	rtx.Must(toCSV(rows, os.Stdout), "Could not convert input to CSV")
}
