// Command fdqdump streams a compressed FrameDataQ log file and prints
// one line per decoded record, for offline inspection of a pinger
// daemon's on-disk history.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/zzping/pinger/compress/framedataq"
)

func init() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
}

var inputPath = flag.String("in", "", "Path to a FrameDataQ log file (required)")

func main() {
	flag.Parse()
	if *inputPath == "" {
		fmt.Fprintln(os.Stderr, "fdqdump: -in is required")
		os.Exit(2)
	}

	f, err := os.Open(*inputPath)
	if err != nil {
		log.Fatalf("fdqdump: %v", err)
	}
	defer f.Close()

	it, err := framedataq.NewFDCodecIter(f)
	if err != nil {
		log.Fatalf("fdqdump: reading header: %v", err)
	}

	count := 0
	for {
		rec, ok, err := it.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			log.Fatalf("fdqdump: decoding record %d: %v", count, err)
		}
		if !ok {
			break
		}
		printRecord(count, rec)
		count++
	}
	fmt.Fprintf(os.Stderr, "fdqdump: %d records\n", count)
}

func printRecord(n int, rec framedataq.FrameDataQ) {
	ts := time.Unix(rec.Timestamp, int64(rec.SubsecMs.Value)*int64(time.Millisecond)).UTC()
	fmt.Printf("%6d  %s  inflight=%.1f  lost=%.1f  n=%d  recv_us=%v\n",
		n, ts.Format(time.RFC3339Nano), rec.Inflight, rec.LostPackets, rec.RecvUsLen, rec.RecvUs)
}
