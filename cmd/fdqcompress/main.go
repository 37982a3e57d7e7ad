// Command fdqcompress re-encodes a FrameDataQ log's per-record RTT
// percentiles through the composite prediction/correction/Huffman
// pipeline and reports the resulting bit budget, mirroring the
// original datareadq tool's read-then-re-encode pass.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/zzping/pinger/compress/composite"
	"github.com/zzping/pinger/compress/framedataq"
	"github.com/zzping/pinger/compress/huffman"
)

func init() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
}

var (
	inputPath = flag.String("in", "", "Path to a FrameDataQ log file (required)")
	precision = flag.Float64("precision", 0.001, "Relative precision for the quantizer and weight function")
	window    = flag.Int("window", 3, "Predictor window size")
	weightFn  = flag.String("weightfn", "sech2", "Weight function: sech2, recip, or manual")
)

func main() {
	flag.Parse()
	if *inputPath == "" {
		fmt.Fprintln(os.Stderr, "fdqcompress: -in is required")
		os.Exit(2)
	}

	kind, err := parseWeightFn(*weightFn)
	if err != nil {
		log.Fatalf("fdqcompress: %v", err)
	}

	f, err := os.Open(*inputPath)
	if err != nil {
		log.Fatalf("fdqcompress: %v", err)
	}
	defer f.Close()

	it, err := framedataq.NewFDCodecIter(f)
	if err != nil {
		log.Fatalf("fdqcompress: reading header: %v", err)
	}

	stage := composite.New(*precision, *window, kind, composite.DefaultItemCount)
	w := huffman.NewBitWriter()

	records, values := 0, 0
	for {
		rec, ok, err := it.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			log.Fatalf("fdqcompress: decoding record %d: %v", records, err)
		}
		if !ok {
			break
		}
		for i := 0; i < rec.RecvUsLen && i < len(rec.RecvUs); i++ {
			if err := stage.Encode(w, rec.RecvUs[i]); err != nil {
				log.Fatalf("fdqcompress: encoding record %d value %d: %v", records, i, err)
			}
			values++
		}
		records++
	}

	out := w.Bytes()
	bitsPerValue := 0.0
	if values > 0 {
		bitsPerValue = float64(len(out)*8) / float64(values)
	}
	fmt.Fprintf(os.Stderr, "fdqcompress: %d records, %d values, %d bytes (%.2f bits/value)\n",
		records, values, len(out), bitsPerValue)
}

func parseWeightFn(name string) (composite.WeightFn, error) {
	switch name {
	case "sech2":
		return composite.Sech2WeightFn, nil
	case "recip":
		return composite.RecipWeightFn, nil
	case "manual":
		return composite.ManualWeightFn, nil
	}
	return 0, fmt.Errorf("unknown weight function %q", name)
}
