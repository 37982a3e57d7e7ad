// Package composite assembles the optional higher-compression tier
// named in §4.9(e)+(f): quantize, then predict, then correct against
// the prediction, then map the residual to a Huffman symbol plus
// extra raw bits, then entropy-code the symbol. Stage.Encode and
// Stage.Decode are the pipeline's only entry points; everything else
// is an implementation detail of the five packages it wires together.
package composite

import (
	"github.com/zzping/pinger/compress/correct"
	"github.com/zzping/pinger/compress/huffman"
	"github.com/zzping/pinger/compress/huffmap"
	"github.com/zzping/pinger/compress/predict"
	"github.com/zzping/pinger/compress/quantize"
)

// WeightFn selects which weight function seeds the Huffman map's
// symbol frequencies, per §4.9f.
type WeightFn int

const (
	// Sech2WeightFn is the two-lobe hyperbolic-secant mixture, the
	// only weight function whose exact formula survived in the
	// retrieved reference sources.
	Sech2WeightFn WeightFn = iota
	// RecipWeightFn is a simple reciprocal-decay alternative.
	RecipWeightFn
	// ManualWeightFn interpolates a fixed breakpoint table.
	ManualWeightFn
)

// DefaultItemCount is the expected-symbols figure the original
// pipeline hardcodes for its weight functions.
const DefaultItemCount = 100_000_000

func newWeightFn(kind WeightFn, precision float64, itemCount int) huffmap.WeightFn {
	switch kind {
	case RecipWeightFn:
		return huffmap.NewRecip(precision, itemCount)
	case ManualWeightFn:
		return huffmap.NewManual(huffmap.DefaultManualBreakpoints, itemCount)
	default:
		return huffmap.NewSech2(precision, itemCount)
	}
}

// Stage is the assembled encode/decode pipeline: one quantizer, one
// predictor, one corrector, one Huffman map, and the static Huffman
// code built from that map's weights. A Stage is not safe for
// concurrent use; encode and decode each carry their own predictor
// history, so an encoder and a decoder need their own Stage.
type Stage struct {
	quantizer quantize.LinearLogQuantizer
	predictor *predict.WindowMedianPredictor
	corrector correct.BasicCorrector
	mapper    *huffmap.HuffmanMapS
	code      *huffman.Code
}

// New builds a Stage: a quantizer and weight function tuned to
// precision, a predictor over windowSize values, and a Huffman map
// seeded by weightFn over itemCount expected symbols.
func New(precision float64, windowSize int, weightFn WeightFn, itemCount int) *Stage {
	mapper := huffmap.New(newWeightFn(weightFn, precision, itemCount))
	return &Stage{
		quantizer: quantize.New(precision),
		predictor: predict.New(windowSize),
		corrector: correct.New(),
		mapper:    mapper,
		code:      huffman.Build(mapper.Weights()),
	}
}

// Encode quantizes value, predicts and corrects it against the
// running window, maps the residual to a Huffman symbol, and appends
// symbol-then-extra-bits to w, per §4.9f's "Huffman symbol, then
// extra_bits raw bits" wire shape.
func (s *Stage) Encode(w *huffman.BitWriter, value int64) error {
	qval := s.quantizer.Encode(value)
	predicted, hasPrediction := s.predictor.PredictAndPush(qval)
	diff := s.corrector.Diff(qval, predicted, hasPrediction)
	key := s.mapper.ToKey(diff)
	if err := s.code.Encode(w, key.Symbol); err != nil {
		return err
	}
	if key.ExtraBits > 0 {
		w.WriteBits(key.ExtraData, key.ExtraBits)
	}
	return nil
}

// Decode reverses Encode: it reads one Huffman symbol from r,
// determines its extra-bit width from the Huffman map, reads that
// many raw bits, and reconstructs the original value via the
// corrector and quantizer.
func (s *Stage) Decode(r *huffman.BitReader) (int64, error) {
	symbol, err := s.code.Decode(r)
	if err != nil {
		return 0, err
	}
	bits, isRaw := s.mapper.ExtraBitsForSymbol(symbol)
	var extra int64
	if bits > 0 {
		extra, err = r.ReadBits(bits)
		if err != nil {
			return 0, err
		}
	}
	typ := correct.Corrected
	if isRaw {
		typ = correct.Raw
	}
	diff := s.mapper.FromKey(huffmap.Key{Type: typ, Symbol: symbol, ExtraBits: bits, ExtraData: extra})

	lastPred, hasLastPred := s.predictor.Predict()
	orig := s.corrector.Undiff(lastPred, hasLastPred, diff)
	s.predictor.Push(orig)
	return s.quantizer.Decode(orig), nil
}
