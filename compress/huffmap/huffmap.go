// Package huffmap implements HuffmanMapS (§4.9f): it partitions the
// integer domain of corrected residuals into concentric blocks of
// growing size, assigns each block a Huffman symbol and the number of
// raw "extra" bits it must additionally carry, and reserves one
// symbol for raw (unpredicted) values.
package huffmap

import (
	"fmt"

	"github.com/zzping/pinger/compress/correct"
)

// Block is one concentric partition of the quantized-value domain:
// values in [StartQuantized, EndQuantized) map to Huffman symbols in
// [StartHuffman, EndHuffman), BlockSize values to one symbol.
type Block struct {
	StartQuantized, EndQuantized int64
	StartHuffman, EndHuffman     int64
	BlockSize                    int64
	BlockSizeBits                int
}

func (b Block) encode(vq int64) (key, extraData int64) {
	sign := int64(1)
	if vq < 0 {
		sign = -1
		vq = -vq
	}
	if vq < b.StartQuantized || vq >= b.EndQuantized {
		panic(fmt.Sprintf("huffmap: %d out of block range [%d,%d)", vq, b.StartQuantized, b.EndQuantized))
	}
	v := vq - b.StartQuantized
	vb := v / b.BlockSize
	extra := v % b.BlockSize
	return sign * (vb + b.StartHuffman), extra
}

func (b Block) decode(key, extraData int64) int64 {
	sign := int64(1)
	if key < 0 {
		sign = -1
		key = -key
	}
	if key < b.StartHuffman || key >= b.EndHuffman {
		panic(fmt.Sprintf("huffmap: key %d out of block range [%d,%d)", key, b.StartHuffman, b.EndHuffman))
	}
	vb := key - b.StartHuffman
	v := vb*b.BlockSize + extraData
	return sign * (v + b.StartQuantized)
}

// RawSymbol is the single reserved symbol carrying an unpredicted
// (Raw) value as a fixed-width payload.
type RawSymbol struct {
	Key  int64
	Bits int
	Freq uint64
}

// Key identifies a Huffman symbol plus however many extra raw bits
// follow it in the bitstream.
type Key struct {
	Type      correct.ValueType
	Symbol    int64
	ExtraBits int
	ExtraData int64
}

// HuffmanMapS maps DiffValues to/from Huffman symbols and builds the
// symbol-frequency table a static Huffman code is built from.
type HuffmanMapS struct {
	weights   map[int64]uint64
	rawStart  int64
	raw       []RawSymbol
	blocks    []Block
	symmetric bool
}

// New builds a symmetric HuffmanMapS (negative residuals mirror
// positive ones) from weight function f.
func New(f WeightFn) *HuffmanMapS {
	m := &HuffmanMapS{symmetric: true}
	m.updateFromFn(f)
	return m
}

// NewUnsigned builds a HuffmanMapS without mirroring negative keys,
// for domains where residuals are known non-negative.
func NewUnsigned(f WeightFn) *HuffmanMapS {
	m := &HuffmanMapS{symmetric: false}
	m.updateFromFn(f)
	return m
}

func (m *HuffmanMapS) updateFromFn(f WeightFn) {
	f.ComputeFn(256000)

	m.rawStart = 1_000_000
	m.raw = []RawSymbol{{Key: 1_000_012, Bits: 12, Freq: 32}}
	m.blocks = nil
	m.weights = make(map[int64]uint64, 256)

	cur := [2]int64{0, 0}
	cur = m.updateFromFnRange(f, cur, 1, 0)
	cur = m.updateFromFnRange(f, cur, 64, 0)
	cur = m.updateFromFnRange(f, cur, 64, 1)
	cur = m.updateFromFnRange(f, cur, 64, 2)
	cur = m.updateFromFnRange(f, cur, 128, 3)
	cur = m.updateFromFnRange(f, cur, 128, 4)
	_ = m.updateFromFnRange(f, cur, 128, 5)

	for _, r := range m.raw {
		m.weights[r.Key] = r.Freq
	}
}

func (m *HuffmanMapS) updateFromFnRange(f WeightFn, start [2]int64, blocks int64, bsizeBits int) [2]int64 {
	bsize := int64(1) << bsizeBits
	for bnum := int64(0); bnum < blocks; bnum++ {
		from := start[0] + bnum*bsize
		to := from + bsize
		k := start[1] + bnum
		v := f.GetRange(int(from), int(to))
		m.weights[k] = v
		if k > 0 && m.symmetric {
			m.weights[-k] = v
		}
	}
	endQuantized := start[0] + blocks*bsize
	endHuffman := start[1] + blocks
	m.blocks = append(m.blocks, Block{
		StartQuantized: start[0],
		EndQuantized:   endQuantized,
		StartHuffman:   start[1],
		EndHuffman:     endHuffman,
		BlockSize:      bsize,
		BlockSizeBits:  bsizeBits,
	})
	return [2]int64{endQuantized, endHuffman}
}

// Weights returns the symbol -> frequency table a static Huffman code
// should be built from.
func (m *HuffmanMapS) Weights() map[int64]uint64 {
	out := make(map[int64]uint64, len(m.weights))
	for k, v := range m.weights {
		out[k] = v
	}
	return out
}

// ToKey maps a DiffValue to its Huffman symbol and extra bits.
func (m *HuffmanMapS) ToKey(d correct.DiffValue) Key {
	if d.Type == correct.Raw {
		r := m.raw[0]
		return Key{Type: correct.Raw, Symbol: r.Key, ExtraBits: r.Bits, ExtraData: d.Value}
	}
	b, ok := m.blockForValue(d.Value)
	if !ok {
		panic(fmt.Sprintf("huffmap: no block covers corrected value %d", d.Value))
	}
	sym, extra := b.encode(d.Value)
	return Key{Type: correct.Corrected, Symbol: sym, ExtraBits: b.BlockSizeBits, ExtraData: extra}
}

// FromKey reverses ToKey.
func (m *HuffmanMapS) FromKey(k Key) correct.DiffValue {
	if k.Type == correct.Raw {
		return correct.DiffValue{Type: correct.Raw, Value: k.ExtraData}
	}
	b, ok := m.blockForSymbol(k.Symbol)
	if !ok {
		panic(fmt.Sprintf("huffmap: no block covers symbol %d", k.Symbol))
	}
	return correct.DiffValue{Type: correct.Corrected, Value: b.decode(k.Symbol, k.ExtraData)}
}

// ExtraBitsForSymbol reports how many extra bits follow a decoded
// Huffman symbol, needed by the decoder before the extra data itself
// has been read.
func (m *HuffmanMapS) ExtraBitsForSymbol(symbol int64) (bits int, isRaw bool) {
	if symbol >= m.rawStart {
		return m.raw[0].Bits, true
	}
	b, ok := m.blockForSymbol(symbol)
	if !ok {
		panic(fmt.Sprintf("huffmap: no block covers symbol %d", symbol))
	}
	return b.BlockSizeBits, false
}

func (m *HuffmanMapS) blockForValue(v int64) (Block, bool) {
	av := v
	if av < 0 {
		av = -av
	}
	for _, b := range m.blocks {
		if av >= b.StartQuantized && av < b.EndQuantized {
			return b, true
		}
	}
	return Block{}, false
}

func (m *HuffmanMapS) blockForSymbol(k int64) (Block, bool) {
	ak := k
	if ak < 0 {
		ak = -ak
	}
	for _, b := range m.blocks {
		if ak >= b.StartHuffman && ak < b.EndHuffman {
			return b, true
		}
	}
	return Block{}, false
}
