// Package huffman builds a static Huffman code from explicit
// (symbol, weight) pairs and encodes/decodes int64 symbols against
// it, bit by bit. The original pipeline reached for a third-party
// crate for exactly this; no equivalent Go library surfaced anywhere
// in the retrieved reference pack, so this is a from-scratch Huffman
// tree over container/heap, with each code read off its leaf's path.
package huffman

import (
	"container/heap"
	"fmt"
	"sort"
)

type node struct {
	weight      uint64
	symbol      int64
	isLeaf      bool
	left, right *node
}

type nodeHeap []*node

func (h nodeHeap) Len() int { return len(h) }
func (h nodeHeap) Less(i, j int) bool {
	if h[i].weight != h[j].weight {
		return h[i].weight < h[j].weight
	}
	// Break ties deterministically so the same weight table always
	// produces the same tree.
	return h[i].symbol < h[j].symbol
}
func (h nodeHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *nodeHeap) Push(x interface{}) { *h = append(*h, x.(*node)) }
func (h *nodeHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

type code struct {
	bits uint64
	len  uint8
}

// Code is a static Huffman code over a fixed symbol set.
type Code struct {
	root  *node
	codes map[int64]code
}

// Build constructs a Huffman code from an explicit symbol -> weight
// table. Symbols with zero weight are dropped (they would never be
// encoded and only bloat the tree). weights must contain at least one
// entry with positive weight.
func Build(weights map[int64]uint64) *Code {
	h := make(nodeHeap, 0, len(weights))
	for sym, w := range weights {
		if w == 0 {
			continue
		}
		h = append(h, &node{weight: w, symbol: sym, isLeaf: true})
	}
	if len(h) == 0 {
		panic("huffman: no symbols with positive weight")
	}
	// Seed the heap in symbol order rather than map iteration order, so
	// that ties between equal-weight internal nodes resolve the same
	// way on every build of the same table.
	sort.Slice(h, func(i, j int) bool { return h[i].symbol < h[j].symbol })
	heap.Init(&h)
	for h.Len() > 1 {
		a := heap.Pop(&h).(*node)
		b := heap.Pop(&h).(*node)
		heap.Push(&h, &node{weight: a.weight + b.weight, left: a, right: b})
	}
	root := h[0]
	codes := make(map[int64]code, len(weights))
	if root.isLeaf {
		// A single-symbol alphabet still needs a (degenerate) one-bit
		// code to round-trip through the bit writer.
		codes[root.symbol] = code{bits: 0, len: 1}
	} else {
		assignCodes(root, 0, 0, codes)
	}
	return &Code{root: root, codes: codes}
}

func assignCodes(n *node, bits uint64, depth uint8, out map[int64]code) {
	if n.isLeaf {
		out[n.symbol] = code{bits: bits, len: depth}
		return
	}
	assignCodes(n.left, bits<<1, depth+1, out)
	assignCodes(n.right, bits<<1|1, depth+1, out)
}

// Encode appends symbol's code to w.
func (c *Code) Encode(w *BitWriter, symbol int64) error {
	cd, ok := c.codes[symbol]
	if !ok {
		return fmt.Errorf("huffman: symbol %d not in code table", symbol)
	}
	for i := int(cd.len) - 1; i >= 0; i-- {
		w.WriteBit((cd.bits >> uint(i)) & 1)
	}
	return nil
}

// Decode reads one symbol's code from r by walking the tree bit by
// bit.
func (c *Code) Decode(r *BitReader) (int64, error) {
	n := c.root
	if n.isLeaf {
		if _, err := r.ReadBit(); err != nil {
			return 0, err
		}
		return n.symbol, nil
	}
	for !n.isLeaf {
		b, err := r.ReadBit()
		if err != nil {
			return 0, err
		}
		if b == 0 {
			n = n.left
		} else {
			n = n.right
		}
	}
	return n.symbol, nil
}
