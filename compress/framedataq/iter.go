package framedataq

import (
	"errors"
	"io"
)

// FDCodecIter streams decoded FrameDataQ records from r: it reads the
// file header once on construction, then decodes one record per Next
// call until the stream is exhausted.
type FDCodecIter struct {
	r     io.Reader
	state *FDCodecState
	err   error
}

// NewFDCodecIter reads r's header and returns an iterator over its
// records.
func NewFDCodecIter(r io.Reader) (*FDCodecIter, error) {
	state, err := NewFDCodecStateFromHeader(r)
	if err != nil {
		return nil, err
	}
	return &FDCodecIter{r: r, state: state}, nil
}

// Next decodes the next record. It returns ok=false, err=nil at a
// clean end of stream, and ok=false with a non-nil err on any other
// failure (a malformed record is never silently swallowed).
func (it *FDCodecIter) Next() (rec FrameDataQ, ok bool, err error) {
	if it.err != nil {
		return FrameDataQ{}, false, it.err
	}
	enc, err := DecodeRecord(it.r)
	if err != nil {
		if errors.Is(err, ErrEOF) {
			return FrameDataQ{}, false, nil
		}
		it.err = err
		return FrameDataQ{}, false, err
	}
	return it.state.Decode(enc), true, nil
}

// FoldIter downsamples an FDCodecIter-like source using a sliding
// window: every Next call consumes step records from src and emits
// one FoldVec over the most recent window records (fewer once src
// runs dry), the same semantics as the original's ring-buffer
// windowing. window must be >= step.
type FoldIter struct {
	next   func() (FrameDataQ, bool, error)
	window int
	step   int
	buf    []FrameDataQ // most recent first
}

// NewFoldIter wraps next (typically an FDCodecIter.Next method value)
// with windowed folding.
func NewFoldIter(next func() (FrameDataQ, bool, error), window, step int) *FoldIter {
	if window < step {
		panic("framedataq: FoldIter window must be >= step")
	}
	return &FoldIter{next: next, window: window, step: step}
}

// Next returns the next folded window, or ok=false when the
// underlying source and buffer are both exhausted.
func (f *FoldIter) Next() (FrameDataQ, bool, error) {
	if f.window == 1 && f.step == 1 {
		rec, ok, err := f.next()
		if err != nil || !ok {
			return FrameDataQ{}, false, err
		}
		return rec, true, nil
	}

	var fresh []FrameDataQ
	for i := 0; i < f.step; i++ {
		rec, ok, err := f.next()
		if err != nil {
			return FrameDataQ{}, false, err
		}
		if !ok {
			break
		}
		fresh = append(fresh, rec)
	}

	var toRemove int
	if len(fresh) == 0 {
		toRemove = f.step
	} else {
		toRemove = len(f.buf) + len(fresh) - f.window
	}
	for i := 0; i < toRemove && len(f.buf) > 0; i++ {
		f.buf = f.buf[:len(f.buf)-1]
	}
	// push new items to the front, most-recent-first, mirroring the
	// original's VecDeque push_front.
	for i := len(fresh) - 1; i >= 0; i-- {
		f.buf = append([]FrameDataQ{fresh[i]}, f.buf...)
	}

	if len(f.buf) == 0 {
		return FrameDataQ{}, false, nil
	}
	return FoldVec(f.buf), true, nil
}
