// Package framelog implements C9: the per-destination, per-refresh
// FrameData record written to the on-disk log, and its msgpack
// encode/decode. File naming, rotation, and directory layout are out
// of scope (§1) — this package only ever appends records to an
// io.Writer handed to it.
package framelog

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/vmihailenco/msgpack/v5/msgpcode"
)

// Keyframe is how long may elapse before a record must carry a full
// wall-clock timestamp instead of an elapsed-since-keyframe duration,
// per §4.8.
const Keyframe = 15 * time.Second

// FrameData is one destination's per-refresh record, per §3/§4.8.
type FrameData struct {
	// Timestamp is set for a keyframe record; Elapsed is set otherwise.
	// Exactly one of the two applies, mirroring the tagged encoding.
	Timestamp time.Time
	Elapsed   time.Duration
	IsKeyframe bool

	Inflight    int
	LostPackets int
	RecvUs      []uint32 // sorted ascending
}

// Encode appends fd's wire representation to w: a tagged timestamp
// (RFC3339-micros string + zero u32, or elapsed-microseconds u32),
// then inflight u16, lost_packets u16, then a length-prefixed array
// of u32 RTT samples.
func Encode(w io.Writer, fd FrameData) error {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)

	if fd.IsKeyframe {
		if err := enc.EncodeString(fd.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z07:00")); err != nil {
			return err
		}
		if err := enc.EncodeUint32(0); err != nil {
			return err
		}
	} else {
		if err := enc.EncodeUint32(uint32(fd.Elapsed.Microseconds())); err != nil {
			return err
		}
	}
	if err := enc.EncodeUint16(uint16(fd.Inflight)); err != nil {
		return err
	}
	if err := enc.EncodeUint16(uint16(fd.LostPackets)); err != nil {
		return err
	}
	if err := enc.EncodeArrayLen(len(fd.RecvUs)); err != nil {
		return err
	}
	for _, v := range fd.RecvUs {
		if err := enc.EncodeUint32(v); err != nil {
			return err
		}
	}
	_, err := w.Write(buf.Bytes())
	if err != nil {
		return &LogWriteError{Err: err}
	}
	return nil
}

// Decode reads one record from r, the exact inverse of Encode. A
// keyframe record (string timestamp) must be followed by a zero u32;
// a non-zero value there is malformed input.
func Decode(r io.Reader) (FrameData, error) {
	dec := msgpack.NewDecoder(r)
	code, err := dec.PeekCode()
	if err != nil {
		return FrameData{}, err
	}

	var fd FrameData
	if msgpcode.IsString(code) {
		s, err := dec.DecodeString()
		if err != nil {
			return FrameData{}, err
		}
		ts, err := time.Parse("2006-01-02T15:04:05.000000Z07:00", s)
		if err != nil {
			return FrameData{}, fmt.Errorf("framelog: bad timestamp %q: %w", s, err)
		}
		zero, err := dec.DecodeUint32()
		if err != nil {
			return FrameData{}, err
		}
		if zero != 0 {
			return FrameData{}, fmt.Errorf("framelog: expected zero elapsed after a keyframe timestamp, got %d", zero)
		}
		fd.Timestamp = ts
		fd.IsKeyframe = true
	} else {
		elapsedUs, err := dec.DecodeUint32()
		if err != nil {
			return FrameData{}, err
		}
		fd.Elapsed = time.Duration(elapsedUs) * time.Microsecond
	}

	inflight, err := dec.DecodeUint16()
	if err != nil {
		return FrameData{}, err
	}
	lost, err := dec.DecodeUint16()
	if err != nil {
		return FrameData{}, err
	}
	fd.Inflight = int(inflight)
	fd.LostPackets = int(lost)

	n, err := dec.DecodeArrayLen()
	if err != nil {
		return FrameData{}, err
	}
	fd.RecvUs = make([]uint32, n)
	for i := 0; i < n; i++ {
		v, err := dec.DecodeUint32()
		if err != nil {
			return FrameData{}, err
		}
		fd.RecvUs[i] = v
	}
	return fd, nil
}

// LogWriteError wraps a failed append to the on-disk log, per §7:
// logged and swallowed by the caller, never fatal to the pipeline.
type LogWriteError struct {
	Err error
}

func (e *LogWriteError) Error() string { return fmt.Sprintf("framelog: write failed: %v", e.Err) }
func (e *LogWriteError) Unwrap() error { return e.Err }
