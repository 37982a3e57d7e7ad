package framedataq

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/vmihailenco/msgpack/v5/msgpcode"

	"github.com/zzping/pinger/compress/quantize"
)

// GetHeader encodes cfg as a self-describing 5-field file header:
// schema, version, full_encode_secs, recv_llq (the quantizer's
// precision, or nil), and delta_enc.
func GetHeader(cfg FDCodecCfg) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)

	if err := enc.EncodeMapLen(5); err != nil {
		return nil, err
	}
	pairs := []struct {
		key string
		enc func() error
	}{
		{"schema", func() error { return enc.EncodeString(headerSchema) }},
		{"version", func() error { return enc.EncodeUint64(headerVersion) }},
		{"full_encode_secs", func() error { return enc.EncodeInt64(cfg.FullEncodeSecs) }},
		{"recv_llq", func() error {
			if cfg.RecvLLQ != nil {
				return enc.EncodeFloat64(cfg.RecvLLQ.GetPrecision())
			}
			return enc.EncodeNil()
		}},
		{"delta_enc", func() error { return enc.EncodeBool(cfg.DeltaEnc) }},
	}
	for _, p := range pairs {
		if err := enc.EncodeString(p.key); err != nil {
			return nil, err
		}
		if err := p.enc(); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// TryFromHeader decodes a file header, rejecting a schema mismatch or
// a version newer than this package understands.
func TryFromHeader(r io.Reader) (FDCodecCfg, error) {
	dec := msgpack.NewDecoder(r)
	n, err := dec.DecodeMapLen()
	if err != nil {
		return FDCodecCfg{}, err
	}

	fields := make(map[string]interface{}, n)
	for i := 0; i < n; i++ {
		key, err := dec.DecodeString()
		if err != nil {
			return FDCodecCfg{}, err
		}
		switch key {
		case "schema":
			v, err := dec.DecodeString()
			if err != nil {
				return FDCodecCfg{}, err
			}
			fields[key] = v
		case "version":
			v, err := dec.DecodeUint64()
			if err != nil {
				return FDCodecCfg{}, err
			}
			fields[key] = v
		case "full_encode_secs":
			v, err := dec.DecodeInt64()
			if err != nil {
				return FDCodecCfg{}, err
			}
			fields[key] = v
		case "recv_llq":
			code, err := dec.PeekCode()
			if err != nil {
				return FDCodecCfg{}, err
			}
			if code == msgpcode.Nil {
				if err := dec.DecodeNil(); err != nil {
					return FDCodecCfg{}, err
				}
				fields[key] = nil
			} else {
				v, err := dec.DecodeFloat64()
				if err != nil {
					return FDCodecCfg{}, err
				}
				fields[key] = v
			}
		case "delta_enc":
			v, err := dec.DecodeBool()
			if err != nil {
				return FDCodecCfg{}, err
			}
			fields[key] = v
		default:
			if err := dec.Skip(); err != nil {
				return FDCodecCfg{}, err
			}
		}
	}

	schema, ok := fields["schema"].(string)
	if !ok || schema != headerSchema {
		return FDCodecCfg{}, &HeaderError{Msg: "incompatible header, wrong file format"}
	}
	version, ok := fields["version"].(uint64)
	if !ok {
		return FDCodecCfg{}, &HeaderError{Msg: "header field missing: version"}
	}
	if version > headerVersion {
		return FDCodecCfg{}, &HeaderError{Msg: "file format has a newer, unsupported version"}
	}
	fullEncodeSecs, ok := fields["full_encode_secs"].(int64)
	if !ok {
		return FDCodecCfg{}, &HeaderError{Msg: "header field missing: full_encode_secs"}
	}
	deltaEnc, ok := fields["delta_enc"].(bool)
	if !ok {
		return FDCodecCfg{}, &HeaderError{Msg: "header field missing: delta_enc"}
	}

	var llq *quantize.LinearLogQuantizer
	if v, ok := fields["recv_llq"]; ok && v != nil {
		precision, ok := v.(float64)
		if !ok {
			return FDCodecCfg{}, &HeaderError{Msg: "recv_llq expected to be nil or float"}
		}
		q := quantize.New(precision)
		llq = &q
	}

	return FDCodecCfg{
		FullEncodeSecs: fullEncodeSecs,
		RecvLLQ:        llq,
		DeltaEnc:       deltaEnc,
	}, nil
}

// NewFDCodecStateFromHeader reads and decodes a file header from r,
// returning an FDCodecState configured from it.
func NewFDCodecStateFromHeader(r io.Reader) (*FDCodecState, error) {
	cfg, err := TryFromHeader(r)
	if err != nil {
		return nil, err
	}
	return NewFDCodecState(cfg), nil
}

// ErrEOF is returned by DecodeRecord (and surfaced as a clean end of
// stream by FDCodecIter) when the reader has no more records.
var ErrEOF = errors.New("framedataq: end of file")

// EncodeRecord appends d's wire representation to w: a tagged
// timestamp (uint or nil + subsec_ms uint), an inflight/lost_packets
// pair (or a single -1 sentinel when both are zero), recv_us_len, and
// — if recv_us_len > 0 — a 7-element array of successive differences
// over RecvUs.
func EncodeRecord(w io.Writer, d EncodedFrameDataQ) error {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)

	if d.Timestamp != nil {
		if err := enc.EncodeInt64(*d.Timestamp); err != nil {
			return err
		}
	} else {
		if err := enc.EncodeNil(); err != nil {
			return err
		}
	}
	if err := enc.EncodeUint32(d.SubsecMs.Value); err != nil {
		return err
	}

	inflight := roundNonNeg(d.Inflight)
	lost := roundNonNeg(d.LostPackets)
	if inflight+lost > 0 {
		if err := enc.EncodeUint64(uint64(inflight)); err != nil {
			return err
		}
		if err := enc.EncodeUint64(uint64(lost)); err != nil {
			return err
		}
	} else {
		if err := enc.EncodeInt64(-1); err != nil {
			return err
		}
	}

	if err := enc.EncodeUint64(uint64(d.RecvUsLen)); err != nil {
		return err
	}
	if d.RecvUsLen > 0 {
		if err := enc.EncodeArrayLen(7); err != nil {
			return err
		}
		var prev int64
		for _, v := range d.RecvUs {
			dv := v - prev
			prev = v
			if err := enc.EncodeInt64(dv); err != nil {
				return err
			}
		}
	}

	_, err := w.Write(buf.Bytes())
	return err
}

func roundNonNeg(v float32) int64 {
	if v < 0 {
		return 0
	}
	return int64(v + 0.5)
}

// DecodeRecord reads one record from r, the exact inverse of
// EncodeRecord. It returns ErrEOF when r has no more data.
func DecodeRecord(r io.Reader) (EncodedFrameDataQ, error) {
	dec := msgpack.NewDecoder(r)

	code, err := dec.PeekCode()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return EncodedFrameDataQ{}, ErrEOF
		}
		return EncodedFrameDataQ{}, err
	}

	var d EncodedFrameDataQ
	if code == msgpcode.Nil {
		if err := dec.DecodeNil(); err != nil {
			return EncodedFrameDataQ{}, err
		}
		d.Timestamp = nil
	} else {
		ts, err := dec.DecodeInt64()
		if err != nil {
			return EncodedFrameDataQ{}, err
		}
		d.Timestamp = &ts
	}

	subsecMsV, err := dec.DecodeUint32()
	if err != nil {
		return EncodedFrameDataQ{}, err
	}
	if d.Timestamp != nil {
		d.SubsecMs = Abs(subsecMsV)
	} else {
		d.SubsecMs = Delta(subsecMsV)
	}

	ifl, err := dec.DecodeInt64()
	if err != nil {
		return EncodedFrameDataQ{}, err
	}
	if ifl == -1 {
		d.Inflight = 0
		d.LostPackets = 0
	} else {
		d.Inflight = float32(ifl)
		lost, err := dec.DecodeInt64()
		if err != nil {
			return EncodedFrameDataQ{}, err
		}
		d.LostPackets = float32(lost)
	}

	recvUsLen, err := dec.DecodeUint64()
	if err != nil {
		return EncodedFrameDataQ{}, err
	}
	d.RecvUsLen = int(recvUsLen)
	d.RecvUs = [7]int64{-1, -1, -1, -1, -1, -1, -1}
	if d.RecvUsLen > 0 {
		n, err := dec.DecodeArrayLen()
		if err != nil {
			return EncodedFrameDataQ{}, err
		}
		if n != 7 {
			return EncodedFrameDataQ{}, fmt.Errorf("framedataq: recv_us array has %d elements, want 7", n)
		}
		var prev int64
		for i := 0; i < n; i++ {
			dv, err := dec.DecodeInt64()
			if err != nil {
				return EncodedFrameDataQ{}, err
			}
			v := prev + dv
			d.RecvUs[i] = v
			prev = v
		}
	}
	return d, nil
}
