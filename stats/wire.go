package stats

import (
	"bytes"
	"math"

	"github.com/vmihailenco/msgpack/v5"
)

// saturateU16 and saturateU32 clamp v into [0, max] for an unsigned
// field of their bit width, per §4.7's "oversized counts saturate at
// the field width".
func saturateU16(v float64) uint16 {
	if v < 0 {
		return 0
	}
	if v > math.MaxUint16 {
		return math.MaxUint16
	}
	return uint16(v)
}

func saturateU32(v float64) uint32 {
	if v < 0 {
		return 0
	}
	if v > math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(v)
}

// EncodeDatagram serializes f as the tagged 5-tuple required by §6:
// (addr, inflight u16, avg_rtt_us u32, last_reply_age_ms u32,
// packet_loss_x100000 u32). packet_loss_x100000 is PacketLossPct*1000
// (S3: 1.25% -> 1250).
func EncodeDatagram(f Frame) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	if err := enc.EncodeArrayLen(5); err != nil {
		return nil, err
	}
	if err := enc.EncodeString(f.Addr); err != nil {
		return nil, err
	}
	if err := enc.EncodeUint16(saturateU16(float64(f.InflightCount))); err != nil {
		return nil, err
	}
	if err := enc.EncodeUint32(saturateU32(float64(f.AvgRTT.Microseconds()))); err != nil {
		return nil, err
	}
	if err := enc.EncodeUint32(saturateU32(float64(f.LastReplyAge.Milliseconds()))); err != nil {
		return nil, err
	}
	if err := enc.EncodeUint32(saturateU32(f.PacketLossPct * 1000)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Datagram is the receiver-side decode of EncodeDatagram's output.
type Datagram struct {
	Addr               string
	InflightCount      uint16
	AvgRTTMicros       uint32
	LastReplyAgeMillis uint32
	PacketLossX100000  uint32
}

// DecodeDatagram reverses EncodeDatagram.
func DecodeDatagram(b []byte) (Datagram, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(b))
	n, err := dec.DecodeArrayLen()
	if err != nil {
		return Datagram{}, err
	}
	if n != 5 {
		return Datagram{}, &WireLengthError{Got: n}
	}
	var d Datagram
	if d.Addr, err = dec.DecodeString(); err != nil {
		return Datagram{}, err
	}
	if d.InflightCount, err = dec.DecodeUint16(); err != nil {
		return Datagram{}, err
	}
	if d.AvgRTTMicros, err = dec.DecodeUint32(); err != nil {
		return Datagram{}, err
	}
	if d.LastReplyAgeMillis, err = dec.DecodeUint32(); err != nil {
		return Datagram{}, err
	}
	if d.PacketLossX100000, err = dec.DecodeUint32(); err != nil {
		return Datagram{}, err
	}
	return d, nil
}

// WireLengthError reports an unexpected array length on decode.
type WireLengthError struct {
	Got int
}

func (e *WireLengthError) Error() string {
	return "stats: expected a 5-element datagram array"
}
