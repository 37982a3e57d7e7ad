// Package framedataq implements C10g: the percentile-folded,
// keyframe/delta-encoded record format written to a compressed log
// file, one layer above the raw per-refresh framelog.FrameData
// record.
package framedataq

import (
	"fmt"

	"github.com/zzping/pinger/compress/quantize"
	"github.com/zzping/pinger/framelog"
)

// SubSecType is a tagged sub-second timestamp component: either an
// absolute millisecond-of-second value, or a delta against the
// previous record's value. Go has no phantom-typed generic here, so
// the tag travels with the value.
type SubSecType struct {
	IsDelta bool
	Value   uint32
}

// Abs builds an absolute SubSecType.
func Abs(v uint32) SubSecType { return SubSecType{Value: v} }

// Delta builds a delta SubSecType.
func Delta(v uint32) SubSecType { return SubSecType{IsDelta: true, Value: v} }

func (s SubSecType) unwrapAbsOrAdd(reference uint32) uint32 {
	if s.IsDelta {
		return s.Value + reference
	}
	return s.Value
}

// FrameDataQ is a fully-resolved (not delta-encoded) percentile
// record: one FrameData's worth of samples folded into the 7
// percentile buckets defined by ComputePercentiles.
type FrameDataQ struct {
	// Timestamp is the Unix-seconds part of the record's time. It is
	// always present on a Complete record; EncodedFrameDataQ uses a
	// pointer so a delta-encoded record can omit it.
	Timestamp   int64
	SubsecMs    SubSecType
	Inflight    float32
	LostPackets float32
	RecvUsLen   int
	RecvUs      [7]int64
}

// EncodedFrameDataQ is a FrameDataQ after FDCodecState has applied
// keyframe/delta timestamp encoding and (optionally) LinearLogQuantizer
// + zero-referenced delta encoding to RecvUs. Timestamp is nil for a
// delta record.
type EncodedFrameDataQ struct {
	Timestamp   *int64
	SubsecMs    SubSecType
	Inflight    float32
	LostPackets float32
	RecvUsLen   int
	RecvUs      [7]int64
}

// FromFrameData builds a FrameDataQ from one framelog.FrameData
// record. RecvUs must not yet be percentile-folded; FromFrameData
// sorts a copy and calls ComputePercentiles.
func FromFrameData(fd framelog.FrameData) FrameDataQ {
	var ts int64
	var subsecMs uint32
	if fd.IsKeyframe {
		t := fd.Timestamp.UTC()
		ts = t.Unix()
		subsecMs = uint32(t.Nanosecond() / 1_000_000)
	} else {
		subsecMs = uint32(fd.Elapsed.Milliseconds())
	}
	sorted := append([]uint32(nil), fd.RecvUs...)
	recvUs := make([]int64, len(sorted))
	for i, v := range sorted {
		recvUs[i] = int64(v)
	}
	sortInt64s(recvUs)
	return FrameDataQ{
		Timestamp:   ts,
		SubsecMs:    Abs(subsecMs),
		Inflight:    float32(fd.Inflight),
		LostPackets: float32(fd.LostPackets),
		RecvUsLen:   len(fd.RecvUs),
		RecvUs:      ComputePercentiles(recvUs),
	}
}

// ComputePercentiles buckets v (which MUST already be sorted ascending
// and non-negative) into the 7 percentiles 0, 12.5, 25, 50, 75, 87.5,
// 100, floor/ceil-interpolating between samples. An empty v yields all
// -1 sentinels.
func ComputePercentiles(v []int64) [7]int64 {
	ret := [7]int64{-1, -1, -1, -1, -1, -1, -1}
	if len(v) == 0 {
		return ret
	}
	percentiles := [7]float64{0, 0.125, 0.25, 0.5, 0.75, 0.875, 1.0}
	vmax := float64(len(v) - 1)
	for i, p := range percentiles {
		pos := p * vmax
		pl := int(pos)
		pr := pl
		if frac := pos - float64(pl); frac > 0 {
			pr = pl + 1
		}
		if pl == pr {
			ret[i] = v[pl]
		} else {
			fr := pos - float64(pl)
			fl := 1.0 - fr
			val := float64(v[pl])*fl + float64(v[pr])*fr
			ret[i] = int64(roundHalfAwayFromZero(val))
		}
	}
	return ret
}

func roundHalfAwayFromZero(v float64) float64 {
	if v >= 0 {
		return float64(int64(v + 0.5))
	}
	return float64(int64(v - 0.5))
}

// timestampMs returns the record's time as milliseconds since the
// epoch.
func (d FrameDataQ) timestampMs() int64 {
	return d.Timestamp*1000 + int64(d.SubsecMs.Value)
}

// FoldVec downsamples a run of FrameDataQ records into one: the mean
// timestamp, an L2-norm average of inflight (matching the original's
// choice to weight larger in-flight counts more heavily), a mean of
// lost_packets and recv_us_len, and a fresh percentile fold over every
// valid sample in the run.
func FoldVec(data []FrameDataQ) FrameDataQ {
	n := len(data)
	if n == 0 {
		panic("framedataq: FoldVec of an empty slice")
	}
	var sumTsMs int64
	var sumInflightSq float64
	var sumLost float32
	var sumLen int
	for _, d := range data {
		sumTsMs += d.timestampMs()
		sumInflightSq += float64(d.Inflight) * float64(d.Inflight)
		sumLost += d.LostPackets
		sumLen += d.RecvUsLen
	}
	meanTsMs := sumTsMs / int64(n)
	inflight := float32(sqrt(sumInflightSq / float64(n)))
	lostPackets := sumLost / float32(n)
	recvUsLen := sumLen / n

	var samples []int64
	for _, d := range data {
		for _, v := range d.RecvUs {
			if v >= 0 {
				samples = append(samples, v)
			}
		}
	}
	sortInt64s(samples)

	return FrameDataQ{
		Timestamp:   meanTsMs / 1000,
		SubsecMs:    Abs(uint32(meanTsMs % 1000)),
		Inflight:    inflight,
		LostPackets: lostPackets,
		RecvUsLen:   recvUsLen,
		RecvUs:      ComputePercentiles(samples),
	}
}

func sqrt(v float64) float64 {
	if v <= 0 {
		return 0
	}
	x := v
	for i := 0; i < 40; i++ {
		x = 0.5 * (x + v/x)
	}
	return x
}

func sortInt64s(s []int64) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

// FDCodecCfg parameterizes FDCodecState and is recorded verbatim in
// the file header (§ GetHeader).
type FDCodecCfg struct {
	// FullEncodeSecs bounds how long a delta-encoded timestamp may run
	// before a record must carry a full absolute one again.
	FullEncodeSecs int64
	// RecvLLQ, if set, quantizes RecvUs and subtracts a reference value
	// from every quantized sample.
	RecvLLQ *quantize.LinearLogQuantizer
	// DeltaEnc makes that reference the previous record's quantized
	// RecvUs[0] instead of zero. Without RecvLLQ it does not change the
	// encoded values.
	DeltaEnc bool
}

// DefaultFDCodecCfg mirrors the original's Default impl.
func DefaultFDCodecCfg() FDCodecCfg {
	return FDCodecCfg{FullEncodeSecs: 60}
}

// HeaderError reports a malformed or incompatible FDCodec file header.
type HeaderError struct {
	Msg string
}

func (e *HeaderError) Error() string { return fmt.Sprintf("framedataq: %s", e.Msg) }

// FDCodecState is the keyframe/delta encoder and decoder state
// machine: it must see every record in stream order via Encode/Decode
// (or Push, if the record's wire form was produced externally).
type FDCodecState struct {
	cfg FDCodecCfg

	lastTimestamp    int64
	haveLastTimestamp bool
	lastSubsecMs     uint32
	lastRecvQ0       int64
}

const headerSchema = "FDCodec"
const headerVersion = 101

// NewFDCodecState returns a fresh encoder/decoder state for cfg.
func NewFDCodecState(cfg FDCodecCfg) *FDCodecState {
	return &FDCodecState{cfg: cfg}
}

// Cfg returns the configuration the state was built with.
func (s *FDCodecState) Cfg() FDCodecCfg { return s.cfg }

// Push folds d's timestamp and (if delta encoding is enabled) its
// zero-reference recv_us sample into the running state, without
// encoding or decoding anything. Encode/Decode call this internally;
// callers only need it when reconstructing state from records whose
// wire form was produced or consumed elsewhere.
func (s *FDCodecState) Push(d FrameDataQ) {
	s.lastTimestamp = d.Timestamp
	s.haveLastTimestamp = true
	if d.SubsecMs.IsDelta {
		s.lastSubsecMs += d.SubsecMs.Value
	} else {
		s.lastSubsecMs = d.SubsecMs.Value
	}
	if s.cfg.DeltaEnc {
		if s.cfg.RecvLLQ != nil {
			s.lastRecvQ0 = s.cfg.RecvLLQ.Encode(d.RecvUs[0])
		} else {
			s.lastRecvQ0 = d.RecvUs[0]
		}
	}
}

// PeekEncode computes d's encoded form without mutating state.
func (s *FDCodecState) PeekEncode(d FrameDataQ) EncodedFrameDataQ {
	dTs := d.Timestamp
	var subsecMs uint32
	if d.SubsecMs.IsDelta {
		subsecMs = s.lastSubsecMs + d.SubsecMs.Value
	} else {
		subsecMs = d.SubsecMs.Value
	}
	subsecMsPart := subsecMs % 1000
	dTs += int64((subsecMs - subsecMsPart) / 1000)

	var extraSubsecs uint32
	haveExtra := false
	if s.haveLastTimestamp {
		if dTs-s.lastTimestamp < s.cfg.FullEncodeSecs && dTs >= s.lastTimestamp {
			extraSubsecs = uint32((dTs - s.lastTimestamp) * 1000)
			haveExtra = true
		}
	}

	out := EncodedFrameDataQ{
		Inflight:    d.Inflight,
		LostPackets: d.LostPackets,
		RecvUsLen:   d.RecvUsLen,
		RecvUs:      d.RecvUs,
	}
	if haveExtra {
		out.Timestamp = nil
		out.SubsecMs = Delta(extraSubsecs + subsecMsPart - s.lastSubsecMs)
	} else {
		ts := dTs
		out.Timestamp = &ts
		out.SubsecMs = Abs(subsecMsPart)
	}

	if s.cfg.RecvLLQ != nil && d.RecvUsLen > 0 {
		for i, v := range out.RecvUs {
			out.RecvUs[i] = s.cfg.RecvLLQ.Encode(v) - s.lastRecvQ0
		}
	}
	return out
}

// Encode computes d's encoded form and advances state as if d had
// just been pushed.
func (s *FDCodecState) Encode(d FrameDataQ) EncodedFrameDataQ {
	enc := s.PeekEncode(d)
	s.Push(d)
	return enc
}

// PeekDecode reverses PeekEncode without mutating state.
func (s *FDCodecState) PeekDecode(d EncodedFrameDataQ) FrameDataQ {
	var ts int64
	if d.Timestamp != nil {
		ts = *d.Timestamp
	} else if s.haveLastTimestamp {
		ts = s.lastTimestamp
	} else {
		panic("framedataq: tried to decode a delta timestamp without a reference")
	}
	subsecMs := d.SubsecMs.unwrapAbsOrAdd(s.lastSubsecMs)
	subsecMsPart := subsecMs % 1000
	ts += int64((subsecMs - subsecMsPart) / 1000)

	out := FrameDataQ{
		Timestamp:   ts,
		SubsecMs:    Abs(subsecMsPart),
		Inflight:    d.Inflight,
		LostPackets: d.LostPackets,
		RecvUsLen:   d.RecvUsLen,
		RecvUs:      d.RecvUs,
	}
	if s.cfg.RecvLLQ != nil && d.RecvUsLen > 0 {
		for i, v := range out.RecvUs {
			out.RecvUs[i] = s.cfg.RecvLLQ.Decode(v + s.lastRecvQ0)
		}
	}
	return out
}

// Decode reverses Encode: it decodes d and advances state as if the
// decoded record had just been pushed.
func (s *FDCodecState) Decode(d EncodedFrameDataQ) FrameDataQ {
	out := s.PeekDecode(d)
	s.Push(out)
	return out
}
