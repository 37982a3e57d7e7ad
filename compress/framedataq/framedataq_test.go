package framedataq_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/go-test/deep"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/zzping/pinger/compress/framedataq"
	"github.com/zzping/pinger/compress/quantize"
	"github.com/zzping/pinger/framelog"
)

func TestComputePercentilesEmpty(t *testing.T) {
	got := framedataq.ComputePercentiles(nil)
	want := [7]int64{-1, -1, -1, -1, -1, -1, -1}
	if got != want {
		t.Errorf("ComputePercentiles(nil) = %v, want %v", got, want)
	}
}

func TestComputePercentilesExactMidpoints(t *testing.T) {
	v := []int64{0, 1, 2, 3, 4, 5, 6, 7, 8}
	got := framedataq.ComputePercentiles(v)
	want := [7]int64{0, 1, 2, 4, 6, 7, 8}
	if got != want {
		t.Errorf("ComputePercentiles(%v) = %v, want %v", v, got, want)
	}
}

func TestComputePercentilesInterpolates(t *testing.T) {
	v := []int64{10, 20, 30}
	got := framedataq.ComputePercentiles(v)
	if got[0] != 10 || got[6] != 30 || got[3] != 20 {
		t.Errorf("ComputePercentiles(%v) = %v, unexpected edges", v, got)
	}
}

func TestFromFrameDataKeyframe(t *testing.T) {
	ts := time.Date(2026, 1, 2, 3, 4, 5, 250_000_000, time.UTC)
	fd := framelog.FrameData{
		Timestamp:   ts,
		IsKeyframe:  true,
		Inflight:    2,
		LostPackets: 1,
		RecvUs:      []uint32{100, 200, 300},
	}
	d := framedataq.FromFrameData(fd)
	if d.Timestamp != ts.Unix() {
		t.Errorf("Timestamp = %d, want %d", d.Timestamp, ts.Unix())
	}
	if d.SubsecMs.IsDelta || d.SubsecMs.Value != 250 {
		t.Errorf("SubsecMs = %+v, want Abs(250)", d.SubsecMs)
	}
	if d.RecvUsLen != 3 {
		t.Errorf("RecvUsLen = %d, want 3", d.RecvUsLen)
	}
}

func TestEncodeDecodeStateRoundTrip(t *testing.T) {
	cfg := framedataq.FDCodecCfg{FullEncodeSecs: 60}
	enc := framedataq.NewFDCodecState(cfg)
	dec := framedataq.NewFDCodecState(cfg)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var records []framedataq.FrameDataQ
	for i := 0; i < 5; i++ {
		records = append(records, framedataq.FrameDataQ{
			Timestamp:   base.Add(time.Duration(i) * 2 * time.Second).Unix(),
			SubsecMs:    framedataq.Abs(0),
			Inflight:    float32(i),
			LostPackets: 0,
			RecvUsLen:   3,
			RecvUs:      [7]int64{100, 150, 200, 250, 300, 350, 400},
		})
	}

	for _, rec := range records {
		encoded := enc.Encode(rec)
		got := dec.Decode(encoded)
		if diff := deep.Equal(got, rec); diff != nil {
			t.Errorf("round trip mismatch: %v", diff)
		}
	}
}

func TestEncodeDeltaAfterFullEncodeSecs(t *testing.T) {
	cfg := framedataq.FDCodecCfg{FullEncodeSecs: 5}
	enc := framedataq.NewFDCodecState(cfg)

	first := framedataq.FrameDataQ{Timestamp: 1000, SubsecMs: framedataq.Abs(0), RecvUsLen: 0, RecvUs: [7]int64{-1, -1, -1, -1, -1, -1, -1}}
	second := framedataq.FrameDataQ{Timestamp: 1010, SubsecMs: framedataq.Abs(0), RecvUsLen: 0, RecvUs: [7]int64{-1, -1, -1, -1, -1, -1, -1}}

	enc.Encode(first)
	e2 := enc.Encode(second)
	if e2.Timestamp == nil {
		t.Fatalf("expected a full timestamp once the gap exceeds full_encode_secs, got a delta")
	}
	if *e2.Timestamp != 1010 {
		t.Errorf("Timestamp = %d, want 1010", *e2.Timestamp)
	}
}

func TestEncodeDecodeRecordRoundTrip(t *testing.T) {
	ts := int64(12345)
	d := framedataq.EncodedFrameDataQ{
		Timestamp:   &ts,
		SubsecMs:    framedataq.Abs(42),
		Inflight:    3,
		LostPackets: 1,
		RecvUsLen:   7,
		RecvUs:      [7]int64{100, 150, 200, 250, 300, 350, 400},
	}
	var buf bytes.Buffer
	if err := framedataq.EncodeRecord(&buf, d); err != nil {
		t.Fatalf("EncodeRecord: %v", err)
	}
	got, err := framedataq.DecodeRecord(&buf)
	if err != nil {
		t.Fatalf("DecodeRecord: %v", err)
	}
	if diff := deep.Equal(got, d); diff != nil {
		t.Errorf("record round trip mismatch: %v", diff)
	}
}

func TestEncodeDecodeRecordZeroInflightSentinel(t *testing.T) {
	d := framedataq.EncodedFrameDataQ{
		Timestamp:   nil,
		SubsecMs:    framedataq.Delta(5),
		Inflight:    0,
		LostPackets: 0,
		RecvUsLen:   0,
		RecvUs:      [7]int64{-1, -1, -1, -1, -1, -1, -1},
	}
	var buf bytes.Buffer
	if err := framedataq.EncodeRecord(&buf, d); err != nil {
		t.Fatalf("EncodeRecord: %v", err)
	}
	got, err := framedataq.DecodeRecord(&buf)
	if err != nil {
		t.Fatalf("DecodeRecord: %v", err)
	}
	if got.Inflight != 0 || got.LostPackets != 0 {
		t.Errorf("got inflight=%v lost=%v, want both 0", got.Inflight, got.LostPackets)
	}
}

func TestDecodeRecordEOF(t *testing.T) {
	_, err := framedataq.DecodeRecord(bytes.NewReader(nil))
	if err != framedataq.ErrEOF {
		t.Errorf("DecodeRecord(empty) = %v, want ErrEOF", err)
	}
}

func TestHeaderRoundTrip(t *testing.T) {
	llq := quantize.New(0.001)
	cfg := framedataq.FDCodecCfg{FullEncodeSecs: 30, RecvLLQ: &llq, DeltaEnc: true}

	b, err := framedataq.GetHeader(cfg)
	if err != nil {
		t.Fatalf("GetHeader: %v", err)
	}
	got, err := framedataq.TryFromHeader(bytes.NewReader(b))
	if err != nil {
		t.Fatalf("TryFromHeader: %v", err)
	}
	if got.FullEncodeSecs != cfg.FullEncodeSecs || got.DeltaEnc != cfg.DeltaEnc {
		t.Errorf("TryFromHeader() = %+v, want matching FullEncodeSecs/DeltaEnc from %+v", got, cfg)
	}
	if got.RecvLLQ == nil || got.RecvLLQ.GetPrecision() != llq.GetPrecision() {
		t.Errorf("TryFromHeader().RecvLLQ = %v, want precision %v", got.RecvLLQ, llq.GetPrecision())
	}
}

func TestHeaderNilLLQ(t *testing.T) {
	cfg := framedataq.FDCodecCfg{FullEncodeSecs: 60}
	b, err := framedataq.GetHeader(cfg)
	if err != nil {
		t.Fatalf("GetHeader: %v", err)
	}
	got, err := framedataq.TryFromHeader(bytes.NewReader(b))
	if err != nil {
		t.Fatalf("TryFromHeader: %v", err)
	}
	if got.RecvLLQ != nil {
		t.Errorf("TryFromHeader().RecvLLQ = %v, want nil", got.RecvLLQ)
	}
}

func TestHeaderWrongSchema(t *testing.T) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.EncodeMapLen(5)
	enc.EncodeString("schema")
	enc.EncodeString("SomethingElse")
	enc.EncodeString("version")
	enc.EncodeUint64(101)
	enc.EncodeString("full_encode_secs")
	enc.EncodeInt64(60)
	enc.EncodeString("recv_llq")
	enc.EncodeNil()
	enc.EncodeString("delta_enc")
	enc.EncodeBool(false)

	if _, err := framedataq.TryFromHeader(&buf); err == nil {
		t.Fatalf("TryFromHeader(wrong schema) succeeded, want an error")
	}
}

func TestHeaderTooNewVersion(t *testing.T) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.EncodeMapLen(5)
	enc.EncodeString("schema")
	enc.EncodeString("FDCodec")
	enc.EncodeString("version")
	enc.EncodeUint64(999)
	enc.EncodeString("full_encode_secs")
	enc.EncodeInt64(60)
	enc.EncodeString("recv_llq")
	enc.EncodeNil()
	enc.EncodeString("delta_enc")
	enc.EncodeBool(false)

	if _, err := framedataq.TryFromHeader(&buf); err == nil {
		t.Fatalf("TryFromHeader(future version) succeeded, want an error")
	}
}

func TestFDCodecIterRoundTrip(t *testing.T) {
	cfg := framedataq.FDCodecCfg{FullEncodeSecs: 60}
	var buf bytes.Buffer
	header, err := framedataq.GetHeader(cfg)
	if err != nil {
		t.Fatalf("GetHeader: %v", err)
	}
	buf.Write(header)

	enc := framedataq.NewFDCodecState(cfg)
	var want []framedataq.FrameDataQ
	for i := 0; i < 3; i++ {
		rec := framedataq.FrameDataQ{
			Timestamp:   1000 + int64(i),
			SubsecMs:    framedataq.Abs(0),
			Inflight:    float32(i),
			RecvUsLen:   7,
			RecvUs:      [7]int64{10, 20, 30, 40, 50, 60, 70},
		}
		want = append(want, rec)
		encoded := enc.Encode(rec)
		if err := framedataq.EncodeRecord(&buf, encoded); err != nil {
			t.Fatalf("EncodeRecord: %v", err)
		}
	}

	it, err := framedataq.NewFDCodecIter(&buf)
	if err != nil {
		t.Fatalf("NewFDCodecIter: %v", err)
	}
	var got []framedataq.FrameDataQ
	for {
		rec, ok, err := it.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if !ok {
			break
		}
		got = append(got, rec)
	}
	if diff := deep.Equal(got, want); diff != nil {
		t.Errorf("iterator round trip mismatch: %v", diff)
	}
}

func TestFoldVecAveragesAndRepercentilizes(t *testing.T) {
	a := framedataq.FrameDataQ{Timestamp: 1000, SubsecMs: framedataq.Abs(0), Inflight: 2, RecvUsLen: 2, RecvUs: [7]int64{10, 20, 30, 40, 50, 60, 70}}
	b := framedataq.FrameDataQ{Timestamp: 1002, SubsecMs: framedataq.Abs(0), Inflight: 4, RecvUsLen: 2, RecvUs: [7]int64{10, 20, 30, 40, 50, 60, 70}}
	folded := framedataq.FoldVec([]framedataq.FrameDataQ{a, b})
	if folded.Timestamp != 1001 {
		t.Errorf("Timestamp = %d, want 1001", folded.Timestamp)
	}
	if folded.Inflight <= 2 || folded.Inflight >= 4 {
		t.Errorf("Inflight = %v, want strictly between 2 and 4 (L2 norm average)", folded.Inflight)
	}
	if folded.RecvUs[0] != 10 || folded.RecvUs[6] != 70 {
		t.Errorf("RecvUs = %v, want edges 10/70", folded.RecvUs)
	}
}
