package quantize_test

import (
	"testing"

	"github.com/zzping/pinger/compress/quantize"
)

func TestIdentityBelowThreshold(t *testing.T) {
	q := quantize.New(0.001) // threshold = 1000
	for _, v := range []int64{0, 1, -1, 500, 1000, -1000} {
		if got := q.Encode(v); got != v {
			t.Errorf("Encode(%d) = %d, want %d (identity region)", v, got, v)
		}
		if got := q.Decode(v); got != v {
			t.Errorf("Decode(%d) = %d, want %d (identity region)", v, got, v)
		}
	}
}

func TestRoundTripBoundedRelativeError(t *testing.T) {
	q := quantize.New(0.001)
	for _, v := range []int64{2000, 10000, 1000000, 30000000} {
		enc := q.Encode(v)
		dec := q.Decode(enc)
		diff := dec - v
		if diff < 0 {
			diff = -diff
		}
		maxErr := int64(float64(v)*0.001) + 1
		if diff > maxErr {
			t.Errorf("v=%d encode/decode round trip off by %d, want <= %d", v, diff, maxErr)
		}
	}
}

func TestBucketSizeGrowsWithMagnitude(t *testing.T) {
	q := quantize.New(0.001)
	small := q.BucketSize(q.Encode(1500))
	large := q.BucketSize(q.Encode(20000000))
	if large < small {
		t.Errorf("BucketSize did not grow with magnitude: small=%d large=%d", small, large)
	}
}
