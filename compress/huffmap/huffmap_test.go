package huffmap_test

import (
	"testing"

	"github.com/zzping/pinger/compress/correct"
	"github.com/zzping/pinger/compress/huffmap"
)

func TestToFromKeyRoundTrip(t *testing.T) {
	f := huffmap.NewSech2(0.001, 1000000)
	m := huffmap.New(f)

	for _, v := range []int64{0, 1, -1, 15, -15, 100, -100, 1000, -1000, 4000} {
		d := correct.DiffValue{Type: correct.Corrected, Value: v}
		k := m.ToKey(d)
		got := m.FromKey(k)
		if got != d {
			t.Errorf("ToKey/FromKey(%d) round trip = %+v, want %+v", v, got, d)
		}
	}
}

func TestRawRoundTrip(t *testing.T) {
	f := huffmap.NewSech2(0.001, 1000000)
	m := huffmap.New(f)
	d := correct.DiffValue{Type: correct.Raw, Value: 123456}
	k := m.ToKey(d)
	if k.Type != correct.Raw {
		t.Fatalf("ToKey(Raw) produced a Corrected key")
	}
	if got := m.FromKey(k); got != d {
		t.Errorf("FromKey(ToKey(Raw(123456))) = %+v, want %+v", got, d)
	}
}

func TestExtraBitsForSymbol(t *testing.T) {
	f := huffmap.NewSech2(0.001, 1000000)
	m := huffmap.New(f)
	d := correct.DiffValue{Type: correct.Corrected, Value: 500}
	k := m.ToKey(d)
	bits, isRaw := m.ExtraBitsForSymbol(k.Symbol)
	if isRaw {
		t.Fatalf("corrected symbol reported as raw")
	}
	if bits != k.ExtraBits {
		t.Errorf("ExtraBitsForSymbol(%d) = %d, want %d", k.Symbol, bits, k.ExtraBits)
	}
}
