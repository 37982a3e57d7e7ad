package scheduler_test

import (
	"math/rand"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/zzping/pinger/destination"
	"github.com/zzping/pinger/scheduler"
)

func TestGetDelayNoDestinations(t *testing.T) {
	s := scheduler.New(nil, nil, 1.0, rate.NewLimiter(rate.Inf, 1))
	if got := s.GetDelay(); got != time.Millisecond {
		t.Errorf("GetDelay() with no destinations = %v, want 1ms", got)
	}
}

func TestGetDelayHarmonicSum(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	d1, _ := destination.New("10.0.0.1", 100*time.Millisecond, rng)
	d2, _ := destination.New("10.0.0.2", 200*time.Millisecond, rng)
	s := scheduler.New(nil, []*destination.Destination{d1, d2}, 1.0, rate.NewLimiter(rate.Inf, 1))

	// 1 / (1.0 * (1/0.1 + 1/0.2)) = 1 / 15 s
	want := time.Duration(float64(time.Second) / 15.0)
	got := s.GetDelay()
	diff := got - want
	if diff < 0 {
		diff = -diff
	}
	if diff > time.Microsecond {
		t.Errorf("GetDelay() = %v, want ~%v", got, want)
	}
}

func TestSendAllNoDestinations(t *testing.T) {
	s := scheduler.New(nil, nil, 1.0, rate.NewLimiter(rate.Inf, 1))
	if n := s.SendAll(0); n != 0 {
		t.Errorf("SendAll() with no destinations = %d, want 0", n)
	}
}
