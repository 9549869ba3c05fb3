package retry

import (
	"testing"
	"time"
)

func collect(s *Schedule, max int) []time.Duration {
	var out []time.Duration
	for i := 0; i < max; i++ {
		d, ok := s.Next()
		if !ok {
			break
		}
		out = append(out, d)
	}
	return out
}

func TestNoJitterMatchesFactorPower(t *testing.T) {
	s := New(Params{InitialInterval: time.Second, BackoffFactor: 2, MaximumCount: 4, CountIsSet: true})
	got := collect(s, 10)
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("interval %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestMaximumCountZeroIsEmpty(t *testing.T) {
	s := New(Params{MaximumCount: 0, CountIsSet: true})
	if _, ok := s.Next(); ok {
		t.Fatal("expected empty sequence")
	}
}

func TestTimeoutClampsFinalInterval(t *testing.T) {
	s := New(Params{InitialInterval: time.Second, BackoffFactor: 2, Timeout: 10 * time.Second})
	got := collect(s, 10)
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 3 * time.Second}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	var sum time.Duration
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("interval %d = %v, want %v", i, got[i], want[i])
		}
		sum += got[i]
	}
	if sum != 10*time.Second {
		t.Fatalf("sum = %v, want 10s", sum)
	}
}

func TestMaximumIntervalCaps(t *testing.T) {
	s := New(Params{InitialInterval: time.Second, BackoffFactor: 2, MaximumInterval: 5 * time.Second, MaximumCount: 5, CountIsSet: true})
	got := collect(s, 10)
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 5 * time.Second, 5 * time.Second}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("interval %d = %v, want %v", i, got[i], want[i])
		}
	}
}

type fixedEntropy struct{ v byte }

func (f fixedEntropy) NextBytes(buf []byte) {
	for i := range buf {
		buf[i] = f.v
	}
}

func TestJitterFactorZeroIsNoop(t *testing.T) {
	s := New(Params{InitialInterval: time.Second, BackoffFactor: 1, MaximumCount: 1, CountIsSet: true})
	d, ok := s.Next()
	if !ok || d != time.Second {
		t.Fatalf("got %v, %v", d, ok)
	}
}

func TestReset(t *testing.T) {
	s := New(Params{InitialInterval: time.Second, BackoffFactor: 2, MaximumCount: 2, CountIsSet: true})
	collect(s, 2)
	if _, ok := s.Next(); ok {
		t.Fatal("expected exhausted")
	}
	s.Reset()
	d, ok := s.Next()
	if !ok || d != time.Second {
		t.Fatalf("after reset got %v %v", d, ok)
	}
}
