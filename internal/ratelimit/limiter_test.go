package ratelimit

import (
	"testing"
	"time"
)

func TestAllowWithinBudget(t *testing.T) {
	t.Parallel()
	l := New(3, time.Minute)

	for i := 0; i < 3; i++ {
		res := l.Allow("1.2.3.4")
		if !res.Allowed {
			t.Fatalf("request %d denied within budget", i+1)
		}
		if res.Remaining != 3-(i+1) {
			t.Fatalf("request %d remaining = %d, want %d", i+1, res.Remaining, 3-(i+1))
		}
	}

	res := l.Allow("1.2.3.4")
	if res.Allowed {
		t.Fatal("request over budget allowed")
	}
	if res.Remaining != 0 {
		t.Fatalf("remaining = %d, want 0", res.Remaining)
	}
}

func TestWindowResets(t *testing.T) {
	t.Parallel()
	now := time.Now()
	l := New(1, time.Minute)
	l.now = func() time.Time { return now }

	if !l.Allow("a").Allowed {
		t.Fatal("first request denied")
	}
	if l.Allow("a").Allowed {
		t.Fatal("second request in same window allowed")
	}

	now = now.Add(time.Minute + time.Second)
	res := l.Allow("a")
	if !res.Allowed {
		t.Fatal("request in fresh window denied")
	}
	if got, want := res.ResetAt, now.Add(time.Minute); !got.Equal(want) {
		t.Fatalf("ResetAt = %v, want %v", got, want)
	}
}

func TestKeysAreIndependent(t *testing.T) {
	t.Parallel()
	l := New(1, time.Minute)

	if !l.Allow("a").Allowed {
		t.Fatal("first key denied")
	}
	if !l.Allow("b").Allowed {
		t.Fatal("second key denied after first key's request")
	}
	if l.Allow("a").Allowed {
		t.Fatal("first key allowed over budget")
	}
}

func TestSweepRemovesExpiredWindows(t *testing.T) {
	t.Parallel()
	now := time.Now()
	l := New(5, time.Minute)
	l.now = func() time.Time { return now }

	l.Allow("a")
	l.Allow("b")
	if l.Len() != 2 {
		t.Fatalf("tracked = %d, want 2", l.Len())
	}

	l.sweepOnce()
	if l.Len() != 2 {
		t.Fatalf("live windows swept: tracked = %d, want 2", l.Len())
	}

	now = now.Add(2 * time.Minute)
	l.Allow("c")
	l.sweepOnce()
	if l.Len() != 1 {
		t.Fatalf("tracked = %d, want 1 after sweep", l.Len())
	}
	if !l.Allow("c").Allowed {
		t.Fatal("surviving key denied within budget")
	}
}
