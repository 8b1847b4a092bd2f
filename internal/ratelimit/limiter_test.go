package ratelimit

import (
	"testing"
	"time"
)

func newTestLimiter(configs map[RouteClass]WindowConfig) (*Limiter, *time.Time) {
	l := NewLimiter(configs)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	return l, &now
}

func TestLimiter_DeniesAboveMax(t *testing.T) {
	l, _ := newTestLimiter(map[RouteClass]WindowConfig{
		ClassUpload:  {Window: time.Minute, Max: 5},
		ClassDefault: {Window: time.Minute, Max: 60},
	})

	for i := 0; i < 5; i++ {
		res := l.Allow("user-1", ClassUpload)
		if !res.Allowed {
			t.Fatalf("request %d unexpectedly denied", i+1)
		}
	}

	res := l.Allow("user-1", ClassUpload)
	if res.Allowed {
		t.Fatal("sixth request in window should be denied")
	}
	if res.Remaining != 0 {
		t.Fatalf("remaining = %d, want 0", res.Remaining)
	}
}

func TestLimiter_WindowReset(t *testing.T) {
	l, now := newTestLimiter(map[RouteClass]WindowConfig{
		ClassUpload:  {Window: time.Minute, Max: 5},
		ClassDefault: {Window: time.Minute, Max: 60},
	})

	for i := 0; i < 6; i++ {
		l.Allow("user-1", ClassUpload)
	}
	if l.Allow("user-1", ClassUpload).Allowed {
		t.Fatal("expected denial before window expiry")
	}

	*now = now.Add(61 * time.Second)

	res := l.Allow("user-1", ClassUpload)
	if !res.Allowed {
		t.Fatal("request after window expiry should be admitted")
	}
	if res.Remaining != 4 {
		t.Fatalf("remaining = %d, want 4 in fresh window", res.Remaining)
	}
}

func TestLimiter_CallersIsolated(t *testing.T) {
	l, _ := newTestLimiter(nil)

	for i := 0; i < 5; i++ {
		l.Allow("user-1", ClassUpload)
	}
	if l.Allow("user-1", ClassUpload).Allowed {
		t.Fatal("user-1 should be over limit")
	}
	if !l.Allow("user-2", ClassUpload).Allowed {
		t.Fatal("user-2 should not be affected by user-1's window")
	}
}

func TestLimiter_ClassesIsolated(t *testing.T) {
	l, _ := newTestLimiter(nil)

	for i := 0; i < 6; i++ {
		l.Allow("user-1", ClassUpload)
	}
	if !l.Allow("user-1", ClassDefault).Allowed {
		t.Fatal("default class should have its own window")
	}
}

func TestLimiter_UnknownClassUsesDefault(t *testing.T) {
	l, _ := newTestLimiter(map[RouteClass]WindowConfig{
		ClassDefault: {Window: time.Minute, Max: 2},
	})

	l.Allow("user-1", RouteClass("mystery"))
	l.Allow("user-1", RouteClass("mystery"))
	if l.Allow("user-1", RouteClass("mystery")).Allowed {
		t.Fatal("unknown class should fall back to default config")
	}
}

func TestLimiter_Sweep(t *testing.T) {
	l, now := newTestLimiter(nil)

	l.Allow("user-1", ClassUpload)
	l.Allow("user-2", ClassDefault)
	if l.Len() != 2 {
		t.Fatalf("tracked windows = %d, want 2", l.Len())
	}

	*now = now.Add(2 * time.Hour)

	if removed := l.Sweep(); removed != 2 {
		t.Fatalf("swept %d windows, want 2", removed)
	}
	if l.Len() != 0 {
		t.Fatalf("tracked windows after sweep = %d, want 0", l.Len())
	}
}

func TestLimiter_ResetAtForRetryAfter(t *testing.T) {
	l, now := newTestLimiter(nil)

	for i := 0; i < 6; i++ {
		l.Allow("user-1", ClassUpload)
	}
	res := l.Allow("user-1", ClassUpload)
	if res.Allowed {
		t.Fatal("expected denial")
	}
	want := now.Add(time.Minute)
	if !res.ResetAt.Equal(want) {
		t.Fatalf("ResetAt = %v, want %v", res.ResetAt, want)
	}
}
