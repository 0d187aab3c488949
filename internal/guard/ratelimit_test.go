package guard

import (
	"testing"
	"time"
)

func TestLimiter_SlidingWindow(t *testing.T) {
	l := newLimiter([]RateLimit{
		{ID: "limit-send-tools", ToolGlob: "send_*", Max: 3, WindowSeconds: 60},
	})

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	for i := 1; i <= 3; i++ {
		if _, over := l.record("send_email"); over {
			t.Fatalf("call %d should be within the limit", i)
		}
	}

	rl, over := l.record("send_email")
	if !over {
		t.Fatal("call 4 should exceed the limit")
	}
	if rl.ID != "limit-send-tools" {
		t.Errorf("expected limit-send-tools, got %q", rl.ID)
	}

	// Advance past the window: the budget resets.
	now = now.Add(61 * time.Second)
	if _, over := l.record("send_email"); over {
		t.Error("call after window expiry should be allowed")
	}
}

func TestLimiter_PerToolIsolation(t *testing.T) {
	l := newLimiter([]RateLimit{
		{ID: "limit-send-tools", ToolGlob: "send_*", Max: 1, WindowSeconds: 60},
	})

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	if _, over := l.record("send_email"); over {
		t.Fatal("first send_email should be allowed")
	}
	if _, over := l.record("send_sms"); over {
		t.Error("send_sms has its own window and should be allowed")
	}
	if _, over := l.record("send_email"); !over {
		t.Error("second send_email should exceed the limit")
	}
}

func TestLimiter_UnmatchedToolNeverLimited(t *testing.T) {
	l := newLimiter([]RateLimit{
		{ID: "limit-send-tools", ToolGlob: "send_*", Max: 1, WindowSeconds: 60},
	})

	for i := 0; i < 50; i++ {
		if _, over := l.record("read_email"); over {
			t.Fatal("read_email matches no limit and must never be rejected")
		}
	}
}
