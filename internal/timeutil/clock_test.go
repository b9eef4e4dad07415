package timeutil

import (
	"testing"
	"time"
)

func TestRealClockNow(t *testing.T) {
	clock := RealClock{}
	before := time.Now()
	now := clock.Now()
	after := time.Now()

	if now.Before(before) || now.After(after) {
		t.Errorf("RealClock.Now() returned %v, outside [%v, %v]", now, before, after)
	}
}

func TestMockClockSetAndNow(t *testing.T) {
	base := time.Date(2025, 6, 1, 20, 0, 0, 0, time.UTC)
	clock := NewMockClock(base)

	if !clock.Now().Equal(base) {
		t.Errorf("expected %v, got %v", base, clock.Now())
	}

	later := base.Add(90 * time.Minute)
	clock.Set(later)
	if !clock.Now().Equal(later) {
		t.Errorf("expected %v after Set, got %v", later, clock.Now())
	}
}

func TestMockClockSince(t *testing.T) {
	base := time.Date(2025, 6, 1, 20, 0, 0, 0, time.UTC)
	clock := NewMockClock(base)
	clock.Advance(45 * time.Minute)

	if got := clock.Since(base); got != 45*time.Minute {
		t.Errorf("expected 45m, got %v", got)
	}
}

func TestMockTickerFiresOnAdvance(t *testing.T) {
	clock := NewMockClock(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	ticker := clock.NewTicker(time.Minute)
	defer ticker.Stop()

	select {
	case <-ticker.C():
		t.Fatal("ticker fired before clock advanced")
	default:
	}

	clock.Advance(time.Minute)
	select {
	case <-ticker.C():
	default:
		t.Fatal("ticker did not fire after advancing one period")
	}
}

func TestMockTickerStop(t *testing.T) {
	clock := NewMockClock(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	ticker := clock.NewTicker(time.Minute)
	ticker.Stop()

	clock.Advance(5 * time.Minute)
	select {
	case <-ticker.C():
		t.Error("stopped ticker fired")
	default:
	}
}
