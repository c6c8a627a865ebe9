package config

import (
	"testing"
	"time"
)

func TestTimerDuration(t *testing.T) {
	testCases := []struct {
		name  string
		timer Timer
		want  time.Duration
	}{
		{"zero clamps to a second", Timer{}, time.Second},
		{"seconds only", Timer{Seconds: 30}, 30 * time.Second},
		{"minutes and seconds", Timer{Minutes: 1, Seconds: 30}, 90 * time.Second},
		{"hours", Timer{Hours: 2}, 2 * time.Hour},
		{"days", Timer{Days: 7}, 7 * 24 * time.Hour},
		{"mixed", Timer{Days: 1, Hours: 2, Minutes: 3, Seconds: 4}, 26*time.Hour + 3*time.Minute + 4*time.Second},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.timer.Duration(); got != tc.want {
				t.Errorf("Duration = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestTimerIsZero(t *testing.T) {
	if !(Timer{}).IsZero() {
		t.Error("empty timer should be zero")
	}
	if (Timer{Seconds: 1}).IsZero() {
		t.Error("timer with a unit set is not zero")
	}
}

func TestIntervalSettingSetAndGet(t *testing.T) {
	s := newIntervalSetting(time.Minute)

	if got := s.get(); got != time.Minute {
		t.Fatalf("initial = %v, want fallback", got)
	}

	s.set(5 * time.Minute)
	if got := s.get(); got != 5*time.Minute {
		t.Errorf("after set = %v, want 5m", got)
	}

	s.set(0)
	if got := s.get(); got != time.Minute {
		t.Errorf("non-positive set should restore the fallback, got %v", got)
	}
}

func TestIntervalSettingNotifiesListeners(t *testing.T) {
	s := newIntervalSetting(time.Minute)
	updates := s.updates()

	// Subscribing delivers the current value immediately.
	select {
	case got := <-updates:
		if got != time.Minute {
			t.Fatalf("initial update = %v, want 1m", got)
		}
	default:
		t.Fatal("expected an immediate update on subscribe")
	}

	s.set(10 * time.Minute)
	select {
	case got := <-updates:
		if got != 10*time.Minute {
			t.Errorf("update = %v, want 10m", got)
		}
	default:
		t.Error("expected a change notification")
	}
}

func TestIntervalSettingSkipsNoopChanges(t *testing.T) {
	s := newIntervalSetting(time.Minute)
	updates := s.updates()
	<-updates // drain the subscription value

	s.set(time.Minute)
	select {
	case got := <-updates:
		t.Errorf("unchanged value should not notify, got %v", got)
	default:
	}
}

func TestIntervalSettingFromTimer(t *testing.T) {
	s := newIntervalSetting(time.Hour)

	s.fromTimer(Timer{Minutes: 30})
	if got := s.get(); got != 30*time.Minute {
		t.Errorf("fromTimer = %v, want 30m", got)
	}

	s.fromTimer(Timer{})
	if got := s.get(); got != time.Hour {
		t.Errorf("zero timer should restore the fallback, got %v", got)
	}
}
