package blocklist

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestRegistryIsBlocked(t *testing.T) {
	registry := NewRegistry(WithLoader(func(ctx context.Context, now time.Time) ([]string, error) {
		return []string{"203.0.113.5", "2001:db8::1"}, nil
	}))

	if err := registry.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	testCases := map[string]bool{
		"203.0.113.5":  true,
		"2001:db8::1":  true,
		"2001:DB8::1":  true, // normalized form matches
		"198.51.100.7": false,
		"not-an-ip":    false,
		"":             false,
	}

	for ip, expected := range testCases {
		if got := registry.IsBlocked(ip); got != expected {
			t.Errorf("IsBlocked(%q) = %v, want %v", ip, got, expected)
		}
	}
}

func TestRegistryEmptyBeforeRefresh(t *testing.T) {
	registry := NewRegistry(WithLoader(func(ctx context.Context, now time.Time) ([]string, error) {
		return []string{"203.0.113.5"}, nil
	}))

	if registry.IsBlocked("203.0.113.5") {
		t.Error("snapshot must be empty before the first refresh")
	}
}

func TestRegistryRefreshReplacesSnapshot(t *testing.T) {
	ips := []string{"203.0.113.5"}
	registry := NewRegistry(WithLoader(func(ctx context.Context, now time.Time) ([]string, error) {
		return ips, nil
	}))

	if err := registry.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if !registry.IsBlocked("203.0.113.5") {
		t.Fatal("expected 203.0.113.5 blocked")
	}

	ips = []string{"198.51.100.7"}
	if err := registry.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	if registry.IsBlocked("203.0.113.5") {
		t.Error("old snapshot entry survived the refresh")
	}
	if !registry.IsBlocked("198.51.100.7") {
		t.Error("new snapshot entry missing")
	}
}

func TestRegistryRefreshKeepsSnapshotOnError(t *testing.T) {
	fail := false
	registry := NewRegistry(WithLoader(func(ctx context.Context, now time.Time) ([]string, error) {
		if fail {
			return nil, errors.New("store down")
		}
		return []string{"203.0.113.5"}, nil
	}))

	if err := registry.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	fail = true
	if err := registry.Refresh(context.Background()); err == nil {
		t.Fatal("expected refresh error")
	}

	if !registry.IsBlocked("203.0.113.5") {
		t.Error("failed refresh must keep the previous snapshot")
	}
}

func TestRegistryLoaderReceivesClock(t *testing.T) {
	now := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	var seen time.Time

	registry := NewRegistry(
		WithClock(fixedClock(now)),
		WithLoader(func(ctx context.Context, loaderNow time.Time) ([]string, error) {
			seen = loaderNow
			return nil, nil
		}),
	)

	if err := registry.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if !seen.Equal(now) {
		t.Errorf("loader saw %v, want %v", seen, now)
	}
}

func TestNormalizeIP(t *testing.T) {
	testCases := map[string]string{
		"203.0.113.5":        "203.0.113.5",
		"::ffff:203.0.113.5": "203.0.113.5",
		"2001:DB8::1":        "2001:db8::1",
		"garbage":            "",
		"":                   "",
		"203.0.113.5/32":     "",
	}

	for raw, expected := range testCases {
		if got := normalizeIP(raw); got != expected {
			t.Errorf("normalizeIP(%q) = %q, want %q", raw, got, expected)
		}
	}
}
