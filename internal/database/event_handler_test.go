package database

import (
	"context"
	"testing"
	"time"

	"ipsentry/internal/domain"
)

func seedEvent(t *testing.T, ip, path string, at time.Time, status *int) {
	t.Helper()
	event := domain.RequestEvent{IP: ip, Path: path, Timestamp: at, StatusCode: status}
	if err := AppendRequestEvent(context.Background(), &event); err != nil {
		t.Fatalf("seed event %s %s: %v", ip, path, err)
	}
}

func status(code int) *int {
	return &code
}

func TestQueryEventsWindowBoundaries(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()

	start := time.Date(2026, 8, 23, 11, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	seedEvent(t, "203.0.113.1", "/before", start.Add(-time.Second), nil)
	seedEvent(t, "203.0.113.1", "/at-start", start, nil)
	seedEvent(t, "203.0.113.1", "/inside", start.Add(30*time.Minute), nil)
	seedEvent(t, "203.0.113.1", "/at-end", end, nil)

	events, err := QueryEventsWindow(ctx, start, end)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2 (window is [start, end))", len(events))
	}
	if events[0].Path != "/at-start" || events[1].Path != "/inside" {
		t.Errorf("got %q then %q, want /at-start then /inside", events[0].Path, events[1].Path)
	}

	byIP, err := QueryEventsByIPAndWindow(ctx, "203.0.113.1", start, end)
	if err != nil {
		t.Fatalf("query by ip: %v", err)
	}
	if len(byIP) != 2 {
		t.Errorf("got %d events for the IP, want 2", len(byIP))
	}
}

func TestAnnotateSuspiciousEventsOnlyErrors(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()

	start := time.Date(2026, 8, 23, 11, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	at := start.Add(time.Minute)

	seedEvent(t, "203.0.113.1", "/ok", at, status(200))
	seedEvent(t, "203.0.113.1", "/missing", at, status(404))
	seedEvent(t, "203.0.113.1", "/broken", at, status(500))
	seedEvent(t, "198.51.100.1", "/other-ip", at, status(500))

	tagged, err := AnnotateSuspiciousEvents(ctx, "203.0.113.1", start, end, "High error rate: 66.7%", true)
	if err != nil {
		t.Fatalf("annotate: %v", err)
	}
	if tagged != 2 {
		t.Errorf("tagged = %d, want only the 4xx/5xx events of the IP", tagged)
	}

	var clean int64
	if err := DB.Model(&domain.RequestEvent{}).
		Where("is_suspicious = ?", false).Count(&clean).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if clean != 2 {
		t.Errorf("%d events untagged, want 2 (the 200 and the other IP)", clean)
	}
}

func TestAnnotateSensitiveEventsMatchesRules(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()

	start := time.Date(2026, 8, 23, 11, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	at := start.Add(time.Minute)

	seedEvent(t, "203.0.113.1", "/admin", at, nil)
	seedEvent(t, "203.0.113.1", "/administrator/index.php", at, nil) // prefix matching is literal
	seedEvent(t, "203.0.113.1", "/static/app.env.js", at, nil)      // ".env" matches as substring
	seedEvent(t, "203.0.113.1", "/index.html", at, nil)

	tagged, err := AnnotateSensitiveEvents(ctx, "203.0.113.1", start, end,
		"Sensitive path access: 3 attempts", []string{"/admin", ".env"})
	if err != nil {
		t.Fatalf("annotate: %v", err)
	}
	if tagged != 3 {
		t.Errorf("tagged = %d, want 3", tagged)
	}

	events, err := QueryEventsByIPAndWindow(ctx, "203.0.113.1", start, end)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	for _, event := range events {
		if event.Path == "/index.html" && event.IsSuspicious {
			t.Error("/index.html must not be tagged")
		}
		if event.Path == "/administrator/index.php" && !event.IsSuspicious {
			t.Error("/administrator/index.php should be tagged by the /admin prefix")
		}
	}
}

func TestBackfillEventGeolocation(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()

	since := time.Date(2026, 8, 23, 0, 0, 0, 0, time.UTC)
	at := since.Add(time.Hour)

	seedEvent(t, "203.0.113.1", "/a", at, nil)
	seedEvent(t, "203.0.113.1", "/b", at, nil)
	enriched := domain.RequestEvent{IP: "203.0.113.1", Path: "/c", Timestamp: at, Country: "Germany", GeoSource: "ip-api"}
	if err := AppendRequestEvent(ctx, &enriched); err != nil {
		t.Fatalf("seed enriched: %v", err)
	}

	missing, err := ListRecentIPsWithoutGeolocation(ctx, since, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(missing) != 1 || missing[0] != "203.0.113.1" {
		t.Fatalf("missing = %v, want just the IP with bare events", missing)
	}

	filled, err := BackfillEventGeolocation(ctx, "203.0.113.1", since, map[string]any{
		"country":    "Germany",
		"geo_source": "cache",
	})
	if err != nil {
		t.Fatalf("backfill: %v", err)
	}
	if filled != 2 {
		t.Errorf("filled = %d, want only the 2 bare events", filled)
	}

	remaining, err := ListRecentIPsWithoutGeolocation(ctx, since, 10)
	if err != nil {
		t.Fatalf("re-list: %v", err)
	}
	if len(remaining) != 0 {
		t.Errorf("remaining = %v, want none after the backfill", remaining)
	}
}

func TestCountEventsSince(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()

	cutoff := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	seedEvent(t, "203.0.113.1", "/old", cutoff.Add(-time.Second), nil)
	seedEvent(t, "203.0.113.1", "/at", cutoff, nil)
	seedEvent(t, "203.0.113.1", "/new", cutoff.Add(time.Second), nil)

	count, err := CountEventsSince(ctx, cutoff)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Errorf("count = %d, want 2 (cutoff is inclusive)", count)
	}
}
