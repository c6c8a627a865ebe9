package analysis

import (
	"testing"
	"time"

	"ipsentry/internal/domain"
)

func intPtr(v int) *int { return &v }

func TestMatchesSensitivePath(t *testing.T) {
	rules := []string{"/admin", "/login", ".env"}

	testCases := map[string]bool{
		"/admin":              true,
		"/admin/users":        true,
		"/administrator":      true, // prefix semantics, not path-segment
		"/login":              true,
		"/login/callback":     true,
		"/app/.env":           true,
		"/config/.env.backup": true,
		"/Admin":              false, // case-sensitive
		"/api/admin":          false,
		"/index.html":         false,
		"/":                   false,
	}

	for path, expected := range testCases {
		if got := MatchesSensitivePath(path, rules); got != expected {
			t.Errorf("MatchesSensitivePath(%q) = %v, want %v", path, got, expected)
		}
	}
}

func TestMatchesSensitivePathEmptyRules(t *testing.T) {
	if MatchesSensitivePath("/admin", nil) {
		t.Error("no rules should match nothing")
	}
	if MatchesSensitivePath("/admin", []string{""}) {
		t.Error("empty rule entries should be ignored")
	}
}

func TestAggregateEvents(t *testing.T) {
	base := time.Date(2026, 8, 23, 10, 0, 0, 0, time.UTC)
	events := []domain.RequestEvent{
		{IP: "203.0.113.5", Path: "/", Timestamp: base, StatusCode: intPtr(200)},
		{IP: "203.0.113.5", Path: "/admin", Timestamp: base.Add(time.Minute), StatusCode: intPtr(403)},
		{IP: "203.0.113.5", Path: "/admin", Timestamp: base.Add(2 * time.Minute), StatusCode: intPtr(403)},
		{IP: "203.0.113.5", Path: "/login", Timestamp: base.Add(3 * time.Minute), StatusCode: intPtr(500)},
		{IP: "198.51.100.7", Path: "/", Timestamp: base.Add(time.Minute)},
	}

	aggregates := AggregateEvents(events, []string{"/admin", "/login"})
	if len(aggregates) != 2 {
		t.Fatalf("expected 2 aggregates, got %d", len(aggregates))
	}

	// Sorted by IP, so 198.51.100.7 comes first.
	quiet := aggregates[0]
	if quiet.IP != "198.51.100.7" {
		t.Fatalf("expected sorted output, got %q first", quiet.IP)
	}
	if quiet.RequestCount != 1 || quiet.ErrorCount != 0 || quiet.SensitiveHitCount != 0 {
		t.Errorf("unexpected counters for quiet IP: %+v", quiet)
	}

	noisy := aggregates[1]
	if noisy.RequestCount != 4 {
		t.Errorf("RequestCount = %d, want 4", noisy.RequestCount)
	}
	if noisy.DistinctPathCount != 3 {
		t.Errorf("DistinctPathCount = %d, want 3", noisy.DistinctPathCount)
	}
	if noisy.ErrorCount != 3 {
		t.Errorf("ErrorCount = %d, want 3", noisy.ErrorCount)
	}
	if noisy.SensitiveHitCount != 3 {
		t.Errorf("SensitiveHitCount = %d, want 3", noisy.SensitiveHitCount)
	}
	if noisy.SensitivePathsTouched != 2 {
		t.Errorf("SensitivePathsTouched = %d, want 2", noisy.SensitivePathsTouched)
	}
	if !noisy.LastSeen.Equal(base.Add(3 * time.Minute)) {
		t.Errorf("LastSeen = %v, want %v", noisy.LastSeen, base.Add(3*time.Minute))
	}
	if len(noisy.SensitiveSample) != 2 || noisy.SensitiveSample[0] != "/admin" || noisy.SensitiveSample[1] != "/login" {
		t.Errorf("SensitiveSample = %v", noisy.SensitiveSample)
	}
}

func TestAggregateEventsMissingStatusNotError(t *testing.T) {
	events := []domain.RequestEvent{
		{IP: "203.0.113.5", Path: "/", Timestamp: time.Now()},
	}

	aggregates := AggregateEvents(events, nil)
	if aggregates[0].ErrorCount != 0 {
		t.Error("events without a status code must not count as errors")
	}
}

func TestErrorRate(t *testing.T) {
	agg := IPAggregate{RequestCount: 20, ErrorCount: 15}
	if rate := agg.ErrorRate(); rate != 0.75 {
		t.Errorf("ErrorRate = %v, want 0.75", rate)
	}

	empty := IPAggregate{}
	if rate := empty.ErrorRate(); rate != 0 {
		t.Errorf("ErrorRate on empty aggregate = %v, want 0", rate)
	}
}

func TestSensitiveSampleCapped(t *testing.T) {
	base := time.Now()
	events := make([]domain.RequestEvent, 0, 8)
	paths := []string{"/admin/a", "/admin/b", "/admin/c", "/admin/d", "/admin/e", "/admin/f", "/admin/g", "/admin/h"}
	for i, path := range paths {
		events = append(events, domain.RequestEvent{
			IP: "203.0.113.5", Path: path, Timestamp: base.Add(time.Duration(i) * time.Second),
		})
	}

	aggregates := AggregateEvents(events, []string{"/admin"})
	if len(aggregates[0].SensitiveSample) != sensitiveSampleLimit {
		t.Errorf("sample length = %d, want %d", len(aggregates[0].SensitiveSample), sensitiveSampleLimit)
	}
	if aggregates[0].SensitivePathsTouched != len(paths) {
		t.Errorf("SensitivePathsTouched = %d, want %d", aggregates[0].SensitivePathsTouched, len(paths))
	}
}
