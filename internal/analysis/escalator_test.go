package analysis

import (
	"context"
	"strings"
	"testing"
	"time"

	"ipsentry/internal/database"
	"ipsentry/internal/domain"
)

func TestEscalateBlocksAndAlertsWithEvidence(t *testing.T) {
	setupAnalysisDB(t)
	ctx := context.Background()
	now := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)

	record := domain.SuspicionRecord{
		IP: "203.0.113.50", Reason: domain.ReasonHighFrequency,
		Severity: domain.SeverityMedium, RequestCount: 300,
		FirstDetected: now, LastDetected: now, IsActive: true,
	}
	if err := database.UpsertSuspicion(ctx, &record); err != nil {
		t.Fatalf("seed suspicion: %v", err)
	}

	sender := &captureSender{}
	escalator := NewEscalator(sender)
	escalator.now = func() time.Time { return now }

	evidence := domain.EvidenceMap{
		"request_count": int64(300),
		"threshold":     int64(100),
	}
	outcome, err := escalator.Escalate(ctx, "203.0.113.50", domain.ReasonHighFrequency, evidence)
	if err != nil {
		t.Fatalf("escalate: %v", err)
	}
	if outcome != Blocked {
		t.Fatalf("outcome = %v, want Blocked", outcome)
	}

	entry, err := database.GetBlockEntry(ctx, "203.0.113.50")
	if err != nil {
		t.Fatalf("get block: %v", err)
	}
	if entry.Reason != "Auto-blocked: high_frequency" {
		t.Errorf("reason = %q", entry.Reason)
	}
	wantExpiry := now.Add(24 * time.Hour)
	if entry.ExpiresAt == nil || !entry.ExpiresAt.Equal(wantExpiry) {
		t.Errorf("expires_at = %v, want %v", entry.ExpiresAt, wantExpiry)
	}

	got, err := database.GetSuspicion(ctx, "203.0.113.50", domain.ReasonHighFrequency)
	if err != nil {
		t.Fatalf("get suspicion: %v", err)
	}
	if !got.AutoBlocked {
		t.Error("suspicion should be marked auto-blocked")
	}

	subjects, bodies := sender.sent()
	if len(subjects) != 1 || subjects[0] != "IP Auto-blocked: 203.0.113.50" {
		t.Fatalf("alerts = %v, want the single auto-block notice", subjects)
	}
	for _, want := range []string{"Evidence:", "request_count: 300", "threshold: 100"} {
		if !strings.Contains(bodies[0], want) {
			t.Errorf("alert body missing %q: %q", want, bodies[0])
		}
	}
}

func TestEscalateAlreadyBlockedIsNoOp(t *testing.T) {
	setupAnalysisDB(t)
	ctx := context.Background()

	if err := database.UpsertBlockEntry(ctx, &domain.BlockEntry{IP: "203.0.113.50", Reason: "manual"}); err != nil {
		t.Fatalf("seed block: %v", err)
	}

	sender := &captureSender{}
	escalator := NewEscalator(sender)

	outcome, err := escalator.Escalate(ctx, "203.0.113.50", domain.ReasonHighFrequency, nil)
	if err != nil {
		t.Fatalf("escalate: %v", err)
	}
	if outcome != AlreadyBlocked {
		t.Errorf("outcome = %v, want AlreadyBlocked", outcome)
	}

	// The manual block is left untouched and nothing is sent.
	entry, err := database.GetBlockEntry(ctx, "203.0.113.50")
	if err != nil {
		t.Fatalf("get block: %v", err)
	}
	if entry.Reason != "manual" {
		t.Errorf("reason = %q, want the original manual reason", entry.Reason)
	}
	if subjects, _ := sender.sent(); len(subjects) != 0 {
		t.Errorf("alerts = %v, want none", subjects)
	}
}
