package analysis

import (
	"strings"
	"testing"
	"time"

	"ipsentry/internal/domain"
)

func TestActivityReportRender(t *testing.T) {
	report := ActivityReport{
		Since:         time.Date(2026, 8, 16, 0, 0, 0, 0, time.UTC),
		TotalRequests: 12345,
		NewSuspicions: 7,
		NewBlocks:     3,
		AutoBlocks:    2,
		TopSuspicions: []domain.SuspicionRecord{
			{IP: "203.0.113.5", Reason: domain.ReasonHighFrequency, Severity: domain.SeverityHigh, RequestCount: 900},
		},
	}

	text := report.Render()
	for _, want := range []string{"2026-08-16", "12345", "7", "3 (2 auto)", "203.0.113.5", "high_frequency", "900 requests"} {
		if !strings.Contains(text, want) {
			t.Errorf("rendered report missing %q:\n%s", want, text)
		}
	}
}

func TestActivityReportRenderNoFindings(t *testing.T) {
	report := ActivityReport{Since: time.Now()}
	if strings.Contains(report.Render(), "Top suspicious") {
		t.Error("empty report should omit the findings section")
	}
}
