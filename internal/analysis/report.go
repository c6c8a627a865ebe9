package analysis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ipsentry/internal/database"
	"ipsentry/internal/domain"
)

const topSuspicionLimit = 10

// ActivityReport summarizes tracked activity since a cutoff, for the periodic
// operator digest.
type ActivityReport struct {
	Since         time.Time
	TotalRequests int64
	NewSuspicions int64
	NewBlocks     int64
	AutoBlocks    int64
	TopSuspicions []domain.SuspicionRecord
}

// BuildActivityReport gathers the digest counters and the highest-volume
// findings since the cutoff.
func BuildActivityReport(ctx context.Context, since time.Time) (ActivityReport, error) {
	report := ActivityReport{Since: since}

	var err error
	if report.TotalRequests, err = database.CountEventsSince(ctx, since); err != nil {
		return report, err
	}
	if report.NewSuspicions, err = database.CountSuspicionsSince(ctx, since); err != nil {
		return report, err
	}
	if report.NewBlocks, report.AutoBlocks, err = database.CountBlocksSince(ctx, since); err != nil {
		return report, err
	}
	if report.TopSuspicions, err = database.TopSuspicionsSince(ctx, since, topSuspicionLimit); err != nil {
		return report, err
	}

	return report, nil
}

// Render formats the report as the plain-text alert body.
func (r ActivityReport) Render() string {
	var b strings.Builder

	fmt.Fprintf(&b, "Activity report since %s\n\n", r.Since.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Total requests:  %d\n", r.TotalRequests)
	fmt.Fprintf(&b, "New suspicions:  %d\n", r.NewSuspicions)
	fmt.Fprintf(&b, "New blocks:      %d (%d auto)\n", r.NewBlocks, r.AutoBlocks)

	if len(r.TopSuspicions) > 0 {
		b.WriteString("\nTop suspicious IPs:\n")
		for _, record := range r.TopSuspicions {
			fmt.Fprintf(&b, "  %-39s %-16s %-8s %d requests\n",
				record.IP, record.Reason, record.Severity, record.RequestCount)
		}
	}

	return b.String()
}
