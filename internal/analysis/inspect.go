package analysis

import (
	"context"
	"time"

	"ipsentry/internal/database"
	"ipsentry/internal/domain"
)

// BehaviorReport is an on-demand view of one IP's recent activity, used by
// the analyze command and operator tooling.
type BehaviorReport struct {
	IP           string
	WindowStart  time.Time
	WindowEnd    time.Time
	RequestCount int64
	UniquePaths  int64
	ErrorCount   int64
	ErrorRate    float64
	FirstSeen    time.Time
	LastSeen     time.Time
	Suspicions   []domain.SuspicionRecord
	Blocked      bool
	BlockEntry   *domain.BlockEntry
}

// InspectIP builds a behavior report for one IP over the trailing window.
// An IP with no recorded events still reports its suspicion and block state.
func InspectIP(ctx context.Context, ip string, window time.Duration) (BehaviorReport, error) {
	end := time.Now()
	start := end.Add(-window)
	report := BehaviorReport{IP: ip, WindowStart: start, WindowEnd: end}

	events, err := database.QueryEventsByIPAndWindow(ctx, ip, start, end)
	if err != nil {
		return report, err
	}

	paths := make(map[string]struct{})
	for _, event := range events {
		report.RequestCount++
		paths[event.Path] = struct{}{}
		if event.IsError() {
			report.ErrorCount++
		}
		if report.FirstSeen.IsZero() || event.Timestamp.Before(report.FirstSeen) {
			report.FirstSeen = event.Timestamp
		}
		if event.Timestamp.After(report.LastSeen) {
			report.LastSeen = event.Timestamp
		}
	}
	report.UniquePaths = int64(len(paths))
	if report.RequestCount > 0 {
		report.ErrorRate = float64(report.ErrorCount) / float64(report.RequestCount)
	}

	suspicions, err := database.ListSuspicionsByIP(ctx, ip)
	if err != nil {
		return report, err
	}
	report.Suspicions = suspicions

	entry, err := database.GetBlockEntry(ctx, ip)
	switch err {
	case nil:
		report.BlockEntry = &entry
		report.Blocked = entry.Active(end)
	case database.ErrBlockNotFound:
	default:
		return report, err
	}

	return report, nil
}
