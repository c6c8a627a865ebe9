package analysis

import (
	"context"
	"sort"
	"strings"
	"time"

	"ipsentry/internal/database"
	"ipsentry/internal/domain"
)

const sensitiveSampleLimit = 5

// IPAggregate is one IP's activity over a trailing window.
type IPAggregate struct {
	IP                    string
	RequestCount          int64
	DistinctPathCount     int64
	ErrorCount            int64
	SensitiveHitCount     int64
	SensitivePathsTouched int
	SensitiveSample       []string
	LastSeen              time.Time
}

// ErrorRate returns the 4xx/5xx share of this IP's requests.
func (a IPAggregate) ErrorRate() float64 {
	if a.RequestCount == 0 {
		return 0
	}
	return float64(a.ErrorCount) / float64(a.RequestCount)
}

// MatchesSensitivePath reports whether the path matches any configured entry.
// An entry beginning with "/" is a plain string prefix (so "/admin" also
// matches "/administrator" — literal startswith semantics, kept on purpose);
// any other entry matches as a substring. Both are case-sensitive.
func MatchesSensitivePath(path string, rules []string) bool {
	for _, rule := range rules {
		if rule == "" {
			continue
		}
		if strings.HasPrefix(rule, "/") {
			if strings.HasPrefix(path, rule) {
				return true
			}
		} else if strings.Contains(path, rule) {
			return true
		}
	}
	return false
}

// AggregateEvents groups events by IP and computes the per-IP counters.
// Pure and deterministic: the result is sorted by IP.
func AggregateEvents(events []domain.RequestEvent, sensitivePaths []string) []IPAggregate {
	type acc struct {
		agg            IPAggregate
		paths          map[string]struct{}
		sensitivePaths map[string]struct{}
	}

	byIP := make(map[string]*acc)
	for _, event := range events {
		entry, ok := byIP[event.IP]
		if !ok {
			entry = &acc{
				agg:            IPAggregate{IP: event.IP},
				paths:          make(map[string]struct{}),
				sensitivePaths: make(map[string]struct{}),
			}
			byIP[event.IP] = entry
		}

		entry.agg.RequestCount++
		entry.paths[event.Path] = struct{}{}
		if event.IsError() {
			entry.agg.ErrorCount++
		}
		if event.Timestamp.After(entry.agg.LastSeen) {
			entry.agg.LastSeen = event.Timestamp
		}
		if MatchesSensitivePath(event.Path, sensitivePaths) {
			entry.agg.SensitiveHitCount++
			entry.sensitivePaths[event.Path] = struct{}{}
		}
	}

	out := make([]IPAggregate, 0, len(byIP))
	for _, entry := range byIP {
		entry.agg.DistinctPathCount = int64(len(entry.paths))
		entry.agg.SensitivePathsTouched = len(entry.sensitivePaths)
		entry.agg.SensitiveSample = samplePaths(entry.sensitivePaths, sensitiveSampleLimit)
		out = append(out, entry.agg)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].IP < out[j].IP })
	return out
}

func samplePaths(paths map[string]struct{}, limit int) []string {
	if len(paths) == 0 {
		return nil
	}

	all := make([]string, 0, len(paths))
	for path := range paths {
		all = append(all, path)
	}
	sort.Strings(all)

	if len(all) > limit {
		all = all[:limit]
	}
	return all
}

// Aggregate computes per-IP counters over events in [start, end).
// Read-only; safe to call repeatedly and concurrently.
func Aggregate(ctx context.Context, start, end time.Time, sensitivePaths []string) ([]IPAggregate, error) {
	events, err := database.QueryEventsWindow(ctx, start, end)
	if err != nil {
		return nil, err
	}
	return AggregateEvents(events, sensitivePaths), nil
}
