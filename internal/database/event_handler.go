package database

import (
	"context"
	"errors"
	"strings"
	"time"

	"ipsentry/internal/domain"

	"gorm.io/gorm"
)

// ErrDatabaseNotInitialised is returned when a handler runs before SetupDB.
var ErrDatabaseNotInitialised = errors.New("database not initialised")

func conn(ctx context.Context) (*gorm.DB, error) {
	if DB == nil {
		return nil, ErrDatabaseNotInitialised
	}
	db := DB
	if ctx != nil {
		db = db.WithContext(ctx)
	}
	return db, nil
}

// AppendRequestEvent writes one request event. Callers on the serving path
// treat failures as best-effort and fall back to a minimal write.
func AppendRequestEvent(ctx context.Context, event *domain.RequestEvent) error {
	db, err := conn(ctx)
	if err != nil {
		return err
	}
	return db.Create(event).Error
}

// QueryEventsWindow returns every event with timestamp in [start, end).
func QueryEventsWindow(ctx context.Context, start, end time.Time) ([]domain.RequestEvent, error) {
	db, err := conn(ctx)
	if err != nil {
		return nil, err
	}

	var events []domain.RequestEvent
	if err := db.
		Where("timestamp >= ? AND timestamp < ?", start, end).
		Order("timestamp ASC").
		Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

// QueryEventsByIPAndWindow returns one IP's events in [start, end), oldest first.
func QueryEventsByIPAndWindow(ctx context.Context, ip string, start, end time.Time) ([]domain.RequestEvent, error) {
	db, err := conn(ctx)
	if err != nil {
		return nil, err
	}

	var events []domain.RequestEvent
	if err := db.
		Where("ip = ? AND timestamp >= ? AND timestamp < ?", ip, start, end).
		Order("timestamp ASC").
		Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

// AnnotateSuspiciousEvents tags an IP's events inside the window with a
// human-readable anomaly reason. With onlyErrors set, only 4xx/5xx events are
// tagged. The annotation is a best-effort side channel; history is otherwise
// immutable.
func AnnotateSuspiciousEvents(ctx context.Context, ip string, start, end time.Time, reason string, onlyErrors bool) (int64, error) {
	db, err := conn(ctx)
	if err != nil {
		return 0, err
	}

	query := db.Model(&domain.RequestEvent{}).
		Where("ip = ? AND timestamp >= ? AND timestamp < ?", ip, start, end)
	if onlyErrors {
		query = query.Where("status_code >= ?", 400)
	}

	result := query.Updates(map[string]any{
		"is_suspicious":  true,
		"anomaly_reason": reason,
	})
	return result.RowsAffected, result.Error
}

// AnnotateSensitiveEvents tags only the IP's window events whose path matches
// one of the configured sensitive entries: leading-slash entries as string
// prefixes, the rest as substrings.
func AnnotateSensitiveEvents(ctx context.Context, ip string, start, end time.Time, reason string, rules []string) (int64, error) {
	db, err := conn(ctx)
	if err != nil {
		return 0, err
	}
	if len(rules) == 0 {
		return 0, nil
	}

	pathFilter := db.Session(&gorm.Session{NewDB: true})
	for _, rule := range rules {
		if rule == "" {
			continue
		}
		if rule[0] == '/' {
			pathFilter = pathFilter.Or("path LIKE ?", likeEscape(rule)+"%")
		} else {
			pathFilter = pathFilter.Or("path LIKE ?", "%"+likeEscape(rule)+"%")
		}
	}

	result := db.Model(&domain.RequestEvent{}).
		Where("ip = ? AND timestamp >= ? AND timestamp < ?", ip, start, end).
		Where(pathFilter).
		Updates(map[string]any{
			"is_suspicious":  true,
			"anomaly_reason": reason,
		})
	return result.RowsAffected, result.Error
}

func likeEscape(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	return strings.ReplaceAll(s, "_", `\_`)
}

// CountEventsSince returns the number of events recorded at or after the cutoff.
func CountEventsSince(ctx context.Context, cutoff time.Time) (int64, error) {
	db, err := conn(ctx)
	if err != nil {
		return 0, err
	}

	var count int64
	if err := db.Model(&domain.RequestEvent{}).
		Where("timestamp >= ?", cutoff).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// BackfillEventGeolocation fills enrichment columns on events for the given
// IP that were recorded without geolocation data.
func BackfillEventGeolocation(ctx context.Context, ip string, since time.Time, fields map[string]any) (int64, error) {
	db, err := conn(ctx)
	if err != nil {
		return 0, err
	}

	result := db.Model(&domain.RequestEvent{}).
		Where("ip = ? AND timestamp >= ? AND (geo_source = '' OR geo_source IS NULL)", ip, since).
		Updates(fields)
	return result.RowsAffected, result.Error
}

// ListRecentIPsWithoutGeolocation returns distinct IPs seen since the cutoff
// whose events still lack enrichment, capped at limit.
func ListRecentIPsWithoutGeolocation(ctx context.Context, since time.Time, limit int) ([]string, error) {
	db, err := conn(ctx)
	if err != nil {
		return nil, err
	}

	var ips []string
	query := db.Model(&domain.RequestEvent{}).
		Distinct("ip").
		Where("timestamp >= ? AND (geo_source = '' OR geo_source IS NULL)", since)
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Pluck("ip", &ips).Error; err != nil {
		return nil, err
	}
	return ips, nil
}
