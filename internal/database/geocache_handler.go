package database

import (
	"context"
	"errors"
	"time"

	"ipsentry/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrGeoCacheMiss is returned when no usable persistent cache row exists.
var ErrGeoCacheMiss = errors.New("geocache entry absent or expired")

// GetGeoCacheEntry returns the persistent cache row for an IP. An expired row
// is reported as a miss and never served.
func GetGeoCacheEntry(ctx context.Context, ip string, now time.Time) (domain.GeoCacheEntry, error) {
	db, err := conn(ctx)
	if err != nil {
		return domain.GeoCacheEntry{}, err
	}

	var entry domain.GeoCacheEntry
	if err := db.Where("ip = ?", ip).First(&entry).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.GeoCacheEntry{}, ErrGeoCacheMiss
		}
		return domain.GeoCacheEntry{}, err
	}

	if entry.Expired(now) {
		return domain.GeoCacheEntry{}, ErrGeoCacheMiss
	}
	return entry, nil
}

// UpsertGeoCacheEntry stores or refreshes the row for an IP. Only successful
// lookups reach this point; the failed sentinel is never cached.
func UpsertGeoCacheEntry(ctx context.Context, entry *domain.GeoCacheEntry) error {
	db, err := conn(ctx)
	if err != nil {
		return err
	}

	return db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "ip"}},
		DoUpdates: clause.Assignments(map[string]any{
			"country":      gorm.Expr("EXCLUDED.country"),
			"country_code": gorm.Expr("EXCLUDED.country_code"),
			"city":         gorm.Expr("EXCLUDED.city"),
			"region":       gorm.Expr("EXCLUDED.region"),
			"latitude":     gorm.Expr("EXCLUDED.latitude"),
			"longitude":    gorm.Expr("EXCLUDED.longitude"),
			"timezone":     gorm.Expr("EXCLUDED.timezone"),
			"isp":          gorm.Expr("EXCLUDED.isp"),
			"source":       gorm.Expr("EXCLUDED.source"),
			"updated_at":   gorm.Expr("EXCLUDED.updated_at"),
			"expires_at":   gorm.Expr("EXCLUDED.expires_at"),
		}),
	}).Create(entry).Error
}

// PurgeExpiredGeoCache removes rows whose expiry has passed.
func PurgeExpiredGeoCache(ctx context.Context, now time.Time) (int64, error) {
	db, err := conn(ctx)
	if err != nil {
		return 0, err
	}

	result := db.Where("expires_at IS NOT NULL AND expires_at <= ?", now).
		Delete(&domain.GeoCacheEntry{})
	return result.RowsAffected, result.Error
}
