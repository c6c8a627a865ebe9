package database

import (
	"context"
	"errors"
	"time"

	"ipsentry/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrBlockNotFound is returned when an unblock targets an unknown IP.
var ErrBlockNotFound = errors.New("ip is not blocked")

// ListBlockEntries returns every block row, newest first.
func ListBlockEntries(ctx context.Context) ([]domain.BlockEntry, error) {
	db, err := conn(ctx)
	if err != nil {
		return nil, err
	}

	var entries []domain.BlockEntry
	if err := db.Order("created_at DESC").Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// ListActiveBlockIPs returns the IPs whose block is in effect at the given
// instant. This feeds the registry snapshot.
func ListActiveBlockIPs(ctx context.Context, now time.Time) ([]string, error) {
	db, err := conn(ctx)
	if err != nil {
		return nil, err
	}

	var ips []string
	if err := db.Model(&domain.BlockEntry{}).
		Where("expires_at IS NULL OR expires_at > ?", now).
		Pluck("ip", &ips).Error; err != nil {
		return nil, err
	}
	return ips, nil
}

// GetBlockEntry fetches the block row for an IP, or ErrBlockNotFound.
func GetBlockEntry(ctx context.Context, ip string) (domain.BlockEntry, error) {
	db, err := conn(ctx)
	if err != nil {
		return domain.BlockEntry{}, err
	}

	var entry domain.BlockEntry
	if err := db.Where("ip = ?", ip).First(&entry).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.BlockEntry{}, ErrBlockNotFound
		}
		return domain.BlockEntry{}, err
	}
	return entry, nil
}

// BlockExists reports whether any block row exists for the IP, expired or not.
func BlockExists(ctx context.Context, ip string) (bool, error) {
	db, err := conn(ctx)
	if err != nil {
		return false, err
	}

	var count int64
	if err := db.Model(&domain.BlockEntry{}).Where("ip = ?", ip).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// UpsertBlockEntry creates the block row or refreshes reason/expiry on the
// existing one. Blocking is idempotent per IP.
func UpsertBlockEntry(ctx context.Context, entry *domain.BlockEntry) error {
	db, err := conn(ctx)
	if err != nil {
		return err
	}

	return db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "ip"}},
		DoUpdates: clause.Assignments(map[string]any{
			"reason":     gorm.Expr("EXCLUDED.reason"),
			"expires_at": gorm.Expr("EXCLUDED.expires_at"),
		}),
	}).Create(entry).Error
}

// DeleteBlockEntry removes the block row for an IP, reporting ErrBlockNotFound
// when no row exists.
func DeleteBlockEntry(ctx context.Context, ip string) error {
	db, err := conn(ctx)
	if err != nil {
		return err
	}

	result := db.Where("ip = ?", ip).Delete(&domain.BlockEntry{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrBlockNotFound
	}
	return nil
}

// PurgeExpiredBlocks physically removes block rows whose expiry has passed.
// Expired rows are already inert; this only reclaims space.
func PurgeExpiredBlocks(ctx context.Context, now time.Time) (int64, error) {
	db, err := conn(ctx)
	if err != nil {
		return 0, err
	}

	result := db.Where("expires_at IS NOT NULL AND expires_at <= ?", now).Delete(&domain.BlockEntry{})
	return result.RowsAffected, result.Error
}

// CountBlocksSince returns total and auto-created block rows newer than the cutoff.
func CountBlocksSince(ctx context.Context, cutoff time.Time) (total int64, auto int64, err error) {
	db, err := conn(ctx)
	if err != nil {
		return 0, 0, err
	}

	if err := db.Model(&domain.BlockEntry{}).
		Where("created_at >= ?", cutoff).
		Count(&total).Error; err != nil {
		return 0, 0, err
	}

	if err := db.Model(&domain.BlockEntry{}).
		Where("created_at >= ? AND reason LIKE ?", cutoff, "Auto-blocked%").
		Count(&auto).Error; err != nil {
		return 0, 0, err
	}

	return total, auto, nil
}
