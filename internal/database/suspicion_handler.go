package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ipsentry/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// severityRankExpr mirrors domain.SeverityRank in SQL. Spelled as a plain
// CASE ladder so the upsert works on postgres and the sqlite test databases
// alike.
const severityRankExpr = `CASE %s WHEN 'low' THEN 1 WHEN 'medium' THEN 2 WHEN 'high' THEN 3 WHEN 'critical' THEN 4 ELSE 0 END`

// severityUpgradeExpr keeps the stored severity when the incoming one ranks
// lower; a rule never downgrades an existing record.
var severityUpgradeExpr = fmt.Sprintf(
	`CASE WHEN (%s) > (%s) THEN EXCLUDED.severity ELSE suspicion_records.severity END`,
	fmt.Sprintf(severityRankExpr, "EXCLUDED.severity"),
	fmt.Sprintf(severityRankExpr, "suspicion_records.severity"),
)

// UpsertSuspicion creates or refreshes the finding keyed by (ip, reason) in a
// single conflict-target statement, so concurrent rules never lose updates.
// first_detected is set on insert only and never touched afterwards.
func UpsertSuspicion(ctx context.Context, record *domain.SuspicionRecord) error {
	db, err := conn(ctx)
	if err != nil {
		return err
	}

	return db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "ip"}, {Name: "reason"}},
		DoUpdates: clause.Assignments(map[string]any{
			"severity":      gorm.Expr(severityUpgradeExpr),
			"request_count": gorm.Expr("EXCLUDED.request_count"),
			"last_detected": gorm.Expr("EXCLUDED.last_detected"),
			"evidence":      gorm.Expr("EXCLUDED.evidence"),
			"is_active":     true,
			"auto_blocked":  gorm.Expr("suspicion_records.auto_blocked OR EXCLUDED.auto_blocked"),
		}),
	}).Create(record).Error
}

// GetSuspicion fetches the finding for (ip, reason).
func GetSuspicion(ctx context.Context, ip, reason string) (domain.SuspicionRecord, error) {
	db, err := conn(ctx)
	if err != nil {
		return domain.SuspicionRecord{}, err
	}

	var record domain.SuspicionRecord
	if err := db.Where("ip = ? AND reason = ?", ip, reason).First(&record).Error; err != nil {
		return domain.SuspicionRecord{}, err
	}
	return record, nil
}

// ListSuspicionsByIP returns every finding for an IP, newest detection first.
func ListSuspicionsByIP(ctx context.Context, ip string) ([]domain.SuspicionRecord, error) {
	db, err := conn(ctx)
	if err != nil {
		return nil, err
	}

	var records []domain.SuspicionRecord
	if err := db.Where("ip = ?", ip).Order("last_detected DESC").Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// MarkSuspicionAutoBlocked flips the auto_blocked flag on an existing finding.
func MarkSuspicionAutoBlocked(ctx context.Context, ip, reason string) error {
	db, err := conn(ctx)
	if err != nil {
		return err
	}

	result := db.Model(&domain.SuspicionRecord{}).
		Where("ip = ? AND reason = ?", ip, reason).
		Update("auto_blocked", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errors.New("suspicion record not found")
	}
	return nil
}

// DeleteInactiveSuspicionsBefore removes resolved findings older than the cutoff.
func DeleteInactiveSuspicionsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	db, err := conn(ctx)
	if err != nil {
		return 0, err
	}

	result := db.Where("is_active = ? AND last_detected < ?", false, cutoff).
		Delete(&domain.SuspicionRecord{})
	return result.RowsAffected, result.Error
}

// DeactivateStaleSuspicions flips is_active off on findings idle past the
// cutoff, keeping the rows for one more retention cycle.
func DeactivateStaleSuspicions(ctx context.Context, cutoff time.Time) (int64, error) {
	db, err := conn(ctx)
	if err != nil {
		return 0, err
	}

	result := db.Model(&domain.SuspicionRecord{}).
		Where("is_active = ? AND last_detected < ?", true, cutoff).
		Update("is_active", false)
	return result.RowsAffected, result.Error
}

// CountSuspicionsSince returns findings first detected at or after the cutoff.
func CountSuspicionsSince(ctx context.Context, cutoff time.Time) (int64, error) {
	db, err := conn(ctx)
	if err != nil {
		return 0, err
	}

	var count int64
	if err := db.Model(&domain.SuspicionRecord{}).
		Where("first_detected >= ?", cutoff).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// TopSuspicionsSince returns the highest-volume findings first detected at or
// after the cutoff.
func TopSuspicionsSince(ctx context.Context, cutoff time.Time, limit int) ([]domain.SuspicionRecord, error) {
	db, err := conn(ctx)
	if err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = 10
	}

	var records []domain.SuspicionRecord
	if err := db.Where("first_detected >= ?", cutoff).
		Order("request_count DESC").
		Limit(limit).
		Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}
