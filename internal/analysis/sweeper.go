package analysis

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"ipsentry/internal/database"
)

// Retention cutoffs for suspicion findings.
const (
	inactiveRetention = 7 * 24 * time.Hour
	staleRetention    = 30 * 24 * time.Hour
)

// SweepResult reports what one retention sweep did.
type SweepResult struct {
	Deleted     int64
	Deactivated int64
}

// Sweep applies the two-stage retention policy to suspicion findings:
// inactive records idle past seven days are deleted, active records idle past
// thirty days are deactivated (and picked up by a later sweep's delete stage).
func Sweep(ctx context.Context, now time.Time) (SweepResult, error) {
	var result SweepResult

	deleted, err := database.DeleteInactiveSuspicionsBefore(ctx, now.Add(-inactiveRetention))
	if err != nil {
		return result, err
	}
	result.Deleted = deleted

	deactivated, err := database.DeactivateStaleSuspicions(ctx, now.Add(-staleRetention))
	if err != nil {
		return result, err
	}
	result.Deactivated = deactivated

	log.Info("Suspicion sweep completed", "deleted", result.Deleted, "deactivated", result.Deactivated)
	return result, nil
}
