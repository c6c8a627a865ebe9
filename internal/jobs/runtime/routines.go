package runtime

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"

	"ipsentry/internal/alert"
	"ipsentry/internal/analysis"
	"ipsentry/internal/config"
	"ipsentry/internal/support"
)

// Leadership lock keys. One leader per job across all processes sharing the
// database.
const (
	detectionLockKey = "ipsentry:leader:anomaly_detection"
	sweepLockKey     = "ipsentry:leader:suspicion_sweep"
	reportLockKey    = "ipsentry:leader:activity_report"
)

// StartAnomalyDetectionRoutine runs the periodic anomaly-detection pass while
// this process holds the detection leadership lock.
func StartAnomalyDetectionRoutine(ctx context.Context, engine *analysis.Engine) {
	go leaderLoop(ctx, detectionLockKey, config.GetDetectionInterval, config.DetectionIntervalUpdates,
		func(jobCtx context.Context) {
			if _, err := engine.RunPass(jobCtx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("Anomaly detection run failed", "error", err)
			}
		})
}

// StartSuspicionSweepRoutine applies the suspicion retention policy on the
// sweep interval.
func StartSuspicionSweepRoutine(ctx context.Context) {
	go leaderLoop(ctx, sweepLockKey, config.GetSweepInterval, config.SweepIntervalUpdates,
		func(jobCtx context.Context) {
			if _, err := analysis.Sweep(jobCtx, time.Now()); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("Suspicion sweep failed", "error", err)
			}
		})
}

// StartActivityReportRoutine sends the periodic activity digest through the
// alert sender.
func StartActivityReportRoutine(ctx context.Context, alerts alert.Sender) {
	go leaderLoop(ctx, reportLockKey, config.GetReportInterval, config.ReportIntervalUpdates,
		func(jobCtx context.Context) {
			since := time.Now().Add(-config.GetReportInterval())
			report, err := analysis.BuildActivityReport(jobCtx, since)
			if err != nil {
				if !errors.Is(err, context.Canceled) {
					log.Error("Activity report failed", "error", err)
				}
				return
			}
			alerts.Send("Activity Report", report.Render())
		})
}

// leaderLoop holds the leadership lock and runs job on the interval, following
// interval changes from settings without restarting the routine.
func leaderLoop(ctx context.Context, lockKey string, getInterval func() time.Duration, subscribe func() <-chan time.Duration, job func(context.Context)) {
	err := support.RunWithLeader(ctx, lockKey, support.DefaultLeadershipTTL, func(leaderCtx context.Context) {
		interval := getInterval()
		updates := subscribe()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-leaderCtx.Done():
				return
			case <-ticker.C:
				job(leaderCtx)
			case newInterval := <-updates:
				if newInterval <= 0 || newInterval == interval {
					continue
				}
				drainTicker(ticker)
				interval = newInterval
				ticker.Reset(interval)
			}
		}
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error("Leader routine exited", "lock", lockKey, "error", err)
	}
}

func drainTicker(ticker *time.Ticker) {
	for {
		select {
		case <-ticker.C:
		default:
			return
		}
	}
}
