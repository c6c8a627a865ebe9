package analysis

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"ipsentry/internal/alert"
	"ipsentry/internal/database"
	"ipsentry/internal/domain"
)

const (
	errorRateFlagThreshold  = 0.5
	errorRateAlertThreshold = 0.8
	errorRateMinRequests    = 10
)

// Summary is the outcome of one analysis pass.
type Summary struct {
	Flagged     int64
	WindowStart time.Time
	WindowEnd   time.Time
}

// Engine runs the periodic anomaly-detection pass: aggregate the trailing
// window, evaluate the enabled rules, upsert findings, and hand auto-block
// decisions to the escalator.
type Engine struct {
	escalator *Escalator
	alerts    alert.Sender
	now       func() time.Time
}

type EngineOption func(*Engine)

func WithAlertSender(alerts alert.Sender) EngineOption {
	return func(e *Engine) {
		e.alerts = alerts
	}
}

func WithEscalator(escalator *Escalator) EngineOption {
	return func(e *Engine) {
		e.escalator = escalator
	}
}

func WithEngineClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = now
	}
}

func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		alerts: alert.LogSender{},
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.escalator == nil {
		e.escalator = NewEscalator(e.alerts)
	}
	return e
}

// RunPass executes one analysis pass with the enabled detection config.
// Rules run concurrently over independently-computed aggregates; per-key
// upserts keep their writes race-free. A failed rule aborts the pass with an
// alert, but findings already upserted stay committed.
func (e *Engine) RunPass(ctx context.Context) (Summary, error) {
	log.Info("Starting anomaly detection pass")

	cfg, err := database.GetEnabledDetectionConfig(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("analysis: load detection config: %w", err)
	}

	windowEnd := e.now()
	windowStart := windowEnd.Add(-cfg.Window())
	summary := Summary{WindowStart: windowStart, WindowEnd: windowEnd}

	sensitivePaths := cfg.SensitivePathList()
	aggregates, err := Aggregate(ctx, windowStart, windowEnd, sensitivePaths)
	if err != nil {
		return summary, fmt.Errorf("analysis: aggregate window: %w", err)
	}

	blockedIPs, err := database.ListActiveBlockIPs(ctx, windowEnd)
	if err != nil {
		return summary, fmt.Errorf("analysis: list blocked ips: %w", err)
	}
	blocked := make(map[string]struct{}, len(blockedIPs))
	for _, ip := range blockedIPs {
		blocked[ip] = struct{}{}
	}

	var flagged atomic.Int64
	group, groupCtx := errgroup.WithContext(ctx)

	if cfg.CheckFrequency {
		group.Go(func() error {
			count, err := e.runFrequencyRule(groupCtx, cfg, aggregates, blocked, windowStart, windowEnd)
			flagged.Add(count)
			return err
		})
	}
	if cfg.CheckSensitivePaths && len(sensitivePaths) > 0 {
		group.Go(func() error {
			count, err := e.runSensitivePathRule(groupCtx, cfg, aggregates, blocked, windowStart, windowEnd)
			flagged.Add(count)
			return err
		})
	}
	if cfg.CheckErrorRate {
		group.Go(func() error {
			count, err := e.runErrorRateRule(groupCtx, cfg, aggregates, windowStart, windowEnd)
			flagged.Add(count)
			return err
		})
	}

	if err := group.Wait(); err != nil {
		log.Error("Anomaly detection pass failed", "error", err)
		e.alerts.Send("Anomaly Detection Pass Failed", err.Error())
		summary.Flagged = flagged.Load()
		return summary, err
	}

	summary.Flagged = flagged.Load()
	log.Info("Anomaly detection pass completed", "flagged", summary.Flagged)
	return summary, nil
}

func (e *Engine) runFrequencyRule(ctx context.Context, cfg domain.DetectionConfig, aggregates []IPAggregate, blocked map[string]struct{}, windowStart, windowEnd time.Time) (int64, error) {
	var flagged int64

	for _, agg := range aggregates {
		if ctx.Err() != nil {
			return flagged, ctx.Err()
		}
		if !frequencyFlagged(agg.RequestCount, cfg.Threshold) {
			continue
		}
		if _, isBlocked := blocked[agg.IP]; isBlocked {
			continue
		}

		record := domain.SuspicionRecord{
			IP:            agg.IP,
			Reason:        domain.ReasonHighFrequency,
			Severity:      cfg.SeverityLevel,
			RequestCount:  agg.RequestCount,
			FirstDetected: windowEnd,
			LastDetected:  windowEnd,
			IsActive:      true,
			Evidence: domain.EvidenceMap{
				"request_count": agg.RequestCount,
				"unique_paths":  agg.DistinctPathCount,
				"last_request":  agg.LastSeen.Format(time.RFC3339),
				"threshold":     cfg.Threshold,
				"time_window":   fmt.Sprintf("%d hour(s)", cfg.WindowHours),
			},
		}
		if err := database.UpsertSuspicion(ctx, &record); err != nil {
			return flagged, fmt.Errorf("frequency rule: upsert %s: %w", agg.IP, err)
		}
		flagged++

		reason := fmt.Sprintf("High frequency: %d requests in %d hour(s)", agg.RequestCount, cfg.WindowHours)
		if _, err := database.AnnotateSuspiciousEvents(ctx, agg.IP, windowStart, windowEnd, reason, false); err != nil {
			log.Warn("Failed to annotate events", "ip", agg.IP, "error", err)
		}

		if cfg.AutoBlock && frequencyAutoBlock(agg.RequestCount, cfg.Threshold) {
			if _, err := e.escalator.Escalate(ctx, agg.IP, domain.ReasonHighFrequency, record.Evidence); err != nil {
				log.Error("Auto-block escalation failed", "ip", agg.IP, "error", err)
			}
		}

		if frequencyAlert(agg.RequestCount, cfg.Threshold) {
			e.alerts.Send(
				fmt.Sprintf("Critical: High Frequency IP Detected - %s", agg.IP),
				fmt.Sprintf(
					"IP %s made %d requests in the last %d hour(s) (threshold: %d).",
					agg.IP, agg.RequestCount, cfg.WindowHours, cfg.Threshold,
				),
			)
		}
	}

	log.Info("Frequency rule finished", "flagged", flagged)
	return flagged, nil
}

func (e *Engine) runSensitivePathRule(ctx context.Context, cfg domain.DetectionConfig, aggregates []IPAggregate, blocked map[string]struct{}, windowStart, windowEnd time.Time) (int64, error) {
	var flagged int64
	rules := cfg.SensitivePathList()

	for _, agg := range aggregates {
		if ctx.Err() != nil {
			return flagged, ctx.Err()
		}
		if agg.SensitiveHitCount == 0 {
			continue
		}
		if _, isBlocked := blocked[agg.IP]; isBlocked {
			continue
		}

		severity := sensitiveSeverity(agg.SensitiveHitCount, cfg.SeverityLevel)

		record := domain.SuspicionRecord{
			IP:            agg.IP,
			Reason:        domain.ReasonSensitivePaths,
			Severity:      severity,
			RequestCount:  agg.SensitiveHitCount,
			FirstDetected: windowEnd,
			LastDetected:  windowEnd,
			IsActive:      true,
			Evidence: domain.EvidenceMap{
				"access_count":             agg.SensitiveHitCount,
				"sensitive_paths_accessed": strings.Join(agg.SensitiveSample, ", "),
				"unique_path_count":        agg.SensitivePathsTouched,
				"time_window":              fmt.Sprintf("%d hour(s)", cfg.WindowHours),
			},
		}
		if err := database.UpsertSuspicion(ctx, &record); err != nil {
			return flagged, fmt.Errorf("sensitive-path rule: upsert %s: %w", agg.IP, err)
		}
		flagged++

		reason := fmt.Sprintf("Sensitive path access: %d attempts", agg.SensitiveHitCount)
		if _, err := database.AnnotateSensitiveEvents(ctx, agg.IP, windowStart, windowEnd, reason, rules); err != nil {
			log.Warn("Failed to annotate events", "ip", agg.IP, "error", err)
		}

		if cfg.AutoBlock && sensitiveAutoBlock(agg.SensitivePathsTouched) {
			if _, err := e.escalator.Escalate(ctx, agg.IP, domain.ReasonSensitivePaths, record.Evidence); err != nil {
				log.Error("Auto-block escalation failed", "ip", agg.IP, "error", err)
			}
		}

		if sensitiveAlert(agg.SensitivePathsTouched) {
			e.alerts.Send(
				fmt.Sprintf("Alert: Multiple Sensitive Path Access - %s", agg.IP),
				fmt.Sprintf(
					"IP %s accessed %d different sensitive paths (%d total attempts).\n\nPaths: %s",
					agg.IP, agg.SensitivePathsTouched, agg.SensitiveHitCount,
					strings.Join(agg.SensitiveSample, ", "),
				),
			)
		}
	}

	log.Info("Sensitive-path rule finished", "flagged", flagged)
	return flagged, nil
}

// runErrorRateRule intentionally has no already-blocked skip; the original
// behavior keeps error findings current even for blocked IPs.
func (e *Engine) runErrorRateRule(ctx context.Context, cfg domain.DetectionConfig, aggregates []IPAggregate, windowStart, windowEnd time.Time) (int64, error) {
	var flagged int64

	for _, agg := range aggregates {
		if ctx.Err() != nil {
			return flagged, ctx.Err()
		}
		rate := agg.ErrorRate()
		if !errorRateFlagged(agg.RequestCount, rate) {
			continue
		}

		severity := errorRateSeverity(rate)

		record := domain.SuspicionRecord{
			IP:            agg.IP,
			Reason:        domain.ReasonMultipleErrors,
			Severity:      severity,
			RequestCount:  agg.RequestCount,
			FirstDetected: windowEnd,
			LastDetected:  windowEnd,
			IsActive:      true,
			Evidence: domain.EvidenceMap{
				"total_requests": agg.RequestCount,
				"error_requests": agg.ErrorCount,
				"error_rate":     roundRate(rate * 100),
				"time_window":    fmt.Sprintf("%d hour(s)", cfg.WindowHours),
			},
		}
		if err := database.UpsertSuspicion(ctx, &record); err != nil {
			return flagged, fmt.Errorf("error-rate rule: upsert %s: %w", agg.IP, err)
		}
		flagged++

		reason := fmt.Sprintf("High error rate: %.1f%%", rate*100)
		if _, err := database.AnnotateSuspiciousEvents(ctx, agg.IP, windowStart, windowEnd, reason, true); err != nil {
			log.Warn("Failed to annotate events", "ip", agg.IP, "error", err)
		}

		if errorRateAlerts(rate) {
			e.alerts.Send(
				fmt.Sprintf("Alert: High Error Rate - %s", agg.IP),
				fmt.Sprintf(
					"IP %s has %.1f%% error rate (%d/%d requests).",
					agg.IP, rate*100, agg.ErrorCount, agg.RequestCount,
				),
			)
		}
	}

	log.Info("Error-rate rule finished", "flagged", flagged)
	return flagged, nil
}

func roundRate(rate float64) float64 {
	return float64(int(rate*100+0.5)) / 100
}
