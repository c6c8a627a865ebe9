package analysis

import "ipsentry/internal/domain"

// Rule boundaries. All comparisons are strictly greater-than: an IP sitting
// exactly on a threshold is never flagged.

func frequencyFlagged(count, threshold int64) bool {
	return count > threshold
}

func frequencyAutoBlock(count, threshold int64) bool {
	return count > threshold*2
}

func frequencyAlert(count, threshold int64) bool {
	return count > threshold*5
}

func sensitiveSeverity(hits int64, base string) string {
	if hits > 10 {
		return domain.SeverityHigh
	}
	return base
}

func sensitiveAutoBlock(pathsTouched int) bool {
	return pathsTouched > 2
}

func sensitiveAlert(pathsTouched int) bool {
	return pathsTouched > 3
}

func errorRateFlagged(total int64, rate float64) bool {
	return total > errorRateMinRequests && rate > errorRateFlagThreshold
}

func errorRateSeverity(rate float64) string {
	if rate > errorRateAlertThreshold {
		return domain.SeverityHigh
	}
	return domain.SeverityMedium
}

func errorRateAlerts(rate float64) bool {
	return rate > errorRateAlertThreshold
}
