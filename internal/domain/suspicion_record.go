package domain

import "time"

// Detection reasons. One finding exists per (ip, reason) pair.
const (
	ReasonHighFrequency  = "high_frequency"
	ReasonSensitivePaths = "sensitive_paths"
	ReasonMultipleErrors = "multiple_errors"
	ReasonUnusualPattern = "unusual_pattern"
	ReasonBruteForce     = "brute_force"
)

// Severity levels, lowest to highest.
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// SeverityRank orders severities for comparison; unknown values rank below
// low so they never win an upgrade.
func SeverityRank(severity string) int {
	switch severity {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	default:
		return 0
	}
}

// SuspicionRecord is one detection finding for an IP. Records are keyed by
// (ip, reason); repeated detections refresh the row in place and severity is
// never downgraded.
//
// Evidence keys by reason:
//
//	high_frequency:  request_count, unique_paths, last_request, threshold, time_window
//	sensitive_paths: access_count, sensitive_paths_accessed, unique_path_count, time_window
//	multiple_errors: total_requests, error_requests, error_rate, time_window
type SuspicionRecord struct {
	ID            uint        `gorm:"primarykey" json:"id"`
	IP            string      `gorm:"uniqueIndex:idx_suspicions_ip_reason;not null" json:"ip"`
	Reason        string      `gorm:"uniqueIndex:idx_suspicions_ip_reason;not null" json:"reason"`
	Severity      string      `gorm:"default:medium" json:"severity"`
	RequestCount  int64       `json:"request_count"`
	FirstDetected time.Time   `json:"first_detected"`
	LastDetected  time.Time   `json:"last_detected"`
	IsActive      bool        `gorm:"default:true" json:"is_active"`
	AutoBlocked   bool        `gorm:"default:false" json:"auto_blocked"`
	Evidence      EvidenceMap `gorm:"type:jsonb" json:"evidence"`
}
