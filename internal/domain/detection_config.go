package domain

import (
	"strings"
	"time"
)

// DetectionConfig tunes the anomaly-detection pass. Exactly one enabled row
// drives the engine; the rest are kept as inactive presets.
type DetectionConfig struct {
	ID      uint   `gorm:"primarykey" json:"id"`
	Name    string `gorm:"uniqueIndex;not null" json:"name"`
	Enabled bool   `gorm:"default:true" json:"enabled"`

	// Threshold is the request count an IP must exceed (strictly) inside the
	// window before the frequency rule flags it.
	Threshold   int64 `json:"threshold"`
	WindowHours int   `json:"window_hours"`

	// SensitivePaths is a comma-separated list. Entries starting with "/" match
	// as path prefixes, the rest as substrings.
	SensitivePaths string `json:"sensitive_paths"`

	CheckFrequency      bool `gorm:"default:true" json:"check_frequency"`
	CheckSensitivePaths bool `gorm:"default:true" json:"check_sensitive_paths"`
	CheckErrorRate      bool `gorm:"default:true" json:"check_error_rate"`

	AutoBlock     bool   `gorm:"default:false" json:"auto_block"`
	SeverityLevel string `gorm:"default:medium" json:"severity_level"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SensitivePathList splits the configured paths, trimming whitespace and
// dropping empty entries.
func (c DetectionConfig) SensitivePathList() []string {
	if c.SensitivePaths == "" {
		return nil
	}

	parts := strings.Split(c.SensitivePaths, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// Window returns the detection window as a duration, never below one hour.
func (c DetectionConfig) Window() time.Duration {
	hours := c.WindowHours
	if hours < 1 {
		hours = 1
	}
	return time.Duration(hours) * time.Hour
}

// DefaultDetectionConfig is the configuration synthesized when no enabled row
// exists.
func DefaultDetectionConfig() DetectionConfig {
	return DetectionConfig{
		Name:                "default",
		Enabled:             true,
		Threshold:           100,
		WindowHours:         1,
		SensitivePaths:      "/admin,/login,/wp-login.php,/phpmyadmin,/config,.env",
		CheckFrequency:      true,
		CheckSensitivePaths: true,
		CheckErrorRate:      true,
		AutoBlock:           false,
		SeverityLevel:       SeverityMedium,
	}
}
