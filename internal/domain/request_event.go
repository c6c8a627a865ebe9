package domain

import "time"

// RequestEvent is one observed HTTP request. Rows are append-only history;
// analysis only ever flips the suspicion annotation, never rewrites facts.
type RequestEvent struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	IP        string    `gorm:"index;not null" json:"ip"`
	Path      string    `gorm:"not null" json:"path"`
	Timestamp time.Time `gorm:"index;not null" json:"timestamp"`

	// StatusCode is nil when the response outcome was never observed.
	StatusCode *int `json:"status_code,omitempty"`

	// Geolocation enrichment, filled best-effort at record time or by the
	// backfill job. GeoSource names the tier or provider that answered.
	Country     string  `json:"country,omitempty"`
	CountryCode string  `json:"country_code,omitempty"`
	City        string  `json:"city,omitempty"`
	Region      string  `json:"region,omitempty"`
	Latitude    float64 `json:"latitude,omitempty"`
	Longitude   float64 `json:"longitude,omitempty"`
	Timezone    string  `json:"timezone,omitempty"`
	ISP         string  `json:"isp,omitempty"`
	GeoSource   string  `json:"geo_source,omitempty"`

	IsSuspicious  bool   `gorm:"default:false" json:"is_suspicious"`
	AnomalyReason string `json:"anomaly_reason,omitempty"`
}

// IsError reports whether the event recorded a 4xx or 5xx response.
// Events without a status code are never errors.
func (e RequestEvent) IsError() bool {
	return e.StatusCode != nil && *e.StatusCode >= 400
}

// Minimal strips the event down to the fields a degraded write can always
// supply. Used as the fallback when the full insert fails on the serving path.
func (e RequestEvent) Minimal() RequestEvent {
	return RequestEvent{
		IP:        e.IP,
		Path:      e.Path,
		Timestamp: e.Timestamp,
	}
}
