package domain

import "time"

// GeoCacheEntry is the persistent tier of the geolocation cache, one row per
// IP. Failed lookups are never written here.
type GeoCacheEntry struct {
	ID          uint       `gorm:"primarykey" json:"id"`
	IP          string     `gorm:"uniqueIndex;not null" json:"ip"`
	Country     string     `json:"country"`
	CountryCode string     `json:"country_code"`
	City        string     `json:"city"`
	Region      string     `json:"region"`
	Latitude    float64    `json:"latitude"`
	Longitude   float64    `json:"longitude"`
	Timezone    string     `json:"timezone"`
	ISP         string     `json:"isp"`
	Source      string     `json:"source"`
	UpdatedAt   time.Time  `json:"updated_at"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

// Expired reports whether the row has aged out at the given instant.
func (e GeoCacheEntry) Expired(now time.Time) bool {
	return e.ExpiresAt != nil && !e.ExpiresAt.After(now)
}
