package domain

import "time"

// BlockEntry is one blocked IP. A nil ExpiresAt means the block is permanent;
// an expired row stays in place but no longer has any effect until purged.
type BlockEntry struct {
	ID        uint       `gorm:"primarykey" json:"id"`
	IP        string     `gorm:"uniqueIndex;not null" json:"ip"`
	Reason    string     `json:"reason"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Active reports whether the block is in effect at the given instant.
func (b BlockEntry) Active(now time.Time) bool {
	return b.ExpiresAt == nil || b.ExpiresAt.After(now)
}
