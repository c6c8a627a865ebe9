package config

import (
	"sync"
	"sync/atomic"
	"time"
)

// Timer expresses an interval in settings.json as separate units.
type Timer struct {
	Days    uint32 `json:"days"`
	Hours   uint32 `json:"hours"`
	Minutes uint32 `json:"minutes"`
	Seconds uint32 `json:"seconds"`
}

// IsZero reports whether no unit is set, meaning "use the default".
func (t Timer) IsZero() bool {
	return t.Days == 0 && t.Hours == 0 && t.Minutes == 0 && t.Seconds == 0
}

// Duration converts the timer to a duration, enforcing a one second minimum.
func (t Timer) Duration() time.Duration {
	total := time.Duration(t.Days)*24*time.Hour +
		time.Duration(t.Hours)*time.Hour +
		time.Duration(t.Minutes)*time.Minute +
		time.Duration(t.Seconds)*time.Second

	if total < time.Second {
		total = time.Second
	}
	return total
}

const (
	defaultRegistryRefreshInterval = time.Minute
	defaultDetectionInterval       = time.Hour
	defaultSweepInterval           = 24 * time.Hour
	defaultReportInterval          = 7 * 24 * time.Hour
	defaultGeoMaintenanceInterval  = 24 * time.Hour
)

// intervalSetting is an atomically readable interval with change listeners.
// Routines subscribe once and reset their tickers when a new value arrives.
type intervalSetting struct {
	value     atomic.Value
	listeners []chan time.Duration
	mu        sync.Mutex
	fallback  time.Duration
}

func newIntervalSetting(fallback time.Duration) *intervalSetting {
	s := &intervalSetting{fallback: fallback}
	s.value.Store(fallback)
	return s
}

func (s *intervalSetting) get() time.Duration {
	return s.value.Load().(time.Duration)
}

func (s *intervalSetting) set(interval time.Duration) {
	if interval <= 0 {
		interval = s.fallback
	}
	if s.get() == interval {
		return
	}

	s.value.Store(interval)

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.listeners {
		select {
		case ch <- interval:
		default:
		}
	}
}

func (s *intervalSetting) updates() <-chan time.Duration {
	ch := make(chan time.Duration, 1)
	s.mu.Lock()
	s.listeners = append(s.listeners, ch)
	s.mu.Unlock()

	ch <- s.get()
	return ch
}

func (s *intervalSetting) fromTimer(timer Timer) {
	if timer.IsZero() {
		s.set(s.fallback)
		return
	}
	s.set(timer.Duration())
}

var (
	registryRefreshInterval = newIntervalSetting(defaultRegistryRefreshInterval)
	detectionInterval       = newIntervalSetting(defaultDetectionInterval)
	sweepInterval           = newIntervalSetting(defaultSweepInterval)
	reportInterval          = newIntervalSetting(defaultReportInterval)
	geoMaintenanceInterval  = newIntervalSetting(defaultGeoMaintenanceInterval)
)

// SetIntervals recomputes every routine interval from the current config.
func SetIntervals() {
	cfg := GetConfig()
	registryRefreshInterval.fromTimer(cfg.Registry.RefreshTimer)
	detectionInterval.fromTimer(cfg.Analysis.DetectionTimer)
	sweepInterval.fromTimer(cfg.Analysis.SweepTimer)
	reportInterval.fromTimer(cfg.Analysis.ReportTimer)
	geoMaintenanceInterval.fromTimer(cfg.Geolocation.MaintenanceTimer)
}

func GetRegistryRefreshInterval() time.Duration { return registryRefreshInterval.get() }
func GetDetectionInterval() time.Duration       { return detectionInterval.get() }
func GetSweepInterval() time.Duration           { return sweepInterval.get() }
func GetReportInterval() time.Duration          { return reportInterval.get() }
func GetGeoMaintenanceInterval() time.Duration  { return geoMaintenanceInterval.get() }

func RegistryRefreshIntervalUpdates() <-chan time.Duration { return registryRefreshInterval.updates() }
func DetectionIntervalUpdates() <-chan time.Duration       { return detectionInterval.updates() }
func SweepIntervalUpdates() <-chan time.Duration           { return sweepInterval.updates() }
func ReportIntervalUpdates() <-chan time.Duration          { return reportInterval.updates() }
func GeoMaintenanceIntervalUpdates() <-chan time.Duration  { return geoMaintenanceInterval.updates() }

// GeoCacheTTL returns the shared TTL for both geolocation cache tiers.
func GeoCacheTTL() time.Duration {
	hours := GetConfig().Geolocation.CacheTTLHours
	if hours == 0 {
		hours = 24
	}
	return time.Duration(hours) * time.Hour
}

// GeoLookupTimeout returns the per-provider call timeout.
func GeoLookupTimeout() time.Duration {
	seconds := GetConfig().Geolocation.LookupTimeoutSeconds
	if seconds == 0 {
		seconds = 3
	}
	return time.Duration(seconds) * time.Second
}
