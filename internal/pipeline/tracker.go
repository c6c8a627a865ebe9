package pipeline

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"ipsentry/internal/database"
	"ipsentry/internal/domain"
	"ipsentry/internal/geolocation"
)

// Blocklist answers whether an IP is currently blocked. Implementations must
// be safe to call on every request without I/O.
type Blocklist interface {
	IsBlocked(ip string) bool
}

// Recorder persists one request event.
type Recorder interface {
	Record(ctx context.Context, event *domain.RequestEvent) error
}

// Resolver supplies geolocation enrichment for recorded events.
type Resolver interface {
	Resolve(ctx context.Context, ip string) geolocation.Result
}

type databaseRecorder struct{}

func (databaseRecorder) Record(ctx context.Context, event *domain.RequestEvent) error {
	return database.AppendRequestEvent(ctx, event)
}

// Tracker is the request-path pipeline: check the blocklist first, then record
// the request after it completes. Recording is strictly best-effort; a storage
// failure never affects the response.
type Tracker struct {
	blocklist Blocklist
	recorder  Recorder
	resolver  Resolver
	now       func() time.Time
}

type TrackerOption func(*Tracker)

func WithRecorder(recorder Recorder) TrackerOption {
	return func(t *Tracker) {
		t.recorder = recorder
	}
}

// WithGeoResolver enables geolocation enrichment on recorded events. Without
// it, events are stored bare and the backfill job fills them in later.
func WithGeoResolver(resolver Resolver) TrackerOption {
	return func(t *Tracker) {
		t.resolver = resolver
	}
}

func WithTrackerClock(now func() time.Time) TrackerOption {
	return func(t *Tracker) {
		t.now = now
	}
}

func NewTracker(blocklist Blocklist, opts ...TrackerOption) *Tracker {
	t := &Tracker{
		blocklist: blocklist,
		recorder:  databaseRecorder{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Blocked reports whether the request must be rejected. Called before any
// other work on the request.
func (t *Tracker) Blocked(ip string) bool {
	return t.blocklist != nil && t.blocklist.IsBlocked(ip)
}

// Record persists the completed request. On failure it retries once with the
// minimal field set so the event is not lost entirely.
func (t *Tracker) Record(ctx context.Context, ip, path string, statusCode int) {
	event := domain.RequestEvent{
		IP:        ip,
		Path:      path,
		Timestamp: t.now(),
	}
	if statusCode > 0 {
		event.StatusCode = &statusCode
	}

	if t.resolver != nil {
		result := t.resolver.Resolve(ctx, ip)
		if !result.Failed() {
			event.Country = result.Country
			event.CountryCode = result.CountryCode
			event.City = result.City
			event.Region = result.Region
			event.Latitude = result.Latitude
			event.Longitude = result.Longitude
			event.Timezone = result.Timezone
			event.ISP = result.ISP
			event.GeoSource = result.Source
		}
	}

	if err := t.recorder.Record(ctx, &event); err != nil {
		log.Warn("Request event write failed, retrying minimal", "ip", ip, "error", err)
		minimal := event.Minimal()
		if err := t.recorder.Record(ctx, &minimal); err != nil {
			log.Error("Request event minimal write failed", "ip", ip, "error", err)
		}
	}
}

// ClientIP extracts the caller's IP: the first X-Forwarded-For entry when the
// header is present, otherwise the connection's remote address.
func ClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first := forwarded
		if idx := strings.IndexByte(forwarded, ','); idx >= 0 {
			first = forwarded[:idx]
		}
		return strings.TrimSpace(first)
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
