package blocklist

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"ipsentry/internal/config"
	"ipsentry/internal/database"
	"ipsentry/internal/domain"
)

// ErrAlreadyBlocked is returned by Block when the IP already has a block row
// and the caller did not pass force.
var ErrAlreadyBlocked = errors.New("ip is already blocked")

// ErrInvalidIP is returned for input that does not parse as an IP address.
var ErrInvalidIP = errors.New("invalid ip address")

// ListFilter selects which block rows List returns.
type ListFilter string

const (
	FilterAll     ListFilter = "all"
	FilterActive  ListFilter = "active"
	FilterExpired ListFilter = "expired"
)

type atomicSet struct {
	val atomic.Value
}

func (a *atomicSet) Load() map[string]struct{} {
	raw, ok := a.val.Load().(map[string]struct{})
	if !ok || raw == nil {
		empty := make(map[string]struct{})
		a.val.Store(empty)
		return empty
	}
	return raw
}

func (a *atomicSet) Store(m map[string]struct{}) {
	a.val.Store(m)
}

// Registry is the authoritative blocked-IP set plus an in-process snapshot of
// the currently active entries. IsBlocked reads the snapshot only, so the
// request-serving path never touches the database; the snapshot is replaced
// atomically by the refresh loop.
type Registry struct {
	snapshot atomicSet
	loader   func(ctx context.Context, now time.Time) ([]string, error)
	now      func() time.Time
}

type Option func(*Registry)

// WithLoader overrides the snapshot source (used by tests).
func WithLoader(loader func(ctx context.Context, now time.Time) ([]string, error)) Option {
	return func(r *Registry) {
		r.loader = loader
	}
}

// WithClock overrides the registry clock (used by tests).
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		loader: database.ListActiveBlockIPs,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.snapshot.Store(make(map[string]struct{}))
	return r
}

// IsBlocked checks the in-process snapshot for the given IP. No I/O.
func (r *Registry) IsBlocked(ip string) bool {
	normalized := normalizeIP(ip)
	if normalized == "" {
		return false
	}
	_, found := r.snapshot.Load()[normalized]
	return found
}

// Refresh reloads the snapshot of active block IPs from the store.
func (r *Registry) Refresh(ctx context.Context) error {
	ips, err := r.loader(ctx, r.now())
	if err != nil {
		return err
	}

	next := make(map[string]struct{}, len(ips))
	for _, ip := range ips {
		if normalized := normalizeIP(ip); normalized != "" {
			next[normalized] = struct{}{}
		}
	}
	r.snapshot.Store(next)
	return nil
}

// StartRefreshRoutine runs the snapshot refresh loop until the context is
// done. Every process keeps its own snapshot, so no leader lock is involved;
// the interval follows the registry settings dynamically.
func (r *Registry) StartRefreshRoutine(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	interval := config.GetRegistryRefreshInterval()
	updates := config.RegistryRefreshIntervalUpdates()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.refreshOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.refreshOnce(ctx)
		case newInterval := <-updates:
			if newInterval <= 0 || newInterval == interval {
				continue
			}
			drainTicker(ticker)
			interval = newInterval
			ticker.Reset(interval)
		}
	}
}

func (r *Registry) refreshOnce(ctx context.Context) {
	if err := r.Refresh(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		log.Error("Block registry refresh failed", "error", err)
		return
	}
	log.Debug("Block registry refreshed", "blocked_ips", len(r.snapshot.Load()))
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

// Block creates or updates the block row for an IP. Without force an existing
// row is left untouched and ErrAlreadyBlocked is returned, so a manual block
// cannot silently overwrite an earlier one.
func (r *Registry) Block(ctx context.Context, ip, reason string, expiresAt *time.Time, force bool) (domain.BlockEntry, error) {
	normalized := normalizeIP(ip)
	if normalized == "" {
		return domain.BlockEntry{}, ErrInvalidIP
	}

	existing, err := database.GetBlockEntry(ctx, normalized)
	switch {
	case err == nil:
		if !force {
			return existing, ErrAlreadyBlocked
		}
		if reason == "" {
			reason = existing.Reason
		}
	case errors.Is(err, database.ErrBlockNotFound):
	default:
		return domain.BlockEntry{}, err
	}

	entry := domain.BlockEntry{
		IP:        normalized,
		Reason:    reason,
		ExpiresAt: expiresAt,
	}
	if err := database.UpsertBlockEntry(ctx, &entry); err != nil {
		return domain.BlockEntry{}, err
	}

	// Pull the change into the local snapshot ahead of the next tick.
	if err := r.Refresh(ctx); err != nil {
		log.Warn("Block registry refresh after block failed", "error", err)
	}

	return database.GetBlockEntry(ctx, normalized)
}

// Unblock removes the block row for an IP; database.ErrBlockNotFound when
// the IP was never blocked.
func (r *Registry) Unblock(ctx context.Context, ip string) error {
	normalized := normalizeIP(ip)
	if normalized == "" {
		return ErrInvalidIP
	}

	if err := database.DeleteBlockEntry(ctx, normalized); err != nil {
		return err
	}

	if err := r.Refresh(ctx); err != nil {
		log.Warn("Block registry refresh after unblock failed", "error", err)
	}
	return nil
}

// List returns block rows matching the filter, judged against the registry
// clock.
func (r *Registry) List(ctx context.Context, filter ListFilter) ([]domain.BlockEntry, error) {
	entries, err := database.ListBlockEntries(ctx)
	if err != nil {
		return nil, err
	}

	if filter == FilterAll || filter == "" {
		return entries, nil
	}

	now := r.now()
	out := make([]domain.BlockEntry, 0, len(entries))
	for _, entry := range entries {
		active := entry.Active(now)
		if (filter == FilterActive && active) || (filter == FilterExpired && !active) {
			out = append(out, entry)
		}
	}
	return out, nil
}

func normalizeIP(raw string) string {
	parsed := net.ParseIP(raw)
	if parsed == nil {
		return ""
	}
	if v4 := parsed.To4(); v4 != nil {
		return v4.String()
	}
	return parsed.String()
}
