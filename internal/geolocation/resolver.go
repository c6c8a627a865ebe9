package geolocation

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"

	"ipsentry/internal/config"
	"ipsentry/internal/database"
	"ipsentry/internal/domain"
)

// Result sources.
const (
	SourcePrivate     = "private"
	SourceMemoryCache = "memory_cache"
	SourceCache       = "cache"
	SourceFailed      = "failed"
)

// Result is the outcome of a resolution. Source names the tier (or provider)
// that answered; a Failed result carries the Unknown sentinel fields and is
// never cached.
type Result struct {
	Location
	Source string
}

// Failed reports whether every provider failed for this lookup.
func (r Result) Failed() bool {
	return r.Source == SourceFailed
}

func failedResult() Result {
	return Result{
		Location: Location{Country: "Unknown", City: "Unknown"},
		Source:   SourceFailed,
	}
}

// Store is the persistent cache tier.
type Store interface {
	Get(ctx context.Context, ip string, now time.Time) (domain.GeoCacheEntry, error)
	Upsert(ctx context.Context, entry *domain.GeoCacheEntry) error
}

type databaseStore struct{}

func (databaseStore) Get(ctx context.Context, ip string, now time.Time) (domain.GeoCacheEntry, error) {
	return database.GetGeoCacheEntry(ctx, ip, now)
}

func (databaseStore) Upsert(ctx context.Context, entry *domain.GeoCacheEntry) error {
	return database.UpsertGeoCacheEntry(ctx, entry)
}

type memoryEntry struct {
	loc     Location
	source  string
	expires time.Time
}

// Resolver answers IP geolocation lookups through three tiers: an in-process
// cache, the persistent geocache table, then the ordered provider list.
// Concurrent cold lookups for the same IP are coalesced through singleflight;
// duplicate provider calls in the remaining races are tolerated.
type Resolver struct {
	providers []Provider
	store     Store
	ttl       time.Duration
	now       func() time.Time

	memory sync.Map
	group  singleflight.Group
}

type ResolverOption func(*Resolver)

func WithProviders(providers ...Provider) ResolverOption {
	return func(r *Resolver) {
		r.providers = providers
	}
}

func WithStore(store Store) ResolverOption {
	return func(r *Resolver) {
		r.store = store
	}
}

func WithTTL(ttl time.Duration) ResolverOption {
	return func(r *Resolver) {
		r.ttl = ttl
	}
}

func WithResolverClock(now func() time.Time) ResolverOption {
	return func(r *Resolver) {
		r.now = now
	}
}

func NewResolver(opts ...ResolverOption) *Resolver {
	r := &Resolver{
		store: databaseStore{},
		ttl:   24 * time.Hour,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewResolverFromConfig builds the resolver from the geolocation settings:
// provider order, cache TTL, and per-call timeout.
func NewResolverFromConfig() *Resolver {
	cfg := config.GetConfig().Geolocation
	timeout := config.GeoLookupTimeout()

	var providers []Provider
	for _, name := range cfg.Providers {
		switch name {
		case "geolite":
			if cfg.GeoLiteDBPath == "" {
				continue
			}
			provider, err := NewGeoLiteProvider(cfg.GeoLiteDBPath)
			if err != nil {
				log.Warn("GeoLite provider unavailable", "path", cfg.GeoLiteDBPath, "error", err)
				continue
			}
			providers = append(providers, provider)
		case "ip-api":
			providers = append(providers, NewIPAPIProvider(timeout))
		case "ipapi":
			providers = append(providers, NewIPAPICoProvider(timeout))
		default:
			log.Warn("Unknown geolocation provider in settings", "name", name)
		}
	}

	return NewResolver(WithProviders(providers...), WithTTL(config.GeoCacheTTL()))
}

// Resolve looks up location metadata for an IP. It never fails the caller:
// unresolvable lookups return the failed sentinel. Private and reserved
// addresses short-circuit before any cache or network work.
func (r *Resolver) Resolve(ctx context.Context, ip string) Result {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return failedResult()
	}
	ip = parsed.String()

	if PrivateIP(ip) {
		return Result{
			Location: Location{Country: "Private Network", City: "Private"},
			Source:   SourcePrivate,
		}
	}

	now := r.now()
	if cached, ok := r.memory.Load(ip); ok {
		entry := cached.(memoryEntry)
		if now.Before(entry.expires) {
			return Result{Location: entry.loc, Source: SourceMemoryCache}
		}
		r.memory.Delete(ip)
	}

	value, _, _ := r.group.Do(ip, func() (any, error) {
		return r.resolveCold(ctx, ip), nil
	})
	return value.(Result)
}

func (r *Resolver) resolveCold(ctx context.Context, ip string) Result {
	now := r.now()

	entry, err := r.store.Get(ctx, ip, now)
	switch {
	case err == nil:
		loc := locationFromEntry(entry)
		expires := now.Add(r.ttl)
		if entry.ExpiresAt != nil && entry.ExpiresAt.Before(expires) {
			expires = *entry.ExpiresAt
		}
		r.memory.Store(ip, memoryEntry{loc: loc, source: entry.Source, expires: expires})
		return Result{Location: loc, Source: SourceCache}
	case errors.Is(err, database.ErrGeoCacheMiss):
	default:
		log.Warn("Geocache read failed", "ip", ip, "error", err)
	}

	for _, provider := range r.providers {
		loc, err := provider.Lookup(ctx, ip)
		if err != nil {
			log.Debug("Geolocation provider failed", "provider", provider.Name(), "ip", ip, "error", err)
			continue
		}

		r.cacheSuccess(ctx, ip, loc, provider.Name())
		return Result{Location: loc, Source: provider.Name()}
	}

	// Not cached: a transient outage must self-heal on the next lookup.
	return failedResult()
}

func (r *Resolver) cacheSuccess(ctx context.Context, ip string, loc Location, source string) {
	now := r.now()
	expires := now.Add(r.ttl)

	r.memory.Store(ip, memoryEntry{loc: loc, source: source, expires: expires})

	entry := domain.GeoCacheEntry{
		IP:          ip,
		Country:     loc.Country,
		CountryCode: loc.CountryCode,
		City:        loc.City,
		Region:      loc.Region,
		Latitude:    loc.Latitude,
		Longitude:   loc.Longitude,
		Timezone:    loc.Timezone,
		ISP:         loc.ISP,
		Source:      source,
		UpdatedAt:   now,
		ExpiresAt:   &expires,
	}
	if err := r.store.Upsert(ctx, &entry); err != nil {
		log.Warn("Geocache write failed", "ip", ip, "error", err)
	}
}

func locationFromEntry(entry domain.GeoCacheEntry) Location {
	return Location{
		Country:     entry.Country,
		CountryCode: entry.CountryCode,
		City:        entry.City,
		Region:      entry.Region,
		Latitude:    entry.Latitude,
		Longitude:   entry.Longitude,
		Timezone:    entry.Timezone,
		ISP:         entry.ISP,
	}
}
