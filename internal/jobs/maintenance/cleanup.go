package maintenance

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"

	"ipsentry/internal/config"
	"ipsentry/internal/database"
	"ipsentry/internal/geolocation"
	"ipsentry/internal/support"
)

const (
	maintenanceLockKey = "ipsentry:leader:maintenance"

	// backfillBatchSize caps how many IPs one maintenance run enriches.
	backfillBatchSize = 200
	backfillLookback  = 24 * time.Hour
)

// StartMaintenanceRoutine runs the housekeeping pass on the geolocation
// maintenance interval: purge expired geocache rows, reclaim expired block
// rows, and backfill geolocation onto events recorded without it.
func StartMaintenanceRoutine(ctx context.Context, resolver *geolocation.Resolver) {
	go func() {
		err := support.RunWithLeader(ctx, maintenanceLockKey, support.DefaultLeadershipTTL, func(leaderCtx context.Context) {
			interval := config.GetGeoMaintenanceInterval()
			updates := config.GeoMaintenanceIntervalUpdates()

			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			for {
				select {
				case <-leaderCtx.Done():
					return
				case <-ticker.C:
					runOnce(leaderCtx, resolver)
				case newInterval := <-updates:
					if newInterval <= 0 || newInterval == interval {
						continue
					}
					drainTicker(ticker)
					interval = newInterval
					ticker.Reset(interval)
				}
			}
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Error("Maintenance routine exited", "error", err)
		}
	}()
}

func runOnce(ctx context.Context, resolver *geolocation.Resolver) {
	now := time.Now()

	purgedGeo, err := database.PurgeExpiredGeoCache(ctx, now)
	if err != nil {
		log.Error("Geocache purge failed", "error", err)
	}

	purgedBlocks, err := database.PurgeExpiredBlocks(ctx, now)
	if err != nil {
		log.Error("Expired block purge failed", "error", err)
	}

	backfilled := backfillGeolocation(ctx, resolver, now)

	log.Info("Maintenance pass completed",
		"purged_geocache", purgedGeo,
		"purged_blocks", purgedBlocks,
		"backfilled_ips", backfilled,
	)
}

// backfillGeolocation enriches recent events that were recorded before the
// resolver could answer (or with the resolver disabled).
func backfillGeolocation(ctx context.Context, resolver *geolocation.Resolver, now time.Time) int {
	if resolver == nil {
		return 0
	}

	since := now.Add(-backfillLookback)
	ips, err := database.ListRecentIPsWithoutGeolocation(ctx, since, backfillBatchSize)
	if err != nil {
		log.Error("Geolocation backfill query failed", "error", err)
		return 0
	}

	var enriched int
	for _, ip := range ips {
		if ctx.Err() != nil {
			return enriched
		}

		result := resolver.Resolve(ctx, ip)
		if result.Failed() {
			continue
		}

		fields := map[string]any{
			"country":      result.Country,
			"country_code": result.CountryCode,
			"city":         result.City,
			"region":       result.Region,
			"latitude":     result.Latitude,
			"longitude":    result.Longitude,
			"timezone":     result.Timezone,
			"isp":          result.ISP,
			"geo_source":   result.Source,
		}
		if _, err := database.BackfillEventGeolocation(ctx, ip, since, fields); err != nil {
			log.Warn("Geolocation backfill write failed", "ip", ip, "error", err)
			continue
		}
		enriched++
	}
	return enriched
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
