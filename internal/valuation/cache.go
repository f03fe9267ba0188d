// Package valuation maintains the per-code cache of the latest fund
// valuations. The cache is refreshed by batch quote fetches and merged
// non-destructively: codes missing from a response keep their previous
// record, and a failed fetch never clears valid cached data.
package valuation

import (
	"context"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/Dxboy266/The-Stoic-Leek/internal/models"
)

// BatchFetcher issues one batch quote request. The result may cover only a
// subset of the requested codes.
type BatchFetcher interface {
	FetchBatch(ctx context.Context, codes []string) ([]models.ValuationRecord, error)
}

// Cache maps fund code to the most recently fetched valuation record.
// Records are replaced wholesale per code and never evicted; a stale record
// for a deleted holding is simply unused.
type Cache struct {
	fetcher BatchFetcher
	log     *zap.SugaredLogger

	group singleflight.Group

	mu      sync.RWMutex
	records map[string]models.ValuationRecord
}

// NewCache creates an empty valuation cache backed by the given fetcher.
func NewCache(fetcher BatchFetcher, log *zap.SugaredLogger) *Cache {
	return &Cache{
		fetcher: fetcher,
		log:     log,
		records: make(map[string]models.ValuationRecord),
	}
}

// Refresh fetches current valuations for the given codes and merges the
// results into the cache. Identical refreshes issued while one is already in
// flight are coalesced into a single upstream request. On total failure the
// cache is left untouched and the fetch error is returned.
func (c *Cache) Refresh(ctx context.Context, codes []string) error {
	if len(codes) == 0 {
		return nil
	}

	sorted := append([]string(nil), codes...)
	sort.Strings(sorted)
	key := strings.Join(sorted, ",")

	_, err, shared := c.group.Do(key, func() (interface{}, error) {
		// The fetch is shared by every coalesced caller, so it must not die
		// with the initiating caller's request; keep its deadline, drop its
		// cancelation.
		fetchCtx := context.WithoutCancel(ctx)
		if deadline, ok := ctx.Deadline(); ok {
			var cancel context.CancelFunc
			fetchCtx, cancel = context.WithDeadline(fetchCtx, deadline)
			defer cancel()
		}

		// A failed fetch can still carry records from the chunks that
		// succeeded; merge whatever arrived before surfacing the error.
		recs, err := c.fetcher.FetchBatch(fetchCtx, sorted)

		c.mu.Lock()
		for _, rec := range recs {
			c.records[rec.Code] = rec
		}
		c.mu.Unlock()

		if err != nil {
			return nil, err
		}
		if len(recs) < len(sorted) {
			c.log.Warnw("partial quote refresh",
				"requested", len(sorted),
				"received", len(recs),
			)
		}
		return nil, nil
	})
	if shared {
		c.log.Debugw("coalesced quote refresh", "codes", key)
	}
	return err
}

// Get returns the cached record for a code, if any.
func (c *Cache) Get(code string) (models.ValuationRecord, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rec, ok := c.records[code]
	return rec, ok
}

// Snapshot returns a copy of the current cache contents.
func (c *Cache) Snapshot() map[string]models.ValuationRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]models.ValuationRecord, len(c.records))
	for k, v := range c.records {
		out[k] = v
	}
	return out
}
