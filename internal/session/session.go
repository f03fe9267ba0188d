// Package session wires the fund engine together for one user session: the
// holdings store, the valuation cache, the import merger, and the debounced
// persistence synchronizer. A Session is created at session start with its
// collaborators injected and torn down at session end; there is no ambient
// global state.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Dxboy266/The-Stoic-Leek/internal/gateway"
	"github.com/Dxboy266/The-Stoic-Leek/internal/holdings"
	"github.com/Dxboy266/The-Stoic-Leek/internal/importer"
	"github.com/Dxboy266/The-Stoic-Leek/internal/models"
	"github.com/Dxboy266/The-Stoic-Leek/internal/persist"
	"github.com/Dxboy266/The-Stoic-Leek/internal/reconcile"
	"github.com/Dxboy266/The-Stoic-Leek/internal/valuation"
)

// QuoteService is the quote gateway surface the session needs.
type QuoteService interface {
	Fetch(ctx context.Context, code string) (models.ValuationRecord, error)
	FetchBatch(ctx context.Context, codes []string) ([]models.ValuationRecord, error)
	Search(ctx context.Context, query string) ([]models.SearchResult, error)
}

// Recognizer extracts fund entries from a holdings screenshot.
type Recognizer interface {
	Recognize(ctx context.Context, req gateway.RecognizeRequest) ([]models.RecognizedFund, error)
}

// BlobStore is the durable settings store.
type BlobStore interface {
	Load(ctx context.Context) (*models.Settings, error)
	Save(ctx context.Context, settings *models.Settings) error
}

// Session owns all mutable engine state for one user.
type Session struct {
	quotes     QuoteService
	recognizer Recognizer
	blob       BlobStore

	store  *holdings.Store
	cache  *valuation.Cache
	syncer *persist.Syncer

	timeout time.Duration
	log     *zap.SugaredLogger

	// mutations serializes holdings mutations, the Go rendering of the
	// original single-threaded event loop. Read-modify-write sequences like
	// an import merge must not interleave with other mutations; read paths
	// stay lock-free on store snapshots.
	mutations sync.Mutex

	mu       sync.RWMutex
	settings *models.Settings
	loaded   bool
}

// New creates a session with empty state. Call Load to pull previously
// persisted state before serving; saves are suppressed until Load has run so
// an unloaded session can never overwrite saved data with emptiness.
func New(quotes QuoteService, recognizer Recognizer, blob BlobStore, debounce, timeout time.Duration, log *zap.SugaredLogger) *Session {
	s := &Session{
		quotes:     quotes,
		recognizer: recognizer,
		blob:       blob,
		store:      holdings.NewStore(),
		timeout:    timeout,
		log:        log,
		settings:   &models.Settings{},
	}
	s.cache = valuation.NewCache(quotes, log)
	s.syncer = persist.NewSyncer(blob, s.persistenceSnapshot, debounce, timeout, log)
	return s
}

// persistenceSnapshot assembles the settings blob at write time. Before the
// initial load has completed it reports empty state, which the synchronizer
// refuses to persist.
func (s *Session) persistenceSnapshot() *models.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.loaded {
		return &models.Settings{}
	}
	snap := s.settings.Clone()
	snap.Funds = s.store.Get()
	return snap
}

// Load pulls the persisted settings blob and seeds the holdings store from
// it. A load failure leaves the session usable but unloaded; persistence
// stays suppressed so the saved blob is not at risk.
func (s *Session) Load(ctx context.Context) error {
	settings, err := s.blob.Load(ctx)
	if err != nil {
		return err
	}

	s.mutations.Lock()
	err = s.store.ReplaceAll(settings.Funds)
	s.mutations.Unlock()
	if err != nil {
		return err
	}

	s.mu.Lock()
	settings.Funds = nil // holdings live in the store from here on
	s.settings = settings
	s.loaded = true
	s.mu.Unlock()

	if s.store.Len() > 0 {
		s.refreshAsync()
	}
	return nil
}

// Holdings returns a snapshot of the current holdings list.
func (s *Session) Holdings() []models.Holding {
	return s.store.Get()
}

// View joins the current holdings with the cached valuations.
func (s *Session) View() reconcile.View {
	return reconcile.ComputeView(s.store.Get(), s.cache.Snapshot())
}

// AddHolding adds a new holding and kicks off a valuation refresh plus a
// debounced persistence write.
func (s *Session) AddHolding(code string, shares decimal.Decimal) error {
	s.mutations.Lock()
	defer s.mutations.Unlock()

	if err := s.store.Add(code, shares); err != nil {
		return err
	}
	s.afterMutation()
	return nil
}

// EditHolding replaces the shares of an existing holding.
func (s *Session) EditHolding(code string, shares decimal.Decimal) error {
	s.mutations.Lock()
	defer s.mutations.Unlock()

	if err := s.store.Edit(code, shares); err != nil {
		return err
	}
	s.afterMutation()
	return nil
}

// DeleteHolding removes a holding. Deleting an unknown code is a no-op; any
// stale cache entry for the code simply goes unused.
func (s *Session) DeleteHolding(code string) {
	s.mutations.Lock()
	defer s.mutations.Unlock()

	s.store.Delete(code)
	s.syncer.Notify()
}

// ImportHoldings merges recognized import entries into the holdings list in
// one atomic replace and reports how many entries were added and updated.
// The whole merge-and-replace holds the mutation lock: a holding added
// between the snapshot and the replace must not be overwritten away.
func (s *Session) ImportHoldings(entries []importer.Entry) (added, updated int, err error) {
	s.mutations.Lock()
	defer s.mutations.Unlock()

	result := importer.Merge(s.store.Get(), entries)
	if err := s.store.ReplaceAll(result.Holdings); err != nil {
		return 0, 0, err
	}
	s.afterMutation()
	return result.Added, result.Updated, nil
}

// Refresh fetches current valuations for all held codes. The code set is
// captured at call time; a response arriving after further mutations only
// updates the cache and can never resurrect a deleted holding.
func (s *Session) Refresh(ctx context.Context) error {
	return s.cache.Refresh(ctx, s.store.Codes())
}

// Quote resolves a single fund code to its current valuation.
func (s *Session) Quote(ctx context.Context, code string) (models.ValuationRecord, error) {
	return s.quotes.Fetch(ctx, code)
}

// Search looks up fund candidates by name or code.
func (s *Session) Search(ctx context.Context, query string) ([]models.SearchResult, error) {
	return s.quotes.Search(ctx, query)
}

// RecognizeScreenshot runs OCR on a holdings screenshot using the session's
// active AI provider and resolves the recognized fund codes by name search.
func (s *Session) RecognizeScreenshot(ctx context.Context, image string) ([]models.RecognizedFund, error) {
	req := gateway.RecognizeRequest{Image: image}

	s.mu.RLock()
	if provider := s.settings.AISettings.ActiveProviderConfig(); provider != nil {
		req.BaseURL = provider.BaseURL
		req.APIKey = provider.APIKey
		req.Model = provider.VisionModel
	}
	s.mu.RUnlock()

	funds, err := s.recognizer.Recognize(ctx, req)
	if err != nil {
		return nil, err
	}
	return importer.ResolveCodes(ctx, s.quotes, funds, s.log), nil
}

// Settings returns a copy of the session's settings aggregate, including the
// current holdings. Reads always reflect the in-memory state, even when the
// initial load failed; only the persistence path is gated on a completed
// load.
func (s *Session) Settings() *models.Settings {
	s.mu.RLock()
	snap := s.settings.Clone()
	s.mu.RUnlock()

	snap.Funds = s.store.Get()
	return snap
}

// UpdateSettings replaces the non-holdings part of the settings aggregate.
// The Funds field of the argument is ignored: holdings are owned by the
// store and mutated only through the holding operations.
func (s *Session) UpdateSettings(settings *models.Settings) {
	next := settings.Clone()
	next.Funds = nil

	s.mu.Lock()
	s.settings = next
	s.mu.Unlock()

	s.syncer.Notify()
}

// Close flushes pending persistence work. Call at session teardown.
func (s *Session) Close(ctx context.Context) error {
	return s.syncer.Flush(ctx)
}

// afterMutation runs the shared post-mutation path: schedule a debounced
// persistence write and refresh valuations in the background. A refresh
// failure is a notice, not an error; the cache keeps its previous records.
func (s *Session) afterMutation() {
	s.syncer.Notify()
	s.refreshAsync()
}

func (s *Session) refreshAsync() {
	codes := s.store.Codes()
	if len(codes) == 0 {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		if err := s.cache.Refresh(ctx, codes); err != nil {
			s.log.Warnw("background valuation refresh failed", "error", err)
		}
	}()
}
