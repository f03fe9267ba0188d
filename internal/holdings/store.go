// Package holdings owns the authoritative in-memory holdings list for a
// session. All mutations go through the Store; every successful mutation
// installs a fresh slice, so snapshots handed out earlier never change
// underneath their holders.
package holdings

import (
	"sync"

	"github.com/shopspring/decimal"

	apperrors "github.com/Dxboy266/The-Stoic-Leek/internal/errors"
	"github.com/Dxboy266/The-Stoic-Leek/internal/models"
)

// Store is the sole owner of the holdings list.
type Store struct {
	mu   sync.RWMutex
	list []models.Holding
}

// NewStore creates an empty holdings store.
func NewStore() *Store {
	return &Store{}
}

// Get returns a snapshot of the current holdings list.
func (s *Store) Get() []models.Holding {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Holding(nil), s.list...)
}

// Len returns the number of holdings.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.list)
}

// Codes returns the fund codes of all holdings, in list order.
func (s *Store) Codes() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	codes := make([]string, len(s.list))
	for i, h := range s.list {
		codes[i] = h.Code
	}
	return codes
}

// Add appends a new holding. It fails when the code is not a 6-digit fund
// code or when a holding with the same code already exists.
func (s *Store) Add(code string, shares decimal.Decimal) error {
	if !models.ValidCode(code) {
		return apperrors.ErrInvalidCode
	}
	if shares.IsNegative() {
		return apperrors.ErrNegativeShares
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, h := range s.list {
		if h.Code == code {
			return apperrors.ErrDuplicateCode
		}
	}

	next := make([]models.Holding, len(s.list), len(s.list)+1)
	copy(next, s.list)
	s.list = append(next, models.Holding{Code: code, Shares: shares})
	return nil
}

// Edit replaces the shares of an existing holding. Setting the same value
// again succeeds and is a no-op. Negative shares are rejected, not clamped.
func (s *Store) Edit(code string, shares decimal.Decimal) error {
	if shares.IsNegative() {
		return apperrors.ErrNegativeShares
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i, h := range s.list {
		if h.Code != code {
			continue
		}
		if h.Shares.Equal(shares) {
			return nil
		}
		next := append([]models.Holding(nil), s.list...)
		next[i].Shares = shares
		s.list = next
		return nil
	}
	return apperrors.ErrHoldingNotFound
}

// Delete removes the holding with the given code. Deleting an absent code
// is a no-op, so delete is idempotent.
func (s *Store) Delete(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, h := range s.list {
		if h.Code != code {
			continue
		}
		next := make([]models.Holding, 0, len(s.list)-1)
		next = append(next, s.list[:i]...)
		next = append(next, s.list[i+1:]...)
		s.list = next
		return
	}
}

// ReplaceAll atomically swaps in a new holdings list. Entries with malformed
// codes or negative shares are rejected wholesale; duplicates keep the first
// occurrence. Used by session load and import merges.
func (s *Store) ReplaceAll(list []models.Holding) error {
	seen := make(map[string]bool, len(list))
	next := make([]models.Holding, 0, len(list))
	for _, h := range list {
		if !models.ValidCode(h.Code) {
			return apperrors.WithMessage(apperrors.ErrInvalidCode, "Invalid fund code: "+h.Code)
		}
		if h.Shares.IsNegative() {
			return apperrors.ErrNegativeShares
		}
		if seen[h.Code] {
			continue
		}
		seen[h.Code] = true
		next = append(next, h)
	}

	s.mu.Lock()
	s.list = next
	s.mu.Unlock()
	return nil
}
