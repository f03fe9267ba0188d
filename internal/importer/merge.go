// Package importer reconciles externally recognized fund entries (screenshot
// OCR) with the existing holdings list.
package importer

import (
	"github.com/shopspring/decimal"

	"github.com/Dxboy266/The-Stoic-Leek/internal/models"
)

// Entry is one import candidate after recognition: a resolved code plus the
// shares to apply. Zero shares means "amount unknown, keep what's there".
type Entry struct {
	Code   string          `json:"code"`
	Shares decimal.Decimal `json:"shares"`
}

// Result summarizes a merge.
type Result struct {
	Holdings []models.Holding `json:"holdings"`
	Added    int              `json:"added"`
	Updated  int              `json:"updated"`
}

// Merge folds recognized entries into the existing holdings list.
//
// A recognized code that matches an existing holding updates its shares only
// when the recognized value is non-zero; a failed OCR amount read must never
// zero out a real position. Unmatched codes append new holdings. Entries
// without a valid 6-digit code are dropped and counted in neither Added nor
// Updated. The input list is never mutated; callers apply the returned list
// in one atomic replace.
func Merge(existing []models.Holding, recognized []Entry) Result {
	merged := append([]models.Holding(nil), existing...)

	index := make(map[string]int, len(merged))
	for i, h := range merged {
		index[h.Code] = i
	}

	result := Result{}
	for _, entry := range recognized {
		if !models.ValidCode(entry.Code) {
			continue
		}
		if i, ok := index[entry.Code]; ok {
			if !entry.Shares.IsZero() && !entry.Shares.IsNegative() {
				merged[i].Shares = entry.Shares
			}
			result.Updated++
			continue
		}
		shares := entry.Shares
		if shares.IsNegative() {
			shares = decimal.Zero
		}
		merged = append(merged, models.Holding{Code: entry.Code, Shares: shares})
		index[entry.Code] = len(merged) - 1
		result.Added++
	}

	result.Holdings = merged
	return result
}
