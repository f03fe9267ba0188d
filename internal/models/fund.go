// Package models defines the core data types of the fund engine.
package models

import (
	"regexp"

	"github.com/shopspring/decimal"
)

var codePattern = regexp.MustCompile(`^\d{6}$`)

// ValidCode reports whether s is a well-formed 6-digit fund code.
func ValidCode(s string) bool {
	return codePattern.MatchString(s)
}

// Holding is a single position in the user's holdings list.
// Identity is the fund code; codes are unique within a holdings list.
type Holding struct {
	Code      string           `json:"code"`
	Shares    decimal.Decimal  `json:"shares"`
	CostPrice *decimal.Decimal `json:"costPrice,omitempty"`
}

// ValuationRecord is a point-in-time valuation for a fund, replaced wholesale
// on every successful batch fetch. It carries no cross-session durability.
type ValuationRecord struct {
	Code         string          `json:"code"`
	Name         string          `json:"name"`
	EstimatedNAV decimal.Decimal `json:"estimated_nav"`
	ChangePct    decimal.Decimal `json:"change_pct"`
	PreviousNAV  decimal.Decimal `json:"previous_nav"`
	EstimateTime string          `json:"estimate_time"`
	NAVDate      string          `json:"nav_date"`
}

// RecognizedFund is a single entry extracted from a holdings screenshot.
// Code may be empty when recognition could not establish one; Amount is the
// position's monetary value, used as a stand-in when Shares was not readable.
type RecognizedFund struct {
	Name   string          `json:"name"`
	Code   string          `json:"code,omitempty"`
	Amount decimal.Decimal `json:"amount,omitempty"`
	Shares decimal.Decimal `json:"shares,omitempty"`
}

// SearchResult is a fund candidate returned by name-based lookup.
type SearchResult struct {
	Code string `json:"code"`
	Name string `json:"name"`
}
