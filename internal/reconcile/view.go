// Package reconcile joins the holdings list with cached valuations into the
// derived view the UI renders. ComputeView is pure: identical inputs always
// produce identical output, so results can be memoized and compared directly.
package reconcile

import (
	"github.com/shopspring/decimal"

	"github.com/Dxboy266/The-Stoic-Leek/internal/models"
)

// HoldingView is the derived state of one holding.
type HoldingView struct {
	Code        string                  `json:"code"`
	Shares      decimal.Decimal         `json:"shares"`
	Valuation   *models.ValuationRecord `json:"valuation,omitempty"`
	MarketValue decimal.Decimal         `json:"market_value"`
	DayChange   decimal.Decimal         `json:"day_change"`
	// Pending marks a holding whose valuation has not arrived yet. Pending
	// holdings stay visible but contribute nothing to the totals.
	Pending bool `json:"pending"`
}

// Totals aggregates the holdings that have both shares and a valuation.
type Totals struct {
	MarketValue decimal.Decimal `json:"market_value"`
	DayChange   decimal.Decimal `json:"day_change"`
}

// View is the full derived state for presentation.
type View struct {
	PerHolding []HoldingView `json:"per_holding"`
	Totals     Totals        `json:"totals"`
}

// ComputeView derives per-holding metrics and portfolio totals.
//
// Per holding: marketValue = estimatedNAV * shares and
// dayChange = (estimatedNAV - previousNAV) * shares. A holding without a
// cached valuation gets zero values and Pending set, never an error. Totals
// include only holdings with positive shares and a present valuation, so a
// missing record can never poison the aggregate.
func ComputeView(holdings []models.Holding, cache map[string]models.ValuationRecord) View {
	view := View{
		PerHolding: make([]HoldingView, 0, len(holdings)),
		Totals: Totals{
			MarketValue: decimal.Zero,
			DayChange:   decimal.Zero,
		},
	}

	for _, h := range holdings {
		hv := HoldingView{
			Code:        h.Code,
			Shares:      h.Shares,
			MarketValue: decimal.Zero,
			DayChange:   decimal.Zero,
		}

		rec, ok := cache[h.Code]
		if !ok {
			hv.Pending = true
			view.PerHolding = append(view.PerHolding, hv)
			continue
		}

		recCopy := rec
		hv.Valuation = &recCopy
		hv.MarketValue = rec.EstimatedNAV.Mul(h.Shares)
		hv.DayChange = rec.EstimatedNAV.Sub(rec.PreviousNAV).Mul(h.Shares)
		view.PerHolding = append(view.PerHolding, hv)

		if h.Shares.IsPositive() {
			view.Totals.MarketValue = view.Totals.MarketValue.Add(hv.MarketValue)
			view.Totals.DayChange = view.Totals.DayChange.Add(hv.DayChange)
		}
	}

	return view
}
