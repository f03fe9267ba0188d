package models

import "github.com/shopspring/decimal"

// MarketSummary is a cached AI market commentary with its generation date.
type MarketSummary struct {
	Content string `json:"content"`
	Date    string `json:"date"`
}

// AIProviderConfig is the connection configuration for one AI provider.
type AIProviderConfig struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	BaseURL     string `json:"baseUrl"`
	APIKey      string `json:"apiKey"`
	ChatModel   string `json:"chatModel"`
	VisionModel string `json:"visionModel"`
	IsCustom    bool   `json:"isCustom,omitempty"`
}

// AISettings selects the active AI provider among the configured ones.
type AISettings struct {
	ActiveProvider string             `json:"activeProvider"`
	Providers      []AIProviderConfig `json:"providers"`
}

// ActiveProviderConfig returns the configuration of the active provider,
// or nil if none is configured.
func (s *AISettings) ActiveProviderConfig() *AIProviderConfig {
	if s == nil {
		return nil
	}
	for i := range s.Providers {
		if s.Providers[i].ID == s.ActiveProvider {
			return &s.Providers[i]
		}
	}
	return nil
}

// Settings is the full per-user settings aggregate persisted to the durable
// store. The JSON field names match the previously saved blobs so existing
// data loads unchanged; keys outside this struct are dropped on load.
type Settings struct {
	TotalAssets   decimal.Decimal `json:"total_assets"`
	Exercises     []string        `json:"exercises,omitempty"`
	RecordDate    string          `json:"record_date,omitempty"`
	MarketSummary *MarketSummary  `json:"market_summary,omitempty"`
	Funds         []Holding       `json:"funds,omitempty"`
	AISettings    *AISettings     `json:"aiSettings,omitempty"`
}

// IsEmpty reports whether the aggregate carries no user data at all.
// Empty settings are never persisted, so a not-yet-loaded session cannot
// overwrite a previously saved non-empty blob.
func (s *Settings) IsEmpty() bool {
	return s == nil ||
		(s.TotalAssets.IsZero() &&
			len(s.Exercises) == 0 &&
			s.RecordDate == "" &&
			s.MarketSummary == nil &&
			len(s.Funds) == 0 &&
			s.AISettings == nil)
}

// Clone returns a deep copy of the settings aggregate.
func (s *Settings) Clone() *Settings {
	if s == nil {
		return &Settings{}
	}
	out := *s
	if s.Exercises != nil {
		out.Exercises = append([]string(nil), s.Exercises...)
	}
	if s.MarketSummary != nil {
		ms := *s.MarketSummary
		out.MarketSummary = &ms
	}
	if s.Funds != nil {
		out.Funds = append([]Holding(nil), s.Funds...)
	}
	if s.AISettings != nil {
		ai := *s.AISettings
		ai.Providers = append([]AIProviderConfig(nil), s.AISettings.Providers...)
		out.AISettings = &ai
	}
	return &out
}
