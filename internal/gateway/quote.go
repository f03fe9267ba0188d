// Package gateway provides HTTP clients for the external services the fund
// engine depends on: the realtime quote service, the screenshot recognizer,
// and the durable blob store. Clients shape requests and translate failures
// into typed errors; they hold no business logic.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	apperrors "github.com/Dxboy266/The-Stoic-Leek/internal/errors"
	"github.com/Dxboy266/The-Stoic-Leek/internal/models"
)

// quoteRecord is a single fund quote on the wire. Field names follow the
// upstream estimation feed: gsz is the realtime estimated NAV, gszzl the
// estimated change percent, dwjz the previous close NAV.
type quoteRecord struct {
	Code   string          `json:"code"`
	Name   string          `json:"name"`
	GSZ    decimal.Decimal `json:"gsz"`
	GSZZL  decimal.Decimal `json:"gszzl"`
	DWJZ   decimal.Decimal `json:"dwjz"`
	GZTime string          `json:"gztime"`
	JZRQ   string          `json:"jzrq"`
}

func (r quoteRecord) toModel() models.ValuationRecord {
	return models.ValuationRecord{
		Code:         r.Code,
		Name:         r.Name,
		EstimatedNAV: r.GSZ,
		ChangePct:    r.GSZZL,
		PreviousNAV:  r.DWJZ,
		EstimateTime: r.GZTime,
		NAVDate:      r.JZRQ,
	}
}

// defaultBatchMax caps the number of codes per batch request; the upstream
// feed rejects oversized batches.
const defaultBatchMax = 20

// QuoteClient fetches realtime fund valuations from the quote service.
type QuoteClient struct {
	baseURL    string
	httpClient *http.Client
	batchMax   int
}

// NewQuoteClient creates a quote service client. The http.Client's timeout
// bounds every call; a timeout surfaces as a recoverable fetch error.
// batchMax caps the codes per batch request; values <= 0 use the default.
func NewQuoteClient(baseURL string, httpClient *http.Client, batchMax int) *QuoteClient {
	if batchMax <= 0 {
		batchMax = defaultBatchMax
	}
	return &QuoteClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		batchMax:   batchMax,
	}
}

// Fetch resolves a single 6-digit fund code to its current valuation.
func (c *QuoteClient) Fetch(ctx context.Context, code string) (models.ValuationRecord, error) {
	if !models.ValidCode(code) {
		return models.ValuationRecord{}, apperrors.ErrInvalidCode
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/fund/"+code, nil)
	if err != nil {
		return models.ValuationRecord{}, apperrors.Wrap(apperrors.ErrFetchFailed, fmt.Errorf("creating request: %w", err))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return models.ValuationRecord{}, apperrors.Wrap(apperrors.ErrFetchFailed, fmt.Errorf("fetching fund %s: %w", code, err))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return models.ValuationRecord{}, apperrors.ErrFundNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return models.ValuationRecord{}, apperrors.Wrap(apperrors.ErrFetchFailed, fmt.Errorf("fetching fund %s: unexpected status %d", code, resp.StatusCode))
	}

	var rec quoteRecord
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		return models.ValuationRecord{}, apperrors.Wrap(apperrors.ErrFetchFailed, fmt.Errorf("decoding fund %s: %w", code, err))
	}
	return rec.toModel(), nil
}

// FetchBatch resolves a set of fund codes, split into chunks of at most
// batchMax codes. The response may be a strict subset of the requested codes
// and carries no order guarantee; callers must treat missing codes as
// individually failed, not as a batch failure. When a chunk fails, records
// from the chunks that succeeded are still returned alongside the error.
func (c *QuoteClient) FetchBatch(ctx context.Context, codes []string) ([]models.ValuationRecord, error) {
	if len(codes) == 0 {
		return nil, nil
	}

	var out []models.ValuationRecord
	var firstErr error
	for start := 0; start < len(codes); start += c.batchMax {
		end := start + c.batchMax
		if end > len(codes) {
			end = len(codes)
		}
		recs, err := c.fetchChunk(ctx, codes[start:end])
		if err != nil && firstErr == nil {
			firstErr = err
		}
		out = append(out, recs...)
	}
	return out, firstErr
}

func (c *QuoteClient) fetchChunk(ctx context.Context, codes []string) ([]models.ValuationRecord, error) {
	u := c.baseURL + "/fund/batch/query?codes=" + url.QueryEscape(strings.Join(codes, ","))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrFetchFailed, fmt.Errorf("creating request: %w", err))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrFetchFailed, fmt.Errorf("fetching fund batch: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.Wrap(apperrors.ErrFetchFailed, fmt.Errorf("fetching fund batch: unexpected status %d", resp.StatusCode))
	}

	var recs []quoteRecord
	if err := json.NewDecoder(resp.Body).Decode(&recs); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrFetchFailed, fmt.Errorf("decoding fund batch: %w", err))
	}

	out := make([]models.ValuationRecord, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.toModel())
	}
	return out, nil
}

// Search looks up fund candidates by (partial) name or code.
func (c *QuoteClient) Search(ctx context.Context, query string) ([]models.SearchResult, error) {
	u := c.baseURL + "/fund/search/query?q=" + url.QueryEscape(query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrFetchFailed, fmt.Errorf("creating request: %w", err))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrFetchFailed, fmt.Errorf("searching funds: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.Wrap(apperrors.ErrFetchFailed, fmt.Errorf("searching funds: unexpected status %d", resp.StatusCode))
	}

	var results []models.SearchResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrFetchFailed, fmt.Errorf("decoding search response: %w", err))
	}
	return results, nil
}
