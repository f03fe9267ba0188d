package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	apperrors "github.com/Dxboy266/The-Stoic-Leek/internal/errors"
	"github.com/Dxboy266/The-Stoic-Leek/internal/models"
)

// BlobStoreClient persists the settings aggregate to the remote durable
// store. The store treats the payload as an opaque JSON blob; all typing
// happens on this side.
type BlobStoreClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewBlobStoreClient creates a durable store client.
func NewBlobStoreClient(baseURL string, httpClient *http.Client) *BlobStoreClient {
	return &BlobStoreClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// Load fetches the previously saved settings blob. A store with no saved
// data yields empty settings, not an error. Keys outside the Settings
// aggregate are dropped during decoding.
func (c *BlobStoreClient) Load(ctx context.Context) (*models.Settings, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/persistence/load", nil)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrLoadFailed, fmt.Errorf("creating request: %w", err))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrLoadFailed, fmt.Errorf("loading settings: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return &models.Settings{}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.Wrap(apperrors.ErrLoadFailed, fmt.Errorf("loading settings: unexpected status %d", resp.StatusCode))
	}

	var result struct {
		Data *models.Settings `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrLoadFailed, fmt.Errorf("decoding settings: %w", err))
	}
	if result.Data == nil {
		return &models.Settings{}, nil
	}
	return result.Data, nil
}

// Save writes the settings aggregate to the durable store.
func (c *BlobStoreClient) Save(ctx context.Context, settings *models.Settings) error {
	body := struct {
		Data *models.Settings `json:"data"`
	}{Data: settings}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrPersistenceFailed, fmt.Errorf("marshaling settings: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/persistence/save", bytes.NewReader(jsonBody))
	if err != nil {
		return apperrors.Wrap(apperrors.ErrPersistenceFailed, fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrPersistenceFailed, fmt.Errorf("saving settings: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return apperrors.Wrap(apperrors.ErrPersistenceFailed, fmt.Errorf("saving settings: unexpected status %d", resp.StatusCode))
	}
	return nil
}
