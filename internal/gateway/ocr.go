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

// RecognizeRequest carries a base64-encoded holdings screenshot plus the AI
// provider the recognizer should use. Provider fields are optional; the
// recognizer falls back to its own defaults when they are empty.
type RecognizeRequest struct {
	Image   string `json:"image"`
	BaseURL string `json:"baseUrl,omitempty"`
	APIKey  string `json:"apiKey,omitempty"`
	Model   string `json:"model,omitempty"`
}

// recognizeResponse is the recognizer's wire response.
type recognizeResponse struct {
	Success bool                    `json:"success"`
	Funds   []models.RecognizedFund `json:"funds"`
	Message string                  `json:"message"`
}

// RecognizerClient calls the screenshot recognition service.
type RecognizerClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewRecognizerClient creates a screenshot recognizer client.
func NewRecognizerClient(baseURL string, httpClient *http.Client) *RecognizerClient {
	return &RecognizerClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// Recognize extracts fund entries from a holdings screenshot. A transport
// failure, an unsuccessful response, or zero recognized entries all surface
// as a recognition error; the caller may retry with the same image.
func (c *RecognizerClient) Recognize(ctx context.Context, reqBody RecognizeRequest) ([]models.RecognizedFund, error) {
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrRecognitionFailed, fmt.Errorf("marshaling request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/fund/import/screenshot", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrRecognitionFailed, fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrRecognitionFailed, fmt.Errorf("recognizing screenshot: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.Wrap(apperrors.ErrRecognitionFailed, fmt.Errorf("recognizing screenshot: unexpected status %d", resp.StatusCode))
	}

	var result recognizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrRecognitionFailed, fmt.Errorf("decoding recognition response: %w", err))
	}

	if !result.Success {
		msg := result.Message
		if msg == "" {
			msg = "Recognizer reported failure"
		}
		return nil, apperrors.WithMessage(apperrors.ErrRecognitionFailed, msg)
	}
	if len(result.Funds) == 0 {
		return nil, apperrors.WithMessage(apperrors.ErrRecognitionFailed, "No funds recognized in the screenshot")
	}
	return result.Funds, nil
}
