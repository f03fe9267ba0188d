package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dxboy266/The-Stoic-Leek/internal/testutil"
)

func TestRecognizerClient(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/fund/import/screenshot", r.URL.Path)

			var req RecognizeRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "base64image", req.Image)
			assert.Equal(t, "https://api.siliconflow.cn/v1", req.BaseURL)
			assert.Equal(t, "sk-test", req.APIKey)
			assert.Equal(t, "Qwen/Qwen2-VL-72B-Instruct", req.Model)

			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{
				"success": true,
				"funds": [
					{"name": "银华集成电路混合C", "code": "013841", "shares": "1234.56"},
					{"name": "华泰柏瑞", "amount": "5000"}
				]
			}`))
		}))
		defer server.Close()

		client := NewRecognizerClient(server.URL, server.Client())
		funds, err := client.Recognize(context.Background(), RecognizeRequest{
			Image:   "base64image",
			BaseURL: "https://api.siliconflow.cn/v1",
			APIKey:  "sk-test",
			Model:   "Qwen/Qwen2-VL-72B-Instruct",
		})
		require.NoError(t, err)

		require.Len(t, funds, 2)
		assert.Equal(t, "013841", funds[0].Code)
		assert.Equal(t, "1234.56", funds[0].Shares.String())
		assert.Empty(t, funds[1].Code)
		assert.Equal(t, "5000", funds[1].Amount.String())
	})

	t.Run("unsuccessful_response_carries_message", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"success": false, "message": "image too blurry"}`))
		}))
		defer server.Close()

		client := NewRecognizerClient(server.URL, server.Client())
		_, err := client.Recognize(context.Background(), RecognizeRequest{Image: "img"})

		testutil.AssertAppError(t, err, "RECOGNITION_FAILED")
		assert.Equal(t, "image too blurry", err.Error())
	})

	t.Run("zero_funds_is_failure", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"success": true, "funds": []}`))
		}))
		defer server.Close()

		client := NewRecognizerClient(server.URL, server.Client())
		_, err := client.Recognize(context.Background(), RecognizeRequest{Image: "img"})
		testutil.AssertAppError(t, err, "RECOGNITION_FAILED")
	})

	t.Run("upstream_error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		client := NewRecognizerClient(server.URL, server.Client())
		_, err := client.Recognize(context.Background(), RecognizeRequest{Image: "img"})
		testutil.AssertAppError(t, err, "RECOGNITION_FAILED")
	})
}
