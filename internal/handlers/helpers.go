package handlers

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "github.com/Dxboy266/The-Stoic-Leek/internal/errors"
	"github.com/Dxboy266/The-Stoic-Leek/internal/logger"
)

// Shares is a lenient share count for request payloads. It accepts a JSON
// number or string; blank or unparseable input normalizes to zero instead of
// failing the request, because screenshots and pasted broker exports often
// carry garbled share counts and a zero-share holding is still trackable.
type Shares struct {
	decimal.Decimal
}

// UnmarshalJSON implements lenient decoding. It never returns an error for
// malformed numbers; validation of the value (e.g. non-negative) happens in
// the engine.
func (s *Shares) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(strings.Trim(strings.TrimSpace(string(data)), `"`))
	if raw == "" || raw == "null" {
		s.Decimal = decimal.Zero
		return nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		s.Decimal = decimal.Zero
		return nil
	}
	s.Decimal = d
	return nil
}

// respondWithError writes a consistent JSON error response. If the error is an
// *AppError it uses the error's status code, code, and message. Otherwise it
// logs the unexpected error and returns a generic internal server error.
func respondWithError(c *gin.Context, err error) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		if appErr.Internal != nil {
			logger.Get().Errorw("app error",
				"code", appErr.Code,
				"internal", appErr.Internal.Error(),
				"path", c.Request.URL.Path,
			)
		}
		c.JSON(appErr.StatusCode, gin.H{
			"error": gin.H{
				"code":    appErr.Code,
				"message": appErr.Message,
			},
		})
		return
	}

	logger.Get().Errorw("unexpected error",
		"error", err.Error(),
		"path", c.Request.URL.Path,
		"method", c.Request.Method,
	)
	c.JSON(apperrors.ErrInternalServer.StatusCode, gin.H{
		"error": gin.H{
			"code":    apperrors.ErrInternalServer.Code,
			"message": apperrors.ErrInternalServer.Message,
		},
	})
}
