package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/Dxboy266/The-Stoic-Leek/internal/errors"
	"github.com/Dxboy266/The-Stoic-Leek/internal/models"
	"github.com/Dxboy266/The-Stoic-Leek/internal/session"
)

// SettingsHandler handles the per-user settings aggregate.
type SettingsHandler struct {
	session *session.Session
}

// NewSettingsHandler creates a new SettingsHandler.
func NewSettingsHandler(sess *session.Session) *SettingsHandler {
	return &SettingsHandler{session: sess}
}

// GetSettings returns the full settings aggregate, holdings included.
func (h *SettingsHandler) GetSettings(c *gin.Context) {
	c.JSON(http.StatusOK, h.session.Settings())
}

// UpdateSettings replaces the non-holdings part of the settings aggregate.
// Holdings sent in the payload are ignored; they are mutated only through the
// holdings endpoints.
func (h *SettingsHandler) UpdateSettings(c *gin.Context) {
	var req models.Settings
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	h.session.UpdateSettings(&req)
	c.JSON(http.StatusOK, h.session.Settings())
}
