// Package handlers exposes the fund engine over HTTP.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/Dxboy266/The-Stoic-Leek/internal/errors"
	"github.com/Dxboy266/The-Stoic-Leek/internal/importer"
	"github.com/Dxboy266/The-Stoic-Leek/internal/models"
	"github.com/Dxboy266/The-Stoic-Leek/internal/session"
)

// FundHandler handles holdings and fund data requests.
type FundHandler struct {
	session *session.Session
}

// NewFundHandler creates a new FundHandler.
func NewFundHandler(sess *session.Session) *FundHandler {
	return &FundHandler{session: sess}
}

// AddHoldingRequest represents the request payload for adding a holding.
type AddHoldingRequest struct {
	Code   string `json:"code" binding:"required,fund_code"`
	Shares Shares `json:"shares"`
}

// UpdateHoldingRequest represents the request payload for editing a holding's shares.
type UpdateHoldingRequest struct {
	Shares Shares `json:"shares"`
}

// ImportEntry is a single holding in an import request.
type ImportEntry struct {
	Code   string `json:"code" binding:"required"`
	Shares Shares `json:"shares"`
}

// ImportRequest represents the request payload for a bulk holdings import.
type ImportRequest struct {
	Entries []ImportEntry `json:"entries" binding:"required"`
}

// RecognizeScreenshotRequest carries a base64-encoded holdings screenshot.
type RecognizeScreenshotRequest struct {
	Image string `json:"image" binding:"required"`
}

// ListHoldings returns the current holdings joined with cached valuations.
func (h *FundHandler) ListHoldings(c *gin.Context) {
	c.JSON(http.StatusOK, h.session.View())
}

// AddHolding adds a new holding to the list.
func (h *FundHandler) AddHolding(c *gin.Context) {
	var req AddHoldingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidCode, err.Error()))
		return
	}

	if err := h.session.AddHolding(req.Code, req.Shares.Decimal); err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, h.session.View())
}

// UpdateHolding replaces the share count of an existing holding.
func (h *FundHandler) UpdateHolding(c *gin.Context) {
	code := c.Param("code")
	if !models.ValidCode(code) {
		respondWithError(c, apperrors.ErrInvalidCode)
		return
	}

	var req UpdateHoldingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	if err := h.session.EditHolding(code, req.Shares.Decimal); err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, h.session.View())
}

// DeleteHolding removes a holding. Deleting an unknown code succeeds.
func (h *FundHandler) DeleteHolding(c *gin.Context) {
	code := c.Param("code")
	if !models.ValidCode(code) {
		respondWithError(c, apperrors.ErrInvalidCode)
		return
	}

	h.session.DeleteHolding(code)
	c.Status(http.StatusNoContent)
}

// ImportHoldings merges a batch of entries into the holdings list and reports
// how many were added and how many updated an existing position.
func (h *FundHandler) ImportHoldings(c *gin.Context) {
	var req ImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	entries := make([]importer.Entry, 0, len(req.Entries))
	for _, e := range req.Entries {
		entries = append(entries, importer.Entry{Code: e.Code, Shares: e.Shares.Decimal})
	}

	added, updated, err := h.session.ImportHoldings(entries)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"added": added, "updated": updated})
}

// RefreshValuations fetches current valuations for all held codes and returns
// the refreshed view.
func (h *FundHandler) RefreshValuations(c *gin.Context) {
	if err := h.session.Refresh(c.Request.Context()); err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.session.View())
}

// GetQuote resolves one fund code to its current valuation.
func (h *FundHandler) GetQuote(c *gin.Context) {
	code := c.Param("code")
	if !models.ValidCode(code) {
		respondWithError(c, apperrors.ErrInvalidCode)
		return
	}

	rec, err := h.session.Quote(c.Request.Context(), code)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// SearchFunds looks up fund candidates by name or code.
func (h *FundHandler) SearchFunds(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "q is required"))
		return
	}

	results, err := h.session.Search(c.Request.Context(), query)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, results)
}

// RecognizeScreenshot extracts fund entries from a holdings screenshot using
// the configured AI provider. Recognized entries are returned for review, not
// merged; the client confirms them through ImportHoldings.
func (h *FundHandler) RecognizeScreenshot(c *gin.Context) {
	var req RecognizeScreenshotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	funds, err := h.session.RecognizeScreenshot(c.Request.Context(), req.Image)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"funds": funds})
}
