package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-hostel-api/internal/middleware"
	"github.com/noah-isme/campus-hostel-api/internal/models"
	"github.com/noah-isme/campus-hostel-api/internal/service"
	"github.com/noah-isme/campus-hostel-api/pkg/response"
)

type ledgerService interface {
	BalancesWithSource(ctx context.Context, view models.LedgerView) ([]models.LedgerBalance, bool, error)
	Entries(ctx context.Context, uid int64) ([]models.LedgerEntry, error)
	Export(ctx context.Context, view models.LedgerView, format string) (*service.ExportFile, error)
	Snapshot(ctx context.Context, view models.LedgerView, format string) (*service.LedgerSnapshot, error)
	OpenSnapshot(token string) (*service.ExportFile, error)
}

// LedgerHandler exposes balances.
type LedgerHandler struct {
	ledger ledgerService
}

// NewLedgerHandler constructs LedgerHandler.
func NewLedgerHandler(ledger ledgerService) *LedgerHandler {
	return &LedgerHandler{ledger: ledger}
}

// Balances godoc
// @Summary Ledger balances
// @Tags Ledger
// @Produce json
// @Security BearerAuth
// @Param view query string false "pending (default) or all"
// @Success 200 {object} response.Envelope
// @Router /ledger [get]
func (h *LedgerHandler) Balances(c *gin.Context) {
	balances, cached, err := h.ledger.BalancesWithSource(c.Request.Context(), models.LedgerView(c.DefaultQuery("view", string(models.LedgerViewPending))))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cached)
	response.JSON(c, http.StatusOK, balances, nil, middleware.ExtractMeta(c))
}

// Entries godoc
// @Summary Ledger entries of a student
// @Tags Ledger
// @Produce json
// @Security BearerAuth
// @Param uid path int true "Student UID"
// @Success 200 {object} response.Envelope
// @Router /ledger/{uid}/entries [get]
func (h *LedgerHandler) Entries(c *gin.Context) {
	uid, err := int64Param(c, "uid")
	if err != nil {
		response.Error(c, err)
		return
	}
	entries, err := h.ledger.Entries(c.Request.Context(), uid)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// Export godoc
// @Summary Export balances
// @Tags Ledger
// @Produce text/csv
// @Produce application/pdf
// @Security BearerAuth
// @Param view query string false "pending (default) or all"
// @Param format query string false "csv (default) or pdf"
// @Success 200 {file} file
// @Router /ledger/export [get]
func (h *LedgerHandler) Export(c *gin.Context) {
	file, err := h.ledger.Export(c.Request.Context(), models.LedgerView(c.DefaultQuery("view", string(models.LedgerViewPending))), c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.File(c, file.Name, file.ContentType, file.Data)
}

// Snapshot godoc
// @Summary Archive a balance export and return a signed download token
// @Tags Ledger
// @Produce json
// @Security BearerAuth
// @Param view query string false "pending (default) or all"
// @Param format query string false "csv (default) or pdf"
// @Success 201 {object} response.Envelope
// @Router /ledger/snapshots [post]
func (h *LedgerHandler) Snapshot(c *gin.Context) {
	snap, err := h.ledger.Snapshot(c.Request.Context(), models.LedgerView(c.DefaultQuery("view", string(models.LedgerViewPending))), c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, snap)
}

// Download godoc
// @Summary Download an archived balance export
// @Tags Ledger
// @Produce text/csv
// @Produce application/pdf
// @Param token path string true "Signed download token"
// @Success 200 {file} file
// @Router /ledger/snapshots/{token} [get]
func (h *LedgerHandler) Download(c *gin.Context) {
	file, err := h.ledger.OpenSnapshot(c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.File(c, file.Name, file.ContentType, file.Data)
}
