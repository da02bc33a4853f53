package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-hostel-api/internal/models"
	"github.com/noah-isme/campus-hostel-api/internal/service"
	"github.com/noah-isme/campus-hostel-api/pkg/response"
)

type collectionService interface {
	NextInvoiceKey(ctx context.Context, uid int64) (string, error)
	SuggestPayment(ctx context.Context, uid int64) (*models.PaymentSuggestion, error)
	RecordPayment(ctx context.Context, req service.RecordPaymentRequest) (*models.PaymentResult, error)
	UpdateCollection(ctx context.Context, invoiceKey string, req service.RecordPaymentRequest) (*models.PaymentResult, error)
	ListCollections(ctx context.Context, filter models.CollectionFilter) (*models.CollectionList, error)
}

// CollectionHandler exposes payment endpoints.
type CollectionHandler struct {
	collections collectionService
}

// NewCollectionHandler constructs CollectionHandler.
func NewCollectionHandler(collections collectionService) *CollectionHandler {
	return &CollectionHandler{collections: collections}
}

// List godoc
// @Summary List collections of a month
// @Description Payments sorted by room with per-method totals and the rooms that paid
// @Tags Collections
// @Produce json
// @Security BearerAuth
// @Param year query int true "Year"
// @Param month query int true "Month"
// @Param room query string false "Room name"
// @Success 200 {object} response.Envelope
// @Router /collections [get]
func (h *CollectionHandler) List(c *gin.Context) {
	year, month, err := yearMonthQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	list, err := h.collections.ListCollections(c.Request.Context(), models.CollectionFilter{
		Year: year, Month: month, Room: strings.TrimSpace(c.Query("room")),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, list, nil)
}

// NextKey godoc
// @Summary Next invoice key
// @Tags Collections
// @Produce json
// @Security BearerAuth
// @Param uid path int true "Student UID"
// @Success 200 {object} response.Envelope
// @Router /collections/next-key/{uid} [get]
func (h *CollectionHandler) NextKey(c *gin.Context) {
	uid, err := int64Param(c, "uid")
	if err != nil {
		response.Error(c, err)
		return
	}
	key, err := h.collections.NextInvoiceKey(c.Request.Context(), uid)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"invoice_key": key}, nil)
}

// Suggest godoc
// @Summary Pre-filled payment
// @Tags Collections
// @Produce json
// @Security BearerAuth
// @Param uid path int true "Student UID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /collections/suggest/{uid} [get]
func (h *CollectionHandler) Suggest(c *gin.Context) {
	uid, err := int64Param(c, "uid")
	if err != nil {
		response.Error(c, err)
		return
	}
	suggestion, err := h.collections.SuggestPayment(c.Request.Context(), uid)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, suggestion, nil)
}

// Record godoc
// @Summary Record payment
// @Description Inserts a payment for a new invoice key or updates an existing one
// @Tags Collections
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.RecordPaymentRequest true "Payment"
// @Success 200 {object} response.Envelope
// @Success 201 {object} response.Envelope
// @Success 207 {object} response.Envelope "Saved, email failed"
// @Failure 400 {object} response.Envelope
// @Router /collections [post]
func (h *CollectionHandler) Record(c *gin.Context) {
	var req service.RecordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid payment payload"))
		return
	}
	res, err := h.collections.RecordPayment(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	writeResult(c, status, res, res.EmailError)
}

// Update godoc
// @Summary Update payment
// @Description Approved payments only accept receipt number and room changes
// @Tags Collections
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param invoiceKey path string true "Invoice key"
// @Param payload body service.RecordPaymentRequest true "Payment"
// @Success 200 {object} response.Envelope
// @Success 207 {object} response.Envelope "Saved, email failed"
// @Failure 404 {object} response.Envelope
// @Router /collections/{invoiceKey} [put]
func (h *CollectionHandler) Update(c *gin.Context) {
	var req service.RecordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid payment payload"))
		return
	}
	res, err := h.collections.UpdateCollection(c.Request.Context(), c.Param("invoiceKey"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	writeResult(c, http.StatusOK, res, res.EmailError)
}
