package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-hostel-api/internal/billing"
	"github.com/noah-isme/campus-hostel-api/internal/models"
	"github.com/noah-isme/campus-hostel-api/internal/service"
	appErrors "github.com/noah-isme/campus-hostel-api/pkg/errors"
	"github.com/noah-isme/campus-hostel-api/pkg/jobs"
	"github.com/noah-isme/campus-hostel-api/pkg/response"
)

type billService interface {
	GenerateBills(ctx context.Context, referenceDate time.Time) (*models.BillRunSummary, error)
	RecalculatePeriod(ctx context.Context, period billing.Period) (*models.RecalculateSummary, error)
	ListBills(ctx context.Context, filter models.BillFilter) ([]models.BillDetail, error)
	UpdateBill(ctx context.Context, key string, patch models.BillPatch) (*models.BillUpdateResult, error)
}

type billEnqueuer interface {
	Enqueue(referenceDate time.Time, trigger string) (string, error)
}

// GenerateBillsRequest is the optional body of a bill run.
type GenerateBillsRequest struct {
	ReferenceDate string `json:"reference_date"`
}

// RecalculateRequest selects the month to recalculate.
type RecalculateRequest struct {
	Year  int `json:"year" binding:"required"`
	Month int `json:"month" binding:"required,min=1,max=12"`
}

// BillHandler exposes bill generation and maintenance.
type BillHandler struct {
	bills billService
	queue billEnqueuer
	now   func() time.Time
}

// NewBillHandler constructs BillHandler. queue may be nil, which disables async runs.
func NewBillHandler(bills billService, queue billEnqueuer) *BillHandler {
	return &BillHandler{bills: bills, queue: queue, now: func() time.Time { return time.Now().UTC() }}
}

// Generate godoc
// @Summary Run bill generation
// @Description Bills the previous, current and next month around the reference date
// @Tags Bills
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param async query bool false "Queue the run and return immediately"
// @Param payload body GenerateBillsRequest false "Reference date (YYYY-MM-DD), default today"
// @Success 200 {object} response.Envelope
// @Success 202 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /bills/generate [post]
func (h *BillHandler) Generate(c *gin.Context) {
	var req GenerateBillsRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, bindError(err, "invalid bill run payload"))
			return
		}
	}
	ref := h.now()
	if strings.TrimSpace(req.ReferenceDate) != "" {
		d, err := billing.ParseDate(req.ReferenceDate)
		if err != nil {
			response.Error(c, bindError(err, "reference_date must be YYYY-MM-DD"))
			return
		}
		ref = d
	}

	if async, _ := strconv.ParseBool(c.Query("async")); async {
		if h.queue == nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "async bill runs are not enabled"))
			return
		}
		id, err := h.queue.Enqueue(ref, service.BillTriggerAPI)
		if errors.Is(err, jobs.ErrDuplicate) {
			response.Error(c, appErrors.WrapAs(appErrors.ErrConflict, err, "a bill run for this month is already queued (job "+id+")"))
			return
		}
		if err != nil {
			response.Error(c, appErrors.WrapAs(appErrors.ErrInternal, err, "failed to queue bill run"))
			return
		}
		response.JSON(c, http.StatusAccepted, gin.H{"job_id": id, "reference_date": billing.FormatDate(ref)}, nil)
		return
	}

	summary, err := h.bills.GenerateBills(c.Request.Context(), ref)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// Recalculate godoc
// @Summary Recalculate a month
// @Description Re-applies proration to unapproved bills from current stay dates
// @Tags Bills
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body RecalculateRequest true "Month"
// @Success 200 {object} response.Envelope
// @Router /bills/recalculate [post]
func (h *BillHandler) Recalculate(c *gin.Context) {
	var req RecalculateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "year and month are required"))
		return
	}
	summary, err := h.bills.RecalculatePeriod(c.Request.Context(), billing.Period{Year: req.Year, Month: time.Month(req.Month)})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// List godoc
// @Summary List bills of a month
// @Tags Bills
// @Produce json
// @Security BearerAuth
// @Param year query int true "Year"
// @Param month query int true "Month"
// @Param room query string false "Room name"
// @Success 200 {object} response.Envelope
// @Router /bills [get]
func (h *BillHandler) List(c *gin.Context) {
	year, month, err := yearMonthQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	bills, err := h.bills.ListBills(c.Request.Context(), models.BillFilter{Year: year, Month: month, Room: strings.TrimSpace(c.Query("room"))})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, bills, nil)
}

// Update godoc
// @Summary Correct a bill
// @Description Amounts of an approved bill are read-only. A failed write returns the stored row.
// @Tags Bills
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param key path string true "Bill key {uid}-{year}-{month}"
// @Param payload body models.BillPatch true "Corrections"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /bills/{key} [patch]
func (h *BillHandler) Update(c *gin.Context) {
	var patch models.BillPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		response.Error(c, bindError(err, "invalid bill payload"))
		return
	}
	res, err := h.bills.UpdateBill(c.Request.Context(), c.Param("key"), patch)
	if err != nil {
		if res != nil {
			appErr := appErrors.FromError(err)
			c.JSON(appErr.Status, response.Envelope{Data: res, Error: appErr})
			return
		}
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}
