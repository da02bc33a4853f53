package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-hostel-api/internal/billing"
	"github.com/noah-isme/campus-hostel-api/internal/models"
	appErrors "github.com/noah-isme/campus-hostel-api/pkg/errors"
	"github.com/noah-isme/campus-hostel-api/pkg/jobs"
)

type billServiceMock struct {
	lastRef    time.Time
	lastPeriod billing.Period
	lastFilter models.BillFilter
	lastKey    string
	updateResp *models.BillUpdateResult
	updateErr  error
}

func (m *billServiceMock) GenerateBills(ctx context.Context, ref time.Time) (*models.BillRunSummary, error) {
	m.lastRef = ref
	return &models.BillRunSummary{ReferenceDate: billing.FormatDate(ref), Created: 3}, nil
}

func (m *billServiceMock) RecalculatePeriod(ctx context.Context, period billing.Period) (*models.RecalculateSummary, error) {
	m.lastPeriod = period
	return &models.RecalculateSummary{Period: period.String()}, nil
}

func (m *billServiceMock) ListBills(ctx context.Context, filter models.BillFilter) ([]models.BillDetail, error) {
	m.lastFilter = filter
	return []models.BillDetail{}, nil
}

func (m *billServiceMock) UpdateBill(ctx context.Context, key string, patch models.BillPatch) (*models.BillUpdateResult, error) {
	m.lastKey = key
	return m.updateResp, m.updateErr
}

type enqueuerMock struct {
	refs []time.Time
	err  error
}

func (m *enqueuerMock) Enqueue(ref time.Time, trigger string) (string, error) {
	m.refs = append(m.refs, ref)
	return "job-42", m.err
}

func TestBillHandlerGenerateWithReferenceDate(t *testing.T) {
	svc := &billServiceMock{}
	handler := NewBillHandler(svc, nil)

	c, w := newTestContext(http.MethodPost, "/bills/generate", `{"reference_date":"2024-03-15"}`)
	handler.Generate(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2024-03-15", billing.FormatDate(svc.lastRef))
}

func TestBillHandlerGenerateDefaultsToToday(t *testing.T) {
	svc := &billServiceMock{}
	handler := NewBillHandler(svc, nil)
	handler.now = func() time.Time { return time.Date(2024, 6, 2, 8, 0, 0, 0, time.UTC) }

	c, w := newTestContext(http.MethodPost, "/bills/generate", "")
	handler.Generate(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2024-06-02", billing.FormatDate(svc.lastRef))
}

func TestBillHandlerGenerateAsync(t *testing.T) {
	svc := &billServiceMock{}
	queue := &enqueuerMock{}
	handler := NewBillHandler(svc, queue)

	c, w := newTestContext(http.MethodPost, "/bills/generate?async=true", `{"reference_date":"2024-03-15"}`)
	handler.Generate(c)

	require.Equal(t, http.StatusAccepted, w.Code)
	require.Len(t, queue.refs, 1)
	assert.True(t, svc.lastRef.IsZero())
	data := decodeEnvelope(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "job-42", data["job_id"])
}

func TestBillHandlerGenerateAsyncDuplicate(t *testing.T) {
	queue := &enqueuerMock{err: fmt.Errorf("bill-runs: %w", jobs.ErrDuplicate)}
	handler := NewBillHandler(&billServiceMock{}, queue)

	c, w := newTestContext(http.MethodPost, "/bills/generate?async=true", "")
	handler.Generate(c)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestBillHandlerGenerateAsyncUnavailable(t *testing.T) {
	handler := NewBillHandler(&billServiceMock{}, nil)
	c, w := newTestContext(http.MethodPost, "/bills/generate?async=1", "")
	handler.Generate(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBillHandlerGenerateBadDate(t *testing.T) {
	handler := NewBillHandler(&billServiceMock{}, nil)
	c, w := newTestContext(http.MethodPost, "/bills/generate", `{"reference_date":"15/03/2024"}`)
	handler.Generate(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBillHandlerListRequiresMonth(t *testing.T) {
	svc := &billServiceMock{}
	handler := NewBillHandler(svc, nil)

	c, w := newTestContext(http.MethodGet, "/bills?year=2024", "")
	handler.List(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	c, w = newTestContext(http.MethodGet, "/bills?year=2024&month=3&room=101", "")
	handler.List(c)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.BillFilter{Year: 2024, Month: 3, Room: "101"}, svc.lastFilter)
}

func TestBillHandlerRecalculate(t *testing.T) {
	svc := &billServiceMock{}
	handler := NewBillHandler(svc, nil)

	c, w := newTestContext(http.MethodPost, "/bills/recalculate", `{"year":2024,"month":2}`)
	handler.Recalculate(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, billing.Period{Year: 2024, Month: time.February}, svc.lastPeriod)

	c, w = newTestContext(http.MethodPost, "/bills/recalculate", `{"year":2024,"month":13}`)
	handler.Recalculate(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBillHandlerUpdateRevertedKeepsStoredRow(t *testing.T) {
	svc := &billServiceMock{
		updateResp: &models.BillUpdateResult{Bill: &models.Bill{UID: 7, MonthlyRent: 6000}, Reverted: true},
		updateErr:  appErrors.Store(errors.New("write failed"), "failed to update bill"),
	}
	handler := NewBillHandler(svc, nil)

	c, w := newTestContext(http.MethodPatch, "/bills/7-2024-3", `{"monthly_rent":5500}`)
	c.Params = gin.Params{{Key: "key", Value: "7-2024-3"}}
	handler.Update(c)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "7-2024-3", svc.lastKey)
	body := decodeEnvelope(t, w)
	data := body["data"].(map[string]interface{})
	assert.Equal(t, true, data["reverted"])
	assert.NotNil(t, body["error"])
}
