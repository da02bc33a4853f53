package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-hostel-api/internal/billing"
	"github.com/noah-isme/campus-hostel-api/internal/models"
	appErrors "github.com/noah-isme/campus-hostel-api/pkg/errors"
)

// Bill run triggers recorded in metrics and logs.
const (
	BillTriggerAPI       = "api"
	BillTriggerScheduled = "scheduled"
	BillTriggerCLI       = "cli"
)

const ledgerCachePattern = "ledger:*"

type billStudentRepository interface {
	ListResidentBetween(ctx context.Context, windowStart, windowEnd time.Time) ([]models.Student, error)
	FindByUID(ctx context.Context, uid int64) (*models.Student, error)
}

type billRepository interface {
	Insert(ctx context.Context, bill *models.Bill, entry models.LedgerEntry) (bool, error)
	List(ctx context.Context, filter models.BillFilter) ([]models.BillDetail, error)
	Find(ctx context.Context, uid int64, year, month int) (*models.Bill, error)
	Update(ctx context.Context, bill *models.Bill, adjustment *models.LedgerEntry) error
}

type cacheInvalidator interface {
	Invalidate(ctx context.Context, pattern string)
}

// BillingService generates and maintains monthly bills.
type BillingService struct {
	students     billStudentRepository
	bills        billRepository
	cache        cacheInvalidator
	metrics      *MetricsService
	validator    *validator.Validate
	logger       *zap.Logger
	storeTimeout time.Duration
	now          func() time.Time
}

// NewBillingService constructs the billing service. cache and metrics may be nil.
func NewBillingService(students billStudentRepository, bills billRepository, cache cacheInvalidator, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, storeTimeout time.Duration) *BillingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BillingService{
		students:     students,
		bills:        bills,
		cache:        cache,
		metrics:      metrics,
		validator:    validate,
		logger:       logger,
		storeTimeout: storeTimeout,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// GenerateBills bills the month before, the month of and the month after
// referenceDate. Windows and students are independent: a failure in one is
// logged and counted and the run carries on.
func (s *BillingService) GenerateBills(ctx context.Context, referenceDate time.Time) (*models.BillRunSummary, error) {
	return s.Run(ctx, referenceDate, BillTriggerAPI)
}

// Run is GenerateBills with an explicit trigger label.
func (s *BillingService) Run(ctx context.Context, referenceDate time.Time, trigger string) (*models.BillRunSummary, error) {
	if referenceDate.IsZero() {
		referenceDate = s.now()
	}
	ref := billing.PeriodOf(referenceDate)
	summary := &models.BillRunSummary{ReferenceDate: billing.FormatDate(referenceDate)}
	s.metrics.ObserveBillRun(trigger)

	for _, period := range []billing.Period{ref.Prev(), ref, ref.Next()} {
		if err := ctx.Err(); err != nil {
			return summary, appErrors.Store(err, "bill run cancelled")
		}
		summary.Add(s.generateWindow(ctx, period))
	}

	if summary.Created > 0 {
		s.invalidateLedger(ctx)
	}
	s.logger.Info("bill run finished",
		zap.String("trigger", trigger),
		zap.String("reference_date", summary.ReferenceDate),
		zap.Int("created", summary.Created),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed),
	)
	return summary, nil
}

// GenerateForPeriod bills a single month.
func (s *BillingService) GenerateForPeriod(ctx context.Context, period billing.Period) (*models.BillWindowResult, error) {
	if !period.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid billing period")
	}
	result := s.generateWindow(ctx, period)
	if result.Created > 0 {
		s.invalidateLedger(ctx)
	}
	return &result, nil
}

func (s *BillingService) generateWindow(ctx context.Context, period billing.Period) models.BillWindowResult {
	result := models.BillWindowResult{Period: period.String()}
	log := s.logger.With(zap.String("period", result.Period))

	students, err := s.listResidents(ctx, period)
	if err != nil {
		log.Error("select students for bill window", zap.Error(err))
		result.Error = err.Error()
		return result
	}
	result.Selected = len(students)

	billDate := billing.Truncate(s.now())
	for _, st := range students {
		bill := BuildBill(st, period, billDate)
		created, err := s.insertBill(ctx, &bill)
		switch {
		case err != nil:
			result.Failed++
			s.metrics.ObserveBill(BillOutcomeFailed)
			log.Error("insert bill", zap.Int64("uid", st.UID), zap.Error(err))
		case created:
			result.Created++
			s.metrics.ObserveBill(BillOutcomeCreated)
		default:
			result.Skipped++
			s.metrics.ObserveBill(BillOutcomeSkipped)
		}
	}
	return result
}

// BuildBill computes the bill a student owes for period.
func BuildBill(st models.Student, period billing.Period, billDate time.Time) models.Bill {
	stay := billing.Stay{Start: st.StartDate, End: st.EndDate}
	return models.Bill{
		UID:             st.UID,
		Year:            period.Year,
		Month:           int(period.Month),
		RoomName:        st.RoomName,
		MonthlyRent:     billing.ChargeForMonth(stay, period, st.MonthlyRent),
		LaundryCharge:   st.LaundryCharge,
		OtherCharge:     st.OtherCharge,
		SecurityDeposit: billing.DepositFor(stay, period, st.SecurityDeposit),
		BillDate:        billDate,
	}
}

func (s *BillingService) listResidents(ctx context.Context, period billing.Period) ([]models.Student, error) {
	callCtx, cancel := boundedContext(ctx, s.storeTimeout)
	defer cancel()
	started := time.Now()
	students, err := s.students.ListResidentBetween(callCtx, period.Start(), period.Next().Start())
	s.metrics.ObserveStoreCall("list_residents", time.Since(started))
	return students, err
}

func (s *BillingService) insertBill(ctx context.Context, bill *models.Bill) (bool, error) {
	callCtx, cancel := boundedContext(ctx, s.storeTimeout)
	defer cancel()
	started := time.Now()
	created, err := s.bills.Insert(callCtx, bill, billing.BillEntry(*bill))
	s.metrics.ObserveStoreCall("insert_bill", time.Since(started))
	return created, err
}

// RecalculatePeriod re-applies proration to the unapproved bills of period
// using the students' current stay dates and rent.
func (s *BillingService) RecalculatePeriod(ctx context.Context, period billing.Period) (*models.RecalculateSummary, error) {
	if !period.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid billing period")
	}
	bills, err := s.ListBills(ctx, models.BillFilter{Year: period.Year, Month: int(period.Month)})
	if err != nil {
		return nil, err
	}

	summary := &models.RecalculateSummary{Period: period.String()}
	for _, detail := range bills {
		current := detail.Bill
		if current.Approved {
			continue
		}
		summary.Checked++

		st, err := s.findStudent(ctx, current.UID)
		if err != nil {
			summary.Failed++
			s.logger.Warn("recalculate bill: student lookup", zap.Int64("uid", current.UID), zap.Error(err))
			continue
		}
		fresh := BuildBill(*st, period, current.BillDate)
		updated := current
		updated.MonthlyRent = fresh.MonthlyRent
		updated.SecurityDeposit = fresh.SecurityDeposit
		if updated.MonthlyRent == current.MonthlyRent && updated.SecurityDeposit == current.SecurityDeposit {
			summary.Unchanged++
			continue
		}
		if err := s.writeBill(ctx, current, &updated); err != nil {
			summary.Failed++
			s.logger.Error("recalculate bill", zap.Int64("uid", current.UID), zap.Error(err))
			continue
		}
		summary.Updated++
	}
	if summary.Updated > 0 {
		s.invalidateLedger(ctx)
	}
	return summary, nil
}

// ListBills returns the bills of one month.
func (s *BillingService) ListBills(ctx context.Context, filter models.BillFilter) ([]models.BillDetail, error) {
	if filter.Month < 1 || filter.Month > 12 || filter.Year < 1 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "year and month are required")
	}
	callCtx, cancel := boundedContext(ctx, s.storeTimeout)
	defer cancel()
	bills, err := s.bills.List(callCtx, filter)
	if err != nil {
		return nil, appErrors.Store(err, "failed to list bills")
	}
	return bills, nil
}

// UpdateBill applies an operator correction to the bill identified by key
// ("{uid}-{year}-{month}"). Amounts of an approved bill are read-only. When
// the write fails the stored row is re-read and returned with Reverted set
// so the caller can show what is actually persisted.
func (s *BillingService) UpdateBill(ctx context.Context, key string, patch models.BillPatch) (*models.BillUpdateResult, error) {
	if err := s.validator.Struct(patch); err != nil {
		return nil, appErrors.WrapAs(appErrors.ErrValidation, err, "invalid bill payload")
	}
	uid, year, month, err := billing.ParseBillKey(key)
	if err != nil {
		return nil, appErrors.WrapAs(appErrors.ErrValidation, err, "invalid bill key")
	}
	current, err := s.findBill(ctx, uid, year, month)
	if err != nil {
		return nil, err
	}
	if current.Approved && (patch.ChangesAmounts() || (patch.Approved != nil && !*patch.Approved)) {
		return nil, appErrors.Clone(appErrors.ErrApprovedImmutable, "approved bill is read-only")
	}

	updated := *current
	applyBillPatch(&updated, patch)
	if updated == *current {
		return &models.BillUpdateResult{Bill: current}, nil
	}

	if err := s.writeBill(ctx, *current, &updated); err != nil {
		stored, findErr := s.findBill(ctx, uid, year, month)
		if findErr != nil {
			s.logger.Error("re-read bill after failed update", zap.String("bill", key), zap.Error(findErr))
			stored = current
		}
		return &models.BillUpdateResult{Bill: stored, Reverted: true}, appErrors.Store(err, "failed to update bill")
	}
	s.invalidateLedger(ctx)
	return &models.BillUpdateResult{Bill: &updated}, nil
}

func applyBillPatch(b *models.Bill, patch models.BillPatch) {
	set := func(dst *int64, src *int64) {
		if src != nil {
			*dst = *src
		}
	}
	set(&b.MonthlyRent, patch.MonthlyRent)
	set(&b.ElectricityCharge, patch.ElectricityCharge)
	set(&b.LaundryCharge, patch.LaundryCharge)
	set(&b.OtherCharge, patch.OtherCharge)
	set(&b.SecurityDeposit, patch.SecurityDeposit)
	if patch.Approved != nil {
		b.Approved = *patch.Approved
	}
}

func (s *BillingService) writeBill(ctx context.Context, old models.Bill, updated *models.Bill) error {
	updated.UpdatedAt = s.now()
	var adjustment *models.LedgerEntry
	if entry, ok := billing.BillAdjustment(old, *updated); ok {
		adjustment = &entry
	}
	callCtx, cancel := boundedContext(ctx, s.storeTimeout)
	defer cancel()
	return s.bills.Update(callCtx, updated, adjustment)
}

func (s *BillingService) findBill(ctx context.Context, uid int64, year, month int) (*models.Bill, error) {
	callCtx, cancel := boundedContext(ctx, s.storeTimeout)
	defer cancel()
	bill, err := s.bills.Find(callCtx, uid, year, month)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "bill not found")
		}
		return nil, appErrors.Store(err, "failed to load bill")
	}
	return bill, nil
}

func (s *BillingService) findStudent(ctx context.Context, uid int64) (*models.Student, error) {
	callCtx, cancel := boundedContext(ctx, s.storeTimeout)
	defer cancel()
	return s.students.FindByUID(callCtx, uid)
}

func (s *BillingService) invalidateLedger(ctx context.Context) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, ledgerCachePattern)
	}
}
