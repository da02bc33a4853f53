package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-hostel-api/internal/billing"
	"github.com/noah-isme/campus-hostel-api/internal/models"
	appErrors "github.com/noah-isme/campus-hostel-api/pkg/errors"
)

type fakeBillStudents struct {
	students   []models.Student
	failWindow time.Time
}

func (f *fakeBillStudents) ListResidentBetween(ctx context.Context, windowStart, windowEnd time.Time) ([]models.Student, error) {
	if !f.failWindow.IsZero() && f.failWindow.Equal(windowStart) {
		return nil, errors.New("connection reset")
	}
	var out []models.Student
	for _, st := range f.students {
		if st.StartDate.Before(windowEnd) && !st.EndDate.Before(windowStart) {
			out = append(out, st)
		}
	}
	return out, nil
}

func (f *fakeBillStudents) FindByUID(ctx context.Context, uid int64) (*models.Student, error) {
	for _, st := range f.students {
		if st.UID == uid {
			s := st
			return &s, nil
		}
	}
	return nil, errors.New("not found")
}

type fakeBillRepo struct {
	bills      map[string]models.Bill
	entries    []models.LedgerEntry
	failUID    int64
	updateErr  error
	inserted   int
	lastFilter models.BillFilter
}

func newFakeBillRepo() *fakeBillRepo {
	return &fakeBillRepo{bills: make(map[string]models.Bill)}
}

func billMapKey(uid int64, year, month int) string {
	return fmt.Sprintf("%d-%d-%d", uid, year, month)
}

func (f *fakeBillRepo) Insert(ctx context.Context, bill *models.Bill, entry models.LedgerEntry) (bool, error) {
	if bill.UID == f.failUID {
		return false, errors.New("insert failed")
	}
	key := billMapKey(bill.UID, bill.Year, bill.Month)
	if _, ok := f.bills[key]; ok {
		return false, nil
	}
	f.bills[key] = *bill
	f.entries = append(f.entries, entry)
	f.inserted++
	return true, nil
}

func (f *fakeBillRepo) List(ctx context.Context, filter models.BillFilter) ([]models.BillDetail, error) {
	f.lastFilter = filter
	var out []models.BillDetail
	for _, b := range f.bills {
		if b.Year == filter.Year && b.Month == filter.Month {
			out = append(out, models.BillDetail{Bill: b})
		}
	}
	return out, nil
}

func (f *fakeBillRepo) Find(ctx context.Context, uid int64, year, month int) (*models.Bill, error) {
	b, ok := f.bills[billMapKey(uid, year, month)]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &b, nil
}

func (f *fakeBillRepo) Update(ctx context.Context, bill *models.Bill, adjustment *models.LedgerEntry) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.bills[billMapKey(bill.UID, bill.Year, bill.Month)] = *bill
	if adjustment != nil {
		f.entries = append(f.entries, *adjustment)
	}
	return nil
}

type recordingInvalidator struct {
	patterns []string
}

func (r *recordingInvalidator) Invalidate(ctx context.Context, pattern string) {
	r.patterns = append(r.patterns, pattern)
}

func mustDate(t *testing.T, raw string) time.Time {
	t.Helper()
	d, err := billing.ParseDate(raw)
	require.NoError(t, err)
	return d
}

func newBillingServiceForTest(students *fakeBillStudents, bills *fakeBillRepo, cache cacheInvalidator) *BillingService {
	svc := NewBillingService(students, bills, cache, nil, validator.New(), zap.NewNop(), time.Second)
	svc.now = func() time.Time { return time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC) }
	return svc
}

func TestBillingServiceGenerateBillsProratesThreeWindows(t *testing.T) {
	students := &fakeBillStudents{students: []models.Student{
		{UID: 1, RoomName: "101", MonthlyRent: 6000, SecurityDeposit: 6000, LaundryCharge: 300,
			StartDate: mustDate(t, "2024-03-10"), EndDate: billing.FarFuture},
		{UID: 2, RoomName: "102", MonthlyRent: 6000, SecurityDeposit: 5000,
			StartDate: mustDate(t, "2024-01-01"), EndDate: mustDate(t, "2024-03-20")},
	}}
	bills := newFakeBillRepo()
	cache := &recordingInvalidator{}
	svc := newBillingServiceForTest(students, bills, cache)

	summary, err := svc.GenerateBills(context.Background(), mustDate(t, "2024-03-15"))
	require.NoError(t, err)
	require.Len(t, summary.Windows, 3)
	assert.Equal(t, "2024-02", summary.Windows[0].Period)
	assert.Equal(t, "2024-04", summary.Windows[2].Period)
	assert.Equal(t, 4, summary.Created)
	assert.Zero(t, summary.Failed)

	feb := bills.bills[billMapKey(2, 2024, 2)]
	assert.Equal(t, int64(6000), feb.MonthlyRent)
	assert.Zero(t, feb.SecurityDeposit)

	marArrival := bills.bills[billMapKey(1, 2024, 3)]
	assert.Equal(t, int64(4400), marArrival.MonthlyRent)
	assert.Equal(t, int64(6000), marArrival.SecurityDeposit)
	assert.Equal(t, int64(300), marArrival.LaundryCharge)
	assert.Equal(t, "101", marArrival.RoomName)

	marLeaver := bills.bills[billMapKey(2, 2024, 3)]
	assert.Equal(t, int64(4000), marLeaver.MonthlyRent)

	apr := bills.bills[billMapKey(1, 2024, 4)]
	assert.Equal(t, int64(6000), apr.MonthlyRent)
	assert.Zero(t, apr.SecurityDeposit)

	_, billedAfterLeaving := bills.bills[billMapKey(2, 2024, 4)]
	assert.False(t, billedAfterLeaving)

	require.Len(t, bills.entries, 4)
	assert.Equal(t, []string{ledgerCachePattern}, cache.patterns)
}

func TestBillingServiceGenerateBillsIsIdempotent(t *testing.T) {
	students := &fakeBillStudents{students: []models.Student{
		{UID: 1, MonthlyRent: 6000, StartDate: mustDate(t, "2023-01-01"), EndDate: billing.FarFuture},
	}}
	bills := newFakeBillRepo()
	svc := newBillingServiceForTest(students, bills, nil)

	first, err := svc.GenerateBills(context.Background(), mustDate(t, "2024-03-15"))
	require.NoError(t, err)
	assert.Equal(t, 3, first.Created)

	second, err := svc.GenerateBills(context.Background(), mustDate(t, "2024-03-15"))
	require.NoError(t, err)
	assert.Zero(t, second.Created)
	assert.Equal(t, 3, second.Skipped)
	assert.Equal(t, 3, bills.inserted)
}

func TestBillingServiceFailuresStayIsolated(t *testing.T) {
	students := &fakeBillStudents{
		students: []models.Student{
			{UID: 1, MonthlyRent: 6000, StartDate: mustDate(t, "2023-01-01"), EndDate: billing.FarFuture},
			{UID: 2, MonthlyRent: 5000, StartDate: mustDate(t, "2023-01-01"), EndDate: billing.FarFuture},
		},
		failWindow: mustDate(t, "2024-02-01"),
	}
	bills := newFakeBillRepo()
	bills.failUID = 2
	svc := newBillingServiceForTest(students, bills, nil)

	summary, err := svc.GenerateBills(context.Background(), mustDate(t, "2024-03-15"))
	require.NoError(t, err)
	assert.NotEmpty(t, summary.Windows[0].Error)
	assert.Equal(t, 2, summary.Created)
	assert.Equal(t, 2, summary.Failed)
	_, ok := bills.bills[billMapKey(1, 2024, 4)]
	assert.True(t, ok)
}

func TestBillingServiceStartOnFirstPaysFullMonth(t *testing.T) {
	students := &fakeBillStudents{students: []models.Student{
		{UID: 9, MonthlyRent: 6000, SecurityDeposit: 6000, StartDate: mustDate(t, "2024-03-01"), EndDate: billing.FarFuture},
	}}
	bills := newFakeBillRepo()
	svc := newBillingServiceForTest(students, bills, nil)

	res, err := svc.GenerateForPeriod(context.Background(), billing.Period{Year: 2024, Month: time.March})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)
	bill := bills.bills[billMapKey(9, 2024, 3)]
	assert.Equal(t, int64(6000), bill.MonthlyRent)
	assert.Equal(t, int64(12000), bill.Total())
}

func TestBillingServiceRecalculatePeriod(t *testing.T) {
	students := &fakeBillStudents{students: []models.Student{
		{UID: 1, MonthlyRent: 6000, StartDate: mustDate(t, "2023-01-01"), EndDate: mustDate(t, "2024-03-10")},
		{UID: 2, MonthlyRent: 5000, StartDate: mustDate(t, "2023-01-01"), EndDate: billing.FarFuture},
	}}
	bills := newFakeBillRepo()
	bills.bills[billMapKey(1, 2024, 3)] = models.Bill{UID: 1, Year: 2024, Month: 3, MonthlyRent: 6000}
	bills.bills[billMapKey(2, 2024, 3)] = models.Bill{UID: 2, Year: 2024, Month: 3, MonthlyRent: 5000}
	bills.bills[billMapKey(3, 2024, 3)] = models.Bill{UID: 3, Year: 2024, Month: 3, MonthlyRent: 5000, Approved: true}
	cache := &recordingInvalidator{}
	svc := newBillingServiceForTest(students, bills, cache)

	summary, err := svc.RecalculatePeriod(context.Background(), billing.Period{Year: 2024, Month: time.March})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Checked)
	assert.Equal(t, 1, summary.Updated)
	assert.Equal(t, 1, summary.Unchanged)
	assert.Equal(t, int64(2000), bills.bills[billMapKey(1, 2024, 3)].MonthlyRent)
	require.Len(t, bills.entries, 1)
	assert.Equal(t, models.LedgerAdjustment, bills.entries[0].Type)
	assert.Equal(t, int64(-4000), bills.entries[0].Total)
	assert.Len(t, cache.patterns, 1)
}

func TestBillingServiceUpdateBill(t *testing.T) {
	bills := newFakeBillRepo()
	bills.bills[billMapKey(7, 2024, 3)] = models.Bill{UID: 7, Year: 2024, Month: 3, MonthlyRent: 6000}
	svc := newBillingServiceForTest(&fakeBillStudents{}, bills, nil)

	elec := int64(450)
	res, err := svc.UpdateBill(context.Background(), "7-2024-3", models.BillPatch{ElectricityCharge: &elec})
	require.NoError(t, err)
	assert.False(t, res.Reverted)
	assert.Equal(t, int64(450), res.Bill.ElectricityCharge)
	require.Len(t, bills.entries, 1)
	assert.Equal(t, int64(450), bills.entries[0].Total)
}

func TestBillingServiceUpdateApprovedBillRejected(t *testing.T) {
	bills := newFakeBillRepo()
	bills.bills[billMapKey(7, 2024, 3)] = models.Bill{UID: 7, Year: 2024, Month: 3, MonthlyRent: 6000, Approved: true}
	svc := newBillingServiceForTest(&fakeBillStudents{}, bills, nil)

	rent := int64(1)
	_, err := svc.UpdateBill(context.Background(), "7-2024-3", models.BillPatch{MonthlyRent: &rent})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrApprovedImmutable.Code, appErrors.FromError(err).Code)
}

func TestBillingServiceUpdateBillRevertsOnFailure(t *testing.T) {
	bills := newFakeBillRepo()
	bills.bills[billMapKey(7, 2024, 3)] = models.Bill{UID: 7, Year: 2024, Month: 3, MonthlyRent: 6000}
	bills.updateErr = errors.New("write failed")
	svc := newBillingServiceForTest(&fakeBillStudents{}, bills, nil)

	rent := int64(5500)
	res, err := svc.UpdateBill(context.Background(), "7-2024-3", models.BillPatch{MonthlyRent: &rent})
	require.Error(t, err)
	require.NotNil(t, res)
	assert.True(t, res.Reverted)
	assert.Equal(t, int64(6000), res.Bill.MonthlyRent)
}

func TestBillingServiceUpdateBillNotFoundAndBadKey(t *testing.T) {
	svc := newBillingServiceForTest(&fakeBillStudents{}, newFakeBillRepo(), nil)

	_, err := svc.UpdateBill(context.Background(), "7-2024-3", models.BillPatch{})
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	_, err = svc.UpdateBill(context.Background(), "nonsense", models.BillPatch{})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestBillingServiceListBillsRequiresPeriod(t *testing.T) {
	bills := newFakeBillRepo()
	svc := newBillingServiceForTest(&fakeBillStudents{}, bills, nil)

	_, err := svc.ListBills(context.Background(), models.BillFilter{Year: 2024})
	require.Error(t, err)

	_, err = svc.ListBills(context.Background(), models.BillFilter{Year: 2024, Month: 3, Room: "101"})
	require.NoError(t, err)
	assert.Equal(t, "101", bills.lastFilter.Room)
}
