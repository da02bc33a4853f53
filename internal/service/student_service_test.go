package service

import (
	"context"
	"database/sql"
	"errors"
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

type mockStudentRepo struct {
	students     map[int64]models.Student
	mobiles      map[string]int64
	deactivated  []int64
	lastFilter   models.StudentFilter
	listTotal    int
	nextUID      int64
	err          error
	updateCalled bool
}

func (m *mockStudentRepo) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	m.lastFilter = filter
	if m.err != nil {
		return nil, 0, m.err
	}
	out := make([]models.Student, 0, len(m.students))
	for _, s := range m.students {
		out = append(out, s)
	}
	return out, m.listTotal, nil
}

func (m *mockStudentRepo) FindByUID(ctx context.Context, uid int64) (*models.Student, error) {
	if s, ok := m.students[uid]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockStudentRepo) ExistsByMobile(ctx context.Context, mobile string, excludeUID int64) (bool, error) {
	if uid, ok := m.mobiles[mobile]; ok && uid != excludeUID {
		return true, nil
	}
	return false, nil
}

func (m *mockStudentRepo) Create(ctx context.Context, student *models.Student) error {
	if m.err != nil {
		return m.err
	}
	if m.students == nil {
		m.students = make(map[int64]models.Student)
	}
	m.nextUID++
	student.UID = m.nextUID
	m.students[student.UID] = *student
	return nil
}

func (m *mockStudentRepo) Update(ctx context.Context, student *models.Student) error {
	m.updateCalled = true
	if m.err != nil {
		return m.err
	}
	m.students[student.UID] = *student
	return nil
}

func (m *mockStudentRepo) Deactivate(ctx context.Context, uid int64) error {
	m.deactivated = append(m.deactivated, uid)
	if s, ok := m.students[uid]; ok {
		s.Active = false
		m.students[uid] = s
	}
	return nil
}

type mockStudentNotifier struct {
	welcomed []models.Student
	updates  [][]models.FieldChange
	err      error
}

func (m *mockStudentNotifier) Welcome(ctx context.Context, st models.Student) error {
	m.welcomed = append(m.welcomed, st)
	return m.err
}

func (m *mockStudentNotifier) StudentUpdated(ctx context.Context, st models.Student, changes []models.FieldChange) error {
	m.updates = append(m.updates, changes)
	return m.err
}

func newStudentServiceForTest(repo *mockStudentRepo, notifier *mockStudentNotifier) *StudentService {
	return NewStudentService(repo, notifier, nil, validator.New(), zap.NewNop(), time.Second)
}

func validCreateRequest() CreateStudentRequest {
	return CreateStudentRequest{
		OriginalRoom:   101,
		FirstName:      "aarav",
		LastName:       "SHARMA",
		FatherName:     "rakesh sharma",
		Course:         "jee advanced",
		Institute:      "allen career institute",
		StudentMobile:  "9876543210",
		Email:          "Aarav@Example.com",
		ParentMobile:   "9876500000",
		GuardianMobile: "9876511111",
		Address:        "12 station road, jaipur",
		MonthlyRent:    6000,
		LaundryCharge:  300,
		StartDate:      "2024-03-10",
	}
}

func TestStudentServiceCreateAppliesDefaults(t *testing.T) {
	repo := &mockStudentRepo{}
	notifier := &mockStudentNotifier{}
	svc := newStudentServiceForTest(repo, notifier)

	res, err := svc.Create(context.Background(), validCreateRequest())
	require.NoError(t, err)
	st := res.Student
	assert.Equal(t, int64(1), st.UID)
	assert.Equal(t, "101", st.RoomName)
	assert.Equal(t, "Aarav", st.FirstName)
	assert.Equal(t, "Sharma", st.LastName)
	assert.Equal(t, "Rakesh Sharma", st.FatherName)
	assert.Equal(t, "JEE ADVANCED", st.Course)
	assert.Equal(t, "aarav@example.com", st.Email)
	assert.Equal(t, int64(6000), st.SecurityDeposit)
	assert.True(t, st.EndDate.Equal(billing.FarFuture))
	assert.True(t, st.Active)
	assert.False(t, res.EmailSent)
	assert.Empty(t, notifier.welcomed)
}

func TestStudentServiceCreateExplicitDepositAndEnd(t *testing.T) {
	svc := newStudentServiceForTest(&mockStudentRepo{}, nil)
	req := validCreateRequest()
	deposit := int64(0)
	req.SecurityDeposit = &deposit
	req.EndDate = "2024-06-30"
	req.RoomName = "101A"

	res, err := svc.Create(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.Student.SecurityDeposit)
	assert.Equal(t, "2024-06-30", billing.FormatDate(res.Student.EndDate))
	assert.Equal(t, "101A", res.Student.RoomName)
}

func TestStudentServiceCreateValidation(t *testing.T) {
	svc := newStudentServiceForTest(&mockStudentRepo{}, nil)

	req := validCreateRequest()
	req.OriginalRoom = 300
	_, err := svc.Create(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	req = validCreateRequest()
	req.StudentMobile = "98765-43210"
	_, err = svc.Create(context.Background(), req)
	require.Error(t, err)

	req = validCreateRequest()
	req.EndDate = "2024-03-01"
	_, err = svc.Create(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestStudentServiceCreateDuplicateMobile(t *testing.T) {
	repo := &mockStudentRepo{mobiles: map[string]int64{"9876543210": 7}}
	svc := newStudentServiceForTest(repo, nil)

	_, err := svc.Create(context.Background(), validCreateRequest())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.students)
}

func TestStudentServiceCreateWelcomeFailureKeepsStudent(t *testing.T) {
	repo := &mockStudentRepo{}
	notifier := &mockStudentNotifier{err: errors.New("smtp down")}
	svc := newStudentServiceForTest(repo, notifier)

	req := validCreateRequest()
	req.SendEmail = true
	res, err := svc.Create(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, res.EmailSent)
	assert.Equal(t, "smtp down", res.EmailError)
	assert.Len(t, repo.students, 1)
	assert.Len(t, notifier.welcomed, 1)
}

func TestStudentServiceUpdateReportsChanges(t *testing.T) {
	start, _ := billing.ParseDate("2024-03-10")
	repo := &mockStudentRepo{students: map[int64]models.Student{
		1: {UID: 1, OriginalRoom: 101, RoomName: "101", FirstName: "Aarav", StudentMobile: "1", MonthlyRent: 6000, StartDate: start, EndDate: billing.FarFuture, Active: true},
	}}
	notifier := &mockStudentNotifier{}
	svc := newStudentServiceForTest(repo, notifier)

	rent := int64(6500)
	end := "2024-05-20"
	res, err := svc.Update(context.Background(), 1, UpdateStudentRequest{MonthlyRent: &rent, EndDate: &end})
	require.NoError(t, err)
	require.Len(t, res.Changes, 2)
	assert.Equal(t, "monthly_rent", res.Changes[0].Field)
	assert.Equal(t, "6000", res.Changes[0].Old)
	assert.Equal(t, "6500", res.Changes[0].New)
	assert.Equal(t, "end_date", res.Changes[1].Field)
	assert.True(t, res.EmailSent)
	assert.Len(t, notifier.updates, 1)
	assert.Equal(t, int64(6500), repo.students[1].MonthlyRent)
}

func TestStudentServiceUpdateNoChangesSkipsWrite(t *testing.T) {
	repo := &mockStudentRepo{students: map[int64]models.Student{1: {UID: 1, FirstName: "Aarav", StartDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), EndDate: billing.FarFuture}}}
	notifier := &mockStudentNotifier{}
	svc := newStudentServiceForTest(repo, notifier)

	name := "aarav"
	res, err := svc.Update(context.Background(), 1, UpdateStudentRequest{FirstName: &name})
	require.NoError(t, err)
	assert.Empty(t, res.Changes)
	assert.False(t, repo.updateCalled)
	assert.Empty(t, notifier.updates)
}

func TestStudentServiceUpdateRejectsInvertedStay(t *testing.T) {
	start, _ := billing.ParseDate("2024-03-10")
	repo := &mockStudentRepo{students: map[int64]models.Student{1: {UID: 1, StartDate: start, EndDate: billing.FarFuture}}}
	svc := newStudentServiceForTest(repo, nil)

	end := "2024-02-01"
	_, err := svc.Update(context.Background(), 1, UpdateStudentRequest{EndDate: &end})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestStudentServiceGetNotFound(t *testing.T) {
	svc := newStudentServiceForTest(&mockStudentRepo{}, nil)
	_, err := svc.Get(context.Background(), 42)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestStudentServiceListAndDeactivate(t *testing.T) {
	repo := &mockStudentRepo{students: map[int64]models.Student{3: {UID: 3, Active: true}}, listTotal: 1}
	svc := newStudentServiceForTest(repo, nil)

	items, pagination, err := svc.List(context.Background(), models.StudentFilter{Search: "aa"})
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, 1, pagination.Page)
	assert.Equal(t, 20, pagination.PageSize)
	assert.Equal(t, "aa", repo.lastFilter.Search)

	require.NoError(t, svc.Deactivate(context.Background(), 3))
	assert.Equal(t, []int64{3}, repo.deactivated)
	assert.False(t, repo.students[3].Active)
}

func TestStudentServiceInvalidatesLedgerOnLabelChange(t *testing.T) {
	start, _ := billing.ParseDate("2024-03-10")
	seed := models.Student{UID: 1, OriginalRoom: 101, RoomName: "101", FirstName: "Aarav", StudentMobile: "1", MonthlyRent: 6000, StartDate: start, EndDate: billing.FarFuture, Active: true}

	cases := []struct {
		name  string
		req   func() UpdateStudentRequest
		flush bool
	}{
		{name: "rename", req: func() UpdateStudentRequest {
			v := "Vihaan"
			return UpdateStudentRequest{FirstName: &v}
		}, flush: true},
		{name: "room move", req: func() UpdateStudentRequest {
			v := 204
			return UpdateStudentRequest{OriginalRoom: &v}
		}, flush: true},
		{name: "rent only", req: func() UpdateStudentRequest {
			v := int64(6500)
			return UpdateStudentRequest{MonthlyRent: &v}
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := &mockStudentRepo{students: map[int64]models.Student{1: seed}}
			cache := &recordingInvalidator{}
			svc := NewStudentService(repo, nil, cache, validator.New(), zap.NewNop(), time.Second)

			_, err := svc.Update(context.Background(), 1, tc.req())
			require.NoError(t, err)
			if tc.flush {
				assert.Equal(t, []string{ledgerCachePattern}, cache.patterns)
			} else {
				assert.Empty(t, cache.patterns)
			}
		})
	}
}

func TestStudentServiceDeactivateInvalidatesLedger(t *testing.T) {
	repo := &mockStudentRepo{students: map[int64]models.Student{3: {UID: 3, Active: true}}}
	cache := &recordingInvalidator{}
	svc := NewStudentService(repo, nil, cache, validator.New(), zap.NewNop(), time.Second)

	require.NoError(t, svc.Deactivate(context.Background(), 3))
	assert.Equal(t, []string{ledgerCachePattern}, cache.patterns)
}
