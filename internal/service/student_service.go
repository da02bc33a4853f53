package service

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/noah-isme/campus-hostel-api/internal/billing"
	"github.com/noah-isme/campus-hostel-api/internal/models"
	"github.com/noah-isme/campus-hostel-api/internal/repository"
	appErrors "github.com/noah-isme/campus-hostel-api/pkg/errors"
)

type studentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
	FindByUID(ctx context.Context, uid int64) (*models.Student, error)
	ExistsByMobile(ctx context.Context, mobile string, excludeUID int64) (bool, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
	Deactivate(ctx context.Context, uid int64) error
}

type studentNotifier interface {
	Welcome(ctx context.Context, st models.Student) error
	StudentUpdated(ctx context.Context, st models.Student, changes []models.FieldChange) error
}

// CreateStudentRequest is the intake form.
type CreateStudentRequest struct {
	OriginalRoom    int    `json:"original_room" validate:"required,min=1,max=299"`
	RoomName        string `json:"room_name" validate:"omitempty,max=20"`
	FirstName       string `json:"first_name" validate:"required"`
	LastName        string `json:"last_name" validate:"required"`
	FatherName      string `json:"father_name" validate:"required"`
	Course          string `json:"course" validate:"required"`
	Institute       string `json:"institute" validate:"required"`
	StudentMobile   string `json:"student_mobile" validate:"required,numeric"`
	Email           string `json:"email" validate:"required,email"`
	ParentMobile    string `json:"parent_mobile" validate:"required,numeric"`
	GuardianMobile  string `json:"guardian_mobile" validate:"required,numeric"`
	Address         string `json:"address" validate:"required"`
	Remarks         string `json:"remarks"`
	MonthlyRent     int64  `json:"monthly_rent" validate:"required,gt=0"`
	LaundryCharge   int64  `json:"laundry_charge" validate:"min=0"`
	OtherCharge     int64  `json:"other_charge" validate:"min=0"`
	SecurityDeposit *int64 `json:"security_deposit" validate:"omitempty,min=0"`
	StartDate       string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate         string `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
	Approved        bool   `json:"approved"`
	SendEmail       bool   `json:"send_email"`
}

// UpdateStudentRequest is a typed patch; nil fields are left as stored.
type UpdateStudentRequest struct {
	OriginalRoom    *int    `json:"original_room" validate:"omitempty,min=1,max=299"`
	RoomName        *string `json:"room_name" validate:"omitempty,max=20"`
	FirstName       *string `json:"first_name" validate:"omitempty,min=1"`
	LastName        *string `json:"last_name" validate:"omitempty,min=1"`
	FatherName      *string `json:"father_name" validate:"omitempty,min=1"`
	Course          *string `json:"course" validate:"omitempty,min=1"`
	Institute       *string `json:"institute" validate:"omitempty,min=1"`
	StudentMobile   *string `json:"student_mobile" validate:"omitempty,numeric"`
	Email           *string `json:"email" validate:"omitempty,email"`
	ParentMobile    *string `json:"parent_mobile" validate:"omitempty,numeric"`
	GuardianMobile  *string `json:"guardian_mobile" validate:"omitempty,numeric"`
	Address         *string `json:"address" validate:"omitempty,min=1"`
	Remarks         *string `json:"remarks"`
	MonthlyRent     *int64  `json:"monthly_rent" validate:"omitempty,gt=0"`
	LaundryCharge   *int64  `json:"laundry_charge" validate:"omitempty,min=0"`
	OtherCharge     *int64  `json:"other_charge" validate:"omitempty,min=0"`
	SecurityDeposit *int64  `json:"security_deposit" validate:"omitempty,min=0"`
	StartDate       *string `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
	EndDate         *string `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
	Active          *bool   `json:"active"`
	Approved        *bool   `json:"approved"`
}

// StudentResult is a saved student plus the outcome of its notification.
type StudentResult struct {
	Student    *models.Student      `json:"student"`
	Changes    []models.FieldChange `json:"changes,omitempty"`
	EmailSent  bool                 `json:"email_sent"`
	EmailError string               `json:"email_error,omitempty"`
}

// StudentService handles intake and maintenance of resident records.
type StudentService struct {
	repo         studentRepository
	notifier     studentNotifier
	cache        cacheInvalidator
	validator    *validator.Validate
	logger       *zap.Logger
	storeTimeout time.Duration
	title        cases.Caser
}

// NewStudentService constructs the student service.
func NewStudentService(repo studentRepository, notifier studentNotifier, cache cacheInvalidator, validate *validator.Validate, logger *zap.Logger, storeTimeout time.Duration) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{
		repo:         repo,
		notifier:     notifier,
		cache:        cache,
		validator:    validate,
		logger:       logger,
		storeTimeout: storeTimeout,
		title:        cases.Title(language.English),
	}
}

// List returns students and pagination metadata.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, *models.Pagination, error) {
	callCtx, cancel := boundedContext(ctx, s.storeTimeout)
	defer cancel()
	students, total, err := s.repo.List(callCtx, filter)
	if err != nil {
		return nil, nil, appErrors.Store(err, "failed to list students")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return students, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns one student.
func (s *StudentService) Get(ctx context.Context, uid int64) (*models.Student, error) {
	callCtx, cancel := boundedContext(ctx, s.storeTimeout)
	defer cancel()
	student, err := s.repo.FindByUID(callCtx, uid)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Store(err, "failed to load student")
	}
	return student, nil
}

// Create admits a student. The welcome email is optional and its failure
// never undoes the intake.
func (s *StudentService) Create(ctx context.Context, req CreateStudentRequest) (*StudentResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.WrapAs(appErrors.ErrValidation, err, "invalid student payload")
	}
	start, err := billing.ParseDate(req.StartDate)
	if err != nil {
		return nil, appErrors.WrapAs(appErrors.ErrValidation, err, "invalid start date")
	}
	end := billing.FarFuture
	if req.EndDate != "" {
		if end, err = billing.ParseDate(req.EndDate); err != nil {
			return nil, appErrors.WrapAs(appErrors.ErrValidation, err, "invalid end date")
		}
	}
	if end.Before(start) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end date must not be before start date")
	}

	deposit := req.MonthlyRent
	if req.SecurityDeposit != nil {
		deposit = *req.SecurityDeposit
	}
	roomName := strings.TrimSpace(req.RoomName)
	if roomName == "" {
		roomName = strconv.Itoa(req.OriginalRoom)
	}
	student := &models.Student{
		OriginalRoom:    req.OriginalRoom,
		RoomName:        roomName,
		FirstName:       s.title.String(strings.TrimSpace(req.FirstName)),
		LastName:        s.title.String(strings.TrimSpace(req.LastName)),
		FatherName:      s.title.String(strings.TrimSpace(req.FatherName)),
		Course:          strings.ToUpper(strings.TrimSpace(req.Course)),
		Institute:       s.title.String(strings.TrimSpace(req.Institute)),
		StudentMobile:   req.StudentMobile,
		Email:           strings.ToLower(strings.TrimSpace(req.Email)),
		ParentMobile:    req.ParentMobile,
		GuardianMobile:  req.GuardianMobile,
		Address:         s.title.String(strings.TrimSpace(req.Address)),
		Remarks:         strings.TrimSpace(req.Remarks),
		MonthlyRent:     req.MonthlyRent,
		LaundryCharge:   req.LaundryCharge,
		OtherCharge:     req.OtherCharge,
		SecurityDeposit: deposit,
		StartDate:       start,
		EndDate:         end,
		Active:          true,
		Approved:        req.Approved,
	}

	if err := s.ensureMobileFree(ctx, student.StudentMobile, 0); err != nil {
		return nil, err
	}
	callCtx, cancel := boundedContext(ctx, s.storeTimeout)
	defer cancel()
	if err := s.repo.Create(callCtx, student); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "student mobile already registered")
		}
		return nil, appErrors.Store(err, "failed to create student")
	}

	result := &StudentResult{Student: student}
	if req.SendEmail && s.notifier != nil {
		if err := s.notifier.Welcome(ctx, *student); err != nil {
			result.EmailError = err.Error()
		} else {
			result.EmailSent = true
		}
	}
	return result, nil
}

// Update applies a patch and mails the records desk a list of what changed.
func (s *StudentService) Update(ctx context.Context, uid int64, req UpdateStudentRequest) (*StudentResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.WrapAs(appErrors.ErrValidation, err, "invalid student payload")
	}
	current, err := s.Get(ctx, uid)
	if err != nil {
		return nil, err
	}

	updated, err := s.applyPatch(*current, req)
	if err != nil {
		return nil, err
	}
	if updated.EndDate.Before(updated.StartDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end date must not be before start date")
	}
	if updated.StudentMobile != current.StudentMobile {
		if err := s.ensureMobileFree(ctx, updated.StudentMobile, uid); err != nil {
			return nil, err
		}
	}

	changes := StudentChanges(*current, updated)
	result := &StudentResult{Student: &updated, Changes: changes}
	if len(changes) == 0 {
		result.Student = current
		return result, nil
	}

	callCtx, cancel := boundedContext(ctx, s.storeTimeout)
	defer cancel()
	if err := s.repo.Update(callCtx, &updated); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "student mobile already registered")
		}
		return nil, appErrors.Store(err, "failed to update student")
	}
	// Cached ledger rows are labelled {original_room}-{first_name}.
	if updated.FirstName != current.FirstName || updated.OriginalRoom != current.OriginalRoom {
		s.invalidateLedger(ctx)
	}

	if s.notifier != nil {
		if err := s.notifier.StudentUpdated(ctx, updated, changes); err != nil {
			result.EmailError = err.Error()
		} else {
			result.EmailSent = true
		}
	}
	return result, nil
}

// Deactivate marks a student inactive. Students are never hard deleted.
func (s *StudentService) Deactivate(ctx context.Context, uid int64) error {
	if _, err := s.Get(ctx, uid); err != nil {
		return err
	}
	callCtx, cancel := boundedContext(ctx, s.storeTimeout)
	defer cancel()
	if err := s.repo.Deactivate(callCtx, uid); err != nil {
		return appErrors.Store(err, "failed to deactivate student")
	}
	s.invalidateLedger(ctx)
	return nil
}

func (s *StudentService) invalidateLedger(ctx context.Context) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, ledgerCachePattern)
	}
}

func (s *StudentService) ensureMobileFree(ctx context.Context, mobile string, excludeUID int64) error {
	callCtx, cancel := boundedContext(ctx, s.storeTimeout)
	defer cancel()
	exists, err := s.repo.ExistsByMobile(callCtx, mobile, excludeUID)
	if err != nil {
		return appErrors.Store(err, "failed to validate student mobile")
	}
	if exists {
		return appErrors.Clone(appErrors.ErrConflict, "student mobile already registered")
	}
	return nil
}

func (s *StudentService) applyPatch(st models.Student, req UpdateStudentRequest) (models.Student, error) {
	setString := func(dst *string, src *string, normalise func(string) string) {
		if src != nil {
			*dst = normalise(strings.TrimSpace(*src))
		}
	}
	keep := func(v string) string { return v }

	if req.OriginalRoom != nil {
		st.OriginalRoom = *req.OriginalRoom
	}
	setString(&st.RoomName, req.RoomName, keep)
	setString(&st.FirstName, req.FirstName, s.title.String)
	setString(&st.LastName, req.LastName, s.title.String)
	setString(&st.FatherName, req.FatherName, s.title.String)
	setString(&st.Course, req.Course, strings.ToUpper)
	setString(&st.Institute, req.Institute, s.title.String)
	setString(&st.StudentMobile, req.StudentMobile, keep)
	setString(&st.Email, req.Email, strings.ToLower)
	setString(&st.ParentMobile, req.ParentMobile, keep)
	setString(&st.GuardianMobile, req.GuardianMobile, keep)
	setString(&st.Address, req.Address, s.title.String)
	setString(&st.Remarks, req.Remarks, keep)
	if req.MonthlyRent != nil {
		st.MonthlyRent = *req.MonthlyRent
	}
	if req.LaundryCharge != nil {
		st.LaundryCharge = *req.LaundryCharge
	}
	if req.OtherCharge != nil {
		st.OtherCharge = *req.OtherCharge
	}
	if req.SecurityDeposit != nil {
		st.SecurityDeposit = *req.SecurityDeposit
	}
	if req.StartDate != nil {
		d, err := billing.ParseDate(*req.StartDate)
		if err != nil {
			return st, appErrors.WrapAs(appErrors.ErrValidation, err, "invalid start date")
		}
		st.StartDate = d
	}
	if req.EndDate != nil {
		d, err := billing.ParseDate(*req.EndDate)
		if err != nil {
			return st, appErrors.WrapAs(appErrors.ErrValidation, err, "invalid end date")
		}
		st.EndDate = d
	}
	if req.Active != nil {
		st.Active = *req.Active
	}
	if req.Approved != nil {
		st.Approved = *req.Approved
	}
	return st, nil
}

// StudentChanges lists the fields that differ between two versions.
func StudentChanges(old, updated models.Student) []models.FieldChange {
	var d billing.Differ
	d.Int("original_room", int64(old.OriginalRoom), int64(updated.OriginalRoom))
	d.String("room_name", old.RoomName, updated.RoomName)
	d.String("first_name", old.FirstName, updated.FirstName)
	d.String("last_name", old.LastName, updated.LastName)
	d.String("father_name", old.FatherName, updated.FatherName)
	d.String("course", old.Course, updated.Course)
	d.String("institute", old.Institute, updated.Institute)
	d.String("student_mobile", old.StudentMobile, updated.StudentMobile)
	d.String("email", old.Email, updated.Email)
	d.String("parent_mobile", old.ParentMobile, updated.ParentMobile)
	d.String("guardian_mobile", old.GuardianMobile, updated.GuardianMobile)
	d.String("address", old.Address, updated.Address)
	d.String("remarks", old.Remarks, updated.Remarks)
	d.Int("monthly_rent", old.MonthlyRent, updated.MonthlyRent)
	d.Int("laundry_charge", old.LaundryCharge, updated.LaundryCharge)
	d.Int("other_charge", old.OtherCharge, updated.OtherCharge)
	d.Int("security_deposit", old.SecurityDeposit, updated.SecurityDeposit)
	d.Date("start_date", old.StartDate, updated.StartDate)
	d.Date("end_date", old.EndDate, updated.EndDate)
	d.Bool("active", old.Active, updated.Active)
	d.Bool("approved", old.Approved, updated.Approved)
	return d.Changes()
}
