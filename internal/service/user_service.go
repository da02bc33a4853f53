package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/campus-hostel-api/internal/models"
	"github.com/noah-isme/campus-hostel-api/internal/repository"
	appErrors "github.com/noah-isme/campus-hostel-api/pkg/errors"
)

type operatorRepository interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
}

// CreateUserRequest registers a back-office operator.
type CreateUserRequest struct {
	Email    string          `json:"email" validate:"required,email"`
	FullName string          `json:"full_name" validate:"required"`
	Role     models.UserRole `json:"role" validate:"required,oneof=ADMIN STAFF"`
	Password string          `json:"password" validate:"required,min=8"`
}

// UpdateUserRequest changes an operator. Nil fields are left alone.
type UpdateUserRequest struct {
	FullName *string          `json:"full_name" validate:"omitempty,min=1"`
	Role     *models.UserRole `json:"role" validate:"omitempty,oneof=ADMIN STAFF"`
	Active   *bool            `json:"active"`
	Password *string          `json:"password" validate:"omitempty,min=8"`
}

// UserService manages operator accounts.
type UserService struct {
	repo         operatorRepository
	validator    *validator.Validate
	logger       *zap.Logger
	storeTimeout time.Duration
}

// NewUserService creates an instance of UserService.
func NewUserService(repo operatorRepository, validate *validator.Validate, logger *zap.Logger, storeTimeout time.Duration) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &UserService{repo: repo, validator: validate, logger: logger, storeTimeout: storeTimeout}
}

// List returns paginated operators.
func (s *UserService) List(ctx context.Context, filter models.UserFilter) ([]models.User, *models.Pagination, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 100 {
		filter.PageSize = 20
	}
	callCtx, cancel := boundedContext(ctx, s.storeTimeout)
	defer cancel()
	users, total, err := s.repo.List(callCtx, filter)
	if err != nil {
		return nil, nil, appErrors.Store(err, "failed to list users")
	}
	if users == nil {
		users = []models.User{}
	}
	return users, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Get returns a user by ID.
func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	callCtx, cancel := boundedContext(ctx, s.storeTimeout)
	defer cancel()
	user, err := s.repo.FindByID(callCtx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Store(err, "failed to load user")
	}
	return user, nil
}

// Create adds an active operator with a bcrypt password hash.
func (s *UserService) Create(ctx context.Context, req CreateUserRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.WrapAs(appErrors.ErrValidation, err, "invalid create user payload")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.WrapAs(appErrors.ErrInternal, err, "failed to hash password")
	}
	user := &models.User{
		ID:           uuid.NewString(),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		FullName:     strings.TrimSpace(req.FullName),
		Role:         req.Role,
		Active:       true,
		PasswordHash: string(hash),
	}

	callCtx, cancel := boundedContext(ctx, s.storeTimeout)
	defer cancel()
	if err := s.repo.Create(callCtx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "email already exists")
		}
		return nil, appErrors.Store(err, "failed to create user")
	}
	s.logger.Info("operator created", zap.String("user_id", user.ID), zap.String("role", string(user.Role)))
	return user, nil
}

// Update applies a patch. An operator cannot demote or deactivate themselves.
func (s *UserService) Update(ctx context.Context, id, actorID string, req UpdateUserRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.WrapAs(appErrors.ErrValidation, err, "invalid update payload")
	}
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if id == actorID {
		if req.Active != nil && !*req.Active {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot deactivate your own account")
		}
		if req.Role != nil && *req.Role != user.Role {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot change your own role")
		}
	}

	if req.FullName != nil {
		user.FullName = strings.TrimSpace(*req.FullName)
	}
	if req.Role != nil {
		user.Role = *req.Role
	}
	if req.Active != nil {
		user.Active = *req.Active
	}
	if req.Password != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(*req.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, appErrors.WrapAs(appErrors.ErrInternal, err, "failed to hash password")
		}
		user.PasswordHash = string(hash)
	}

	callCtx, cancel := boundedContext(ctx, s.storeTimeout)
	defer cancel()
	if err := s.repo.Update(callCtx, user); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Store(err, "failed to update user")
	}
	return user, nil
}

// Deactivate disables an operator's login.
func (s *UserService) Deactivate(ctx context.Context, id, actorID string) error {
	inactive := false
	_, err := s.Update(ctx, id, actorID, UpdateUserRequest{Active: &inactive})
	return err
}
