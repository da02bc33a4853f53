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
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/campus-hostel-api/internal/models"
	"github.com/noah-isme/campus-hostel-api/internal/repository"
	appErrors "github.com/noah-isme/campus-hostel-api/pkg/errors"
)

type mockUserRepo struct {
	users      map[string]*models.User
	lastFilter models.UserFilter
	listErr    error
}

func (m *mockUserRepo) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	m.lastFilter = filter
	if m.listErr != nil {
		return nil, 0, m.listErr
	}
	var users []models.User
	for _, u := range m.users {
		users = append(users, *u)
	}
	return users, len(users), nil
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if user, ok := m.users[id]; ok {
		copy := *user
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) Create(ctx context.Context, user *models.User) error {
	for _, u := range m.users {
		if u.Email == user.Email {
			return repository.ErrDuplicate
		}
	}
	copy := *user
	m.users[user.ID] = &copy
	return nil
}

func (m *mockUserRepo) Update(ctx context.Context, user *models.User) error {
	if _, ok := m.users[user.ID]; !ok {
		return sql.ErrNoRows
	}
	copy := *user
	m.users[user.ID] = &copy
	return nil
}

func newUserServiceForTest(users ...models.User) (*UserService, *mockUserRepo) {
	repo := &mockUserRepo{users: map[string]*models.User{}}
	for i := range users {
		u := users[i]
		repo.users[u.ID] = &u
	}
	return NewUserService(repo, validator.New(), zap.NewNop(), time.Second), repo
}

func appErrorCode(t *testing.T, err error) string {
	t.Helper()
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr), "expected app error, got %v", err)
	return appErr.Code
}

func TestUserServiceListDefaults(t *testing.T) {
	svc, repo := newUserServiceForTest(models.User{ID: "1", Email: "warden@example.com", Role: models.RoleAdmin})
	users, pagination, err := svc.List(context.Background(), models.UserFilter{})
	require.NoError(t, err)
	assert.Len(t, users, 1)
	assert.Equal(t, 1, pagination.Page)
	assert.Equal(t, 20, repo.lastFilter.PageSize)
	assert.Equal(t, 1, pagination.TotalCount)
}

func TestUserServiceCreate(t *testing.T) {
	svc, repo := newUserServiceForTest()
	user, err := svc.Create(context.Background(), CreateUserRequest{Email: " Desk@Example.COM", FullName: "Front Desk", Role: models.RoleStaff, Password: "longenough"})
	require.NoError(t, err)
	assert.Equal(t, "desk@example.com", user.Email)
	assert.True(t, user.Active)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.users[user.ID].PasswordHash), []byte("longenough")))

	_, err = svc.Create(context.Background(), CreateUserRequest{Email: "desk@example.com", FullName: "Again", Role: models.RoleStaff, Password: "longenough"})
	assert.Equal(t, appErrors.ErrConflict.Code, appErrorCode(t, err))
}

func TestUserServiceCreateValidation(t *testing.T) {
	svc, _ := newUserServiceForTest()
	_, err := svc.Create(context.Background(), CreateUserRequest{Email: "desk@example.com", FullName: "Desk", Role: "TEACHER", Password: "longenough"})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrorCode(t, err))

	_, err = svc.Create(context.Background(), CreateUserRequest{Email: "desk@example.com", FullName: "Desk", Role: models.RoleStaff, Password: "short"})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrorCode(t, err))
}

func TestUserServiceUpdate(t *testing.T) {
	svc, repo := newUserServiceForTest(models.User{ID: "2", Email: "desk@example.com", FullName: "Desk", Role: models.RoleStaff, Active: true})
	role := models.RoleAdmin
	name := "Night Warden"
	user, err := svc.Update(context.Background(), "2", "1", UpdateUserRequest{FullName: &name, Role: &role})
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, repo.users["2"].Role)
	assert.Equal(t, "Night Warden", user.FullName)
	assert.True(t, user.Active)

	_, err = svc.Update(context.Background(), "missing", "1", UpdateUserRequest{FullName: &name})
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrorCode(t, err))
}

func TestUserServiceSelfProtection(t *testing.T) {
	svc, _ := newUserServiceForTest(models.User{ID: "1", Email: "warden@example.com", Role: models.RoleAdmin, Active: true})

	err := svc.Deactivate(context.Background(), "1", "1")
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrorCode(t, err))

	role := models.RoleStaff
	_, err = svc.Update(context.Background(), "1", "1", UpdateUserRequest{Role: &role})
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrorCode(t, err))
}

func TestUserServiceDeactivate(t *testing.T) {
	svc, repo := newUserServiceForTest(models.User{ID: "2", Email: "desk@example.com", Role: models.RoleStaff, Active: true})
	require.NoError(t, svc.Deactivate(context.Background(), "2", "1"))
	assert.False(t, repo.users["2"].Active)
}
