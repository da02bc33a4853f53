package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-hostel-api/internal/middleware"
	"github.com/noah-isme/campus-hostel-api/internal/models"
	"github.com/noah-isme/campus-hostel-api/internal/service"
	appErrors "github.com/noah-isme/campus-hostel-api/pkg/errors"
)

type authServiceMock struct {
	lastLogin  models.LoginRequest
	loginErr   error
	changedFor string
}

func (m *authServiceMock) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	m.lastLogin = req
	if m.loginErr != nil {
		return nil, m.loginErr
	}
	return &models.LoginResponse{AccessToken: "token"}, nil
}

func (m *authServiceMock) ChangePassword(ctx context.Context, userID string, req service.ChangePasswordRequest) error {
	m.changedFor = userID
	return nil
}

func (m *authServiceMock) Me(ctx context.Context, userID string) (*models.UserInfo, error) {
	return &models.UserInfo{ID: userID}, nil
}

func TestAuthHandlerLogin(t *testing.T) {
	svc := &authServiceMock{}
	handler := NewAuthHandler(svc)

	c, w := newTestContext(http.MethodPost, "/auth/login", `{"email":"desk@campuskota.in","password":"secret"}`)
	c.Request.Header.Set("User-Agent", "curl")
	handler.Login(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "desk@campuskota.in", svc.lastLogin.Email)
	assert.Equal(t, "curl", svc.lastLogin.UserAgent)
}

func TestAuthHandlerLoginRejected(t *testing.T) {
	handler := NewAuthHandler(&authServiceMock{loginErr: appErrors.Clone(appErrors.ErrUnauthorized, "invalid credentials")})
	c, w := newTestContext(http.MethodPost, "/auth/login", `{"email":"desk@campuskota.in","password":"x"}`)
	handler.Login(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthHandlerMe(t *testing.T) {
	handler := NewAuthHandler(&authServiceMock{})

	c, w := newTestContext(http.MethodGet, "/auth/me", "")
	handler.Me(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	c, w = newTestContext(http.MethodGet, "/auth/me", "")
	c.Set(middleware.ContextUserKey, &models.AccessClaims{UserID: "u-1"})
	handler.Me(c)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthHandlerChangePassword(t *testing.T) {
	svc := &authServiceMock{}
	handler := NewAuthHandler(svc)

	c, w := newTestContext(http.MethodPost, "/auth/password", `{"current_password":"a","new_password":"longer-one"}`)
	handler.ChangePassword(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	c, _ = newTestContext(http.MethodPost, "/auth/password", `{"current_password":"a","new_password":"longer-one"}`)
	withClaims(c, "u1")
	handler.ChangePassword(c)
	assert.Equal(t, http.StatusNoContent, c.Writer.Status())
	assert.Equal(t, "u1", svc.changedFor)
}
