package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/upb/authflow/backend/middleware"
	"github.com/upb/authflow/backend/models"
	"github.com/upb/authflow/backend/services"
	"github.com/upb/authflow/backend/services/auth"
	"go.uber.org/zap"
)

// MockAuthService is a mock implementation of AuthService
type MockAuthService struct {
	mock.Mock
}

func (m *MockAuthService) Register(ctx context.Context, name, email, password string) (models.PublicProfile, error) {
	args := m.Called(ctx, name, email, password)
	return args.Get(0).(models.PublicProfile), args.Error(1)
}

func (m *MockAuthService) Login(ctx context.Context, email, password string) (*auth.Session, error) {
	args := m.Called(ctx, email, password)
	if s := args.Get(0); s != nil {
		return s.(*auth.Session), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAuthService) Refresh(ctx context.Context, refreshToken string) (*auth.Refreshed, error) {
	args := m.Called(ctx, refreshToken)
	if r := args.Get(0); r != nil {
		return r.(*auth.Refreshed), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAuthService) Logout(ctx context.Context, refreshToken string) {
	m.Called(ctx, refreshToken)
}

func (m *MockAuthService) LogoutEverywhere(ctx context.Context, userID uuid.UUID) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

var testCookie = CookieConfig{
	Name:     "refreshToken",
	Path:     "/",
	Secure:   true,
	SameSite: http.SameSiteLaxMode,
	MaxAge:   7 * 24 * time.Hour,
}

func testProfile() models.PublicProfile {
	return models.PublicProfile{
		ID:        uuid.New(),
		Name:      "Alice",
		Email:     "alice@example.com",
		CreatedAt: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func findCookie(t *testing.T, w *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func jsonBody(v interface{}) *strings.Reader {
	data, _ := json.Marshal(v)
	return strings.NewReader(string(data))
}

func TestAuthHandler_Register(t *testing.T) {
	logger := zap.NewNop()

	t.Run("created", func(t *testing.T) {
		svc := new(MockAuthService)
		handler := NewAuthHandler(svc, testCookie, logger)
		profile := testProfile()
		svc.On("Register", mock.Anything, "Alice", "alice@example.com", "Secret@123").Return(profile, nil)

		req := httptest.NewRequest(http.MethodPost, "/auth/register", jsonBody(RegisterRequest{
			Name: "Alice", Email: "alice@example.com", Password: "Secret@123",
		}))
		w := httptest.NewRecorder()
		handler.HandleRegister(w, req)

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.JSONEq(t, `{
			"message": "User registered successfully",
			"user": {"id": "`+profile.ID.String()+`", "name": "Alice", "email": "alice@example.com", "createdAt": "2025-03-01T12:00:00Z"}
		}`, w.Body.String())
		assert.Nil(t, findCookie(t, w, "refreshToken"), "registration does not log in")
		svc.AssertExpectations(t)
	})

	t.Run("duplicate email", func(t *testing.T) {
		svc := new(MockAuthService)
		handler := NewAuthHandler(svc, testCookie, logger)
		svc.On("Register", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(models.PublicProfile{}, services.ErrEmailAlreadyExists)

		req := httptest.NewRequest(http.MethodPost, "/auth/register", jsonBody(RegisterRequest{
			Name: "Alice", Email: "alice@example.com", Password: "Secret@123",
		}))
		w := httptest.NewRecorder()
		handler.HandleRegister(w, req)

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Contains(t, w.Body.String(), "Email already exists")
	})

	invalid := []struct {
		name  string
		body  string
		field string
	}{
		{"missing name", `{"email":"alice@example.com","password":"Secret@123"}`, "name"},
		{"blank name", `{"name":"  ","email":"alice@example.com","password":"Secret@123"}`, "name"},
		{"bad email", `{"name":"Alice","email":"alice","password":"Secret@123"}`, "email"},
		{"short password", `{"name":"Alice","email":"alice@example.com","password":"short"}`, "password"},
		{"name over 100 characters", `{"name":"` + strings.Repeat("a", 101) + `","email":"alice@example.com","password":"Secret@123"}`, "name"},
	}

	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockAuthService)
			handler := NewAuthHandler(svc, testCookie, logger)

			req := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			handler.HandleRegister(w, req)

			assert.Equal(t, http.StatusBadRequest, w.Code)

			var resp map[string]interface{}
			require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
			details := resp["details"].(map[string]interface{})
			assert.Contains(t, details, tt.field)
			svc.AssertNotCalled(t, "Register", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}

	t.Run("malformed body", func(t *testing.T) {
		svc := new(MockAuthService)
		handler := NewAuthHandler(svc, testCookie, logger)

		req := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(`{"name":`))
		w := httptest.NewRecorder()
		handler.HandleRegister(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestAuthHandler_Login(t *testing.T) {
	logger := zap.NewNop()

	t.Run("success sets refresh cookie", func(t *testing.T) {
		svc := new(MockAuthService)
		handler := NewAuthHandler(svc, testCookie, logger)
		profile := testProfile()
		expires := time.Now().Add(7 * 24 * time.Hour).UTC().Truncate(time.Second)

		svc.On("Login", mock.Anything, "alice@example.com", "Secret@123").Return(&auth.Session{
			AccessToken:      "access-jwt",
			RefreshToken:     "refresh-hex",
			RefreshExpiresAt: expires,
			User:             profile,
		}, nil)

		req := httptest.NewRequest(http.MethodPost, "/auth/login", jsonBody(LoginRequest{
			Email: "alice@example.com", Password: "Secret@123",
		}))
		w := httptest.NewRecorder()
		handler.HandleLogin(w, req)

		require.Equal(t, http.StatusOK, w.Code)

		var resp TokenResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.Equal(t, "Login successful", resp.Message)
		assert.Equal(t, "access-jwt", resp.AccessToken)
		assert.Equal(t, profile.ID, resp.User.ID)
		assert.NotContains(t, w.Body.String(), "refresh-hex", "refresh token only travels in the cookie")

		cookie := findCookie(t, w, "refreshToken")
		require.NotNil(t, cookie)
		assert.Equal(t, "refresh-hex", cookie.Value)
		assert.True(t, cookie.HttpOnly)
		assert.True(t, cookie.Secure)
		assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
		assert.Equal(t, 7*24*60*60, cookie.MaxAge)
		assert.Equal(t, "/", cookie.Path)
	})

	t.Run("unknown email", func(t *testing.T) {
		svc := new(MockAuthService)
		handler := NewAuthHandler(svc, testCookie, logger)
		svc.On("Login", mock.Anything, mock.Anything, mock.Anything).Return(nil, services.ErrUserNotFound)

		req := httptest.NewRequest(http.MethodPost, "/auth/login", jsonBody(LoginRequest{Email: "bob@example.com", Password: "x"}))
		w := httptest.NewRecorder()
		handler.HandleLogin(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Contains(t, w.Body.String(), "User not found")
		assert.Nil(t, findCookie(t, w, "refreshToken"))
	})

	t.Run("wrong password", func(t *testing.T) {
		svc := new(MockAuthService)
		handler := NewAuthHandler(svc, testCookie, logger)
		svc.On("Login", mock.Anything, mock.Anything, mock.Anything).Return(nil, services.ErrInvalidPassword)

		req := httptest.NewRequest(http.MethodPost, "/auth/login", jsonBody(LoginRequest{Email: "alice@example.com", Password: "nope"}))
		w := httptest.NewRecorder()
		handler.HandleLogin(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "Invalid password")
	})

	t.Run("missing password", func(t *testing.T) {
		svc := new(MockAuthService)
		handler := NewAuthHandler(svc, testCookie, logger)

		req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"alice@example.com"}`))
		w := httptest.NewRecorder()
		handler.HandleLogin(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestAuthHandler_Refresh(t *testing.T) {
	logger := zap.NewNop()

	t.Run("success keeps the cookie", func(t *testing.T) {
		svc := new(MockAuthService)
		handler := NewAuthHandler(svc, testCookie, logger)
		profile := testProfile()
		svc.On("Refresh", mock.Anything, "refresh-hex").Return(&auth.Refreshed{AccessToken: "new-access", User: profile}, nil)

		req := httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)
		req.AddCookie(&http.Cookie{Name: "refreshToken", Value: "refresh-hex"})
		w := httptest.NewRecorder()
		handler.HandleRefresh(w, req)

		require.Equal(t, http.StatusOK, w.Code)

		var resp TokenResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.Equal(t, "Token refreshed successfully", resp.Message)
		assert.Equal(t, "new-access", resp.AccessToken)
		assert.Nil(t, findCookie(t, w, "refreshToken"), "no rotation")
	})

	t.Run("failure clears the cookie", func(t *testing.T) {
		svc := new(MockAuthService)
		handler := NewAuthHandler(svc, testCookie, logger)
		svc.On("Refresh", mock.Anything, "stale").Return(nil, services.ErrInvalidRefreshToken)

		req := httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)
		req.AddCookie(&http.Cookie{Name: "refreshToken", Value: "stale"})
		w := httptest.NewRecorder()
		handler.HandleRefresh(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "Invalid or expired refresh token")

		cookie := findCookie(t, w, "refreshToken")
		require.NotNil(t, cookie)
		assert.Empty(t, cookie.Value)
		assert.Less(t, cookie.MaxAge, 0)
	})

	t.Run("missing cookie is passed as empty", func(t *testing.T) {
		svc := new(MockAuthService)
		handler := NewAuthHandler(svc, testCookie, logger)
		svc.On("Refresh", mock.Anything, "").Return(nil, services.ErrInvalidRefreshToken)

		req := httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)
		w := httptest.NewRecorder()
		handler.HandleRefresh(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		svc.AssertExpectations(t)
	})
}

func TestAuthHandler_Logout(t *testing.T) {
	logger := zap.NewNop()

	for _, cookie := range []*http.Cookie{{Name: "refreshToken", Value: "refresh-hex"}, nil} {
		svc := new(MockAuthService)
		handler := NewAuthHandler(svc, testCookie, logger)
		svc.On("Logout", mock.Anything, mock.Anything).Return()

		req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
		if cookie != nil {
			req.AddCookie(cookie)
		}
		w := httptest.NewRecorder()
		handler.HandleLogout(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"message":"Logout successful"}`, w.Body.String())

		cleared := findCookie(t, w, "refreshToken")
		require.NotNil(t, cleared)
		assert.Empty(t, cleared.Value)
		assert.True(t, cleared.HttpOnly)
	}
}

func TestAuthHandler_LogoutAll(t *testing.T) {
	logger := zap.NewNop()

	t.Run("revokes every session", func(t *testing.T) {
		svc := new(MockAuthService)
		handler := NewAuthHandler(svc, testCookie, logger)
		userID := uuid.New()
		svc.On("LogoutEverywhere", mock.Anything, userID).Return(int64(3), nil)

		req := httptest.NewRequest(http.MethodPost, "/auth/logout-all", nil)
		req = req.WithContext(middleware.WithUserID(req.Context(), userID))
		w := httptest.NewRecorder()
		handler.HandleLogoutAll(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"message":"Logged out from all sessions","revoked":3}`, w.Body.String())
		assert.NotNil(t, findCookie(t, w, "refreshToken"))
	})

	t.Run("requires authentication", func(t *testing.T) {
		svc := new(MockAuthService)
		handler := NewAuthHandler(svc, testCookie, logger)

		req := httptest.NewRequest(http.MethodPost, "/auth/logout-all", nil)
		w := httptest.NewRecorder()
		handler.HandleLogoutAll(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}
