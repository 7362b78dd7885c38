package security

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"equiploan/pkg/models"
	"equiploan/pkg/roles"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type MockUserFinder struct {
	mock.Mock
}

func (m *MockUserFinder) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	args := m.Called(username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

type stubLimiter struct {
	allowed bool
}

func (s stubLimiter) Allow(ctx context.Context, key string) (bool, int, error) {
	return s.allowed, 0, nil
}
func (s stubLimiter) Limit() int            { return 10 }
func (s stubLimiter) Window() time.Duration { return time.Minute }

func protectedRouter(tokens *Tokens, required roles.Role) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/secret", JWTMiddleware(tokens), Authorize(required), func(c *gin.Context) {
		principal, err := CurrentPrincipal(c)
		if err != nil {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, gin.H{"user": principal.UserID, "admin": principal.IsAdmin()})
	})
	return r
}

func TestJWTMiddlewareAndAuthorize(t *testing.T) {
	tokens := NewTokens("test-secret", time.Hour)
	staffToken, err := tokens.GenerateJWT("5", roles.Staff, "nurse")
	require.NoError(t, err)
	adminToken, err := tokens.GenerateJWT("1", roles.Admin, "head")
	require.NoError(t, err)
	foreignToken, err := NewTokens("other-secret", time.Hour).GenerateJWT("1", roles.Admin, "head")
	require.NoError(t, err)

	tests := []struct {
		name     string
		header   string
		required roles.Role
		status   int
	}{
		{"missing header", "", roles.Staff, http.StatusUnauthorized},
		{"wrong signature", "Bearer " + foreignToken, roles.Staff, http.StatusUnauthorized},
		{"staff on staff route", "Bearer " + staffToken, roles.Staff, http.StatusOK},
		{"staff on admin route", "Bearer " + staffToken, roles.Admin, http.StatusForbidden},
		{"admin on admin route", "Bearer " + adminToken, roles.Admin, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/secret", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()

			protectedRouter(tokens, tt.required).ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestExpiredTokenIsRejected(t *testing.T) {
	tokens := NewTokens("test-secret", -time.Minute)
	token, err := tokens.GenerateJWT("5", roles.Staff, "nurse")
	require.NoError(t, err)

	_, err = tokens.Parse(token)
	assert.Error(t, err)
}

func TestLoginHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	tokens := NewTokens("test-secret", time.Hour)

	tests := []struct {
		name    string
		body    string
		allowed bool
		setup   func(*MockUserFinder)
		status  int
	}{
		{
			name:    "valid credentials",
			body:    `{"username":"head","password":"s3cret"}`,
			allowed: true,
			setup: func(m *MockUserFinder) {
				m.On("FindByUsername", "head").Return(&models.User{ID: 1, Username: "head", PasswordHash: string(hash), Role: roles.Admin}, nil)
			},
			status: http.StatusOK,
		},
		{
			name:    "wrong password",
			body:    `{"username":"head","password":"nope"}`,
			allowed: true,
			setup: func(m *MockUserFinder) {
				m.On("FindByUsername", "head").Return(&models.User{ID: 1, Username: "head", PasswordHash: string(hash), Role: roles.Admin}, nil)
			},
			status: http.StatusUnauthorized,
		},
		{
			name:    "unknown user",
			body:    `{"username":"ghost","password":"x"}`,
			allowed: true,
			setup: func(m *MockUserFinder) {
				m.On("FindByUsername", "ghost").Return(nil, ErrInvalidCredentials)
			},
			status: http.StatusUnauthorized,
		},
		{
			name:    "missing password",
			body:    `{"username":"head"}`,
			allowed: true,
			setup:   func(m *MockUserFinder) {},
			status:  http.StatusBadRequest,
		},
		{
			name:    "rate limited",
			body:    `{"username":"head","password":"s3cret"}`,
			allowed: false,
			setup:   func(m *MockUserFinder) {},
			status:  http.StatusTooManyRequests,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users := new(MockUserFinder)
			tt.setup(users)

			router := gin.New()
			NewLoginHandler(users, tokens, stubLimiter{allowed: tt.allowed}, zap.NewNop()).RegisterRoutes(router)

			req := httptest.NewRequest(http.MethodPost, "/auth", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			users.AssertExpectations(t)
		})
	}
}

func TestClientKeyAppendsUserAgentForPrivateAddresses(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/auth", nil)
	c.Request.Header.Set("X-Forwarded-For", "192.168.1.4, 10.0.0.1")
	c.Request.Header.Set("User-Agent", "ward-tablet")

	assert.Equal(t, "192.168.1.4:ward-tablet", clientKey(c))

	c.Request.Header.Set("X-Forwarded-For", "81.2.3.4")
	assert.Equal(t, "81.2.3.4", clientKey(c))
}
