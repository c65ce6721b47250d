package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestTokenFromRequest(t *testing.T) {
	tests := []struct {
		name     string
		header   string
		url      string
		expected string
	}{
		{name: "bearer_header", header: "Bearer abc.def", url: "/", expected: "abc.def"},
		{name: "wrong_scheme", header: "Basic abc", url: "/", expected: ""},
		{name: "query_param", url: "/ws?token=xyz", expected: "xyz"},
		{name: "header_wins", header: "Bearer abc", url: "/ws?token=xyz", expected: "abc"},
		{name: "none", url: "/", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.url, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			assert.Equal(t, tt.expected, TokenFromRequest(req))
		})
	}
}

func TestRequireAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)

	jm, err := NewJWTManager("test-secret")
	require.NoError(t, err)
	token, _, err := jm.GenerateToken(context.Background(), "user-7", "grace@example.com", time.Hour)
	require.NoError(t, err)

	router := gin.New()
	router.GET("/protected", RequireAuth(jm, zap.NewNop()), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(UserIDKey))
	})

	tests := []struct {
		name           string
		header         string
		expectedStatus int
		expectedBody   string
	}{
		{name: "valid", header: "Bearer " + token, expectedStatus: http.StatusOK, expectedBody: "user-7"},
		{name: "missing", expectedStatus: http.StatusUnauthorized, expectedBody: "UNAUTHORIZED"},
		{name: "invalid", header: "Bearer nope", expectedStatus: http.StatusUnauthorized, expectedBody: "Invalid or expired token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.expectedBody)
		})
	}
}
