package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sorteos-backend/internal/common/auth"
	"sorteos-backend/internal/common/middleware"
	"sorteos-backend/internal/features/user/models"
	"sorteos-backend/internal/features/user/repository/sqlstore"
	"sorteos-backend/internal/features/user/service"
	"sorteos-backend/internal/testutil"
)

func TestAuthFlow(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := testutil.NewDB(t)
	tokens := auth.NewTokenManager("0123456789abcdef", time.Hour)
	svc := service.NewUserService(sqlstore.NewUserRepository(db), tokens)

	r := gin.New()
	r.Use(middleware.RequestID(), middleware.HandleErrors(), middleware.Authenticate(tokens))
	NewUserHandler(svc).RegisterRoutes(r.Group("/api"))

	do := func(method, path, token string, body interface{}) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		if body != nil {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
		req := httptest.NewRequest(method, path, &buf)
		req.Header.Set("Content-Type", "application/json")
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w := do(http.MethodPost, "/api/auth/register", "", models.RegisterRequest{Name: "Ana", Email: "ana@example.com", Password: "secreto1"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var reg models.AuthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &reg))
	require.NotEmpty(t, reg.Token)

	w = do(http.MethodPost, "/api/auth/register", "", models.RegisterRequest{Name: "Ana", Email: "ana@example.com", Password: "secreto1"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(http.MethodPost, "/api/auth/login", "", models.LoginRequest{Email: "ana@example.com", Password: "bad-pass"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(http.MethodGet, "/api/auth/verify", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(http.MethodGet, "/api/auth/verify", reg.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ana@example.com")

	w = do(http.MethodGet, "/api/admin/users", reg.Token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	adminID := testutil.CreateUser(t, db, "root", "admin")
	adminTok, err := tokens.Issue(auth.Principal{UserID: adminID, Role: auth.RoleAdmin})
	require.NoError(t, err)

	w = do(http.MethodPut, fmt.Sprintf("/api/admin/users/%d/role", reg.User.ID), adminTok, models.UpdateRoleRequest{Role: "admin"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(http.MethodGet, "/api/admin/users", adminTok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var users []models.UserResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &users))
	assert.Len(t, users, 2)
}
