package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sorteos-backend/internal/common/auth"
	"sorteos-backend/internal/common/middleware"
	"sorteos-backend/internal/features/admin/models"
	"sorteos-backend/internal/features/admin/repository/sqlstore"
	"sorteos-backend/internal/features/admin/service"
	sorteostore "sorteos-backend/internal/features/sorteo/repository/sqlstore"
	"sorteos-backend/internal/testutil"
)

func TestAdminEndpoints(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := testutil.NewDB(t)
	tokens := auth.NewTokenManager("0123456789abcdef", time.Hour)

	r := gin.New()
	r.Use(middleware.RequestID(), middleware.HandleErrors(), middleware.Authenticate(tokens))
	NewAdminHandler(service.NewAdminService(sqlstore.NewStatsRepository(db), sorteostore.New(db))).
		RegisterRoutes(r.Group("/api"))

	adminID := testutil.CreateUser(t, db, "admin", "admin")
	userID := testutil.CreateUser(t, db, "user", "user")
	raffleID := testutil.CreateRaffle(t, db, 0, time.Now())
	testutil.CreateTickets(t, db, raffleID, 3, "sold", userID)

	adminTok, err := tokens.Issue(auth.Principal{UserID: adminID, Role: auth.RoleAdmin})
	require.NoError(t, err)
	userTok, err := tokens.Issue(auth.Principal{UserID: userID, Role: auth.RoleUser})
	require.NoError(t, err)

	get := func(path, token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusUnauthorized, get("/api/admin/stats", "").Code)
	assert.Equal(t, http.StatusForbidden, get("/api/admin/stats", userTok).Code)

	w := get("/api/admin/stats", adminTok)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var stats models.Stats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, int64(2), stats.TotalUsers)
	assert.Equal(t, int64(3), stats.SoldTickets)

	w = get("/api/admin/tickets?raffle_id=abc", adminTok)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = get("/api/admin/tickets", adminTok)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var tickets []map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &tickets))
	assert.Len(t, tickets, 3)
}
