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
	"sorteos-backend/internal/features/tombola/models"
	"sorteos-backend/internal/features/tombola/repository/sqlstore"
	"sorteos-backend/internal/features/tombola/service"
	"sorteos-backend/internal/platform/lock"
	"sorteos-backend/internal/platform/sqldb"
	"sorteos-backend/internal/testutil"
)

type env struct {
	db     *sqldb.DB
	router *gin.Engine
	tokens *auth.TokenManager
}

func newEnv(t *testing.T) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.NewDB(t)
	tokens := auth.NewTokenManager("0123456789abcdef", time.Hour)
	svc := service.NewService(sqlstore.New(db), lock.NewLocal(), nil, nil, service.Config{EnforceSchedule: true})

	r := gin.New()
	r.Use(middleware.RequestID(), middleware.HandleErrors(), middleware.Authenticate(tokens))
	NewTombolaHandler(svc).RegisterRoutes(r.Group("/api"))

	return &env{db: db, router: r, tokens: tokens}
}

func (e *env) do(t *testing.T, method, path string, p *auth.Principal, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if p != nil {
		tok, err := e.tokens.Issue(*p)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func TestRunAndListWinners(t *testing.T) {
	e := newEnv(t)
	ownerID := testutil.CreateUser(t, e.db, "owner", "user")
	buyer := testutil.CreateUser(t, e.db, "buyer", "user")
	raffleID := testutil.CreateRaffle(t, e.db, ownerID, time.Now().Add(-time.Minute))
	testutil.CreateProduct(t, e.db, raffleID, "bicicleta", 1)
	testutil.CreateProduct(t, e.db, raffleID, "casco", 2)
	testutil.CreateTickets(t, e.db, raffleID, 4, "sold", buyer)

	owner := &auth.Principal{UserID: ownerID, Role: auth.RoleUser}
	stranger := &auth.Principal{UserID: buyer, Role: auth.RoleUser}
	runPath := fmt.Sprintf("/api/tombola/%d/run", raffleID)

	w := e.do(t, http.MethodPost, runPath, nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = e.do(t, http.MethodPost, runPath, stranger, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = e.do(t, http.MethodPost, runPath, owner, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var res models.DrawResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.True(t, res.Finalized)
	require.Len(t, res.Winners, 2)
	assert.Equal(t, "bicicleta", res.Winners[0].ProductName)

	w = e.do(t, http.MethodPost, runPath, owner, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = e.do(t, http.MethodGet, fmt.Sprintf("/api/tombola/%d/winners", raffleID), nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var winners []models.WinnerView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &winners))
	assert.Len(t, winners, 2)
}

func TestSelectWinnersEndpoint(t *testing.T) {
	e := newEnv(t)
	admin := &auth.Principal{UserID: testutil.CreateUser(t, e.db, "admin", "admin"), Role: auth.RoleAdmin}
	buyer := testutil.CreateUser(t, e.db, "buyer", "user")
	raffleID := testutil.CreateRaffle(t, e.db, 0, time.Now().Add(-time.Minute))
	productID := testutil.CreateProduct(t, e.db, raffleID, "tv", 1)
	testutil.CreateTickets(t, e.db, raffleID, 5, "sold", buyer)

	w := e.do(t, http.MethodPost, "/api/tombola/select-winners", admin, map[string]interface{}{"raffle_id": raffleID})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(t, http.MethodPost, "/api/tombola/select-winners", admin,
		models.SelectWinnersRequest{RaffleID: raffleID, ProductID: productID, Count: 10})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = e.do(t, http.MethodPost, "/api/tombola/select-winners", admin,
		models.SelectWinnersRequest{RaffleID: raffleID, ProductID: productID, Count: 3})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var res models.DrawResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Len(t, res.Winners, 3)
	assert.False(t, res.Finalized)
}

func TestWinnersUnknownRaffle(t *testing.T) {
	e := newEnv(t)
	w := e.do(t, http.MethodGet, "/api/tombola/424242/winners", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = e.do(t, http.MethodGet, "/api/tombola/abc/winners", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
