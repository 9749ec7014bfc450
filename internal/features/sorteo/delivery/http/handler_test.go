package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sorteos-backend/internal/common/auth"
	"sorteos-backend/internal/common/middleware"
	"sorteos-backend/internal/features/sorteo/models"
	"sorteos-backend/internal/features/sorteo/repository/sqlstore"
	"sorteos-backend/internal/features/sorteo/service"
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
	repo := sqlstore.New(db)
	tokens := auth.NewTokenManager("0123456789abcdef", time.Hour)

	h := NewSorteoHandler(
		service.NewRaffleService(repo),
		service.NewInventoryService(repo, service.InventoryConfig{MonthlyQuota: 1000, BatchSize: 100}, nil),
		service.NewPurchaseService(repo, nil),
		service.NewPromotionService(repo),
	)

	r := gin.New()
	r.Use(middleware.RequestID(), middleware.HandleErrors(), middleware.Authenticate(tokens))
	h.RegisterRoutes(r.Group("/api"))

	return &env{db: db, router: r, tokens: tokens}
}

func (e *env) token(t *testing.T, userID int64, role string) string {
	t.Helper()
	tok, err := e.tokens.Issue(auth.Principal{UserID: userID, Role: role})
	require.NoError(t, err)
	return tok
}

func (e *env) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Error.Code
}

func TestGenerateAndListTickets(t *testing.T) {
	e := newEnv(t)
	owner := testutil.CreateUser(t, e.db, "owner", "user")
	raffleID := testutil.CreateRaffle(t, e.db, owner, time.Now())
	base := "/api/sorteos/" + strconv.FormatInt(raffleID, 10)

	w := e.do(http.MethodPost, base+"/tickets/generate", "", models.GenerateTicketsRequest{Count: 3, Price: 100})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = e.do(http.MethodPost, base+"/tickets/generate", e.token(t, owner, auth.RoleUser), models.GenerateTicketsRequest{Count: 3, Price: 100})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var res models.GenerateResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, 3, res.Created)

	w = e.do(http.MethodGet, base+"/tickets?estado=disponible&limit=2", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var tickets []models.Ticket
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &tickets))
	assert.Len(t, tickets, 2)

	w = e.do(http.MethodGet, base+"/tickets?estado=reservado", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(http.MethodGet, "/api/sorteos/999/tickets", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteSoldTicketConflicts(t *testing.T) {
	e := newEnv(t)
	admin := testutil.CreateUser(t, e.db, "admin", "admin")
	buyer := testutil.CreateUser(t, e.db, "buyer", "user")
	raffleID := testutil.CreateRaffle(t, e.db, admin, time.Now())
	sold := testutil.CreateTickets(t, e.db, raffleID, 1, "sold", buyer)
	available := testutil.CreateTickets(t, e.db, raffleID, 1, "available", 0)
	tok := e.token(t, admin, auth.RoleAdmin)

	w := e.do(http.MethodDelete, "/api/tickets/"+strconv.FormatInt(sold[0], 10), tok, nil)
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "INVALID_STATE", errorCode(t, w))

	w = e.do(http.MethodDelete, "/api/tickets/"+strconv.FormatInt(available[0], 10), tok, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestReserveInsufficientInventory(t *testing.T) {
	e := newEnv(t)
	buyer := testutil.CreateUser(t, e.db, "buyer", "user")
	raffleID := testutil.CreateRaffle(t, e.db, 0, time.Now())
	testutil.CreateTickets(t, e.db, raffleID, 2, "available", 0)
	tok := e.token(t, buyer, auth.RoleUser)

	w := e.do(http.MethodPost, "/api/tickets/reserve", tok, models.ReserveRequest{RaffleID: raffleID, Quantity: 2})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = e.do(http.MethodPost, "/api/tickets/reserve", tok, models.ReserveRequest{RaffleID: raffleID, Quantity: 3})
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "INSUFFICIENT_INVENTORY", errorCode(t, w))
}

func TestCreateRaffleRequiresAdmin(t *testing.T) {
	e := newEnv(t)
	user := testutil.CreateUser(t, e.db, "user", "user")
	admin := testutil.CreateUser(t, e.db, "admin", "admin")

	req := models.CreateRaffleRequest{
		Title:    "Consola",
		DrawAt:   time.Now().Add(time.Hour),
		Products: []models.ProductInput{{Name: "Consola"}},
	}

	w := e.do(http.MethodPost, "/api/sorteos", e.token(t, user, auth.RoleUser), req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = e.do(http.MethodPost, "/api/sorteos", e.token(t, admin, auth.RoleAdmin), req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var detail models.RaffleDetail
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &detail))
	assert.Equal(t, "Consola", detail.Title)
	require.Len(t, detail.Products, 1)
}
