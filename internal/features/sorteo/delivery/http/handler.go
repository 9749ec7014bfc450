package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"sorteos-backend/internal/common/auth"
	apperrors "sorteos-backend/internal/common/errors"
	"sorteos-backend/internal/common/middleware"
	"sorteos-backend/internal/features/sorteo/models"
	"sorteos-backend/internal/features/sorteo/service"
)

type SorteoHandler struct {
	raffles    service.RaffleService
	inventory  service.InventoryService
	purchases  service.PurchaseService
	promotions service.PromotionService
}

func NewSorteoHandler(raffles service.RaffleService, inventory service.InventoryService,
	purchases service.PurchaseService, promotions service.PromotionService) *SorteoHandler {
	return &SorteoHandler{
		raffles:    raffles,
		inventory:  inventory,
		purchases:  purchases,
		promotions: promotions,
	}
}

func (h *SorteoHandler) RegisterRoutes(router *gin.RouterGroup) {
	sorteos := router.Group("/sorteos")
	{
		sorteos.GET("", h.listRaffles)
		sorteos.GET("/:id", h.getRaffle)
		sorteos.GET("/:id/tickets", h.listTickets)
		sorteos.POST("", middleware.RequireAdmin(), h.createRaffle)
		sorteos.PUT("/:id", middleware.RequireAuth(), h.updateRaffle)
		sorteos.DELETE("/:id", middleware.RequireAdmin(), h.deleteRaffle)
		sorteos.POST("/:id/finalize", middleware.RequireAuth(), h.finalizeRaffle)
		sorteos.POST("/:id/cancel", middleware.RequireAuth(), h.cancelRaffle)
		sorteos.POST("/:id/tickets/generate", middleware.RequireAuth(), h.generateTickets)
		sorteos.GET("/:id/tickets/sold", middleware.RequireAuth(), h.listSold)
		sorteos.DELETE("/:id/tickets/available", middleware.RequireAuth(), h.deleteAvailable)
	}

	tickets := router.Group("/tickets")
	{
		tickets.GET("/available/:raffleId", h.listAvailable)
		tickets.GET("/mine", middleware.RequireAuth(), h.listMine)
		tickets.POST("/reserve", middleware.RequireAuth(), h.reserve)
		tickets.DELETE("/:id", middleware.RequireAuth(), h.deleteTicket)
	}

	promos := router.Group("/promociones")
	{
		promos.GET("/sorteo/:raffleId", h.listPromotions)
		promos.POST("", middleware.RequireAdmin(), h.createPromotion)
		promos.PUT("/:id", middleware.RequireAdmin(), h.updatePromotion)
		promos.DELETE("/:id", middleware.RequireAdmin(), h.deletePromotion)
	}
}

// @Summary List raffles
// @Tags sorteos
// @Produce json
// @Param state query string false "Filter by state" Enums(active, finalized, cancelled)
// @Success 200 {array} models.RaffleSummary
// @Failure 400 {object} middleware.ErrorResponse
// @Router /sorteos [get]
func (h *SorteoHandler) listRaffles(c *gin.Context) {
	raffles, err := h.raffles.List(c.Request.Context(), models.RaffleState(c.Query("state")))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, raffles)
}

// @Summary Get raffle
// @Tags sorteos
// @Produce json
// @Param id path int true "Raffle ID"
// @Success 200 {object} models.RaffleDetail
// @Failure 404 {object} middleware.ErrorResponse
// @Router /sorteos/{id} [get]
func (h *SorteoHandler) getRaffle(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		c.Error(err)
		return
	}
	raffle, err := h.raffles.Get(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, raffle)
}

// @Summary Create raffle
// @Description Creates an active raffle with its prizes. Administrators only.
// @Tags sorteos
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param raffle body models.CreateRaffleRequest true "Raffle"
// @Success 201 {object} models.RaffleDetail
// @Failure 400 {object} middleware.ErrorResponse
// @Failure 403 {object} middleware.ErrorResponse
// @Router /sorteos [post]
func (h *SorteoHandler) createRaffle(c *gin.Context) {
	var req models.CreateRaffleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewBadRequestError(err.Error()))
		return
	}
	principal, _ := middleware.GetPrincipal(c)

	raffle, err := h.raffles.Create(c.Request.Context(), principal, req)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, raffle)
}

// @Summary Update raffle
// @Description Edits an active raffle. When products is present the prize list is replaced.
// @Tags sorteos
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Raffle ID"
// @Param raffle body models.UpdateRaffleRequest true "Changes"
// @Success 200 {object} models.RaffleDetail
// @Failure 403 {object} middleware.ErrorResponse
// @Failure 409 {object} middleware.ErrorResponse
// @Router /sorteos/{id} [put]
func (h *SorteoHandler) updateRaffle(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		c.Error(err)
		return
	}
	var req models.UpdateRaffleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewBadRequestError(err.Error()))
		return
	}
	principal, _ := middleware.GetPrincipal(c)

	raffle, err := h.raffles.Update(c.Request.Context(), principal, id, req)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, raffle)
}

// @Summary Delete raffle
// @Description Deletes the raffle with its prizes, tickets and winners.
// @Tags sorteos
// @Security BearerAuth
// @Param id path int true "Raffle ID"
// @Success 204
// @Failure 404 {object} middleware.ErrorResponse
// @Router /sorteos/{id} [delete]
func (h *SorteoHandler) deleteRaffle(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		c.Error(err)
		return
	}
	principal, _ := middleware.GetPrincipal(c)

	if err := h.raffles.Delete(c.Request.Context(), principal, id); err != nil {
		c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

// @Summary Finalize raffle
// @Tags sorteos
// @Produce json
// @Security BearerAuth
// @Param id path int true "Raffle ID"
// @Success 200 {object} models.Raffle
// @Failure 409 {object} middleware.ErrorResponse
// @Router /sorteos/{id}/finalize [post]
func (h *SorteoHandler) finalizeRaffle(c *gin.Context) {
	h.transition(c, h.raffles.Finalize)
}

// @Summary Cancel raffle
// @Tags sorteos
// @Produce json
// @Security BearerAuth
// @Param id path int true "Raffle ID"
// @Success 200 {object} models.Raffle
// @Failure 409 {object} middleware.ErrorResponse
// @Router /sorteos/{id}/cancel [post]
func (h *SorteoHandler) cancelRaffle(c *gin.Context) {
	h.transition(c, h.raffles.Cancel)
}

func (h *SorteoHandler) transition(c *gin.Context, fn func(context.Context, auth.Principal, int64) (*models.Raffle, error)) {
	id, err := paramID(c, "id")
	if err != nil {
		c.Error(err)
		return
	}
	p, _ := middleware.GetPrincipal(c)

	raffle, err := fn(c.Request.Context(), p, id)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, raffle)
}

// @Summary Generate tickets
// @Description Mints count tickets numbered YYYYMM + 4-digit sequence for the current month.
// @Tags tickets
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Raffle ID"
// @Param request body models.GenerateTicketsRequest true "Count and unit price"
// @Success 201 {object} models.GenerateResult
// @Failure 403 {object} middleware.ErrorResponse
// @Failure 409 {object} middleware.ErrorResponse
// @Failure 422 {object} middleware.ErrorResponse "Monthly quota exceeded"
// @Router /sorteos/{id}/tickets/generate [post]
func (h *SorteoHandler) generateTickets(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		c.Error(err)
		return
	}
	var req models.GenerateTicketsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewBadRequestError(err.Error()))
		return
	}
	principal, _ := middleware.GetPrincipal(c)

	res, err := h.inventory.Generate(c.Request.Context(), principal, id, req.Count, req.Price)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// @Summary List raffle tickets
// @Tags tickets
// @Produce json
// @Param id path int true "Raffle ID"
// @Param estado query string false "disponible, vendido or ganador"
// @Param limit query int false "Maximum tickets"
// @Success 200 {array} models.Ticket
// @Failure 404 {object} middleware.ErrorResponse
// @Router /sorteos/{id}/tickets [get]
func (h *SorteoHandler) listTickets(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		c.Error(err)
		return
	}
	limit, err := queryLimit(c)
	if err != nil {
		c.Error(err)
		return
	}

	var state models.TicketState
	if raw := c.Query("estado"); raw != "" {
		s, ok := models.ParseTicketState(raw)
		if !ok {
			c.Error(apperrors.NewValidationError("estado", "must be disponible, vendido or ganador"))
			return
		}
		state = s
	}

	tickets, err := h.inventory.ListTickets(c.Request.Context(), id, state, limit)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, tickets)
}

// @Summary List sold tickets with buyers
// @Tags tickets
// @Produce json
// @Security BearerAuth
// @Param id path int true "Raffle ID"
// @Success 200 {array} models.Ticket
// @Failure 403 {object} middleware.ErrorResponse
// @Router /sorteos/{id}/tickets/sold [get]
func (h *SorteoHandler) listSold(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		c.Error(err)
		return
	}
	principal, _ := middleware.GetPrincipal(c)

	tickets, err := h.inventory.ListSold(c.Request.Context(), principal, id)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, tickets)
}

// @Summary Delete available tickets
// @Description Removes every available ticket of the raffle. Sold and winning tickets stay.
// @Tags tickets
// @Produce json
// @Security BearerAuth
// @Param id path int true "Raffle ID"
// @Success 200 {object} models.DeletedResponse
// @Router /sorteos/{id}/tickets/available [delete]
func (h *SorteoHandler) deleteAvailable(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		c.Error(err)
		return
	}
	principal, _ := middleware.GetPrincipal(c)

	n, err := h.inventory.DeleteAvailable(c.Request.Context(), principal, id)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, models.DeletedResponse{Deleted: n})
}

// @Summary List available tickets
// @Tags tickets
// @Produce json
// @Param raffleId path int true "Raffle ID"
// @Param limit query int false "Maximum tickets"
// @Success 200 {array} models.Ticket
// @Router /tickets/available/{raffleId} [get]
func (h *SorteoHandler) listAvailable(c *gin.Context) {
	id, err := paramID(c, "raffleId")
	if err != nil {
		c.Error(err)
		return
	}
	limit, err := queryLimit(c)
	if err != nil {
		c.Error(err)
		return
	}

	tickets, err := h.inventory.ListAvailable(c.Request.Context(), id, limit)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, tickets)
}

// @Summary My tickets
// @Tags tickets
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.Ticket
// @Router /tickets/mine [get]
func (h *SorteoHandler) listMine(c *gin.Context) {
	principal, _ := middleware.GetPrincipal(c)

	tickets, err := h.inventory.ListMine(c.Request.Context(), principal.UserID)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, tickets)
}

// @Summary Reserve tickets
// @Description Picks random available tickets and quotes their total. Nothing is held until payment confirms.
// @Tags tickets
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.ReserveRequest true "Raffle and quantity"
// @Success 200 {object} models.Reservation
// @Failure 409 {object} middleware.ErrorResponse "Not enough available tickets"
// @Router /tickets/reserve [post]
func (h *SorteoHandler) reserve(c *gin.Context) {
	var req models.ReserveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewBadRequestError(err.Error()))
		return
	}

	res, err := h.purchases.Reserve(c.Request.Context(), req.RaffleID, req.Quantity)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// @Summary Delete ticket
// @Description Only available tickets can be deleted.
// @Tags tickets
// @Security BearerAuth
// @Param id path int true "Ticket ID"
// @Success 204
// @Failure 409 {object} middleware.ErrorResponse "Ticket is sold or a winner"
// @Router /tickets/{id} [delete]
func (h *SorteoHandler) deleteTicket(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		c.Error(err)
		return
	}
	principal, _ := middleware.GetPrincipal(c)

	if err := h.inventory.DeleteTicket(c.Request.Context(), principal, id); err != nil {
		c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

// @Summary Active promotions of a raffle
// @Tags promociones
// @Produce json
// @Param raffleId path int true "Raffle ID"
// @Success 200 {array} models.Promotion
// @Router /promociones/sorteo/{raffleId} [get]
func (h *SorteoHandler) listPromotions(c *gin.Context) {
	id, err := paramID(c, "raffleId")
	if err != nil {
		c.Error(err)
		return
	}
	promos, err := h.promotions.ListActive(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, promos)
}

// @Summary Create promotion
// @Tags promociones
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param promotion body models.PromotionRequest true "Promotion"
// @Success 201 {object} models.Promotion
// @Router /promociones [post]
func (h *SorteoHandler) createPromotion(c *gin.Context) {
	var req models.PromotionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewBadRequestError(err.Error()))
		return
	}
	principal, _ := middleware.GetPrincipal(c)

	promo, err := h.promotions.Create(c.Request.Context(), principal, req)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, promo)
}

// @Summary Update promotion
// @Tags promociones
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Promotion ID"
// @Param promotion body models.PromotionRequest true "Changes"
// @Success 200 {object} models.Promotion
// @Router /promociones/{id} [put]
func (h *SorteoHandler) updatePromotion(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		c.Error(err)
		return
	}
	var req models.PromotionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewBadRequestError(err.Error()))
		return
	}
	principal, _ := middleware.GetPrincipal(c)

	promo, err := h.promotions.Update(c.Request.Context(), principal, id, req)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, promo)
}

// @Summary Delete promotion
// @Tags promociones
// @Security BearerAuth
// @Param id path int true "Promotion ID"
// @Success 204
// @Router /promociones/{id} [delete]
func (h *SorteoHandler) deletePromotion(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		c.Error(err)
		return
	}
	principal, _ := middleware.GetPrincipal(c)

	if err := h.promotions.Delete(c.Request.Context(), principal, id); err != nil {
		c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}
