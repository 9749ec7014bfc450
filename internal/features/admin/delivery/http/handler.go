package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	apperrors "sorteos-backend/internal/common/errors"
	"sorteos-backend/internal/common/middleware"
	"sorteos-backend/internal/features/admin/service"
)

type AdminHandler struct {
	service service.AdminService
}

func NewAdminHandler(s service.AdminService) *AdminHandler {
	return &AdminHandler{service: s}
}

func (h *AdminHandler) RegisterRoutes(router *gin.RouterGroup) {
	admin := router.Group("/admin", middleware.RequireAdmin())
	{
		admin.GET("/stats", h.stats)
		admin.GET("/tickets", h.tickets)
	}
}

// @Summary Dashboard stats
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.Stats
// @Failure 403 {object} middleware.ErrorResponse
// @Router /admin/stats [get]
func (h *AdminHandler) stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// @Summary List tickets
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param raffle_id query int false "Raffle ID"
// @Success 200 {array} object "Tickets with raffle title and buyer"
// @Failure 403 {object} middleware.ErrorResponse
// @Router /admin/tickets [get]
func (h *AdminHandler) tickets(c *gin.Context) {
	var raffleID int64
	if raw := c.Query("raffle_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			c.Error(apperrors.NewValidationError("raffle_id", "must be a positive integer"))
			return
		}
		raffleID = id
	}

	tickets, err := h.service.Tickets(c.Request.Context(), raffleID)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, tickets)
}
