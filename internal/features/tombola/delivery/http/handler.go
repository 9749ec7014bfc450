package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	apperrors "sorteos-backend/internal/common/errors"
	"sorteos-backend/internal/common/middleware"
	"sorteos-backend/internal/features/tombola/models"
	"sorteos-backend/internal/features/tombola/service"
)

type TombolaHandler struct {
	service service.Service
}

func NewTombolaHandler(s service.Service) *TombolaHandler {
	return &TombolaHandler{service: s}
}

func (h *TombolaHandler) RegisterRoutes(router *gin.RouterGroup) {
	tombola := router.Group("/tombola")
	{
		tombola.POST("/select-winners", middleware.RequireAuth(), h.selectWinners)
		tombola.POST("/:raffleId/run", middleware.RequireAuth(), h.run)
		tombola.GET("/:raffleId/winners", h.winners)
	}
}

// @Summary Run full draw
// @Description Awards one winner per prize in position order and finalizes the raffle. Owner or admin.
// @Tags tombola
// @Produce json
// @Security BearerAuth
// @Param raffleId path int true "Raffle ID"
// @Success 200 {object} models.DrawResult
// @Failure 403 {object} middleware.ErrorResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Failure 409 {object} middleware.ErrorResponse
// @Router /tombola/{raffleId}/run [post]
func (h *TombolaHandler) run(c *gin.Context) {
	raffleID, err := raffleParam(c)
	if err != nil {
		c.Error(err)
		return
	}
	principal, _ := middleware.GetPrincipal(c)

	result, err := h.service.Run(c.Request.Context(), principal, raffleID)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// @Summary Select winners for one prize
// @Description Draws count winners for a single prize. The raffle stays active.
// @Tags tombola
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.SelectWinnersRequest true "Prize draw"
// @Success 200 {object} models.DrawResult
// @Failure 400 {object} middleware.ErrorResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Failure 409 {object} middleware.ErrorResponse
// @Router /tombola/select-winners [post]
func (h *TombolaHandler) selectWinners(c *gin.Context) {
	var req models.SelectWinnersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewBadRequestError(err.Error()))
		return
	}
	principal, _ := middleware.GetPrincipal(c)

	result, err := h.service.SelectWinners(c.Request.Context(), principal, req)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// @Summary List winners
// @Tags tombola
// @Produce json
// @Param raffleId path int true "Raffle ID"
// @Success 200 {array} models.WinnerView
// @Failure 404 {object} middleware.ErrorResponse
// @Router /tombola/{raffleId}/winners [get]
func (h *TombolaHandler) winners(c *gin.Context) {
	raffleID, err := raffleParam(c)
	if err != nil {
		c.Error(err)
		return
	}

	winners, err := h.service.Winners(c.Request.Context(), raffleID)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, winners)
}

func raffleParam(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("raffleId"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewValidationError("raffleId", "must be a positive integer")
	}
	return id, nil
}
