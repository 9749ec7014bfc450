package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	apperrors "sorteos-backend/internal/common/errors"
	"sorteos-backend/internal/common/middleware"
	"sorteos-backend/internal/features/payment/models"
	"sorteos-backend/internal/features/payment/service"
)

type PaymentHandler struct {
	service service.Service
}

func NewPaymentHandler(s service.Service) *PaymentHandler {
	return &PaymentHandler{service: s}
}

func (h *PaymentHandler) RegisterRoutes(router *gin.RouterGroup) {
	pagos := router.Group("/pagos", middleware.RequireAuth())
	{
		pagos.POST("/checkout", h.checkout)
		pagos.GET("/mine", h.listMine)
		pagos.GET("/:id", h.get)
		pagos.POST("/:id/confirm", h.confirm)
		pagos.POST("/:id/refund", middleware.RequireAdmin(), h.refund)
	}
}

// @Summary Start checkout
// @Description Quotes the tickets and opens a pending payment with the provider.
// @Tags pagos
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param checkout body models.CheckoutRequest true "Tickets and provider"
// @Success 201 {object} models.CheckoutResponse
// @Failure 400 {object} middleware.ErrorResponse
// @Failure 409 {object} middleware.ErrorResponse
// @Router /pagos/checkout [post]
func (h *PaymentHandler) checkout(c *gin.Context) {
	var req models.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewBadRequestError(err.Error()))
		return
	}
	principal, _ := middleware.GetPrincipal(c)

	res, err := h.service.Checkout(c.Request.Context(), principal, req)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// @Summary Confirm payment
// @Description Confirms the payment with its provider. Approved payments sell their tickets.
// @Tags pagos
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Payment ID"
// @Param confirm body models.ConfirmRequest false "Provider token"
// @Success 200 {object} models.Completion
// @Failure 409 {object} middleware.ErrorResponse
// @Router /pagos/{id}/confirm [post]
func (h *PaymentHandler) confirm(c *gin.Context) {
	id, err := paymentID(c)
	if err != nil {
		c.Error(err)
		return
	}
	var req models.ConfirmRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.Error(apperrors.NewBadRequestError(err.Error()))
			return
		}
	}
	principal, _ := middleware.GetPrincipal(c)

	res, err := h.service.Confirm(c.Request.Context(), principal, id, req.Token)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// @Summary Refund payment
// @Description Bookkeeping only: marks a completed payment refunded. Administrators only.
// @Tags pagos
// @Produce json
// @Security BearerAuth
// @Param id path int true "Payment ID"
// @Success 200 {object} models.Payment
// @Failure 403 {object} middleware.ErrorResponse
// @Failure 409 {object} middleware.ErrorResponse
// @Router /pagos/{id}/refund [post]
func (h *PaymentHandler) refund(c *gin.Context) {
	id, err := paymentID(c)
	if err != nil {
		c.Error(err)
		return
	}
	principal, _ := middleware.GetPrincipal(c)

	payment, err := h.service.Refund(c.Request.Context(), principal, id)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, payment)
}

// @Summary Get payment
// @Tags pagos
// @Produce json
// @Security BearerAuth
// @Param id path int true "Payment ID"
// @Success 200 {object} models.Payment
// @Failure 403 {object} middleware.ErrorResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Router /pagos/{id} [get]
func (h *PaymentHandler) get(c *gin.Context) {
	id, err := paymentID(c)
	if err != nil {
		c.Error(err)
		return
	}
	principal, _ := middleware.GetPrincipal(c)

	payment, err := h.service.Get(c.Request.Context(), principal, id)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, payment)
}

// @Summary List my payments
// @Tags pagos
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.Payment
// @Router /pagos/mine [get]
func (h *PaymentHandler) listMine(c *gin.Context) {
	principal, _ := middleware.GetPrincipal(c)

	payments, err := h.service.ListMine(c.Request.Context(), principal.UserID)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, payments)
}

func paymentID(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewValidationError("id", "must be a positive integer")
	}
	return id, nil
}
