package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	apperrors "sorteos-backend/internal/common/errors"
	"sorteos-backend/internal/common/middleware"
	"sorteos-backend/internal/features/user/models"
	"sorteos-backend/internal/features/user/service"
)

type UserHandler struct {
	service service.UserService
}

func NewUserHandler(service service.UserService) *UserHandler {
	return &UserHandler{
		service: service,
	}
}

func (h *UserHandler) RegisterRoutes(router *gin.RouterGroup) {
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/register", h.register)
		authGroup.POST("/login", h.login)
		authGroup.GET("/verify", middleware.RequireAuth(), h.verify)
		authGroup.PUT("/profile", middleware.RequireAuth(), h.updateProfile)
		authGroup.PUT("/change-password", middleware.RequireAuth(), h.changePassword)
	}

	// Админские маршруты
	admin := router.Group("/admin/users")
	admin.Use(middleware.RequireAdmin())
	{
		admin.GET("", h.listUsers)
		admin.PUT("/:id/role", h.updateRole)
	}
}

// @Summary Register
// @Description Creates a user account and returns a bearer token.
// @Tags auth
// @Accept json
// @Produce json
// @Param user body models.RegisterRequest true "New account"
// @Success 201 {object} models.AuthResponse
// @Failure 400 {object} middleware.ErrorResponse
// @Failure 409 {object} middleware.ErrorResponse "Email already registered"
// @Router /auth/register [post]
func (h *UserHandler) register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewBadRequestError(err.Error()))
		return
	}

	res, err := h.service.Register(c.Request.Context(), req)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// @Summary Login
// @Tags auth
// @Accept json
// @Produce json
// @Param credentials body models.LoginRequest true "Credentials"
// @Success 200 {object} models.AuthResponse
// @Failure 401 {object} middleware.ErrorResponse
// @Router /auth/login [post]
func (h *UserHandler) login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewBadRequestError(err.Error()))
		return
	}

	res, err := h.service.Login(c.Request.Context(), req)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// @Summary Current user
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.UserResponse
// @Failure 401 {object} middleware.ErrorResponse
// @Router /auth/verify [get]
func (h *UserHandler) verify(c *gin.Context) {
	principal, _ := middleware.GetPrincipal(c)

	user, err := h.service.GetUser(c.Request.Context(), principal.UserID)
	if err != nil {
		if appErr, ok := apperrors.AsAppError(err); ok && appErr.IsNotFound() {
			c.Error(apperrors.NewUnauthorizedError("user no longer exists"))
			return
		}
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// @Summary Update profile
// @Tags auth
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param profile body models.UpdateProfileRequest true "Profile"
// @Success 200 {object} models.UserResponse
// @Failure 400 {object} middleware.ErrorResponse
// @Failure 409 {object} middleware.ErrorResponse
// @Router /auth/profile [put]
func (h *UserHandler) updateProfile(c *gin.Context) {
	var req models.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewBadRequestError(err.Error()))
		return
	}
	principal, _ := middleware.GetPrincipal(c)

	user, err := h.service.UpdateProfile(c.Request.Context(), principal.UserID, req)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// @Summary Change password
// @Tags auth
// @Accept json
// @Security BearerAuth
// @Param passwords body models.ChangePasswordRequest true "Current and new password"
// @Success 204
// @Failure 401 {object} middleware.ErrorResponse
// @Router /auth/change-password [put]
func (h *UserHandler) changePassword(c *gin.Context) {
	var req models.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewBadRequestError(err.Error()))
		return
	}
	principal, _ := middleware.GetPrincipal(c)

	if err := h.service.ChangePassword(c.Request.Context(), principal.UserID, req); err != nil {
		c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

// @Summary List users
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.UserResponse
// @Failure 403 {object} middleware.ErrorResponse
// @Router /admin/users [get]
func (h *UserHandler) listUsers(c *gin.Context) {
	users, err := h.service.ListUsers(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, users)
}

// @Summary Change user role
// @Description Update user role (admin only)
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Param role body models.UpdateRoleRequest true "Role"
// @Success 200 {object} models.UserResponse
// @Failure 400 {object} middleware.ErrorResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Router /admin/users/{id}/role [put]
func (h *UserHandler) updateRole(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.Error(apperrors.NewValidationError("id", "must be a positive integer"))
		return
	}
	var req models.UpdateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewBadRequestError(err.Error()))
		return
	}
	principal, _ := middleware.GetPrincipal(c)

	user, err := h.service.UpdateRole(c.Request.Context(), principal, id, req.Role)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, user)
}
