package models

import "time"

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User is a registered account.
type User struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Phone        string    `json:"phone"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// UserResponse is the public view of a user.
// @Description Public user information
type UserResponse struct {
	ID        int64     `json:"id" example:"42"`
	Name      string    `json:"name" example:"Ana Pérez"`
	Email     string    `json:"email" example:"ana@example.com"`
	Phone     string    `json:"phone,omitempty" example:"+56 9 1234 5678"`
	Role      string    `json:"role" example:"user" enums:"user,admin"`
	CreatedAt time.Time `json:"created_at"`
}

type RegisterRequest struct {
	Name     string `json:"name" binding:"required" example:"Ana Pérez"`
	Email    string `json:"email" binding:"required" example:"ana@example.com"`
	Password string `json:"password" binding:"required" example:"secreto123"`
	Phone    string `json:"phone" example:"+56 9 1234 5678"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type AuthResponse struct {
	Token string        `json:"token"`
	User  *UserResponse `json:"user"`
}

// UpdateProfileRequest changes the caller's profile. A nil Email keeps the current one.
type UpdateProfileRequest struct {
	Name  string  `json:"name" binding:"required"`
	Email *string `json:"email"`
	Phone string  `json:"phone"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
}

type UpdateRoleRequest struct {
	Role string `json:"role" binding:"required" enums:"user,admin"`
}
