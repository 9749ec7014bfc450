package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"sorteos-backend/internal/common/auth"
	apperrors "sorteos-backend/internal/common/errors"
	"sorteos-backend/internal/common/logger"
	"sorteos-backend/internal/common/validation"
	"sorteos-backend/internal/features/user/mapper"
	"sorteos-backend/internal/features/user/models"
	"sorteos-backend/internal/features/user/repository"
)

type UserService interface {
	Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error)
	// CreateUser creates an account with an explicit role without issuing a token.
	CreateUser(ctx context.Context, req models.RegisterRequest, role string) (*models.UserResponse, error)
	Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error)
	GetUser(ctx context.Context, id int64) (*models.UserResponse, error)
	UpdateProfile(ctx context.Context, id int64, req models.UpdateProfileRequest) (*models.UserResponse, error)
	ChangePassword(ctx context.Context, id int64, req models.ChangePasswordRequest) error
	ListUsers(ctx context.Context) ([]*models.UserResponse, error)
	UpdateRole(ctx context.Context, p auth.Principal, id int64, role string) (*models.UserResponse, error)
}

type userService struct {
	repo   repository.UserRepository
	tokens *auth.TokenManager
}

func NewUserService(repo repository.UserRepository, tokens *auth.TokenManager) UserService {
	return &userService{repo: repo, tokens: tokens}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *userService) Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error) {
	user, err := s.CreateUser(ctx, req, models.RoleUser)
	if err != nil {
		return nil, err
	}
	return s.authResponse(user)
}

func (s *userService) CreateUser(ctx context.Context, req models.RegisterRequest, role string) (*models.UserResponse, error) {
	req.Email = normalizeEmail(req.Email)
	req.Name = strings.TrimSpace(req.Name)

	if err := validation.ValidateName(req.Name); err != nil {
		return nil, apperrors.NewValidationError("name", err.Error())
	}
	if err := validation.ValidateEmail(req.Email); err != nil {
		return nil, apperrors.NewValidationError("email", err.Error())
	}
	if err := validation.ValidatePassword(req.Password); err != nil {
		return nil, apperrors.NewValidationError("password", err.Error())
	}
	if err := validation.ValidatePhone(req.Phone); err != nil {
		return nil, apperrors.NewValidationError("phone", err.Error())
	}
	if err := validation.ValidateRole(role); err != nil {
		return nil, apperrors.NewValidationError("role", err.Error())
	}

	if err := s.ensureEmailFree(ctx, req.Email, 0); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to hash password")
	}

	now := time.Now().UTC()
	user := &models.User{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
		Phone:        req.Phone,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, apperrors.NewDatabaseError("create user", err)
	}

	logger.Info().Int64("user_id", user.ID).Str("role", role).Msg("User registered")
	return mapper.ToUserResponse(user), nil
}

func (s *userService) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	user, err := s.repo.GetByEmail(ctx, normalizeEmail(req.Email))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, invalidCredentials()
	}
	if err != nil {
		return nil, apperrors.NewDatabaseError("get user", err)
	}
	if err := auth.CheckPassword(user.PasswordHash, req.Password); err != nil {
		return nil, invalidCredentials()
	}
	return s.authResponse(mapper.ToUserResponse(user))
}

func (s *userService) GetUser(ctx context.Context, id int64) (*models.UserResponse, error) {
	user, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	return mapper.ToUserResponse(user), nil
}

func (s *userService) UpdateProfile(ctx context.Context, id int64, req models.UpdateProfileRequest) (*models.UserResponse, error) {
	user, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.Name)
	if err := validation.ValidateName(name); err != nil {
		return nil, apperrors.NewValidationError("name", err.Error())
	}
	if err := validation.ValidatePhone(req.Phone); err != nil {
		return nil, apperrors.NewValidationError("phone", err.Error())
	}
	if req.Email != nil {
		email := normalizeEmail(*req.Email)
		if err := validation.ValidateEmail(email); err != nil {
			return nil, apperrors.NewValidationError("email", err.Error())
		}
		if email != user.Email {
			if err := s.ensureEmailFree(ctx, email, id); err != nil {
				return nil, err
			}
			user.Email = email
		}
	}

	user.Name = name
	user.Phone = req.Phone
	user.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, user); err != nil {
		return nil, apperrors.NewDatabaseError("update user", err)
	}
	return mapper.ToUserResponse(user), nil
}

func (s *userService) ChangePassword(ctx context.Context, id int64, req models.ChangePasswordRequest) error {
	user, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	if err := auth.CheckPassword(user.PasswordHash, req.CurrentPassword); err != nil {
		return invalidCredentials()
	}
	if err := validation.ValidatePassword(req.NewPassword); err != nil {
		return apperrors.NewValidationError("new_password", err.Error())
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to hash password")
	}
	if err := s.repo.UpdatePassword(ctx, id, hash); err != nil {
		return apperrors.NewDatabaseError("update password", err)
	}
	logger.Info().Int64("user_id", id).Msg("Password changed")
	return nil
}

func (s *userService) ListUsers(ctx context.Context) ([]*models.UserResponse, error) {
	users, err := s.repo.List(ctx)
	if err != nil {
		return nil, apperrors.NewDatabaseError("list users", err)
	}
	return mapper.ToUserResponses(users), nil
}

func (s *userService) UpdateRole(ctx context.Context, p auth.Principal, id int64, role string) (*models.UserResponse, error) {
	if !p.IsAdmin() {
		return nil, apperrors.NewForbiddenError("admin access required")
	}
	if err := validation.ValidateRole(role); err != nil {
		return nil, apperrors.NewValidationError("role", err.Error())
	}
	if id == p.UserID && role != models.RoleAdmin {
		return nil, apperrors.NewValidationError("role", "admins cannot demote themselves")
	}

	if err := s.repo.UpdateRole(ctx, id, role); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFoundError("user", id)
		}
		return nil, apperrors.NewDatabaseError("update role", err)
	}

	logger.Info().Int64("user_id", id).Int64("admin_id", p.UserID).Str("role", role).Msg("User role changed")
	return s.GetUser(ctx, id)
}

func (s *userService) get(ctx context.Context, id int64) (*models.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewNotFoundError("user", id)
	}
	if err != nil {
		return nil, apperrors.NewDatabaseError("get user", err)
	}
	return user, nil
}

// ensureEmailFree fails with EMAIL_TAKEN when another account uses email.
func (s *userService) ensureEmailFree(ctx context.Context, email string, selfID int64) error {
	existing, err := s.repo.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return apperrors.NewDatabaseError("get user", err)
	}
	if existing.ID == selfID {
		return nil
	}
	return apperrors.New(apperrors.ErrCodeEmailTaken, "email is already registered").WithDetail("email", email)
}

func (s *userService) authResponse(user *models.UserResponse) (*models.AuthResponse, error) {
	token, err := s.tokens.Issue(auth.Principal{UserID: user.ID, Name: user.Name, Role: user.Role})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to issue token")
	}
	return &models.AuthResponse{Token: token, User: user}, nil
}

func invalidCredentials() error {
	return apperrors.New(apperrors.ErrCodeInvalidCredentials, "invalid email or password")
}
