package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	apperrors "campus-taskhub/backend/pkg/errors"
	"campus-taskhub/backend/pkg/jwt"
	"campus-taskhub/backend/shared/redis"
	"campus-taskhub/backend/user/models"
	"campus-taskhub/backend/user/repository"

	"gorm.io/gorm"
)

const profileCacheTTL = 10 * time.Minute

// UserService owns account registration, login and profile lookups.
// It also serves as the user lookup collaborator for the chat service.
type UserService struct {
	repo       repository.UserRepository
	cache      *redis.Client
	jwtService *jwt.Service
}

func NewUserService(repo repository.UserRepository, cache *redis.Client, jwtService *jwt.Service) *UserService {
	return &UserService{repo: repo, cache: cache, jwtService: jwtService}
}

// Register creates a new account and returns it with a signed token
func (s *UserService) Register(ctx context.Context, req *models.CreateUserRequest) (*models.User, string, error) {
	if existing, err := s.repo.GetByEmail(ctx, req.Email); err == nil && existing != nil {
		return nil, "", apperrors.NewConflictError("EMAIL_TAKEN", "A user with this email already exists")
	} else if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, "", apperrors.NewTransientStoreError("user store unavailable")
	}

	user := &models.User{
		Username: req.Username,
		Email:    req.Email,
	}
	if err := user.SetPassword(req.Password); err != nil {
		return nil, "", err
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, "", apperrors.NewTransientStoreError("user store unavailable")
	}

	token, err := s.jwtService.GenerateToken(user.ID, user.Username)
	if err != nil {
		return nil, "", err
	}

	return user, token, nil
}

// Login verifies credentials and returns the user with a signed token
func (s *UserService) Login(ctx context.Context, req *models.LoginRequest) (*models.User, string, error) {
	user, err := s.repo.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", apperrors.NewUnauthorizedError("INVALID_CREDENTIALS", "Invalid email or password")
		}
		return nil, "", apperrors.NewTransientStoreError("user store unavailable")
	}

	if !user.CheckPassword(req.Password) {
		return nil, "", apperrors.NewUnauthorizedError("INVALID_CREDENTIALS", "Invalid email or password")
	}

	token, err := s.jwtService.GenerateToken(user.ID, user.Username)
	if err != nil {
		return nil, "", err
	}

	return user, token, nil
}

// GetUser returns the full account record
func (s *UserService) GetUser(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFoundError("USER_NOT_FOUND", "User does not exist")
		}
		return nil, apperrors.NewTransientStoreError("user store unavailable")
	}
	return user, nil
}

// UserExists reports whether the given user ID resolves to an account
func (s *UserService) UserExists(ctx context.Context, id string) (bool, error) {
	return s.repo.Exists(ctx, id)
}

// Profile returns the public profile for a user, read through the
// redis cache
func (s *UserService) Profile(ctx context.Context, id string) (*models.Profile, error) {
	cacheKey := fmt.Sprintf("user:profile:%s", id)
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, cacheKey); err == nil && cached != "" {
			var profile models.Profile
			if err := json.Unmarshal([]byte(cached), &profile); err == nil {
				return &profile, nil
			}
		}
	}

	user, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}

	profile := user.ToProfile()
	if s.cache != nil {
		if data, err := json.Marshal(profile); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, profileCacheTTL)
		}
	}
	return profile, nil
}
