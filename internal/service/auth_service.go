package service

import (
	"context"
	"fmt"
	"intellitest_backend/internal/config"
	"intellitest_backend/internal/model"
	"intellitest_backend/internal/policy"
	"intellitest_backend/internal/repository"
	"intellitest_backend/internal/util"
	"intellitest_backend/pkg/logger"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type AuthService struct {
	UserRepo *repository.UserRepository
	Cfg      *config.Config
}

func NewAuthService(userRepo *repository.UserRepository, cfg *config.Config) *AuthService {
	return &AuthService{
		UserRepo: userRepo,
		Cfg:      cfg,
	}
}

type LoginResult struct {
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type"`
	User        *model.User `json:"user"`
}

func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

func (s *AuthService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	user, err := s.UserRepo.FindByUsername(ctx, username)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, util.ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, util.ErrInvalidCredentials
	}

	if !user.IsActive {
		return nil, util.ErrInactiveUser
	}

	token, err := util.GenerateJWT(user, s.Cfg.JWT.Secret, s.Cfg.JWT.ExpireTime)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	logger.Log.Info("User logged in", zap.Uint("userId", user.ID), zap.String("role", string(user.Role)))
	return &LoginResult{AccessToken: token, TokenType: "bearer", User: user}, nil
}

// ResolveIdentity 每次请求重新读取用户，停用或删除的账号立即失效
func (s *AuthService) ResolveIdentity(userID uint) (policy.Identity, error) {
	user, err := s.UserRepo.FindByID(context.Background(), userID)
	if err != nil {
		if repository.IsNotFound(err) {
			return policy.Identity{}, fmt.Errorf("%w: user no longer exists", util.ErrUnauthenticated)
		}
		return policy.Identity{}, err
	}
	if !user.IsActive {
		return policy.Identity{}, util.ErrInactiveUser
	}
	return policy.FromUser(user), nil
}
