package service

import (
	"context"
	"fmt"
	"intellitest_backend/internal/model"
	"intellitest_backend/internal/repository"
	"intellitest_backend/internal/util"
	"intellitest_backend/pkg/logger"
	"strings"

	"go.uber.org/zap"
)

// UserService 用户管理（管理员）
type UserService struct {
	UserRepo *repository.UserRepository
}

func NewUserService(userRepo *repository.UserRepository) *UserService {
	return &UserService{UserRepo: userRepo}
}

type CreateUserReq struct {
	Username   string         `json:"username" binding:"required,min=3,max=100"`
	Email      string         `json:"email" binding:"required,email"`
	Password   string         `json:"password" binding:"required,min=6"`
	FullName   string         `json:"full_name" binding:"required"`
	Role       model.UserRole `json:"role" binding:"required,oneof=student teacher admin"`
	ClassName  *string        `json:"class_name"`
	SchoolName *string        `json:"school_name"`
}

// UpdateUserReq 指针为 nil 的字段不更新
type UpdateUserReq struct {
	Username   *string `json:"username" binding:"omitempty,min=3,max=100"`
	Email      *string `json:"email" binding:"omitempty,email"`
	FullName   *string `json:"full_name"`
	Password   *string `json:"password" binding:"omitempty,min=6"`
	ClassName  *string `json:"class_name"`
	SchoolName *string `json:"school_name"`
	IsActive   *bool   `json:"is_active"`
}

func (s *UserService) GetUserByID(ctx context.Context, id uint) (*model.User, error) {
	user, err := s.UserRepo.FindByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, util.ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

func (s *UserService) ListUsers(ctx context.Context, skip, limit int) ([]model.User, error) {
	return s.UserRepo.List(ctx, skip, limit)
}

func (s *UserService) checkUnique(ctx context.Context, username, email string, selfID uint) error {
	if username != "" {
		if u, err := s.UserRepo.FindByUsername(ctx, username); err == nil && u.ID != selfID {
			return util.ErrUsernameTaken
		} else if err != nil && !repository.IsNotFound(err) {
			return err
		}
	}
	if email != "" {
		if u, err := s.UserRepo.FindByEmail(ctx, email); err == nil && u.ID != selfID {
			return util.ErrEmailRegistered
		} else if err != nil && !repository.IsNotFound(err) {
			return err
		}
	}
	return nil
}

func (s *UserService) CreateUser(ctx context.Context, req CreateUserReq) (*model.User, error) {
	if !req.Role.Valid() {
		return nil, util.NewValidationError("invalid role %q", req.Role)
	}
	if err := s.checkUnique(ctx, req.Username, req.Email, 0); err != nil {
		return nil, err
	}

	hashed, err := HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Username:   strings.TrimSpace(req.Username),
		Email:      strings.TrimSpace(req.Email),
		Password:   hashed,
		FullName:   req.FullName,
		Role:       req.Role,
		ClassName:  normalizeClassName(req.ClassName),
		SchoolName: model.DefaultSchoolName,
		IsActive:   true,
	}
	if req.SchoolName != nil && *req.SchoolName != "" {
		user.SchoolName = *req.SchoolName
	}

	if err := s.UserRepo.Create(ctx, user); err != nil {
		// 并发注册时由唯一索引兜底
		if repository.IsDuplicateKey(err) {
			return nil, fmt.Errorf("%w: username or email already registered", util.ErrConflict)
		}
		return nil, err
	}

	logger.Log.Info("User created", zap.Uint("userId", user.ID), zap.String("role", string(user.Role)))
	return user, nil
}

func (s *UserService) UpdateUser(ctx context.Context, id uint, req UpdateUserReq) (*model.User, error) {
	if _, err := s.GetUserByID(ctx, id); err != nil {
		return nil, err
	}

	fields := make(map[string]interface{})
	username, email := "", ""
	if req.Username != nil {
		username = strings.TrimSpace(*req.Username)
		fields["username"] = username
	}
	if req.Email != nil {
		email = strings.TrimSpace(*req.Email)
		fields["email"] = email
	}
	if err := s.checkUnique(ctx, username, email, id); err != nil {
		return nil, err
	}
	if req.FullName != nil {
		fields["full_name"] = *req.FullName
	}
	if req.ClassName != nil {
		fields["class_name"] = normalizeClassName(req.ClassName)
	}
	if req.SchoolName != nil {
		fields["school_name"] = *req.SchoolName
	}
	if req.IsActive != nil {
		fields["is_active"] = *req.IsActive
	}
	if req.Password != nil {
		hashed, err := HashPassword(*req.Password)
		if err != nil {
			return nil, err
		}
		fields["password"] = hashed
	}

	if err := s.UserRepo.Update(ctx, id, fields); err != nil {
		if repository.IsDuplicateKey(err) {
			return nil, fmt.Errorf("%w: username or email already registered", util.ErrConflict)
		}
		return nil, err
	}
	return s.GetUserByID(ctx, id)
}

func (s *UserService) DeleteUser(ctx context.Context, id uint) error {
	if _, err := s.GetUserByID(ctx, id); err != nil {
		return err
	}
	return s.UserRepo.Delete(ctx, id)
}

// normalizeClassName 空白班级名视为未分班
func normalizeClassName(name *string) *string {
	if name == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*name)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
