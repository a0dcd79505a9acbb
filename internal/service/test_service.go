package service

import (
	"context"
	"intellitest_backend/internal/model"
	"intellitest_backend/internal/policy"
	"intellitest_backend/internal/repository"
	"intellitest_backend/internal/util"
	"intellitest_backend/pkg/logger"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// TestService 组卷：试卷及其有序题目
type TestService struct {
	DB           *gorm.DB
	TestRepo     *repository.TestRepository
	QuestionRepo *repository.QuestionRepository
	Redis        *redis.Client
}

func NewTestService(db *gorm.DB, rdb *redis.Client) *TestService {
	return &TestService{
		DB:           db,
		TestRepo:     repository.NewTestRepository(db),
		QuestionRepo: repository.NewQuestionRepository(db),
		Redis:        rdb,
	}
}

type CreateTestReq struct {
	Name            string         `json:"name" binding:"required"`
	Description     *string        `json:"description"`
	DurationMinutes int            `json:"duration_minutes" binding:"required,gt=0"`
	AssignedClasses model.ClassSet `json:"assigned_classes"`
	QuestionIDs     []uint         `json:"question_ids" binding:"required,min=1"`
	IsLive          bool           `json:"is_live"`
	StartTime       *time.Time     `json:"start_time"`
	EndTime         *time.Time     `json:"end_time"`
}

// UpdateTestReq PATCH 语义：指针为 nil 的字段保持不变
type UpdateTestReq struct {
	Name            *string         `json:"name"`
	Description     *string         `json:"description"`
	DurationMinutes *int            `json:"duration_minutes"`
	IsLive          *bool           `json:"is_live"`
	AssignedClasses *model.ClassSet `json:"assigned_classes"`
	QuestionIDs     *[]uint         `json:"question_ids"`
	StartTime       *time.Time      `json:"start_time"`
	EndTime         *time.Time      `json:"end_time"`
}

type TestListFilter struct {
	IsLive *bool
	Skip   int
	Limit  int
}

// TestDetail 试卷及按顺序排列的题目；学生视图不含正确答案
type TestDetail struct {
	model.Test
	Questions interface{} `json:"questions"`
}

func validateWindow(start, end *time.Time) error {
	if start != nil && end != nil && !end.After(*start) {
		return util.NewValidationError("end_time must be after start_time")
	}
	return nil
}

func (s *TestService) checkQuestions(ctx context.Context, tx *gorm.DB, ids []uint) error {
	if len(ids) == 0 {
		return util.NewValidationError("question_ids must not be empty")
	}
	missing, err := repository.NewQuestionRepository(tx).MissingIDs(ctx, ids)
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		return util.UnknownQuestionsError(missing)
	}
	return nil
}

// CreateTest 校验全部题目存在后，在同一事务中写入试卷与有序题目
func (s *TestService) CreateTest(ctx context.Context, req CreateTestReq, authorID uint) (*model.Test, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, util.NewValidationError("name is required")
	}
	if req.DurationMinutes <= 0 {
		return nil, util.NewValidationError("duration_minutes must be greater than 0")
	}
	classes := model.NewClassSet(req.AssignedClasses...)
	if err := classes.Validate(); err != nil {
		return nil, util.NewValidationError("%s", err.Error())
	}
	if err := validateWindow(req.StartTime, req.EndTime); err != nil {
		return nil, err
	}

	test := &model.Test{
		Name:            name,
		Description:     req.Description,
		DurationMinutes: req.DurationMinutes,
		IsLive:          req.IsLive,
		AssignedClasses: classes,
		CreatedBy:       authorID,
		StartTime:       req.StartTime,
		EndTime:         req.EndTime,
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.checkQuestions(ctx, tx, req.QuestionIDs); err != nil {
			return err
		}
		repo := repository.NewTestRepository(tx)
		if err := repo.Create(ctx, test); err != nil {
			return err
		}
		return repo.ReplaceQuestions(ctx, test.ID, req.QuestionIDs)
	})
	if err != nil {
		return nil, err
	}

	logger.Log.Info("Test created",
		zap.Uint("testId", test.ID),
		zap.Uint("authorId", authorID),
		zap.Int("questions", len(req.QuestionIDs)),
	)
	return test, nil
}

// UpdateTest 字段补丁与题目整体替换在同一事务内完成，读者看不到中间状态
func (s *TestService) UpdateTest(ctx context.Context, id uint, req UpdateTestReq) (*model.Test, error) {
	fields := make(map[string]interface{})
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, util.NewValidationError("name must not be empty")
		}
		fields["name"] = name
	}
	if req.Description != nil {
		fields["description"] = *req.Description
	}
	if req.DurationMinutes != nil {
		if *req.DurationMinutes <= 0 {
			return nil, util.NewValidationError("duration_minutes must be greater than 0")
		}
		fields["duration_minutes"] = *req.DurationMinutes
	}
	if req.IsLive != nil {
		fields["is_live"] = *req.IsLive
	}
	if req.AssignedClasses != nil {
		classes := model.NewClassSet(*req.AssignedClasses...)
		if err := classes.Validate(); err != nil {
			return nil, util.NewValidationError("%s", err.Error())
		}
		fields["assigned_classes"] = classes
	}
	if req.StartTime != nil {
		fields["start_time"] = *req.StartTime
	}
	if req.EndTime != nil {
		fields["end_time"] = *req.EndTime
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := repository.NewTestRepository(tx)
		current, err := repo.FindByID(ctx, id)
		if err != nil {
			if repository.IsNotFound(err) {
				return util.ErrTestNotFound
			}
			return err
		}

		start, end := current.StartTime, current.EndTime
		if req.StartTime != nil {
			start = req.StartTime
		}
		if req.EndTime != nil {
			end = req.EndTime
		}
		if err := validateWindow(start, end); err != nil {
			return err
		}

		if req.QuestionIDs != nil {
			if err := s.checkQuestions(ctx, tx, *req.QuestionIDs); err != nil {
				return err
			}
			if err := repo.ReplaceQuestions(ctx, id, *req.QuestionIDs); err != nil {
				return err
			}
		}
		return repo.Update(ctx, id, fields)
	})
	if err != nil {
		return nil, err
	}

	invalidateAnalytics(ctx, s.Redis, id)
	logger.Log.Info("Test updated", zap.Uint("testId", id), zap.Bool("questionsReplaced", req.QuestionIDs != nil))
	return s.findTest(ctx, id)
}

func (s *TestService) findTest(ctx context.Context, id uint) (*model.Test, error) {
	test, err := s.TestRepo.FindByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, util.ErrTestNotFound
		}
		return nil, err
	}
	return test, nil
}

// GetTest 返回试卷及按 order 排列的题目
func (s *TestService) GetTest(ctx context.Context, identity policy.Identity, id uint) (*TestDetail, error) {
	test, err := s.findTest(ctx, id)
	if err != nil {
		return nil, err
	}
	if !policy.CanAccessTest(identity, test) {
		return nil, util.ErrTestNotAccessible
	}

	qs, err := s.TestRepo.ListQuestions(ctx, id)
	if err != nil {
		return nil, err
	}

	detail := &TestDetail{Test: *test}
	if policy.CanManage(identity) {
		detail.Questions = qs
		return detail, nil
	}

	studentQs := make([]model.StudentQuestion, len(qs))
	for i := range qs {
		studentQs[i] = qs[i].ForStudent()
	}
	detail.Questions = studentQs
	return detail, nil
}

// ListTests 学生只能看到可访问的试卷
func (s *TestService) ListTests(ctx context.Context, identity policy.Identity, f TestListFilter) ([]model.Test, error) {
	if policy.CanManage(identity) {
		return s.TestRepo.List(ctx, repository.TestFilter{IsLive: f.IsLive, Skip: f.Skip, Limit: f.Limit})
	}

	candidates, err := s.TestRepo.ListVisibleCandidates(ctx, identity.ClassName, f.IsLive)
	if err != nil {
		return nil, err
	}
	visible := make([]model.Test, 0, len(candidates))
	for i := range candidates {
		if policy.CanAccessTest(identity, &candidates[i]) {
			visible = append(visible, candidates[i])
		}
	}
	return paginate(visible, f.Skip, f.Limit), nil
}

func (s *TestService) DeleteTest(ctx context.Context, id uint) error {
	if _, err := s.findTest(ctx, id); err != nil {
		return err
	}
	if err := s.TestRepo.Delete(ctx, id); err != nil {
		return err
	}
	invalidateAnalytics(ctx, s.Redis, id)
	logger.Log.Info("Test deleted", zap.Uint("testId", id))
	return nil
}

func paginate[T any](items []T, skip, limit int) []T {
	if skip >= len(items) {
		return []T{}
	}
	items = items[skip:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
