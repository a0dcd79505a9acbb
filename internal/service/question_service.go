package service

import (
	"context"
	"fmt"
	"intellitest_backend/internal/model"
	"intellitest_backend/internal/repository"
	"intellitest_backend/internal/util"
	"intellitest_backend/pkg/logger"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type QuestionService struct {
	Repo    *repository.QuestionRepository
	Storage *StorageService
}

func NewQuestionService(repo *repository.QuestionRepository, storage *StorageService) *QuestionService {
	return &QuestionService{Repo: repo, Storage: storage}
}

type QuestionReq struct {
	QuestionText    string           `json:"question_text" binding:"required"`
	OptionA         string           `json:"option_a" binding:"required"`
	OptionB         string           `json:"option_b" binding:"required"`
	OptionC         string           `json:"option_c" binding:"required"`
	OptionD         string           `json:"option_d" binding:"required"`
	CorrectAnswer   string           `json:"correct_answer" binding:"required,answer_option"`
	Topic           *string          `json:"topic"`
	DifficultyLevel model.Difficulty `json:"difficulty_level" binding:"omitempty,oneof=easy medium hard"`
	ImageURL        *string          `json:"image_url"`
}

// QuestionPatch 指针为 nil 的字段不更新
type QuestionPatch struct {
	QuestionText    *string           `json:"question_text"`
	OptionA         *string           `json:"option_a"`
	OptionB         *string           `json:"option_b"`
	OptionC         *string           `json:"option_c"`
	OptionD         *string           `json:"option_d"`
	CorrectAnswer   *string           `json:"correct_answer" binding:"omitempty,answer_option"`
	Topic           *string           `json:"topic"`
	DifficultyLevel *model.Difficulty `json:"difficulty_level" binding:"omitempty,oneof=easy medium hard"`
	ImageURL        *string           `json:"image_url"`
}

// touchesGrading 修改题干、选项或答案会影响已判分作答的可复现性
func (p QuestionPatch) touchesGrading() bool {
	return p.QuestionText != nil || p.OptionA != nil || p.OptionB != nil ||
		p.OptionC != nil || p.OptionD != nil || p.CorrectAnswer != nil
}

func (s *QuestionService) CreateQuestion(ctx context.Context, authorID uint, req QuestionReq) (*model.Question, error) {
	answer := model.NormalizeOption(req.CorrectAnswer)
	if !model.ValidOption(answer) {
		return nil, util.NewValidationError("correct_answer must be one of A, B, C, D")
	}
	difficulty := req.DifficultyLevel
	if difficulty == "" {
		difficulty = model.Medium
	}
	if !difficulty.Valid() {
		return nil, util.NewValidationError("invalid difficulty_level %q", difficulty)
	}

	q := &model.Question{
		QuestionText:    req.QuestionText,
		OptionA:         req.OptionA,
		OptionB:         req.OptionB,
		OptionC:         req.OptionC,
		OptionD:         req.OptionD,
		CorrectAnswer:   answer,
		Topic:           req.Topic,
		DifficultyLevel: difficulty,
		ImageURL:        req.ImageURL,
		CreatedBy:       authorID,
	}
	if err := s.Repo.Create(ctx, q); err != nil {
		return nil, err
	}
	logger.Log.Info("Question created", zap.Uint("questionId", q.ID), zap.Uint("authorId", authorID))
	return q, nil
}

func (s *QuestionService) GetQuestion(ctx context.Context, id uint) (*model.Question, error) {
	q, err := s.Repo.FindByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, util.ErrQuestionNotFound
		}
		return nil, err
	}
	return q, nil
}

func (s *QuestionService) ListQuestions(ctx context.Context, f repository.QuestionFilter) ([]model.Question, error) {
	return s.Repo.List(ctx, f)
}

func (s *QuestionService) UpdateQuestion(ctx context.Context, id uint, patch QuestionPatch) (*model.Question, error) {
	fields := make(map[string]interface{})
	if patch.QuestionText != nil {
		fields["question_text"] = *patch.QuestionText
	}
	if patch.OptionA != nil {
		fields["option_a"] = *patch.OptionA
	}
	if patch.OptionB != nil {
		fields["option_b"] = *patch.OptionB
	}
	if patch.OptionC != nil {
		fields["option_c"] = *patch.OptionC
	}
	if patch.OptionD != nil {
		fields["option_d"] = *patch.OptionD
	}
	if patch.CorrectAnswer != nil {
		answer := model.NormalizeOption(*patch.CorrectAnswer)
		if !model.ValidOption(answer) {
			return nil, util.NewValidationError("correct_answer must be one of A, B, C, D")
		}
		fields["correct_answer"] = answer
	}
	if patch.Topic != nil {
		fields["topic"] = *patch.Topic
	}
	if patch.DifficultyLevel != nil {
		if !patch.DifficultyLevel.Valid() {
			return nil, util.NewValidationError("invalid difficulty_level %q", *patch.DifficultyLevel)
		}
		fields["difficulty_level"] = *patch.DifficultyLevel
	}
	if patch.ImageURL != nil {
		fields["image_url"] = *patch.ImageURL
	}

	// 判分检查与更新在同一事务内，题目行加锁，与交卷判分互斥
	err := s.Repo.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := repository.NewQuestionRepository(tx)
		if _, err := repo.LockByID(ctx, id); err != nil {
			if repository.IsNotFound(err) {
				return util.ErrQuestionNotFound
			}
			return err
		}
		if patch.touchesGrading() {
			graded, err := repo.IsGraded(ctx, id)
			if err != nil {
				return err
			}
			if graded {
				return util.ErrQuestionReferenced
			}
		}
		return repo.Update(ctx, id, fields)
	})
	if err != nil {
		return nil, err
	}
	return s.GetQuestion(ctx, id)
}

// DeleteQuestion 软删除；已组卷的关联保留，作答时按未知题目跳过
func (s *QuestionService) DeleteQuestion(ctx context.Context, id uint) error {
	if _, err := s.GetQuestion(ctx, id); err != nil {
		return err
	}
	return s.Repo.Delete(ctx, id)
}

// UploadImage 上传题目配图并回写 image_url
func (s *QuestionService) UploadImage(ctx context.Context, id uint, filename string, reader io.Reader, size int64, contentType string) (*model.Question, error) {
	if _, err := s.GetQuestion(ctx, id); err != nil {
		return nil, err
	}
	ext, ok := util.AllowedImageExtension(filename)
	if !ok {
		return nil, util.NewValidationError("unsupported image extension %q", ext)
	}
	if size > util.MaxImageSize {
		return nil, util.NewValidationError("image exceeds %d bytes", util.MaxImageSize)
	}

	objectName := fmt.Sprintf("questions/%d/%d%s", id, time.Now().UnixNano(), strings.ToLower(ext))
	url, err := s.Storage.Upload(ctx, objectName, reader, size, contentType)
	if err != nil {
		return nil, fmt.Errorf("upload question image: %w", err)
	}

	if err := s.Repo.Update(ctx, id, map[string]interface{}{"image_url": url}); err != nil {
		return nil, err
	}
	return s.GetQuestion(ctx, id)
}
