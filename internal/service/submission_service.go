package service

import (
	"context"
	"errors"
	"fmt"
	"intellitest_backend/internal/model"
	"intellitest_backend/internal/policy"
	"intellitest_backend/internal/repository"
	"intellitest_backend/internal/util"
	"intellitest_backend/pkg/logger"
	"intellitest_backend/pkg/monitoring"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SubmissionService 学生交卷与自动判分
type SubmissionService struct {
	DB             *gorm.DB
	SubmissionRepo *repository.SubmissionRepository
	TestRepo       *repository.TestRepository
	Redis          *redis.Client
	Hub            *ProgressHub
}

func NewSubmissionService(db *gorm.DB, rdb *redis.Client, hub *ProgressHub) *SubmissionService {
	return &SubmissionService{
		DB:             db,
		SubmissionRepo: repository.NewSubmissionRepository(db),
		TestRepo:       repository.NewTestRepository(db),
		Redis:          rdb,
		Hub:            hub,
	}
}

type AnswerReq struct {
	QuestionID     uint    `json:"question_id" binding:"required"`
	SelectedAnswer *string `json:"selected_answer" binding:"omitempty,answer_option"`
}

type SubmitReq struct {
	Answers         []AnswerReq `json:"answers"`
	IsAutoSubmitted bool        `json:"is_auto_submitted"`
}

// Score 百分制得分，无作答时为 0
func Score(correct, total int) float64 {
	if total == 0 {
		return 0
	}
	return 100 * float64(correct) / float64(total)
}

// Submit 校验访问权限与试卷状态后，在一个事务中写入提交、作答与分数。
// 不存在或已删除的题目静默跳过，但仍计入分母
func (s *SubmissionService) Submit(ctx context.Context, identity policy.Identity, testID uint, answers []AnswerReq, isAuto bool) (*model.Submission, error) {
	test, err := s.TestRepo.FindByID(ctx, testID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, util.ErrTestNotFound
		}
		return nil, err
	}
	if identity.Role != model.Student || !policy.CanAccessTest(identity, test) {
		monitoring.SubmissionCounter.WithLabelValues("rejected").Inc()
		return nil, util.ErrTestNotAccessible
	}
	if !test.IsLive {
		monitoring.SubmissionCounter.WithLabelValues("rejected").Inc()
		return nil, util.ErrTestNotLive
	}
	answers, err = normalizeAnswers(answers)
	if err != nil {
		return nil, err
	}

	// 快速路径；并发交卷由唯一索引兜底
	exists, err := s.SubmissionRepo.ExistsForStudent(ctx, testID, identity.ID)
	if err != nil {
		return nil, err
	}
	if exists {
		monitoring.SubmissionCounter.WithLabelValues("conflict").Inc()
		return nil, util.ErrAlreadySubmitted
	}

	ids := make([]uint, len(answers))
	for i, a := range answers {
		ids[i] = a.QuestionID
	}

	now := time.Now()
	sub := &model.Submission{
		TestID:          testID,
		StudentID:       identity.ID,
		StartedAt:       &now,
		SubmittedAt:     &now,
		TotalQuestions:  len(answers),
		IsAutoSubmitted: isAuto,
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		subRepo := repository.NewSubmissionRepository(tx)
		if err := subRepo.Create(ctx, sub); err != nil {
			if repository.IsDuplicateKey(err) {
				return util.ErrAlreadySubmitted
			}
			return err
		}

		// 共享锁，与修改题目互斥
		questions, err := repository.NewQuestionRepository(tx).FindByIDsShared(ctx, ids)
		if err != nil {
			return err
		}

		rows := make([]model.SubmissionAnswer, 0, len(answers))
		correct, attempted := 0, 0
		for _, a := range answers {
			q, ok := questions[a.QuestionID]
			if !ok {
				continue
			}
			row := model.SubmissionAnswer{
				SubmissionID:   sub.ID,
				QuestionID:     a.QuestionID,
				SelectedAnswer: a.SelectedAnswer,
				AnsweredAt:     &now,
			}
			if a.SelectedAnswer != nil {
				attempted++
				ok := q.Grade(*a.SelectedAnswer)
				row.IsCorrect = &ok
				if ok {
					correct++
				}
			}
			rows = append(rows, row)
		}
		if err := subRepo.CreateAnswers(ctx, rows); err != nil {
			return err
		}

		score := Score(correct, len(answers))
		sub.Score = &score
		sub.AttemptedQuestions = attempted
		sub.Answers = rows
		return subRepo.SaveResult(ctx, sub)
	})
	if err != nil {
		if errors.Is(err, util.ErrConflict) {
			monitoring.SubmissionCounter.WithLabelValues("conflict").Inc()
		} else {
			monitoring.SubmissionCounter.WithLabelValues("error").Inc()
		}
		return nil, err
	}

	monitoring.SubmissionCounter.WithLabelValues("accepted").Inc()
	monitoring.SubmissionScore.Observe(*sub.Score)
	logger.Log.Info("Submission graded",
		zap.Uint("submissionId", sub.ID),
		zap.Uint("testId", testID),
		zap.Uint("studentId", identity.ID),
		zap.Float64("score", *sub.Score),
		zap.Int("attempted", sub.AttemptedQuestions),
		zap.Bool("auto", isAuto),
	)

	invalidateAnalytics(ctx, s.Redis, testID)
	s.Hub.Publish(ctx, ProgressEvent{
		TestID:             testID,
		SubmissionID:       sub.ID,
		StudentID:          identity.ID,
		AttemptedQuestions: sub.AttemptedQuestions,
		TotalQuestions:     sub.TotalQuestions,
		Score:              sub.Score,
		IsAutoSubmitted:    isAuto,
		SubmittedAt:        sub.SubmittedAt,
	})
	return sub, nil
}

// normalizeAnswers 选项去空白并转大写，空串视为未作答
func normalizeAnswers(answers []AnswerReq) ([]AnswerReq, error) {
	out := make([]AnswerReq, len(answers))
	for i, a := range answers {
		out[i] = AnswerReq{QuestionID: a.QuestionID}
		if a.SelectedAnswer == nil {
			continue
		}
		opt := model.NormalizeOption(*a.SelectedAnswer)
		if opt == "" {
			continue
		}
		if !model.ValidOption(opt) {
			return nil, util.NewValidationError("invalid selected_answer %q for question %d", *a.SelectedAnswer, a.QuestionID)
		}
		out[i].SelectedAnswer = &opt
	}
	return out, nil
}

func (s *SubmissionService) GetSubmission(ctx context.Context, identity policy.Identity, id uint) (*model.Submission, error) {
	sub, err := s.SubmissionRepo.FindByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, util.ErrSubmissionNotFound
		}
		return nil, err
	}
	if !policy.CanAccessSubmission(identity, sub) {
		return nil, util.ErrSubmissionNotAccessible
	}
	answers, err := s.SubmissionRepo.ListAnswers(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load answers: %w", err)
	}
	sub.Answers = answers
	return sub, nil
}

func (s *SubmissionService) ListMySubmissions(ctx context.Context, identity policy.Identity) ([]model.Submission, error) {
	subs, err := s.SubmissionRepo.ListByStudent(ctx, identity.ID)
	if err != nil {
		return nil, err
	}
	if err := s.SubmissionRepo.AttachAnswers(ctx, subs); err != nil {
		return nil, err
	}
	return subs, nil
}

func (s *SubmissionService) ListTestSubmissions(ctx context.Context, testID uint) ([]model.Submission, error) {
	if _, err := s.TestRepo.FindByID(ctx, testID); err != nil {
		if repository.IsNotFound(err) {
			return nil, util.ErrTestNotFound
		}
		return nil, err
	}
	subs, err := s.SubmissionRepo.ListByTest(ctx, testID)
	if err != nil {
		return nil, err
	}
	if err := s.SubmissionRepo.AttachAnswers(ctx, subs); err != nil {
		return nil, err
	}
	return subs, nil
}
