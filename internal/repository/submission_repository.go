package repository

import (
	"context"
	"intellitest_backend/internal/model"

	"gorm.io/gorm"
)

type SubmissionRepository struct {
	DB *gorm.DB
}

func NewSubmissionRepository(db *gorm.DB) *SubmissionRepository {
	return &SubmissionRepository{DB: db}
}

// Create 唯一索引冲突时返回的错误满足 IsDuplicateKey
func (r *SubmissionRepository) Create(ctx context.Context, s *model.Submission) error {
	return r.DB.WithContext(ctx).Create(s).Error
}

func (r *SubmissionRepository) CreateAnswers(ctx context.Context, answers []model.SubmissionAnswer) error {
	if len(answers) == 0 {
		return nil
	}
	return r.DB.WithContext(ctx).Create(&answers).Error
}

// SaveResult 写回分数与作答数
func (r *SubmissionRepository) SaveResult(ctx context.Context, s *model.Submission) error {
	return r.DB.WithContext(ctx).Model(&model.Submission{}).Where("id = ?", s.ID).Updates(map[string]interface{}{
		"score":               s.Score,
		"attempted_questions": s.AttemptedQuestions,
	}).Error
}

func (r *SubmissionRepository) FindByID(ctx context.Context, id uint) (*model.Submission, error) {
	var s model.Submission
	err := r.DB.WithContext(ctx).First(&s, id).Error
	return &s, err
}

func (r *SubmissionRepository) ExistsForStudent(ctx context.Context, testID, studentID uint) (bool, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&model.Submission{}).
		Where("test_id = ? AND student_id = ?", testID, studentID).
		Count(&count).Error
	return count > 0, err
}

func (r *SubmissionRepository) ListByStudent(ctx context.Context, studentID uint) ([]model.Submission, error) {
	var subs []model.Submission
	err := r.DB.WithContext(ctx).Where("student_id = ?", studentID).Order("id asc").Find(&subs).Error
	return subs, err
}

func (r *SubmissionRepository) ListByTest(ctx context.Context, testID uint) ([]model.Submission, error) {
	var subs []model.Submission
	err := r.DB.WithContext(ctx).Where("test_id = ?", testID).Order("id asc").Find(&subs).Error
	return subs, err
}

func (r *SubmissionRepository) ListAnswers(ctx context.Context, submissionID uint) ([]model.SubmissionAnswer, error) {
	var answers []model.SubmissionAnswer
	err := r.DB.WithContext(ctx).Where("submission_id = ?", submissionID).Order("id asc").Find(&answers).Error
	return answers, err
}

// AttachAnswers 批量加载作答并填充到 subs
func (r *SubmissionRepository) AttachAnswers(ctx context.Context, subs []model.Submission) error {
	if len(subs) == 0 {
		return nil
	}
	ids := make([]uint, len(subs))
	index := make(map[uint]int, len(subs))
	for i := range subs {
		ids[i] = subs[i].ID
		index[subs[i].ID] = i
		subs[i].Answers = []model.SubmissionAnswer{}
	}

	var answers []model.SubmissionAnswer
	if err := r.DB.WithContext(ctx).Where("submission_id IN ?", ids).Order("id asc").Find(&answers).Error; err != nil {
		return err
	}
	for _, a := range answers {
		i := index[a.SubmissionID]
		subs[i].Answers = append(subs[i].Answers, a)
	}
	return nil
}

// CountAttempted submission_id -> 已作答（selected_answer 非空）数量
func (r *SubmissionRepository) CountAttempted(ctx context.Context, submissionIDs []uint) (map[uint]int, error) {
	result := make(map[uint]int, len(submissionIDs))
	if len(submissionIDs) == 0 {
		return result, nil
	}
	var rows []struct {
		SubmissionID uint
		Count        int
	}
	err := r.DB.WithContext(ctx).Model(&model.SubmissionAnswer{}).
		Select("submission_id, COUNT(*) as count").
		Where("submission_id IN ? AND selected_answer IS NOT NULL", submissionIDs).
		Group("submission_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		result[row.SubmissionID] = row.Count
	}
	return result, nil
}

// CountByTests test_id -> 提交数
func (r *SubmissionRepository) CountByTests(ctx context.Context, testIDs []uint) (map[uint]int, error) {
	result := make(map[uint]int, len(testIDs))
	if len(testIDs) == 0 {
		return result, nil
	}
	var rows []struct {
		TestID uint
		Count  int
	}
	err := r.DB.WithContext(ctx).Model(&model.Submission{}).
		Select("test_id, COUNT(*) as count").
		Where("test_id IN ?", testIDs).
		Group("test_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		result[row.TestID] = row.Count
	}
	return result, nil
}
