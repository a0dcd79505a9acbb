package repository

import (
	"context"
	"intellitest_backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type QuestionRepository struct {
	DB *gorm.DB
}

func NewQuestionRepository(db *gorm.DB) *QuestionRepository {
	return &QuestionRepository{DB: db}
}

type QuestionFilter struct {
	Topic  string
	Search string
	Skip   int
	Limit  int
}

func (r *QuestionRepository) Create(ctx context.Context, q *model.Question) error {
	return r.DB.WithContext(ctx).Create(q).Error
}

func (r *QuestionRepository) FindByID(ctx context.Context, id uint) (*model.Question, error) {
	var q model.Question
	err := r.DB.WithContext(ctx).First(&q, id).Error
	return &q, err
}

// LockByID 在事务内对题目加排他锁（SQLite 无行锁，方言会忽略）
func (r *QuestionRepository) LockByID(ctx context.Context, id uint) (*model.Question, error) {
	var q model.Question
	err := r.DB.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).First(&q, id).Error
	return &q, err
}

// FindByIDs 返回 id -> 题目，已删除或不存在的 id 不出现在结果中
func (r *QuestionRepository) FindByIDs(ctx context.Context, ids []uint) (map[uint]*model.Question, error) {
	return findQuestionsByIDs(r.DB.WithContext(ctx), ids)
}

// FindByIDsShared 同 FindByIDs，并在事务内加共享锁
func (r *QuestionRepository) FindByIDsShared(ctx context.Context, ids []uint) (map[uint]*model.Question, error) {
	return findQuestionsByIDs(r.DB.WithContext(ctx).Clauses(clause.Locking{Strength: "SHARE"}), ids)
}

func findQuestionsByIDs(db *gorm.DB, ids []uint) (map[uint]*model.Question, error) {
	result := make(map[uint]*model.Question, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	var qs []model.Question
	if err := db.Where("id IN ?", ids).Find(&qs).Error; err != nil {
		return nil, err
	}
	for i := range qs {
		result[qs[i].ID] = &qs[i]
	}
	return result, nil
}

// MissingIDs 返回 ids 中不存在的题目ID（保持输入顺序，可能重复）
func (r *QuestionRepository) MissingIDs(ctx context.Context, ids []uint) ([]uint, error) {
	found, err := r.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	var missing []uint
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

func (r *QuestionRepository) List(ctx context.Context, f QuestionFilter) ([]model.Question, error) {
	query := r.DB.WithContext(ctx).Model(&model.Question{})
	if f.Topic != "" {
		query = query.Where("LOWER(topic) LIKE LOWER(?)", "%"+f.Topic+"%")
	}
	if f.Search != "" {
		query = query.Where("LOWER(question_text) LIKE LOWER(?)", "%"+f.Search+"%")
	}

	var qs []model.Question
	err := query.Order("id asc").Offset(f.Skip).Limit(f.Limit).Find(&qs).Error
	return qs, err
}

func (r *QuestionRepository) Update(ctx context.Context, id uint, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return nil
	}
	return r.DB.WithContext(ctx).Model(&model.Question{}).Where("id = ?", id).Updates(fields).Error
}

func (r *QuestionRepository) Delete(ctx context.Context, id uint) error {
	return r.DB.WithContext(ctx).Delete(&model.Question{}, id).Error
}

// IsGraded 题目是否已被判分的作答引用
func (r *QuestionRepository) IsGraded(ctx context.Context, id uint) (bool, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&model.SubmissionAnswer{}).
		Where("question_id = ? AND is_correct IS NOT NULL", id).
		Count(&count).Error
	return count > 0, err
}

func (r *QuestionRepository) FindByText(ctx context.Context, text string) (*model.Question, error) {
	var q model.Question
	err := r.DB.WithContext(ctx).Where("question_text = ?", text).First(&q).Error
	return &q, err
}
