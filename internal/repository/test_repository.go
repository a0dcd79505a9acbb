package repository

import (
	"context"
	"intellitest_backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type TestRepository struct {
	DB *gorm.DB
}

func NewTestRepository(db *gorm.DB) *TestRepository {
	return &TestRepository{DB: db}
}

type TestFilter struct {
	IsLive *bool
	Skip   int
	Limit  int
}

var orderByPosition = clause.OrderByColumn{Column: clause.Column{Name: "order"}}

func (r *TestRepository) Create(ctx context.Context, test *model.Test) error {
	return r.DB.WithContext(ctx).Create(test).Error
}

func (r *TestRepository) FindByID(ctx context.Context, id uint) (*model.Test, error) {
	var test model.Test
	err := r.DB.WithContext(ctx).First(&test, id).Error
	return &test, err
}

func (r *TestRepository) List(ctx context.Context, f TestFilter) ([]model.Test, error) {
	query := r.DB.WithContext(ctx).Model(&model.Test{})
	if f.IsLive != nil {
		query = query.Where("is_live = ?", *f.IsLive)
	}
	if f.Limit > 0 {
		query = query.Offset(f.Skip).Limit(f.Limit)
	}

	var tests []model.Test
	err := query.Order("id asc").Find(&tests).Error
	return tests, err
}

// ListVisibleCandidates 学生可见试卷的预筛选：未指定班级，或班级字段包含该子串。
// LIKE 只是粗筛，调用方必须再按集合精确匹配
func (r *TestRepository) ListVisibleCandidates(ctx context.Context, className *string, isLive *bool) ([]model.Test, error) {
	query := r.DB.WithContext(ctx).Model(&model.Test{})
	if className != nil && *className != "" {
		query = query.Where("assigned_classes IS NULL OR assigned_classes = '' OR assigned_classes LIKE ?", "%"+*className+"%")
	} else {
		query = query.Where("assigned_classes IS NULL OR assigned_classes = ''")
	}
	if isLive != nil {
		query = query.Where("is_live = ?", *isLive)
	}

	var tests []model.Test
	err := query.Order("id asc").Find(&tests).Error
	return tests, err
}

// Update 只更新 fields 中出现的列
func (r *TestRepository) Update(ctx context.Context, id uint, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return nil
	}
	return r.DB.WithContext(ctx).Model(&model.Test{}).Where("id = ?", id).Updates(fields).Error
}

// ReplaceQuestions 删除旧关联后按顺序插入新关联，order 从 1 开始。需在事务中调用
func (r *TestRepository) ReplaceQuestions(ctx context.Context, testID uint, questionIDs []uint) error {
	db := r.DB.WithContext(ctx)
	if err := db.Where("test_id = ?", testID).Delete(&model.TestQuestion{}).Error; err != nil {
		return err
	}
	if len(questionIDs) == 0 {
		return nil
	}
	rows := make([]model.TestQuestion, len(questionIDs))
	for i, qid := range questionIDs {
		rows[i] = model.TestQuestion{TestID: testID, QuestionID: qid, Order: i + 1}
	}
	return db.Create(&rows).Error
}

func (r *TestRepository) ListQuestionLinks(ctx context.Context, testID uint) ([]model.TestQuestion, error) {
	var links []model.TestQuestion
	err := r.DB.WithContext(ctx).Where("test_id = ?", testID).Order(orderByPosition).Find(&links).Error
	return links, err
}

// ListQuestions 按 order 升序返回题目，已删除的题目跳过
func (r *TestRepository) ListQuestions(ctx context.Context, testID uint) ([]model.Question, error) {
	var qs []model.Question
	err := r.DB.WithContext(ctx).
		Joins("JOIN test_questions tq ON tq.question_id = questions.id").
		Where("tq.test_id = ?", testID).
		Order(clause.OrderByColumn{Column: clause.Column{Table: "tq", Name: "order"}}).
		Find(&qs).Error
	return qs, err
}

func (r *TestRepository) CountQuestions(ctx context.Context, testIDs []uint) (map[uint]int, error) {
	result := make(map[uint]int, len(testIDs))
	if len(testIDs) == 0 {
		return result, nil
	}
	var rows []struct {
		TestID uint
		Count  int
	}
	err := r.DB.WithContext(ctx).Model(&model.TestQuestion{}).
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

// Delete 连同题目关联、提交及作答一并删除
func (r *TestRepository) Delete(ctx context.Context, id uint) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("test_id = ?", id).Delete(&model.TestQuestion{}).Error; err != nil {
			return err
		}
		subQuery := tx.Model(&model.Submission{}).Select("id").Where("test_id = ?", id)
		if err := tx.Where("submission_id IN (?)", subQuery).Delete(&model.SubmissionAnswer{}).Error; err != nil {
			return err
		}
		if err := tx.Where("test_id = ?", id).Delete(&model.Submission{}).Error; err != nil {
			return err
		}
		return tx.Unscoped().Delete(&model.Test{}, id).Error
	})
}

func (r *TestRepository) FindByName(ctx context.Context, name string) (*model.Test, error) {
	var test model.Test
	err := r.DB.WithContext(ctx).Where("name = ?", name).First(&test).Error
	return &test, err
}
