package model

import "time"

// swagger:model Test
type Test struct {
	BaseModel
	Name            string     `gorm:"size:255;not null" json:"name"`
	Description     *string    `gorm:"type:text" json:"description"`
	DurationMinutes int        `gorm:"not null" json:"duration_minutes"`
	IsLive          bool       `gorm:"default:false;index" json:"is_live"`
	AssignedClasses ClassSet   `gorm:"type:varchar(1000)" json:"assigned_classes"`
	CreatedBy       uint       `gorm:"index" json:"created_by"`
	StartTime       *time.Time `json:"start_time"`
	EndTime         *time.Time `json:"end_time"`
}

func (Test) TableName() string {
	return "tests"
}

// TestQuestion 试卷与题目的有序关联，order 从 1 开始连续
type TestQuestion struct {
	ID         uint `gorm:"primaryKey;autoIncrement" json:"id"`
	TestID     uint `gorm:"not null;uniqueIndex:idx_test_question_order,priority:1" json:"test_id"`
	QuestionID uint `gorm:"not null;index" json:"question_id"`
	Order      int  `gorm:"column:order;not null;uniqueIndex:idx_test_question_order,priority:2" json:"order"`
}

func (TestQuestion) TableName() string {
	return "test_questions"
}
