package model

import "strings"

type Difficulty string

const (
	Easy   Difficulty = "easy"
	Medium Difficulty = "medium"
	Hard   Difficulty = "hard"
)

func (d Difficulty) Valid() bool {
	switch d {
	case Easy, Medium, Hard:
		return true
	}
	return false
}

// 选项字母
var Options = []string{"A", "B", "C", "D"}

// NormalizeOption 去除空白并转为大写，"a" 与 " A " 等价
func NormalizeOption(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

func ValidOption(s string) bool {
	for _, o := range Options {
		if s == o {
			return true
		}
	}
	return false
}

// swagger:model Question
type Question struct {
	BaseModel
	QuestionText    string     `gorm:"type:text;not null" json:"question_text"`
	OptionA         string     `gorm:"size:500;not null" json:"option_a"`
	OptionB         string     `gorm:"size:500;not null" json:"option_b"`
	OptionC         string     `gorm:"size:500;not null" json:"option_c"`
	OptionD         string     `gorm:"size:500;not null" json:"option_d"`
	CorrectAnswer   string     `gorm:"size:1;not null" json:"correct_answer"`
	Topic           *string    `gorm:"size:100;index" json:"topic"`
	DifficultyLevel Difficulty `gorm:"size:10;default:'medium'" json:"difficulty_level"`
	ImageURL        *string    `gorm:"size:255" json:"image_url"`
	CreatedBy       uint       `gorm:"index" json:"created_by"`
}

func (Question) TableName() string {
	return "questions"
}

// Grade 判定所选选项是否正确
func (q *Question) Grade(selected string) bool {
	return selected == q.CorrectAnswer
}

// StudentQuestion 学生可见的题目，不含正确答案
type StudentQuestion struct {
	ID              uint       `json:"id"`
	QuestionText    string     `json:"question_text"`
	OptionA         string     `json:"option_a"`
	OptionB         string     `json:"option_b"`
	OptionC         string     `json:"option_c"`
	OptionD         string     `json:"option_d"`
	Topic           *string    `json:"topic"`
	DifficultyLevel Difficulty `json:"difficulty_level"`
	ImageURL        *string    `json:"image_url"`
}

func (q *Question) ForStudent() StudentQuestion {
	return StudentQuestion{
		ID:              q.ID,
		QuestionText:    q.QuestionText,
		OptionA:         q.OptionA,
		OptionB:         q.OptionB,
		OptionC:         q.OptionC,
		OptionD:         q.OptionD,
		Topic:           q.Topic,
		DifficultyLevel: q.DifficultyLevel,
		ImageURL:        q.ImageURL,
	}
}
