package model

import "time"

const (
	StatusSubmitted  = "Submitted"
	StatusInProgress = "In Progress"
)

// Submission 同一学生同一试卷只允许一条记录，由唯一索引保证
//
// swagger:model Submission
type Submission struct {
	ID                 uint               `gorm:"primaryKey;autoIncrement" json:"id"`
	TestID             uint               `gorm:"not null;uniqueIndex:idx_submission_test_student,priority:1" json:"test_id"`
	StudentID          uint               `gorm:"not null;uniqueIndex:idx_submission_test_student,priority:2;index" json:"student_id"`
	StartedAt          *time.Time         `json:"started_at"`
	SubmittedAt        *time.Time         `json:"submitted_at"`
	Score              *float64           `json:"score"`
	TotalQuestions     int                `gorm:"default:0" json:"total_questions"`
	AttemptedQuestions int                `gorm:"default:0" json:"attempted_questions"`
	IsAutoSubmitted    bool               `gorm:"default:false" json:"is_auto_submitted"`
	Answers            []SubmissionAnswer `gorm:"-" json:"answers"`
}

func (Submission) TableName() string {
	return "submissions"
}

func (s *Submission) Status() string {
	if s.SubmittedAt != nil {
		return StatusSubmitted
	}
	return StatusInProgress
}

// SubmissionAnswer IsCorrect 为 nil 表示未作答、未判分
type SubmissionAnswer struct {
	ID             uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	SubmissionID   uint       `gorm:"not null;index" json:"submission_id"`
	QuestionID     uint       `gorm:"not null;index" json:"question_id"`
	SelectedAnswer *string    `gorm:"size:1" json:"selected_answer"`
	IsCorrect      *bool      `json:"is_correct"`
	AnsweredAt     *time.Time `json:"answered_at"`
}

func (SubmissionAnswer) TableName() string {
	return "submission_answers"
}
