package service

import (
	"context"
	"fmt"
	"intellitest_backend/internal/model"
	"intellitest_backend/internal/repository"
	"intellitest_backend/pkg/logger"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

// SeedData 演示数据文件格式
type SeedData struct {
	Users     []SeedUser     `yaml:"users"`
	Questions []SeedQuestion `yaml:"questions"`
	Tests     []SeedTest     `yaml:"tests"`
}

type SeedUser struct {
	Username  string         `yaml:"username"`
	Email     string         `yaml:"email"`
	Password  string         `yaml:"password"`
	FullName  string         `yaml:"full_name"`
	Role      model.UserRole `yaml:"role"`
	ClassName *string        `yaml:"class_name"`
}

type SeedQuestion struct {
	QuestionText    string           `yaml:"question_text"`
	OptionA         string           `yaml:"option_a"`
	OptionB         string           `yaml:"option_b"`
	OptionC         string           `yaml:"option_c"`
	OptionD         string           `yaml:"option_d"`
	CorrectAnswer   string           `yaml:"correct_answer"`
	Topic           *string          `yaml:"topic"`
	DifficultyLevel model.Difficulty `yaml:"difficulty_level"`
}

// SeedTest Questions 为 questions 列表中的下标（从 0 开始）
type SeedTest struct {
	Name            string   `yaml:"name"`
	Description     *string  `yaml:"description"`
	DurationMinutes int      `yaml:"duration_minutes"`
	IsLive          bool     `yaml:"is_live"`
	AssignedClasses []string `yaml:"assigned_classes"`
	Questions       []int    `yaml:"questions"`
	Author          string   `yaml:"author"`
}

type SeedService struct {
	DB    *gorm.DB
	Users *UserService
	Tests *TestService
}

func NewSeedService(db *gorm.DB) *SeedService {
	return &SeedService{
		DB:    db,
		Users: NewUserService(repository.NewUserRepository(db)),
		Tests: NewTestService(db, nil),
	}
}

func LoadSeedFile(path string) (*SeedData, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var data SeedData
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	return &data, nil
}

// Seed 可重复执行：用户按用户名、题目按题干、试卷按名称判断是否已存在
func (s *SeedService) Seed(ctx context.Context, data *SeedData) error {
	userRepo := s.Users.UserRepo
	questionRepo := repository.NewQuestionRepository(s.DB)

	authors := make(map[string]uint, len(data.Users))
	var defaultAuthor uint
	for _, u := range data.Users {
		existing, err := userRepo.FindByUsername(ctx, u.Username)
		switch {
		case err == nil:
			authors[u.Username] = existing.ID
		case repository.IsNotFound(err):
			created, err := s.Users.CreateUser(ctx, CreateUserReq{
				Username:  u.Username,
				Email:     u.Email,
				Password:  u.Password,
				FullName:  u.FullName,
				Role:      u.Role,
				ClassName: u.ClassName,
			})
			if err != nil {
				return fmt.Errorf("seed user %s: %w", u.Username, err)
			}
			authors[u.Username] = created.ID
		default:
			return err
		}
		if defaultAuthor == 0 && u.Role != model.Student {
			defaultAuthor = authors[u.Username]
		}
	}

	questionIDs := make([]uint, len(data.Questions))
	for i, q := range data.Questions {
		existing, err := questionRepo.FindByText(ctx, q.QuestionText)
		if err == nil {
			questionIDs[i] = existing.ID
			continue
		}
		if !repository.IsNotFound(err) {
			return err
		}
		difficulty := q.DifficultyLevel
		if difficulty == "" {
			difficulty = model.Medium
		}
		row := &model.Question{
			QuestionText:    q.QuestionText,
			OptionA:         q.OptionA,
			OptionB:         q.OptionB,
			OptionC:         q.OptionC,
			OptionD:         q.OptionD,
			CorrectAnswer:   q.CorrectAnswer,
			Topic:           q.Topic,
			DifficultyLevel: difficulty,
			CreatedBy:       defaultAuthor,
		}
		if !model.ValidOption(row.CorrectAnswer) || !difficulty.Valid() {
			return fmt.Errorf("seed question %d: invalid answer or difficulty", i)
		}
		if err := questionRepo.Create(ctx, row); err != nil {
			return fmt.Errorf("seed question %d: %w", i, err)
		}
		questionIDs[i] = row.ID
	}

	for _, t := range data.Tests {
		if _, err := s.Tests.TestRepo.FindByName(ctx, t.Name); err == nil {
			continue
		} else if !repository.IsNotFound(err) {
			return err
		}

		ids := make([]uint, 0, len(t.Questions))
		for _, idx := range t.Questions {
			if idx < 0 || idx >= len(questionIDs) {
				return fmt.Errorf("seed test %s: question index %d out of range", t.Name, idx)
			}
			ids = append(ids, questionIDs[idx])
		}
		author := defaultAuthor
		if id, ok := authors[t.Author]; ok {
			author = id
		}
		_, err := s.Tests.CreateTest(ctx, CreateTestReq{
			Name:            t.Name,
			Description:     t.Description,
			DurationMinutes: t.DurationMinutes,
			IsLive:          t.IsLive,
			AssignedClasses: model.NewClassSet(t.AssignedClasses...),
			QuestionIDs:     ids,
		}, author)
		if err != nil {
			return fmt.Errorf("seed test %s: %w", t.Name, err)
		}
	}

	logger.Log.Info("Seed data applied",
		zap.Int("users", len(data.Users)),
		zap.Int("questions", len(data.Questions)),
		zap.Int("tests", len(data.Tests)),
	)
	return nil
}
