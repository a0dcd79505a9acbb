package service

import (
	"context"
	"fmt"
	"intellitest_backend/internal/model"
	"intellitest_backend/internal/policy"
	"intellitest_backend/pkg/database"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// newTestDB 每个测试独立的内存库；单连接，事务内外不会看到不同的库
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger:         gormlogger.Discard,
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func createUser(t *testing.T, db *gorm.DB, username string, role model.UserRole, className *string) *model.User {
	t.Helper()
	u := &model.User{
		Username:   username,
		Email:      username + "@example.com",
		Password:   "x",
		FullName:   "User " + username,
		Role:       role,
		ClassName:  className,
		SchoolName: model.DefaultSchoolName,
		IsActive:   true,
	}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func createQuestion(t *testing.T, db *gorm.DB, correct string) *model.Question {
	t.Helper()
	q := &model.Question{
		QuestionText:    fmt.Sprintf("question with answer %s", correct),
		OptionA:         "a",
		OptionB:         "b",
		OptionC:         "c",
		OptionD:         "d",
		CorrectAnswer:   correct,
		DifficultyLevel: model.Medium,
	}
	if err := db.Create(q).Error; err != nil {
		t.Fatalf("create question: %v", err)
	}
	return q
}

func createTest(t *testing.T, db *gorm.DB, live bool, classes []string, questionIDs ...uint) *model.Test {
	t.Helper()
	svc := NewTestService(db, nil)
	test, err := svc.CreateTest(context.Background(), CreateTestReq{
		Name:            "Quiz",
		DurationMinutes: 30,
		IsLive:          live,
		AssignedClasses: model.NewClassSet(classes...),
		QuestionIDs:     questionIDs,
	}, 1)
	if err != nil {
		t.Fatalf("create test: %v", err)
	}
	return test
}

func student(u *model.User) policy.Identity {
	return policy.FromUser(u)
}

func strPtr(s string) *string { return &s }

func countRows(t *testing.T, db *gorm.DB, m interface{}) int64 {
	t.Helper()
	var n int64
	if err := db.Model(m).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func newTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return rdb, mr
}

// afterQueryOnce 在下一次查询 table 完成后执行 fn，仅触发一次
func afterQueryOnce(t *testing.T, db *gorm.DB, name, table string, fn func()) {
	t.Helper()
	armed := true
	err := db.Callback().Query().After("gorm:query").Register(name, func(tx *gorm.DB) {
		if !armed || tx.Statement.Table != table {
			return
		}
		armed = false
		fn()
	})
	if err != nil {
		t.Fatalf("register callback: %v", err)
	}
}
