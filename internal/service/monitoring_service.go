package service

import (
	"context"
	"encoding/json"
	"fmt"
	"intellitest_backend/internal/model"
	"intellitest_backend/internal/repository"
	"intellitest_backend/internal/util"
	"intellitest_backend/pkg/logger"
	"math"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// 分数段，上界包含在内
var scoreBuckets = []struct {
	Label string
	Upper float64
}{
	{"0-20", 20},
	{"21-40", 40},
	{"41-60", 60},
	{"61-80", 80},
	{"81-100", math.Inf(1)},
}

// MonitoringService 教师端的只读监控视图
type MonitoringService struct {
	TestRepo       *repository.TestRepository
	SubmissionRepo *repository.SubmissionRepository
	UserRepo       *repository.UserRepository
	Redis          *redis.Client
	CacheTTL       time.Duration
}

func NewMonitoringService(db *gorm.DB, rdb *redis.Client, cacheTTL time.Duration) *MonitoringService {
	return &MonitoringService{
		TestRepo:       repository.NewTestRepository(db),
		SubmissionRepo: repository.NewSubmissionRepository(db),
		UserRepo:       repository.NewUserRepository(db),
		Redis:          rdb,
		CacheTTL:       cacheTTL,
	}
}

type LiveTest struct {
	model.Test
	QuestionCount   int `json:"question_count"`
	SubmissionCount int `json:"submission_count"`
}

type StudentProgress struct {
	SubmissionID       uint       `json:"submission_id"`
	StudentID          uint       `json:"student_id"`
	StudentName        string     `json:"student_name"`
	ClassName          *string    `json:"class_name"`
	AttemptedQuestions int        `json:"attempted_questions"`
	TotalQuestions     int        `json:"total_questions"`
	Status             string     `json:"status"`
	StartedAt          *time.Time `json:"started_at"`
	SubmittedAt        *time.Time `json:"submitted_at"`
	Score              *float64   `json:"score"`
	IsAutoSubmitted    bool       `json:"is_auto_submitted"`
}

type TestProgress struct {
	TestID          uint              `json:"test_id"`
	TestName        string            `json:"test_name"`
	TotalStudents   int               `json:"total_students"`
	SubmittedCount  int               `json:"submitted_count"`
	InProgressCount int               `json:"in_progress_count"`
	Students        []StudentProgress `json:"students"`
}

type QuestionAnalysis struct {
	QuestionID   uint    `json:"question_id"`
	CorrectRate  float64 `json:"correct_rate"`
	AttemptCount int     `json:"attempt_count"`
}

type TestAnalytics struct {
	TestID            uint               `json:"test_id"`
	TestName          string             `json:"test_name"`
	TotalSubmissions  int                `json:"total_submissions"`
	AverageScore      float64            `json:"average_score"`
	ScoreDistribution map[string]int     `json:"score_distribution"`
	QuestionAnalysis  []QuestionAnalysis `json:"question_analysis"`
}

func (s *MonitoringService) LiveTests(ctx context.Context) ([]LiveTest, error) {
	live := true
	tests, err := s.TestRepo.List(ctx, repository.TestFilter{IsLive: &live})
	if err != nil {
		return nil, err
	}
	ids := make([]uint, len(tests))
	for i := range tests {
		ids[i] = tests[i].ID
	}
	questionCounts, err := s.TestRepo.CountQuestions(ctx, ids)
	if err != nil {
		return nil, err
	}
	submissionCounts, err := s.SubmissionRepo.CountByTests(ctx, ids)
	if err != nil {
		return nil, err
	}

	result := make([]LiveTest, len(tests))
	for i := range tests {
		result[i] = LiveTest{
			Test:            tests[i],
			QuestionCount:   questionCounts[tests[i].ID],
			SubmissionCount: submissionCounts[tests[i].ID],
		}
	}
	return result, nil
}

func (s *MonitoringService) findTest(ctx context.Context, testID uint) (*model.Test, error) {
	test, err := s.TestRepo.FindByID(ctx, testID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, util.ErrTestNotFound
		}
		return nil, err
	}
	return test, nil
}

// TestProgress 每个提交一行，附带学生姓名与班级
func (s *MonitoringService) TestProgress(ctx context.Context, testID uint) (*TestProgress, error) {
	test, err := s.findTest(ctx, testID)
	if err != nil {
		return nil, err
	}
	subs, err := s.SubmissionRepo.ListByTest(ctx, testID)
	if err != nil {
		return nil, err
	}

	subIDs := make([]uint, len(subs))
	studentIDs := make([]uint, len(subs))
	for i := range subs {
		subIDs[i] = subs[i].ID
		studentIDs[i] = subs[i].StudentID
	}
	attempted, err := s.SubmissionRepo.CountAttempted(ctx, subIDs)
	if err != nil {
		return nil, err
	}
	students, err := s.UserRepo.FindByIDs(ctx, studentIDs)
	if err != nil {
		return nil, err
	}

	progress := &TestProgress{
		TestID:        test.ID,
		TestName:      test.Name,
		TotalStudents: len(subs),
		Students:      make([]StudentProgress, 0, len(subs)),
	}
	for i := range subs {
		sub := &subs[i]
		row := StudentProgress{
			SubmissionID:       sub.ID,
			StudentID:          sub.StudentID,
			StudentName:        "Unknown",
			AttemptedQuestions: attempted[sub.ID],
			TotalQuestions:     sub.TotalQuestions,
			Status:             sub.Status(),
			StartedAt:          sub.StartedAt,
			SubmittedAt:        sub.SubmittedAt,
			Score:              sub.Score,
			IsAutoSubmitted:    sub.IsAutoSubmitted,
		}
		if u, ok := students[sub.StudentID]; ok {
			row.StudentName = u.FullName
			row.ClassName = u.ClassName
		}
		if row.Status == model.StatusSubmitted {
			progress.SubmittedCount++
		} else {
			progress.InProgressCount++
		}
		progress.Students = append(progress.Students, row)
	}
	return progress, nil
}

// TestAnalytics 结果按试卷版本号缓存在 Redis 中，交卷或修改试卷时版本号递增
func (s *MonitoringService) TestAnalytics(ctx context.Context, testID uint) (*TestAnalytics, error) {
	// 版本号须在读库之前取得，读库期间发生的交卷或改名会使本次结果落在旧键上
	gen, cacheable := analyticsGeneration(ctx, s.Redis, testID)
	test, err := s.findTest(ctx, testID)
	if err != nil {
		return nil, err
	}
	if cacheable {
		if cached := s.cachedAnalytics(ctx, testID, gen); cached != nil {
			return cached, nil
		}
	}

	subs, err := s.SubmissionRepo.ListByTest(ctx, testID)
	if err != nil {
		return nil, err
	}

	scores := make([]float64, 0, len(subs))
	for i := range subs {
		if subs[i].Score != nil {
			scores = append(scores, *subs[i].Score)
		}
	}

	analytics := &TestAnalytics{
		TestID:            test.ID,
		TestName:          test.Name,
		TotalSubmissions:  len(subs),
		AverageScore:      AverageScore(scores),
		ScoreDistribution: ScoreDistribution(scores),
		QuestionAnalysis:  []QuestionAnalysis{},
	}
	if cacheable {
		s.storeAnalytics(ctx, analytics, gen)
	}
	return analytics, nil
}

// AverageScore 保留两位小数，无分数时为 0
func AverageScore(scores []float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	sum := 0.0
	for _, sc := range scores {
		sum += sc
	}
	return math.Round(sum/float64(len(scores))*100) / 100
}

func ScoreDistribution(scores []float64) map[string]int {
	dist := make(map[string]int, len(scoreBuckets))
	for _, b := range scoreBuckets {
		dist[b.Label] = 0
	}
	for _, sc := range scores {
		for _, b := range scoreBuckets {
			if sc <= b.Upper {
				dist[b.Label]++
				break
			}
		}
	}
	return dist
}

const (
	AnalyticsCacheKeyPrefix = "analytics:test:"
	analyticsGenKeyPrefix   = "analytics:gen:"
)

func analyticsKey(testID uint, gen int64) string {
	return fmt.Sprintf("%s%d:%d", AnalyticsCacheKeyPrefix, testID, gen)
}

func analyticsGenKey(testID uint) string {
	return fmt.Sprintf("%s%d", analyticsGenKeyPrefix, testID)
}

// analyticsGeneration 返回当前版本号；Redis 不可用时不走缓存
func analyticsGeneration(ctx context.Context, rdb *redis.Client, testID uint) (int64, bool) {
	if rdb == nil {
		return 0, false
	}
	gen, err := rdb.Get(ctx, analyticsGenKey(testID)).Int64()
	if err == redis.Nil {
		return 0, true
	}
	if err != nil {
		logger.Log.Warn("Analytics generation read failed", zap.Error(err), zap.Uint("testId", testID))
		return 0, false
	}
	return gen, true
}

func (s *MonitoringService) cachedAnalytics(ctx context.Context, testID uint, gen int64) *TestAnalytics {
	data, err := s.Redis.Get(ctx, analyticsKey(testID, gen)).Bytes()
	if err != nil {
		if err != redis.Nil {
			logger.Log.Warn("Analytics cache read failed", zap.Error(err), zap.Uint("testId", testID))
		}
		return nil
	}
	var analytics TestAnalytics
	if err := json.Unmarshal(data, &analytics); err != nil {
		return nil
	}
	return &analytics
}

func (s *MonitoringService) storeAnalytics(ctx context.Context, analytics *TestAnalytics, gen int64) {
	data, err := json.Marshal(analytics)
	if err != nil {
		return
	}
	if err := s.Redis.Set(ctx, analyticsKey(analytics.TestID, gen), data, s.CacheTTL).Err(); err != nil {
		logger.Log.Warn("Analytics cache write failed", zap.Error(err), zap.Uint("testId", analytics.TestID))
	}
}

// invalidateAnalytics 递增版本号，旧版本的缓存不再被读取，随 TTL 过期
func invalidateAnalytics(ctx context.Context, rdb *redis.Client, testID uint) {
	if rdb == nil {
		return
	}
	if err := rdb.Incr(ctx, analyticsGenKey(testID)).Err(); err != nil {
		logger.Log.Warn("Analytics cache invalidation failed", zap.Error(err), zap.Uint("testId", testID))
	}
}
