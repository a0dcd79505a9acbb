package service

import (
	"context"
	"errors"
	"intellitest_backend/internal/model"
	"intellitest_backend/internal/policy"
	"intellitest_backend/internal/util"
	"testing"
	"time"
)

func TestScoreDistributionBoundaries(t *testing.T) {
	dist := ScoreDistribution([]float64{10, 25, 55, 90, 100})
	want := map[string]int{"0-20": 1, "21-40": 1, "41-60": 1, "61-80": 0, "81-100": 2}
	for label, n := range want {
		if dist[label] != n {
			t.Errorf("bucket %s = %d, want %d", label, dist[label], n)
		}
	}

	edges := ScoreDistribution([]float64{0, 20, 20.5, 40, 60, 80, 80.01})
	want = map[string]int{"0-20": 2, "21-40": 2, "41-60": 1, "61-80": 1, "81-100": 1}
	for label, n := range want {
		if edges[label] != n {
			t.Errorf("edge bucket %s = %d, want %d", label, edges[label], n)
		}
	}

	empty := ScoreDistribution(nil)
	if len(empty) != 5 {
		t.Fatalf("empty distribution has %d buckets", len(empty))
	}
}

func TestAverageScore(t *testing.T) {
	if got := AverageScore([]float64{10, 25, 55, 90, 100}); got != 56 {
		t.Fatalf("average = %v", got)
	}
	if got := AverageScore([]float64{100, 0, 0}); got != 33.33 {
		t.Fatalf("rounded average = %v", got)
	}
	if got := AverageScore(nil); got != 0 {
		t.Fatalf("empty average = %v", got)
	}
}

func submitAs(t *testing.T, svc *SubmissionService, identity policy.Identity, testID uint, answers ...AnswerReq) {
	t.Helper()
	if _, err := svc.Submit(context.Background(), identity, testID, answers, false); err != nil {
		t.Fatalf("submit: %v", err)
	}
}

func TestTestAnalytics(t *testing.T) {
	db := newTestDB(t)
	q1 := createQuestion(t, db, "A")
	q2 := createQuestion(t, db, "B")
	test := createTest(t, db, true, nil, q1.ID, q2.ID)
	subs := NewSubmissionService(db, nil, nil)
	mon := NewMonitoringService(db, nil, time.Minute)

	empty, err := mon.TestAnalytics(context.Background(), test.ID)
	if err != nil {
		t.Fatal(err)
	}
	if empty.TotalSubmissions != 0 || empty.AverageScore != 0 || empty.QuestionAnalysis == nil {
		t.Fatalf("empty analytics = %+v", empty)
	}

	a := createUser(t, db, "a", model.Student, nil)
	b := createUser(t, db, "b", model.Student, nil)
	c := createUser(t, db, "c", model.Student, nil)
	submitAs(t, subs, student(a), test.ID,
		AnswerReq{QuestionID: q1.ID, SelectedAnswer: strPtr("A")},
		AnswerReq{QuestionID: q2.ID, SelectedAnswer: strPtr("B")})
	submitAs(t, subs, student(b), test.ID,
		AnswerReq{QuestionID: q1.ID, SelectedAnswer: strPtr("A")},
		AnswerReq{QuestionID: q2.ID, SelectedAnswer: strPtr("A")})
	submitAs(t, subs, student(c), test.ID)

	got, err := mon.TestAnalytics(context.Background(), test.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.TotalSubmissions != 3 || got.AverageScore != 50 {
		t.Fatalf("analytics = %+v", got)
	}
	if got.ScoreDistribution["0-20"] != 1 || got.ScoreDistribution["41-60"] != 1 || got.ScoreDistribution["81-100"] != 1 {
		t.Fatalf("distribution = %v", got.ScoreDistribution)
	}

	if _, err := mon.TestAnalytics(context.Background(), 999); !errors.Is(err, util.ErrNotFound) {
		t.Fatalf("missing test: %v", err)
	}
}

func TestTestProgressUnknownStudent(t *testing.T) {
	db := newTestDB(t)
	q := createQuestion(t, db, "A")
	test := createTest(t, db, true, nil, q.ID)
	alice := createUser(t, db, "alice", model.Student, strPtr("Class A"))
	subs := NewSubmissionService(db, nil, nil)
	mon := NewMonitoringService(db, nil, time.Minute)

	submitAs(t, subs, student(alice), test.ID, AnswerReq{QuestionID: q.ID, SelectedAnswer: strPtr("A")})
	submitAs(t, subs, policy.Identity{ID: 4040, Role: model.Student}, test.ID, AnswerReq{QuestionID: q.ID})

	progress, err := mon.TestProgress(context.Background(), test.ID)
	if err != nil {
		t.Fatal(err)
	}
	if progress.TotalStudents != 2 || progress.SubmittedCount != 2 || progress.InProgressCount != 0 {
		t.Fatalf("progress = %+v", progress)
	}
	byStudent := make(map[uint]StudentProgress)
	for _, row := range progress.Students {
		byStudent[row.StudentID] = row
	}
	if row := byStudent[alice.ID]; row.StudentName != alice.FullName || row.ClassName == nil || *row.ClassName != "Class A" || row.AttemptedQuestions != 1 {
		t.Fatalf("alice row = %+v", row)
	}
	if row := byStudent[4040]; row.StudentName != "Unknown" || row.AttemptedQuestions != 0 {
		t.Fatalf("unknown row = %+v", row)
	}
}

func TestLiveTests(t *testing.T) {
	db := newTestDB(t)
	q1 := createQuestion(t, db, "A")
	q2 := createQuestion(t, db, "B")
	live := createTest(t, db, true, nil, q1.ID, q2.ID)
	createTest(t, db, false, nil, q1.ID)
	alice := createUser(t, db, "alice", model.Student, nil)
	submitAs(t, NewSubmissionService(db, nil, nil), student(alice), live.ID)

	mon := NewMonitoringService(db, nil, time.Minute)
	tests, err := mon.LiveTests(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(tests) != 1 || tests[0].ID != live.ID {
		t.Fatalf("live tests = %+v", tests)
	}
	if tests[0].QuestionCount != 2 || tests[0].SubmissionCount != 1 {
		t.Fatalf("counts = %d questions, %d submissions", tests[0].QuestionCount, tests[0].SubmissionCount)
	}
}

func TestAnalyticsServedFromCacheUntilInvalidated(t *testing.T) {
	db := newTestDB(t)
	rdb, mr := newTestRedis(t)
	q := createQuestion(t, db, "A")
	test := createTest(t, db, true, nil, q.ID)
	mon := NewMonitoringService(db, rdb, time.Minute)
	ctx := context.Background()

	if _, err := mon.TestAnalytics(ctx, test.ID); err != nil {
		t.Fatal(err)
	}
	if !mr.Exists(analyticsKey(test.ID, 0)) {
		t.Fatalf("analytics not cached, keys = %v", mr.Keys())
	}

	// 绕过服务直接写库，缓存不会感知
	score := 100.0
	if err := db.Create(&model.Submission{TestID: test.ID, StudentID: 77, Score: &score}).Error; err != nil {
		t.Fatal(err)
	}
	cached, err := mon.TestAnalytics(ctx, test.ID)
	if err != nil {
		t.Fatal(err)
	}
	if cached.TotalSubmissions != 0 {
		t.Fatalf("expected cached result, got %+v", cached)
	}

	invalidateAnalytics(ctx, rdb, test.ID)
	fresh, err := mon.TestAnalytics(ctx, test.ID)
	if err != nil {
		t.Fatal(err)
	}
	if fresh.TotalSubmissions != 1 || fresh.AverageScore != 100 {
		t.Fatalf("expected fresh result, got %+v", fresh)
	}
}

func TestAnalyticsCacheSkipsResultRacingWithSubmit(t *testing.T) {
	db := newTestDB(t)
	rdb, _ := newTestRedis(t)
	q := createQuestion(t, db, "A")
	test := createTest(t, db, true, nil, q.ID)
	alice := createUser(t, db, "alice", model.Student, nil)
	subs := NewSubmissionService(db, rdb, nil)
	mon := NewMonitoringService(db, rdb, time.Minute)
	ctx := context.Background()

	// 分析读完提交后、写缓存前，有学生交卷
	afterQueryOnce(t, db, "test:submit_during_analytics", "submissions", func() {
		if _, err := subs.Submit(ctx, student(alice), test.ID, []AnswerReq{{QuestionID: q.ID, SelectedAnswer: strPtr("A")}}, false); err != nil {
			t.Errorf("submit: %v", err)
		}
	})

	first, err := mon.TestAnalytics(ctx, test.ID)
	if err != nil {
		t.Fatal(err)
	}
	if first.TotalSubmissions != 0 {
		t.Fatalf("first read should predate the submit, got %+v", first)
	}

	second, err := mon.TestAnalytics(ctx, test.ID)
	if err != nil {
		t.Fatal(err)
	}
	if second.TotalSubmissions != 1 {
		t.Fatalf("stale analytics served after submit: %+v", second)
	}
}

func TestAnalyticsCacheRefreshedAfterTestUpdate(t *testing.T) {
	db := newTestDB(t)
	rdb, _ := newTestRedis(t)
	q := createQuestion(t, db, "A")
	test := createTest(t, db, true, nil, q.ID)
	tests := NewTestService(db, rdb)
	mon := NewMonitoringService(db, rdb, time.Minute)
	ctx := context.Background()

	before, err := mon.TestAnalytics(ctx, test.ID)
	if err != nil {
		t.Fatal(err)
	}
	if before.TestName != "Quiz" {
		t.Fatalf("name = %q", before.TestName)
	}

	name := "Final Exam"
	if _, err := tests.UpdateTest(ctx, test.ID, UpdateTestReq{Name: &name}); err != nil {
		t.Fatal(err)
	}
	after, err := mon.TestAnalytics(ctx, test.ID)
	if err != nil {
		t.Fatal(err)
	}
	if after.TestName != name {
		t.Fatalf("cached name %q survived rename", after.TestName)
	}
}
