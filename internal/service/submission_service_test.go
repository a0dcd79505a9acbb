package service

import (
	"context"
	"errors"
	"intellitest_backend/internal/model"
	"intellitest_backend/internal/policy"
	"intellitest_backend/internal/util"
	"math"
	"testing"
	"time"

	"gorm.io/gorm"
)

func TestScore(t *testing.T) {
	cases := []struct {
		correct, total int
		want           float64
	}{
		{0, 0, 0},
		{1, 3, 100.0 / 3},
		{3, 3, 100},
		{0, 5, 0},
	}
	for _, tc := range cases {
		if got := Score(tc.correct, tc.total); math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("Score(%d, %d) = %v, want %v", tc.correct, tc.total, got, tc.want)
		}
	}
}

func TestSubmitGradesAnswers(t *testing.T) {
	db := newTestDB(t)
	q1 := createQuestion(t, db, "A")
	q2 := createQuestion(t, db, "B")
	q3 := createQuestion(t, db, "C")
	test := createTest(t, db, true, nil, q1.ID, q2.ID, q3.ID)
	alice := createUser(t, db, "alice", model.Student, nil)
	svc := NewSubmissionService(db, nil, nil)

	sub, err := svc.Submit(context.Background(), student(alice), test.ID, []AnswerReq{
		{QuestionID: q1.ID, SelectedAnswer: strPtr("A")},
		{QuestionID: q2.ID, SelectedAnswer: strPtr("C")},
		{QuestionID: q3.ID},
	}, false)
	if err != nil {
		t.Fatal(err)
	}
	if sub.TotalQuestions != 3 || sub.AttemptedQuestions != 2 {
		t.Fatalf("total=%d attempted=%d", sub.TotalQuestions, sub.AttemptedQuestions)
	}
	if sub.Score == nil || math.Abs(*sub.Score-100.0/3) > 0.01 {
		t.Fatalf("score = %v", sub.Score)
	}
	if sub.Status() != model.StatusSubmitted {
		t.Fatalf("status = %s", sub.Status())
	}

	got, err := svc.GetSubmission(context.Background(), student(alice), sub.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Answers) != 3 {
		t.Fatalf("stored %d answers", len(got.Answers))
	}
	for _, a := range got.Answers {
		switch a.QuestionID {
		case q1.ID:
			if a.IsCorrect == nil || !*a.IsCorrect {
				t.Errorf("q1 should be correct")
			}
		case q2.ID:
			if a.IsCorrect == nil || *a.IsCorrect {
				t.Errorf("q2 should be incorrect")
			}
		case q3.ID:
			if a.SelectedAnswer != nil || a.IsCorrect != nil {
				t.Errorf("q3 should be unanswered")
			}
		}
	}
}

func TestSubmitEmptyAnswersScoresZero(t *testing.T) {
	db := newTestDB(t)
	q := createQuestion(t, db, "A")
	test := createTest(t, db, true, nil, q.ID)
	alice := createUser(t, db, "alice", model.Student, nil)
	svc := NewSubmissionService(db, nil, nil)

	sub, err := svc.Submit(context.Background(), student(alice), test.ID, nil, true)
	if err != nil {
		t.Fatal(err)
	}
	if *sub.Score != 0 || sub.TotalQuestions != 0 || !sub.IsAutoSubmitted {
		t.Fatalf("unexpected submission %+v", sub)
	}
}

func TestSubmitTwiceConflicts(t *testing.T) {
	db := newTestDB(t)
	q := createQuestion(t, db, "A")
	test := createTest(t, db, true, nil, q.ID)
	alice := createUser(t, db, "alice", model.Student, nil)
	svc := NewSubmissionService(db, nil, nil)
	answers := []AnswerReq{{QuestionID: q.ID, SelectedAnswer: strPtr("A")}}

	if _, err := svc.Submit(context.Background(), student(alice), test.ID, answers, false); err != nil {
		t.Fatal(err)
	}
	_, err := svc.Submit(context.Background(), student(alice), test.ID, answers, false)
	if !errors.Is(err, util.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if n := countRows(t, db, &model.Submission{}); n != 1 {
		t.Fatalf("expected 1 submission, got %d", n)
	}
	if n := countRows(t, db, &model.SubmissionAnswer{}); n != 1 {
		t.Fatalf("expected 1 answer row, got %d", n)
	}
}

func TestSubmitRejections(t *testing.T) {
	db := newTestDB(t)
	q := createQuestion(t, db, "A")
	draft := createTest(t, db, false, nil, q.ID)
	classA := createTest(t, db, true, []string{"Class A"}, q.ID)
	bob := createUser(t, db, "bob", model.Student, strPtr("Class B"))
	svc := NewSubmissionService(db, nil, nil)
	answers := []AnswerReq{{QuestionID: q.ID, SelectedAnswer: strPtr("A")}}

	cases := []struct {
		name     string
		identity policy.Identity
		testID   uint
		answers  []AnswerReq
		want     error
	}{
		{"missing test", student(bob), 404, answers, util.ErrNotFound},
		{"not live", student(bob), draft.ID, answers, util.ErrInvalidState},
		{"other class", student(bob), classA.ID, answers, util.ErrForbidden},
		{"teacher", policy.Identity{ID: 50, Role: model.Teacher}, draft.ID, answers, util.ErrForbidden},
		{"bad option", policy.Identity{ID: 51, Role: model.Student}, createTest(t, db, true, nil, q.ID).ID,
			[]AnswerReq{{QuestionID: q.ID, SelectedAnswer: strPtr("E")}}, util.ErrValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Submit(context.Background(), tc.identity, tc.testID, tc.answers, false)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
	if n := countRows(t, db, &model.Submission{}); n != 0 {
		t.Fatalf("rejected submits wrote %d rows", n)
	}
}

func TestSubmitSkipsUnknownQuestions(t *testing.T) {
	db := newTestDB(t)
	q := createQuestion(t, db, "B")
	test := createTest(t, db, true, nil, q.ID)
	alice := createUser(t, db, "alice", model.Student, nil)
	svc := NewSubmissionService(db, nil, nil)

	sub, err := svc.Submit(context.Background(), student(alice), test.ID, []AnswerReq{
		{QuestionID: q.ID, SelectedAnswer: strPtr("B")},
		{QuestionID: 9999, SelectedAnswer: strPtr("A")},
	}, false)
	if err != nil {
		t.Fatal(err)
	}
	if *sub.Score != 50 || sub.TotalQuestions != 2 || sub.AttemptedQuestions != 1 {
		t.Fatalf("unexpected result %+v", sub)
	}
	if n := countRows(t, db, &model.SubmissionAnswer{}); n != 1 {
		t.Fatalf("expected 1 answer row, got %d", n)
	}
}

func TestGetSubmissionOwnership(t *testing.T) {
	db := newTestDB(t)
	q := createQuestion(t, db, "A")
	test := createTest(t, db, true, nil, q.ID)
	alice := createUser(t, db, "alice", model.Student, nil)
	bob := createUser(t, db, "bob", model.Student, nil)
	svc := NewSubmissionService(db, nil, nil)

	sub, err := svc.Submit(context.Background(), student(alice), test.ID, nil, false)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.GetSubmission(context.Background(), student(bob), sub.ID); !errors.Is(err, util.ErrForbidden) {
		t.Fatalf("bob read alice's submission: %v", err)
	}
	if _, err := svc.GetSubmission(context.Background(), policy.Identity{ID: 99, Role: model.Teacher}, sub.ID); err != nil {
		t.Fatalf("teacher: %v", err)
	}
	if _, err := svc.GetSubmission(context.Background(), student(alice), 777); !errors.Is(err, util.ErrNotFound) {
		t.Fatalf("missing submission: %v", err)
	}

	mine, err := svc.ListMySubmissions(context.Background(), student(bob))
	if err != nil {
		t.Fatal(err)
	}
	if len(mine) != 0 {
		t.Fatalf("bob has %d submissions", len(mine))
	}
	all, err := svc.ListTestSubmissions(context.Background(), test.ID)
	if err != nil || len(all) != 1 {
		t.Fatalf("test submissions = %d, %v", len(all), err)
	}
}

func TestSubmitPublishesProgress(t *testing.T) {
	db := newTestDB(t)
	q := createQuestion(t, db, "A")
	test := createTest(t, db, true, nil, q.ID)
	alice := createUser(t, db, "alice", model.Student, nil)

	hub := NewProgressHub(nil)
	client := &monitorClient{testID: test.ID, send: make(chan []byte, 4)}
	hub.rooms[test.ID] = map[*monitorClient]struct{}{client: {}}

	svc := NewSubmissionService(db, nil, hub)
	if _, err := svc.Submit(context.Background(), student(alice), test.ID, []AnswerReq{{QuestionID: q.ID, SelectedAnswer: strPtr("A")}}, false); err != nil {
		t.Fatal(err)
	}

	select {
	case msg := <-client.send:
		if len(msg) == 0 {
			t.Fatal("empty progress message")
		}
	default:
		t.Fatal("no progress event delivered")
	}
}

func TestSubmitUniqueIndexCatchesRacingSubmit(t *testing.T) {
	db := newTestDB(t)
	q := createQuestion(t, db, "A")
	test := createTest(t, db, true, nil, q.ID)
	alice := createUser(t, db, "alice", model.Student, nil)
	svc := NewSubmissionService(db, nil, nil)

	// 存在性检查通过后，另一请求抢先写入同一 (test_id, student_id)
	afterQueryOnce(t, db, "test:racing_submission", "submissions", func() {
		now := time.Now()
		racer := &model.Submission{TestID: test.ID, StudentID: alice.ID, SubmittedAt: &now}
		if err := db.Session(&gorm.Session{NewDB: true}).Create(racer).Error; err != nil {
			t.Errorf("insert racing submission: %v", err)
		}
	})

	_, err := svc.Submit(context.Background(), student(alice), test.ID, []AnswerReq{{QuestionID: q.ID, SelectedAnswer: strPtr("A")}}, false)
	if !errors.Is(err, util.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if n := countRows(t, db, &model.Submission{}); n != 1 {
		t.Fatalf("expected only the racing submission, got %d rows", n)
	}
	if n := countRows(t, db, &model.SubmissionAnswer{}); n != 0 {
		t.Fatalf("orphan answer rows: %d", n)
	}
}

func TestSubmitNormalizesSelectedAnswers(t *testing.T) {
	db := newTestDB(t)
	q1 := createQuestion(t, db, "A")
	q2 := createQuestion(t, db, "B")
	q3 := createQuestion(t, db, "C")
	test := createTest(t, db, true, nil, q1.ID, q2.ID, q3.ID)
	alice := createUser(t, db, "alice", model.Student, nil)
	svc := NewSubmissionService(db, nil, nil)

	sub, err := svc.Submit(context.Background(), student(alice), test.ID, []AnswerReq{
		{QuestionID: q1.ID, SelectedAnswer: strPtr("a")},
		{QuestionID: q2.ID, SelectedAnswer: strPtr(" b ")},
		{QuestionID: q3.ID, SelectedAnswer: strPtr("")},
	}, false)
	if err != nil {
		t.Fatal(err)
	}
	if sub.AttemptedQuestions != 2 || math.Abs(*sub.Score-200.0/3) > 0.01 {
		t.Fatalf("unexpected result %+v", sub)
	}

	got, err := svc.GetSubmission(context.Background(), student(alice), sub.ID)
	if err != nil {
		t.Fatal(err)
	}
	for _, a := range got.Answers {
		switch a.QuestionID {
		case q1.ID:
			if a.SelectedAnswer == nil || *a.SelectedAnswer != "A" {
				t.Errorf("q1 stored %v", a.SelectedAnswer)
			}
		case q3.ID:
			if a.SelectedAnswer != nil || a.IsCorrect != nil {
				t.Errorf("empty answer should be unattempted, got %+v", a)
			}
		}
	}
}
