package service

import (
	"context"
	"errors"
	"intellitest_backend/internal/config"
	"intellitest_backend/internal/model"
	"intellitest_backend/internal/repository"
	"intellitest_backend/internal/util"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newQuestionService(t *testing.T) (*QuestionService, string) {
	t.Helper()
	db := newTestDB(t)
	dir := t.TempDir()
	cfg := &config.Config{Storage: config.StorageConfig{Type: util.StorageLocal, LocalPath: dir}}
	return NewQuestionService(repository.NewQuestionRepository(db), NewStorageService(cfg)), dir
}

func TestQuestionListFilters(t *testing.T) {
	svc, _ := newQuestionService(t)
	ctx := context.Background()
	topic := "Algebra"
	for _, text := range []string{"Solve x + 1 = 2", "Factor x^2 - 1", "Capital of France"} {
		req := QuestionReq{QuestionText: text, OptionA: "a", OptionB: "b", OptionC: "c", OptionD: "d", CorrectAnswer: "A"}
		if strings.Contains(text, "x") {
			req.Topic = &topic
		}
		if _, err := svc.CreateQuestion(ctx, 1, req); err != nil {
			t.Fatal(err)
		}
	}

	byTopic, err := svc.ListQuestions(ctx, repository.QuestionFilter{Topic: "algebra", Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	if len(byTopic) != 2 {
		t.Fatalf("topic filter = %d", len(byTopic))
	}
	bySearch, err := svc.ListQuestions(ctx, repository.QuestionFilter{Search: "FRANCE", Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	if len(bySearch) != 1 || bySearch[0].DifficultyLevel != model.Medium {
		t.Fatalf("search = %+v", bySearch)
	}
}

func TestQuestionCreateRejectsBadAnswer(t *testing.T) {
	svc, _ := newQuestionService(t)
	_, err := svc.CreateQuestion(context.Background(), 1, QuestionReq{
		QuestionText: "q", OptionA: "a", OptionB: "b", OptionC: "c", OptionD: "d", CorrectAnswer: "E",
	})
	if !errors.Is(err, util.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestQuestionEditBlockedOnceGraded(t *testing.T) {
	svc, _ := newQuestionService(t)
	ctx := context.Background()
	db := svc.Repo.DB

	q, err := svc.CreateQuestion(ctx, 1, QuestionReq{
		QuestionText: "q", OptionA: "a", OptionB: "b", OptionC: "c", OptionD: "d", CorrectAnswer: "A",
	})
	if err != nil {
		t.Fatal(err)
	}
	test := createTest(t, db, true, nil, q.ID)
	alice := createUser(t, db, "alice", model.Student, nil)
	subs := NewSubmissionService(db, nil, nil)
	if _, err := subs.Submit(ctx, student(alice), test.ID, []AnswerReq{{QuestionID: q.ID, SelectedAnswer: strPtr("A")}}, false); err != nil {
		t.Fatal(err)
	}

	answer := "B"
	rejectedTopic := "Rejected"
	if _, err := svc.UpdateQuestion(ctx, q.ID, QuestionPatch{CorrectAnswer: &answer, Topic: &rejectedTopic}); !errors.Is(err, util.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	unchanged, err := svc.GetQuestion(ctx, q.ID)
	if err != nil {
		t.Fatal(err)
	}
	if unchanged.CorrectAnswer != "A" || unchanged.Topic != nil {
		t.Fatalf("rejected patch partially applied: %+v", unchanged)
	}

	if _, err := svc.UpdateQuestion(ctx, 4040, QuestionPatch{Topic: &rejectedTopic}); !errors.Is(err, util.ErrNotFound) {
		t.Fatalf("missing question: %v", err)
	}

	topic := "Misc"
	updated, err := svc.UpdateQuestion(ctx, q.ID, QuestionPatch{Topic: &topic})
	if err != nil {
		t.Fatal(err)
	}
	if updated.Topic == nil || *updated.Topic != "Misc" || updated.CorrectAnswer != "A" {
		t.Fatalf("updated = %+v", updated)
	}
}

func TestQuestionUploadImageLocal(t *testing.T) {
	svc, dir := newQuestionService(t)
	ctx := context.Background()
	q, err := svc.CreateQuestion(ctx, 1, QuestionReq{
		QuestionText: "q", OptionA: "a", OptionB: "b", OptionC: "c", OptionD: "d", CorrectAnswer: "A",
	})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := svc.UploadImage(ctx, q.ID, "notes.txt", strings.NewReader("x"), 1, "text/plain"); !errors.Is(err, util.ErrValidation) {
		t.Fatalf("expected validation error for .txt, got %v", err)
	}

	body := "fake-png"
	updated, err := svc.UploadImage(ctx, q.ID, "Diagram.PNG", strings.NewReader(body), int64(len(body)), "image/png")
	if err != nil {
		t.Fatal(err)
	}
	if updated.ImageURL == nil || !strings.HasPrefix(*updated.ImageURL, "/uploads/questions/") {
		t.Fatalf("image url = %v", updated.ImageURL)
	}
	stored := filepath.Join(dir, strings.TrimPrefix(*updated.ImageURL, "/uploads/"))
	data, err := os.ReadFile(stored)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != body {
		t.Fatalf("stored %q", data)
	}

	if _, err := svc.UploadImage(ctx, 404, "a.png", strings.NewReader(body), 1, "image/png"); !errors.Is(err, util.ErrNotFound) {
		t.Fatalf("missing question: %v", err)
	}
}

func TestQuestionNormalizesCorrectAnswer(t *testing.T) {
	svc, _ := newQuestionService(t)
	ctx := context.Background()

	q, err := svc.CreateQuestion(ctx, 1, QuestionReq{
		QuestionText: "q", OptionA: "a", OptionB: "b", OptionC: "c", OptionD: "d", CorrectAnswer: " c ",
	})
	if err != nil {
		t.Fatal(err)
	}
	if q.CorrectAnswer != "C" {
		t.Fatalf("stored %q", q.CorrectAnswer)
	}

	answer := "d"
	updated, err := svc.UpdateQuestion(ctx, q.ID, QuestionPatch{CorrectAnswer: &answer})
	if err != nil {
		t.Fatal(err)
	}
	if updated.CorrectAnswer != "D" {
		t.Fatalf("updated to %q", updated.CorrectAnswer)
	}
}
