package service

import (
	"context"
	"intellitest_backend/internal/model"
	"testing"
)

func TestSeedIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	data, err := LoadSeedFile("../../configs/seed.yaml")
	if err != nil {
		t.Fatal(err)
	}
	svc := NewSeedService(db)

	for i := 0; i < 2; i++ {
		if err := svc.Seed(context.Background(), data); err != nil {
			t.Fatalf("seed run %d: %v", i+1, err)
		}
	}

	if n := countRows(t, db, &model.User{}); n != int64(len(data.Users)) {
		t.Fatalf("users = %d", n)
	}
	if n := countRows(t, db, &model.Question{}); n != int64(len(data.Questions)) {
		t.Fatalf("questions = %d", n)
	}
	if n := countRows(t, db, &model.Test{}); n != int64(len(data.Tests)) {
		t.Fatalf("tests = %d", n)
	}

	test, err := svc.Tests.TestRepo.FindByName(context.Background(), "Demo Quiz")
	if err != nil {
		t.Fatal(err)
	}
	if !test.IsLive || !test.AssignedClasses.Contains("Class A") {
		t.Fatalf("seeded test = %+v", test)
	}
	teacher, err := svc.Users.UserRepo.FindByUsername(context.Background(), "teacher")
	if err != nil {
		t.Fatal(err)
	}
	if test.CreatedBy != teacher.ID {
		t.Fatalf("author = %d, want %d", test.CreatedBy, teacher.ID)
	}
	links, _ := svc.Tests.TestRepo.ListQuestionLinks(context.Background(), test.ID)
	if len(links) != 3 {
		t.Fatalf("links = %d", len(links))
	}
}
