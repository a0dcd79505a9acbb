package policy

import (
	"intellitest_backend/internal/model"
	"testing"
)

func strPtr(s string) *string { return &s }

func TestCanAccessTest(t *testing.T) {
	classA := &model.Test{AssignedClasses: model.NewClassSet("Class A")}
	open := &model.Test{}
	multi := &model.Test{AssignedClasses: model.NewClassSet("Class AB", "Class C")}

	cases := []struct {
		name     string
		identity Identity
		test     *model.Test
		want     bool
	}{
		{"teacher sees assigned test", Identity{ID: 1, Role: model.Teacher}, classA, true},
		{"admin sees assigned test", Identity{ID: 2, Role: model.Admin}, classA, true},
		{"student in class", Identity{ID: 3, Role: model.Student, ClassName: strPtr("Class A")}, classA, true},
		{"student in other class", Identity{ID: 4, Role: model.Student, ClassName: strPtr("Class B")}, classA, false},
		{"student without class on assigned test", Identity{ID: 5, Role: model.Student}, classA, false},
		{"student without class on open test", Identity{ID: 5, Role: model.Student}, open, true},
		{"student with class on open test", Identity{ID: 3, Role: model.Student, ClassName: strPtr("Class A")}, open, true},
		{"no substring match", Identity{ID: 3, Role: model.Student, ClassName: strPtr("Class A")}, multi, false},
		{"exact member of multi", Identity{ID: 6, Role: model.Student, ClassName: strPtr("Class C")}, multi, true},
		{"unknown role", Identity{ID: 7, Role: model.UserRole("guest")}, open, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CanAccessTest(tc.identity, tc.test); got != tc.want {
				t.Fatalf("CanAccessTest = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestCanAccessSubmission(t *testing.T) {
	sub := &model.Submission{ID: 10, StudentID: 3}

	cases := []struct {
		name     string
		identity Identity
		want     bool
	}{
		{"owner", Identity{ID: 3, Role: model.Student}, true},
		{"other student", Identity{ID: 4, Role: model.Student}, false},
		{"teacher", Identity{ID: 1, Role: model.Teacher}, true},
		{"admin", Identity{ID: 2, Role: model.Admin}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CanAccessSubmission(tc.identity, sub); got != tc.want {
				t.Fatalf("CanAccessSubmission = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestCanManage(t *testing.T) {
	if !CanManage(Identity{Role: model.Admin}) || !CanManage(Identity{Role: model.Teacher}) {
		t.Fatal("admin and teacher should manage")
	}
	if CanManage(Identity{Role: model.Student}) {
		t.Fatal("student should not manage")
	}
	if IsAdmin(Identity{Role: model.Teacher}) {
		t.Fatal("teacher is not admin")
	}
}
