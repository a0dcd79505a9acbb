package model

import (
	"encoding/json"
	"testing"
)

func TestClassSetContainsIsExact(t *testing.T) {
	set := ParseClassSet("Class AB, Class C")
	if set.Contains("Class A") {
		t.Fatal("Class A must not match Class AB")
	}
	if !set.Contains("Class C") {
		t.Fatal("expected Class C to be a member")
	}
}

func TestNewClassSetNormalizes(t *testing.T) {
	set := NewClassSet(" Class A ", "", "Class B", "Class A")
	if len(set) != 2 || set[0] != "Class A" || set[1] != "Class B" {
		t.Fatalf("unexpected set %v", set)
	}
}

func TestClassSetValue(t *testing.T) {
	v, err := ClassSet{}.Value()
	if err != nil || v != nil {
		t.Fatalf("empty set should store NULL, got %v, %v", v, err)
	}
	v, err = NewClassSet("Class A", "Class B").Value()
	if err != nil || v != "Class A,Class B" {
		t.Fatalf("got %v, %v", v, err)
	}
}

func TestClassSetScan(t *testing.T) {
	var s ClassSet
	if err := s.Scan(nil); err != nil || !s.Empty() {
		t.Fatalf("nil should scan to empty set, got %v, %v", s, err)
	}
	if err := s.Scan([]byte("Class A,Class B")); err != nil || len(s) != 2 {
		t.Fatalf("got %v, %v", s, err)
	}
	if err := s.Scan(""); err != nil || !s.Empty() {
		t.Fatalf("empty string should scan to empty set, got %v", s)
	}
	if err := s.Scan(42); err == nil {
		t.Fatal("expected error for int source")
	}
}

func TestClassSetJSON(t *testing.T) {
	var fromArray, fromString ClassSet
	if err := json.Unmarshal([]byte(`["Class A","Class B"]`), &fromArray); err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal([]byte(`"Class A, Class B"`), &fromString); err != nil {
		t.Fatal(err)
	}
	if fromArray.String() != fromString.String() {
		t.Fatalf("array %v and string %v forms differ", fromArray, fromString)
	}

	out, err := json.Marshal(ClassSet(nil))
	if err != nil || string(out) != "[]" {
		t.Fatalf("nil set should marshal as [], got %s", out)
	}

	var bad ClassSet
	if err := json.Unmarshal([]byte(`42`), &bad); err == nil {
		t.Fatal("expected error for number")
	}
}

func TestClassSetValidate(t *testing.T) {
	if err := (ClassSet{"Class A,B"}).Validate(); err == nil {
		t.Fatal("comma in class name should be rejected")
	}
	if err := NewClassSet("Class A").Validate(); err != nil {
		t.Fatal(err)
	}
}

func TestQuestionGradeAndStudentView(t *testing.T) {
	q := &Question{QuestionText: "2+2?", OptionA: "3", OptionB: "4", CorrectAnswer: "B"}
	if !q.Grade("B") || q.Grade("A") {
		t.Fatal("grading mismatch")
	}

	out, err := json.Marshal(q.ForStudent())
	if err != nil {
		t.Fatal(err)
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(out, &fields); err != nil {
		t.Fatal(err)
	}
	if _, ok := fields["correct_answer"]; ok {
		t.Fatal("student view must not expose correct_answer")
	}
}

func TestSubmissionStatus(t *testing.T) {
	s := &Submission{}
	if s.Status() != StatusInProgress {
		t.Fatalf("got %s", s.Status())
	}
}
