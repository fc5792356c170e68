package domain

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestNewQuestionPoolAssignsDefaults(t *testing.T) {
	pool, err := NewQuestionPool("General", []QuestionRecord{
		{Prompt: "2 + 2?", Options: []string{"3", "4", "5", "6"}, CorrectOptionIndex: 1},
		{ID: "custom", Prompt: "Red planet?", Options: []string{"Venus", "Mars", "Jupiter", "Saturn"}, CorrectOptionIndex: 1, Points: 250},
	})
	if err != nil {
		t.Fatalf("new pool: %v", err)
	}
	if pool.Len() != 2 {
		t.Fatalf("expected 2 questions, got %d", pool.Len())
	}
	first, _ := pool.ByNumber(1)
	if first.ID != "q1" || first.Points != DefaultPoints {
		t.Fatalf("expected q1 with default points, got %+v", first)
	}
	if q, ok := pool.ByID("custom"); !ok || q.Points != 250 {
		t.Fatalf("expected custom question with 250 points, got %+v", q)
	}
	if _, ok := pool.ByNumber(3); ok {
		t.Fatalf("expected number 3 to be out of range")
	}
}

func TestNewQuestionPoolRejectsInvalidRecords(t *testing.T) {
	cases := map[string]QuestionRecord{
		"three options": {Prompt: "p", Options: []string{"a", "b", "c"}},
		"bad index":     {Prompt: "p", Options: []string{"a", "b", "c", "d"}, CorrectOptionIndex: 4},
		"empty prompt":  {Options: []string{"a", "b", "c", "d"}},
		"blank option":  {Prompt: "p", Options: []string{"a", " ", "c", "d"}},
	}
	for name, q := range cases {
		if _, err := NewQuestionPool("t", []QuestionRecord{q}); !errors.Is(err, ErrValidation) {
			t.Fatalf("%s: expected validation error, got %v", name, err)
		}
	}

	dup := QuestionRecord{ID: "x", Prompt: "p", Options: []string{"a", "b", "c", "d"}}
	if _, err := NewQuestionPool("t", []QuestionRecord{dup, dup}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected duplicate id to be rejected, got %v", err)
	}
}

func TestQuestionPoolIsImmutable(t *testing.T) {
	src := []QuestionRecord{{Prompt: "p", Options: []string{"a", "b", "c", "d"}}}
	pool, err := NewQuestionPool("t", src)
	if err != nil {
		t.Fatalf("new pool: %v", err)
	}
	src[0].Options[0] = "mutated"
	got := pool.Questions()
	got[0].Options[1] = "mutated too"

	q, _ := pool.At(0)
	if q.Options[0] != "a" || q.Options[1] != "b" {
		t.Fatalf("pool leaked its storage: %+v", q.Options)
	}
}

func TestQuestionPoolJSONKeepsOrder(t *testing.T) {
	pool, _ := NewQuestionPool("Ordered", []QuestionRecord{
		{Prompt: "one", Options: []string{"a", "b", "c", "d"}},
		{Prompt: "two", Options: []string{"a", "b", "c", "d"}, CorrectOptionIndex: 3},
	})
	data, err := json.Marshal(pool)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded QuestionPool
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	second, _ := decoded.ByNumber(2)
	if decoded.Title() != "Ordered" || second.Prompt != "two" || second.CorrectOptionIndex != 3 {
		t.Fatalf("unexpected decoded pool: %s %+v", decoded.Title(), second)
	}
	if !decoded.Contains("q2") {
		t.Fatalf("expected index to be rebuilt")
	}
}

func TestRankIsStableForTies(t *testing.T) {
	standings := Rank([]Contestant{
		{ID: "a", Name: "A", Score: 100},
		{ID: "b", Name: "B", Score: 300},
		{ID: "c", Name: "C", Score: 100},
	})
	order := []string{standings[0].ContestantID, standings[1].ContestantID, standings[2].ContestantID}
	if order[0] != "b" || order[1] != "a" || order[2] != "c" {
		t.Fatalf("unexpected order %v", order)
	}
	if standings[0].Rank != 1 || standings[2].Rank != 3 {
		t.Fatalf("unexpected ranks %+v", standings)
	}
}

func TestColorForPositionWraps(t *testing.T) {
	if ColorForPosition(0) != ColorBlue || ColorForPosition(8) != ColorBlue || ColorForPosition(7) != ColorOrange {
		t.Fatalf("unexpected palette assignment")
	}
}

func TestCategoryErrorsClassify(t *testing.T) {
	if !errors.Is(ErrSessionNotFound, ErrNotFound) {
		t.Fatalf("session not found should be a not-found error")
	}
	if !errors.Is(ErrSessionNotWaiting, ErrState) {
		t.Fatalf("not waiting should be a state error")
	}
	wrapped := StoreError("put", "k", errors.New("disk full"))
	if !errors.Is(wrapped, ErrStore) {
		t.Fatalf("expected store category, got %v", wrapped)
	}
}
