package importer

import (
	"errors"
	"testing"

	"quiz-arena/internal/domain"
)

func TestParseCSV(t *testing.T) {
	raw := `What is the capital of France?,London,Berlin,Paris,Madrid,C,Paris is the capital
Which planet is red?,Venus,Mars,Jupiter,Saturn,1
"Largest ocean, by area?",Atlantic,Indian,Arctic,Pacific,9,Covers 46%
Too short,a,b,c
`
	res, err := Parse(raw, FormatCSV)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if res.Imported() != 3 || res.Skipped != 1 {
		t.Fatalf("expected 3 imported and 1 skipped, got %d/%d", res.Imported(), res.Skipped)
	}

	first := res.Questions[0]
	if first.CorrectOptionIndex != 2 || first.Explanation != "Paris is the capital" {
		t.Fatalf("letter C should map to index 2, got %+v", first)
	}
	if len(first.Options) != domain.OptionCount {
		t.Fatalf("expected 4 options, got %d", len(first.Options))
	}
	if res.Questions[1].CorrectOptionIndex != 1 {
		t.Fatalf("numeric answer should be kept, got %d", res.Questions[1].CorrectOptionIndex)
	}
	third := res.Questions[2]
	if third.Prompt != "Largest ocean, by area?" || third.CorrectOptionIndex != 3 {
		t.Fatalf("quoted prompt or clamped answer wrong: %+v", third)
	}
	if res.Errors[0].Line != 4 || !errors.Is(res.Errors[0], domain.ErrValidation) {
		t.Fatalf("unexpected row error %+v", res.Errors[0])
	}
}

func TestParseCSVEveryAnswerStaysInRange(t *testing.T) {
	for _, answer := range []string{"A", "b", "D", "-3", "0", "3", "17", "x"} {
		res, err := Parse("q,a,b,c,d,"+answer, FormatCSV)
		if err != nil {
			t.Fatalf("answer %q: %v", answer, err)
		}
		idx := res.Questions[0].CorrectOptionIndex
		if idx < 0 || idx > 3 {
			t.Fatalf("answer %q produced index %d", answer, idx)
		}
	}
}

func TestParseText(t *testing.T) {
	raw := `1. What is 2 + 2?
A. 3
B. 4
C. 5
D. 6
Answer: B
Explanation: Basic arithmetic.

2. Incomplete question
A. only
B. two

3. Who painted the Mona Lisa?
A. Van Gogh
B. Picasso
C. Da Vinci
D. Michelangelo
answer: c
`
	res, err := Parse(raw, FormatAuto)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if res.Imported() != 2 || res.Skipped != 1 {
		t.Fatalf("expected 2 imported and 1 skipped, got %d/%d", res.Imported(), res.Skipped)
	}
	if res.Questions[0].CorrectOptionIndex != 1 || res.Questions[0].Explanation != "Basic arithmetic." {
		t.Fatalf("unexpected first question %+v", res.Questions[0])
	}
	if res.Questions[1].Prompt != "Who painted the Mona Lisa?" || res.Questions[1].CorrectOptionIndex != 2 {
		t.Fatalf("unexpected second question %+v", res.Questions[1])
	}
	if res.Errors[0].Line != 9 {
		t.Fatalf("expected skipped block at line 9, got %d", res.Errors[0].Line)
	}
}

func TestParseNothingValid(t *testing.T) {
	_, err := Parse("just,a,row\n", FormatCSV)
	if !errors.Is(err, ErrNoQuestions) || !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected no-questions validation error, got %v", err)
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": FormatAuto, ".csv": FormatCSV, "TXT": FormatText, "text": FormatText} {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Fatalf("ParseFormat(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseFormat("xlsx"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for xlsx, got %v", err)
	}
}
