package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// OptionCount is the fixed number of options on every question.
	OptionCount = 4
	// DefaultPoints is awarded for a correct answer when a question sets none.
	DefaultPoints = 100
)

// QuestionRecord models an MCQ question with exactly four options.
type QuestionRecord struct {
	ID                 string   `json:"id"`
	Prompt             string   `json:"prompt"`
	Options            []string `json:"options"`
	CorrectOptionIndex int      `json:"correctOptionIndex"`
	Explanation        string   `json:"explanation,omitempty"`
	Points             int      `json:"points"`
}

// Validate checks the record invariants.
func (q QuestionRecord) Validate() error {
	if strings.TrimSpace(q.Prompt) == "" {
		return fmt.Errorf("%w: prompt is empty", ErrInvalidQuestion)
	}
	if len(q.Options) != OptionCount {
		return fmt.Errorf("%w: expected %d options, got %d", ErrInvalidQuestion, OptionCount, len(q.Options))
	}
	for i, opt := range q.Options {
		if strings.TrimSpace(opt) == "" {
			return fmt.Errorf("%w: option %d is empty", ErrInvalidQuestion, i+1)
		}
	}
	if q.CorrectOptionIndex < 0 || q.CorrectOptionIndex >= len(q.Options) {
		return fmt.Errorf("%w: correct option %d", ErrInvalidQuestion, q.CorrectOptionIndex)
	}
	if q.Points < 0 {
		return fmt.Errorf("%w: negative points", ErrInvalidQuestion)
	}
	return nil
}

// IsCorrect reports whether option is the correct answer.
func (q QuestionRecord) IsCorrect(option int) bool {
	return option == q.CorrectOptionIndex
}

func (q QuestionRecord) clone() QuestionRecord {
	q.Options = append([]string(nil), q.Options...)
	return q
}

// QuestionPool is an ordered, immutable set of questions. Build it with
// NewQuestionPool; the zero value is an empty pool.
type QuestionPool struct {
	title     string
	questions []QuestionRecord
	index     map[string]int
}

// NewQuestionPool validates and copies questions. Missing ids become q1..qN by
// position and zero points become DefaultPoints.
func NewQuestionPool(title string, questions []QuestionRecord) (QuestionPool, error) {
	pool := QuestionPool{
		title:     title,
		questions: make([]QuestionRecord, 0, len(questions)),
		index:     make(map[string]int, len(questions)),
	}
	for i, q := range questions {
		q = q.clone()
		if q.ID == "" {
			q.ID = "q" + strconv.Itoa(i+1)
		}
		if q.Points == 0 {
			q.Points = DefaultPoints
		}
		if err := q.Validate(); err != nil {
			return QuestionPool{}, fmt.Errorf("question %d: %w", i+1, err)
		}
		if _, dup := pool.index[q.ID]; dup {
			return QuestionPool{}, fmt.Errorf("%w: duplicate question id %q", ErrInvalidQuestion, q.ID)
		}
		pool.index[q.ID] = len(pool.questions)
		pool.questions = append(pool.questions, q)
	}
	return pool, nil
}

func (p QuestionPool) Title() string { return p.title }

func (p QuestionPool) Len() int { return len(p.questions) }

// At returns the question at zero-based position i.
func (p QuestionPool) At(i int) (QuestionRecord, bool) {
	if i < 0 || i >= len(p.questions) {
		return QuestionRecord{}, false
	}
	return p.questions[i].clone(), true
}

// ByNumber returns the question for a one-based question number.
func (p QuestionPool) ByNumber(n int) (QuestionRecord, bool) {
	return p.At(n - 1)
}

func (p QuestionPool) ByID(id string) (QuestionRecord, bool) {
	i, ok := p.index[id]
	if !ok {
		return QuestionRecord{}, false
	}
	return p.questions[i].clone(), true
}

func (p QuestionPool) Contains(id string) bool {
	_, ok := p.index[id]
	return ok
}

// Questions returns a copy of the ordered questions.
func (p QuestionPool) Questions() []QuestionRecord {
	out := make([]QuestionRecord, len(p.questions))
	for i, q := range p.questions {
		out[i] = q.clone()
	}
	return out
}

// Slice returns a new pool holding the first n questions (clamped).
func (p QuestionPool) Slice(n int) QuestionPool {
	if n > len(p.questions) {
		n = len(p.questions)
	}
	if n < 0 {
		n = 0
	}
	sub, _ := NewQuestionPool(p.title, p.questions[:n])
	return sub
}

type poolJSON struct {
	Title     string           `json:"title"`
	Questions []QuestionRecord `json:"questions"`
}

func (p QuestionPool) MarshalJSON() ([]byte, error) {
	return json.Marshal(poolJSON{Title: p.title, Questions: p.questions})
}

func (p *QuestionPool) UnmarshalJSON(data []byte) error {
	var raw poolJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	pool, err := NewQuestionPool(raw.Title, raw.Questions)
	if err != nil {
		return err
	}
	*p = pool
	return nil
}

// Quiz is the authored quiz definition stored under the quiz key.
type Quiz struct {
	ID          string           `json:"id"`
	Title       string           `json:"title"`
	Description string           `json:"description,omitempty"`
	Questions   []QuestionRecord `json:"questions"`
	CreatedAt   time.Time        `json:"createdAt"`
}

// Pool builds the validated question pool of the quiz.
func (q Quiz) Pool() (QuestionPool, error) {
	return NewQuestionPool(q.Title, q.Questions)
}
