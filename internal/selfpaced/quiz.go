// Package selfpaced runs a timed quiz a single participant takes at their own
// pace: free navigation, one shared countdown, scoring on completion.
package selfpaced

import (
	"fmt"
	"time"

	"quiz-arena/internal/domain"
)

// NotStarted is the time left before Begin loads the time budget.
const NotStarted = -1

// Answer is the recorded choice for one question.
type Answer struct {
	QuestionID          string `json:"questionId"`
	SelectedOptionIndex int    `json:"selectedAnswer"`
	IsCorrect           bool   `json:"isCorrect"`
}

// Result is the summary stored when the quiz completes.
type Result struct {
	Title          string    `json:"title"`
	TotalQuestions int       `json:"totalQuestions"`
	CorrectAnswers int       `json:"correctAnswers"`
	Answers        []Answer  `json:"answers"`
	TimeSpent      int       `json:"timeSpent"`
	CompletedAt    time.Time `json:"completedAt"`
}

// Score is the percentage of correct answers, rounded down.
func (r Result) Score() int {
	if r.TotalQuestions == 0 {
		return 0
	}
	return r.CorrectAnswers * 100 / r.TotalQuestions
}

// State is the persisted snapshot of a quiz attempt.
type State struct {
	Title            string              `json:"title"`
	Questions        domain.QuestionPool `json:"selectedQuestions"`
	TimeLimitMinutes int                 `json:"timeLimit"`
	CurrentIndex     int                 `json:"currentQuestionIndex"`
	Answers          map[string]Answer   `json:"answers"`
	TimeLeft         int                 `json:"timeLeft"`
	Completed        bool                `json:"completed"`
	Result           *Result             `json:"result,omitempty"`
}

// Quiz is the pure self-paced state machine.
type Quiz struct {
	s   State
	now func() time.Time
}

// New selects the first questionCount questions of pool; questionCount <= 0
// or larger than the pool takes the whole pool. The countdown stays at
// NotStarted until Begin.
func New(title string, pool domain.QuestionPool, questionCount, timeLimitMinutes int) (*Quiz, error) {
	if pool.Len() == 0 {
		return nil, domain.ErrPoolNotLoaded
	}
	if timeLimitMinutes <= 0 {
		return nil, fmt.Errorf("%w: time limit must be positive", domain.ErrValidation)
	}
	if questionCount <= 0 {
		questionCount = pool.Len()
	}
	if title == "" {
		title = pool.Title()
	}
	return Restore(State{
		Title:            title,
		Questions:        pool.Slice(questionCount),
		TimeLimitMinutes: timeLimitMinutes,
		Answers:          make(map[string]Answer),
		TimeLeft:         NotStarted,
	})
}

// Restore rebuilds a quiz from a stored snapshot.
func Restore(s State) (*Quiz, error) {
	if s.Questions.Len() == 0 {
		return nil, domain.ErrPoolNotLoaded
	}
	if s.TimeLeft < NotStarted {
		return nil, fmt.Errorf("%w: time left %d", domain.ErrValidation, s.TimeLeft)
	}
	answers := make(map[string]Answer, len(s.Answers))
	for id, a := range s.Answers {
		if !s.Questions.Contains(id) {
			return nil, fmt.Errorf("%w: answer for %q", domain.ErrQuestionNotFound, id)
		}
		answers[id] = a
	}
	s.Answers = answers
	s.CurrentIndex = clamp(s.CurrentIndex, s.Questions.Len())
	return &Quiz{s: s, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Begin loads the time budget and starts the countdown.
func (q *Quiz) Begin() error {
	if q.s.Completed {
		return domain.ErrQuizCompleted
	}
	if q.s.TimeLeft == NotStarted {
		q.s.TimeLeft = q.s.TimeLimitMinutes * 60
	}
	return nil
}

func (q *Quiz) clone() *Quiz {
	return &Quiz{s: q.State(), now: q.now}
}

func (q *Quiz) Started() bool { return q.s.TimeLeft != NotStarted }

func (q *Quiz) Completed() bool { return q.s.Completed }

// State returns a copy of the snapshot.
func (q *Quiz) State() State {
	s := q.s
	s.Answers = make(map[string]Answer, len(q.s.Answers))
	for id, a := range q.s.Answers {
		s.Answers[id] = a
	}
	if s.Result != nil {
		r := *s.Result
		r.Answers = append([]Answer(nil), r.Answers...)
		s.Result = &r
	}
	return s
}

// Current returns the question at the navigation cursor.
func (q *Quiz) Current() (domain.QuestionRecord, int) {
	rec, _ := q.s.Questions.At(q.s.CurrentIndex)
	return rec, q.s.CurrentIndex
}

// AnswerFor returns the recorded answer for a question.
func (q *Quiz) AnswerFor(questionID string) (Answer, bool) {
	a, ok := q.s.Answers[questionID]
	return a, ok
}

// SelectAnswer records or replaces the answer for a question.
func (q *Quiz) SelectAnswer(questionID string, option int) (Answer, error) {
	if q.s.Completed {
		return Answer{}, domain.ErrQuizCompleted
	}
	rec, ok := q.s.Questions.ByID(questionID)
	if !ok {
		return Answer{}, fmt.Errorf("%w: %q", domain.ErrQuestionNotFound, questionID)
	}
	if option < 0 || option >= domain.OptionCount {
		return Answer{}, domain.ErrInvalidOption
	}
	a := Answer{QuestionID: questionID, SelectedOptionIndex: option, IsCorrect: rec.IsCorrect(option)}
	q.s.Answers[questionID] = a
	return a, nil
}

// GoTo moves the cursor, clamped to the question range.
func (q *Quiz) GoTo(i int) int {
	q.s.CurrentIndex = clamp(i, q.s.Questions.Len())
	return q.s.CurrentIndex
}

func (q *Quiz) Next() int { return q.GoTo(q.s.CurrentIndex + 1) }

func (q *Quiz) Previous() int { return q.GoTo(q.s.CurrentIndex - 1) }

// Tick consumes one second of the budget and completes the quiz at zero.
// It does nothing before Begin or after completion.
func (q *Quiz) Tick() (completed bool) {
	if q.s.Completed || q.s.TimeLeft <= 0 {
		return false
	}
	q.s.TimeLeft--
	if q.s.TimeLeft == 0 {
		q.Complete()
		return true
	}
	return false
}

// Complete scores the quiz. Later calls return the same result.
func (q *Quiz) Complete() Result {
	if q.s.Completed && q.s.Result != nil {
		return *q.State().Result
	}

	result := Result{
		Title:          q.s.Title,
		TotalQuestions: q.s.Questions.Len(),
		CompletedAt:    q.now(),
	}
	for _, rec := range q.s.Questions.Questions() {
		a, ok := q.s.Answers[rec.ID]
		if !ok {
			continue
		}
		result.Answers = append(result.Answers, a)
		if a.IsCorrect {
			result.CorrectAnswers++
		}
	}
	if q.s.TimeLeft != NotStarted {
		result.TimeSpent = q.s.TimeLimitMinutes*60 - q.s.TimeLeft
	}

	q.s.Completed = true
	q.s.Result = &result
	return *q.State().Result
}

func clamp(i, n int) int {
	return max(0, min(i, n-1))
}
