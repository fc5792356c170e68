// Package gameshow runs the turn-based game show: contestants take turns
// picking numbered questions from a shared pool. A correct answer keeps the
// turn, a wrong answer or timeout passes it on.
package gameshow

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"quiz-arena/internal/domain"
)

// Phase is the step of the current turn.
type Phase string

const (
	PhaseSelecting Phase = "selecting"
	PhaseAnswering Phase = "answering"
	PhaseResult    Phase = "result"
	PhaseFinished  Phase = "finished"
)

const (
	MinContestants = 2
	MaxContestants = 8

	// DefaultTurnSeconds is the answer countdown of a turn.
	DefaultTurnSeconds = 30
)

// TurnResult describes how the last question was resolved.
type TurnResult struct {
	QuestionID     string `json:"questionId"`
	ContestantID   string `json:"contestantId"`
	SelectedOption *int   `json:"selectedOption,omitempty"`
	CorrectOption  int    `json:"correctOption"`
	Correct        bool   `json:"correct"`
	TimedOut       bool   `json:"timedOut"`
	PointsAwarded  int    `json:"pointsAwarded"`
}

// State is the persisted snapshot of a game.
type State struct {
	SessionID              string              `json:"sessionId,omitempty"`
	Title                  string              `json:"title"`
	Contestants            []domain.Contestant `json:"contestants"`
	CurrentContestantIndex int                 `json:"currentContestantIndex"`
	AnsweredQuestionIDs    []string            `json:"answeredQuestionIds"`
	Pool                   domain.QuestionPool `json:"questionPool"`
	Phase                  Phase               `json:"phase"`
	CurrentQuestionID      string              `json:"currentQuestionId,omitempty"`
	SelectedOption         *int                `json:"selectedOption,omitempty"`
	TurnSeconds            int                 `json:"turnSeconds"`
	TimeLeft               int                 `json:"timeLeft"`
	LastResult             *TurnResult         `json:"lastResult,omitempty"`
	Standings              []domain.Standing   `json:"standings,omitempty"`
}

// Game is the pure turn state machine. It is not safe for concurrent use;
// Controller serialises access.
type Game struct {
	s        State
	answered map[string]bool
}

// Roster builds fresh contestants for a standalone game show.
func Roster(names []string) ([]domain.Contestant, error) {
	contestants := make([]domain.Contestant, 0, len(names))
	for i, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, domain.ErrEmptyName
		}
		contestants = append(contestants, domain.Contestant{
			ID:        uuid.NewString(),
			Name:      name,
			Connected: true,
			ColorTag:  domain.ColorForPosition(i),
		})
	}
	return contestants, nil
}

// NewGame starts in selecting with the first contestant to play.
func NewGame(title string, contestants []domain.Contestant, pool domain.QuestionPool, turnSeconds int) (*Game, error) {
	if turnSeconds <= 0 {
		turnSeconds = DefaultTurnSeconds
	}
	return Restore(State{
		Title:               title,
		Contestants:         contestants,
		AnsweredQuestionIDs: []string{},
		Pool:                pool,
		Phase:               PhaseSelecting,
		TurnSeconds:         turnSeconds,
		TimeLeft:            turnSeconds,
	})
}

// Restore rebuilds a game from a persisted snapshot after checking it.
func Restore(s State) (*Game, error) {
	if n := len(s.Contestants); n < MinContestants || n > MaxContestants {
		return nil, domain.ErrContestantCount
	}
	if s.Pool.Len() == 0 {
		return nil, domain.ErrPoolNotLoaded
	}
	if s.CurrentContestantIndex < 0 || s.CurrentContestantIndex >= len(s.Contestants) {
		return nil, fmt.Errorf("%w: contestant index %d", domain.ErrValidation, s.CurrentContestantIndex)
	}
	switch s.Phase {
	case PhaseSelecting, PhaseAnswering, PhaseResult, PhaseFinished:
	default:
		return nil, fmt.Errorf("%w: unknown phase %q", domain.ErrValidation, s.Phase)
	}
	if s.TurnSeconds <= 0 {
		s.TurnSeconds = DefaultTurnSeconds
	}

	g := &Game{answered: make(map[string]bool, len(s.AnsweredQuestionIDs))}
	for _, id := range s.AnsweredQuestionIDs {
		if !s.Pool.Contains(id) {
			return nil, fmt.Errorf("%w: answered question %q", domain.ErrQuestionNotFound, id)
		}
		if g.answered[id] {
			return nil, fmt.Errorf("%w: question %q answered twice", domain.ErrValidation, id)
		}
		g.answered[id] = true
	}
	if s.Phase == PhaseAnswering && !s.Pool.Contains(s.CurrentQuestionID) {
		return nil, fmt.Errorf("%w: current question %q", domain.ErrQuestionNotFound, s.CurrentQuestionID)
	}

	s.Contestants = append([]domain.Contestant(nil), s.Contestants...)
	s.AnsweredQuestionIDs = append([]string{}, s.AnsweredQuestionIDs...)
	g.s = s
	return g, nil
}

// State returns a copy of the current snapshot.
func (g *Game) State() State {
	s := g.s
	s.Contestants = append([]domain.Contestant(nil), s.Contestants...)
	s.AnsweredQuestionIDs = append([]string{}, s.AnsweredQuestionIDs...)
	s.Standings = append([]domain.Standing(nil), s.Standings...)
	if s.SelectedOption != nil {
		v := *s.SelectedOption
		s.SelectedOption = &v
	}
	if s.LastResult != nil {
		r := *s.LastResult
		s.LastResult = &r
	}
	return s
}

// clone returns an independent copy so an action can be tried without
// touching the live game.
func (g *Game) clone() *Game {
	answered := make(map[string]bool, len(g.answered))
	for id := range g.answered {
		answered[id] = true
	}
	return &Game{s: g.State(), answered: answered}
}

func (g *Game) Phase() Phase { return g.s.Phase }

// CurrentContestant is the contestant whose turn it is.
func (g *Game) CurrentContestant() domain.Contestant {
	return g.s.Contestants[g.s.CurrentContestantIndex]
}

// CurrentQuestion is the question being answered, if any.
func (g *Game) CurrentQuestion() (domain.QuestionRecord, bool) {
	if g.s.CurrentQuestionID == "" {
		return domain.QuestionRecord{}, false
	}
	return g.s.Pool.ByID(g.s.CurrentQuestionID)
}

// Available lists the one-based numbers of questions not yet answered.
func (g *Game) Available() []int {
	var numbers []int
	for i, q := range g.s.Pool.Questions() {
		if !g.answered[q.ID] {
			numbers = append(numbers, i+1)
		}
	}
	return numbers
}

// Exhausted reports whether every pool question has been answered.
func (g *Game) Exhausted() bool {
	return len(g.s.AnsweredQuestionIDs) >= g.s.Pool.Len()
}

// SelectQuestion opens question number (one-based) for the current contestant.
// Unknown or already answered numbers leave the game untouched.
func (g *Game) SelectQuestion(number int) (domain.QuestionRecord, error) {
	if g.s.Phase != PhaseSelecting {
		return domain.QuestionRecord{}, domain.ErrWrongPhase
	}
	q, ok := g.s.Pool.ByNumber(number)
	if !ok || g.answered[q.ID] {
		return domain.QuestionRecord{}, fmt.Errorf("%w: question %d", domain.ErrQuestionUnavailable, number)
	}
	g.s.Phase = PhaseAnswering
	g.s.CurrentQuestionID = q.ID
	g.s.SelectedOption = nil
	g.s.LastResult = nil
	g.s.TimeLeft = g.s.TurnSeconds
	return q, nil
}

// ChooseOption highlights an option without submitting it. The highlighted
// option is what a timeout submits.
func (g *Game) ChooseOption(option int) error {
	if g.s.Phase != PhaseAnswering {
		return domain.ErrWrongPhase
	}
	if option < 0 || option >= domain.OptionCount {
		return domain.ErrInvalidOption
	}
	g.s.SelectedOption = &option
	return nil
}

// SubmitAnswer resolves the open question. A nil option counts as wrong.
func (g *Game) SubmitAnswer(option *int) (TurnResult, error) {
	if g.s.Phase != PhaseAnswering {
		return TurnResult{}, domain.ErrWrongPhase
	}
	if option != nil && (*option < 0 || *option >= domain.OptionCount) {
		return TurnResult{}, domain.ErrInvalidOption
	}
	return g.resolve(option, false), nil
}

// Tick advances the countdown by one second. When it reaches zero the turn is
// resolved with the highlighted option as a timeout, and resolved is true.
func (g *Game) Tick() (result TurnResult, resolved bool) {
	if g.s.Phase != PhaseAnswering {
		return TurnResult{}, false
	}
	if g.s.TimeLeft > 0 {
		g.s.TimeLeft--
	}
	if g.s.TimeLeft > 0 {
		return TurnResult{}, false
	}
	return g.resolve(g.s.SelectedOption, true), true
}

func (g *Game) resolve(option *int, timedOut bool) TurnResult {
	q, _ := g.s.Pool.ByID(g.s.CurrentQuestionID)
	current := &g.s.Contestants[g.s.CurrentContestantIndex]

	result := TurnResult{
		QuestionID:    q.ID,
		ContestantID:  current.ID,
		CorrectOption: q.CorrectOptionIndex,
		TimedOut:      timedOut,
	}
	if option != nil {
		v := *option
		result.SelectedOption = &v
	}
	result.Correct = option != nil && q.IsCorrect(*option) && !timedOut

	if result.Correct {
		current.Score += q.Points
		result.PointsAwarded = q.Points
	} else {
		g.s.CurrentContestantIndex = (g.s.CurrentContestantIndex + 1) % len(g.s.Contestants)
	}

	if !g.answered[q.ID] {
		g.answered[q.ID] = true
		g.s.AnsweredQuestionIDs = append(g.s.AnsweredQuestionIDs, q.ID)
	}
	g.s.Phase = PhaseResult
	g.s.LastResult = &result
	return result
}

// NextTurn returns to selecting. With the pool exhausted it finishes instead.
func (g *Game) NextTurn() error {
	if g.s.Phase != PhaseResult {
		return domain.ErrWrongPhase
	}
	if g.Exhausted() {
		g.finish()
		return nil
	}
	g.s.Phase = PhaseSelecting
	g.s.CurrentQuestionID = ""
	g.s.SelectedOption = nil
	g.s.TimeLeft = g.s.TurnSeconds
	return nil
}

// Finish ends the game and ranks contestants.
func (g *Game) Finish() ([]domain.Standing, error) {
	if g.s.Phase == PhaseFinished {
		return nil, domain.ErrWrongPhase
	}
	g.finish()
	return g.Standings(), nil
}

func (g *Game) finish() {
	g.s.Phase = PhaseFinished
	g.s.CurrentQuestionID = ""
	g.s.SelectedOption = nil
	g.s.TimeLeft = 0
	g.s.Standings = domain.Rank(g.s.Contestants)
}

// Standings ranks contestants by score; ties keep roster order.
func (g *Game) Standings() []domain.Standing {
	return domain.Rank(g.s.Contestants)
}

// Winner is the top standing once the game is finished.
func (g *Game) Winner() (domain.Standing, bool) {
	if g.s.Phase != PhaseFinished || len(g.s.Standings) == 0 {
		return domain.Standing{}, false
	}
	return g.s.Standings[0], true
}

// Scores maps contestant id to score.
func (g *Game) Scores() map[string]int {
	scores := make(map[string]int, len(g.s.Contestants))
	for _, c := range g.s.Contestants {
		scores[c.ID] = c.Score
	}
	return scores
}
