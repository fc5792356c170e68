package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"quiz-arena/internal/domain"
	"quiz-arena/internal/gameshow"
	"quiz-arena/internal/selfpaced"
)

// readLines feeds trimmed input lines into a channel that closes at EOF.
func readLines(in io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- strings.TrimSpace(scanner.Text())
		}
	}()
	return lines
}

// notifier returns a callback that never blocks and a channel it pokes.
func notifier[T any]() (func(T), <-chan struct{}) {
	ch := make(chan struct{}, 1)
	return func(T) {
		select {
		case ch <- struct{}{}:
		default:
		}
	}, ch
}

func letterIndex(s string) (int, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if len(s) != 1 || s[0] < 'A' || s[0] >= byte('A'+domain.OptionCount) {
		return -1, false
	}
	return int(s[0] - 'A'), true
}

func printOptions(out io.Writer, q domain.QuestionRecord, selected int) {
	for i, opt := range q.Options {
		mark := " "
		if i == selected {
			mark = ">"
		}
		fmt.Fprintf(out, "%s %c. %s\n", mark, 'A'+i, opt)
	}
}

// takeQuiz drives a started self-paced attempt from line input. changed fires
// whenever the runner publishes a snapshot, including the timeout completion.
func takeQuiz(ctx context.Context, runner *selfpaced.Runner, changed <-chan struct{}, in io.Reader, out io.Writer) (selfpaced.Result, error) {
	input := readLines(in)
	shown := -1
	for {
		state, err := runner.State()
		if err != nil {
			return selfpaced.Result{}, err
		}
		if state.Completed {
			fmt.Fprintln(out, "\nTime is up.")
			return runner.Complete(ctx)
		}

		q, _ := state.Questions.At(state.CurrentIndex)
		if shown != state.CurrentIndex {
			selected := -1
			if a, ok := state.Answers[q.ID]; ok {
				selected = a.SelectedOptionIndex
			}
			fmt.Fprintf(out, "\nQ%d/%d (%ds left): %s\n\n", state.CurrentIndex+1, state.Questions.Len(), state.TimeLeft, q.Prompt)
			printOptions(out, q, selected)
			fmt.Fprint(out, "\nAnswer A-D, n next, p previous, s submit: ")
			shown = state.CurrentIndex
		}

		select {
		case <-ctx.Done():
			return selfpaced.Result{}, ctx.Err()
		case <-changed:
		case line, ok := <-input:
			if !ok {
				return runner.Complete(ctx)
			}
			switch strings.ToLower(line) {
			case "s":
				return runner.Complete(ctx)
			case "n", "":
				_, err = runner.Next(ctx)
			case "p":
				_, err = runner.Previous(ctx)
			default:
				option, valid := letterIndex(line)
				if !valid {
					fmt.Fprint(out, "Enter A-D, n, p or s: ")
					continue
				}
				if _, err = runner.SelectAnswer(ctx, q.ID, option); err == nil {
					_, err = runner.Next(ctx)
				}
			}
			if err != nil && !errors.Is(err, domain.ErrState) {
				return selfpaced.Result{}, err
			}
			shown = -1
		}
	}
}

func printResult(out io.Writer, result selfpaced.Result) {
	fmt.Fprintf(out, "\nFinal score: %d/%d (%d%%) in %ds\n", result.CorrectAnswers, result.TotalQuestions, result.Score(), result.TimeSpent)
}

// playGameShow drives a begun game show from line input until it finishes or
// the input ends.
func playGameShow(ctx context.Context, c *gameshow.Controller, changed <-chan struct{}, in io.Reader, out io.Writer) ([]domain.Standing, error) {
	input := readLines(in)
	var (
		shownPhase gameshow.Phase
		shownTurn  = -1
	)
	for {
		state, err := c.State()
		if err != nil {
			return nil, err
		}
		turn := len(state.AnsweredQuestionIDs)*len(state.Contestants) + state.CurrentContestantIndex
		if state.Phase != shownPhase || turn != shownTurn {
			printGamePhase(out, state)
			shownPhase, shownTurn = state.Phase, turn
		}
		if state.Phase == gameshow.PhaseFinished {
			return state.Standings, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-changed:
		case line, ok := <-input:
			if !ok {
				final, err := c.Finish(ctx)
				if errors.Is(err, domain.ErrState) {
					continue
				}
				if err != nil {
					return nil, err
				}
				printGamePhase(out, final)
				return final.Standings, nil
			}
			err = gameInput(ctx, c, state, line)
			switch {
			case errors.Is(err, domain.ErrValidation):
				fmt.Fprintf(out, "%v\n", err)
				shownTurn = -1
			case errors.Is(err, domain.ErrState):
				// the countdown moved the game on first
			case err != nil:
				return nil, err
			}
		}
	}
}

func gameInput(ctx context.Context, c *gameshow.Controller, state gameshow.State, line string) error {
	if strings.EqualFold(line, "q") {
		_, err := c.Finish(ctx)
		return err
	}
	var err error
	switch state.Phase {
	case gameshow.PhaseSelecting:
		n, convErr := strconv.Atoi(line)
		if convErr != nil {
			return fmt.Errorf("%w: enter a question number", domain.ErrValidation)
		}
		_, err = c.SelectQuestion(ctx, n)
	case gameshow.PhaseAnswering:
		option, ok := letterIndex(line)
		if !ok {
			return fmt.Errorf("%w: enter A-D", domain.ErrValidation)
		}
		_, err = c.SubmitAnswer(ctx, &option)
	case gameshow.PhaseResult:
		_, err = c.NextTurn(ctx)
	}
	return err
}

func printGamePhase(out io.Writer, state gameshow.State) {
	switch state.Phase {
	case gameshow.PhaseSelecting:
		current := state.Contestants[state.CurrentContestantIndex]
		fmt.Fprintf(out, "\n%s, pick a question %v (q to end): ", current.Name, availableNumbers(state))
	case gameshow.PhaseAnswering:
		q, _ := state.Pool.ByID(state.CurrentQuestionID)
		fmt.Fprintf(out, "\n%s (%d points, %ds)\n\n", q.Prompt, q.Points, state.TimeLeft)
		printOptions(out, q, -1)
		fmt.Fprint(out, "\nAnswer A-D: ")
	case gameshow.PhaseResult:
		if r := state.LastResult; r != nil {
			switch {
			case r.Correct:
				fmt.Fprintf(out, "\nCorrect! +%d\n", r.PointsAwarded)
			case r.TimedOut:
				fmt.Fprintf(out, "\nTime is up. The answer was %c.\n", 'A'+r.CorrectOption)
			default:
				fmt.Fprintf(out, "\nWrong. The answer was %c.\n", 'A'+r.CorrectOption)
			}
		}
		fmt.Fprint(out, "Press Enter to continue: ")
	case gameshow.PhaseFinished:
		fmt.Fprintln(out, "\nFinal standings:")
		for _, s := range state.Standings {
			fmt.Fprintf(out, "%d. %-20s %5d\n", s.Rank, s.Name, s.Score)
		}
	}
}

func availableNumbers(state gameshow.State) []int {
	answered := make(map[string]bool, len(state.AnsweredQuestionIDs))
	for _, id := range state.AnsweredQuestionIDs {
		answered[id] = true
	}
	var numbers []int
	for n := 1; n <= state.Pool.Len(); n++ {
		if q, ok := state.Pool.ByNumber(n); ok && !answered[q.ID] {
			numbers = append(numbers, n)
		}
	}
	return numbers
}
