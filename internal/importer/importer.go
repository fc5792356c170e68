// Package importer turns raw CSV or numbered-block text into question records.
package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"quiz-arena/internal/domain"
)

// Format selects the input shape.
type Format string

const (
	FormatAuto Format = "auto"
	FormatCSV  Format = "csv"
	FormatText Format = "text"
)

// ErrNoQuestions is returned when the input holds no valid question at all.
var ErrNoQuestions = fmt.Errorf("%w: no valid questions found", domain.ErrValidation)

// RowError describes a skipped row or block. Line is one-based.
type RowError struct {
	Line int
	Err  error
}

func (e RowError) Error() string { return fmt.Sprintf("line %d: %v", e.Line, e.Err) }

func (e RowError) Unwrap() error { return e.Err }

// Result is the outcome of an import. Bad rows are dropped, good rows kept.
type Result struct {
	Questions []domain.QuestionRecord
	Skipped   int
	Errors    []RowError
}

// Imported is the number of questions recovered from the input.
func (r Result) Imported() int { return len(r.Questions) }

// ParseFormat maps a user-supplied name (or file extension) to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")) {
	case "", "auto":
		return FormatAuto, nil
	case "csv":
		return FormatCSV, nil
	case "txt", "text":
		return FormatText, nil
	}
	return "", fmt.Errorf("%w: unknown import format %q", domain.ErrValidation, s)
}

// Parse reads raw in the given format. Records carry no ids; the pool assigns them.
func Parse(raw string, format Format) (Result, error) {
	if format == FormatAuto {
		format = detect(raw)
	}
	var (
		res Result
		err error
	)
	switch format {
	case FormatCSV:
		res, err = parseCSV(raw)
	case FormatText:
		res = parseText(raw)
	default:
		return Result{}, fmt.Errorf("%w: unknown import format %q", domain.ErrValidation, format)
	}
	if err != nil {
		return res, err
	}
	if len(res.Questions) == 0 {
		return res, ErrNoQuestions
	}
	return res, nil
}

var (
	questionLine    = regexp.MustCompile(`^\d+\.\s*`)
	optionLine      = regexp.MustCompile(`^([A-Da-d])\.\s*`)
	answerLine      = regexp.MustCompile(`(?i)answer:\s*([A-D])`)
	explanationLine = regexp.MustCompile(`(?i)explanation:\s*`)
)

// detect picks text when the input looks like numbered blocks, csv otherwise.
func detect(raw string) Format {
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if questionLine.MatchString(line) {
			return FormatText
		}
		return FormatCSV
	}
	return FormatCSV
}

func parseCSV(raw string) (Result, error) {
	r := csv.NewReader(strings.NewReader(raw))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	r.LazyQuotes = true

	var res Result
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				res.skip(parseErr.Line, fmt.Errorf("%w: %v", domain.ErrValidation, parseErr.Err))
				continue
			}
			return res, err
		}
		if isBlank(record) {
			continue
		}
		line, _ := r.FieldPos(0)
		q, err := questionFromRow(record)
		if err != nil {
			res.skip(line, err)
			continue
		}
		res.Questions = append(res.Questions, q)
	}
	return res, nil
}

func questionFromRow(fields []string) (domain.QuestionRecord, error) {
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	if len(fields) < 6 {
		return domain.QuestionRecord{}, fmt.Errorf("%w: expected at least 6 fields, got %d", domain.ErrValidation, len(fields))
	}
	q := domain.QuestionRecord{
		Prompt:             fields[0],
		Options:            []string{fields[1], fields[2], fields[3], fields[4]},
		CorrectOptionIndex: answerIndex(fields[5]),
	}
	if len(fields) > 6 {
		q.Explanation = fields[6]
	}
	if err := q.Validate(); err != nil {
		return domain.QuestionRecord{}, err
	}
	return q, nil
}

// answerIndex maps A-D to 0-3; anything else is read as a number clamped to [0,3].
func answerIndex(s string) int {
	s = strings.ToUpper(strings.TrimSpace(s))
	if len(s) == 1 && s[0] >= 'A' && s[0] <= 'D' {
		return int(s[0] - 'A')
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return max(0, min(domain.OptionCount-1, n))
}

type block struct {
	line   int
	q      domain.QuestionRecord
	active bool
}

func parseText(raw string) Result {
	var (
		res Result
		cur block
	)
	flush := func() {
		if !cur.active {
			return
		}
		if err := cur.q.Validate(); err != nil {
			res.skip(cur.line, err)
		} else {
			res.Questions = append(res.Questions, cur.q)
		}
		cur = block{}
	}

	for i, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		switch {
		case questionLine.MatchString(line):
			flush()
			cur = block{
				line:   i + 1,
				active: true,
				q:      domain.QuestionRecord{Prompt: questionLine.ReplaceAllString(line, "")},
			}
		case optionLine.MatchString(line):
			if cur.active {
				cur.q.Options = append(cur.q.Options, optionLine.ReplaceAllString(line, ""))
			}
		case strings.Contains(strings.ToLower(line), "answer:"):
			if m := answerLine.FindStringSubmatch(line); m != nil && cur.active {
				cur.q.CorrectOptionIndex = int(strings.ToUpper(m[1])[0] - 'A')
			}
		case strings.Contains(strings.ToLower(line), "explanation:"):
			if cur.active {
				cur.q.Explanation = strings.TrimSpace(explanationLine.ReplaceAllString(line, ""))
			}
		}
	}
	flush()
	return res
}

func (r *Result) skip(line int, err error) {
	r.Skipped++
	r.Errors = append(r.Errors, RowError{Line: line, Err: err})
}

func isBlank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
