package domain

import (
	"sort"
	"strings"
	"time"
)

// SessionStatus is the lifecycle state of a hosted session.
type SessionStatus string

const (
	StatusWaiting  SessionStatus = "waiting"
	StatusActive   SessionStatus = "active"
	StatusFinished SessionStatus = "finished"
)

// ColorTag is the display color of a contestant.
type ColorTag string

const (
	ColorBlue   ColorTag = "blue"
	ColorGreen  ColorTag = "green"
	ColorPurple ColorTag = "purple"
	ColorRed    ColorTag = "red"
	ColorYellow ColorTag = "yellow"
	ColorPink   ColorTag = "pink"
	ColorIndigo ColorTag = "indigo"
	ColorOrange ColorTag = "orange"
)

// ColorTags lists the palette in assignment order.
var ColorTags = []ColorTag{
	ColorBlue, ColorGreen, ColorPurple, ColorRed,
	ColorYellow, ColorPink, ColorIndigo, ColorOrange,
}

// ColorForPosition returns the color of the contestant at roster position i.
func ColorForPosition(i int) ColorTag {
	if i < 0 {
		i = -i
	}
	return ColorTags[i%len(ColorTags)]
}

// Contestant represents a player and their accumulated score.
type Contestant struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Score     int       `json:"score"`
	Connected bool      `json:"connected"`
	ColorTag  ColorTag  `json:"colorTag"`
	JoinedAt  time.Time `json:"joinedAt"`
}

// GameSession is one hosted run of a quiz. The stored record is the single
// source of truth; viewers only hold polled copies.
type GameSession struct {
	ID                   string        `json:"id"`
	Code                 string        `json:"code"`
	Title                string        `json:"title"`
	Status               SessionStatus `json:"status"`
	Contestants          []Contestant  `json:"contestants"`
	CurrentQuestionIndex int           `json:"currentQuestionIndex"`
	QuestionCount        int           `json:"questionCount"`
	CreatedAt            time.Time     `json:"createdAt"`
	UpdatedAt            time.Time     `json:"updatedAt"`
}

// MatchesCode compares join codes case-insensitively.
func (s GameSession) MatchesCode(code string) bool {
	return strings.EqualFold(s.Code, strings.TrimSpace(code))
}

// ContestantByName returns the roster position of a contestant with name.
func (s GameSession) ContestantByName(name string) int {
	for i, c := range s.Contestants {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// ContestantByID returns the roster position of a contestant with id.
func (s GameSession) ContestantByID(id string) int {
	for i, c := range s.Contestants {
		if c.ID == id {
			return i
		}
	}
	return -1
}

// Clone deep-copies the session so cached copies never alias stored state.
func (s GameSession) Clone() GameSession {
	s.Contestants = append([]Contestant(nil), s.Contestants...)
	return s
}

// ContestantIdentity is what a contestant's own viewer remembers after joining.
type ContestantIdentity struct {
	ContestantID string    `json:"contestantId"`
	SessionID    string    `json:"sessionId"`
	GameCode     string    `json:"gameCode"`
	Name         string    `json:"name"`
	JoinedAt     time.Time `json:"joinedAt"`
}

// Standing is a ranked, snapshot-friendly view of a contestant.
type Standing struct {
	Rank         int      `json:"rank"`
	ContestantID string   `json:"contestantId"`
	Name         string   `json:"name"`
	Score        int      `json:"score"`
	ColorTag     ColorTag `json:"colorTag"`
}

// Rank orders contestants by descending score. Ties keep roster order.
func Rank(contestants []Contestant) []Standing {
	ordered := append([]Contestant(nil), contestants...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Score > ordered[j].Score
	})
	standings := make([]Standing, len(ordered))
	for i, c := range ordered {
		standings[i] = Standing{
			Rank:         i + 1,
			ContestantID: c.ID,
			Name:         c.Name,
			Score:        c.Score,
			ColorTag:     c.ColorTag,
		}
	}
	return standings
}
