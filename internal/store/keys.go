package store

// Keys names every record the engines share. All keys live under a namespace
// so several deployments can share one backend.
type Keys struct {
	Namespace string
}

func (k Keys) key(name string) string {
	if k.Namespace == "" {
		return name
	}
	return k.Namespace + ":" + name
}

// Quiz holds the authored quiz definition.
func (k Keys) Quiz() string { return k.key("currentQuiz") }

// Sessions holds the array of all game sessions.
func (k Keys) Sessions() string { return k.key("gameSessions") }

// Contestant holds the identity a contestant's viewer keeps after joining.
func (k Keys) Contestant(contestantID string) string {
	return k.key("contestantSession:" + contestantID)
}

// GameShow holds the turn-based game state.
func (k Keys) GameShow() string { return k.key("gameShowConfig") }

// SelfPaced holds the self-paced quiz state.
func (k Keys) SelfPaced() string { return k.key("quizConfig") }

// Results holds the last self-paced quiz result.
func (k Keys) Results() string { return k.key("quizResults") }
