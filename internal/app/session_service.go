package app

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"quiz-arena/internal/domain"
	"quiz-arena/internal/store"
)

const (
	codeLength   = 6
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeAttempts = 5
)

// PoolReader supplies the question pool sessions are created from.
type PoolReader interface {
	Pool(ctx context.Context) (domain.QuestionPool, error)
}

// PresenceTracker records contestant heartbeats.
type PresenceTracker interface {
	Touch(ctx context.Context, sessionID, contestantID string) error
	Alive(ctx context.Context, sessionID, contestantID string) (bool, error)
	Forget(ctx context.Context, sessionID string) error
}

// SessionOptions tunes a SessionService. Zero values select defaults.
type SessionOptions struct {
	MaxRetries int
	Now        func() time.Time
}

// SessionService implements the session lifecycle over the shared sessions
// list. Every change is a versioned whole-list write.
type SessionService struct {
	store      store.Store
	keys       store.Keys
	pool       PoolReader
	presence   PresenceTracker
	subscriber store.Subscriber
	retries    int
	now        func() time.Time
	logger     *zap.Logger
}

// NewSessionService wires the service. presence and sub may be nil; without a
// subscriber Watch is unavailable.
func NewSessionService(s store.Store, keys store.Keys, pool PoolReader, presence PresenceTracker, sub store.Subscriber, logger *zap.Logger, opts SessionOptions) *SessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	return &SessionService{
		store:      s,
		keys:       keys,
		pool:       pool,
		presence:   presence,
		subscriber: sub,
		retries:    opts.MaxRetries,
		now:        opts.Now,
		logger:     logger,
	}
}

// Create opens a new session in waiting. questionCount <= 0 uses the whole pool.
func (s *SessionService) Create(ctx context.Context, title string, questionCount int) (domain.GameSession, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return domain.GameSession{}, domain.ErrEmptyTitle
	}
	pool, err := s.pool.Pool(ctx)
	if err != nil {
		return domain.GameSession{}, err
	}
	if pool.Len() == 0 {
		return domain.GameSession{}, domain.ErrPoolNotLoaded
	}
	if questionCount <= 0 {
		questionCount = pool.Len()
	}
	if questionCount > pool.Len() {
		return domain.GameSession{}, fmt.Errorf("%w: %d questions requested, pool has %d", domain.ErrValidation, questionCount, pool.Len())
	}

	var created domain.GameSession
	_, err = s.update(ctx, func(sessions []domain.GameSession) ([]domain.GameSession, error) {
		code, err := uniqueCode(sessions)
		if err != nil {
			return nil, err
		}
		now := s.now()
		created = domain.GameSession{
			ID:                   uuid.NewString(),
			Code:                 code,
			Title:                title,
			Status:               domain.StatusWaiting,
			Contestants:          []domain.Contestant{},
			CurrentQuestionIndex: -1,
			QuestionCount:        questionCount,
			CreatedAt:            now,
			UpdatedAt:            now,
		}
		return append(sessions, created), nil
	})
	if err != nil {
		return domain.GameSession{}, err
	}
	s.logger.Info("session created", zap.String("session_id", created.ID), zap.String("code", created.Code))
	return created, nil
}

// Join adds a contestant by join code. A returning name keeps its id and score.
func (s *SessionService) Join(ctx context.Context, code, name string) (domain.GameSession, domain.Contestant, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.GameSession{}, domain.Contestant{}, domain.ErrEmptyName
	}

	var (
		joined     domain.GameSession
		contestant domain.Contestant
	)
	_, err := s.update(ctx, func(sessions []domain.GameSession) ([]domain.GameSession, error) {
		i := indexByCode(sessions, code)
		if i < 0 {
			return nil, domain.ErrSessionNotFound
		}
		session := sessions[i].Clone()
		if session.Status == domain.StatusFinished {
			return nil, domain.ErrSessionFinished
		}
		if pos := session.ContestantByName(name); pos >= 0 {
			session.Contestants[pos].Connected = true
			contestant = session.Contestants[pos]
		} else {
			contestant = domain.Contestant{
				ID:        uuid.NewString(),
				Name:      name,
				Connected: true,
				ColorTag:  domain.ColorForPosition(len(session.Contestants)),
				JoinedAt:  s.now(),
			}
			session.Contestants = append(session.Contestants, contestant)
		}
		session.UpdatedAt = s.now()
		sessions[i] = session
		joined = session
		return sessions, nil
	})
	if err != nil {
		return domain.GameSession{}, domain.Contestant{}, err
	}

	identity := domain.ContestantIdentity{
		ContestantID: contestant.ID,
		SessionID:    joined.ID,
		GameCode:     joined.Code,
		Name:         contestant.Name,
		JoinedAt:     contestant.JoinedAt,
	}
	if _, err := store.PutJSON(ctx, s.store, s.keys.Contestant(contestant.ID), identity, store.AnyVersion); err != nil {
		return domain.GameSession{}, domain.Contestant{}, err
	}
	s.touch(ctx, joined.ID, contestant.ID)

	s.logger.Info("contestant joined",
		zap.String("session_id", joined.ID),
		zap.String("contestant_id", contestant.ID),
		zap.String("name", contestant.Name),
	)
	return joined, contestant, nil
}

// Identity returns what a contestant's viewer stored when joining.
func (s *SessionService) Identity(ctx context.Context, contestantID string) (domain.ContestantIdentity, error) {
	identity, _, found, err := store.GetJSON[domain.ContestantIdentity](ctx, s.store, s.keys.Contestant(contestantID))
	if err != nil {
		return domain.ContestantIdentity{}, err
	}
	if !found {
		return domain.ContestantIdentity{}, domain.ErrContestantNotFound
	}
	return identity, nil
}

// Start moves a waiting session to active.
func (s *SessionService) Start(ctx context.Context, id string) (domain.GameSession, error) {
	return s.modify(ctx, id, func(session *domain.GameSession) error {
		if session.Status != domain.StatusWaiting {
			return domain.ErrSessionNotWaiting
		}
		session.Status = domain.StatusActive
		return nil
	})
}

// AdvanceQuestion moves to the next question, stopping at the last one.
func (s *SessionService) AdvanceQuestion(ctx context.Context, id string) (domain.GameSession, error) {
	return s.modify(ctx, id, func(session *domain.GameSession) error {
		if session.Status != domain.StatusActive {
			return domain.ErrSessionNotActive
		}
		if session.CurrentQuestionIndex >= session.QuestionCount-1 {
			return errUnchanged
		}
		session.CurrentQuestionIndex++
		return nil
	})
}

// Finish ends an active session.
func (s *SessionService) Finish(ctx context.Context, id string) (domain.GameSession, error) {
	session, err := s.modify(ctx, id, func(session *domain.GameSession) error {
		if session.Status != domain.StatusActive {
			return domain.ErrSessionNotActive
		}
		session.Status = domain.StatusFinished
		return nil
	})
	if err != nil {
		return domain.GameSession{}, err
	}
	s.forget(ctx, id)
	s.logger.Info("session finished", zap.String("session_id", id))
	return session, nil
}

// SyncScores writes engine-owned scores into an active session's roster.
// Contestants missing from scores keep their score.
func (s *SessionService) SyncScores(ctx context.Context, id string, scores map[string]int) (domain.GameSession, error) {
	return s.modify(ctx, id, func(session *domain.GameSession) error {
		if session.Status != domain.StatusActive {
			return domain.ErrSessionNotActive
		}
		changed := false
		for i, c := range session.Contestants {
			if score, ok := scores[c.ID]; ok && score != c.Score {
				session.Contestants[i].Score = max(score, 0)
				changed = true
			}
		}
		if !changed {
			return errUnchanged
		}
		return nil
	})
}

// Delete removes a session outright.
func (s *SessionService) Delete(ctx context.Context, id string) error {
	_, err := s.update(ctx, func(sessions []domain.GameSession) ([]domain.GameSession, error) {
		i := indexByID(sessions, id)
		if i < 0 {
			return nil, domain.ErrSessionNotFound
		}
		return append(sessions[:i], sessions[i+1:]...), nil
	})
	if err != nil {
		return err
	}
	s.forget(ctx, id)
	s.logger.Info("session deleted", zap.String("session_id", id))
	return nil
}

func (s *SessionService) Get(ctx context.Context, id string) (domain.GameSession, error) {
	sessions, err := s.List(ctx)
	if err != nil {
		return domain.GameSession{}, err
	}
	if i := indexByID(sessions, id); i >= 0 {
		return sessions[i], nil
	}
	return domain.GameSession{}, domain.ErrSessionNotFound
}

// GetByCode looks a session up by join code, ignoring case.
func (s *SessionService) GetByCode(ctx context.Context, code string) (domain.GameSession, error) {
	sessions, err := s.List(ctx)
	if err != nil {
		return domain.GameSession{}, err
	}
	if i := indexByCode(sessions, code); i >= 0 {
		return sessions[i], nil
	}
	return domain.GameSession{}, domain.ErrSessionNotFound
}

// List returns every stored session in creation order.
func (s *SessionService) List(ctx context.Context) ([]domain.GameSession, error) {
	sessions, _, _, err := store.GetJSON[[]domain.GameSession](ctx, s.store, s.keys.Sessions())
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

// Heartbeat records that a contestant's viewer is alive and restores its
// connected flag if the janitor had cleared it.
func (s *SessionService) Heartbeat(ctx context.Context, id, contestantID string) error {
	session, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	pos := session.ContestantByID(contestantID)
	if pos < 0 {
		return domain.ErrContestantNotFound
	}
	if s.presence != nil {
		if err := s.presence.Touch(ctx, id, contestantID); err != nil {
			return err
		}
	}
	if session.Contestants[pos].Connected {
		return nil
	}
	_, err = s.modify(ctx, id, func(session *domain.GameSession) error {
		pos := session.ContestantByID(contestantID)
		if pos < 0 {
			return domain.ErrContestantNotFound
		}
		if session.Contestants[pos].Connected {
			return errUnchanged
		}
		session.Contestants[pos].Connected = true
		return nil
	})
	return err
}

// ReconcilePresence clears the connected flag of contestants whose heartbeat
// expired and returns how many were marked.
func (s *SessionService) ReconcilePresence(ctx context.Context) (int, error) {
	if s.presence == nil {
		return 0, nil
	}
	sessions, err := s.List(ctx)
	if err != nil {
		return 0, err
	}

	stale := make(map[string]map[string]bool)
	for _, session := range sessions {
		if session.Status == domain.StatusFinished {
			continue
		}
		for _, c := range session.Contestants {
			if !c.Connected {
				continue
			}
			alive, err := s.presence.Alive(ctx, session.ID, c.ID)
			if err != nil {
				return 0, err
			}
			if !alive {
				if stale[session.ID] == nil {
					stale[session.ID] = make(map[string]bool)
				}
				stale[session.ID][c.ID] = true
			}
		}
	}
	if len(stale) == 0 {
		return 0, nil
	}

	marked := 0
	_, err = s.update(ctx, func(sessions []domain.GameSession) ([]domain.GameSession, error) {
		marked = 0
		now := s.now()
		for i := range sessions {
			ids, ok := stale[sessions[i].ID]
			if !ok {
				continue
			}
			session := sessions[i].Clone()
			for j, c := range session.Contestants {
				if ids[c.ID] && c.Connected {
					session.Contestants[j].Connected = false
					marked++
				}
			}
			session.UpdatedAt = now
			sessions[i] = session
		}
		if marked == 0 {
			return nil, errUnchanged
		}
		return sessions, nil
	})
	if err != nil {
		return 0, err
	}
	if marked > 0 {
		s.logger.Info("contestants marked disconnected", zap.Int("count", marked))
	}
	return marked, nil
}

// PruneStale deletes sessions created more than maxAge ago.
func (s *SessionService) PruneStale(ctx context.Context, maxAge time.Duration) (int, error) {
	if maxAge <= 0 {
		return 0, nil
	}
	cutoff := s.now().Add(-maxAge)

	var pruned []string
	_, err := s.update(ctx, func(sessions []domain.GameSession) ([]domain.GameSession, error) {
		pruned = pruned[:0]
		kept := sessions[:0]
		for _, session := range sessions {
			if session.CreatedAt.Before(cutoff) {
				pruned = append(pruned, session.ID)
				continue
			}
			kept = append(kept, session)
		}
		if len(pruned) == 0 {
			return nil, errUnchanged
		}
		return kept, nil
	})
	if err != nil {
		return 0, err
	}
	for _, id := range pruned {
		s.forget(ctx, id)
	}
	if len(pruned) > 0 {
		s.logger.Info("stale sessions pruned", zap.Int("count", len(pruned)))
	}
	return len(pruned), nil
}

// Watch streams the session each time its stored record changes. The channel
// closes when the session is deleted, ctx ends or cancel is called.
func (s *SessionService) Watch(ctx context.Context, id string) (<-chan domain.GameSession, func(), error) {
	if s.subscriber == nil {
		return nil, nil, fmt.Errorf("%w: session watching is not configured", domain.ErrState)
	}
	if _, err := s.Get(ctx, id); err != nil {
		return nil, nil, err
	}

	records, cancel := s.subscriber.Subscribe(ctx, s.keys.Sessions())
	out := make(chan domain.GameSession, 1)
	go func() {
		defer close(out)
		var last []byte
		for rec := range records {
			var sessions []domain.GameSession
			if rec.Version != store.Absent {
				if err := json.Unmarshal(rec.Value, &sessions); err != nil {
					s.logger.Warn("watch decode failed", zap.String("session_id", id), zap.Error(err))
					continue
				}
			}
			i := indexByID(sessions, id)
			if i < 0 {
				go cancel()
				continue
			}
			encoded, _ := json.Marshal(sessions[i])
			if bytes.Equal(encoded, last) {
				continue
			}
			last = encoded
			select {
			case out <- sessions[i]:
			default:
				select {
				case <-out:
				default:
				}
				out <- sessions[i]
			}
		}
	}()
	return out, cancel, nil
}

// modify applies fn to one session inside the versioned list update. Returning
// errUnchanged from fn skips the write.
func (s *SessionService) modify(ctx context.Context, id string, fn func(*domain.GameSession) error) (domain.GameSession, error) {
	var result domain.GameSession
	sessions, err := s.update(ctx, func(sessions []domain.GameSession) ([]domain.GameSession, error) {
		result = domain.GameSession{}
		i := indexByID(sessions, id)
		if i < 0 {
			return nil, domain.ErrSessionNotFound
		}
		session := sessions[i].Clone()
		if err := fn(&session); err != nil {
			return nil, err
		}
		session.UpdatedAt = s.now()
		sessions[i] = session
		result = session
		return sessions, nil
	})
	if err != nil {
		return domain.GameSession{}, err
	}
	if result.ID == "" {
		// unchanged: report the stored session
		if i := indexByID(sessions, id); i >= 0 {
			return sessions[i], nil
		}
	}
	return result, nil
}

func (s *SessionService) update(ctx context.Context, fn func([]domain.GameSession) ([]domain.GameSession, error)) ([]domain.GameSession, error) {
	return mutate(ctx, s.store, s.keys.Sessions(), s.retries, func(cur []domain.GameSession, _ bool) ([]domain.GameSession, error) {
		return fn(cur)
	})
}

func (s *SessionService) touch(ctx context.Context, sessionID, contestantID string) {
	if s.presence == nil {
		return
	}
	if err := s.presence.Touch(ctx, sessionID, contestantID); err != nil {
		s.logger.Warn("presence touch failed", zap.String("session_id", sessionID), zap.Error(err))
	}
}

func (s *SessionService) forget(ctx context.Context, sessionID string) {
	if s.presence == nil {
		return
	}
	if err := s.presence.Forget(ctx, sessionID); err != nil {
		s.logger.Warn("presence cleanup failed", zap.String("session_id", sessionID), zap.Error(err))
	}
}

func indexByID(sessions []domain.GameSession, id string) int {
	for i, session := range sessions {
		if session.ID == id {
			return i
		}
	}
	return -1
}

func indexByCode(sessions []domain.GameSession, code string) int {
	for i, session := range sessions {
		if session.MatchesCode(code) {
			return i
		}
	}
	return -1
}

func uniqueCode(sessions []domain.GameSession) (string, error) {
	for attempt := 0; attempt < codeAttempts; attempt++ {
		code, err := newCode()
		if err != nil {
			return "", err
		}
		if indexByCode(sessions, code) < 0 {
			return code, nil
		}
	}
	return "", errors.New("could not allocate a unique game code")
}

func newCode() (string, error) {
	var b strings.Builder
	limit := big.NewInt(int64(len(codeAlphabet)))
	for i := 0; i < codeLength; i++ {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("generate game code: %w", err)
		}
		b.WriteByte(codeAlphabet[n.Int64()])
	}
	return b.String(), nil
}
