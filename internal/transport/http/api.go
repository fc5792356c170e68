package http

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"quiz-arena/internal/app"
	"quiz-arena/internal/domain"
	"quiz-arena/internal/gameshow"
	"quiz-arena/internal/importer"
	"quiz-arena/internal/selfpaced"
)

// maxImportBytes caps uploaded question files.
const maxImportBytes = 1 << 20

// API exposes the quiz, session and game engines over JSON.
type API struct {
	pools     *app.PoolService
	sessions  *app.SessionService
	gameShow  *gameshow.Controller
	selfPaced *selfpaced.Runner
	logger    *zap.Logger
}

func NewAPI(pools *app.PoolService, sessions *app.SessionService, gameShow *gameshow.Controller, selfPaced *selfpaced.Runner, logger *zap.Logger) *API {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &API{pools: pools, sessions: sessions, gameShow: gameShow, selfPaced: selfPaced, logger: logger}
}

func (a *API) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// quiz authoring

func (a *API) getQuiz(w http.ResponseWriter, r *http.Request) {
	quiz, err := a.pools.Quiz(r.Context())
	if err != nil {
		writeError(w, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, quiz)
}

func (a *API) saveQuiz(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title       string                  `json:"title"`
		Description string                  `json:"description"`
		Questions   []domain.QuestionRecord `json:"questions"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, a.logger, err)
		return
	}
	quiz, err := a.pools.SaveQuiz(r.Context(), req.Title, req.Description, req.Questions)
	if err != nil {
		writeError(w, a.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, quiz)
}

func (a *API) addQuestion(w http.ResponseWriter, r *http.Request) {
	var q domain.QuestionRecord
	if err := decode(r, &q); err != nil {
		writeError(w, a.logger, err)
		return
	}
	quiz, err := a.pools.AddQuestion(r.Context(), q)
	if err != nil {
		writeError(w, a.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, quiz)
}

func (a *API) importQuestions(w http.ResponseWriter, r *http.Request) {
	format, err := importer.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, a.logger, err)
		return
	}
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxImportBytes))
	if err != nil {
		writeError(w, a.logger, fmt.Errorf("%w: read body: %v", domain.ErrValidation, err))
		return
	}
	replace, _ := strconv.ParseBool(r.URL.Query().Get("replace"))
	report, err := a.pools.Import(r.Context(), string(raw), format, r.URL.Query().Get("title"), replace)
	if err != nil {
		writeError(w, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// sessions

func (a *API) listSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := a.sessions.List(r.Context())
	if err != nil {
		writeError(w, a.logger, err)
		return
	}
	if sessions == nil {
		sessions = []domain.GameSession{}
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (a *API) createSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title         string `json:"title"`
		QuestionCount int    `json:"questionCount"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, a.logger, err)
		return
	}
	session, err := a.sessions.Create(r.Context(), req.Title, req.QuestionCount)
	if err != nil {
		writeError(w, a.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (a *API) getSession(w http.ResponseWriter, r *http.Request) {
	session, err := a.sessions.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (a *API) deleteSession(w http.ResponseWriter, r *http.Request) {
	if err := a.sessions.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, a.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) sessionAction(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id := vars["id"]

	var (
		session domain.GameSession
		err     error
	)
	switch vars["action"] {
	case "start":
		session, err = a.sessions.Start(r.Context(), id)
	case "advance":
		session, err = a.sessions.AdvanceQuestion(r.Context(), id)
	case "finish":
		session, err = a.sessions.Finish(r.Context(), id)
	default:
		http.NotFound(w, r)
		return
	}
	if err != nil {
		writeError(w, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (a *API) heartbeat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ContestantID string `json:"contestantId"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, a.logger, err)
		return
	}
	if err := a.sessions.Heartbeat(r.Context(), mux.Vars(r)["id"], req.ContestantID); err != nil {
		writeError(w, a.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type joinResponse struct {
	Session    domain.GameSession        `json:"session"`
	Contestant domain.Contestant         `json:"contestant"`
	Identity   domain.ContestantIdentity `json:"identity"`
}

func (a *API) join(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
		Name string `json:"name"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, a.logger, err)
		return
	}
	session, contestant, err := a.sessions.Join(r.Context(), req.Code, req.Name)
	if err != nil {
		writeError(w, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, joinResponse{
		Session:    session,
		Contestant: contestant,
		Identity: domain.ContestantIdentity{
			ContestantID: contestant.ID,
			SessionID:    session.ID,
			GameCode:     session.Code,
			Name:         contestant.Name,
			JoinedAt:     contestant.JoinedAt,
		},
	})
}

func (a *API) lookupCode(w http.ResponseWriter, r *http.Request) {
	session, err := a.sessions.GetByCode(r.Context(), mux.Vars(r)["code"])
	if err != nil {
		writeError(w, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// game show

func (a *API) beginGameShow(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title       string   `json:"title"`
		SessionID   string   `json:"sessionId"`
		Contestants []string `json:"contestants"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, a.logger, err)
		return
	}

	ctx := r.Context()
	pool, err := a.pools.Pool(ctx)
	if err != nil {
		writeError(w, a.logger, err)
		return
	}

	var roster []domain.Contestant
	if req.SessionID != "" {
		session, err := a.sessions.Get(ctx, req.SessionID)
		if err != nil {
			writeError(w, a.logger, err)
			return
		}
		if session.Status != domain.StatusWaiting && session.Status != domain.StatusActive {
			writeError(w, a.logger, domain.ErrSessionNotActive)
			return
		}
		pool = pool.Slice(session.QuestionCount)
		if req.Title == "" {
			req.Title = session.Title
		}
		// a waiting session only starts once the game is known to be valid
		if _, err := gameshow.NewGame(req.Title, session.Contestants, pool, 0); err != nil {
			writeError(w, a.logger, err)
			return
		}
		if session.Status == domain.StatusWaiting {
			if session, err = a.sessions.Start(ctx, session.ID); err != nil {
				writeError(w, a.logger, err)
				return
			}
		}
		roster = session.Contestants
	} else {
		if roster, err = gameshow.Roster(req.Contestants); err != nil {
			writeError(w, a.logger, err)
			return
		}
	}
	if req.Title == "" {
		req.Title = pool.Title()
	}

	state, err := a.gameShow.Begin(ctx, req.Title, req.SessionID, roster, pool)
	if err != nil {
		writeError(w, a.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, state)
}

func (a *API) getGameShow(w http.ResponseWriter, r *http.Request) {
	state, err := a.gameShow.State()
	if err != nil {
		writeError(w, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (a *API) gameShowAction(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Number int  `json:"number"`
		Option *int `json:"option"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, a.logger, err)
		return
	}

	ctx := r.Context()
	var (
		state gameshow.State
		err   error
	)
	switch mux.Vars(r)["action"] {
	case "select":
		state, err = a.gameShow.SelectQuestion(ctx, req.Number)
	case "option":
		if req.Option == nil {
			err = domain.ErrInvalidOption
			break
		}
		state, err = a.gameShow.ChooseOption(ctx, *req.Option)
	case "answer":
		state, err = a.gameShow.SubmitAnswer(ctx, req.Option)
	case "next":
		state, err = a.gameShow.NextTurn(ctx)
	case "finish":
		state, err = a.gameShow.Finish(ctx)
	default:
		http.NotFound(w, r)
		return
	}
	if err != nil {
		writeError(w, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// self-paced

func (a *API) startSelfPaced(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title         string `json:"title"`
		QuestionCount int    `json:"questionCount"`
		TimeLimit     int    `json:"timeLimit"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, a.logger, err)
		return
	}
	pool, err := a.pools.Pool(r.Context())
	if err != nil {
		writeError(w, a.logger, err)
		return
	}
	state, err := a.selfPaced.Start(r.Context(), req.Title, pool, req.QuestionCount, req.TimeLimit)
	if err != nil {
		writeError(w, a.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, state)
}

func (a *API) getSelfPaced(w http.ResponseWriter, r *http.Request) {
	state, err := a.selfPaced.State()
	if err != nil {
		writeError(w, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (a *API) getSelfPacedResult(w http.ResponseWriter, r *http.Request) {
	result, err := a.selfPaced.Result(r.Context())
	if err != nil {
		writeError(w, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *API) selfPacedAction(w http.ResponseWriter, r *http.Request) {
	var req struct {
		QuestionID string `json:"questionId"`
		Option     int    `json:"option"`
		Index      int    `json:"index"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, a.logger, err)
		return
	}

	ctx := r.Context()
	var (
		state selfpaced.State
		err   error
	)
	switch mux.Vars(r)["action"] {
	case "answer":
		state, err = a.selfPaced.SelectAnswer(ctx, req.QuestionID, req.Option)
	case "goto":
		state, err = a.selfPaced.GoTo(ctx, req.Index)
	case "next":
		state, err = a.selfPaced.Next(ctx)
	case "previous":
		state, err = a.selfPaced.Previous(ctx)
	case "complete":
		result, err := a.selfPaced.Complete(ctx)
		if err != nil {
			writeError(w, a.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
		return
	default:
		http.NotFound(w, r)
		return
	}
	if err != nil {
		writeError(w, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}
