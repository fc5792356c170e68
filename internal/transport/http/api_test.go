package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"quiz-arena/internal/app"
	"quiz-arena/internal/domain"
	"quiz-arena/internal/gameshow"
	"quiz-arena/internal/selfpaced"
)

func TestSessionAPIFlow(t *testing.T) {
	srv := newTestServer(t)

	var session domain.GameSession
	status := doJSON(t, srv, http.MethodPost, "/api/sessions", map[string]any{"title": "Night"}, &session)
	if status != http.StatusCreated || session.Code == "" {
		t.Fatalf("create: status %d session %+v", status, session)
	}

	var errBody errorResponse
	if status := doJSON(t, srv, http.MethodPost, "/api/join", map[string]any{"code": "ABC123", "name": "Alice"}, &errBody); status != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown code, got %d", status)
	}
	if errBody.Error == "" {
		t.Fatalf("expected error message")
	}

	var joined joinResponse
	if status := doJSON(t, srv, http.MethodPost, "/api/join", map[string]any{"code": session.Code, "name": "Alice"}, &joined); status != http.StatusOK {
		t.Fatalf("join: status %d", status)
	}
	if joined.Identity.SessionID != session.ID || len(joined.Session.Contestants) != 1 {
		t.Fatalf("unexpected join response %+v", joined)
	}

	if status := doJSON(t, srv, http.MethodPost, "/api/sessions/"+session.ID+"/start", nil, &session); status != http.StatusOK || session.Status != domain.StatusActive {
		t.Fatalf("start: status %d session %+v", status, session)
	}
	if status := doJSON(t, srv, http.MethodPost, "/api/sessions/"+session.ID+"/start", nil, nil); status != http.StatusConflict {
		t.Fatalf("expected 409 on second start, got %d", status)
	}
	if status := doJSON(t, srv, http.MethodPost, "/api/sessions/"+session.ID+"/heartbeat", map[string]any{"contestantId": joined.Contestant.ID}, nil); status != http.StatusNoContent {
		t.Fatalf("heartbeat: status %d", status)
	}
	if status := doJSON(t, srv, http.MethodDelete, "/api/sessions/"+session.ID, nil, nil); status != http.StatusNoContent {
		t.Fatalf("delete: status %d", status)
	}
	if status := doJSON(t, srv, http.MethodGet, "/api/sessions/"+session.ID, nil, nil); status != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", status)
	}
}

func TestGameShowAndSelfPacedAPI(t *testing.T) {
	srv := newTestServer(t)

	var state gameshow.State
	status := doJSON(t, srv, http.MethodPost, "/api/gameshow", map[string]any{"contestants": []string{"A", "B"}}, &state)
	if status != http.StatusCreated || state.Phase != gameshow.PhaseSelecting || state.Title != "Trivia" {
		t.Fatalf("begin: status %d state %+v", status, state)
	}
	if status := doJSON(t, srv, http.MethodPost, "/api/gameshow", map[string]any{"contestants": []string{"Solo"}}, nil); status != http.StatusBadRequest {
		t.Fatalf("expected 400 for one contestant, got %d", status)
	}

	doJSON(t, srv, http.MethodPost, "/api/gameshow/select", map[string]any{"number": 1}, &state)
	if state.Phase != gameshow.PhaseAnswering {
		t.Fatalf("expected answering, got %s", state.Phase)
	}
	doJSON(t, srv, http.MethodPost, "/api/gameshow/answer", map[string]any{"option": 1}, &state)
	if state.Contestants[0].Score != 100 || state.CurrentContestantIndex != 0 {
		t.Fatalf("expected correct answer to score, got %+v", state.Contestants)
	}
	if status := doJSON(t, srv, http.MethodPost, "/api/gameshow/select", map[string]any{"number": 2}, nil); status != http.StatusConflict {
		t.Fatalf("expected 409 selecting during result, got %d", status)
	}

	var quiz selfpaced.State
	if status := doJSON(t, srv, http.MethodPost, "/api/selfpaced", map[string]any{"questionCount": 2, "timeLimit": 5}, &quiz); status != http.StatusCreated {
		t.Fatalf("start self-paced: status %d", status)
	}
	doJSON(t, srv, http.MethodPost, "/api/selfpaced/answer", map[string]any{"questionId": "q2", "option": 2}, &quiz)
	if !quiz.Answers["q2"].IsCorrect {
		t.Fatalf("expected correct answer recorded, got %+v", quiz.Answers)
	}
	var result selfpaced.Result
	if status := doJSON(t, srv, http.MethodPost, "/api/selfpaced/complete", nil, &result); status != http.StatusOK || result.CorrectAnswers != 1 {
		t.Fatalf("complete: status %d result %+v", status, result)
	}
	if status := doJSON(t, srv, http.MethodGet, "/api/selfpaced/result", nil, &result); status != http.StatusOK || result.TotalQuestions != 2 {
		t.Fatalf("result: status %d result %+v", status, result)
	}
}

func TestGameShowBeginKeepsSessionWaitingOnBadRoster(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	session, err := srv.sessions.Create(ctx, "Night", 0)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, _, err := srv.sessions.Join(ctx, session.Code, "Solo"); err != nil {
		t.Fatalf("join: %v", err)
	}

	var errBody errorResponse
	if status := doJSON(t, srv, http.MethodPost, "/api/gameshow", map[string]any{"sessionId": session.ID}, &errBody); status != http.StatusBadRequest {
		t.Fatalf("expected 400 for a single contestant, got %d", status)
	}
	stored, err := srv.sessions.Get(ctx, session.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Status != domain.StatusWaiting {
		t.Fatalf("rejected begin moved the session to %s", stored.Status)
	}

	if _, _, err := srv.sessions.Join(ctx, session.Code, "Duo"); err != nil {
		t.Fatalf("join: %v", err)
	}
	var state gameshow.State
	if status := doJSON(t, srv, http.MethodPost, "/api/gameshow", map[string]any{"sessionId": session.ID}, &state); status != http.StatusCreated {
		t.Fatalf("begin: status %d", status)
	}
	if stored, _ = srv.sessions.Get(ctx, session.ID); stored.Status != domain.StatusActive {
		t.Fatalf("expected session started with the game, got %s", stored.Status)
	}
}

func TestImportEndpoint(t *testing.T) {
	srv := newTestServer(t)

	body := "1. What is 3 + 3?\nA. 5\nB. 6\nC. 7\nD. 8\nAnswer: B\n"
	resp, err := http.Post(srv.URL+"/api/quiz/import?format=text", "text/plain", bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	var report app.ImportReport
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.StatusCode != http.StatusOK || report.Imported != 1 || len(report.Quiz.Questions) != 3 {
		t.Fatalf("unexpected import: status %d report %+v", resp.StatusCode, report)
	}

	resp, err = http.Post(srv.URL+"/api/quiz/import?format=xml", "text/plain", bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown format, got %d", resp.StatusCode)
	}
}

func doJSON(t *testing.T, srv *testServer, method, path string, in, out any) int {
	t.Helper()
	var body bytes.Buffer
	if in != nil {
		if err := json.NewEncoder(&body).Encode(in); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req, err := http.NewRequest(method, srv.URL+path, &body)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return resp.StatusCode
}
