package http

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// NewRouter wires the REST API and the websocket endpoint.
func NewRouter(api *API, ws *WSHandler, logger *zap.Logger) *mux.Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := mux.NewRouter()
	r.Use(accessLog(logger))

	r.HandleFunc("/healthz", api.health).Methods(http.MethodGet)
	r.HandleFunc("/ws", ws.ServeWS)

	s := r.PathPrefix("/api").Subrouter()
	s.HandleFunc("/quiz", api.getQuiz).Methods(http.MethodGet)
	s.HandleFunc("/quiz", api.saveQuiz).Methods(http.MethodPost)
	s.HandleFunc("/quiz/questions", api.addQuestion).Methods(http.MethodPost)
	s.HandleFunc("/quiz/import", api.importQuestions).Methods(http.MethodPost)

	s.HandleFunc("/sessions", api.listSessions).Methods(http.MethodGet)
	s.HandleFunc("/sessions", api.createSession).Methods(http.MethodPost)
	s.HandleFunc("/sessions/{id}", api.getSession).Methods(http.MethodGet)
	s.HandleFunc("/sessions/{id}", api.deleteSession).Methods(http.MethodDelete)
	s.HandleFunc("/sessions/{id}/heartbeat", api.heartbeat).Methods(http.MethodPost)
	s.HandleFunc("/sessions/{id}/{action:start|advance|finish}", api.sessionAction).Methods(http.MethodPost)

	s.HandleFunc("/join", api.join).Methods(http.MethodPost)
	s.HandleFunc("/join/{code}", api.lookupCode).Methods(http.MethodGet)

	s.HandleFunc("/gameshow", api.beginGameShow).Methods(http.MethodPost)
	s.HandleFunc("/gameshow", api.getGameShow).Methods(http.MethodGet)
	s.HandleFunc("/gameshow/{action:select|option|answer|next|finish}", api.gameShowAction).Methods(http.MethodPost)

	s.HandleFunc("/selfpaced", api.startSelfPaced).Methods(http.MethodPost)
	s.HandleFunc("/selfpaced", api.getSelfPaced).Methods(http.MethodGet)
	s.HandleFunc("/selfpaced/result", api.getSelfPacedResult).Methods(http.MethodGet)
	s.HandleFunc("/selfpaced/{action:answer|goto|next|previous|complete}", api.selfPacedAction).Methods(http.MethodPost)

	return r
}

func accessLog(logger *zap.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logger.Debug("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}
