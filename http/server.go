package http

import (
	"net/http"
	"time"

	"mahjong/game"

	"github.com/gorilla/csrf"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type Options struct {
	CSRFKey            []byte
	CSRFEnabled        bool
	SecureCookies      bool
	RateLimitPerMinute int
}

type Server struct {
	router   *mux.Router
	handlers *Handlers
	limiter  *RateLimiter
	logger   *zap.Logger
	handler  http.Handler
}

func NewServer(registry *game.Registry, ledger *game.Ledger, settlement *game.Settlement, leaderboard *game.Leaderboard, logger *zap.Logger, opts Options) (*Server, error) {
	render, err := newRenderer(logger)
	if err != nil {
		return nil, err
	}

	server := &Server{
		router:   mux.NewRouter(),
		handlers: NewHandlers(registry, ledger, settlement, leaderboard, render, logger),
		limiter:  NewPerMinuteLimiter(opts.RateLimitPerMinute),
		logger:   logger,
	}
	server.setupRoutes()
	server.handler = server.wrap(opts)
	return server, nil
}

func (s *Server) setupRoutes() {
	s.router.Use(RecoverMiddleware(s.logger))
	s.router.Use(SecurityHeadersMiddleware)

	h := s.handlers
	post := func(fn http.HandlerFunc) http.Handler {
		return s.limiter.Middleware(fn)
	}

	s.router.HandleFunc("/healthz", h.Health).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()
	api.Use(CORSMiddleware)
	api.HandleFunc("/games/{id:[0-9]+}", h.APIGame).Methods("GET", "OPTIONS")
	api.HandleFunc("/games/{id:[0-9]+}/rounds", h.APIRounds).Methods("GET", "OPTIONS")
	api.HandleFunc("/leaderboard", h.APILeaderboard).Methods("GET", "OPTIONS")
	api.HandleFunc("/players", h.APIPlayers).Methods("GET", "OPTIONS")

	// Unmatched API routes get a JSON 404 instead of the HTML page.
	s.router.PathPrefix("/api/").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	})

	s.router.HandleFunc("/", h.Index).Methods("GET")
	s.router.HandleFunc("/start", h.StartForm).Methods("GET")
	s.router.Handle("/start", post(h.StartGame)).Methods("POST")

	s.router.HandleFunc("/games/{id:[0-9]+}", h.Scoreboard).Methods("GET")
	s.router.Handle("/games/{id:[0-9]+}/rounds", post(h.SubmitRound)).Methods("POST")
	s.router.HandleFunc("/games/{id:[0-9]+}/rounds/{round:[0-9]+}/edit", h.EditRoundForm).Methods("GET")
	s.router.Handle("/games/{id:[0-9]+}/rounds/{round:[0-9]+}/edit", post(h.EditRound)).Methods("POST")
	s.router.HandleFunc("/games/{id:[0-9]+}/rounds/{round:[0-9]+}/delete", h.DeleteRoundForm).Methods("GET")
	s.router.Handle("/games/{id:[0-9]+}/rounds/{round:[0-9]+}/delete", post(h.DeleteRound)).Methods("POST")
	s.router.HandleFunc("/games/{id:[0-9]+}/end", h.EndGameForm).Methods("GET")
	s.router.Handle("/games/{id:[0-9]+}/end", post(h.EndGame)).Methods("POST")

	s.router.HandleFunc("/history", h.History).Methods("GET")
	s.router.Handle("/history", post(h.LookupGame)).Methods("POST")
	s.router.HandleFunc("/leaderboard", h.Leaderboard).Methods("GET")
	s.router.HandleFunc("/players", h.Players).Methods("GET")

	s.router.NotFoundHandler = http.HandlerFunc(h.NotFound)
}

// wrap applies the middleware that must see every request, including those
// the router rejects before its own middleware runs.
func (s *Server) wrap(opts Options) http.Handler {
	var handler http.Handler = s.router
	if opts.CSRFEnabled {
		protect := csrf.Protect(opts.CSRFKey,
			csrf.Secure(opts.SecureCookies),
			csrf.Path("/"),
			csrf.SameSite(csrf.SameSiteLaxMode),
			csrf.ErrorHandler(http.HandlerFunc(s.csrfFailed)),
		)
		handler = protect(handler)
		if !opts.SecureCookies {
			handler = plaintextMiddleware(handler)
		}
	}
	handler = LoggingMiddleware(s.logger)(handler)
	return RequestIDMiddleware(handler)
}

func (s *Server) csrfFailed(w http.ResponseWriter, r *http.Request) {
	s.logger.Warn("csrf check failed",
		zap.String("path", r.URL.Path),
		zap.String("request_id", GetRequestID(r.Context())),
		zap.Error(csrf.FailureReason(r)),
	)
	s.handlers.render.render(w, r, http.StatusForbidden, "error.html", view{
		Title: "Forbidden",
		Error: "your form has expired, please reload the page and try again",
	})
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) GetHTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

// Close stops background work owned by the server.
func (s *Server) Close() {
	s.limiter.Stop()
}
