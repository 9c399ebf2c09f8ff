package web

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"remindercal/internal/api"
	"remindercal/internal/config"
	appLog "remindercal/internal/log"
	"remindercal/internal/metrics"
	"remindercal/internal/reminder"
	"remindercal/internal/session"
)

// Deps are the page-lifetime state objects the server exposes.
type Deps struct {
	Calendar *session.Calendar
	Settings *session.Settings
	Users    *session.Users
	// Login, when set, backs GET /api/session.
	Login   session.LoginChecker
	Metrics *metrics.Metrics
}

// Server serves the week calendar, its JSON API, an iCalendar feed and the
// captured preview image.
type Server struct {
	cfg      *config.Config
	calendar *session.Calendar
	settings *session.Settings
	users    *session.Users
	login    session.LoginChecker
	metrics  *metrics.Metrics
	now      func() time.Time

	router chi.Router
}

// NewServer constructs a new Server. cfg must be normalized.
func NewServer(cfg *config.Config, deps Deps) *Server {
	s := &Server{
		cfg:      cfg,
		calendar: deps.Calendar,
		settings: deps.Settings,
		users:    deps.Users,
		login:    deps.Login,
		metrics:  deps.Metrics,
		now:      time.Now,
	}
	s.router = s.routes()
	return s
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.observe)

	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		if s.cfg.BasicAuth.Enabled() {
			appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
			r.Use(s.basicAuth)
		}

		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/calendar", http.StatusFound)
		})
		r.Get("/calendar", s.handleCalendarPage)
		r.Get("/calendar.ics", s.handleICS)
		r.Get("/preview.png", s.handlePreview)
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

		r.Route("/api", func(r chi.Router) {
			r.Use(render.SetContentType(render.ContentTypeJSON))

			r.Get("/session", s.handleSession)
			r.Get("/events", s.handleEvents)
			r.Get("/schedule", s.handleSchedule)
			r.Post("/reload", s.handleReload)

			r.Post("/slots", s.handleSaveSlot)
			r.Post("/slots/{id}/move", s.handleMoveSlot)
			r.Delete("/slots/{id}", s.handleDeleteSlot)
			r.Post("/presets/{id}/drop", s.handleDropPreset)

			r.Get("/presets", s.handleListPresets)
			r.Post("/presets", s.handleSavePreset)
			r.Put("/presets/{id}/enabled", s.handleTogglePreset)
			r.Delete("/presets/{id}", s.handleDeletePreset)

			r.Get("/audios", s.handleListAudios)
			r.Post("/audios", s.handleSaveAudio)
			r.Delete("/audios/{id}", s.handleDeleteAudio)

			r.Get("/users", s.handleListUsers)
			r.Post("/users", s.handleCreateUser)
			r.Delete("/users/{id}", s.handleDeleteUser)
			r.Post("/users/{id}/password", s.handleResetPassword)
		})
	})
	return r
}

// observe records request durations by route pattern.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.metrics.ObserveHTTPRequest(r.Method, route, status, time.Since(start))
	})
}

// basicAuth guards every route registered after it.
func (s *Server) basicAuth(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="remindercal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// Run serves on cfg.Listen until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	appLog.Info("shutting down HTTP server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

type errResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
	// LoginURL is set when the backend session is gone.
	LoginURL string `json:"login_url,omitempty"`
}

// writeError maps domain errors onto HTTP statuses: local validation 422,
// lost login 401, unknown records 404, backend failures 502.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	resp := errResponse{Error: err.Error()}
	status := http.StatusInternalServerError

	var (
		verr   *reminder.ValidationError
		apiErr *api.Error
	)
	switch {
	case errors.As(err, &verr):
		status = http.StatusUnprocessableEntity
		resp.Field = verr.Field
	case errors.Is(err, api.ErrUnauthorized), errors.Is(err, session.ErrLoginRequired):
		status = http.StatusUnauthorized
		if s.login != nil {
			resp.LoginURL = s.login.LoginURL("/")
		}
	case errors.Is(err, session.ErrSlotNotFound), errors.Is(err, session.ErrPresetNotFound):
		status = http.StatusNotFound
	case errors.As(err, &apiErr):
		status = http.StatusBadGateway
	}
	if status >= http.StatusInternalServerError {
		appLog.Error("request failed", err, "path", r.URL.Path, "status", status)
	}

	render.Status(r, status)
	render.JSON(w, r, resp)
}

func badRequest(w http.ResponseWriter, r *http.Request, msg string) {
	render.Status(r, http.StatusBadRequest)
	render.JSON(w, r, errResponse{Error: msg})
}

type okResponse struct {
	Success bool `json:"success"`
}

func writeOK(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, okResponse{Success: true})
}
