package web

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jaminalder/timetravel-tic-tac-toe/internal/app"
)

var tracer = otel.Tracer("github.com/jaminalder/timetravel-tic-tac-toe/internal/web")

// NewServer wires routes and returns an http.Handler. It installs the board
// fragment as the service's broadcast renderer so SSE subscribers receive
// the same markup htmx swaps in. Session cookies live as long as idle
// sessions are kept.
func NewServer(s *app.Service, log *slog.Logger, sessionLife time.Duration) http.Handler {
	log = log.With("component", "web")
	h := &handlers{svc: s, tpl: loadTemplates(), log: log, cookieLife: sessionLife}
	s.SetRenderer(func(snap app.Snapshot) []byte {
		b, err := h.renderBoard(snap)
		if err != nil {
			log.Error("render broadcast", "session", snap.ID, "error", err)
		}
		return b
	})

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(traced)
	r.Use(requestLog(log))
	r.Get("/", h.index)
	r.Get("/healthz", h.healthz)
	r.Get("/state", h.state)
	r.Get("/events", h.events)
	r.Post("/play", h.play)
	r.Post("/jump", h.jump)
	r.Post("/sort", h.sort)
	r.Post("/new", h.newGame)
	return r
}

// traced opens one span per request.
func traced(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), r.Method+" "+r.URL.Path, trace.WithAttributes(
			attribute.String("http.url", r.URL.String()),
			attribute.String("http.method", r.Method),
		))
		defer span.End()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestLog(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Debug("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start),
			)
		})
	}
}
