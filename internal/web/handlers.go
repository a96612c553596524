package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jaminalder/timetravel-tic-tac-toe/internal/app"
	"github.com/jaminalder/timetravel-tic-tac-toe/internal/domain"
	"github.com/jaminalder/timetravel-tic-tac-toe/internal/validator"
)

type handlers struct {
	svc        *app.Service
	tpl        *templates
	log        *slog.Logger
	cookieLife time.Duration
}

// cellIntent is the form posted by a board cell.
type cellIntent struct {
	Cell int `validate:"min=0,max=8"`
}

// jumpIntent is the form posted by a move list entry.
type jumpIntent struct {
	Move int `validate:"min=0"`
}

func (h *handlers) renderBoard(snap app.Snapshot) ([]byte, error) {
	return renderTemplate(h.tpl.board, "", snap)
}

// session resolves the caller's session, starting a new one when the cookie
// is missing or points at a session that no longer exists. The cookie is
// reissued on every request so it expires only after the session idles.
func (h *handlers) session(w http.ResponseWriter, r *http.Request) app.Snapshot {
	span := trace.SpanFromContext(r.Context())
	if id := sessionID(r); id != "" {
		if snap, err := h.svc.Get(id); err == nil {
			setSessionCookie(w, id, h.cookieLife)
			span.SetAttributes(attribute.String("session.id", id))
			return snap
		}
	}
	snap := h.svc.CreateSession(r.Context())
	setSessionCookie(w, snap.ID, h.cookieLife)
	span.SetAttributes(attribute.String("session.id", snap.ID), attribute.Bool("session.new", true))
	return snap
}

func (h *handlers) index(w http.ResponseWriter, r *http.Request) {
	snap := h.session(w, r)
	body, err := renderTemplate(h.tpl.page, "", snap)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (h *handlers) newGame(w http.ResponseWriter, r *http.Request) {
	if id := sessionID(r); id != "" {
		h.svc.End(id)
	}
	snap := h.svc.CreateSession(r.Context())
	setSessionCookie(w, snap.ID, h.cookieLife)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *handlers) play(w http.ResponseWriter, r *http.Request) {
	snap := h.session(w, r)
	_ = r.ParseForm()

	// Anything that is not a cell on the board is just another ignored click.
	in := cellIntent{Cell: -1}
	if v, err := strconv.Atoi(r.Form.Get("cell")); err == nil {
		in.Cell = v
	}
	if err := validator.Struct(in); err != nil {
		h.log.Debug("malformed cell ignored", "session", snap.ID, "cell", r.Form.Get("cell"))
		h.respond(w, r, snap)
		return
	}

	next, err := h.svc.CellClicked(r.Context(), snap.ID, in.Cell)
	if err != nil {
		h.intentError(w, r, snap, err, func(id string) (app.Snapshot, error) {
			return h.svc.CellClicked(r.Context(), id, in.Cell)
		})
		return
	}
	trace.SpanFromContext(r.Context()).SetAttributes(
		attribute.Int("game.cell", in.Cell),
		attribute.Bool("game.ignored", next.Ignored),
	)
	h.respond(w, r, next)
}

func (h *handlers) jump(w http.ResponseWriter, r *http.Request) {
	snap := h.session(w, r)
	_ = r.ParseForm()

	move, err := strconv.Atoi(r.Form.Get("move"))
	in := jumpIntent{Move: move}
	if err == nil {
		err = validator.Struct(in)
	}
	if err != nil {
		http.Error(w, "invalid move", http.StatusBadRequest)
		return
	}

	next, err := h.svc.HistoryEntryClicked(r.Context(), snap.ID, in.Move)
	if err != nil {
		h.intentError(w, r, snap, err, func(id string) (app.Snapshot, error) {
			return h.svc.HistoryEntryClicked(r.Context(), id, in.Move)
		})
		return
	}
	trace.SpanFromContext(r.Context()).SetAttributes(attribute.Int("game.move", in.Move))
	h.respond(w, r, next)
}

func (h *handlers) sort(w http.ResponseWriter, r *http.Request) {
	snap := h.session(w, r)
	next, err := h.svc.SortToggleClicked(r.Context(), snap.ID)
	if err != nil {
		h.intentError(w, r, snap, err, func(id string) (app.Snapshot, error) {
			return h.svc.SortToggleClicked(r.Context(), id)
		})
		return
	}
	h.respond(w, r, next)
}

func (h *handlers) state(w http.ResponseWriter, r *http.Request) {
	snap := h.session(w, r)
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(snap.View); err != nil {
		h.log.Error("encode state", "session", snap.ID, "error", err)
	}
}

func (h *handlers) healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// respond answers htmx requests with the board fragment and plain form
// posts with a redirect back to the page.
func (h *handlers) respond(w http.ResponseWriter, r *http.Request, snap app.Snapshot) {
	trace.SpanFromContext(r.Context()).SetAttributes(attribute.Int("game.moves", snap.Moves))
	if r.Header.Get("HX-Request") == "" {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	body, err := h.renderBoard(snap)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(body)
}

// intentError answers a failed intent. When the session ended between
// lookup and intent, retry replays the intent on a fresh session.
func (h *handlers) intentError(w http.ResponseWriter, r *http.Request, snap app.Snapshot, err error, retry func(id string) (app.Snapshot, error)) {
	switch {
	case errors.Is(err, domain.ErrNoSuchMove):
		http.Error(w, "no such move", http.StatusBadRequest)
	case errors.Is(err, app.ErrNotFound):
		fresh := h.svc.CreateSession(r.Context())
		setSessionCookie(w, fresh.ID, h.cookieLife)
		h.log.Info("session vanished, started a new one", "old", snap.ID, "new", fresh.ID)
		next, err := retry(fresh.ID)
		switch {
		case errors.Is(err, domain.ErrNoSuchMove):
			http.Error(w, "no such move", http.StatusBadRequest)
		case err != nil:
			h.fail(w, r, err)
		default:
			h.respond(w, r, next)
		}
	default:
		h.fail(w, r, err)
	}
}

func (h *handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	span := trace.SpanFromContext(r.Context())
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	h.log.Error("request failed", "path", r.URL.Path, "error", err)
	http.Error(w, "internal error", http.StatusInternalServerError)
}

var heartbeatInterval = 15 * time.Second

func (h *handlers) events(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	// Non-EventSource requests only get the headers
	if r.Header.Get("Accept") != "text/event-stream" {
		w.WriteHeader(http.StatusOK)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		w.WriteHeader(http.StatusOK)
		return
	}
	id := sessionID(r)
	ctx := r.Context()
	ch, unsub, err := h.svc.Subscribe(ctx, id)
	if err != nil {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}
	defer unsub()

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := h.svc.Touch(id); err != nil {
				return
			}
			_, _ = io.WriteString(w, ": ping\n\n")
			flusher.Flush()
		case b, ok := <-ch:
			if !ok {
				return
			}
			writeEvent(w, "board", b)
			flusher.Flush()
		}
	}
}

// writeEvent frames payload as one SSE event; every line needs its own
// data: prefix.
func writeEvent(w io.Writer, event string, payload []byte) {
	_, _ = fmt.Fprintf(w, "event: %s\n", event)
	for _, line := range strings.Split(string(payload), "\n") {
		_, _ = fmt.Fprintf(w, "data: %s\n", line)
	}
	_, _ = io.WriteString(w, "\n")
}
