package app

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/jaminalder/timetravel-tic-tac-toe/internal/domain"
	"github.com/jaminalder/timetravel-tic-tac-toe/internal/view"
)

// Errors exposed by the service layer.
var (
	ErrNotFound = errors.New("session not found")
)

// Snapshot is a copy of a session taken right after an intent was handled.
type Snapshot struct {
	ID    string
	View  view.Model
	Moves int
	// Ignored is set when the intent was an illegal click left without effect.
	Ignored bool
}

// session is the in-memory state tracked per player session.
type session struct {
	id      string
	game    *domain.Game
	created time.Time
	updated time.Time
}

func (s *session) snapshot() Snapshot {
	return Snapshot{
		ID:    s.id,
		View:  view.Build(s.game),
		Moves: s.game.Len() - 1,
	}
}

type subscriber struct {
	mu     sync.Mutex
	ch     chan []byte
	closed bool
}

func (s *subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

// offer delivers payload without blocking. False means the subscriber is
// gone or too slow to keep up.
func (s *subscriber) offer(payload []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.ch <- payload:
		return true
	default:
		return false
	}
}

// Service owns every session's game. Intents are applied one at a time under
// the service lock, so a view is always derived from a settled state.
type Service struct {
	mu       sync.Mutex
	sessions map[string]*session
	subs     map[string]map[*subscriber]struct{}
	render   func(Snapshot) []byte
	now      func() time.Time
	log      *slog.Logger
	metrics  *metrics
}

// NewService creates a service with a default renderer (encodes nothing useful).
func NewService(log *slog.Logger) *Service { return NewServiceWithRenderer(log, nil) }

// NewServiceWithRenderer allows injecting a renderer for broadcast payloads.
func NewServiceWithRenderer(log *slog.Logger, renderer func(Snapshot) []byte) *Service {
	if log == nil {
		log = slog.Default()
	}
	if renderer == nil {
		renderer = func(Snapshot) []byte { return nil }
	}
	log = log.With("component", "session-service")
	return &Service{
		sessions: make(map[string]*session),
		subs:     make(map[string]map[*subscriber]struct{}),
		render:   renderer,
		now:      time.Now,
		log:      log,
		metrics:  newMetrics(otel.Meter("github.com/jaminalder/timetravel-tic-tac-toe/internal/app"), log),
	}
}

// SetRenderer replaces the broadcast renderer function.
func (s *Service) SetRenderer(renderer func(Snapshot) []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if renderer == nil {
		s.render = func(Snapshot) []byte { return nil }
		return
	}
	s.render = renderer
}

// CreateSession starts a fresh game under a new id.
func (s *Service) CreateSession(ctx context.Context) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	sess := &session{id: uuid.NewString(), game: domain.New(), created: now, updated: now}
	s.sessions[sess.id] = sess
	s.metrics.sessions.Add(ctx, 1)
	s.log.Info("session created", "session", sess.id, "sessions", len(s.sessions))
	return sess.snapshot()
}

// Get returns the current snapshot of a session. Looking at a session
// counts as activity.
func (s *Service) Get(id string) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return Snapshot{}, ErrNotFound
	}
	sess.updated = s.now()
	return sess.snapshot(), nil
}

// Touch marks a session as active so Sweep keeps it.
func (s *Service) Touch(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return ErrNotFound
	}
	sess.updated = s.now()
	return nil
}

// End discards a session and disconnects its subscribers.
func (s *Service) End(id string) {
	s.mu.Lock()
	if sess, ok := s.sessions[id]; ok {
		s.log.Info("session ended", "session", id, "age", s.now().Sub(sess.created), "moves", sess.game.Len()-1)
	}
	subs := s.removeLocked(id)
	s.mu.Unlock()
	for sub := range subs {
		sub.close()
	}
}

// CellClicked plays the next mark at cell. Illegal clicks (occupied cell,
// decided game, index off the board) leave the game as it was and come back
// with Ignored set; they are not errors.
func (s *Service) CellClicked(ctx context.Context, id string, cell int) (Snapshot, error) {
	return s.apply(ctx, id, "play", func(g *domain.Game) (bool, error) {
		err := g.Play(cell)
		switch {
		case err == nil:
			return true, nil
		case errors.Is(err, domain.ErrOccupied), errors.Is(err, domain.ErrGameOver), errors.Is(err, domain.ErrOutOfBounds):
			s.log.Debug("click ignored", "session", id, "cell", cell, "reason", err)
			s.metrics.ignored.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", err.Error())))
			return false, nil
		default:
			return false, err
		}
	})
}

// HistoryEntryClicked moves the session's cursor to move.
func (s *Service) HistoryEntryClicked(ctx context.Context, id string, move int) (Snapshot, error) {
	return s.apply(ctx, id, "jump", func(g *domain.Game) (bool, error) {
		if err := g.JumpTo(move); err != nil {
			return false, err
		}
		return true, nil
	})
}

// SortToggleClicked flips the order of the move list.
func (s *Service) SortToggleClicked(ctx context.Context, id string) (Snapshot, error) {
	return s.apply(ctx, id, "sort", func(g *domain.Game) (bool, error) {
		g.ToggleSort()
		return true, nil
	})
}

// apply runs one intent against a session, then broadcasts the new state to
// subscribers when the intent changed something.
func (s *Service) apply(ctx context.Context, id, intent string, fn func(*domain.Game) (bool, error)) (Snapshot, error) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if !ok {
		s.mu.Unlock()
		return Snapshot{}, ErrNotFound
	}
	sess.updated = s.now()
	changed, err := fn(sess.game)
	if err != nil {
		s.mu.Unlock()
		return Snapshot{}, err
	}
	if !changed {
		cp := sess.snapshot()
		s.mu.Unlock()
		cp.Ignored = true
		return cp, nil
	}
	s.metrics.intents.Add(ctx, 1, metric.WithAttributes(attribute.String("intent", intent)))

	// Snapshot state and subscribers
	cp := sess.snapshot()
	subs := s.copySubsLocked(id)
	payload := s.render(cp)
	s.mu.Unlock()

	s.log.Debug("intent applied", "session", id, "intent", intent, "moves", cp.Moves)

	s.broadcast(id, subs, payload)
	return cp, nil
}

// broadcast fans payload out; slow subscribers are dropped by closing them.
func (s *Service) broadcast(id string, subs map[*subscriber]struct{}, payload []byte) {
	var toDrop []*subscriber
	for sub := range subs {
		if !sub.offer(payload) {
			sub.close()
			toDrop = append(toDrop, sub)
		}
	}
	if len(toDrop) == 0 {
		return
	}
	s.mu.Lock()
	for _, sub := range toDrop {
		if set, ok := s.subs[id]; ok {
			delete(set, sub)
		}
	}
	s.mu.Unlock()
	s.log.Debug("dropped slow subscribers", "session", id, "count", len(toDrop))
}

// Subscribe registers a subscriber for a session. Returns a channel and an unsubscribe func.
func (s *Service) Subscribe(ctx context.Context, id string) (<-chan []byte, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return nil, func() {}, ErrNotFound
	}
	set := s.subs[id]
	if set == nil {
		set = make(map[*subscriber]struct{})
		s.subs[id] = set
	}
	sub := &subscriber{ch: make(chan []byte, 1)}
	set[sub] = struct{}{}
	s.sessions[id].updated = s.now()

	unsubOnce := &sync.Once{}
	unsub := func() {
		unsubOnce.Do(func() {
			s.mu.Lock()
			if set, ok := s.subs[id]; ok {
				delete(set, sub)
			}
			s.mu.Unlock()
			sub.close()
		})
	}
	go func() {
		<-ctx.Done()
		unsub()
	}()
	return sub.ch, unsub, nil
}

// Sweep ends every session idle for longer than idle and reports how many.
func (s *Service) Sweep(idle time.Duration) int {
	cutoff := s.now().Add(-idle)
	var closing []map[*subscriber]struct{}

	s.mu.Lock()
	for id, sess := range s.sessions {
		if sess.updated.Before(cutoff) {
			closing = append(closing, s.removeLocked(id))
		}
	}
	s.mu.Unlock()

	for _, subs := range closing {
		for sub := range subs {
			sub.close()
		}
	}
	if len(closing) > 0 {
		s.log.Info("idle sessions ended", "count", len(closing))
	}
	return len(closing)
}

// RunJanitor calls Sweep every interval until ctx is done.
func (s *Service) RunJanitor(ctx context.Context, every, idle time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(idle)
		}
	}
}

// Len is the number of live sessions.
func (s *Service) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Service) removeLocked(id string) map[*subscriber]struct{} {
	delete(s.sessions, id)
	subs := s.subs[id]
	delete(s.subs, id)
	return subs
}

func (s *Service) copySubsLocked(id string) map[*subscriber]struct{} {
	out := make(map[*subscriber]struct{})
	if set, ok := s.subs[id]; ok {
		for k := range set {
			out[k] = struct{}{}
		}
	}
	return out
}
