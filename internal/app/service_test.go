package app

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaminalder/timetravel-tic-tac-toe/internal/domain"
	"github.com/jaminalder/timetravel-tic-tac-toe/internal/logger"
)

// minimal renderer for tests: encode moves count as bytes
func testRenderer(s Snapshot) []byte { return []byte(fmt.Sprintf("moves=%d", s.Moves)) }

func newTestService(t *testing.T) *Service {
	t.Helper()
	return NewServiceWithRenderer(logger.Discard(), testRenderer)
}

func TestCreateAndGet(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	snap := s.CreateSession(ctx)
	require.NotEmpty(t, snap.ID)
	assert.Equal(t, "Next player: X", snap.View.Status)
	assert.Equal(t, 0, snap.Moves)
	sess := s.sessions[snap.ID]
	require.NotNil(t, sess)
	assert.False(t, sess.created.IsZero())
	assert.Equal(t, sess.created, sess.updated)

	got, err := s.Get(snap.ID)
	require.NoError(t, err)
	assert.Equal(t, snap.ID, got.ID)

	other := s.CreateSession(ctx)
	assert.NotEqual(t, snap.ID, other.ID)
	assert.Equal(t, 2, s.Len())
}

func TestUnknownSession(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	_, err := s.Get("nope")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = s.CellClicked(ctx, "nope", 0)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = s.HistoryEntryClicked(ctx, "nope", 0)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = s.SortToggleClicked(ctx, "nope")
	require.ErrorIs(t, err, ErrNotFound)
	_, _, err = s.Subscribe(ctx, "nope")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCellClickedPlaysAndIgnores(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	id := s.CreateSession(ctx).ID

	snap, err := s.CellClicked(ctx, id, 4)
	require.NoError(t, err)
	assert.False(t, snap.Ignored)
	assert.Equal(t, "X", snap.View.Cells[4])
	assert.Equal(t, "Next player: O", snap.View.Status)

	// Given: cell 4 is taken
	// When: it is clicked again
	again, err := s.CellClicked(ctx, id, 4)

	// Then: nothing changes and no error surfaces
	require.NoError(t, err)
	assert.True(t, again.Ignored)
	assert.Equal(t, snap.View, again.View)
	assert.Equal(t, 1, again.Moves)

	offBoard, err := s.CellClicked(ctx, id, 11)
	require.NoError(t, err)
	assert.True(t, offBoard.Ignored)
}

func TestClicksAfterWinAreIgnored(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	id := s.CreateSession(ctx).ID

	var snap Snapshot
	var err error
	for _, c := range []int{0, 4, 1, 5, 2} {
		snap, err = s.CellClicked(ctx, id, c)
		require.NoError(t, err)
	}
	assert.Equal(t, "Winner: X", snap.View.Status)
	assert.Equal(t, []int{0, 1, 2}, snap.View.Highlighted)

	late, err := s.CellClicked(ctx, id, 8)
	require.NoError(t, err)
	assert.True(t, late.Ignored)
	assert.Equal(t, 5, late.Moves)
}

func TestHistoryEntryClickedAndTruncate(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	id := s.CreateSession(ctx).ID
	for _, c := range []int{0, 4, 1} {
		_, err := s.CellClicked(ctx, id, c)
		require.NoError(t, err)
	}

	snap, err := s.HistoryEntryClicked(ctx, id, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, snap.Moves)
	assert.Equal(t, "Next player: O", snap.View.Status)
	assert.Equal(t, "You are at move #1", snap.View.HistoryEntries[1].Label)

	_, err = s.HistoryEntryClicked(ctx, id, 7)
	require.ErrorIs(t, err, domain.ErrNoSuchMove)

	snap, err = s.CellClicked(ctx, id, 8)
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Moves)
	assert.Equal(t, "O", snap.View.Cells[8])
	assert.Equal(t, "", snap.View.Cells[4])
}

func TestSortToggleClicked(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	id := s.CreateSession(ctx).ID
	_, err := s.CellClicked(ctx, id, 0)
	require.NoError(t, err)

	snap, err := s.SortToggleClicked(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "descending", string(snap.View.SortDirection))
	assert.Equal(t, "You are at move #1", snap.View.HistoryEntries[0].Label)
	assert.Equal(t, "X", snap.View.Cells[0])
}

func TestSubscribeAndBroadcast(t *testing.T) {
	s := newTestService(t)
	id := s.CreateSession(context.Background()).ID

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	ch, unsub, err := s.Subscribe(ctx, id)
	require.NoError(t, err)
	defer unsub()

	// Trigger an update: X plays
	_, err = s.CellClicked(ctx, id, 0)
	require.NoError(t, err)

	select {
	case b, ok := <-ch:
		require.True(t, ok, "channel closed unexpectedly")
		assert.Equal(t, "moves=1", string(b))
	case <-ctx.Done():
		t.Fatal("timed out waiting for broadcast")
	}
}

func TestIgnoredClickDoesNotBroadcast(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	id := s.CreateSession(ctx).ID
	_, err := s.CellClicked(ctx, id, 0)
	require.NoError(t, err)

	ch, unsub, err := s.Subscribe(ctx, id)
	require.NoError(t, err)
	defer unsub()

	_, err = s.CellClicked(ctx, id, 0)
	require.NoError(t, err)

	select {
	case b := <-ch:
		t.Fatalf("unexpected broadcast %q", b)
	default:
	}
}

func TestDropSlowSubscriber(t *testing.T) {
	s := newTestService(t)
	id := s.CreateSession(context.Background()).ID

	// Slow subscriber: never read
	ctxSlow, cancelSlow := context.WithCancel(context.Background())
	defer cancelSlow()
	slowCh, _, err := s.Subscribe(ctxSlow, id)
	require.NoError(t, err)

	ctxFast, cancelFast := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancelFast()
	fastCh, unsubFast, err := s.Subscribe(ctxFast, id)
	require.NoError(t, err)
	defer unsubFast()

	for i, c := range []int{0, 4} {
		_, err := s.CellClicked(ctxFast, id, c)
		require.NoError(t, err)
		select {
		case <-fastCh:
		case <-ctxFast.Done():
			t.Fatalf("fast subscriber missed update %d", i)
		}
	}

	// The slow one got the first payload, then was closed on the second.
	b, ok := <-slowCh
	require.True(t, ok)
	assert.Equal(t, "moves=1", string(b))
	_, ok = <-slowCh
	assert.False(t, ok)
}

func TestEndClosesSubscribers(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	id := s.CreateSession(ctx).ID
	ch, _, err := s.Subscribe(ctx, id)
	require.NoError(t, err)

	s.End(id)

	_, ok := <-ch
	assert.False(t, ok)
	_, err = s.Get(id)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSweepEndsIdleSessions(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	stale := s.CreateSession(ctx).ID
	now = now.Add(20 * time.Minute)
	fresh := s.CreateSession(ctx).ID
	now = now.Add(15 * time.Minute)

	assert.Equal(t, 1, s.Sweep(30*time.Minute))

	_, err := s.Get(stale)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = s.Get(fresh)
	require.NoError(t, err)
}

func TestPlayKeepsSessionAlive(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	id := s.CreateSession(ctx).ID
	now = now.Add(25 * time.Minute)
	_, err := s.CellClicked(ctx, id, 0)
	require.NoError(t, err)
	now = now.Add(25 * time.Minute)

	assert.Equal(t, 0, s.Sweep(30*time.Minute))
}

func TestActivityWithoutChangeKeepsSessionAlive(t *testing.T) {
	tests := []struct {
		name  string
		touch func(s *Service, id string) error
	}{
		{name: "get", touch: func(s *Service, id string) error {
			_, err := s.Get(id)
			return err
		}},
		{name: "ignored click", touch: func(s *Service, id string) error {
			_, err := s.CellClicked(context.Background(), id, 9)
			return err
		}},
		{name: "subscribe", touch: func(s *Service, id string) error {
			_, _, err := s.Subscribe(context.Background(), id)
			return err
		}},
		{name: "touch", touch: func(s *Service, id string) error {
			return s.Touch(id)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestService(t)
			now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
			s.now = func() time.Time { return now }

			id := s.CreateSession(context.Background()).ID
			now = now.Add(25 * time.Minute)
			require.NoError(t, tt.touch(s, id))
			now = now.Add(25 * time.Minute)

			assert.Equal(t, 0, s.Sweep(30*time.Minute))
			assert.Equal(t, 1, s.Len())
		})
	}
}

func TestTouchUnknownSession(t *testing.T) {
	s := newTestService(t)
	require.ErrorIs(t, s.Touch("nope"), ErrNotFound)
}

func TestRunJanitorStopsWithContext(t *testing.T) {
	s := newTestService(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		s.RunJanitor(ctx, time.Millisecond, time.Hour)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("janitor did not stop")
	}
}

func TestConcurrentIntentsAreSerialized(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	id := s.CreateSession(ctx).ID

	var wg sync.WaitGroup
	for c := 0; c < domain.Size; c++ {
		wg.Add(1)
		go func(cell int) {
			defer wg.Done()
			_, _ = s.CellClicked(ctx, id, cell)
			_, _ = s.SortToggleClicked(ctx, id)
		}(c)
	}
	wg.Wait()

	snap, err := s.Get(id)
	require.NoError(t, err)
	// Whatever the interleaving, the recorded history stays legal.
	marks := 0
	for _, c := range snap.View.Cells {
		if c != "" {
			marks++
		}
	}
	assert.Equal(t, snap.Moves, marks)
}
