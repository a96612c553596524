package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name  string
		board Board
		want  *WinResult
	}{
		{name: "empty board", board: Board{}},
		{
			name:  "partial board",
			board: Board{X, Empty, Empty, Empty, O},
		},
		{
			name:  "X wins first row",
			board: Board{X, X, X, Empty, O, O},
			want:  &WinResult{Mark: X, Line: Line{0, 1, 2}},
		},
		{
			name:  "O wins second column",
			board: Board{X, O, Empty, X, O, Empty, Empty, O, X},
			want:  &WinResult{Mark: O, Line: Line{1, 4, 7}},
		},
		{
			name:  "X wins main diagonal",
			board: Board{X, O, O, Empty, X, Empty, Empty, Empty, X},
			want:  &WinResult{Mark: X, Line: Line{0, 4, 8}},
		},
		{
			name:  "O wins anti-diagonal",
			board: Board{X, X, O, Empty, O, Empty, O, Empty, X},
			want:  &WinResult{Mark: O, Line: Line{2, 4, 6}},
		},
		{
			name:  "full board without a line",
			board: Board{X, O, X, X, O, O, O, X, X},
		},
		{
			name:  "several lines report the first in order",
			board: Board{O, O, O, X, X, X, Empty, Empty, Empty},
			want:  &WinResult{Mark: O, Line: Line{0, 1, 2}},
		},
		{
			name:  "column before diagonal",
			board: Board{X, O, O, X, X, O, X, O, X},
			want:  &WinResult{Mark: X, Line: Line{0, 3, 6}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Evaluate(tt.board)
			if tt.want == nil {
				assert.False(t, ok)
				assert.Equal(t, WinResult{}, got)
				return
			}
			require.True(t, ok)
			assert.Equal(t, *tt.want, got)
		})
	}
}

func TestEvaluateEveryLine(t *testing.T) {
	for _, ln := range Lines {
		for _, mark := range []Cell{X, O} {
			var b Board
			for _, i := range ln {
				b[i] = mark
			}
			w, ok := Evaluate(b)
			require.True(t, ok, "line %v", ln)
			assert.Equal(t, WinResult{Mark: mark, Line: ln}, w)
		}
	}
}

// Every board reachable by legal play yields no result or one of the fixed
// lines with three equal marks.
func TestEvaluateReachableBoards(t *testing.T) {
	seen := map[Board]bool{}
	var walk func(b Board, move int)
	walk = func(b Board, move int) {
		if seen[b] {
			return
		}
		seen[b] = true

		w, ok := Evaluate(b)
		if ok {
			assert.Contains(t, Lines, w.Line)
			for _, i := range w.Line {
				assert.Equal(t, w.Mark, b[i])
			}
			assert.NotEqual(t, Empty, w.Mark)
			return
		}
		for i := 0; i < Size; i++ {
			next, err := b.Place(i, MarkFor(move))
			if err != nil {
				continue
			}
			walk(next, move+1)
		}
	}
	walk(Board{}, 1)

	// 5478 distinct positions are reachable in tic-tac-toe.
	assert.Len(t, seen, 5478)
}

func TestBoardPlaceIsPure(t *testing.T) {
	var b Board
	next, err := b.Place(3, X)
	require.NoError(t, err)
	assert.Equal(t, Empty, b[3])
	assert.Equal(t, X, next[3])

	_, err = next.Place(3, O)
	require.ErrorIs(t, err, ErrOccupied)
	_, err = next.Place(9, O)
	require.ErrorIs(t, err, ErrOutOfBounds)
}

func TestBoardFull(t *testing.T) {
	assert.False(t, Board{}.Full())
	assert.True(t, Board{X, O, X, X, O, O, O, X, X}.Full())
}

func TestCellString(t *testing.T) {
	assert.Equal(t, "", Empty.String())
	assert.Equal(t, "X", X.String())
	assert.Equal(t, "O", O.String())
}
