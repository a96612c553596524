package domain

import "fmt"

// Game holds a match together with its move history. The board shown to
// the players is the one at the cursor; jumping back in time moves the
// cursor, and playing from there drops the moves after it.
//
// A Game is not safe for concurrent use.
type Game struct {
	history   []Board
	cursor    int
	ascending bool
}

// New returns a game with an empty board, X to move and the move list
// sorted ascending.
func New() *Game {
	return &Game{history: []Board{{}}, ascending: true}
}

// Play places the next mark at cell on the board at the cursor. Moves
// recorded after the cursor are discarded. On error the game is unchanged.
func (g *Game) Play(cell int) error {
	cur := g.history[g.cursor]
	if _, won := Evaluate(cur); won {
		return ErrGameOver
	}
	next, err := cur.Place(cell, g.Next())
	if err != nil {
		return err
	}
	g.history = append(g.history[:g.cursor+1:g.cursor+1], next)
	g.cursor = len(g.history) - 1
	return nil
}

// JumpTo moves the cursor to move. History is left as is.
func (g *Game) JumpTo(move int) error {
	if move < 0 || move >= len(g.history) {
		return fmt.Errorf("%w: %d (have %d)", ErrNoSuchMove, move, len(g.history))
	}
	g.cursor = move
	return nil
}

// ToggleSort flips the direction of the move list.
func (g *Game) ToggleSort() { g.ascending = !g.ascending }

// Ascending reports whether the move list is shown oldest first.
func (g *Game) Ascending() bool { return g.ascending }

// Cursor is the index of the move currently shown.
func (g *Game) Cursor() int { return g.cursor }

// Len is the number of recorded boards, the empty start included.
func (g *Game) Len() int { return len(g.history) }

// Current returns the board at the cursor.
func (g *Game) Current() Board { return g.history[g.cursor] }

// Next is the mark placed by the next Play.
func (g *Game) Next() Cell { return MarkFor(g.cursor + 1) }

// Winner evaluates the board at the cursor.
func (g *Game) Winner() (WinResult, bool) { return Evaluate(g.Current()) }

// Status describes the board at the cursor. A win takes precedence over a
// full board.
func (g *Game) Status() string {
	cur := g.Current()
	if w, ok := Evaluate(cur); ok {
		return "Winner: " + w.Mark.String()
	}
	if !cur.Full() {
		return "Next player: " + g.Next().String()
	}
	return "It's a draw!"
}

// Highlighted returns the indices of the winning line, or nil.
func (g *Game) Highlighted() []int {
	w, ok := g.Winner()
	if !ok {
		return nil
	}
	return []int{w.Line[0], w.Line[1], w.Line[2]}
}
