package domain

import "errors"

// Cell represents a board cell state.
type Cell uint8

const (
	Empty Cell = iota
	X
	O
)

// String returns the mark as shown on the board: "X", "O" or "" for an empty cell.
func (c Cell) String() string {
	switch c {
	case X:
		return "X"
	case O:
		return "O"
	default:
		return ""
	}
}

// Size is the number of cells on the board.
const Size = 9

// Board is a fixed 3x3 board stored row-major. It is a value: Place returns
// a new board and never touches the receiver.
type Board [Size]Cell

// Errors returned by domain operations.
var (
	ErrOutOfBounds = errors.New("out of bounds")
	ErrOccupied    = errors.New("cell occupied")
	ErrGameOver    = errors.New("game over")
	ErrNoSuchMove  = errors.New("no such move")
)

// Place returns a copy of b with mark written at idx.
func (b Board) Place(idx int, mark Cell) (Board, error) {
	if idx < 0 || idx >= Size {
		return b, ErrOutOfBounds
	}
	if b[idx] != Empty {
		return b, ErrOccupied
	}
	b[idx] = mark
	return b, nil
}

// Full reports whether no empty cell remains.
func (b Board) Full() bool {
	for _, c := range b {
		if c == Empty {
			return false
		}
	}
	return true
}

// MarkFor returns the mark placed on move number n (1-based): X on odd
// moves, O on even ones. Equivalently, the player to move at cursor c is
// MarkFor(c+1).
func MarkFor(n int) Cell {
	if n%2 == 1 {
		return X
	}
	return O
}
