// Package view derives what a presentation layer draws from a game: the
// cells, the status line, the winning line and the move list.
package view

import (
	"strconv"

	"github.com/jaminalder/timetravel-tic-tac-toe/internal/domain"
)

// SortDirection orders the move list.
type SortDirection string

const (
	Ascending  SortDirection = "ascending"
	Descending SortDirection = "descending"
)

// Label is the caption of the sort toggle: the direction currently applied.
func (d SortDirection) Label() string {
	if d == Descending {
		return "Descending"
	}
	return "Ascending"
}

// Entry is one line of the move list.
type Entry struct {
	Label     string `json:"label"`
	IsCurrent bool   `json:"isCurrent"`
	// Target is the move to jump to, nil for the current move.
	Target *int `json:"targetMoveIndex"`
	// Number is the list numbering shown next to the entry.
	Number int `json:"number"`
}

// Square is one cell as a grid renderer needs it.
type Square struct {
	Index     int
	Mark      string
	Highlight bool
}

// Model is the complete, immutable rendering input for one game state.
type Model struct {
	Cells          [domain.Size]string `json:"cells"`
	Status         string              `json:"status"`
	Highlighted    []int               `json:"highlighted"`
	HistoryEntries []Entry             `json:"historyEntries"`
	SortDirection  SortDirection       `json:"sortDirection"`

	Rows      [3][3]Square `json:"-"`
	SortLabel string       `json:"-"`
	// Ascending and Start mirror SortDirection for an <ol start=... reversed>.
	Ascending bool `json:"-"`
	Start     int  `json:"-"`
}

// Build derives the model for g. It only reads g.
func Build(g *domain.Game) Model {
	cur := g.Current()
	m := Model{
		Status:      g.Status(),
		Highlighted: g.Highlighted(),
		Ascending:   g.Ascending(),
	}
	if m.Highlighted == nil {
		m.Highlighted = []int{}
	}

	lit := make(map[int]bool, len(m.Highlighted))
	for _, i := range m.Highlighted {
		lit[i] = true
	}
	for i, c := range cur {
		m.Cells[i] = c.String()
		m.Rows[i/3][i%3] = Square{Index: i, Mark: c.String(), Highlight: lit[i]}
	}

	m.SortDirection = Ascending
	if !g.Ascending() {
		m.SortDirection = Descending
	}
	m.SortLabel = m.SortDirection.Label()
	m.HistoryEntries = Order(Entries(g.Len(), g.Cursor()), m.SortDirection)
	if m.SortDirection == Descending {
		m.Start = g.Len() - 1
	}
	return m
}

// Entries labels moves 0..n-1 in index order, numbered from 0.
func Entries(n, cursor int) []Entry {
	out := make([]Entry, n)
	for move := range out {
		target := move
		e := Entry{Number: move}
		switch {
		case move == cursor:
			e.Label = "You are at move #" + strconv.Itoa(move)
			e.IsCurrent = true
		case move > 0:
			e.Label = "Go to move #" + strconv.Itoa(move)
			e.Target = &target
		default:
			e.Label = "Go to game start"
			e.Target = &target
		}
		out[move] = e
	}
	return out
}

// Order returns the entries in display order. Descending reverses the
// list; numbering then counts down from len-1, which the entries already
// carry since Number is their move index.
func Order(entries []Entry, dir SortDirection) []Entry {
	out := make([]Entry, len(entries))
	copy(out, entries)
	if dir != Descending {
		return out
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}
