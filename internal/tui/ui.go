// Package tui plays the game in a terminal with tview. It owns one
// domain.Game and redraws every widget from view.Build after each intent.
package tui

import (
	"fmt"
	"log/slog"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/jaminalder/timetravel-tic-tac-toe/internal/domain"
	"github.com/jaminalder/timetravel-tic-tac-toe/internal/view"
)

var (
	cellStyleDefault   = tcell.StyleDefault.Foreground(tcell.ColorWhite).Background(tcell.ColorDarkSlateGray)
	cellStyleHighlight = tcell.StyleDefault.Foreground(tcell.ColorBlack).Background(tcell.ColorGold)
)

// UI is the terminal presentation of a game.
type UI struct {
	app    *tview.Application
	log    *slog.Logger
	game   *domain.Game
	model  view.Model
	root   *tview.Flex
	cells  [domain.Size]*tview.Button
	status *tview.TextView
	moves  *tview.List
	sort   *tview.Button
	// targets maps list rows to the move they jump to; -1 for the current move.
	targets []int
}

// New builds the widgets for a fresh game.
func New(app *tview.Application, log *slog.Logger) *UI {
	ui := &UI{
		app:    app,
		log:    log.With("component", "tui"),
		game:   domain.New(),
		status: tview.NewTextView().SetDynamicColors(false),
		moves:  tview.NewList().ShowSecondaryText(false),
	}

	grid := tview.NewGrid().SetRows(3, 3, 3).SetColumns(7, 7, 7).SetGap(0, 1)
	for i := range ui.cells {
		cell := i
		b := tview.NewButton("").SetSelectedFunc(func() { ui.CellClicked(cell) })
		ui.cells[i] = b
		grid.AddItem(b, i/3, i%3, 1, 1, 0, 0, i == 0)
	}

	ui.sort = tview.NewButton("").SetSelectedFunc(ui.SortToggleClicked)
	ui.moves.SetSelectedFunc(func(row int, _, _ string, _ rune) {
		if row < len(ui.targets) && ui.targets[row] >= 0 {
			ui.HistoryEntryClicked(ui.targets[row])
		}
	})
	ui.moves.SetBorder(true).SetTitle(" Moves ")

	help := tview.NewTextView().SetText("1-9 play  s sort  n new game  tab switch focus  q quit")

	board := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(ui.status, 1, 0, false).
		AddItem(grid, 11, 0, true).
		AddItem(help, 1, 0, false)
	info := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(ui.sort, 1, 0, false).
		AddItem(ui.moves, 0, 1, false)
	ui.root = tview.NewFlex().
		AddItem(board, 25, 0, true).
		AddItem(info, 0, 1, false)
	ui.root.SetBorder(true).SetTitle(" Tic-Tac-Toe ")

	ui.refresh()
	return ui
}

// Root is the primitive to hand to Application.SetRoot.
func (ui *UI) Root() tview.Primitive { return ui.root }

// Model is the view currently shown.
func (ui *UI) Model() view.Model { return ui.model }

// CellClicked plays at cell; illegal clicks are ignored.
func (ui *UI) CellClicked(cell int) {
	if err := ui.game.Play(cell); err != nil {
		ui.log.Debug("click ignored", "cell", cell, "reason", err)
		return
	}
	ui.refresh()
}

// HistoryEntryClicked jumps to move.
func (ui *UI) HistoryEntryClicked(move int) {
	if err := ui.game.JumpTo(move); err != nil {
		ui.log.Error("jump failed", "move", move, "error", err)
		return
	}
	ui.refresh()
}

// SortToggleClicked flips the move list order.
func (ui *UI) SortToggleClicked() {
	ui.game.ToggleSort()
	ui.refresh()
}

// NewGame drops the current game and starts over.
func (ui *UI) NewGame() {
	ui.game = domain.New()
	ui.refresh()
}

// HandleKey maps keyboard shortcuts to intents. Unhandled events are
// returned for the focused widget.
func (ui *UI) HandleKey(ev *tcell.EventKey) *tcell.EventKey {
	switch ev.Key() {
	case tcell.KeyTab:
		if ui.moves.HasFocus() {
			ui.app.SetFocus(ui.cells[0])
		} else {
			ui.app.SetFocus(ui.moves)
		}
		return nil
	case tcell.KeyRune:
	default:
		return ev
	}
	switch r := ev.Rune(); {
	case r >= '1' && r <= '9':
		ui.CellClicked(int(r - '1'))
	case r == 's':
		ui.SortToggleClicked()
	case r == 'n':
		ui.NewGame()
	case r == 'q':
		ui.app.Stop()
	default:
		return ev
	}
	return nil
}

func (ui *UI) refresh() {
	ui.model = view.Build(ui.game)

	for _, row := range ui.model.Rows {
		for _, sq := range row {
			ui.cells[sq.Index].SetLabel(cellLabel(sq)).SetStyle(cellStyle(sq))
		}
	}
	ui.status.SetText(ui.model.Status)
	ui.sort.SetLabel(ui.model.SortLabel)

	current := 0
	ui.moves.Clear()
	ui.targets = ui.targets[:0]
	for i, e := range ui.model.HistoryEntries {
		ui.moves.AddItem(entryText(e), "", 0, nil)
		if e.IsCurrent {
			ui.targets = append(ui.targets, -1)
			current = i
		} else {
			ui.targets = append(ui.targets, *e.Target)
		}
	}
	ui.moves.SetCurrentItem(current)
}

func cellLabel(sq view.Square) string {
	if sq.Mark == "" {
		return " "
	}
	return sq.Mark
}

func cellStyle(sq view.Square) tcell.Style {
	if sq.Highlight {
		return cellStyleHighlight
	}
	return cellStyleDefault
}

func entryText(e view.Entry) string {
	return fmt.Sprintf("%d. %s", e.Number, e.Label)
}
