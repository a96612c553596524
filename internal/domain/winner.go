package domain

// Line is one of the fixed triples of cell indices that wins the game.
type Line [3]int

// Lines lists every winning triple. The order is significant: Evaluate
// reports the first complete line in this order.
var Lines = [8]Line{
	// rows
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8},
	// cols
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8},
	// diags
	{0, 4, 8}, {2, 4, 6},
}

// WinResult is the mark that completed a line and the line itself.
type WinResult struct {
	Mark Cell
	Line Line
}

// Evaluate returns the first line of three equal non-empty cells.
func Evaluate(b Board) (WinResult, bool) {
	for _, ln := range Lines {
		a := b[ln[0]]
		if a != Empty && a == b[ln[1]] && a == b[ln[2]] {
			return WinResult{Mark: a, Line: ln}, true
		}
	}
	return WinResult{}, false
}
