package ui

import (
	"github.com/mattn/go-runewidth"
)

// truncate shortens s to max visual cells, appending an ellipsis when
// anything was cut. Wide characters are measured correctly.
func truncate(s string, maxWidth int) string {
	if maxWidth <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= maxWidth {
		return s
	}
	if maxWidth == 1 {
		return "…"
	}
	return runewidth.Truncate(s, maxWidth-1, "") + "…"
}
