package ui

import (
	"fmt"

	"github.com/fenilsonani/agesweep/internal/ui/styles"
)

const (
	// MinTerminalWidth is the minimum recommended terminal width
	MinTerminalWidth = 80
	// MinTerminalHeight is the minimum recommended terminal height
	MinTerminalHeight = 24

	// Lines used by everything around the file list
	reservedLines = 14
	minListHeight = 3
)

// listHeight returns how many file rows fit on a terminal of the given height
func listHeight(terminalHeight int) int {
	h := terminalHeight - reservedLines
	if h < minListHeight {
		h = minListHeight
	}
	return h
}

// sizeWarning returns a warning banner if the terminal is too small
func sizeWarning(width, height int) string {
	if width <= 0 || height <= 0 {
		return ""
	}
	if width >= MinTerminalWidth && height >= MinTerminalHeight {
		return ""
	}

	warning := "Terminal too small! Recommended: 80x24 or larger" +
		styles.DimStyle.Render(" (current: ") +
		styles.WarningStyle.Render(fmt.Sprintf("%dx%d", width, height)) +
		styles.DimStyle.Render(")")
	return styles.WarningStyle.Render(warning) + "\n\n"
}

// truncateMiddle shortens s to maxLen, keeping its start and end
func truncateMiddle(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen < 10 {
		if maxLen < 3 {
			return "..."
		}
		return s[:maxLen-3] + "..."
	}

	side := (maxLen - 3) / 2
	return s[:side] + "..." + s[len(s)-side:]
}
