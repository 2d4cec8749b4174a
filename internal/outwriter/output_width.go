package outwriter

import (
	"os"

	"github.com/huangsam/stackreport/internal/contract"
	"golang.org/x/term"
)

// Bounds of the key column in table output.
const (
	minKeyWidth = 15
	maxKeyWidth = 70
)

// GetMaxTableKeyWidth calculates the maximum width for stack and dependency keys in
// table output, based on the terminal width and the fixed columns next to the key.
func GetMaxTableKeyWidth(cfg *contract.Config, fixedColumns int) int {
	termWidth := cfg.Width
	if termWidth == 0 {
		detectedWidth, _, err := term.GetSize(int(os.Stdout.Fd()))
		if err != nil || detectedWidth <= 0 {
			termWidth = 80 // Conservative default for narrow terminals and CI
		} else {
			termWidth = detectedWidth
		}
	}

	// Rank/Count columns plus borders and padding
	available := termWidth - fixedColumns - 20
	if available < minKeyWidth {
		return minKeyWidth
	}
	if available > maxKeyWidth {
		return maxKeyWidth
	}
	return available
}
