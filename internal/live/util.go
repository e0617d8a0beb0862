package live

import (
	"sort"

	"github.com/raykavin/marketcascade/internal/core"
)

// sortedSymbols keeps position iteration deterministic across ticks.
func sortedSymbols(positions map[string]*core.Position) []string {
	out := make([]string, 0, len(positions))
	for sym := range positions {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}
