// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package report

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
)

var (
	headerRowStyle = lipgloss.NewStyle().Reverse(true).
			Padding(0, 2, 0, 2).Align(lipgloss.Center)
	oddRowStyle = lipgloss.NewStyle().Faint(false).
			PaddingLeft(1).PaddingRight(1)
	evenRowStyle = lipgloss.NewStyle().Faint(true).
			PaddingLeft(1).PaddingRight(1)
	bestRowStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "2", Dark: "10"}).
			Bold(true).
			PaddingLeft(1).PaddingRight(1)
)

// bestSeries returns the index of the series with the highest mean test accuracy.
func (r *Report) bestSeries() int {
	best := -1
	for ii, s := range r.Series {
		if best < 0 || s.Test.Mean > r.Series[best].Test.Mean {
			best = ii
		}
	}
	return best
}

// Table renders one row per series, highlighting the best test accuracy.
func (r *Report) Table() string {
	best := r.bestSeries()
	alignments := []lipgloss.Position{lipgloss.Left, lipgloss.Right}
	table := lgtable.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("99"))).
		StyleFunc(func(row, col int) (s lipgloss.Style) {
			switch {
			case row < 0:
				return headerRowStyle
			case row == best:
				s = bestRowStyle
			case row%2 == 0:
				s = oddRowStyle
			default:
				s = evenRowStyle
			}
			alignment := alignments[len(alignments)-1]
			if col < len(alignments) {
				alignment = alignments[col]
			}
			return s.Align(alignment)
		}).
		Headers(r.Experiment, "Best Epoch", "Best Val. Acc.", "Test Acc.", "Parameters", "Reps")
	for _, s := range r.Series {
		table.Row(s.Name,
			fmt.Sprintf("%d", s.BestEpoch),
			fmt.Sprintf("%.2f%%", 100*s.BestAccuracy),
			fmt.Sprintf("%.2f%% ± %.2f", 100*s.Test.Mean, 100*s.Test.Std),
			humanize.Comma(int64(s.NumParameters)),
			fmt.Sprintf("%d", s.Repetitions))
	}
	return table.Render()
}
