// Package chart renders report sections as text charts for the terminal.
// Three renderers are available:
//
//   - Bars: one pair of bars per table row, current period above previous
//   - Changes: one bar per card showing its percentage change around a zero
//     line, extending left for declines and right for growth
//   - Plot: a line plot of a daily trend
package chart

import (
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/salasarservices/pulse/internal/analyze"
	"github.com/salasarservices/pulse/internal/model"
)

const (
	blockCurrent  = "█"
	blockPrevious = "░"
	maxLabelWidth = 32
)

// Options controls chart rendering.
type Options struct {
	// Width is the total character width available for the chart.
	// If 0, auto-detects from $COLUMNS, falls back to 80.
	Width int
	// MaxBars caps the number of rows or cards drawn. If 0, no limit.
	MaxBars int
}

func (o Options) width() int {
	if o.Width > 0 {
		return o.Width
	}
	return termWidth()
}

// ─── Bars ─────────────────────────────────────────────────────────────────────

// Bars renders rows as paired horizontal bars scaled to the largest value
// across both periods.
//
// Output example:
//
//	Top Content  (█ current  ░ previous)
//	/home          1.2K  ████████████████████
//	                980  ████████████████░
//	/contact        310  █████
//	                  0
func Bars(w io.Writer, title string, rows []model.RowDelta, opts Options) error {
	if len(rows) == 0 {
		return fmt.Errorf("chart %s: no rows to render", title)
	}
	if opts.MaxBars > 0 && len(rows) > opts.MaxBars {
		rows = rows[:opts.MaxBars]
	}

	maxVal := 0.0
	labelWidth, valWidth := 0, 0
	for _, r := range rows {
		maxVal = math.Max(maxVal, math.Max(r.Current, r.Previous))
		labelWidth = max(labelWidth, utf8.RuneCountInString(clip(r.Key, maxLabelWidth)))
		valWidth = max(valWidth, len(formatFloat(r.Current)), len(formatFloat(r.Previous)))
	}

	// Bar area = total width - label - value - separators (4 chars)
	barAreaWidth := max(opts.width()-labelWidth-valWidth-4, 4)

	fmt.Fprintf(w, "%s  (%s current  %s previous)\n", title, blockCurrent, blockPrevious)
	for _, r := range rows {
		fmt.Fprintf(w, "%s  %*s  %s\n", pad(clip(r.Key, maxLabelWidth), labelWidth),
			valWidth, formatFloat(r.Current), bar(r.Current, maxVal, barAreaWidth, blockCurrent))
		fmt.Fprintf(w, "%s  %*s  %s\n", strings.Repeat(" ", labelWidth),
			valWidth, formatFloat(r.Previous), bar(r.Previous, maxVal, barAreaWidth, blockPrevious))
	}
	return nil
}

// bar returns a bar of v scaled against maxVal. Non-zero values always get
// at least one block so they stay visible next to zeros.
func bar(v, maxVal float64, width int, block string) string {
	if v <= 0 || maxVal <= 0 {
		return ""
	}
	n := int(math.Round(v / maxVal * float64(width)))
	n = min(max(n, 1), width)
	return strings.Repeat(block, n)
}

// ─── Changes ──────────────────────────────────────────────────────────────────

// Changes renders the percentage change of each card as a bar around a
// shared zero line. Degraded cards are marked with an asterisk.
//
// Output example:
//
//	Website Performance  % change
//	Total Users     ↑ 12.5%       │██████
//	Bounce Rate      ↓ 4.0%     ██│
func Changes(w io.Writer, title string, cards []model.Card, opts Options) error {
	if len(cards) == 0 {
		return fmt.Errorf("chart %s: no cards to render", title)
	}
	if opts.MaxBars > 0 && len(cards) > opts.MaxBars {
		cards = cards[:opts.MaxBars]
	}

	minVal, maxVal := 0.0, 0.0
	labelWidth, valWidth := 0, 0
	labels := make([]string, len(cards))
	for i, c := range cards {
		minVal = math.Min(minVal, c.Delta.PctChange)
		maxVal = math.Max(maxVal, c.Delta.PctChange)
		labels[i] = clip(c.Title, maxLabelWidth)
		if c.Degraded {
			labels[i] += " *"
		}
		labelWidth = max(labelWidth, utf8.RuneCountInString(labels[i]))
		valWidth = max(valWidth, utf8.RuneCountInString(analyze.FormatPct(c.Delta.PctChange)))
	}

	barAreaWidth := max(opts.width()-labelWidth-valWidth-4, 4)
	valRange := maxVal - minVal
	if valRange == 0 {
		valRange = 1 // flat: every change is zero
	}
	zeroPos := int(math.Round((-minVal / valRange) * float64(barAreaWidth-1)))

	fmt.Fprintf(w, "%s  %% change\n", title)
	for i, c := range cards {
		val := analyze.FormatPct(c.Delta.PctChange)
		fmt.Fprintf(w, "%s  %s%s  %s\n", pad(labels[i], labelWidth),
			strings.Repeat(" ", valWidth-utf8.RuneCountInString(val)), val,
			strings.TrimRight(buildBiBar(c.Delta.PctChange, valRange, barAreaWidth, zeroPos), " "))
	}
	return nil
}

// buildBiBar renders a bar that may extend left (negative) or right (positive)
// from a zero baseline at zeroPos within a field of width barAreaWidth.
func buildBiBar(val, valRange float64, barAreaWidth, zeroPos int) string {
	buf := []rune(strings.Repeat(" ", barAreaWidth))

	if zeroPos >= 0 && zeroPos < barAreaWidth {
		buf[zeroPos] = '│'
	}

	n := int(math.Round(math.Abs(val) / valRange * float64(barAreaWidth-1)))
	if val >= 0 {
		for i := zeroPos + 1; i <= zeroPos+n && i < barAreaWidth; i++ {
			buf[i] = '█'
		}
	} else {
		for i := max(zeroPos-n, 0); i < zeroPos; i++ {
			buf[i] = '█'
		}
	}
	return string(buf)
}

// ─── Utilities ────────────────────────────────────────────────────────────────

// formatFloat formats a value for bar labels: integers as-is below 1000,
// compact K/M notation above, two decimals for fractions.
func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return "."
	}
	abs := math.Abs(v)
	switch {
	case abs >= 1e6:
		return strings.TrimSuffix(strconv.FormatFloat(v/1e6, 'f', 1, 64), ".0") + "M"
	case abs >= 1e3:
		return strings.TrimSuffix(strconv.FormatFloat(v/1e3, 'f', 1, 64), ".0") + "K"
	case v == math.Trunc(v):
		return strconv.FormatFloat(v, 'f', 0, 64)
	default:
		return strconv.FormatFloat(v, 'f', 2, 64)
	}
}

func clip(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-1]) + "…"
}

func pad(s string, n int) string {
	return s + strings.Repeat(" ", n-utf8.RuneCountInString(s))
}

// termWidth returns the terminal width from $COLUMNS, defaulting to 80.
func termWidth() int {
	if cols := os.Getenv("COLUMNS"); cols != "" {
		if n, err := strconv.Atoi(cols); err == nil && n > 20 {
			return n
		}
	}
	return 80
}
