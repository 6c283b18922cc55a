package chart

import (
	"fmt"
	"io"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/salasarservices/pulse/internal/model"
)

// dayLabel is the x-axis and header date layout for daily trends.
const dayLabel = "Jan 02"

// PlotOptions controls line plot rendering.
type PlotOptions struct {
	// Width is the total character width of the chart, y-axis labels included.
	// If 0, auto-detects from $COLUMNS, falls back to 80.
	Width int
	// Height is the number of rows in the plot body, axes excluded.
	// If 0, defaults to 12.
	Height int
}

// ─── Plot ─────────────────────────────────────────────────────────────────────

// Plot renders a trend as a line plot drawn with box characters.
//
// Output example:
//
//	Views  (Jul 03 to Aug 31)
//	 400┤      ╭─╮
//	    │  ╭───╯ │
//	 100┤──╯     ╰──
//	    └───────────
//	     Jul 03    Aug 31
func Plot(w io.Writer, tr model.Trend, opts PlotOptions) error {
	if tr.Degraded {
		return fmt.Errorf("chart %s: trend unavailable", tr.Title)
	}
	width := opts.Width
	if width <= 0 {
		width = termWidth()
	}
	height := opts.Height
	if height <= 0 {
		height = 12
	}

	minVal, maxVal, n := math.Inf(1), math.Inf(-1), 0
	for _, p := range tr.Points {
		if math.IsNaN(p.Value) {
			continue
		}
		minVal = math.Min(minVal, p.Value)
		maxVal = math.Max(maxVal, p.Value)
		n++
	}
	if n < 2 {
		return fmt.Errorf("chart %s: need at least 2 days of data (got %d)", tr.Title, n)
	}

	ticks := yTicks(minVal, maxVal, height)
	labelWidth := 0
	for _, t := range ticks {
		labelWidth = max(labelWidth, len(formatFloat(t)))
	}
	plotWidth := max(width-labelWidth-1, 10)

	cols := sampleCols(tr.Points, plotWidth)
	grid := buildGrid(cols, minVal, maxVal, height)

	first, last := tr.Points[0].Date, tr.Points[len(tr.Points)-1].Date
	fmt.Fprintf(w, "%s  (%s to %s)\n", tr.Title, first.Format(dayLabel), last.Format(dayLabel))

	for row := range height {
		label := ""
		for _, t := range ticks {
			if math.Abs(rowForValue(t, minVal, maxVal, height)-float64(row)) < 0.5 {
				label = formatFloat(t)
				break
			}
		}
		axis := "│"
		switch {
		case label != "" && minVal == 0 && row == height-1:
			axis = "┼"
		case label != "":
			axis = "┤"
		}
		fmt.Fprintf(w, "%*s%s%s\n", labelWidth, label, axis, strings.TrimRight(string(grid[row]), " "))
	}

	fmt.Fprintf(w, "%s└%s\n", strings.Repeat(" ", labelWidth), strings.Repeat("─", plotWidth))
	fmt.Fprintf(w, "%s %s\n", strings.Repeat(" ", labelWidth), strings.TrimRight(xAxisLabels(tr.Points, plotWidth), " "))
	return nil
}

// ─── Grid building ────────────────────────────────────────────────────────────

// sampleCols maps points onto n columns. When there are more points than
// columns each column averages its bucket; otherwise points repeat across
// the columns they cover. A column whose points are all NaN is NaN.
func sampleCols(points []model.Point, n int) []float64 {
	total := len(points)
	cols := make([]float64, n)
	for col := range n {
		lo := col * total / n
		hi := max((col+1)*total/n-1, lo)
		sum, count := 0.0, 0
		for i := lo; i <= min(hi, total-1); i++ {
			if !math.IsNaN(points[i].Value) {
				sum += points[i].Value
				count++
			}
		}
		if count == 0 {
			cols[col] = math.NaN()
			continue
		}
		cols[col] = sum / float64(count)
	}
	return cols
}

// rowForValue returns the fractional row of v, 0 being the top (maxVal).
func rowForValue(v, minVal, maxVal float64, height int) float64 {
	if maxVal == minVal {
		return float64(height / 2)
	}
	return (maxVal - v) / (maxVal - minVal) * float64(height-1)
}

// buildGrid draws cols into a height by len(cols) grid, joining adjacent
// columns with box characters.
func buildGrid(cols []float64, minVal, maxVal float64, height int) [][]rune {
	grid := make([][]rune, height)
	for r := range grid {
		grid[r] = []rune(strings.Repeat(" ", len(cols)))
	}

	const gap = -1
	rowOf := make([]int, len(cols))
	for col, v := range cols {
		if math.IsNaN(v) {
			rowOf[col] = gap
			continue
		}
		r := int(math.Round(rowForValue(v, minVal, maxVal, height)))
		rowOf[col] = min(max(r, 0), height-1)
	}
	at := func(col int) int {
		if col < 0 || col >= len(cols) {
			return gap
		}
		return rowOf[col]
	}

	for col, r := range rowOf {
		if r == gap {
			continue
		}
		prev := at(col - 1)
		switch {
		case prev == gap && at(col+1) == gap:
			grid[r][col] = '·'
			continue
		case prev == gap || prev == r:
			grid[r][col] = '─'
			continue
		case prev > r: // rising
			grid[prev][col] = '╯'
			grid[r][col] = '╭'
		default:
			grid[prev][col] = '╮'
			grid[r][col] = '╰'
		}
		for fill := min(r, prev) + 1; fill < max(r, prev); fill++ {
			grid[fill][col] = '│'
		}
	}
	return grid
}

// ─── Axis helpers ─────────────────────────────────────────────────────────────

// yTicks returns evenly spaced tick values: 4, or 3 on short plots.
func yTicks(minVal, maxVal float64, height int) []float64 {
	if maxVal == minVal {
		return []float64{minVal}
	}
	n := 4
	if height <= 6 {
		n = 3
	}
	ticks := make([]float64, n)
	for i := range ticks {
		ticks[i] = minVal + float64(i)*(maxVal-minVal)/float64(n-1)
	}
	return ticks
}

// xAxisLabels places the first, middle and last dates under the plot.
func xAxisLabels(points []model.Point, plotWidth int) string {
	if len(points) == 0 {
		return ""
	}
	buf := []rune(strings.Repeat(" ", plotWidth))
	writeAt := func(pos int, s string) {
		for i, ch := range []rune(s) {
			if pos+i >= 0 && pos+i < len(buf) {
				buf[pos+i] = ch
			}
		}
	}
	start := points[0].Date.Format(dayLabel)
	mid := points[len(points)/2].Date.Format(dayLabel)
	end := points[len(points)-1].Date.Format(dayLabel)

	writeAt(0, start)
	if plotWidth >= 3*utf8.RuneCountInString(mid)+2 {
		writeAt(plotWidth/2-utf8.RuneCountInString(mid)/2, mid)
	}
	writeAt(plotWidth-utf8.RuneCountInString(end), end)
	return string(buf)
}
