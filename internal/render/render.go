// Package render converts Result values into human-readable or machine-parseable
// output. Each format is a separate function; the top-level Render dispatcher
// selects based on the format string.
package render

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/salasarservices/pulse/internal/analyze"
	"github.com/salasarservices/pulse/internal/leads"
	"github.com/salasarservices/pulse/internal/model"
	"github.com/salasarservices/pulse/internal/store"
)

// Format constants matching --format flag values.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatJSONL = "jsonl"
	FormatCSV   = "csv"
	FormatTSV   = "tsv"
	FormatMD    = "md"
	FormatHTML  = "html"
)

// Formats lists every supported format.
var Formats = []string{FormatTable, FormatJSON, FormatJSONL, FormatCSV, FormatTSV, FormatMD, FormatHTML}

// ValidFormat reports whether f is a supported format.
func ValidFormat(f string) bool {
	for _, v := range Formats {
		if v == f {
			return true
		}
	}
	return false
}

// Render writes result to w in the specified format.
func Render(w io.Writer, result *model.Result, format string) error {
	switch format {
	case FormatJSON:
		return renderJSON(w, result)
	case FormatJSONL:
		return renderJSONL(w, result)
	case FormatCSV:
		return renderDelimited(w, result, ',')
	case FormatTSV:
		return renderDelimited(w, result, '\t')
	case FormatMD:
		return renderMarkdown(w, result)
	case FormatHTML:
		return renderHTML(w, result)
	default:
		return renderTable(w, result)
	}
}

// RenderTo writes to stdout by default; if path is non-empty, writes to file.
func RenderTo(path string, result *model.Result, format string) error {
	if path == "" {
		return Render(os.Stdout, result, format)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	defer f.Close()
	return Render(f, result, format)
}

// ─── JSON ─────────────────────────────────────────────────────────────────────

func renderJSON(w io.Writer, result *model.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// ─── JSONL ────────────────────────────────────────────────────────────────────

// renderJSONL writes one record per line: report entries, leads as flat
// objects, or the items of any list payload.
func renderJSONL(w io.Writer, result *model.Result) error {
	enc := json.NewEncoder(w)
	switch d := result.Data.(type) {
	case *model.Report:
		for _, e := range d.Flatten() {
			if err := enc.Encode(e); err != nil {
				return err
			}
		}
		return nil
	case []model.Lead:
		for _, l := range d {
			row := make(map[string]string, len(l.Fields))
			for _, f := range l.Fields {
				row[f.Name] = f.Value
			}
			if err := enc.Encode(row); err != nil {
				return err
			}
		}
		return nil
	case []string:
		for _, s := range d {
			if err := enc.Encode(s); err != nil {
				return err
			}
		}
		return nil
	case []store.ExportRecord:
		for _, r := range d {
			if err := enc.Encode(r); err != nil {
				return err
			}
		}
		return nil
	default:
		return enc.Encode(result.Data)
	}
}

// ─── Table ────────────────────────────────────────────────────────────────────

func renderTable(w io.Writer, result *model.Result) error {
	switch d := result.Data.(type) {
	case *model.Report:
		return renderReportTable(w, d)
	case []model.Lead:
		cols, rows := leadGrid(d)
		tw := newTable(w, cols)
		tw.AppendBulk(rows)
		tw.Render()
		return nil
	case model.LeadSummary:
		tw := newTable(w, []string{"FIELD", "VALUE"})
		tw.AppendBulk(summaryRows(d))
		tw.Render()
		return nil
	case []string:
		tw := newTable(w, []string{"MONTH"})
		for _, s := range d {
			tw.Append([]string{s})
		}
		tw.Render()
		return nil
	case []store.ExportRecord:
		tw := newTable(w, []string{"ID", "MONTH", "LOCATION", "SIZE", "WARNINGS", "CREATED"})
		for _, r := range d {
			tw.Append([]string{
				r.ID[:min(8, len(r.ID))],
				r.Month,
				r.Location,
				strconv.Itoa(r.Bytes),
				strconv.Itoa(r.Warnings),
				r.CreatedAt.Local().Format("2006-01-02 15:04"),
			})
		}
		tw.Render()
		return nil
	case leads.FlushResult:
		fmt.Fprintf(w, "Deleted %d document(s) from %d collection(s): %s\n",
			d.Deleted, len(d.Collections), strings.Join(d.Collections, ", "))
		return nil
	default:
		// Fallback: JSON
		return renderJSON(w, result)
	}
}

func newTable(w io.Writer, headers []string) *tablewriter.Table {
	tw := tablewriter.NewWriter(w)
	tw.SetHeader(headers)
	tw.SetBorder(true)
	tw.SetRowLine(false)
	tw.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	tw.SetAlignment(tablewriter.ALIGN_LEFT)
	tw.SetAutoWrapText(false)
	return tw
}

func renderReportTable(w io.Writer, rep *model.Report) error {
	fmt.Fprintf(w, "%s: %s\n", model.ReportTitle, rep.Month)
	for _, s := range rep.Sections {
		fmt.Fprintf(w, "\n%s  (%s vs %s)\n", strings.ToUpper(s.Title), s.Periods.Current, s.Periods.Previous)

		tw := newTable(w, []string{"METRIC", "CURRENT", "PREVIOUS", "CHANGE"})
		tw.SetColumnAlignment([]int{
			tablewriter.ALIGN_LEFT,
			tablewriter.ALIGN_RIGHT,
			tablewriter.ALIGN_RIGHT,
			tablewriter.ALIGN_RIGHT,
		})
		for _, c := range s.Cards {
			tw.Append(cardCells(c))
		}
		tw.Render()

		for _, t := range s.Tables {
			fmt.Fprintf(w, "\n%s\n", t.Title)
			if len(t.Rows) == 0 {
				fmt.Fprintln(w, "  (no data)")
				continue
			}
			tt := newTable(w, []string{strings.ToUpper(t.KeyLabel), "CURRENT", "PREVIOUS", "CHANGE"})
			tt.SetColumnAlignment([]int{
				tablewriter.ALIGN_LEFT,
				tablewriter.ALIGN_RIGHT,
				tablewriter.ALIGN_RIGHT,
				tablewriter.ALIGN_RIGHT,
			})
			for _, r := range t.Rows {
				tt.Append(rowCells(r, 60))
			}
			tt.Render()
		}

		if len(s.Trends) > 0 {
			fmt.Fprintln(w, "\nTrends")
			tt := newTable(w, trendHeader)
			tt.SetColumnAlignment([]int{
				tablewriter.ALIGN_LEFT,
				tablewriter.ALIGN_LEFT,
				tablewriter.ALIGN_RIGHT,
				tablewriter.ALIGN_RIGHT,
				tablewriter.ALIGN_RIGHT,
				tablewriter.ALIGN_RIGHT,
			})
			for _, tr := range s.Trends {
				tt.Append(trendCells(tr))
			}
			tt.Render()
		}
	}
	return nil
}

// ─── CSV / TSV ────────────────────────────────────────────────────────────────

func renderDelimited(w io.Writer, result *model.Result, sep rune) error {
	cw := csv.NewWriter(w)
	cw.Comma = sep

	switch d := result.Data.(type) {
	case *model.Report:
		_ = cw.Write([]string{"section", "item", "key", "current", "previous", "pct_change", "degraded"})
		for _, s := range d.Sections {
			for _, c := range s.Cards {
				_ = cw.Write([]string{
					s.ID, c.Title, "",
					num(c.Current), num(c.Previous), num(c.PctChange),
					strconv.FormatBool(c.Degraded),
				})
			}
			for _, t := range s.Tables {
				for _, r := range t.Rows {
					_ = cw.Write([]string{
						s.ID, t.Title, r.Key,
						num(r.Current), num(r.Previous), num(r.PctChange),
						strconv.FormatBool(t.Degraded),
					})
				}
			}
			// Trend points are keyed by day and have no comparison.
			for _, tr := range s.Trends {
				for _, p := range tr.Points {
					_ = cw.Write([]string{
						s.ID, tr.Title, p.Date.Format("2006-01-02"),
						num(p.Value), "", "",
						strconv.FormatBool(tr.Degraded),
					})
				}
			}
		}
	case []model.Lead:
		cols, rows := leadGrid(d)
		_ = cw.Write(cols)
		_ = cw.WriteAll(rows)
	case model.LeadSummary:
		_ = cw.Write([]string{"total", "interested", "not_interested", "closed", "total_brokerage"})
		_ = cw.Write([]string{
			strconv.Itoa(d.Total), strconv.Itoa(d.Interested), strconv.Itoa(d.NotInterested),
			strconv.Itoa(d.Closed), num(d.TotalBrokerage),
		})
	case []string:
		_ = cw.Write([]string{"month"})
		for _, s := range d {
			_ = cw.Write([]string{s})
		}
	case []store.ExportRecord:
		_ = cw.Write([]string{"id", "month", "file", "location", "bytes", "warnings", "created_at"})
		for _, r := range d {
			_ = cw.Write([]string{
				r.ID, r.Month, r.File, r.Location,
				strconv.Itoa(r.Bytes), strconv.Itoa(r.Warnings),
				r.CreatedAt.Format(time.RFC3339),
			})
		}
	default:
		// Fallback: serialize as JSON on a single line
		b, _ := json.Marshal(result.Data)
		_ = cw.Write([]string{string(b)})
	}

	cw.Flush()
	return cw.Error()
}

// ─── Markdown ─────────────────────────────────────────────────────────────────

func renderMarkdown(w io.Writer, result *model.Result) error {
	switch d := result.Data.(type) {
	case *model.Report:
		fmt.Fprintf(w, "# %s: %s\n", model.ReportTitle, d.Month)
		for _, s := range d.Sections {
			fmt.Fprintf(w, "\n## %s\n\n_%s vs %s_\n\n", s.Title, s.Periods.Current, s.Periods.Previous)
			fmt.Fprintf(w, "| METRIC | CURRENT | PREVIOUS | CHANGE |\n|----|---:|---:|---:|\n")
			for _, c := range s.Cards {
				cells := cardCells(c)
				cells[0] = mdEscape(cells[0])
				fmt.Fprintf(w, "| %s |\n", strings.Join(cells, " | "))
			}
			for _, t := range s.Tables {
				fmt.Fprintf(w, "\n### %s\n\n| %s | CURRENT | PREVIOUS | CHANGE |\n|----|---:|---:|---:|\n",
					t.Title, strings.ToUpper(t.KeyLabel))
				for _, r := range t.Rows {
					cells := rowCells(r, 0)
					cells[0] = mdEscape(cells[0])
					fmt.Fprintf(w, "| %s |\n", strings.Join(cells, " | "))
				}
			}
			if len(s.Trends) > 0 {
				fmt.Fprintf(w, "\n### Trends\n\n")
				rows := make([][]string, len(s.Trends))
				for i, tr := range s.Trends {
					rows[i] = trendCells(tr)
				}
				writeMDTable(w, trendHeader, rows)
			}
		}
		if len(d.Warnings) > 0 {
			fmt.Fprintln(w)
			for _, warn := range d.Warnings {
				fmt.Fprintf(w, "> ⚠ %s\n", mdEscape(warn))
			}
		}
		return nil
	case []model.Lead:
		cols, rows := leadGrid(d)
		writeMDTable(w, cols, rows)
		return nil
	case model.LeadSummary:
		writeMDTable(w, []string{"FIELD", "VALUE"}, summaryRows(d))
		return nil
	case []string:
		rows := make([][]string, len(d))
		for i, s := range d {
			rows[i] = []string{s}
		}
		writeMDTable(w, []string{"MONTH"}, rows)
		return nil
	default:
		return renderJSON(w, result)
	}
}

func writeMDTable(w io.Writer, headers []string, rows [][]string) {
	sep := make([]string, len(headers))
	for i := range sep {
		sep[i] = "----"
	}
	fmt.Fprintf(w, "| %s |\n|%s|\n", strings.Join(headers, " | "), strings.Join(sep, "|"))
	for _, r := range rows {
		cells := make([]string, len(r))
		for i, c := range r {
			cells[i] = mdEscape(c)
		}
		fmt.Fprintf(w, "| %s |\n", strings.Join(cells, " | "))
	}
}

// ─── Warnings / Stats Footer ─────────────────────────────────────────────────

// PrintFooter writes warnings and stats to w when verbose mode is on.
func PrintFooter(w io.Writer, result *model.Result, verbose bool) {
	for _, warn := range result.Warnings {
		fmt.Fprintf(w, "⚠  %s\n", warn)
	}
	if verbose {
		src := "live"
		switch {
		case result.Stats.CacheHit:
			src = "cache"
		case result.Stats.CacheHits > 0:
			src = fmt.Sprintf("%d cached", result.Stats.CacheHits)
		}
		fmt.Fprintf(w, "\n[%s • %d items • %dms • %s]\n",
			result.GeneratedAt.Format(time.RFC3339),
			result.Stats.Items,
			result.Stats.DurationMs,
			src,
		)
	}
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

func cardCells(c model.Card) []string {
	title := c.Title
	if c.Degraded {
		title += " *"
	}
	return []string{
		title,
		analyze.FormatValue(c.Current, c.Format),
		analyze.FormatValue(c.Previous, c.Format),
		analyze.FormatPct(c.PctChange),
	}
}

// rowCells formats a reconciled row; keys longer than width runes are cut
// when width > 0.
func rowCells(r model.RowDelta, width int) []string {
	key := r.Key
	if r.Label != "" {
		key = r.Label
	}
	if rs := []rune(key); width > 0 && len(rs) > width {
		key = string(rs[:width-3]) + "..."
	}
	return []string{
		key,
		analyze.FormatValue(r.Current, "number"),
		analyze.FormatValue(r.Previous, "number"),
		analyze.FormatPct(r.PctChange),
	}
}

var trendHeader = []string{"TREND", "WINDOW", "TOTAL", "MIN", "MAX", "LAST"}

// trendCells summarizes a daily trend as one table row.
func trendCells(tr model.Trend) []string {
	title := tr.Title
	if tr.Degraded {
		title += " *"
	}
	sum := analyze.Summarize(tr.Points)
	return []string{
		title,
		tr.Period.String(),
		analyze.FormatValue(sum.Total, "number"),
		analyze.FormatValue(sum.Min, "number"),
		analyze.FormatValue(sum.Max, "number"),
		analyze.FormatValue(sum.Last, "number"),
	}
}

// leadGrid lays leads out as display columns and string rows.
func leadGrid(ls []model.Lead) ([]string, [][]string) {
	cols := leads.Columns(ls)
	rows := make([][]string, len(ls))
	for i, l := range ls {
		row := make([]string, len(cols))
		for j, c := range cols {
			row[j] = l.Get(c)
		}
		rows[i] = row
	}
	return cols, rows
}

func summaryRows(s model.LeadSummary) [][]string {
	return [][]string{
		{"Total Leads", strconv.Itoa(s.Total)},
		{model.StatusInterested, strconv.Itoa(s.Interested)},
		{model.StatusNotInterested, strconv.Itoa(s.NotInterested)},
		{model.StatusClosed, strconv.Itoa(s.Closed)},
		{"Brokerage Received", leads.FormatBrokerage(s.TotalBrokerage)},
	}
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func mdEscape(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	s = strings.ReplaceAll(s, "\n", " ")
	return s
}
