// Package export renders an assembled report as a PDF document, archives it
// to S3 when configured, and records every export in the local store.
package export

import (
	"fmt"
	"strings"

	"github.com/johnfercher/maroto/pkg/color"
	"github.com/johnfercher/maroto/pkg/consts"
	"github.com/johnfercher/maroto/pkg/pdf"
	"github.com/johnfercher/maroto/pkg/props"

	"github.com/salasarservices/pulse/internal/analyze"
	"github.com/salasarservices/pulse/internal/leads"
	"github.com/salasarservices/pulse/internal/model"
)

var (
	darkGray   = color.Color{Red: 38, Green: 38, Blue: 34}
	mediumGray = color.Color{Red: 121, Green: 119, Blue: 109}
	green      = color.Color{Red: 46, Green: 204, Blue: 64}
	red        = color.Color{Red: 255, Green: 65, Blue: 54}
	amber      = color.Color{Red: 176, Green: 120, Blue: 0}
)

// FileName returns the download name of the report for a month label.
func FileName(label string) string {
	return fmt.Sprintf("Salasar-Services-Report-%s.pdf", label)
}

// PDF renders rep, and the lead summary when it is non-nil, as an A4
// document.
func PDF(rep *model.Report, summary *model.LeadSummary) ([]byte, error) {
	if rep == nil {
		return nil, fmt.Errorf("export: no report")
	}
	m := pdf.NewMaroto(consts.Portrait, consts.A4)
	m.SetPageMargins(20, 20, 20)

	heading(m, rep)
	for _, s := range rep.Sections {
		section(m, s)
	}
	if summary != nil {
		leadSummary(m, *summary)
	}
	if len(rep.Warnings) > 0 {
		warnings(m, rep.Warnings)
	}

	buf, err := m.Output()
	if err != nil {
		return nil, fmt.Errorf("rendering pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func heading(m pdf.Maroto, rep *model.Report) {
	m.Row(12, func() {
		m.Col(12, func() {
			m.Text(model.ReportTitle, props.Text{Size: 16, Style: consts.Bold, Color: darkGray})
		})
	})
	m.Row(6, func() {
		m.Col(12, func() {
			m.Text("Report month: "+rep.Month, props.Text{Size: 10, Color: darkGray})
		})
	})
	m.Row(5, func() {
		m.Col(12, func() {
			p := rep.Periods.Month
			m.Text(fmt.Sprintf("Monthly sections: %s compared with %s", p.Current, p.Previous),
				props.Text{Size: 8, Color: mediumGray})
		})
	})
	m.Row(5, func() {
		m.Col(12, func() {
			p := rep.Periods.Trailing
			m.Text(fmt.Sprintf("Social sections: last 28 days %s compared with %s", p.Current, p.Previous),
				props.Text{Size: 8, Color: mediumGray})
		})
	})
	m.Line(6)
}

func section(m pdf.Maroto, s model.Section) {
	m.Row(10, func() {
		m.Col(12, func() {
			m.Text(s.Title, props.Text{Top: 2, Size: 13, Style: consts.Bold, Color: darkGray})
		})
	})

	m.Row(6, func() {
		header := props.Text{Size: 8, Style: consts.Bold, Color: darkGray}
		right := header
		right.Align = consts.Right
		m.Col(6, func() { m.Text("Metric", header) })
		m.Col(2, func() { m.Text("Current", right) })
		m.Col(2, func() { m.Text("Previous", right) })
		m.Col(2, func() { m.Text("Change", right) })
	})
	for _, c := range s.Cards {
		c := c
		m.Row(6, func() {
			text := props.Text{Size: 9, Color: darkGray}
			right := text
			right.Align = consts.Right
			delta := right
			delta.Color = changeColor(c.PctChange)

			title := c.Title
			if c.Degraded {
				title += " *"
			}
			m.Col(6, func() { m.Text(title, text) })
			m.Col(2, func() { m.Text(analyze.FormatValue(c.Current, c.Format), right) })
			m.Col(2, func() { m.Text(analyze.FormatValue(c.Previous, c.Format), right) })
			m.Col(2, func() { m.Text(pdfText(analyze.FormatPct(c.PctChange)), delta) })
		})
	}

	for _, t := range s.Tables {
		table(m, t)
	}
	if len(s.Trends) > 0 {
		trends(m, s.Trends)
	}
	m.Row(4, func() {})
}

func table(m pdf.Maroto, t model.Table) {
	m.Row(9, func() {
		m.Col(12, func() {
			m.Text(t.Title, props.Text{Top: 3, Size: 10, Style: consts.Bold, Color: darkGray})
		})
	})
	if len(t.Rows) == 0 {
		m.Row(5, func() {
			m.Col(12, func() {
				m.Text("No data for this period.", props.Text{Size: 8, Style: consts.Italic, Color: mediumGray})
			})
		})
		return
	}

	header := []string{t.KeyLabel, "Current", "Previous", "Change"}
	contents := make([][]string, len(t.Rows))
	for i, r := range t.Rows {
		key := r.Key
		if r.Label != "" {
			key = r.Label
		}
		contents[i] = []string{
			key,
			analyze.FormatValue(r.Current, "number"),
			analyze.FormatValue(r.Previous, "number"),
			pdfText(analyze.FormatPct(r.PctChange)),
		}
	}
	grid := []uint{6, 2, 2, 2}
	stripe := color.Color{Red: 245, Green: 245, Blue: 245}
	m.TableList(header, contents, props.TableList{
		HeaderProp:           props.TableListContent{Size: 8, Style: consts.Bold, GridSizes: grid},
		ContentProp:          props.TableListContent{Size: 8, GridSizes: grid},
		Align:                consts.Left,
		AlternatedBackground: &stripe,
		HeaderContentSpace:   1,
	})
}

// trends lists each daily trend as one summary line; the document has no
// room for the plots.
func trends(m pdf.Maroto, ts []model.Trend) {
	m.Row(9, func() {
		m.Col(12, func() {
			m.Text("Daily Trends", props.Text{Top: 3, Size: 10, Style: consts.Bold, Color: darkGray})
		})
	})
	header := []string{"Trend", "Window", "Total", "Peak Day", "Last Day"}
	contents := make([][]string, len(ts))
	for i, tr := range ts {
		title := tr.Title
		if tr.Degraded {
			title += " *"
		}
		sum := analyze.Summarize(tr.Points)
		contents[i] = []string{
			title,
			tr.Period.String(),
			analyze.FormatValue(sum.Total, "number"),
			analyze.FormatValue(sum.Max, "number"),
			analyze.FormatValue(sum.Last, "number"),
		}
	}
	grid := []uint{3, 3, 2, 2, 2}
	m.TableList(header, contents, props.TableList{
		HeaderProp:         props.TableListContent{Size: 8, Style: consts.Bold, GridSizes: grid},
		ContentProp:        props.TableListContent{Size: 8, GridSizes: grid},
		Align:              consts.Left,
		HeaderContentSpace: 1,
	})
}

func leadSummary(m pdf.Maroto, s model.LeadSummary) {
	m.Row(10, func() {
		m.Col(12, func() {
			m.Text("Leads", props.Text{Top: 2, Size: 13, Style: consts.Bold, Color: darkGray})
		})
	})
	lines := []struct {
		label, value string
		color        color.Color
	}{
		{"Total Leads", fmt.Sprint(s.Total), darkGray},
		{model.StatusInterested, fmt.Sprint(s.Interested), amber},
		{model.StatusNotInterested, fmt.Sprint(s.NotInterested), red},
		{model.StatusClosed, fmt.Sprint(s.Closed), green},
		{"Brokerage Received", pdfText(leads.FormatBrokerage(s.TotalBrokerage)), darkGray},
	}
	for _, l := range lines {
		l := l
		m.Row(6, func() {
			m.Col(6, func() {
				m.Text(l.label, props.Text{Size: 9, Color: darkGray})
			})
			m.Col(6, func() {
				m.Text(l.value, props.Text{Size: 9, Style: consts.Bold, Color: l.color, Align: consts.Right})
			})
		})
	}
}

func warnings(m pdf.Maroto, ws []string) {
	m.Row(9, func() {
		m.Col(12, func() {
			m.Text("* Some values could not be fetched and are shown as 0:",
				props.Text{Top: 3, Size: 8, Style: consts.Italic, Color: mediumGray})
		})
	})
	for _, w := range ws {
		w := w
		m.Row(4, func() {
			m.Col(12, func() {
				m.Text(w, props.Text{Size: 7, Color: mediumGray})
			})
		})
	}
}

func changeColor(pct float64) color.Color {
	if analyze.Color(pct) == analyze.ColorUp {
		return green
	}
	return red
}

// pdfText replaces glyphs the built-in PDF fonts cannot draw.
func pdfText(s string) string {
	return strings.NewReplacer("₹", "Rs.", "↑", "+", "↓", "-").Replace(s)
}
