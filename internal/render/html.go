package render

import (
	"embed"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/osteele/liquid"

	"github.com/salasarservices/pulse/internal/analyze"
	"github.com/salasarservices/pulse/internal/leads"
	"github.com/salasarservices/pulse/internal/model"
)

//go:embed templates/*.liquid
var templateFS embed.FS

var (
	engine    = liquid.NewEngine()
	templates sync.Map // name -> *liquid.Template
)

// loadTemplate returns the parsed embedded template name, parsing it once.
func loadTemplate(name string) (*liquid.Template, error) {
	if t, ok := templates.Load(name); ok {
		return t.(*liquid.Template), nil
	}
	src, err := templateFS.ReadFile("templates/" + name + ".liquid")
	if err != nil {
		return nil, fmt.Errorf("loading template %s: %w", name, err)
	}
	t, perr := engine.ParseTemplate(src)
	if perr != nil {
		return nil, fmt.Errorf("parsing template %s: %w", name, perr)
	}
	templates.Store(name, t)
	return t, nil
}

func renderHTML(w io.Writer, result *model.Result) error {
	var (
		name     string
		bindings liquid.Bindings
	)
	switch d := result.Data.(type) {
	case *model.Report:
		name, bindings = "report", reportBindings(d, result.GeneratedAt)
	case []model.Lead:
		name, bindings = "leads", leadBindings(d)
	default:
		return renderJSON(w, result)
	}

	t, err := loadTemplate(name)
	if err != nil {
		return err
	}
	out, rerr := t.Render(bindings)
	if rerr != nil {
		return fmt.Errorf("rendering %s: %w", name, rerr)
	}
	_, err = w.Write(out)
	return err
}

// HTML renders a report page.
func HTML(w io.Writer, rep *model.Report) error {
	return renderHTML(w, &model.Result{Kind: model.KindReport, GeneratedAt: time.Now(), Data: rep})
}

func reportBindings(rep *model.Report, generated time.Time) liquid.Bindings {
	sections := make([]map[string]interface{}, 0, len(rep.Sections))
	for _, s := range rep.Sections {
		cards := make([]map[string]interface{}, 0, len(s.Cards))
		for _, c := range s.Cards {
			cards = append(cards, map[string]interface{}{
				"title":        c.Title,
				"value":        analyze.FormatValue(c.Current, c.Format),
				"previous":     analyze.FormatValue(c.Previous, c.Format),
				"change":       analyze.FormatPct(c.PctChange),
				"change_color": c.DeltaColor,
				"color":        c.Color,
				"tooltip":      c.Tooltip,
				"degraded":     c.Degraded,
			})
		}
		tables := make([]map[string]interface{}, 0, len(s.Tables))
		for _, t := range s.Tables {
			rows := make([]map[string]interface{}, 0, len(t.Rows))
			for _, r := range t.Rows {
				cells := rowCells(r, 0)
				rows = append(rows, map[string]interface{}{
					"key":          cells[0],
					"current":      cells[1],
					"previous":     cells[2],
					"change":       cells[3],
					"change_color": analyze.Color(r.PctChange),
				})
			}
			tables = append(tables, map[string]interface{}{
				"title":     t.Title,
				"key_label": t.KeyLabel,
				"rows":      rows,
			})
		}
		trends := make([]map[string]interface{}, 0, len(s.Trends))
		for _, tr := range s.Trends {
			cells := trendCells(tr)
			color := tr.Color
			if color == "" {
				color = defaultTrendColor
			}
			trends = append(trends, map[string]interface{}{
				"title":    tr.Title,
				"window":   cells[1],
				"total":    cells[2],
				"max":      cells[4],
				"last":     cells[5],
				"color":    color,
				"points":   polyline(tr.Points, sparkWidth, sparkHeight),
				"degraded": tr.Degraded,
			})
		}
		sections = append(sections, map[string]interface{}{
			"id":       s.ID,
			"title":    s.Title,
			"current":  s.Periods.Current.String(),
			"previous": s.Periods.Previous.String(),
			"cards":    cards,
			"tables":   tables,
			"trends":   trends,
		})
	}
	warnings := rep.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	return liquid.Bindings{
		"title":     model.ReportTitle,
		"month":     rep.Month,
		"generated": generated.Format("2006-01-02 15:04"),
		"sections":  sections,
		"warnings":  warnings,
	}
}

// Trend sparkline geometry, in SVG user units.
const (
	sparkWidth        = 480
	sparkHeight       = 80
	defaultTrendColor = "#4a90d9"
)

// polyline scales points into a width by height box as SVG polyline
// coordinates, the first day at the left and the largest value at the top.
// Fewer than two points give an empty string.
func polyline(points []model.Point, width, height float64) string {
	if len(points) < 2 {
		return ""
	}
	sum := analyze.Summarize(points)
	span := sum.Max - sum.Min
	var b strings.Builder
	for i, p := range points {
		v := p.Value
		if math.IsNaN(v) {
			v = 0
		}
		y := height / 2
		if span > 0 {
			y = height - (v-sum.Min)/span*height
		}
		x := float64(i) / float64(len(points)-1) * width
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(strconv.FormatFloat(x, 'f', 1, 64))
		b.WriteByte(',')
		b.WriteString(strconv.FormatFloat(y, 'f', 1, 64))
	}
	return b.String()
}

func leadBindings(ls []model.Lead) liquid.Bindings {
	cols := leads.Columns(ls)
	months := leads.MonthColors(ls)
	rows := make([]map[string]interface{}, 0, len(ls))
	for _, l := range ls {
		cells := make([]map[string]interface{}, len(cols))
		for i, c := range cols {
			color := ""
			if c == leads.FieldStatus {
				color = leads.StatusColor(l.Status)
			}
			cells[i] = map[string]interface{}{"value": l.Get(c), "color": color}
		}
		bg := months[l.Month]
		if bg == "" {
			bg = "transparent"
		}
		rows = append(rows, map[string]interface{}{"background": bg, "cells": cells})
	}
	s := leads.Summarize(ls)
	return liquid.Bindings{
		"columns": cols,
		"leads":   rows,
		"summary": map[string]interface{}{
			"total":          s.Total,
			"interested":     s.Interested,
			"not_interested": s.NotInterested,
			"closed":         s.Closed,
			"brokerage":      leads.FormatBrokerage(s.TotalBrokerage),
		},
	}
}
