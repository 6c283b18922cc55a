package report

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/salasarservices/pulse/internal/period"
)

// Table defaults: current rows are cut to the top 5; previous rows are
// fetched deeper so current keys that ranked lower last period still match.
const (
	DefaultTopN          = 5
	DefaultPreviousLimit = 20
)

//go:embed definitions.yaml
var builtinDefinitions []byte

// Definitions is the declarative report layout.
type Definitions struct {
	Sections []SectionDef `yaml:"sections"`
}

// SectionDef is one dashboard page.
type SectionDef struct {
	ID          string             `yaml:"id"`
	Title       string             `yaml:"title"`
	Granularity period.Granularity `yaml:"granularity"`
	Cards       []CardDef          `yaml:"cards"`
	Tables      []TableDef         `yaml:"tables"`
	Trends      []TrendDef         `yaml:"trends"`
}

// CardDef is one headline metric.
type CardDef struct {
	ID      string `yaml:"id"`
	Title   string `yaml:"title"`
	Source  string `yaml:"source"`
	Metric  string `yaml:"metric"`
	Format  string `yaml:"format"` // number (default) | percent
	Color   string `yaml:"color"`
	Tooltip string `yaml:"tooltip"`
}

// TableDef is one reconciled top-N breakdown.
type TableDef struct {
	ID            string `yaml:"id"`
	Title         string `yaml:"title"`
	Source        string `yaml:"source"`
	Dimension     string `yaml:"dimension"`
	Metric        string `yaml:"metric"`
	KeyLabel      string `yaml:"key_label"`
	TopN          int    `yaml:"top_n"`
	PreviousLimit int    `yaml:"previous_limit"`
}

// TrendDef is one daily series drawn over the days ending with the current
// period.
type TrendDef struct {
	ID     string `yaml:"id"`
	Title  string `yaml:"title"`
	Source string `yaml:"source"`
	Metric string `yaml:"metric"`
	Color  string `yaml:"color"`
	Days   int    `yaml:"days"`
}

// LoadDefinitions reads the layout from path, or the built-in layout when
// path is empty.
func LoadDefinitions(path string) (*Definitions, error) {
	data := builtinDefinitions
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading definitions: %w", err)
		}
		data = b
	}
	return ParseDefinitions(data)
}

// ParseDefinitions decodes and validates a layout, filling defaults.
func ParseDefinitions(data []byte) (*Definitions, error) {
	var d Definitions
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parsing definitions: %w", err)
	}
	if len(d.Sections) == 0 {
		return nil, fmt.Errorf("definitions: no sections")
	}

	seen := make(map[string]bool)
	for i := range d.Sections {
		s := &d.Sections[i]
		if s.ID == "" {
			return nil, fmt.Errorf("definitions: section %d has no id", i+1)
		}
		if seen[s.ID] {
			return nil, fmt.Errorf("definitions: duplicate section %q", s.ID)
		}
		seen[s.ID] = true
		if s.Title == "" {
			s.Title = s.ID
		}
		g, err := period.ParseGranularity(string(s.Granularity))
		if err != nil {
			return nil, fmt.Errorf("definitions: section %q: %w", s.ID, err)
		}
		s.Granularity = g

		for j := range s.Cards {
			c := &s.Cards[j]
			if c.Source == "" || c.Metric == "" {
				return nil, fmt.Errorf("definitions: section %q card %d: source and metric are required", s.ID, j+1)
			}
			if c.ID == "" {
				c.ID = c.Metric
			}
			if c.Title == "" {
				c.Title = c.Metric
			}
			switch c.Format {
			case "":
				c.Format = "number"
			case "number", "percent":
			default:
				return nil, fmt.Errorf("definitions: card %s.%s: unknown format %q", s.ID, c.ID, c.Format)
			}
		}

		for j := range s.Tables {
			t := &s.Tables[j]
			if t.Source == "" || t.Metric == "" || t.Dimension == "" {
				return nil, fmt.Errorf("definitions: section %q table %d: source, dimension and metric are required", s.ID, j+1)
			}
			if t.ID == "" {
				t.ID = t.Dimension
			}
			if t.Title == "" {
				t.Title = t.Dimension
			}
			if t.KeyLabel == "" {
				t.KeyLabel = t.Dimension
			}
			if t.TopN <= 0 {
				t.TopN = DefaultTopN
			}
			if t.PreviousLimit <= 0 {
				t.PreviousLimit = DefaultPreviousLimit
			}
			if t.PreviousLimit < t.TopN {
				return nil, fmt.Errorf("definitions: table %s.%s: previous_limit %d is below top_n %d",
					s.ID, t.ID, t.PreviousLimit, t.TopN)
			}
		}

		for j := range s.Trends {
			t := &s.Trends[j]
			if t.Source == "" || t.Metric == "" {
				return nil, fmt.Errorf("definitions: section %q trend %d: source and metric are required", s.ID, j+1)
			}
			if t.ID == "" {
				t.ID = t.Metric
			}
			if t.Title == "" {
				t.Title = t.Metric
			}
			if t.Days <= 0 {
				t.Days = period.TrendDays
			}
		}
	}
	return &d, nil
}

// SectionIDs lists section ids in layout order.
func (d *Definitions) SectionIDs() []string {
	ids := make([]string, len(d.Sections))
	for i, s := range d.Sections {
		ids[i] = s.ID
	}
	return ids
}

// Section returns the section with id.
func (d *Definitions) Section(id string) (SectionDef, bool) {
	for _, s := range d.Sections {
		if s.ID == id {
			return s, true
		}
	}
	return SectionDef{}, false
}
