package redact

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Report summarizes one run. It never contains the redacted text itself.
type Report struct {
	RunID   string       `yaml:"run_id"`
	Input   string       `yaml:"input,omitempty"`
	Output  string       `yaml:"output,omitempty"`
	Policy  string       `yaml:"merge_policy"`
	Started time.Time    `yaml:"started"`
	Elapsed string       `yaml:"elapsed"`
	Pages   []PageReport `yaml:"pages"`
}

// PageReport holds the counts for one page.
type PageReport struct {
	Page       int            `yaml:"page"` // 1-based
	Spans      int            `yaml:"spans"`
	Regions    int            `yaml:"regions"`
	Missed     int            `yaml:"missed,omitempty"`
	Degraded   []string       `yaml:"degraded,omitempty"`
	Categories map[string]int `yaml:"categories,omitempty"`
}

func summarize(plan PagePlan) PageReport {
	pr := PageReport{
		Page:     plan.Page + 1,
		Spans:    len(plan.Spans),
		Regions:  len(plan.Regions),
		Missed:   len(plan.Missed),
		Degraded: plan.Degraded,
	}
	if len(plan.Spans) > 0 {
		pr.Categories = make(map[string]int)
		for _, sp := range plan.Spans {
			pr.Categories[sp.Category]++
		}
	}
	return pr
}

// Totals returns the span and region counts over all pages and the number
// of degraded pages.
func (r *Report) Totals() (spans, regions, degraded int) {
	for _, p := range r.Pages {
		spans += p.Spans
		regions += p.Regions
		if len(p.Degraded) > 0 {
			degraded++
		}
	}
	return spans, regions, degraded
}

// WriteFile writes the report as YAML to path.
func (r *Report) WriteFile(path string) error {
	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write report %s: %w", path, err)
	}
	return nil
}
