package batch

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ReportConfig describes the run that produced a report
type ReportConfig struct {
	Model       string `yaml:"model"`
	Manifest    string `yaml:"manifest"`
	Concurrency int    `yaml:"concurrency"`
	Timestamp   string `yaml:"timestamp"`
}

// Summary counts outcomes by status
type Summary struct {
	Total     int `yaml:"total"`
	Succeeded int `yaml:"succeeded"`
	Fallbacks int `yaml:"fallbacks"`
	Failed    int `yaml:"failed"`
}

// Report is the complete batch report
type Report struct {
	Config   ReportConfig `yaml:"config"`
	Summary  Summary      `yaml:"summary"`
	Outcomes []Outcome    `yaml:"outcomes"`
}

// Summarize counts outcomes by status
func Summarize(outcomes []Outcome) Summary {
	s := Summary{Total: len(outcomes)}
	for _, o := range outcomes {
		switch o.Status {
		case StatusOK:
			s.Succeeded++
		case StatusFallback:
			s.Fallbacks++
		default:
			s.Failed++
		}
	}
	return s
}

// SaveReport writes report.yaml into dir and returns its path
func SaveReport(dir string, report Report) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}

	data, err := yaml.Marshal(&report)
	if err != nil {
		return "", fmt.Errorf("failed to marshal report: %w", err)
	}

	path := filepath.Join(dir, "report.yaml")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}

	return path, nil
}
