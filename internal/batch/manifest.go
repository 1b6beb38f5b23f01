// Package batch runs try-ons for a manifest of local image files.
package batch

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/parquet-go/parquet-go"
	"gopkg.in/yaml.v3"
)

// Job is one try-on: a person photo and its clothing photos, as file paths.
type Job struct {
	ID       string   `json:"id" yaml:"id" parquet:"id"`
	Person   string   `json:"person" yaml:"person" parquet:"person"`
	Clothing []string `json:"clothing" yaml:"clothing" parquet:"clothing,list"`
}

// Manifest is the YAML manifest layout
type Manifest struct {
	Jobs []Job `yaml:"jobs"`
}

// Loader reads jobs from a manifest file (YAML, JSONL or Parquet)
type Loader struct {
	manifestPath string
}

// NewLoader creates a new manifest loader
func NewLoader(manifestPath string) *Loader {
	return &Loader{
		manifestPath: manifestPath,
	}
}

// Load returns the manifest jobs. Relative image paths are resolved against
// the manifest's directory and missing IDs are numbered.
func (l *Loader) Load() ([]Job, error) {
	var (
		jobs []Job
		err  error
	)

	ext := strings.ToLower(filepath.Ext(l.manifestPath))
	switch ext {
	case ".yaml", ".yml":
		jobs, err = l.loadYAML()
	case ".jsonl":
		jobs, err = l.loadJSONL()
	case ".parquet":
		jobs, err = l.loadParquet()
	default:
		return nil, fmt.Errorf("unsupported manifest format: %s (supported: .yaml, .jsonl, .parquet)", ext)
	}
	if err != nil {
		return nil, err
	}

	base := filepath.Dir(l.manifestPath)
	for i := range jobs {
		if jobs[i].ID == "" {
			jobs[i].ID = fmt.Sprintf("job-%d", i+1)
		}
		jobs[i].Person = resolve(base, jobs[i].Person)
		for j := range jobs[i].Clothing {
			jobs[i].Clothing[j] = resolve(base, jobs[i].Clothing[j])
		}
	}

	slog.Debug("Loaded manifest", "path", l.manifestPath, "jobs", len(jobs))
	return jobs, nil
}

func (l *Loader) loadYAML() ([]Job, error) {
	data, err := os.ReadFile(l.manifestPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var manifest Manifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	return manifest.Jobs, nil
}

func (l *Loader) loadJSONL() ([]Job, error) {
	file, err := os.Open(l.manifestPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest: %w", err)
	}
	defer file.Close()

	var jobs []Job
	scanner := bufio.NewScanner(file)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}

		var job Job
		if err := json.Unmarshal(line, &job); err != nil {
			return nil, fmt.Errorf("failed to parse JSON at line %d: %w", lineNum, err)
		}
		jobs = append(jobs, job)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	return jobs, nil
}

func (l *Loader) loadParquet() ([]Job, error) {
	file, err := os.Open(l.manifestPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	pf, err := parquet.OpenFile(file, info.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet: %w", err)
	}

	slog.Debug("Parquet manifest opened", "num_rows", pf.NumRows(), "num_row_groups", len(pf.RowGroups()))

	reader := parquet.NewGenericReader[Job](pf)
	defer reader.Close()

	var jobs []Job
	rows := make([]Job, 128)
	for {
		n, err := reader.Read(rows)
		for _, row := range rows[:n] {
			row.Clothing = append([]string(nil), row.Clothing...)
			jobs = append(jobs, row)
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read parquet rows: %w", err)
		}
	}

	return jobs, nil
}

func resolve(base, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}
