package batch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/quickfit/tryon/internal/tryon"
	"github.com/quickfit/tryon/internal/validation"
	"golang.org/x/sync/errgroup"
)

// Outcome statuses
const (
	StatusOK       = "ok"
	StatusFallback = "fallback"
	StatusError    = "error"
)

// Generator produces a try-on image
type Generator interface {
	GenerateTryOn(ctx context.Context, person []byte, clothing [][]byte) (*tryon.Result, error)
}

// Outcome records what happened to one job
type Outcome struct {
	ID         string `yaml:"id"`
	Status     string `yaml:"status"`
	Reason     string `yaml:"reason,omitempty"`
	Output     string `yaml:"output,omitempty"`
	DurationMS int64  `yaml:"duration_ms"`
}

// Runner executes jobs with bounded concurrency
type Runner struct {
	generator   Generator
	outputDir   string
	concurrency int
}

// NewRunner creates a runner writing results into outputDir
func NewRunner(generator Generator, outputDir string, concurrency int) *Runner {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Runner{
		generator:   generator,
		outputDir:   outputDir,
		concurrency: concurrency,
	}
}

// Run processes every job. A failed job is recorded in its outcome and does
// not stop the others. Outcomes are returned in job order.
func (r *Runner) Run(ctx context.Context, jobs []Job) ([]Outcome, error) {
	if err := os.MkdirAll(r.outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	slog.Info("Processing jobs", "jobs", len(jobs), "concurrency", r.concurrency)

	stems := outputStems(jobs)
	outcomes := make([]Outcome, len(jobs))
	var g errgroup.Group
	g.SetLimit(r.concurrency)

	for i, job := range jobs {
		g.Go(func() error {
			slog.Info("Processing job", "id", job.ID, "progress", fmt.Sprintf("%d/%d", i+1, len(jobs)))
			outcomes[i] = r.runJob(ctx, job, stems[i])
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return outcomes, err
	}
	return outcomes, ctx.Err()
}

func (r *Runner) runJob(ctx context.Context, job Job, stem string) Outcome {
	start := time.Now()
	outcome := Outcome{ID: job.ID}
	finish := func(status, reason string) Outcome {
		outcome.Status = status
		outcome.Reason = reason
		outcome.DurationMS = time.Since(start).Milliseconds()
		if status == StatusError {
			slog.Error("Job failed", "id", job.ID, "reason", reason)
		}
		return outcome
	}

	if err := ctx.Err(); err != nil {
		return finish(StatusError, err.Error())
	}

	person, err := os.ReadFile(job.Person)
	if err != nil {
		return finish(StatusError, fmt.Sprintf("failed to read person image: %v", err))
	}

	if err := validation.CheckCount(len(job.Clothing)); err != nil {
		return finish(StatusError, err.Error())
	}
	clothing := make([][]byte, 0, len(job.Clothing))
	for i, path := range job.Clothing {
		blob, err := os.ReadFile(path)
		if err != nil {
			return finish(StatusError, fmt.Sprintf("failed to read clothing item %d: %v", i+1, err))
		}
		if err := validation.CheckSize(i+1, blob); err != nil {
			return finish(StatusError, err.Error())
		}
		clothing = append(clothing, blob)
	}

	result, err := r.generator.GenerateTryOn(ctx, person, clothing)
	if err != nil {
		return finish(StatusError, err.Error())
	}

	outPath := filepath.Join(r.outputDir, stem+extensionFor(result.MIMEType))
	if err := os.WriteFile(outPath, result.Image, 0644); err != nil {
		return finish(StatusError, fmt.Sprintf("failed to write result: %v", err))
	}
	outcome.Output = outPath

	if result.Fallback {
		return finish(StatusFallback, result.Reason)
	}
	return finish(StatusOK, "")
}

func extensionFor(mimeType string) string {
	switch mimeType {
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	}
	return ".jpg"
}

func safeName(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		}
		return '_'
	}, id)
}

// outputStems gives every job a distinct file stem. IDs that sanitize to the
// same name, compared case-insensitively, get a numeric suffix in job order.
func outputStems(jobs []Job) []string {
	stems := make([]string, len(jobs))
	used := make(map[string]bool, len(jobs))
	for i, job := range jobs {
		base := safeName(job.ID)
		stem := base
		for n := 2; used[strings.ToLower(stem)]; n++ {
			stem = fmt.Sprintf("%s-%d", base, n)
		}
		used[strings.ToLower(stem)] = true
		stems[i] = stem
	}
	return stems
}
