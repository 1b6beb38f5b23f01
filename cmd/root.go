package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/quickfit/tryon/internal/config"
	"github.com/quickfit/tryon/internal/gemini"
	"github.com/quickfit/tryon/internal/tryon"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
	logLevel   string
	verbose    bool
}

func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "tryon",
		Short: "Virtual try-on relay backed by Gemini image generation",
		Long: `Tryon relays a person photo and up to three clothing photos to a
multimodal image model and returns the composed try-on image.

It can run as an HTTP service for mobile clients or process local files
directly from the command line.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
			setupLogging(opts)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", os.Getenv("TRYON_CONFIG"), "Path to a YAML config file")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")

	// Add subcommands
	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newGenerateCmd(opts))
	cmd.AddCommand(newBatchCmd(opts))

	return cmd
}

func setupLogging(opts *rootOptions) {
	name := opts.logLevel
	if name == "" {
		name = os.Getenv("LOG_LEVEL")
	}
	level, err := config.ParseLevel(name)
	if err != nil {
		slog.Warn("Ignoring unknown log level", "level", name)
	}
	if opts.verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// loadConfig reads settings and applies the --log-level flag on top.
func loadConfig(opts *rootOptions) (config.Config, error) {
	if opts.logLevel != "" {
		if err := os.Setenv("LOG_LEVEL", opts.logLevel); err != nil {
			return config.Config{}, fmt.Errorf("failed to apply log level: %w", err)
		}
	}
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return cfg, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// newService builds the try-on pipeline for cfg.
func newService(ctx context.Context, cfg config.Config) (*tryon.Service, error) {
	provider, err := gemini.New(ctx, cfg.GeminiAPIKey)
	if err != nil {
		return nil, err
	}
	return tryon.NewService(provider, cfg.GeminiModel, cfg.ProviderTimeout), nil
}
