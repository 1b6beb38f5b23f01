package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/quickfit/tryon/internal/handlers"
	"github.com/spf13/cobra"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the try-on HTTP API",
		Long: `Starts the try-on API on the specified port.

Clients POST a base64 person image and one to three base64 clothing images
to /api/tryon/generate. The service starts without GEMINI_API_KEY and
reports provider_configured=false on /api/tryon/status.`,
		Example: `  # Start server on default port 8000
  tryon serve

  # Start server on custom port
  tryon serve --port 3000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			if port != "" {
				cfg.Port = port
			}

			service, err := newService(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			handler := handlers.New(service, cfg.MaxRequestBytes)

			// Set up routes
			mux := http.NewServeMux()
			handler.Routes(mux)

			addr := ":" + cfg.Port
			server := &http.Server{
				Addr:              addr,
				Handler:           handlers.CORS(cfg.CORSOrigins, mux),
				ReadHeaderTimeout: 10 * time.Second,
				WriteTimeout:      cfg.ProviderTimeout + 30*time.Second,
			}

			// Start server in goroutine
			serverErr := make(chan error, 1)
			go func() {
				slog.Info("Try-on API available", "addr", addr, "model", cfg.GeminiModel, "provider_configured", service.Configured())
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()

			// Wait for context cancellation (Ctrl+C) or server error
			select {
			case <-cmd.Context().Done():
				slog.Info("Shutting down server...")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					slog.Error("Server shutdown failed", "err", err)
					return err
				}
				slog.Info("Server stopped")
				return nil
			case err := <-serverErr:
				return err
			}
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "", "Port to listen on (default $PORT or 8000)")

	return cmd
}
