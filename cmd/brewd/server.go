package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/kalambet/brewd/internal/api"
	"github.com/kalambet/brewd/internal/config"
	"github.com/kalambet/brewd/internal/device"
)

var serveHTTP bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server (stdio by default, --http for streamable HTTP)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	serveCmd.Flags().BoolVar(&serveHTTP, "http", false, "serve streamable HTTP instead of stdio")
}

func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// All logging goes to stderr: stdout belongs to the stdio transport.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()})))

	schemaJSON, err := os.ReadFile(cfg.Schema.Path)
	if err != nil {
		return fmt.Errorf("reading profile schema: %w", err)
	}
	validator, err := newValidator(schemaJSON)
	if err != nil {
		return err
	}

	gateway := device.New(cfg.Device.URL)
	mcpSrv := api.NewMCPServer(api.MCPDeps{
		Gateway:   gateway,
		Validator: validator,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("brewd starting", "version", version, "machine", cfg.Device.URL, "schema", cfg.Schema.Path)

	if !serveHTTP {
		stdioSrv := server.NewStdioServer(mcpSrv)
		slog.Info("MCP server started", "transport", "stdio")
		if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("stdio server: %w", err)
		}
		return nil
	}

	httpTransport := server.NewStreamableHTTPServer(mcpSrv)

	router := chi.NewRouter()
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok", "version": version})
	})
	router.Mount("/mcp", httpTransport)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("MCP server listening", "transport", "streamable-http", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
