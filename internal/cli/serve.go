package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"docsearch/internal/metrics"
	"docsearch/internal/transport/httpapi"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Serve the document and search API over HTTP.

Endpoints:
  POST   /documents        upload (multipart "file" or JSON {id, filename, text})
  GET    /documents        list documents
  GET    /documents/{id}   get one document
  DELETE /documents/{id}   delete a document
  POST   /search           {query, top_k, score_threshold}
  GET    /search/stats     index statistics
  GET    /health           health check
  GET    /metrics          prometheus metrics`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	addr := cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	metrics.Register(prometheus.DefaultRegisterer)
	if n, err := a.Index.Count(cmd.Context()); err == nil {
		metrics.IndexEntries.Set(float64(n))
	}

	api := httpapi.NewServer(a.Ingest, a.Retrieve, a.Catalog, log, httpapi.Options{
		MaxUploadBytes: int64(cfg.Server.MaxUploadMB) << 20,
	})
	srv := &http.Server{
		Addr:         addr,
		Handler:      api.Handler(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(quit)

	errCh := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server",
			zap.String("addr", addr),
			zap.String("backend", cfg.Index.Backend),
			zap.String("model", a.Provider.ModelName()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
		return nil
	case <-quit:
		log.Info("Received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownSec)*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Error during shutdown", zap.Error(err))
		return err
	}
	log.Info("Server stopped gracefully")
	return nil
}
