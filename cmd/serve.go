package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kozaktomas/missing-persons/internal/constants"
	"github.com/kozaktomas/missing-persons/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start the Missing Persons HTTP API.

Endpoints (all under /api/v1):
  GET  /health                       liveness and record count
  GET  /metrics                      Prometheus metrics
  GET  /missing-persons              list records (?name=&limit=&offset=)
  POST /missing-persons              register a person (multipart: photo, name, ...)
  GET  /missing-persons/{id}         show a record
  GET  /missing-persons/{id}/photo   reference photo
  POST /search                       search by photo (multipart: photo, threshold, metric)
  POST /compare                      compare two photos (multipart: photo_a, photo_b)`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (default WEB_PORT or 8080)")
	serveCmd.Flags().String("host", "", "Host to bind to (default WEB_HOST or 127.0.0.1)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := openServices(ctx)
	if err != nil {
		return err
	}
	defer svc.close()

	if port := mustGetInt(cmd, "port"); port > 0 {
		svc.cfg.Web.Port = port
	}
	if host := mustGetString(cmd, "host"); host != "" {
		svc.cfg.Web.Host = host
	}

	server := web.NewServer(svc.cfg, web.Services{
		Store:    svc.store,
		Engine:   svc.engine,
		Embedder: svc.embedder,
		Photos:   svc.photos,
		Model:    svc.model,
	}, svc.logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	fmt.Printf("Missing Persons API listening on http://%s:%d/api/v1\n", svc.cfg.Web.Host, svc.cfg.Web.Port)
	fmt.Printf("Backend: %s, model: %s (dim %d, %s, threshold %.2f)\n",
		svc.cfg.Store.Backend, svc.model, svc.spec.Dim, svc.engine.Metric(), svc.engine.Threshold())
	fmt.Println("Press Ctrl+C to stop")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	fmt.Println("\nShutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		svc.logger.Error("shutdown failed", zap.Error(err))
		return err
	}
	return <-errCh
}
