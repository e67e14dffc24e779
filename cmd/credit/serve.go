package main

import (
	"context"
	"log/slog"

	"github.com/Veraticus/credit-engine/internal/api"
	"github.com/Veraticus/credit-engine/internal/service"
	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the JSON API",
		Long: `Start the HTTP API over the local database.

Routes:
  GET  /healthz
  POST /api/correction
  POST /api/analysis          GET /api/analysis
  GET  /api/analysis/{id}
  GET  /api/opportunities     GET /api/opportunities/{id}
  GET  /api/opportunities/{id}/history
  POST /api/opportunities/{id}/transition
  GET  /api/rules`,
		RunE: runServe,
	}

	cmd.Flags().String("addr", "", "Listen address (default from server.addr)")
	cmd.Flags().Bool("tls", false, "Serve HTTPS with a self-signed certificate (see server.cert_dir)")

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg := appConfig.Server
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Addr = addr
	}
	if useTLS, _ := cmd.Flags().GetBool("tls"); useTLS {
		cfg.TLS = true
	}

	return withStorage(cmd, func(ctx context.Context, store service.Storage) error {
		server := api.NewServer(store, newRunner(store), cfg, slog.Default())
		return server.ListenAndServe(ctx)
	})
}
