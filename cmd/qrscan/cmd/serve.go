package cmd

import (
	"github.com/spf13/cobra"

	"github.com/qrscan-dev/qrscan/internal/server"
)

func newServeCmd() *cobra.Command {
	var (
		host string
		port int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve scanning over HTTP",
		Long: `Start an HTTP server exposing scanning.

Endpoints:
  POST /scan     scan an uploaded image (multipart field "image" or raw body)
  GET  /health   liveness and version
  GET  /metrics  Prometheus metrics

Examples:
  qrscan serve
  qrscan serve --host 127.0.0.1 --port 9000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := configFromContext(cmd.Context())
			if host == "" {
				host = cfg.Server.Host
			}
			if port == 0 {
				port = cfg.Server.Port
			}

			scanner, _, err := buildScanner(cfg)
			if err != nil {
				return err
			}
			srv := server.New(server.Config{
				Host:    host,
				Port:    port,
				Timeout: cfg.Scan.Timeout,
			}, scanner)
			return srv.Run(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "bind host (default from config)")
	cmd.Flags().IntVar(&port, "port", 0, "bind port (default from config)")
	return cmd
}
