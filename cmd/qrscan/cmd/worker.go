package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/qrscan-dev/qrscan/internal/worker"
)

func newWorkerCmd() *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run the decode worker process",
		Long: `Run the out-of-process decode worker.

The worker binds a loopback websocket, announces the bound address as
its first stdout line, and serves decode requests until it receives a
close message. The scan library spawns this subcommand itself; running
it manually is only needed for a standalone decode service.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := configFromContext(cmd.Context())
			if listen == "" {
				listen = cfg.Worker.Listen
			}

			srv := worker.New()
			if _, err := srv.Listen(listen); err != nil {
				return err
			}

			done := make(chan error, 1)
			go func() { done <- srv.Run(cmd.OutOrStdout()) }()
			select {
			case err := <-done:
				return err
			case <-cmd.Context().Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			}
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "bind address (default 127.0.0.1:0)")
	return cmd
}
