package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"loadq/internal/dummy"
	"loadq/internal/logging"
)

func newServeCommand() *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the built-in target server",
		Long: `Serves endpoints useful for trying loadq locally:
/ok, /status/{code}, /flaky (alternating 200/500), /drop (closes the
connection) and /slow?d=500ms.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			port, _ := cmd.Flags().GetInt("port")

			log, err := logging.New("info", "text", cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			server, err := dummy.Start(dummy.ServerConfig{Port: port, Logger: log})
			if err != nil {
				return err
			}
			<-ctx.Done()

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		},
	}
	serveCmd.Flags().IntP("port", "p", 8080, "Port to run the target server on")
	return serveCmd
}
