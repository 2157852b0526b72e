package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/eddmann/whatsapp-archive/internal/config"
	"github.com/eddmann/whatsapp-archive/internal/logging"
	"github.com/eddmann/whatsapp-archive/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the archive over HTTP",
	Long: `Serve the archive as a JSON HTTP API until interrupted.

Routes live under /api; Prometheus metrics are on /metrics and a health
check on /healthz.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("listen", "", "Listen address (default 127.0.0.1:8090)")
	bindFlags(settings, serveCmd.Flags(), map[string]string{"listen": config.KeyListenAddr})
}

func runServe(cmd *cobra.Command, args []string) error {
	app, err := openApp(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Warn().Err(err).Msg("close failed")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(cfg.ListenAddr, app.Archive, logging.Module(logger, "server"))
	logger.Info().Str("addr", srv.Addr()).Str("messages_db", app.DB.Path()).Msg("serving archive")
	return srv.Run(ctx)
}
