package commands

import (
	"github.com/spf13/cobra"

	"github.com/spherical/article-analyzer/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(ctx, overrides{}, false)
	if err != nil {
		return err
	}
	defer a.Close()

	cfg := a.cfg
	srvCfg := server.Config{
		Addr:           cfg.ServerAddr(),
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		RequestTimeout: cfg.Server.RequestTimeout,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
	}

	a.logger.Info().
		Str("addr", srvCfg.Addr).
		Str("model", cfg.LLM.Model).
		Str("cache", cfg.Cache.Driver).
		Bool("history", cfg.History.Enabled).
		Msg("Starting article-analyzer API")

	return server.Run(ctx, a.logger, server.NewRouter(a.logger, a.svc, a.store, srvCfg), srvCfg)
}
