package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/abuubaida2/Ai-Mental-health-Companion-App/config"
	"github.com/abuubaida2/Ai-Mental-health-Companion-App/server"
)

func newServeCmd(g *globals) *cobra.Command {
	var warm bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := g.load(cmd); err != nil {
				return err
			}
			cfg := g.cfg
			a, err := openApp(cfg, g.log)
			if err != nil {
				return err
			}
			defer a.release(g.log)

			ctx, stop := signal.NotifyContext(contextOf(cmd), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if warm {
				if err := a.registry.Warm(ctx); err != nil {
					return err
				}
			}

			srv := server.New(a.pipeline, a.registry, server.Options{
				MaxUploadBytes:  int64(cfg.Server.MaxUploadMB) << 20,
				CORSOrigins:     cfg.Server.CORSOrigins,
				RateLimitPerMin: cfg.Server.RateLimitPerMin,
				Version:         cfg.Service.Version,
				Logger:          g.log,
			})
			return srv.Run(ctx, cfg.Server.Addr,
				config.DurSeconds(cfg.Server.ReadTimeout),
				config.DurSeconds(cfg.Server.WriteTimeout))
		},
	}
	cmd.Flags().BoolVar(&warm, "warm", false, "load all models before accepting requests")
	return cmd
}

// contextOf returns cmd's context or Background when run outside Execute.
func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
