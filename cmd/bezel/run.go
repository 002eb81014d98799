package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"pkt.systems/bezel"
	"pkt.systems/bezel/internal/appconfig"
	"pkt.systems/bezel/internal/cdpengine"
	"pkt.systems/bezel/schema"
	"pkt.systems/pslog"
)

func newRunCmd() *cobra.Command {
	var cfgPath string
	var startURL string
	var noControl bool
	cmd := &cobra.Command{
		Use:   "run [url]",
		Short: "Open the browser window",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := pslog.Ctx(cmd.Context())
			cfg, err := appconfig.Load(cfgPath)
			if err != nil {
				return err
			}
			if noControl {
				cfg.Control.Enabled = false
			}
			if len(args) == 1 {
				startURL = args[0]
			}
			if startURL == "" {
				startURL = cfg.Window.HomeURL
			}

			engine, err := cdpengine.New(cfg.Engine, logger)
			if err != nil {
				return err
			}

			app, err := bezel.New(cfg, bezel.Deps{Engine: engine, Logger: logger})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			go func() {
				<-ctx.Done()
				stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := app.Stop(stopCtx); err != nil {
					logger.Warn("app stop failed", "err", err)
				}
			}()

			if err := app.Start(ctx); err != nil {
				return err
			}
			if cfg.Control.Enabled {
				logger.Info("control server listening", "addr", cfg.Control.Addr)
			}

			if startURL != "" {
				createCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.Engine.StartupTimeout)*time.Second)
				if _, err := app.Service().CreateTab(createCtx, schema.CreateTabRequest{URL: startURL}); err != nil {
					logger.Warn("initial tab failed", "url", startURL, "err", err)
				}
				cancel()
			}

			// The window loop owns the main thread until the user closes it.
			err = app.RunCompositor(ctx)

			shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if shutErr := engine.Shutdown(shutCtx); shutErr != nil {
				logger.Warn("engine shutdown failed", "err", shutErr)
			}
			return err
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	cmd.Flags().BoolVar(&noControl, "no-control", false, "disable the HTTP control server")
	return cmd
}
