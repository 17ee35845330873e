package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"atsassist/pkg/api"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the background service",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		l, err := newLogger(cfg)
		if err != nil {
			return err
		}

		svc, err := api.NewService(cfg, l)
		if err != nil {
			return err
		}
		defer svc.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case evt := <-svc.Events():
					l.Info("页面变化",
						"target", string(evt.Tab),
						"url", evt.Context.URL,
						"platform", evt.Context.Platform,
						"pageType", string(evt.Context.PageType),
						"entityId", evt.Context.EntityID)
				}
			}
		}()

		return svc.Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
