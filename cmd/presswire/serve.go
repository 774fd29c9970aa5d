package main

import (
	"context"
	"time"

	"github.com/lemara98/post-automation/internal/config"
	"github.com/lemara98/post-automation/internal/logger"
	"github.com/lemara98/post-automation/internal/metrics"
	"github.com/lemara98/post-automation/internal/web"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func serveCmd(configPath *string) *cobra.Command {
	var addrFlag string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the subscribe, confirm and unsubscribe endpoints",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(*configPath, config.NeedEmail)
			if err != nil {
				return err
			}
			defer a.Close()

			mailer, err := a.mailer()
			if err != nil {
				return err
			}

			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
			srv := web.New(a.store, mailer, web.Options{
				SubscribeRate:  a.cfg.Web.SubscribePerMinute / 60,
				SubscribeBurst: a.cfg.Web.SubscribeBurst,
				Gatherer:       reg,
				Metrics:        metrics.NewWeb(reg),
			})

			addr := addrFlag
			if addr == "" {
				addr = a.cfg.Web.Addr
			}

			ctx, stop := signalContext()
			defer stop()

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return srv.Start(addr)
			})
			g.Go(func() error {
				<-gctx.Done()
				logger.Info("shutting down subscription server")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})
			return g.Wait()
		},
	}
	cmd.Flags().StringVar(&addrFlag, "addr", "", "listen address (default web.addr)")
	return cmd
}
