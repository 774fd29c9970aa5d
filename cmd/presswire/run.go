package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/lemara98/post-automation/internal/config"
	"github.com/lemara98/post-automation/internal/logger"
	"github.com/lemara98/post-automation/internal/schedule"
	"github.com/spf13/cobra"
)

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func dailyCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "daily",
		Short: "Run the daily publishing pipeline once",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(*configPath, config.NeedFeeds, config.NeedLLM, config.NeedWordPress)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signalContext()
			defer stop()

			report, err := a.runDaily(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("run %s: found %d, new %d, processed %d, failed %d\n",
				report.RunID, report.Found, report.New, report.Processed, report.Failed)
			return nil
		},
	}
}

func weeklyCmd(configPath *string) *cobra.Command {
	var dryRun bool
	var outPath string

	cmd := &cobra.Command{
		Use:   "weekly",
		Short: "Send the weekly newsletter once",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(*configPath, config.NeedLLM, config.NeedEmail)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signalContext()
			defer stop()

			report, err := a.runWeekly(ctx, dryRun)
			if err != nil {
				return err
			}
			if dryRun {
				fmt.Printf("dry run %s: %q to %d recipients, %d articles\n",
					report.RunID, report.Subject, report.Recipients, report.Articles)
				if outPath != "" && report.HTML != "" {
					if err := os.WriteFile(outPath, []byte(report.HTML), 0644); err != nil {
						return fmt.Errorf("write preview: %w", err)
					}
					fmt.Printf("preview written to %s\n", outPath)
				}
				return nil
			}
			fmt.Printf("run %s: recipients %d, sent %d, failed %d, success rate %.1f%%\n",
				report.RunID, report.Recipients, report.Sent, report.Failed, report.SuccessRate)
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "render the newsletter without sending or recording it")
	cmd.Flags().StringVar(&outPath, "out", "", "with --dry-run, write the rendered HTML here")
	return cmd
}

func scheduleCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Run the daily and weekly pipelines on their cron schedules",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(*configPath, config.NeedFeeds, config.NeedLLM, config.NeedWordPress, config.NeedEmail)
			if err != nil {
				return err
			}
			defer a.Close()

			loc, err := a.cfg.Schedule.Location()
			if err != nil {
				return err
			}
			dailySpec, err := schedule.Parse(a.cfg.Schedule.Daily)
			if err != nil {
				return err
			}
			weeklySpec, err := schedule.Parse(a.cfg.Schedule.Weekly)
			if err != nil {
				return err
			}

			s, err := schedule.New(loc,
				schedule.Job{Name: "daily", Spec: dailySpec, Run: func(ctx context.Context) error {
					_, err := a.runDaily(ctx)
					return err
				}},
				schedule.Job{Name: "weekly", Spec: weeklySpec, Run: func(ctx context.Context) error {
					_, err := a.runWeekly(ctx, false)
					return err
				}},
			)
			if err != nil {
				return err
			}

			ctx, stop := signalContext()
			defer stop()
			logger.Info("scheduler started", "daily", dailySpec.String(), "weekly", weeklySpec.String(), "timezone", loc.String())
			return s.Run(ctx)
		},
	}
}
