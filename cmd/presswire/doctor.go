package main

import (
	"context"
	"fmt"
	"time"

	"github.com/lemara98/post-automation/internal/config"
	"github.com/lemara98/post-automation/internal/schedule"
	"github.com/spf13/cobra"
)

func migrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the database tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			applied, err := a.store.Migrations(context.Background())
			if err != nil {
				return err
			}
			fmt.Printf("%s database at %s is up to date\n", a.store.Driver(), a.cfg.Database.DSN)
			for _, v := range applied {
				fmt.Printf("  %s\n", v)
			}
			return nil
		},
	}
}

func setOrNot(v string) string {
	if v == "" {
		return "not set"
	}
	return "set"
}

func doctorCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration, database, WordPress and email settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()
			cfg := a.cfg
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			fmt.Println("presswire doctor")
			fmt.Println()

			fmt.Println("Config:")
			fmt.Printf("  env:              %s\n", cfg.Env)
			fmt.Printf("  site:             %s (%s)\n", cfg.Site.Name, cfg.Site.URL)
			fmt.Printf("  feeds:            %d\n", len(cfg.Feeds.URLs))
			fmt.Printf("  llm:              %s / %s, key %s\n", cfg.LLM.Provider, cfg.LLM.Model, setOrNot(cfg.LLM.APIKey))
			fmt.Printf("  email:            %s from %q\n", cfg.Email.Provider, cfg.Email.FromEmail)
			fmt.Printf("  post status:      %s\n", cfg.WordPress.PostStatus)
			if cfg.Metrics.PushgatewayURL != "" {
				fmt.Printf("  pushgateway:      %s\n", cfg.Metrics.PushgatewayURL)
			}
			fmt.Println()

			fmt.Println("Requirements:")
			for _, c := range []struct {
				name string
				need config.Need
			}{
				{"feeds", config.NeedFeeds},
				{"llm", config.NeedLLM},
				{"wordpress", config.NeedWordPress},
				{"email", config.NeedEmail},
			} {
				if err := cfg.Require(c.need); err != nil {
					fmt.Printf("  %-12s %v\n", c.name, err)
				} else {
					fmt.Printf("  %-12s ok\n", c.name)
				}
			}
			fmt.Println()

			fmt.Println("Services:")
			if err := a.store.Ping(ctx); err != nil {
				fmt.Printf("  %-12s unreachable: %v\n", "database", err)
			} else {
				articles, _ := a.store.CountArticles(ctx)
				counts, _ := a.store.CountSubscribers(ctx)
				fmt.Printf("  %-12s %s ok, %d articles, %d active subscribers\n", "database", a.store.Driver(), articles, counts.Active)
			}
			if cfg.WordPress.URL != "" {
				wp, err := a.wordpress()
				if err == nil {
					err = wp.Ping(ctx)
				}
				if err != nil {
					fmt.Printf("  %-12s %v\n", "wordpress", err)
				} else {
					fmt.Printf("  %-12s reachable at %s\n", "wordpress", cfg.WordPress.URL)
				}
			}
			fmt.Println()

			fmt.Println("Schedule:")
			loc, err := cfg.Schedule.Location()
			if err != nil {
				return err
			}
			for _, j := range []struct{ name, expr string }{{"daily", cfg.Schedule.Daily}, {"weekly", cfg.Schedule.Weekly}} {
				spec, err := schedule.Parse(j.expr)
				if err != nil {
					fmt.Printf("  %-12s %v\n", j.name, err)
					continue
				}
				fmt.Printf("  %-12s %-14s next %s\n", j.name, j.expr, spec.Next(time.Now().In(loc)).Format(time.RFC1123))
			}
			return nil
		},
	}
}
