package main

import (
	"os"

	"github.com/spf13/cobra"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	var configPath string

	root := &cobra.Command{
		Use:          "presswire",
		Short:        "Feed-to-blog publishing and a weekly newsletter",
		Long:         "Turns fresh feed articles into WordPress posts, queues social copy and mails a weekly digest to confirmed subscribers.",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", envOr("PRESSWIRE_CONFIG", ""), "path to presswire.yaml (env PRESSWIRE_CONFIG)")

	root.AddCommand(
		dailyCmd(&configPath),
		weeklyCmd(&configPath),
		serveCmd(&configPath),
		scheduleCmd(&configPath),
		subscriberCmd(&configPath),
		queueCmd(&configPath),
		migrateCmd(&configPath),
		doctorCmd(&configPath),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
