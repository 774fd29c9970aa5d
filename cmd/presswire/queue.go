package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

func queueCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect the social post queue",
	}
	cmd.AddCommand(queueListCmd(configPath), queueMarkCmd(configPath))
	return cmd
}

func queueListCmd(configPath *string) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show posts waiting to be shared, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			posts, err := a.store.PendingSocialPosts(context.Background(), limit)
			if err != nil {
				return err
			}
			if len(posts) == 0 {
				fmt.Println("queue is empty")
				return nil
			}
			for _, p := range posts {
				title := p.ArticleTitle
				if title == "" {
					title = "(article missing)"
				}
				fmt.Printf("#%d  %s  %s\n", p.ID, p.CreatedAt.Format("2006-01-02 15:04"), title)
				if p.ArticleURL != "" {
					fmt.Printf("    %s\n", p.ArticleURL)
				}
				for _, line := range strings.Split(p.Content, "\n") {
					fmt.Printf("    | %s\n", line)
				}
				fmt.Println()
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "maximum posts to show (0 for all)")
	return cmd
}

func queueMarkCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "mark ID",
		Short: "Mark a queued post as shared",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid id %q", args[0])
			}
			a, err := openApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			ok, err := a.store.MarkSocialPostPosted(context.Background(), id)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("post %d is not pending", id)
			}
			fmt.Printf("post %d marked as posted\n", id)
			return nil
		},
	}
}
