package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/lemara98/post-automation/internal/config"
	"github.com/lemara98/post-automation/internal/store"
	"github.com/spf13/cobra"
)

func subscriberCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "subscriber",
		Short: "Manage newsletter subscribers",
	}
	cmd.AddCommand(
		subscriberAddCmd(configPath),
		subscriberTokenCmd(configPath, "confirm", "Confirm a subscriber by confirmation token"),
		subscriberTokenCmd(configPath, "unsubscribe", "Deactivate a subscriber by unsubscribe token"),
		subscriberListCmd(configPath),
	)
	return cmd
}

func subscriberAddCmd(configPath *string) *cobra.Command {
	var name string
	var confirmed, send bool

	cmd := &cobra.Command{
		Use:   "add EMAIL",
		Short: "Add or update a subscriber",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var needs []config.Need
			if send {
				needs = append(needs, config.NeedEmail)
			}
			a, err := openApp(*configPath, needs...)
			if err != nil {
				return err
			}
			defer a.Close()
			ctx := context.Background()

			id, err := a.store.AddSubscriber(ctx, args[0], name)
			if err != nil {
				return err
			}
			sub, err := a.store.GetSubscriberByEmail(ctx, args[0])
			if err != nil {
				return err
			}
			if confirmed && !sub.Confirmed {
				if _, err := a.store.ConfirmSubscriber(ctx, sub.ConfirmationToken); err != nil {
					return err
				}
				sub.Confirmed = true
			}
			fmt.Printf("subscriber %d: %s (confirmed=%t active=%t)\n", id, sub.Email, sub.Confirmed, sub.Active)
			fmt.Printf("  confirmation token: %s\n", sub.ConfirmationToken)
			fmt.Printf("  unsubscribe token:  %s\n", sub.UnsubscribeToken)

			if send && !sub.Confirmed {
				mailer, err := a.mailer()
				if err != nil {
					return err
				}
				if err := mailer.SendConfirmation(ctx, sub.Email, sub.Name, sub.ConfirmationToken); err != nil {
					return err
				}
				fmt.Println("  confirmation email sent")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().BoolVar(&confirmed, "confirmed", false, "mark the subscriber confirmed immediately")
	cmd.Flags().BoolVar(&send, "send-confirmation", false, "email the confirmation link")
	return cmd
}

func subscriberTokenCmd(configPath *string, action, short string) *cobra.Command {
	return &cobra.Command{
		Use:   action + " TOKEN",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			fn := a.store.ConfirmSubscriber
			if action == "unsubscribe" {
				fn = a.store.Unsubscribe
			}
			ok, err := fn(context.Background(), args[0])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%s: no subscriber with that token", action)
			}
			fmt.Printf("%s: ok\n", action)
			return nil
		},
	}
}

func subscriberListCmd(configPath *string) *cobra.Command {
	var activeOnly bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List subscribers",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()
			ctx := context.Background()

			var subs []*store.Subscriber
			if activeOnly {
				subs, err = a.store.ActiveSubscribers(ctx)
			} else {
				subs, err = a.store.ListSubscribers(ctx)
			}
			if err != nil {
				return err
			}
			for _, s := range subs {
				state := "active"
				switch {
				case !s.Confirmed:
					state = "unconfirmed"
				case !s.Active:
					state = "unsubscribed"
				}
				fmt.Printf("%-6s %-36s %-12s %s\n", strconv.FormatInt(s.ID, 10), s.Email, state, s.SubscribedAt.Format("2006-01-02"))
			}

			counts, err := a.store.CountSubscribers(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("\ntotal %d, active %d, unconfirmed %d\n", counts.Total, counts.Active, counts.Unconfirmed)
			return nil
		},
	}
	cmd.Flags().BoolVar(&activeOnly, "active", false, "only confirmed, active subscribers")
	return cmd
}
