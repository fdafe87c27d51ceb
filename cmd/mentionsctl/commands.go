package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/brandpulse/social-mentions-bot/internal/scheduler"
	"github.com/brandpulse/social-mentions-bot/internal/sources"
)

func checkCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Test connectivity to every configured platform",
		Long: `Fetch mentions from each platform without storing them.

Platforms with missing credentials are reported as disabled.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(ctx context.Context, a *app) error {
				out := cmd.OutOrStdout()
				for _, src := range a.monitor.Sources().All() {
					fmt.Fprintf(out, "%-10s ", src.GetName())
					if !src.IsEnabled() {
						fmt.Fprintln(out, "DISABLED (missing credentials)")
						continue
					}
					posts, err := src.FetchMentions(ctx, sources.Credentials{})
					if err != nil {
						fmt.Fprintf(out, "ERROR: %v\n", err)
						continue
					}
					fmt.Fprintf(out, "OK (%d mentions)\n", len(posts))
				}
				return nil
			})
		},
	}
}

func fetchCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "fetch [platform]",
		Short: "Fetch and store new mentions",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(ctx context.Context, a *app) error {
				if len(args) == 0 {
					return printJSON(cmd.OutOrStdout(), a.monitor.FetchAll(ctx))
				}
				posts, inserted, err := a.monitor.FetchPlatform(ctx, args[0], sources.Credentials{})
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]int{"fetched": len(posts), "inserted": inserted})
			})
		},
	}
}

func cycleCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "cycle",
		Short: "Run one fetch, reply and ticket cycle",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(ctx context.Context, a *app) error {
				report, err := a.monitor.RunCycle(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), report)
			})
		},
	}
}

func analyticsCmd(opts *options) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "analytics",
		Short: "Print sentiment, ticket and reply statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			if days <= 0 {
				return errors.New("--days must be a positive integer")
			}
			return withApp(opts, func(ctx context.Context, a *app) error {
				sentiment, err := a.store.SentimentCounts(ctx, days)
				if err != nil {
					return err
				}
				tickets, err := a.store.TicketStats(ctx, days)
				if err != nil {
					return err
				}
				replies, err := a.store.ReplyAnalytics(ctx, days)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"sentiment": sentiment,
					"tickets":   tickets,
					"replies":   replies,
				})
			})
		},
	}
	cmd.Flags().IntVar(&days, "days", 7, "Analytics window in days")
	return cmd
}

func historyCmd(opts *options) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history <user_id>",
		Short: "Show earlier exchanges with a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(ctx context.Context, a *app) error {
				history, err := a.store.UserHistory(ctx, args[0], limit)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), history)
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum interactions to show")
	return cmd
}

func ticketsCmd(opts *options) *cobra.Command {
	var (
		limit int
		raise bool
	)
	cmd := &cobra.Command{
		Use:   "tickets",
		Short: "List recent tickets, or raise new ones with --raise",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(ctx context.Context, a *app) error {
				if raise {
					tickets, err := a.monitor.RaiseTickets(ctx)
					if err != nil {
						return err
					}
					return printJSON(cmd.OutOrStdout(), tickets)
				}
				tickets, err := a.store.ListTickets(ctx, limit)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), tickets)
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum tickets to list")
	cmd.Flags().BoolVar(&raise, "raise", false, "Raise tickets for negative unresolved mentions")
	return cmd
}

func resolveCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <mention_id>",
		Short: "Mark a negative mention's follow-up as resolved",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(ctx context.Context, a *app) error {
				if _, err := a.store.ResolveTicket(ctx, args[0]); err != nil {
					return fmt.Errorf("failed to resolve %s: %w", args[0], err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Mention %s marked as resolved\n", args[0])
				return nil
			})
		},
	}
}

func reportsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "reports [report_id]",
		Short: "List archived cycle reports, or print one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(ctx context.Context, a *app) error {
				if a.archive == nil {
					return errors.New("no report archive configured (set AZURE_STORAGE_ACCOUNT or ARCHIVE_DIR)")
				}
				if len(args) == 1 {
					report, err := a.archive.Get(ctx, args[0])
					if err != nil {
						return err
					}
					return printJSON(cmd.OutOrStdout(), report)
				}
				ids, err := a.archive.List(ctx)
				if err != nil {
					return err
				}
				for _, id := range ids {
					fmt.Fprintln(cmd.OutOrStdout(), id)
				}
				return nil
			})
		},
	}
}

func digestCmd(opts *options) *cobra.Command {
	var send bool
	cmd := &cobra.Command{
		Use:   "digest",
		Short: "Build the analytics digest and optionally send it",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(ctx context.Context, a *app) error {
				digests := scheduler.NewService(a.cfg.DigestSchedule, a.store, a.notifier)
				if !send {
					digest, err := digests.BuildDigest(ctx)
					if err != nil {
						return err
					}
					return printJSON(cmd.OutOrStdout(), digest)
				}
				if a.notifier == nil {
					return errors.New("no notification channels configured")
				}
				if err := digests.SendDigest(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Digest sent")
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&send, "send", false, "Send the digest to the configured channels")
	return cmd
}
