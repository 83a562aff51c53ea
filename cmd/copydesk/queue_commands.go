package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"copydesk/internal/config"
	"copydesk/internal/queue"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the work queue",
	}

	queueCmd.AddCommand(newQueueAddCommand(ctx))
	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueStatusCommand(ctx))
	queueCmd.AddCommand(newQueueShowCommand(ctx))
	queueCmd.AddCommand(newQueueRetryCommand(ctx))
	queueCmd.AddCommand(newQueueRemoveCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))

	return queueCmd
}

func newQueueAddCommand(ctx *commandContext) *cobra.Command {
	var item queue.Item
	var directive string
	var tier int

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a post to the queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				if directive != "" {
					parsed, ok := queue.ParseDirective(directive)
					if !ok {
						return fmt.Errorf("unknown directive %q (use BING_DOMINANT, GOOGLE_DOMINANT, or BALANCED)", directive)
					}
					item.Directive = parsed
				}
				item.Tier = queue.ClampTier(tier)

				created, err := store.NewItem(cmd.Context(), &item)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added item %d: %s\n", created.ID, created.Title)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&item.Title, "title", "", "Post title (required)")
	cmd.Flags().StringVar(&item.PostURL, "url", "", "Published post URL")
	cmd.Flags().StringVar(&item.RemoteID, "remote-id", "", "CMS post ID for fetching current content")
	cmd.Flags().StringVar(&item.TargetKeyword, "keyword", "", "Target keyword")
	cmd.Flags().StringVar(&item.SecondaryKeywords, "secondary-keywords", "", "Comma-separated secondary keywords")
	cmd.Flags().StringVar(&directive, "directive", "", "Platform directive (BING_DOMINANT, GOOGLE_DOMINANT, BALANCED)")
	cmd.Flags().IntVar(&tier, "tier", 0, "Content tier (0-3)")
	cmd.Flags().StringVar(&item.Notes, "notes", "", "Free-form editorial notes")
	cmd.Flags().StringVar(&item.Section, "section", "", "Site section")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var listStatuses []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queue items",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				statuses := make([]queue.Status, 0, len(listStatuses))
				for _, raw := range listStatuses {
					status, ok := queue.ParseStatus(raw)
					if !ok {
						return fmt.Errorf("unknown status %q", raw)
					}
					statuses = append(statuses, status)
				}

				items, err := store.List(cmd.Context(), statuses...)
				if err != nil {
					return err
				}
				if len(items) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}

				rows := make([][]string, 0, len(items))
				for _, item := range items {
					rows = append(rows, []string{
						strconv.FormatInt(item.ID, 10),
						item.Title,
						statusLabel(item.Status),
						string(item.Directive),
						strconv.Itoa(item.Tier),
						item.CreatedAt.Format(time.DateOnly),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Title", "Status", "Directive", "Tier", "Created"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVar(&listStatuses, "status", nil, "Filter by status (repeatable)")
	return cmd
}

func newQueueStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "stats",
		Aliases: []string{"status"},
		Short:   "Show queue status summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				stats, err := store.Stats(cmd.Context())
				if err != nil {
					return err
				}

				total := 0
				rows := make([][]string, 0, len(stats))
				for _, status := range queue.AllStatuses() {
					count, ok := stats[status]
					if !ok || count == 0 {
						continue
					}
					total += count
					rows = append(rows, []string{statusLabel(status), strconv.Itoa(count)})
				}
				if len(rows) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				rows = append(rows, []string{"Total", strconv.Itoa(total)})
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Status", "Count"},
					rows,
					[]columnAlignment{alignLeft, alignRight},
				))
				return nil
			})
		},
	}
}

func newQueueShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one queue item in full",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid item id %q", args[0])
			}
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				item, err := store.GetByID(cmd.Context(), id)
				if err != nil {
					return err
				}
				if item == nil {
					return fmt.Errorf("item %d not found", id)
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "ID:          %d\n", item.ID)
				fmt.Fprintf(out, "Title:       %s\n", item.Title)
				fmt.Fprintf(out, "Status:      %s\n", statusLabel(item.Status))
				fmt.Fprintf(out, "Directive:   %s\n", item.Directive)
				fmt.Fprintf(out, "Tier:        %d\n", item.Tier)
				if item.PostURL != "" {
					fmt.Fprintf(out, "URL:         %s\n", item.PostURL)
				}
				if item.TargetKeyword != "" {
					fmt.Fprintf(out, "Keyword:     %s\n", item.TargetKeyword)
				}
				if item.DraftLink != "" {
					fmt.Fprintf(out, "Draft:       %s\n", item.DraftLink)
				}
				if item.CompletedAt != "" {
					fmt.Fprintf(out, "Completed:   %s\n", item.CompletedAt)
				}
				if item.ErrorLog != "" {
					fmt.Fprintf(out, "Error:       %s\n", item.ErrorLog)
				}
				return nil
			})
		},
	}
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "retry [id...]",
		Short: "Reset errored items to pending",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, 0, len(args))
			for _, arg := range args {
				id, err := strconv.ParseInt(arg, 10, 64)
				if err != nil {
					return fmt.Errorf("invalid item id %q", arg)
				}
				ids = append(ids, id)
			}
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				count, err := store.RetryErrored(cmd.Context(), ids...)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Reset %d item(s) to pending\n", count)
				return nil
			})
		},
	}
	return cmd
}

func newQueueRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove one item from the queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid item id %q", args[0])
			}
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				removed, err := store.Remove(cmd.Context(), id)
				if err != nil {
					return err
				}
				if !removed {
					return fmt.Errorf("item %d not found", id)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed item %d\n", id)
				return nil
			})
		},
	}
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	var confirmed bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every item from the queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirmed {
				return fmt.Errorf("refusing to clear the queue without --yes")
			}
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				count, err := store.Clear(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d item(s)\n", count)
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&confirmed, "yes", "y", false, "Confirm clearing the queue")
	return cmd
}
