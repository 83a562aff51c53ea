package main

import (
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"copydesk/internal/config"
	"copydesk/internal/generator"
	"copydesk/internal/knowledge"
	"copydesk/internal/logging"
	"copydesk/internal/notifications"
	"copydesk/internal/pipeline"
	"copydesk/internal/publish"
	"copydesk/internal/queue"
	"copydesk/internal/research"
	"copydesk/internal/rules"
	"copydesk/internal/validate"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var dryRun bool
	var limit int
	var itemID int64

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Process pending queue items through the pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				if !dryRun {
					if err := cfg.Validate(); err != nil {
						return err
					}
				}
				logger, err := logging.New(logging.Options{
					Level:       cfg.Logging.Level,
					Format:      cfg.Logging.Format,
					OutputPaths: []string{"stderr", filepath.Join(cfg.Paths.LogDir, "copydesk.log")},
				})
				if err != nil {
					return err
				}

				ruleSet, err := rules.Load(cfg.Paths.RulesPath)
				if err != nil {
					return fmt.Errorf("load validation rules: %w", err)
				}
				library, err := knowledge.Load(cfg.Paths.KnowledgeDir)
				if err != nil {
					return fmt.Errorf("load knowledge documents: %w", err)
				}

				notifier := notifications.NewService(cfg)
				orchestrator := pipeline.NewOrchestrator(pipeline.Deps{
					Store:                store,
					Researcher:           research.NewAggregator(cfg, logger),
					Generator:            generator.New(cfg, logger),
					Validator:            validate.New(ruleSet),
					Publisher:            publish.New(cfg, logger),
					Notifier:             notifier,
					Knowledge:            library,
					MaxValidationRetries: cfg.Pipeline.MaxValidationRetries,
					ErrorLogLimit:        cfg.Pipeline.ErrorLogLimit,
					Logger:               logger,
				})
				runner := pipeline.NewRunner(store, orchestrator, notifier, cfg.RunLockPath(), logger)

				summary, err := runner.Run(cmd.Context(), pipeline.Options{
					DryRun: dryRun,
					Limit:  limit,
					ItemID: itemID,
				})
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if len(summary.Outcomes) == 0 {
					fmt.Fprintln(out, "No pending items to process")
					return nil
				}
				if summary.DryRun {
					fmt.Fprintf(out, "Dry run: %d item(s) would be processed\n", len(summary.Outcomes))
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "Title", "Status", "Draft", "Notes"},
					buildOutcomeRows(summary),
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft},
				))
				if !summary.DryRun {
					fmt.Fprintf(out, "Processed %d, failed %d in %s\n",
						summary.Processed(), summary.Failed(),
						summary.Finished.Sub(summary.Started).Round(time.Second))
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "List the items a run would process without touching them")
	cmd.Flags().IntVar(&limit, "limit", 0, "Process at most this many items (0 means all)")
	cmd.Flags().Int64Var(&itemID, "item", 0, "Process a single pending item by ID")
	return cmd
}

func buildOutcomeRows(summary pipeline.RunSummary) [][]string {
	rows := make([][]string, 0, len(summary.Outcomes))
	for _, outcome := range summary.Outcomes {
		notes := ""
		switch {
		case outcome.Err != nil:
			notes = outcome.Err.Error()
		case len(outcome.Advisory) > 0:
			notes = fmt.Sprintf("%d advisory note(s)", len(outcome.Advisory))
		case len(outcome.Warnings) > 0:
			notes = fmt.Sprintf("%d research warning(s)", len(outcome.Warnings))
		}
		rows = append(rows, []string{
			strconv.FormatInt(outcome.ItemID, 10),
			outcome.Title,
			statusLabel(outcome.Status),
			outcome.DraftLink,
			notes,
		})
	}
	return rows
}
