package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/zipsync/internal/adapters/driven/auth"
	"github.com/custodia-labs/zipsync/internal/core/domain"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Check both registries once",
	Long: `sync fetches both announcement pages and, for each changed page, its
archive. Updated archives start a new run and enqueue a parse_sources task
for the worker.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		updated, err := a.sourceFetcher().Sync(cmd.Context())
		if err != nil {
			return err
		}
		if len(updated) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no source updated")
			return nil
		}
		for _, t := range updated {
			fmt.Fprintf(cmd.OutOrStdout(), "updated: %s\n", t)
		}
		return nil
	},
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Compose the status report of the current run",
	Long: `report writes the mail document for the current run unless there is no
run yet or the run was already reported.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		report, err := a.reporter().Report(cmd.Context())
		if err != nil {
			return err
		}
		if report == nil {
			fmt.Fprintln(cmd.OutOrStdout(), "nothing to report")
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), report.Message.Subject)
		return nil
	},
}

var enqueueCmd = &cobra.Command{
	Use:   "enqueue <task-type>",
	Short: "Push a task onto the queue",
	Long: `enqueue adds a sync_sources or report_status task for the worker. Parse
and shard tasks are created by the pipeline itself.`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{string(domain.TaskTypeSyncSources), string(domain.TaskTypeReportStatus)},
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		task, err := a.opsService().TriggerTask(cmd.Context(), domain.TaskType(args[0]))
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), task.ID)
		return nil
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.db.InitSchema(cmd.Context()); err != nil {
			return err
		}
		logger.Info("schema initialized")
		return nil
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an operator bearer token for the ops HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		subject, _ := cmd.Flags().GetString("subject")
		ttl, _ := cmd.Flags().GetDuration("ttl")

		token, err := auth.NewAdapter(cfg.HTTP.JWTSecret).GenerateToken(
			domain.NewTokenClaims(subject, time.Now(), ttl))
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().String("subject", os.Getenv("USER"), "operator name recorded in the token")
	tokenCmd.Flags().Duration("ttl", 24*time.Hour, "token lifetime")

	rootCmd.AddCommand(syncCmd, reportCmd, enqueueCmd, migrateCmd, tokenCmd)
}
