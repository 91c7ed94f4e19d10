package main

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"audio-dedupe/internal/config"
	"audio-dedupe/internal/database"
)

type queryContext struct {
	dbPath     string
	jsonOutput bool
}

// withDB opens the history database for the duration of fn
func (q *queryContext) withDB(fn func(db *database.DeletionDB) error) error {
	db, err := database.NewDeletionDB(q.dbPath)
	if err != nil {
		return fmt.Errorf("open database %s: %w", q.dbPath, err)
	}
	defer db.Close()
	return fn(db)
}

func newRootCommand() *cobra.Command {
	q := &queryContext{}

	rootCmd := &cobra.Command{
		Use:           "audio-dedupe-query",
		Short:         "Inspect the audio-dedupe history database",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	rootCmd.PersistentFlags().StringVar(&q.dbPath, "db", config.DefaultDatabasePath(), "Path to history database")
	rootCmd.PersistentFlags().BoolVar(&q.jsonOutput, "json", false, "Output in JSON format")

	rootCmd.AddCommand(
		newRecentCommand(q),
		newRunsCommand(q),
		newRunCommand(q),
		newStatsCommand(q),
		newPathCommand(q),
		newActionCommand(q),
		newPruneCommand(q),
	)
	return rootCmd
}

func limitArg(args []string, def int) (int, error) {
	if len(args) == 0 {
		return def, nil
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid count %q", args[0])
	}
	return n, nil
}

func newRecentCommand(q *queryContext) *cobra.Command {
	return &cobra.Command{
		Use:   "recent [N]",
		Short: "Show the N most recent actions",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, err := limitArg(args, 20)
			if err != nil {
				return err
			}
			return q.withDB(func(db *database.DeletionDB) error {
				records, err := db.GetRecentDeletions(limit)
				if err != nil {
					return err
				}
				return q.printRecords(cmd, records)
			})
		},
	}
}

func newRunsCommand(q *queryContext) *cobra.Command {
	return &cobra.Command{
		Use:   "runs [N]",
		Short: "Show the N most recent sweeps",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, err := limitArg(args, 20)
			if err != nil {
				return err
			}
			return q.withDB(func(db *database.DeletionDB) error {
				runs, err := db.GetRecentRuns(limit)
				if err != nil {
					return err
				}
				return q.printRuns(cmd, runs)
			})
		},
	}
}

func newRunCommand(q *queryContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run ID",
		Short: "Show one sweep and every action it took",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return q.withDB(func(db *database.DeletionDB) error {
				run, err := db.GetRun(args[0])
				if errors.Is(err, sql.ErrNoRows) {
					return fmt.Errorf("run %s not found", args[0])
				}
				if err != nil {
					return err
				}
				records, err := db.GetDeletionsByRun(run.ID)
				if err != nil {
					return err
				}
				if q.jsonOutput {
					return writeJSON(cmd.OutOrStdout(), struct {
						Run     *database.RunRecord       `json:"run"`
						Actions []database.DeletionRecord `json:"actions"`
					}{run, records})
				}
				if err := q.printRuns(cmd, []database.RunRecord{*run}); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout())
				return q.printRecords(cmd, records)
			})
		},
	}
}

func newStatsCommand(q *queryContext) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show aggregated statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return q.withDB(func(db *database.DeletionDB) error {
				stats, err := db.GetDeletionStats(days)
				if err != nil {
					return err
				}
				if q.jsonOutput {
					return writeJSON(cmd.OutOrStdout(), stats)
				}
				printStats(cmd.OutOrStdout(), days, stats)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&days, "days", 30, "Number of days to include")
	return cmd
}

func newPathCommand(q *queryContext) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "path PATTERN",
		Short: "Show actions whose path matches a SQL LIKE pattern, e.g. '/srv/music/%'",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return q.withDB(func(db *database.DeletionDB) error {
				records, err := db.GetDeletionsByPath(args[0], limit)
				if err != nil {
					return err
				}
				return q.printRecords(cmd, records)
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 100, "Maximum number of rows")
	return cmd
}

func newActionCommand(q *queryContext) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:       "action NAME",
		Short:     "Show actions of one kind (DELETE, DRY_RUN, SKIP, ERROR)",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{database.ActionDelete, database.ActionDryRun, database.ActionSkip, database.ActionError},
		RunE: func(cmd *cobra.Command, args []string) error {
			action := strings.ToUpper(args[0])
			return q.withDB(func(db *database.DeletionDB) error {
				records, err := db.GetDeletionsByAction(action, limit)
				if err != nil {
					return err
				}
				return q.printRecords(cmd, records)
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 100, "Maximum number of rows")
	return cmd
}

func newPruneCommand(q *queryContext) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete history older than --days and compact the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if days <= 0 {
				return fmt.Errorf("--days must be positive")
			}
			return q.withDB(func(db *database.DeletionDB) error {
				n, err := db.DeleteOldRecords(days)
				if err != nil {
					return err
				}
				if err := db.Vacuum(); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d records older than %d days\n", n, days)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&days, "days", 90, "Keep this many days of history")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (q *queryContext) printRecords(cmd *cobra.Command, records []database.DeletionRecord) error {
	out := cmd.OutOrStdout()
	if q.jsonOutput {
		return writeJSON(out, records)
	}
	if len(records) == 0 {
		fmt.Fprintln(out, "No records found")
		return nil
	}

	rows := make([][]string, 0, len(records))
	for _, r := range records {
		detail := r.Counterpart
		if r.ErrorMessage != "" {
			detail = r.ErrorMessage
		}
		rows = append(rows, []string{
			strconv.FormatInt(r.ID, 10),
			r.Timestamp.Format("2006-01-02 15:04:05"),
			r.Action,
			humanize.IBytes(uint64(r.Size)),
			r.Path,
			detail,
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"ID", "Timestamp", "Action", "Size", "Path", "Counterpart / Error"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
		tableStyle(out),
	))
	return nil
}

func (q *queryContext) printRuns(cmd *cobra.Command, runs []database.RunRecord) error {
	out := cmd.OutOrStdout()
	if q.jsonOutput {
		return writeJSON(out, runs)
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs found")
		return nil
	}

	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		status := r.Status
		if r.DryRun {
			status += " (dry run)"
		}
		rows = append(rows, []string{
			r.ID,
			humanize.Time(r.StartedAt),
			r.Root,
			status,
			humanize.Comma(int64(r.FilesScanned)),
			strconv.Itoa(r.Candidates),
			strconv.Itoa(r.Deleted),
			strconv.Itoa(r.Failed),
			humanize.IBytes(uint64(r.BytesFreed)),
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Run", "Started", "Root", "Status", "Scanned", "Candidates", "Deleted", "Failed", "Freed"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight},
		tableStyle(out),
	))
	return nil
}

func printStats(out io.Writer, days int, stats *database.DeletionStats) {
	fmt.Fprintf(out, "History statistics (last %d days)\n", days)
	fmt.Fprintf(out, "Period: %s to %s\n\n", stats.StartDate.Format("2006-01-02"), stats.EndDate.Format("2006-01-02"))

	fmt.Fprintln(out, renderTable(
		[]string{"Metric", "Value"},
		[][]string{
			{"Runs", humanize.Comma(int64(stats.Runs))},
			{"Deleted", humanize.Comma(int64(stats.TotalDeletions))},
			{"Dry run", humanize.Comma(int64(stats.TotalDryRun))},
			{"Skipped", humanize.Comma(int64(stats.TotalSkipped))},
			{"Errors", humanize.Comma(int64(stats.TotalErrors))},
			{"Space freed", humanize.IBytes(uint64(stats.TotalSpaceFreed))},
		},
		[]columnAlignment{alignLeft, alignRight},
		tableStyle(out),
	))

	if len(stats.ByExtension) == 0 {
		return
	}
	exts := make([]string, 0, len(stats.ByExtension))
	for ext := range stats.ByExtension {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	rows := make([][]string, 0, len(exts))
	for _, ext := range exts {
		rows = append(rows, []string{ext, humanize.Comma(int64(stats.ByExtension[ext]))})
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, renderTable([]string{"Extension", "Deleted"}, rows, []columnAlignment{alignLeft, alignRight}, tableStyle(out)))
}
