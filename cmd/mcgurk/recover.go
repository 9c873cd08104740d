package main

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"mcgurk/config"
	"mcgurk/results"
)

var recoverFlags struct {
	journal string
	output  string
}

var recoverCmd = &cobra.Command{
	Use:   "recover [run]",
	Short: "List journaled runs or export the rows of one run",
	Long: `Every result row is journaled as soon as its trial ends, so the rows of
a session that crashed before saving can still be exported.

Without argument, recover lists the runs in the journal. With a run id or a
session identifier, it writes that run's rows as a results CSV.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := recoverFlags.journal
		if path == "" {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			path = filepath.Join(cfg.Experiment.ResultsDir, "journal.db")
		}
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("no journal at %s: %w", path, err)
		}

		journal, err := results.OpenJournal(path)
		if err != nil {
			return err
		}
		defer journal.Close()

		if len(args) == 0 {
			return listRuns(journal)
		}

		rows, err := journal.Rows(args[0])
		if err != nil {
			return err
		}
		out := recoverFlags.output
		if out == "" {
			out = args[0] + "_recovered.csv"
		}
		if err := results.WriteCSV(out, rows); err != nil {
			return err
		}
		fmt.Printf("Wrote %d rows to %s\n", len(rows), out)
		return nil
	},
}

func init() {
	recoverCmd.Flags().StringVar(&recoverFlags.journal, "journal", "", "journal database (default <results_dir>/journal.db)")
	recoverCmd.Flags().StringVarP(&recoverFlags.output, "output", "o", "", "output CSV (default <run>_recovered.csv)")
}

func listRuns(journal *results.Journal) error {
	runs, err := journal.Runs()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No runs in journal.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tSESSION\tSTARTED\tSTATUS\tROWS")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n", r.ID, r.Identifier, r.StartedAt.Format("2006-01-02 15:04"), r.Status, r.Rows)
	}
	return w.Flush()
}
