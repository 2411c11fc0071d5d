package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/sawpanic/equityrun/internal/persistence"
)

func newSummaryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Print one day's journal summary",
		Long:  "Queries the decision journal for a day's evaluation, denial and fill counts.",
		RunE:  runSummary,
	}

	cmd.Flags().String("postgres-dsn", "", "Postgres DSN of the decision journal (required)")
	cmd.Flags().String("date", time.Now().Format("2006-01-02"), "Day to summarize (YYYY-MM-DD)")
	cmd.Flags().Int("top-gates", 5, "Number of top denying gates to include")
	_ = cmd.MarkFlagRequired("postgres-dsn")

	return cmd
}

func runSummary(cmd *cobra.Command, args []string) error {
	dateStr, _ := cmd.Flags().GetString("date")
	day, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		return fmt.Errorf("bad --date %q: want YYYY-MM-DD", dateStr)
	}

	dsn, _ := cmd.Flags().GetString("postgres-dsn")
	db, err := persistence.OpenPostgres(cmd.Context(), dsn, 10*time.Second)
	if err != nil {
		return err
	}
	defer db.Close()

	journal := persistence.NewJournal(db, 5*time.Second)
	summary, err := journal.Summarize(cmd.Context(), day)
	if err != nil {
		return err
	}

	topN, _ := cmd.Flags().GetInt("top-gates")
	topGates, err := journal.TopDenyGates(cmd.Context(), day, topN)
	if err != nil {
		return err
	}

	out := struct {
		*persistence.DailySummary
		TopDenyGates map[string]int `json:"top_deny_gates"`
	}{summary, topGates}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
