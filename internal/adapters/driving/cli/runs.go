package cli

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/convoharvest/internal/core/domain"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect recorded runs",
	Long:  `List earlier harvest runs and inspect their per-participant outcomes.`,
	RunE:  runRunsList,
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent runs",
	RunE:  runRunsList,
}

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show a run and its participant outcomes",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsShow,
}

var (
	runsLimit      int
	runsFailedOnly bool
)

func init() {
	runsCmd.PersistentFlags().IntVarP(&runsLimit, "limit", "n", 20, "maximum runs to list")
	runsShowCmd.Flags().BoolVar(&runsFailedOnly, "failed", false, "only show failed participants")
	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	rootCmd.AddCommand(runsCmd)
}

func runRunsList(cmd *cobra.Command, _ []string) error {
	if runHistory == nil {
		return errors.New("run history not configured")
	}

	runs, err := runHistory.List(cmd.Context(), runsLimit)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}
	if len(runs) == 0 {
		cmd.Println("No runs recorded.")
		return nil
	}

	st := newStyles(cmd.OutOrStdout())
	fmt.Fprintln(cmd.OutOrStdout(), runsTable(st, runs))
	return nil
}

func runRunsShow(cmd *cobra.Command, args []string) error {
	if runHistory == nil {
		return errors.New("run history not configured")
	}

	run, outcomes, err := runHistory.Get(cmd.Context(), args[0])
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("run %s not found", args[0])
	}
	if err != nil {
		return fmt.Errorf("failed to get run: %w", err)
	}

	w := cmd.OutOrStdout()
	st := newStyles(w)
	fmt.Fprintln(w, st.Title.Render("Run "+run.ID))
	fmt.Fprintf(w, "%s%s\n", st.Label.Render("Status"), st.status(string(run.Status)))
	fmt.Fprintf(w, "%s%s\n", st.Label.Render("Started"), run.StartedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "%s%s\n", st.Label.Render("Duration"), formatDuration(run.Duration()))
	fmt.Fprintf(w, "%s%d/%d\n", st.Label.Render("Processed"), run.Processed(), run.RosterSize)
	fmt.Fprintf(w, "%s%d (%d empty)\n", st.Label.Render("Succeeded"), run.Succeeded, run.Empty)
	fmt.Fprintf(w, "%s%s\n", st.Label.Render("Failed"), strconv.Itoa(run.Failed))
	if run.Error != "" {
		fmt.Fprintf(w, "%s%s\n", st.Label.Render("Error"), st.Error.Render(run.Error))
	}

	if runsFailedOnly {
		var failed []domain.ParticipantOutcome
		for _, o := range outcomes {
			if !o.Succeeded() {
				failed = append(failed, o)
			}
		}
		outcomes = failed
	}
	if len(outcomes) == 0 {
		return nil
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, outcomesTable(st, outcomes, true))
	return nil
}
