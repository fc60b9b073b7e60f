package cli

import (
	"bytes"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// setupServices swaps the package-level services for the duration of a test.
func setupServices(t *testing.T, s Services) {
	t.Helper()
	oldSettings, oldHistory, oldPlanner, oldOverlay := settingsService, runHistory, planner, overlay
	settingsService = s.Settings
	runHistory = s.History
	planner = s.Planner
	overlay = s.Overlay
	t.Cleanup(func() {
		settingsService, runHistory, planner, overlay = oldSettings, oldHistory, oldPlanner, oldOverlay
	})
}

// execute runs the root command with args and returns combined output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetIn(nil)
	}()

	err := rootCmd.Execute()
	return buf.String(), err
}

// resetFlags restores every flag to its default, since cobra keeps flag
// state between executions of the same command tree.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue) //nolint:errcheck // defaults always parse
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}
