package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/convoharvest/internal/core/domain"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage application settings",
	Long: `View and configure the event source, roster, outputs, and run options.

Settings are stored in config.toml in the configuration directory.
Environment variables (DATABASE_URL, CONVOHARVEST_*) override stored values,
and run flags override both.`,
	RunE: runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	RunE:  runSettingsShow,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a single setting",
	Long: `Set a single setting by its dotted key, for example:

  convoharvest settings set source.driver postgres
  convoharvest settings set run.concurrency 4
  convoharvest settings set kafka.brokers broker1:9092,broker2:9092

Run 'convoharvest settings keys' to list all keys.`,
	Args: cobra.ExactArgs(2),
	RunE: runSettingsSet,
}

var settingsKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List setting keys",
	RunE:  runSettingsKeys,
}

var settingsWizardCmd = &cobra.Command{
	Use:   "wizard",
	Short: "Interactive setup wizard",
	Long:  `Run an interactive wizard to configure the event source, roster and outputs step by step.`,
	RunE:  runSettingsWizard,
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	settingsCmd.AddCommand(settingsKeysCmd)
	settingsCmd.AddCommand(settingsWizardCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}
	if overlay != nil {
		if err := overlay(settings); err != nil {
			cmd.Printf("Warning: environment ignored: %v\n", err)
		}
	}

	cmd.Println("Current Settings")
	cmd.Println("================")
	cmd.Println()

	// Source settings
	cmd.Println("[Source]")
	cmd.Printf("  Driver: %s\n", settings.Source.Driver.Description())
	if settings.Source.DSN != "" {
		cmd.Printf("  DSN: %s\n", maskDSN(settings.Source.DSN))
	} else {
		cmd.Printf("  DSN: (not set)\n")
	}
	cmd.Printf("  Table: %s\n", settings.Source.Table)
	if settings.Source.Driver != domain.SourceDriverSQLite {
		cmd.Printf("  SSL Mode: %s\n", settings.Source.SSLMode)
	}
	cmd.Printf("  Connect Timeout: %s\n", settings.Source.ConnectTimeout)
	cmd.Printf("  Query Timeout: %s\n", settings.Source.QueryTimeout)
	if settings.Source.RateLimit > 0 {
		cmd.Printf("  Rate Limit: %g queries/s (burst %d)\n", settings.Source.RateLimit, settings.Source.Burst)
	} else {
		cmd.Printf("  Rate Limit: unlimited\n")
	}
	cmd.Println()

	// Roster settings
	cmd.Println("[Roster]")
	cmd.Printf("  Path: %s\n", settings.Roster.Path)
	cmd.Printf("  ID Column: %s\n", settings.Roster.IDColumn)
	if settings.Roster.FilterColumn != "" {
		cmd.Printf("  Filter: %s = %q\n", settings.Roster.FilterColumn, settings.Roster.FilterValue)
	}
	cmd.Println()

	// Output settings
	cmd.Println("[Output]")
	cmd.Printf("  Directory: %s\n", settings.Output.Dir)
	cmd.Printf("  Documents: %s\n", settings.Output.ConversationsDir())
	cmd.Printf("  Metrics Format: %s\n", settings.Output.MetricsFormat)
	cmd.Println()

	// Run settings
	cmd.Println("[Run]")
	cmd.Printf("  Concurrency: %d\n", settings.Run.Concurrency)
	cmd.Printf("  Ledger: %s\n", yesNo(settings.Run.Ledger))
	cmd.Println()

	// Kafka settings
	cmd.Println("[Kafka]")
	if settings.Kafka.IsConfigured() {
		cmd.Printf("  Brokers: %s\n", strings.Join(settings.Kafka.Brokers, ", "))
		cmd.Printf("  Documents Topic: %s\n", settings.Kafka.DocumentsTopic)
		cmd.Printf("  Metrics Topic: %s\n", settings.Kafka.MetricsTopic)
	} else {
		cmd.Printf("  Publishing: disabled\n")
	}
	cmd.Println()

	// Telemetry settings
	cmd.Println("[Telemetry]")
	if settings.Telemetry.Textfile != "" {
		cmd.Printf("  Textfile: %s\n", settings.Telemetry.Textfile)
	} else {
		cmd.Printf("  Textfile: (disabled)\n")
	}
	cmd.Println()

	// Validation
	if err := settings.Validate(); err != nil {
		cmd.Printf("Warning: %v\n", err)
		cmd.Println("Run 'convoharvest settings wizard' to fix configuration issues.")
	} else {
		cmd.Println("Configuration is valid.")
	}

	return nil
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	key, value := args[0], args[1]
	if err := settingsService.Set(key, value); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}

	shown := value
	if key == "source.dsn" {
		shown = maskDSN(value)
	}
	cmd.Printf("Set %s = %s\n", key, shown)
	return nil
}

func runSettingsKeys(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}
	for _, key := range settingsService.Keys() {
		cmd.Println(key)
	}
	return nil
}

//nolint:gocognit // Linear interactive flow
func runSettingsWizard(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	cmd.Println("convoharvest Settings Wizard")
	cmd.Println("============================")
	cmd.Println()

	in := cmd.InOrStdin()
	reader := bufio.NewReader(in)

	// Step 1: Source driver
	cmd.Println("Step 1: Select Event Source")
	cmd.Println("---------------------------")
	drivers := domain.AllSourceDrivers()
	current := 1
	for i, d := range drivers {
		if d == settings.Source.Driver {
			current = i + 1
		}
		cmd.Printf("  %d. %s\n", i+1, d.Description())
	}
	cmd.Printf("\nEnter choice [%d]: ", current)
	settings.Source.Driver = drivers[parseChoice(readLine(reader), len(drivers), current)-1]
	cmd.Println()

	// Step 2: Connection
	cmd.Println("Step 2: Connection")
	cmd.Println("------------------")
	if settings.Source.Driver == domain.SourceDriverSQLite {
		settings.Source.DSN = prompt(cmd, reader, "SQLite export path", settings.Source.DSN)
	} else {
		hint := "not set"
		if settings.Source.DSN != "" {
			hint = "keep " + maskDSN(settings.Source.DSN)
		}
		cmd.Printf("Enter connection string [%s]: ", hint)
		if dsn := readPassword(in, reader); dsn != "" {
			settings.Source.DSN = dsn
		}
		cmd.Println()
	}
	settings.Source.Table = prompt(cmd, reader, "Event table", settings.Source.Table)
	cmd.Println()

	// Step 3: Roster
	cmd.Println("Step 3: Roster")
	cmd.Println("--------------")
	settings.Roster.Path = prompt(cmd, reader, "Roster file", settings.Roster.Path)
	settings.Roster.IDColumn = prompt(cmd, reader, "ID column", settings.Roster.IDColumn)
	cmd.Println()

	// Step 4: Outputs
	cmd.Println("Step 4: Outputs")
	cmd.Println("---------------")
	settings.Output.Dir = prompt(cmd, reader, "Output directory", settings.Output.Dir)
	formats := []domain.MetricsFormat{domain.MetricsFormatCSV, domain.MetricsFormatSQLite}
	current = 1
	for i, f := range formats {
		if f == settings.Output.MetricsFormat {
			current = i + 1
		}
		cmd.Printf("  %d. %s\n", i+1, f)
	}
	cmd.Printf("Metrics format [%d]: ", current)
	settings.Output.MetricsFormat = formats[parseChoice(readLine(reader), len(formats), current)-1]
	cmd.Println()

	if err := settingsService.Save(settings); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}

	// Final validation
	cmd.Println("Configuration Complete!")
	cmd.Println("=======================")
	if err := settings.Validate(); err != nil {
		cmd.Printf("Warning: %v\n", err)
	} else {
		cmd.Println("All settings are valid and saved.")
	}

	return nil
}

// Helper functions.

func prompt(cmd *cobra.Command, reader *bufio.Reader, label, current string) string {
	cmd.Printf("%s [%s]: ", label, current)
	if v := readLine(reader); v != "" {
		return v
	}
	return current
}

//nolint:errcheck // CLI helper, error ignored for UX
func readLine(reader *bufio.Reader) string {
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

func parseChoice(input string, maxVal, defaultVal int) int {
	if input == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(input)
	if err != nil || val < 1 || val > maxVal {
		return defaultVal
	}
	return val
}

// readPassword reads a secret without echo when in is a terminal.
func readPassword(in io.Reader, reader *bufio.Reader) string {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		password, err := term.ReadPassword(int(f.Fd()))
		if err == nil {
			return strings.TrimSpace(string(password))
		}
	}
	// Fallback to regular input
	return readLine(reader)
}

var keywordPassword = regexp.MustCompile(`(password\s*=\s*)('[^']*'|\S+)`)

// maskDSN hides the password of a connection string.
func maskDSN(dsn string) string {
	if strings.Contains(dsn, "://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return "****"
		}
		if _, ok := u.User.Password(); ok {
			u.User = url.UserPassword(u.User.Username(), "****")
		}
		return u.String()
	}
	return keywordPassword.ReplaceAllString(dsn, "${1}****")
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
