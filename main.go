package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"planmyday/internal/auth"
	"planmyday/internal/logger"
	"planmyday/internal/task"
	"planmyday/internal/taskapi"
	"planmyday/internal/usercfg"
	"planmyday/internal/version"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"
)

var updateCheckCh <-chan version.UpdateCheckResult

var rootCmd = &cobra.Command{
	Use:   "planmyday",
	Short: "Plan your day on a terminal kanban board",
	Long: `planmyday is a terminal client for the PlanMyDay task API.

Run without arguments to open the board, or use the subcommands to script
the same operations.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.SetVerbose(verbose)

		name := cmd.Name()
		if name != "update" && name != "version" {
			updateCheckCh = version.StartUpdateCheck()
		}
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if updateCheckCh == nil {
			return
		}
		select {
		case result := <-updateCheckCh:
			if result.NewVersion != "" {
				fmt.Fprintf(os.Stderr, "\n\033[33mA new version of planmyday is available: %s (current: %s)\033[0m\n", result.NewVersion, version.GetShortVersion())
				fmt.Fprintf(os.Stderr, "\033[33mRun 'planmyday update' to upgrade.\033[0m\n")
			}
		case <-time.After(500 * time.Millisecond):
		}
	},
	Run: runBoard,
}

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Configure planmyday interactively",
	Long:  "Launch a setup wizard for the API address, web app address, token command and board defaults",
	Run:   runSetup,
}

// configCmd provides config management subcommands
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage planmyday configuration",
	Long:  "Commands for managing the planmyday configuration file, migrations, and settings",
}

var configMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Migrate config file to current schema version",
	Long:  "Load the config file, apply any necessary schema migrations, and save it back to disk with the current schema version",
	Run:   runConfigMigrate,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the path to the configuration file",
	Long:  "Display the path where planmyday looks for its configuration file (XDG-compliant location)",
	Run:   runConfigPath,
}

var configPrintCmd = &cobra.Command{
	Use:   "print",
	Short: "Print the current configuration",
	Long:  "Display the current effective configuration, including defaults and environment variable overlays",
	Run:   runConfigPrint,
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a configuration value",
	Long:  "Retrieve and display a specific configuration value. Keys: " + strings.Join(usercfg.Keys, ", "),
	Args:  cobra.ExactArgs(1),
	Run:   runConfigGet,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long:  "Set a configuration value and save to file. Keys: " + strings.Join(usercfg.Keys, ", "),
	Args:  cobra.ExactArgs(2),
	Run:   runConfigSet,
}

var configDoctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check configuration health",
	Long:  "Validate the configuration file, check the session token and API reachability, and suggest fixes",
	Run:   runConfigDoctor,
}

// versionCmd displays version information
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long:  "Display version, build information, and platform details for planmyday",
	Run:   runVersion,
}

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Self-update planmyday to the latest release",
	Long:  "Check GitHub Releases for a newer version of planmyday and replace the current binary.",
	Run:   runUpdate,
}

// boardCmd launches the kanban TUI
var boardCmd = &cobra.Command{
	Use:   "board",
	Short: "Open the kanban board (Backlog / To Do / In Progress / Completed)",
	Long: `Open the kanban board for today's tasks.

Controls:
  - Mouse: drag a card onto a column or the burn barrel
  - Arrows / h j k l: Move selection
  - Space: Pick up the selected card, Space/Enter drops it, Esc cancels
  - a: Add a card to the selected column
  - t: Set the scheduled time of the selected card
  - x: Delete the selected card
  - /: Filter
  - g / A: Generate tasks with AI / align tasks with the plan
  - o: Open the web app in the browser
  - r: Refresh
  - q: Quit`,
	Example: "planmyday board",
	Run:     runBoard,
}

var verbose bool

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

	// Add subcommands
	rootCmd.AddCommand(boardCmd)
	rootCmd.AddCommand(setupCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(updateCmd)
	addCardCommands(rootCmd)

	// Add config subcommands
	configCmd.AddCommand(configMigrateCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configPrintCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configDoctorCmd)

	// Setup graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		fmt.Println("\n\033[93mOperation cancelled by user.\033[0m")
		os.Exit(0)
	}()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

func loadConfig() usercfg.Config {
	if !usercfg.IsConfigured() {
		logger.Config("no config file at %s, using defaults", usercfg.Path())
	}
	return usercfg.GetRuntimeConfig()
}

func runBoard(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	if err := StartBoard(cfg); err != nil {
		log.Fatalf("Board failed: %v", err)
	}
}

func runSetup(cmd *cobra.Command, args []string) {
	fmt.Println("planmyday Setup Wizard")
	fmt.Println("======================")

	currentConfig := usercfg.GetRuntimeConfig()
	newConfig := currentConfig
	isFirstRun := !usercfg.IsConfigured()

	if isFirstRun {
		fmt.Println("Welcome! Let's point planmyday at your task API.")
		fmt.Println()
	} else {
		fmt.Printf("Existing config found at %s, modifying.\n\n", usercfg.Path())
		fmt.Printf("  API URL: %s\n", currentConfig.APIURL)
		fmt.Printf("  Web URL: %s\n", currentConfig.WebURL)
		fmt.Printf("  Token command: %s\n", displayOrNone(currentConfig.TokenCommand))
		fmt.Printf("  Default column: %s\n", currentConfig.Column().Title())
		fmt.Printf("  Rollback on failure: %v\n", currentConfig.RollbackEnabled())
		fmt.Println()
	}

	var apiURL string
	if err := survey.AskOne(&survey.Input{
		Message: "Task API URL:",
		Default: currentConfig.APIURL,
	}, &apiURL, survey.WithValidator(survey.Required), survey.WithValidator(validateURL)); err != nil {
		fmt.Println("Setup cancelled")
		return
	}
	newConfig.APIURL = strings.TrimRight(strings.TrimSpace(apiURL), "/")

	var webURL string
	if err := survey.AskOne(&survey.Input{
		Message: "Web app URL (opened with 'o' on the board):",
		Default: currentConfig.WebURL,
	}, &webURL, survey.WithValidator(validateURL)); err != nil {
		fmt.Println("Setup cancelled")
		return
	}
	newConfig.WebURL = strings.TrimSpace(webURL)

	var tokenCommand string
	if err := survey.AskOne(&survey.Input{
		Message: "Command that prints your session token (e.g. op read op://Private/planmyday/token):",
		Default: currentConfig.TokenCommand,
		Help:    "Leave empty to supply the token through " + auth.EnvToken + " instead.",
	}, &tokenCommand); err != nil {
		fmt.Println("Setup cancelled")
		return
	}
	newConfig.TokenCommand = strings.TrimSpace(tokenCommand)

	columnOptions := make([]string, len(task.Columns))
	for i, col := range task.Columns {
		columnOptions[i] = col.Title()
	}
	var columnSelection string
	if err := survey.AskOne(&survey.Select{
		Message: "Which column should new cards land in by default?",
		Options: columnOptions,
		Default: currentConfig.Column().Title(),
	}, &columnSelection); err != nil {
		fmt.Println("Setup cancelled")
		return
	}
	if col, err := task.ParseColumn(columnSelection); err == nil {
		newConfig.DefaultColumn = string(col)
	}

	rollback := currentConfig.RollbackEnabled()
	if err := survey.AskOne(&survey.Confirm{
		Message: "Undo a board change when the server rejects it?",
		Default: rollback,
	}, &rollback); err != nil {
		fmt.Println("Setup cancelled")
		return
	}
	newConfig.RollbackOnFailure = &rollback

	newConfig.SchemaVersion = usercfg.CurrentSchemaVersion
	if err := usercfg.Save(newConfig); err != nil {
		log.Fatalf("Failed to save config: %v", err)
	}

	fmt.Printf("\n\033[92mConfiguration saved to %s\033[0m\n", usercfg.Path())
	fmt.Printf("  API URL: %s\n", newConfig.APIURL)
	if newConfig.TokenCommand == "" && os.Getenv(auth.EnvToken) == "" {
		fmt.Printf("\033[93m  No token source configured. Export %s or rerun setup.\033[0m\n", auth.EnvToken)
	}
}

func validateURL(ans interface{}) error {
	s, _ := ans.(string)
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") {
		return fmt.Errorf("must start with http:// or https://")
	}
	return nil
}

func displayOrNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

func runConfigMigrate(cmd *cobra.Command, args []string) {
	from, to, err := usercfg.MigrateAndSave()
	if err != nil {
		fmt.Printf("Migration failed: %v\n", err)
		os.Exit(1)
	}
	if from == to {
		fmt.Printf("Config already at schema v%d\n", to)
		return
	}
	fmt.Printf("Migrated config from schema v%d to v%d\n", from, to)
}

func runConfigPath(cmd *cobra.Command, args []string) {
	fmt.Println(usercfg.Path())
}

func runConfigPrint(cmd *cobra.Command, args []string) {
	config := usercfg.GetRuntimeConfig()

	fmt.Printf("Configuration (effective):\n")
	fmt.Printf("  Schema Version: %d\n", config.SchemaVersion)
	for _, key := range usercfg.Keys {
		value, _ := config.Get(key)
		fmt.Printf("  %s: %s\n", key, value)
	}
	fmt.Printf("  UI Preferences: %+v\n", config.UIPrefs)
	fmt.Printf("\nConfig file location: %s\n", usercfg.Path())
}

func runConfigGet(cmd *cobra.Command, args []string) {
	config := usercfg.GetRuntimeConfig()
	value, err := config.Get(args[0])
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	fmt.Println(value)
}

func runConfigSet(cmd *cobra.Command, args []string) {
	key := args[0]
	value := args[1]

	// Load current config
	config, err := usercfg.Load()
	if err != nil && !stderrors.Is(err, usercfg.ErrNotConfigured) {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := config.Set(key, value); err != nil {
		fmt.Printf("Invalid value for %s: %v\n", key, err)
		os.Exit(1)
	}
	config.SchemaVersion = usercfg.CurrentSchemaVersion

	if err := usercfg.Save(config); err != nil {
		fmt.Printf("Failed to save config: %v\n", err)
		os.Exit(1)
	}

	stored, _ := config.Get(key)
	fmt.Printf("Set %s = %s\n", key, stored)
}

func runConfigDoctor(cmd *cobra.Command, args []string) {
	fmt.Println("🏥 planmyday Configuration Doctor")
	fmt.Println("================================")

	issues := 0

	configPath := usercfg.Path()
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		fmt.Println("ℹ️  No config file found - using defaults")
		fmt.Printf("   Create one with: planmyday setup\n")
	} else {
		fmt.Println("✅ Config file found at XDG-compliant location")
	}

	config := usercfg.GetRuntimeConfig()

	if config.SchemaVersion < usercfg.CurrentSchemaVersion {
		fmt.Printf("⚠️  Config schema is outdated (v%d, current: v%d)\n", config.SchemaVersion, usercfg.CurrentSchemaVersion)
		fmt.Println("   Run: planmyday config migrate")
		issues++
	} else {
		fmt.Printf("✅ Config schema is current (v%d)\n", config.SchemaVersion)
	}

	if _, err := task.ParseColumn(config.DefaultColumn); err != nil {
		fmt.Printf("⚠️  Invalid default column: %s\n", config.DefaultColumn)
		fmt.Println("   Run: planmyday config set default_column todo")
		issues++
	} else {
		fmt.Printf("✅ Default column is valid: %s\n", config.Column().Title())
	}

	if !strings.HasPrefix(config.APIURL, "http://") && !strings.HasPrefix(config.APIURL, "https://") {
		fmt.Printf("⚠️  Invalid API URL format: %s\n", config.APIURL)
		fmt.Println("   Must start with http:// or https://")
		issues++
		fmt.Println()
		fmt.Printf("Found %d issue(s). See suggestions above.\n", issues)
		os.Exit(1)
	}
	fmt.Printf("✅ API URL configured: %s\n", config.APIURL)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tokens := auth.NewSource(config.TokenCommand)
	if _, claims, err := auth.Check(ctx, tokens); err != nil {
		fmt.Printf("⚠️  Session token unavailable: %s\n", firstLine(err.Error()))
		fmt.Printf("   Set %s or token_command (planmyday setup)\n", auth.EnvToken)
		issues++
	} else if claims.Subject != "" {
		fmt.Printf("✅ Session token found for %s\n", claims.Subject)
	} else {
		fmt.Println("✅ Session token found")
	}

	client := taskapi.New(config.APIURL, tokens)
	if tasks, err := client.Tasks(ctx); err != nil {
		fmt.Printf("⚠️  Task API not reachable: %s\n", firstLine(err.Error()))
		issues++
	} else {
		fmt.Printf("✅ Task API reachable at %s (%d tasks)\n", client.BaseURL(), len(tasks))
	}

	fmt.Println()
	if issues == 0 {
		fmt.Println("🎉 No issues found! Configuration looks healthy.")
	} else {
		fmt.Printf("Found %d issue(s). See suggestions above.\n", issues)
		os.Exit(1)
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func runVersion(cmd *cobra.Command, args []string) {
	fmt.Println(version.GetVersionString())

	// Check for available updates (synchronous since user is asking about version)
	ch := version.StartUpdateCheck()
	select {
	case result := <-ch:
		if result.NewVersion != "" {
			fmt.Printf("\n\033[33mUpdate available: %s (current: %s)\033[0m\n", result.NewVersion, version.GetShortVersion())
			fmt.Println("\033[33mRun 'planmyday update' to upgrade.\033[0m")
		}
	case <-time.After(5 * time.Second):
		// Don't block forever if GitHub is slow
	}
}

func runUpdate(cmd *cobra.Command, args []string) {
	fmt.Printf("Current version: %s\nChecking for updates...\n", version.GetShortVersion())

	installed, err := version.Update(cmd.Context())
	switch {
	case stderrors.Is(err, version.ErrDevBuild):
		fmt.Println("Cannot self-update a dev build. Install a released version first.")
	case err != nil:
		fmt.Println(err)
	case installed == "":
		fmt.Println("Already up to date.")
	default:
		fmt.Printf("Updated to %s\n", installed)
	}
}
