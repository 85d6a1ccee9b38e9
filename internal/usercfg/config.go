package usercfg

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"planmyday/internal/errors"
	"planmyday/internal/logger"
	"planmyday/internal/task"

	"github.com/BurntSushi/toml"
)

// ErrNotConfigured is returned when no config file exists.
var ErrNotConfigured = fmt.Errorf("planmyday is not configured; run: planmyday setup")

// IsConfigured returns true if a config file exists or the API URL is set in the environment.
func IsConfigured() bool {
	if os.Getenv("PLANMYDAY_API_URL") != "" {
		return true
	}
	if configPath := Path(); configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return true
		}
	}
	return false
}

type Config struct {
	SchemaVersion     int           `toml:"schema_version,omitempty"`
	APIURL            string        `toml:"api_url"`
	WebURL            string        `toml:"web_url,omitempty"`
	TokenCommand      string        `toml:"token_command,omitempty"`
	DefaultColumn     string        `toml:"default_column"`
	RollbackOnFailure *bool         `toml:"rollback_on_failure"`
	AnchorRows        int           `toml:"anchor_rows,omitempty"`
	UIPrefs           UIPreferences `toml:"ui_prefs,omitempty"`
}

type UIPreferences struct {
	LastSelectedCol int    `toml:"last_selected_col,omitempty"`
	LastFilter      string `toml:"last_filter,omitempty"`
	ShowExtraFields bool   `toml:"show_extra_fields,omitempty"`
}

const CurrentSchemaVersion = 2

// Path returns the XDG-style location: ~/.config/planmyday/config.toml
func Path() string {
	if dir := os.Getenv("PLANMYDAY_CONFIG_DIR"); dir != "" {
		return filepath.Join(dir, "config.toml")
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(homeDir, ".config", "planmyday", "config.toml")
}

func Load() (Config, error) {
	configPath := Path()
	if configPath == "" {
		return getDefaults(), errors.NewConfigError("load", fmt.Errorf("unable to determine home directory"))
	}

	if _, err := os.Stat(configPath); err != nil {
		return getDefaults(), ErrNotConfigured
	}

	var config Config
	if _, err := toml.DecodeFile(configPath, &config); err != nil {
		return getDefaults(), errors.NewConfigError("load", fmt.Errorf("failed to decode config file: %v", err))
	}
	logger.Config("loaded %s (schema %d)", configPath, config.SchemaVersion)

	return mergeWithDefaults(migrateConfig(config)), nil
}

func Save(config Config) error {
	configPath := Path()
	if configPath == "" {
		return fmt.Errorf("unable to determine home directory")
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %v", err)
	}

	file, err := os.Create(configPath)
	if err != nil {
		return fmt.Errorf("failed to create config file: %v", err)
	}
	defer file.Close()

	if err := toml.NewEncoder(file).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %v", err)
	}
	logger.Config("saved %s", configPath)
	return nil
}

func GetRuntimeConfig() Config {
	config, err := Load()
	if err != nil && err != ErrNotConfigured {
		fmt.Fprintf(os.Stderr, "Warning: %v, using defaults\n", err)
		config = getDefaults()
	}

	return applyEnvOverlays(config)
}

func mergeWithDefaults(config Config) Config {
	defaults := getDefaults()
	config.SchemaVersion = CurrentSchemaVersion

	if config.APIURL == "" {
		config.APIURL = defaults.APIURL
	}
	if config.WebURL == "" {
		config.WebURL = defaults.WebURL
	}
	if _, err := task.ParseColumn(config.DefaultColumn); err != nil {
		config.DefaultColumn = defaults.DefaultColumn
	}
	// RollbackOnFailure defaults to false (nil is equivalent to false)
	if config.RollbackOnFailure == nil {
		config.RollbackOnFailure = defaults.RollbackOnFailure
	}
	if config.AnchorRows <= 0 {
		config.AnchorRows = defaults.AnchorRows
	}
	return config
}

// RollbackEnabled reports whether failed commits restore the pre-mutation board.
func (c Config) RollbackEnabled() bool {
	return c.RollbackOnFailure != nil && *c.RollbackOnFailure
}

// Column returns the default column for new cards.
func (c Config) Column() task.Column {
	col, err := task.ParseColumn(c.DefaultColumn)
	if err != nil {
		return task.ColumnTodo
	}
	return col
}

// applyEnvOverlays applies environment variable overlays to the config
func applyEnvOverlays(config Config) Config {
	if v := os.Getenv("PLANMYDAY_API_URL"); v != "" {
		config.APIURL = strings.TrimRight(v, "/")
	}
	if v := os.Getenv("PLANMYDAY_WEB_URL"); v != "" {
		config.WebURL = v
	}
	if v := os.Getenv("PLANMYDAY_TOKEN_COMMAND"); v != "" {
		config.TokenCommand = v
	}
	if v := os.Getenv("PLANMYDAY_DEFAULT_COLUMN"); v != "" {
		if col, err := task.ParseColumn(v); err == nil {
			config.DefaultColumn = string(col)
		} else {
			logger.Warn("ignoring PLANMYDAY_DEFAULT_COLUMN: %v", err)
		}
	}
	return config
}

// migrateConfig performs in-memory migration of config from older schema versions
func migrateConfig(config Config) Config {
	originalVersion := config.SchemaVersion

	// Version 0 files predate schema_version; the layout is otherwise the same.
	if originalVersion == 0 {
		config.SchemaVersion = 1
	}

	// Version 1 stored the default column by display title ("To Do").
	if config.SchemaVersion == 1 {
		if col, err := task.ParseColumn(config.DefaultColumn); err == nil {
			config.DefaultColumn = string(col)
		}
		config.SchemaVersion = 2
	}

	if originalVersion != config.SchemaVersion {
		logger.Config("migrated config from schema version %d to %d", originalVersion, config.SchemaVersion)
	}
	return config
}

// MigrateAndSave loads the config, applies migrations, and saves it back to disk.
// This is used by the `planmyday config migrate` command.
func MigrateAndSave() (from, to int, err error) {
	configPath := Path()
	if configPath == "" {
		return 0, 0, fmt.Errorf("unable to determine home directory")
	}
	if _, err := os.Stat(configPath); err != nil {
		return 0, 0, fmt.Errorf("no config file found to migrate")
	}

	var rawConfig Config
	if _, err := toml.DecodeFile(configPath, &rawConfig); err != nil {
		return 0, 0, fmt.Errorf("failed to decode config file: %v", err)
	}

	if rawConfig.SchemaVersion == CurrentSchemaVersion {
		return rawConfig.SchemaVersion, rawConfig.SchemaVersion, fmt.Errorf("config is already at current schema version %d", CurrentSchemaVersion)
	}

	config, err := Load()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to load config for migration: %v", err)
	}
	if err := Save(config); err != nil {
		return 0, 0, fmt.Errorf("failed to save migrated config: %v", err)
	}
	return rawConfig.SchemaVersion, config.SchemaVersion, nil
}

// SaveUIPrefs saves only the UI preferences to the config file
// This is lightweight and can be called frequently without impacting other config values
func SaveUIPrefs(prefs UIPreferences) error {
	config, err := Load()
	if err != nil {
		config = getDefaults()
	}
	config.UIPrefs = prefs
	return Save(config)
}

// GetUIPrefs returns the current UI preferences from the runtime config
func GetUIPrefs() UIPreferences {
	// Allow ignoring UI prefs via env for troubleshooting
	if os.Getenv("PLANMYDAY_IGNORE_UI_PREFS") == "1" {
		return UIPreferences{}
	}
	return GetRuntimeConfig().UIPrefs
}

// Keys lists the settable top-level keys, in file order.
var Keys = []string{"api_url", "web_url", "token_command", "default_column", "rollback_on_failure", "anchor_rows"}

// Get returns the string form of a top-level key.
func (c Config) Get(key string) (string, error) {
	switch key {
	case "api_url":
		return c.APIURL, nil
	case "web_url":
		return c.WebURL, nil
	case "token_command":
		return c.TokenCommand, nil
	case "default_column":
		return c.DefaultColumn, nil
	case "rollback_on_failure":
		return strconv.FormatBool(c.RollbackEnabled()), nil
	case "anchor_rows":
		return strconv.Itoa(c.AnchorRows), nil
	case "schema_version":
		return strconv.Itoa(c.SchemaVersion), nil
	}
	return "", fmt.Errorf("unknown config key %q (valid: %s)", key, strings.Join(Keys, ", "))
}

// Set parses value for key and stores it on c.
func (c *Config) Set(key, value string) error {
	value = strings.TrimSpace(value)
	switch key {
	case "api_url":
		if !strings.HasPrefix(value, "http://") && !strings.HasPrefix(value, "https://") {
			return fmt.Errorf("api_url must start with http:// or https://")
		}
		c.APIURL = strings.TrimRight(value, "/")
	case "web_url":
		c.WebURL = value
	case "token_command":
		c.TokenCommand = value
	case "default_column":
		col, err := task.ParseColumn(value)
		if err != nil {
			return err
		}
		c.DefaultColumn = string(col)
	case "rollback_on_failure":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("rollback_on_failure must be true or false")
		}
		c.RollbackOnFailure = &b
	case "anchor_rows":
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 {
			return fmt.Errorf("anchor_rows must be a positive integer")
		}
		c.AnchorRows = n
	default:
		return fmt.Errorf("unknown config key %q (valid: %s)", key, strings.Join(Keys, ", "))
	}
	return nil
}
