// Package config loads the settings of a reconciliation run.
//
// Configuration is read once, from a TOML or YAML file chosen by extension,
// and handed to whatever needs it:
//
//	cfg, err := config.Load("ledger.toml")
//	p, err := pipeline.New(cfg, logger)
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml"
	"gopkg.in/yaml.v3"
)

const (
	EnvConfigPath = "LEDGER_RECON_CONFIG"
	EnvLogLevel   = "LEDGER_RECON_LOG_LEVEL"

	DefaultCurrency = "TWD"

	// GeneralMapping names the keyword mapping shared by every source.
	GeneralMapping = "general"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the whole configuration of a run.
type Config struct {
	Statements      StatementsConfig               `toml:"statements" yaml:"statements"`
	Beancount       BeancountConfig                `toml:"beancount" yaml:"beancount"`
	Processing      ProcessingConfig               `toml:"processing" yaml:"processing"`
	DefaultAccounts DefaultAccounts                `toml:"default_accounts" yaml:"default_accounts"`
	Mappings        map[string]map[string][]string `toml:"mappings" yaml:"mappings"`
	Sources         []Source                       `toml:"sources" yaml:"sources"`
	Logging         LoggingConfig                  `toml:"logging" yaml:"logging"`
}

// StatementsConfig locates the statement files to import.
type StatementsConfig struct {
	Folder string `toml:"folder" yaml:"folder"`
}

// BeancountConfig locates ledger files read and written by a run.
type BeancountConfig struct {
	OutputFolder    string `toml:"output_folder" yaml:"output_folder"`
	OverwriteFolder string `toml:"overwrite_folder" yaml:"overwrite_folder"`
	IgnoredFolder   string `toml:"ignored_folder" yaml:"ignored_folder"`
	OpenDate        string `toml:"open_date" yaml:"open_date"`
	Columns         int    `toml:"columns" yaml:"columns"`
}

// ProcessingConfig tunes the dedup stages.
type ProcessingConfig struct {
	TransferMatchingDays     int  `toml:"transfer_matching_days" yaml:"transfer_matching_days"`
	TransferIgnoreSameSource bool `toml:"transfer_ignore_same_source" yaml:"transfer_ignore_same_source"`
	MergeLookbackDays        int  `toml:"merge_lookback_days" yaml:"merge_lookback_days"`
	MergePostings            bool `toml:"merge_postings" yaml:"merge_postings"`
	TitleToleranceDays       int  `toml:"title_tolerance_days" yaml:"title_tolerance_days"`
}

// DefaultAccounts are used when no mapping matches.
type DefaultAccounts struct {
	Expenses       string `toml:"expenses" yaml:"expenses"`
	Income         string `toml:"income" yaml:"income"`
	ConversionDiff string `toml:"conversion_diff" yaml:"conversion_diff"`
}

// LoggingConfig sets the log level: debug, info, warn or error.
type LoggingConfig struct {
	Level string `toml:"level" yaml:"level"`
}

// Source describes one statement issuer and how to read its files.
type Source struct {
	// Name is matched against statement file paths
	Name        string `toml:"name" yaml:"name"`
	DisplayName string `toml:"display_name" yaml:"display_name"`
	// csv (default), qif or iif
	Format string `toml:"format" yaml:"format"`
	// statement type -> account of the source side posting
	Accounts map[string]string `toml:"accounts" yaml:"accounts"`

	Delimiter  string  `toml:"delimiter" yaml:"delimiter"`
	SkipRows   int     `toml:"skip_rows" yaml:"skip_rows"`
	DateLayout string  `toml:"date_layout" yaml:"date_layout"`
	Currency   string  `toml:"currency" yaml:"currency"`
	Negate     bool    `toml:"negate" yaml:"negate"`
	KeepSplits bool    `toml:"keep_splits" yaml:"keep_splits"`
	MergeRows  bool    `toml:"merge_rows" yaml:"merge_rows"`
	Columns    Columns `toml:"columns" yaml:"columns"`
}

// Columns name the CSV header fields. Empty names are guessed from the header.
type Columns struct {
	Date     string `toml:"date" yaml:"date"`
	Title    string `toml:"title" yaml:"title"`
	Amount   string `toml:"amount" yaml:"amount"`
	Withdraw string `toml:"withdraw" yaml:"withdraw"`
	Deposit  string `toml:"deposit" yaml:"deposit"`
	Note     string `toml:"note" yaml:"note"`
	Currency string `toml:"currency" yaml:"currency"`
}

// Load reads the configuration file at path and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	var set explicitSettings
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err = yaml.Unmarshal(data, &cfg); err == nil {
			err = yaml.Unmarshal(data, &set)
		}
	case ".toml":
		if err = toml.Unmarshal(data, &cfg); err == nil {
			err = toml.Unmarshal(data, &set)
		}
	default:
		return nil, fmt.Errorf("%w: unsupported config format %q", ErrInvalidConfig, filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	cfg.applyDefaults(set)
	if lvl := os.Getenv(EnvLogLevel); lvl != "" {
		cfg.Logging.Level = lvl
	}
	return &cfg, nil
}

// LoadFromEnv loads a .env file if present, then the file named by
// LEDGER_RECON_CONFIG.
func LoadFromEnv(envPath ...string) (*Config, error) {
	if len(envPath) > 0 && envPath[0] != "" {
		if err := godotenv.Load(envPath[0]); err != nil {
			return nil, fmt.Errorf("failed to load .env file: %w", err)
		}
	} else {
		// a missing .env in the working directory is fine
		_ = godotenv.Load()
	}

	path := os.Getenv(EnvConfigPath)
	if path == "" {
		return nil, fmt.Errorf("%w: %s is not set", ErrInvalidConfig, EnvConfigPath)
	}
	return Load(path)
}

// explicitSettings records which settings with a meaningful zero value the
// file spells out.
type explicitSettings struct {
	Processing struct {
		TransferMatchingDays *int `toml:"transfer_matching_days" yaml:"transfer_matching_days"`
		MergeLookbackDays    *int `toml:"merge_lookback_days" yaml:"merge_lookback_days"`
	} `toml:"processing" yaml:"processing"`
}

func (c *Config) applyDefaults(set explicitSettings) {
	if set.Processing.TransferMatchingDays == nil {
		c.Processing.TransferMatchingDays = 1
	}
	if set.Processing.MergeLookbackDays == nil {
		c.Processing.MergeLookbackDays = 3
	}
	if c.DefaultAccounts.Expenses == "" {
		c.DefaultAccounts.Expenses = "Expenses:Other"
	}
	if c.DefaultAccounts.Income == "" {
		c.DefaultAccounts.Income = "Income:Other"
	}
	if c.DefaultAccounts.ConversionDiff == "" {
		c.DefaultAccounts.ConversionDiff = "Income:PnL:ConversionDiffs"
	}
	if c.Beancount.OpenDate == "" {
		c.Beancount.OpenDate = "2020-01-01"
	}
	if c.Beancount.Columns == 0 {
		c.Beancount.Columns = 80
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	for i := range c.Sources {
		s := &c.Sources[i]
		if s.DisplayName == "" {
			s.DisplayName = s.Name
		}
		if s.Format == "" {
			s.Format = "csv"
		}
		if s.Delimiter == "" {
			s.Delimiter = ","
		}
		if s.Currency == "" {
			s.Currency = DefaultCurrency
		}
	}
}

// Validate reports every missing or malformed setting at once.
func (c *Config) Validate() error {
	var problems []string

	if c.Statements.Folder == "" {
		problems = append(problems, "statements.folder")
	}
	if c.Beancount.OutputFolder == "" {
		problems = append(problems, "beancount.output_folder")
	}
	if _, err := time.Parse(time.DateOnly, c.Beancount.OpenDate); err != nil {
		problems = append(problems, "beancount.open_date")
	}
	seen := make(map[string]bool)
	for i, s := range c.Sources {
		switch {
		case s.Name == "":
			problems = append(problems, fmt.Sprintf("sources[%d].name", i))
		case seen[s.Name]:
			problems = append(problems, fmt.Sprintf("sources[%d].name (duplicate %q)", i, s.Name))
		}
		seen[s.Name] = true
		if len(s.Accounts) == 0 {
			problems = append(problems, fmt.Sprintf("sources[%d].accounts", i))
		}
		switch s.Format {
		case "csv", "qif", "iif":
		default:
			problems = append(problems, fmt.Sprintf("sources[%d].format", i))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: missing or bad %s", ErrInvalidConfig, strings.Join(problems, ", "))
	}
	return nil
}

// Mapping returns the account -> keywords mapping of source, empty if none.
func (c *Config) Mapping(source string) map[string][]string {
	if m, ok := c.Mappings[source]; ok {
		return m
	}
	return map[string][]string{}
}

// OpenDate returns the date account open directives are written with.
func (c *Config) OpenDate() time.Time {
	t, _ := time.Parse(time.DateOnly, c.Beancount.OpenDate)
	return t
}

// Accounts lists every account named by default accounts and mappings,
// sorted and without duplicates.
func (c *Config) Accounts() []string {
	set := map[string]bool{
		c.DefaultAccounts.Expenses:       true,
		c.DefaultAccounts.Income:         true,
		c.DefaultAccounts.ConversionDiff: true,
	}
	for _, m := range c.Mappings {
		for account := range m {
			set[account] = true
		}
	}
	accounts := make([]string, 0, len(set))
	for a := range set {
		accounts = append(accounts, a)
	}
	sort.Strings(accounts)
	return accounts
}
