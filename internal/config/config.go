package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/dvloznov/inbox-ledger/internal/logger"
)

// Sink names accepted by ledger.sink.
const (
	SinkSheets   = "sheets"
	SinkBigQuery = "bigquery"
	SinkPostgres = "postgres"
	SinkNotion   = "notion"
	SinkCSV      = "csv"
)

// Config materialises application configuration.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Logging  logger.Config  `mapstructure:"logging"`
	Google   GoogleConfig   `mapstructure:"google"`
	Mailbox  MailboxConfig  `mapstructure:"mailbox"`
	Ledger   LedgerConfig   `mapstructure:"ledger"`
	Sheets   SheetsConfig   `mapstructure:"sheets"`
	BigQuery BigQueryConfig `mapstructure:"bigquery"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	Notion   NotionConfig   `mapstructure:"notion"`
	CSV      CSVConfig      `mapstructure:"csv"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name       string        `mapstructure:"name"`
	RunTimeout time.Duration `mapstructure:"run_timeout"`
}

// GoogleConfig locates the OAuth client secrets and the cached user token.
type GoogleConfig struct {
	CredentialsFile string `mapstructure:"credentials_file"`
	TokenFile       string `mapstructure:"token_file"`
}

// MailboxConfig scopes which messages are fetched.
type MailboxConfig struct {
	UserID   string `mapstructure:"user_id"`
	Sender   string `mapstructure:"sender"`
	PageSize int64  `mapstructure:"page_size"`
}

// LedgerConfig selects the sink and governs chunked, retried writes.
type LedgerConfig struct {
	Sink       string        `mapstructure:"sink"`
	ChunkSize  int           `mapstructure:"chunk_size"`
	MaxRetries int           `mapstructure:"max_retries"`
	BaseDelay  time.Duration `mapstructure:"base_delay"`
	MaxDelay   time.Duration `mapstructure:"max_delay"`
}

// SheetsConfig points at the worksheet rows are appended to.
type SheetsConfig struct {
	SpreadsheetID    string `mapstructure:"spreadsheet_id"`
	SheetName        string `mapstructure:"sheet_name"`
	ValueInputOption string `mapstructure:"value_input_option"`
}

// BigQueryConfig names the ledger table.
type BigQueryConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Dataset   string `mapstructure:"dataset"`
	Table     string `mapstructure:"table"`
}

// PostgresConfig encapsulates PostgreSQL connectivity.
type PostgresConfig struct {
	DSN             string        `mapstructure:"dsn"`
	Table           string        `mapstructure:"table"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// NotionConfig targets a Notion database.
type NotionConfig struct {
	Token      string `mapstructure:"token"`
	DatabaseID string `mapstructure:"database_id"`
}

// CSVConfig sets where the csv sink writes. Paths starting with gs:// are uploaded to GCS.
type CSVConfig struct {
	Path string `mapstructure:"path"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("INBOXLEDGER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "inbox-ledger")
	v.SetDefault("app.run_timeout", "10m")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.caller", false)

	v.SetDefault("google.credentials_file", "credentials.json")
	v.SetDefault("google.token_file", "token.json")

	v.SetDefault("mailbox.user_id", "me")
	v.SetDefault("mailbox.sender", "alerts@axisbank.com")
	v.SetDefault("mailbox.page_size", 100)

	v.SetDefault("ledger.sink", SinkSheets)
	v.SetDefault("ledger.chunk_size", 100)
	v.SetDefault("ledger.max_retries", 5)
	v.SetDefault("ledger.base_delay", "1s")
	v.SetDefault("ledger.max_delay", "1m")

	v.SetDefault("sheets.spreadsheet_id", "")
	v.SetDefault("sheets.sheet_name", "AxisBank")
	v.SetDefault("sheets.value_input_option", "RAW")

	v.SetDefault("bigquery.project_id", "")
	v.SetDefault("bigquery.dataset", "finance")
	v.SetDefault("bigquery.table", "ledger_entries")

	v.SetDefault("postgres.dsn", "")
	v.SetDefault("postgres.table", "ledger_entries")
	v.SetDefault("postgres.max_open_conns", 4)
	v.SetDefault("postgres.conn_max_lifetime", "30m")

	v.SetDefault("notion.token", "")
	v.SetDefault("notion.database_id", "")

	v.SetDefault("csv.path", "transactions.csv")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
// Settings of the selected sink are checked separately by ValidateSink, since
// commands like parse and auth never open a sink.
func (c *Config) Validate() error {
	if c.Mailbox.Sender == "" {
		return fmt.Errorf("mailbox.sender must be set")
	}
	if c.Ledger.ChunkSize <= 0 {
		return fmt.Errorf("ledger.chunk_size must be greater than zero")
	}
	if c.Ledger.MaxRetries < 0 {
		return fmt.Errorf("ledger.max_retries cannot be negative")
	}
	if c.Ledger.BaseDelay <= 0 {
		return fmt.Errorf("ledger.base_delay must be greater than zero")
	}
	if c.App.RunTimeout <= 0 {
		return fmt.Errorf("app.run_timeout must be greater than zero")
	}
	switch c.Ledger.Sink {
	case SinkSheets, SinkBigQuery, SinkPostgres, SinkNotion, SinkCSV:
	default:
		return fmt.Errorf("unknown ledger.sink %q", c.Ledger.Sink)
	}
	return nil
}

// ValidateSink checks the settings the selected sink needs.
func (c *Config) ValidateSink() error {
	switch c.Ledger.Sink {
	case SinkSheets:
		if c.Sheets.SpreadsheetID == "" || c.Sheets.SheetName == "" {
			return fmt.Errorf("sheets.spreadsheet_id and sheets.sheet_name must be set for the sheets sink")
		}
	case SinkBigQuery:
		if c.BigQuery.ProjectID == "" {
			return fmt.Errorf("bigquery.project_id must be set for the bigquery sink")
		}
	case SinkPostgres:
		if c.Postgres.DSN == "" {
			return fmt.Errorf("postgres.dsn must be set for the postgres sink")
		}
	case SinkNotion:
		if c.Notion.Token == "" || c.Notion.DatabaseID == "" {
			return fmt.Errorf("notion.token and notion.database_id must be set for the notion sink")
		}
	case SinkCSV:
		if c.CSV.Path == "" {
			return fmt.Errorf("csv.path must be set for the csv sink")
		}
	default:
		return fmt.Errorf("unknown ledger.sink %q", c.Ledger.Sink)
	}
	return nil
}
