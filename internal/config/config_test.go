package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "app:\n  name: test\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Mailbox.Sender != "alerts@axisbank.com" {
		t.Errorf("Mailbox.Sender = %q", cfg.Mailbox.Sender)
	}
	if cfg.Ledger.Sink != SinkSheets {
		t.Errorf("Ledger.Sink = %q, want %q", cfg.Ledger.Sink, SinkSheets)
	}
	if cfg.Ledger.ChunkSize != 100 || cfg.Ledger.MaxRetries != 5 {
		t.Errorf("Ledger chunk/retries = %d/%d, want 100/5", cfg.Ledger.ChunkSize, cfg.Ledger.MaxRetries)
	}
	if cfg.Ledger.BaseDelay != time.Second {
		t.Errorf("Ledger.BaseDelay = %s, want 1s", cfg.Ledger.BaseDelay)
	}
	if cfg.Sheets.SheetName != "AxisBank" || cfg.Sheets.ValueInputOption != "RAW" {
		t.Errorf("Sheets = %+v", cfg.Sheets)
	}
	if cfg.Google.TokenFile != "token.json" || cfg.Google.CredentialsFile != "credentials.json" {
		t.Errorf("Google = %+v", cfg.Google)
	}
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := writeConfig(t, `
ledger:
  sink: csv
  base_delay: 250ms
csv:
  path: /tmp/out.csv
mailbox:
  sender: alerts@example.com
`)
	t.Setenv("INBOXLEDGER_MAILBOX_SENDER", "env@example.com")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Ledger.Sink != SinkCSV {
		t.Errorf("Ledger.Sink = %q", cfg.Ledger.Sink)
	}
	if cfg.Ledger.BaseDelay != 250*time.Millisecond {
		t.Errorf("Ledger.BaseDelay = %s", cfg.Ledger.BaseDelay)
	}
	if cfg.Mailbox.Sender != "env@example.com" {
		t.Errorf("env override not applied, sender = %q", cfg.Mailbox.Sender)
	}
	if err := cfg.ValidateSink(); err != nil {
		t.Errorf("ValidateSink() error = %v", err)
	}
}

func TestLoad_UnknownSink(t *testing.T) {
	_, err := Load(writeConfig(t, "ledger:\n  sink: fax\n"))
	if err == nil || !strings.Contains(err.Error(), "fax") {
		t.Fatalf("Load() error = %v, want unknown sink error", err)
	}
}

func TestValidateSink(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"sheets without id", func(c *Config) {}, true},
		{"sheets with id", func(c *Config) { c.Sheets.SpreadsheetID = "abc" }, false},
		{"bigquery without project", func(c *Config) { c.Ledger.Sink = SinkBigQuery }, true},
		{"bigquery with project", func(c *Config) { c.Ledger.Sink = SinkBigQuery; c.BigQuery.ProjectID = "p" }, false},
		{"postgres without dsn", func(c *Config) { c.Ledger.Sink = SinkPostgres }, true},
		{"notion missing database", func(c *Config) { c.Ledger.Sink = SinkNotion; c.Notion.Token = "t" }, true},
		{"notion complete", func(c *Config) {
			c.Ledger.Sink = SinkNotion
			c.Notion.Token = "t"
			c.Notion.DatabaseID = "d"
		}, false},
		{"csv default path", func(c *Config) { c.Ledger.Sink = SinkCSV }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, ""))
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			tt.mutate(cfg)
			if err := cfg.ValidateSink(); (err != nil) != tt.wantErr {
				t.Errorf("ValidateSink() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	cfg.Ledger.ChunkSize = 0
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() should reject zero chunk size")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}
