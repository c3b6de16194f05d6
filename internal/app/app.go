// Package app wires configuration into the mailbox, parser and ledger
// components used by the CLI commands.
package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"google.golang.org/api/option"

	"github.com/dvloznov/inbox-ledger/internal/config"
	"github.com/dvloznov/inbox-ledger/internal/gcsuploader"
	"github.com/dvloznov/inbox-ledger/internal/googleauth"
	infraBQ "github.com/dvloznov/inbox-ledger/internal/infra/bigquery"
	"github.com/dvloznov/inbox-ledger/internal/infra/csvfile"
	"github.com/dvloznov/inbox-ledger/internal/infra/postgres"
	"github.com/dvloznov/inbox-ledger/internal/infra/sheets"
	"github.com/dvloznov/inbox-ledger/internal/ledger"
	"github.com/dvloznov/inbox-ledger/internal/mailbox"
	"github.com/dvloznov/inbox-ledger/internal/notionsync"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

// preparer is implemented by sinks that create their destination table on first use.
type preparer interface {
	Prepare(ctx context.Context) error
}

func (a *App) newAuthorizer() (*googleauth.Authorizer, error) {
	oauthCfg, err := googleauth.LoadClientConfig(a.Config.Google.CredentialsFile, googleauth.Scopes...)
	if err != nil {
		return nil, err
	}
	store := googleauth.NewTokenStore(a.Config.Google.TokenFile)
	return googleauth.New(oauthCfg, store, a.Logger), nil
}

func (a *App) tokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	auth, err := a.newAuthorizer()
	if err != nil {
		return nil, err
	}
	return auth.TokenSource(ctx)
}

func (a *App) openSource(ctx context.Context, ts oauth2.TokenSource) (mailbox.Source, error) {
	mb := a.Config.Mailbox
	return mailbox.NewGmailSource(ctx, mb.UserID, mb.PageSize, a.Logger, option.WithTokenSource(ts))
}

// openSink builds the configured sink and prepares its destination.
func (a *App) openSink(ctx context.Context, name, runID string, ts oauth2.TokenSource) (ledger.Sink, error) {
	sink, err := a.newSink(ctx, name, runID, ts)
	if err != nil {
		return nil, err
	}
	if p, ok := sink.(preparer); ok {
		if err := p.Prepare(ctx); err != nil {
			sink.Close()
			return nil, fmt.Errorf("openSink: preparing %s sink: %w", name, err)
		}
	}
	a.Logger.Info().Str("sink", name).Msg("Ledger sink ready")
	return sink, nil
}

func (a *App) newSink(ctx context.Context, name, runID string, ts oauth2.TokenSource) (ledger.Sink, error) {
	cfg := a.Config
	switch name {
	case config.SinkSheets:
		return sheets.NewSink(ctx, sheets.Config{
			SpreadsheetID:    cfg.Sheets.SpreadsheetID,
			SheetName:        cfg.Sheets.SheetName,
			ValueInputOption: cfg.Sheets.ValueInputOption,
		}, a.Logger, option.WithTokenSource(ts))

	case config.SinkBigQuery:
		repo, err := infraBQ.NewBigQueryLedgerRepository(ctx, infraBQ.Config{
			ProjectID: cfg.BigQuery.ProjectID,
			Dataset:   cfg.BigQuery.Dataset,
			Table:     cfg.BigQuery.Table,
		})
		if err != nil {
			return nil, err
		}
		return infraBQ.NewSink(repo, runID, a.Logger), nil

	case config.SinkPostgres:
		pool, err := postgres.NewPool(ctx, postgres.Config{
			DSN:             cfg.Postgres.DSN,
			Table:           cfg.Postgres.Table,
			MaxOpenConns:    cfg.Postgres.MaxOpenConns,
			ConnMaxLifetime: cfg.Postgres.ConnMaxLifetime,
		})
		if err != nil {
			return nil, err
		}
		return postgres.NewSink(pool, cfg.Postgres.Table, runID, a.Logger), nil

	case config.SinkNotion:
		client := notionsync.NewNotionClient(cfg.Notion.Token)
		return notionsync.NewSink(client, cfg.Notion.DatabaseID, a.Logger), nil

	case config.SinkCSV:
		var storage gcsuploader.StorageService
		if gcsuploader.IsGCSURI(cfg.CSV.Path) {
			storage = gcsuploader.NewGCSStorageService()
		}
		return csvfile.NewSink(ctx, cfg.CSV.Path, storage, a.Logger)
	}
	return nil, fmt.Errorf("unknown ledger sink %q", name)
}

func (a *App) writerOptions() ledger.Options {
	l := a.Config.Ledger
	return ledger.Options{
		ChunkSize:  l.ChunkSize,
		MaxRetries: l.MaxRetries,
		BaseDelay:  l.BaseDelay,
		MaxDelay:   l.MaxDelay,
	}
}
