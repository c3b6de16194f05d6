package notionsync

import (
	"context"
	"fmt"

	"github.com/jomei/notionapi"
	"github.com/rs/zerolog"

	"github.com/dvloznov/inbox-ledger/internal/ledger"
)

// Sink creates one Notion page per ledger row. Rows whose source message
// already has a page are skipped, so re-running a month does not duplicate
// entries.
type Sink struct {
	client     NotionService
	databaseID string
	log        zerolog.Logger

	seen map[string]bool
}

// NewSink creates a Notion sink for the given database.
func NewSink(client NotionService, databaseID string, log zerolog.Logger) *Sink {
	return &Sink{
		client:     client,
		databaseID: databaseID,
		log:        log.With().Str("component", "notion").Logger(),
		seen:       make(map[string]bool),
	}
}

// Prepare loads the message ids already present in the database.
func (s *Sink) Prepare(ctx context.Context) error {
	pages, err := queryAllNotionPages(ctx, s.client, s.databaseID)
	if err != nil {
		return fmt.Errorf("Prepare: %w", err)
	}
	for _, page := range pages {
		if id := extractMessageID(page); id != "" {
			s.seen[id] = true
		}
	}
	s.log.Info().Int("notion_page_count", len(pages)).Int("known_messages", len(s.seen)).Msg("Retrieved existing Notion pages")
	return nil
}

// Append creates pages in row order and stops at the first failure.
func (s *Sink) Append(ctx context.Context, rows []ledger.Row) error {
	var created, skipped int
	for _, row := range rows {
		if row.MessageID != "" && s.seen[row.MessageID] {
			skipped++
			s.log.Debug().Str("message_id", row.MessageID).Msg("Page already exists, skipping")
			continue
		}

		page, err := s.client.CreatePage(ctx, s.databaseID, RowToNotionProperties(row))
		if err != nil {
			return fmt.Errorf("Append: creating page for %q: %w", row.Merchant, err)
		}
		if row.MessageID != "" {
			s.seen[row.MessageID] = true
		}
		created++
		s.log.Debug().Str("page_id", string(page.ID)).Str("merchant", row.Merchant).Msg("Created Notion page")
	}

	s.log.Info().Int("created", created).Int("skipped", skipped).Msg("Notion chunk written")
	return nil
}

// Close is a no-op.
func (s *Sink) Close() error {
	return nil
}

// queryAllNotionPages queries all pages from a Notion database and returns them.
// Handles pagination automatically.
func queryAllNotionPages(ctx context.Context, notionClient NotionService, databaseID string) ([]notionapi.Page, error) {
	var allPages []notionapi.Page
	var cursor notionapi.Cursor

	for {
		req := &notionapi.DatabaseQueryRequest{
			PageSize: 100,
		}
		if cursor != "" {
			req.StartCursor = cursor
		}

		resp, err := notionClient.QueryDatabase(ctx, databaseID, req)
		if err != nil {
			return nil, fmt.Errorf("queryAllNotionPages: %w", err)
		}

		allPages = append(allPages, resp.Results...)

		if !resp.HasMore {
			break
		}
		cursor = resp.NextCursor
	}

	return allPages, nil
}
