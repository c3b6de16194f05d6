package mailbox

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// GmailSource reads messages through the Gmail REST API.
type GmailSource struct {
	svc      *gmail.Service
	userID   string
	pageSize int64
	log      zerolog.Logger
}

// NewGmailSource creates a source for the given mailbox user ("me" for the
// authorized account). Credentials come from opts.
func NewGmailSource(ctx context.Context, userID string, pageSize int64, log zerolog.Logger, opts ...option.ClientOption) (*GmailSource, error) {
	svc, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("NewGmailSource: creating service: %w", err)
	}
	if userID == "" {
		userID = "me"
	}
	return &GmailSource{
		svc:      svc,
		userID:   userID,
		pageSize: pageSize,
		log:      log.With().Str("component", "mailbox").Logger(),
	}, nil
}

// ListMessageIDs returns the ids of every message matching q, following
// pagination, in the order the API returns them.
func (g *GmailSource) ListMessageIDs(ctx context.Context, q Query) ([]string, error) {
	query := q.String()
	g.log.Debug().Str("query", query).Msg("Searching mailbox")

	call := g.svc.Users.Messages.List(g.userID).Q(query)
	if g.pageSize > 0 {
		call = call.MaxResults(g.pageSize)
	}

	var ids []string
	err := call.Pages(ctx, func(resp *gmail.ListMessagesResponse) error {
		for _, m := range resp.Messages {
			ids = append(ids, m.Id)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ListMessageIDs: listing messages: %w", err)
	}

	g.log.Info().Int("count", len(ids)).Str("query", query).Msg("Found messages")
	return ids, nil
}

// RawMessage downloads one message in raw RFC 822 form.
func (g *GmailSource) RawMessage(ctx context.Context, id string) (RawMessage, error) {
	msg, err := g.svc.Users.Messages.Get(g.userID, id).Format("raw").Context(ctx).Do()
	if err != nil {
		return RawMessage{}, fmt.Errorf("RawMessage: fetching %s: %w", id, err)
	}

	data, err := DecodeRaw(msg.Raw)
	if err != nil {
		return RawMessage{}, fmt.Errorf("RawMessage: decoding %s: %w", id, err)
	}
	return RawMessage{ID: id, Data: data}, nil
}

// DecodeRaw decodes the base64url payload of a raw Gmail message, with or
// without padding.
func DecodeRaw(raw string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(raw, "="))
}
