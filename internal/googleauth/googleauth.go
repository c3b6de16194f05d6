// Package googleauth obtains user OAuth2 credentials for the Gmail and Sheets
// APIs using the installed-application flow, caching the token on disk.
package googleauth

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/sheets/v4"
)

// Scopes requested for the cached token.
var Scopes = []string{
	gmail.GmailReadonlyScope,
	sheets.SpreadsheetsScope,
}

// ErrMissingClientSecrets is returned when the OAuth client secrets file is absent.
var ErrMissingClientSecrets = errors.New("OAuth client secrets file not found; download credentials.json for a Desktop OAuth client and point google.credentials_file at it")

// LoadClientConfig reads an installed-app client secrets file.
func LoadClientConfig(path string, scopes ...string) (*oauth2.Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("LoadClientConfig: %s: %w", path, ErrMissingClientSecrets)
	}
	if err != nil {
		return nil, fmt.Errorf("LoadClientConfig: reading %s: %w", path, err)
	}

	cfg, err := google.ConfigFromJSON(data, scopes...)
	if err != nil {
		return nil, fmt.Errorf("LoadClientConfig: parsing %s: %w", path, err)
	}
	return cfg, nil
}

// Authorizer hands out token sources backed by a TokenStore, falling back to
// the browser consent flow when no usable token is stored.
type Authorizer struct {
	cfg   *oauth2.Config
	store *TokenStore
	log   zerolog.Logger

	// OpenURL presents the consent URL to the user. The default prints it to stderr.
	OpenURL func(url string) error
}

// New creates an Authorizer.
func New(cfg *oauth2.Config, store *TokenStore, log zerolog.Logger) *Authorizer {
	return &Authorizer{
		cfg:     cfg,
		store:   store,
		log:     log.With().Str("component", "googleauth").Logger(),
		OpenURL: printURL,
	}
}

// TokenSource returns a token source for API clients. Refreshed tokens are
// written back to the store.
func (a *Authorizer) TokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	tok := a.cachedToken(ctx)
	if tok == nil {
		var err error
		tok, err = a.authorizeOnce(ctx)
		if err != nil {
			return nil, fmt.Errorf("TokenSource: %w", err)
		}
	}
	return a.persisting(ctx, tok), nil
}

// Reauth discards the stored token and runs the consent flow again.
func (a *Authorizer) Reauth(ctx context.Context) (oauth2.TokenSource, error) {
	if err := a.store.Remove(); err != nil {
		return nil, fmt.Errorf("Reauth: %w", err)
	}
	a.log.Info().Str("token_file", a.store.Path()).Msg("Removed stored token")

	tok, err := a.authorizeOnce(ctx)
	if err != nil {
		return nil, fmt.Errorf("Reauth: %w", err)
	}
	return a.persisting(ctx, tok), nil
}

// cachedToken returns a valid stored token, refreshing it if needed, or nil
// when the consent flow has to run.
func (a *Authorizer) cachedToken(ctx context.Context) *oauth2.Token {
	tok, err := a.store.Load()
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			a.log.Warn().Err(err).Msg("Ignoring unreadable token file")
		}
		return nil
	}
	if tok.Valid() {
		return tok
	}
	if tok.RefreshToken == "" {
		return nil
	}

	fresh, err := a.cfg.TokenSource(ctx, tok).Token()
	if err != nil {
		a.log.Warn().Err(err).Msg("Failed to refresh token")
		if IsRevoked(err) {
			if rmErr := a.store.Remove(); rmErr != nil {
				a.log.Warn().Err(rmErr).Msg("Could not remove stale token")
			}
		}
		return nil
	}
	if err := a.store.Save(fresh); err != nil {
		a.log.Warn().Err(err).Msg("Could not persist refreshed token")
	}
	return fresh
}

// authorizeOnce runs the consent flow, retrying a single time after removing
// the stored token when the grant was rejected as revoked or expired.
func (a *Authorizer) authorizeOnce(ctx context.Context) (*oauth2.Token, error) {
	tok, err := a.authorize(ctx)
	if err != nil && IsRevoked(err) {
		a.log.Warn().Err(err).Msg("OAuth grant rejected, removing token and re-authenticating")
		if rmErr := a.store.Remove(); rmErr != nil {
			a.log.Warn().Err(rmErr).Msg("Could not remove stale token")
		}
		tok, err = a.authorize(ctx)
	}
	if err != nil {
		return nil, err
	}

	if err := a.store.Save(tok); err != nil {
		return nil, err
	}
	a.log.Info().Str("token_file", a.store.Path()).Msg("Authorization successful")
	return tok, nil
}

type callbackResult struct {
	code string
	err  error
}

// authorize runs the loopback redirect flow: a one-shot HTTP listener on
// 127.0.0.1 receives the authorization code, which is then exchanged.
func (a *Authorizer) authorize(ctx context.Context) (*oauth2.Token, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("authorize: starting callback listener: %w", err)
	}

	cfg := *a.cfg
	cfg.RedirectURL = "http://" + ln.Addr().String() + "/"
	state := uuid.NewString()

	results := make(chan callbackResult, 1)
	srv := &http.Server{
		Handler:           callbackHandler(state, results),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() { _ = srv.Serve(ln) }()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	authURL := cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	if err := a.OpenURL(authURL); err != nil {
		return nil, fmt.Errorf("authorize: presenting consent URL: %w", err)
	}

	var res callbackResult
	select {
	case res = <-results:
	case <-ctx.Done():
		return nil, fmt.Errorf("authorize: waiting for consent: %w", ctx.Err())
	}
	if res.err != nil {
		return nil, fmt.Errorf("authorize: %w", res.err)
	}

	tok, err := cfg.Exchange(ctx, res.code)
	if err != nil {
		return nil, fmt.Errorf("authorize: exchanging code: %w", err)
	}
	return tok, nil
}

func callbackHandler(state string, results chan<- callbackResult) http.Handler {
	var once sync.Once
	deliver := func(r callbackResult) {
		once.Do(func() { results <- r })
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("state") == "" && q.Get("code") == "" && q.Get("error") == "" {
			http.NotFound(w, r)
			return
		}
		if q.Get("state") != state {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			deliver(callbackResult{err: errors.New("callback state mismatch")})
			return
		}
		if e := q.Get("error"); e != "" {
			http.Error(w, "authorization denied: "+e, http.StatusForbidden)
			deliver(callbackResult{err: fmt.Errorf("authorization denied: %s", e)})
			return
		}
		code := q.Get("code")
		if code == "" {
			http.Error(w, "missing code", http.StatusBadRequest)
			deliver(callbackResult{err: errors.New("callback without authorization code")})
			return
		}
		fmt.Fprintln(w, "Authorization complete. You can close this window.")
		deliver(callbackResult{code: code})
	})
}

// IsRevoked reports whether err says the grant is invalid, expired or revoked.
func IsRevoked(err error) bool {
	if err == nil {
		return false
	}
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.ErrorCode == "invalid_grant" {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"invalid_grant", "revoked", "expired"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

func printURL(url string) error {
	_, err := fmt.Fprintf(os.Stderr, "Open the following URL in your browser to authorize access:\n\n%s\n\n", url)
	return err
}

// persistingSource saves every new access token it sees.
type persistingSource struct {
	base  oauth2.TokenSource
	store *TokenStore
	log   zerolog.Logger

	mu   sync.Mutex
	last string
}

func (a *Authorizer) persisting(ctx context.Context, tok *oauth2.Token) oauth2.TokenSource {
	return &persistingSource{
		base:  a.cfg.TokenSource(ctx, tok),
		store: a.store,
		log:   a.log,
		last:  tok.AccessToken,
	}
}

func (p *persistingSource) Token() (*oauth2.Token, error) {
	tok, err := p.base.Token()
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if tok.AccessToken != p.last {
		p.last = tok.AccessToken
		if err := p.store.Save(tok); err != nil {
			p.log.Warn().Err(err).Msg("Could not persist refreshed token")
		}
	}
	return tok, nil
}
