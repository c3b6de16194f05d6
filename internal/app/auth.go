package app

import (
	"context"
	"fmt"
)

// Auth makes sure a usable Google token is stored, running the consent flow when needed.
func (a *App) Auth(ctx context.Context) error {
	auth, err := a.newAuthorizer()
	if err != nil {
		return err
	}
	ts, err := auth.TokenSource(ctx)
	if err != nil {
		return fmt.Errorf("Auth: %w", err)
	}
	if _, err := ts.Token(); err != nil {
		return fmt.Errorf("Auth: obtaining token: %w", err)
	}
	a.Logger.Info().Str("token_file", a.Config.Google.TokenFile).Msg("Google authorization complete")
	return nil
}

// Reauth discards the stored token and runs the consent flow again.
func (a *App) Reauth(ctx context.Context) error {
	auth, err := a.newAuthorizer()
	if err != nil {
		return err
	}
	if _, err := auth.Reauth(ctx); err != nil {
		return fmt.Errorf("Reauth: %w", err)
	}
	a.Logger.Info().Str("token_file", a.Config.Google.TokenFile).Msg("Google re-authorization complete")
	return nil
}
