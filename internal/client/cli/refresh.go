package cli

import (
	"context"
	"time"

	"github.com/DrakonKapysta/web-beat-api/internal/client/api"
)

func (c *Cli) runRefresh(ctx context.Context) error {
	session, err := c.restoreSession(ctx)
	if err != nil {
		return err
	}

	if _, err := c.apiClient.Refresh(ctx); err != nil {
		if api.IsUnauthorized(err) {
			c.io.Println("Session is no longer valid. Please run 'web-beat login'.")
		}
		return err
	}

	if _, err := c.persistTokens(ctx, session); err != nil {
		return err
	}

	c.io.Println("✓ Tokens refreshed")
	if !session.AccessExpiresAt.IsZero() {
		c.io.Printf("Access token expires in: %s\n", time.Until(session.AccessExpiresAt).Round(time.Second))
	}

	return nil
}
