package cli

import (
	"context"
	"strings"

	"github.com/DrakonKapysta/web-beat-api/internal/client/api"
)

// runWhoami спрашивает сервер о текущей сессии.
// Если access token истёк, guard ротирует пару и новые токены сохраняются локально
func (c *Cli) runWhoami(ctx context.Context) error {
	session, err := c.restoreSession(ctx)
	if err != nil {
		return err
	}

	id, err := c.apiClient.Validate(ctx)
	if err != nil {
		if api.IsUnauthorized(err) {
			c.io.Println("Session is no longer valid. Please run 'web-beat login'.")
		}
		return err
	}

	rotated, err := c.persistTokens(ctx, session)
	if err != nil {
		return err
	}

	c.io.Printf("ID: %s\n", id.ID)
	c.io.Printf("Email: %s\n", id.Email)
	c.io.Printf("Roles: %s\n", strings.Join(id.Roles, ", "))
	if rotated {
		c.io.Println("Session tokens were refreshed.")
	}

	return nil
}
