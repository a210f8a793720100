package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/DrakonKapysta/web-beat-api/internal/client/storage"
)

// runStatus показывает локальную сессию без обращения к серверу
func (c *Cli) runStatus(ctx context.Context) error {
	c.io.Println("=== Session Status ===")
	c.io.Println()

	session, err := c.store.GetSession(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrSessionNotFound) {
			c.io.Println("Status: Not authenticated")
			c.io.Println()
			c.io.Println("Run 'web-beat login' to authenticate.")
			return nil
		}
		return fmt.Errorf("failed to load session: %w", err)
	}

	c.io.Println("Status: Authenticated")
	c.io.Printf("Email: %s\n", session.Email)
	c.io.Printf("User ID: %s\n", session.UserID)
	c.io.Printf("Roles: %s\n", strings.Join(session.Roles, ", "))

	if session.AccessExpiresAt.IsZero() {
		return nil
	}

	c.io.Printf("Access token expires: %s\n", session.AccessExpiresAt.Local().Format(time.RFC3339))
	if remaining := time.Until(session.AccessExpiresAt); remaining > 0 {
		c.io.Printf("Time remaining: %s\n", remaining.Round(time.Second))
	} else {
		c.io.Println("Access token has expired. It will be refreshed on the next request.")
	}

	return nil
}
