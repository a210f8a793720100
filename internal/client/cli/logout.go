package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/DrakonKapysta/web-beat-api/internal/client/api"
	"github.com/DrakonKapysta/web-beat-api/internal/client/storage"
)

func (c *Cli) runLogout(ctx context.Context) error {
	c.io.Println("=== Logout ===")

	if _, err := c.restoreSession(ctx); err != nil {
		if errors.Is(err, storage.ErrSessionNotFound) {
			c.io.Println("Not logged in.")
			return nil
		}
		return err
	}

	// Локальную сессию удаляем в любом случае: сервер мог уже отозвать её
	if err := c.apiClient.Logout(ctx); err != nil {
		if !api.IsUnauthorized(err) {
			c.io.Printf("Warning: server logout failed: %v\n", err)
		}
	}

	if err := c.store.DeleteSession(ctx); err != nil && !errors.Is(err, storage.ErrSessionNotFound) {
		return fmt.Errorf("failed to delete local session: %w", err)
	}

	c.io.Println("✓ Logout successful!")
	c.io.Println("Your local session has been deleted.")

	return nil
}
