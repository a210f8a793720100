package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/DrakonKapysta/web-beat-api/internal/client/storage"
	"github.com/DrakonKapysta/web-beat-api/internal/validation"
	"github.com/DrakonKapysta/web-beat-api/pkg/api"
)

func (c *Cli) runLogin(ctx context.Context) error {
	c.io.Println("=== Login ===")
	c.io.Println()

	email, err := c.io.ReadInput("Email: ")
	if err != nil {
		return fmt.Errorf("failed to read email: %w", err)
	}

	password, err := c.readPassword("Password: ")
	if err != nil {
		return err
	}

	c.io.Println()
	c.io.Println("Authenticating...")

	resp, err := c.apiClient.Login(ctx, api.AuthRequest{Login: validation.NormalizeEmail(email), Password: password})
	if err != nil {
		return err
	}

	session := &storage.Session{
		UserID:          resp.User.ID,
		Email:           resp.User.Email,
		AccessToken:     resp.AccessToken,
		RefreshToken:    resp.RefreshToken,
		AccessExpiresAt: tokenExpiry(resp.AccessToken),
		Roles:           []string{},
	}

	// Роли есть только в токене, спрашиваем их у сервера
	if id, err := c.apiClient.Validate(ctx); err == nil {
		session.Roles = id.Roles
	}

	if err := c.store.SaveSession(ctx, session); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	c.io.Println()
	c.io.Println("✓ Login successful!")
	c.io.Printf("Email: %s\n", session.Email)
	if !session.AccessExpiresAt.IsZero() {
		c.io.Printf("Access token expires in: %s\n", time.Until(session.AccessExpiresAt).Round(time.Second))
	}
	c.io.Println()
	c.io.Println("Your session has been saved. Logging in elsewhere will end it.")

	return nil
}
