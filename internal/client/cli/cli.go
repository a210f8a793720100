package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"

	"github.com/DrakonKapysta/web-beat-api/internal/client/api"
	"github.com/DrakonKapysta/web-beat-api/internal/client/iocli"
	"github.com/DrakonKapysta/web-beat-api/internal/client/storage"
)

// PasswordEnv переменная окружения с паролем для неинтерактивного запуска
const PasswordEnv = "WEB_BEAT_PASSWORD"

// ErrUnknownCommand команда не распознана
var ErrUnknownCommand = errors.New("unknown command")

// PasswordSources источники пароля помимо интерактивного ввода
type PasswordSources struct {
	FromFile string
}

type Cli struct {
	apiClient *api.Client
	store     storage.SessionStorage
	io        iocli.IO
	passwords PasswordSources
}

func New(apiClient *api.Client, store storage.SessionStorage, io iocli.IO, passwords PasswordSources) *Cli {
	return &Cli{
		apiClient: apiClient,
		store:     store,
		io:        io,
		passwords: passwords,
	}
}

// Run выполняет команду
func (c *Cli) Run(ctx context.Context, command string) error {
	switch command {
	case "register":
		return c.runRegister(ctx)
	case "login":
		return c.runLogin(ctx)
	case "logout":
		return c.runLogout(ctx)
	case "status":
		return c.runStatus(ctx)
	case "whoami":
		return c.runWhoami(ctx)
	case "refresh":
		return c.runRefresh(ctx)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownCommand, command)
	}
}

// readPassword получает пароль из источников по приоритету:
// 1. Переменная окружения WEB_BEAT_PASSWORD
// 2. Файл из --password-file
// 3. Интерактивный ввод
func (c *Cli) readPassword(prompt string) (string, error) {
	if envPassword := os.Getenv(PasswordEnv); envPassword != "" {
		return envPassword, nil
	}

	if c.passwords.FromFile != "" {
		content, err := os.ReadFile(c.passwords.FromFile)
		if err != nil {
			return "", fmt.Errorf("failed to read password file: %w", err)
		}
		// Убираем trailing newline/whitespace
		password := strings.TrimSpace(string(content))
		if password == "" {
			return "", fmt.Errorf("password file is empty")
		}
		return password, nil
	}

	password, err := c.io.ReadPassword(prompt)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	if password == "" {
		return "", fmt.Errorf("password cannot be empty")
	}

	return password, nil
}

func passwordFromEnv() bool {
	return os.Getenv(PasswordEnv) != ""
}

// restoreSession загружает сохранённую сессию и кладёт её токены в cookie jar
func (c *Cli) restoreSession(ctx context.Context) (*storage.Session, error) {
	session, err := c.store.GetSession(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrSessionNotFound) {
			return nil, fmt.Errorf("not authenticated, please run 'web-beat login' first: %w", err)
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	if err := c.apiClient.SetTokens(session.AccessToken, session.RefreshToken); err != nil {
		return nil, err
	}

	return session, nil
}

// persistTokens сохраняет токены из cookie jar, если сервер их ротировал.
// Возвращает true, если пара изменилась
func (c *Cli) persistTokens(ctx context.Context, session *storage.Session) (bool, error) {
	access, refresh := c.apiClient.Tokens()
	if access == "" || refresh == "" {
		return false, nil
	}
	if access == session.AccessToken && refresh == session.RefreshToken {
		return false, nil
	}

	expiresAt := tokenExpiry(access)
	if err := c.store.UpdateTokens(ctx, access, refresh, expiresAt); err != nil {
		return false, fmt.Errorf("failed to save rotated tokens: %w", err)
	}

	session.AccessToken = access
	session.RefreshToken = refresh
	session.AccessExpiresAt = expiresAt

	return true, nil
}

// tokenExpiry читает exp из JWT без проверки подписи: ключей у клиента нет,
// значение нужно только для отображения статуса
func tokenExpiry(token string) time.Time {
	claims := &gojwt.RegisteredClaims{}
	if _, _, err := gojwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	if claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.UTC()
}

func PrintUsage(out iocli.IO) {
	out.Println("web-beat client")
	out.Println()
	out.Println("Usage:")
	out.Println("  web-beat [OPTIONS] COMMAND")
	out.Println()
	out.Println("Options:")
	out.Println("  --version             Show version information")
	out.Println("  --server URL          Server URL (default: http://localhost:3000)")
	out.Println("  --db PATH             Path to local session database (default: web-beat-client.db)")
	out.Println("  --password-file PATH  Path to file containing the password")
	out.Println()
	out.Println("Password Priority (highest to lowest):")
	out.Println("  1. " + PasswordEnv + " environment variable")
	out.Println("  2. --password-file (file path)")
	out.Println("  3. Interactive prompt (fallback)")
	out.Println()
	out.Println("Commands:")
	out.Println("  register   Register new user")
	out.Println("  login      Login and save the session locally")
	out.Println("  logout     Logout from all sessions and delete the local one")
	out.Println("  status     Show local session status")
	out.Println("  whoami     Ask the server who the current session belongs to")
	out.Println("  refresh    Rotate the token pair")
	out.Println()
	out.Println("Examples:")
	out.Println("  web-beat register")
	out.Println("  web-beat --server https://beat.example login")
	out.Println("  web-beat whoami")
}
