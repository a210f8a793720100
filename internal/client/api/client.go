package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/DrakonKapysta/web-beat-api/pkg/api"
)

// StatusError ответ сервера с кодом вне диапазона 2xx
type StatusError struct {
	Message    string
	Body       string
	StatusCode int
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("server error (%d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("request failed with status %d: %s", e.StatusCode, e.Body)
}

// IsUnauthorized сообщает, что сервер отклонил сессию (401)
func IsUnauthorized(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusUnauthorized
}

// Client представляет HTTP клиент для взаимодействия с сервером.
// Cookie сессии хранятся в cookie jar и отправляются автоматически
type Client struct {
	httpClient *http.Client
	jar        http.CookieJar
	baseURL    string
}

// NewClient создает новый API клиент
func NewClient(baseURL string) *Client {
	// cookiejar.New с nil options не возвращает ошибку
	jar, _ := cookiejar.New(nil)

	return &Client{
		baseURL: baseURL,
		jar:     jar,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Jar:     jar,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("stopped after 10 redirects")
				}
				return nil
			},
		},
	}
}

// SetTokens кладёт сохранённую пару токенов в cookie jar
func (c *Client) SetTokens(accessToken, refreshToken string) error {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}

	var cookies []*http.Cookie
	if accessToken != "" {
		cookies = append(cookies, &http.Cookie{Name: api.AccessTokenCookie, Value: accessToken, Path: "/"})
	}
	if refreshToken != "" {
		cookies = append(cookies, &http.Cookie{Name: api.RefreshTokenCookie, Value: refreshToken, Path: "/"})
	}
	c.jar.SetCookies(u, cookies)

	return nil
}

// Tokens возвращает текущую пару токенов из cookie jar.
// После ротации на сервере здесь уже новые значения
func (c *Client) Tokens() (accessToken, refreshToken string) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", ""
	}

	for _, ck := range c.jar.Cookies(u) {
		switch ck.Name {
		case api.AccessTokenCookie:
			accessToken = ck.Value
		case api.RefreshTokenCookie:
			refreshToken = ck.Value
		}
	}
	return accessToken, refreshToken
}

// Register регистрирует нового пользователя
func (c *Client) Register(ctx context.Context, req api.AuthRequest) (*api.RegisterResponse, error) {
	var resp api.RegisterResponse
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/auth/register", req, &resp); err != nil {
		return nil, fmt.Errorf("register request failed: %w", err)
	}
	return &resp, nil
}

// Login выполняет аутентификацию пользователя. Сервер устанавливает cookie сессии
func (c *Client) Login(ctx context.Context, req api.AuthRequest) (*api.LoginResponse, error) {
	var resp api.LoginResponse
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/auth/login", req, &resp); err != nil {
		return nil, fmt.Errorf("login request failed: %w", err)
	}
	return &resp, nil
}

// Validate возвращает личность текущей сессии
func (c *Client) Validate(ctx context.Context) (*api.Identity, error) {
	var resp api.Identity
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/auth/validate", nil, &resp); err != nil {
		return nil, fmt.Errorf("validate request failed: %w", err)
	}
	return &resp, nil
}

// Refresh перевыпускает пару токенов
func (c *Client) Refresh(ctx context.Context) (*api.TokenResponse, error) {
	var resp api.TokenResponse
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/auth/refresh", nil, &resp); err != nil {
		return nil, fmt.Errorf("refresh request failed: %w", err)
	}
	return &resp, nil
}

// Logout завершает все сессии пользователя на сервере
func (c *Client) Logout(ctx context.Context) error {
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/auth/logout", nil, nil); err != nil {
		return fmt.Errorf("logout request failed: %w", err)
	}
	return nil
}

// Health проверяет доступность сервера
func (c *Client) Health(ctx context.Context) (*api.HealthResponse, error) {
	var resp api.HealthResponse
	if err := c.doRequest(ctx, http.MethodGet, "/health", nil, &resp); err != nil {
		return nil, fmt.Errorf("health request failed: %w", err)
	}
	return &resp, nil
}

// doRequest выполняет HTTP запрос
func (c *Client) doRequest(ctx context.Context, method, path string, body, result any) error {
	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		se := &StatusError{StatusCode: resp.StatusCode, Body: string(respBody)}
		var errResp api.ErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil {
			se.Message = errResp.Message
		}
		return se
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}
