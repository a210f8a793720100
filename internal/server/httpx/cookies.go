package httpx

import (
	"net/http"
	"strings"
	"time"

	"github.com/DrakonKapysta/web-beat-api/pkg/api"
)

// CookieConfig задаёт атрибуты cookie сессии
type CookieConfig struct {
	Domain   string
	Path     string
	SameSite http.SameSite
	Secure   bool
}

// SessionCookies устанавливает access и refresh cookie.
// Max-Age совпадает со временем жизни токена
func SessionCookies(w http.ResponseWriter, cfg CookieConfig, access string, accessTTL time.Duration, refresh string, refreshTTL time.Duration) {
	setCookie(w, cfg, api.AccessTokenCookie, access, int(accessTTL.Seconds()))
	setCookie(w, cfg, api.RefreshTokenCookie, refresh, int(refreshTTL.Seconds()))
}

// ClearSessionCookies просит клиента удалить обе cookie
func ClearSessionCookies(w http.ResponseWriter, cfg CookieConfig) {
	expireCookie(w, cfg, api.AccessTokenCookie)
	expireCookie(w, cfg, api.RefreshTokenCookie)
}

func setCookie(w http.ResponseWriter, cfg CookieConfig, name, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     cookiePath(cfg),
		Domain:   cfg.Domain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: cfg.SameSite,
	})
}

func expireCookie(w http.ResponseWriter, cfg CookieConfig, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     cookiePath(cfg),
		Domain:   cfg.Domain,
		Expires:  time.Unix(0, 0).UTC(),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: cfg.SameSite,
	})
}

func cookiePath(cfg CookieConfig) string {
	if cfg.Path == "" {
		return "/"
	}
	return cfg.Path
}

// AccessToken извлекает access token: сначала заголовок Authorization: Bearer, затем cookie
func AccessToken(r *http.Request) string {
	if token, ok := BearerToken(r); ok {
		return token
	}
	return cookieValue(r, api.AccessTokenCookie)
}

// RefreshToken извлекает refresh token из cookie
func RefreshToken(r *http.Request) string {
	return cookieValue(r, api.RefreshTokenCookie)
}

// BearerToken возвращает токен из заголовка "Authorization: Bearer <token>"
func BearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}

	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(c.Value)
}
