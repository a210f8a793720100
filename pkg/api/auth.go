package api

// Имена cookie, в которых сервер передаёт токены сессии
const (
	AccessTokenCookie  = "access_token"
	RefreshTokenCookie = "refresh_token"
)

// AuthRequest представляет запрос на регистрацию или вход
type AuthRequest struct {
	Login    string `json:"login"`    // email пользователя
	Password string `json:"password"` // пароль в открытом виде (только по TLS)
}

// RegisterResponse представляет ответ на успешную регистрацию
type RegisterResponse struct {
	ID    string `json:"id"`    // UUID пользователя
	Email string `json:"email"` // email пользователя
}

// UserInfo краткая информация о пользователе
type UserInfo struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// LoginResponse представляет ответ на успешный вход
type LoginResponse struct {
	User         UserInfo `json:"user"`
	AccessToken  string   `json:"access_token"`  // JWT access token (15 минут)
	RefreshToken string   `json:"refresh_token"` // JWT refresh token (7 дней)
}

// TokenResponse представляет ответ с перевыпущенной парой токенов
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Identity личность, подтверждённая guard-ом
type Identity struct {
	ID    string   `json:"id"`
	Email string   `json:"email"`
	Roles []string `json:"roles"`
}

// HealthResponse представляет ответ health check
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Storage string `json:"storage,omitempty"`
}

// ErrorResponse представляет ответ с ошибкой
type ErrorResponse struct {
	Error   string `json:"error"`             // текст HTTP статуса
	Message string `json:"message,omitempty"` // причина ошибки
}
