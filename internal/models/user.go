package models

import "time"

// Role по умолчанию для новых пользователей
const RoleUser = "user"

// RoleAdmin даёт доступ к административным эндпоинтам
const RoleAdmin = "admin"

// User представляет пользователя в системе
type User struct {
	CreatedAt    time.Time `json:"created_at"` // время создания
	UpdatedAt    time.Time `json:"updated_at"` // время последнего обновления
	ID           string    `json:"id"`         // UUID пользователя
	Email        string    `json:"email"`      // уникальный email (логин)
	PasswordHash string    `json:"-"`          // bcrypt хеш пароля (соль внутри хеша)
	Roles        []string  `json:"roles"`      // набор ролей, может быть пустым
}

// RefreshToken представляет активную refresh-сессию пользователя.
// На одного пользователя хранится не более одной записи.
type RefreshToken struct {
	CreatedAt time.Time `json:"created_at"` // время создания записи
	UpdatedAt time.Time `json:"updated_at"` // время последней ротации
	ExpiresAt time.Time `json:"expires_at"` // время истечения токена
	ID        string    `json:"id"`         // UUID записи, сохраняется при ротации
	UserID    string    `json:"user_id"`    // ID пользователя
	Token     string    `json:"token"`      // подписанный refresh token
}
