package crypto

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// PasswordCost стоимость bcrypt для хеширования паролей
const PasswordCost = bcrypt.DefaultCost

// ErrPasswordMismatch возвращается, если пароль не совпадает с хешем
var ErrPasswordMismatch = errors.New("password mismatch")

// HashPassword хеширует пароль с помощью bcrypt.
// Соль генерируется внутри и хранится в самом хеше
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password cannot be empty")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), PasswordCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	return string(hash), nil
}

// VerifyPassword проверяет пароль против bcrypt хеша.
// Возвращает ErrPasswordMismatch при несовпадении
func VerifyPassword(password, hash string) error {
	if hash == "" {
		return fmt.Errorf("hashed password cannot be empty")
	}

	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrPasswordMismatch
		}
		return fmt.Errorf("failed to verify password: %w", err)
	}

	return nil
}
