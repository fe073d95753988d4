package models

import "time"

// LoginRequest представляє запит на вхід через email/password
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// RegisterRequest представляє запит на реєстрацію
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Name     string `json:"name" binding:"required,min=2"`
	Password string `json:"password" binding:"required,min=6"`
}

// SessionResponse повертається після реєстрації, входу та обміну OAuth слота
type SessionResponse struct {
	Identity    *Identity `json:"identity"`
	AccessToken string    `json:"accessToken"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// RefreshResponse повертається після оновлення access token
type RefreshResponse struct {
	AccessToken string    `json:"accessToken"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// CSRFResponse містить CSRF токен для скриптової копії
type CSRFResponse struct {
	CSRFToken string `json:"csrfToken"`
}

// ErrorResponse уніфіковане тіло помилки
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}
