package authclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// Помилки клієнта сесії
var (
	ErrNotAuthenticated = errors.New("authclient: not authenticated")
	ErrSessionExpired   = errors.New("authclient: session expired")
	ErrInvalidToken     = errors.New("authclient: invalid access token")
	ErrNoCSRFToken      = errors.New("authclient: server did not issue a CSRF token")
)

// APIError відповідь сервера з кодом помилки
type APIError struct {
	Status      int    `json:"-"`
	Code        string `json:"error"`
	Description string `json:"error_description"`
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("authclient: unexpected status %d", e.Status)
	}
	return fmt.Sprintf("authclient: %d %s: %s", e.Status, e.Code, e.Description)
}

// StatusCode повертає HTTP статус з помилки або 0
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// readAPIError читає тіло помилки і закриває його
func readAPIError(resp *http.Response) error {
	defer resp.Body.Close()

	apiErr := &APIError{Status: resp.StatusCode}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err == nil && len(body) > 0 {
		_ = json.Unmarshal(body, apiErr)
	}
	return apiErr
}
