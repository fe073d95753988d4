// Package tokencheck перевіряє access token на боці клієнта перед тим, як
// показувати дані з нього в інтерфейсі. Підпис не перевіряється: рішення
// про доступ завжди приймає сервер.
package tokencheck

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Помилки перевірки
var (
	ErrMalformed     = errors.New("tokencheck: malformed token")
	ErrInvalidClaims = errors.New("tokencheck: invalid claims")
	ErrExpired       = errors.New("tokencheck: token expired")
)

const (
	defaultClockSkew = 30 * time.Second
	defaultCacheSize = 16
)

// Claims типізовані claims access token
type Claims struct {
	Subject   string
	Email     string
	Role      string
	TokenType string
	Issuer    string
	Audience  []string
	ID        string
	ExpiresAt time.Time
	IssuedAt  time.Time
	NotBefore time.Time
}

// Expired повідомляє, чи минув строк дії на момент now
func (c *Claims) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// CheckStructure перевіряє, що токен має три непорожні base64url сегменти
func CheckStructure(token string) error {
	segments := strings.Split(token, ".")
	if len(segments) != 3 {
		return fmt.Errorf("%w: expected 3 segments, got %d", ErrMalformed, len(segments))
	}
	for i, segment := range segments {
		if segment == "" {
			return fmt.Errorf("%w: segment %d is empty", ErrMalformed, i)
		}
		if !isBase64URL(strings.TrimRight(segment, "=")) {
			return fmt.Errorf("%w: segment %d has invalid characters", ErrMalformed, i)
		}
	}
	return nil
}

func isBase64URL(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}

// ParseClaims декодує payload і перевіряє типи claims.
// exp і sub обов'язкові; iat більше за now+skew вважається підробкою годинника.
// Строк дії тут не перевіряється.
func ParseClaims(token string, now time.Time, skew time.Duration) (*Claims, error) {
	if err := CheckStructure(token); err != nil {
		return nil, err
	}

	payload, err := jwt.NewParser().DecodeSegment(strings.Split(token, ".")[1])
	if err != nil {
		return nil, fmt.Errorf("%w: payload encoding: %v", ErrMalformed, err)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("%w: payload is not a JSON object", ErrMalformed)
	}

	claims := &Claims{}

	exp, present, err := numericDate(raw, "exp")
	if err != nil {
		return nil, err
	}
	if !present {
		return nil, fmt.Errorf("%w: exp is required", ErrInvalidClaims)
	}
	claims.ExpiresAt = exp

	sub, present, err := stringClaim(raw, "sub")
	if err != nil {
		return nil, err
	}
	if !present || sub == "" {
		return nil, fmt.Errorf("%w: sub is required", ErrInvalidClaims)
	}
	claims.Subject = sub

	for name, target := range map[string]*string{
		"email":      &claims.Email,
		"role":       &claims.Role,
		"token_type": &claims.TokenType,
		"iss":        &claims.Issuer,
		"jti":        &claims.ID,
	} {
		value, _, err := stringClaim(raw, name)
		if err != nil {
			return nil, err
		}
		*target = value
	}

	if claims.Audience, err = audienceClaim(raw); err != nil {
		return nil, err
	}
	if claims.IssuedAt, _, err = numericDate(raw, "iat"); err != nil {
		return nil, err
	}
	if claims.NotBefore, _, err = numericDate(raw, "nbf"); err != nil {
		return nil, err
	}

	if !claims.IssuedAt.IsZero() && claims.IssuedAt.After(now.Add(skew)) {
		return nil, fmt.Errorf("%w: iat is in the future", ErrInvalidClaims)
	}
	if claims.TokenType != "" && claims.TokenType != "access" {
		return nil, fmt.Errorf("%w: unexpected token_type %q", ErrInvalidClaims, claims.TokenType)
	}

	return claims, nil
}

func stringClaim(raw map[string]interface{}, name string) (string, bool, error) {
	value, present := raw[name]
	if !present || value == nil {
		return "", false, nil
	}
	s, ok := value.(string)
	if !ok {
		return "", true, fmt.Errorf("%w: %s must be a string", ErrInvalidClaims, name)
	}
	return s, true, nil
}

func numericDate(raw map[string]interface{}, name string) (time.Time, bool, error) {
	value, present := raw[name]
	if !present || value == nil {
		return time.Time{}, false, nil
	}
	n, ok := value.(float64)
	if !ok || math.IsNaN(n) || math.IsInf(n, 0) || n < 0 {
		return time.Time{}, true, fmt.Errorf("%w: %s must be a numeric date", ErrInvalidClaims, name)
	}
	sec, frac := math.Modf(n)
	return time.Unix(int64(sec), int64(frac*1e9)), true, nil
}

func audienceClaim(raw map[string]interface{}) ([]string, error) {
	value, present := raw["aud"]
	if !present || value == nil {
		return nil, nil
	}
	switch v := value.(type) {
	case string:
		return []string{v}, nil
	case []interface{}:
		audience := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%w: aud must contain strings", ErrInvalidClaims)
			}
			audience = append(audience, s)
		}
		return audience, nil
	default:
		return nil, fmt.Errorf("%w: aud must be a string or array", ErrInvalidClaims)
	}
}

// Config налаштування Validator
type Config struct {
	Now       func() time.Time
	ClockSkew time.Duration
	CacheSize int
}

// Validator перевіряє токени і запам'ятовує результат розбору для останніх токенів
type Validator struct {
	now   func() time.Time
	skew  time.Duration
	size  int
	mutex sync.Mutex
	cache map[string]*Claims
	order []string
}

// NewValidator створює новий Validator
func NewValidator(cfg Config) *Validator {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.ClockSkew <= 0 {
		cfg.ClockSkew = defaultClockSkew
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = defaultCacheSize
	}
	return &Validator{
		now:   cfg.Now,
		skew:  cfg.ClockSkew,
		size:  cfg.CacheSize,
		cache: make(map[string]*Claims, cfg.CacheSize),
	}
}

// Validate повертає claims або nil, якщо токен некоректний чи прострочений
func (v *Validator) Validate(token string) *Claims {
	claims, err := v.Check(token)
	if err != nil {
		return nil
	}
	return claims
}

// Check те саме, що Validate, але повідомляє причину відмови
func (v *Validator) Check(token string) (*Claims, error) {
	now := v.now()

	v.mutex.Lock()
	claims, cached := v.cache[token]
	v.mutex.Unlock()

	if !cached {
		parsed, err := ParseClaims(token, now, v.skew)
		if err != nil {
			return nil, err
		}
		claims = parsed
		v.remember(token, claims)
	}

	if claims.Expired(now) {
		return nil, ErrExpired
	}
	copied := *claims
	copied.Audience = append([]string(nil), claims.Audience...)
	return &copied, nil
}

// Len повертає кількість токенів у кеші
func (v *Validator) Len() int {
	v.mutex.Lock()
	defer v.mutex.Unlock()
	return len(v.cache)
}

// remember додає запис, витісняючи найстаріший при переповненні
func (v *Validator) remember(token string, claims *Claims) {
	v.mutex.Lock()
	defer v.mutex.Unlock()

	if _, exists := v.cache[token]; exists {
		return
	}
	if len(v.order) >= v.size {
		oldest := v.order[0]
		v.order = v.order[1:]
		delete(v.cache, oldest)
	}
	v.cache[token] = claims
	v.order = append(v.order, token)
}
