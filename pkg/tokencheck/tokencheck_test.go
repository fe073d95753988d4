package tokencheck

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

func unsignedToken(t *testing.T, payload interface{}) string {
	t.Helper()
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	return header + "." + base64.RawURLEncoding.EncodeToString(body) + ".c2ln"
}

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)
	return token
}

func TestCheckStructure(t *testing.T) {
	tests := []struct {
		name    string
		token   string
		wantErr bool
	}{
		{"valid", "aaa.bbb.ccc", false},
		{"padding allowed", "aaa.bbb=.ccc", false},
		{"two segments", "aaa.bbb", true},
		{"four segments", "a.b.c.d", true},
		{"empty segment", "aaa..ccc", true},
		{"invalid characters", "aaa.b+b.ccc", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckStructure(tt.token)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformed)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParseClaims(t *testing.T) {
	exp := float64(testNow.Add(time.Hour).Unix())

	t.Run("signed access token", func(t *testing.T) {
		token := signedToken(t, jwt.MapClaims{
			"sub":        "user-1",
			"email":      "a@x.com",
			"role":       "admin",
			"token_type": "access",
			"aud":        []string{"admin-dashboard"},
			"exp":        exp,
			"iat":        float64(testNow.Unix()),
		})

		claims, err := ParseClaims(token, testNow, time.Minute)
		require.NoError(t, err)
		assert.Equal(t, "user-1", claims.Subject)
		assert.Equal(t, "a@x.com", claims.Email)
		assert.Equal(t, "admin", claims.Role)
		assert.Equal(t, []string{"admin-dashboard"}, claims.Audience)
		assert.Equal(t, testNow.Add(time.Hour).Unix(), claims.ExpiresAt.Unix())
	})

	tests := []struct {
		name    string
		payload map[string]interface{}
		wantErr error
	}{
		{"missing exp", map[string]interface{}{"sub": "u"}, ErrInvalidClaims},
		{"missing sub", map[string]interface{}{"exp": exp}, ErrInvalidClaims},
		{"empty sub", map[string]interface{}{"sub": "", "exp": exp}, ErrInvalidClaims},
		{"string exp", map[string]interface{}{"sub": "u", "exp": "tomorrow"}, ErrInvalidClaims},
		{"numeric email", map[string]interface{}{"sub": "u", "exp": exp, "email": 42}, ErrInvalidClaims},
		{"numeric audience", map[string]interface{}{"sub": "u", "exp": exp, "aud": 7}, ErrInvalidClaims},
		{"refresh token", map[string]interface{}{"sub": "u", "exp": exp, "token_type": "refresh"}, ErrInvalidClaims},
		{"iat in the future", map[string]interface{}{"sub": "u", "exp": exp, "iat": float64(testNow.Add(10 * time.Minute).Unix())}, ErrInvalidClaims},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseClaims(unsignedToken(t, tt.payload), testNow, time.Minute)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	t.Run("iat within skew", func(t *testing.T) {
		token := unsignedToken(t, map[string]interface{}{"sub": "u", "exp": exp, "iat": float64(testNow.Add(20 * time.Second).Unix())})
		_, err := ParseClaims(token, testNow, time.Minute)
		assert.NoError(t, err)
	})

	t.Run("payload is not json", func(t *testing.T) {
		token := "aaa." + base64.RawURLEncoding.EncodeToString([]byte("not json")) + ".ccc"
		_, err := ParseClaims(token, testNow, time.Minute)
		assert.ErrorIs(t, err, ErrMalformed)
	})
}

func TestValidator_Validate(t *testing.T) {
	now := testNow
	validator := NewValidator(Config{Now: func() time.Time { return now }})

	token := unsignedToken(t, map[string]interface{}{"sub": "u", "exp": float64(testNow.Add(time.Minute).Unix())})

	claims := validator.Validate(token)
	require.NotNil(t, claims)
	assert.Equal(t, "u", claims.Subject)

	now = testNow.Add(2 * time.Minute)
	assert.Nil(t, validator.Validate(token), "cached claims must still be checked for expiry")

	_, err := validator.Check(token)
	assert.ErrorIs(t, err, ErrExpired)

	assert.Nil(t, validator.Validate("garbage"))
}

func TestValidator_ReturnsCopy(t *testing.T) {
	validator := NewValidator(Config{Now: func() time.Time { return testNow }})
	token := unsignedToken(t, map[string]interface{}{
		"sub": "u",
		"aud": []interface{}{"admin-dashboard", "reports"},
		"exp": float64(testNow.Add(time.Hour).Unix()),
	})

	first := validator.Validate(token)
	require.NotNil(t, first)
	first.Subject = "changed"
	first.Audience[0] = "changed"
	first.Audience = append(first.Audience, "extra")

	second := validator.Validate(token)
	require.NotNil(t, second)
	assert.Equal(t, "u", second.Subject)
	assert.Equal(t, []string{"admin-dashboard", "reports"}, second.Audience)
}

func TestValidator_EvictsOldest(t *testing.T) {
	var calls int32
	validator := NewValidator(Config{
		Now: func() time.Time {
			atomic.AddInt32(&calls, 1)
			return testNow
		},
		CacheSize: 2,
	})

	tokens := make([]string, 3)
	for i := range tokens {
		tokens[i] = unsignedToken(t, map[string]interface{}{
			"sub": fmt.Sprintf("user-%d", i),
			"exp": float64(testNow.Add(time.Hour).Unix()),
		})
		require.NotNil(t, validator.Validate(tokens[i]))
	}

	assert.Equal(t, 2, validator.Len())
	_, stillCached := validator.cache[tokens[0]]
	assert.False(t, stillCached)
	_, newestCached := validator.cache[tokens[2]]
	assert.True(t, newestCached)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}
