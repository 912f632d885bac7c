package auth

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

type JWTManager struct {
	secret    []byte
	accessTTL time.Duration
	now       func() time.Time
}

type tokenClaims struct {
	User         json.RawMessage `json:"usr,omitempty"`
	ChatType     string          `json:"cht,omitempty"`
	ChatInstance string          `json:"chi,omitempty"`
	jwt.RegisteredClaims
}

// NewJWTManager returns nil when secret is empty, which disables tokens.
func NewJWTManager(secret string, accessTTL time.Duration) *JWTManager {
	if strings.TrimSpace(secret) == "" {
		return nil
	}
	if accessTTL <= 0 {
		accessTTL = 15 * time.Minute
	}

	return &JWTManager{
		secret:    []byte(secret),
		accessTTL: accessTTL,
		now:       time.Now,
	}
}

func (m *JWTManager) GenerateAccessToken(identity Identity) (string, time.Time, error) {
	if len(m.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("jwt secret is empty")
	}
	if !identity.HasID {
		return "", time.Time{}, fmt.Errorf("invalid access token payload")
	}

	user, err := json.Marshal(identity.User)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("marshal user payload: %w", err)
	}

	now := m.now().UTC()
	expiresAt := now.Add(m.accessTTL)
	claims := tokenClaims{
		User:         user,
		ChatType:     identity.ChatType,
		ChatInstance: identity.ChatInstance,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(identity.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign access token: %w", err)
	}

	return signed, expiresAt, nil
}

func (m *JWTManager) ParseAccessToken(raw string) (Identity, error) {
	if strings.TrimSpace(raw) == "" {
		return Identity{}, ErrUnauthorized
	}

	claims := &tokenClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(_ *jwt.Token) (interface{}, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}), jwt.WithTimeFunc(m.now))
	if err != nil || token == nil || !token.Valid {
		return Identity{}, ErrUnauthorized
	}

	userID, parseErr := strconv.ParseInt(claims.Subject, 10, 64)
	if parseErr != nil {
		return Identity{}, ErrUnauthorized
	}
	if claims.ExpiresAt == nil {
		return Identity{}, ErrUnauthorized
	}

	user := map[string]any{}
	if len(claims.User) > 0 {
		decoded, err := decodeUser(claims.User)
		if err != nil {
			return Identity{}, ErrUnauthorized
		}
		user = decoded
	}

	return Identity{
		ID:           userID,
		HasID:        true,
		User:         user,
		ChatType:     claims.ChatType,
		ChatInstance: claims.ChatInstance,
	}, nil
}
