package auth

import (
	"fmt"
	"strings"
	"time"
)

type Service struct {
	verifier *Verifier
	admins   AdminSet
	maxAge   time.Duration
	tokens   *JWTManager
	now      func() time.Time
}

type Option func(*Service)

// WithMaxAge sets the initData freshness window.
func WithMaxAge(maxAge time.Duration) Option {
	return func(s *Service) {
		if maxAge > 0 {
			s.maxAge = maxAge
		}
	}
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithAccessTokens enables exchanging initData for a signed access token.
func WithAccessTokens(tokens *JWTManager) Option {
	return func(s *Service) {
		s.tokens = tokens
	}
}

func NewService(botToken string, admins AdminSet, opts ...Option) (*Service, error) {
	if strings.TrimSpace(botToken) == "" {
		return nil, ErrEmptyBotToken
	}

	s := &Service{
		verifier: NewVerifier(botToken),
		admins:   admins,
		maxAge:   DefaultMaxAge,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Authenticate verifies the initData signature and extracts the caller.
// Every failure is an *AuthError.
func (s *Service) Authenticate(initData string) (Identity, error) {
	fields, err := s.verifier.Verify(initData)
	if err != nil {
		return Identity{}, err
	}
	return ExtractIdentity(fields, s.now(), s.maxAge)
}

func (s *Service) IsAdmin(identity Identity) bool {
	return identity.HasID && s.admins.Contains(identity.ID)
}

func (s *Service) Admins() AdminSet {
	return s.admins
}

func (s *Service) TokensEnabled() bool {
	return s.tokens != nil
}

// IssueAccessToken signs a token for an identity that carries a user id.
func (s *Service) IssueAccessToken(identity Identity) (string, time.Time, error) {
	if s.tokens == nil {
		return "", time.Time{}, ErrTokenDisabled
	}
	if !identity.HasID {
		return "", time.Time{}, ErrUnauthorized
	}
	token, expiresAt, err := s.tokens.GenerateAccessToken(identity)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("generate access token: %w", err)
	}
	return token, expiresAt, nil
}

// ValidateAccessToken returns the identity a token was issued for. Admin
// rights are re-evaluated against the current AdminSet by IsAdmin.
func (s *Service) ValidateAccessToken(raw string) (Identity, error) {
	if s.tokens == nil {
		return Identity{}, ErrTokenDisabled
	}
	return s.tokens.ParseAccessToken(raw)
}

// ResolveTarget applies the own-data policy. Without an identity the call is
// unauthorized. Without a requested id the caller's own id is used. Asking for
// another user's data requires admin rights.
func (s *Service) ResolveTarget(identity Identity, authenticated bool, requested *int64) (int64, error) {
	if !authenticated || !identity.HasID {
		return 0, ErrUnauthorized
	}
	if requested == nil || *requested == identity.ID {
		return identity.ID, nil
	}
	if !s.IsAdmin(identity) {
		return 0, ErrForbidden
	}
	return *requested, nil
}
