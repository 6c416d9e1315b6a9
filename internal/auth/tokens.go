package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

const (
	PurposeSession     = "session"
	PurposeVerifyEmail = "verify_email"
	PurposeResetPass   = "reset_password"
)

type Config struct {
	Secret     string
	SessionTTL time.Duration
	TokenTTL   time.Duration
}

type claims struct {
	jwt.RegisteredClaims
	Purpose string `json:"purpose"`
}

// Manager issues and parses the three token kinds: session tokens bound to a
// signed-in user, and short-lived purpose-scoped tokens for email
// verification and password reset.
type Manager struct {
	secret     []byte
	sessionTTL time.Duration
	tokenTTL   time.Duration
	now        func() time.Time
}

func NewManager(config Config) *Manager {
	sessionTTL := config.SessionTTL
	if sessionTTL <= 0 {
		sessionTTL = 24 * time.Hour
	}
	tokenTTL := config.TokenTTL
	if tokenTTL <= 0 {
		tokenTTL = time.Hour
	}
	return &Manager{
		secret:     []byte(config.Secret),
		sessionTTL: sessionTTL,
		tokenTTL:   tokenTTL,
		now:        time.Now,
	}
}

func (m *Manager) IssueSession(userID string) (string, error) {
	return m.issue(userID, PurposeSession, m.sessionTTL)
}

func (m *Manager) IssueVerifyEmail(userID string) (string, error) {
	return m.issue(userID, PurposeVerifyEmail, m.tokenTTL)
}

func (m *Manager) IssueResetPassword(userID string) (string, error) {
	return m.issue(userID, PurposeResetPass, m.tokenTTL)
}

func (m *Manager) issue(userID string, purpose string, ttl time.Duration) (string, error) {
	now := m.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Purpose: purpose,
	})
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign %s token: %w", purpose, err)
	}
	return signed, nil
}

// Parse validates the token and returns the bound user ID. A token issued
// for a different purpose is rejected even if otherwise valid.
func (m *Manager) Parse(tokenString string, purpose string) (string, error) {
	var c claims
	token, err := jwt.ParseWithClaims(tokenString, &c, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.now))
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}
	if c.Purpose != purpose || c.Subject == "" {
		return "", ErrInvalidToken
	}
	return c.Subject, nil
}
