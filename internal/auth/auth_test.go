package auth

import (
	"context"
	"testing"
	"time"

	"github.com/elitestate/estate-server/internal/storage"
	memorystorage "github.com/elitestate/estate-server/internal/storage/memory"
	"github.com/stretchr/testify/require"
)

func newService() (*Service, *Manager, *memorystorage.Storage) {
	st := memorystorage.New()
	tokens := NewManager(Config{Secret: "test-secret"})
	return NewService(st, tokens), tokens, st
}

func TestTokens(t *testing.T) {
	t.Run("roundtrip", func(t *testing.T) {
		m := NewManager(Config{Secret: "test-secret"})
		token, err := m.IssueSession("user-1")
		require.NoError(t, err)

		userID, err := m.Parse(token, PurposeSession)
		require.NoError(t, err)
		require.Equal(t, "user-1", userID)
	})

	t.Run("purpose mismatch rejected", func(t *testing.T) {
		m := NewManager(Config{Secret: "test-secret"})
		token, err := m.IssueVerifyEmail("user-1")
		require.NoError(t, err)

		_, err = m.Parse(token, PurposeSession)
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong secret rejected", func(t *testing.T) {
		m := NewManager(Config{Secret: "test-secret"})
		token, err := m.IssueSession("user-1")
		require.NoError(t, err)

		other := NewManager(Config{Secret: "another-secret"})
		_, err = other.Parse(token, PurposeSession)
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired token rejected", func(t *testing.T) {
		m := NewManager(Config{Secret: "test-secret", SessionTTL: time.Hour})
		token, err := m.IssueSession("user-1")
		require.NoError(t, err)

		m.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		_, err = m.Parse(token, PurposeSession)
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage rejected", func(t *testing.T) {
		m := NewManager(Config{Secret: "test-secret"})
		_, err := m.Parse("not-a-token", PurposeSession)
		require.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestService(t *testing.T) {
	ctx := context.Background()

	t.Run("register and login", func(t *testing.T) {
		s, _, _ := newService()
		u, err := s.Register(ctx, "agent@example.com", "hunter2hunter2")
		require.NoError(t, err)
		require.NotEmpty(t, u.ID)
		require.False(t, u.EmailVerified)

		token, logged, err := s.Login(ctx, "agent@example.com", "hunter2hunter2")
		require.NoError(t, err)
		require.NotEmpty(t, token)
		require.Equal(t, u.ID, logged.ID)
	})

	t.Run("duplicate email rejected", func(t *testing.T) {
		s, _, _ := newService()
		_, err := s.Register(ctx, "agent@example.com", "hunter2hunter2")
		require.NoError(t, err)
		_, err = s.Register(ctx, "Agent@Example.com", "otherpassword")
		require.ErrorIs(t, err, storage.ErrDuplicateEmail)
	})

	t.Run("wrong password", func(t *testing.T) {
		s, _, _ := newService()
		_, err := s.Register(ctx, "agent@example.com", "hunter2hunter2")
		require.NoError(t, err)

		_, _, err = s.Login(ctx, "agent@example.com", "wrong-password")
		require.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("unknown email", func(t *testing.T) {
		s, _, _ := newService()
		_, _, err := s.Login(ctx, "nobody@example.com", "whatever")
		require.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("email verification", func(t *testing.T) {
		s, tokens, st := newService()
		u, err := s.Register(ctx, "agent@example.com", "hunter2hunter2")
		require.NoError(t, err)

		token, err := tokens.IssueVerifyEmail(u.ID)
		require.NoError(t, err)
		require.NoError(t, s.VerifyEmail(ctx, token))

		stored, err := st.GetUser(ctx, u.ID)
		require.NoError(t, err)
		require.True(t, stored.EmailVerified)
	})

	t.Run("session token does not verify email", func(t *testing.T) {
		s, tokens, _ := newService()
		u, err := s.Register(ctx, "agent@example.com", "hunter2hunter2")
		require.NoError(t, err)

		token, err := tokens.IssueSession(u.ID)
		require.NoError(t, err)
		require.ErrorIs(t, s.VerifyEmail(ctx, token), ErrInvalidToken)
	})

	t.Run("password reset", func(t *testing.T) {
		s, tokens, _ := newService()
		u, err := s.Register(ctx, "agent@example.com", "hunter2hunter2")
		require.NoError(t, err)

		token, err := tokens.IssueResetPassword(u.ID)
		require.NoError(t, err)
		require.NoError(t, s.ResetPassword(ctx, token, "newpassword123"))

		_, _, err = s.Login(ctx, "agent@example.com", "hunter2hunter2")
		require.ErrorIs(t, err, ErrInvalidCredentials)
		_, _, err = s.Login(ctx, "agent@example.com", "newpassword123")
		require.NoError(t, err)
	})

	t.Run("reset request hides unknown email", func(t *testing.T) {
		s, _, _ := newService()
		require.NoError(t, s.RequestPasswordReset(ctx, "nobody@example.com"))
	})
}
