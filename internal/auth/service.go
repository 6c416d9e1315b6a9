package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/elitestate/estate-server/internal/storage"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidCredentials = errors.New("invalid email or password")

// Service implements the email/password identity flows. Verification and
// reset links are delivered by logging them; there is no mail transport here.
type Service struct {
	storage storage.Storage
	tokens  *Manager
}

func NewService(st storage.Storage, tokens *Manager) *Service {
	return &Service{storage: st, tokens: tokens}
}

func (s *Service) Register(ctx context.Context, email string, password string) (storage.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return storage.User{}, fmt.Errorf("failed to hash password: %w", err)
	}

	u := storage.User{Email: email, PasswordHash: string(hash)}
	if err := s.storage.AddUser(ctx, &u); err != nil {
		return storage.User{}, err
	}

	token, err := s.tokens.IssueVerifyEmail(u.ID)
	if err != nil {
		return storage.User{}, err
	}
	log.WithField("email", u.Email).Infof("verification token issued: %s", token)
	return u, nil
}

func (s *Service) Login(ctx context.Context, email string, password string) (string, storage.User, error) {
	u, err := s.storage.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", storage.User{}, ErrInvalidCredentials
		}
		return "", storage.User{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return "", storage.User{}, ErrInvalidCredentials
	}

	token, err := s.tokens.IssueSession(u.ID)
	if err != nil {
		return "", storage.User{}, err
	}
	return token, u, nil
}

func (s *Service) VerifyEmail(ctx context.Context, token string) error {
	userID, err := s.tokens.Parse(token, PurposeVerifyEmail)
	if err != nil {
		return err
	}
	return s.storage.SetUserVerified(ctx, userID)
}

// RequestPasswordReset issues a reset token for the account. Callers must
// not reveal to the requester whether the email exists.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	u, err := s.storage.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			log.Debugf("password reset requested for unknown email %q", email)
			return nil
		}
		return err
	}
	token, err := s.tokens.IssueResetPassword(u.ID)
	if err != nil {
		return err
	}
	log.WithField("email", u.Email).Infof("password reset token issued: %s", token)
	return nil
}

func (s *Service) ResetPassword(ctx context.Context, token string, newPassword string) error {
	userID, err := s.tokens.Parse(token, PurposeResetPass)
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	return s.storage.SetUserPassword(ctx, userID, string(hash))
}

func (s *Service) CurrentUser(ctx context.Context, userID string) (storage.User, error) {
	return s.storage.GetUser(ctx, userID)
}
