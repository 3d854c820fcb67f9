package user

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailTaken         = errors.New("email already exists")
	ErrNotFound           = errors.New("user not found")
	ErrInvalidResetToken  = errors.New("invalid or expired reset token")
	ErrInvalidRole        = errors.New("invalid role")
)

const resetTokenTTL = time.Hour

// Mailer delivers a plain-text message to a single recipient.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

type Service struct {
	repo    Repository
	mailer  Mailer
	baseURL string
}

func NewService(repo Repository, mailer Mailer, baseURL string) *Service {
	return &Service{repo: repo, mailer: mailer, baseURL: baseURL}
}

func (s *Service) Signup(ctx context.Context, email, password, role string) (*User, error) {
	if email == "" || password == "" {
		return nil, errors.New("email and password required")
	}

	if role == "" {
		role = RoleUser
	}
	if role != RoleUser && role != RoleAdmin {
		return nil, ErrInvalidRole
	}

	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	u := &User{
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
	}

	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}

	return u, nil
}

func (s *Service) Login(ctx context.Context, email, password string) (*User, error) {
	u, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return u, nil
}

// ForgotPassword stores a fresh reset token on the account and mails a
// reset link. The token stays persisted even when the send fails; it
// expires on its own and a repeated request overwrites it.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	u, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}

	token, err := newResetToken()
	if err != nil {
		return err
	}
	expire := time.Now().Add(resetTokenTTL)

	u.ResetToken = &token
	u.ResetTokenExpire = &expire
	if err := s.repo.Update(ctx, u); err != nil {
		return err
	}

	resetURL := fmt.Sprintf("%s/api/auth/reset-password/%s", s.baseURL, token)
	return s.mailer.Send(ctx, u.Email, "Reset Password",
		"Reset your password using this link: "+resetURL)
}

func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	if newPassword == "" {
		return errors.New("password required")
	}

	u, err := s.repo.GetByResetToken(ctx, token, time.Now())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrInvalidResetToken
		}
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	u.PasswordHash = string(hash)
	u.ResetToken = nil
	u.ResetTokenExpire = nil
	return s.repo.Update(ctx, u)
}

// Update changes the email and/or password of the account identified by
// oldEmail. Empty fields are left untouched.
func (s *Service) Update(ctx context.Context, oldEmail, newEmail, newPassword string) (*User, error) {
	u, err := s.repo.GetByEmail(ctx, oldEmail)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if newEmail != "" {
		u.Email = newEmail
	}
	if newPassword != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		u.PasswordHash = string(hash)
	}

	if err := s.repo.Update(ctx, u); err != nil {
		return nil, err
	}

	return u, nil
}

func (s *Service) DeleteByEmail(ctx context.Context, email string) error {
	err := s.repo.DeleteByEmail(ctx, email)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (s *Service) DeleteByID(ctx context.Context, id int64) error {
	err := s.repo.DeleteByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (s *Service) DeleteAll(ctx context.Context) error {
	return s.repo.DeleteAll(ctx)
}

func (s *Service) ListByRole(ctx context.Context, role string) ([]User, error) {
	if role != RoleUser && role != RoleAdmin {
		return nil, ErrInvalidRole
	}
	return s.repo.ListByRole(ctx, role)
}

func (s *Service) GetByID(ctx context.Context, id int64) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

func newResetToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
