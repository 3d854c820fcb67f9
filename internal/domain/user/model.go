package user

import (
	"context"
	"time"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	ID               int64      `json:"id"`
	Email            string     `json:"email"`
	PasswordHash     string     `json:"-"`
	Role             string     `json:"role"`
	ResetToken       *string    `json:"-"`
	ResetTokenExpire *time.Time `json:"-"`
	CreatedAt        time.Time  `json:"created_at"`
}

type Repository interface {
	Create(ctx context.Context, u *User) error
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByID(ctx context.Context, id int64) (*User, error)
	// GetByResetToken returns the user holding token with an expiry
	// strictly after now.
	GetByResetToken(ctx context.Context, token string, now time.Time) (*User, error)
	Update(ctx context.Context, u *User) error
	DeleteByEmail(ctx context.Context, email string) error
	DeleteByID(ctx context.Context, id int64) error
	DeleteAll(ctx context.Context) error
	ListByRole(ctx context.Context, role string) ([]User, error)
	ClearExpiredResetTokens(ctx context.Context, now time.Time) (int64, error)
}
