package user

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

type memoryUserRepo struct {
	mu     sync.Mutex
	users  map[int64]*User
	byMail map[string]int64
	nextID int64
}

func newMemoryUserRepo() *memoryUserRepo {
	return &memoryUserRepo{
		users:  make(map[int64]*User),
		byMail: make(map[string]int64),
		nextID: 1,
	}
}

func (r *memoryUserRepo) Create(ctx context.Context, u *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byMail[u.Email]; exists {
		return ErrEmailTaken
	}
	u.ID = r.nextID
	r.nextID++
	u.CreatedAt = time.Now()
	copyUser := *u
	r.users[u.ID] = &copyUser
	r.byMail[u.Email] = u.ID
	return nil
}

func (r *memoryUserRepo) GetByEmail(ctx context.Context, email string) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byMail[email]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copyUser := *r.users[id]
	return &copyUser, nil
}

func (r *memoryUserRepo) GetByID(ctx context.Context, id int64) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copyUser := *u
	return &copyUser, nil
}

func (r *memoryUserRepo) GetByResetToken(ctx context.Context, token string, now time.Time) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.ResetToken != nil && *u.ResetToken == token &&
			u.ResetTokenExpire != nil && u.ResetTokenExpire.After(now) {
			copyUser := *u
			return &copyUser, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *memoryUserRepo) Update(ctx context.Context, u *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.users[u.ID]
	if !ok {
		return sql.ErrNoRows
	}
	if u.Email != stored.Email {
		if _, exists := r.byMail[u.Email]; exists {
			return ErrEmailTaken
		}
		delete(r.byMail, stored.Email)
		r.byMail[u.Email] = u.ID
	}
	copyUser := *u
	r.users[u.ID] = &copyUser
	return nil
}

func (r *memoryUserRepo) DeleteByEmail(ctx context.Context, email string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byMail[email]
	if !ok {
		return sql.ErrNoRows
	}
	delete(r.users, id)
	delete(r.byMail, email)
	return nil
}

func (r *memoryUserRepo) DeleteByID(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return sql.ErrNoRows
	}
	delete(r.byMail, u.Email)
	delete(r.users, id)
	return nil
}

func (r *memoryUserRepo) DeleteAll(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users = make(map[int64]*User)
	r.byMail = make(map[string]int64)
	return nil
}

func (r *memoryUserRepo) ListByRole(ctx context.Context, role string) ([]User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := make([]User, 0)
	for _, u := range r.users {
		if u.Role == role {
			res = append(res, *u)
		}
	}
	return res, nil
}

func (r *memoryUserRepo) ClearExpiredResetTokens(ctx context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, u := range r.users {
		if u.ResetTokenExpire != nil && !u.ResetTokenExpire.After(now) {
			u.ResetToken = nil
			u.ResetTokenExpire = nil
			n++
		}
	}
	return n, nil
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []string
	fail error
}

func (m *fakeMailer) Send(ctx context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.sent = append(m.sent, body)
	return nil
}

func (m *fakeMailer) lastBody() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return ""
	}
	return m.sent[len(m.sent)-1]
}

func newTestService() (*Service, *memoryUserRepo, *fakeMailer) {
	repo := newMemoryUserRepo()
	mailer := &fakeMailer{}
	return NewService(repo, mailer, "http://localhost:8080"), repo, mailer
}

func TestSignupAndLogin(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	u, err := svc.Signup(ctx, "john@example.com", "s3cret", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.Role != RoleUser {
		t.Fatalf("expected default role user, got %s", u.Role)
	}
	if u.PasswordHash == "s3cret" || u.PasswordHash == "" {
		t.Fatalf("password should be hashed")
	}

	if _, err := svc.Login(ctx, "john@example.com", "s3cret"); err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if _, err := svc.Signup(ctx, "john@example.com", "another", ""); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected email taken error, got %v", err)
	}
	if _, err := svc.Login(ctx, "john@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials error, got %v", err)
	}
	if _, err := svc.Login(ctx, "nobody@example.com", "s3cret"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials for unknown email, got %v", err)
	}
	if _, err := svc.Signup(ctx, "bad@example.com", "pw", "superadmin"); !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("expected invalid role error, got %v", err)
	}
}

func TestForgotAndResetPassword(t *testing.T) {
	svc, repo, mailer := newTestService()
	ctx := context.Background()

	if _, err := svc.Signup(ctx, "kate@example.com", "oldpass", ""); err != nil {
		t.Fatalf("signup: %v", err)
	}

	if err := svc.ForgotPassword(ctx, "kate@example.com"); err != nil {
		t.Fatalf("forgot password: %v", err)
	}

	stored, err := repo.GetByEmail(ctx, "kate@example.com")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if stored.ResetToken == nil || stored.ResetTokenExpire == nil {
		t.Fatalf("reset token and expiry should be set")
	}
	token := *stored.ResetToken
	if len(token) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(token))
	}
	if !strings.Contains(mailer.lastBody(), "/api/auth/reset-password/"+token) {
		t.Fatalf("reset link missing from mail body: %q", mailer.lastBody())
	}

	if err := svc.ResetPassword(ctx, token, "newpass"); err != nil {
		t.Fatalf("reset password: %v", err)
	}
	if _, err := svc.Login(ctx, "kate@example.com", "oldpass"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("old password should no longer work")
	}
	if _, err := svc.Login(ctx, "kate@example.com", "newpass"); err != nil {
		t.Fatalf("new password should work: %v", err)
	}

	// Token is single-use.
	if err := svc.ResetPassword(ctx, token, "again"); !errors.Is(err, ErrInvalidResetToken) {
		t.Fatalf("expected invalid token on reuse, got %v", err)
	}
}

func TestResetPasswordExpiredToken(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	u, err := svc.Signup(ctx, "tim@example.com", "pw123", "")
	if err != nil {
		t.Fatalf("signup: %v", err)
	}

	token := "deadbeef"
	expired := time.Now().Add(-time.Minute)
	u.ResetToken = &token
	u.ResetTokenExpire = &expired
	if err := repo.Update(ctx, u); err != nil {
		t.Fatalf("seed token: %v", err)
	}

	if err := svc.ResetPassword(ctx, token, "newpw"); !errors.Is(err, ErrInvalidResetToken) {
		t.Fatalf("expected invalid token for expired token, got %v", err)
	}
}

func TestForgotPasswordFailures(t *testing.T) {
	svc, repo, mailer := newTestService()
	ctx := context.Background()

	if err := svc.ForgotPassword(ctx, "ghost@example.com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	if _, err := svc.Signup(ctx, "mia@example.com", "pw", ""); err != nil {
		t.Fatalf("signup: %v", err)
	}

	mailer.fail = errors.New("smtp down")
	if err := svc.ForgotPassword(ctx, "mia@example.com"); err == nil {
		t.Fatalf("expected send failure to propagate")
	}

	// The token write happens before the send and is kept.
	stored, err := repo.GetByEmail(ctx, "mia@example.com")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if stored.ResetToken == nil {
		t.Fatalf("token should stay persisted after send failure")
	}
}

func TestUpdateUser(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.Signup(ctx, "old@example.com", "pw1", ""); err != nil {
		t.Fatalf("signup: %v", err)
	}
	if _, err := svc.Signup(ctx, "taken@example.com", "pw2", ""); err != nil {
		t.Fatalf("signup: %v", err)
	}

	if _, err := svc.Update(ctx, "missing@example.com", "x@example.com", ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := svc.Update(ctx, "old@example.com", "taken@example.com", ""); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected email taken on duplicate update, got %v", err)
	}

	u, err := svc.Update(ctx, "old@example.com", "new@example.com", "pw9")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if u.Email != "new@example.com" {
		t.Fatalf("email not updated: %s", u.Email)
	}
	if _, err := svc.Login(ctx, "new@example.com", "pw9"); err != nil {
		t.Fatalf("login with updated credentials: %v", err)
	}
	if _, err := svc.Login(ctx, "old@example.com", "pw1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("old email should be gone")
	}
}

func TestDeleteAndList(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.Signup(ctx, "u1@example.com", "pw", RoleUser); err != nil {
		t.Fatalf("signup: %v", err)
	}
	u2, err := svc.Signup(ctx, "u2@example.com", "pw", RoleUser)
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if _, err := svc.Signup(ctx, "boss@example.com", "pw", RoleAdmin); err != nil {
		t.Fatalf("signup: %v", err)
	}

	users, err := svc.ListByRole(ctx, RoleUser)
	if err != nil {
		t.Fatalf("list users: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("expected 2 users, got %d", len(users))
	}
	admins, err := svc.ListByRole(ctx, RoleAdmin)
	if err != nil {
		t.Fatalf("list admins: %v", err)
	}
	if len(admins) != 1 {
		t.Fatalf("expected 1 admin, got %d", len(admins))
	}
	if _, err := svc.ListByRole(ctx, "root"); !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("expected invalid role, got %v", err)
	}

	if err := svc.DeleteByEmail(ctx, "u1@example.com"); err != nil {
		t.Fatalf("delete by email: %v", err)
	}
	if err := svc.DeleteByEmail(ctx, "u1@example.com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
	if err := svc.DeleteByID(ctx, u2.ID); err != nil {
		t.Fatalf("delete by id: %v", err)
	}
	if err := svc.DeleteByID(ctx, 9999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found for unknown id, got %v", err)
	}

	if err := svc.DeleteAll(ctx); err != nil {
		t.Fatalf("delete all: %v", err)
	}
	users, _ = svc.ListByRole(ctx, RoleUser)
	admins, _ = svc.ListByRole(ctx, RoleAdmin)
	if len(users) != 0 || len(admins) != 0 {
		t.Fatalf("expected empty listings after delete all, got %d users %d admins", len(users), len(admins))
	}
}
