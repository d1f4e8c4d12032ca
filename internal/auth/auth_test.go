package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/openblog/backend/internal/db"
	"golang.org/x/crypto/bcrypt"
)

// fakeUserStore is an in-memory UserStore for service tests.
type fakeUserStore struct {
	users map[uuid.UUID]*db.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: make(map[uuid.UUID]*db.User)}
}

func (f *fakeUserStore) Create(_ context.Context, user *db.User) error {
	for _, u := range f.users {
		if u.Email == user.Email {
			return db.ErrEmailExists
		}
	}
	copied := *user
	f.users[user.ID] = &copied
	return nil
}

func (f *fakeUserStore) GetByEmail(_ context.Context, email string) (*db.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, db.ErrUserNotFound
}

func (f *fakeUserStore) GetByID(_ context.Context, id uuid.UUID) (*db.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, db.ErrUserNotFound
	}
	copied := *u
	return &copied, nil
}

func (f *fakeUserStore) UpdateAvatar(_ context.Context, id uuid.UUID, avatar string) error {
	u, ok := f.users[id]
	if !ok {
		return db.ErrUserNotFound
	}
	u.Avatar = avatar
	return nil
}

func newTestService(uniform bool) (*Service, *fakeUserStore) {
	store := newFakeUserStore()
	svc := NewService(store, testTokenConfig(), ServiceOptions{
		BcryptCost:         bcrypt.MinCost,
		UniformLoginErrors: uniform,
	})
	return svc, store
}

func TestSignup(t *testing.T) {
	svc, store := newTestService(true)
	ctx := context.Background()

	user, err := svc.Signup(ctx, "test@example.com", "password123", "Test User")
	if err != nil {
		t.Fatalf("signup failed: %v", err)
	}

	if user.Email != "test@example.com" {
		t.Errorf("Email = %q", user.Email)
	}
	if user.PasswordHash == "password123" {
		t.Error("password stored in plaintext")
	}
	if _, ok := store.users[user.ID]; !ok {
		t.Error("user not persisted")
	}

	if _, err := svc.Signup(ctx, "test@example.com", "password123", "Other"); !errors.Is(err, db.ErrEmailExists) {
		t.Errorf("expected ErrEmailExists, got %v", err)
	}
}

func TestLogin(t *testing.T) {
	svc, _ := newTestService(true)
	ctx := context.Background()

	if _, err := svc.Signup(ctx, "test@example.com", "password123", "Test User"); err != nil {
		t.Fatalf("signup failed: %v", err)
	}

	user, pair, err := svc.Login(ctx, "test@example.com", "password123")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Error("expected both tokens issued")
	}
	if pair.AccessToken == pair.RefreshToken {
		t.Error("access and refresh tokens should differ")
	}
	if user.Email != "test@example.com" {
		t.Errorf("Email = %q", user.Email)
	}

	if _, _, err := svc.Login(ctx, "test@example.com", "wrongpassword"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestLogin_UnknownEmail(t *testing.T) {
	ctx := context.Background()

	uniform, _ := newTestService(true)
	if _, _, err := uniform.Login(ctx, "nobody@example.com", "password123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("uniform mode: expected ErrInvalidCredentials, got %v", err)
	}

	distinct, _ := newTestService(false)
	if _, _, err := distinct.Login(ctx, "nobody@example.com", "password123"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("distinct mode: expected ErrUserNotFound, got %v", err)
	}
}

func TestRefresh_RotatesPair(t *testing.T) {
	svc, _ := newTestService(true)
	ctx := context.Background()

	if _, err := svc.Signup(ctx, "test@example.com", "password123", "Test User"); err != nil {
		t.Fatalf("signup failed: %v", err)
	}
	_, pair, err := svc.Login(ctx, "test@example.com", "password123")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	user, rotated, err := svc.Refresh(ctx, pair.RefreshToken)
	if err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if rotated.AccessToken == "" || rotated.RefreshToken == "" {
		t.Error("expected a full rotated pair")
	}
	if user.Email != "test@example.com" {
		t.Errorf("Email = %q", user.Email)
	}

	// Rotated refresh token must itself be usable
	if _, _, err := svc.Refresh(ctx, rotated.RefreshToken); err != nil {
		t.Errorf("rotated refresh token rejected: %v", err)
	}
}

func TestRefresh_Rejections(t *testing.T) {
	svc, store := newTestService(true)
	ctx := context.Background()

	user, err := svc.Signup(ctx, "test@example.com", "password123", "Test User")
	if err != nil {
		t.Fatalf("signup failed: %v", err)
	}
	_, pair, err := svc.Login(ctx, "test@example.com", "password123")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	if _, _, err := svc.Refresh(ctx, "garbage"); !errors.Is(err, ErrTokenMalformed) {
		t.Errorf("expected ErrTokenMalformed, got %v", err)
	}

	// An access token is not a refresh token
	if _, _, err := svc.Refresh(ctx, pair.AccessToken); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("expected ErrTokenInvalid for access token, got %v", err)
	}

	// Deleted account: valid signature but no user behind it
	delete(store.users, user.ID)
	if _, _, err := svc.Refresh(ctx, pair.RefreshToken); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("expected ErrTokenInvalid for deleted user, got %v", err)
	}
}

func TestUpdateAvatar(t *testing.T) {
	svc, store := newTestService(true)
	ctx := context.Background()

	user, err := svc.Signup(ctx, "test@example.com", "password123", "Test User")
	if err != nil {
		t.Fatalf("signup failed: %v", err)
	}

	if err := svc.UpdateAvatar(ctx, user.ID, "uploads/images/abc.png"); err != nil {
		t.Fatalf("update avatar failed: %v", err)
	}
	if store.users[user.ID].Avatar != "uploads/images/abc.png" {
		t.Error("avatar not updated")
	}

	if err := svc.UpdateAvatar(ctx, uuid.New(), "x.png"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}

func TestValidateSignupRequest(t *testing.T) {
	tests := []struct {
		name    string
		req     *SignupRequest
		wantErr bool
	}{
		{"valid", &SignupRequest{Email: "test@example.com", Password: "password123", RepeatPassword: "password123", Name: "Test"}, false},
		{"empty email", &SignupRequest{Password: "password123", RepeatPassword: "password123", Name: "Test"}, true},
		{"bad email", &SignupRequest{Email: "notanemail", Password: "password123", RepeatPassword: "password123", Name: "Test"}, true},
		{"short password", &SignupRequest{Email: "test@example.com", Password: "short", RepeatPassword: "short", Name: "Test"}, true},
		{"mismatched passwords", &SignupRequest{Email: "test@example.com", Password: "password123", RepeatPassword: "password124", Name: "Test"}, true},
		{"empty name", &SignupRequest{Email: "test@example.com", Password: "password123", RepeatPassword: "password123"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateSignupRequest(tt.req)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateSignupRequest() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
