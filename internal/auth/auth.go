package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/openblog/backend/internal/db"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
)

// dummyHash is compared against when a login targets an unknown email,
// so lookups and password failures take comparable time.
var dummyHash = []byte("$2a$12$C6UzMDM.H6dfI/f/IKcEeO5cbbNPX0qSqL5wMAbLPV4pPr1dMp7hm")

// UserStore is the persistence surface the session layer needs.
type UserStore interface {
	Create(ctx context.Context, user *db.User) error
	GetByEmail(ctx context.Context, email string) (*db.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*db.User, error)
	UpdateAvatar(ctx context.Context, id uuid.UUID, avatar string) error
}

// TokenPair holds a freshly issued access/refresh token set.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

type Service struct {
	users             UserStore
	tokens            *TokenConfig
	bcryptCost        int
	uniformLoginError bool
}

type ServiceOptions struct {
	BcryptCost int
	// UniformLoginErrors makes unknown-email and wrong-password logins
	// indistinguishable to the client.
	UniformLoginErrors bool
}

func NewService(users UserStore, tokens *TokenConfig, opts ServiceOptions) *Service {
	cost := opts.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &Service{
		users:             users,
		tokens:            tokens,
		bcryptCost:        cost,
		uniformLoginError: opts.UniformLoginErrors,
	}
}

// HashPassword produces a salted one-way hash at the configured cost.
func (s *Service) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword verifies a password against its stored hash.
func (s *Service) CheckPassword(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

// Signup creates a new account. It does not issue tokens; the client
// logs in separately.
func (s *Service) Signup(ctx context.Context, email, password, name string) (*db.User, error) {
	passwordHash, err := s.HashPassword(password)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	user := &db.User{
		ID:           uuid.New(),
		Email:        email,
		Name:         name,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}

// Login verifies credentials and issues a fresh token pair.
func (s *Service) Login(ctx context.Context, email, password string) (*db.User, *TokenPair, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, db.ErrUserNotFound) {
			if s.uniformLoginError {
				// Burn a comparison so response time matches the
				// wrong-password path.
				bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
				return nil, nil, ErrInvalidCredentials
			}
			return nil, nil, ErrUserNotFound
		}
		return nil, nil, err
	}

	if err := s.CheckPassword(user.PasswordHash, password); err != nil {
		return nil, nil, ErrInvalidCredentials
	}

	pair, err := s.issuePair(user)
	if err != nil {
		return nil, nil, err
	}

	return user, pair, nil
}

// Refresh validates a refresh token and rotates the whole pair. The
// refresh token is stateless; validity comes entirely from its
// signature and expiry, plus the embedded email still resolving to an
// account.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*db.User, *TokenPair, error) {
	claims, err := s.tokens.VerifyToken(RefreshToken, refreshToken)
	if err != nil {
		return nil, nil, err
	}

	user, err := s.users.GetByEmail(ctx, claims.Email)
	if err != nil {
		if errors.Is(err, db.ErrUserNotFound) {
			// Account deleted since the token was issued. Treat the
			// token as invalid rather than confirming the deletion.
			return nil, nil, ErrTokenInvalid
		}
		return nil, nil, err
	}

	pair, err := s.issuePair(user)
	if err != nil {
		return nil, nil, err
	}

	return user, pair, nil
}

// VerifyAccess validates an access token and returns its claims.
func (s *Service) VerifyAccess(raw string) (*Claims, error) {
	return s.tokens.VerifyToken(AccessToken, raw)
}

func (s *Service) UserByID(ctx context.Context, id uuid.UUID) (*db.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, db.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

func (s *Service) UpdateAvatar(ctx context.Context, id uuid.UUID, avatar string) error {
	if err := s.users.UpdateAvatar(ctx, id, avatar); err != nil {
		if errors.Is(err, db.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	return nil
}

func (s *Service) issuePair(user *db.User) (*TokenPair, error) {
	access, err := s.tokens.IssueToken(AccessToken, user.ID, user.Email)
	if err != nil {
		return nil, err
	}

	refresh, err := s.tokens.IssueToken(RefreshToken, user.ID, user.Email)
	if err != nil {
		return nil, err
	}

	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}
