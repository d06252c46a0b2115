package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/ovaphlow/pitchfork/service-neighborfit/internal/token"
	"github.com/ovaphlow/pitchfork/service-neighborfit/internal/user/entity"
	userrepo "github.com/ovaphlow/pitchfork/service-neighborfit/internal/user/repo"
)

// DefaultTokenTTL is the session lifetime when none is configured.
const DefaultTokenTTL = 7 * 24 * time.Hour

var (
	ErrValidation         = errors.New("validation error")
	ErrDuplicateUser      = errors.New("user already exists with this email")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrNotFound           = errors.New("user not found")
	ErrStorage            = errors.New("storage error")
	ErrInternal           = errors.New("internal error")

	// ErrMissingFields is the validation failure for absent required input.
	ErrMissingFields = fmt.Errorf("%w: missing required fields", ErrValidation)
)

// UserStore is the persistence contract AuthService needs. Lookups return
// sql.ErrNoRows when nothing matches; Create returns repo.ErrDuplicateEmail
// when the unique constraint fires.
type UserStore interface {
	Create(ctx context.Context, u *entity.User, confirm func(*entity.User) error) error
	GetByEmail(ctx context.Context, email string) (*entity.User, error)
	GetByID(ctx context.Context, id string) (*entity.User, error)
	UpdatePasswordHash(ctx context.Context, id, hash string) error
}

// AuthResult is what register and login hand back to the caller.
type AuthResult struct {
	User  entity.PublicUser
	Token string
}

// AuthService orchestrates registration, login and session lookup.
type AuthService struct {
	store    UserStore
	hasher   PasswordHasher
	signer   token.Signer
	tokenTTL time.Duration
	logger   *zap.SugaredLogger

	dummyOnce sync.Once
	dummyHash string
}

func NewAuthService(store UserStore, hasher PasswordHasher, signer token.Signer, tokenTTL time.Duration, logger *zap.SugaredLogger) *AuthService {
	if hasher == nil {
		hasher = BcryptHasher{Cost: 10}
	}
	if tokenTTL <= 0 {
		tokenTTL = DefaultTokenTTL
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &AuthService{store: store, hasher: hasher, signer: signer, tokenTTL: tokenTTL, logger: logger}
}

// normalizeEmail implements the case-insensitive email policy.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a user and issues a session token for it. The user row is
// committed only after the token has been issued.
func (s *AuthService) Register(ctx context.Context, name, email, password string) (*AuthResult, error) {
	name = strings.TrimSpace(name)
	email = normalizeEmail(email)
	if name == "" || email == "" || password == "" {
		return nil, ErrMissingFields
	}

	existing, err := s.store.GetByEmail(ctx, email)
	switch {
	case err == nil && existing != nil:
		return nil, ErrDuplicateUser
	case err != nil && !errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("%w: lookup user: %w", ErrStorage, err)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return nil, fmt.Errorf("%w: password is too long", ErrValidation)
		}
		return nil, fmt.Errorf("%w: hash password: %w", ErrInternal, err)
	}

	u := &entity.User{Name: name, Email: email, PasswordHash: hash}
	var tok string
	err = s.store.Create(ctx, u, func(created *entity.User) error {
		var issueErr error
		tok, issueErr = s.issue(created.ID)
		return issueErr
	})
	if err != nil {
		switch {
		case errors.Is(err, userrepo.ErrDuplicateEmail):
			// lost a race with a concurrent registration
			return nil, ErrDuplicateUser
		case errors.Is(err, ErrInternal):
			return nil, err
		default:
			return nil, fmt.Errorf("%w: create user: %w", ErrStorage, err)
		}
	}

	s.logger.Infow("user registered", "user_id", u.ID)
	return &AuthResult{User: u.Public(), Token: tok}, nil
}

// Login verifies credentials and issues a session token. Unknown email and
// wrong password fail with the same error.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrMissingFields
	}

	u, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// keep the unknown-user path as slow as a wrong password
			s.hasher.Verify(s.dummy(), password)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("%w: lookup user: %w", ErrStorage, err)
	}

	if !s.hasher.Verify(u.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}

	if s.hasher.NeedsRehash(u.PasswordHash) {
		if newHash, hErr := s.hasher.Hash(password); hErr == nil {
			if uErr := s.store.UpdatePasswordHash(ctx, u.ID, newHash); uErr != nil {
				s.logger.Warnw("password rehash not stored", "user_id", u.ID, "err", uErr)
			}
		}
	}

	tok, err := s.issue(u.ID)
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: u.Public(), Token: tok}, nil
}

// CurrentUser resolves the user a session token was issued for.
func (s *AuthService) CurrentUser(ctx context.Context, tokenString string) (*entity.PublicUser, error) {
	claims, err := s.signer.Verify(tokenString)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}

	u, err := s.store.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: load user: %w", ErrStorage, err)
	}
	pub := u.Public()
	return &pub, nil
}

func (s *AuthService) issue(userID string) (string, error) {
	tok, err := s.signer.Issue(token.Claims{Subject: userID}, s.tokenTTL)
	if err != nil {
		return "", fmt.Errorf("%w: issue token: %w", ErrInternal, err)
	}
	return tok, nil
}

// dummy returns a hash of the configured cost used to equalize login timing.
func (s *AuthService) dummy() string {
	s.dummyOnce.Do(func() {
		h, err := s.hasher.Hash("neighborfit-timing-equalizer")
		if err != nil {
			s.logger.Warnw("dummy hash failed", "err", err)
		}
		s.dummyHash = h
	})
	return s.dummyHash
}
