package service

import (
	"context"
	"errors"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/petlink/petlink/internal/cache"
	"github.com/petlink/petlink/internal/model"
	"github.com/petlink/petlink/internal/repository"
)

const (
	minPasswordLength = 6
	maxPasswordLength = 128
	maxPhoneLength    = 32

	// dummyHash is verified when the email is unknown so both failure
	// paths cost one Argon2 computation.
	dummyHash = "$argon2id$v=19$m=65536,t=3,p=4$c29tZXNhbHRzb21lc2FsdA$2bFzxV4cMZ+Q6S4xX2dqUeyl3GJ1mB8kVn3c7m8uXkA"
)

// AccountStore is the account persistence used by AccountService.
type AccountStore interface {
	CreateAccount(ctx context.Context, account *model.Account) error
	GetAccountByID(ctx context.Context, id string) (*model.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (*model.Account, error)
	UpdateAccountProfile(ctx context.Context, account *model.Account) error
	SetAccountRole(ctx context.Context, id string, role model.Role) error
}

// PasswordHasher hashes and verifies passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, encodedHash string) (bool, error)
}

// TokenIssuer signs session tokens.
type TokenIssuer interface {
	Issue(account *model.Account) (string, time.Time, error)
}

// RoleCache caches account roles for the auth middleware.
type RoleCache interface {
	GetSessionRole(ctx context.Context, accountID string) (model.Role, error)
	SetSessionRole(ctx context.Context, accountID string, role model.Role) error
	DeleteSessionRole(ctx context.Context, accountID string) error
}

// AccountService handles registration, login and profiles.
type AccountService struct {
	accounts AccountStore
	hasher   PasswordHasher
	tokens   TokenIssuer
	roles    RoleCache
	contacts *ContactCache
	logger   *slog.Logger
	now      func() time.Time
}

// AccountServiceDeps collects AccountService collaborators. Roles and
// Contacts are optional.
type AccountServiceDeps struct {
	Accounts AccountStore
	Hasher   PasswordHasher
	Tokens   TokenIssuer
	Roles    RoleCache
	Contacts *ContactCache
	Logger   *slog.Logger
}

// NewAccountService creates a new AccountService.
func NewAccountService(deps AccountServiceDeps) *AccountService {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &AccountService{
		accounts: deps.Accounts,
		hasher:   deps.Hasher,
		tokens:   deps.Tokens,
		roles:    deps.Roles,
		contacts: deps.Contacts,
		logger:   deps.Logger.With("component", "service.account"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// RegisterInput defines input for creating an account.
type RegisterInput struct {
	Name     string
	Email    string
	Phone    string
	Password string
}

// Register creates a user account.
func (s *AccountService) Register(ctx context.Context, input RegisterInput) (*model.Account, error) {
	name := strings.TrimSpace(input.Name)
	phone := strings.TrimSpace(input.Phone)
	email, err := normalizeEmail(input.Email)
	if err != nil {
		return nil, err
	}
	if name == "" {
		return nil, ErrNameRequired
	}
	if len(name) > maxNameLength || len(phone) > maxPhoneLength {
		return nil, ErrFieldTooLong
	}
	if len(input.Password) < minPasswordLength {
		return nil, ErrPasswordTooShort
	}
	if len(input.Password) > maxPasswordLength {
		return nil, ErrFieldTooLong
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, err
	}

	now := s.now()
	account := &model.Account{
		ID:           ulid.Make().String(),
		Name:         name,
		Email:        email,
		Phone:        phone,
		Role:         model.RoleUser,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.accounts.CreateAccount(ctx, account); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return nil, ErrEmailTaken
		}
		return nil, storeError("create account", err)
	}

	s.logger.Info("account_registered", "account_id", account.ID)
	return account, nil
}

// LoginResult is returned by a successful Login.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	Account   *model.Account
}

// Login verifies credentials and issues a session token.
func (s *AccountService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	normalized, err := normalizeEmail(email)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	account, err := s.accounts.GetAccountByEmail(ctx, normalized)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			_, _ = s.hasher.Verify(password, dummyHash)
			return nil, ErrInvalidCredentials
		}
		return nil, storeError("get account", err)
	}

	ok, err := s.hasher.Verify(password, account.PasswordHash)
	if err != nil || !ok {
		return nil, ErrInvalidCredentials
	}

	token, expiresAt, err := s.tokens.Issue(account)
	if err != nil {
		return nil, err
	}

	s.logger.Info("account_login", "account_id", account.ID)
	return &LoginResult{Token: token, ExpiresAt: expiresAt, Account: account}, nil
}

// Profile returns an account by ID.
func (s *AccountService) Profile(ctx context.Context, id string) (*model.Account, error) {
	account, err := s.accounts.GetAccountByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, storeError("get account", err)
	}
	return account, nil
}

// UpdateProfileInput holds optional profile changes.
type UpdateProfileInput struct {
	Name  *string
	Phone *string
}

// UpdateProfile changes the contact fields shown to finders and drops the
// cached contact so lookups see the change.
func (s *AccountService) UpdateProfile(ctx context.Context, id string, input UpdateProfileInput) (*model.Account, error) {
	account, err := s.Profile(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, ErrNameRequired
		}
		account.Name = name
	}
	if input.Phone != nil {
		account.Phone = strings.TrimSpace(*input.Phone)
	}
	if len(account.Name) > maxNameLength || len(account.Phone) > maxPhoneLength {
		return nil, ErrFieldTooLong
	}
	account.UpdatedAt = s.now()

	if err := s.accounts.UpdateAccountProfile(ctx, account); err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, storeError("update account", err)
	}

	s.contacts.Invalidate(account.ID)
	return account, nil
}

// SetRole changes an account's role and drops its cached role.
func (s *AccountService) SetRole(ctx context.Context, id string, role model.Role) error {
	if !role.IsValid() {
		return ErrInvalidRole
	}

	if err := s.accounts.SetAccountRole(ctx, id, role); err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return ErrAccountNotFound
		}
		return storeError("set role", err)
	}

	if s.roles != nil {
		if err := s.roles.DeleteSessionRole(ctx, id); err != nil {
			s.logger.Warn("role_cache_evict_failed", "account_id", id, "error", err)
		}
	}

	s.logger.Info("account_role_changed", "account_id", id, "role", string(role))
	return nil
}

// CurrentRole returns the account's current role, cached briefly so a
// demotion reaches tokens issued earlier.
func (s *AccountService) CurrentRole(ctx context.Context, id string) (model.Role, error) {
	if s.roles != nil {
		role, err := s.roles.GetSessionRole(ctx, id)
		if err == nil {
			return role, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Debug("role_cache_unavailable", "account_id", id, "error", err)
		}
	}

	account, err := s.Profile(ctx, id)
	if err != nil {
		return "", err
	}

	if s.roles != nil {
		_ = s.roles.SetSessionRole(ctx, id, account.Role)
	}
	return account.Role, nil
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndex(email, "@")+1:], ".") {
		return "", ErrInvalidEmail
	}
	return email, nil
}
