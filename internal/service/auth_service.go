package service

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/repository"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

const invalidCredentials = "invalid credentials"

// IdentityCache keeps resolved identities between requests.
type IdentityCache interface {
	Get(ctx context.Context, userID string) (*domain.Identity, error)
	Set(ctx context.Context, identity domain.Identity) error
}

// LoginLimiter counts failed logins per email.
type LoginLimiter interface {
	Blocked(ctx context.Context, email string) (bool, time.Duration, error)
	RecordFailure(ctx context.Context, email string) (int64, error)
	Reset(ctx context.Context, email string) error
}

// AuthService coordinates registration, login and token resolution.
type AuthService struct {
	store      repository.Store
	tokens     *auth.TokenManager
	cache      IdentityCache
	limiter    LoginLimiter
	logger     *zap.Logger
	bcryptCost int
}

// AuthDependencies bundles collaborators. Cache and Limiter are optional.
type AuthDependencies struct {
	Store      repository.Store
	Tokens     *auth.TokenManager
	Cache      IdentityCache
	Limiter    LoginLimiter
	Logger     *zap.Logger
	BcryptCost int
}

// RegisterInput is the registration payload.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// AuthResult is a signed token with the public user fields.
type AuthResult struct {
	Token     string
	ExpiresAt time.Time
	User      domain.Identity
}

// NewAuthService builds the service.
func NewAuthService(deps AuthDependencies) *AuthService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		store:      deps.Store,
		tokens:     deps.Tokens,
		cache:      deps.Cache,
		limiter:    deps.Limiter,
		logger:     logger,
		bcryptCost: deps.BcryptCost,
	}
}

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a REQUESTER account and signs a token for it.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	name := strings.TrimSpace(input.Name)
	email := NormalizeEmail(input.Email)
	details := map[string]any{}
	if name == "" {
		details["name"] = "is required"
	}
	if !strings.Contains(email, "@") {
		details["email"] = "must be a valid email"
	}
	if len([]rune(input.Password)) < 6 {
		details["password"] = "must be at least 6 characters"
	}
	if len(details) > 0 {
		return nil, apperrors.NewValidationError("validation failed", details)
	}

	users := s.store.Repositories().Users
	if _, err := users.GetByEmail(ctx, email); err == nil {
		return nil, apperrors.NewConflict("email already registered", map[string]any{"email": email})
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewInternalError(err)
	}

	hash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	user := &domain.User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         domain.RoleRequester,
	}
	if err := users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.NewConflict("email already registered", map[string]any{"email": email})
		}
		return nil, apperrors.NewInternalError(err)
	}

	s.logger.Info("user registered", zap.String("user_id", user.ID))
	return s.issue(domain.IdentityOf(user))
}

// Login verifies credentials. Unknown email and wrong password produce the same error.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, apperrors.NewUnauthorized(invalidCredentials)
	}

	if s.limiter != nil {
		blocked, retryAfter, err := s.limiter.Blocked(ctx, email)
		if err != nil {
			s.logger.Warn("login throttle unavailable", zap.Error(err))
		} else if blocked {
			return nil, apperrors.NewTooManyRequests("too many failed login attempts", int(math.Ceil(retryAfter.Seconds())))
		}
	}

	user, err := s.store.Repositories().Users.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewInternalError(err)
	}
	if user == nil || auth.ComparePassword(user.PasswordHash, password) != nil {
		s.recordFailure(ctx, email)
		return nil, apperrors.NewUnauthorized(invalidCredentials)
	}

	if s.limiter != nil {
		if err := s.limiter.Reset(ctx, email); err != nil {
			s.logger.Warn("reset login failures", zap.Error(err))
		}
	}
	return s.issue(domain.IdentityOf(user))
}

func (s *AuthService) recordFailure(ctx context.Context, email string) {
	if s.limiter == nil {
		return
	}
	count, err := s.limiter.RecordFailure(ctx, email)
	if err != nil {
		s.logger.Warn("record login failure", zap.Error(err))
		return
	}
	s.logger.Info("login failed", zap.Int64("failures", count))
}

// Resolve verifies a bearer token and loads the caller.
func (s *AuthService) Resolve(ctx context.Context, token string) (*domain.Identity, error) {
	claims, err := s.tokens.ParseToken(token)
	if err != nil {
		return nil, apperrors.NewUnauthorized("invalid token")
	}
	if _, err := uuid.Parse(claims.Subject); err != nil {
		return nil, apperrors.NewUnauthorized("invalid token")
	}

	if s.cache != nil {
		cached, err := s.cache.Get(ctx, claims.Subject)
		if err != nil {
			s.logger.Warn("identity cache read failed", zap.Error(err))
		} else if cached != nil {
			return cached, nil
		}
	}

	user, err := s.store.Repositories().Users.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewUnauthorized("user not found")
		}
		return nil, apperrors.NewInternalError(err)
	}

	identity := domain.IdentityOf(user)
	if s.cache != nil {
		if err := s.cache.Set(ctx, identity); err != nil {
			s.logger.Warn("identity cache write failed", zap.Error(err))
		}
	}
	return &identity, nil
}

// Me returns the caller attached by the auth middleware.
func (s *AuthService) Me(_ context.Context, caller *domain.Identity) (*domain.Identity, error) {
	if caller == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	return caller, nil
}

func (s *AuthService) issue(identity domain.Identity) (*AuthResult, error) {
	token, expiresAt, err := s.tokens.GenerateToken(identity)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &AuthResult{Token: token, ExpiresAt: expiresAt, User: identity}, nil
}
