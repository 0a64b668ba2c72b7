package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	appMiddleware "github.com/thebigby10/sugarvoice-backend/app/middleware"
	"github.com/thebigby10/sugarvoice-backend/app/observability/metrics"
	"github.com/thebigby10/sugarvoice-backend/internal/types"
)

var _ AuthService = (*AuthServiceImpl)(nil)

// AuthService is the gateway between the HTTP layer and credentials.
type AuthService interface {
	Register(ctx context.Context, req types.RegisterRequest) (*types.IdentityView, error)
	// Login returns ErrInvalidCredentials for both an unknown email and a
	// wrong password.
	Login(ctx context.Context, email, password string) (*types.TokenResponse, error)
	// ResolveCurrentUser maps a bearer token to a stored identity. Every
	// token problem is reported as types.ErrUnauthenticated.
	ResolveCurrentUser(ctx context.Context, token string) (*types.Identity, error)
	UpdateProfile(ctx context.Context, identity *types.Identity, patch types.IdentityPatch) (*types.IdentityView, error)
}

type AuthServiceImpl struct {
	logger   *slog.Logger
	store    CredentialStore
	hasher   PasswordHasher
	tokens   TokenService
	limiter  *LoginLimiter
	tokenTTL time.Duration

	// dummyHash is verified against when the email is unknown so that path
	// costs one bcrypt comparison, same as a wrong password.
	dummyHash string
}

func NewAuthService(store CredentialStore, hasher PasswordHasher, tokens TokenService,
	limiter *LoginLimiter, tokenTTL time.Duration, logger *slog.Logger) (*AuthServiceImpl, error) {
	dummyHash, err := hasher.Hash(context.Background(), "sugarvoice-timing-equaliser")
	if err != nil {
		return nil, fmt.Errorf("failed to prepare dummy password hash: %w", err)
	}
	return &AuthServiceImpl{
		logger:    logger,
		store:     store,
		hasher:    hasher,
		tokens:    tokens,
		limiter:   limiter,
		tokenTTL:  tokenTTL,
		dummyHash: dummyHash,
	}, nil
}

func (s *AuthServiceImpl) Register(ctx context.Context, req types.RegisterRequest) (*types.IdentityView, error) {
	ctx, span := otel.Tracer("AuthService").Start(ctx, "Register")
	defer span.End()

	l := s.logger.With(slog.String("method", "Register"))

	if err := req.Validate(); err != nil {
		s.countRegister(ctx, "invalid")
		span.SetStatus(codes.Error, "Invalid registration")
		return nil, err
	}

	identity, err := s.store.Create(ctx, req.NewIdentity())
	if err != nil {
		switch {
		case errors.Is(err, ErrEmailTaken):
			s.countRegister(ctx, "email_taken")
		case errors.Is(err, types.ErrValidation):
			s.countRegister(ctx, "invalid")
		default:
			s.countRegister(ctx, "error")
			l.ErrorContext(ctx, "Failed to register user", slog.Any("error", err))
			span.RecordError(err)
		}
		span.SetStatus(codes.Error, "Registration failed")
		return nil, err
	}

	s.countRegister(ctx, "created")
	l.InfoContext(ctx, "User registered", slog.String("userID", identity.ID.String()))
	span.SetStatus(codes.Ok, "User registered")
	return identity.View(), nil
}

func (s *AuthServiceImpl) Login(ctx context.Context, email, password string) (*types.TokenResponse, error) {
	ctx, span := otel.Tracer("AuthService").Start(ctx, "Login")
	defer span.End()

	l := s.logger.With(slog.String("method", "Login"))
	email = types.NormalizeEmail(email)
	attemptKey := loginAttemptKey(ctx, email)

	if s.limiter.Blocked(attemptKey) {
		s.countLogin(ctx, "locked")
		l.WarnContext(ctx, "Login rejected, too many failed attempts")
		span.SetStatus(codes.Error, "Too many attempts")
		return nil, ErrTooManyAttempts
	}

	identity, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, types.ErrNotFound) {
			s.countLogin(ctx, "error")
			span.RecordError(err)
			span.SetStatus(codes.Error, "Credential lookup failed")
			return nil, err
		}
		// Burn a comparable amount of time so unknown emails are not
		// distinguishable from wrong passwords.
		s.hasher.Verify(ctx, password, s.dummyHash)
		return nil, s.loginFailed(ctx, span, attemptKey)
	}

	if !s.hasher.Verify(ctx, password, identity.PasswordHash) {
		return nil, s.loginFailed(ctx, span, attemptKey)
	}

	token, err := s.tokens.Issue(identity.Email, s.tokenTTL)
	if err != nil {
		s.countLogin(ctx, "error")
		l.ErrorContext(ctx, "Failed to issue token", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Token issue failed")
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	s.limiter.Reset(attemptKey)
	s.countLogin(ctx, "success")
	l.InfoContext(ctx, "User logged in", slog.String("userID", identity.ID.String()))
	span.SetStatus(codes.Ok, "Login succeeded")
	return &types.TokenResponse{AccessToken: token, TokenType: TokenType}, nil
}

func (s *AuthServiceImpl) loginFailed(ctx context.Context, span trace.Span, attemptKey string) error {
	s.limiter.RecordFailure(attemptKey)
	s.countLogin(ctx, "invalid_credentials")
	span.SetStatus(codes.Error, "Invalid credentials")
	return ErrInvalidCredentials
}

// loginAttemptKey scopes failed-login counting to one email from one client,
// so failures from elsewhere cannot lock the account owner out.
func loginAttemptKey(ctx context.Context, email string) string {
	return email + "|" + appMiddleware.ClientIPFromContext(ctx)
}

func (s *AuthServiceImpl) ResolveCurrentUser(ctx context.Context, token string) (*types.Identity, error) {
	ctx, span := otel.Tracer("AuthService").Start(ctx, "ResolveCurrentUser")
	defer span.End()

	subject, err := s.tokens.Verify(token)
	if err != nil {
		s.logger.DebugContext(ctx, "Bearer token rejected",
			slog.String("method", "ResolveCurrentUser"), slog.Any("error", err))
		span.SetStatus(codes.Error, "Invalid token")
		return nil, fmt.Errorf("%w: %v", types.ErrUnauthenticated, err)
	}

	identity, err := s.store.FindByEmail(ctx, subject)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			span.SetStatus(codes.Error, "Token subject no longer exists")
			return nil, fmt.Errorf("%w: token subject not found", types.ErrUnauthenticated)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "Credential lookup failed")
		return nil, err
	}

	span.SetAttributes(attribute.String("user.id", identity.ID.String()))
	span.SetStatus(codes.Ok, "Identity resolved")
	return identity, nil
}

func (s *AuthServiceImpl) UpdateProfile(ctx context.Context, identity *types.Identity, patch types.IdentityPatch) (*types.IdentityView, error) {
	if identity == nil {
		return nil, types.ErrUnauthenticated
	}

	ctx, span := otel.Tracer("AuthService").Start(ctx, "UpdateProfile", trace.WithAttributes(
		attribute.String("user.id", identity.ID.String()),
	))
	defer span.End()

	if err := patch.Validate(); err != nil {
		span.SetStatus(codes.Error, "Invalid profile update")
		return nil, err
	}

	updated, err := s.store.Update(ctx, identity, patch)
	if err != nil {
		if !errors.Is(err, ErrEmailTaken) && !errors.Is(err, types.ErrValidation) {
			s.logger.ErrorContext(ctx, "Failed to update profile",
				slog.String("method", "UpdateProfile"), slog.Any("error", err))
			span.RecordError(err)
		}
		span.SetStatus(codes.Error, "Profile update failed")
		return nil, err
	}

	span.SetStatus(codes.Ok, "Profile updated")
	return updated.View(), nil
}

func (s *AuthServiceImpl) countLogin(ctx context.Context, outcome string) {
	metrics.Get().LoginAttemptsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (s *AuthServiceImpl) countRegister(ctx context.Context, outcome string) {
	metrics.Get().RegisterRequestsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
