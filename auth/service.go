package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/sitebid/authcore/internal/autherrors"
	"github.com/sitebid/authcore/ratelimit"
	"github.com/sitebid/authcore/roles"
	"github.com/sitebid/authcore/sessions"
	"github.com/sitebid/authcore/token"
	"github.com/sitebid/authcore/token/refresh"
	"github.com/sitebid/authcore/users"
)

// Rate-limited actions. Login is keyed by client identity (IP or
// account), refresh by token selector.
const (
	actionLogin   = "login"
	actionRefresh = "refresh"
)

// PasswordHasher is the credential-hashing contract consumed by the
// service. The password package's Hasher satisfies it.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) bool
	// DummyVerify burns a full hash comparison without a real hash, so
	// unknown-user and wrong-password paths cost the same.
	DummyVerify(password string)
}

// Tokens is the credential pair returned by login and refresh.
type Tokens struct {
	AccessToken  string
	RefreshToken string
	SessionID    string
}

// Service orchestrates password verification, token issuance, session
// rotation, and rate limiting for the marketplace's auth surface.
type Service struct {
	users      users.Repo
	sessions   *sessions.Manager
	tokens     *token.Service
	hasher     PasswordHasher
	limiter    ratelimit.Limiter
	logger     zerolog.Logger
	refreshTTL time.Duration
	nowTime    func() time.Time
}

// Dependencies holds everything a Service needs. All fields except
// Logger are required.
type Dependencies struct {
	Users           users.Repo
	Sessions        *sessions.Manager
	Tokens          *token.Service
	Hasher          PasswordHasher
	Limiter         ratelimit.Limiter
	Logger          zerolog.Logger
	RefreshTokenTTL time.Duration
}

// ServiceOption defines a function type to modify the Service instance.
type ServiceOption func(*Service)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) ServiceOption {
	return func(s *Service) {
		s.nowTime = nowFunc
	}
}

// NewService initializes the auth service with required dependencies.
func NewService(deps Dependencies, options ...ServiceOption) (*Service, error) {
	if deps.Users == nil {
		return nil, errors.New("[NewService] Users repo is required")
	}
	if deps.Sessions == nil {
		return nil, errors.New("[NewService] Sessions manager is required")
	}
	if deps.Tokens == nil {
		return nil, errors.New("[NewService] Tokens service is required")
	}
	if deps.Hasher == nil {
		return nil, errors.New("[NewService] Hasher is required")
	}
	if deps.Limiter == nil {
		return nil, errors.New("[NewService] Limiter is required")
	}
	if deps.RefreshTokenTTL <= 0 {
		return nil, errors.New("[NewService] RefreshTokenTTL must be positive")
	}

	service := &Service{
		users:      deps.Users,
		sessions:   deps.Sessions,
		tokens:     deps.Tokens,
		hasher:     deps.Hasher,
		limiter:    deps.Limiter,
		logger:     deps.Logger,
		refreshTTL: deps.RefreshTokenTTL,
		nowTime:    time.Now,
	}

	for _, opt := range options {
		opt(service)
	}

	return service, nil
}

// Login verifies credentials and opens a new session. clientID
// identifies the caller for rate limiting (typically the client IP).
// Unknown user and wrong password produce the identical
// ErrInvalidCredentials; the limiter runs before any hashing so a
// blocked caller cannot use login as a hashing-cost oracle.
func (s *Service) Login(ctx context.Context, email, password, clientID string) (*Tokens, error) {
	res, err := s.limiter.Check(ctx, actionLogin, clientID)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.Login] rate limiter")
	}
	if !res.Allowed {
		return nil, &autherrors.RateLimitedError{RetryAfter: res.RetryAfter}
	}

	user, err := s.users.GetByEmail(users.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, autherrors.ErrUserNotFound) {
			s.hasher.DummyVerify(password)
			return nil, autherrors.ErrInvalidCredentials
		}
		return nil, errors.Wrap(err, "[Service.Login] GetByEmail")
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		return nil, autherrors.ErrInvalidCredentials
	}

	tokens, err := s.openSession(ctx, user)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.Login] openSession")
	}

	if err := s.limiter.Reset(ctx, actionLogin, clientID); err != nil {
		s.logger.Warn().Err(err).Msg("failed to reset login rate limit")
	}
	if err := s.users.UpdateLastLogin(user.ID, s.nowTime()); err != nil {
		s.logger.Warn().Err(err).Str("user_id", user.ID).Msg("failed to record last login")
	}

	return tokens, nil
}

// Refresh exchanges a valid refresh token for a fresh access token and
// a rotated refresh token. Refresh tokens are single-use: the presented
// pair is retired by the rotation, and replaying it afterwards trips
// reuse detection inside the session manager.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*Tokens, error) {
	pair, err := refresh.ParseToken(refreshToken)
	if err != nil {
		return nil, err
	}

	res, err := s.limiter.Check(ctx, actionRefresh, pair.Selector)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.Refresh] rate limiter")
	}
	if !res.Allowed {
		return nil, &autherrors.RateLimitedError{RetryAfter: res.RetryAfter}
	}

	session, err := s.sessions.ValidateAndConsume(ctx, refreshToken)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetByID(session.UserID)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.Refresh] GetByID")
	}

	newPair, err := s.sessions.Rotate(ctx, session)
	if err != nil {
		if errors.Is(err, autherrors.ErrRotationConflict) {
			// A concurrent refresh won the rotation; this token is spent.
			return nil, autherrors.ErrTokenNotFound
		}
		return nil, errors.Wrap(err, "[Service.Refresh] Rotate")
	}

	accessToken, err := s.tokens.Issue(user)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.Refresh] Issue")
	}

	return &Tokens{
		AccessToken:  accessToken,
		RefreshToken: newPair.Token,
		SessionID:    session.ID,
	}, nil
}

// VerifyAccessToken validates an access token's signature, issuer and
// expiry and returns its claims. Middleware calls this on every request.
func (s *Service) VerifyAccessToken(accessToken string) (*token.Claims, error) {
	return s.tokens.Verify(accessToken)
}

// Logout terminates the session. Revoking an already-terminated
// session is not an error.
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	_, err := s.sessions.Revoke(ctx, sessionID)
	return errors.Wrap(err, "[Service.Logout] Revoke")
}

// LogoutOtherSessions terminates every session of userID except the
// current one, returning the number revoked.
func (s *Service) LogoutOtherSessions(ctx context.Context, userID, currentSessionID string) (int, error) {
	count, err := s.sessions.RevokeAllExcept(ctx, userID, currentSessionID)
	if err != nil {
		return 0, errors.Wrap(err, "[Service.LogoutOtherSessions] RevokeAllExcept")
	}
	return count, nil
}

// Authorize checks the verified claims against the required roles.
// Returns ErrInsufficientRole when none is satisfied; the caller maps
// that to a 403-equivalent outcome.
func (s *Service) Authorize(claims *token.Claims, required ...roles.Role) error {
	if claims == nil {
		return autherrors.ErrInsufficientRole
	}
	if !roles.HasAnyRole(claims.Role, required...) {
		return autherrors.ErrInsufficientRole
	}
	return nil
}

// Register creates a new user account. Emails are unique
// case-insensitively; a duplicate yields ErrDuplicateEmail.
func (s *Service) Register(ctx context.Context, email, password string, role roles.Role) (*users.User, error) {
	if !roles.Valid(role) {
		return nil, errors.Errorf("[Service.Register] unknown role %q", role)
	}
	if err := users.ValidatePasswordStrength(password); err != nil {
		return nil, autherrors.Wrapf(autherrors.ErrWeakPassword, "%s", err.Error())
	}

	passwordHash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.Register] Hash")
	}

	user := &users.User{
		ID:           uuid.New().String(),
		Email:        users.NormalizeEmail(email),
		PasswordHash: passwordHash,
		Role:         role,
		CreatedAt:    s.nowTime(),
	}
	if err := s.users.Create(user); err != nil {
		return nil, err
	}
	return user, nil
}

// ChangePassword verifies the old password, stores the new hash, and
// revokes every other session so stolen refresh tokens die with the
// old credential. The current session stays alive.
func (s *Service) ChangePassword(ctx context.Context, userID, oldPassword, newPassword, currentSessionID string) error {
	user, err := s.users.GetByID(userID)
	if err != nil {
		if errors.Is(err, autherrors.ErrUserNotFound) {
			return autherrors.ErrInvalidCredentials
		}
		return errors.Wrap(err, "[Service.ChangePassword] GetByID")
	}

	if !s.hasher.Verify(oldPassword, user.PasswordHash) {
		return autherrors.ErrInvalidCredentials
	}
	if err := users.ValidatePasswordStrength(newPassword); err != nil {
		return autherrors.Wrapf(autherrors.ErrWeakPassword, "%s", err.Error())
	}

	passwordHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return errors.Wrap(err, "[Service.ChangePassword] Hash")
	}
	if err := s.users.UpdatePasswordHash(userID, passwordHash); err != nil {
		return errors.Wrap(err, "[Service.ChangePassword] UpdatePasswordHash")
	}

	if _, err := s.sessions.RevokeAllExcept(ctx, userID, currentSessionID); err != nil {
		return errors.Wrap(err, "[Service.ChangePassword] RevokeAllExcept")
	}
	return nil
}

// Sessions lists the user's active sessions for the account page.
func (s *Service) Sessions(ctx context.Context, userID string) ([]*sessions.Session, error) {
	return s.sessions.ListByUser(ctx, userID)
}

// openSession issues the access token and starts a refresh lineage.
func (s *Service) openSession(ctx context.Context, user *users.User) (*Tokens, error) {
	accessToken, err := s.tokens.Issue(user)
	if err != nil {
		return nil, errors.Wrap(err, "token issue")
	}

	session, pair, err := s.sessions.Create(ctx, user.ID, s.refreshTTL)
	if err != nil {
		return nil, errors.Wrap(err, "session create")
	}

	return &Tokens{
		AccessToken:  accessToken,
		RefreshToken: pair.Token,
		SessionID:    session.ID,
	}, nil
}
