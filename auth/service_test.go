package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/sitebid/authcore/auth"
	"github.com/sitebid/authcore/internal/autherrors"
	"github.com/sitebid/authcore/ratelimit"
	"github.com/sitebid/authcore/roles"
	"github.com/sitebid/authcore/sessions"
	fakesessionrepo "github.com/sitebid/authcore/sessions/repofake"
	"github.com/sitebid/authcore/token"
	fakeuserrepo "github.com/sitebid/authcore/users/repofake"
	"github.com/stretchr/testify/require"
)

const (
	testIssuer       = "com.sitebid.auth"
	testAccessTTL    = 15 * time.Minute
	testRefreshTTL   = 30 * 24 * time.Hour
	testMaxAttempts  = 5
	testLimitWindow  = 15 * time.Minute
	testUserEmail    = "jane.doe@example.com"
	testUserPassword = "Str0ngPassword"
	testClientID     = "203.0.113.7"
)

// countingHasher is a fast stand-in for bcrypt that records how often
// each path runs, so tests can assert the limiter fires before hashing.
type countingHasher struct {
	verifyCalls int
	dummyCalls  int
}

func (h *countingHasher) Hash(password string) (string, error) { return "h:" + password, nil }

func (h *countingHasher) Verify(password, hash string) bool {
	h.verifyCalls++
	return hash == "h:"+password
}

func (h *countingHasher) DummyVerify(password string) { h.dummyCalls++ }

type testFixture struct {
	service     *auth.Service
	tokenSvc    *token.Service
	userRepo    *fakeuserrepo.FakeUserRepo
	sessionRepo *fakesessionrepo.FakeSessionRepo
	hasher      *countingHasher
	now         time.Time
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()

	f := &testFixture{
		userRepo:    fakeuserrepo.NewFakeUserRepo(),
		sessionRepo: fakesessionrepo.NewFakeSessionRepo(),
		hasher:      &countingHasher{},
		now:         time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	nowFunc := func() time.Time { return f.now }

	signer, err := token.NewHMACSigner([]byte("test-secret"))
	require.NoError(t, err)
	f.tokenSvc = token.NewService(signer, testIssuer, testAccessTTL)

	// Verifier hashing uses its own instance so password-verify counts
	// stay unpolluted.
	sessionManager, err := sessions.NewManager(f.sessionRepo, &countingHasher{}, zerolog.Nop(),
		sessions.WithNowTime(nowFunc))
	require.NoError(t, err)

	limiter := ratelimit.NewMemoryLimiter(testMaxAttempts, testLimitWindow,
		ratelimit.WithNowTime(nowFunc))

	service, err := auth.NewService(auth.Dependencies{
		Users:           f.userRepo,
		Sessions:        sessionManager,
		Tokens:          f.tokenSvc,
		Hasher:          f.hasher,
		Limiter:         limiter,
		Logger:          zerolog.Nop(),
		RefreshTokenTTL: testRefreshTTL,
	}, auth.WithNowTime(nowFunc))
	require.NoError(t, err)

	f.service = service
	return f
}

func (f *testFixture) registerTestUser(t *testing.T) {
	t.Helper()

	_, err := f.service.Register(context.Background(), testUserEmail, testUserPassword, roles.RoleWorker)
	require.NoError(t, err)
}

func TestLoginSuccess(t *testing.T) {
	f := setupTestFixture(t)
	f.registerTestUser(t)

	tokens, err := f.service.Login(context.Background(), testUserEmail, testUserPassword, testClientID)
	require.NoError(t, err)
	require.NotEmpty(t, tokens.SessionID)
	require.Regexp(t, `^[0-9a-f]{32}\.[0-9a-f]{64}$`, tokens.RefreshToken)

	claims, err := f.tokenSvc.Verify(tokens.AccessToken)
	require.NoError(t, err)
	require.Equal(t, testUserEmail, claims.Email)
	require.Equal(t, roles.RoleWorker, claims.Role)

	user, err := f.userRepo.GetByEmail(testUserEmail)
	require.NoError(t, err)
	require.Equal(t, user.ID, claims.Subject)
	require.Equal(t, f.now, user.LastLogin)
}

func TestLoginEmailIsCaseInsensitive(t *testing.T) {
	f := setupTestFixture(t)
	f.registerTestUser(t)

	_, err := f.service.Login(context.Background(), "Jane.Doe@Example.COM", testUserPassword, testClientID)
	require.NoError(t, err)
}

func TestLoginFailureIsUniform(t *testing.T) {
	f := setupTestFixture(t)
	f.registerTestUser(t)
	ctx := context.Background()

	_, wrongPasswordErr := f.service.Login(ctx, testUserEmail, "WrongPassword1", testClientID)
	_, unknownUserErr := f.service.Login(ctx, "nobody@example.com", testUserPassword, testClientID)

	require.ErrorIs(t, wrongPasswordErr, autherrors.ErrInvalidCredentials)
	require.ErrorIs(t, unknownUserErr, autherrors.ErrInvalidCredentials)
	require.Equal(t, wrongPasswordErr.Error(), unknownUserErr.Error(),
		"the caller must not learn which factor failed")
}

func TestLoginUnknownUserStillBurnsAHash(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.service.Login(context.Background(), "nobody@example.com", testUserPassword, testClientID)
	require.ErrorIs(t, err, autherrors.ErrInvalidCredentials)
	require.Equal(t, 1, f.hasher.dummyCalls)
	require.Zero(t, f.hasher.verifyCalls)
}

func TestLoginRateLimitedBeforeHashing(t *testing.T) {
	f := setupTestFixture(t)
	f.registerTestUser(t)
	ctx := context.Background()

	for i := 0; i < testMaxAttempts; i++ {
		_, err := f.service.Login(ctx, testUserEmail, "WrongPassword1", testClientID)
		require.ErrorIs(t, err, autherrors.ErrInvalidCredentials)
	}
	require.Equal(t, testMaxAttempts, f.hasher.verifyCalls)

	// Correct credentials are irrelevant once the window is exhausted.
	_, err := f.service.Login(ctx, testUserEmail, testUserPassword, testClientID)
	require.ErrorIs(t, err, autherrors.ErrRateLimited)

	var rateErr *autherrors.RateLimitedError
	require.ErrorAs(t, err, &rateErr)
	require.Greater(t, rateErr.RetryAfter, time.Duration(0))

	require.Equal(t, testMaxAttempts, f.hasher.verifyCalls,
		"a rate-limited login must not reach the password hash")
}

func TestLoginWindowResets(t *testing.T) {
	f := setupTestFixture(t)
	f.registerTestUser(t)
	ctx := context.Background()

	for i := 0; i < testMaxAttempts+1; i++ {
		_, _ = f.service.Login(ctx, testUserEmail, "WrongPassword1", testClientID)
	}

	f.now = f.now.Add(testLimitWindow)
	_, err := f.service.Login(ctx, testUserEmail, testUserPassword, testClientID)
	require.NoError(t, err)
}

func TestLoginSuccessResetsLimiter(t *testing.T) {
	f := setupTestFixture(t)
	f.registerTestUser(t)
	ctx := context.Background()

	for i := 0; i < testMaxAttempts-1; i++ {
		_, err := f.service.Login(ctx, testUserEmail, "WrongPassword1", testClientID)
		require.ErrorIs(t, err, autherrors.ErrInvalidCredentials)
	}

	_, err := f.service.Login(ctx, testUserEmail, testUserPassword, testClientID)
	require.NoError(t, err)

	// The earlier failures no longer count against the caller.
	for i := 0; i < testMaxAttempts-1; i++ {
		_, err := f.service.Login(ctx, testUserEmail, "WrongPassword1", testClientID)
		require.ErrorIs(t, err, autherrors.ErrInvalidCredentials)
	}
}

func TestRefreshRotatesTokens(t *testing.T) {
	f := setupTestFixture(t)
	f.registerTestUser(t)
	ctx := context.Background()

	initial, err := f.service.Login(ctx, testUserEmail, testUserPassword, testClientID)
	require.NoError(t, err)

	refreshed, err := f.service.Refresh(ctx, initial.RefreshToken)
	require.NoError(t, err)
	require.Equal(t, initial.SessionID, refreshed.SessionID, "rotation keeps the session")
	require.NotEqual(t, initial.RefreshToken, refreshed.RefreshToken)

	claims, err := f.tokenSvc.Verify(refreshed.AccessToken)
	require.NoError(t, err)
	require.Equal(t, testUserEmail, claims.Email)
}

func TestRefreshReplayTripsReuseDetection(t *testing.T) {
	f := setupTestFixture(t)
	f.registerTestUser(t)
	ctx := context.Background()

	initial, err := f.service.Login(ctx, testUserEmail, testUserPassword, testClientID)
	require.NoError(t, err)

	refreshed, err := f.service.Refresh(ctx, initial.RefreshToken)
	require.NoError(t, err)

	// Replaying the consumed token is treated as theft.
	_, err = f.service.Refresh(ctx, initial.RefreshToken)
	require.ErrorIs(t, err, autherrors.ErrTokenReuseDetected)

	// The whole lineage is dead, including the latest token.
	_, err = f.service.Refresh(ctx, refreshed.RefreshToken)
	require.ErrorIs(t, err, autherrors.ErrTokenNotFound)
}

func TestRefreshMalformedToken(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.service.Refresh(context.Background(), "short.deadbeef")
	require.ErrorIs(t, err, autherrors.ErrTokenMalformed)
}

func TestRefreshHammeringOneSelectorIsRateLimited(t *testing.T) {
	f := setupTestFixture(t)
	f.registerTestUser(t)
	ctx := context.Background()

	tokens, err := f.service.Login(ctx, testUserEmail, testUserPassword, testClientID)
	require.NoError(t, err)

	// Same selector, wrong verifier: a guessing attacker.
	selector := tokens.RefreshToken[:32]
	forged := selector + "." + "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

	for i := 0; i < testMaxAttempts; i++ {
		_, err := f.service.Refresh(ctx, forged)
		require.ErrorIs(t, err, autherrors.ErrTokenNotFound)
	}

	_, err = f.service.Refresh(ctx, forged)
	require.ErrorIs(t, err, autherrors.ErrRateLimited)
}

func TestLogout(t *testing.T) {
	f := setupTestFixture(t)
	f.registerTestUser(t)
	ctx := context.Background()

	tokens, err := f.service.Login(ctx, testUserEmail, testUserPassword, testClientID)
	require.NoError(t, err)

	require.NoError(t, f.service.Logout(ctx, tokens.SessionID))

	_, err = f.service.Refresh(ctx, tokens.RefreshToken)
	require.ErrorIs(t, err, autherrors.ErrTokenNotFound)

	// Logging out twice is harmless.
	require.NoError(t, f.service.Logout(ctx, tokens.SessionID))
}

func TestLogoutOtherSessions(t *testing.T) {
	f := setupTestFixture(t)
	f.registerTestUser(t)
	ctx := context.Background()

	first, err := f.service.Login(ctx, testUserEmail, testUserPassword, "client-a")
	require.NoError(t, err)
	second, err := f.service.Login(ctx, testUserEmail, testUserPassword, "client-b")
	require.NoError(t, err)
	current, err := f.service.Login(ctx, testUserEmail, testUserPassword, "client-c")
	require.NoError(t, err)

	user, err := f.userRepo.GetByEmail(testUserEmail)
	require.NoError(t, err)

	count, err := f.service.LogoutOtherSessions(ctx, user.ID, current.SessionID)
	require.NoError(t, err)
	require.Equal(t, 2, count)

	_, err = f.service.Refresh(ctx, first.RefreshToken)
	require.ErrorIs(t, err, autherrors.ErrTokenNotFound)
	_, err = f.service.Refresh(ctx, second.RefreshToken)
	require.ErrorIs(t, err, autherrors.ErrTokenNotFound)
	_, err = f.service.Refresh(ctx, current.RefreshToken)
	require.NoError(t, err)
}

func TestAuthorize(t *testing.T) {
	f := setupTestFixture(t)

	claims := &token.Claims{Role: roles.RoleManager}
	require.NoError(t, f.service.Authorize(claims, roles.RoleWorker))
	require.NoError(t, f.service.Authorize(claims, roles.RoleAdmin, roles.RoleManager))

	err := f.service.Authorize(claims, roles.RoleAdmin)
	require.ErrorIs(t, err, autherrors.ErrInsufficientRole)

	err = f.service.Authorize(nil, roles.RoleUser)
	require.ErrorIs(t, err, autherrors.ErrInsufficientRole)
}

func TestRegisterRejectsDuplicateEmailCaseInsensitive(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	_, err := f.service.Register(ctx, "Bids@Example.com", testUserPassword, roles.RoleUser)
	require.NoError(t, err)

	_, err = f.service.Register(ctx, "bids@example.COM", testUserPassword, roles.RoleUser)
	require.ErrorIs(t, err, autherrors.ErrDuplicateEmail)
}

func TestRegisterRejectsWeakPassword(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	for _, weak := range []string{"short1A", "alllowercase1", "ALLUPPERCASE1", "NoDigitsHere"} {
		_, err := f.service.Register(ctx, testUserEmail, weak, roles.RoleUser)
		require.ErrorIs(t, err, autherrors.ErrWeakPassword, "password %q", weak)
	}
}

func TestChangePassword(t *testing.T) {
	f := setupTestFixture(t)
	f.registerTestUser(t)
	ctx := context.Background()

	current, err := f.service.Login(ctx, testUserEmail, testUserPassword, "client-a")
	require.NoError(t, err)
	other, err := f.service.Login(ctx, testUserEmail, testUserPassword, "client-b")
	require.NoError(t, err)

	user, err := f.userRepo.GetByEmail(testUserEmail)
	require.NoError(t, err)

	const newPassword = "NewPassword9"
	require.NoError(t, f.service.ChangePassword(ctx, user.ID, testUserPassword, newPassword, current.SessionID))

	// Old credential is gone, new one works.
	_, err = f.service.Login(ctx, testUserEmail, testUserPassword, testClientID)
	require.ErrorIs(t, err, autherrors.ErrInvalidCredentials)
	_, err = f.service.Login(ctx, testUserEmail, newPassword, testClientID)
	require.NoError(t, err)

	// Other sessions died with the old password; the current survives.
	_, err = f.service.Refresh(ctx, other.RefreshToken)
	require.ErrorIs(t, err, autherrors.ErrTokenNotFound)
	_, err = f.service.Refresh(ctx, current.RefreshToken)
	require.NoError(t, err)
}

func TestChangePasswordWrongOldPassword(t *testing.T) {
	f := setupTestFixture(t)
	f.registerTestUser(t)
	ctx := context.Background()

	user, err := f.userRepo.GetByEmail(testUserEmail)
	require.NoError(t, err)

	err = f.service.ChangePassword(ctx, user.ID, "WrongPassword1", "NewPassword9", "session-x")
	require.ErrorIs(t, err, autherrors.ErrInvalidCredentials)
}

func TestSessionsListing(t *testing.T) {
	f := setupTestFixture(t)
	f.registerTestUser(t)
	ctx := context.Background()

	_, err := f.service.Login(ctx, testUserEmail, testUserPassword, "client-a")
	require.NoError(t, err)
	f.now = f.now.Add(time.Minute)
	_, err = f.service.Login(ctx, testUserEmail, testUserPassword, "client-b")
	require.NoError(t, err)

	user, err := f.userRepo.GetByEmail(testUserEmail)
	require.NoError(t, err)

	list, err := f.service.Sessions(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.True(t, list[0].CreatedAt.Before(list[1].CreatedAt))
}

func TestNewServiceValidatesDependencies(t *testing.T) {
	_, err := auth.NewService(auth.Dependencies{})
	require.Error(t, err)
}
