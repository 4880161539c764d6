// Package authcore is the session and credential-security core of the
// sitebid marketplace: password hashing, access-token issuance, the
// selector/verifier refresh-token scheme with rotation and reuse
// detection, role checks, and rate limiting on authentication attempts.
//
// The route and persistence layers live elsewhere; they construct the
// subsystem once at process start via Bootstrap and call into it
// through auth.Service.
package authcore

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/sitebid/authcore/auth"
	"github.com/sitebid/authcore/internal/config"
	"github.com/sitebid/authcore/password"
	"github.com/sitebid/authcore/ratelimit"
	"github.com/sitebid/authcore/sessions"
	fakesessionrepo "github.com/sitebid/authcore/sessions/repofake"
	"github.com/sitebid/authcore/token"
	"github.com/sitebid/authcore/users"
)

// Options carries the external collaborators the core does not own.
type Options struct {
	// UserRepo is the user store owned by the application's
	// persistence layer. Required.
	UserRepo users.Repo

	// Pool backs the durable session store. When nil, sessions are
	// held in memory and die with the process (development mode).
	Pool *pgxpool.Pool

	// Redis shares rate-limit windows across processes. When nil,
	// limiting is process-local.
	Redis redis.UniversalClient

	Logger zerolog.Logger
}

// Bootstrap wires the subsystem from environment configuration.
func Bootstrap(opts Options) (*auth.Service, error) {
	if opts.UserRepo == nil {
		return nil, errors.New("[Bootstrap] UserRepo is required")
	}

	cfg := config.New()

	secret := cfg.GetJWTSecret()
	if secret == "" {
		return nil, errors.New("[Bootstrap] JWT_SECRET must be set")
	}
	signer, err := token.NewHMACSigner([]byte(secret))
	if err != nil {
		return nil, errors.Wrap(err, "[Bootstrap] signer")
	}
	tokenService := token.NewService(signer, cfg.GetIssuer(), cfg.GetAccessTokenExpiry())

	hasher := password.NewHasher(cfg.GetBcryptCost())

	var sessionRepo sessions.Repo
	if opts.Pool != nil {
		sessionRepo = sessions.NewPostgresRepo(opts.Pool)
	} else {
		sessionRepo = fakesessionrepo.NewFakeSessionRepo()
	}
	sessionManager, err := sessions.NewManager(sessionRepo, hasher, opts.Logger,
		sessions.WithRevokeAllOnReuse(cfg.GetRevokeAllOnReuse()))
	if err != nil {
		return nil, errors.Wrap(err, "[Bootstrap] session manager")
	}

	var limiter ratelimit.Limiter
	if opts.Redis != nil {
		limiter = ratelimit.NewRedisLimiter(opts.Redis, cfg.GetRateLimitMaxAttempts(), cfg.GetRateLimitWindow())
	} else {
		limiter = ratelimit.NewMemoryLimiter(cfg.GetRateLimitMaxAttempts(), cfg.GetRateLimitWindow())
	}

	return auth.NewService(auth.Dependencies{
		Users:           opts.UserRepo,
		Sessions:        sessionManager,
		Tokens:          tokenService,
		Hasher:          hasher,
		Limiter:         limiter,
		Logger:          opts.Logger,
		RefreshTokenTTL: cfg.GetRefreshTokenExpiry(),
	})
}

// ConnectPostgres opens the session-store pool from DATABASE_URL.
func ConnectPostgres(ctx context.Context) (*pgxpool.Pool, error) {
	cfg := config.New()
	pool, err := pgxpool.New(ctx, cfg.GetDatabaseURL())
	if err != nil {
		return nil, errors.Wrap(err, "[ConnectPostgres] pgxpool")
	}
	return pool, nil
}

// ConnectRedis builds the rate-limit client from REDIS_ADDR.
func ConnectRedis() redis.UniversalClient {
	cfg := config.New()
	return redis.NewClient(&redis.Options{
		Addr:     cfg.GetRedisAddr(),
		Password: cfg.GetRedisPassword(),
		DB:       cfg.GetRedisDB(),
	})
}
