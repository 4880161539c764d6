package token

import (
	"errors"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sitebid/authcore/internal/autherrors"
	"github.com/sitebid/authcore/roles"
	"github.com/sitebid/authcore/users"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// Claims is the verified content of an access token. Nothing server-side
// backs these tokens; the expiry window is the sole revocation mechanism.
type Claims struct {
	Subject   string     // User ID
	Email     string     // User's email at issuance time
	Role      roles.Role // User's role at issuance time
	Issuer    string
	IssuedAt  time.Time
	ExpiresAt time.Time
	TokenID   string // jti
}

// Service issues and verifies short-lived signed access tokens.
type Service struct {
	signer Signer
	issuer string
	ttl    time.Duration
}

// NewService creates an access token service. Tokens are signed by
// signer, stamped with issuer, and expire ttl after issuance.
func NewService(signer Signer, issuer string, ttl time.Duration) *Service {
	return &Service{
		signer: signer,
		issuer: issuer,
		ttl:    ttl,
	}
}

// Issue creates a signed access token for the user.
func (s *Service) Issue(user *users.User) (string, error) {
	now := NowTimeFunc()
	claims := jwtlib.MapClaims{
		"iss":   s.issuer,
		"sub":   user.ID,
		"email": user.Email,
		"role":  string(user.Role),
		"iat":   now.Unix(),
		"exp":   now.Add(s.ttl).Unix(),
		"jti":   uuid.New().String(),
	}
	return s.signer.Sign(claims)
}

// Verify checks the token's signature, issuer, and expiry. On any
// failure the claims are nil and the error identifies the kind
// (ErrTokenExpired or ErrTokenMalformed); no partial claims leak out.
func (s *Service) Verify(rawToken string) (*Claims, error) {
	if strings.TrimSpace(rawToken) == "" {
		return nil, autherrors.ErrTokenMalformed
	}

	parsed, err := jwtlib.ParseWithClaims(rawToken, jwtlib.MapClaims{}, s.signer.GetVerificationKey,
		jwtlib.WithIssuer(s.issuer),
		jwtlib.WithExpirationRequired(),
		jwtlib.WithTimeFunc(func() time.Time { return NowTimeFunc() }),
	)
	if err != nil {
		if errors.Is(err, jwtlib.ErrTokenExpired) {
			return nil, autherrors.ErrTokenExpired
		}
		return nil, autherrors.ErrTokenMalformed
	}
	if !parsed.Valid {
		return nil, autherrors.ErrTokenMalformed
	}

	mapClaims, ok := parsed.Claims.(jwtlib.MapClaims)
	if !ok {
		return nil, autherrors.ErrTokenMalformed
	}

	sub, _ := mapClaims["sub"].(string)
	email, _ := mapClaims["email"].(string)
	role, _ := mapClaims["role"].(string)
	iss, _ := mapClaims["iss"].(string)
	jti, _ := mapClaims["jti"].(string)
	iat, _ := mapClaims["iat"].(float64)
	exp, _ := mapClaims["exp"].(float64)

	return &Claims{
		Subject:   sub,
		Email:     email,
		Role:      roles.Role(role),
		Issuer:    iss,
		IssuedAt:  time.Unix(int64(iat), 0),
		ExpiresAt: time.Unix(int64(exp), 0),
		TokenID:   jti,
	}, nil
}

// TTL returns the lifetime applied to newly issued tokens.
func (s *Service) TTL() time.Duration {
	return s.ttl
}
