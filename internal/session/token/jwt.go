// Package token issues and validates the portal's HS256 session tokens.
package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"civicportal/internal/session/models"
	id "civicportal/pkg/domain"
	dErrors "civicportal/pkg/domain-errors"
	"civicportal/pkg/requestcontext"
)

// SessionClaims are the claims carried by a session token.
type SessionClaims struct {
	TenantID string `json:"tenant_id"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// Service mints and validates session tokens.
type Service struct {
	signingKey []byte
	issuer     string
	audience   string
	ttl        time.Duration
}

func New(signingKey, issuer, audience string, ttl time.Duration) *Service {
	return &Service{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		audience:   audience,
		ttl:        ttl,
	}
}

// Mint signs a session token for the given identity. Used by portalctl and
// tests; production sessions come from the city's identity provider.
func (s *Service) Mint(ctx context.Context, userID id.UserID, tenantID id.TenantID, role models.Role) (string, error) {
	if userID.IsNil() || tenantID.IsNil() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "user and tenant are required")
	}
	if _, ok := models.ParseRole(string(role)); !ok {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown role")
	}

	now := requestcontext.Now(ctx)
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, SessionClaims{
		TenantID: tenantID.String(),
		Role:     string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			Issuer:    s.issuer,
			Audience:  jwt.ClaimStrings{s.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			ID:        uuid.NewString(),
		},
	})
	signed, err := t.SignedString(s.signingKey)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// Session validates a token and returns its raw, unnormalized identity.
func (s *Service) Session(ctx context.Context, credential string) (*models.RawSession, error) {
	parsed, err := jwt.ParseWithClaims(credential, &SessionClaims{}, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	},
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithTimeFunc(func() time.Time { return requestcontext.Now(ctx) }),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "session expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid session")
	}

	claims, ok := parsed.Claims.(*SessionClaims)
	if !ok || !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid session claims")
	}
	return &models.RawSession{
		UserID:   claims.Subject,
		TenantID: claims.TenantID,
		Role:     claims.Role,
	}, nil
}
