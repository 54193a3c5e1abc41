package driven

import "github.com/custodia-labs/zipsync/internal/core/domain"

// AuthAdapter signs and verifies operator bearer tokens.
type AuthAdapter interface {
	GenerateToken(claims *domain.TokenClaims) (string, error)

	// ParseToken returns domain.ErrTokenExpired for an expired token and
	// domain.ErrUnauthorized for any other invalid one.
	ParseToken(token string) (*domain.TokenClaims, error)
}
