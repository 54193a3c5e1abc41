package domain

import "time"

// TokenClaims is the payload of an operator bearer token.
type TokenClaims struct {
	Subject   string `json:"sub"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
}

// NewTokenClaims issues claims for subject valid for ttl from now.
func NewTokenClaims(subject string, now time.Time, ttl time.Duration) *TokenClaims {
	return &TokenClaims{
		Subject:   subject,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(ttl).Unix(),
	}
}

// AuthContext identifies the operator behind an authenticated request.
type AuthContext struct {
	Subject string `json:"subject"`
}
