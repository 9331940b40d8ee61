package transfer

import "github.com/golang-jwt/jwt/v5"

type CustomClaims struct {
	UserID string `json:"uid"`
	// Verifier carries the PKCE code verifier through the OAuth state
	// round trip for providers that require one.
	Verifier string `json:"vrf,omitempty"`
	jwt.RegisteredClaims
}
