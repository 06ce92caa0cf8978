// Package token verifies identity-provider session tokens.
package token

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"muichiro-nexus/internal/config"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// IdentityClaims are the claims read from a provider token. Subject is the
// provider's user id.
type IdentityClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Verifier checks signatures with either a shared HMAC secret (HS256) or the
// provider's RSA public key (RS256).
type Verifier struct {
	hmacKey []byte
	rsaKey  *rsa.PublicKey
	issuer  string
}

func NewVerifier(cfg config.IdentityConfig) (*Verifier, error) {
	v := &Verifier{issuer: cfg.Issuer}
	switch {
	case cfg.PublicKeyPEM != "":
		key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(cfg.PublicKeyPEM))
		if err != nil {
			return nil, fmt.Errorf("parse identity public key: %w", err)
		}
		v.rsaKey = key
	case cfg.HMACSecret != "":
		v.hmacKey = []byte(cfg.HMACSecret)
	default:
		return nil, errors.New("identity: one of hmac_secret or public_key_pem is required")
	}
	return v, nil
}

func (v *Verifier) keyFunc(t *jwt.Token) (interface{}, error) {
	switch t.Method.(type) {
	case *jwt.SigningMethodRSA:
		if v.rsaKey != nil {
			return v.rsaKey, nil
		}
	case *jwt.SigningMethodHMAC:
		if v.hmacKey != nil {
			return v.hmacKey, nil
		}
	}
	return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
}

// VerifyToken validates signature, expiry and, when configured, issuer.
func (v *Verifier) VerifyToken(tokenString string) (*IdentityClaims, error) {
	opts := []jwt.ParserOption{jwt.WithExpirationRequired(), jwt.WithLeeway(30 * time.Second)}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &IdentityClaims{}, v.keyFunc, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(*IdentityClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// GenerateToken signs an HS256 token. It only works in shared-secret mode and
// is meant for local development and tests.
func (v *Verifier) GenerateToken(subject, email string, ttl time.Duration) (string, error) {
	if v.hmacKey == nil {
		return "", errors.New("token generation requires hmac_secret")
	}
	now := time.Now()
	claims := IdentityClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    v.issuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.hmacKey)
}
