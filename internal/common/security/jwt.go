package security

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-chi/jwtauth/v5"
	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid or expired token")

// Claims is the identity carried by an access token. SessionID is the jti
// and binds the token to a server-side session.
type Claims struct {
	UserID    string
	Role      string
	SessionID string
	ExpiresAt time.Time
}

type TokenIssuer struct {
	auth *jwtauth.JWTAuth
	ttl  time.Duration
	now  func() time.Time
}

func NewTokenIssuer(key []byte, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{
		auth: jwtauth.New("HS256", key, nil),
		ttl:  ttl,
		now:  time.Now,
	}
}

// Auth exposes the signer for jwtauth.Verifier.
func (t *TokenIssuer) Auth() *jwtauth.JWTAuth {
	return t.auth
}

func (t *TokenIssuer) TTL() time.Duration {
	return t.ttl
}

// Issue signs a token for the given session and returns it with its expiry.
func (t *TokenIssuer) Issue(userID, role, sessionID string) (string, time.Time, error) {
	now := t.now()
	expiresAt := now.Add(t.ttl)
	claims := jwt.MapClaims{
		"user_id": userID,
		"role":    role,
		"jti":     sessionID,
		"exp":     expiresAt.Unix(),
		"iat":     now.Unix(),
	}
	_, tokenString, err := t.auth.Encode(claims)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("encode token: %w", err)
	}
	return tokenString, time.Unix(expiresAt.Unix(), 0).UTC(), nil
}

// Verify checks signature and expiry and extracts the claims.
func (t *TokenIssuer) Verify(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrInvalidToken
	}
	token, err := jwtauth.VerifyToken(t.auth, tokenString)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	raw, err := token.AsMap(context.Background())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, err := ClaimsFromMap(raw)
	if err != nil {
		return nil, err
	}
	claims.ExpiresAt = token.Expiration().UTC()
	return claims, nil
}

// ClaimsFromMap converts the claim set jwtauth places in the request context.
func ClaimsFromMap(raw map[string]interface{}) (*Claims, error) {
	mc := jwt.MapClaims(raw)
	userID, err := GetUserIDFromClaims(mc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	role, err := GetUserRoleFromClaims(mc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	sessionID, _ := mc["jti"].(string)
	if sessionID == "" {
		return nil, fmt.Errorf("%w: jti claim is missing", ErrInvalidToken)
	}
	claims := &Claims{UserID: userID, Role: role, SessionID: sessionID}
	switch exp := mc["exp"].(type) {
	case time.Time:
		claims.ExpiresAt = exp.UTC()
	case float64:
		claims.ExpiresAt = time.Unix(int64(exp), 0).UTC()
	case int64:
		claims.ExpiresAt = time.Unix(exp, 0).UTC()
	}
	return claims, nil
}

func GetUserIDFromClaims(claims jwt.MapClaims) (string, error) {
	id, ok := claims["user_id"].(string)
	if !ok || id == "" {
		return "", errors.New("user_id claim is missing or not a string")
	}
	return id, nil
}

func GetUserRoleFromClaims(claims jwt.MapClaims) (string, error) {
	role, ok := claims["role"].(string)
	if !ok {
		return "", errors.New("role claim is missing or not a string")
	}
	return role, nil
}
