package session

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const cookieIssuer = "hospital-frontend"

// cookieClaims is the only supported claims shape for the session cookie.
// The cookie carries nothing but the opaque session id.
type cookieClaims struct {
	jwt.RegisteredClaims

	SessionID string `json:"sid"`
}

// CookieSigner signs and verifies session cookie values (HS256).
type CookieSigner struct {
	secret []byte
}

func NewCookieSigner(secret string) (*CookieSigner, error) {
	if secret == "" {
		return nil, errors.New("SESSION_SECRET is required")
	}
	return &CookieSigner{secret: []byte(secret)}, nil
}

func (s *CookieSigner) Sign(sid string, now time.Time, ttl time.Duration) (string, error) {
	claims := cookieClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cookieIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		SessionID: sid,
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(s.secret)
}

// Verify returns the session id carried by value.
func (s *CookieSigner) Verify(value string, now time.Time) (string, error) {
	var claims cookieClaims

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(cookieIssuer),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithLeeway(30*time.Second), // clock skew tolerance
	)
	_, err := parser.ParseWithClaims(value, &claims, func(token *jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		return "", err
	}
	if claims.SessionID == "" {
		return "", errors.New("sid missing")
	}
	return claims.SessionID, nil
}
