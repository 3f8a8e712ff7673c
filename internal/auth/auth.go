// Package auth resolves the calling account from a request.
//
// Two modes:
//
//	JWT     JWT_SECRET set: an "Authorization: Bearer <token>" header signed
//	        with HS256 carries the account id in its accountId claim.
//	gateway JWT_SECRET empty: the account id is trusted from the x-user-id
//	        header (or gRPC metadata key) forwarded by an upstream gateway.
//
// A request carrying neither is anonymous; handlers decide whether that is
// acceptable.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// UserIDHeader is the header (and gRPC metadata key) used in gateway mode.
const UserIDHeader = "x-user-id"

// ErrUnauthenticated is returned for a malformed, forged or expired token.
var ErrUnauthenticated = errors.New("invalid or expired token")

// Claims is the token payload.
type Claims struct {
	AccountID string `json:"accountId"`
	jwt.RegisteredClaims
}

// Verifier turns request credentials into an account id.
type Verifier struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewVerifier returns a Verifier. An empty secret selects gateway mode.
func NewVerifier(secret, issuer string) *Verifier {
	return &Verifier{secret: []byte(secret), issuer: issuer, now: time.Now}
}

// JWTMode reports whether tokens are verified.
func (v *Verifier) JWTMode() bool { return len(v.secret) > 0 }

// Identify resolves the caller from the raw Authorization value and the
// forwarded user id. It returns "" with a nil error for anonymous callers.
func (v *Verifier) Identify(authorization, forwardedUserID string) (string, error) {
	if !v.JWTMode() {
		return strings.TrimSpace(forwardedUserID), nil
	}
	if authorization == "" {
		return "", nil
	}
	token, ok := BearerToken(authorization)
	if !ok {
		return "", ErrUnauthenticated
	}
	return v.Verify(token)
}

// Verify parses an HS256 token and returns its account id.
func (v *Verifier) Verify(tokenString string) (string, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return "", ErrUnauthenticated
	}
	if claims.AccountID == "" {
		return "", ErrUnauthenticated
	}
	return claims.AccountID, nil
}

// Issue signs a token for accountID valid for ttl.
func (v *Verifier) Issue(accountID string, ttl time.Duration) (string, error) {
	if !v.JWTMode() {
		return "", errors.New("auth: no signing secret configured")
	}
	now := v.now()
	claims := Claims{
		AccountID: accountID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
