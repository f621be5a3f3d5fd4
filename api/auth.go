package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"

	"github.com/warp/debt-engine/ledger"
)

// =============================================================================
// OWNER AUTHENTICATION
// =============================================================================

// Claims is the token payload. The id claim is the owner of every record
// the request touches.
type Claims struct {
	ID int64 `json:"id"`
	jwt.RegisteredClaims
}

type ownerKey struct{}

// WithOwner stores the authenticated owner in ctx.
func WithOwner(ctx context.Context, owner ledger.OwnerID) context.Context {
	return context.WithValue(ctx, ownerKey{}, owner)
}

// OwnerFromContext returns the owner set by Authenticator.
func OwnerFromContext(ctx context.Context) (ledger.OwnerID, bool) {
	owner, ok := ctx.Value(ownerKey{}).(ledger.OwnerID)
	return owner, ok && owner > 0
}

// IssueToken signs an HS256 token for owner. Token issuance belongs to the
// auth service; this exists for tests and local tooling.
func IssueToken(secret string, owner ledger.OwnerID, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	now := time.Now()
	claims := &Claims{
		ID: int64(owner),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseToken verifies tokenStr and returns the owner it names.
func ParseToken(secret, tokenStr string) (ledger.OwnerID, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return 0, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.ID <= 0 {
		return 0, jwt.ErrTokenInvalidClaims
	}
	return ledger.OwnerID(claims.ID), nil
}

var errMissingToken = errors.New("missing bearer token")

func bearerToken(r *http.Request) (string, error) {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", errMissingToken
	}
	return parts[1], nil
}

// Authenticator rejects requests without a valid bearer token and puts
// the owner id into the request context.
func Authenticator(secret string, log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr, err := bearerToken(r)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "Authentication required", nil)
				return
			}
			owner, err := ParseToken(secret, tokenStr)
			if err != nil {
				log.WithError(err).Debug("rejected token")
				writeError(w, http.StatusUnauthorized, "Invalid or expired token", nil)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithOwner(r.Context(), owner)))
		})
	}
}
