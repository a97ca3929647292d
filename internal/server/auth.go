package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Tomlord1122/todo-tracker/internal/config"
)

// ErrInvalidToken is returned for missing, malformed or rejected bearer tokens.
var ErrInvalidToken = errors.New("invalid bearer token")

type ownerKey struct{}

// Authenticator issues and verifies HS256 bearer tokens whose subject is the
// owner id.
type Authenticator struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewAuthenticator creates an Authenticator from cfg.
func NewAuthenticator(cfg config.AuthConfig) *Authenticator {
	return &Authenticator{
		secret: []byte(cfg.JWTSecret),
		issuer: cfg.Issuer,
		now:    time.Now,
	}
}

// Issue signs a token for ownerID. A zero ttl issues a token without expiry.
func (a *Authenticator) Issue(ownerID uint, ttl time.Duration) (string, error) {
	if ownerID == 0 {
		return "", fmt.Errorf("owner id must be positive")
	}

	now := a.now()
	claims := jwt.RegisteredClaims{
		Subject:  strconv.FormatUint(uint64(ownerID), 10),
		Issuer:   a.issuer,
		IssuedAt: jwt.NewNumericDate(now),
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return token, nil
}

// Verify checks the token signature, issuer and expiry and returns the owner id.
func (a *Authenticator) Verify(raw string) (uint, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.now),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	ownerID, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil || ownerID == 0 {
		return 0, fmt.Errorf("%w: subject %q is not an owner id", ErrInvalidToken, claims.Subject)
	}
	return uint(ownerID), nil
}

// Middleware rejects requests without a valid bearer token and stores the
// owner id in the request context.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := bearerToken(r)
		if !ok {
			w.Header().Set("WWW-Authenticate", `Bearer realm="todos"`)
			respondWithError(w, http.StatusUnauthorized, "Unauthenticated.")
			return
		}

		ownerID, err := a.Verify(raw)
		if err != nil {
			w.Header().Set("WWW-Authenticate", `Bearer realm="todos", error="invalid_token"`)
			respondWithError(w, http.StatusUnauthorized, "Unauthenticated.")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithOwner(r.Context(), ownerID)))
	})
}

// WithOwner returns a copy of ctx carrying the authenticated owner id.
func WithOwner(ctx context.Context, ownerID uint) context.Context {
	return context.WithValue(ctx, ownerKey{}, ownerID)
}

// OwnerFromContext returns the authenticated owner id, if any.
func OwnerFromContext(ctx context.Context) (uint, bool) {
	ownerID, ok := ctx.Value(ownerKey{}).(uint)
	return ownerID, ok && ownerID != 0
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
