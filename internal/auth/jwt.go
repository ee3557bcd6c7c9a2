package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type ctxKey string

const (
	CtxUserID    ctxKey = "uid"
	CtxEmail     ctxKey = "email"
	CtxSessionID ctxKey = "sid"
)

// DefaultTokenTTL is the lifetime of access tokens issued at login
const DefaultTokenTTL = time.Hour

var (
	ErrMissingToken   = errors.New("missing bearer token")
	ErrInvalidToken   = errors.New("invalid token")
	ErrSessionRevoked = errors.New("session revoked")
)

// JWTCfg holds JWT authentication configuration
type JWTCfg struct {
	HS256Secret string        // HMAC secret for HS256 tokens
	Issuer      string        // iss claim written and required; empty skips the check
	TTL         time.Duration // token lifetime; zero uses DefaultTokenTTL
}

// Claims identifies the account and login session behind a token
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// SessionChecker reports whether a login session is still active
type SessionChecker interface {
	Active(sessionID string) bool
}

// IssueToken signs an access token for the account. The session id is
// carried in the jti claim so the token can be revoked at logout.
func IssueToken(cfg JWTCfg, userID, email, sessionID string) (string, time.Time, error) {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	now := time.Now()
	expiresAt := now.Add(ttl)

	if sessionID == "" {
		sessionID = uuid.New().String()
	}
	claims := Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    cfg.Issuer,
			ID:        sessionID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.HS256Secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// ValidateToken verifies signature, expiry and issuer and returns the claims
func ValidateToken(tokenString string, cfg JWTCfg) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}

	claims := &Claims{}
	t, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return []byte(cfg.HS256Secret), nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !t.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing sub claim", ErrInvalidToken)
	}
	return claims, nil
}

// BearerToken extracts the token from an Authorization header
func BearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return h[7:]
	}
	return ""
}

// Middleware rejects requests without a valid token for an active session
// and stores the account in the request context
func Middleware(cfg JWTCfg, sessions SessionChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok := BearerToken(r)
			if tok == "" {
				log.Ctx(r.Context()).Warn().Msg("missing bearer token")
				unauthorized(w, ErrMissingToken)
				return
			}

			claims, err := ValidateToken(tok, cfg)
			if err != nil {
				log.Ctx(r.Context()).Warn().Err(err).Msg("jwt validation failed")
				unauthorized(w, err)
				return
			}

			if sessions != nil && !sessions.Active(claims.ID) {
				log.Ctx(r.Context()).Warn().Str("sid", claims.ID).Msg("token for revoked session")
				unauthorized(w, ErrSessionRevoked)
				return
			}

			ctx := context.WithValue(r.Context(), CtxUserID, claims.Subject)
			ctx = context.WithValue(ctx, CtxEmail, claims.Email)
			ctx = context.WithValue(ctx, CtxSessionID, claims.ID)

			logger := log.Ctx(ctx).With().Str("userId", claims.Subject).Logger()
			ctx = logger.WithContext(ctx)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	fmt.Fprintf(w, `{"code":"unauthorized","message":%q}`, err.Error())
}

// UserID extracts the authenticated user ID from request context
// Returns empty string if not authenticated
func UserID(ctx context.Context) string {
	if v, ok := ctx.Value(CtxUserID).(string); ok {
		return v
	}
	return ""
}

// Email returns the authenticated account's email
func Email(ctx context.Context) string {
	if v, ok := ctx.Value(CtxEmail).(string); ok {
		return v
	}
	return ""
}

// SessionID returns the login session of the request's token
func SessionID(ctx context.Context) string {
	if v, ok := ctx.Value(CtxSessionID).(string); ok {
		return v
	}
	return ""
}
