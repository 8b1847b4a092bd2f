package http

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/folio-labs/folio-core/internal/core/domain"
	"github.com/folio-labs/folio-core/internal/ratelimit"
)

// Context keys
type contextKey string

const identityContextKey contextKey = "identity"

// Identity is the authenticated caller of a request.
type Identity struct {
	// UserID is the subject of the bearer token, or "service" for
	// API-key callers.
	UserID string

	// Service is true for service-to-service calls admitted by API key.
	Service bool
}

// AuthMiddleware handles authentication
type AuthMiddleware struct {
	jwtSecret  []byte
	apiKeyHash []byte // bcrypt hash; empty disables API key auth
}

// NewAuthMiddleware creates a new AuthMiddleware
func NewAuthMiddleware(jwtSecret, apiKeyHash []byte) *AuthMiddleware {
	return &AuthMiddleware{
		jwtSecret:  jwtSecret,
		apiKeyHash: apiKeyHash,
	}
}

// Authenticate validates the request credentials and adds the caller
// identity to the request context. Service calls present X-API-Key;
// user calls present a bearer JWT.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ident, err := m.identify(r)
		if err != nil {
			writeAuthError(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), identityContextKey, ident)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// identify resolves the caller from the request credentials. Failures
// carry the domain auth sentinels so callers can map them to responses.
func (m *AuthMiddleware) identify(r *http.Request) (*Identity, error) {
	if apiKey := r.Header.Get("X-API-Key"); apiKey != "" {
		if len(m.apiKeyHash) == 0 ||
			bcrypt.CompareHashAndPassword(m.apiKeyHash, []byte(apiKey)) != nil {
			return nil, fmt.Errorf("api key rejected: %w", domain.ErrUnauthorized)
		}
		return &Identity{UserID: "service", Service: true}, nil
	}

	token := extractBearerToken(r)
	if token == "" {
		return nil, fmt.Errorf("missing bearer token: %w", domain.ErrUnauthorized)
	}

	userID, err := m.validateToken(token)
	if err != nil {
		return nil, err
	}
	return &Identity{UserID: userID}, nil
}

func (m *AuthMiddleware) validateToken(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{},
		func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return m.jwtSecret, nil
		})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", fmt.Errorf("parse token: %w", domain.ErrTokenExpired)
		}
		return "", fmt.Errorf("parse token: %w", domain.ErrTokenInvalid)
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", fmt.Errorf("missing subject claim: %w", domain.ErrTokenInvalid)
	}

	return claims.Subject, nil
}

func writeAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrTokenExpired):
		writeError(w, http.StatusUnauthorized, "token expired")
	case errors.Is(err, domain.ErrTokenInvalid):
		writeError(w, http.StatusUnauthorized, "invalid token")
	default:
		writeError(w, http.StatusUnauthorized, "unauthorized")
	}
}

// GetIdentity retrieves the caller identity from the request context
func GetIdentity(ctx context.Context) *Identity {
	if ctx == nil {
		return nil
	}
	ident, ok := ctx.Value(identityContextKey).(*Identity)
	if !ok {
		return nil
	}
	return ident
}

// extractBearerToken extracts the Bearer token from Authorization header
func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}

	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}

	return strings.TrimSpace(parts[1])
}

// Rate limit middleware

// RateLimitMiddleware applies the sliding-window admission limiter per
// caller and route class.
type RateLimitMiddleware struct {
	limiter *ratelimit.Limiter
}

// NewRateLimitMiddleware creates a new RateLimitMiddleware.
// A nil limiter disables admission checks.
func NewRateLimitMiddleware(limiter *ratelimit.Limiter) *RateLimitMiddleware {
	return &RateLimitMiddleware{limiter: limiter}
}

// Limit wraps a handler with an admission check for the given route class.
func (m *RateLimitMiddleware) Limit(class ratelimit.RouteClass, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.limiter == nil {
			next.ServeHTTP(w, r)
			return
		}

		res := m.limiter.Allow(callerKey(r), class)
		if !res.Allowed {
			retryAfter := int(time.Until(res.ResetAt).Seconds()) + 1
			w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfter))
			writeError(w, http.StatusTooManyRequests, domain.ErrRateLimited.Error())
			return
		}

		next.ServeHTTP(w, r)
	})
}

// callerKey identifies the caller for admission purposes: authenticated
// identity when present, remote address otherwise.
func callerKey(r *http.Request) string {
	if ident := GetIdentity(r.Context()); ident != nil {
		return ident.UserID
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Logging middleware

// LoggingMiddleware logs HTTP requests
type LoggingMiddleware struct{}

// NewLoggingMiddleware creates a new LoggingMiddleware
func NewLoggingMiddleware() *LoggingMiddleware {
	return &LoggingMiddleware{}
}

// Handler wraps an http.Handler with request logging
func (m *LoggingMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Wrap response writer to capture status code
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start)
		log.Printf("%s %s %d %v", r.Method, r.URL.Path, rw.statusCode, duration)
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Recovery middleware

// RecoveryMiddleware recovers from panics
type RecoveryMiddleware struct{}

// NewRecoveryMiddleware creates a new RecoveryMiddleware
func NewRecoveryMiddleware() *RecoveryMiddleware {
	return &RecoveryMiddleware{}
}

// Handler wraps an http.Handler with panic recovery
func (m *RecoveryMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.Printf("panic recovered: %v", err)
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}
