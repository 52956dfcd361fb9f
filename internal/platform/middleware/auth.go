package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	domainerrors "laurel/pkg/domain-errors"
	"laurel/pkg/platform/httputil"
	"laurel/pkg/requestcontext"
)

// TokenValidator verifies bearer tokens and extracts the caller role.
type TokenValidator struct {
	signingKey []byte
}

// NewTokenValidator builds a validator for HMAC-signed tokens.
func NewTokenValidator(signingKey string) *TokenValidator {
	return &TokenValidator{signingKey: []byte(signingKey)}
}

// Validate parses the token and returns the caller role carried in the
// "role" claim.
func (v *TokenValidator) Validate(tokenString string) (requestcontext.CallerRole, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.signingKey, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return "", fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("unexpected claims type %T", token.Claims)
	}
	role, _ := claims["role"].(string)
	switch r := requestcontext.CallerRole(role); r {
	case requestcontext.RoleCoordinator, requestcontext.RoleAnchorer, requestcontext.RoleOperator:
		return r, nil
	default:
		return "", fmt.Errorf("unknown role %q", role)
	}
}

// Authenticate extracts the bearer token, validates it, and stores the
// caller role in the request context. Requests without a valid token are
// rejected with 401.
func Authenticate(validator *TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				logger.WarnContext(ctx, "missing bearer token",
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, domainerrors.New(domainerrors.CodeUnauthorized, "missing or invalid Authorization header"))
				return
			}

			role, err := validator.Validate(token)
			if err != nil {
				logger.WarnContext(ctx, "invalid bearer token",
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, domainerrors.New(domainerrors.CodeUnauthorized, "invalid or expired token"))
				return
			}

			next.ServeHTTP(w, r.WithContext(requestcontext.WithRole(ctx, role)))
		})
	}
}

// RequireRole admits only callers holding one of the listed roles.
func RequireRole(roles ...requestcontext.CallerRole) func(http.Handler) http.Handler {
	allowed := make(map[requestcontext.CallerRole]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := allowed[requestcontext.Role(r.Context())]; !ok {
				httputil.WriteError(w, domainerrors.New(domainerrors.CodeUnauthorized, "caller role not permitted for this operation"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
