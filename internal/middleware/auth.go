// Package middleware provides HTTP middleware for the storefront API
package middleware

import (
	"context"
	stderrors "errors"
	"net/http"
	"strings"

	"github.com/R3E-Network/opxpress/internal/auth"
	"github.com/R3E-Network/opxpress/internal/errors"
	internalhttputil "github.com/R3E-Network/opxpress/internal/httputil"
	"github.com/R3E-Network/opxpress/internal/logging"
)

// AccessTokenCookie is the cookie that carries the access token.
const AccessTokenCookie = "opxpress_access_token"

// TokenVerifier validates access tokens.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*auth.Claims, error)
}

// AuthMiddleware rejects requests without a valid access token
type AuthMiddleware struct {
	verifier TokenVerifier
	logger   *logging.Logger
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(verifier TokenVerifier, logger *logging.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		verifier: verifier,
		logger:   logger,
	}
}

// Handler returns the middleware handler
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := TokenFromRequest(r)
		if tokenString == "" {
			m.respondError(w, r, errors.InvalidToken(nil).WithDetails("reason", "missing token"))
			return
		}

		claims, err := m.verifier.Verify(r.Context(), tokenString)
		if stderrors.Is(err, auth.ErrRevocationUnavailable) {
			m.respondError(w, r, errors.Internal("Failed to verify access token", err))
			return
		}
		if err != nil {
			m.respondError(w, r, errors.InvalidToken(err))
			return
		}

		ctx := logging.WithUser(r.Context(), claims.UserID, claims.Email)
		m.logger.WithContext(ctx).Debug("Authentication successful")

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// respondError sends the error envelope and logs the rejection
func (m *AuthMiddleware) respondError(w http.ResponseWriter, r *http.Request, serviceErr *errors.ServiceError) {
	internalhttputil.WriteErrorResponse(w, r, serviceErr.HTTPStatus, serviceErr.Code, serviceErr.Message, serviceErr.Details)

	m.logger.WithContext(r.Context()).WithError(serviceErr).WithFields(map[string]interface{}{
		"path":   r.URL.Path,
		"method": r.Method,
	}).Warn("Authentication failed")
}

// TokenFromRequest returns the bearer token, falling back to the access
// token cookie.
func TokenFromRequest(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	if cookie, err := r.Cookie(AccessTokenCookie); err == nil {
		return cookie.Value
	}
	return ""
}

// GetUserID extracts user ID from context
func GetUserID(ctx context.Context) string {
	return logging.GetUserID(ctx)
}
