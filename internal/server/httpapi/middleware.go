package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/versiman/internal/common"
	"github.com/dmitrijs2005/versiman/internal/server/apikey"
	"github.com/dmitrijs2005/versiman/internal/server/auth"
)

type ctxKey string

const (
	claimsKey    ctxKey = "claims"
	deviceKeyKey ctxKey = "deviceKey"
)

// requireRole authenticates the bearer token and checks that the claims
// carry the given role name.
func (s *HTTPServer) requireRole(role string, next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get(common.AuthorizationHeader), "Bearer ")
		if token == "" {
			s.writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing token"})
			return
		}

		claims, err := auth.GetClaimsFromToken(token, s.jwtSecret)
		if err != nil {
			s.writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid token"})
			return
		}

		if !hasRole(claims.Roles, role) {
			s.writeJSON(w, http.StatusForbidden, errorResponse{Error: "forbidden"})
			return
		}

		next(w, r.WithContext(context.WithValue(r.Context(), claimsKey, claims)))
	})
}

// requireAPIKey guards the device surface. A missing header is a 401; a
// present key that fails validation is a 403 carrying the verdict, so a
// device operator can tell a misconfigured client from a revoked one.
func (s *HTTPServer) requireAPIKey(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		presented := r.Header.Get(s.apiKeyHeader)
		if presented == "" {
			s.writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing api key"})
			return
		}

		verdict, key, err := s.validator.Validate(r.Context(), presented)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if verdict != apikey.VerdictValid {
			s.logger.Warn(r.Context(), "api key rejected", "verdict", verdict.String())
			s.writeJSON(w, http.StatusForbidden, errorResponse{Error: verdict.String()})
			return
		}

		next(w, r.WithContext(context.WithValue(r.Context(), deviceKeyKey, key)))
	})
}

func claimsFromContext(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(claimsKey).(*auth.Claims)
	return claims
}

func deviceKeyFromContext(ctx context.Context) *apikey.Key {
	key, _ := ctx.Value(deviceKeyKey).(*apikey.Key)
	return key
}

func hasRole(roles []string, role string) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
