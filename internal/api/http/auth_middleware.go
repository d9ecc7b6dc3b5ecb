package httpapi

import (
	"net/http"
	"strings"

	"github.com/instawin/merchprize/internal/domain/operator"
)

const codeUnauthorized = "UNAUTHORIZED"

func (s *Server) requireOperator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.operatorKeyHash == "" {
			respondError(w, http.StatusForbidden, "FORBIDDEN", "operator access is not configured")
			return
		}
		if !operator.VerifyKey(s.operatorKeyHash, extractBearer(r)) {
			respondError(w, http.StatusUnauthorized, codeUnauthorized, "invalid operator key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func extractBearer(r *http.Request) string {
	authz := r.Header.Get("Authorization")
	if strings.HasPrefix(authz, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authz, "Bearer "))
	}
	return ""
}
