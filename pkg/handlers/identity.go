package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/queryshield/queryshield-engine/pkg/models"
)

// Identity headers set by the fronting authentication layer. The engine
// trusts these have been verified upstream; it only enforces presence.
const (
	HeaderRole        = "X-User-Role"
	HeaderSubjectID   = "X-User-Id"
	HeaderDisplayName = "X-User-Name"
)

type identityKey struct{}

// IdentityFromContext returns the request identity set by RequireIdentity.
func IdentityFromContext(ctx context.Context) (models.Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(models.Identity)
	return id, ok
}

// RequireIdentity rejects requests without a subject identifier before the
// core is invoked, and stores the identity in the request context.
func RequireIdentity(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := models.Identity{
				Role:        r.Header.Get(HeaderRole),
				SubjectID:   r.Header.Get(HeaderSubjectID),
				DisplayName: r.Header.Get(HeaderDisplayName),
			}

			if identity.SubjectID == "" {
				logger.Warn("Request without subject id rejected",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr))
				writeJSON(w, http.StatusUnauthorized, map[string]string{
					"error":   "Unauthorized",
					"message": "User ID is missing.",
				})
				return
			}

			ctx := context.WithValue(r.Context(), identityKey{}, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
