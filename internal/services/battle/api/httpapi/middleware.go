package httpapi

import (
	"crypto/subtle"
	"net/http"
	"strings"

	apperrors "github.com/agorahq/arena/internal/platform/errors"
	"github.com/agorahq/arena/internal/platform/requestctx"
)

// withAuth requires a valid bearer token and stashes the identity on the
// request context.
func (h *handlers) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, err := h.verifier.Verify(bearerToken(r))
		if err != nil {
			writeError(w, r, err)
			return
		}
		ctx := requestctx.WithUserID(r.Context(), identity.UserID)
		ctx = requestctx.WithAdmin(ctx, identity.Admin)
		next(w, r.WithContext(ctx))
	}
}

// withAdmin requires an authenticated identity carrying the admin flag.
func (h *handlers) withAdmin(next http.HandlerFunc) http.HandlerFunc {
	return h.withAuth(func(w http.ResponseWriter, r *http.Request) {
		if !requestctx.AdminFromContext(r.Context()) {
			writeError(w, r, apperrors.New(apperrors.CodeAdminRequired, "administrator access is required"))
			return
		}
		next(w, r)
	})
}

// withCronKey gates scheduler-only endpoints behind a shared secret header.
func (h *handlers) withCronKey(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		provided := strings.TrimSpace(r.Header.Get("X-Arena-Cron-Key"))
		if h.cronKey == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(h.cronKey)) != 1 {
			writeError(w, r, apperrors.New(apperrors.CodeCronKeyInvalid, "invalid scheduler credentials"))
			return
		}
		next(w, r)
	}
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
