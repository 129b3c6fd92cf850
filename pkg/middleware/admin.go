package middleware

import (
	"net/http"
	"strings"

	"payment-orchestrator/pkg/utils"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	AdminKeyHeader   = "X-Admin-Key"
	AdminActorHeader = "X-Admin-Actor"
)

// Admin - middleware cek admin key terhadap bcrypt hash dari config.
// Hash kosong berarti route admin tertutup.
func Admin(keyHash string, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := strings.TrimSpace(r.Header.Get(AdminKeyHeader))
			if key == "" {
				utils.ResponseUnauthorized(w, "Missing admin key")
				return
			}

			if keyHash == "" || bcrypt.CompareHashAndPassword([]byte(keyHash), []byte(key)) != nil {
				logger.Warn("Admin check: invalid key",
					zap.String("path", r.URL.Path),
					zap.String("ip", r.RemoteAddr))
				utils.ResponseUnauthorized(w, "Invalid admin key")
				return
			}

			ctx := r.Context()
			if actor := strings.TrimSpace(r.Header.Get(AdminActorHeader)); actor != "" {
				ctx = utils.SetActorContext(ctx, actor)
			} else {
				ctx = utils.SetActorContext(ctx, "admin")
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
