package middleware

import (
	"errors"
	"log/slog"
	"net/http"

	config "github.com/xilidan/signposting/config/ai"
	"github.com/xilidan/signposting/pkg/json"
	"github.com/xilidan/signposting/pkg/jwt"
	"golang.org/x/crypto/bcrypt"
)

const APIKeyHeader = "X-API-Key"

var errAccessDenied = errors.New("access denied")

// Auth accepts either a bearer JWT signed with the configured secret or an
// API key matching the configured bcrypt hash. With neither configured every
// request passes.
func Auth(cfg *config.AuthConfig, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if cfg.JWTSecret == "" && cfg.APIKeyHash == "" {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if key := r.Header.Get(APIKeyHeader); key != "" && cfg.APIKeyHash != "" {
				if err := bcrypt.CompareHashAndPassword([]byte(cfg.APIKeyHash), []byte(key)); err == nil {
					next.ServeHTTP(w, r)
					return
				}
				log.Warn("rejected api key", slog.String("path", r.URL.Path))
				json.WriteError(w, http.StatusForbidden, errAccessDenied)
				return
			}

			if cfg.JWTSecret != "" {
				token, err := jwt.ParseTokenFromHeader(r)
				if err == nil {
					if _, err = jwt.ParseSubject(r.Context(), token, cfg.JWTSecret); err == nil {
						next.ServeHTTP(w, r)
						return
					}
				}
				log.Warn("rejected bearer token", slog.String("path", r.URL.Path), slog.String("error", err.Error()))
			}

			json.WriteError(w, http.StatusUnauthorized, errAccessDenied)
		})
	}
}
