package middleware

import (
	"net"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"loom-backend/pkg/auth"
	"loom-backend/pkg/common"
	pkgerrors "loom-backend/pkg/errors"
)

// Authenticate validates the bearer token, applies IP and per-user rate
// limits, and stores the user in the request context
func Authenticate(
	validator *auth.JWTValidator,
	ipLimiter *auth.IPRateLimiter,
	userLimiter *auth.UserRateLimiter,
	logger *zap.Logger,
) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := getClientIP(r)

			if ipLimiter != nil {
				allowed, err := ipLimiter.Allow(r.Context(), ip)
				if err != nil {
					logger.Error("ip rate limiter error", zap.Error(err))
				} else if !allowed {
					common.RespondError(w, http.StatusTooManyRequests,
						string(pkgerrors.ErrorTypeRateLimit), "rate limit exceeded")
					return
				}
			}

			token := r.Header.Get("Authorization")
			if token == "" {
				common.RespondError(w, http.StatusUnauthorized,
					string(pkgerrors.ErrorTypeUnauthorized), "missing authentication token")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.Debug("token validation failed",
					zap.String("ip", ip),
					zap.Error(err))
				common.RespondError(w, http.StatusUnauthorized,
					string(pkgerrors.ErrorTypeUnauthorized), "invalid or expired token")
				return
			}

			if userLimiter != nil {
				allowed, err := userLimiter.Allow(r.Context(), claims.UserID)
				if err != nil {
					logger.Error("user rate limiter error", zap.Error(err))
				} else if !allowed {
					common.RespondError(w, http.StatusTooManyRequests,
						string(pkgerrors.ErrorTypeRateLimit), "rate limit exceeded")
					return
				}
			}

			ctx := auth.SetUserInContext(r.Context(), &auth.UserContext{
				UserID: claims.UserID,
				Email:  claims.Email,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// getClientIP extracts the client IP, honoring proxy headers
func getClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
