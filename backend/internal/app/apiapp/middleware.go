package apiapp

import (
	"crypto/subtle"
	"net"
	"net/http"
	"strings"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	authsvc "github.com/Audio2MIDI/audio2midi-miniapp/backend/internal/services/auth"
	ratesvc "github.com/Audio2MIDI/audio2midi-miniapp/backend/internal/services/rate"
	httperrors "github.com/Audio2MIDI/audio2midi-miniapp/backend/internal/transport/http/errors"
)

const uploadTokenHeader = "X-Upload-Token"

func ApplyMiddlewares(r chiRouter, log *zap.Logger) {
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))
	r.Use(requestLogger(log))
}

// IdentityMiddleware resolves the Authorization header once per request.
// It accepts "Bearer <access token>" when tokens are enabled, otherwise
// "tma <initData>" or the bare initData. A missing or invalid credential is
// not rejected here; RequireIdentity and RequireAdmin do that.
func IdentityMiddleware(authService *authsvc.Service, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if authService == nil || strings.TrimSpace(header) == "" {
				next.ServeHTTP(w, r)
				return
			}

			identity, err := resolveIdentity(authService, header)
			if err != nil {
				if log != nil {
					log.Debug("authorization header rejected", zap.String("kind", string(authsvc.KindOf(err))))
				}
				next.ServeHTTP(w, r)
				return
			}
			if !identity.HasID {
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(authsvc.WithIdentity(r.Context(), identity)))
		})
	}
}

func resolveIdentity(authService *authsvc.Service, header string) (authsvc.Identity, error) {
	if token, ok := extractBearerToken(header); ok {
		return authService.ValidateAccessToken(token)
	}
	credential, ok := authsvc.CredentialFromHeader(header)
	if !ok {
		return authsvc.Identity{}, authsvc.ErrUnauthorized
	}
	return authService.Authenticate(credential)
}

func RequireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if identity, ok := authsvc.IdentityFromContext(r.Context()); !ok || !identity.HasID {
			httperrors.WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin answers 403 to anyone outside the admin set, anonymous
// callers included.
func RequireAdmin(authService *authsvc.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := authsvc.IdentityFromContext(r.Context())
			if !ok || authService == nil || !authService.IsAdmin(identity) {
				httperrors.WriteError(w, http.StatusForbidden, "FORBIDDEN", "Admin access required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// UploadToken guards the bot upload endpoint with a shared secret. An empty
// token leaves the endpoint open.
func UploadToken(token string) func(http.Handler) http.Handler {
	expected := []byte(token)
	return func(next http.Handler) http.Handler {
		if len(expected) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := []byte(r.Header.Get(uploadTokenHeader))
			if subtle.ConstantTimeCompare(got, expected) != 1 {
				httperrors.WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid upload token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimit counts requests per client IP. When the counter store fails the
// request is let through and a warning is logged.
func RateLimit(limiter *ratesvc.Limiter, policy ratesvc.Policy, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil || !policy.Enabled() {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			retryAfter, allowed, err := limiter.Allow(r.Context(), policy, clientIP(r))
			if err != nil {
				if log != nil {
					log.Warn("rate limiter unavailable", zap.String("policy", policy.Name), zap.Error(err))
				}
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				httperrors.WriteRateLimited(w, retryAfter)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func extractBearerToken(value string) (string, bool) {
	parts := strings.SplitN(strings.TrimSpace(value), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			if log != nil {
				log.Info("http_request",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.String("request_id", chimiddleware.GetReqID(r.Context())),
					zap.Duration("duration", time.Since(start)),
				)
			}
		})
	}
}

type chiRouter interface {
	Use(middlewares ...func(http.Handler) http.Handler)
}
