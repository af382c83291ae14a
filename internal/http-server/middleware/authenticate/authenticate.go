package authenticate

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"docspace/entity"
	"docspace/lib/api/response"
	"docspace/lib/sl"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
)

type Authenticate interface {
	AuthenticateByToken(token string) (*entity.User, error)
}

type ctxKey struct{}

// User returns the user authenticated for the request, or nil.
func User(ctx context.Context) *entity.User {
	user, ok := ctx.Value(ctxKey{}).(entity.User)
	if !ok {
		return nil
	}
	return &user
}

// withUser stores a copy so handlers cannot change the cached user
func withUser(ctx context.Context, user *entity.User) context.Context {
	return context.WithValue(ctx, ctxKey{}, *user)
}

func New(log *slog.Logger, auth Authenticate) func(next http.Handler) http.Handler {
	mod := sl.Module("middleware.authenticate")
	log.With(mod).Info("authenticate middleware initialized")

	return func(next http.Handler) http.Handler {

		fn := func(w http.ResponseWriter, r *http.Request) {
			id := middleware.GetReqID(r.Context())
			logger := log.With(
				mod,
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("remote_addr", RemoteAddr(r)),
				slog.String("request_id", id),
			)
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			t1 := time.Now()
			defer func() {
				logger.With(
					slog.Int("status", ww.Status()),
					slog.Int("size", ww.BytesWritten()),
					slog.Float64("duration", time.Since(t1).Seconds()),
				).Info("incoming request")
			}()

			token, err := bearerToken(r.Header.Get("Authorization"))
			if err != nil {
				logger = logger.With(sl.Err(err))
				authFailed(ww, r, err.Error())
				return
			}
			logger = logger.With(sl.Secret("token", token))

			if auth == nil {
				authFailed(ww, r, "Unauthorized: authentication not enabled")
				return
			}

			user, err := auth.AuthenticateByToken(token)
			if err != nil {
				logger = logger.With(sl.Err(err))
				authFailed(ww, r, "Unauthorized: token not found")
				return
			}
			logger = logger.With(
				slog.String("user", user.Username),
			)
			ctx := withUser(r.Context(), user)

			ww.Header().Set("X-Request-ID", id)
			ww.Header().Set("X-User", user.Username)
			next.ServeHTTP(ww, r.WithContext(ctx))
		}

		return http.HandlerFunc(fn)
	}
}

// RequireRole rejects authenticated users whose role differs from role.
func RequireRole(role entity.Role) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			user := User(r.Context())
			if user == nil {
				authFailed(w, r, "User not found")
				return
			}
			if user.Role != role {
				render.Status(r, http.StatusForbidden)
				render.JSON(w, r, response.Error(fmt.Sprintf("Forbidden: %s role required", role)))
				return
			}
			next.ServeHTTP(w, r)
		}
		return http.HandlerFunc(fn)
	}
}

// RemoteAddr prefers the first X-Forwarded-For entry when behind a proxy
func RemoteAddr(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return strings.TrimSpace(strings.Split(forwarded, ",")[0])
	}
	return r.RemoteAddr
}

func bearerToken(header string) (string, error) {
	if header == "" {
		return "", fmt.Errorf("Authorization header not found")
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", fmt.Errorf("Token not found")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", fmt.Errorf("Token not found")
	}
	return token, nil
}

func authFailed(w http.ResponseWriter, r *http.Request, message string) {
	render.Status(r, http.StatusUnauthorized)
	render.JSON(w, r, response.Error(message))
}
