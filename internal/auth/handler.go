package auth

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/frahmantamala/account-rental/internal"
	"github.com/frahmantamala/account-rental/internal/transport"
	"github.com/frahmantamala/account-rental/pkg/logger"
)

const CronKeyHeader = "X-CRON-KEY"

type Handler struct {
	*transport.BaseHandler
	Verifier TokenVerifier
	cronKey  string
}

func NewHandler(verifier TokenVerifier, cronKey string) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Verifier:    verifier,
		cronKey:     cronKey,
	}
}

// AuthMiddleware puts the customer id of a valid bearer token on the request context.
func (h *Handler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := h.ExtractTokenFromHeader(r)
		if token == "" {
			h.Logger.Warn("auth middleware: missing authorization token", "path", r.URL.Path)
			h.HandleServiceError(w, internal.ErrInvalidToken)
			return
		}

		claims, err := h.Verifier.ValidateToken(token)
		if err != nil {
			h.Logger.Warn("auth middleware: token validation failed", "error", err, "path", r.URL.Path)
			h.HandleServiceError(w, err)
			return
		}

		actorID := claims.ActorID()
		ctx := internal.ContextWithActorID(r.Context(), actorID)
		ctx = logger.With(ctx, logger.KeyActorID, actorID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// CronMiddleware guards the sweep endpoints with the shared cron key.
func (h *Handler) CronMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(CronKeyHeader)
		if h.cronKey == "" || subtle.ConstantTimeCompare([]byte(key), []byte(h.cronKey)) != 1 {
			h.Logger.Warn("cron middleware: rejected request", "path", r.URL.Path, "remote_addr", r.RemoteAddr)
			h.HandleServiceError(w, internal.ErrInvalidCronKey)
			return
		}
		next.ServeHTTP(w, r)
	})
}
