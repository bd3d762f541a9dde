// Package httpapi serves the account API over HTTP with a chi router.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrijs2005/channelhub/internal/common"
	"github.com/dmitrijs2005/channelhub/internal/logging"
	"github.com/dmitrijs2005/channelhub/internal/server/metrics"
)

// Pinger reports storage health.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Accounts     Accounts
	Media        Media
	Guard        Authenticator
	Health       Pinger
	Metrics      *metrics.Metrics
	Logger       logging.Logger
	CookieSecure bool
}

// NewRouter mounts the account routes under /api/v1/users.
func NewRouter(d Deps) http.Handler {
	l := d.Logger.With("module", "http")
	h := &UserHandler{
		accounts: d.Accounts,
		media:    d.Media,
		cookies:  cookieJar{secure: d.CookieSecure, now: time.Now},
		logger:   l,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(l, d.Metrics))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", healthz(d.Health))
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	}

	r.Route("/api/v1/users", func(r chi.Router) {
		r.Post("/register", h.register)
		r.Post("/login", h.login)
		r.Post("/refresh-token", h.refreshToken)

		r.Group(func(r chi.Router) {
			r.Use(RequireAuth(d.Guard))
			r.Post("/logout", h.logout)
			r.Post("/change-password", h.changePassword)
			r.Get("/current-user", h.currentUser)
			r.Patch("/update-account", h.updateAccount)
			r.Patch("/avatar", h.avatar)
			r.Patch("/cover-image", h.coverImage)
			r.Get("/media/{kind}", h.mediaURL)
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, common.NewError(common.ErrorNotFound, "route not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, apiError{
			StatusCode: http.StatusMethodNotAllowed,
			Message:    "method not allowed",
		})
	})
	return r
}

func healthz(p Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if p != nil {
			if err := p.Ping(ctx); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, apiError{
					StatusCode: http.StatusServiceUnavailable,
					Message:    "storage unavailable",
				})
				return
			}
		}
		writeOK(w, http.StatusOK, map[string]string{"status": "ok"}, "healthy")
	}
}
