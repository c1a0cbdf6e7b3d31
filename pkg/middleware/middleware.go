// Package middleware activates the cohort a learner selected for the
// duration of one HTTP request.
package middleware

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	ccx "github.com/goliatone/go-ccx"
	"github.com/goliatone/go-ccx/pkg/membership"
	"github.com/goliatone/go-ccx/pkg/session"
)

// SessionLoader returns the session of r. A nil session means the request
// has none.
type SessionLoader func(r *http.Request) (session.Session, error)

// UserResolver returns the authenticated user of r.
type UserResolver func(r *http.Request) (userID string, ok bool)

// ErrorHandler writes the response for a failed activation.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

// ErrNoMemberships is the panic value of Handler and Gin when
// Config.Memberships is nil. Without a lookup every stored cohort would be
// treated as stale and purged from authenticated sessions.
var ErrNoMemberships = errors.New("middleware: Config.Memberships is required")

// Config wires the middleware to the host's session, auth and membership
// layers. Memberships is required.
type Config struct {
	Sessions    SessionLoader
	Users       UserResolver
	Memberships membership.Lookup
	// SessionKey defaults to ccx.ActiveCohortKey.
	SessionKey string
	Logger     *slog.Logger
	// OnError defaults to a plain 500.
	OnError ErrorHandler
}

func (cfg Config) withDefaults() Config {
	if cfg.Memberships == nil {
		panic(ErrNoMemberships)
	}
	if strings.TrimSpace(cfg.SessionKey) == "" {
		cfg.SessionKey = ccx.ActiveCohortKey
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.OnError == nil {
		cfg.OnError = func(w http.ResponseWriter, _ *http.Request, _ error) {
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
	}
	return cfg
}

// Handler returns net/http middleware. Each request gets a fresh holder on
// its context; the holder is cleared when the handler chain returns or
// panics. It panics with ErrNoMemberships when cfg has no membership lookup.
func Handler(cfg Config) func(http.Handler) http.Handler {
	cfg = cfg.withDefaults()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, holder := ccx.NewContext(r.Context())
			defer holder.Clear()
			r = r.WithContext(ctx)

			if err := cfg.activate(r, holder); err != nil {
				cfg.Logger.ErrorContext(ctx, "ccx: cohort activation failed", "error", err, "path", r.URL.Path)
				cfg.OnError(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Gin returns the same middleware for gin routers. It panics with
// ErrNoMemberships when cfg has no membership lookup.
func Gin(cfg Config) gin.HandlerFunc {
	cfg = cfg.withDefaults()
	return func(c *gin.Context) {
		ctx, holder := ccx.NewContext(c.Request.Context())
		defer holder.Clear()
		c.Request = c.Request.WithContext(ctx)

		if err := cfg.activate(c.Request, holder); err != nil {
			cfg.Logger.ErrorContext(ctx, "ccx: cohort activation failed", "error", err, "path", c.FullPath())
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": http.StatusText(http.StatusInternalServerError)})
			return
		}
		c.Next()
	}
}

// activate installs the cohort stored in the session when the user is an
// active member of it. A stale session entry is removed.
func (cfg Config) activate(r *http.Request, holder *ccx.Holder) error {
	if cfg.Sessions == nil {
		return nil
	}
	sess, err := cfg.Sessions(r)
	if err != nil {
		return fmt.Errorf("middleware: load session: %w", err)
	}
	if sess == nil {
		return nil
	}

	ctx := r.Context()
	cohortID, ok, err := sess.Get(ctx, cfg.SessionKey)
	if err != nil {
		return fmt.Errorf("middleware: read session: %w", err)
	}
	if !ok {
		return nil
	}

	var userID string
	var authenticated bool
	if cfg.Users != nil {
		userID, authenticated = cfg.Users(r)
	}
	if authenticated {
		m, err := cfg.Memberships.Active(ctx, userID, cohortID)
		switch {
		case err == nil:
			cohort := m.Cohort
			if cohort.ID == "" {
				cohort.ID = cohortID
			}
			holder.Set(cohort)
			return nil
		case !errors.Is(err, membership.ErrNotFound):
			return fmt.Errorf("middleware: membership lookup: %w", err)
		}
	}

	holder.Clear()
	if _, _, err := sess.Pop(ctx, cfg.SessionKey); err != nil {
		return fmt.Errorf("middleware: purge session: %w", err)
	}
	cfg.Logger.InfoContext(ctx, "ccx: dropped stale cohort from session", "cohort_id", cohortID, "user_id", userID)
	return nil
}
