package client

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"golang.org/x/exp/slog"

	"github.com/NIFCLOUD-mbaas/ncmb-go/internal/config"
	"github.com/NIFCLOUD-mbaas/ncmb-go/internal/ncmb/apierr"
	"github.com/NIFCLOUD-mbaas/ncmb-go/internal/ncmb/cache"
	"github.com/NIFCLOUD-mbaas/ncmb-go/internal/ncmb/dispatcher"
	"github.com/NIFCLOUD-mbaas/ncmb-go/internal/ncmb/identity"
	"github.com/NIFCLOUD-mbaas/ncmb-go/internal/ncmb/installation"
	"github.com/NIFCLOUD-mbaas/ncmb-go/internal/ncmb/registration"
	"github.com/NIFCLOUD-mbaas/ncmb-go/internal/ncmb/request"
	"github.com/NIFCLOUD-mbaas/ncmb-go/internal/ncmb/session"
	"github.com/NIFCLOUD-mbaas/ncmb-go/internal/ncmb/user"
)

// App wires the whole client together: one session, one identity
// store, one dispatcher, and the user/installation façades on top.
type App struct {
	cfg   *config.Config
	log   *slog.Logger
	sess  *session.Session
	ident *identity.Store
	disp  *dispatcher.Dispatcher
	cache *cache.Cache

	Users         *user.Service
	Installations *installation.Service
}

// New builds the client. source may be nil when the platform push
// runtime is absent; installation registration then fails with a
// dedicated error instead of hanging.
func New(cfg *config.Config, log *slog.Logger, source registration.TokenSource) (*App, error) {
	sess := session.New(cfg.ApplicationKey, cfg.ClientKey)
	ident := identity.NewStore(cfg.DataDir, sess, log)

	opts := []dispatcher.Option{
		dispatcher.WithTimeout(time.Duration(cfg.TimeoutSeconds) * time.Second),
	}

	respCache, err := cache.New(filepath.Join(cfg.DataDir, "cache.db"))
	if err != nil {
		// Degrade to online-only rather than refuse to start.
		log.Warn("offline cache unavailable", "error", err)
		respCache = nil
	} else {
		opts = append(opts, dispatcher.WithCache(respCache))
	}

	disp := dispatcher.New(sess, ident, log, opts...)

	return &App{
		cfg:           cfg,
		log:           log,
		sess:          sess,
		ident:         ident,
		disp:          disp,
		cache:         respCache,
		Users:         user.NewService(disp, ident, sess, log, cfg.BaseURL()),
		Installations: installation.NewService(disp, ident, source, log, cfg.BaseURL()),
	}, nil
}

// Session exposes the login state for read-only inspection.
func (a *App) Session() *session.Session {
	return a.sess
}

// Ping checks that the backend is reachable. A classified backend
// error still means the server answered, only a transport-level
// failure counts as unreachable.
func (a *App) Ping(ctx context.Context) error {
	req := request.New(http.MethodGet, a.cfg.BaseURL()+"/users", nil,
		map[string]string{"limit": "1"})
	_, err := a.disp.Do(ctx, req)
	if err == nil {
		return nil
	}
	if code := apierr.CodeOf(err); code != "" && code != apierr.CodeGeneric {
		return nil
	}
	return fmt.Errorf("server unreachable: %w", err)
}

// Close releases local resources.
func (a *App) Close() error {
	if a.cache != nil {
		return a.cache.Close()
	}
	return nil
}
