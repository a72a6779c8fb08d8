package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"sharednotes/pkg/api"
	"sharednotes/pkg/auth"
	"sharednotes/pkg/config"
	"sharednotes/pkg/handlers"
	"sharednotes/pkg/identity"
	"sharednotes/pkg/logging"
	"sharednotes/pkg/metrics"
	"sharednotes/pkg/services"
)

const shutdownTimeout = 10 * time.Second

// App wires the client together: one token store, one backend client and
// the services sharing them
type App struct {
	cfgMu  sync.RWMutex
	cfg    *config.Config
	logger zerolog.Logger
	logs   *logging.LogData

	Tokens   *auth.TokenStore
	Client   *api.Client
	Provider identity.Provider
	Metrics  *metrics.Metrics
	Session  *services.SessionService
	Notes    *services.NoteService
	Sharing  *services.SharingService

	handler   http.Handler
	startOnce sync.Once
	startErr  error
}

type options struct {
	provider   identity.Provider
	httpClient *http.Client
	logs       *logging.LogData
}

// Option customizes New
type Option func(*options)

// WithProvider uses p instead of the provider named in the config
func WithProvider(p identity.Provider) Option {
	return func(o *options) {
		o.provider = p
	}
}

// WithHTTPClient sends backend requests through hc
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) {
		o.httpClient = hc
	}
}

// WithLogData lets config reloads change the log level
func WithLogData(logs *logging.LogData) Option {
	return func(o *options) {
		o.logs = logs
	}
}

// New builds the application from cfg
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger, opts ...Option) (*App, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	own := *cfg
	a := &App{
		cfg:    &own,
		logger: logger,
		logs:   o.logs,
		Tokens: auth.NewTokenStore(),
	}
	if cfg.Metrics {
		a.Metrics = metrics.New()
	}

	clientOpts := []api.Option{
		api.WithLogger(logger),
		api.WithMetrics(a.Metrics),
	}
	if o.httpClient != nil {
		clientOpts = append(clientOpts, api.WithHTTPClient(o.httpClient))
	}
	client, err := api.New(cfg.APIURL, a.Tokens, clientOpts...)
	if err != nil {
		return nil, err
	}
	a.Client = client

	a.Provider = o.provider
	if a.Provider == nil {
		a.Provider, err = newProvider(ctx, cfg.Identity, logging.Component(logger, "identity"))
		if err != nil {
			return nil, err
		}
	}

	a.Session = services.NewSessionService(client, a.Provider, a.Tokens, logging.Component(logger, "session"), a.Metrics)
	a.Notes = services.NewNoteService(client, a.Session, logging.Component(logger, "notes"), a.Metrics, cfg.WriteRetries)
	a.Sharing = services.NewSharingService(client, a.Notes, a.Session, logging.Component(logger, "sharing"))
	a.Session.OnLogout(a.Notes.Clear)

	a.handler = handlers.NewRouter(handlers.Services{
		Session: a.Session,
		Notes:   a.Notes,
		Sharing: a.Sharing,
		Metrics: a.Metrics,
	}, logger)

	logger.Info().
		Str("api_url", cfg.APIURL).
		Str("identity", cfg.Identity.Provider).
		Str("config", cfg.Path()).
		Msg("client initialized")
	return a, nil
}

func newProvider(ctx context.Context, cfg config.IdentityConfig, logger zerolog.Logger) (identity.Provider, error) {
	switch cfg.Provider {
	case config.ProviderCognito:
		return identity.NewCognito(ctx, identity.CognitoConfig{
			Region:       cfg.Region,
			UserPoolID:   cfg.UserPoolID,
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
		}, logger)
	case config.ProviderMemory, "":
		logger.Warn().Msg("using the in-memory identity provider")
		return identity.NewMemory(), nil
	}
	return nil, fmt.Errorf("unknown identity provider %q", cfg.Provider)
}

// Config returns a copy of the configuration in effect
func (a *App) Config() config.Config {
	a.cfgMu.RLock()
	defer a.cfgMu.RUnlock()
	return *a.cfg
}

// Handler returns the local HTTP facade
func (a *App) Handler() http.Handler {
	return a.handler
}

// Start restores the previous session once per process and loads the
// notes when it succeeds. A missing session is not an error.
func (a *App) Start(ctx context.Context) error {
	a.startOnce.Do(func() {
		if _, err := a.Session.ResumeSession(ctx); err != nil {
			return
		}
		if _, err := a.Notes.FetchAll(ctx); err != nil {
			a.startErr = err
		}
	})
	return a.startErr
}

// Serve runs the facade on the configured address until ctx is done, then
// shuts it down. Config file changes update the log level.
func (a *App) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.Config().ListenAddr)
	if err != nil {
		return err
	}
	return a.ServeListener(ctx, ln)
}

// ServeListener is Serve on an existing listener
func (a *App) ServeListener(ctx context.Context, ln net.Listener) error {
	if err := a.Start(ctx); err != nil {
		a.logger.Warn().Err(err).Msg("notes could not be loaded")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	a.watchConfig(ctx)

	srv := &http.Server{
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info().Str("addr", ln.Addr().String()).Msg("server starting")
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	a.logger.Info().Msg("shutting down gracefully")
	shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
	defer done()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	a.drainWrites(shutdownCtx)
	return nil
}

// drainWrites gives failed writes one last chance before exit
func (a *App) drainWrites(ctx context.Context) {
	if len(a.Notes.Writes()) == 0 {
		return
	}
	if err := a.Notes.FlushFailed(ctx); err != nil {
		a.logger.Error().Err(err).Int("writes", len(a.Notes.Writes())).Msg("unsaved changes lost on exit")
	}
}

func (a *App) watchConfig(ctx context.Context) {
	cfg := a.Config()
	path := cfg.Path()
	if path == "" {
		return
	}
	if _, err := os.Stat(path); err != nil {
		return
	}

	go func() {
		if err := config.Watch(ctx, path, a.logger, a.applyConfig); err != nil {
			a.logger.Warn().Err(err).Msg("config watch stopped")
		}
	}()
}

// applyConfig takes the reloadable settings from a reloaded config file.
// Only the log level can change while running.
func (a *App) applyConfig(cfg *config.Config) {
	a.cfgMu.Lock()
	changed := cfg.LogLevel != a.cfg.LogLevel
	a.cfg.LogLevel = cfg.LogLevel
	a.cfgMu.Unlock()

	if changed && a.logs != nil {
		a.logs.SetLevel(cfg.LogLevel)
		a.logger.Info().Str("level", cfg.LogLevel).Msg("log level changed")
	}
}
