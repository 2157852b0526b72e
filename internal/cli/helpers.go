package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/eddmann/whatsapp-archive/internal/archive"
	"github.com/eddmann/whatsapp-archive/internal/bridge"
	"github.com/eddmann/whatsapp-archive/internal/cache"
	"github.com/eddmann/whatsapp-archive/internal/config"
	"github.com/eddmann/whatsapp-archive/internal/format"
	"github.com/eddmann/whatsapp-archive/internal/logging"
	"github.com/eddmann/whatsapp-archive/internal/resolve"
	"github.com/eddmann/whatsapp-archive/internal/store"
)

// App holds the open stores and the services built on them.
type App struct {
	Config   *config.Config
	DB       *store.DB
	Accounts *store.AccountDB // nil when the session store cannot be opened
	Cache    *cache.Names     // nil unless redis_addr is set
	Archive  *archive.Service
}

// openApp opens the chat history and, when available, the account store and
// the name cache. Only the chat history is required.
func openApp(c *config.Config, log zerolog.Logger) (*App, error) {
	db, err := store.Open(c.MessagesDB)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	app := &App{Config: c, DB: db}

	accounts, err := store.OpenAccounts(c.AccountDB)
	if err != nil {
		OutputWarning("contacts unavailable: %v", err)
	} else {
		app.Accounts = accounts
	}

	opts := []resolve.Option{resolve.WithLogger(logging.Module(log, "resolve"))}
	if c.CacheEnabled() {
		names, err := cache.NewNames(cache.Config{
			Addr:     c.RedisAddr,
			Password: c.RedisPassword,
			DB:       c.RedisDB,
			TTL:      c.CacheTTL,
		})
		if err != nil {
			OutputWarning("name cache disabled: %v", err)
		} else {
			app.Cache = names
			opts = append(opts, resolve.WithCache(names))
		}
	}

	resolver := resolve.New(db, app.Accounts, opts...)
	app.Archive = archive.New(db, resolver, logging.Module(log, "archive"))
	return app, nil
}

// Close releases everything openApp acquired.
func (a *App) Close() error {
	var errs []error
	if a.Cache != nil {
		errs = append(errs, a.Cache.Close())
	}
	if a.Accounts != nil {
		errs = append(errs, a.Accounts.Close())
	}
	errs = append(errs, a.DB.Close())
	return errors.Join(errs...)
}

// Formatter returns a transcript formatter resolving names through the archive.
func (a *App) Formatter() *format.Formatter {
	return format.New(a.Archive)
}

// WithArchive opens the stores and runs fn under the configured timeout.
func WithArchive(fn func(context.Context, *App) error) error {
	app, err := openApp(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Warn().Err(err).Msg("close failed")
		}
	}()

	ctx, cancel := commandContext()
	defer cancel()
	return fn(ctx, app)
}

// WithBridge creates a bridge client and runs fn under the configured timeout.
func WithBridge(fn func(context.Context, *bridge.Client) error) error {
	client := bridge.New(cfg.BridgeURL, bridge.WithLogger(logging.Module(logger, "bridge")))
	ctx, cancel := commandContext()
	defer cancel()
	return fn(ctx, client)
}

func commandContext() (context.Context, context.CancelFunc) {
	if cfg.Timeout > 0 {
		return context.WithTimeout(context.Background(), cfg.Timeout)
	}
	return context.WithCancel(context.Background())
}
