package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"go.uber.org/multierr"

	auth "github.com/goliatone/go-auth-client"
	"github.com/goliatone/go-auth-client/activitymap"
	"github.com/goliatone/go-auth-client/config"
	"github.com/goliatone/go-auth-client/gateway"
	"github.com/goliatone/go-auth-client/logging"
	"github.com/goliatone/go-auth-client/store/bunstore"
	"github.com/goliatone/go-auth-client/store/redisstore"
)

// app holds the collaborators shared by the commands.
type app struct {
	cfg      *config.Config
	logger   auth.Logger
	store    auth.TokenStore
	codec    *auth.TokenCodec
	gateway  *gateway.Client
	activity auth.ActivitySink
	closers  []func() error
}

// newApp builds the collaborators. The token store is only opened when
// withStore is set, so stateless commands leave no database behind.
func newApp(ctx context.Context, cfg *config.Config, withStore bool) (*app, error) {
	zl, err := logging.NewZap(cfg.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}

	a := &app{
		cfg:    cfg,
		logger: zl,
		gateway: gateway.New(cfg.API.BaseURL,
			gateway.WithTimeout(cfg.API.Timeout),
			gateway.WithLogger(zl),
		),
	}
	a.closers = append(a.closers, func() error {
		// syncing stderr fails on some platforms
		_ = zl.Sync()
		return nil
	})
	a.activity = activitySink(cfg.Log.Activity, zl, os.Stderr)

	if withStore {
		if err := a.openStore(ctx); err != nil {
			return nil, multierr.Append(err, a.Close())
		}
	}

	if err := a.buildCodec(); err != nil {
		return nil, multierr.Append(err, a.Close())
	}

	return a, nil
}

func (a *app) openStore(ctx context.Context) error {
	slot := a.cfg.GetTokenKey()

	switch a.cfg.Store.Driver {
	case config.StoreMemory:
		a.store = auth.NewMemoryTokenStore()
	case config.StoreRedis:
		store, err := redisstore.Connect(ctx, &redis.Options{
			Addr:     a.cfg.Redis.Addr,
			Password: a.cfg.Redis.Password,
			DB:       a.cfg.Redis.DB,
		}, redisstore.WithSlot(slot), redisstore.WithTTL(a.cfg.Redis.TTL))
		if err != nil {
			return err
		}
		a.store = store
		a.closers = append(a.closers, store.Close)
	default:
		sqldb, err := sql.Open(sqliteshim.ShimName, a.cfg.Store.DSN)
		if err != nil {
			return fmt.Errorf("opening sqlite: %w", err)
		}
		db := bun.NewDB(sqldb, sqlitedialect.New())
		a.closers = append(a.closers, db.Close)

		store := bunstore.New(db, bunstore.WithSlot(slot))
		if err := store.CreateTable(ctx); err != nil {
			return err
		}
		a.store = store
	}
	return nil
}

func (a *app) buildCodec() error {
	switch {
	case a.cfg.Token.SigningSecret != "":
		a.codec = auth.NewTokenCodec(auth.WithVerifier(auth.NewHMACVerifier([]byte(a.cfg.Token.SigningSecret))))
	case a.cfg.Token.JWKSURL != "":
		v, err := auth.NewJWKSVerifier(a.cfg.Token.JWKSURL, a.cfg.Token.JWKSRefresh, a.logger)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, func() error {
			v.Close()
			return nil
		})
		a.codec = auth.NewTokenCodec(auth.WithVerifier(v))
	default:
		a.codec = auth.NewTokenCodec()
	}
	return nil
}

func activitySink(kind string, logger auth.Logger, w io.Writer) auth.ActivitySink {
	switch kind {
	case config.ActivityJSON:
		return activitymap.NewJSONSink(w, activitymap.WithActorFallback("authctl"))
	case config.ActivityOff:
		return nil
	default:
		return auth.LoggerActivitySink(logger)
	}
}

func (a *app) checker() *auth.SessionChecker {
	return auth.NewSessionChecker(a.store,
		auth.WithCheckerPolicy(auth.NewSessionPolicy(a.codec)),
		auth.WithCheckerLogger(a.logger),
		auth.WithCheckerActivitySink(a.activity),
	)
}

func (a *app) broadcaster(ctx context.Context, nav auth.Navigator) *auth.StateBroadcaster {
	return auth.NewStateBroadcaster(a.checker(), a.gateway,
		auth.WithNavigator(nav),
		auth.WithBroadcasterConfig(a.cfg),
		auth.WithBroadcasterLogger(a.logger),
		auth.WithBroadcasterActivitySink(a.activity),
		auth.WithBroadcasterContext(ctx),
	)
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() error {
	var err error
	for i := len(a.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, a.closers[i]())
	}
	a.closers = nil
	return err
}
