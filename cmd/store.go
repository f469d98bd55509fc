package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/yield-atlas/internal/config"
	"github.com/sells-group/yield-atlas/internal/store"
)

// initStore opens the configured results store. The "none" driver returns
// a nil store.
func initStore(ctx context.Context, sc config.StoreConfig) (store.Store, error) {
	opts := []store.Option{store.WithSRID(sc.SRID)}
	switch sc.Driver {
	case "none", "":
		return nil, nil
	case "sqlite":
		dsn := sc.DatabaseURL
		if dsn == "" {
			dsn = "yield-atlas.db"
		}
		return store.NewSQLite(dsn, opts...)
	case "postgres":
		if sc.DatabaseURL == "" {
			return nil, eris.New("postgres store requires store.database_url (YIELDATLAS_STORE_DATABASE_URL)")
		}
		return store.NewPostgres(ctx, sc.DatabaseURL, &store.PoolConfig{MaxConns: sc.MaxConns}, opts...)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", sc.Driver)
	}
}

// openStore opens and migrates the configured store.
func openStore(ctx context.Context, sc config.StoreConfig) (store.Store, error) {
	st, err := initStore(ctx, sc)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, nil
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// requireStore opens the store for commands that only read history.
func requireStore(ctx context.Context, sc config.StoreConfig) (store.Store, error) {
	st, err := openStore(ctx, sc)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, eris.New("run history needs a store; set store.driver to sqlite or postgres")
	}
	return st, nil
}
