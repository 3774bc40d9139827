package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/streetcover/internal/config"
	"github.com/sells-group/streetcover/internal/store"
)

// initStore opens and migrates the configured run store. It returns a nil
// store when the driver is "none".
func initStore(ctx context.Context, sc config.StoreConfig) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch sc.Driver {
	case config.DriverNone:
		return nil, nil
	case config.DriverSQLite, "":
		path := sc.SQLitePath
		if path == "" {
			path = "streetcover.db"
		}
		st, err = store.NewSQLite(path)
	case config.DriverPostgres:
		var poolCfg *store.PoolConfig
		if sc.MaxConns > 0 || sc.MinConns > 0 {
			poolCfg = &store.PoolConfig{MaxConns: sc.MaxConns, MinConns: sc.MinConns}
		}
		st, err = store.NewPostgres(ctx, sc.DatabaseURL, poolCfg)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", sc.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}
