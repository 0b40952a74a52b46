package repository

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/yourusername/race-edge/internal/config"
	"github.com/yourusername/race-edge/internal/database"
)

// NewStore opens the history store selected by cfg.Driver, applying the
// embedded schema when RunMigrations is set
func NewStore(ctx context.Context, cfg *config.DatabaseConfig, log logrus.FieldLogger) (Store, error) {
	switch cfg.Driver {
	case "postgres":
		db, err := database.NewDB(ctx, cfg)
		if err != nil {
			return nil, err
		}
		if cfg.RunMigrations {
			if err := db.Migrate(ctx); err != nil {
				db.Close()
				return nil, err
			}
		}
		log.WithFields(logrus.Fields{"driver": cfg.Driver, "host": cfg.Host, "database": cfg.Name}).Info("History store connected")
		return NewPostgresHistoryStore(db), nil

	case "sqlite":
		db, err := database.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		if cfg.RunMigrations {
			if err := database.MigrateSQLite(ctx, db); err != nil {
				db.Close()
				return nil, err
			}
		}
		log.WithFields(logrus.Fields{"driver": cfg.Driver, "path": cfg.SQLitePath}).Info("History store opened")
		return NewSQLiteHistoryStore(db), nil

	case "memory":
		log.WithField("driver", cfg.Driver).Warn("Using empty in-memory history store")
		return NewMemoryHistoryStore(), nil

	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.Driver)
	}
}
