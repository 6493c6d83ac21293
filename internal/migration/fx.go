package migration

import (
	"strings"

	"github.com/smallbiznis/sharehold/internal/config"
	"github.com/smallbiznis/sharehold/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
		if !cfg.MigrateOnStart {
			log.Info("database migrations skipped")
			return nil
		}

		dialect := strings.ToLower(strings.TrimSpace(cfg.DBType))
		if dialect != db.DialectPostgres {
			log.Info("applying gorm auto migrations", zap.String("dialect", dialect))
			return AutoMigrate(conn)
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		log.Info("applying sql migrations")
		return RunMigrations(sqlDB)
	}),
)
