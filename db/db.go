package db

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"equipment_loaner/config"
	"equipment_loaner/models"

	"github.com/glebarez/sqlite"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Connect opens the database named by cfg and runs migrations.
func Connect(ctx context.Context, cfg config.Config) (*gorm.DB, error) {
	var (
		gdb *gorm.DB
		err error
	)
	switch cfg.DBDriver {
	case DriverPostgres:
		gdb, err = OpenPostgres(ctx, cfg.PostgresDSN(), cfg.DBMaxConns)
	case DriverSQLite:
		gdb, err = OpenSQLite(cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("unknown DB_DRIVER %q", cfg.DBDriver)
	}
	if err != nil {
		return nil, err
	}

	if err := Migrate(gdb); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	slog.Info("database connected", "driver", cfg.DBDriver)
	return gdb, nil
}

func gormConfig() *gorm.Config {
	return &gorm.Config{
		// ErrDuplicatedKey 等错误统一翻译
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	}
}

// OpenPostgres 通过 pgx 连接池打开，GORM 只是上层
func OpenPostgres(ctx context.Context, dsn string, maxConns int32) (*gorm.DB, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if maxConns > 0 {
		poolCfg.MaxConns = maxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	sqlDB := stdlib.OpenDBFromPool(pool)
	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("open gorm: %w", err)
	}
	return gdb, nil
}

// OpenSQLite is used for local development and tests. A path without query
// parameters gets foreign keys and a busy timeout turned on.
func OpenSQLite(path string) (*gorm.DB, error) {
	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	}
	gdb, err := gorm.Open(sqlite.Open(dsn), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	// SQLite 只允许一个写者，事务天然串行
	sqlDB.SetMaxOpenConns(1)
	return gdb, nil
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.User{}, &models.Credential{},
		&models.Category{}, &models.Location{},
		&models.Item{}, &models.Loan{}, &models.MaintenanceLog{},
	); err != nil {
		return err
	}

	// 同一物品最多一条 active 借用
	if err := db.Exec(fmt.Sprintf(`
	  CREATE UNIQUE INDEX IF NOT EXISTS %s_one_active_per_item
	  ON %s (item_id)
	  WHERE status = 'active';
	`, models.LoanTable, models.LoanTable)).Error; err != nil {
		return err
	}

	// 查询未结束借用更快
	if err := db.Exec(fmt.Sprintf(`
	  CREATE INDEX IF NOT EXISTS %s_open_item_borrower
	  ON %s (item_id, borrower_id)
	  WHERE status IN ('pending', 'active');
	`, models.LoanTable, models.LoanTable)).Error; err != nil {
		return err
	}

	return nil
}

// Ping checks the underlying connection.
func Ping(ctx context.Context, gdb *gorm.DB) error {
	sqlDB, err := gdb.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
