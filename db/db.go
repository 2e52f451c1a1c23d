package db

import (
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const sqlitePrefix = "sqlite:"

// Open connects to postgres, or to sqlite when the URL starts with "sqlite:",
// and migrates the schema.
func Open(databaseURL string) (*gorm.DB, error) {
	gormCfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)}

	var dialector gorm.Dialector
	if path, ok := strings.CutPrefix(databaseURL, sqlitePrefix); ok {
		dialector = sqlite.Open(path)
	} else {
		connCfg, err := pgx.ParseConfig(databaseURL)
		if err != nil {
			return nil, fmt.Errorf("db: parse DATABASE_URL: %w", err)
		}
		dialector = postgres.New(postgres.Config{Conn: stdlib.OpenDB(*connCfg)})
	}

	conn, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return nil, fmt.Errorf("db: connect: %w", err)
	}
	if err := AutoMigrate(conn); err != nil {
		return nil, fmt.Errorf("db: migrate: %w", err)
	}
	return conn, nil
}
