package db

import (
	"context"
	"errors"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmehdipour/church-sms/internal/config"
	"github.com/jmoiron/sqlx"
)

// OpenMySQL opens the primary store and pings it.
func OpenMySQL(c config.DatabaseConfig) (*sqlx.DB, error) {
	if c.DSN == "" {
		return nil, errors.New("empty MySQL DSN")
	}
	return open("mysql", c, 5*time.Second)
}

// open applies pool settings and fails fast when the server is unreachable.
func open(driver string, c config.DatabaseConfig, defaultPing time.Duration) (*sqlx.DB, error) {
	db, err := sqlx.Open(driver, c.DSN)
	if err != nil {
		return nil, err
	}

	if c.MaxOpenConns > 0 {
		db.SetMaxOpenConns(c.MaxOpenConns)
	}
	if c.MaxIdleConns > 0 {
		db.SetMaxIdleConns(c.MaxIdleConns)
	}
	if c.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(c.ConnMaxLifetime)
	}
	if c.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(c.ConnMaxIdleTime)
	}

	timeout := c.PingTimeout
	if timeout <= 0 {
		timeout = defaultPing
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}
