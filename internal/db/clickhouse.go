package db

import (
	"errors"
	"time"

	_ "github.com/ClickHouse/clickhouse-go/v2"
	"github.com/jmehdipour/church-sms/internal/config"
	"github.com/jmoiron/sqlx"
)

// OpenClickHouse opens the analytics store, e.g.
// clickhouse://default:@localhost:9000/churchsms?dial_timeout=5s&compress=true
func OpenClickHouse(c config.DatabaseConfig) (*sqlx.DB, error) {
	if c.DSN == "" {
		return nil, errors.New("empty ClickHouse DSN")
	}
	return open("clickhouse", c, 3*time.Second)
}
