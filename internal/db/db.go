package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"
)

// DB wraps a MySQL-compatible connection pool.
type DB struct {
	*sql.DB
}

// Open connects to dsn. Multi-statement execution is forced on so a
// chunk statement carrying trailing comments still executes in one call.
func Open(dsn string) (*DB, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, errors.Wrap(err, "parse dsn")
	}
	cfg.MultiStatements = true
	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "mysql connector")
	}
	pool := sql.OpenDB(connector)
	pool.SetMaxOpenConns(4)
	pool.SetConnMaxIdleTime(5 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := pool.PingContext(ctx); err != nil {
		_ = pool.Close()
		return nil, errors.Wrap(err, "ping database")
	}
	return &DB{DB: pool}, nil
}

// ErrorCode extracts the server error number from a MySQL error.
func ErrorCode(err error) (uint16, bool) {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number, true
	}
	return 0, false
}
