package db

import (
	"context"
	"strings"

	"dumpsplit/internal/config"
	"dumpsplit/internal/util"
)

// EnsureDatabase creates the database if it does not exist.
func EnsureDatabase(ctx context.Context, dsn string, dbName string) error {
	if dbName == "" {
		return nil
	}
	exec, err := Open(config.AdminDSN(dsn))
	if err != nil {
		return err
	}
	defer util.CloseWithErr(exec, "db exec")
	_, err = exec.ExecContext(ctx, "CREATE DATABASE IF NOT EXISTS "+QuoteIdent(dbName))
	return err
}

// QuoteIdent wraps name in backticks, doubling any backtick inside it.
func QuoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}
