package migrations

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	chstore "seasonality-lab/internal/storage/clickhouse"
)

// ErrUnsafeStatement is returned for migration text the statement splitter cannot handle.
var ErrUnsafeStatement = errors.New("semicolon inside string literal")

// RunClickhouseMigrations creates the DSN's database when missing and applies
// the output-table schema. The returned connection targets that database.
func RunClickhouseMigrations(ctx context.Context, dsn string) (conn *chstore.Conn, err error) {
	dbName, err := databaseFromDSN(dsn)
	if err != nil {
		return nil, err
	}
	if err := createDatabase(ctx, dsn, dbName); err != nil {
		return nil, err
	}

	files, err := readMigrations(ClickhouseFS, "clickhouse")
	if err != nil {
		return nil, err
	}

	conn, err = chstore.NewConnWithDatabase(ctx, dsn, dbName)
	if err != nil {
		return nil, fmt.Errorf("connect clickhouse %s: %w", dbName, err)
	}
	defer func() {
		if err != nil {
			conn.Close()
			conn = nil
		}
	}()

	for _, f := range files {
		if err := validateNoSemicolonInStrings(f.SQL); err != nil {
			return nil, fmt.Errorf("migration %s: %w", f.Name, err)
		}
		// The native protocol runs one statement per Exec.
		for _, stmt := range splitStatements(f.SQL) {
			if err := conn.Exec(ctx, stmt); err != nil {
				return nil, fmt.Errorf("apply migration %s: %w", f.Name, err)
			}
		}
	}
	return conn, nil
}

func createDatabase(ctx context.Context, dsn, dbName string) error {
	admin, err := chstore.NewConnWithDatabase(ctx, dsn, "")
	if err != nil {
		return fmt.Errorf("connect clickhouse admin: %w", err)
	}
	defer admin.Close()

	if err := admin.Exec(ctx, fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", dbName)); err != nil {
		return fmt.Errorf("create database %s: %w", dbName, err)
	}
	return nil
}

// splitStatements splits SQL on semicolons after dropping "--" comment lines.
func splitStatements(input string) []string {
	var kept []string
	for _, line := range strings.Split(input, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		kept = append(kept, line)
	}

	var stmts []string
	for _, part := range strings.Split(strings.Join(kept, "\n"), ";") {
		if stmt := strings.TrimSpace(part); stmt != "" {
			stmts = append(stmts, stmt)
		}
	}
	return stmts
}

// validateNoSemicolonInStrings rejects single-quoted literals containing ';'.
// A doubled quote ('') is an escaped quote inside a literal.
func validateNoSemicolonInStrings(sql string) error {
	inString := false
	for i := 0; i < len(sql); i++ {
		switch sql[i] {
		case '\'':
			if inString && i+1 < len(sql) && sql[i+1] == '\'' {
				i++
				continue
			}
			inString = !inString
		case ';':
			if inString {
				return fmt.Errorf("%w at offset %d", ErrUnsafeStatement, i)
			}
		}
	}
	return nil
}

// databaseFromDSN returns the path component of clickhouse://host:port/db.
func databaseFromDSN(dsn string) (string, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("parse clickhouse dsn: %w", err)
	}
	db := strings.Trim(u.Path, "/")
	if db == "" {
		return "", fmt.Errorf("clickhouse dsn %q has no database", u.Redacted())
	}
	return db, nil
}
