package fixtures

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/denisenkom/go-mssqldb" // for sqlserver
	_ "github.com/go-sql-driver/mysql"   // for mysql
	_ "github.com/lib/pq"                // for postgres

	"oas-testgen/internal/config"
)

// DSN returns the driver name and data source name for cfg.
func DSN(cfg config.DatabaseConfig) (string, string, error) {
	switch cfg.Type {
	case "postgres":
		return "postgres", fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
			cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name), nil
	case "mysql":
		return "mysql", fmt.Sprintf("%s:%s@tcp(%s:%d)/%s",
			cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Name), nil
	case "sqlserver":
		return "sqlserver", fmt.Sprintf("server=%s;port=%d;user id=%s;password=%s;database=%s",
			cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name), nil
	default:
		return "", "", fmt.Errorf("unsupported database type: %s", cfg.Type)
	}
}

// SQLResolver answers "sql:" fixture values from a live database.
type SQLResolver struct {
	db *sql.DB
}

// OpenSQLResolver connects to the configured database and verifies the
// connection.
func OpenSQLResolver(ctx context.Context, cfg config.DatabaseConfig) (*SQLResolver, error) {
	driver, dsn, err := DSN(cfg)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return &SQLResolver{db: db}, nil
}

// NewSQLResolver wraps an already open database.
func NewSQLResolver(db *sql.DB) *SQLResolver {
	return &SQLResolver{db: db}
}

// QueryValue returns the first column of the first row of query.
func (r *SQLResolver) QueryValue(ctx context.Context, query string) (interface{}, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("query returned no rows: %s", query)
	}

	values := make([]interface{}, len(columns))
	ptrs := make([]interface{}, len(columns))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, fmt.Errorf("failed to scan row: %w", err)
	}

	if b, ok := values[0].([]byte); ok {
		return string(b), nil
	}
	return values[0], nil
}

// Close closes the database connection.
func (r *SQLResolver) Close() error {
	return r.db.Close()
}
