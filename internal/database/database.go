package database

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Dialect names the SQL flavour behind a connection.
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
	MySQL    Dialect = "mysql"
)

// Resolve maps a DSN to its driver name, dialect and the DSN the driver expects.
// postgres:// and postgresql:// go to pgx, mysql:// to go-sql-driver, anything
// else is a SQLite path or file: URI.
func Resolve(dsn string) (driver string, dialect Dialect, driverDSN string, err error) {
	lower := strings.ToLower(dsn)
	switch {
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		return "pgx", Postgres, dsn, nil
	case strings.HasPrefix(lower, "mysql://"):
		converted, err := mysqlDSN(dsn)
		if err != nil {
			return "", "", "", err
		}
		return "mysql", MySQL, converted, nil
	default:
		return "sqlite", SQLite, dsn, nil
	}
}

// Connect opens the database named by dsn.
func Connect(dsn string) (*sqlx.DB, Dialect, error) {
	driver, dialect, driverDSN, err := Resolve(dsn)
	if err != nil {
		return nil, "", err
	}
	db, err := sqlx.Connect(driver, driverDSN)
	if err != nil {
		return nil, "", fmt.Errorf("failed to connect to database: %w", err)
	}
	if dialect == SQLite {
		db.SetMaxOpenConns(1)
	}
	return db, dialect, nil
}

func mysqlDSN(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse mysql dsn: %w", err)
	}
	cfg := mysql.NewConfig()
	cfg.Net = "tcp"
	cfg.Addr = u.Host
	if u.Port() == "" {
		cfg.Addr = u.Host + ":3306"
	}
	cfg.User = u.User.Username()
	cfg.Passwd, _ = u.User.Password()
	cfg.DBName = strings.TrimPrefix(u.Path, "/")
	cfg.ParseTime = true
	cfg.MultiStatements = true
	cfg.ClientFoundRows = true
	params := u.Query()
	if len(params) > 0 {
		cfg.Params = make(map[string]string, len(params))
		for k := range params {
			cfg.Params[k] = params.Get(k)
		}
	}
	return cfg.FormatDSN(), nil
}
