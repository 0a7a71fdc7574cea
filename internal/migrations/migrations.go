package migrations

import (
	"embed"
	"fmt"
	"path"

	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"

	"medsales/m/internal/database"
)

//go:embed sql
var files embed.FS

type gooseLogger struct {
	log *zap.SugaredLogger
}

func (l gooseLogger) Printf(format string, v ...interface{}) { l.log.Infof(format, v...) }
func (l gooseLogger) Fatalf(format string, v ...interface{}) { l.log.Fatalf(format, v...) }

// Run applies the schema for dialect to db.
func Run(db *sqlx.DB, dialect database.Dialect, log *zap.Logger) error {
	gooseDialect, dir, err := source(dialect)
	if err != nil {
		return err
	}
	if log == nil {
		log = zap.NewNop()
	}
	goose.SetBaseFS(files)
	goose.SetLogger(gooseLogger{log: log.Sugar()})
	if err := goose.SetDialect(gooseDialect); err != nil {
		return fmt.Errorf("migration dialect: %w", err)
	}
	if err := goose.Up(db.DB, dir); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}

func source(dialect database.Dialect) (string, string, error) {
	switch dialect {
	case database.SQLite:
		return "sqlite3", path.Join("sql", "sqlite"), nil
	case database.Postgres:
		return "postgres", path.Join("sql", "postgres"), nil
	case database.MySQL:
		return "mysql", path.Join("sql", "mysql"), nil
	default:
		return "", "", fmt.Errorf("unsupported dialect %q", dialect)
	}
}
