package auth

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	goerrors "github.com/goliatone/go-errors"
	"github.com/pressly/goose/v3"
)

// goose keeps its settings in package globals
var migrateMu sync.Mutex

// Migrate applies the embedded schema migrations. dialect is a goose
// dialect name such as "postgres" or "sqlite3".
func Migrate(ctx context.Context, db *sql.DB, dialect string, logger Logger) error {
	migrateMu.Lock()
	defer migrateMu.Unlock()

	goose.SetBaseFS(migrationsFS)
	defer goose.SetBaseFS(nil)

	goose.SetLogger(newGooseLogger(normalizeLogger(logger)))

	if err := goose.SetDialect(dialect); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "unsupported migration dialect").
			WithMetadata(map[string]any{"dialect": dialect})
	}

	if err := goose.UpContext(ctx, db, MigrationsDir); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to apply migrations")
	}

	return nil
}

// gooseLogger routes goose output through Logger
type gooseLogger struct {
	logger Logger
}

func newGooseLogger(logger Logger) goose.Logger {
	return &gooseLogger{logger: logger}
}

func (l *gooseLogger) Fatalf(format string, v ...any) {
	l.logger.Error("%s", fmt.Sprintf(format, v...))
}

func (l *gooseLogger) Printf(format string, v ...any) {
	l.logger.Debug("%s", fmt.Sprintf(format, v...))
}
