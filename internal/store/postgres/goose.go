package postgres

import (
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"
)

// withGoose opens a database/sql handle on cfg with goose reading the
// embedded migrations, and runs fn on it.
func withGoose(cfg Config, fn func(*sql.DB) error) error {
	goose.SetBaseFS(migrations)

	db, err := goose.OpenDBWithDriver("pgx", cfg.DSN())
	if err != nil {
		return fmt.Errorf("open db for migrations: %w", err)
	}
	defer func() { _ = db.Close() }()

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}
	return fn(db)
}
