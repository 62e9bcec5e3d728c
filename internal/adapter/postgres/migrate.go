package postgres

import (
	"database/sql"
	"fmt"
	"io/fs"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver for database/sql
	"github.com/pressly/goose/v3"

	"github.com/heartmarshall/coursetrack-backend/migrations"
)

// OpenSQL opens a database/sql handle over the pgx driver. goose requires
// *sql.DB; the application itself only uses pgxpool.
func OpenSQL(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql.Open: %w", err)
	}
	return db, nil
}

// NewMigrator returns a goose provider over the embedded migrations, or over
// dir when it is not empty.
// goose.NewProvider handles $$-delimited PL/pgSQL bodies, unlike the legacy
// goose.Up which splits on semicolons.
func NewMigrator(db *sql.DB, dir string) (*goose.Provider, error) {
	var fsys fs.FS = migrations.FS
	if dir != "" {
		fsys = os.DirFS(dir)
	}

	provider, err := goose.NewProvider(goose.DialectPostgres, db, fsys)
	if err != nil {
		return nil, fmt.Errorf("goose new provider: %w", err)
	}
	return provider, nil
}
