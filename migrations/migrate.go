package migrations

import (
	"database/sql"
	"embed"
	"log"
	"log/slog"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed *.sql
var embedMigrations embed.FS

// Migrate applies every pending schema migration before the server starts
// serving. Startup cannot continue on a half-migrated database.
func Migrate(pgurl string) {
	db, err := sql.Open("pgx", pgurl)
	if err != nil {
		log.Fatal("open migration db: ", err)
	}

	goose.SetBaseFS(embedMigrations)

	if err := goose.SetDialect("postgres"); err != nil {
		log.Fatal("set goose dialect: ", err)
	}

	if err := goose.Up(db, "."); err != nil {
		log.Fatal("apply migrations: ", err)
	}

	if err := db.Close(); err != nil {
		log.Fatal("close migration db: ", err)
	}
	slog.Info("migrations applied")
}
