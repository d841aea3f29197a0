package database

import (
	"database/sql"
	"time"

	"github.com/claimsure/claimsure-app/log"
	_ "github.com/jackc/pgx/stdlib"
)

// Connect opens the application connection pool using the pgx stdlib driver.
func Connect() (*sql.DB, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMin) * time.Minute)
	db.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTime) * time.Second)

	if err := db.Ping(); err != nil {
		return nil, err
	}

	log.API.Info("Database connection established.")

	return db, nil
}
