package database

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"auth-service/internal/retry"
)

func NewPostgres(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	// Wait for the database to accept connections; fresh containers
	// need a few seconds.
	waitCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	err = retry.Do(waitCtx, 10, 500*time.Millisecond, func() error {
		pingCtx, pingCancel := context.WithTimeout(waitCtx, 2*time.Second)
		defer pingCancel()
		return db.PingContext(pingCtx)
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}
