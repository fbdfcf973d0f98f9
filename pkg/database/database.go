package database

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	// Postgres driver, database/sql registration only.
	_ "github.com/jackc/pgx/v4/stdlib"

	"github.com/docforge/docforge/pkg/telemetry"
)

// ConnConfig describes how to reach the managed Postgres instance. The
// platform requires TLS, so SSLMode defaults to require.
type ConnConfig struct {
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	SSLMode  string
}

// DSN renders the config as a postgres URL. The password is URL-escaped, it
// regularly contains characters that would break a hand-assembled string.
func (c ConnConfig) DSN() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "require"
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:     "/" + c.Name,
		RawQuery: "sslmode=" + sslMode,
	}
	return u.String()
}

// Open opens a connection pool. The pool is small: the setup flow is the
// only client and runs sequentially.
func Open(cfg ConnConfig) (*sql.DB, error) {
	db, err := sql.Open("pgx", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)
	return db, nil
}

// TestConnection proves the credentials work end to end: connect, then run
// a trivial query. A reachable host with bad credentials fails here rather
// than later in the middle of migrations.
func TestConnection(ctx context.Context, cfg ConnConfig, log *telemetry.Logger) error {
	log = log.NewComponentLogger("database").WithField("host", cfg.Host)
	log.Info("Testing database connection")

	db, err := Open(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	var one int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("database test query failed: %w", err)
	}

	log.Info("Database connection verified")
	return nil
}
