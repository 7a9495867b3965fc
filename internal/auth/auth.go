// Package auth implements a flat username/password table, bcrypt-hashed
// and stored in sqlite via jmoiron/sqlx.
package auth

import (
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/crypto/bcrypt"

	"github.com/nanomq-go/nanomq/internal/config"
)

var (
	ErrUnknownUser      = errors.New("unknown username")
	ErrInvalidPassword  = errors.New("invalid password")
	ErrAnonymousAllowed = errors.New("anonymous access is not permitted")
)

// Store is the sqlite-backed flat user table.
type Store struct {
	db             *sqlx.DB
	allowAnonymous bool
}

// Open opens (creating if necessary) the sqlite auth database at path and
// returns a ready Store.
func Open(path string, allowAnonymous bool) (*Store, error) {
	db, err := sqlx.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("auth: open %s: %w", path, err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS users (
		username TEXT PRIMARY KEY,
		secret   TEXT NOT NULL
	)`); err != nil {
		return nil, fmt.Errorf("auth: migrate: %w", err)
	}
	return &Store{db: db, allowAnonymous: allowAnonymous}, nil
}

// Seed loads config.AuthConfig's (username, password) pairs, hashing each
// with bcrypt and upserting it, matching broker.c's conf_auth_parser.
func (s *Store) Seed(cfg *config.AuthConfig) error {
	for _, entry := range cfg.Users {
		hash, err := HashPassword(entry.Password)
		if err != nil {
			return fmt.Errorf("auth: hash %s: %w", entry.Username, err)
		}
		if _, err := s.db.Exec(
			`INSERT INTO users (username, secret) VALUES (?, ?)
			 ON CONFLICT(username) DO UPDATE SET secret = excluded.secret`,
			entry.Username, hash,
		); err != nil {
			return fmt.Errorf("auth: seed %s: %w", entry.Username, err)
		}
	}
	return nil
}

// HashPassword bcrypt-hashes passwd at the default cost.
func HashPassword(passwd string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(passwd), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Authenticate checks username/password against the stored table. An
// empty username with allowAnonymous set succeeds with no lookup.
func (s *Store) Authenticate(username, password string) error {
	if username == "" {
		if s.allowAnonymous {
			return nil
		}
		return ErrAnonymousAllowed
	}

	var hash string
	if err := s.db.Get(&hash, `SELECT secret FROM users WHERE username = ?`, username); err != nil {
		return ErrUnknownUser
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrInvalidPassword
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }
