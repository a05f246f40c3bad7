package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/jeffersonwarrior/eviscape/internal/oauth"
)

// ErrTokenNotFound is returned by Load when no token is stored under a name.
var ErrTokenNotFound = errors.New("token not found")

// TokenStore keeps OAuth access tokens in a SQLite database, keyed by a
// local name such as the member name.
type TokenStore struct {
	db *sql.DB
}

// StoredToken is a row of the token store.
type StoredToken struct {
	Name      string
	Token     *oauth.Token
	UpdatedAt time.Time
}

// Open opens (creating if needed) the token database at dbPath.
func Open(dbPath string) (*TokenStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &TokenStore{db: db}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

// createTables creates the necessary database tables
func (s *TokenStore) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS tokens (
			name TEXT PRIMARY KEY,
			token_key TEXT NOT NULL,
			token_secret TEXT NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query %s: %w", query, err)
		}
	}
	return nil
}

// Save stores token under name, replacing any previous token.
func (s *TokenStore) Save(ctx context.Context, name string, token *oauth.Token) error {
	if name == "" {
		return fmt.Errorf("token name is empty")
	}
	if token == nil || token.Key == "" || token.Secret == "" {
		return fmt.Errorf("token %q: %w", name, oauth.ErrMissingToken)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO tokens (name, token_key, token_secret, updated_at)
		VALUES (?, ?, ?, ?)
	`, name, token.Key, token.Secret, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save token %q: %w", name, err)
	}
	return nil
}

// Load returns the token stored under name.
func (s *TokenStore) Load(ctx context.Context, name string) (*oauth.Token, error) {
	var tok oauth.Token
	err := s.db.QueryRowContext(ctx, `
		SELECT token_key, token_secret FROM tokens WHERE name = ?
	`, name).Scan(&tok.Key, &tok.Secret)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%q: %w", name, ErrTokenNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load token %q: %w", name, err)
	}
	return &tok, nil
}

// Delete removes the token stored under name. Deleting a missing token is
// not an error.
func (s *TokenStore) Delete(ctx context.Context, name string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM tokens WHERE name = ?`, name); err != nil {
		return fmt.Errorf("failed to delete token %q: %w", name, err)
	}
	return nil
}

// List returns every stored token ordered by name.
func (s *TokenStore) List(ctx context.Context) ([]StoredToken, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, token_key, token_secret, updated_at FROM tokens ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query tokens: %w", err)
	}
	defer rows.Close()

	var tokens []StoredToken
	for rows.Next() {
		var st StoredToken
		tok := &oauth.Token{}
		if err := rows.Scan(&st.Name, &tok.Key, &tok.Secret, &st.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan token: %w", err)
		}
		st.Token = tok
		tokens = append(tokens, st)
	}
	return tokens, rows.Err()
}

// Close closes the database
func (s *TokenStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
