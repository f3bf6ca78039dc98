package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/aussiebroadwan/shopauth/internal/auth/store"
	_ "modernc.org/sqlite"
)

// dbtx is the subset of *sql.DB and *sql.Tx the repos need, so the same
// repo code serves both transactional and plain access.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Store struct {
	db  *sql.DB
	dsn string
}

func NewStore(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	// Enforce FKs
	if _, err := db.ExecContext(context.Background(), `PRAGMA foreign_keys = ON;`); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{
		db:  db,
		dsn: dsn,
	}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Ping verifies the database connection is still alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Tx starts a read/write transaction and returns a Tx-scoped Store.
func (s *Store) Tx(ctx context.Context) (store.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return newTx(tx), nil
}

// WithTx executes fn within a transaction, automatically handling commit/rollback.
func (s *Store) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	tx, err := s.Tx(ctx)
	if err != nil {
		return err
	}

	// Ensure rollback is called if we panic or return early with error
	defer func() {
		_ = tx.Rollback() // safe to call even after commit
	}()

	// Execute the function
	if err := fn(tx); err != nil {
		return err // rollback happens in defer
	}

	// Commit on success
	return tx.Commit()
}

func (s *Store) Users() store.Users                         { return &usersRepo{db: s.db} }
func (s *Store) RefreshTokens() store.RefreshTokens         { return &refreshTokensRepo{db: s.db} }
func (s *Store) AccessTokens() store.AccessTokens           { return &accessTokensRepo{db: s.db} }
func (s *Store) ImpersonationLogs() store.ImpersonationLogs { return &impersonationLogsRepo{db: s.db} }
func (s *Store) Sessions() store.Sessions                   { return &sessionsRepo{db: s.db} }

func mapNotFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

func joinAbilities(abilities []string) string {
	return strings.Join(abilities, " ")
}

func splitAbilities(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return strings.Fields(s)
}

// scopeBlob is the JSON stored in refresh_tokens.scopes. It carries the
// token's human-readable name alongside the ability list so personal
// tokens can be listed without another table.
type scopeBlob struct {
	TokenName string   `json:"token_name,omitempty"`
	Scopes    []string `json:"scopes,omitempty"`
}

func encodeScopeBlob(name string, abilities []string) (string, error) {
	raw, err := json.Marshal(scopeBlob{TokenName: name, Scopes: abilities})
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func decodeScopeBlob(raw string) (name string, abilities []string) {
	if raw == "" {
		return "", nil
	}
	var blob scopeBlob
	if err := json.Unmarshal([]byte(raw), &blob); err != nil {
		return "", nil
	}
	return blob.TokenName, blob.Scopes
}

func encodeMetadata(m map[string]string) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func decodeMetadata(raw string) map[string]string {
	if raw == "" || raw == "{}" {
		return nil
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil
	}
	return m
}

// requireRow maps a zero rows-affected result onto ErrNotFound for
// updates and deletes that target one row by id.
func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func mapNullTimePtr(nt sql.NullTime) *time.Time {
	if nt.Valid {
		val := nt.Time
		return &val
	}
	return nil
}

func mapOptionalTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{Valid: false}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
