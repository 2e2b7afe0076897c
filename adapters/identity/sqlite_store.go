package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/layer-3/walletgate/adapters/identity/migrations"
	"github.com/layer-3/walletgate/core"
	"github.com/layer-3/walletgate/internal/eth"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements the IdentityStore interface over SQLite.
// The UNIQUE wallet_address column makes first logins race to a single row.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens the store at path and applies the bundled schema
func OpenSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	dsn := "file:" + filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return store, nil
}

// Close releases the underlying database
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	names, err := fs.Glob(migrations.FS, "*.sql")
	if err != nil {
		return err
	}
	sort.Strings(names)

	for _, name := range names {
		ddl, err := fs.ReadFile(migrations.FS, name)
		if err != nil {
			return err
		}
		if _, err := s.db.ExecContext(ctx, string(ddl)); err != nil {
			return fmt.Errorf("apply %s: %w", name, err)
		}
	}
	return nil
}

// FindOrCreate returns the identity for address, creating it on first use
func (s *SQLiteStore) FindOrCreate(ctx context.Context, address string) (*core.Identity, error) {
	key, err := eth.NormalizeAddress(address)
	if err != nil {
		return nil, err
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO identities (id, wallet_address, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(wallet_address) DO NOTHING`,
		uuid.New().String(), key, time.Now().UTC().UnixMilli(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert identity: %w", err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("insert identity: %w", err)
	}

	found, err := s.scanOne(ctx, `WHERE wallet_address = ?`, key)
	if err != nil {
		return nil, err
	}
	found.IsNewUser = inserted == 1

	return found, nil
}

// Get returns the identity with the given id
func (s *SQLiteStore) Get(ctx context.Context, id string) (*core.Identity, error) {
	return s.scanOne(ctx, `WHERE id = ?`, id)
}

func (s *SQLiteStore) scanOne(ctx context.Context, where string, arg any) (*core.Identity, error) {
	var (
		ident     core.Identity
		username  sql.NullString
		picture   sql.NullString
		createdAt int64
	)

	row := s.db.QueryRowContext(ctx,
		`SELECT id, wallet_address, username, profile_picture_url, created_at FROM identities `+where, arg)
	if err := row.Scan(&ident.ID, &ident.WalletAddress, &username, &picture, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select identity: %w", err)
	}

	ident.WalletAddress = checksum(ident.WalletAddress)
	ident.CreatedAt = time.UnixMilli(createdAt).UTC()
	if username.Valid {
		ident.Username = &username.String
	}
	if picture.Valid {
		ident.ProfilePictureURL = &picture.String
	}

	return &ident, nil
}
