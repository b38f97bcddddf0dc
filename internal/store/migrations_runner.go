package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ProfDrJones/journals/internal/migrations"
)

// PgxPool is the subset of pgxpool.Pool needed to run migrations.
type PgxPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// ErrMigrationChanged is returned when an applied migration no longer
// matches the embedded file.
var ErrMigrationChanged = errors.New("applied migration was modified")

// migrationLockClass namespaces the advisory lock taken while migrating.
// The two-key form keeps it apart from the per-user locks.
const migrationLockClass int32 = 0x4a524e4c

type migration struct {
	version  int
	name     string
	sql      string
	checksum string
}

// ApplyMigrations applies every embedded migration that is not yet recorded
// in schema_migrations, in version order. Each migration runs in its own
// transaction under an advisory lock, so concurrent servers starting against
// the same database apply it once.
func ApplyMigrations(ctx context.Context, pool PgxPool) error {
	list, err := loadMigrations(migrations.Files)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		return nil
	}
	if err := ensureMigrationTable(ctx, pool); err != nil {
		return err
	}
	for _, m := range list {
		if err := applyMigration(ctx, pool, m); err != nil {
			return err
		}
	}
	return nil
}

// loadMigrations reads NNN_description.sql files from fsys.
func loadMigrations(fsys fs.FS) ([]migration, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}

	seen := make(map[int]string)
	var list []migration
	for _, entry := range entries {
		if entry.IsDir() || path.Ext(entry.Name()) != ".sql" {
			continue
		}
		name := entry.Name()
		prefix, _, ok := strings.Cut(name, "_")
		version, err := strconv.Atoi(prefix)
		if !ok || err != nil || version <= 0 {
			return nil, fmt.Errorf("migration %s: name must start with a positive version number", name)
		}
		if other, dup := seen[version]; dup {
			return nil, fmt.Errorf("migrations %s and %s share version %d", other, name, version)
		}
		seen[version] = name

		contents, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", name, err)
		}
		sum := sha256.Sum256(contents)
		list = append(list, migration{
			version:  version,
			name:     name,
			sql:      string(contents),
			checksum: hex.EncodeToString(sum[:]),
		})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].version < list[j].version })
	return list, nil
}

func ensureMigrationTable(ctx context.Context, pool PgxPool) error {
	const q = `CREATE TABLE IF NOT EXISTS schema_migrations (
        version INTEGER PRIMARY KEY,
        name TEXT NOT NULL,
        checksum TEXT NOT NULL,
        applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`
	if _, err := pool.Exec(ctx, q); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}
	return nil
}

func applyMigration(ctx context.Context, pool PgxPool, m migration) (err error) {
	tx, err := pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin migration %s: %w", m.name, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1, 0)`, migrationLockClass); err != nil {
		return fmt.Errorf("lock migrations: %w", err)
	}

	var applied string
	err = tx.QueryRow(ctx, `SELECT checksum FROM schema_migrations WHERE version=$1`, m.version).Scan(&applied)
	switch {
	case err == nil:
		if applied != m.checksum {
			return fmt.Errorf("%w: %s", ErrMigrationChanged, m.name)
		}
		return tx.Commit(ctx)
	case !errors.Is(err, pgx.ErrNoRows):
		return fmt.Errorf("check migration %s: %w", m.name, err)
	}

	if _, err = tx.Exec(ctx, m.sql); err != nil {
		return fmt.Errorf("apply migration %s: %w", m.name, err)
	}
	const record = `INSERT INTO schema_migrations (version, name, checksum) VALUES ($1, $2, $3)`
	if _, err = tx.Exec(ctx, record, m.version, m.name, m.checksum); err != nil {
		return fmt.Errorf("record migration %s: %w", m.name, err)
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit migration %s: %w", m.name, err)
	}
	return nil
}
