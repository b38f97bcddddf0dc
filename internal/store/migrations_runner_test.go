package store

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"testing/fstest"

	"github.com/jackc/pgx/v5"

	"github.com/ProfDrJones/journals/internal/migrations"
)

func TestLoadMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"10_later.sql": {Data: []byte("SELECT 10;")},
		"2_second.sql": {Data: []byte("SELECT 2;")},
		"001_init.sql": {Data: []byte("SELECT 1;")},
		"README.md":    {Data: []byte("not a migration")},
	}

	list, err := loadMigrations(fsys)
	if err != nil {
		t.Fatalf("loadMigrations: %v", err)
	}
	var names []string
	for _, m := range list {
		names = append(names, m.name)
	}
	want := []string{"001_init.sql", "2_second.sql", "10_later.sql"}
	if len(names) != len(want) {
		t.Fatalf("got %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("got %v, want %v", names, want)
		}
	}
	if list[0].version != 1 || len(list[0].checksum) != 64 {
		t.Fatalf("unexpected first migration %+v", list[0])
	}
}

func TestLoadMigrationsRejectsBadNames(t *testing.T) {
	testCases := map[string]fstest.MapFS{
		"no version":        {"init.sql": {Data: []byte("SELECT 1;")}},
		"zero version":      {"000_init.sql": {Data: []byte("SELECT 1;")}},
		"duplicate version": {"001_a.sql": {Data: []byte("SELECT 1;")}, "1_b.sql": {Data: []byte("SELECT 2;")}},
	}
	for name, fsys := range testCases {
		t.Run(name, func(t *testing.T) {
			if _, err := loadMigrations(fsys); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}

func embeddedInit(t *testing.T) migration {
	t.Helper()
	list, err := loadMigrations(migrations.Files)
	if err != nil {
		t.Fatalf("loadMigrations: %v", err)
	}
	if len(list) != 1 || list[0].name != "001_init.sql" {
		t.Fatalf("unexpected embedded migrations %+v", list)
	}
	return list[0]
}

func migrationPool(t *testing.T, txs ...*mockTx) *mockPool {
	return &mockPool{
		t: t,
		execs: []execExpectation{
			{expect: regexp.MustCompile("CREATE TABLE IF NOT EXISTS schema_migrations")},
		},
		txs: txs,
	}
}

func lockExpectation() execExpectation {
	return execExpectation{expect: regexp.MustCompile(`pg_advisory_xact_lock\(\$1, 0\)`), args: []any{migrationLockClass}}
}

func checksumQuery(version int, value any, err error) queryExpectation {
	return queryExpectation{
		expect: regexp.MustCompile("SELECT checksum FROM schema_migrations WHERE version=\\$1"),
		args:   []any{version},
		value:  value,
		err:    err,
	}
}

func TestApplyMigrationsFreshDatabase(t *testing.T) {
	first := embeddedInit(t)
	tx := &mockTx{
		execs: []execExpectation{
			lockExpectation(),
			{expect: regexp.MustCompile("-- Initial schema for Journals")},
			{expect: regexp.MustCompile("INSERT INTO schema_migrations"), args: []any{1, "001_init.sql", first.checksum}},
		},
		queries: []queryExpectation{checksumQuery(1, nil, pgx.ErrNoRows)},
	}
	pool := migrationPool(t, tx)

	if err := ApplyMigrations(context.Background(), pool); err != nil {
		t.Fatalf("ApplyMigrations: %v", err)
	}
	pool.assertDone()
	tx.assertDone(t)
	if !tx.committed {
		t.Fatal("expected the migration to be committed")
	}
}

func TestApplyMigrationsAlreadyApplied(t *testing.T) {
	first := embeddedInit(t)
	tx := &mockTx{
		execs:   []execExpectation{lockExpectation()},
		queries: []queryExpectation{checksumQuery(1, first.checksum, nil)},
	}
	pool := migrationPool(t, tx)

	if err := ApplyMigrations(context.Background(), pool); err != nil {
		t.Fatalf("ApplyMigrations: %v", err)
	}
	pool.assertDone()
	tx.assertDone(t)
	if !tx.committed || tx.rolled {
		t.Fatalf("expected a clean commit, committed=%v rolled=%v", tx.committed, tx.rolled)
	}
}

func TestApplyMigrationsDetectsModifiedMigration(t *testing.T) {
	tx := &mockTx{
		execs:   []execExpectation{lockExpectation()},
		queries: []queryExpectation{checksumQuery(1, "0000", nil)},
	}
	pool := migrationPool(t, tx)

	err := ApplyMigrations(context.Background(), pool)
	if !errors.Is(err, ErrMigrationChanged) {
		t.Fatalf("expected ErrMigrationChanged, got %v", err)
	}
	if !tx.rolled {
		t.Fatal("expected a rollback")
	}
}

func TestApplyMigrationsRollsBackOnFailure(t *testing.T) {
	tx := &mockTx{
		execs: []execExpectation{
			lockExpectation(),
			{expect: regexp.MustCompile("-- Initial schema for Journals"), err: errors.New("syntax error")},
		},
		queries: []queryExpectation{checksumQuery(1, nil, pgx.ErrNoRows)},
	}
	pool := migrationPool(t, tx)

	if err := ApplyMigrations(context.Background(), pool); err == nil {
		t.Fatal("expected migration failure to be reported")
	}
	if !tx.rolled || tx.committed {
		t.Fatalf("expected rollback, committed=%v rolled=%v", tx.committed, tx.rolled)
	}
}
