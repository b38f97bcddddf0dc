package store

import (
	"context"
	"fmt"
	"reflect"
	"regexp"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type queryExpectation struct {
	expect *regexp.Regexp
	args   []any
	value  any
	// values holds one entry per scanned column; rows feeds Query.
	values []any
	rows   [][]any
	err    error
}

type execExpectation struct {
	expect *regexp.Regexp
	args   []any
	tag    string
	err    error
}

// popQuery takes the next expectation off queue and checks sql and args
// against it.
func popQuery(queue *[]queryExpectation, sql string, args []any) (queryExpectation, error) {
	if len(*queue) == 0 {
		return queryExpectation{}, fmt.Errorf("unexpected query: %s", sql)
	}
	exp := (*queue)[0]
	*queue = (*queue)[1:]
	if !exp.expect.MatchString(sql) {
		return queryExpectation{}, fmt.Errorf("query %q does not match %s", sql, exp.expect)
	}
	if err := matchArgs(exp.args, args); err != nil {
		return queryExpectation{}, fmt.Errorf("query %q: %w", sql, err)
	}
	return exp, nil
}

func popExec(queue *[]execExpectation, sql string, args []any) (execExpectation, error) {
	if len(*queue) == 0 {
		return execExpectation{}, fmt.Errorf("unexpected exec: %s", sql)
	}
	exp := (*queue)[0]
	*queue = (*queue)[1:]
	if !exp.expect.MatchString(sql) {
		return execExpectation{}, fmt.Errorf("exec %q does not match %s", sql, exp.expect)
	}
	if err := matchArgs(exp.args, args); err != nil {
		return execExpectation{}, fmt.Errorf("exec %q: %w", sql, err)
	}
	return exp, nil
}

// matchArgs compares positional arguments. A nil expectation matches any
// value; an empty list skips the check.
func matchArgs(expected, actual []any) error {
	if len(expected) == 0 {
		return nil
	}
	if len(expected) != len(actual) {
		return fmt.Errorf("expected %d arguments, got %d", len(expected), len(actual))
	}
	for i, exp := range expected {
		if exp != nil && exp != actual[i] {
			return fmt.Errorf("argument %d: expected %v (%T), got %v (%T)", i, exp, exp, actual[i], actual[i])
		}
	}
	return nil
}

func commandTag(exp execExpectation) pgconn.CommandTag {
	if exp.tag != "" {
		return pgconn.NewCommandTag(exp.tag)
	}
	return pgconn.NewCommandTag("MOCK")
}

type mockPool struct {
	t       *testing.T
	queries []queryExpectation
	execs   []execExpectation
	txs     []*mockTx
	txIdx   int
}

func (m *mockPool) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	exp, err := popQuery(&m.queries, sql, args)
	if err != nil {
		m.t.Fatal(err)
	}
	return mockRow{value: exp.value, values: exp.values, err: exp.err}
}

func (m *mockPool) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	exp, err := popQuery(&m.queries, sql, args)
	if err != nil {
		m.t.Fatal(err)
	}
	if exp.err != nil {
		return nil, exp.err
	}
	return &mockRows{rows: exp.rows}, nil
}

func (m *mockPool) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	exp, err := popExec(&m.execs, sql, arguments)
	if err != nil {
		m.t.Fatal(err)
	}
	return commandTag(exp), exp.err
}

func (m *mockPool) BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error) {
	if m.txIdx >= len(m.txs) {
		m.t.Fatal("unexpected transaction")
	}
	tx := m.txs[m.txIdx]
	m.txIdx++
	tx.started = true
	return tx, nil
}

func (m *mockPool) Ping(ctx context.Context) error { return nil }

func (m *mockPool) assertDone() {
	m.t.Helper()
	if len(m.queries) != 0 {
		m.t.Fatalf("pending queries: %v", m.queries)
	}
	if len(m.execs) != 0 {
		m.t.Fatalf("pending execs: %v", m.execs)
	}
	if m.txIdx != len(m.txs) {
		m.t.Fatalf("expected %d transactions, got %d", len(m.txs), m.txIdx)
	}
}

type mockRow struct {
	value  any
	values []any
	err    error
}

func (m mockRow) Scan(dest ...any) error {
	if m.err != nil {
		return m.err
	}
	values := m.values
	if values == nil {
		values = []any{m.value}
	}
	return scanInto(values, dest)
}

func scanInto(values, dest []any) error {
	if len(dest) != len(values) {
		return fmt.Errorf("scan into %d destinations, have %d values", len(dest), len(values))
	}
	for i, v := range values {
		target := reflect.ValueOf(dest[i])
		if target.Kind() != reflect.Pointer || target.IsNil() {
			return fmt.Errorf("destination %d is not a pointer", i)
		}
		elem := target.Elem()
		if v == nil {
			elem.Set(reflect.Zero(elem.Type()))
			continue
		}
		val := reflect.ValueOf(v)
		if !val.Type().AssignableTo(elem.Type()) {
			return fmt.Errorf("cannot scan %T into %s", v, elem.Type())
		}
		elem.Set(val)
	}
	return nil
}

type mockRows struct {
	rows   [][]any
	idx    int
	closed bool
}

func (m *mockRows) Close()                                       { m.closed = true }
func (m *mockRows) Err() error                                   { return nil }
func (m *mockRows) CommandTag() pgconn.CommandTag                { return pgconn.NewCommandTag("SELECT") }
func (m *mockRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (m *mockRows) RawValues() [][]byte                          { return nil }
func (m *mockRows) Conn() *pgx.Conn                              { return nil }

func (m *mockRows) Next() bool {
	if m.closed || m.idx >= len(m.rows) {
		m.closed = true
		return false
	}
	m.idx++
	return true
}

func (m *mockRows) Scan(dest ...any) error {
	return scanInto(m.rows[m.idx-1], dest)
}

func (m *mockRows) Values() ([]any, error) {
	return m.rows[m.idx-1], nil
}

// mockTx reports mismatches as errors so the code under test exercises its
// rollback path.
type mockTx struct {
	execs     []execExpectation
	queries   []queryExpectation
	started   bool
	committed bool
	rolled    bool
}

func (m *mockTx) Begin(ctx context.Context) (pgx.Tx, error) {
	return nil, fmt.Errorf("unexpected nested begin")
}

func (m *mockTx) Commit(ctx context.Context) error {
	m.committed = true
	return nil
}

func (m *mockTx) Rollback(ctx context.Context) error {
	if !m.committed {
		m.rolled = true
	}
	return nil
}

func (m *mockTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, fmt.Errorf("unexpected CopyFrom")
}

func (m *mockTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	return emptyBatchResults{}
}

func (m *mockTx) LargeObjects() pgx.LargeObjects { return pgx.LargeObjects{} }

func (m *mockTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, fmt.Errorf("unexpected Prepare")
}

func (m *mockTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	exp, err := popExec(&m.execs, sql, arguments)
	if err != nil {
		return pgconn.CommandTag{}, err
	}
	return commandTag(exp), exp.err
}

func (m *mockTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, fmt.Errorf("unexpected query")
}

func (m *mockTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	exp, err := popQuery(&m.queries, sql, args)
	if err != nil {
		return mockRow{err: err}
	}
	return mockRow{value: exp.value, values: exp.values, err: exp.err}
}

func (m *mockTx) Conn() *pgx.Conn { return nil }

func (m *mockTx) assertDone(t *testing.T) {
	t.Helper()
	if len(m.execs) != 0 {
		t.Fatalf("pending tx execs: %v", m.execs)
	}
	if len(m.queries) != 0 {
		t.Fatalf("pending tx queries: %v", m.queries)
	}
	if !m.committed && !m.rolled {
		t.Fatal("transaction not finished")
	}
}

type emptyBatchResults struct{}

func (emptyBatchResults) Exec() (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, fmt.Errorf("unexpected batch exec")
}
func (emptyBatchResults) Query() (pgx.Rows, error) { return nil, fmt.Errorf("unexpected batch query") }
func (emptyBatchResults) QueryRow() pgx.Row {
	return mockRow{err: fmt.Errorf("unexpected batch queryrow")}
}
func (emptyBatchResults) Close() error { return nil }
