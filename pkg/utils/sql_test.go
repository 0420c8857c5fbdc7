package utils

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	_ "modernc.org/sqlite"
)

func openMemory(t *testing.T) *sql.DB {
	t.Helper()
	db, err := OpenSQL(context.Background(), DriverSQLite, ":memory:", SQLPoolConfig{})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if _, err := db.Exec(`CREATE TABLE kv (k TEXT PRIMARY KEY, v TEXT NOT NULL)`); err != nil {
		t.Fatalf("create: %v", err)
	}
	return db
}

func countRows(t *testing.T, db *sql.DB) int {
	t.Helper()
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM kv`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func TestWithTx_CommitsOnSuccess(t *testing.T) {
	db := openMemory(t)

	err := WithTx(context.Background(), db, nil, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO kv (k, v) VALUES (?, ?)`, "a", "1")
		return err
	})
	if err != nil {
		t.Fatalf("tx: %v", err)
	}
	if n := countRows(t, db); n != 1 {
		t.Fatalf("expected 1 row, got %d", n)
	}
}

func TestWithTx_RollbackOnError(t *testing.T) {
	db := openMemory(t)
	boom := errors.New("boom")

	err := WithTx(context.Background(), db, nil, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO kv (k, v) VALUES (?, ?)`, "a", "1"); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if n := countRows(t, db); n != 0 {
		t.Fatalf("expected rollback, got %d rows", n)
	}
}

func TestWithTx_RollbackOnPanic(t *testing.T) {
	db := openMemory(t)

	func() {
		defer func() {
			if recover() == nil {
				t.Fatalf("expected panic to propagate")
			}
		}()
		_ = WithTx(context.Background(), db, nil, func(ctx context.Context, tx *sql.Tx) error {
			_, _ = tx.ExecContext(ctx, `INSERT INTO kv (k, v) VALUES (?, ?)`, "a", "1")
			panic("boom")
		})
	}()

	if n := countRows(t, db); n != 0 {
		t.Fatalf("expected rollback, got %d rows", n)
	}
}

func TestOpenSQL_RejectsUnknownDriver(t *testing.T) {
	if _, err := OpenSQL(context.Background(), "mysql", "x", SQLPoolConfig{}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestRebind(t *testing.T) {
	q := `UPDATE s SET a = ?, b = ? WHERE id = ?`
	if got := Rebind(DriverSQLite, q); got != q {
		t.Fatalf("sqlite query must be unchanged, got %q", got)
	}
	want := `UPDATE s SET a = $1, b = $2 WHERE id = $3`
	if got := Rebind(DriverPostgres, q); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}
