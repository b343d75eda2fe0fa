// Package migrate applies the SQL schema files shipped with the service.
// Applied files are recorded in a bookkeeping table and never re-run.
package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const defaultTable = "schema_migrations"

// Runner executes SQL migration files from a directory in lexical order.
type Runner struct {
	db    *sql.DB
	dir   string
	table string
}

// Option configures Runner.
type Option func(*Runner)

// WithTable overrides the bookkeeping table name.
func WithTable(name string) Option {
	return func(r *Runner) {
		if name != "" {
			r.table = name
		}
	}
}

// New constructs a Runner.
func New(db *sql.DB, dir string, opts ...Option) *Runner {
	r := &Runner{db: db, dir: dir, table: defaultTable}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Apply runs every pending .sql file inside a transaction and records it.
// It returns the names of the migrations applied.
func (r *Runner) Apply(ctx context.Context) ([]string, error) {
	if r.db == nil {
		return nil, fmt.Errorf("migrate: database connection is required")
	}
	if _, err := r.db.ExecContext(ctx, fmt.Sprintf(
		`create table if not exists %s (name text primary key, applied_at timestamptz not null default now())`,
		r.table)); err != nil {
		return nil, fmt.Errorf("migrate: ensure bookkeeping table: %w", err)
	}

	names, err := r.pending(ctx)
	if err != nil {
		return nil, err
	}

	var applied []string
	for _, name := range names {
		raw, err := os.ReadFile(filepath.Join(r.dir, name))
		if err != nil {
			return applied, fmt.Errorf("migrate: read %s: %w", name, err)
		}
		if err := r.applyOne(ctx, name, string(raw)); err != nil {
			return applied, err
		}
		applied = append(applied, name)
	}
	return applied, nil
}

func (r *Runner) pending(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, fmt.Errorf("migrate: read dir %s: %w", r.dir, err)
	}
	seen, err := r.appliedSet(ctx)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		if _, ok := seen[entry.Name()]; ok {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

func (r *Runner) appliedSet(ctx context.Context) (map[string]struct{}, error) {
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`select name from %s`, r.table))
	if err != nil {
		return nil, fmt.Errorf("migrate: list applied: %w", err)
	}
	defer rows.Close()

	seen := make(map[string]struct{})
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		seen[name] = struct{}{}
	}
	return seen, rows.Err()
}

func (r *Runner) applyOne(ctx context.Context, name, script string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("migrate: begin %s: %w", name, err)
	}
	if _, err := tx.ExecContext(ctx, script); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("migrate: apply %s: %w", name, err)
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`insert into %s (name) values ($1)`, r.table), name); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("migrate: record %s: %w", name, err)
	}
	return tx.Commit()
}
