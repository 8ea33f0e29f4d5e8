package migrator

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DumpSchema writes a plain-SQL snapshot of the public schema: tables with
// columns, indexes, function bodies and trigger definitions. It reproduces
// what the database actually holds after migrations ran, so drift between
// migrations and the committed schema file is visible in review.
func DumpSchema(ctx context.Context, pool *pgxpool.Pool, w io.Writer) error {
	fmt.Fprintln(w, "-- Generated by cmd/migrate. Do not edit by hand.")
	fmt.Fprintln(w)

	tables, err := listTables(ctx, pool)
	if err != nil {
		return fmt.Errorf("list tables: %w", err)
	}

	for _, table := range tables {
		if err := dumpTable(ctx, pool, w, table); err != nil {
			return fmt.Errorf("dump table %s: %w", table, err)
		}
	}

	if err := dumpFunctions(ctx, pool, w); err != nil {
		return fmt.Errorf("dump functions: %w", err)
	}
	if err := dumpTriggers(ctx, pool, w); err != nil {
		return fmt.Errorf("dump triggers: %w", err)
	}
	return nil
}

func listTables(ctx context.Context, pool *pgxpool.Pool) ([]string, error) {
	rows, err := pool.Query(ctx, `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = 'public' AND table_type = 'BASE TABLE'
		ORDER BY table_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

func dumpTable(ctx context.Context, pool *pgxpool.Pool, w io.Writer, table string) error {
	rows, err := pool.Query(ctx, `
		SELECT column_name, data_type, is_nullable, column_default
		FROM information_schema.columns
		WHERE table_schema = 'public' AND table_name = $1
		ORDER BY ordinal_position`, table)
	if err != nil {
		return err
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var name, dataType, nullable string
		var colDefault *string
		if err := rows.Scan(&name, &dataType, &nullable, &colDefault); err != nil {
			return err
		}
		col := fmt.Sprintf("    %s %s", name, dataType)
		if colDefault != nil {
			col += " DEFAULT " + *colDefault
		}
		if nullable == "NO" {
			col += " NOT NULL"
		}
		cols = append(cols, col)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	fmt.Fprintf(w, "CREATE TABLE %s (\n%s\n);\n\n", table, strings.Join(cols, ",\n"))

	idxRows, err := pool.Query(ctx, `
		SELECT indexdef
		FROM pg_indexes
		WHERE schemaname = 'public' AND tablename = $1
		ORDER BY indexname`, table)
	if err != nil {
		return err
	}
	defer idxRows.Close()

	for idxRows.Next() {
		var def string
		if err := idxRows.Scan(&def); err != nil {
			return err
		}
		fmt.Fprintf(w, "%s;\n", def)
	}
	fmt.Fprintln(w)
	return idxRows.Err()
}

func dumpFunctions(ctx context.Context, pool *pgxpool.Pool, w io.Writer) error {
	rows, err := pool.Query(ctx, `
		SELECT pg_get_functiondef(p.oid)
		FROM pg_proc p
		JOIN pg_namespace n ON n.oid = p.pronamespace
		WHERE n.nspname = 'public' AND p.prokind = 'f'
		ORDER BY p.proname`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var def string
		if err := rows.Scan(&def); err != nil {
			return err
		}
		fmt.Fprintf(w, "%s;\n\n", strings.TrimRight(def, "\n"))
	}
	return rows.Err()
}

func dumpTriggers(ctx context.Context, pool *pgxpool.Pool, w io.Writer) error {
	rows, err := pool.Query(ctx, `
		SELECT pg_get_triggerdef(t.oid)
		FROM pg_trigger t
		JOIN pg_class c ON c.oid = t.tgrelid
		JOIN pg_namespace n ON n.oid = c.relnamespace
		WHERE n.nspname = 'public' AND NOT t.tgisinternal
		ORDER BY t.tgname`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var def string
		if err := rows.Scan(&def); err != nil {
			return err
		}
		fmt.Fprintf(w, "%s;\n", def)
	}
	return rows.Err()
}
