package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/qbloq/mongobridge/core"
)

// execCmd creates the exec command
func execCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "exec <statement-file>",
		Short: "Run a statement against the database",
		Long: `Run a statement file against the configured database. Selects print one
JSON object per row, other statements print the number of affected rows.
Use - to read the statement from stdin.`,
		Args: cobra.ExactArgs(1),
		Run:  cmdExec,
	}
	c.Flags().StringArrayVar(&stmtArgs, "arg", nil, "statement argument as a YAML value, $1 is the first")
	return c
}

func cmdExec(cmd *cobra.Command, files []string) {
	setup(cpath)
	initDB()
	defer closeDB()

	args, err := parseArgs(stmtArgs)
	if err != nil {
		log.Fatalf("%s", err)
	}

	text, err := readStatement(files[0])
	if err != nil {
		log.Fatalf("%s", err)
	}

	ctx := context.Background()
	if err := execStatement(ctx, cmd.OutOrStdout(), svc.DB(), svc.Engine(), text, args); err != nil {
		log.Fatalf("%s", err)
	}
}

// execStatement runs text on db, as a query when it is a select
func execStatement(ctx context.Context, w io.Writer, db *sql.DB, e *core.Engine, text string, args []any) error {
	st, err := e.Prepare(text)
	if err != nil {
		return err
	}

	if st.Type != core.StmtSelect {
		res, err := db.ExecContext(ctx, text, args...)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(w, "%d row(s) affected\n", n)
		return err
	}

	rows, err := db.QueryContext(ctx, text, args...)
	if err != nil {
		return err
	}
	defer rows.Close() //nolint:errcheck

	return printRows(w, rows)
}

type rowScanner interface {
	Columns() ([]string, error)
	Next() bool
	Scan(dest ...any) error
	Err() error
}

// printRows writes each row as a JSON object keyed by column name
func printRows(w io.Writer, rows rowScanner) error {
	cols, err := rows.Columns()
	if err != nil {
		return err
	}

	enc := json.NewEncoder(w)
	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}

	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return err
		}
		row := make(map[string]any, len(cols))
		for i, c := range cols {
			row[c] = vals[i]
		}
		if err := enc.Encode(row); err != nil {
			return err
		}
	}
	return rows.Err()
}
