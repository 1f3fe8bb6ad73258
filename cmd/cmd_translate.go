package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/qbloq/mongobridge/core"
)

var (
	stmtArgs  []string
	canonical bool
)

// translateCmd creates the translate command
func translateCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "translate <statement-file>...",
		Short: "Print the MongoDB commands for statement files",
		Long: `Translate statement files, written in YAML or JSON, into MongoDB commands
and print each command as one line of extended JSON. Use - to read
a statement from stdin. Nothing is sent to the database.`,
		Args: cobra.MinimumNArgs(1),
		Run:  cmdTranslate,
	}
	c.Flags().StringArrayVar(&stmtArgs, "arg", nil, "statement argument as a YAML value, $1 is the first")
	c.Flags().BoolVar(&canonical, "canonical", false, "print canonical instead of relaxed extended JSON")
	return c
}

func cmdTranslate(cmd *cobra.Command, files []string) {
	setup(cpath)

	args, err := parseArgs(stmtArgs)
	if err != nil {
		log.Fatalf("%s", err)
	}

	var texts []string
	for _, f := range files {
		t, err := readStatement(f)
		if err != nil {
			log.Fatalf("%s", err)
		}
		texts = append(texts, t)
	}

	if err := translateStatements(cmd.Context(), cmd.OutOrStdout(), svc.Engine(), texts, args, canonical); err != nil {
		log.Fatalf("%s", err)
	}
}

// translateStatements translates every statement with the same arguments
// and writes one extended JSON command per line, in input order
func translateStatements(ctx context.Context, w io.Writer, e *core.Engine, texts []string, args []any, canonical bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	items := make([]core.BatchItem, len(texts))
	for i, t := range texts {
		items[i] = core.BatchItem{Query: t, Args: args}
	}

	cmds, err := e.TranslateBatch(ctx, items)
	if err != nil {
		return err
	}

	for _, c := range cmds {
		b, err := c.ExtJSON(canonical)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "%s\n", b); err != nil {
			return err
		}
	}
	return nil
}

// parseArgs decodes each argument as a YAML value, so 1 is an integer,
// [1, 2] a list and "1" a string
func parseArgs(raw []string) ([]any, error) {
	args := make([]any, len(raw))
	for i, r := range raw {
		if err := yaml.Unmarshal([]byte(r), &args[i]); err != nil {
			return nil, fmt.Errorf("argument $%d: %w", i+1, err)
		}
	}
	return args, nil
}
