package main

import (
	"fmt"
	"io"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/qbloq/mongobridge/core"
	"github.com/qbloq/mongobridge/serv"
)

// checkCmd creates the check command
func checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the config and list the mapped entities",
		Long: `Bind the catalog described by the config. Mapping errors are reported the
same way the engine reports them at startup.`,
		Args: cobra.NoArgs,
		Run:  cmdCheck,
	}
}

func cmdCheck(cmd *cobra.Command, _ []string) {
	setup(cpath)

	if err := describeCatalog(cmd.OutOrStdout(), svc.Engine()); err != nil {
		log.Fatalf("%s", err)
	}
	log.Infof("config ok: %s", conf.ConfigFileUsed())
}

// describeCatalog prints every entity with its collection and columns
func describeCatalog(w io.Writer, e *core.Engine) error {
	for _, name := range e.Entities() {
		ent, _ := e.Entity(name)
		cols := ent.Columns()

		parts := make([]string, 0, len(cols))
		for _, c := range cols {
			parts = append(parts, fmt.Sprintf("%s %s", c.Name, c.Type))
		}

		if _, err := fmt.Fprintf(w, "%s -> %s (%s)\n",
			ent.Name, ent.Collection, strings.Join(parts, ", ")); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "catalog fingerprint %016x\n", e.Fingerprint())
	return err
}

// schemaCmd creates the schema command
func schemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON schema of the config file",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			if err := writeSchema(cmd.OutOrStdout()); err != nil {
				log.Fatalf("%s", err)
			}
		},
	}
}

func writeSchema(w io.Writer) error {
	b, err := json.MarshalIndent(serv.ConfigSchema(), "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\n", b)
	return err
}
