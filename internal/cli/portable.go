package cli

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/cypress/internal/sqlstore"
)

func newExportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "export <dir>",
		Short: "Write every table to JSONL files in dir",
		Args:  argsRule(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := a.openBackend()
			if err != nil {
				return err
			}
			defer b.Detach()

			counts, err := b.Export(contextOf(cmd), args[0])
			if err != nil {
				return sysError(err)
			}
			return a.printCounts(cmd.OutOrStdout(), "Exported", args[0], counts)
		},
	}
}

func newImportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import <dir>",
		Short: "Load JSONL files from dir, skipping rows that already exist",
		Args:  argsRule(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := a.openBackend()
			if err != nil {
				return err
			}
			defer b.Detach()

			counts, err := b.Import(contextOf(cmd), args[0])
			if err != nil {
				return sysError(err)
			}
			return a.printCounts(cmd.OutOrStdout(), "Imported", args[0], counts)
		},
	}
}

func (a *app) printCounts(w io.Writer, verb, dir string, counts sqlstore.Counts) error {
	out := struct {
		Dir    string          `json:"dir"`
		Counts sqlstore.Counts `json:"counts"`
		Total  int             `json:"total"`
	}{dir, counts, counts.Total()}
	return a.print(w, out, func(w io.Writer) {
		tables := make([]string, 0, len(counts))
		for t := range counts {
			tables = append(tables, t)
		}
		sort.Strings(tables)
		for _, t := range tables {
			fmt.Fprintf(w, "%-14s %d\n", t, counts[t])
		}
		fmt.Fprintf(w, "%s %d rows (%s)\n", verb, out.Total, dir)
	})
}
