package commands

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/idxtools/db"
	"github.com/teranos/idxtools/errors"
	"github.com/teranos/idxtools/logger"
)

func newDumpCmd(g *globals) *cobra.Command {
	var dbPath string
	cmd := &cobra.Command{
		Use:   "dump --db <file>",
		Short: "Dump the index into a SQLite database",
		Long: `Write the index into the datasets, metadata, files and file_attrs tables
of a SQLite database. Earlier content of those tables is replaced.

Examples:
  idxtools dump --db index.sqlite
  sqlite3 index.sqlite "SELECT path FROM files WHERE type = 'bam'"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if dbPath == "" {
				return errors.NewValidationError("--db is required")
			}
			ix, cleanup, err := g.openIndex(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer cleanup()

			conn, err := db.OpenWithMigrations(dbPath, logger.Logger)
			if err != nil {
				return err
			}
			defer conn.Close()

			stats, err := db.Dump(cmd.Context(), conn, ix)
			if err != nil {
				return err
			}
			pterm.Success.WithWriter(cmd.OutOrStdout()).Printfln("dumped %d datasets and %d files to %s",
				stats.Datasets, stats.Files, dbPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database file to write")
	return cmd
}
