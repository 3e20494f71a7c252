package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teranos/idxtools/attrs"
	"github.com/teranos/idxtools/errors"
	"github.com/teranos/idxtools/format"
	"github.com/teranos/idxtools/index"
	"github.com/teranos/idxtools/query"
)

func newRemoveCmd(g *globals) *cobra.Command {
	var clear bool
	cmd := &cobra.Command{
		Use:     "remove <key=value|path>...",
		Aliases: []string{"rm"},
		Short:   "Remove files or datasets from the index",
		Long: `Remove entries matching exact key=value terms. Bare arguments are file
paths. Terms on file attributes remove files; terms on metadata remove
whole datasets.

Examples:
  idxtools rm a_1.fastq a_2.fastq      # two files
  idxtools rm type=fastq               # every fastq file
  idxtools rm -c view=Alignments       # and drop datasets left empty
  idxtools rm id=3                     # a whole dataset`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := g.format()
			if err != nil {
				return err
			}
			q, err := removeQuery(args, f)
			if err != nil {
				return err
			}
			ix, cleanup, err := g.openIndex(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer cleanup()

			var removed int
			err = ix.WithLock(func(ix *index.Index) error {
				var err error
				removed, err = ix.Remove(q, clear)
				return err
			})
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "removed %d\n", removed)
			return errors.WrapIO(err, "write summary")
		},
	}
	cmd.Flags().BoolVarP(&clear, "clear", "c", false, "Drop datasets left without files")
	return cmd
}

// removeQuery builds an exact query from terms and bare paths.
func removeQuery(args []string, f *format.Format) (query.Set, error) {
	rec := attrs.Attrs{}
	var paths []string
	for _, arg := range splitTerms(args) {
		if !query.IsTerm(arg) {
			paths = append(paths, arg)
			continue
		}
		key, v, err := query.ParseTerm(arg)
		if err != nil {
			return query.Set{}, err
		}
		rec[f.Canonical(key)] = v
	}
	switch len(paths) {
	case 0:
	case 1:
		rec[format.KeyPath] = attrs.String(paths[0])
	default:
		rec[format.KeyPath] = attrs.Strings(paths...)
	}
	return query.FromAttrs(rec, true, false)
}
