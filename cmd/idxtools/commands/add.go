package commands

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/teranos/idxtools/attrs"
	"github.com/teranos/idxtools/codec"
	"github.com/teranos/idxtools/errors"
	"github.com/teranos/idxtools/index"
	"github.com/teranos/idxtools/logger"
	"github.com/teranos/idxtools/query"
)

type addOptions struct {
	metadataList string
	attributes   []string
	update       bool
	force        bool
}

func newAddCmd(g *globals) *cobra.Command {
	o := &addOptions{}
	cmd := &cobra.Command{
		Use:   "add [key=value...]",
		Short: "Add datasets and files to the index",
		Long: `Add one entry given as key=value terms, or many from a tab separated
metadata list. Entries with a path attribute add a file to the dataset
named by id; entries without one add or extend dataset metadata.

Examples:
  idxtools add path=a.bam id=1 type=bam view=Alignments
  idxtools add -u id=1 sex=F                    # change existing metadata
  idxtools add -u --force id=1 tissue=liver     # introduce a new attribute
  idxtools add -l samples.tsv                   # header row names attributes
  cut -f2- samples.tsv | idxtools add -l - -a id,sex,age`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdd(cmd, g, o, args)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&o.metadataList, "metadata-list", "l", "", "Tab separated list of entries, or - for stdin")
	f.StringSliceVarP(&o.attributes, "attributes", "a", nil, "Column names for a metadata list without header")
	f.BoolVarP(&o.update, "update", "u", false, "Update existing metadata and files")
	f.BoolVar(&o.force, "force", false, "Allow updates to introduce new attributes")
	return cmd
}

func runAdd(cmd *cobra.Command, g *globals, o *addOptions, args []string) error {
	terms := splitTerms(args)
	if len(terms) == 0 && o.metadataList == "" {
		return errors.WithHint(
			errors.NewValidationError("nothing to add"),
			"give key=value terms or a metadata list with -l")
	}

	var opts []index.InsertOption
	if o.update {
		opts = append(opts, index.Update())
	}
	if o.force {
		opts = append(opts, index.AddKeys())
	}

	var records []attrs.Attrs
	if len(terms) > 0 {
		rec, err := query.ParseTerms(terms)
		if err != nil {
			return err
		}
		records = append(records, rec)
	}

	ix, cleanup, err := g.openIndex(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer cleanup()
	for i, rec := range records {
		records[i] = canonicalKeys(rec, ix.Format())
	}

	if o.metadataList != "" {
		listed, err := readMetadataList(cmd.InOrStdin(), o.metadataList, o.attributes, ix)
		if err != nil {
			return err
		}
		records = append(records, listed...)
	}

	return ix.WithLock(func(ix *index.Index) error {
		for i, rec := range records {
			if _, err := ix.Insert(rec, opts...); err != nil {
				return errors.Wrapf(err, "entry %d", i+1)
			}
		}
		logger.Infow("entries added", logger.FieldIndex, ix.Path(), logger.FieldCount, len(records))
		return nil
	})
}

func readMetadataList(stdin io.Reader, name string, header []string, ix *index.Index) ([]attrs.Attrs, error) {
	r := stdin
	if name != "-" {
		file, err := os.Open(name)
		if err != nil {
			return nil, errors.WrapIOf(err, "open metadata list %s", name)
		}
		defer file.Close()
		r = file
	}

	var out []attrs.Attrs
	err := codec.ReadTable(r, '\t', header, ix.Format(), func(line int, rec attrs.Attrs) error {
		out = append(out, rec)
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "metadata list %s", name)
	}
	return out, nil
}
