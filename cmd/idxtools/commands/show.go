package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/idxtools/errors"
	"github.com/teranos/idxtools/format"
	"github.com/teranos/idxtools/index"
	"github.com/teranos/idxtools/logger"
	"github.com/teranos/idxtools/query"
	"github.com/teranos/idxtools/source"
	"github.com/teranos/idxtools/watch"
)

type showOptions struct {
	absolute     bool
	count        bool
	exact        bool
	mapKeys      bool
	tags         []string
	types        []string
	showMissing  bool
	output       string
	outputFormat string
	header       bool
	anyOf        bool
	allTags      bool
	pretty       bool
	watch        bool
}

func newShowCmd(g *globals) *cobra.Command {
	o := &showOptions{}
	cmd := &cobra.Command{
		Use:   "show [key=value...]",
		Short: "Show index entries matching a query",
		Long: `Show the datasets and files matching every key=value term.

Values are regular expressions unless --exact is given. A value starting
with >, >=, <, <=, == or != followed by an integer compares numerically.
Values holding ':' or spaces are lists and match any element.

Examples:
  idxtools show sex=F                      # metadata match
  idxtools show -e type=bam                # exact file type
  idxtools show 'age=>50' -t id,path       # numeric comparison, two columns
  idxtools show --or sex=F view=FqRd1      # either term
  idxtools show -f json lab=CRG            # JSON output`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(cmd, g, o, args)
		},
	}

	f := cmd.Flags()
	f.BoolVarP(&o.absolute, "absolute-path", "a", false, "Resolve file paths against the index directory")
	f.BoolVarP(&o.count, "count", "c", false, "Print the number of matching entries")
	f.BoolVarP(&o.exact, "exact", "e", false, "Match values exactly instead of as regular expressions")
	f.BoolVarP(&o.mapKeys, "map-keys", "m", false, "Rename attributes through the format key map")
	f.StringSliceVarP(&o.tags, "tags", "t", nil, "Attributes or templates to output, e.g. path,{id}_{view}")
	f.StringSliceVar(&o.types, "types", nil, "Only output files of these types")
	f.BoolVarP(&o.showMissing, "show-missing", "s", false, "Keep entries and pairs holding the missing value")
	f.StringVarP(&o.output, "output", "o", "", "Write to a file instead of stdout")
	f.StringVarP(&o.outputFormat, "output-format", "f", "", "Output format: index, tsv, csv, json, yaml")
	f.BoolVar(&o.header, "header", false, "Write a header line for tagged output")
	f.BoolVar(&o.anyOf, "or", false, "Match entries satisfying any term instead of all")
	f.BoolVar(&o.allTags, "all-tags", false, "List every attribute used in the index")
	f.BoolVar(&o.pretty, "pretty", false, "Render a table for terminals")
	f.BoolVar(&o.watch, "watch", false, "Render again whenever the index file changes")
	return cmd
}

func runShow(cmd *cobra.Command, g *globals, o *showOptions, args []string) error {
	f, err := g.format()
	if err != nil {
		return err
	}
	q, err := buildQuery(args, f, o.exact, o.anyOf)
	if err != nil {
		return err
	}

	outName := o.outputFormat
	if !cmd.Flags().Changed("output-format") {
		outName = g.cfg.OutputFormat
	}
	out, err := format.ParseOutput(outName)
	if err != nil {
		return err
	}
	opts := index.ExportOptions{
		Output:      out,
		Tags:        o.tags,
		Types:       o.types,
		Header:      o.header,
		HideMissing: !o.showMissing,
		Absolute:    o.absolute,
		MapKeys:     o.mapKeys || g.cfg.MapKeys,
	}

	w := cmd.OutOrStdout()
	if o.output != "" {
		file, err := os.Create(o.output)
		if err != nil {
			return errors.WrapIOf(err, "create %s", o.output)
		}
		defer file.Close()
		w = file
	}

	render := func(ctx context.Context) error {
		ix, cleanup, err := g.openIndex(ctx, false)
		if err != nil {
			return err
		}
		defer cleanup()
		return show(w, ix, q, o, opts)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := render(ctx); err != nil {
		return err
	}
	if !o.watch {
		return nil
	}
	return watchIndex(ctx, g, func() error { return render(ctx) })
}

// buildQuery turns command line terms into a predicate set.
func buildQuery(args []string, f *format.Format, exact, anyOf bool) (query.Set, error) {
	terms := splitTerms(args)
	if len(terms) == 0 {
		return query.Set{}, nil
	}
	rec, err := query.ParseTerms(terms)
	if err != nil {
		return query.Set{}, err
	}
	return query.FromAttrs(canonicalKeys(rec, f), exact, anyOf)
}

func show(w io.Writer, ix *index.Index, q query.Set, o *showOptions, opts index.ExportOptions) error {
	res := ix
	if !q.Empty() {
		var err error
		if res, err = ix.Lookup(q); err != nil {
			return err
		}
	}

	switch {
	case o.allTags:
		for _, tag := range res.AllTags() {
			if _, err := fmt.Fprintln(w, tag); err != nil {
				return errors.WrapIO(err, "write tags")
			}
		}
		return nil

	case o.count:
		rows, err := res.Rows(opts)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, len(rows))
		return errors.WrapIO(err, "write count")

	case o.pretty:
		return prettyTable(w, res, opts)

	default:
		return res.ExportTo(w, opts)
	}
}

// prettyTable renders the matching rows as a pterm table.
func prettyTable(w io.Writer, ix *index.Index, opts index.ExportOptions) error {
	header, cells, err := ix.Table(opts)
	if err != nil {
		return err
	}
	if len(cells) == 0 {
		return nil
	}
	data := append(pterm.TableData{header}, cells...)
	return errors.WrapIO(
		pterm.DefaultTable.WithHasHeader().WithBoxed().WithData(data).WithWriter(w).Render(),
		"render table")
}

// watchIndex calls render each time the index file changes, until ctx is
// cancelled.
func watchIndex(ctx context.Context, g *globals, render watch.ReloadFunc) error {
	if source.IsRemote(g.cfg.Index) {
		return errors.NewValidationError("cannot watch remote index %s", g.cfg.Index)
	}
	src, err := source.Resolve(ctx, g.cfg.Index, "", logger.Logger)
	if err != nil {
		return err
	}
	w, err := watch.New(src.Path, render,
		watch.WithLogger(logger.ComponentLogger("watch")),
		watch.WithRateLimit(watch.DefaultMaxReloadsPerMinute))
	if err != nil {
		return err
	}
	w.Start()
	logger.Infow("watching index", logger.FieldIndex, src.Path)
	<-ctx.Done()
	return w.Stop()
}
