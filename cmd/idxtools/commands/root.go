// Package commands implements the idxtools command line.
package commands

import (
	"context"

	"github.com/kballard/go-shellquote"
	"github.com/spf13/cobra"

	"github.com/teranos/idxtools/attrs"
	"github.com/teranos/idxtools/config"
	"github.com/teranos/idxtools/errors"
	"github.com/teranos/idxtools/format"
	"github.com/teranos/idxtools/index"
	"github.com/teranos/idxtools/logger"
	"github.com/teranos/idxtools/query"
	"github.com/teranos/idxtools/source"
)

// globals holds the persistent flags and the configuration they override.
type globals struct {
	indexPath  string
	formatFile string
	logLevel   string
	verbose    int
	jsonLogs   bool

	cfg *config.Config
}

// NewRootCmd builds the idxtools command tree.
func NewRootCmd() *cobra.Command {
	g := &globals{}

	root := &cobra.Command{
		Use:   "idxtools",
		Short: "Manage and query index files",
		Long: `idxtools - Manage and query index files.

An index file lists datasets and their files, one tag line per entry:

  a_1.fastq<TAB>id=1; type=fastq; view=FqRd1; sex=M;

Configuration sources (later overrides earlier):
  1. Built-in defaults
  2. User config (~/.idxtools/config.yml)
  3. Project config (indexfile.yml, .yaml or .toml, searched upwards)
  4. Environment variables (IDX_* prefix, IDX_FILE for the index)
  5. Command line flags

Examples:
  idxtools -i index.txt show sex=F                # datasets with sex F
  idxtools -i index.txt show -t path,view type=bam
  idxtools -i index.txt add path=a.bam id=1 type=bam view=Alignments
  idxtools -i index.txt rm a.bam
  idxtools -i index.txt dump --db index.sqlite`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return g.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logger.Cleanup()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&g.indexPath, "index", "i", "", "Index file path or remote address (default $IDX_FILE)")
	pf.StringVarP(&g.formatFile, "format", "F", "", "Format file, or inline JSON/YAML (default $IDX_FORMAT)")
	pf.StringVar(&g.logLevel, "loglevel", "", "Log level: debug, info, warn, error")
	pf.CountVarP(&g.verbose, "verbose", "v", "Increase output verbosity (-v, -vv)")
	pf.BoolVar(&g.jsonLogs, "log-json", false, "Write logs as JSON")

	root.AddCommand(
		newShowCmd(g),
		newAddCmd(g),
		newRemoveCmd(g),
		newDumpCmd(g),
		newUnlockCmd(g),
		newConfigCmd(g),
		newVersionCmd(),
	)
	return root
}

// setup loads the configuration, applies flag overrides and starts logging.
func (g *globals) setup(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}
	merged := *cfg
	// Subcommands may shadow a persistent flag name, so ask the root flag set.
	flags := cmd.Root().PersistentFlags()
	if flags.Changed("index") {
		merged.Index = g.indexPath
	}
	if flags.Changed("format") {
		merged.FormatFile = g.formatFile
	}
	if flags.Changed("loglevel") {
		merged.LogLevel = g.logLevel
	}
	g.cfg = &merged

	if err := logger.Initialize(g.jsonLogs, logger.ResolveLevel(merged.LogLevel, g.verbose)); err != nil {
		return errors.Wrap(err, "failed to initialize logger")
	}
	return nil
}

func (g *globals) format() (*format.Format, error) {
	return g.cfg.Format()
}

// openIndex resolves and loads the configured index. Remote indexes are
// downloaded first and refused when the caller wants to write.
func (g *globals) openIndex(ctx context.Context, writable bool) (*index.Index, func(), error) {
	if g.cfg.Index == "" {
		return nil, nil, errors.WithHint(
			errors.NewValidationError("no index file given"),
			"pass -i <file> or set IDX_FILE")
	}
	f, err := g.format()
	if err != nil {
		return nil, nil, err
	}

	src, err := source.Resolve(ctx, g.cfg.Index, "", logger.Logger)
	if err != nil {
		return nil, nil, err
	}
	if src.Remote && writable {
		src.Cleanup()
		return nil, nil, errors.WithHint(
			errors.NewValidationError("index %s is remote and cannot be modified", g.cfg.Index),
			"download it and point -i at the local copy")
	}

	ix, err := index.Open(src.Path, f, index.WithLogger(logger.ComponentLogger("index")))
	if err != nil {
		src.Cleanup()
		return nil, nil, err
	}
	return ix, src.Cleanup, nil
}

// splitTerms expands arguments holding shell-quoted terms, such as
// 'sex=F desc="a b"'. An argument that does not split into terms only is
// kept whole.
func splitTerms(args []string) []string {
	var out []string
	for _, arg := range args {
		words, err := shellquote.Split(arg)
		if err != nil || len(words) == 0 || !allTerms(words) {
			out = append(out, arg)
			continue
		}
		out = append(out, words...)
	}
	return out
}

// canonicalKeys renames keys naming the configured id, path or type
// descriptors to the names the index stores them under.
func canonicalKeys(rec attrs.Attrs, f *format.Format) attrs.Attrs {
	out := make(attrs.Attrs, len(rec))
	for k, v := range rec {
		out[f.Canonical(k)] = v
	}
	return out
}

func allTerms(words []string) bool {
	for _, w := range words {
		if !query.IsTerm(w) {
			return false
		}
	}
	return true
}
