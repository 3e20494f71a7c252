package commands

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/idxtools/errors"
	"github.com/teranos/idxtools/lockfile"
	"github.com/teranos/idxtools/source"
)

func newUnlockCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "unlock",
		Short: "Break a stale index lock",
		Long: `Remove the lock file left behind by a process that died while writing
the index. The holder recorded in the lock is printed first; make sure it
is no longer running.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if g.cfg.Index == "" {
				return errors.NewValidationError("no index file given")
			}
			if source.IsRemote(g.cfg.Index) {
				return errors.NewValidationError("index %s is remote and has no lock", g.cfg.Index)
			}
			src, err := source.Resolve(cmd.Context(), g.cfg.Index, "", nil)
			if err != nil {
				return err
			}
			target := src.Path
			out := cmd.OutOrStdout()

			holder, err := lockfile.Inspect(target)
			if err != nil {
				return err
			}
			if holder == nil {
				pterm.Info.WithWriter(out).Printfln("%s is not locked", target)
				return nil
			}
			pterm.Warning.WithWriter(out).Printfln("lock held by pid %d on %s since %s",
				holder.PID, holder.Host, holder.Acquired.Format("2006-01-02 15:04:05"))

			if _, err := lockfile.Break(target); err != nil {
				return err
			}
			pterm.Success.WithWriter(out).Printfln("%s unlocked", target)
			return nil
		},
	}
}
