package cli

import (
	"fmt"

	"github.com/ralt/pkgimport/internal/repo"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// NewFindCmd creates the find command
func NewFindCmd() *cobra.Command {
	var flags entryFlags

	cmd := &cobra.Command{
		Use:   "find ITEM",
		Short: "Find the catalog entry an installer item corresponds to",
		Long: `Builds the pkginfo of an installer item and looks it up in the repository
catalog by installer item hash, receipts, installed application, profile
identifier and installer item name. The matching entry is printed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			r, err := repo.Open(cfg.RepoURL)
			if err != nil {
				return err
			}

			candidate, err := newBuilder(cfg).Build(args[0], flags.options())
			if err != nil {
				return err
			}
			flags.apply(candidate)

			idx, err := loadIndex(r)
			if err != nil {
				return err
			}
			match, ok := idx.Find(candidate)
			if !ok {
				logrus.Infof("No existing item matches %s", args[0])
				return nil
			}

			logrus.Infof("%s matches %s-%s", args[0], match.Name, match.Version)
			if match.InstallerItemHash != "" && match.InstallerItemHash == candidate.InstallerItemHash {
				fmt.Fprintln(cmd.ErrOrStderr(), "This item is identical to one already in the repository.")
			}
			return writePlist(cmd, match)
		},
	}
	flags.register(cmd)

	return cmd
}
