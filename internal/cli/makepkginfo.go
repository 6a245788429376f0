package cli

import (
	"github.com/spf13/cobra"
)

// NewMakePkgInfoCmd creates the makepkginfo command
func NewMakePkgInfoCmd() *cobra.Command {
	var flags entryFlags

	cmd := &cobra.Command{
		Use:   "makepkginfo [ITEM]",
		Short: "Print the pkginfo of an installer item",
		Long: `Extracts metadata from a package or disk image and prints the resulting
pkginfo as a property list. Nothing is written to the repository.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			item, err := flags.itemArg(args)
			if err != nil {
				return err
			}
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			entry, err := newBuilder(cfg).Build(item, flags.options())
			if err != nil {
				return err
			}
			flags.apply(entry)
			return writePlist(cmd, entry)
		},
	}
	flags.register(cmd)

	return cmd
}
