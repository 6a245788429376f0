package cli

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "pkgimport",
		Short: "Build catalog entries for macOS installer items and import them into a repository",
		Long: `Pkgimport reads flat and bundle packages, metapackages and disk images,
builds a pkginfo describing what they install, and matches it against the
entries already present in a repository catalog.

Supported installer items:
  - Flat packages (.pkg, .mpkg files)
  - Bundle packages and metapackages (.pkg, .mpkg directories)
  - Disk images (.dmg, .iso) carrying a package or an application`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Setup logging
			verbose, _ := cmd.Flags().GetBool("verbose")
			if verbose {
				logrus.SetLevel(logrus.DebugLevel)
			} else {
				logrus.SetLevel(logrus.InfoLevel)
			}
		},
	}

	// Global flags
	flags := rootCmd.PersistentFlags()
	flags.BoolP("verbose", "v", false, "Enable verbose logging")
	flags.StringP("config", "c", "", "Path to a config file (default $XDG_CONFIG_HOME/pkgimport/pkgimport.yaml)")
	flags.StringP("repo-url", "r", "", "Repository URL (file:// or a local path)")
	flags.String("default-catalog", "", "Catalog assigned to new pkginfo (default testing)")
	flags.String("pkginfo-extension", "", "Extension of saved pkginfo files (default .plist)")
	flags.String("seven-zip-path", "", "Path to the 7-Zip binary (default 7zz or 7z on $PATH)")
	flags.String("dmg2img-path", "", "Path to the dmg2img binary (default dmg2img on $PATH)")
	flags.Duration("extract-timeout", 0, "Timeout for a single extraction tool run (default 10m)")
	flags.StringP("gpg-key", "k", "", "Path to a GPG private key used to sign saved pkginfo")
	flags.StringP("gpg-passphrase", "p", "", "GPG key passphrase")

	// Add subcommands
	rootCmd.AddCommand(NewMakePkgInfoCmd())
	rootCmd.AddCommand(NewFindCmd())
	rootCmd.AddCommand(NewImportCmd())

	return rootCmd
}
