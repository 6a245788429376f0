package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ralt/pkgimport/internal/models"
	"github.com/ralt/pkgimport/internal/pkginfo"
	"github.com/ralt/pkgimport/internal/repo"
	"github.com/ralt/pkgimport/internal/signer"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// importOptions holds the import command settings
type importOptions struct {
	entry        entryFlags
	subdirectory string
	force        bool
}

// NewImportCmd creates the import command
func NewImportCmd() *cobra.Command {
	var opts importOptions

	cmd := &cobra.Command{
		Use:   "import ITEM",
		Short: "Import an installer item into the repository",
		Long: `Builds the pkginfo of an installer item, compares it with the repository
catalog, copies the item under pkgs/ and saves the pkginfo under pkgsinfo/.
Descriptive fields of a matching catalog entry are carried over. An item
identical to one already imported is skipped unless --force is given.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			item, err := opts.entry.itemArg(args)
			if err != nil {
				return err
			}
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			logrus.Info("Starting import...")
			dest, err := runImport(cfg, item, &opts)
			if err != nil {
				return err
			}
			if dest != "" {
				fmt.Fprintln(cmd.OutOrStdout(), dest)
			}
			return nil
		},
	}

	opts.entry.register(cmd)
	cmd.Flags().StringVarP(&opts.subdirectory, "subdirectory", "d", "", "Repository subdirectory for the item and its pkginfo")
	cmd.Flags().BoolVarP(&opts.force, "force", "f", false, "Import even if an identical item is already in the repository")

	return cmd
}

// runImport imports item and returns the repository path of the saved
// pkginfo, or "" when the item was skipped
func runImport(cfg *models.Config, item string, opts *importOptions) (string, error) {
	if strings.Contains(opts.subdirectory, "..") {
		return "", models.NewError(models.ErrInvalidConfig, opts.subdirectory, errors.New("subdirectory must stay inside the repository"))
	}

	r, err := repo.Open(cfg.RepoURL)
	if err != nil {
		return "", err
	}

	// Initialize signer before doing any work
	var sig signer.Signer
	if cfg.GPGKeyPath != "" {
		gpg, err := signer.NewGPGSigner(cfg.GPGKeyPath, cfg.GPGPassphrase)
		if err != nil {
			return "", models.NewError(models.ErrInvalidConfig, cfg.GPGKeyPath,
				fmt.Errorf("failed to initialize GPG signer: %w", err))
		}
		sig = gpg
		logrus.Infof("GPG signer initialized with key %s", gpg.KeyID())
		if _, err := repo.PublishKey(r, sig); err != nil {
			return "", err
		}
	}

	entry, err := newBuilder(cfg).Build(item, opts.entry.options())
	if err != nil {
		return "", err
	}

	idx, err := loadIndex(r)
	if err != nil {
		return "", err
	}
	if match, ok := idx.Find(entry); ok {
		logrus.Infof("Matched existing item %s-%s", match.Name, match.Version)
		if match.InstallerItemHash != "" && match.InstallerItemHash == entry.InstallerItemHash && !opts.force {
			logrus.Warnf("%s is identical to %s in the repository, skipping", item, match.InstallerItemLocation)
			return "", nil
		}
		inherit(entry, match)
	}
	opts.entry.apply(entry)

	if item != "" {
		vers := entry.Version
		if vers == pkginfo.PlaceholderVersion {
			vers = ""
		}
		copied, err := repo.CopyItem(r, item, vers, opts.subdirectory)
		if err != nil {
			return "", err
		}
		entry.InstallerItemLocation = strings.TrimPrefix(copied, repo.KindPkgs+"/")
	}

	saved, err := repo.SavePkgInfo(r, entry, opts.subdirectory, repo.SaveOptions{
		Extension: cfg.PkgInfoExtension,
		Signer:    sig,
	})
	if err != nil {
		return "", err
	}
	logrus.Infof("Saved pkginfo to %s", saved)
	return saved, nil
}

// inherit copies the fields a human set on a previous version of the
// same item
func inherit(entry, match *models.PkgInfo) {
	if match.Name != "" {
		entry.Name = match.Name
	}
	if entry.DisplayName == "" {
		entry.DisplayName = match.DisplayName
	}
	if entry.Description == "" {
		entry.Description = match.Description
	}
}
