package cli

import (
	"errors"

	"github.com/ralt/pkgimport/internal/catalog"
	"github.com/ralt/pkgimport/internal/config"
	"github.com/ralt/pkgimport/internal/dmg"
	"github.com/ralt/pkgimport/internal/extract"
	"github.com/ralt/pkgimport/internal/models"
	"github.com/ralt/pkgimport/internal/pkg"
	"github.com/ralt/pkgimport/internal/pkginfo"
	"github.com/ralt/pkgimport/internal/repo"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"howett.net/plist"
)

// entryFlags are the item selection and override flags shared by the
// commands that build an entry
type entryFlags struct {
	pkgName     string
	item        string
	nopkg       bool
	name        string
	displayName string
	description string
	catalogs    []string
}

func (f *entryFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.pkgName, "pkgname", "", "Package to use inside a disk image, relative to its root")
	cmd.Flags().StringVar(&f.item, "item", "", "Drag-and-drop item to use inside a disk image, relative to its root")
	cmd.Flags().BoolVar(&f.nopkg, "nopkg", false, "Build an entry without installer item")
	cmd.Flags().StringVar(&f.name, "name", "", "Override the entry name")
	cmd.Flags().StringVar(&f.displayName, "displayname", "", "Set the display name")
	cmd.Flags().StringVar(&f.description, "description", "", "Set the description")
	cmd.Flags().StringSliceVar(&f.catalogs, "catalog", nil, "Catalogs to assign (default from configuration)")
}

func (f *entryFlags) options() pkginfo.Options {
	return pkginfo.Options{NoPkg: f.nopkg, PkgName: f.pkgName, Item: f.item}
}

func (f *entryFlags) apply(entry *models.PkgInfo) {
	if f.name != "" {
		entry.Name = f.name
	}
	if f.displayName != "" {
		entry.DisplayName = f.displayName
	}
	if f.description != "" {
		entry.Description = f.description
	}
	if len(f.catalogs) > 0 {
		entry.Catalogs = f.catalogs
	}
}

// itemArg returns the installer item named on the command line, or ""
// for a nopkg entry
func (f *entryFlags) itemArg(args []string) (string, error) {
	if len(args) == 0 {
		if !f.nopkg {
			return "", models.NewError(models.ErrInvalidConfig, "", errors.New("an installer item is required unless --nopkg is given"))
		}
		return "", nil
	}
	return args[0], nil
}

func loadConfig(cmd *cobra.Command) (*models.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, used, err := config.Load(config.LoadOptions{ConfigFilePath: path, Flags: cmd.Flags()})
	if err != nil {
		return nil, err
	}
	if used != "" {
		logrus.Debugf("Using config file %s", used)
	}
	return cfg, nil
}

// newBuilder wires the extraction tools, the package and disk image
// handlers and the entry builder
func newBuilder(cfg *models.Config) *pkginfo.Builder {
	sevenZip := extract.NewSevenZip(cfg.SevenZipPath, cfg.ExtractTimeout)
	dmg2img := extract.NewDmg2Img(cfg.Dmg2ImgPath, cfg.ExtractTimeout)

	// Flat packages are XAR archives; 7-Zip covers the variants the
	// built-in reader does not
	chain := extract.Chain{extract.Xar{}}
	if sevenZip != nil {
		chain = append(chain, sevenZip)
	} else {
		logrus.Debug("7-Zip not found, disk images cannot be extracted")
	}

	images := &extract.ImageExtractor{Extractor: sevenZip, Converter: dmg2img}
	packages := pkg.NewHandler(chain)
	return pkginfo.NewBuilder(cfg, dmg.NewHandler(images, packages), packages)
}

// loadIndex indexes the repository's all catalog. A repository without
// catalog yields an empty index.
func loadIndex(r repo.Repo) (*catalog.Index, error) {
	idx, err := catalog.Load(r)
	if err == nil {
		logrus.Debugf("Matching against %d catalog entries", idx.Len())
		return idx, nil
	}
	if !errors.Is(err, models.ErrCatalogUnavailable) {
		return nil, err
	}

	logrus.Debugf("No catalog: %v", err)
	if infos, lerr := r.ItemList(repo.KindPkgsInfo); lerr == nil && len(infos) > 0 {
		logrus.Warnf("The repository has %d pkginfo files but no catalog, matches will be missed until catalogs are rebuilt", len(infos))
	}
	return catalog.Build(nil), nil
}

func writePlist(cmd *cobra.Command, v any) error {
	data, err := plist.MarshalIndent(v, plist.XMLFormat, "\t")
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(append(data, '\n'))
	return err
}
