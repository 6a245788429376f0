// Package pkginfo builds complete catalog entries for installer items.
package pkginfo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ralt/pkgimport/internal/dmg"
	"github.com/ralt/pkgimport/internal/models"
	"github.com/ralt/pkgimport/internal/scanner"
	"github.com/ralt/pkgimport/internal/utils"
	"github.com/ralt/pkgimport/internal/version"
	"github.com/sirupsen/logrus"
)

const (
	// PlaceholderVersion marks entries whose version needs a human
	PlaceholderVersion = "1.0.0.0.0 (Please edit me!)"
	// DefaultMinimumOSVersion is the floor for minimum_os_version
	DefaultMinimumOSVersion = "10.4.0"
)

// DiskImageReader reads metadata from a disk image
type DiskImageReader interface {
	Metadata(imagePath string, opts dmg.Options) (*models.PkgInfo, error)
}

// PackageReader reads metadata from an installer package
type PackageReader interface {
	Metadata(path string) (*models.PkgInfo, error)
}

// Options control a single Build
type Options struct {
	// NoPkg marks an entry without installer item as nopkg
	NoPkg bool
	// PkgName and Item select what to import from a disk image
	PkgName string
	Item    string
}

// Builder turns installer items into catalog entries
type Builder struct {
	Config   *models.Config
	Images   DiskImageReader
	Packages PackageReader

	// Now and User feed the _metadata audit trail
	Now  func() time.Time
	User func() string
}

// NewBuilder creates a builder using the wall clock and $USER
func NewBuilder(cfg *models.Config, images DiskImageReader, packages PackageReader) *Builder {
	return &Builder{
		Config:   cfg,
		Images:   images,
		Packages: packages,
		Now:      time.Now,
		User:     currentUser,
	}
}

func currentUser() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "unknown_user"
}

// Build returns the catalog entry for the installer item at path. An empty
// path builds an entry without installer item.
func (b *Builder) Build(path string, opts Options) (*models.PkgInfo, error) {
	var entry *models.PkgInfo
	if path != "" {
		var err error
		if entry, err = b.itemEntry(path, opts); err != nil {
			return nil, err
		}
	} else {
		entry = &models.PkgInfo{}
		if opts.NoPkg {
			entry.InstallerType = models.InstallerTypeNoPkg
		}
	}

	entry.Catalogs = b.Config.DefaultCatalogs()

	autoremove := false
	entry.Autoremove = &autoremove
	if entry.Version == "" {
		entry.Version = PlaceholderVersion
	}

	if entry.InstallerType != models.InstallerTypeStageOSInstaller && len(entry.Installs) > 0 {
		versions := []string{DefaultMinimumOSVersion}
		if entry.MinimumOSVersion != "" {
			versions = append(versions, entry.MinimumOSVersion)
		}
		for _, rec := range entry.Installs {
			if rec.MinOSVersion != "" {
				versions = append(versions, rec.MinOSVersion)
			}
		}
		entry.MinimumOSVersion = version.Max(versions...)
	}
	if entry.MinimumOSVersion == "" {
		entry.MinimumOSVersion = DefaultMinimumOSVersion
	}

	entry.Metadata = &models.Audit{
		CreatedBy:    b.user(),
		CreationDate: b.now(),
	}
	return entry, nil
}

func (b *Builder) itemEntry(path string, opts Options) (*models.PkgInfo, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, models.NewError(models.ErrInstallerItemMissing, path, err)
	}

	var (
		size int64
		hash string
	)
	if fi.Mode().IsRegular() {
		if size, err = utils.SizeKB(path); err != nil {
			return nil, fmt.Errorf("failed to size %s: %w", path, err)
		}
		if hash, err = utils.SHA256File(path); err != nil {
			return nil, fmt.Errorf("failed to hash %s: %w", path, err)
		}
	}

	kind, err := scanner.DetectItemType(path)
	if err != nil {
		return nil, models.NewError(models.ErrInstallerItemMissing, path, err)
	}
	logrus.Debugf("%s is a %s", path, kind)

	var entry *models.PkgInfo
	switch {
	case kind == scanner.TypeDiskImage:
		entry, err = b.Images.Metadata(path, dmg.Options{PkgName: opts.PkgName, Item: opts.Item})
	case kind.IsPackage():
		entry, err = b.Packages.Metadata(path)
		if err == nil && fi.IsDir() {
			logrus.Warnf("%s is a bundle-style package! To use it, you should encapsulate it in a disk image.", path)
			if size, err = utils.TreeSizeKB(path); err != nil {
				return nil, fmt.Errorf("failed to size %s: %w", path, err)
			}
		}
	default:
		return nil, models.NewError(models.ErrUnsupportedInstallerItem, path,
			errors.New("not a valid installer item"))
	}
	if err != nil {
		return nil, err
	}

	entry.InstallerItemSize = size
	entry.InstallerItemHash = hash
	entry.InstallerItemLocation = ItemLocation(path)

	if entry.UninstallMethod == "" && len(entry.Receipts) > 0 {
		entry.Uninstallable = true
		entry.UninstallMethod = models.UninstallRemovePackages
	}
	return entry, nil
}

// ItemLocation returns the part of path below its innermost pkgs
// directory, or the base name when path is not inside one
func ItemLocation(path string) string {
	for dir := filepath.Dir(path); len(dir) > 4; dir = filepath.Dir(dir) {
		if strings.HasSuffix(dir, "/pkgs") {
			return path[len(dir)+1:]
		}
	}
	return filepath.Base(path)
}

func (b *Builder) now() time.Time {
	if b.Now == nil {
		return time.Now()
	}
	return b.Now()
}

func (b *Builder) user() string {
	if b.User == nil {
		return currentUser()
	}
	return b.User()
}
