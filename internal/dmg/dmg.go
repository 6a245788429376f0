// Package dmg reads catalog metadata out of disk images, either from the
// installer package they carry or from a drag-and-drop application.
package dmg

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/ralt/pkgimport/internal/bundle"
	"github.com/ralt/pkgimport/internal/extract"
	"github.com/ralt/pkgimport/internal/models"
	"github.com/ralt/pkgimport/internal/scanner"
	"github.com/sirupsen/logrus"
)

// ApplicationsDir is where drag-and-drop items are installed
const ApplicationsDir = "/Applications"

// ImageExtractor unpacks a disk image into a workspace owned by the caller
type ImageExtractor interface {
	Extract(image string) (*extract.Workspace, error)
}

// PackageReader reads metadata from an installer package
type PackageReader interface {
	Metadata(path string) (*models.PkgInfo, error)
}

// Options select what to import from an image
type Options struct {
	// PkgName is a package path relative to the image root
	PkgName string
	// Item is a drag-and-drop item, relative to the image root
	Item string
}

// Handler builds catalog entries for disk images
type Handler struct {
	Images   ImageExtractor
	Packages PackageReader
}

// NewHandler creates a disk image handler
func NewHandler(images ImageExtractor, packages PackageReader) *Handler {
	return &Handler{Images: images, Packages: packages}
}

// Metadata extracts imagePath and builds an entry for the package or
// application it holds. The extracted workspace is always removed before
// returning.
func (h *Handler) Metadata(imagePath string, opts Options) (*models.PkgInfo, error) {
	ws, err := h.Images.Extract(imagePath)
	if err != nil {
		return nil, err
	}
	defer ws.Release()

	root := ws.Root
	logrus.Infof("Extracted %s at %s", filepath.Base(imagePath), root)

	entry, err := h.packageEntry(root, opts)
	if err != nil {
		return nil, err
	}
	if entry != nil {
		return entry, nil
	}

	// Maybe this is a drag-and-drop image
	return dragAndDropEntry(imagePath, root, opts.Item)
}

// packageEntry returns nil without error when the image holds no package
// worth importing
func (h *Handler) packageEntry(root string, opts Options) (*models.PkgInfo, error) {
	if opts.PkgName != "" {
		path := filepath.Join(root, opts.PkgName)
		entry, err := h.packageAt(path)
		if err != nil || entry == nil {
			return entry, err
		}
		entry.PackagePath = opts.PkgName
		return entry, nil
	}
	if opts.Item != "" {
		return nil, nil
	}

	// First installer item at the root
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, models.NewError(models.ErrExtractionFailure, root, err)
	}
	for _, e := range entries {
		path := filepath.Join(root, e.Name())
		if !scanner.HasInstallerItemExt(path) {
			continue
		}
		entry, err := h.packageAt(path)
		if err != nil || entry != nil {
			return entry, err
		}
		break
	}

	// Many images wrap the installer in a folder
	if m, ok := scanner.FindFirstPackage(root); ok {
		entry, err := h.packageAt(m.Path)
		if err != nil || entry == nil {
			return entry, err
		}
		entry.PackagePath = m.RelPath
		return entry, nil
	}
	return nil, nil
}

func (h *Handler) packageAt(path string) (*models.PkgInfo, error) {
	if !scanner.HasPackageExt(path) {
		return nil, nil
	}
	if _, err := os.Stat(path); err != nil {
		logrus.Warnf("%s not found on disk image", filepath.Base(path))
		return nil, nil
	}
	return h.Packages.Metadata(path)
}

func dragAndDropEntry(imagePath, root, item string) (*models.PkgInfo, error) {
	var (
		rel  string
		path string
	)

	if item != "" {
		var ok bool
		path, rel, ok = resolveItem(root, item)
		if !ok {
			return nil, models.NewError(models.ErrItemNotFound, item, errors.New("not found on disk image"))
		}
	} else if m, ok := scanner.FindFirstApp(root); ok {
		path, rel = m.Path, m.RelPath
	} else {
		return nil, models.NewError(models.ErrItemNotFound, imagePath,
			errors.New("no installer package or application found on disk image"))
	}

	rec := bundle.GetItemInfo(path)
	base := filepath.Base(rel)
	rec.Path = filepath.Join(ApplicationsDir, base)

	name := rec.CFBundleName
	if name == "" {
		name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	vers := rec.ComparisonVersion()
	if vers == "" {
		vers = "0"
	}

	return &models.PkgInfo{
		Name:          name,
		Version:       vers,
		Installs:      []models.InstallRecord{rec},
		InstallerType: models.InstallerTypeCopyFromDmg,
		ItemsToCopy: []models.ItemToCopy{{
			SourceItem:      rel,
			DestinationPath: ApplicationsDir,
		}},
		Uninstallable:   true,
		UninstallMethod: models.UninstallRemoveCopiedItems,
	}, nil
}

// resolveItem locates a requested item inside root. Absolute paths are
// accepted as long as they point inside root.
func resolveItem(root, item string) (path, rel string, ok bool) {
	if filepath.IsAbs(item) {
		path = filepath.Clean(item)
	} else {
		path = filepath.Join(root, item)
	}

	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", "", false
	}
	if _, err := os.Lstat(path); err != nil {
		return "", "", false
	}
	return path, rel, true
}
