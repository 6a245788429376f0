// Package pkg reads receipts and catalog metadata out of flat and bundle
// installer packages.
package pkg

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/ralt/pkgimport/internal/bundle"
	"github.com/ralt/pkgimport/internal/distribution"
	"github.com/ralt/pkgimport/internal/extract"
	"github.com/ralt/pkgimport/internal/models"
	"github.com/ralt/pkgimport/internal/scanner"
	"github.com/ralt/pkgimport/internal/utils"
	"github.com/sirupsen/logrus"
)

// Subdirectories of a bundle package searched for nested packages, in order
var bundleSearchDirs = []string{
	"",
	"Contents",
	"Contents/Installers",
	"Contents/Packages",
	"Contents/Resources",
	"Contents/Resources/Packages",
}

// Info is what the receipts of a package tell about it
type Info struct {
	Receipts       []models.Receipt
	ProductVersion string
}

// Handler reads installer packages. Flat packages are unpacked with
// Extractor into a private workspace.
type Handler struct {
	Extractor extract.Extractor
	parser    *distribution.Parser
}

// NewHandler creates a handler unpacking flat packages with ex
func NewHandler(ex extract.Extractor) *Handler {
	h := &Handler{Extractor: ex}
	h.parser = distribution.NewParser(h)
	return h
}

// ReceiptInfo returns the receipts a .pkg, .mpkg or .dist would leave
func (h *Handler) ReceiptInfo(path string) (*Info, error) {
	w := distribution.NewWalk()
	w.Enter(path)
	defer w.Leave(path)
	return h.receiptInfo(path, w)
}

// NestedReceipts implements distribution.Resolver
func (h *Handler) NestedReceipts(path string, w *distribution.Walk) []models.Receipt {
	info, err := h.receiptInfo(path, w)
	if err != nil {
		logrus.Warnf("Skipping nested package %s: %v", path, err)
		return nil
	}
	return info.Receipts
}

func (h *Handler) receiptInfo(path string, w *distribution.Walk) (*Info, error) {
	switch {
	case scanner.HasPackageExt(path) && utils.IsFile(path):
		ws, err := h.unpack(path)
		if err != nil {
			return nil, err
		}
		defer ws.Release()
		return h.flatInfo(ws.Root, path, w), nil

	case scanner.HasPackageExt(path) && utils.IsDir(path):
		return &Info{Receipts: h.bundleReceipts(path, w)}, nil

	case strings.HasSuffix(path, ".dist"):
		receipts, err := h.parser.ParseWalk(path, "", w)
		if err != nil {
			logrus.Warnf("%v", err)
		}
		return &Info{Receipts: receipts}, nil
	}

	if !utils.Exists(path) {
		return nil, models.NewError(models.ErrInstallerItemMissing, path, os.ErrNotExist)
	}
	return nil, models.NewError(models.ErrUnsupportedInstallerItem, path, errors.New("not a .pkg, .mpkg or .dist"))
}

// unpack extracts a flat package. The caller must Release the workspace.
func (h *Handler) unpack(path string) (*extract.Workspace, error) {
	if !scanner.HasXarHeader(path) {
		return nil, models.NewError(models.ErrExtractionFailure, path, errors.New("not a flat package: missing xar header"))
	}
	ws, err := extract.NewWorkspace("pkg_", path)
	if err != nil {
		return nil, models.NewError(models.ErrExtractionFailure, path, err)
	}
	if h.Extractor == nil || !h.Extractor.Extract(path, ws.Dir) {
		ws.Release()
		return nil, models.NewError(models.ErrExtractionFailure, path, errors.New("could not unpack flat package"))
	}
	return ws, nil
}

// flatInfo reads an unpacked flat package rooted at root. Nested references
// in its Distribution resolve against the original package path.
func (h *Handler) flatInfo(root, pkgPath string, w *distribution.Walk) *Info {
	info := &Info{}

	// Component packages describe themselves in PackageInfo
	for _, doc := range scanner.FindFiles(root, "PackageInfo") {
		receipts, err := h.parser.ParseWalk(doc, "", w)
		if err != nil {
			logrus.Warnf("%v", err)
			continue
		}
		info.Receipts = append(info.Receipts, receipts...)
	}

	dist := findDistribution(root)
	if len(info.Receipts) == 0 && dist != "" {
		receipts, err := h.parser.ParseWalk(dist, pkgPath, w)
		if err != nil {
			logrus.Warnf("%v", err)
		}
		info.Receipts = receipts
	}
	if len(info.Receipts) == 0 {
		logrus.Warnf("No receipts found in Distribution or PackageInfo files within %s", filepath.Base(pkgPath))
	}

	if dist != "" {
		if v, ok := distribution.ProductVersion(dist); ok {
			info.ProductVersion = v
		}
	}
	return info
}

// findDistribution prefers the top-level Distribution over nested ones
func findDistribution(root string) string {
	top := filepath.Join(root, "Distribution")
	if utils.IsFile(top) {
		return top
	}
	if found := scanner.FindFiles(root, "Distribution"); len(found) > 0 {
		return found[0]
	}
	return ""
}

func (h *Handler) bundleReceipts(path string, w *distribution.Walk) []models.Receipt {
	if strings.HasSuffix(path, ".pkg") {
		if r, ok := oneReceipt(path); ok {
			return []models.Receipt{r}
		}
	}

	contents := filepath.Join(path, "Contents")
	entries, err := os.ReadDir(contents)
	if err != nil {
		return nil
	}

	// A .dist in Contents describes the whole bundle
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".dist") {
			receipts, err := h.parser.ParseWalk(filepath.Join(contents, e.Name()), contents, w)
			if err != nil {
				logrus.Warnf("%v", err)
			}
			return receipts
		}
	}

	dirs := bundleSearchDirs
	if info := bundle.GetBundleInfo(path); info != nil {
		if dir := info.String("IFPkgFlagComponentDirectory"); dir != "" {
			dirs = []string{dir}
		}
	}

	var receipts []models.Receipt
	for _, dir := range dirs {
		searchDir := filepath.Join(path, dir)
		entries, err := os.ReadDir(searchDir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			item := filepath.Join(searchDir, e.Name())
			if !utils.IsDir(item) {
				continue
			}
			switch {
			case strings.HasSuffix(item, ".pkg"):
				if r, ok := oneReceipt(item); ok {
					receipts = append(receipts, r)
				}
			case strings.HasSuffix(item, ".mpkg"):
				if !w.Enter(item) {
					logrus.Warnf("Not expanding %s: reference cycle or too deeply nested", item)
					continue
				}
				receipts = append(receipts, h.bundleReceipts(item, w)...)
				w.Leave(item)
			}
		}
	}
	return receipts
}

// oneReceipt reads the receipt of a single bundle-style component package
func oneReceipt(path string) (models.Receipt, bool) {
	base := filepath.Base(path)

	if info := bundle.GetBundleInfo(path); len(info) > 0 {
		r := models.Receipt{Filename: base, PackageID: base}
		if id := info.String("CFBundleIdentifier"); id != "" {
			r.PackageID = id
		} else if id := info.String("Bundle identifier"); id != "" {
			// JAMF Composer
			r.PackageID = id
		}
		r.Name = info.String("CFBundleName")
		if size, ok := info.Int("IFPkgFlagInstalledSize"); ok {
			r.InstalledSize = size
		}
		r.Version = bundle.GetBundleVersion(path, "")
		return r, true
	}

	// Old-style packages only have an English.lproj .info file
	lproj := filepath.Join(path, "Contents", "Resources", "English.lproj")
	entries, err := os.ReadDir(lproj)
	if err != nil {
		return models.Receipt{}, false
	}
	for _, e := range entries {
		if !strings.HasSuffix(e.Name(), ".info") {
			continue
		}
		fields, err := bundle.ParseInfoFile(filepath.Join(lproj, e.Name()))
		if err != nil {
			logrus.Warnf("Could not read %s: %v", e.Name(), err)
			return models.Receipt{}, false
		}
		r := models.Receipt{Filename: base, PackageID: base, Version: "0.0", Name: "UNKNOWN"}
		if v, ok := fields["Version"]; ok {
			r.Version = v
		}
		if t, ok := fields["Title"]; ok {
			r.Name = t
		}
		return r, true
	}
	return models.Receipt{}, false
}
