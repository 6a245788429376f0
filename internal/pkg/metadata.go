package pkg

import (
	"errors"
	"path/filepath"
	"strings"

	"github.com/ralt/pkgimport/internal/bundle"
	"github.com/ralt/pkgimport/internal/distribution"
	"github.com/ralt/pkgimport/internal/models"
	"github.com/ralt/pkgimport/internal/scanner"
	"github.com/ralt/pkgimport/internal/utils"
	"github.com/ralt/pkgimport/internal/version"
	"github.com/sirupsen/logrus"
)

// Flat packages need at least this OS
const flatMinimumOSVersion = "10.5.0"

// Metadata builds the catalog fragment for a .pkg or .mpkg: name, version,
// receipts, installed size and restart behaviour
func (h *Handler) Metadata(path string) (*models.PkgInfo, error) {
	if !scanner.HasPackageExt(path) {
		return nil, models.NewError(models.ErrUnsupportedInstallerItem, path, errors.New("not a .pkg or .mpkg"))
	}

	w := distribution.NewWalk()
	w.Enter(path)
	defer w.Leave(path)

	var (
		info    *Info
		restart string
		flat    = utils.IsFile(path)
	)
	if flat {
		ws, err := h.unpack(path)
		if err != nil {
			return nil, err
		}
		defer ws.Release()
		info = h.flatInfo(ws.Root, path, w)
		restart = restartAction(ws.Root)
	} else {
		info = &Info{Receipts: h.bundleReceipts(path, w)}
		restart = restartAction(path)
	}

	shortName := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	name, nameVersion := version.SplitNameVersion(shortName)

	entry := &models.PkgInfo{
		Name:          name,
		Version:       packageVersion(path, nameVersion, info.Receipts),
		Receipts:      info.Receipts,
		RestartAction: restart,
	}
	if info.ProductVersion != "" {
		entry.Version = info.ProductVersion
	}

	var installed int64
	for _, r := range info.Receipts {
		installed += r.InstalledSize
	}
	if installed > 0 {
		entry.InstalledSize = installed
	}

	if flat {
		entry.MinimumOSVersion = flatMinimumOSVersion
	}
	return entry, nil
}

// packageVersion picks between the version the package itself declares
// (or its file name implies) and the highest receipt version.
//
// The rules are applied in order: no declared version takes the highest
// receipt; a single receipt always wins; a receipt version extending the
// declared one (2.0 vs 2.0.3124.0) wins. Anything else keeps the declared
// version, which includes packages with no receipts at all.
func packageVersion(path, nameVersion string, receipts []models.Receipt) string {
	declared := bundle.GetBundleVersion(path, "")
	if declared == bundle.DefaultVersion {
		declared = nameVersion
		if declared == "" {
			declared = bundle.DefaultVersion
		}
	}

	highest := "0.0"
	for _, r := range receipts {
		if version.Compare(r.Version, highest) > 0 {
			highest = r.Version
		}
	}

	switch {
	case declared == bundle.DefaultVersion:
		return highest
	case len(receipts) == 1:
		return highest
	case strings.HasPrefix(highest, declared):
		return highest
	}
	if len(receipts) == 0 {
		logrus.Debugf("No receipts in %s; keeping declared version %s", filepath.Base(path), declared)
	}
	return declared
}

// restartAction looks for the restart behaviour in the top-level manifests
// of an unpacked package. A plist document is tried before plain XML.
func restartAction(root string) string {
	for _, name := range []string{"Distribution", "PackageInfo"} {
		doc := filepath.Join(root, name)
		if !utils.IsFile(doc) {
			continue
		}

		if info, err := bundle.ReadPlist(doc); err == nil {
			if v := info.String("RestartAction"); v != "" && v != "None" {
				return v
			}
		}
		if v, ok := distribution.RestartAction(doc); ok {
			return v
		}
	}
	return ""
}
