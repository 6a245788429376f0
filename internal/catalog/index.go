// Package catalog indexes a catalog snapshot by the identities an
// installer item can share with an existing entry, and finds the entry a
// new item most likely updates.
package catalog

import (
	"path/filepath"
	"strings"

	"github.com/ralt/pkgimport/internal/models"
	"github.com/ralt/pkgimport/internal/version"
	"github.com/sirupsen/logrus"
)

// versions files snapshot positions under version strings, remembering
// the order versions were first seen so equal versions sort stably
type versions struct {
	order     []string
	positions map[string][]int
}

// descending returns the versions newest first
func (v *versions) descending() []string {
	vs := append([]string(nil), v.order...)
	version.SortDescending(vs)
	return vs
}

// versionTable maps an identity to its versions
type versionTable map[string]*versions

func (t versionTable) add(key, vers string, pos int) {
	v, ok := t[key]
	if !ok {
		v = &versions{positions: make(map[string][]int)}
		t[key] = v
	}
	if _, seen := v.positions[vers]; !seen {
		v.order = append(v.order, vers)
	}
	v.positions[vers] = append(v.positions[vers], pos)
}

// newest returns the positions filed under the highest version of key
func (t versionTable) newest(key string) []int {
	v, ok := t[key]
	if !ok {
		return nil
	}
	return v.positions[v.descending()[0]]
}

// Index is a read-only view over a catalog snapshot
type Index struct {
	items []models.PkgInfo

	hashes         map[string][]int
	receipts       versionTable
	applications   versionTable
	profiles       versionTable
	installerItems versionTable
}

// Build indexes items. Entries without name or version are reported and
// left out; receipts without packageid and installs without path are
// skipped individually.
func Build(items []models.PkgInfo) *Index {
	idx := &Index{
		items:          items,
		hashes:         make(map[string][]int),
		receipts:       make(versionTable),
		applications:   make(versionTable),
		profiles:       make(versionTable),
		installerItems: make(versionTable),
	}

	for pos := range items {
		item := &items[pos]
		if item.Name == "" || item.Version == "" {
			logrus.Warnf("Bad pkginfo at position %d: missing name or version (%q, %q)", pos, item.Name, item.Version)
			continue
		}
		vers := item.Version

		if item.InstallerItemHash != "" {
			idx.hashes[item.InstallerItemHash] = append(idx.hashes[item.InstallerItemHash], pos)
		}

		if item.InstallerItemLocation != "" {
			idx.installerItems.add(InstallerItemName(item.InstallerItemLocation), vers, pos)
		}

		for _, r := range item.Receipts {
			if r.PackageID == "" || r.Version == "" {
				logrus.Warnf("Bad receipt data for %s-%s: %+v", item.Name, vers, r)
				continue
			}
			idx.receipts.add(r.PackageID, r.Version, pos)
		}

		for _, rec := range item.Installs {
			if rec.Type != models.InstallTypeApplication {
				continue
			}
			if rec.Path == "" {
				logrus.Warnf("Bad install data for %s-%s: application without path", item.Name, vers)
				continue
			}
			idx.applications.add(rec.Path, vers, pos)
		}

		if item.PayloadIdentifier != "" {
			idx.profiles.add(item.PayloadIdentifier, vers, pos)
		}
	}
	return idx
}

// Len returns the size of the underlying snapshot
func (idx *Index) Len() int {
	return len(idx.items)
}

// InstallerItemName reduces an installer item location to the name it is
// indexed under: the base name, without a version embedded after a dash.
func InstallerItemName(location string) string {
	base := filepath.Base(location)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	if strings.Contains(stem, "-") {
		stem, _ = version.SplitNameVersion(stem)
	}
	return stem + ext
}

// Find returns the indexed entry the candidate most likely corresponds to.
// Identities are tried from most to least reliable: installer item hash,
// receipt set, application path, profile identifier and finally the
// installer item name.
func (idx *Index) Find(candidate *models.PkgInfo) (*models.PkgInfo, bool) {
	if candidate == nil {
		return nil, false
	}

	if candidate.InstallerItemHash != "" {
		if positions := idx.hashes[candidate.InstallerItemHash]; len(positions) > 0 {
			return idx.at(positions[0])
		}
	}

	if ids := candidate.PackageIDs(); len(ids) > 0 {
		if byVersion, ok := idx.receipts[ids[0]]; ok {
			want := idSet(ids)
			for _, v := range byVersion.descending() {
				for _, pos := range byVersion.positions[v] {
					if sameSet(want, idSet(idx.items[pos].PackageIDs())) {
						return idx.at(pos)
					}
				}
			}
		}
	}

	for _, rec := range candidate.Installs {
		if rec.Type != models.InstallTypeApplication || rec.Path == "" {
			continue
		}
		if positions := idx.applications.newest(rec.Path); len(positions) > 0 {
			return idx.at(positions[0])
		}
		break
	}

	if candidate.PayloadIdentifier != "" {
		if positions := idx.profiles.newest(candidate.PayloadIdentifier); len(positions) > 0 {
			return idx.at(positions[0])
		}
	}

	if candidate.InstallerItemLocation != "" {
		if positions := idx.installerItems.newest(InstallerItemName(candidate.InstallerItemLocation)); len(positions) > 0 {
			return idx.at(positions[0])
		}
	}

	return nil, false
}

func (idx *Index) at(pos int) (*models.PkgInfo, bool) {
	return &idx.items[pos], true
}

func idSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func sameSet(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}
