package catalog

import (
	"fmt"
	"time"

	"github.com/ralt/pkgimport/internal/models"
	"github.com/sirupsen/logrus"
	"howett.net/plist"
)

// AllCatalog is the catalog holding every entry of a repository
const AllCatalog = "catalogs/all"

// Fetcher returns the raw bytes of a repository resource
type Fetcher interface {
	Get(name string) ([]byte, error)
}

// Load fetches and indexes the all catalog. A missing catalog is
// ErrCatalogUnavailable, one that does not decode is ErrCatalogCorrupt.
func Load(f Fetcher) (*Index, error) {
	data, err := f.Get(AllCatalog)
	if err != nil {
		return nil, models.NewError(models.ErrCatalogUnavailable, AllCatalog, err)
	}
	items, err := Decode(data)
	if err != nil {
		return nil, models.NewError(models.ErrCatalogCorrupt, AllCatalog, err)
	}
	return Build(items), nil
}

// Decode reads a catalog snapshot. The document must be an array; its
// elements are converted one field at a time so a malformed value only
// loses that value.
func Decode(data []byte) ([]models.PkgInfo, error) {
	var raw []any
	if _, err := plist.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode catalog: %w", err)
	}

	dicts := make([]map[string]any, len(raw))
	for i, r := range raw {
		d, ok := r.(map[string]any)
		if !ok {
			logrus.Warnf("Bad pkginfo at position %d: not a dictionary", i)
			continue
		}
		dicts[i] = d
	}
	return fromRaw(dicts), nil
}

// fromRaw keeps one entry per dictionary so positions match the snapshot
func fromRaw(dicts []map[string]any) []models.PkgInfo {
	items := make([]models.PkgInfo, len(dicts))
	for i, d := range dicts {
		if d != nil {
			items[i] = entryFromDict(d)
		}
	}
	return items
}

func entryFromDict(d map[string]any) models.PkgInfo {
	e := models.PkgInfo{
		Name:                   str(d, "name"),
		Version:                str(d, "version"),
		DisplayName:            str(d, "display_name"),
		Description:            str(d, "description"),
		PayloadIdentifier:      str(d, "PayloadIdentifier"),
		InstallerItemHash:      str(d, "installer_item_hash"),
		InstallerItemLocation:  str(d, "installer_item_location"),
		InstallerItemSize:      num(d, "installer_item_size"),
		InstalledSize:          num(d, "installed_size"),
		PackagePath:            str(d, "package_path"),
		InstallerType:          str(d, "installer_type"),
		RestartAction:          str(d, "RestartAction"),
		UninstallMethod:        str(d, "uninstall_method"),
		MinimumOSVersion:       str(d, "minimum_os_version"),
		SupportedArchitectures: strs(d, "supported_architectures"),
		Catalogs:               strs(d, "catalogs"),
	}
	if v, ok := d["uninstallable"].(bool); ok {
		e.Uninstallable = v
	}
	if v, ok := d["autoremove"].(bool); ok {
		e.Autoremove = &v
	}

	label := e.Name + "-" + e.Version
	for _, r := range list(d, "receipts") {
		rd, ok := r.(map[string]any)
		if !ok || str(rd, "packageid") == "" {
			logrus.Warnf("Bad receipt data for %s: %v", label, r)
			continue
		}
		e.Receipts = append(e.Receipts, models.Receipt{
			PackageID:     str(rd, "packageid"),
			Version:       str(rd, "version"),
			InstalledSize: num(rd, "installed_size"),
			Name:          str(rd, "name"),
			Filename:      str(rd, "filename"),
		})
	}

	for _, r := range list(d, "installs") {
		rd, ok := r.(map[string]any)
		if !ok || str(rd, "path") == "" {
			logrus.Warnf("Bad install data for %s: %v", label, r)
			continue
		}
		e.Installs = append(e.Installs, models.InstallRecord{
			Type:                       str(rd, "type"),
			Path:                       str(rd, "path"),
			CFBundleName:               str(rd, "CFBundleName"),
			CFBundleIdentifier:         str(rd, "CFBundleIdentifier"),
			CFBundleShortVersionString: str(rd, "CFBundleShortVersionString"),
			CFBundleVersion:            str(rd, "CFBundleVersion"),
			VersionComparisonKey:       str(rd, "version_comparison_key"),
			MinOSVersion:               str(rd, "minosversion"),
			MD5Checksum:                str(rd, "md5checksum"),
		})
	}

	for _, r := range list(d, "items_to_copy") {
		if rd, ok := r.(map[string]any); ok {
			e.ItemsToCopy = append(e.ItemsToCopy, models.ItemToCopy{
				SourceItem:      str(rd, "source_item"),
				DestinationPath: str(rd, "destination_path"),
			})
		}
	}

	if md, ok := d["_metadata"].(map[string]any); ok {
		audit := &models.Audit{CreatedBy: str(md, "created_by")}
		if t, ok := md["creation_date"].(time.Time); ok {
			audit.CreationDate = t
		}
		e.Metadata = audit
	}
	return e
}

func str(d map[string]any, key string) string {
	switch v := d[key].(type) {
	case string:
		return v
	case int64, uint64, float64:
		// Versions are sometimes written as numbers
		return fmt.Sprint(v)
	}
	return ""
}

func num(d map[string]any, key string) int64 {
	switch v := d[key].(type) {
	case int64:
		return v
	case uint64:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}

func list(d map[string]any, key string) []any {
	l, _ := d[key].([]any)
	return l
}

func strs(d map[string]any, key string) []string {
	var out []string
	for _, v := range list(d, key) {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
