package models

import "time"

// Installer type and uninstall method markers written into pkginfo
const (
	InstallerTypeNoPkg            = "nopkg"
	InstallerTypeCopyFromDmg      = "copy_from_dmg"
	InstallerTypeStageOSInstaller = "stage_os_installer"

	UninstallRemovePackages    = "removepackages"
	UninstallRemoveCopiedItems = "remove_copied_items"
)

// Install record types
const (
	InstallTypeApplication = "application"
	InstallTypeBundle      = "bundle"
	InstallTypePlist       = "plist"
	InstallTypeFile        = "file"
)

// PkgInfo is a catalog entry describing one importable installer item.
// Empty strings and nil slices mean the key is absent.
type PkgInfo struct {
	// Core metadata
	Name        string `plist:"name,omitempty"`
	Version     string `plist:"version,omitempty"`
	DisplayName string `plist:"display_name,omitempty"`
	Description string `plist:"description,omitempty"`

	// Identity
	Receipts          []Receipt       `plist:"receipts,omitempty"`
	Installs          []InstallRecord `plist:"installs,omitempty"`
	PayloadIdentifier string          `plist:"PayloadIdentifier,omitempty"`

	// Installer item information
	InstallerItemHash     string `plist:"installer_item_hash,omitempty"`
	InstallerItemLocation string `plist:"installer_item_location,omitempty"`
	InstallerItemSize     int64  `plist:"installer_item_size,omitempty"`
	InstalledSize         int64  `plist:"installed_size,omitempty"`
	PackagePath           string `plist:"package_path,omitempty"`

	// Install behaviour
	InstallerType          string       `plist:"installer_type,omitempty"`
	ItemsToCopy            []ItemToCopy `plist:"items_to_copy,omitempty"`
	RestartAction          string       `plist:"RestartAction,omitempty"`
	Uninstallable          bool         `plist:"uninstallable,omitempty"`
	UninstallMethod        string       `plist:"uninstall_method,omitempty"`
	Autoremove             *bool        `plist:"autoremove,omitempty"`
	MinimumOSVersion       string       `plist:"minimum_os_version,omitempty"`
	SupportedArchitectures []string     `plist:"supported_architectures,omitempty"`

	Catalogs []string `plist:"catalogs,omitempty"`
	Metadata *Audit   `plist:"_metadata,omitempty"`
}

// Receipt asserts that a package identifier at a version would be installed
type Receipt struct {
	PackageID     string `plist:"packageid"`
	Version       string `plist:"version,omitempty"`
	InstalledSize int64  `plist:"installed_size,omitempty"`

	// Only set for receipts read from bundle packages
	Name     string `plist:"name,omitempty"`
	Filename string `plist:"filename,omitempty"`
}

// InstallRecord describes a filesystem item used to detect an installation
type InstallRecord struct {
	Type                       string `plist:"type"`
	Path                       string `plist:"path"`
	CFBundleName               string `plist:"CFBundleName,omitempty"`
	CFBundleIdentifier         string `plist:"CFBundleIdentifier,omitempty"`
	CFBundleShortVersionString string `plist:"CFBundleShortVersionString,omitempty"`
	CFBundleVersion            string `plist:"CFBundleVersion,omitempty"`
	VersionComparisonKey       string `plist:"version_comparison_key,omitempty"`
	MinOSVersion               string `plist:"minosversion,omitempty"`
	MD5Checksum                string `plist:"md5checksum,omitempty"`
}

// ComparisonVersion returns the value of the field named by
// VersionComparisonKey, defaulting to CFBundleShortVersionString.
func (r InstallRecord) ComparisonVersion() string {
	switch r.VersionComparisonKey {
	case "CFBundleVersion":
		return r.CFBundleVersion
	default:
		return r.CFBundleShortVersionString
	}
}

// ItemToCopy is a copy instruction for drag-and-drop disk images
type ItemToCopy struct {
	SourceItem      string `plist:"source_item"`
	DestinationPath string `plist:"destination_path"`
}

// Audit records who created a pkginfo and when
type Audit struct {
	CreatedBy    string    `plist:"created_by"`
	CreationDate time.Time `plist:"creation_date"`
}

// PackageIDs returns the packageids of all receipts, skipping empty ones
func (p *PkgInfo) PackageIDs() []string {
	var ids []string
	for _, r := range p.Receipts {
		if r.PackageID != "" {
			ids = append(ids, r.PackageID)
		}
	}
	return ids
}
