package bundle

import (
	"path/filepath"
	"strings"

	"github.com/ralt/pkgimport/internal/models"
	"github.com/ralt/pkgimport/internal/utils"
	"github.com/ralt/pkgimport/internal/version"
	"github.com/sirupsen/logrus"
)

// GetItemInfo builds the install record used to detect path once it is
// installed. Applications, other bundles and version plists carry their
// version keys; anything else degrades to a plain file record.
func GetItemInfo(path string) models.InstallRecord {
	rec := models.InstallRecord{Path: path}

	switch {
	case IsApplication(path):
		rec.Type = models.InstallTypeApplication
		info := GetBundleInfo(path)
		rec.CFBundleName = info.String("CFBundleName")
		rec.CFBundleIdentifier = info.String("CFBundleIdentifier")
		rec.CFBundleShortVersionString = info.String("CFBundleShortVersionString")
		rec.CFBundleVersion = info.String("CFBundleVersion")
		rec.MinOSVersion = minimumOSVersion(info)

	case InfoPath(path) != "":
		rec.Type = models.InstallTypeBundle
		info := GetBundleInfo(path)
		rec.CFBundleShortVersionString = info.String("CFBundleShortVersionString")
		rec.CFBundleVersion = info.String("CFBundleVersion")

	case strings.HasSuffix(path, "Info.plist") || strings.HasSuffix(path, "version.plist"):
		rec.Type = models.InstallTypePlist
		if info, err := ReadPlist(path); err == nil {
			rec.CFBundleShortVersionString = info.String("CFBundleShortVersionString")
			rec.CFBundleVersion = info.String("CFBundleVersion")
		} else {
			logrus.Debugf("Could not read %s: %v", path, err)
		}
	}

	short := rec.CFBundleShortVersionString
	if short == "" || short[0] < '0' || short[0] > '9' {
		if rec.CFBundleVersion != "" {
			rec.VersionComparisonKey = "CFBundleVersion"
		}
	} else {
		rec.VersionComparisonKey = "CFBundleShortVersionString"
	}

	if rec.CFBundleShortVersionString == "" && rec.CFBundleVersion == "" {
		rec.Type = models.InstallTypeFile
		if utils.IsFile(path) {
			sum, err := utils.MD5File(path)
			if err != nil {
				logrus.Warnf("Could not hash %s: %v", filepath.Base(path), err)
			}
			rec.MD5Checksum = sum
		}
	}
	return rec
}

func minimumOSVersion(info Info) string {
	if v := info.String("LSMinimumSystemVersion"); v != "" {
		return v
	}
	if byArch, ok := info["LSMinimumSystemVersionByArchitecture"].(map[string]any); ok && len(byArch) > 0 {
		var versions []string
		for _, v := range byArch {
			if s, ok := v.(string); ok {
				versions = append(versions, s)
			}
		}
		return version.Max(versions...)
	}
	return info.String("SystemVersionCheck:MinimumSystemVersion")
}
