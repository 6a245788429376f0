// Package bundle reads metadata out of macOS bundle directories: apps,
// plugins, frameworks and old-style bundle packages.
package bundle

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"howett.net/plist"
)

// DefaultVersion is reported when a bundle carries no usable version
const DefaultVersion = "0.0.0.0.0"

// Info is a decoded Info.plist dictionary
type Info map[string]any

// String returns the value of key when it is a string
func (i Info) String(key string) string {
	if s, ok := i[key].(string); ok {
		return s
	}
	return ""
}

// Int returns the value of key as an integer. Old bundle packages store
// sizes as strings as often as numbers.
func (i Info) Int(key string) (int64, bool) {
	switch v := i[key].(type) {
	case int64:
		return v, true
	case uint64:
		return int64(v), true
	case float64:
		return int64(v), true
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		return n, err == nil
	}
	return 0, false
}

// Has reports whether key is present at all
func (i Info) Has(key string) bool {
	_, ok := i[key]
	return ok
}

// InfoPath returns the Info.plist location for a bundle, preferring
// Contents/Info.plist. It returns "" when neither exists.
func InfoPath(path string) string {
	for _, p := range []string{
		filepath.Join(path, "Contents", "Info.plist"),
		filepath.Join(path, "Resources", "Info.plist"),
	} {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// GetBundleInfo returns the Info.plist dictionary for the bundle at path,
// or nil when it is missing or unreadable
func GetBundleInfo(path string) Info {
	infoPath := InfoPath(path)
	if infoPath == "" {
		return nil
	}
	info, err := ReadPlist(infoPath)
	if err != nil {
		logrus.Warnf("Error reading plist file %s: %v", infoPath, err)
		return nil
	}
	return info
}

// ReadPlist decodes a property list file of any flavour into a dictionary
func ReadPlist(path string) (Info, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var info Info
	if _, err := plist.Unmarshal(data, &info); err != nil {
		return nil, err
	}
	return info, nil
}

// GetVersionString picks a version out of an Info.plist.
//
// With an explicit key the value is returned verbatim. Otherwise
// CFBundleShortVersionString (or the misspelt key some Composer packages
// use) wins when its first word starts with a digit, then CFBundleVersion
// under the same rule. Commas become dots.
func GetVersionString(info Info, key string) string {
	if key != "" {
		return info.String(key)
	}

	key = "CFBundleShortVersionString"
	if !info.Has(key) && info.Has("Bundle versions string, short") {
		key = "Bundle versions string, short"
	}
	if v := numericWord(info.String(key)); v != "" {
		return v
	}
	return numericWord(info.String("CFBundleVersion"))
}

func numericWord(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	v := fields[0]
	if v[0] < '0' || v[0] > '9' {
		return ""
	}
	return strings.ReplaceAll(v, ",", ".")
}

// GetBundleVersion returns the version of the bundle at path, falling back
// to the legacy English.lproj .info file and finally DefaultVersion
func GetBundleVersion(path, key string) string {
	if info := GetBundleInfo(path); info != nil {
		if v := GetVersionString(info, key); v != "" {
			return v
		}
	}

	lproj := filepath.Join(path, "Contents", "Resources", "English.lproj")
	entries, err := os.ReadDir(lproj)
	if err != nil {
		return DefaultVersion
	}
	for _, e := range entries {
		if !strings.HasSuffix(e.Name(), ".info") {
			continue
		}
		fields, err := ParseInfoFile(filepath.Join(lproj, e.Name()))
		if err != nil {
			logrus.Warnf("Could not read %s: %v", e.Name(), err)
			return DefaultVersion
		}
		if v, ok := fields["Version"]; ok {
			return v
		}
		return DefaultVersion
	}
	return DefaultVersion
}

// IsApplication reports whether path looks like an application bundle.
// Extraction tools often drop executables and symlinks, so the Info.plist
// is the only thing required.
func IsApplication(path string) bool {
	if path == "" {
		return false
	}
	fi, err := os.Lstat(path)
	if err != nil || fi.Mode()&os.ModeSymlink != 0 || !fi.IsDir() {
		return false
	}
	if !strings.HasSuffix(path, ".app") {
		return false
	}
	info := GetBundleInfo(path)
	if len(info) == 0 {
		return false
	}
	if t := info.String("CFBundlePackageType"); t != "" && t != "APPL" {
		return false
	}
	return true
}
