package bundle

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/ralt/pkgimport/internal/models"
	"howett.net/plist"
)

func writeInfoPlist(t *testing.T, bundle string, info map[string]any) {
	t.Helper()
	dir := filepath.Join(bundle, "Contents")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("Failed to create bundle: %v", err)
	}
	data, err := plist.MarshalIndent(info, plist.XMLFormat, "\t")
	if err != nil {
		t.Fatalf("Failed to encode plist: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "Info.plist"), data, 0644); err != nil {
		t.Fatalf("Failed to write plist: %v", err)
	}
}

func TestGetVersionString(t *testing.T) {
	tests := []struct {
		name string
		info Info
		key  string
		want string
	}{
		{"short version", Info{"CFBundleShortVersionString": "1.2.3"}, "", "1.2.3"},
		{"first word only", Info{"CFBundleShortVersionString": "1.0 (100)"}, "", "1.0"},
		{"commas become dots", Info{"CFBundleShortVersionString": "9,0,1"}, "", "9.0.1"},
		{"composer key", Info{"Bundle versions string, short": "2.1"}, "", "2.1"},
		{"non numeric falls back", Info{"CFBundleShortVersionString": "v2", "CFBundleVersion": "200"}, "", "200"},
		{"nothing usable", Info{"CFBundleShortVersionString": "beta", "CFBundleVersion": "r5"}, "", ""},
		{"explicit key verbatim", Info{"CFBundleVersion": "1.0 (abc)"}, "CFBundleVersion", "1.0 (abc)"},
		{"explicit key missing", Info{}, "CFBundleVersion", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetVersionString(tt.info, tt.key); got != tt.want {
				t.Errorf("GetVersionString() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGetBundleVersionLegacyInfoFile(t *testing.T) {
	bundle := filepath.Join(t.TempDir(), "Old.pkg")
	lproj := filepath.Join(bundle, "Contents", "Resources", "English.lproj")
	if err := os.MkdirAll(lproj, 0755); err != nil {
		t.Fatalf("Failed to create lproj: %v", err)
	}
	// "Caf\x8e" is "Café" in MacRoman
	content := "Title Caf\x8e Tools\nVersion 3.1.4\nbogus\n"
	if err := os.WriteFile(filepath.Join(lproj, "Old.info"), []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write info file: %v", err)
	}

	if got := GetBundleVersion(bundle, ""); got != "3.1.4" {
		t.Errorf("GetBundleVersion() = %q, want 3.1.4", got)
	}

	fields, err := ParseInfoFile(filepath.Join(lproj, "Old.info"))
	if err != nil {
		t.Fatalf("ParseInfoFile failed: %v", err)
	}
	if fields["Title"] != "Café Tools" {
		t.Errorf("Title = %q, want MacRoman decoded value", fields["Title"])
	}
	if _, ok := fields["bogus"]; ok {
		t.Errorf("single word lines should be ignored")
	}
}

func TestGetBundleVersionDefault(t *testing.T) {
	if got := GetBundleVersion(t.TempDir(), ""); got != DefaultVersion {
		t.Errorf("GetBundleVersion() = %q, want %q", got, DefaultVersion)
	}
}

func TestIsApplication(t *testing.T) {
	dir := t.TempDir()

	app := filepath.Join(dir, "Foo.app")
	writeInfoPlist(t, app, map[string]any{"CFBundlePackageType": "APPL"})
	if !IsApplication(app) {
		t.Errorf("expected %s to be an application", app)
	}

	plugin := filepath.Join(dir, "Plugin.app")
	writeInfoPlist(t, plugin, map[string]any{"CFBundlePackageType": "BNDL"})
	if IsApplication(plugin) {
		t.Errorf("non APPL package type should not be an application")
	}

	noType := filepath.Join(dir, "NoType.app")
	writeInfoPlist(t, noType, map[string]any{"CFBundleName": "NoType"})
	if !IsApplication(noType) {
		t.Errorf("missing package type should still be accepted")
	}

	link := filepath.Join(dir, "Link.app")
	if err := os.Symlink(app, link); err != nil {
		t.Fatalf("Failed to create symlink: %v", err)
	}
	if IsApplication(link) {
		t.Errorf("symlinked app should be rejected")
	}

	if IsApplication(filepath.Join(dir, "Missing.app")) {
		t.Errorf("missing app should be rejected")
	}
}

func TestGetItemInfoApplication(t *testing.T) {
	app := filepath.Join(t.TempDir(), "Foo.app")
	writeInfoPlist(t, app, map[string]any{
		"CFBundleName":               "Foo",
		"CFBundleIdentifier":         "com.example.foo",
		"CFBundleShortVersionString": "2.0",
		"CFBundleVersion":            "200",
		"LSMinimumSystemVersionByArchitecture": map[string]any{
			"x86_64": "10.9",
			"arm64":  "11.0",
		},
	})

	want := models.InstallRecord{
		Type:                       models.InstallTypeApplication,
		Path:                       app,
		CFBundleName:               "Foo",
		CFBundleIdentifier:         "com.example.foo",
		CFBundleShortVersionString: "2.0",
		CFBundleVersion:            "200",
		VersionComparisonKey:       "CFBundleShortVersionString",
		MinOSVersion:               "11.0",
	}
	if diff := cmp.Diff(want, GetItemInfo(app)); diff != "" {
		t.Errorf("GetItemInfo() mismatch (-want +got):\n%s", diff)
	}
}

func TestGetItemInfoComparisonKeyFallback(t *testing.T) {
	app := filepath.Join(t.TempDir(), "Bar.app")
	writeInfoPlist(t, app, map[string]any{
		"CFBundleShortVersionString": "Beta",
		"CFBundleVersion":            "1234",
		"LSMinimumSystemVersion":     "10.13",
	})

	rec := GetItemInfo(app)
	if rec.VersionComparisonKey != "CFBundleVersion" {
		t.Errorf("VersionComparisonKey = %q, want CFBundleVersion", rec.VersionComparisonKey)
	}
	if rec.ComparisonVersion() != "1234" {
		t.Errorf("ComparisonVersion() = %q, want 1234", rec.ComparisonVersion())
	}
	if rec.MinOSVersion != "10.13" {
		t.Errorf("MinOSVersion = %q, want 10.13", rec.MinOSVersion)
	}
}

func TestGetItemInfoFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tool")
	if err := os.WriteFile(path, []byte("hello"), 0755); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	rec := GetItemInfo(path)
	if rec.Type != models.InstallTypeFile {
		t.Errorf("Type = %q, want file", rec.Type)
	}
	if rec.MD5Checksum != "5d41402abc4b2a76b9719d911017c592" {
		t.Errorf("MD5Checksum = %q", rec.MD5Checksum)
	}
}
