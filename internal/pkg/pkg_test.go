package pkg

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/ralt/pkgimport/internal/extract"
	"github.com/ralt/pkgimport/internal/extract/xartest"
	"github.com/ralt/pkgimport/internal/models"
	"howett.net/plist"
)

func writeBundle(t *testing.T, path string, info map[string]any) {
	t.Helper()
	contents := filepath.Join(path, "Contents")
	if err := os.MkdirAll(contents, 0755); err != nil {
		t.Fatalf("Failed to create bundle: %v", err)
	}
	if info == nil {
		return
	}
	data, err := plist.Marshal(info, plist.XMLFormat)
	if err != nil {
		t.Fatalf("Failed to encode plist: %v", err)
	}
	if err := os.WriteFile(filepath.Join(contents, "Info.plist"), data, 0644); err != nil {
		t.Fatalf("Failed to write plist: %v", err)
	}
}

func TestMetadataFlatPackage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Foo-1.0.1.pkg")
	xartest.Write(t, path, map[string][]byte{
		"Distribution": []byte(`<?xml version="1.0" encoding="utf-8"?>
<installer-gui-script minSpecVersion="2">
    <product id="com.example.foo" version="5.0"/>
    <restartAction>RequireRestart</restartAction>
    <pkg-ref id="com.example.foo.core">#Core.pkg</pkg-ref>
</installer-gui-script>`),
		"Core.pkg/PackageInfo": []byte(`<pkg-info identifier="com.example.foo.core" version="1.0.1">
    <payload installKBytes="100"/>
</pkg-info>`),
		"Extra.pkg/PackageInfo": []byte(`<pkg-info identifier="com.example.foo.extra" version="1.0.1.5">
    <payload installKBytes="50"/>
</pkg-info>`),
	})

	h := NewHandler(extract.Xar{})
	got, err := h.Metadata(path)
	if err != nil {
		t.Fatalf("Metadata failed: %v", err)
	}

	want := &models.PkgInfo{
		Name:    "Foo",
		Version: "5.0",
		Receipts: []models.Receipt{
			{PackageID: "com.example.foo.core", Version: "1.0.1", InstalledSize: 100},
			{PackageID: "com.example.foo.extra", Version: "1.0.1.5", InstalledSize: 50},
		},
		InstalledSize:    150,
		RestartAction:    "RequireRestart",
		MinimumOSVersion: "10.5.0",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Metadata() mismatch (-want +got):\n%s", diff)
	}
}

func TestMetadataFlatDistributionOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Bar.pkg")
	xartest.Write(t, path, map[string][]byte{
		"Distribution": []byte(`<installer-gui-script>
    <pkg-ref id="com.example.bar" version="1.2" installKBytes="30"/>
</installer-gui-script>`),
	})

	got, err := NewHandler(extract.Xar{}).Metadata(path)
	if err != nil {
		t.Fatalf("Metadata failed: %v", err)
	}
	if got.Name != "Bar" || got.Version != "1.2" {
		t.Errorf("name/version = %q/%q, want Bar/1.2", got.Name, got.Version)
	}
	if got.InstalledSize != 30 {
		t.Errorf("InstalledSize = %d, want 30", got.InstalledSize)
	}
	if got.RestartAction != "" {
		t.Errorf("RestartAction = %q, want none", got.RestartAction)
	}
}

func TestMetadataBundlePackage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Legacy.pkg")
	writeBundle(t, path, map[string]any{
		"CFBundleIdentifier":         "com.example.legacy",
		"CFBundleShortVersionString": "2.1",
		"IFPkgFlagInstalledSize":     42,
	})

	got, err := NewHandler(extract.Xar{}).Metadata(path)
	if err != nil {
		t.Fatalf("Metadata failed: %v", err)
	}
	want := &models.PkgInfo{
		Name:    "Legacy",
		Version: "2.1",
		Receipts: []models.Receipt{
			{PackageID: "com.example.legacy", Version: "2.1", InstalledSize: 42, Filename: "Legacy.pkg"},
		},
		InstalledSize: 42,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Metadata() mismatch (-want +got):\n%s", diff)
	}
}

func TestReceiptInfoMetaPackage(t *testing.T) {
	mpkg := filepath.Join(t.TempDir(), "Suite.mpkg")
	writeBundle(t, filepath.Join(mpkg, "Contents", "Packages", "A.pkg"), map[string]any{
		"CFBundleIdentifier": "com.example.a",
		"CFBundleVersion":    "1.0",
	})
	writeBundle(t, filepath.Join(mpkg, "Contents", "Packages", "B.pkg"), map[string]any{
		"Bundle identifier": "com.example.b",
		"CFBundleName":      "B",
	})

	info, err := NewHandler(nil).ReceiptInfo(mpkg)
	if err != nil {
		t.Fatalf("ReceiptInfo failed: %v", err)
	}
	want := []models.Receipt{
		{PackageID: "com.example.a", Version: "1.0", Filename: "A.pkg"},
		{PackageID: "com.example.b", Version: "0.0.0.0.0", Name: "B", Filename: "B.pkg"},
	}
	if diff := cmp.Diff(want, info.Receipts); diff != "" {
		t.Errorf("receipts mismatch (-want +got):\n%s", diff)
	}
}

func TestReceiptInfoBundleDist(t *testing.T) {
	mpkg := filepath.Join(t.TempDir(), "Dist.mpkg")
	writeBundle(t, filepath.Join(mpkg, "Contents", "Packages", "Core.pkg"), map[string]any{
		"CFBundleIdentifier":         "com.example.core",
		"CFBundleShortVersionString": "3.0",
	})
	dist := `<installer-script>
    <pkg-ref id="com.example.core">Packages/Core.pkg</pkg-ref>
    <pkg-ref id="com.example.docs" version="3.0.1"/>
</installer-script>`
	if err := os.WriteFile(filepath.Join(mpkg, "Contents", "Dist.dist"), []byte(dist), 0644); err != nil {
		t.Fatalf("Failed to write dist: %v", err)
	}

	info, err := NewHandler(nil).ReceiptInfo(mpkg)
	if err != nil {
		t.Fatalf("ReceiptInfo failed: %v", err)
	}
	want := []models.Receipt{
		{PackageID: "com.example.core", Version: "3.0", Filename: "Core.pkg"},
		{PackageID: "com.example.docs", Version: "3.0.1"},
	}
	if diff := cmp.Diff(want, info.Receipts); diff != "" {
		t.Errorf("receipts mismatch (-want +got):\n%s", diff)
	}
}

func TestOneReceiptLegacyInfoFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Old.pkg")
	lproj := filepath.Join(path, "Contents", "Resources", "English.lproj")
	if err := os.MkdirAll(lproj, 0755); err != nil {
		t.Fatalf("Failed to create lproj: %v", err)
	}
	if err := os.WriteFile(filepath.Join(lproj, "Old.info"), []byte("Title Old Thing\nVersion 1.1\n"), 0644); err != nil {
		t.Fatalf("Failed to write info file: %v", err)
	}

	r, ok := oneReceipt(path)
	if !ok {
		t.Fatalf("expected a receipt from the .info file")
	}
	want := models.Receipt{PackageID: "Old.pkg", Version: "1.1", Name: "Old Thing", Filename: "Old.pkg"}
	if diff := cmp.Diff(want, r); diff != "" {
		t.Errorf("receipt mismatch (-want +got):\n%s", diff)
	}
}

func TestPackageVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "none.pkg")
	receipts := func(versions ...string) []models.Receipt {
		var rs []models.Receipt
		for _, v := range versions {
			rs = append(rs, models.Receipt{PackageID: "id." + v, Version: v})
		}
		return rs
	}

	tests := []struct {
		name        string
		nameVersion string
		receipts    []models.Receipt
		want        string
	}{
		{"no declared version", "", receipts("1.0", "1.2"), "1.2"},
		{"single receipt wins", "2.0", receipts("3.1"), "3.1"},
		{"receipt extends declared", "2.0", receipts("2.0.3124.0", "1.5"), "2.0.3124.0"},
		{"declared kept", "2.0", receipts("1.0", "1.5"), "2.0"},
		{"no receipts keeps declared", "2.0", nil, "2.0"},
		{"nothing at all", "", nil, "0.0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := packageVersion(path, tt.nameVersion, tt.receipts); got != tt.want {
				t.Errorf("packageVersion() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMetadataErrors(t *testing.T) {
	dir := t.TempDir()
	h := NewHandler(extract.Xar{})

	if _, err := h.Metadata(filepath.Join(dir, "Thing.zip")); !errors.Is(err, models.ErrUnsupportedInstallerItem) {
		t.Errorf("expected UnsupportedInstallerItem, got %v", err)
	}

	garbage := filepath.Join(dir, "Garbage.pkg")
	if err := os.WriteFile(garbage, []byte("not a package"), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}
	before, _ := filepath.Glob(filepath.Join(os.TempDir(), "pkg_Garbage_*"))
	if _, err := h.Metadata(garbage); !errors.Is(err, models.ErrExtractionFailure) {
		t.Errorf("expected ExtractionFailure, got %v", err)
	}
	after, _ := filepath.Glob(filepath.Join(os.TempDir(), "pkg_Garbage_*"))
	if len(after) != len(before) {
		t.Errorf("workspace left behind: %v", after)
	}
}

type countingExtractor struct {
	calls int
}

func (c *countingExtractor) Extract(src, dest string) bool {
	c.calls++
	return false
}

func TestFlatPackageWithoutXarHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Renamed.pkg")
	if err := os.WriteFile(path, []byte("PK\x03\x04 zip archive"), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	ex := &countingExtractor{}
	if _, err := NewHandler(ex).Metadata(path); !errors.Is(err, models.ErrExtractionFailure) {
		t.Errorf("expected ExtractionFailure, got %v", err)
	}
	if ex.calls != 0 {
		t.Errorf("extractor ran %d times on a file without xar header", ex.calls)
	}
}
