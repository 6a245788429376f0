package distribution

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/ralt/pkgimport/internal/models"
)

// parseFile parses a manifest read outside any package
func parseFile(doc string) ([]models.Receipt, error) {
	return NewParser(nil).Parse(doc, "")
}

func writeDoc(t *testing.T, path, content string) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
	return path
}

// dirResolver treats nested packages as directories holding a Distribution
type dirResolver struct {
	parser *Parser
	seen   []string
}

func (r *dirResolver) NestedReceipts(path string, w *Walk) []models.Receipt {
	r.seen = append(r.seen, filepath.Base(path))
	receipts, err := r.parser.ParseWalk(filepath.Join(path, "Distribution"), path, w)
	if err != nil {
		return nil
	}
	return receipts
}

func TestParsePackageInfo(t *testing.T) {
	doc := writeDoc(t, filepath.Join(t.TempDir(), "PackageInfo"), `<?xml version="1.0" encoding="utf-8"?>
<pkg-info format-version="2" identifier="com.example.core" version="1.2.3" install-location="/">
    <payload numberOfFiles="12" installKBytes="2048.7"/>
</pkg-info>`)

	receipts, err := parseFile(doc)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	want := []models.Receipt{{PackageID: "com.example.core", Version: "1.2.3", InstalledSize: 2048}}
	if diff := cmp.Diff(want, receipts); diff != "" {
		t.Errorf("receipts mismatch (-want +got):\n%s", diff)
	}
}

func TestParsePackageInfoWithoutPayload(t *testing.T) {
	doc := writeDoc(t, filepath.Join(t.TempDir(), "PackageInfo"),
		`<pkg-info identifier="com.example.scripts" version="1.0"><scripts/></pkg-info>`)

	receipts, err := parseFile(doc)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(receipts) != 0 {
		t.Errorf("expected payload-free package to leave no receipt, got %v", receipts)
	}
}

func TestParsePkgRefsAccumulate(t *testing.T) {
	doc := writeDoc(t, filepath.Join(t.TempDir(), "Distribution"), `<?xml version="1.0"?>
<installer-gui-script minSpecVersion="1">
    <product id="com.example.suite" version="4.5"/>
    <choices-outline><line choice="default"/></choices-outline>
    <pkg-ref id="com.example.b"/>
    <pkg-ref id="com.example.a" version="1.0" installKBytes="10"/>
    <pkg-ref id="com.example.b" version="2.0" installKBytes="20">#Missing.pkg</pkg-ref>
    <pkg-ref id="com.example.noversion"/>
    <pkg-ref version="9.9">#NoID.pkg</pkg-ref>
</installer-gui-script>`)

	receipts, err := parseFile(doc)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	want := []models.Receipt{
		{PackageID: "com.example.b", Version: "2.0", InstalledSize: 20},
		{PackageID: "com.example.a", Version: "1.0", InstalledSize: 10},
	}
	if diff := cmp.Diff(want, receipts); diff != "" {
		t.Errorf("receipts mismatch (-want +got):\n%s", diff)
	}

	v, ok := ProductVersion(doc)
	if !ok || v != "4.5" {
		t.Errorf("ProductVersion() = %q, %v; want 4.5", v, ok)
	}
}

func TestParseExpandsNestedPackages(t *testing.T) {
	root := t.TempDir()
	outer := filepath.Join(root, "Outer.pkg")
	writeDoc(t, filepath.Join(outer, "Distribution"), `<installer-gui-script>
    <pkg-ref id="com.example.inner" version="3.0">file:Inner%20Tools.pkg</pkg-ref>
</installer-gui-script>`)
	writeDoc(t, filepath.Join(root, "Inner Tools.pkg", "Distribution"), `<installer-gui-script>
    <pkg-ref id="com.example.inner.core" version="3.0.1" installKBytes="5"/>
</installer-gui-script>`)

	r := &dirResolver{}
	r.parser = NewParser(r)

	receipts, err := r.parser.Parse(filepath.Join(outer, "Distribution"), outer)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	want := []models.Receipt{{PackageID: "com.example.inner.core", Version: "3.0.1", InstalledSize: 5}}
	if diff := cmp.Diff(want, receipts); diff != "" {
		t.Errorf("receipts mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"Inner Tools.pkg"}, r.seen); diff != "" {
		t.Errorf("resolver calls mismatch (-want +got):\n%s", diff)
	}
}

func TestParseStopsOnReferenceCycle(t *testing.T) {
	root := t.TempDir()
	a := filepath.Join(root, "A.pkg")
	b := filepath.Join(root, "B.pkg")
	writeDoc(t, filepath.Join(a, "Distribution"), `<installer-gui-script>
    <pkg-ref id="com.example.b" version="2.0">file:B.pkg</pkg-ref>
</installer-gui-script>`)
	writeDoc(t, filepath.Join(b, "Distribution"), `<installer-gui-script>
    <pkg-ref id="com.example.a" version="1.0">file:A.pkg</pkg-ref>
    <pkg-ref id="com.example.b.core" version="2.0"/>
</installer-gui-script>`)

	r := &dirResolver{}
	r.parser = NewParser(r)

	w := NewWalk()
	if !w.Enter(a) {
		t.Fatalf("expected to enter %s", a)
	}
	receipts, err := r.parser.ParseWalk(filepath.Join(a, "Distribution"), a, w)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	want := []models.Receipt{
		{PackageID: "com.example.a", Version: "1.0"},
		{PackageID: "com.example.b.core", Version: "2.0"},
	}
	if diff := cmp.Diff(want, receipts); diff != "" {
		t.Errorf("receipts mismatch (-want +got):\n%s", diff)
	}
}

func TestWalkDepthBound(t *testing.T) {
	w := NewWalk()
	for i := 0; i < 4; i++ {
		if !w.Enter(filepath.Join("/pkgs", string(rune('a'+i)))) {
			t.Fatalf("Enter %d should succeed", i)
		}
	}
	if w.Enter("/pkgs/z") {
		t.Errorf("expected depth bound to stop a fifth level")
	}
	w.Leave("/pkgs/d")
	if !w.Enter("/pkgs/z") {
		t.Errorf("expected Enter to succeed after Leave")
	}
}

func TestParseUnreadable(t *testing.T) {
	dir := t.TempDir()
	broken := writeDoc(t, filepath.Join(dir, "Distribution"), `<installer-gui-script><pkg-ref id="x"`)
	empty := writeDoc(t, filepath.Join(dir, "Empty"), "")

	for _, doc := range []string{broken, empty, filepath.Join(dir, "missing")} {
		_, err := parseFile(doc)
		if !errors.Is(err, models.ErrManifestUnreadable) {
			t.Errorf("parseFile(%s) error = %v, want ManifestUnreadable", filepath.Base(doc), err)
		}
	}

	if _, ok := ProductVersion(broken); ok {
		t.Errorf("ProductVersion should report absent for unreadable documents")
	}
}

func TestParseLegacyEncoding(t *testing.T) {
	doc := writeDoc(t, filepath.Join(t.TempDir(), "old.dist"),
		"<?xml version=\"1.0\" encoding=\"ISO-8859-1\"?>\n<installer-script><title>Caf\xe9</title>"+
			"<pkg-ref id=\"com.example.old\" version=\"1.0\"/></installer-script>")

	receipts, err := parseFile(doc)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(receipts) != 1 || receipts[0].PackageID != "com.example.old" {
		t.Errorf("unexpected receipts: %v", receipts)
	}
}

func TestRestartAction(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		content string
		want    string
		ok      bool
	}{
		{"element", `<installer-gui-script><restartAction>RequireRestart</restartAction></installer-gui-script>`, "RequireRestart", true},
		{"dashed element", `<x><restart-action> RequireLogout </restart-action></x>`, "RequireLogout", true},
		{"none is absent", `<x><restartAction>None</restartAction></x>`, "", false},
		{"postinstall action", `<pkg-info identifier="a" version="1" postinstall-action="restart"/>`, "RequireRestart", true},
		{"nothing", `<pkg-info identifier="a" version="1" postinstall-action="none"/>`, "", false},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := writeDoc(t, filepath.Join(dir, string(rune('a'+i))), tt.content)
			got, ok := RestartAction(doc)
			if got != tt.want || ok != tt.ok {
				t.Errorf("RestartAction() = %q, %v; want %q, %v", got, ok, tt.want, tt.ok)
			}
		})
	}
}
