// Package distribution reads the receipts described by installer
// manifests: PackageInfo documents, Distribution scripts and .dist files.
package distribution

import (
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ralt/pkgimport/internal/models"
	"github.com/ralt/pkgimport/internal/scanner"
	"github.com/sirupsen/logrus"
)

// Resolver expands a nested package referenced from a manifest into its
// receipts. path has already been entered on w. Implementations must pass
// w back into ParseWalk for any manifest they read so cycles are caught
// across package boundaries.
type Resolver interface {
	NestedReceipts(path string, w *Walk) []models.Receipt
}

// Walk tracks one recursive expansion: the absolute package paths on the
// current branch and how deep it is. Callers expanding a top-level package
// should Enter it first so a manifest referring back to it stops there.
type Walk struct {
	stack map[string]bool
	depth int
}

// NewWalk starts an expansion
func NewWalk() *Walk {
	return &Walk{stack: make(map[string]bool)}
}

// Enter marks path as being expanded. It returns false when path is
// already on the current branch or the depth bound is reached.
func (w *Walk) Enter(path string) bool {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	if w.stack[path] || w.depth >= scanner.MaxDepth {
		return false
	}
	w.stack[path] = true
	w.depth++
	return true
}

// Leave undoes the matching Enter
func (w *Walk) Leave(path string) {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	delete(w.stack, path)
	w.depth--
}

// Parser turns manifests into receipts
type Parser struct {
	Resolver Resolver
}

// NewParser creates a parser expanding nested packages through r
func NewParser(r Resolver) *Parser {
	return &Parser{Resolver: r}
}

// Parse reads the receipts described by the manifest at doc. origin, when
// set, is the package file:-scheme references are relative to; otherwise
// they are relative to doc itself.
func (p *Parser) Parse(doc, origin string) ([]models.Receipt, error) {
	return p.ParseWalk(doc, origin, NewWalk())
}

// ParseWalk is Parse as one step of an enclosing expansion
func (p *Parser) ParseWalk(doc, origin string, w *Walk) ([]models.Receipt, error) {
	d, err := readDocument(doc)
	if err != nil {
		return nil, models.NewError(models.ErrManifestUnreadable, doc, err)
	}

	if len(d.pkgInfos) > 0 {
		return pkgInfoReceipts(d), nil
	}
	if len(d.pkgRefs) == 0 {
		return nil, nil
	}

	var receipts []models.Receipt
	for _, ref := range collectRefs(d, doc, origin) {
		if ref.file != "" && p.Resolver != nil && nestedExists(ref.file) {
			if w.Enter(ref.file) {
				receipts = append(receipts, p.Resolver.NestedReceipts(ref.file, w)...)
				w.Leave(ref.file)
				continue
			}
			logrus.Warnf("Not expanding %s: reference cycle or too deeply nested", ref.file)
		}
		if ref.hasVersion {
			receipts = append(receipts, ref.receipt)
		}
	}
	return receipts, nil
}

// ProductVersion returns the version attribute of the first product
// element in a Distribution document
func ProductVersion(doc string) (string, bool) {
	d, err := readDocument(doc)
	if err != nil {
		logrus.Debugf("Could not read %s: %v", doc, err)
		return "", false
	}
	if len(d.products) == 0 {
		return "", false
	}
	return d.products[0].attr("version")
}

func pkgInfoReceipts(d *document) []models.Receipt {
	var receipts []models.Receipt
	for _, pi := range d.pkgInfos {
		id, hasID := pi.attr("identifier")
		vers, hasVersion := pi.attr("version")
		if !hasID || !hasVersion {
			continue
		}
		// No payload means no receipt is left on disk
		if pi.payload == nil {
			continue
		}

		r := models.Receipt{PackageID: id, Version: vers}
		if kb, ok := pi.payload.attr("installKBytes"); ok {
			r.InstalledSize = parseKBytes(kb)
		}
		if !containsReceipt(receipts, r) {
			receipts = append(receipts, r)
		}
	}
	return receipts
}

type pkgRef struct {
	receipt    models.Receipt
	hasVersion bool
	file       string
}

// collectRefs merges pkg-ref elements per id, in order of first appearance
func collectRefs(d *document, doc, origin string) []*pkgRef {
	var refs []*pkgRef
	byID := make(map[string]*pkgRef)

	for _, e := range d.pkgRefs {
		id, ok := e.attr("id")
		if !ok {
			continue
		}
		ref, seen := byID[id]
		if !seen {
			ref = &pkgRef{receipt: models.Receipt{PackageID: id}}
			byID[id] = ref
			refs = append(refs, ref)
		}
		if v, ok := e.attr("version"); ok {
			ref.receipt.Version = v
			ref.hasVersion = true
		}
		if kb, ok := e.attr("installKBytes"); ok {
			ref.receipt.InstalledSize = parseKBytes(kb)
		}
		if file := resolveRef(strings.TrimSpace(e.text), doc, origin); file != "" {
			ref.file = file
		}
	}
	return refs
}

// resolveRef turns the text of a pkg-ref into a path. file: references are
// relative to the origin package, everything else to the manifest.
func resolveRef(text, doc, origin string) string {
	if !scanner.HasPackageExt(text) {
		return ""
	}

	var base, rel string
	if strings.HasPrefix(text, "file:") {
		rel = unescape(text[len("file:"):])
		base = origin
		if base == "" {
			base = doc
		}
	} else {
		rel = unescape(strings.TrimPrefix(text, "#"))
		base = doc
	}

	if filepath.IsAbs(rel) {
		return filepath.Clean(rel)
	}
	return filepath.Join(filepath.Dir(base), rel)
}

func unescape(s string) string {
	if u, err := url.PathUnescape(s); err == nil {
		return u
	}
	return s
}

func nestedExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// installKBytes is sometimes written as a float
func parseKBytes(s string) int64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		logrus.Warnf("Ignoring invalid installKBytes %q", s)
		return 0
	}
	return int64(f)
}

func containsReceipt(receipts []models.Receipt, r models.Receipt) bool {
	for _, existing := range receipts {
		if existing == r {
			return true
		}
	}
	return false
}

// Restart behaviour advertised by pkg-info postinstall-action
var postinstallActions = map[string]string{
	"restart":  "RequireRestart",
	"logout":   "RequireLogout",
	"shutdown": "RequireShutdown",
}

// RestartAction reads the restart behaviour a manifest advertises, from a
// restartAction element or, for PackageInfo documents, the
// postinstall-action attribute. "None" counts as absent.
func RestartAction(doc string) (string, bool) {
	d, err := readDocument(doc)
	if err != nil {
		logrus.Debugf("Could not read %s: %v", doc, err)
		return "", false
	}

	for _, tag := range restartTags {
		if v := strings.TrimSpace(d.texts[tag]); v != "" {
			if v == "None" {
				return "", false
			}
			return v, true
		}
	}
	for _, pi := range d.pkgInfos {
		action, _ := pi.attr("postinstall-action")
		if v, ok := postinstallActions[strings.ToLower(action)]; ok {
			return v, true
		}
	}
	return "", false
}
