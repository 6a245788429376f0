package scanner

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

// walkLimited visits every entry below root whose relative path has at
// most maxDepth separators, in lexical order. Hidden directories are
// neither reported nor entered when skipHidden is set. Returning false
// from fn stops the walk.
func walkLimited(root string, maxDepth int, skipHidden bool, fn func(m Match, d fs.DirEntry) bool) error {
	root = filepath.Clean(root)
	stop := fs.SkipAll

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logrus.Debugf("Skipping %s: %v", path, err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if path == root {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		depth := strings.Count(rel, string(filepath.Separator))

		if d.IsDir() && skipHidden && strings.HasPrefix(d.Name(), ".") {
			return fs.SkipDir
		}

		if !fn(Match{Path: path, RelPath: rel, Depth: depth}, d) {
			return stop
		}

		if d.IsDir() && depth >= maxDepth {
			return fs.SkipDir
		}
		return nil
	})
	if err == stop {
		return nil
	}
	return err
}

// findShallowest returns the shallowest entry accepted by want. Entries at
// the same depth keep walk order.
func findShallowest(root string, want func(name string, d fs.DirEntry) bool) (Match, bool) {
	var candidates []Match
	walkLimited(root, MaxDepth, true, func(m Match, d fs.DirEntry) bool {
		if want(d.Name(), d) {
			candidates = append(candidates, m)
		}
		return true
	})
	if len(candidates) == 0 {
		return Match{}, false
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Depth < candidates[j].Depth
	})
	return candidates[0], true
}

// FindFirstPackage finds the shallowest .pkg or .mpkg below root, either a
// flat file or a bundle directory
func FindFirstPackage(root string) (Match, bool) {
	return findShallowest(root, func(name string, _ fs.DirEntry) bool {
		return HasPackageExt(name)
	})
}

// FindFirstApp finds the shallowest .app directory below root
func FindFirstApp(root string) (Match, bool) {
	return findShallowest(root, func(name string, d fs.DirEntry) bool {
		return d.IsDir() && strings.HasSuffix(strings.ToLower(name), ".app")
	})
}

// ContainsSupportedInstaller reports whether an extracted container holds
// an application bundle or a flat package within the depth bound
func ContainsSupportedInstaller(root string) bool {
	found := false
	walkLimited(root, MaxDepth, false, func(m Match, d fs.DirEntry) bool {
		lower := strings.ToLower(d.Name())
		if d.IsDir() {
			found = strings.HasSuffix(lower, ".app")
		} else {
			found = strings.HasSuffix(lower, ".pkg") || strings.HasSuffix(lower, ".mpkg")
		}
		return !found
	})
	return found
}

// FindFiles returns every regular file called name below root, in lexical
// order, no deeper than MaxDepth
func FindFiles(root, name string) []string {
	var paths []string
	walkLimited(root, MaxDepth, false, func(m Match, d fs.DirEntry) bool {
		if d.Type().IsRegular() && d.Name() == name {
			paths = append(paths, m.Path)
		}
		return true
	})
	return paths
}
