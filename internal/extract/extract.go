// Package extract turns installer containers into plain directory trees.
//
// Nothing here mounts anything: disk images and flat packages are unpacked
// into a private workspace that the caller must Release.
package extract

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// Extractor unpacks a container into dest. It reports true iff dest holds
// at least one entry afterwards; tool failures that still produced files
// are only warnings.
type Extractor interface {
	Extract(src, dest string) bool
}

// Converter rewrites a container into a format an Extractor can read
type Converter interface {
	Convert(src, dest string) bool
}

// Chain tries each extractor in turn until one yields files
type Chain []Extractor

// Extract implements Extractor
func (c Chain) Extract(src, dest string) bool {
	for _, e := range c {
		if e == nil {
			continue
		}
		if e.Extract(src, dest) {
			return true
		}
	}
	return false
}

// Workspace is a uniquely named scratch directory. Root is where the
// useful content ended up, which may be a subdirectory of Dir.
type Workspace struct {
	Dir  string
	Root string
}

// NewWorkspace creates a fresh workspace whose name is derived from item
func NewWorkspace(prefix, item string) (*Workspace, error) {
	base := strings.TrimSuffix(filepath.Base(item), filepath.Ext(item))
	dir, err := os.MkdirTemp("", prefix+sanitize(base)+"_")
	if err != nil {
		return nil, err
	}
	return &Workspace{Dir: dir, Root: dir}, nil
}

// Release removes the workspace and everything in it
func (w *Workspace) Release() {
	if w == nil || w.Dir == "" {
		return
	}
	if err := os.RemoveAll(w.Dir); err != nil {
		logrus.Warnf("Could not remove %s: %v", w.Dir, err)
		return
	}
	logrus.Debugf("%s successfully removed", w.Dir)
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		if r == filepath.Separator || r == '*' {
			return '_'
		}
		return r
	}, s)
}
