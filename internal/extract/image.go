package extract

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ralt/pkgimport/internal/models"
	"github.com/ralt/pkgimport/internal/scanner"
	"github.com/ralt/pkgimport/internal/utils"
	"github.com/sirupsen/logrus"
)

// Scratch names inside an image workspace
const (
	convertedImage = "_converted.img"
	innerDir       = "_inner"
)

// Embedded image files worth a second extraction pass
var imageExts = map[string]bool{
	".hfs": true, ".img": true, ".iso": true, ".dmg": true,
	".udif": true, ".sparseimage": true, ".apfs": true,
}

// ImageExtractor unpacks disk images. Extractor is the primary path;
// Converter, when set, provides the "convert then extract" fallback for
// images the extractor can only split into opaque partitions.
type ImageExtractor struct {
	Extractor Extractor
	Converter Converter
}

// Extract unpacks image into a new workspace. The caller owns the returned
// workspace and must Release it. On error nothing is left behind.
func (x *ImageExtractor) Extract(image string) (*Workspace, error) {
	if isNil(x.Extractor) && isNil(x.Converter) {
		return nil, models.NewError(models.ErrExtractionFailure, image,
			errors.New("no disk image extractor found, install 7-Zip (7zz/7z) and/or dmg2img"))
	}

	ws, err := NewWorkspace("mnt_", image)
	if err != nil {
		return nil, models.NewError(models.ErrExtractionFailure, image, err)
	}

	root, err := x.extractInto(image, ws.Dir)
	if err != nil {
		ws.Release()
		return nil, err
	}
	ws.Root = root
	logrus.Infof("Disk image extracted to %s", root)
	return ws, nil
}

func (x *ImageExtractor) extractInto(image, dir string) (string, error) {
	extracted := x.extract(image, dir)

	// Some images only yield a partition map and an HFS blob on the first
	// pass; give the converter a chance before settling for that.
	if extracted && !isNil(x.Converter) && !scanner.ContainsSupportedInstaller(dir) {
		logrus.Infof("No .app/.pkg found after extracting %s; trying dmg2img fallback", image)
		extracted = false
	}

	if !extracted {
		if root, ok := x.convertInto(image, dir); ok {
			return root, nil
		}
	}

	if !extracted && !utils.DirHasEntries(dir) {
		msg := "extraction yielded no files"
		if d, ok := x.Extractor.(interface{ Diagnostic() string }); ok && d.Diagnostic() != "" {
			msg = fmt.Sprintf("%s: %s", msg, d.Diagnostic())
		}
		return "", models.NewError(models.ErrExtractionFailure, image, errors.New(msg))
	}

	flatten(dir)

	// An embedded image at the root gets a second pass.
	if candidate := embeddedImage(dir); candidate != "" {
		inner := filepath.Join(dir, innerDir)
		if x.extract(candidate, inner) {
			flatten(inner)
			return inner, nil
		}
		removeScratch(inner)
	}

	return dir, nil
}

// convertInto runs the "convert then extract" fallback. The raw image and
// any empty output are removed again, so dir only holds real content.
func (x *ImageExtractor) convertInto(image, dir string) (string, bool) {
	if isNil(x.Converter) {
		logrus.Warnf("dmg2img not installed; cannot fall back for %s", image)
		return "", false
	}

	converted := filepath.Join(dir, convertedImage)
	defer removeScratch(converted)
	if !x.Converter.Convert(image, converted) {
		logrus.Warnf("dmg2img conversion failed for %s", image)
		return "", false
	}

	inner := filepath.Join(dir, innerDir)
	if x.extract(converted, inner) {
		flatten(inner)
		return inner, true
	}
	removeScratch(inner)
	logrus.Warnf("Converted image of %s yielded no files", image)
	return "", false
}

func removeScratch(path string) {
	if err := os.RemoveAll(path); err != nil {
		logrus.Debugf("Could not remove %s: %v", path, err)
	}
}

func (x *ImageExtractor) extract(src, dest string) bool {
	if isNil(x.Extractor) {
		return false
	}
	return x.Extractor.Extract(src, dest)
}

func embeddedImage(dir string) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	for _, e := range entries {
		if !e.Type().IsRegular() || e.Name() == convertedImage {
			continue
		}
		if imageExts[strings.ToLower(filepath.Ext(e.Name()))] {
			return filepath.Join(dir, e.Name())
		}
	}
	return ""
}

func flatten(dir string) {
	if err := utils.FlattenSingleDir(dir); err != nil {
		logrus.Debugf("Could not flatten %s: %v", dir, err)
	}
}

// isNil catches both nil interfaces and typed nil pointers such as the
// *SevenZip NewSevenZip returns when no tool is installed
func isNil(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case *SevenZip:
		return t == nil
	case *Dmg2Img:
		return t == nil
	}
	return false
}
