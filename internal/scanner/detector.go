package scanner

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
)

// Flat packages are xar archives
var xarMagic = []byte("xar!")

// HasDiskImageExt verifies a path ends in .dmg or .iso
func HasDiskImageExt(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".dmg", ".iso":
		return true
	}
	return false
}

// HasPackageExt verifies a path ends in .pkg or .mpkg
func HasPackageExt(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pkg", ".mpkg":
		return true
	}
	return false
}

// HasInstallerItemExt verifies we have an installer item
func HasInstallerItemExt(path string) bool {
	return HasPackageExt(path) || HasDiskImageExt(path)
}

// DetectItemType classifies an installer item. The extension decides the
// family; for packages the filesystem decides flat versus bundle.
func DetectItemType(path string) (ItemType, error) {
	info, err := os.Stat(path)
	if err != nil {
		return TypeUnknown, err
	}

	switch {
	case HasDiskImageExt(path):
		return TypeDiskImage, nil
	case HasPackageExt(path):
		if info.IsDir() {
			return TypeBundlePackage, nil
		}
		return TypeFlatPackage, nil
	case strings.HasSuffix(path, ".dist"):
		return TypeDistribution, nil
	}

	return TypeUnknown, nil
}

// HasXarHeader reports whether path is a file starting with the xar magic
func HasXarHeader(path string) bool {
	return hasPrefix(path, xarMagic)
}

func hasPrefix(path string, magic []byte) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	header := make([]byte, len(magic))
	n, _ := f.Read(header)
	return bytes.Equal(header[:n], magic)
}
