package utils

import (
	"bytes"
	"io"
	"path/filepath"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

// GzipDecompress decompresses gzip data
func GzipDecompress(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()

	return io.ReadAll(r)
}

// XzDecompress decompresses xz data
func XzDecompress(data []byte) ([]byte, error) {
	r, err := xz.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return io.ReadAll(r)
}

// ZstdDecompress decompresses zstd data
func ZstdDecompress(data []byte) ([]byte, error) {
	r, err := zstd.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()

	return io.ReadAll(r)
}

// CompressedExts lists the suffixes Decompress understands, in lookup order
var CompressedExts = []string{".gz", ".xz", ".zst"}

// Decompress decodes data according to the extension of name. Unknown
// extensions return data unchanged.
func Decompress(name string, data []byte) ([]byte, error) {
	switch ext := filepath.Ext(name); ext {
	case ".gz":
		return GzipDecompress(data)
	case ".xz":
		return XzDecompress(data)
	case ".zst":
		return ZstdDecompress(data)
	default:
		return data, nil
	}
}
