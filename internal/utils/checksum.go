package utils

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// Checksum contains the checksums pkgimport records for a file
type Checksum struct {
	MD5    string
	SHA256 string
	Size   int64
}

// CalculateChecksums calculates all checksums for a file in a single pass
func CalculateChecksums(path string) (*Checksum, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	// Get file info for size
	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	md5Hash := md5.New()
	sha256Hash := sha256.New()

	// Use MultiWriter to calculate all hashes at once
	multiWriter := io.MultiWriter(md5Hash, sha256Hash)

	if _, err := io.Copy(multiWriter, f); err != nil {
		return nil, err
	}

	return &Checksum{
		MD5:    hex.EncodeToString(md5Hash.Sum(nil)),
		SHA256: hex.EncodeToString(sha256Hash.Sum(nil)),
		Size:   info.Size(),
	}, nil
}

// SHA256File returns the hex SHA-256 digest of a file
func SHA256File(path string) (string, error) {
	sum, err := CalculateChecksums(path)
	if err != nil {
		return "", err
	}
	return sum.SHA256, nil
}

// MD5File returns the hex MD5 digest of a file
func MD5File(path string) (string, error) {
	sum, err := CalculateChecksums(path)
	if err != nil {
		return "", err
	}
	return sum.MD5, nil
}

// SizeKB returns the size of a regular file in whole kilobytes
func SizeKB(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size() / 1024, nil
}

// TreeSizeKB sums the sizes of every file below root in whole kilobytes.
// Symbolic links are counted by their own size and never followed.
func TreeSizeKB(root string) (int64, error) {
	var total int64
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := os.Lstat(path)
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	if err != nil {
		return 0, err
	}
	return total / 1024, nil
}
