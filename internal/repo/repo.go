// Package repo stores installer items and pkginfo documents in a
// repository laid out as pkgs/, pkgsinfo/ and catalogs/.
package repo

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ralt/pkgimport/internal/models"
	"github.com/ralt/pkgimport/internal/utils"
	"github.com/sirupsen/logrus"
)

// Repository kinds
const (
	KindPkgs     = "pkgs"
	KindPkgsInfo = "pkgsinfo"
	KindCatalogs = "catalogs"
)

// Repo is the storage a repository needs to offer
type Repo interface {
	// Get returns the contents of a resource such as catalogs/all
	Get(name string) ([]byte, error)
	// Put stores data under name
	Put(name string, data []byte) error
	// PutFromLocalFile stores a local file or bundle directory under name
	PutFromLocalFile(name, localPath string) error
	// ItemList lists every item of kind, relative to the kind directory
	ItemList(kind string) ([]string, error)
}

// LocalRepo is implemented by repositories backed by the local filesystem
type LocalRepo interface {
	LocalPath(name string) string
}

// FileRepo is a repository in a local directory
type FileRepo struct {
	Root string
}

// Open returns the repository behind a file:// URL or a plain path
func Open(repoURL string) (*FileRepo, error) {
	if repoURL == "" {
		return nil, models.NewError(models.ErrInvalidConfig, "", errors.New("no repository configured"))
	}

	root := repoURL
	if strings.Contains(repoURL, "://") {
		u, err := url.Parse(repoURL)
		if err != nil {
			return nil, models.NewError(models.ErrInvalidConfig, repoURL, err)
		}
		if u.Scheme != "file" {
			return nil, models.NewError(models.ErrInvalidConfig, repoURL,
				fmt.Errorf("unsupported repository scheme %q", u.Scheme))
		}
		root = u.Path
	}

	if !utils.IsDir(root) {
		return nil, models.NewError(models.ErrInvalidConfig, root, errors.New("repository directory does not exist"))
	}
	return &FileRepo{Root: root}, nil
}

// LocalPath implements LocalRepo
func (r *FileRepo) LocalPath(name string) string {
	return filepath.Join(r.Root, filepath.FromSlash(name))
}

// Get implements Repo. When name is missing a compressed sibling
// (name.gz, name.xz, name.zst) is decompressed instead.
func (r *FileRepo) Get(name string) ([]byte, error) {
	path := r.LocalPath(name)
	data, err := os.ReadFile(path)
	if err == nil || !errors.Is(err, fs.ErrNotExist) {
		return data, err
	}

	for _, ext := range utils.CompressedExts {
		compressed, cerr := os.ReadFile(path + ext)
		if cerr != nil {
			continue
		}
		logrus.Debugf("Reading %s from %s%s", name, name, ext)
		return utils.Decompress(path+ext, compressed)
	}
	return nil, err
}

// Put implements Repo
func (r *FileRepo) Put(name string, data []byte) error {
	return utils.WriteFile(r.LocalPath(name), data, 0644)
}

// PutFromLocalFile implements Repo
func (r *FileRepo) PutFromLocalFile(name, localPath string) error {
	dst := r.LocalPath(name)
	if utils.IsDir(localPath) {
		return utils.CopyTree(localPath, dst)
	}
	if err := utils.EnsureDir(filepath.Dir(dst)); err != nil {
		return err
	}
	return utils.CopyFile(localPath, dst)
}

// ItemList implements Repo. Hidden files are skipped and bundle packages
// are listed as a single item.
func (r *FileRepo) ItemList(kind string) ([]string, error) {
	base := r.LocalPath(kind)
	if !utils.IsDir(base) {
		return nil, nil
	}

	var items []string
	err := filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == base {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(base, path)
		if err != nil {
			return err
		}
		if d.IsDir() {
			if strings.HasSuffix(d.Name(), ".pkg") || strings.HasSuffix(d.Name(), ".mpkg") {
				items = append(items, filepath.ToSlash(rel))
				return filepath.SkipDir
			}
			return nil
		}
		items = append(items, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(items)
	return items, nil
}
