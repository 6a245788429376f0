package repo

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/ralt/pkgimport/internal/models"
	"github.com/ralt/pkgimport/internal/signer"
	"github.com/sirupsen/logrus"
	"howett.net/plist"
)

// CopyItem copies an installer item into pkgs/subdir and returns its
// repository path. The version is appended to the name unless already
// there; a name that is taken gets a __N suffix. Items already in place
// are not copied.
func CopyItem(r Repo, itemPath, vers, subdir string) (string, error) {
	base := filepath.Base(itemPath)
	dest := path.Join(KindPkgs, subdir, base)

	if local, ok := r.(LocalRepo); ok {
		if filepath.Clean(local.LocalPath(dest)) == filepath.Clean(itemPath) {
			return dest, nil
		}
	}

	ext := filepath.Ext(base)
	name := strings.TrimSuffix(base, ext)
	if vers != "" && !strings.HasSuffix(name, vers) {
		dest = path.Join(KindPkgs, subdir, fmt.Sprintf("%s-%s%s", name, vers, ext))
	}

	existing, err := listKind(r, KindPkgs)
	if err != nil {
		return "", models.NewError(models.ErrRepoCopy, itemPath, fmt.Errorf("unable to get list of current pkgs: %w", err))
	}
	for i := 1; existing[dest]; i++ {
		dest = path.Join(KindPkgs, subdir, fmt.Sprintf("%s__%d%s", name, i, ext))
	}

	if err := r.PutFromLocalFile(dest, itemPath); err != nil {
		return "", models.NewError(models.ErrRepoCopy, itemPath, fmt.Errorf("unable to copy to %s: %w", dest, err))
	}
	logrus.Infof("Copied %s to %s", base, dest)
	return dest, nil
}

// SaveOptions control how a pkginfo is written
type SaveOptions struct {
	// Extension is appended to pkginfo names, with or without a dot
	Extension string
	// Signer, when set, writes a detached signature next to the pkginfo
	Signer signer.Signer
}

// SavePkgInfo writes entry to pkgsinfo/subdir as name-version[-arch][ext]
// and returns its repository path
func SavePkgInfo(r Repo, entry *models.PkgInfo, subdir string, opts SaveOptions) (string, error) {
	ext := opts.Extension
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	arch := ""
	if len(entry.SupportedArchitectures) == 1 {
		arch = "-" + entry.SupportedArchitectures[0]
	}

	stem := fmt.Sprintf("%s-%s%s", entry.Name, entry.Version, arch)
	dest := path.Join(KindPkgsInfo, subdir, stem+ext)

	existing, err := listKind(r, KindPkgsInfo)
	if err != nil {
		return "", models.NewError(models.ErrRepoCopy, dest, fmt.Errorf("unable to get list of current pkgsinfo: %w", err))
	}
	for i := 1; existing[dest]; i++ {
		dest = path.Join(KindPkgsInfo, subdir, fmt.Sprintf("%s__%d%s", stem, i, ext))
	}

	data, err := plist.MarshalIndent(entry, plist.XMLFormat, "\t")
	if err != nil {
		return "", models.NewError(models.ErrRepoCopy, dest, err)
	}
	if err := r.Put(dest, data); err != nil {
		return "", models.NewError(models.ErrRepoCopy, dest, fmt.Errorf("unable to save pkginfo: %w", err))
	}

	if opts.Signer != nil {
		sig, err := opts.Signer.SignDetached(data)
		if err != nil {
			return "", models.NewError(models.ErrRepoCopy, dest, err)
		}
		if err := r.Put(dest+signer.SignatureExt, sig); err != nil {
			return "", models.NewError(models.ErrRepoCopy, dest, fmt.Errorf("unable to save signature: %w", err))
		}
	}
	return dest, nil
}

// listKind returns the repository paths of every item of kind
func listKind(r Repo, kind string) (map[string]bool, error) {
	items, err := r.ItemList(kind)
	if err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(items))
	for _, item := range items {
		set[path.Join(kind, item)] = true
	}
	return set, nil
}
