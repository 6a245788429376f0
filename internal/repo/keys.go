package repo

import (
	"fmt"
	"path"

	"github.com/ralt/pkgimport/internal/models"
	"github.com/ralt/pkgimport/internal/signer"
	"github.com/sirupsen/logrus"
)

// KindKeys holds the public keys pkginfo signatures verify against
const KindKeys = "keys"

// PublishKey stores the signer's public key as keys/<keyid>.asc unless it
// is already there, and returns its repository path
func PublishKey(r Repo, s signer.Signer) (string, error) {
	dest := path.Join(KindKeys, s.KeyID()+signer.SignatureExt)

	existing, err := listKind(r, KindKeys)
	if err != nil {
		return "", models.NewError(models.ErrRepoCopy, dest, fmt.Errorf("unable to list keys: %w", err))
	}
	if existing[dest] {
		return dest, nil
	}

	key, err := s.PublicKey()
	if err != nil {
		return "", models.NewError(models.ErrRepoCopy, dest, fmt.Errorf("unable to export public key: %w", err))
	}
	if err := r.Put(dest, key); err != nil {
		return "", models.NewError(models.ErrRepoCopy, dest, err)
	}
	logrus.Infof("Published signing key %s to %s", s.KeyID(), dest)
	return dest, nil
}
