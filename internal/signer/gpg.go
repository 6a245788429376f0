package signer

import (
	"bytes"
	"crypto"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/armor"
	"github.com/ProtonMail/go-crypto/openpgp/packet"
)

// GPGSigner signs pkginfo documents with an OpenPGP private key
type GPGSigner struct {
	entity *openpgp.Entity
}

// NewGPGSigner loads the first key of an armored or binary keyring file
// and unlocks it with passphrase
func NewGPGSigner(keyPath, passphrase string) (*GPGSigner, error) {
	if keyPath == "" {
		return nil, errors.New("key path is empty")
	}

	entity, err := readPrivateKey(keyPath)
	if err != nil {
		return nil, err
	}
	if err := unlock(entity, passphrase); err != nil {
		return nil, err
	}
	return &GPGSigner{entity: entity}, nil
}

// NewGPGSignerFromEntity wraps an already decrypted entity
func NewGPGSignerFromEntity(entity *openpgp.Entity) *GPGSigner {
	return &GPGSigner{entity: entity}
}

func readPrivateKey(path string) (*openpgp.Entity, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open key file: %w", err)
	}
	defer f.Close()

	entities, err := openpgp.ReadArmoredKeyRing(f)
	if err != nil {
		if _, serr := f.Seek(0, io.SeekStart); serr != nil {
			return nil, fmt.Errorf("failed to rewind key file: %w", serr)
		}
		if entities, err = openpgp.ReadKeyRing(f); err != nil {
			return nil, fmt.Errorf("failed to read key: %w", err)
		}
	}

	if len(entities) == 0 {
		return nil, fmt.Errorf("no keys found in %s", path)
	}
	if entities[0].PrivateKey == nil {
		return nil, fmt.Errorf("%s holds no private key", path)
	}
	return entities[0], nil
}

// unlock decrypts the primary key and every encrypted subkey. An encrypted
// key without passphrase is an error here rather than at signing time.
func unlock(entity *openpgp.Entity, passphrase string) error {
	keys := []*packet.PrivateKey{entity.PrivateKey}
	for _, sub := range entity.Subkeys {
		if sub.PrivateKey != nil {
			keys = append(keys, sub.PrivateKey)
		}
	}

	for _, key := range keys {
		if !key.Encrypted {
			continue
		}
		if passphrase == "" {
			return fmt.Errorf("key %s is encrypted and no passphrase was given", key.KeyIdString())
		}
		if err := key.Decrypt([]byte(passphrase)); err != nil {
			return fmt.Errorf("failed to decrypt key %s: %w", key.KeyIdString(), err)
		}
	}
	return nil
}

// KeyID returns the long hex ID of the primary key
func (s *GPGSigner) KeyID() string {
	return s.entity.PrimaryKey.KeyIdString()
}

// SignDetached creates an armored detached SHA-512 signature
func (s *GPGSigner) SignDetached(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	err := openpgp.ArmoredDetachSign(&buf, s.entity, bytes.NewReader(data), &packet.Config{
		DefaultHash: crypto.SHA512,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create detached signature: %w", err)
	}
	return buf.Bytes(), nil
}

// Verify checks an armored detached signature of data against this key
func (s *GPGSigner) Verify(data, signature []byte) error {
	keyring := openpgp.EntityList{s.entity}
	_, err := openpgp.CheckArmoredDetachedSignature(keyring, bytes.NewReader(data), bytes.NewReader(signature), nil)
	return err
}

// PublicKey returns the public half of the key, armored
func (s *GPGSigner) PublicKey() ([]byte, error) {
	var buf bytes.Buffer
	w, err := armor.Encode(&buf, openpgp.PublicKeyType, nil)
	if err != nil {
		return nil, err
	}
	if err := s.entity.Serialize(w); err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
