package signer

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/armor"
)

func newTestEntity(t *testing.T) *openpgp.Entity {
	t.Helper()
	entity, err := openpgp.NewEntity("Repo Admin", "test", "admin@example.com", nil)
	if err != nil {
		t.Fatalf("Failed to generate key: %v", err)
	}
	return entity
}

func TestSignDetachedVerifies(t *testing.T) {
	entity := newTestEntity(t)
	s := NewGPGSignerFromEntity(entity)

	doc := []byte("<plist><dict><key>name</key><string>Firefox</string></dict></plist>")
	sig, err := s.SignDetached(doc)
	if err != nil {
		t.Fatalf("SignDetached failed: %v", err)
	}
	if !bytes.Contains(sig, []byte("BEGIN PGP SIGNATURE")) {
		t.Errorf("expected an armored signature, got %q", sig)
	}

	if err := s.Verify(doc, sig); err != nil {
		t.Errorf("signature does not verify: %v", err)
	}

	tampered := append([]byte(nil), doc...)
	tampered[10] = 'X'
	if err := s.Verify(tampered, sig); err == nil {
		t.Errorf("tampered document should not verify")
	}

	if got, want := s.KeyID(), entity.PrimaryKey.KeyIdString(); got != want || len(got) != 16 {
		t.Errorf("KeyID() = %q, want %q", got, want)
	}
}

func writeArmoredKey(t *testing.T, entity *openpgp.Entity) string {
	t.Helper()
	var buf bytes.Buffer
	w, err := armor.Encode(&buf, openpgp.PrivateKeyType, nil)
	if err != nil {
		t.Fatalf("Failed to create armor writer: %v", err)
	}
	if err := entity.SerializePrivateWithoutSigning(w, nil); err != nil {
		t.Fatalf("Failed to serialize key: %v", err)
	}
	w.Close()

	keyPath := filepath.Join(t.TempDir(), "signing.asc")
	if err := os.WriteFile(keyPath, buf.Bytes(), 0600); err != nil {
		t.Fatalf("Failed to write key: %v", err)
	}
	return keyPath
}

func TestNewGPGSignerEncryptedKey(t *testing.T) {
	entity := newTestEntity(t)
	if err := entity.PrivateKey.Encrypt([]byte("secret")); err != nil {
		t.Fatalf("Failed to encrypt key: %v", err)
	}
	for _, sub := range entity.Subkeys {
		if err := sub.PrivateKey.Encrypt([]byte("secret")); err != nil {
			t.Fatalf("Failed to encrypt subkey: %v", err)
		}
	}
	keyPath := writeArmoredKey(t, entity)

	if _, err := NewGPGSigner(keyPath, ""); err == nil {
		t.Errorf("expected error for encrypted key without passphrase")
	}
	if _, err := NewGPGSigner(keyPath, "wrong"); err == nil {
		t.Errorf("expected error for wrong passphrase")
	}

	s, err := NewGPGSigner(keyPath, "secret")
	if err != nil {
		t.Fatalf("NewGPGSigner failed: %v", err)
	}
	doc := []byte("pkginfo")
	sig, err := s.SignDetached(doc)
	if err != nil {
		t.Fatalf("SignDetached failed: %v", err)
	}
	if err := s.Verify(doc, sig); err != nil {
		t.Errorf("signature does not verify: %v", err)
	}
}

func TestNewGPGSignerFromFile(t *testing.T) {
	keyPath := writeArmoredKey(t, newTestEntity(t))

	s, err := NewGPGSigner(keyPath, "")
	if err != nil {
		t.Fatalf("NewGPGSigner failed: %v", err)
	}
	pub, err := s.PublicKey()
	if err != nil {
		t.Fatalf("PublicKey failed: %v", err)
	}
	if !bytes.Contains(pub, []byte("BEGIN PGP PUBLIC KEY BLOCK")) {
		t.Errorf("expected an armored public key")
	}

	if _, err := NewGPGSigner("", ""); err == nil {
		t.Errorf("expected error for empty key path")
	}
	if _, err := NewGPGSigner(filepath.Join(t.TempDir(), "missing.asc"), ""); err == nil {
		t.Errorf("expected error for missing key file")
	}
}
