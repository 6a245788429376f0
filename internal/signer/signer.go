// Package signer produces OpenPGP signatures for pkginfo documents saved
// to a repository.
package signer

// Signer signs documents
type Signer interface {
	// SignDetached creates an armored detached signature
	SignDetached(data []byte) ([]byte, error)

	// PublicKey returns the armored public key clients verify against
	PublicKey() ([]byte, error)

	// KeyID names the signing key, e.g. in the published key file
	KeyID() string
}

// SignatureExt is appended to a document name to store its signature
const SignatureExt = ".asc"
