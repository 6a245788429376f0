package models

import "time"

// Config contains the settings threaded into the import pipeline
type Config struct {
	// Repository
	RepoURL          string `mapstructure:"repo_url"`
	DefaultCatalog   string `mapstructure:"default_catalog"`
	PkgInfoExtension string `mapstructure:"pkginfo_extension"`

	// Extraction tools
	SevenZipPath   string        `mapstructure:"seven_zip_path"`
	Dmg2ImgPath    string        `mapstructure:"dmg2img_path"`
	ExtractTimeout time.Duration `mapstructure:"extract_timeout"`

	// Signing
	GPGKeyPath    string `mapstructure:"gpg_key"`
	GPGPassphrase string `mapstructure:"gpg_passphrase"`
}

// DefaultCatalogs returns the catalog list assigned to new pkginfo
func (c *Config) DefaultCatalogs() []string {
	if c == nil || c.DefaultCatalog == "" {
		return []string{"testing"}
	}
	return []string{c.DefaultCatalog}
}
