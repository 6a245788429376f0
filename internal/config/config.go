// Package config loads pkgimport settings from defaults, an optional
// config file, PKGIMPORT_* environment variables and command line flags,
// in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ralt/pkgimport/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// AppName names the config directory and file
	AppName = "pkgimport"
	// EnvPrefix prefixes environment overrides, e.g. PKGIMPORT_REPO_URL
	EnvPrefix = "PKGIMPORT"
)

// Keys understood in config files and the environment
const (
	KeyRepoURL          = "repo_url"
	KeyDefaultCatalog   = "default_catalog"
	KeyPkgInfoExtension = "pkginfo_extension"
	KeySevenZipPath     = "seven_zip_path"
	KeyDmg2ImgPath      = "dmg2img_path"
	KeyExtractTimeout   = "extract_timeout"
	KeyGPGKey           = "gpg_key"
	KeyGPGPassphrase    = "gpg_passphrase"
)

// LoadOptions select where configuration is read from
type LoadOptions struct {
	// ConfigFilePath is used exclusively when set
	ConfigFilePath string
	// ConfigDirPath replaces the platform config directory
	ConfigDirPath string
	// Flags are bound by key name with underscores spelled as dashes
	// (repo_url becomes --repo-url). Only flags the user set override.
	Flags *pflag.FlagSet
}

// DefaultConfig returns the settings used when nothing is configured.
// Empty tool paths are looked up on $PATH.
func DefaultConfig() *models.Config {
	return &models.Config{
		DefaultCatalog:   "testing",
		PkgInfoExtension: ".plist",
		ExtractTimeout:   10 * time.Minute,
	}
}

// ConfigDir returns $XDG_CONFIG_HOME/pkgimport, defaulting to
// ~/.config/pkgimport
func ConfigDir() (string, error) {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, AppName), nil
}

// Load resolves the configuration. It returns the config file that was
// read, or "" when only defaults, environment and flags applied.
func Load(opts LoadOptions) (*models.Config, string, error) {
	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault(KeyRepoURL, defaults.RepoURL)
	v.SetDefault(KeyDefaultCatalog, defaults.DefaultCatalog)
	v.SetDefault(KeyPkgInfoExtension, defaults.PkgInfoExtension)
	v.SetDefault(KeySevenZipPath, defaults.SevenZipPath)
	v.SetDefault(KeyDmg2ImgPath, defaults.Dmg2ImgPath)
	v.SetDefault(KeyExtractTimeout, defaults.ExtractTimeout)
	v.SetDefault(KeyGPGKey, defaults.GPGKeyPath)
	v.SetDefault(KeyGPGPassphrase, defaults.GPGPassphrase)

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	if opts.Flags != nil {
		for _, key := range v.AllKeys() {
			flag := opts.Flags.Lookup(strings.ReplaceAll(key, "_", "-"))
			if flag == nil {
				continue
			}
			if err := v.BindPFlag(key, flag); err != nil {
				return nil, "", models.NewError(models.ErrInvalidConfig, "", err)
			}
		}
	}

	resolvedPath, err := readConfigFile(v, opts)
	if err != nil {
		return nil, "", err
	}

	var cfg models.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", models.NewError(models.ErrInvalidConfig, resolvedPath, fmt.Errorf("failed to parse config: %w", err))
	}
	if cfg.ExtractTimeout <= 0 {
		return nil, "", models.NewError(models.ErrInvalidConfig, resolvedPath,
			fmt.Errorf("%s must be positive, got %s", KeyExtractTimeout, cfg.ExtractTimeout))
	}

	logrus.Debugf("Configuration: repo=%q catalog=%q timeout=%s", cfg.RepoURL, cfg.DefaultCatalog, cfg.ExtractTimeout)
	return &cfg, resolvedPath, nil
}

func readConfigFile(v *viper.Viper, opts LoadOptions) (string, error) {
	if opts.ConfigFilePath != "" {
		v.SetConfigFile(opts.ConfigFilePath)
		if err := v.ReadInConfig(); err != nil {
			return "", models.NewError(models.ErrInvalidConfig, opts.ConfigFilePath, err)
		}
		return opts.ConfigFilePath, nil
	}

	dir := opts.ConfigDirPath
	if dir == "" {
		var err error
		if dir, err = ConfigDir(); err != nil {
			// No home directory: defaults and environment still apply
			logrus.Debugf("Skipping config file: %v", err)
			return "", nil
		}
	}

	v.SetConfigName(AppName)
	v.AddConfigPath(dir)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return "", nil
		}
		return "", models.NewError(models.ErrInvalidConfig, dir, err)
	}
	return v.ConfigFileUsed(), nil
}
