package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

const envPrefix = "MANIFESTLY"

var (
	home, _ = os.UserHomeDir()

	// DefaultJournalPath is where the sync history database lives unless
	// MANIFESTLY_JOURNAL points elsewhere.
	DefaultJournalPath = filepath.Join(home, ".manifestly", "journal.db")
)

const (
	DefaultHashAlgorithm = "sha256"
	DefaultManifestName  = ".manifestly.json"
	DefaultIgnoreName    = ".manifestlyignore"
	DefaultChunkSize     = 8192
)

// Settings carries the process-wide knobs of the manifest engine. It is
// resolved once at the CLI boundary (FromEnv) and passed by value into every
// entry point; library code never reads the environment itself.
type Settings struct {
	HashAlgorithm string
	ManifestName  string
	IgnoreName    string
	ChunkSize     int
}

// S3Settings holds the optional overrides for the S3-backed store. Empty
// fields defer to the ambient AWS credential chain.
type S3Settings struct {
	Region    string
	AccessKey string
	SecretKey string
	Endpoint  string
}

// Config is the fully resolved runtime configuration.
type Config struct {
	Settings
	S3          S3Settings
	JournalPath string
}

func Default() Settings {
	return Settings{
		HashAlgorithm: DefaultHashAlgorithm,
		ManifestName:  DefaultManifestName,
		IgnoreName:    DefaultIgnoreName,
		ChunkSize:     DefaultChunkSize,
	}
}

// FromEnv resolves the configuration from MANIFESTLY_* environment variables,
// falling back to defaults.
func FromEnv() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	v.SetDefault("hash_algorithm", DefaultHashAlgorithm)
	v.SetDefault("name", DefaultManifestName)
	v.SetDefault("ignore", DefaultIgnoreName)
	v.SetDefault("chunk_size", DefaultChunkSize)
	v.SetDefault("journal", DefaultJournalPath)

	cfg := &Config{
		Settings: Settings{
			HashAlgorithm: v.GetString("hash_algorithm"),
			ManifestName:  v.GetString("name"),
			IgnoreName:    v.GetString("ignore"),
			ChunkSize:     v.GetInt("chunk_size"),
		},
		S3: S3Settings{
			Region:    v.GetString("s3_region"),
			AccessKey: v.GetString("s3_access_key"),
			SecretKey: v.GetString("s3_secret_key"),
			Endpoint:  v.GetString("s3_endpoint"),
		},
		JournalPath: v.GetString("journal"),
	}

	if err := cfg.Settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid environment config: %w", err)
	}
	return cfg, nil
}

func (s Settings) Validate() error {
	if s.HashAlgorithm == "" {
		return errors.New("hash algorithm cannot be empty")
	}
	if s.ManifestName == "" {
		return errors.New("manifest name cannot be empty")
	}
	if s.IgnoreName == "" {
		return errors.New("ignore name cannot be empty")
	}
	if s.ChunkSize <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", s.ChunkSize)
	}
	return nil
}
