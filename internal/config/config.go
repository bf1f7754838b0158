package config

import (
	"errors"
	"path/filepath"

	"github.com/joho/godotenv"
)

// Config is the run configuration assembled from the command line. The
// transport additionally reads NOTE_* environment overrides on its own.
type Config struct {
	// MagazineKey identifies the magazine to mirror. Required.
	MagazineKey string
	// OutDir is the base output directory.
	OutDir string
	// Zip selects one compressed archive per note instead of a folder.
	Zip bool
	// VolumeOnly names items by their extracted volume/episode number.
	VolumeOnly bool
	// PadWidth is the minimum digit width for volume zero-padding.
	PadWidth int
	// Filter keeps only items whose title fuzzy-matches it.
	Filter string
	// NoUI disables the interactive progress view.
	NoUI bool
	// Verbose enables debug logging.
	Verbose bool
}

// LoadEnv loads a .env file from the working directory when present, so
// NOTE_* transport overrides can be kept out of the shell profile.
func LoadEnv() {
	_ = godotenv.Load()
}

// Validate checks the required fields.
func (c *Config) Validate() error {
	if c.MagazineKey == "" {
		return errors.New("magazine key is required")
	}
	if c.OutDir == "" {
		return errors.New("output directory must not be empty")
	}
	if c.PadWidth < 1 {
		return errors.New("pad width must be at least 1")
	}
	return nil
}

// BaseDir returns the per-magazine output directory.
func (c *Config) BaseDir() string {
	return filepath.Join(c.OutDir, c.MagazineKey)
}
