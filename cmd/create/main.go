// Package create - because packages cannot be named 'init' in go.
package create

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

const (
	usage   = "init"
	short   = "Creates a new kwikstore.yml file"
	long    = "This command creates a new kwikstore.yml file and a data directory in the target directory"
	example = "kwikstore init --dir ./rig1"

	configFileName = "kwikstore.yml"
	dataDirName    = "data"
)

//go:embed default.yml
var defaultConfig []byte

var (
	// Cmd is the init command.
	Cmd = &cobra.Command{
		Use:        usage,
		Short:      short,
		Long:       long,
		SuggestFor: []string{"create", "new"},
		Example:    example,
		RunE:       executeInit,
	}
	// targetDir set flag for the directory to initialize.
	targetDir string
)

// nolint:gochecknoinits // cobra's standard way to initialize flags
func init() {
	Cmd.Flags().StringVarP(&targetDir, "dir", "d", ".", "directory to create the configuration in")
}

// executeInit implements the init command.
func executeInit(*cobra.Command, []string) error {
	return Initialize(targetDir)
}

// Initialize writes the default configuration into dir and creates the data
// directory next to it. An existing configuration is left untouched.
func Initialize(dir string) error {
	path := filepath.Join(dir, configFileName)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	// write the default configuration.
	if err := os.WriteFile(path, defaultConfig, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	// create a new directory to store data.
	if err := os.MkdirAll(filepath.Join(dir, dataDirName), 0o700); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	return nil
}
