package datadir

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DefaultDirName is the default data directory name under $HOME.
	DefaultDirName = ".clawlink"

	// EnvVar is the environment variable that overrides the data directory.
	EnvVar = "CLAWLINK_HOME"

	// ConfigFileName is the client config file inside the data directory.
	ConfigFileName = "config.yaml"
)

// DataDir resolves the paths clawlink keeps under its data directory.
type DataDir struct {
	root string
}

// New returns a DataDir rooted at the resolved data directory.
// It does not create anything on disk; call Ensure for that.
//
// Resolution priority:
//  1. CLAWLINK_HOME environment variable
//  2. configValue argument (data_dir from the config file or a flag)
//  3. ~/.clawlink/
func New(configValue string) (*DataDir, error) {
	root := os.Getenv(EnvVar)
	if root == "" {
		root = configValue
	}
	if root == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("cannot determine home directory: %w", err)
		}
		root = filepath.Join(home, DefaultDirName)
	}
	return &DataDir{root: root}, nil
}

// Root returns the base data directory path.
func (d *DataDir) Root() string { return d.root }

// ConfigPath returns {root}/config.yaml.
func (d *DataDir) ConfigPath() string { return filepath.Join(d.root, ConfigFileName) }

// Ensure creates the root directory with 0700 permissions.
func (d *DataDir) Ensure() error {
	if err := os.MkdirAll(d.root, 0700); err != nil {
		return fmt.Errorf("failed to create data directory %s: %w", d.root, err)
	}
	return nil
}
