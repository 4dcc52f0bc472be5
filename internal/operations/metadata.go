package operations

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"

	"github.com/kebairia/snapback/internal/backup"
	"github.com/kebairia/snapback/internal/fsutil"
)

const (
	MetadataFilename = "metadata.json"
	// FormatVersion is the archive layout version written and accepted.
	FormatVersion = 1
)

// Fixed entry names inside a snapshot archive.
const (
	databaseEntry = "database.db"
	filesDir      = "files"
)

// Metadata is the descriptor stored at the root of every snapshot archive.
type Metadata struct {
	BackupID        string      `json:"backupId"`
	BackupType      backup.Type `json:"backupType"`
	CreatedAt       time.Time   `json:"createdAt"`
	CreatedBy       string      `json:"createdBy"`
	IsAutomatic     bool        `json:"isAutomatic"`
	FormatVersion   int         `json:"formatVersion"`
	ApplicationName string      `json:"applicationName"`
}

// Load reads the metadata file at filePath.
func (m *Metadata) Load(filePath string) error {
	data, err := os.ReadFile(filePath) //nolint:gosec // G304: path inside an unpacked snapshot
	if err != nil {
		return fmt.Errorf("read metadata file %q: %w", filePath, err)
	}
	if err := json.Unmarshal(data, m); err != nil {
		return fmt.Errorf("decode metadata JSON: %w", err)
	}
	return nil
}

// Write stores the metadata file in dirPath.
func (m *Metadata) Write(dirPath string) error {
	if err := fsutil.EnsureDirectoryExist(dirPath); err != nil {
		return fmt.Errorf("ensure metadata directory %q: %w", dirPath, err)
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode metadata JSON: %w", err)
	}
	filePath := filepath.Join(dirPath, MetadataFilename)
	if err := os.WriteFile(filePath, data, fsutil.FilePerm); err != nil {
		return fmt.Errorf("write metadata file %q: %w", filePath, err)
	}
	return nil
}
