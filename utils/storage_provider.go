package utils

import (
	"os"
	"strings"
)

const (
	ExportStorageMemory = "memory"
	ExportStorageGCS    = "gcs"
)

// GetExportStorage says where finished zip archives are kept. Anything other
// than "gcs" keeps them in process memory.
func GetExportStorage() string {
	provider := strings.TrimSpace(strings.ToLower(os.Getenv("EXPORT_STORAGE")))
	if provider == ExportStorageGCS {
		return ExportStorageGCS
	}
	return ExportStorageMemory
}
