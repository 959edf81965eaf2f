package candidates

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ChrissHeIs/electricco-vehicle-image-manager/models"
)

var manifestFields = []string{"brand", "model", "year", "imageUrl"}

// ParseManifest validates a previously exported VehicleImages.json. The
// import is all-or-nothing: one malformed element rejects the whole file.
func ParseManifest(data []byte) ([]models.VehicleImage, error) {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrManifestUnreadable, err)
	}
	items, ok := raw.([]interface{})
	if !ok {
		return nil, ErrManifestNotArray
	}

	out := make([]models.VehicleImage, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]interface{})
		if !ok {
			return nil, ErrManifestFields
		}
		values := make(map[string]string, len(manifestFields))
		for _, name := range manifestFields {
			s, ok := obj[name].(string)
			if !ok {
				return nil, ErrManifestFields
			}
			values[name] = s
		}
		entry := models.ManifestEntry{
			Brand:    values["brand"],
			Model:    values["model"],
			Year:     values["year"],
			ImageURL: values["imageUrl"],
		}
		out = append(out, entry.VehicleImage())
	}
	return out, nil
}

// ParseManifestFile checks the file name before parsing.
func ParseManifestFile(name string, data []byte) ([]models.VehicleImage, error) {
	if !strings.EqualFold(filepath.Ext(name), ".json") {
		return nil, ErrNotJSONFile
	}
	return ParseManifest(data)
}

// ImportedCandidates turns manifest pairs into candidates for the vehicles
// they name.
func ImportedCandidates(pairs []models.VehicleImage) []models.ImageCandidate {
	out := make([]models.ImageCandidate, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, models.ImageCandidate{
			Key:        p.Key(),
			URL:        p.URL,
			Provenance: models.ProvenanceImportedManifest,
		})
	}
	return out
}
