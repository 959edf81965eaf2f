// Package export materializes the final vehicle/image list as a JSON
// manifest or as a zip of resized PNGs.
package export

import (
	"encoding/json"
	"errors"
	"io"

	"github.com/ChrissHeIs/electricco-vehicle-image-manager/models"
)

const (
	ManifestFileName = "VehicleImages.json"
	ZipFileName      = "vehicle_images.zip"
	ZipRootFolder    = "VehicleImages"
)

var ErrEmptySelection = errors.New("no vehicle images selected")

// WriteManifest writes pairs as a two-space indented JSON array of
// {brand, model, year, imageUrl}.
func WriteManifest(w io.Writer, pairs []models.VehicleImage) error {
	entries := models.ManifestFromPairs(pairs)
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}
