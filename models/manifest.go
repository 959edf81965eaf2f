package models

// ManifestEntry is the wire shape of one element in VehicleImages.json.
type ManifestEntry struct {
	Brand    string `json:"brand"`
	Model    string `json:"model"`
	Year     string `json:"year"`
	ImageURL string `json:"imageUrl"`
}

func (e ManifestEntry) VehicleImage() VehicleImage {
	return VehicleImage{
		Vehicle: VehicleRecord{Brand: e.Brand, Model: e.Model, Year: e.Year},
		URL:     e.ImageURL,
	}
}

func NewManifestEntry(p VehicleImage) ManifestEntry {
	return ManifestEntry{
		Brand:    p.Vehicle.Brand,
		Model:    p.Vehicle.Model,
		Year:     p.Vehicle.Year,
		ImageURL: p.URL,
	}
}

func ManifestFromPairs(pairs []VehicleImage) []ManifestEntry {
	out := make([]ManifestEntry, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, NewManifestEntry(p))
	}
	return out
}
