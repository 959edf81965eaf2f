package models

import "fmt"

// VehicleRecord is one row of the ingested vehicle list. Values are kept
// exactly as they appear in the source file.
type VehicleRecord struct {
	Brand string `json:"brand"`
	Model string `json:"model"`
	Year  string `json:"year"`
}

// VehicleKey identifies a vehicle across the selection store, manifests and
// merges. Comparison is exact: case-sensitive and untrimmed.
type VehicleKey struct {
	Brand string
	Model string
	Year  string
}

// SearchKey is the brand/model pair accepted by image search backends.
// Several VehicleKeys (different years) can share one SearchKey.
type SearchKey struct {
	Brand string
	Model string
}

func (v VehicleRecord) Key() VehicleKey {
	return VehicleKey{Brand: v.Brand, Model: v.Model, Year: v.Year}
}

func (v VehicleRecord) SearchKey() SearchKey {
	return SearchKey{Brand: v.Brand, Model: v.Model}
}

func (k VehicleKey) String() string {
	return fmt.Sprintf("%s|%s|%s", k.Brand, k.Model, k.Year)
}

func (k SearchKey) String() string {
	return fmt.Sprintf("%s|%s", k.Brand, k.Model)
}

// VehicleImage pairs a vehicle with the image chosen for it.
type VehicleImage struct {
	Vehicle VehicleRecord
	URL     string
}

func (p VehicleImage) Key() VehicleKey {
	return p.Vehicle.Key()
}
