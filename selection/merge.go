package selection

import "github.com/ChrissHeIs/electricco-vehicle-image-manager/models"

// MergeBaseline layers overrides on top of a previously exported list.
//
// An override whose vehicle key matches a baseline entry replaces that
// entry's url in place (the first match when the baseline repeats a key).
// Overrides with no match are appended in their own order. Neither input
// is modified.
func MergeBaseline(baseline, overrides []models.VehicleImage) []models.VehicleImage {
	out := make([]models.VehicleImage, len(baseline), len(baseline)+len(overrides))
	copy(out, baseline)

	index := make(map[models.VehicleKey]int, len(baseline))
	for i, p := range out {
		if _, ok := index[p.Key()]; !ok {
			index[p.Key()] = i
		}
	}

	for _, o := range overrides {
		if i, ok := index[o.Key()]; ok {
			out[i].URL = o.URL
			continue
		}
		index[o.Key()] = len(out)
		out = append(out, o)
	}
	return out
}
