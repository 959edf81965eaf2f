package models

import (
	"encoding/json"
	"fmt"
)

type Provenance int

const (
	ProvenanceServerExisting Provenance = iota + 1
	ProvenanceThirdPartyFetched
	ProvenanceManualOverride
	ProvenanceImportedManifest
)

var provenanceNames = map[Provenance]string{
	ProvenanceServerExisting:    "server_existing",
	ProvenanceThirdPartyFetched: "third_party_fetched",
	ProvenanceManualOverride:    "manual_override",
	ProvenanceImportedManifest:  "imported_manifest",
}

func (p Provenance) String() string {
	if name, ok := provenanceNames[p]; ok {
		return name
	}
	return "unknown"
}

func (p Provenance) IsValid() bool {
	_, ok := provenanceNames[p]
	return ok
}

func (p Provenance) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

func (p *Provenance) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	for k, name := range provenanceNames {
		if name == s {
			*p = k
			return nil
		}
	}
	return fmt.Errorf("unknown provenance %q", s)
}

// ImageCandidate is a URL offered for a vehicle by one of the image sources.
type ImageCandidate struct {
	Key        VehicleKey
	URL        string
	Provenance Provenance
}

// Selection is the image currently chosen for a vehicle. Provenance is
// informational only; the latest selection always wins.
type Selection struct {
	URL        string     `json:"url"`
	Provenance Provenance `json:"provenance"`
}
