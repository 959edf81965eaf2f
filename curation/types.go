package curation

import (
	"time"

	"github.com/ChrissHeIs/electricco-vehicle-image-manager/models"
	"github.com/ChrissHeIs/electricco-vehicle-image-manager/session"
)

type SelectionRequest struct {
	URL string `json:"url" validate:"required"`
}

// OverrideRequest carries a pasted URL. A null or empty url clears the
// override.
type OverrideRequest struct {
	URL *string `json:"url"`
}

type FetchVehiclesRequest struct {
	URL string `json:"url" validate:"omitempty,url"`
}

type CandidatesRequest struct {
	Rows []int `json:"rows" validate:"required,min=1,max=500,dive,min=0"`
}

type SessionResponse struct {
	ID            string                `json:"id"`
	CreatedAt     time.Time             `json:"createdAt"`
	Source        string                `json:"source,omitempty"`
	VehicleCount  int                   `json:"vehicleCount"`
	SelectedCount int                   `json:"selectedCount"`
	BaselineCount int                   `json:"baselineCount"`
	Jobs          []session.JobSnapshot `json:"jobs"`
}

type SelectionView struct {
	URL        string            `json:"url"`
	Provenance models.Provenance `json:"provenance"`
}

type VehicleRow struct {
	Row         int                    `json:"row"`
	Brand       string                 `json:"brand"`
	Model       string                 `json:"model"`
	Year        string                 `json:"year"`
	Selection   *SelectionView         `json:"selection,omitempty"`
	Candidates  *models.CandidateState `json:"candidates,omitempty"`
	ImportedURL string                 `json:"importedUrl,omitempty"`
}

type CandidatesResponse struct {
	Row        int                   `json:"row"`
	Candidates models.CandidateState `json:"candidates"`
}

// ExportCompletedEvent is published after a zip export succeeds.
type ExportCompletedEvent struct {
	SessionID  string    `json:"session_id"`
	JobID      string    `json:"job_id"`
	Entries    int       `json:"entries"`
	Size       int64     `json:"size"`
	ObjectKey  string    `json:"object_key,omitempty"`
	FinishedAt time.Time `json:"finished_at"`
}
