// Package candidates gathers the images offered for each vehicle: remote
// search results, images already known to the backend, imported manifests
// and manual overrides.
package candidates

import (
	"context"
	"errors"

	"github.com/ChrissHeIs/electricco-vehicle-image-manager/models"
)

var (
	ErrMissingAPIKey = errors.New("image search api key is missing")
	ErrNotJSON       = errors.New("image search returned a non-JSON response")

	ErrNotJSONFile        = errors.New("please select a JSON file")
	ErrManifestUnreadable = errors.New("error parsing JSON file")
	ErrManifestNotArray   = errors.New("invalid file format: expected an array")
	ErrManifestFields     = errors.New("invalid file format: some vehicles are missing required fields")

	ErrUploadTooLarge   = errors.New("file size exceeds 5MB limit")
	ErrNotAnImage       = errors.New("uploaded file is not an image")
	ErrInvalidPastedURL = errors.New("no valid URL in clipboard")
)

// Searcher looks up candidate image URLs for a brand/model pair.
type Searcher interface {
	Search(ctx context.Context, key models.SearchKey) ([]string, error)
}

type SearcherFunc func(ctx context.Context, key models.SearchKey) ([]string, error)

func (f SearcherFunc) Search(ctx context.Context, key models.SearchKey) ([]string, error) {
	return f(ctx, key)
}

type carsxeImage struct {
	Link string `json:"link"`
}

type carsxeResponse struct {
	Success *bool         `json:"success"`
	Error   string        `json:"error"`
	Message string        `json:"message"`
	Images  []carsxeImage `json:"images"`
}

// ServerImage is the backend's stored image for a brand/model, or the
// placeholder when the backend has none.
type ServerImage struct {
	Found       bool
	URL         string
	ContentType string
	Data        []byte
}
