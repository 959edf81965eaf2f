// Package curation exposes curation sessions over HTTP: vehicle lists,
// candidate searches, selections and exports.
package curation

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/ChrissHeIs/electricco-vehicle-image-manager/candidates"
	"github.com/ChrissHeIs/electricco-vehicle-image-manager/config"
	"github.com/ChrissHeIs/electricco-vehicle-image-manager/export"
	"github.com/ChrissHeIs/electricco-vehicle-image-manager/ingest"
	"github.com/ChrissHeIs/electricco-vehicle-image-manager/models"
	"github.com/ChrissHeIs/electricco-vehicle-image-manager/session"
	"github.com/ChrissHeIs/electricco-vehicle-image-manager/utils"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

var ErrRowNotFound = errors.New("vehicle row not found")

type Deps struct {
	Registry     *session.Registry
	Exporter     *export.ZipExporter
	ServerImages *candidates.ServerImageClient
	HTTPClient   *http.Client
	Archives     ArchiveStore
	Events       EventPublisher
	Settings     config.Settings
	Logger       *logrus.Logger
}

type API struct {
	deps Deps
	wg   sync.WaitGroup
}

func NewAPI(deps Deps) *API {
	if deps.Archives == nil {
		deps.Archives = MemoryArchives{}
	}
	if deps.Logger == nil {
		deps.Logger = config.GetLogger()
	}
	return &API{deps: deps}
}

// Wait blocks until every running export worker has returned.
func (a *API) Wait() {
	a.wg.Wait()
}

// RespondError writes {"error": msg}. Outside production the cause is
// appended so failures can be diagnosed from the client.
func RespondError(c *gin.Context, status int, msg string, err error) {
	if err != nil && !config.IsProduction() && err.Error() != msg {
		msg = fmt.Sprintf("%s: %v", msg, err)
	}
	c.JSON(status, gin.H{"error": msg})
}

// LoadVehicles parses an uploaded CSV or XLSX and replaces the session's
// vehicle list. A parse failure leaves the previous list untouched.
func (a *API) LoadVehicles(ctx context.Context, s *session.Session, name string, r io.Reader) ([]models.VehicleRecord, error) {
	list, err := ingest.Parse(name, r)
	if err != nil {
		return nil, err
	}
	if err := s.ReplaceVehicles(list, name); err != nil {
		return nil, err
	}
	a.logVehicles(ctx, name, len(list))
	return list, nil
}

// FetchVehicles loads the list from a remote CSV, rawURL or the configured
// CSV_URL when rawURL is empty.
func (a *API) FetchVehicles(ctx context.Context, s *session.Session, rawURL string) ([]models.VehicleRecord, error) {
	if rawURL == "" {
		rawURL = a.deps.Settings.CSVURL
	}
	list, err := ingest.FetchCSV(ctx, a.deps.HTTPClient, a.deps.Settings.ProxyURL, rawURL)
	if err != nil {
		return nil, err
	}
	if err := s.ReplaceVehicles(list, rawURL); err != nil {
		return nil, err
	}
	a.logVehicles(ctx, rawURL, len(list))
	return list, nil
}

func (a *API) logVehicles(ctx context.Context, source string, n int) {
	fields := logrus.Fields(utils.LogFields(ctx))
	fields["source"] = source
	fields["vehicles"] = n
	a.deps.Logger.WithFields(fields).Info("[vehicles.loaded]")
}

// ApplyOverrideUpload turns an uploaded image into a data URL override for
// the vehicle at row.
func (a *API) ApplyOverrideUpload(s *session.Session, row int, name string, data []byte) (VehicleRow, error) {
	r, ok := s.Row(row)
	if !ok {
		return VehicleRow{}, ErrRowNotFound
	}
	dataURL, err := candidates.DataURLFromUpload(name, data)
	if err != nil {
		return VehicleRow{}, err
	}
	r.Store.SetOverride(r.Vehicle.Key(), dataURL)
	return a.rowView(s, r), nil
}

// ImportManifest replaces the session's baseline with a previously exported
// VehicleImages.json. The file is rejected whole on any structural error.
func (a *API) ImportManifest(ctx context.Context, s *session.Session, name string, data []byte) ([]models.VehicleImage, error) {
	pairs, err := candidates.ParseManifestFile(name, data)
	if err != nil {
		return nil, err
	}
	s.SetBaseline(pairs)

	fields := logrus.Fields(utils.LogFields(ctx))
	fields["file"] = name
	fields["entries"] = len(pairs)
	a.deps.Logger.WithFields(fields).Info("[manifest.imported]")
	return pairs, nil
}

func (a *API) rowView(s *session.Session, row session.Row) VehicleRow {
	v := row.Vehicle
	out := VehicleRow{Row: row.Index, Brand: v.Brand, Model: v.Model, Year: v.Year}
	key := v.Key()
	if sel, ok := row.Store.Snapshot().Get(key); ok {
		out.Selection = &SelectionView{URL: sel.URL, Provenance: sel.Provenance}
	}
	if st, ok := row.Tracker.State(key); ok {
		out.Candidates = &st
	}
	if c, ok := s.ImportedCandidate(key); ok {
		out.ImportedURL = c.URL
	}
	return out
}

func sessionResponse(s *session.Session) SessionResponse {
	return SessionResponse{
		ID:            s.ID,
		CreatedAt:     s.CreatedAt,
		Source:        s.Source(),
		VehicleCount:  len(s.Vehicles()),
		SelectedCount: s.Store().Snapshot().Len(),
		BaselineCount: len(s.Baseline()),
		Jobs:          s.Jobs(),
	}
}

func manifestBytes(pairs []models.VehicleImage) ([]byte, error) {
	var buf bytes.Buffer
	if err := export.WriteManifest(&buf, pairs); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
