package curation

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/ChrissHeIs/electricco-vehicle-image-manager/candidates"
	"github.com/ChrissHeIs/electricco-vehicle-image-manager/export"
	"github.com/ChrissHeIs/electricco-vehicle-image-manager/ingest"
	"github.com/ChrissHeIs/electricco-vehicle-image-manager/middlewares"
	"github.com/ChrissHeIs/electricco-vehicle-image-manager/models"
	"github.com/ChrissHeIs/electricco-vehicle-image-manager/session"
	"github.com/ChrissHeIs/electricco-vehicle-image-manager/utils"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func currentSession(c *gin.Context) (*session.Session, bool) {
	s, ok := middlewares.CurrentSession(c)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return nil, false
	}
	return s, true
}

// currentRow resolves the :row parameter against the session's list. The
// returned row carries that list's store and tracker.
func currentRow(c *gin.Context) (*session.Session, session.Row, bool) {
	s, ok := currentSession(c)
	if !ok {
		return nil, session.Row{}, false
	}
	i, err := strconv.Atoi(c.Param("row"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "row must be a number"})
		return nil, session.Row{}, false
	}
	row, ok := s.Row(i)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": ErrRowNotFound.Error()})
		return nil, session.Row{}, false
	}
	return s, row, true
}

func bindAndValidate(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return false
	}
	if err := utils.Validator().Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "fields": utils.ProcessValidationErrors(err)})
		return false
	}
	return true
}

func (a *API) CreateSessionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		s := a.deps.Registry.Create()
		c.JSON(http.StatusCreated, sessionResponse(s))
	}
}

func (a *API) GetSessionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		s, ok := currentSession(c)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, sessionResponse(s))
	}
}

func (a *API) DeleteSessionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := a.deps.Registry.Delete(c.Param("sid")); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func (a *API) FetchVehiclesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		s, ok := currentSession(c)
		if !ok {
			return
		}
		var req FetchVehiclesRequest
		if c.Request.ContentLength > 0 && !bindAndValidate(c, &req) {
			return
		}

		list, err := a.FetchVehicles(c.Request.Context(), s, req.URL)
		if err != nil {
			status := http.StatusBadGateway
			if errors.Is(err, ingest.ErrNoSource) {
				status = http.StatusBadRequest
			} else if errors.Is(err, ingest.ErrMalformed) || errors.Is(err, ingest.ErrEmptyFile) || errors.Is(err, ingest.ErrNotUTF8) {
				status = http.StatusUnprocessableEntity
			}
			RespondError(c, status, "failed to load vehicles", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": list, "count": len(list)})
	}
}

func (a *API) ListVehiclesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		s, ok := currentSession(c)
		if !ok {
			return
		}
		list := s.Rows()
		rows := make([]VehicleRow, 0, len(list))
		for _, row := range list {
			rows = append(rows, a.rowView(s, row))
		}
		c.JSON(http.StatusOK, gin.H{"data": rows, "count": len(rows)})
	}
}

// RowCandidatesHandler starts the search for the row on first request and
// reports the current state.
func (a *API) RowCandidatesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		_, row, ok := currentRow(c)
		if !ok {
			return
		}
		st := row.Tracker.Ensure(row.Vehicle)
		c.JSON(http.StatusOK, CandidatesResponse{Row: row.Index, Candidates: st})
	}
}

// BatchCandidatesHandler starts searches for the rows currently visible to
// the operator. Rows outside the list are skipped.
func (a *API) BatchCandidatesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		s, ok := currentSession(c)
		if !ok {
			return
		}
		var req CandidatesRequest
		if !bindAndValidate(c, &req) {
			return
		}
		out := make([]CandidatesResponse, 0, len(req.Rows))
		for _, i := range req.Rows {
			row, ok := s.Row(i)
			if !ok {
				continue
			}
			out = append(out, CandidatesResponse{Row: i, Candidates: row.Tracker.Ensure(row.Vehicle)})
		}
		c.JSON(http.StatusAccepted, gin.H{"data": out})
	}
}

// SelectCandidateHandler picks one of the row's search results.
func (a *API) SelectCandidateHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		s, row, ok := currentRow(c)
		if !ok {
			return
		}
		var req SelectionRequest
		if !bindAndValidate(c, &req) {
			return
		}
		key := row.Vehicle.Key()
		st, _ := row.Tracker.State(key)
		if !st.Contains(req.URL) {
			c.JSON(http.StatusConflict, gin.H{"error": "url is not one of this vehicle's candidates"})
			return
		}
		row.Store.SelectFromCandidates(key, req.URL, models.ProvenanceThirdPartyFetched)
		c.JSON(http.StatusOK, gin.H{"data": a.rowView(s, row)})
	}
}

// SetOverrideHandler applies a pasted URL. A null or empty url clears the
// override.
func (a *API) SetOverrideHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		s, row, ok := currentRow(c)
		if !ok {
			return
		}
		var req OverrideRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		if req.URL == nil || *req.URL == "" {
			row.Store.ClearOverride(row.Vehicle.Key())
			c.JSON(http.StatusOK, gin.H{"data": a.rowView(s, row)})
			return
		}
		u, err := candidates.ValidatePastedURL(*req.URL)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		row.Store.SetOverride(row.Vehicle.Key(), u)
		c.JSON(http.StatusOK, gin.H{"data": a.rowView(s, row)})
	}
}

func (a *API) ClearOverrideHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		s, row, ok := currentRow(c)
		if !ok {
			return
		}
		row.Store.ClearOverride(row.Vehicle.Key())
		c.JSON(http.StatusOK, gin.H{"data": a.rowView(s, row)})
	}
}

// ServerImageHandler streams the backend's stored image for the row, or the
// placeholder when there is none.
func (a *API) ServerImageHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		_, row, ok := currentRow(c)
		if !ok {
			return
		}
		img, err := a.deps.ServerImages.Fetch(c.Request.Context(), row.Vehicle.SearchKey())
		if err != nil {
			RespondError(c, http.StatusBadGateway, "failed to fetch server image", err)
			return
		}
		source := "placeholder"
		if img.Found {
			source = "server"
		}
		c.Header("X-Image-Source", source)
		c.Data(http.StatusOK, img.ContentType, img.Data)
	}
}

func (a *API) SelectServerImageHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		s, row, ok := currentRow(c)
		if !ok {
			return
		}
		cand, found, err := a.deps.ServerImages.Candidate(c.Request.Context(), row.Vehicle)
		if err != nil {
			RespondError(c, http.StatusBadGateway, "failed to fetch server image", err)
			return
		}
		if !found {
			c.JSON(http.StatusNotFound, gin.H{"error": "no stored image for this vehicle"})
			return
		}
		row.Store.SelectFromCandidates(cand.Key, cand.URL, cand.Provenance)
		c.JSON(http.StatusOK, gin.H{"data": a.rowView(s, row)})
	}
}

// SelectImportedHandler selects the row's entry from the imported manifest.
func (a *API) SelectImportedHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		s, row, ok := currentRow(c)
		if !ok {
			return
		}
		cand, found := s.ImportedCandidate(row.Vehicle.Key())
		if !found {
			c.JSON(http.StatusNotFound, gin.H{"error": "no imported image for this vehicle"})
			return
		}
		row.Store.SelectFromCandidates(cand.Key, cand.URL, cand.Provenance)
		c.JSON(http.StatusOK, gin.H{"data": a.rowView(s, row)})
	}
}

// SelectionsHandler previews what an export would contain right now.
func (a *API) SelectionsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		s, ok := currentSession(c)
		if !ok {
			return
		}
		list, store := s.ExportList()
		c.JSON(http.StatusOK, gin.H{
			"data":     models.ManifestFromPairs(list),
			"selected": store.Snapshot().Len(),
			"count":    len(list),
		})
	}
}

// ExportJSONHandler downloads VehicleImages.json and ends the export flow.
func (a *API) ExportJSONHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		s, ok := currentSession(c)
		if !ok {
			return
		}
		list, store := s.ExportList()
		if store.Snapshot().Len() == 0 {
			c.JSON(http.StatusConflict, gin.H{"error": session.ErrNothingSelected.Error()})
			return
		}
		data, err := manifestBytes(list)
		if err != nil {
			RespondError(c, http.StatusInternalServerError, "failed to build manifest", err)
			return
		}
		store.Reset()

		fields := logrus.Fields(utils.LogFields(c.Request.Context()))
		fields["entries"] = len(list)
		a.deps.Logger.WithFields(fields).Info("[export.json]")

		c.Header("Content-Disposition", `attachment; filename="`+export.ManifestFileName+`"`)
		c.Data(http.StatusOK, "application/json", data)
	}
}

func (a *API) StartExportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		s, ok := currentSession(c)
		if !ok {
			return
		}
		job, ctx, list, err := s.StartJob()
		switch {
		case errors.Is(err, session.ErrNothingSelected), errors.Is(err, session.ErrExportRunning):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		case err != nil:
			RespondError(c, http.StatusInternalServerError, "failed to start export", err)
			return
		}

		cid, _ := utils.GetCorrelationIdFromContext(c.Request.Context())
		ctx = utils.SetCorrelationIdInContext(ctx, cid)
		ctx = utils.SetSessionIdInContext(ctx, s.ID)
		ctx = utils.SetJobIdInContext(ctx, job.ID)

		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			a.runExport(ctx, s, job, list)
		}()
		c.JSON(http.StatusAccepted, gin.H{"data": job.Snapshot()})
	}
}

func (a *API) currentJob(c *gin.Context) (*session.Session, *session.Job, bool) {
	s, ok := currentSession(c)
	if !ok {
		return nil, nil, false
	}
	job, err := s.Job(c.Param("job"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return nil, nil, false
	}
	return s, job, true
}

func (a *API) GetExportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		_, job, ok := a.currentJob(c)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": job.Snapshot()})
	}
}

func (a *API) DownloadExportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		_, job, ok := a.currentJob(c)
		if !ok {
			return
		}
		snap := job.Snapshot()
		if snap.Status != session.JobSucceeded {
			c.JSON(http.StatusConflict, gin.H{"error": "export is " + string(snap.Status)})
			return
		}
		if data, ok := job.Data(); ok {
			c.Header("Content-Disposition", `attachment; filename="`+export.ZipFileName+`"`)
			c.Data(http.StatusOK, "application/zip", data)
			return
		}
		if snap.DownloadURL != "" {
			c.Redirect(http.StatusFound, snap.DownloadURL)
			return
		}
		c.JSON(http.StatusGone, gin.H{"error": "archive is no longer available"})
	}
}

// CancelExportHandler stops a running export and ends the export flow.
func (a *API) CancelExportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		_, job, ok := a.currentJob(c)
		if !ok {
			return
		}
		if err := job.Cancel(); err != nil {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		job.ResetSelections()
		c.JSON(http.StatusOK, gin.H{"data": job.Snapshot()})
	}
}

func (a *API) HealthHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "sessions": a.deps.Registry.Len()})
	}
}
