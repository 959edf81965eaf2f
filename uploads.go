package main

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ChrissHeIs/electricco-vehicle-image-manager/candidates"
	"github.com/ChrissHeIs/electricco-vehicle-image-manager/config"
	"github.com/ChrissHeIs/electricco-vehicle-image-manager/curation"
	"github.com/ChrissHeIs/electricco-vehicle-image-manager/ingest"
	"github.com/ChrissHeIs/electricco-vehicle-image-manager/middlewares"
	"github.com/ChrissHeIs/electricco-vehicle-image-manager/models"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const (
	maxVehicleFileBytes  int64 = 20 << 20
	maxManifestFileBytes int64 = 20 << 20
)

var vehicleFileExts = map[string]bool{
	".csv":  true,
	".xlsx": true,
}

// uploadVehiclesHandler replaces the session's vehicle list with an uploaded
// CSV or XLSX file. A rejected file leaves the previous list in place.
func uploadVehiclesHandler(api *curation.API) gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := config.GetLogger()
		requestID := requestIDFromHeaders(c)

		s, ok := middlewares.CurrentSession(c)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		file, header, ok := formFile(c, maxVehicleFileBytes)
		if !ok {
			return
		}
		defer file.Close()

		if !vehicleFileExts[strings.ToLower(filepath.Ext(header.Filename))] {
			c.JSON(http.StatusBadRequest, gin.H{"error": ingest.ErrUnsupportedExt.Error()})
			return
		}

		list, err := api.LoadVehicles(c.Request.Context(), s, header.Filename, file)
		if err != nil {
			logUploadError(logger, err, "vehicles", requestID)
			curation.RespondError(c, http.StatusBadRequest, ingestMessage(err), err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": list, "count": len(list)})
	}
}

// overrideUploadHandler stores an uploaded image as the row's override.
func overrideUploadHandler(api *curation.API) gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := config.GetLogger()
		requestID := requestIDFromHeaders(c)

		s, ok := middlewares.CurrentSession(c)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		row, err := strconv.Atoi(c.Param("row"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "row must be a number"})
			return
		}
		file, header, ok := formFile(c, candidates.MaxUploadSizeBytes)
		if !ok {
			return
		}
		defer file.Close()

		// One byte over the limit is enough to reject.
		data, err := io.ReadAll(io.LimitReader(file, candidates.MaxUploadSizeBytes+1))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read file"})
			return
		}

		view, err := api.ApplyOverrideUpload(s, row, header.Filename, data)
		switch {
		case errors.Is(err, curation.ErrRowNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		case errors.Is(err, candidates.ErrUploadTooLarge), errors.Is(err, candidates.ErrNotAnImage):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		case err != nil:
			logUploadError(logger, err, "override", requestID)
			curation.RespondError(c, http.StatusInternalServerError, "failed to store image", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": view})
	}
}

// importManifestHandler accepts a previously exported VehicleImages.json as
// a multipart "file" field or as the raw request body.
func importManifestHandler(api *curation.API) gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := config.GetLogger()
		requestID := requestIDFromHeaders(c)

		s, ok := middlewares.CurrentSession(c)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}

		var (
			name string
			data []byte
			err  error
		)
		if strings.HasPrefix(c.ContentType(), "multipart/") {
			file, header, ok := formFile(c, maxManifestFileBytes)
			if !ok {
				return
			}
			defer file.Close()
			name = header.Filename
			data, err = io.ReadAll(file)
		} else {
			name = "VehicleImages.json"
			data, err = io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxManifestFileBytes))
		}
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read file"})
			return
		}

		pairs, err := api.ImportManifest(c.Request.Context(), s, name, data)
		if err != nil {
			logUploadError(logger, err, "manifest", requestID)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": models.ManifestFromPairs(pairs), "count": len(pairs)})
	}
}

func formFile(c *gin.Context, limit int64) (multipart.File, *multipart.FileHeader, bool) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit+(1<<20))
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file is too large"})
			return nil, nil, false
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return nil, nil, false
	}
	if header.Size > limit {
		file.Close()
		if limit == candidates.MaxUploadSizeBytes {
			c.JSON(http.StatusBadRequest, gin.H{"error": candidates.ErrUploadTooLarge.Error()})
		} else {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file is too large"})
		}
		return nil, nil, false
	}
	return file, header, true
}

func ingestMessage(err error) string {
	switch {
	case errors.Is(err, ingest.ErrEmptyFile), errors.Is(err, ingest.ErrNotUTF8),
		errors.Is(err, ingest.ErrMalformed), errors.Is(err, ingest.ErrUnsupportedExt):
		return "invalid vehicle file"
	default:
		return "failed to load vehicles"
	}
}

func logUploadError(logger *logrus.Logger, err error, kind string, requestID string) {
	logger.WithFields(logrus.Fields{
		"error":      err.Error(),
		"kind":       kind,
		"request_id": requestID,
	}).Error("[upload.error]")
}

func requestIDFromHeaders(c *gin.Context) string {
	if id := strings.TrimSpace(c.GetHeader(middlewares.CorrelationHeader)); id != "" {
		return id
	}
	if id := strings.TrimSpace(c.GetHeader("X-Request-Id")); id != "" {
		return id
	}
	return fmt.Sprintf("upload-%d", time.Now().UnixNano())
}
