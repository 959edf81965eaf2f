package curation

import (
	"bytes"
	"context"
	"errors"
	"path"
	"time"

	"github.com/ChrissHeIs/electricco-vehicle-image-manager/config"
	"github.com/ChrissHeIs/electricco-vehicle-image-manager/export"
	"github.com/ChrissHeIs/electricco-vehicle-image-manager/models"
	"github.com/ChrissHeIs/electricco-vehicle-image-manager/session"
	"github.com/ChrissHeIs/electricco-vehicle-image-manager/utils"
	"github.com/sirupsen/logrus"
)

// ArchiveStore decides where a finished zip lives. An empty objectKey means
// the job keeps the bytes itself.
type ArchiveStore interface {
	Save(ctx context.Context, sessionID, jobID string, data []byte) (objectKey, downloadURL string, err error)
	Remove(ctx context.Context, objectKey string) error
}

type MemoryArchives struct{}

func (MemoryArchives) Save(ctx context.Context, sessionID, jobID string, data []byte) (string, string, error) {
	return "", "", nil
}

func (MemoryArchives) Remove(ctx context.Context, objectKey string) error {
	return nil
}

// GCSArchives uploads archives to GCS_BUCKET and hands out signed GET URLs,
// or the public object URL when signing is unavailable.
type GCSArchives struct {
	Expiry time.Duration
}

func (g GCSArchives) Save(ctx context.Context, sessionID, jobID string, data []byte) (string, string, error) {
	key := path.Join("exports", sessionID, jobID, export.ZipFileName)
	if err := utils.UploadBytesToGCS(ctx, key, data, "application/zip"); err != nil {
		return "", "", err
	}
	signed, err := utils.SignDownload(ctx, key, export.ZipFileName, g.Expiry)
	if err != nil {
		// Buckets served through a public CDN do not need signing.
		if public, ok := utils.PublicObjectURL(key); ok {
			return key, public, nil
		}
		return "", "", err
	}
	return key, signed.URL, nil
}

func (g GCSArchives) Remove(ctx context.Context, objectKey string) error {
	return utils.DeleteObjectFromGCS(ctx, objectKey)
}

// runExport builds the zip for one job. It owns the job until it reaches a
// terminal status; a cancel from the API wins over a late result.
func (a *API) runExport(ctx context.Context, s *session.Session, job *session.Job, list []models.VehicleImage) {
	logger := a.deps.Logger
	fields := logrus.Fields(utils.LogFields(ctx))
	fields["entries"] = len(list)

	if err := job.Start(); err != nil {
		return
	}
	logger.WithFields(fields).Info("[export.zip] started")

	var buf bytes.Buffer
	res, err := a.deps.Exporter.Export(ctx, list, &buf, job.SetProgress)
	if err != nil {
		a.finishFailed(ctx, job, fields, err)
		return
	}

	objectKey, downloadURL, err := a.deps.Archives.Save(ctx, s.ID, job.ID, buf.Bytes())
	if err != nil {
		a.finishFailed(ctx, job, fields, err)
		return
	}
	data := buf.Bytes()
	if objectKey != "" {
		data = nil
	}
	if err := job.Succeed(data, res.Bytes, res.Entries, objectKey, downloadURL); err != nil {
		// Cancelled while the archive was being stored.
		if objectKey != "" {
			rmCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if rerr := a.deps.Archives.Remove(rmCtx, objectKey); rerr != nil {
				config.LogError(logger, "curation", "runExport", "Archives.Remove", objectKey, rerr)
			}
		}
		return
	}
	job.ResetSelections()

	fields["bytes"] = res.Bytes
	fields["object_key"] = objectKey
	logger.WithFields(fields).Info("[export.zip] completed")

	if a.deps.Events != nil {
		snap := job.Snapshot()
		ev := ExportCompletedEvent{
			SessionID:  s.ID,
			JobID:      job.ID,
			Entries:    res.Entries,
			Size:       res.Bytes,
			ObjectKey:  objectKey,
			FinishedAt: time.Now().UTC(),
		}
		if snap.FinishedAt != nil {
			ev.FinishedAt = snap.FinishedAt.UTC()
		}
		// The job context is released on success; publishing gets its own.
		pubCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.deps.Events.PublishExportCompleted(pubCtx, ev); err != nil {
			config.LogError(logger, "curation", "runExport", "PublishExportCompleted", ev, err)
		}
	}
}

func (a *API) finishFailed(ctx context.Context, job *session.Job, fields logrus.Fields, err error) {
	if errors.Is(err, context.Canceled) || ctx.Err() != nil {
		// Cancel already moved the job to its terminal status.
		_ = job.Fail(err)
		return
	}
	if ferr := job.Fail(err); ferr != nil {
		return
	}
	fields["error"] = err.Error()
	a.deps.Logger.WithFields(fields).Error("[export.zip] failed")
}
