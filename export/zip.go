package export

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"path"
	"time"

	"github.com/ChrissHeIs/electricco-vehicle-image-manager/models"
	"github.com/disintegration/imaging"
	"github.com/klauspost/compress/zip"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	_ "golang.org/x/image/webp"
)

var tracer = otel.Tracer("vehicle-image-manager/export")

const DefaultMaxWidth = 430

// Fetcher returns the raw bytes behind an image URL.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) ([]byte, error)
}

type FetcherFunc func(ctx context.Context, rawURL string) ([]byte, error)

func (f FetcherFunc) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	return f(ctx, rawURL)
}

// ProgressFunc receives a percentage in [0,100] after each processed pair.
type ProgressFunc func(percent int)

type ZipResult struct {
	Entries int
	Bytes   int64
}

// ZipExporter builds the image archive one pair at a time. Nothing reaches
// the writer until every image has been processed.
type ZipExporter struct {
	fetcher  Fetcher
	maxWidth int
	logger   *logrus.Logger
	now      func() time.Time
}

func NewZipExporter(fetcher Fetcher, maxWidth int, logger *logrus.Logger) *ZipExporter {
	if maxWidth <= 0 {
		maxWidth = DefaultMaxWidth
	}
	return &ZipExporter{fetcher: fetcher, maxWidth: maxWidth, logger: logger, now: time.Now}
}

// EntryPath is the archive path for a vehicle's image.
func EntryPath(v models.VehicleRecord) string {
	return path.Join(ZipRootFolder, SanitizeFilename(v.Brand), SanitizeFilename(v.Model)+".png")
}

type zipEntry struct {
	name string
	data []byte
}

func (e *ZipExporter) Export(ctx context.Context, pairs []models.VehicleImage, w io.Writer, progress ProgressFunc) (ZipResult, error) {
	ctx, span := tracer.Start(ctx, "export.ZipExporter.Export")
	defer span.End()
	span.SetAttributes(attribute.Int("export.pairs", len(pairs)))

	if len(pairs) == 0 {
		return ZipResult{}, ErrEmptySelection
	}

	fail := func(err error) (ZipResult, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return ZipResult{}, err
	}

	// Brand/model collisions across years share a path; the later pair wins
	// but keeps the slot of the first.
	entries := make([]zipEntry, 0, len(pairs))
	index := make(map[string]int, len(pairs))
	for i, p := range pairs {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		data, err := e.render(ctx, p.URL)
		if err != nil {
			return fail(fmt.Errorf("%s: %w", p.Key().String(), err))
		}
		name := EntryPath(p.Vehicle)
		if at, ok := index[name]; ok {
			entries[at].data = data
		} else {
			index[name] = len(entries)
			entries = append(entries, zipEntry{name: name, data: data})
		}

		if progress != nil {
			progress(int(math.Round(float64(i+1) / float64(len(pairs)) * 100)))
		}
	}

	n, err := e.writeArchive(w, entries)
	if err != nil {
		return fail(err)
	}
	if e.logger != nil {
		e.logger.WithFields(logrus.Fields{
			"entries": len(entries),
			"bytes":   n,
		}).Info("[export.zip] archive written")
	}
	return ZipResult{Entries: len(entries), Bytes: n}, nil
}

// render fetches, decodes, downsizes and re-encodes one image as PNG.
func (e *ZipExporter) render(ctx context.Context, rawURL string) ([]byte, error) {
	raw, err := e.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	img, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	if img.Bounds().Dx() > e.maxWidth {
		img = imaging.Resize(img, e.maxWidth, 0, imaging.Lanczos)
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

func (e *ZipExporter) writeArchive(w io.Writer, entries []zipEntry) (int64, error) {
	cw := &countingWriter{w: w}
	zw := zip.NewWriter(cw)
	modified := e.now()

	dirs := map[string]bool{}
	mkdir := func(dir string) error {
		if dirs[dir] {
			return nil
		}
		dirs[dir] = true
		_, err := zw.CreateHeader(&zip.FileHeader{Name: dir + "/", Method: zip.Store, Modified: modified})
		return err
	}

	if err := mkdir(ZipRootFolder); err != nil {
		return 0, err
	}
	for _, entry := range entries {
		if err := mkdir(path.Dir(entry.name)); err != nil {
			return 0, err
		}
		// PNG is already compressed.
		f, err := zw.CreateHeader(&zip.FileHeader{Name: entry.name, Method: zip.Store, Modified: modified})
		if err != nil {
			return 0, err
		}
		if _, err := f.Write(entry.data); err != nil {
			return 0, err
		}
	}
	if err := zw.Close(); err != nil {
		return 0, err
	}
	return cw.n, nil
}
