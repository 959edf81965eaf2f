package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ChrissHeIs/electricco-vehicle-image-manager/models"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("vehicle-image-manager/ingest")

// maxRemoteCSVBytes caps a downloaded vehicle list.
const maxRemoteCSVBytes = 20 << 20

var ErrNoSource = errors.New("no csv url configured")

// FetchCSV downloads proxyURL+csvURL and parses it. The proxy origin is a
// plain prefix, matching how the hosted proxy is addressed.
func FetchCSV(ctx context.Context, client *http.Client, proxyURL, csvURL string) ([]models.VehicleRecord, error) {
	csvURL = strings.TrimSpace(csvURL)
	if csvURL == "" {
		return nil, ErrNoSource
	}
	target := strings.TrimSpace(proxyURL) + csvURL

	ctx, span := tracer.Start(ctx, "ingest.FetchCSV")
	defer span.End()
	span.SetAttributes(attribute.String("csv.url", csvURL))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("build csv request: %w", err)
	}
	req.Header.Set("Accept", "text/csv, text/plain, */*")

	resp, err := client.Do(req)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("fetch csv: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := fmt.Errorf("fetch csv: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	records, err := ParseCSV(io.LimitReader(resp.Body, maxRemoteCSVBytes))
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("csv.kept_rows", len(records)))
	return records, nil
}
