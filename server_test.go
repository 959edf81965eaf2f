package main

import (
	"bytes"
	"context"
	"encoding/json"
	"image/color"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ChrissHeIs/electricco-vehicle-image-manager/candidates"
	"github.com/ChrissHeIs/electricco-vehicle-image-manager/config"
	"github.com/ChrissHeIs/electricco-vehicle-image-manager/curation"
	"github.com/ChrissHeIs/electricco-vehicle-image-manager/export"
	"github.com/ChrissHeIs/electricco-vehicle-image-manager/models"
	"github.com/ChrissHeIs/electricco-vehicle-image-manager/session"
	"github.com/disintegration/imaging"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func newTestServer(t *testing.T) (*gin.Engine, *session.Registry) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	search := candidates.SearcherFunc(func(ctx context.Context, key models.SearchKey) ([]string, error) {
		return nil, nil
	})
	registry := session.NewRegistry(context.Background(), time.Hour, search, logger)
	settings := config.Settings{ProxyAllowedHosts: []string{"api.carsxe.com"}}
	api := curation.NewAPI(curation.Deps{
		Registry:     registry,
		Exporter:     export.NewZipExporter(export.NewImageFetcher(http.DefaultClient, ""), export.DefaultMaxWidth, logger),
		ServerImages: candidates.NewServerImageClient("", http.DefaultClient, ""),
		HTTPClient:   http.DefaultClient,
		Settings:     settings,
		Logger:       logger,
	})
	t.Cleanup(func() {
		registry.Close()
		api.Wait()
	})
	return setupRouter(api, registry, settings, nil, logger), registry
}

func multipartBody(t *testing.T, name string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", name)
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	_, _ = fw.Write(data)
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRouter_HealthAndNotFound(t *testing.T) {
	r, _ := newTestServer(t)

	if w := serve(r, httptest.NewRequest(http.MethodGet, "/healthz", nil)); w.Code != http.StatusOK {
		t.Fatalf("expected 200 from /healthz, got %d", w.Code)
	}
	w := serve(r, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	if w := serve(r, httptest.NewRequest(http.MethodGet, "/sessions/missing/vehicles", nil)); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown session, got %d", w.Code)
	}
}

func TestUploadVehicles(t *testing.T) {
	r, registry := newTestServer(t)
	s := registry.Create()
	path := "/sessions/" + s.ID + "/vehicles/upload"

	cases := []struct {
		name     string
		file     string
		data     string
		expected int
		count    int
	}{
		{"csv", "vehicles.csv", "brand,model,year,reliability\nAudi,A3,2020,4\nBMW,X5,2021,1\n", http.StatusOK, 1},
		{"empty keeps previous", "vehicles.csv", "", http.StatusBadRequest, 1},
		{"wrong extension", "vehicles.txt", "brand,model\n", http.StatusBadRequest, 1},
		{"header only", "vehicles.csv", "brand,model,year,reliability\n", http.StatusOK, 0},
	}
	for _, tc := range cases {
		body, contentType := multipartBody(t, tc.file, []byte(tc.data))
		req := httptest.NewRequest(http.MethodPost, path, body)
		req.Header.Set("Content-Type", contentType)
		w := serve(r, req)
		if w.Code != tc.expected {
			t.Fatalf("%s: expected %d, got %d: %s", tc.name, tc.expected, w.Code, w.Body.String())
		}
		if got := len(s.Vehicles()); got != tc.count {
			t.Fatalf("%s: expected %d vehicles, got %d", tc.name, tc.count, got)
		}
	}
}

func TestOverrideUpload(t *testing.T) {
	r, registry := newTestServer(t)
	s := registry.Create()
	if err := s.ReplaceVehicles([]models.VehicleRecord{{Brand: "Audi", Model: "A3", Year: "2020"}}, "test"); err != nil {
		t.Fatalf("ReplaceVehicles: %v", err)
	}

	var png bytes.Buffer
	if err := imaging.Encode(&png, imaging.New(3, 3, color.NRGBA{G: 255, A: 255}), imaging.PNG); err != nil {
		t.Fatalf("encode: %v", err)
	}

	cases := []struct {
		name     string
		row      string
		file     string
		data     []byte
		expected int
	}{
		{"image", "0", "a3.png", png.Bytes(), http.StatusOK},
		{"not an image", "0", "a3.txt", []byte("hello"), http.StatusBadRequest},
		{"too large", "0", "big.png", make([]byte, candidates.MaxUploadSizeBytes+1), http.StatusBadRequest},
		{"missing row", "4", "a3.png", png.Bytes(), http.StatusNotFound},
	}
	for _, tc := range cases {
		body, contentType := multipartBody(t, tc.file, tc.data)
		req := httptest.NewRequest(http.MethodPost, "/sessions/"+s.ID+"/vehicles/"+tc.row+"/override/upload", body)
		req.Header.Set("Content-Type", contentType)
		if w := serve(r, req); w.Code != tc.expected {
			t.Fatalf("%s: expected %d, got %d: %s", tc.name, tc.expected, w.Code, w.Body.String())
		}
	}
	sel, ok := s.Store().Snapshot().Get(models.VehicleKey{Brand: "Audi", Model: "A3", Year: "2020"})
	if !ok || sel.Provenance != models.ProvenanceManualOverride {
		t.Fatalf("expected manual override, got %+v", sel)
	}
}

func TestImportManifest(t *testing.T) {
	r, registry := newTestServer(t)
	s := registry.Create()
	manifest := `[{"brand":"Audi","model":"A3","year":"2020","imageUrl":"https://old/a3.png"}]`

	req := httptest.NewRequest(http.MethodPost, "/sessions/"+s.ID+"/manifest/import", bytes.NewBufferString(manifest))
	req.Header.Set("Content-Type", "application/json")
	w := serve(r, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil || resp.Count != 1 {
		t.Fatalf("unexpected response %s", w.Body.String())
	}

	body, contentType := multipartBody(t, "VehicleImages.json", []byte(`{"brand":"Audi"}`))
	req = httptest.NewRequest(http.MethodPost, "/sessions/"+s.ID+"/manifest/import", body)
	req.Header.Set("Content-Type", contentType)
	if w := serve(r, req); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-array manifest, got %d", w.Code)
	}
	if len(s.Baseline()) != 1 {
		t.Fatalf("a rejected manifest must keep the previous baseline")
	}
}
