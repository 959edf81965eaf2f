package candidates

import (
	"bytes"
	"context"
	"fmt"
	"image/color"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"

	"github.com/ChrissHeIs/electricco-vehicle-image-manager/models"
	"github.com/disintegration/imaging"
)

const maxServerImageBytes = 10 << 20

// ServerImageClient reads the image the backend already stores for a
// brand/model.
type ServerImageClient struct {
	baseURL         string
	http            *http.Client
	placeholderPath string

	placeholderOnce sync.Once
	placeholder     []byte
	placeholderType string
}

func NewServerImageClient(baseURL string, client *http.Client, placeholderPath string) *ServerImageClient {
	return &ServerImageClient{
		baseURL:         strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http:            client,
		placeholderPath: strings.TrimSpace(placeholderPath),
	}
}

func (c *ServerImageClient) Enabled() bool {
	return c.baseURL != ""
}

// ImageURL is the backend URL for key's image.
func (c *ServerImageClient) ImageURL(key models.SearchKey) string {
	params := url.Values{}
	params.Set("brand", key.Brand)
	params.Set("model", key.Model)
	return c.baseURL + "/vehicles/vehicle-image?" + params.Encode()
}

// Fetch returns the stored image, or the placeholder when the backend has
// none (404) or no backend is configured.
func (c *ServerImageClient) Fetch(ctx context.Context, key models.SearchKey) (ServerImage, error) {
	if !c.Enabled() {
		return c.Placeholder(), nil
	}
	target := c.ImageURL(key)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return ServerImage{}, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return ServerImage{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return c.Placeholder(), nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return ServerImage{}, fmt.Errorf("backend image error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxServerImageBytes))
	if err != nil {
		return ServerImage{}, err
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return ServerImage{Found: true, URL: target, ContentType: contentType, Data: data}, nil
}

// Candidate reports the backend image as a selectable candidate, or false
// when the backend has nothing for key.
func (c *ServerImageClient) Candidate(ctx context.Context, v models.VehicleRecord) (models.ImageCandidate, bool, error) {
	img, err := c.Fetch(ctx, v.SearchKey())
	if err != nil || !img.Found {
		return models.ImageCandidate{}, false, err
	}
	return models.ImageCandidate{
		Key:        v.Key(),
		URL:        img.URL,
		Provenance: models.ProvenanceServerExisting,
	}, true, nil
}

// Placeholder is read from the configured file, or drawn as a flat grey
// PNG when no file is configured or it cannot be read.
func (c *ServerImageClient) Placeholder() ServerImage {
	c.placeholderOnce.Do(func() {
		if c.placeholderPath != "" {
			if data, err := os.ReadFile(c.placeholderPath); err == nil && len(data) > 0 {
				c.placeholder = data
				c.placeholderType = http.DetectContentType(data)
				return
			}
		}
		img := imaging.New(430, 240, color.NRGBA{R: 226, G: 228, B: 231, A: 255})
		var buf bytes.Buffer
		if err := imaging.Encode(&buf, img, imaging.PNG); err == nil {
			c.placeholder = buf.Bytes()
			c.placeholderType = "image/png"
		}
	})
	return ServerImage{Found: false, ContentType: c.placeholderType, Data: c.placeholder}
}
