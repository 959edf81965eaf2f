package candidates

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ChrissHeIs/electricco-vehicle-image-manager/models"
	"github.com/ChrissHeIs/electricco-vehicle-image-manager/utils"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"
)

var tracer = otel.Tracer("vehicle-image-manager/candidates")

const maxSearchResponseBytes = 2 << 20

type CarsXEOptions struct {
	Endpoint   string
	APIKey     string
	ProxyURL   string
	RatePerMin int
	HTTPClient *http.Client
}

// CarsXEClient queries the CarsXE images API for side-angle, transparent,
// black-background photos of a make and model.
type CarsXEClient struct {
	endpoint string
	apiKey   string
	proxyURL string
	http     *http.Client
	limiter  *rate.Limiter
}

func NewCarsXEClient(opts CarsXEOptions) *CarsXEClient {
	endpoint := strings.TrimSpace(opts.Endpoint)
	if endpoint == "" {
		endpoint = "https://api.carsxe.com/images"
	}
	perMin := opts.RatePerMin
	if perMin <= 0 {
		perMin = 60
	}
	client := opts.HTTPClient
	if client == nil {
		client = utils.NewHTTPClient(30 * time.Second)
	}
	return &CarsXEClient{
		endpoint: endpoint,
		apiKey:   strings.TrimSpace(opts.APIKey),
		proxyURL: strings.TrimSpace(opts.ProxyURL),
		http:     client,
		limiter:  rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMin)), 1),
	}
}

// TargetURL is the API URL for key before proxying.
func (c *CarsXEClient) TargetURL(key models.SearchKey) string {
	params := url.Values{}
	params.Set("key", c.apiKey)
	params.Set("angle", "side")
	params.Set("make", key.Brand)
	params.Set("model", key.Model)
	params.Set("transparent", "true")
	params.Set("color", "black")
	params.Set("format", "json")
	return c.endpoint + "?" + params.Encode()
}

// RequestURL is the URL actually requested, routed through the proxy when
// one is configured.
func (c *CarsXEClient) RequestURL(key models.SearchKey) string {
	return utils.ProxiedQueryURL(c.proxyURL, c.TargetURL(key))
}

// Search returns the image links for key. A response without an images
// array is an empty result; blank links are dropped.
func (c *CarsXEClient) Search(ctx context.Context, key models.SearchKey) ([]string, error) {
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	ctx, span := tracer.Start(ctx, "candidates.CarsXE.Search")
	defer span.End()
	span.SetAttributes(
		attribute.String("vehicle.brand", key.Brand),
		attribute.String("vehicle.model", key.Model),
	)

	if err := c.limiter.Wait(ctx); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.RequestURL(key), nil)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSearchResponseBytes))
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := fmt.Errorf("image search error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if !strings.Contains(strings.ToLower(resp.Header.Get("Content-Type")), "application/json") {
		span.SetStatus(codes.Error, ErrNotJSON.Error())
		return nil, ErrNotJSON
	}

	var parsed carsxeResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("decode image search response: %w", err)
	}
	if parsed.Success != nil && !*parsed.Success {
		msg := parsed.Error
		if msg == "" {
			msg = parsed.Message
		}
		err := fmt.Errorf("image search failed: %s", msg)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	links := make([]string, 0, len(parsed.Images))
	for _, img := range parsed.Images {
		if link := strings.TrimSpace(img.Link); link != "" {
			links = append(links, link)
		}
	}
	span.SetAttributes(attribute.Int("candidates.count", len(links)))
	return links, nil
}
