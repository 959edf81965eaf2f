package candidates

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/ChrissHeIs/electricco-vehicle-image-manager/models"
	"github.com/google/go-cmp/cmp"
)

func newTestClient(endpoint, proxy, key string, client *http.Client) *CarsXEClient {
	return NewCarsXEClient(CarsXEOptions{
		Endpoint:   endpoint,
		APIKey:     key,
		ProxyURL:   proxy,
		RatePerMin: 60000,
		HTTPClient: client,
	})
}

func TestCarsXE_TargetURLCarriesFixedParameters(t *testing.T) {
	c := newTestClient("https://api.carsxe.com/images", "", "k1", http.DefaultClient)
	u, err := url.Parse(c.TargetURL(models.SearchKey{Brand: "Land Rover", Model: "Defender"}))
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	q := u.Query()
	want := map[string]string{
		"key":         "k1",
		"angle":       "side",
		"make":        "Land Rover",
		"model":       "Defender",
		"transparent": "true",
		"color":       "black",
		"format":      "json",
	}
	for k, v := range want {
		if q.Get(k) != v {
			t.Fatalf("query %s expected %q, got %q", k, v, q.Get(k))
		}
	}
}

func TestCarsXE_SearchThroughProxy(t *testing.T) {
	var forwarded string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		forwarded = r.URL.Query().Get("url")
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_, _ = w.Write([]byte(`{"images":[{"link":"https://img/1.png"},{"link":""},{"link":"https://img/2.png"}]}`))
	}))
	defer srv.Close()

	c := newTestClient("https://api.carsxe.com/images", srv.URL+"/proxy", "k1", srv.Client())
	got, err := c.Search(context.Background(), models.SearchKey{Brand: "BMW", Model: "X5"})
	if err != nil {
		t.Fatalf("Search error: %v", err)
	}
	if diff := cmp.Diff([]string{"https://img/1.png", "https://img/2.png"}, got); diff != "" {
		t.Fatalf("links mismatch (-want +got):\n%s", diff)
	}
	if !strings.HasPrefix(forwarded, "https://api.carsxe.com/images?") || !strings.Contains(forwarded, "make=BMW") {
		t.Fatalf("proxy received unexpected target %q", forwarded)
	}
}

func TestCarsXE_SearchOutcomes(t *testing.T) {
	cases := []struct {
		name        string
		status      int
		contentType string
		body        string
		wantErr     bool
		wantLen     int
	}{
		{"no images field", 200, "application/json", `{}`, false, 0},
		{"empty images", 200, "application/json", `{"images":[]}`, false, 0},
		{"server error", 500, "application/json", `{"error":"boom"}`, true, 0},
		{"html body", 200, "text/html", `<html></html>`, true, 0},
		{"malformed json", 200, "application/json", `{"images":`, true, 0},
		{"images not array", 200, "application/json", `{"images":"nope"}`, true, 0},
		{"api reports failure", 200, "application/json", `{"success":false,"error":"invalid key"}`, true, 0},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", tc.contentType)
			w.WriteHeader(tc.status)
			_, _ = w.Write([]byte(tc.body))
		}))
		c := newTestClient(srv.URL, "", "k1", srv.Client())
		got, err := c.Search(context.Background(), models.SearchKey{Brand: "Kia", Model: "EV6"})
		srv.Close()

		if tc.wantErr && err == nil {
			t.Fatalf("%s: expected error, got %v", tc.name, got)
		}
		if !tc.wantErr && (err != nil || len(got) != tc.wantLen) {
			t.Fatalf("%s: expected %d links, got %v err=%v", tc.name, tc.wantLen, got, err)
		}
	}
}

func TestCarsXE_MissingKeyMakesNoRequest(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, "", "", srv.Client())
	_, err := c.Search(context.Background(), models.SearchKey{Brand: "Kia", Model: "EV6"})
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
	if called {
		t.Fatalf("no request expected without an api key")
	}
}

func TestCachedSearcher_WithoutRedisDelegates(t *testing.T) {
	calls := 0
	next := SearcherFunc(func(ctx context.Context, key models.SearchKey) ([]string, error) {
		calls++
		return []string{"u"}, nil
	})
	s := NewCachedSearcher(next, 0, testLogger())
	for i := 0; i < 2; i++ {
		if _, err := s.Search(context.Background(), models.SearchKey{Brand: "a", Model: "b"}); err != nil {
			t.Fatalf("Search error: %v", err)
		}
	}
	if calls != 2 {
		t.Fatalf("expected every call to reach the searcher without redis, got %d", calls)
	}
}
