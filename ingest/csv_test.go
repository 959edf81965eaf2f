package ingest

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ChrissHeIs/electricco-vehicle-image-manager/models"
	"github.com/google/go-cmp/cmp"
	"github.com/xuri/excelize/v2"
)

func TestParseCSV_FiltersByReliability(t *testing.T) {
	in := "brand,model,year,reliability\n" +
		"Audi,A3,2020,4\n" +
		"BMW,X5,2021,2\n" +
		"Kia,EV6,2022,3\n"

	got, err := ParseCSV(strings.NewReader(in))
	if err != nil {
		t.Fatalf("ParseCSV error: %v", err)
	}
	want := []models.VehicleRecord{
		{Brand: "Audi", Model: "A3", Year: "2020"},
		{Brand: "Kia", Model: "EV6", Year: "2022"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("ParseCSV mismatch (-want +got):\n%s", diff)
	}
}

func TestParseCSV_HeaderOnly(t *testing.T) {
	got, err := ParseCSV(strings.NewReader("brand,model,year,reliability\n"))
	if err != nil {
		t.Fatalf("ParseCSV error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no vehicles, got %+v", got)
	}
}

func TestParseCSV_ColumnOrderAndExtraColumns(t *testing.T) {
	in := "reliability,notes,year,model,brand\n" +
		"5,fine,2019,Model 3,Tesla\n"
	got, err := ParseCSV(strings.NewReader(in))
	if err != nil {
		t.Fatalf("ParseCSV error: %v", err)
	}
	want := []models.VehicleRecord{{Brand: "Tesla", Model: "Model 3", Year: "2019"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("ParseCSV mismatch (-want +got):\n%s", diff)
	}
}

func TestParseCSV_ValuesKeptVerbatim(t *testing.T) {
	in := "brand,model,year,reliability\n" +
		" Land Rover ,Defender,2020, 4 \n" +
		"\"Citroën\",\"C4, Picasso\",2018,3.5\n"
	got, err := ParseCSV(strings.NewReader(in))
	if err != nil {
		t.Fatalf("ParseCSV error: %v", err)
	}
	want := []models.VehicleRecord{
		{Brand: " Land Rover ", Model: "Defender", Year: "2020"},
		{Brand: "Citroën", Model: "C4, Picasso", Year: "2018"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("ParseCSV mismatch (-want +got):\n%s", diff)
	}
}

func TestParseCSV_SkipsBlankLinesAndRaggedRows(t *testing.T) {
	in := "\xEF\xBB\xBFbrand,model,year,reliability\n" +
		"\n" +
		"Audi,A3,2020,4\n" +
		"BMW,X5\n" +
		",,,\n" +
		"Kia,EV6,2022,4,extra\n"
	got, err := ParseCSV(strings.NewReader(in))
	if err != nil {
		t.Fatalf("ParseCSV error: %v", err)
	}
	if len(got) != 2 || got[0].Brand != "Audi" || got[1].Brand != "Kia" {
		t.Fatalf("unexpected vehicles: %+v", got)
	}
}

func TestParseCSV_Errors(t *testing.T) {
	cases := []struct {
		name string
		in   string
		err  error
	}{
		{"empty", "", ErrEmptyFile},
		{"not utf8", "brand,model,year,reliability\n\xff\xfe,x,2020,4\n", ErrNotUTF8},
	}
	for _, tc := range cases {
		_, err := ParseCSV(strings.NewReader(tc.in))
		if !errors.Is(err, tc.err) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.err, err)
		}
	}
}

func TestMeetsThreshold(t *testing.T) {
	cases := []struct {
		in       string
		expected bool
	}{
		{"3", true},
		{"4", true},
		{"3.0", true},
		{" 5 ", true},
		{"10", true},
		{"2.99", false},
		{"2", false},
		{"-4", false},
		{"", false},
		{"   ", false},
		{"N/A", false},
		{"4a", false},
	}
	for _, tc := range cases {
		if got := MeetsThreshold(tc.in); got != tc.expected {
			t.Fatalf("MeetsThreshold(%q) expected %v, got %v", tc.in, tc.expected, got)
		}
	}
}

func TestParseXLSX(t *testing.T) {
	f := excelize.NewFile()
	rows := [][]interface{}{
		{"brand", "model", "year", "reliability"},
		{"Audi", "A3", "2020", "4"},
		{"BMW", "X5", "2021", "1"},
		{"Kia", "EV6", "2022", "3"},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("cell name: %v", err)
		}
		row := row
		if err := f.SetSheetRow("Sheet1", cell, &row); err != nil {
			t.Fatalf("SetSheetRow: %v", err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer: %v", err)
	}

	got, err := ParseXLSX(buf)
	if err != nil {
		t.Fatalf("ParseXLSX error: %v", err)
	}
	want := []models.VehicleRecord{
		{Brand: "Audi", Model: "A3", Year: "2020"},
		{Brand: "Kia", Model: "EV6", Year: "2022"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("ParseXLSX mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_DispatchesOnExtension(t *testing.T) {
	if _, err := Parse("vehicles.pdf", strings.NewReader("x")); !errors.Is(err, ErrUnsupportedExt) {
		t.Fatalf("expected ErrUnsupportedExt, got %v", err)
	}
	got, err := Parse("Vehicles.CSV", strings.NewReader("brand,model,year,reliability\nAudi,A3,2020,3\n"))
	if err != nil || len(got) != 1 {
		t.Fatalf("expected one vehicle, got %+v err=%v", got, err)
	}
}

func TestFetchCSV_ConcatenatesProxyAndURL(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.RequestURI()
		w.Header().Set("Content-Type", "text/csv")
		_, _ = w.Write([]byte("brand,model,year,reliability\nAudi,A3,2020,5\n"))
	}))
	defer srv.Close()

	got, err := FetchCSV(context.Background(), srv.Client(), srv.URL+"/", "sheets/vehicles.csv")
	if err != nil {
		t.Fatalf("FetchCSV error: %v", err)
	}
	if gotPath != "/sheets/vehicles.csv" {
		t.Fatalf("expected proxied path /sheets/vehicles.csv, got %s", gotPath)
	}
	if len(got) != 1 || got[0].Brand != "Audi" {
		t.Fatalf("unexpected vehicles: %+v", got)
	}
}

func TestFetchCSV_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	if _, err := FetchCSV(context.Background(), srv.Client(), srv.URL+"/", "x.csv"); err == nil {
		t.Fatalf("expected error for non-2xx response")
	}
	if _, err := FetchCSV(context.Background(), srv.Client(), srv.URL+"/", "  "); !errors.Is(err, ErrNoSource) {
		t.Fatalf("expected ErrNoSource, got %v", err)
	}
}
