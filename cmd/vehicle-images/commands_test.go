package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ChrissHeIs/electricco-vehicle-image-manager/config"
	"github.com/disintegration/imaging"
	"github.com/google/go-cmp/cmp"
	"github.com/klauspost/compress/zip"
)

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd(config.Settings{MaxImageWidth: config.DefaultMaxImageWidth})
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestIngestCommand(t *testing.T) {
	dir := t.TempDir()
	csvPath := writeFile(t, dir, "vehicles.csv", "brand,model,year,reliability\nAudi,A3,2020,4\nBMW,X5,2021,2\n")

	out, _, err := run(t, "ingest", "--csv", csvPath)
	if err != nil {
		t.Fatalf("ingest error: %v", err)
	}
	want := "[\n  {\n    \"brand\": \"Audi\",\n    \"model\": \"A3\",\n    \"year\": \"2020\"\n  }\n]\n"
	if diff := cmp.Diff(want, out); diff != "" {
		t.Fatalf("ingest output mismatch (-want +got):\n%s", diff)
	}

	if _, _, err := run(t, "ingest", "--csv", csvPath, "--url", "https://example.com/v.csv"); err == nil {
		t.Fatalf("expected an error for both --csv and --url")
	}
}

func TestMergeCommand(t *testing.T) {
	dir := t.TempDir()
	baseline := writeFile(t, dir, "old.json", `[
		{"brand":"Audi","model":"A3","year":"2020","imageUrl":"https://old/a3.png"},
		{"brand":"Kia","model":"EV6","year":"2022","imageUrl":"https://old/ev6.png"}
	]`)
	overrides := writeFile(t, dir, "new.json", `[
		{"brand":"Kia","model":"EV6","year":"2022","imageUrl":"https://new/ev6.png"},
		{"brand":"BMW","model":"X5","year":"2021","imageUrl":"https://new/x5.png"}
	]`)

	out, _, err := run(t, "merge", "--baseline", baseline, "--overrides", overrides)
	if err != nil {
		t.Fatalf("merge error: %v", err)
	}
	for _, want := range []string{"https://old/a3.png", "https://new/ev6.png", "https://new/x5.png"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %s in merged output:\n%s", want, out)
		}
	}
	if strings.Contains(out, "https://old/ev6.png") {
		t.Fatalf("override must replace the baseline url")
	}
	if strings.Index(out, "EV6") > strings.Index(out, "X5") {
		t.Fatalf("replaced entries keep their baseline position")
	}

	bad := writeFile(t, dir, "bad.json", `{"brand":"Audi"}`)
	if _, _, err := run(t, "merge", "--baseline", bad, "--overrides", overrides); err == nil {
		t.Fatalf("expected an error for a non-array baseline")
	}
}

func TestExportZipCommand(t *testing.T) {
	var png bytes.Buffer
	if err := imaging.Encode(&png, imaging.New(900, 300, color.NRGBA{R: 10, A: 255}), imaging.PNG); err != nil {
		t.Fatalf("encode: %v", err)
	}
	dataURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(png.Bytes())

	dir := t.TempDir()
	manifest := writeFile(t, dir, "VehicleImages.json",
		`[{"brand":"Land Rover","model":"Defender","year":"2020","imageUrl":"`+dataURL+`"}]`)
	outPath := filepath.Join(dir, "out.zip")

	out, progress, err := run(t, "export-zip", "--manifest", manifest, "--out", outPath)
	if err != nil {
		t.Fatalf("export-zip error: %v", err)
	}
	if progress != "progress 100%\n" || !strings.Contains(out, "1 images") {
		t.Fatalf("unexpected output %q / %q", out, progress)
	}

	zr, err := zip.OpenReader(outPath)
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	defer zr.Close()
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	want := []string{"VehicleImages/", "VehicleImages/land_rover/", "VehicleImages/land_rover/defender.png"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Fatalf("archive entries mismatch (-want +got):\n%s", diff)
	}

	broken := writeFile(t, dir, "broken.json", `[{"brand":"Audi","model":"A3","year":"2020","imageUrl":"data:image/png;base64"}]`)
	failedOut := filepath.Join(dir, "failed.zip")
	if _, _, err := run(t, "export-zip", "--manifest", broken, "--out", failedOut); err == nil {
		t.Fatalf("expected export to fail")
	}
	if _, err := os.Stat(failedOut); !os.IsNotExist(err) {
		t.Fatalf("a failed export must not leave an archive, stat err=%v", err)
	}
}
