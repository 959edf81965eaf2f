package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ChrissHeIs/electricco-vehicle-image-manager/candidates"
	"github.com/ChrissHeIs/electricco-vehicle-image-manager/config"
	"github.com/ChrissHeIs/electricco-vehicle-image-manager/export"
	"github.com/ChrissHeIs/electricco-vehicle-image-manager/ingest"
	"github.com/ChrissHeIs/electricco-vehicle-image-manager/models"
	"github.com/ChrissHeIs/electricco-vehicle-image-manager/selection"
	"github.com/ChrissHeIs/electricco-vehicle-image-manager/utils"
	"github.com/spf13/cobra"
)

func newIngestCmd(settings config.Settings) *cobra.Command {
	var csvPath, csvURL string
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Print the vehicles that pass the reliability filter as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				list []models.VehicleRecord
				err  error
			)
			switch {
			case csvPath != "" && csvURL != "":
				return errors.New("use either --csv or --url")
			case csvPath != "":
				f, oerr := os.Open(csvPath)
				if oerr != nil {
					return oerr
				}
				defer f.Close()
				list, err = ingest.Parse(filepath.Base(csvPath), f)
			default:
				if csvURL == "" {
					csvURL = settings.CSVURL
				}
				client := utils.NewHTTPClient(settings.HTTPClientTimeout)
				list, err = ingest.FetchCSV(cmd.Context(), client, settings.ProxyURL, csvURL)
			}
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), list)
		},
	}
	cmd.Flags().StringVar(&csvPath, "csv", "", "local .csv or .xlsx file")
	cmd.Flags().StringVar(&csvURL, "url", "", "remote CSV url (defaults to CSV_URL)")
	return cmd
}

func newMergeCmd() *cobra.Command {
	var baselinePath, overridesPath string
	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Layer a new manifest on top of a previously exported one",
		RunE: func(cmd *cobra.Command, args []string) error {
			baseline, err := readManifest(baselinePath)
			if err != nil {
				return fmt.Errorf("baseline: %w", err)
			}
			overrides, err := readManifest(overridesPath)
			if err != nil {
				return fmt.Errorf("overrides: %w", err)
			}
			return export.WriteManifest(cmd.OutOrStdout(), selection.MergeBaseline(baseline, overrides))
		},
	}
	cmd.Flags().StringVar(&baselinePath, "baseline", "", "previously exported VehicleImages.json")
	cmd.Flags().StringVar(&overridesPath, "overrides", "", "manifest whose entries win")
	_ = cmd.MarkFlagRequired("baseline")
	_ = cmd.MarkFlagRequired("overrides")
	return cmd
}

func newExportZipCmd(settings config.Settings) *cobra.Command {
	var manifestPath, outPath string
	var maxWidth int
	cmd := &cobra.Command{
		Use:   "export-zip",
		Short: "Download, resize and package every image of a manifest",
		RunE: func(cmd *cobra.Command, args []string) error {
			pairs, err := readManifest(manifestPath)
			if err != nil {
				return err
			}
			client := utils.NewHTTPClient(settings.HTTPClientTimeout)
			exporter := export.NewZipExporter(export.NewImageFetcher(client, settings.ImageProxyURL), maxWidth, config.GetLogger())

			// Written to a temp file first so a failed run leaves no partial archive.
			tmp, err := os.CreateTemp(filepath.Dir(outPath), ".vehicle_images-*.zip")
			if err != nil {
				return err
			}
			defer os.Remove(tmp.Name())

			out := cmd.ErrOrStderr()
			res, err := exporter.Export(cmd.Context(), pairs, tmp, func(p int) {
				fmt.Fprintf(out, "progress %d%%\n", p)
			})
			if cerr := tmp.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				return err
			}
			if err := os.Rename(tmp.Name(), outPath); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d images, %d bytes)\n", outPath, res.Entries, res.Bytes)
			return nil
		},
	}
	cmd.Flags().StringVar(&manifestPath, "manifest", "", "VehicleImages.json to package")
	cmd.Flags().StringVar(&outPath, "out", export.ZipFileName, "archive path")
	cmd.Flags().IntVar(&maxWidth, "max-width", settings.MaxImageWidth, "images wider than this are scaled down")
	_ = cmd.MarkFlagRequired("manifest")
	return cmd
}

func readManifest(path string) ([]models.VehicleImage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return candidates.ParseManifestFile(filepath.Base(path), data)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
