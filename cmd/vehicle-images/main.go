// vehicle-images runs the curation pipeline without the HTTP server: load a
// vehicle list, merge manifests and build the image archive.
//
// Usage (from backend directory):
//
//	go run ./cmd/vehicle-images ingest --csv vehicles.csv
//	go run ./cmd/vehicle-images ingest --url https://example.com/vehicles.csv
//	go run ./cmd/vehicle-images merge --baseline old.json --overrides new.json > VehicleImages.json
//	go run ./cmd/vehicle-images export-zip --manifest VehicleImages.json --out vehicle_images.zip
//
// Env is read the same way as the server (PROXY_URL, IMAGE_PROXY_URL, MAX_IMAGE_WIDTH, ...).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ChrissHeIs/electricco-vehicle-image-manager/config"
	"github.com/spf13/cobra"
)

func newRootCmd(settings config.Settings) *cobra.Command {
	root := &cobra.Command{
		Use:           "vehicle-images",
		Short:         "Curate vehicle images from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newIngestCmd(settings),
		newMergeCmd(),
		newExportZipCmd(settings),
	)
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(config.Load()).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
