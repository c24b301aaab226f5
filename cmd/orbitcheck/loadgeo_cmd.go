package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/guillemso1er/orbitcheck-sub001/pkg/store"
)

// runLoadGeoCmd imports the reference data the address validator checks
// against: country bounding boxes and the GeoNames postal dump.
func runLoadGeoCmd(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("load-geo", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var boundsPath, postalPath string
	fs.StringVar(&boundsPath, "bounds", "", "CSV of country_code,min_lat,max_lat,min_lng,max_lng")
	fs.StringVar(&postalPath, "postal", "", "GeoNames postal code dump (tab-separated)")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if boundsPath == "" && postalPath == "" {
		fmt.Fprintln(stderr, "Error: at least one of --bounds or --postal is required")
		fs.Usage()
		return 2
	}

	ctx := context.Background()
	_, db, err := openConfigured(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "load-geo: %v\n", err)
		return 1
	}
	defer func() { _ = db.Close() }()

	ref := store.NewReferenceStore(db)

	if boundsPath != "" {
		n, err := importFile(ctx, boundsPath, ref.ImportCountryBounds)
		if err != nil {
			fmt.Fprintf(stderr, "load-geo: bounds: %v\n", err)
			return 1
		}
		fmt.Fprintf(stdout, "imported %d country bounding boxes\n", n)
	}
	if postalPath != "" {
		n, err := importFile(ctx, postalPath, ref.ImportGeonamesPostal)
		if err != nil {
			fmt.Fprintf(stderr, "load-geo: postal: %v\n", err)
			return 1
		}
		fmt.Fprintf(stdout, "imported %d postal reference rows\n", n)
	}
	return 0
}

func importFile(ctx context.Context, path string, load func(context.Context, io.Reader) (int, error)) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer func() { _ = f.Close() }()
	return load(ctx, f)
}
