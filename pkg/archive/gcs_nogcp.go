//go:build !gcp

package archive

import (
	"context"
	"fmt"
)

func newGCSWriter(_ context.Context, _ Options) (ObjectWriter, error) {
	return nil, fmt.Errorf("archive: gcs backend is not enabled in this build (use -tags gcp)")
}
