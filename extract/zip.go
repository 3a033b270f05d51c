package extract

import (
	"context"

	"github.com/mholt/archiver/v3"

	"github.com/pgembed/pgembed/archive"
)

// Zip extracts plain .zip archives, the format several extension
// repositories publish their shared library/control-file bundles in.
type Zip struct{}

func (Zip) Extract(ctx context.Context, data []byte, dirs archive.ExtractDirectories) ([]string, error) {
	return run(ctx, func() archiver.Reader { return archiver.NewZip() }, data, dirs)
}
