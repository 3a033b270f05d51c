package extract

import (
	"context"

	"github.com/mholt/archiver/v3"

	"github.com/pgembed/pgembed/archive"
)

// TarGz extracts .tar.gz archives, the format GitHub release assets and
// Theseus-style custom repositories publish.
type TarGz struct{}

func (TarGz) Extract(ctx context.Context, data []byte, dirs archive.ExtractDirectories) ([]string, error) {
	return run(ctx, func() archiver.Reader { return archiver.NewTarGz() }, data, dirs)
}
