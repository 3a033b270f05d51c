package extract

import (
	"context"

	"github.com/mholt/archiver/v3"

	"github.com/pgembed/pgembed/archive"
)

// TarXz extracts .tar.xz archives, the format the inner payload of a Zonky
// jar uses once unwrapped.
type TarXz struct{}

func (TarXz) Extract(ctx context.Context, data []byte, dirs archive.ExtractDirectories) ([]string, error) {
	return run(ctx, func() archiver.Reader { return archiver.NewTarXz() }, data, dirs)
}
