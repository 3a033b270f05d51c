package extract

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/ulikunitz/xz"
	"kr.dev/errorfmt"

	"github.com/pgembed/pgembed/archive"
)

// Zonky unwraps the double-archived layout Maven Central's
// io.zonky.test.postgres binaries use: the downloaded asset is itself a
// zip (a ".jar" by convention) holding exactly one inner ".tar.xz"
// (".txz") payload that in turn holds the actual PostgreSQL tree.
//
// This is kept as its own Extractor rather than unwrapped inside the
// Zonky repository so the extractor contract stays uniform: a repository
// hands back raw asset bytes, and the extractor registered for its URL
// knows how to turn those bytes into files.
type Zonky struct{}

func (Zonky) Extract(ctx context.Context, data []byte, dirs archive.ExtractDirectories) (written []string, err error) {
	defer errorfmt.Handlef("extract: zonky: %w", &err)

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open outer jar as zip: %w", err)
	}

	var candidates []*zip.File
	for _, f := range zr.File {
		if strings.HasSuffix(f.Name, ".txz") || strings.HasSuffix(f.Name, ".tar.xz") {
			candidates = append(candidates, f)
		}
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("no .txz payload found in jar")
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Name < candidates[j].Name })
	inner := candidates[0]

	rc, err := inner.Open()
	if err != nil {
		return nil, fmt.Errorf("open inner payload %s: %w", inner.Name, err)
	}
	defer rc.Close()

	xr, err := xz.NewReader(rc)
	if err != nil {
		return nil, fmt.Errorf("open xz stream: %w", err)
	}
	tr := tar.NewReader(xr)

	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}

		h, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return written, fmt.Errorf("read inner tar entry: %w", err)
		}

		// The inner tar holds the PostgreSQL tree (bin/, lib/, share/)
		// without a wrapping top-level directory, so each entry keeps its
		// full path under the destination its leading component maps to.
		prefix, _ := splitPrefix(h.Name)
		destDir, matched := dirs.Lookup(prefix)
		if !matched {
			continue
		}
		dest, err := safeJoin(destDir, strings.TrimPrefix(h.Name, "./"))
		if err != nil {
			return written, err
		}

		switch h.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(dest, 0o755); err != nil {
				return written, err
			}
		case tar.TypeReg, tar.TypeRegA:
			if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
				return written, err
			}
			if _, err := writeFile(dest, tr, h.FileInfo().Mode()); err != nil {
				return written, fmt.Errorf("write %s: %w", dest, err)
			}
			written = append(written, dest)
		case tar.TypeSymlink:
			if runtime.GOOS == "windows" {
				continue
			}
			if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
				return written, err
			}
			_ = os.Remove(dest)
			if err := os.Symlink(h.Linkname, dest); err != nil {
				return written, err
			}
		}
	}

	return written, nil
}
