// Package extract implements the three archive formats this module
// supports — tar+gzip, tar+xz, and zip — behind the uniform
// archive.Extractor contract, plus the Zonky double-unwrap variant.
//
// Each extractor is built on top of github.com/mholt/archiver's
// format-agnostic Reader interface (Open/Read/Close over an io.Reader),
// driving an ExtractDirectories-aware placement loop rather than
// unarchiving everything into a single destination directory.
package extract

import (
	"archive/tar"
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/klauspost/compress/zip"
	"github.com/mholt/archiver/v3"
	"kr.dev/errorfmt"

	"github.com/pgembed/pgembed/archive"
)

// entryInfo is the format-independent view of one archive member the
// extraction loop needs; formatEntry adapts an archiver.File's
// format-specific Header into one of these.
type entryInfo struct {
	name     string
	mode     fs.FileMode
	isDir    bool
	isReg    bool
	isSymlnk bool
	linkname string
}

func formatEntry(f archiver.File) (entryInfo, bool) {
	switch h := f.Header.(type) {
	case *tar.Header:
		return entryInfo{
			name:     h.Name,
			mode:     h.FileInfo().Mode(),
			isDir:    h.Typeflag == tar.TypeDir,
			isReg:    h.Typeflag == tar.TypeReg || h.Typeflag == tar.TypeRegA,
			isSymlnk: h.Typeflag == tar.TypeSymlink,
			linkname: h.Linkname,
		}, true
	case zip.FileHeader:
		return entryInfo{
			name:  h.Name,
			mode:  h.Mode(),
			isDir: strings.HasSuffix(h.Name, "/"),
			isReg: !strings.HasSuffix(h.Name, "/"),
		}, true
	default:
		return entryInfo{}, false
	}
}

// splitPrefix splits name into its leading component and the remainder:
// the first path component for a nested (tar) entry, or the file basename
// for a flat (zip) entry. Both cases fall out of splitting on the first
// "/": if there is none, prefix and remainder are both the whole (flat)
// name.
func splitPrefix(name string) (prefix, remainder string) {
	name = strings.TrimPrefix(name, "./")
	if idx := strings.IndexByte(name, '/'); idx >= 0 {
		return name[:idx], name[idx+1:]
	}
	return name, name
}

// safeJoin joins dir and remainder, rejecting any remainder that would
// escape dir via ".." traversal.
func safeJoin(dir, remainder string) (string, error) {
	cleaned := filepath.Clean(remainder)
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") || strings.HasPrefix(cleaned, string(filepath.Separator)+"..") {
		return "", fmt.Errorf("extract: entry %q escapes destination directory", remainder)
	}
	full := filepath.Join(dir, cleaned)
	if !strings.HasPrefix(full, filepath.Clean(dir)+string(filepath.Separator)) && full != filepath.Clean(dir) {
		return "", fmt.Errorf("extract: entry %q escapes destination directory", remainder)
	}
	return full, nil
}

// run drives the common extraction loop over any archiver.Reader-shaped
// format: split each entry's path, route its prefix through dirs, and
// stream matching regular files (and symlinks, on Unix) into place.
func run(ctx context.Context, newReader func() archiver.Reader, data []byte, dirs archive.ExtractDirectories) (written []string, err error) {
	defer errorfmt.Handlef("extract: %w", &err)

	rdr := newReader()
	if err := rdr.Open(bytes.NewReader(data), int64(len(data))); err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer rdr.Close()

	var bytesWritten int64
	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}

		f, err := rdr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return written, fmt.Errorf("read entry: %w", err)
		}

		info, ok := formatEntry(f)
		if !ok {
			f.Close()
			continue
		}

		prefix, remainder := splitPrefix(info.name)
		destDir, matched := dirs.Lookup(prefix)
		if !matched {
			f.Close()
			continue
		}

		dest, err := safeJoin(destDir, remainder)
		if err != nil {
			f.Close()
			return written, err
		}

		switch {
		case info.isDir:
			err = os.MkdirAll(dest, 0o755)
		case info.isSymlnk && runtime.GOOS != "windows":
			if mkErr := os.MkdirAll(filepath.Dir(dest), 0o755); mkErr != nil {
				err = mkErr
				break
			}
			_ = os.Remove(dest) // duplicate entries overwrite; last wins
			err = os.Symlink(info.linkname, dest)
		case info.isReg:
			if mkErr := os.MkdirAll(filepath.Dir(dest), 0o755); mkErr != nil {
				err = mkErr
				break
			}
			var n int64
			n, err = writeFile(dest, f, info.mode)
			if err == nil {
				bytesWritten += n
				written = append(written, dest)
			}
		}
		f.Close()
		if err != nil {
			return written, fmt.Errorf("write %s: %w", dest, err)
		}
	}

	return written, nil
}

func writeFile(dest string, r io.Reader, mode fs.FileMode) (int64, error) {
	if mode == 0 {
		mode = 0o644
	}
	out, err := os.OpenFile(dest, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
	if err != nil {
		return 0, err
	}
	defer out.Close()
	n, err := io.Copy(out, r)
	if err != nil {
		return n, err
	}
	if runtime.GOOS != "windows" {
		if err := out.Chmod(mode); err != nil {
			return n, err
		}
	}
	return n, nil
}
