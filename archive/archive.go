// Package archive resolves a version requirement against a pluggable set
// of release repositories, downloads the winning asset, and extracts it
// into a directory layout PostgreSQL understands.
//
// The package itself never imports a concrete matcher, extractor, or
// repository implementation: those live in sibling packages (this
// module's match, extract, and archive/repository packages) and register
// themselves into the registries defined here, the same way database/sql
// drivers register themselves with database/sql without database/sql
// importing any of them.
package archive

import (
	"context"
	"fmt"
)

// Archive is an immutable, fully-resolved release: the asset's file name,
// the Version it was resolved to, and its raw bytes. Bytes are held
// entirely in memory; callers are expected to extract and discard them
// promptly (typical archive size is 20-100 MiB).
type Archive struct {
	Name    string
	Version Version
	Bytes   []byte
}

// ExtractDirectoryMapping is one (pattern, destination) entry in an
// ExtractDirectories list.
type ExtractDirectoryMapping struct {
	// Pattern is matched against an entry's leading path component (tar)
	// or file basename (zip/flat archives). ".*" matches anything.
	Pattern string
	// Destination is the directory entries matching Pattern are extracted
	// under.
	Destination string
}

// ExtractDirectories is an ordered list of mappings. Lookup is first-match:
// given an entry's path, the first mapping whose Pattern matches the
// path's leading component wins.
type ExtractDirectories []ExtractDirectoryMapping

// DefaultExtractDirectories returns the single ".*" -> dir mapping used for
// the plain PostgreSQL binary archive, where every file belongs under one
// output directory regardless of its prefix.
func DefaultExtractDirectories(dir string) ExtractDirectories {
	return ExtractDirectories{{Pattern: ".*", Destination: dir}}
}

// Lookup returns the destination directory for prefix, and whether any
// mapping matched. Patterns are regular expressions, matched against the
// whole prefix (so "\\.so$" requires an anchor of its own if a suffix-only
// match is desired; the shipped patterns in this module anchor themselves).
func (d ExtractDirectories) Lookup(prefix string) (string, bool) {
	for _, m := range d {
		if m.Pattern == ".*" {
			return m.Destination, true
		}
		re, err := regexpCache.compile(m.Pattern)
		if err != nil {
			continue
		}
		if re.MatchString(prefix) {
			return m.Destination, true
		}
	}
	return "", false
}

// Matcher decides whether a candidate asset is the right binary for the
// current platform and a given PostgreSQL version. url is the releases URL
// the matcher is being consulted for, so a matcher (like the extension
// matchers) can parse query parameters such as postgresql_version out of
// it.
type Matcher interface {
	Match(url, assetName string, version Version) bool
}

// MatcherFunc adapts a plain function to the Matcher interface, mirroring
// net/http.HandlerFunc.
type MatcherFunc func(url, assetName string, version Version) bool

func (f MatcherFunc) Match(url, assetName string, version Version) bool {
	return f(url, assetName, version)
}

// Extractor decompresses and unpacks archive bytes into the directories
// named by dirs, and returns the list of regular files it wrote.
type Extractor interface {
	Extract(ctx context.Context, data []byte, dirs ExtractDirectories) ([]string, error)
}

// ExtractorFunc adapts a plain function to the Extractor interface.
type ExtractorFunc func(ctx context.Context, data []byte, dirs ExtractDirectories) ([]string, error)

func (f ExtractorFunc) Extract(ctx context.Context, data []byte, dirs ExtractDirectories) ([]string, error) {
	return f(ctx, data, dirs)
}

// Repository is an abstract source of PostgreSQL releases.
type Repository interface {
	// Name identifies the repository kind for logging/error messages.
	Name() string
	// GetVersion resolves req against the repository's available releases
	// and returns the highest matching Version.
	GetVersion(ctx context.Context, url string, req VersionRequirement) (Version, error)
	// GetArchive resolves req and downloads the matching asset.
	GetArchive(ctx context.Context, url string, req VersionRequirement) (Archive, error)
}

// Facade composes the registries behind the three front-door operations:
// GetVersion, GetArchive, and Extract. The zero value uses the
// process-wide default registries.
type Facade struct {
	Registries *Registries
}

// DefaultFacade is the Facade backed by the process-wide default
// registries populated by RegisterDefaults (see the pgembed package's
// init, which is the composition root for this module).
var DefaultFacade = &Facade{Registries: Default}

func (f *Facade) registries() *Registries {
	if f.Registries != nil {
		return f.Registries
	}
	return Default
}

// GetVersion resolves req against the repository registered for url.
func (f *Facade) GetVersion(ctx context.Context, url string, req VersionRequirement) (Version, error) {
	repo, err := f.registries().Repository(url)
	if err != nil {
		return Version{}, err
	}
	return repo.GetVersion(ctx, url, req)
}

// GetArchive resolves req against the repository registered for url and
// downloads the winning asset.
func (f *Facade) GetArchive(ctx context.Context, url string, req VersionRequirement) (Archive, error) {
	repo, err := f.registries().Repository(url)
	if err != nil {
		return Archive{}, err
	}
	return repo.GetArchive(ctx, url, req)
}

// Extract unpacks data into outDir using the extractor registered for url,
// via a single ".*" -> outDir mapping.
func (f *Facade) Extract(ctx context.Context, url string, data []byte, outDir string) ([]string, error) {
	ex, err := f.registries().Extractor(url)
	if err != nil {
		return nil, err
	}
	files, err := ex.Extract(ctx, data, DefaultExtractDirectories(outDir))
	if err != nil {
		return nil, fmt.Errorf("archive: extract %s: %w", url, err)
	}
	return files, nil
}

// GetVersion is the package-level convenience wrapper around
// DefaultFacade.GetVersion.
func GetVersion(ctx context.Context, url string, req VersionRequirement) (Version, error) {
	return DefaultFacade.GetVersion(ctx, url, req)
}

// GetArchive is the package-level convenience wrapper around
// DefaultFacade.GetArchive.
func GetArchive(ctx context.Context, url string, req VersionRequirement) (Archive, error) {
	return DefaultFacade.GetArchive(ctx, url, req)
}

// Extract is the package-level convenience wrapper around
// DefaultFacade.Extract.
func Extract(ctx context.Context, url string, data []byte, outDir string) ([]string, error) {
	return DefaultFacade.Extract(ctx, url, data, outDir)
}
