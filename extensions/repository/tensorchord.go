// Package repository implements the three shipped extensions.Repository
// kinds: tensor-chord, portal-corp, and steampipe. All three resolve
// their releases through the shared GitHub archive path, each with a
// namespace-specific matcher registered under its own URL prefix.
package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/pgembed/pgembed/archive"
	"github.com/pgembed/pgembed/extensions"
	"github.com/pgembed/pgembed/extract"
	"github.com/pgembed/pgembed/match"
)

// TensorChordURL is the releases URL for the pgvecto.rs extension.
const TensorChordURL = "https://github.com/tensorchord/pgvecto.rs"

// TensorChord serves the pgvecto.rs vector-search extension, built by
// tensorchord for a specific PostgreSQL major version and target triple.
type TensorChord struct {
	Registries *archive.Registries
}

func (t *TensorChord) Name() string { return "tensor-chord" }

func (t *TensorChord) registries() *archive.Registries {
	if t.Registries != nil {
		return t.Registries
	}
	return archive.Default
}

func (t *TensorChord) GetAvailableExtensions(ctx context.Context) ([]extensions.AvailableExtension, error) {
	return []extensions.AvailableExtension{
		{Namespace: t.Name(), Name: "pgvecto.rs", Description: "Vector search extension built on pgvecto.rs"},
	}, nil
}

func (t *TensorChord) GetArchive(ctx context.Context, postgresqlVersion, name string, req archive.VersionRequirement) (archive.Version, []byte, error) {
	u := fmt.Sprintf("%s/%s?postgresql_version=%s", TensorChordURL, name, postgresqlVersion)
	facade := archive.Facade{Registries: t.registries()}
	a, err := facade.GetArchive(ctx, u, req)
	if err != nil {
		return archive.Version{}, nil, err
	}
	return a.Version, a.Bytes, nil
}

func (t *TensorChord) Install(name, libDir, extensionDir string, data []byte) ([]string, error) {
	return extract.Zip{}.Extract(context.Background(), data, extensions.DefaultExtractDirectories(libDir, extensionDir))
}

// tensorChordMatcher matches pgvecto.rs release assets named
// vectors-pg{major}_{target}_{version}.zip, where {major} comes from the
// url's postgresql_version query parameter and {target} is this process's
// target triple.
var tensorChordMatcher = match.ExtensionMatcher(func(pgMajor, name string, version archive.Version) bool {
	expected := fmt.Sprintf("vectors-pg%s_%s_%s.zip", pgMajor, match.TargetTriple(), version.String())
	return name == expected
})

// isTensorChordURL reports whether u belongs to the TensorChord releases
// namespace.
func isTensorChordURL(u string) bool {
	return strings.HasPrefix(u, TensorChordURL)
}
