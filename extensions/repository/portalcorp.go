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

// PortalCorpURL is the releases URL for PortalCorp's precompiled pgvector
// packages.
const PortalCorpURL = "https://github.com/portalcorp/pgvector-binaries"

// PortalCorp serves precompiled OS packages for pgvector, built by
// portalcorp for a specific PostgreSQL major version and target triple.
// Unlike TensorChord, the expected asset name does not embed the resolved
// extension version.
type PortalCorp struct {
	Registries *archive.Registries
}

func (p *PortalCorp) Name() string { return "portal-corp" }

func (p *PortalCorp) registries() *archive.Registries {
	if p.Registries != nil {
		return p.Registries
	}
	return archive.Default
}

func (p *PortalCorp) GetAvailableExtensions(ctx context.Context) ([]extensions.AvailableExtension, error) {
	return []extensions.AvailableExtension{
		{Namespace: p.Name(), Name: "pgvector_compiled", Description: "Precompiled OS packages for pgvector"},
	}, nil
}

func (p *PortalCorp) GetArchive(ctx context.Context, postgresqlVersion, name string, req archive.VersionRequirement) (archive.Version, []byte, error) {
	u := fmt.Sprintf("%s/%s?postgresql_version=%s", PortalCorpURL, name, postgresqlVersion)
	facade := archive.Facade{Registries: p.registries()}
	a, err := facade.GetArchive(ctx, u, req)
	if err != nil {
		return archive.Version{}, nil, err
	}
	return a.Version, a.Bytes, nil
}

func (p *PortalCorp) Install(name, libDir, extensionDir string, data []byte) ([]string, error) {
	return extract.Zip{}.Extract(context.Background(), data, extensions.DefaultExtractDirectories(libDir, extensionDir))
}

// portalCorpMatcher matches pgvector release assets named
// pgvector-{target}-pg{major}.zip. Unlike tensorChordMatcher, the
// extension's own version is not part of the expected name.
var portalCorpMatcher = match.ExtensionMatcher(func(pgMajor, name string, _ archive.Version) bool {
	expected := fmt.Sprintf("pgvector-%s-pg%s.zip", match.TargetTriple(), pgMajor)
	return name == expected
})

func isPortalCorpURL(u string) bool {
	return strings.HasPrefix(u, PortalCorpURL)
}
