package repository

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"github.com/pgembed/pgembed/archive"
	"github.com/pgembed/pgembed/extensions"
	"github.com/pgembed/pgembed/extract"
)

// SteampipeURL is the releases URL steampipe plugins publish their
// PostgreSQL foreign-data-wrapper binaries under.
const SteampipeURL = "https://github.com/turbot/steampipe-plugin-postgres-fdw"

// steampipePostgreSQLMajor is pinned: Steampipe publishes FDW builds per
// PostgreSQL major under fixed names, and 15 is the one this module
// selects. TODO: select the installed PostgreSQL major instead once the
// installer threads it through to the matcher.
const steampipePostgreSQLMajor = "15"

// Steampipe serves the steampipe_postgres_* family of foreign-data-wrapper
// extensions published by turbot.
type Steampipe struct {
	Registries *archive.Registries
}

func (s *Steampipe) Name() string { return "steampipe" }

func (s *Steampipe) registries() *archive.Registries {
	if s.Registries != nil {
		return s.Registries
	}
	return archive.Default
}

func (s *Steampipe) GetAvailableExtensions(ctx context.Context) ([]extensions.AvailableExtension, error) {
	return []extensions.AvailableExtension{
		{Namespace: s.Name(), Name: "steampipe_postgres_csv", Description: "Steampipe foreign-data-wrapper extensions"},
	}, nil
}

func (s *Steampipe) GetArchive(ctx context.Context, postgresqlVersion, name string, req archive.VersionRequirement) (archive.Version, []byte, error) {
	u := fmt.Sprintf("%s/%s?postgresql_version=%s", SteampipeURL, name, postgresqlVersion)
	facade := archive.Facade{Registries: s.registries()}
	a, err := facade.GetArchive(ctx, u, req)
	if err != nil {
		return archive.Version{}, nil, err
	}
	return a.Version, a.Bytes, nil
}

func (s *Steampipe) Install(name, libDir, extensionDir string, data []byte) ([]string, error) {
	return extract.TarGz{}.Extract(context.Background(), data, extensions.DefaultExtractDirectories(libDir, extensionDir))
}

// steampipeMatcher matches assets named steampipe_postgres_*, ending in
// .pg{major}.{os}_{arch}.tar.gz, ignoring both url and the extension's
// own version. OS/arch naming is kept independent from match's aliasing
// tables; Steampipe's release names use their own small, fixed set.
func steampipeMatcher(_, name string, _ archive.Version) bool {
	if !strings.HasPrefix(name, "steampipe_postgres_") {
		return false
	}
	suffix := fmt.Sprintf(".pg%s.%s_%s.tar.gz", steampipePostgreSQLMajor, steampipeOS(), steampipeArch())
	return strings.HasSuffix(name, suffix)
}

func steampipeOS() string {
	if runtime.GOOS == "darwin" {
		return "darwin"
	}
	return "linux"
}

func steampipeArch() string {
	switch runtime.GOARCH {
	case "amd64":
		return "amd64"
	case "arm64":
		return "arm64"
	default:
		return runtime.GOARCH
	}
}

func isSteampipeURL(u string) bool {
	return strings.HasPrefix(u, SteampipeURL)
}
