package repository

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"strings"

	"github.com/pgembed/pgembed/archive"
)

// Zonky is a specialization of Maven whose artifact id encodes the current
// OS and architecture (embedded-postgres-binaries-{os}-{arch}), publishing
// under io.zonky.test.postgres on Maven Central. The asset it downloads is
// a zip (conventionally named ".jar") that the extract.Zonky extractor
// unwraps in a second step; this repository only resolves the version and
// downloads the outer jar's bytes.
type Zonky struct {
	HTTPClient *http.Client
	// OS and Arch default to the zonky-specific aliases for the running
	// platform (darwin stays "darwin"; amd64 stays "amd64"; arm64 becomes
	// "arm64v8"), matching match.Zonky's naming.
	OS, Arch string
}

func (z *Zonky) Name() string { return "zonky" }

func (z *Zonky) os() string {
	if z.OS != "" {
		return z.OS
	}
	return runtime.GOOS
}

func (z *Zonky) arch() string {
	if z.Arch != "" {
		return z.Arch
	}
	switch runtime.GOARCH {
	case "arm64":
		return "arm64v8"
	default:
		return runtime.GOARCH
	}
}

func (z *Zonky) maven() *Maven {
	return &Maven{
		HTTPClient: z.HTTPClient,
		GroupPath:  "io/zonky/test/postgres",
		ArtifactID: fmt.Sprintf("embedded-postgres-binaries-%s-%s", z.os(), z.arch()),
		Extension:  "jar",
	}
}

// mavenBase strips the zonky coordinate path from base when base carries
// it (as DefaultReleasesURL does), since Maven appends GroupPath itself.
func (z *Zonky) mavenBase(base string) string {
	return strings.TrimSuffix(strings.TrimRight(base, "/"), "/"+z.maven().GroupPath)
}

func (z *Zonky) GetVersion(ctx context.Context, base string, req archive.VersionRequirement) (archive.Version, error) {
	return z.maven().GetVersion(ctx, z.mavenBase(base), req)
}

func (z *Zonky) GetArchive(ctx context.Context, base string, req archive.VersionRequirement) (archive.Archive, error) {
	return z.maven().GetArchive(ctx, z.mavenBase(base), req)
}

// DefaultReleasesURL is the conventional releases URL for the Zonky
// repository: Maven Central with the zonky coordinate path baked in, so
// that match.RegisterDefaults/extract.RegisterDefaults's isZonkyURL
// predicate recognizes it.
const DefaultReleasesURL = "https://repo1.maven.org/maven2/io/zonky/test/postgres"
