package repository

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"

	"kr.dev/errorfmt"

	"github.com/pgembed/pgembed/archive"
)

// mavenMetadata mirrors the subset of maven-metadata.xml this module
// reads:
//
//	<metadata>
//	  <groupId>io.zonky.test.postgres</groupId>
//	  <artifactId>embedded-postgres-binaries-bom</artifactId>
//	  <versioning>
//	    <latest>16.1.0</latest>
//	    <release>16.1.0</release>
//	    <versions><version>16.1.0</version></versions>
//	  </versioning>
//	</metadata>
type mavenMetadata struct {
	GroupID    string `xml:"groupId"`
	ArtifactID string `xml:"artifactId"`
	Versioning struct {
		Latest   string   `xml:"latest"`
		Release  string   `xml:"release"`
		Versions []string `xml:"versions>version"`
	} `xml:"versioning"`
}

// Maven resolves releases from a group/artifact's maven-metadata.xml and
// downloads assets from Maven Central's predictable layout:
// {base}/{group}/{artifact}/{version}/{artifact}-{version}.{ext}.
type Maven struct {
	HTTPClient *http.Client
	// GroupPath is the Maven group id with dots replaced by slashes, e.g.
	// "io/zonky/test/postgres".
	GroupPath string
	// ArtifactID is the artifact id, e.g. "embedded-postgres-binaries-bom".
	ArtifactID string
	// Extension is the asset file extension, without a leading dot
	// (defaults to "jar").
	Extension string
}

func (m *Maven) Name() string { return "maven" }

func (m *Maven) client() *http.Client {
	if m.HTTPClient != nil {
		return m.HTTPClient
	}
	return http.DefaultClient
}

func (m *Maven) extension() string {
	if m.Extension != "" {
		return m.Extension
	}
	return "jar"
}

// metadataURL builds the maven-metadata.xml URL for base, e.g.
// "https://repo1.maven.org/maven2".
func (m *Maven) metadataURL(base string) string {
	base = strings.TrimRight(base, "/")
	return fmt.Sprintf("%s/%s/%s/maven-metadata.xml", base, m.GroupPath, m.ArtifactID)
}

func (m *Maven) fetchMetadata(ctx context.Context, base string) (meta mavenMetadata, err error) {
	defer errorfmt.Handlef("maven: fetch metadata: %w", &err)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.metadataURL(base), nil)
	if err != nil {
		return meta, err
	}
	res, err := m.client().Do(req)
	if err != nil {
		return meta, fmt.Errorf("%w: %v", archive.ErrReleaseFetchFailed, err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return meta, fmt.Errorf("%w: unexpected status %s", archive.ErrReleaseFetchFailed, res.Status)
	}

	dec := xml.NewDecoder(res.Body)
	if err := dec.Decode(&meta); err != nil {
		return meta, fmt.Errorf("%w: decode maven-metadata.xml: %v", archive.ErrReleaseFetchFailed, err)
	}
	return meta, nil
}

func (m *Maven) GetVersion(ctx context.Context, base string, req archive.VersionRequirement) (archive.Version, error) {
	meta, err := m.fetchMetadata(ctx, base)
	if err != nil {
		return archive.Version{}, err
	}

	var versions []archive.Version
	for _, s := range meta.Versioning.Versions {
		v, err := archive.ParseVersion(s)
		if err != nil {
			continue
		}
		versions = append(versions, v)
	}
	best, found := archive.HighestMatching(req, versions)
	if !found {
		return archive.Version{}, fmt.Errorf("%w: %s has no version matching %s", archive.ErrVersionNotFound, m.ArtifactID, req)
	}
	return best, nil
}

// assetURL builds the predictable Maven asset URL for a resolved version.
func (m *Maven) assetURL(base string, version archive.Version) string {
	base = strings.TrimRight(base, "/")
	return fmt.Sprintf("%s/%s/%s/%s/%s-%s.%s", base, m.GroupPath, m.ArtifactID, version, m.ArtifactID, version, m.extension())
}

func (m *Maven) GetArchive(ctx context.Context, base string, req archive.VersionRequirement) (result archive.Archive, err error) {
	defer errorfmt.Handlef("maven: get archive: %w", &err)

	version, err := m.GetVersion(ctx, base, req)
	if err != nil {
		return archive.Archive{}, err
	}

	assetURL := m.assetURL(base, version)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, assetURL, nil)
	if err != nil {
		return archive.Archive{}, err
	}
	res, err := m.client().Do(httpReq)
	if err != nil {
		return archive.Archive{}, fmt.Errorf("%w: %v", archive.ErrReleaseFetchFailed, err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return archive.Archive{}, fmt.Errorf("%w: unexpected status %s fetching %s", archive.ErrReleaseFetchFailed, res.Status, assetURL)
	}

	b, err := io.ReadAll(res.Body)
	if err != nil {
		return archive.Archive{}, fmt.Errorf("%w: %v", archive.ErrReleaseFetchFailed, err)
	}

	name := fmt.Sprintf("%s-%s.%s", m.ArtifactID, version, m.extension())
	return archive.Archive{Name: name, Version: version, Bytes: b}, nil
}
