// Package repository implements the release-repository kinds that ship
// with this module: GitHub releases, Maven metadata, and Zonky (a Maven
// specialization). Each type satisfies archive.Repository; RegisterDefaults
// registers GitHub and Zonky into a set of Registries, and Maven is used
// through Zonky rather than registered on its own.
package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"

	"kr.dev/errorfmt"

	"github.com/pgembed/pgembed/archive"
	"github.com/pgembed/pgembed/hash"
)

// GitHub resolves releases through the GitHub Releases REST API. It
// respects the GITHUB_TOKEN environment variable, sending it as a Bearer
// token to avoid anonymous rate limiting.
type GitHub struct {
	// HTTPClient defaults to http.DefaultClient.
	HTTPClient *http.Client
	// Matcher picks the release asset; defaults to the matcher registered
	// in Registries for the repository's URL when Registries is set,
	// otherwise must be set explicitly.
	Matcher archive.Matcher
	// Registries, if set, is consulted for a Matcher when Matcher is nil.
	Registries *archive.Registries
	// APIBase defaults to https://api.github.com; overridable for GitHub
	// Enterprise or tests.
	APIBase string
}

func (g *GitHub) Name() string { return "github" }

func (g *GitHub) client() *http.Client {
	if g.HTTPClient != nil {
		return g.HTTPClient
	}
	return http.DefaultClient
}

func (g *GitHub) apiBase() string {
	if g.APIBase != "" {
		return g.APIBase
	}
	return "https://api.github.com"
}

// ownerRepo extracts "owner/repo" from a https://github.com/{owner}/{repo}
// releases URL.
func ownerRepo(releasesURL string) (string, error) {
	u, err := url.Parse(releasesURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", archive.ErrReleaseFetchFailed, err)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", fmt.Errorf("%w: url %q is not a github.com/{owner}/{repo} url", archive.ErrReleaseFetchFailed, releasesURL)
	}
	return parts[0] + "/" + parts[1], nil
}

type ghRelease struct {
	TagName    string    `json:"tag_name"`
	Draft      bool      `json:"draft"`
	Prerelease bool      `json:"prerelease"`
	Assets     []ghAsset `json:"assets"`
}

type ghAsset struct {
	Name               string `json:"name"`
	BrowserDownloadURL string `json:"browser_download_url"`
}

func (g *GitHub) newRequest(ctx context.Context, reqURL string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if tok := os.Getenv("GITHUB_TOKEN"); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	return req, nil
}

// listReleases paginates GET /repos/{owner}/{repo}/releases, filtering out
// drafts and prereleases.
func (g *GitHub) listReleases(ctx context.Context, releasesURL string) (releases []ghRelease, err error) {
	defer errorfmt.Handlef("github: list releases: %w", &err)

	or, err := ownerRepo(releasesURL)
	if err != nil {
		return nil, err
	}

	const perPage = 100
	for page := 1; ; page++ {
		reqURL := fmt.Sprintf("%s/repos/%s/releases?per_page=%d&page=%d", g.apiBase(), or, perPage, page)
		req, err := g.newRequest(ctx, reqURL)
		if err != nil {
			return nil, err
		}
		res, err := g.client().Do(req)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", archive.ErrReleaseFetchFailed, err)
		}
		body, readErr := io.ReadAll(res.Body)
		res.Body.Close()
		if res.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("%w: unexpected status %s", archive.ErrReleaseFetchFailed, res.Status)
		}
		if readErr != nil {
			return nil, fmt.Errorf("%w: %v", archive.ErrReleaseFetchFailed, readErr)
		}

		var batch []ghRelease
		if err := json.Unmarshal(body, &batch); err != nil {
			return nil, fmt.Errorf("%w: decode releases: %v", archive.ErrReleaseFetchFailed, err)
		}
		if len(batch) == 0 {
			break
		}
		for _, r := range batch {
			if r.Draft || r.Prerelease {
				continue
			}
			releases = append(releases, r)
		}
		if len(batch) < perPage {
			break
		}
	}
	return releases, nil
}

func (g *GitHub) GetVersion(ctx context.Context, releasesURL string, req archive.VersionRequirement) (archive.Version, error) {
	releases, err := g.listReleases(ctx, releasesURL)
	if err != nil {
		return archive.Version{}, err
	}

	var versions []archive.Version
	for _, r := range releases {
		v, err := archive.ParseVersion(strings.TrimPrefix(r.TagName, "v"))
		if err != nil {
			continue
		}
		versions = append(versions, v)
	}
	best, found := archive.HighestMatching(req, versions)
	if !found {
		return archive.Version{}, fmt.Errorf("%w: %s has no release matching %s", archive.ErrVersionNotFound, releasesURL, req)
	}
	return best, nil
}

func (g *GitHub) matcher(releasesURL string) (archive.Matcher, error) {
	if g.Matcher != nil {
		return g.Matcher, nil
	}
	if g.Registries != nil {
		return g.Registries.Matcher(releasesURL)
	}
	return nil, fmt.Errorf("github: no matcher configured for %s", releasesURL)
}

func (g *GitHub) GetArchive(ctx context.Context, releasesURL string, req archive.VersionRequirement) (result archive.Archive, err error) {
	defer errorfmt.Handlef("github: get archive: %w", &err)

	version, err := g.GetVersion(ctx, releasesURL, req)
	if err != nil {
		return archive.Archive{}, err
	}

	releases, err := g.listReleases(ctx, releasesURL)
	if err != nil {
		return archive.Archive{}, err
	}

	m, err := g.matcher(releasesURL)
	if err != nil {
		return archive.Archive{}, err
	}

	for _, r := range releases {
		v, err := archive.ParseVersion(strings.TrimPrefix(r.TagName, "v"))
		if err != nil || v != version {
			continue
		}
		sort.Slice(r.Assets, func(i, j int) bool { return r.Assets[i].Name < r.Assets[j].Name })
		for _, a := range r.Assets {
			if !m.Match(releasesURL, a.Name, version) {
				continue
			}
			b, err := g.download(ctx, a.BrowserDownloadURL)
			if err != nil {
				return archive.Archive{}, err
			}
			if err := g.verifyChecksum(ctx, r.Assets, a.Name, b); err != nil {
				return archive.Archive{}, err
			}
			return archive.Archive{Name: a.Name, Version: version, Bytes: b}, nil
		}
	}
	return archive.Archive{}, fmt.Errorf("%w: no asset in %s matched for version %s", archive.ErrVersionNotFound, releasesURL, version)
}

// verifyChecksum looks for a conventional "{assetName}.sha256" sibling
// asset in the same release and, if present, downloads it and compares its
// hex digest against hash.SHA256Sum(data). Releases that don't publish a
// checksum sibling (most don't) are accepted unverified, since GitHub
// itself doesn't require one.
func (g *GitHub) verifyChecksum(ctx context.Context, siblings []ghAsset, assetName string, data []byte) error {
	want := assetName + ".sha256"
	for _, s := range siblings {
		if s.Name != want {
			continue
		}
		b, err := g.download(ctx, s.BrowserDownloadURL)
		if err != nil {
			return fmt.Errorf("github: download checksum for %s: %w", assetName, err)
		}
		fields := strings.Fields(string(b))
		if len(fields) == 0 {
			return fmt.Errorf("%w: %s: checksum asset %s is empty", archive.ErrDigestMismatch, assetName, want)
		}
		declared := strings.ToLower(fields[0])
		got := hash.SHA256Sum(data)
		if declared != got {
			return fmt.Errorf("%w: %s: declared %s, computed %s", archive.ErrDigestMismatch, assetName, declared, got)
		}
		return nil
	}
	return nil
}

// download fetches assetURL; a relative assetURL is resolved against
// APIBase.
func (g *GitHub) download(ctx context.Context, assetURL string) ([]byte, error) {
	if u, err := url.Parse(assetURL); err == nil && !u.IsAbs() {
		if base, err := url.Parse(g.apiBase()); err == nil {
			assetURL = base.ResolveReference(u).String()
		}
	}
	req, err := g.newRequest(ctx, assetURL)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/octet-stream")
	res, err := g.client().Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", archive.ErrReleaseFetchFailed, err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %s downloading %s", archive.ErrReleaseFetchFailed, res.Status, assetURL)
	}
	b, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", archive.ErrReleaseFetchFailed, err)
	}
	return b, nil
}
