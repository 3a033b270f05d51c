package repository

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pgembed/pgembed/archive"
)

func ghReleasesHandler(t *testing.T) http.HandlerFunc {
	releases := []ghRelease{
		{TagName: "v16.4.0", Assets: []ghAsset{
			{Name: "postgresql-16.4.0-x86_64-linux.tar.gz", BrowserDownloadURL: "/assets/16.4.0-linux"},
			{Name: "postgresql-16.4.0-x86_64-darwin.tar.gz", BrowserDownloadURL: "/assets/16.4.0-darwin"},
		}},
		{TagName: "v16.0.0", Assets: []ghAsset{
			{Name: "postgresql-16.0.0-x86_64-linux.tar.gz", BrowserDownloadURL: "/assets/16.0.0-linux"},
		}},
		{TagName: "v17.0.0-beta1", Prerelease: true, Assets: []ghAsset{
			{Name: "postgresql-17.0.0-beta1-x86_64-linux.tar.gz", BrowserDownloadURL: "/assets/17.0.0-beta1-linux"},
		}},
		{TagName: "v16.9.0", Draft: true},
		{TagName: "v15.1.0", Assets: []ghAsset{
			{Name: "postgresql-15.1.0-x86_64-linux.tar.gz", BrowserDownloadURL: "/assets/15.1.0-linux"},
			{Name: "postgresql-15.1.0-x86_64-linux.tar.gz.sha256", BrowserDownloadURL: "/assets/15.1.0-linux.sha256"},
		}},
		{TagName: "v15.2.0", Assets: []ghAsset{
			{Name: "postgresql-15.2.0-x86_64-linux.tar.gz", BrowserDownloadURL: "/assets/15.2.0-linux"},
			{Name: "postgresql-15.2.0-x86_64-linux.tar.gz.sha256", BrowserDownloadURL: "/assets/15.2.0-linux.sha256"},
		}},
	}
	// checksums maps a sha256 sibling asset's path to the digest it serves,
	// keyed by the data asset's path so the fixture stays next to the bytes
	// it describes. v15.1.0 publishes the correct digest of its own asset body;
	// v15.2.0 publishes a digest that doesn't match, to exercise the mismatch path.
	checksums := map[string]string{
		"/assets/15.1.0-linux.sha256": "76c00bd7fb50cccb12daaabaea8e33f0ed2c2dcc090771797a67cc1e763b999a",
		"/assets/15.2.0-linux.sha256": "0000000000000000000000000000000000000000000000000000000000000000",
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if sum, ok := checksums[r.URL.Path]; ok {
			w.Write([]byte(sum))
			return
		}
		if strings.HasPrefix(r.URL.Path, "/assets/") {
			w.Write([]byte("binary-data:" + r.URL.Path))
			return
		}
		page := r.URL.Query().Get("page")
		if page != "1" && page != "" {
			json.NewEncoder(w).Encode([]ghRelease{})
			return
		}
		if err := json.NewEncoder(w).Encode(releases); err != nil {
			t.Fatal(err)
		}
	}
}

func TestGitHubGetVersion(t *testing.T) {
	srv := httptest.NewServer(ghReleasesHandler(t))
	defer srv.Close()

	g := &GitHub{APIBase: srv.URL}
	v, err := g.GetVersion(context.Background(), "https://github.com/postgres/postgres", archive.AnyVersion)
	if err != nil {
		t.Fatal(err)
	}
	if v.String() != "16.4.0" {
		t.Errorf("GetVersion = %s, want 16.4.0 (drafts/prereleases must be excluded)", v)
	}
}

func TestGitHubGetArchive(t *testing.T) {
	srv := httptest.NewServer(ghReleasesHandler(t))
	defer srv.Close()

	matcher := archive.MatcherFunc(func(releasesURL, assetName string, v archive.Version) bool {
		return strings.Contains(assetName, "linux")
	})
	g := &GitHub{APIBase: srv.URL, Matcher: matcher}

	a, err := g.GetArchive(context.Background(), "https://github.com/postgres/postgres", archive.AnyVersion)
	if err != nil {
		t.Fatal(err)
	}
	if a.Name != "postgresql-16.4.0-x86_64-linux.tar.gz" {
		t.Errorf("GetArchive picked %s, want the linux asset", a.Name)
	}
	if string(a.Bytes) != "binary-data:/assets/16.4.0-linux" {
		t.Errorf("unexpected archive bytes: %q", a.Bytes)
	}
}

func TestGitHubGetArchiveUsesRegistriesMatcher(t *testing.T) {
	srv := httptest.NewServer(ghReleasesHandler(t))
	defer srv.Close()

	r := archive.NewRegistries()
	if err := r.RegisterMatcher(func(string) bool { return true }, archive.MatcherFunc(func(releasesURL, assetName string, v archive.Version) bool {
		return strings.Contains(assetName, "darwin")
	})); err != nil {
		t.Fatal(err)
	}

	g := &GitHub{APIBase: srv.URL, Registries: r}
	a, err := g.GetArchive(context.Background(), "https://github.com/postgres/postgres", archive.AnyVersion)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(a.Name, "darwin") {
		t.Errorf("GetArchive = %s, want a darwin asset via the registered matcher", a.Name)
	}
}

func TestGitHubGetArchiveVerifiesChecksumWhenSiblingAssetPresent(t *testing.T) {
	srv := httptest.NewServer(ghReleasesHandler(t))
	defer srv.Close()

	matcher := archive.MatcherFunc(func(releasesURL, assetName string, v archive.Version) bool {
		return assetName == "postgresql-15.1.0-x86_64-linux.tar.gz"
	})
	g := &GitHub{APIBase: srv.URL, Matcher: matcher}

	a, err := g.GetArchive(context.Background(), "https://github.com/postgres/postgres", archive.MustParseVersionRequirement("15.1.0"))
	if err != nil {
		t.Fatal(err)
	}
	if string(a.Bytes) != "binary-data:/assets/15.1.0-linux" {
		t.Errorf("unexpected archive bytes: %q", a.Bytes)
	}
}

func TestGitHubGetArchiveRejectsMismatchedChecksum(t *testing.T) {
	srv := httptest.NewServer(ghReleasesHandler(t))
	defer srv.Close()

	matcher := archive.MatcherFunc(func(releasesURL, assetName string, v archive.Version) bool {
		return assetName == "postgresql-15.2.0-x86_64-linux.tar.gz"
	})
	g := &GitHub{APIBase: srv.URL, Matcher: matcher}

	_, err := g.GetArchive(context.Background(), "https://github.com/postgres/postgres", archive.MustParseVersionRequirement("15.2.0"))
	if !errors.Is(err, archive.ErrDigestMismatch) {
		t.Fatalf("GetArchive() error = %v, want ErrDigestMismatch", err)
	}
}

func TestOwnerRepo(t *testing.T) {
	got, err := ownerRepo("https://github.com/postgres/postgres")
	if err != nil {
		t.Fatal(err)
	}
	if got != "postgres/postgres" {
		t.Errorf("ownerRepo = %s, want postgres/postgres", got)
	}

	if _, err := ownerRepo("https://example.com/not-github"); err == nil {
		t.Error("expected error for non-github.com URL")
	}
}
