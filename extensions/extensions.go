// Package extensions installs native PostgreSQL extensions: it enumerates
// extensions available from a pluggable set of per-namespace
// repositories, and installs/uninstalls them into a PostgreSQL
// installation's library and extension directories, tracking what was
// placed in a JSON manifest sidecar per (namespace, name).
//
// The shipped repository kinds (tensor-chord, portal-corp, steampipe)
// live in the extensions/repository subpackage.
package extensions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/pgembed/pgembed/archive"
)

// Sentinel errors, matched with errors.Is.
var (
	ErrUnsupportedNamespace = errors.New("extensions: unsupported namespace")
	ErrExtensionNotFound    = errors.New("extensions: extension not found")
)

// AvailableExtension describes one installable extension as published by a
// repository.
type AvailableExtension struct {
	Namespace   string
	Name        string
	Description string
}

// InstalledExtension describes one extension already placed into an
// installation, as recorded in its manifest sidecar.
type InstalledExtension struct {
	Namespace string
	Name      string
	Version   string
	Files     []string
}

// Repository is an abstract source of extensions for one namespace. Each
// shipped repository kind (tensor-chord, portal-corp, steampipe) in the
// extensions/repository package implements this.
type Repository interface {
	// Name is the namespace this repository serves, e.g. "tensor-chord".
	Name() string
	// GetAvailableExtensions lists the extensions this repository
	// publishes.
	GetAvailableExtensions(ctx context.Context) ([]AvailableExtension, error)
	// GetArchive resolves req against the extension named name, for the
	// given PostgreSQL major.minor version (embedded by the repository
	// into the query it issues), and downloads the matching archive.
	GetArchive(ctx context.Context, postgresqlVersion, name string, req archive.VersionRequirement) (archive.Version, []byte, error)
	// Install places archive's files under libDir (shared libraries) and
	// extensionDir (control/SQL files), and returns every path written.
	Install(name, libDir, extensionDir string, data []byte) ([]string, error)
}

// DefaultExtractDirectories is the two-mapping layout every shipped
// repository uses: library files go to libDir, control/SQL files go to
// extensionDir.
func DefaultExtractDirectories(libDir, extensionDir string) archive.ExtractDirectories {
	return archive.ExtractDirectories{
		{Pattern: `\.(so|dylib|dll)$`, Destination: libDir},
		{Pattern: `\.(control|sql)$`, Destination: extensionDir},
	}
}

// Registry maps a namespace to the Repository that serves it. The zero
// value is ready to use.
type Registry struct {
	mu    sync.Mutex
	repos map[string]Repository
	order []string
}

// Register adds repo under namespace, replacing any prior registration
// for the same namespace.
func (r *Registry) Register(namespace string, repo Repository) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.repos == nil {
		r.repos = map[string]Repository{}
	}
	if _, exists := r.repos[namespace]; !exists {
		r.order = append(r.order, namespace)
	}
	r.repos[namespace] = repo
}

// Repository returns the repository registered for namespace.
func (r *Registry) Repository(namespace string) (Repository, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	repo, ok := r.repos[namespace]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedNamespace, namespace)
	}
	return repo, nil
}

// All returns every registered repository, in registration order.
func (r *Registry) All() []Repository {
	r.mu.Lock()
	defer r.mu.Unlock()
	repos := make([]Repository, 0, len(r.order))
	for _, ns := range r.order {
		repos = append(repos, r.repos[ns])
	}
	return repos
}

// Default is the process-wide registry, populated by
// extensions/repository.RegisterDefaults from the pgembed package's init.
var Default = &Registry{}

// GetAvailableExtensions is the union of every registered repository's
// enumeration, fetched concurrently.
func GetAvailableExtensions(ctx context.Context, reg *Registry) ([]AvailableExtension, error) {
	repos := reg.All()
	results := make([][]AvailableExtension, len(repos))

	g, ctx := errgroup.WithContext(ctx)
	for i, repo := range repos {
		i, repo := i, repo
		g.Go(func() error {
			exts, err := repo.GetAvailableExtensions(ctx)
			if err != nil {
				return fmt.Errorf("%s: %w", repo.Name(), err)
			}
			results[i] = exts
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []AvailableExtension
	for _, exts := range results {
		all = append(all, exts...)
	}
	return all, nil
}

func manifestPath(extensionDir, namespace, name string) string {
	return filepath.Join(extensionDir, fmt.Sprintf("%s-%s.json", namespace, name))
}

// GetInstalledExtensions reads every manifest sidecar under extensionDir.
func GetInstalledExtensions(extensionDir string) ([]InstalledExtension, error) {
	entries, err := os.ReadDir(extensionDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("extensions: list %s: %w", extensionDir, err)
	}

	var installed []InstalledExtension
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		b, err := os.ReadFile(filepath.Join(extensionDir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("extensions: read %s: %w", e.Name(), err)
		}
		var ie InstalledExtension
		if err := json.Unmarshal(b, &ie); err != nil {
			return nil, fmt.Errorf("extensions: decode %s: %w", e.Name(), err)
		}
		installed = append(installed, ie)
	}
	sort.Slice(installed, func(i, j int) bool {
		if installed[i].Namespace != installed[j].Namespace {
			return installed[i].Namespace < installed[j].Namespace
		}
		return installed[i].Name < installed[j].Name
	})
	return installed, nil
}

// Install resolves (namespace, name, req) against the registered
// repository, downloads its archive, places files under libDir and
// extensionDir, and writes a manifest sidecar. The manifest write is
// transactional with respect to install success: it is only written after
// every file has been placed, and it is written via a temp-file rename so
// a crash mid-write never leaves a half-written manifest.
func Install(ctx context.Context, reg *Registry, postgresqlVersion, libDir, extensionDir, namespace, name string, req archive.VersionRequirement) (InstalledExtension, error) {
	repo, err := reg.Repository(namespace)
	if err != nil {
		return InstalledExtension{}, err
	}

	version, data, err := repo.GetArchive(ctx, postgresqlVersion, name, req)
	if err != nil {
		return InstalledExtension{}, fmt.Errorf("%w: %s/%s: %v", ErrExtensionNotFound, namespace, name, err)
	}

	if err := os.MkdirAll(libDir, 0o755); err != nil {
		return InstalledExtension{}, err
	}
	if err := os.MkdirAll(extensionDir, 0o755); err != nil {
		return InstalledExtension{}, err
	}

	files, err := repo.Install(name, libDir, extensionDir, data)
	if err != nil {
		return InstalledExtension{}, err
	}

	ie := InstalledExtension{Namespace: namespace, Name: name, Version: version.String(), Files: files}
	if err := writeManifest(extensionDir, ie); err != nil {
		return InstalledExtension{}, err
	}
	return ie, nil
}

func writeManifest(extensionDir string, ie InstalledExtension) error {
	b, err := json.MarshalIndent(ie, "", "  ")
	if err != nil {
		return err
	}
	final := manifestPath(extensionDir, ie.Namespace, ie.Name)
	tmp := final + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, final)
}

// Uninstall reads the manifest for (namespace, name), deletes every file
// it lists (tolerating files already missing), then deletes the manifest
// itself.
func Uninstall(extensionDir, namespace, name string) error {
	path := manifestPath(extensionDir, namespace, name)
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return fmt.Errorf("%w: %s/%s", ErrExtensionNotFound, namespace, name)
	}
	if err != nil {
		return err
	}

	var ie InstalledExtension
	if err := json.Unmarshal(b, &ie); err != nil {
		return fmt.Errorf("extensions: decode manifest %s: %w", path, err)
	}

	for _, f := range ie.Files {
		if err := os.Remove(f); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("extensions: remove %s: %w", f, err)
		}
	}
	return os.Remove(path)
}
