package extensions

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/pgembed/pgembed/archive"
)

type fakeRepo struct {
	namespace string
	available []AvailableExtension
	archive   []byte
	version   archive.Version
	installed []string
	getErr    error
}

func (f *fakeRepo) Name() string { return f.namespace }

func (f *fakeRepo) GetAvailableExtensions(ctx context.Context) ([]AvailableExtension, error) {
	return f.available, nil
}

func (f *fakeRepo) GetArchive(ctx context.Context, pgVersion, name string, req archive.VersionRequirement) (archive.Version, []byte, error) {
	if f.getErr != nil {
		return archive.Version{}, nil, f.getErr
	}
	return f.version, f.archive, nil
}

func (f *fakeRepo) Install(name, libDir, extensionDir string, data []byte) ([]string, error) {
	path := filepath.Join(extensionDir, name+".control")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, err
	}
	f.installed = append(f.installed, path)
	return []string{path}, nil
}

func TestGetAvailableExtensionsUnionsRepositories(t *testing.T) {
	reg := &Registry{}
	reg.Register("tensor-chord", &fakeRepo{namespace: "tensor-chord", available: []AvailableExtension{
		{Namespace: "tensor-chord", Name: "pgvecto.rs", Description: "vector search"},
	}})
	reg.Register("portal-corp", &fakeRepo{namespace: "portal-corp", available: []AvailableExtension{
		{Namespace: "portal-corp", Name: "pgvector_compiled", Description: "precompiled pgvector"},
	}})

	got, err := GetAvailableExtensions(context.Background(), reg)
	if err != nil {
		t.Fatal(err)
	}
	sort.Slice(got, func(i, j int) bool { return got[i].Namespace < got[j].Namespace })

	want := []AvailableExtension{
		{Namespace: "portal-corp", Name: "pgvector_compiled", Description: "precompiled pgvector"},
		{Namespace: "tensor-chord", Name: "pgvecto.rs", Description: "vector search"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestInstallWritesManifestAndUninstallRemovesFiles(t *testing.T) {
	dir := t.TempDir()
	libDir := filepath.Join(dir, "lib")
	extDir := filepath.Join(dir, "extension")

	reg := &Registry{}
	v, _ := archive.ParseVersion("0.3.0")
	repo := &fakeRepo{namespace: "tensor-chord", version: v, archive: []byte("control file contents")}
	reg.Register("tensor-chord", repo)

	ie, err := Install(context.Background(), reg, "16.4", libDir, extDir, "tensor-chord", "pgvecto_rs", archive.AnyVersion)
	if err != nil {
		t.Fatal(err)
	}
	if ie.Version != "0.3.0" {
		t.Errorf("Version = %s, want 0.3.0", ie.Version)
	}
	if len(ie.Files) != 1 {
		t.Fatalf("Files = %v, want 1 entry", ie.Files)
	}

	manifest := manifestPath(extDir, "tensor-chord", "pgvecto_rs")
	if _, err := os.Stat(manifest); err != nil {
		t.Errorf("manifest not written: %v", err)
	}

	installed, err := GetInstalledExtensions(extDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(installed) != 1 || installed[0].Name != "pgvecto_rs" {
		t.Errorf("GetInstalledExtensions = %v, want one pgvecto_rs entry", installed)
	}

	if err := Uninstall(extDir, "tensor-chord", "pgvecto_rs"); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(manifest); !os.IsNotExist(err) {
		t.Error("manifest should be removed after Uninstall")
	}
	if _, err := os.Stat(ie.Files[0]); !os.IsNotExist(err) {
		t.Error("installed file should be removed after Uninstall")
	}
}

func TestUninstallToleratesMissingFiles(t *testing.T) {
	dir := t.TempDir()
	manifest := manifestPath(dir, "portal-corp", "pgvector")
	if err := writeManifest(dir, InstalledExtension{
		Namespace: "portal-corp",
		Name:      "pgvector",
		Version:   "0.1.0",
		Files:     []string{filepath.Join(dir, "already-gone.so")},
	}); err != nil {
		t.Fatal(err)
	}

	if err := Uninstall(dir, "portal-corp", "pgvector"); err != nil {
		t.Fatalf("Uninstall should tolerate a missing listed file, got %v", err)
	}
	if _, err := os.Stat(manifest); !os.IsNotExist(err) {
		t.Error("manifest should still be removed")
	}
}

func TestInstallUnsupportedNamespace(t *testing.T) {
	reg := &Registry{}
	_, err := Install(context.Background(), reg, "16.4", t.TempDir(), t.TempDir(), "nope", "x", archive.AnyVersion)
	if err == nil {
		t.Fatal("expected ErrUnsupportedNamespace")
	}
}

func TestGetInstalledExtensionsOnMissingDirReturnsEmpty(t *testing.T) {
	installed, err := GetInstalledExtensions(filepath.Join(t.TempDir(), "does-not-exist"))
	if err != nil {
		t.Fatal(err)
	}
	if installed != nil {
		t.Errorf("installed = %v, want nil for a missing directory", installed)
	}
}
