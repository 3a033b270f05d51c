package pgembed

import (
	"context"
	"testing"

	"github.com/pgembed/pgembed/archive"
)

func TestAvailableExtensionsListsShippedNamespaces(t *testing.T) {
	s := testSettings(t)
	p := NewPostgres(s)

	exts, err := p.AvailableExtensions(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	namespaces := map[string]bool{}
	for _, e := range exts {
		namespaces[e.Namespace] = true
	}
	for _, ns := range []string{"tensor-chord", "portal-corp", "steampipe"} {
		if !namespaces[ns] {
			t.Errorf("AvailableExtensions() missing namespace %q, got %v", ns, exts)
		}
	}
}

func TestInstalledExtensionsOnFreshInstallationIsEmpty(t *testing.T) {
	s := testSettings(t)
	p := NewPostgres(s)

	installed, err := p.InstalledExtensions()
	if err != nil {
		t.Fatal(err)
	}
	if len(installed) != 0 {
		t.Errorf("InstalledExtensions() = %v, want none before anything is installed", installed)
	}
}

func TestUninstallExtensionNotFound(t *testing.T) {
	s := testSettings(t)
	p := NewPostgres(s)

	err := p.UninstallExtension("portal-corp", "pgvector_compiled")
	if err == nil {
		t.Fatal("expected an error uninstalling an extension that was never installed")
	}
}

func TestPostgresqlVersionFallsBackToPGVersionMarker(t *testing.T) {
	s := testSettings(t)
	p := NewPostgres(s)
	p.installedVersion = archive.Version{}

	if got := p.postgresqlVersion(); got != "" {
		t.Errorf("postgresqlVersion() = %q, want empty with no installation present", got)
	}
}
