package repository

import (
	"context"
	"fmt"
	"testing"

	"github.com/pgembed/pgembed/archive"
	"github.com/pgembed/pgembed/match"
)

func mustVersion(t *testing.T, s string) archive.Version {
	t.Helper()
	v, err := archive.ParseVersion(s)
	if err != nil {
		t.Fatal(err)
	}
	return v
}

func TestTensorChordMatcherSuccess(t *testing.T) {
	version := mustVersion(t, "0.3.0")
	url := fmt.Sprintf("%s?postgresql_version=16.6", TensorChordURL)
	name := fmt.Sprintf("vectors-pg16_%s_%s.zip", match.TargetTriple(), version)

	if !tensorChordMatcher.Match(url, name, version) {
		t.Errorf("tensorChordMatcher.Match(%q, %q) = false, want true", url, name)
	}
}

func TestTensorChordMatcherInvalidURL(t *testing.T) {
	if tensorChordMatcher.Match("^", "", archive.Version{}) {
		t.Error("expected false for an unparsable url")
	}
}

func TestTensorChordMatcherNoVersionParam(t *testing.T) {
	if tensorChordMatcher.Match(TensorChordURL, "", archive.Version{}) {
		t.Error("expected false when postgresql_version is absent")
	}
}

func TestTensorChordMatcherInvalidVersionParam(t *testing.T) {
	url := TensorChordURL + "?postgresql_version=16"
	if tensorChordMatcher.Match(url, "", archive.Version{}) {
		t.Error("expected false when postgresql_version has no '.'")
	}
}

func TestTensorChordMatcherRejectsNearMisses(t *testing.T) {
	version := mustVersion(t, "0.3.0")
	url := fmt.Sprintf("%s?postgresql_version=16.3", TensorChordURL)
	target := match.TargetTriple()

	names := []string{
		fmt.Sprintf("vectors-pg%s_%s.zip", target, version),
		fmt.Sprintf("vectors-pg16_%s.zip", version),
		fmt.Sprintf("vectors-pg16_%s_%s.tar.gz", target, version),
	}
	for _, name := range names {
		if tensorChordMatcher.Match(url, name, version) {
			t.Errorf("tensorChordMatcher matched unexpected name %q", name)
		}
	}
}

func TestTensorChordGetAvailableExtensions(t *testing.T) {
	tc := &TensorChord{}
	exts, err := tc.GetAvailableExtensions(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(exts) != 1 || exts[0].Name != "pgvecto.rs" {
		t.Errorf("GetAvailableExtensions() = %v, want one pgvecto.rs entry", exts)
	}
	if tc.Name() != "tensor-chord" {
		t.Errorf("Name() = %q, want tensor-chord", tc.Name())
	}
}
