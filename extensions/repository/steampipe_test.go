package repository

import (
	"context"
	"fmt"
	"testing"
)

func TestSteampipeMatcherSuccess(t *testing.T) {
	version := mustVersion(t, "0.12.0")
	name := fmt.Sprintf("steampipe_postgres_csv.pg15.%s_%s.tar.gz", steampipeOS(), steampipeArch())

	if !steampipeMatcher("ignored", name, version) {
		t.Errorf("steampipeMatcher(%q) = false, want true", name)
	}
}

func TestSteampipeMatcherRejectsNearMisses(t *testing.T) {
	version := mustVersion(t, "0.12.0")
	os, arch := steampipeOS(), steampipeArch()

	names := []string{
		fmt.Sprintf("foo_csv.pg15.%s_%s.tar.gz", os, arch),
		fmt.Sprintf("steampipe_postgres_csv.pg.%s_%s.tar.gz", os, arch),
		fmt.Sprintf("steampipe_postgres_csv.pg15.%s.tar.gz", arch),
		fmt.Sprintf("steampipe_postgres_csv.pg15.%s.tar.gz", os),
		fmt.Sprintf("steampipe_postgres_csv.pg15.%s_%s", os, arch),
		fmt.Sprintf("steampipe_postgres_csv.pg15.%s_%s.zip", os, arch),
	}
	for _, name := range names {
		if steampipeMatcher("ignored", name, version) {
			t.Errorf("steampipeMatcher matched unexpected name %q", name)
		}
	}
}

func TestSteampipeGetAvailableExtensions(t *testing.T) {
	sp := &Steampipe{}
	exts, err := sp.GetAvailableExtensions(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(exts) != 1 {
		t.Fatalf("GetAvailableExtensions() = %v, want one entry", exts)
	}
	if sp.Name() != "steampipe" {
		t.Errorf("Name() = %q, want steampipe", sp.Name())
	}
}
