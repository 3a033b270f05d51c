package extract

import (
	"strings"

	"github.com/pgembed/pgembed/archive"
)

// RegisterDefaults registers TarGz, TarXz, Zip, and Zonky into r, keyed on
// the same URL shapes match.RegisterDefaults uses for matchers: GitHub
// releases get tar.gz, the Zonky Maven coordinate gets the jar/double-unwrap
// variant, and a generic Maven asset path falls back on the extension it
// names.
func RegisterDefaults(r *archive.Registries) error {
	if err := r.RegisterExtractor(isZonkyURL, Zonky{}); err != nil {
		return err
	}
	if err := r.RegisterExtractor(hasSuffix(".zip"), Zip{}); err != nil {
		return err
	}
	if err := r.RegisterExtractor(hasSuffix(".tar.xz"), TarXz{}); err != nil {
		return err
	}
	// Default: GitHub and everything else ships tar.gz.
	if err := r.RegisterExtractor(func(string) bool { return true }, TarGz{}); err != nil {
		return err
	}
	return nil
}

func isZonkyURL(u string) bool {
	return strings.Contains(u, "io/zonky/test/postgres")
}

func hasSuffix(suffix string) func(string) bool {
	return func(u string) bool { return strings.HasSuffix(u, suffix) }
}
