// Package match provides the matcher implementations that ship with this
// module: the default target-triple matcher, the Theseus/custom-GitHub
// matcher, and the Zonky-naming matcher. Each implements archive.Matcher
// and is registered into a Registries set by RegisterDefaults.
package match

import (
	"fmt"
	"net/url"
	"regexp"
	"runtime"
	"strings"

	"github.com/pgembed/pgembed/archive"
)

// osAliases maps runtime.GOOS values to the extra tokens an asset name may
// use for the same operating system.
var osAliases = map[string][]string{
	"darwin":  {"darwin", "macos", "osx"},
	"linux":   {"linux"},
	"windows": {"windows", "win"},
}

// archAliases maps runtime.GOARCH values to the extra tokens an asset name
// may use for the same architecture.
var archAliases = map[string][]string{
	"amd64": {"amd64", "x86_64", "x64"},
	"arm64": {"arm64", "aarch64"},
	"386":   {"386", "x86"},
}

func aliasesFor(table map[string][]string, key string) []string {
	if a, ok := table[key]; ok {
		return a
	}
	return []string{key}
}

var nonWord = `[^\p{L}\p{N}_]`

// tokenPresent reports whether token appears in name flanked by non-word
// characters (or the start/end of the string), so that "linux" does not
// match inside "alinuxb" but does match in "postgresql-16.4.0-linux-amd64.tar.gz".
func tokenPresent(name, token string) bool {
	pattern := fmt.Sprintf(`(^|%s)%s(%s|$)`, nonWord, regexp.QuoteMeta(token), nonWord)
	re := regexp.MustCompile(pattern)
	return re.MatchString(strings.ToLower(name))
}

// TargetTriple returns the {arch}-{vendor}-{os} identifier used by the
// Theseus matcher for the currently running platform.
func TargetTriple() string {
	vendor := "unknown"
	osName := runtime.GOOS
	if osName == "darwin" {
		vendor = "apple"
	}
	return fmt.Sprintf("%s-%s-%s", runtime.GOARCH, vendor, osName)
}

// Default accepts *.tar.gz assets whose name contains, as whole tokens, a
// token for the current GOOS and a token for the current GOARCH, honoring
// the alias tables above. It is the matcher registered for unrecognized
// releases URLs that nonetheless serve plain GitHub-style asset names.
func Default() archive.Matcher {
	return archive.MatcherFunc(func(url, assetName string, version archive.Version) bool {
		if !strings.HasSuffix(assetName, ".tar.gz") {
			return false
		}
		return hasAnyToken(assetName, aliasesFor(osAliases, runtime.GOOS)) && hasAnyToken(assetName, aliasesFor(archAliases, runtime.GOARCH))
	})
}

func hasAnyToken(name string, tokens []string) bool {
	if len(tokens) == 0 {
		return false
	}
	for _, tok := range tokens {
		if tokenPresent(name, tok) {
			return true
		}
	}
	return false
}

// Theseus matches the exact filename convention the
// theseus-rs/postgresql-binaries GitHub releases use:
// postgresql-{version}-{target}.tar.gz.
func Theseus() archive.Matcher {
	return archive.MatcherFunc(func(_, assetName string, version archive.Version) bool {
		want := fmt.Sprintf("postgresql-%s-%s.tar.gz", version.String(), TargetTriple())
		return assetName == want
	})
}

// Zonky matches the exact filename convention Maven Central's
// io.zonky.test.postgres binaries use:
// embedded-postgres-binaries-{os}-{arch}-{version}.jar.
func Zonky() archive.Matcher {
	return archive.MatcherFunc(func(_, assetName string, version archive.Version) bool {
		want := fmt.Sprintf("embedded-postgres-binaries-%s-%s-%s.jar", zonkyOS(), zonkyArch(), version.String())
		return assetName == want
	})
}

func zonkyOS() string {
	switch runtime.GOOS {
	case "darwin":
		return "darwin"
	default:
		return runtime.GOOS
	}
}

func zonkyArch() string {
	switch runtime.GOARCH {
	case "amd64":
		return "amd64"
	case "arm64":
		return "arm64v8"
	default:
		return runtime.GOARCH
	}
}

// ExtensionMatcher wraps base so that it only accepts an asset when the
// releases URL carries a postgresql_version query parameter of the form
// "major.minor", passing the major component through. Extension
// repositories target their assets at one PostgreSQL major version and
// encode it this way in the URLs they build.
func ExtensionMatcher(base func(pgMajor, assetName string, version archive.Version) bool) archive.Matcher {
	return archive.MatcherFunc(func(rawURL, assetName string, version archive.Version) bool {
		u, err := url.Parse(rawURL)
		if err != nil {
			return false
		}
		major, _, ok := strings.Cut(u.Query().Get("postgresql_version"), ".")
		if !ok || major == "" {
			return false
		}
		return base(major, assetName, version)
	})
}

// RegisterDefaults registers Theseus for github.com URLs, Zonky for the
// Maven zonky coordinate path, and Default as the fallback for everything
// else. Registration order matters because lookup returns the first
// match, so the specific matchers are registered before the catch-all.
func RegisterDefaults(r *archive.Registries) error {
	if err := r.RegisterMatcher(isGitHubURL, Theseus()); err != nil {
		return err
	}
	if err := r.RegisterMatcher(isZonkyURL, Zonky()); err != nil {
		return err
	}
	if err := r.RegisterMatcher(func(string) bool { return true }, Default()); err != nil {
		return err
	}
	return nil
}

func isGitHubURL(u string) bool {
	return strings.Contains(u, "github.com")
}

func isZonkyURL(u string) bool {
	return strings.Contains(u, "io/zonky/test/postgres")
}
