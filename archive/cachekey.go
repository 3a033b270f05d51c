package archive

import (
	"fmt"
	"net/url"
	"strings"
)

// CacheKey returns a deterministic, filesystem-safe name for an archive
// resolved from releasesURL at version, qualified by the digest a
// repository published for it. Callers that cache archive bytes on disk
// can use it as the cache entry name; two downloads agree on a key exactly
// when they came from the same repository host, resolved the same version,
// and hashed to the same digest.
func CacheKey(releasesURL string, version Version, algorithm, digest string) string {
	host := "unknown"
	if u, err := url.Parse(releasesURL); err == nil && u.Host != "" {
		host = u.Host
	}
	host = strings.ReplaceAll(host, ":", "_")
	return fmt.Sprintf("%s-%s-%s-%s", host, version, algorithm, digest)
}
