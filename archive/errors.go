package archive

import "errors"

// Sentinel error kinds. Concrete errors returned by this package and its
// subpackages wrap one of these with fmt.Errorf("...: %w", Err...) so
// callers can test with errors.Is.
var (
	// ErrVersionNotFound means no release satisfied a VersionRequirement.
	ErrVersionNotFound = errors.New("archive: version not found")

	// ErrReleaseFetchFailed means an HTTP/network failure occurred while
	// fetching release metadata or an asset.
	ErrReleaseFetchFailed = errors.New("archive: release fetch failed")

	// ErrDigestMismatch means a declared checksum did not match the
	// downloaded bytes.
	ErrDigestMismatch = errors.New("archive: digest mismatch")

	// ErrExtractionFailed means an archive was malformed or contained an
	// unsupported member.
	ErrExtractionFailed = errors.New("archive: extraction failed")

	// ErrUnregisteredURL means no registry entry accepted a releases URL.
	ErrUnregisteredURL = errors.New("archive: no registry entry accepts this url")

	// ErrPoisonedRegistry means a previous registration or lookup on a
	// registry panicked while the registry mutex was held, so the registry
	// can no longer be trusted.
	ErrPoisonedRegistry = errors.New("archive: registry poisoned")
)
