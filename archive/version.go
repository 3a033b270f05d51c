package archive

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// Version is a resolved semantic version triple (major, minor, patch).
type Version struct {
	Major, Minor, Patch int64
	original            string
}

// ParseVersion parses a "major.minor.patch" (or "major.minor" /
// "major") string into a Version.
func ParseVersion(s string) (Version, error) {
	v, err := semver.NewVersion(s)
	if err != nil {
		return Version{}, fmt.Errorf("archive: parse version %q: %w", s, err)
	}
	return Version{Major: int64(v.Major()), Minor: int64(v.Minor()), Patch: int64(v.Patch()), original: v.Original()}, nil
}

// String returns the text the version was parsed from, or
// "major.minor.patch" for a Version not built by ParseVersion.
func (v Version) String() string {
	if v.original != "" {
		return v.original
	}
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Less reports whether v sorts before other, major first.
func (v Version) Less(other Version) bool {
	if v.Major != other.Major {
		return v.Major < other.Major
	}
	if v.Minor != other.Minor {
		return v.Minor < other.Minor
	}
	return v.Patch < other.Patch
}

// semverValue adapts Version back to *semver.Version for constraint checks.
func (v Version) semverValue() (*semver.Version, error) {
	return semver.NewVersion(v.String())
}

// VersionRequirement is a predicate over Version: exact, range, or the
// universal wildcard "*".
type VersionRequirement struct {
	raw         string
	constraints *semver.Constraints
}

// AnyVersion is the universal requirement: it matches every version.
var AnyVersion = VersionRequirement{raw: "*"}

// ParseVersionRequirement parses a requirement string. "*" (or the empty
// string) is the universal wildcard. Anything else is handed to
// semver.NewConstraint, which accepts exact versions ("16.4.0"), ranges
// (">=16.0.0, <17.0.0"), and comparison operators ("~16.4").
func ParseVersionRequirement(s string) (VersionRequirement, error) {
	if s == "" || s == "*" {
		return AnyVersion, nil
	}
	c, err := semver.NewConstraint(s)
	if err != nil {
		return VersionRequirement{}, fmt.Errorf("archive: parse version requirement %q: %w", s, err)
	}
	return VersionRequirement{raw: s, constraints: c}, nil
}

// MustParseVersionRequirement is ParseVersionRequirement, panicking on
// error. Intended for package-level constants and tests.
func MustParseVersionRequirement(s string) VersionRequirement {
	req, err := ParseVersionRequirement(s)
	if err != nil {
		panic(err)
	}
	return req
}

// Matches reports whether v satisfies the requirement.
func (r VersionRequirement) Matches(v Version) bool {
	if r.constraints == nil {
		return true // wildcard
	}
	sv, err := v.semverValue()
	if err != nil {
		return false
	}
	return r.constraints.Check(sv)
}

// String returns the original requirement string ("*" for the wildcard).
func (r VersionRequirement) String() string {
	if r.raw == "" {
		return "*"
	}
	return r.raw
}

// HighestMatching returns the highest Version in vs that satisfies r, and
// reports whether any candidate matched.
func HighestMatching(r VersionRequirement, vs []Version) (Version, bool) {
	var best Version
	found := false
	for _, v := range vs {
		if !r.Matches(v) {
			continue
		}
		if !found || best.Less(v) {
			best = v
			found = true
		}
	}
	return best, found
}
