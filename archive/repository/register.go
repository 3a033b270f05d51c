package repository

import (
	"strings"

	"github.com/pgembed/pgembed/archive"
)

// RegisterDefaults registers a GitHub repository for github.com URLs and a
// Zonky repository for the conventional Maven zonky coordinate, into r.
// github is consulted for its own matcher through r (Registries field),
// keeping the GitHub repository's asset selection in sync with whatever
// matcher package the caller registered.
func RegisterDefaults(r *archive.Registries) error {
	gh := &GitHub{Registries: r}
	if err := r.RegisterRepository(isGitHubURL, gh); err != nil {
		return err
	}
	zonky := &Zonky{}
	if err := r.RegisterRepository(isZonkyURL, zonky); err != nil {
		return err
	}
	return nil
}

func isGitHubURL(u string) bool {
	return strings.Contains(u, "github.com")
}

func isZonkyURL(u string) bool {
	return strings.Contains(u, "zonky")
}
