package pgembed

import (
	"github.com/pgembed/pgembed/archive"
	"github.com/pgembed/pgembed/archive/repository"
	"github.com/pgembed/pgembed/extensions"
	extrepo "github.com/pgembed/pgembed/extensions/repository"
	"github.com/pgembed/pgembed/extract"
	"github.com/pgembed/pgembed/match"
)

// init is this module's composition root: it wires the default matcher,
// extractor, and repository implementations into archive.Default so that
// archive.DefaultFacade (and thus Postgres.Setup) works out of the box
// against GitHub release URLs and the Zonky Maven Central coordinate, the same
// way database/sql drivers register themselves into a shared registry
// without database/sql importing any of them. extrepo's matchers are
// registered first: they match a specific github.com/<org>/<project> URL
// prefix, and registry lookup is first-match-wins, so they must be in
// place before match.RegisterDefaults' generic "any github.com URL"
// catch-all or that catch-all would win instead.
func init() {
	if err := extrepo.RegisterDefaults(archive.Default, extensions.Default); err != nil {
		panic("pgembed: register default extension repositories: " + err.Error())
	}
	if err := match.RegisterDefaults(archive.Default); err != nil {
		panic("pgembed: register default matchers: " + err.Error())
	}
	if err := extract.RegisterDefaults(archive.Default); err != nil {
		panic("pgembed: register default extractors: " + err.Error())
	}
	if err := repository.RegisterDefaults(archive.Default); err != nil {
		panic("pgembed: register default repositories: " + err.Error())
	}
}
