package repository

import (
	"github.com/pgembed/pgembed/archive"
	"github.com/pgembed/pgembed/extensions"
)

// RegisterDefaults wires TensorChord, PortalCorp, and Steampipe into both
// registries: their matchers into archives (ahead of the generic
// github.com catch-all a caller is expected to register afterwards, since
// lookup is first-match-wins), and the repositories themselves into
// extReg under their namespaces.
func RegisterDefaults(registries *archive.Registries, extReg *extensions.Registry) error {
	tc := &TensorChord{Registries: registries}
	if err := registries.RegisterMatcher(isTensorChordURL, tensorChordMatcher); err != nil {
		return err
	}
	extReg.Register(tc.Name(), tc)

	pc := &PortalCorp{Registries: registries}
	if err := registries.RegisterMatcher(isPortalCorpURL, portalCorpMatcher); err != nil {
		return err
	}
	extReg.Register(pc.Name(), pc)

	sp := &Steampipe{Registries: registries}
	if err := registries.RegisterMatcher(isSteampipeURL, archive.MatcherFunc(steampipeMatcher)); err != nil {
		return err
	}
	extReg.Register(sp.Name(), sp)

	return nil
}
