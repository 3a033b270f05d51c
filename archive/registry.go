package archive

import (
	"fmt"
	"sync"
)

// entry pairs a supports predicate with the implementation it selects.
type entry[T any] struct {
	supports func(url string) bool
	impl     T
}

// registry is a process-wide, mutex-guarded, append-only table mapping a
// "does this URL belong to me" predicate to an implementation. Lookup
// iterates registrations in insertion order and returns the first whose
// predicate accepts the URL, mirroring database/sql's driver registry.
//
// If a registered predicate panics while the registry's mutex is held,
// the registry is marked poisoned and every subsequent call fails with
// ErrPoisonedRegistry: a predicate that panicked may have left the table
// half-registered, so nothing after it can be trusted.
type registry[T any] struct {
	mu       sync.Mutex
	entries  []entry[T]
	poisoned bool
	kind     string
}

func newRegistry[T any](kind string) *registry[T] {
	return &registry[T]{kind: kind}
}

func (r *registry[T]) register(supports func(url string) bool, impl T) (err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.poisoned {
		return fmt.Errorf("%s registry: %w", r.kind, ErrPoisonedRegistry)
	}
	defer func() {
		if p := recover(); p != nil {
			r.poisoned = true
			err = fmt.Errorf("%s registry: panic during registration: %v: %w", r.kind, p, ErrPoisonedRegistry)
		}
	}()
	r.entries = append(r.entries, entry[T]{supports: supports, impl: impl})
	return nil
}

func (r *registry[T]) lookup(url string) (impl T, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.poisoned {
		return impl, fmt.Errorf("%s registry: %w", r.kind, ErrPoisonedRegistry)
	}
	defer func() {
		if p := recover(); p != nil {
			r.poisoned = true
			err = fmt.Errorf("%s registry: panic during lookup: %v: %w", r.kind, p, ErrPoisonedRegistry)
		}
	}()
	for _, e := range r.entries {
		if e.supports(url) {
			return e.impl, nil
		}
	}
	return impl, fmt.Errorf("%s registry: %w: %s", r.kind, ErrUnregisteredURL, url)
}

// Registries is a set of the three pluggable registries: matcher,
// extractor, and repository. The zero value is ready to use.
type Registries struct {
	matchers     *registry[Matcher]
	extractors   *registry[Extractor]
	repositories *registry[Repository]
	once         sync.Once
}

// Default is the process-wide set of registries. Concrete matcher,
// extractor, and repository implementations register themselves here
// (indirectly, through the pgembed package's composition-root init) rather
// than this package importing them.
var Default = NewRegistries()

// NewRegistries returns an independent set of registries, useful for tests
// that need to reset state between cases without disturbing Default.
func NewRegistries() *Registries {
	r := &Registries{}
	r.init()
	return r
}

func (r *Registries) init() {
	r.once.Do(func() {
		r.matchers = newRegistry[Matcher]("matcher")
		r.extractors = newRegistry[Extractor]("extractor")
		r.repositories = newRegistry[Repository]("repository")
	})
}

// RegisterMatcher registers m under supports.
func (r *Registries) RegisterMatcher(supports func(url string) bool, m Matcher) error {
	r.init()
	return r.matchers.register(supports, m)
}

// RegisterExtractor registers e under supports.
func (r *Registries) RegisterExtractor(supports func(url string) bool, e Extractor) error {
	r.init()
	return r.extractors.register(supports, e)
}

// RegisterRepository registers repo under supports.
func (r *Registries) RegisterRepository(supports func(url string) bool, repo Repository) error {
	r.init()
	return r.repositories.register(supports, repo)
}

// Matcher looks up the matcher registered for url.
func (r *Registries) Matcher(url string) (Matcher, error) {
	r.init()
	return r.matchers.lookup(url)
}

// Extractor looks up the extractor registered for url.
func (r *Registries) Extractor(url string) (Extractor, error) {
	r.init()
	return r.extractors.lookup(url)
}

// Repository looks up the repository registered for url.
func (r *Registries) Repository(url string) (Repository, error) {
	r.init()
	return r.repositories.lookup(url)
}

// RegisterMatcher registers m into the Default registries.
func RegisterMatcher(supports func(url string) bool, m Matcher) error {
	return Default.RegisterMatcher(supports, m)
}

// RegisterExtractor registers e into the Default registries.
func RegisterExtractor(supports func(url string) bool, e Extractor) error {
	return Default.RegisterExtractor(supports, e)
}

// RegisterRepository registers repo into the Default registries.
func RegisterRepository(supports func(url string) bool, repo Repository) error {
	return Default.RegisterRepository(supports, repo)
}
