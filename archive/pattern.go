package archive

import (
	"regexp"
	"sync"
)

// compiledRegexpCache memoizes regexp.Compile so that repeatedly walking an
// archive with a fixed ExtractDirectories doesn't recompile the same
// handful of patterns per entry.
type compiledRegexpCache struct {
	mu    sync.Mutex
	cache map[string]*regexp.Regexp
}

var regexpCache = &compiledRegexpCache{}

func (c *compiledRegexpCache) compile(pattern string) (*regexp.Regexp, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cache == nil {
		c.cache = make(map[string]*regexp.Regexp)
	}
	if re, ok := c.cache[pattern]; ok {
		return re, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	c.cache[pattern] = re
	return re, nil
}
