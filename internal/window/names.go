package window

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// NameResolver maps a process id to an executable path or file name.
type NameResolver func(pid uint32) (string, bool)

// NameCache memoizes pid to executable-name lookups. Matching by process
// name runs on every window event, so resolution must usually be a map hit.
type NameCache struct {
	lru       *expirable.LRU[uint32, string]
	resolvers []NameResolver
}

func NewNameCache(size int, ttl time.Duration, resolvers ...NameResolver) *NameCache {
	return &NameCache{
		lru:       expirable.NewLRU[uint32, string](size, nil, ttl),
		resolvers: resolvers,
	}
}

// Lookup returns the executable file name for pid, trying each resolver in
// order on a cache miss. Failures are not cached.
func (c *NameCache) Lookup(pid uint32) (string, bool) {
	if pid == 0 {
		return "", false
	}
	if name, ok := c.lru.Get(pid); ok {
		return name, true
	}
	for _, r := range c.resolvers {
		raw, ok := r(pid)
		if !ok {
			continue
		}
		name := baseName(raw)
		if name == "" {
			continue
		}
		c.lru.Add(pid, name)
		return name, true
	}
	return "", false
}

// Forget drops pid, typically because the process exited and its id may be
// reused.
func (c *NameCache) Forget(pid uint32) {
	c.lru.Remove(pid)
}

func (c *NameCache) Len() int { return c.lru.Len() }

func baseName(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	// Paths come from Windows APIs; normalize separators so this also
	// behaves on other hosts.
	return filepath.Base(strings.ReplaceAll(p, `\`, "/"))
}
