package engine

import "strings"

// API resource families whose GET responses are worth serving stale.
var cacheableFamilies = map[string]bool{
	"tasks":       true,
	"assets":      true,
	"work-orders": true,
	"dashboard":   true,
	"system":      true,
	"facilities":  true,
}

// CacheablePath reports whether a GET against path should be served from
// the read cache on network failure. Auth endpoints and binary downloads
// (evidence payloads, asset images) always bypass the cache.
func CacheablePath(path string) bool {
	p := path
	if i := strings.IndexByte(p, '?'); i >= 0 {
		p = p[:i]
	}
	if !strings.HasPrefix(p, "/api/") {
		return false
	}
	if strings.HasPrefix(p, "/api/auth/") {
		return false
	}
	if strings.HasSuffix(p, "/image") {
		return false
	}
	if strings.Contains(p, "/evidence/") || strings.Contains(p, "/checklist-evidence/") {
		return false
	}
	family := p[len("/api/"):]
	if i := strings.IndexByte(family, '/'); i >= 0 {
		family = family[:i]
	}
	return cacheableFamilies[family]
}
