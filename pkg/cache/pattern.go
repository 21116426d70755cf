package cache

import (
	"regexp"
	"strings"
	"time"
)

// KeysByPattern returns all non-expired keys matching a glob pattern, where
// '*' matches zero or more characters and '?' matches exactly one. The
// pattern must match the whole key. An empty or invalid pattern returns an
// empty list rather than an error.
func (s *Store) KeysByPattern(pattern string) []string {
	if pattern == "" {
		return []string{}
	}

	re, err := compileGlob(pattern)
	if err != nil {
		s.logger.Warn("invalid key pattern", "pattern", pattern, "error", err)
		return []string{}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now()
	matched := []string{}
	for key, elem := range s.entries {
		if elem.Value.(*entry).expired(now) {
			continue
		}
		if re.MatchString(key) {
			matched = append(matched, key)
		}
	}
	return matched
}

// Match reports whether key matches a glob pattern, using the same syntax
// as KeysByPattern. An empty or invalid pattern matches nothing.
func Match(pattern, key string) bool {
	if pattern == "" {
		return false
	}
	re, err := compileGlob(pattern)
	if err != nil {
		return false
	}
	return re.MatchString(key)
}

// compileGlob converts a glob pattern to an anchored regular expression.
// Every character except the wildcards is matched literally.
func compileGlob(pattern string) (*regexp.Regexp, error) {
	var sb strings.Builder
	sb.WriteString("^")
	for _, r := range pattern {
		switch r {
		case '*':
			sb.WriteString(".*")
		case '?':
			sb.WriteString(".")
		default:
			sb.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	sb.WriteString("$")
	return regexp.Compile(sb.String())
}
