package host

import "strings"

// MatchURL reports whether url matches pattern, where each "*" in pattern
// matches any run of characters, slashes included. An empty pattern matches
// everything.
func MatchURL(pattern, url string) bool {
	if pattern == "" {
		return true
	}
	parts := strings.Split(pattern, "*")
	if len(parts) == 1 {
		return pattern == url
	}
	if !strings.HasPrefix(url, parts[0]) {
		return false
	}
	rest := url[len(parts[0]):]
	last := parts[len(parts)-1]
	for _, p := range parts[1 : len(parts)-1] {
		i := strings.Index(rest, p)
		if i < 0 {
			return false
		}
		rest = rest[i+len(p):]
	}
	return len(rest) >= len(last) && strings.HasSuffix(rest, last)
}

// Matches reports whether tab satisfies q.
func (q QueryInfo) Matches(tab Tab) bool {
	if q.Active != nil && tab.Active != *q.Active {
		return false
	}
	return MatchURL(q.URL, tab.URL)
}
