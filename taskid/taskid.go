// Package taskid extracts numeric task identifiers from task page URLs.
package taskid

import "regexp"

// "/tasks/", then the digits, then a hyphen.
var pattern = regexp.MustCompile(`/tasks/(\d+)-`)

// Extract returns the first run of digits that directly follows "/tasks/"
// and is directly followed by "-". ok is false when the URL has no such run.
func Extract(url string) (id string, ok bool) {
	m := pattern.FindStringSubmatch(url)
	if m == nil {
		return "", false
	}
	return m[1], true
}
