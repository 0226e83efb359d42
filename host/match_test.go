package host

import "testing"

func TestMatchURL(t *testing.T) {
	tests := []struct {
		pattern, url string
		want         bool
	}{
		{"", "https://anything", true},
		{"https://www.multimango.com/qa-feedback", "https://www.multimango.com/qa-feedback", true},
		{"https://www.multimango.com/qa-feedback", "https://www.multimango.com/qa-feedback?x=1", false},
		{"https://www.multimango.com/tasks/*", "https://www.multimango.com/tasks/1-a", true},
		{"https://www.multimango.com/tasks/*", "https://www.multimango.com/tasks/", true},
		{"https://www.multimango.com/tasks/*", "https://www.multimango.com/other", false},
		{"https://*.multimango.com/*", "https://www.multimango.com/tasks/1-a", true},
		{"https://*/tasks/*-x", "https://h.test/tasks/1-x", true},
		{"https://*/tasks/*-x", "https://h.test/tasks/1-y", false},
		{"*ab*ab", "abab", true},
		{"*ab*ab", "ab", false},
	}
	for _, tt := range tests {
		if got := MatchURL(tt.pattern, tt.url); got != tt.want {
			t.Errorf("MatchURL(%q, %q): got %v, want %v", tt.pattern, tt.url, got, tt.want)
		}
	}
}

func TestQueryInfo_Matches(t *testing.T) {
	active := true
	q := QueryInfo{URL: "https://h.test/*", Active: &active}
	if !q.Matches(Tab{URL: "https://h.test/a", Active: true}) {
		t.Error("active matching tab rejected")
	}
	if q.Matches(Tab{URL: "https://h.test/a", Active: false}) {
		t.Error("inactive tab accepted")
	}
	if q.Matches(Tab{URL: "https://other.test/a", Active: true}) {
		t.Error("other host accepted")
	}
}
