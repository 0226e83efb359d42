package pilot

import (
	"context"
	"errors"
	"testing"

	"github.com/hazyhaar/tabpilot/host"
	"github.com/hazyhaar/tabpilot/host/hosttest"
)

func testResponder() *ContentResponder {
	cfg := DefaultConfig()
	return NewContentResponder(cfg.Pages, cfg.Selectors, discardLogger())
}

func docAt(fake *hosttest.Fake, url string) *hosttest.Document {
	return fake.Doc(fake.AddTab(host.Tab{URL: url, Status: host.StatusComplete}))
}

func TestContent_ReadRatingsPreview(t *testing.T) {
	fake := hosttest.New()
	doc := docAt(fake, taskURLA)
	doc.SetHTML(".text-emerald-700.font-bold", " 4.25 ")
	doc.SetHTML(".text-gray-500.text-sm", "<span>37</span> reviews")

	resp := testResponder().Respond(context.Background(), doc, ReadRatingsPreview{})
	p, ok := resp.Data.(RatingsPreview)
	if !resp.OK() || !ok {
		t.Fatalf("response: got %+v", resp)
	}
	if p.Average != 4.25 || p.Reviews != 37 {
		t.Fatalf("preview: got %+v", p)
	}
}

func TestContent_PreviewFailures(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		avg     []string
		reviews []string
	}{
		{"wrong page", feedbackURL, []string{"4"}, []string{"3 reviews"}},
		{"missing average", taskURLA, nil, []string{"3 reviews"}},
		{"missing reviews", taskURLA, []string{"4"}, nil},
		{"zero reviews", taskURLA, []string{"4"}, []string{"0 reviews"}},
		{"non-numeric reviews", taskURLA, []string{"4"}, []string{"no reviews"}},
		{"non-numeric average", taskURLA, []string{"n/a"}, []string{"3 reviews"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := hosttest.New()
			doc := docAt(fake, tt.url)
			if tt.avg != nil {
				doc.SetHTML(".text-emerald-700.font-bold", tt.avg...)
			}
			if tt.reviews != nil {
				doc.SetHTML(".text-gray-500.text-sm", tt.reviews...)
			}
			resp := testResponder().Respond(context.Background(), doc, ReadRatingsPreview{})
			if resp.Status != StatusFailed || resp.Data != nil {
				t.Fatalf("response: got %+v, want Failed with no data", resp)
			}
		})
	}
}

func TestContent_ReadFullRatings(t *testing.T) {
	fake := hosttest.New()
	doc := docAt(fake, feedbackURL+"?week=3")
	doc.SetHTML(".text-2xl.font-semibold", "10", "", "3", "1", "99")
	doc.SetHTML(".text-emerald-700.font-bold", "4.1")

	resp := testResponder().Respond(context.Background(), doc, ReadFullRatings{})
	r, ok := resp.Data.(Ratings)
	if !resp.OK() || !ok {
		t.Fatalf("response: got %+v", resp)
	}
	want := Ratings{Average: 4.1, Exceptional: 10, MeetsExpectations: 0, SomeIssues: 3, MajorIssues: 1}
	if r != want {
		t.Fatalf("ratings: got %+v, want %+v", r, want)
	}
}

func TestContent_NestedMarkup(t *testing.T) {
	fake := hosttest.New()
	doc := docAt(fake, feedbackURL)
	doc.SetHTML(".text-2xl.font-semibold",
		"<span>12</span>", "<!-- count -->5", "\n  <b>2</b>\n", "<span>1</span><!-- -->")
	doc.SetHTML(".text-emerald-700.font-bold", "<span>4</span><!-- -->.<span>5</span>")

	resp := testResponder().Respond(context.Background(), doc, ReadFullRatings{})
	r, ok := resp.Data.(Ratings)
	if !resp.OK() || !ok {
		t.Fatalf("response: got %+v", resp)
	}
	want := Ratings{Average: 4.5, Exceptional: 12, MeetsExpectations: 5, SomeIssues: 2, MajorIssues: 1}
	if r != want {
		t.Fatalf("ratings: got %+v, want %+v", r, want)
	}
}

func TestContentText(t *testing.T) {
	c := testResponder()
	for in, want := range map[string]string{
		"<span>4</span><!-- -->.<span>5</span>": "4.5",
		" <div><span>37</span> reviews</div> ":  "37 reviews",
		"Tom &amp; Jerry":                       "Tom & Jerry",
		"12 &lt;3 reviews":                      "12 <3 reviews",
		"<script>alert(1)</script>7":            "7",
	} {
		if got := c.text(in); got != want {
			t.Errorf("text(%q): got %q, want %q", in, got, want)
		}
	}
}

func TestContent_FullRatingsFailures(t *testing.T) {
	tests := []struct {
		name   string
		url    string
		counts []string
		avg    []string
	}{
		{"wrong page", taskURLA, []string{"1", "2", "3", "4"}, []string{"4"}},
		{"too few counts", feedbackURL, []string{"1", "2", "3"}, []string{"4"}},
		{"non-numeric count", feedbackURL, []string{"1", "two", "3", "4"}, []string{"4"}},
		{"missing average", feedbackURL, []string{"1", "2", "3", "4"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := hosttest.New()
			doc := docAt(fake, tt.url)
			doc.SetHTML(".text-2xl.font-semibold", tt.counts...)
			if tt.avg != nil {
				doc.SetHTML(".text-emerald-700.font-bold", tt.avg...)
			}
			if resp := testResponder().Respond(context.Background(), doc, ReadFullRatings{}); resp.OK() {
				t.Fatalf("response: got %+v, want Failed", resp)
			}
		})
	}
}

func TestContent_Screenshot(t *testing.T) {
	fake := hosttest.New()
	doc := docAt(fake, feedbackURL)
	resp := testResponder().Respond(context.Background(), doc, ScreenshotQAFeedback{})
	if !resp.OK() || resp.Data != hosttest.PNG {
		t.Fatalf("response: got %+v", resp)
	}

	// Prefix matches are not enough for the screenshot.
	other := docAt(fake, feedbackURL+"?week=3")
	if resp := testResponder().Respond(context.Background(), other, ScreenshotQAFeedback{}); resp.OK() {
		t.Fatal("screenshot taken on a non-exact feedback url")
	}

	doc.ScreenshotErr = errors.New("canvas tainted")
	if resp := testResponder().Respond(context.Background(), doc, ScreenshotQAFeedback{}); resp.OK() {
		t.Fatal("screenshot error reported as success")
	}
}

func TestContent_SelectOption(t *testing.T) {
	fake := hosttest.New()
	doc := docAt(fake, taskURLA)
	doc.IDs = []string{"option-2"}

	if resp := testResponder().Respond(context.Background(), doc, SelectOption{ID: "option-2"}); !resp.OK() {
		t.Fatalf("response: got %+v", resp)
	}
	if len(doc.Clicked) != 1 || doc.Clicked[0] != "option-2" {
		t.Fatalf("clicked: got %v", doc.Clicked)
	}
	if resp := testResponder().Respond(context.Background(), doc, SelectOption{ID: "missing"}); resp.OK() {
		t.Fatal("click on missing element reported as success")
	}
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"42", 42, true},
		{" 3.5 ", 3.5, true},
		{"", 0, true},
		{"abc", 0, false},
		{"NaN", 0, false},
		{"Inf", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseNumber(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("parseNumber(%q): got (%v, %v), want (%v, %v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}
