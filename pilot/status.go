// CLAUDE:SUMMARY User-visible status notice with its own auto-hide timer, rendered with lipgloss or served as JSON.
package pilot

import (
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// NoticeKind is the severity of a status notice.
type NoticeKind string

const (
	NoticeInfo  NoticeKind = "info"
	NoticeError NoticeKind = "error"
)

// Notice is the displayed state of a StatusNotice.
type Notice struct {
	Visible bool       `json:"visible"`
	Kind    NoticeKind `json:"kind,omitempty"`
	Title   string     `json:"title,omitempty"`
	Message string     `json:"message,omitempty"`
}

// StatusNotice shows one notice at a time. Each instance owns its timer;
// every Show and Hide stops the pending one first.
type StatusNotice struct {
	mu    sync.Mutex
	cur   Notice
	timer *time.Timer
	gen   uint64
}

// Show displays a notice. A positive duration hides it after that long; zero
// keeps it until Hide or the next Show.
func (s *StatusNotice) Show(kind NoticeKind, title, message string, duration time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	s.cur = Notice{Visible: true, Kind: kind, Title: title, Message: message}
	if duration > 0 {
		gen := s.gen
		s.timer = time.AfterFunc(duration, func() { s.expire(gen) })
	}
}

// Hide clears the notice.
func (s *StatusNotice) Hide() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	s.cur = Notice{}
}

// Snapshot returns the current notice.
func (s *StatusNotice) Snapshot() Notice {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cur
}

// stopLocked cancels the pending timer. The generation bump voids a timer
// callback that already fired and is waiting on the lock.
func (s *StatusNotice) stopLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.gen++
}

func (s *StatusNotice) expire(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return
	}
	s.timer = nil
	s.cur = Notice{}
}

var (
	noticeBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1)

	noticeInfoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Bold(true)

	noticeErrorStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("196")).
				Bold(true)
)

// Render formats n for a terminal. A hidden notice renders empty.
func (n Notice) Render() string {
	if !n.Visible {
		return ""
	}
	icon, style, border := "i", noticeInfoStyle, lipgloss.Color("39")
	if n.Kind == NoticeError {
		icon, style, border = "!", noticeErrorStyle, lipgloss.Color("196")
	}
	body := style.Render(icon+" "+n.Title) + "\n" + n.Message
	return noticeBox.BorderForeground(border).Render(body)
}
