package pilot

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hazyhaar/tabpilot/host"
	"github.com/hazyhaar/tabpilot/result"
)

// Session record keys.
const (
	KeyTaskID           = "TASK_ID"
	KeyFoundTaskID      = "FOUND_TASK_ID"
	KeyLastQAFeedback   = "LAST_QA_FEEDBACK"
	KeyCapturedFeedback = "CAPTURED_FEEDBACK"
	KeyLastTaskURL      = "LAST_TASK_URL"
	KeyLastRatings      = "LAST_RATINGS"
)

// SessionSnapshot is the session record as read back by the UI surfaces.
type SessionSnapshot struct {
	TaskID           string   `json:"taskId,omitempty"`
	FoundTaskID      bool     `json:"foundTaskId"`
	LastQAFeedback   []string `json:"lastQaFeedback,omitempty"` // [dataURL, RFC3339 timestamp]
	CapturedFeedback bool     `json:"capturedFeedback"`
	LastTaskURL      string   `json:"lastTaskUrl,omitempty"`
	LastRatings      *Ratings `json:"lastRatings,omitempty"`
}

func saveItem(ctx context.Context, h host.Host, area host.StorageArea, key string, value any) error {
	r := result.Do(func() error {
		return h.SetStorage(ctx, area, map[string]any{key: value})
	})
	if !r.IsOk() {
		return fmt.Errorf("pilot: save %s to %s storage: %w", key, area, r.Err())
	}
	return nil
}

func loadItem(ctx context.Context, h host.Host, area host.StorageArea, key string, v any) (bool, error) {
	r := result.Safe(func() (map[string]json.RawMessage, error) {
		return h.GetStorage(ctx, area, key)
	})
	if !r.IsOk() {
		return false, fmt.Errorf("pilot: read %s from %s storage: %w", key, area, r.Err())
	}
	raw, ok := r.Value()[key]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("pilot: decode %s: %w", key, err)
	}
	return true, nil
}

// ReadSession reads the session record. Optional records stored in the local
// area are looked up there when settings point at it.
func ReadSession(ctx context.Context, h host.Host, settings Settings) (SessionSnapshot, error) {
	var s SessionSnapshot
	if _, err := loadItem(ctx, h, host.AreaSession, KeyTaskID, &s.TaskID); err != nil {
		return s, err
	}
	if _, err := loadItem(ctx, h, host.AreaSession, KeyFoundTaskID, &s.FoundTaskID); err != nil {
		return s, err
	}
	if _, err := loadItem(ctx, h, host.AreaSession, KeyLastQAFeedback, &s.LastQAFeedback); err != nil {
		return s, err
	}
	if _, err := loadItem(ctx, h, host.AreaSession, KeyCapturedFeedback, &s.CapturedFeedback); err != nil {
		return s, err
	}
	if area, ok := settings.LastTaskURLDestination().Area(); ok {
		if _, err := loadItem(ctx, h, area, KeyLastTaskURL, &s.LastTaskURL); err != nil {
			return s, err
		}
	}
	if area, ok := settings.RatingsDestination().Area(); ok {
		var r Ratings
		found, err := loadItem(ctx, h, area, KeyLastRatings, &r)
		if err != nil {
			return s, err
		}
		if found {
			s.LastRatings = &r
		}
	}
	return s, nil
}
