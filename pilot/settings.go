// CLAUDE:SUMMARY Durable settings record: defaults, permission-gated partial updates, prerequisite checks, reset.
package pilot

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/hazyhaar/tabpilot/host"
	"github.com/hazyhaar/tabpilot/result"
)

// SettingsKey is the local storage key holding the settings record.
const SettingsKey = "SETTINGS"

// StorageType is where an optional record is kept.
type StorageType string

const (
	StorageNone    StorageType = "none"
	StorageSession StorageType = "session"
	StorageLocal   StorageType = "local"
)

// Area maps a StorageType to its host storage area. ok is false for none.
func (s StorageType) Area() (host.StorageArea, bool) {
	switch s {
	case StorageSession:
		return host.AreaSession, true
	case StorageLocal:
		return host.AreaLocal, true
	}
	return "", false
}

func parseStorageType(v string) (StorageType, error) {
	switch StorageType(v) {
	case StorageNone, StorageSession, StorageLocal:
		return StorageType(v), nil
	}
	return "", fmt.Errorf("%w: unknown storage type %q", ErrInvalidSetting, v)
}

// Settings is the user-editable configuration.
type Settings struct {
	RunOnClick              bool `json:"runOnClick"`
	RunOnTaskChange         bool `json:"runOnTaskChange"`
	TasksAlwaysPickFirst    bool `json:"tasksAlwaysPickFirst"`
	TasksRememberLast       bool `json:"tasksRememberLast"`
	FeedbackRememberRatings bool `json:"feedbackRememberRatings"`
	// FeedbackScreenshot downloads every capture to a file.
	FeedbackScreenshot bool   `json:"feedbackScreenshot"`
	OpenSaveAsDialog   bool   `json:"openSaveAsDialog"`
	UseTimestamp       bool   `json:"useTimestamp"`
	DefaultFileName    string `json:"defaultFileName"`

	// Numeric fields are kept as text, as entered.
	EPMaxTries string `json:"epMaxTries"`
	EPInterval string `json:"epInterval"`
	EPTimeout  string `json:"epTimeout"`

	StorageRatings     StorageType `json:"storageRatings"`
	StorageLastTaskURL StorageType `json:"storageLastTaskUrl"`
}

// DefaultSettings returns the settings used before any edit and after Reset.
func DefaultSettings() Settings {
	return Settings{
		FeedbackScreenshot: true,
		UseTimestamp:       true,
		DefaultFileName:    "qa-feedback",
		EPMaxTries:         "3",
		EPInterval:         "1000",
		EPTimeout:          "10000",
		StorageRatings:     StorageNone,
		StorageLastTaskURL: StorageNone,
	}
}

// RatingsDestination is where ratings are kept, none unless remembering is on.
func (s Settings) RatingsDestination() StorageType {
	if !s.FeedbackRememberRatings {
		return StorageNone
	}
	return s.StorageRatings
}

// LastTaskURLDestination is where the last task URL is kept, none unless
// remembering is on.
func (s Settings) LastTaskURLDestination() StorageType {
	if !s.TasksRememberLast {
		return StorageNone
	}
	return s.StorageLastTaskURL
}

// View returns s as it should be shown: a destination whose remember toggle
// is off reads as none. The stored destination is kept so turning the toggle
// back on restores it.
func (s Settings) View() Settings {
	s.StorageRatings = s.RatingsDestination()
	s.StorageLastTaskURL = s.LastTaskURLDestination()
	return s
}

// Patch is a partial settings edit. Nil fields are left unchanged.
type Patch struct {
	RunOnClick              *bool        `json:"runOnClick,omitempty"`
	RunOnTaskChange         *bool        `json:"runOnTaskChange,omitempty"`
	TasksAlwaysPickFirst    *bool        `json:"tasksAlwaysPickFirst,omitempty"`
	TasksRememberLast       *bool        `json:"tasksRememberLast,omitempty"`
	FeedbackRememberRatings *bool        `json:"feedbackRememberRatings,omitempty"`
	FeedbackScreenshot      *bool        `json:"feedbackScreenshot,omitempty"`
	OpenSaveAsDialog        *bool        `json:"openSaveAsDialog,omitempty"`
	UseTimestamp            *bool        `json:"useTimestamp,omitempty"`
	DefaultFileName         *string      `json:"defaultFileName,omitempty"`
	EPMaxTries              *string      `json:"epMaxTries,omitempty"`
	EPInterval              *string      `json:"epInterval,omitempty"`
	EPTimeout               *string      `json:"epTimeout,omitempty"`
	StorageRatings          *StorageType `json:"storageRatings,omitempty"`
	StorageLastTaskURL      *StorageType `json:"storageLastTaskUrl,omitempty"`
}

// SettingNames lists the keys accepted by Patch.Set.
func SettingNames() []string {
	names := make([]string, 0, len(patchSetters))
	for k := range patchSetters {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

var patchSetters = map[string]func(p *Patch, v string) error{
	"runOnClick":              boolSetter(func(p *Patch) **bool { return &p.RunOnClick }),
	"runOnTaskChange":         boolSetter(func(p *Patch) **bool { return &p.RunOnTaskChange }),
	"tasksAlwaysPickFirst":    boolSetter(func(p *Patch) **bool { return &p.TasksAlwaysPickFirst }),
	"tasksRememberLast":       boolSetter(func(p *Patch) **bool { return &p.TasksRememberLast }),
	"feedbackRememberRatings": boolSetter(func(p *Patch) **bool { return &p.FeedbackRememberRatings }),
	"feedbackScreenshot":      boolSetter(func(p *Patch) **bool { return &p.FeedbackScreenshot }),
	"openSaveAsDialog":        boolSetter(func(p *Patch) **bool { return &p.OpenSaveAsDialog }),
	"useTimestamp":            boolSetter(func(p *Patch) **bool { return &p.UseTimestamp }),
	"defaultFileName":         stringSetter(func(p *Patch) **string { return &p.DefaultFileName }),
	"epMaxTries":              stringSetter(func(p *Patch) **string { return &p.EPMaxTries }),
	"epInterval":              stringSetter(func(p *Patch) **string { return &p.EPInterval }),
	"epTimeout":               stringSetter(func(p *Patch) **string { return &p.EPTimeout }),
	"storageRatings":          storageSetter(func(p *Patch) **StorageType { return &p.StorageRatings }),
	"storageLastTaskUrl":      storageSetter(func(p *Patch) **StorageType { return &p.StorageLastTaskURL }),
}

func boolSetter(field func(*Patch) **bool) func(*Patch, string) error {
	return func(p *Patch, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: not a boolean: %q", ErrInvalidSetting, v)
		}
		*field(p) = &b
		return nil
	}
}

func stringSetter(field func(*Patch) **string) func(*Patch, string) error {
	return func(p *Patch, v string) error {
		*field(p) = &v
		return nil
	}
}

func storageSetter(field func(*Patch) **StorageType) func(*Patch, string) error {
	return func(p *Patch, v string) error {
		st, err := parseStorageType(v)
		if err != nil {
			return err
		}
		*field(p) = &st
		return nil
	}
}

// Set assigns one field from its text form, by settings key name.
func (p *Patch) Set(name, value string) error {
	set, ok := patchSetters[name]
	if !ok {
		return fmt.Errorf("%w: unknown setting %q", ErrInvalidSetting, name)
	}
	return set(p, value)
}

// Validate rejects malformed values before anything is stored.
func (p Patch) Validate() error {
	for name, v := range map[string]*string{
		"epMaxTries": p.EPMaxTries, "epInterval": p.EPInterval, "epTimeout": p.EPTimeout,
	} {
		if v == nil {
			continue
		}
		if n, err := strconv.Atoi(strings.TrimSpace(*v)); err != nil || n < 0 {
			return fmt.Errorf("%w: %s must be a non-negative integer, got %q", ErrInvalidSetting, name, *v)
		}
	}
	if p.DefaultFileName != nil && strings.ContainsAny(*p.DefaultFileName, `/\`) {
		return fmt.Errorf("%w: defaultFileName must not contain path separators", ErrInvalidSetting)
	}
	for _, st := range []*StorageType{p.StorageRatings, p.StorageLastTaskURL} {
		if st == nil {
			continue
		}
		if _, err := parseStorageType(string(*st)); err != nil {
			return err
		}
	}
	return nil
}

// Permissions returns the permissions needed to store this patch. Any edit
// of feedbackScreenshot, on or off, also asks for downloads.
func (p Patch) Permissions() []host.Permission {
	perms := []host.Permission{host.PermStorage}
	if p.FeedbackScreenshot != nil {
		perms = append(perms, host.PermDownloads)
	}
	return perms
}

// Apply returns s with every non-nil patch field applied.
func (p Patch) Apply(s Settings) Settings {
	setB := func(dst *bool, v *bool) {
		if v != nil {
			*dst = *v
		}
	}
	setS := func(dst *string, v *string) {
		if v != nil {
			*dst = strings.TrimSpace(*v)
		}
	}
	setB(&s.RunOnClick, p.RunOnClick)
	setB(&s.RunOnTaskChange, p.RunOnTaskChange)
	setB(&s.TasksAlwaysPickFirst, p.TasksAlwaysPickFirst)
	setB(&s.TasksRememberLast, p.TasksRememberLast)
	setB(&s.FeedbackRememberRatings, p.FeedbackRememberRatings)
	setB(&s.FeedbackScreenshot, p.FeedbackScreenshot)
	setB(&s.OpenSaveAsDialog, p.OpenSaveAsDialog)
	setB(&s.UseTimestamp, p.UseTimestamp)
	setS(&s.DefaultFileName, p.DefaultFileName)
	setS(&s.EPMaxTries, p.EPMaxTries)
	setS(&s.EPInterval, p.EPInterval)
	setS(&s.EPTimeout, p.EPTimeout)
	if p.StorageRatings != nil {
		s.StorageRatings = *p.StorageRatings
	}
	if p.StorageLastTaskURL != nil {
		s.StorageLastTaskURL = *p.StorageLastTaskURL
	}
	return s
}

// SettingsService reads and writes the settings record. Concurrent updates
// are last-writer-wins.
type SettingsService struct {
	host   host.Host
	logger *slog.Logger
}

// NewSettingsService creates a SettingsService.
func NewSettingsService(h host.Host, logger *slog.Logger) *SettingsService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SettingsService{host: h, logger: logger}
}

// Load returns the stored settings, or the defaults when none are stored.
// Fields missing from an older record keep their defaults.
func (s *SettingsService) Load(ctx context.Context) (Settings, error) {
	r := result.Safe(func() (map[string]json.RawMessage, error) {
		return s.host.GetStorage(ctx, host.AreaLocal, SettingsKey)
	})
	if !r.IsOk() {
		s.logger.Error("pilot: failed to load settings", "error", r.Err())
		return Settings{}, fmt.Errorf("pilot: load settings: %w", r.Err())
	}
	settings := DefaultSettings()
	raw, ok := r.Value()[SettingsKey]
	if !ok {
		return settings, nil
	}
	if err := json.Unmarshal(raw, &settings); err != nil {
		s.logger.Error("pilot: stored settings unreadable, using defaults", "error", err)
		return DefaultSettings(), nil
	}
	return settings, nil
}

// Update validates p, checks prerequisites, obtains the permissions it needs
// and stores the merged record. On any failure nothing is written.
func (s *SettingsService) Update(ctx context.Context, p Patch) (Settings, error) {
	if err := p.Validate(); err != nil {
		return Settings{}, err
	}
	current, err := s.Load(ctx)
	if err != nil {
		return Settings{}, err
	}
	next := p.Apply(current)

	if p.StorageRatings != nil && *p.StorageRatings != StorageNone && !next.FeedbackRememberRatings {
		return current, fmt.Errorf("%w: enable feedbackRememberRatings first", ErrPrerequisite)
	}
	if p.StorageLastTaskURL != nil && *p.StorageLastTaskURL != StorageNone && !next.TasksRememberLast {
		return current, fmt.Errorf("%w: enable tasksRememberLast first", ErrPrerequisite)
	}

	perms := p.Permissions()
	granted := result.Safe(func() (bool, error) { return s.host.RequestPermissions(ctx, perms) })
	if !granted.IsOk() {
		s.logger.Error("pilot: permission request failed", "permissions", perms, "error", granted.Err())
		return current, fmt.Errorf("pilot: request permissions: %w", granted.Err())
	}
	if !granted.Value() {
		s.logger.Warn("pilot: could not get permission to save settings", "permissions", perms)
		return current, ErrPermissionDenied
	}

	if err := s.save(ctx, next); err != nil {
		return current, err
	}
	return next, nil
}

// Reset stores the default settings.
func (s *SettingsService) Reset(ctx context.Context) (Settings, error) {
	def := DefaultSettings()
	if err := s.save(ctx, def); err != nil {
		return Settings{}, err
	}
	return def, nil
}

func (s *SettingsService) save(ctx context.Context, settings Settings) error {
	r := result.Do(func() error {
		return s.host.SetStorage(ctx, host.AreaLocal, map[string]any{SettingsKey: settings})
	})
	if !r.IsOk() {
		s.logger.Error("pilot: failed to save settings", "error", r.Err())
		return fmt.Errorf("pilot: save settings: %w", r.Err())
	}
	s.logger.Info("pilot: saved settings")
	return nil
}
