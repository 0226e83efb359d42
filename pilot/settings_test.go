package pilot

import (
	"context"
	"errors"
	"testing"

	"github.com/hazyhaar/tabpilot/host"
	"github.com/hazyhaar/tabpilot/host/hosttest"
)

func testSettings(fake *hosttest.Fake) *SettingsService {
	return NewSettingsService(fake, discardLogger())
}

func ptr[T any](v T) *T { return &v }

func TestSettings_LoadDefaults(t *testing.T) {
	s := testSettings(hosttest.New())
	got, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != DefaultSettings() {
		t.Fatalf("Load: got %+v, want defaults", got)
	}
	if !got.FeedbackScreenshot || !got.UseTimestamp || got.DefaultFileName != "qa-feedback" {
		t.Fatalf("defaults: got %+v", got)
	}
	if got.StorageRatings != StorageNone || got.StorageLastTaskURL != StorageNone {
		t.Fatalf("storage defaults: got %q, %q", got.StorageRatings, got.StorageLastTaskURL)
	}
}

func TestSettings_LoadFillsMissingFields(t *testing.T) {
	fake := hosttest.New()
	fake.SetStorage(context.Background(), host.AreaLocal, map[string]any{
		SettingsKey: map[string]any{"runOnClick": true},
	})
	got, err := testSettings(fake).Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !got.RunOnClick || got.EPTimeout != "10000" {
		t.Fatalf("Load: got %+v", got)
	}
}

func TestSettings_UpdateGranted(t *testing.T) {
	fake := hosttest.New()
	fake.Grant = true
	s := testSettings(fake)

	got, err := s.Update(context.Background(), Patch{RunOnClick: ptr(true), EPInterval: ptr(" 250 ")})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if !got.RunOnClick || got.EPInterval != "250" {
		t.Fatalf("Update: got %+v", got)
	}
	reloaded, _ := s.Load(context.Background())
	if reloaded != got {
		t.Fatalf("reload: got %+v, want %+v", reloaded, got)
	}
}

func TestSettings_PermissionDeniedLeavesStorageUnchanged(t *testing.T) {
	fake := hosttest.New()
	fake.Grant = true
	s := testSettings(fake)
	before, err := s.Update(context.Background(), Patch{UseTimestamp: ptr(false)})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	// downloads has not been granted yet; the user declines.
	fake.Grant = false
	fake.Prompts = 0
	_, err = s.Update(context.Background(), Patch{FeedbackScreenshot: ptr(true), RunOnClick: ptr(true)})
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("err: got %v, want ErrPermissionDenied", err)
	}
	if fake.Prompts != 1 {
		t.Fatalf("prompts: got %d, want 1", fake.Prompts)
	}
	after, _ := s.Load(context.Background())
	if after != before {
		t.Fatalf("settings changed after denial: got %+v, want %+v", after, before)
	}
}

func TestSettings_DownloadPermissionRequested(t *testing.T) {
	fake := hosttest.New()
	fake.Grant = true
	s := testSettings(fake)

	if _, err := s.Update(context.Background(), Patch{FeedbackScreenshot: ptr(true)}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	ok, _ := fake.ContainsPermissions(context.Background(), []host.Permission{host.PermStorage, host.PermDownloads})
	if !ok {
		t.Fatal("downloads permission not granted")
	}
}

func TestSettings_Prerequisites(t *testing.T) {
	fake := hosttest.New()
	fake.Grant = true
	s := testSettings(fake)
	ctx := context.Background()

	if _, err := s.Update(ctx, Patch{StorageRatings: ptr(StorageLocal)}); !errors.Is(err, ErrPrerequisite) {
		t.Fatalf("ratings storage without toggle: got %v, want ErrPrerequisite", err)
	}
	if _, err := s.Update(ctx, Patch{StorageLastTaskURL: ptr(StorageSession)}); !errors.Is(err, ErrPrerequisite) {
		t.Fatalf("last task storage without toggle: got %v, want ErrPrerequisite", err)
	}
	if n := fake.CallCount("SetStorage"); n != 0 {
		t.Fatalf("SetStorage calls: got %d, want 0", n)
	}

	got, err := s.Update(ctx, Patch{FeedbackRememberRatings: ptr(true), StorageRatings: ptr(StorageLocal)})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.RatingsDestination() != StorageLocal {
		t.Fatalf("ratings destination: got %q", got.RatingsDestination())
	}

	got, err = s.Update(ctx, Patch{FeedbackRememberRatings: ptr(false)})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.RatingsDestination() != StorageNone || got.View().StorageRatings != StorageNone {
		t.Fatalf("destination after disabling toggle: got %q, want none", got.RatingsDestination())
	}
}

func TestSettings_ToggleKeepsStoredDestination(t *testing.T) {
	fake := hosttest.New()
	fake.Grant = true
	s := testSettings(fake)
	ctx := context.Background()

	steps := []Patch{
		{FeedbackRememberRatings: ptr(true), StorageRatings: ptr(StorageLocal)},
		{FeedbackRememberRatings: ptr(false)},
		{FeedbackRememberRatings: ptr(true)},
	}
	for i, p := range steps {
		if _, err := s.Update(ctx, p); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}
	got, _ := s.Load(ctx)
	if got.StorageRatings != StorageLocal || got.RatingsDestination() != StorageLocal {
		t.Fatalf("after toggling back on: got %q, want local", got.StorageRatings)
	}

	if _, err := s.Update(ctx, Patch{TasksRememberLast: ptr(true), StorageLastTaskURL: ptr(StorageSession)}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	off, err := s.Update(ctx, Patch{TasksRememberLast: ptr(false)})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if off.StorageLastTaskURL != StorageSession {
		t.Fatalf("stored last task destination: got %q, want session", off.StorageLastTaskURL)
	}
	if v := off.View(); v.StorageLastTaskURL != StorageNone || v.StorageRatings != StorageLocal {
		t.Fatalf("view: got %q, %q", v.StorageLastTaskURL, v.StorageRatings)
	}
}

func TestPatch_Permissions(t *testing.T) {
	for _, tt := range []struct {
		name  string
		patch Patch
		want  int
	}{
		{"plain edit", Patch{RunOnClick: ptr(true)}, 1},
		{"screenshot on", Patch{FeedbackScreenshot: ptr(true)}, 2},
		{"screenshot off", Patch{FeedbackScreenshot: ptr(false)}, 2},
	} {
		perms := tt.patch.Permissions()
		if len(perms) != tt.want || perms[0] != host.PermStorage {
			t.Errorf("%s: got %v", tt.name, perms)
		}
	}
}

func TestSettings_ValidateRejects(t *testing.T) {
	fake := hosttest.New()
	fake.Grant = true
	s := testSettings(fake)

	bad := []Patch{
		{EPMaxTries: ptr("three")},
		{EPTimeout: ptr("-5")},
		{DefaultFileName: ptr("../evil")},
		{StorageRatings: ptr(StorageType("cloud"))},
	}
	for _, p := range bad {
		if _, err := s.Update(context.Background(), p); !errors.Is(err, ErrInvalidSetting) {
			t.Errorf("Update(%+v): got %v, want ErrInvalidSetting", p, err)
		}
	}
	if fake.Prompts != 0 {
		t.Fatalf("prompted for an invalid patch")
	}
}

func TestSettings_DottedFileNameAccepted(t *testing.T) {
	fake := hosttest.New()
	fake.Grant = true
	got, err := testSettings(fake).Update(context.Background(), Patch{DefaultFileName: ptr("qa..feedback")})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.DefaultFileName != "qa..feedback" {
		t.Fatalf("defaultFileName: got %q", got.DefaultFileName)
	}
}

func TestSettings_Reset(t *testing.T) {
	fake := hosttest.New()
	fake.Grant = true
	s := testSettings(fake)
	ctx := context.Background()

	if _, err := s.Update(ctx, Patch{RunOnClick: ptr(true), DefaultFileName: ptr("mine")}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if _, err := s.Reset(ctx); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	got, _ := s.Load(ctx)
	if got != DefaultSettings() {
		t.Fatalf("after reset: got %+v", got)
	}
}

func TestPatch_Set(t *testing.T) {
	var p Patch
	if err := p.Set("runOnClick", "true"); err != nil {
		t.Fatalf("Set bool: %v", err)
	}
	if err := p.Set("storageRatings", "session"); err != nil {
		t.Fatalf("Set storage: %v", err)
	}
	if err := p.Set("defaultFileName", "shot"); err != nil {
		t.Fatalf("Set string: %v", err)
	}
	if p.RunOnClick == nil || !*p.RunOnClick || *p.StorageRatings != StorageSession || *p.DefaultFileName != "shot" {
		t.Fatalf("patch: got %+v", p)
	}
	if err := p.Set("runOnClick", "maybe"); !errors.Is(err, ErrInvalidSetting) {
		t.Fatalf("bad bool: got %v", err)
	}
	if err := p.Set("nope", "1"); !errors.Is(err, ErrInvalidSetting) {
		t.Fatalf("unknown name: got %v", err)
	}
	if len(SettingNames()) != 14 {
		t.Fatalf("SettingNames: got %d names", len(SettingNames()))
	}
}
