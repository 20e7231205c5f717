package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"stridelink/pkg/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "stridelink.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStoreRequiresPath(t *testing.T) {
	if _, err := Open(""); !errors.Is(err, ErrMissingPath) {
		t.Errorf("expected ErrMissingPath, got %v", err)
	}
}

func TestStoreCredentialsRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.Credentials(ctx); !errors.Is(err, ErrNoCredentials) {
		t.Fatalf("expected ErrNoCredentials on empty store, got %v", err)
	}

	creds := types.Credentials{
		UserID:      "runner_1",
		DisplayName: "Runner",
		Role:        types.RoleRunner,
		Token:       "tok_abc",
	}
	if err := s.SaveCredentials(ctx, creds); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	loaded, err := s.Credentials(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loaded.UserID != "runner_1" || loaded.Token != "tok_abc" || loaded.Role != types.RoleRunner {
		t.Errorf("unexpected credentials: %+v", loaded)
	}
	if loaded.SavedAt.IsZero() {
		t.Error("expected saved_at to be set")
	}
}

func TestStoreNewLoginEvictsPrevious(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	first := types.Credentials{UserID: "runner_1", DisplayName: "Runner", Role: types.RoleRunner, Token: "tok_1"}
	second := types.Credentials{UserID: "expert_1", DisplayName: "Coach", Role: types.RoleExpert, Token: "tok_2"}
	if err := s.SaveCredentials(ctx, first); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.SaveCredentials(ctx, second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	loaded, err := s.Credentials(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loaded.UserID != "expert_1" {
		t.Errorf("expected the newest login, got %+v", loaded)
	}
}

func TestStoreClearCredentials(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	creds := types.Credentials{UserID: "runner_1", DisplayName: "Runner", Role: types.RoleRunner, Token: "tok_1"}
	if err := s.SaveCredentials(ctx, creds); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.ClearCredentials(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := s.Credentials(ctx); !errors.Is(err, ErrNoCredentials) {
		t.Errorf("expected ErrNoCredentials after logout, got %v", err)
	}
}

func TestStoreProfileCacheRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	type profile struct {
		Height float64 `json:"height"`
		Goal   string  `json:"goal"`
	}

	var missing profile
	if err := s.CachedProfile(ctx, "runner_1", &missing); !errors.Is(err, ErrNoCachedEntry) {
		t.Fatalf("expected ErrNoCachedEntry, got %v", err)
	}

	if err := s.CacheProfile(ctx, "runner_1", profile{Height: 178, Goal: "marathon"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.CacheProfile(ctx, "runner_1", profile{Height: 178, Goal: "ultra"}); err != nil {
		t.Fatalf("unexpected error on overwrite: %v", err)
	}

	var loaded profile
	if err := s.CachedProfile(ctx, "runner_1", &loaded); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loaded.Goal != "ultra" {
		t.Errorf("expected latest snapshot, got %+v", loaded)
	}
}

func TestStoreDeviceIDIsStable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stridelink.db")
	ctx := context.Background()

	s, err := Open(path)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	first, err := s.DeviceID(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first == "" {
		t.Fatal("expected a device id")
	}
	if err := s.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	s, err = Open(path)
	if err != nil {
		t.Fatalf("failed to reopen store: %v", err)
	}
	defer s.Close()
	second, err := s.DeviceID(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second != first {
		t.Errorf("expected device id to survive reopen: %q vs %q", first, second)
	}
}

func TestStoreRejectsUseAfterClose(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := s.Credentials(ctx); !errors.Is(err, ErrStoreClosed) {
		t.Errorf("expected ErrStoreClosed, got %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("expected repeated close to be a no-op, got %v", err)
	}
}
