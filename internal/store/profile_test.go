package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestProfileCRUD(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	p, err := s.profiles.Create(ctx, "acc-1", "alice@example.com")
	if err != nil {
		t.Fatalf("create profile: %v", err)
	}
	if p.Banned {
		t.Error("new profile should not be banned")
	}
	if len(p.AuthorizedPlugins) != 0 {
		t.Errorf("authorized = %v, want empty", p.AuthorizedPlugins)
	}

	if _, err := s.profiles.Create(ctx, "acc-1", "other@example.com"); !errors.Is(err, ErrConflict) {
		t.Fatalf("duplicate err = %v, want ErrConflict", err)
	}

	byEmail, err := s.profiles.GetByEmail(ctx, "alice@example.com")
	if err != nil || byEmail == nil {
		t.Fatalf("get by email: %v %v", byEmail, err)
	}
	if byEmail.ID != "acc-1" {
		t.Errorf("id = %q, want acc-1", byEmail.ID)
	}

	if err := s.profiles.SetBanned(ctx, "acc-1", true); err != nil {
		t.Fatalf("ban: %v", err)
	}
	got, _ := s.profiles.GetByID(ctx, "acc-1")
	if !got.Banned {
		t.Error("expected banned")
	}

	if err := s.profiles.Delete(ctx, "acc-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, err = s.profiles.GetByID(ctx, "acc-1")
	if err != nil {
		t.Fatalf("get after delete: %v", err)
	}
	if got != nil {
		t.Error("expected nil after delete")
	}
}

func TestProfileGrantRevoke(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	p := createTestPlugin(t, s.plugins, "Foo", 10)

	if _, err := s.profiles.Create(ctx, "acc-1", "alice@example.com"); err != nil {
		t.Fatalf("create profile: %v", err)
	}

	if err := s.profiles.Grant(ctx, "acc-1", p.ID); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if err := s.profiles.Grant(ctx, "acc-1", p.ID); !errors.Is(err, ErrConflict) {
		t.Fatalf("second grant err = %v, want ErrConflict", err)
	}

	got, _ := s.profiles.GetByID(ctx, "acc-1")
	if !got.HasPlugin(p.ID) {
		t.Errorf("authorized = %v, want %d", got.AuthorizedPlugins, p.ID)
	}

	removed, err := s.profiles.Revoke(ctx, "acc-1", p.ID)
	if err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if !removed {
		t.Error("expected revoke to report removal")
	}
	removed, _ = s.profiles.Revoke(ctx, "acc-1", p.ID)
	if removed {
		t.Error("second revoke should report nothing removed")
	}
}

func TestBlacklist(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	past := time.Now().Add(-time.Hour).UTC()
	future := time.Now().Add(time.Hour).UTC()

	first, err := s.blacklist.Insert(ctx, "hash-a", &past)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	again, err := s.blacklist.Insert(ctx, "hash-a", &future)
	if err != nil {
		t.Fatalf("insert again: %v", err)
	}
	if !again.IssuedAt.Equal(first.IssuedAt) {
		t.Errorf("second insert replaced row: %v != %v", again.IssuedAt, first.IssuedAt)
	}
	if _, err := s.blacklist.Insert(ctx, "hash-b", &future); err != nil {
		t.Fatalf("insert b: %v", err)
	}
	if _, err := s.blacklist.Insert(ctx, "hash-c", nil); err != nil {
		t.Fatalf("insert c: %v", err)
	}

	ok, err := s.blacklist.Exists(ctx, "hash-a")
	if err != nil || !ok {
		t.Fatalf("exists = %v, %v; want true", ok, err)
	}

	n, err := s.blacklist.DeleteExpired(ctx, time.Now())
	if err != nil {
		t.Fatalf("delete expired: %v", err)
	}
	if n != 1 {
		t.Errorf("purged %d rows, want 1", n)
	}
	if ok, _ := s.blacklist.Exists(ctx, "hash-a"); ok {
		t.Error("expired token still listed")
	}
	if ok, _ := s.blacklist.Exists(ctx, "hash-c"); !ok {
		t.Error("token without expiry should be kept")
	}

	deleted, err := s.blacklist.Delete(ctx, "hash-b")
	if err != nil || !deleted {
		t.Fatalf("delete = %v, %v; want true", deleted, err)
	}
	deleted, _ = s.blacklist.Delete(ctx, "hash-b")
	if deleted {
		t.Error("second delete should report false")
	}
}
