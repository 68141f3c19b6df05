package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dukerupert/pluginhub/internal/model"
)

func TestDownloadLinkConsumeOnce(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	p := createTestPlugin(t, s.plugins, "Foo", 0)

	acct := "acc-1"
	link, err := s.links.Create(ctx, &model.DownloadLink{
		ID: "link-1", PluginID: p.ID, Version: "1.0.0", AccountID: &acct, IPAddress: "10.0.0.1",
	})
	if err != nil {
		t.Fatalf("create link: %v", err)
	}
	if !link.Available {
		t.Error("new link should be available")
	}
	if link.AccountID == nil || *link.AccountID != acct {
		t.Errorf("account = %v, want %q", link.AccountID, acct)
	}
	if link.ConsumedAt != nil {
		t.Error("new link should not be consumed")
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.links.Consume(ctx, "link-1")
			if err != nil {
				t.Errorf("consume: %v", err)
				return
			}
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Errorf("consumed %d times, want 1", wins)
	}

	got, _ := s.links.GetByID(ctx, "link-1")
	if got.Available {
		t.Error("link should be unavailable after consume")
	}
	if got.ConsumedAt == nil {
		t.Error("consumed_at should be set")
	}
}

func TestDownloadLinkDeleteUnused(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	p := createTestPlugin(t, s.plugins, "Foo", 0)

	for _, id := range []string{"a", "b"} {
		if _, err := s.links.Create(ctx, &model.DownloadLink{ID: id, PluginID: p.ID, Version: "1.0.0", IPAddress: "10.0.0.1"}); err != nil {
			t.Fatalf("create link %s: %v", id, err)
		}
	}
	if _, err := s.links.Consume(ctx, "b"); err != nil {
		t.Fatalf("consume: %v", err)
	}

	n, err := s.links.DeleteUnusedBefore(ctx, time.Now().Add(time.Minute))
	if err != nil {
		t.Fatalf("delete unused: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted %d links, want 1", n)
	}
	if got, _ := s.links.GetByID(ctx, "a"); got != nil {
		t.Error("unused link should be gone")
	}
	if got, _ := s.links.GetByID(ctx, "b"); got == nil {
		t.Error("consumed link should be kept")
	}
}
