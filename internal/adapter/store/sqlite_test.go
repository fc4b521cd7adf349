package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"shopstream/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAppendAndLoadHistory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	msgs := []domain.StoredMessage{
		{Role: "user", Content: "show me jackets"},
		{Role: "assistant", Content: "Here are some jackets.", Metadata: map[string]any{
			"response_type": "product_search",
		}},
	}
	for _, msg := range msgs {
		if err := s.AppendMessage(ctx, "s1", domain.HandlerProductSearch, msg); err != nil {
			t.Fatalf("AppendMessage: %v", err)
		}
	}

	got, err := s.LoadHistory(ctx, "s1", domain.HandlerProductSearch, 10)
	if err != nil {
		t.Fatalf("LoadHistory: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("history len = %d, want 2", len(got))
	}
	if got[0].Content != "show me jackets" || got[1].Content != "Here are some jackets." {
		t.Errorf("wrong order: %q, %q", got[0].Content, got[1].Content)
	}
	if got[0].ID == "" {
		t.Error("message ID not assigned")
	}
	if got[1].Metadata["response_type"] != "product_search" {
		t.Errorf("metadata = %v", got[1].Metadata)
	}
	if got[0].Timestamp.IsZero() {
		t.Error("timestamp not persisted")
	}
}

func TestHistoryIsolatedPerHandler(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.AppendMessage(ctx, "s1", domain.HandlerProductSearch, domain.StoredMessage{Role: "user", Content: "search"})
	s.AppendMessage(ctx, "s1", domain.HandlerOrderHistory, domain.StoredMessage{Role: "user", Content: "orders"})

	got, err := s.LoadHistory(ctx, "s1", domain.HandlerOrderHistory, 10)
	if err != nil {
		t.Fatalf("LoadHistory: %v", err)
	}
	if len(got) != 1 || got[0].Content != "orders" {
		t.Errorf("history = %+v", got)
	}
}

func TestLoadHistoryLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		s.AppendMessage(ctx, "s1", domain.HandlerGeneralInquiry, domain.StoredMessage{
			Role: "user", Content: fmt.Sprintf("m%d", i),
		})
	}

	got, err := s.LoadHistory(ctx, "s1", domain.HandlerGeneralInquiry, 2)
	if err != nil {
		t.Fatalf("LoadHistory: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("history len = %d, want 2", len(got))
	}
	// The most recent messages, oldest first.
	if got[0].Content != "m3" || got[1].Content != "m4" {
		t.Errorf("history = %q, %q", got[0].Content, got[1].Content)
	}
}

func TestConversationCapTrimsOldest(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < maxMessages+1; i++ {
		err := s.AppendMessage(ctx, "s1", domain.HandlerGeneralInquiry, domain.StoredMessage{
			Role: "user", Content: fmt.Sprintf("m%d", i),
		})
		if err != nil {
			t.Fatalf("AppendMessage %d: %v", i, err)
		}
	}

	got, err := s.LoadHistory(ctx, "s1", domain.HandlerGeneralInquiry, maxMessages+5)
	if err != nil {
		t.Fatalf("LoadHistory: %v", err)
	}
	if len(got) != trimTarget {
		t.Fatalf("history len = %d, want %d", len(got), trimTarget)
	}
	// The newest messages survive the trim.
	if got[len(got)-1].Content != fmt.Sprintf("m%d", maxMessages) {
		t.Errorf("last = %q", got[len(got)-1].Content)
	}
}

func TestSharedContextMissingSession(t *testing.T) {
	s := newTestStore(t)

	sc, err := s.SharedContext(context.Background(), "never-seen")
	if err != nil {
		t.Fatalf("SharedContext: %v", err)
	}
	if sc == nil {
		t.Fatal("expected empty context, got nil")
	}
	if len(sc.Products) != 0 || len(sc.Orders) != 0 {
		t.Errorf("context not empty: %+v", sc)
	}
}

func TestMergeSharedContext(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.MergeSharedContext(ctx, "s1", domain.SharedContextUpdate{
		Products:    []domain.Product{{ID: "p1", Name: "Jacket"}},
		SearchQuery: "jacket",
	})
	if err != nil {
		t.Fatalf("MergeSharedContext: %v", err)
	}
	err = s.MergeSharedContext(ctx, "s1", domain.SharedContextUpdate{
		Products:    []domain.Product{{ID: "p2", Name: "Tote"}},
		Orders:      []domain.OrderSummary{{OrderID: "o1", Status: "shipped"}},
		SearchQuery: "tote",
		Preferences: map[string]string{"style": "casual"},
	})
	if err != nil {
		t.Fatalf("MergeSharedContext: %v", err)
	}

	sc, err := s.SharedContext(ctx, "s1")
	if err != nil {
		t.Fatalf("SharedContext: %v", err)
	}
	if len(sc.Products) != 2 || sc.Products[0].ID != "p1" || sc.Products[1].ID != "p2" {
		t.Errorf("products = %+v", sc.Products)
	}
	if len(sc.Orders) != 1 || sc.Orders[0].OrderID != "o1" {
		t.Errorf("orders = %+v", sc.Orders)
	}
	if len(sc.SearchHistory) != 2 || sc.SearchHistory[1] != "tote" {
		t.Errorf("search history = %v", sc.SearchHistory)
	}
	if sc.Preferences["style"] != "casual" {
		t.Errorf("preferences = %v", sc.Preferences)
	}
	if sc.UpdatedAt.IsZero() {
		t.Error("UpdatedAt not set")
	}
}

func TestMergeSharedContextDedupesByID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.MergeSharedContext(ctx, "s1", domain.SharedContextUpdate{
		Products: []domain.Product{{ID: "p1", Name: "Jacket"}, {ID: "p2", Name: "Tote"}},
	})
	s.MergeSharedContext(ctx, "s1", domain.SharedContextUpdate{
		Products: []domain.Product{{ID: "p1", Name: "Jacket v2"}},
	})

	sc, err := s.SharedContext(ctx, "s1")
	if err != nil {
		t.Fatalf("SharedContext: %v", err)
	}
	if len(sc.Products) != 2 {
		t.Fatalf("products len = %d, want 2", len(sc.Products))
	}
	// The re-seen product moves to the end with its new data.
	if sc.Products[0].ID != "p2" || sc.Products[1].ID != "p1" {
		t.Errorf("product order = %s, %s", sc.Products[0].ID, sc.Products[1].ID)
	}
	if sc.Products[1].Name != "Jacket v2" {
		t.Errorf("product name = %q", sc.Products[1].Name)
	}
}

func TestSweepExpired(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// One live session, one already expired.
	if err := s.TouchSession(ctx, "live", "u1", time.Hour); err != nil {
		t.Fatalf("TouchSession: %v", err)
	}
	if err := s.TouchSession(ctx, "stale", "u2", -time.Minute); err != nil {
		t.Fatalf("TouchSession: %v", err)
	}
	s.AppendMessage(ctx, "stale", domain.HandlerGeneralInquiry, domain.StoredMessage{Role: "user", Content: "hi"})
	s.MergeSharedContext(ctx, "stale", domain.SharedContextUpdate{SearchQuery: "jacket"})

	n, err := s.SweepExpired(ctx)
	if err != nil {
		t.Fatalf("SweepExpired: %v", err)
	}
	if n != 1 {
		t.Errorf("swept = %d, want 1", n)
	}

	got, err := s.LoadHistory(ctx, "stale", domain.HandlerGeneralInquiry, 10)
	if err != nil {
		t.Fatalf("LoadHistory: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expired conversation survived: %+v", got)
	}
	sc, _ := s.SharedContext(ctx, "stale")
	if len(sc.SearchHistory) != 0 {
		t.Errorf("expired shared context survived: %+v", sc)
	}

	// Nothing left to sweep.
	n, err = s.SweepExpired(ctx)
	if err != nil || n != 0 {
		t.Errorf("second sweep = %d, %v", n, err)
	}
}

func TestStoreErrorsWrapSentinel(t *testing.T) {
	s := newTestStore(t)
	s.Close()

	_, err := s.LoadHistory(context.Background(), "s1", domain.HandlerGeneralInquiry, 10)
	if !errors.Is(err, domain.ErrStore) {
		t.Errorf("expected ErrStore, got %v", err)
	}
}
