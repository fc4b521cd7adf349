package usecase

import (
	"reflect"
	"testing"

	"shopstream/internal/domain"
)

func TestSplitIdentifiers(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"plain list", "p1,p2,p3", []string{"p1", "p2", "p3"}},
		{"spaced", " p1 , p2 ", []string{"p1", "p2"}},
		{"empty entries dropped", "p1,,p2,", []string{"p1", "p2"}},
		{"blank input", "   ", nil},
		{"empty input", "", nil},
		{"duplicates kept", "p1,p1", []string{"p1", "p1"}},
		{"single", "p7", []string{"p7"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SplitIdentifiers(tt.raw); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("SplitIdentifiers(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestResolveProducts(t *testing.T) {
	hits := []domain.SearchHit{
		{Source: domain.Product{ID: "p1"}},
		{Source: domain.Product{ID: "p2"}},
		{Source: domain.Product{ID: "p3"}},
	}

	t.Run("reference collection order wins", func(t *testing.T) {
		got := ResolveProducts(hits, []string{"p3", "p1"})
		if len(got) != 2 || got[0].Source.ID != "p1" || got[1].Source.ID != "p3" {
			t.Errorf("ResolveProducts = %+v, want p1 then p3", got)
		}
	})

	t.Run("unknown ids skipped", func(t *testing.T) {
		got := ResolveProducts(hits, []string{"p2", "nope"})
		if len(got) != 1 || got[0].Source.ID != "p2" {
			t.Errorf("ResolveProducts = %+v", got)
		}
	})

	t.Run("no ids", func(t *testing.T) {
		if got := ResolveProducts(hits, nil); got != nil {
			t.Errorf("ResolveProducts = %+v, want nil", got)
		}
	})

	t.Run("no hits", func(t *testing.T) {
		if got := ResolveProducts(nil, []string{"p1"}); got != nil {
			t.Errorf("ResolveProducts = %+v, want nil", got)
		}
	})
}

func TestResolveOrders(t *testing.T) {
	orders := []domain.Order{
		{OrderID: "A", Timestamp: "2025-05-01T09:00:00Z", DeliveryStatus: "delivered"},
		{OrderID: "B", Timestamp: "2025-05-10T12:30:00Z", DeliveryStatus: "shipped"},
		{OrderID: "A", Timestamp: "2025-06-01T08:00:00Z", DeliveryStatus: "processing"},
	}

	t.Run("identifier order with unknowns skipped", func(t *testing.T) {
		got := ResolveOrders(orders, []string{"B", "C", "A"})
		if len(got) != 2 {
			t.Fatalf("ResolveOrders = %+v, want 2 summaries", got)
		}
		if got[0].OrderID != "B" || got[1].OrderID != "A" {
			t.Errorf("order = %s, %s; want B, A", got[0].OrderID, got[1].OrderID)
		}
	})

	t.Run("first match per identifier", func(t *testing.T) {
		got := ResolveOrders(orders, []string{"A"})
		if len(got) != 1 {
			t.Fatalf("ResolveOrders = %+v, want 1 summary", got)
		}
		if got[0].OrderDate != "2025-05-01T09:00:00Z" || got[0].Status != "delivered" {
			t.Errorf("summary = %+v, want first A record", got[0])
		}
	})

	t.Run("summary shape", func(t *testing.T) {
		got := ResolveOrders(orders, []string{"B"})
		want := domain.OrderSummary{OrderID: "B", OrderDate: "2025-05-10T12:30:00Z", Status: "shipped"}
		if len(got) != 1 || got[0] != want {
			t.Errorf("ResolveOrders = %+v, want [%+v]", got, want)
		}
	})
}
