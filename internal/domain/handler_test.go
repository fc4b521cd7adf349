package domain

import "testing"

func TestHandlerForCode(t *testing.T) {
	tests := []struct {
		code string
		want HandlerKind
	}{
		{"1", HandlerOrderHistory},
		{"2", HandlerProductSearch},
		{"3", HandlerProductDetails},
		{"4", HandlerGeneralInquiry},
		{"5", HandlerCompareProducts},
		{" 2 ", HandlerProductSearch},
		{"2\n", HandlerProductSearch},
		{"6", HandlerGeneralInquiry},
		{"banana", HandlerGeneralInquiry},
		{"", HandlerGeneralInquiry},
	}
	for _, tt := range tests {
		if got := HandlerForCode(tt.code); got != tt.want {
			t.Errorf("HandlerForCode(%q) = %q, want %q", tt.code, got, tt.want)
		}
	}
}

func TestFallbackCode(t *testing.T) {
	if got := FallbackCode(ModeStandard); got != CodeGeneralInquiry {
		t.Errorf("standard fallback = %q, want %q", got, CodeGeneralInquiry)
	}
	if got := FallbackCode(ModeAgent); got != CodeProductDetails {
		t.Errorf("agent fallback = %q, want %q", got, CodeProductDetails)
	}
}

func TestOrderSummary(t *testing.T) {
	o := Order{OrderID: "A1", Timestamp: "2025-06-01T10:00:00Z", DeliveryStatus: "shipped", ItemID: "p1"}
	s := o.Summary()
	if s.OrderID != "A1" || s.OrderDate != "2025-06-01T10:00:00Z" || s.Status != "shipped" {
		t.Errorf("Summary() = %+v", s)
	}
}
