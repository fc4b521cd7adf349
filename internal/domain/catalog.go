package domain

import "context"

// ProductReviews is the aggregated review record for one product.
type ProductReviews struct {
	AvgRating        float64  `json:"avg_rating,omitempty"`
	PositiveKeywords []string `json:"positive_keywords,omitempty"`
	NegativeKeywords []string `json:"negative_keywords,omitempty"`
	Summary          string   `json:"review_summary,omitempty"`
}

// Product is one catalog entry as exposed to clients.
type Product struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Description    string          `json:"description"`
	Category       string          `json:"category,omitempty"`
	Style          string          `json:"style,omitempty"`
	Price          float64         `json:"price"`
	ImageURL       string          `json:"image_url,omitempty"`
	GenderAffinity string          `json:"gender_affinity,omitempty"`
	CurrentStock   int             `json:"current_stock"`
	Reviews        *ProductReviews `json:"reviews,omitempty"`
}

// SearchHit is one product search result. The envelope keys mirror the wire
// shape the web client consumes (search-engine hit with an embedded source
// document).
type SearchHit struct {
	Source Product `json:"_source"`
	Score  float64 `json:"_score,omitempty"`
}

// Order is one order record from the order history collection.
type Order struct {
	OrderID        string  `json:"order_id"`
	UserID         string  `json:"user_id,omitempty"`
	ItemID         string  `json:"item_id,omitempty"`
	ItemName       string  `json:"item_name,omitempty"`
	Price          float64 `json:"price,omitempty"`
	Timestamp      string  `json:"timestamp"`
	DeliveryStatus string  `json:"delivery_status"`
}

// OrderSummary is the presentation subset of an order pushed to clients.
type OrderSummary struct {
	OrderID   string `json:"order_id"`
	OrderDate string `json:"order_date"`
	Status    string `json:"status"`
}

// Summary extracts the presentation fields from an order.
func (o Order) Summary() OrderSummary {
	return OrderSummary{OrderID: o.OrderID, OrderDate: o.Timestamp, Status: o.DeliveryStatus}
}

// ProductIndex is the product search collaborator.
type ProductIndex interface {
	// SearchKeywords runs a keyword query over the catalog and returns up to
	// limit hits, deduplicated by product ID.
	SearchKeywords(ctx context.Context, query string, limit int) ([]SearchHit, error)
	// ItemsByID returns the catalog entries for the given product IDs,
	// preserving catalog order. Missing IDs are skipped.
	ItemsByID(ctx context.Context, ids []string) ([]SearchHit, error)
}

// OrderBook is the order history collaborator.
type OrderBook interface {
	OrdersForUser(ctx context.Context, userID string) ([]Order, error)
}

// ReviewReader is the product reviews collaborator.
type ReviewReader interface {
	ReviewsFor(ctx context.Context, productIDs []string) (map[string]ProductReviews, error)
}
