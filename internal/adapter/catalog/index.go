package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"shopstream/internal/domain"
	"shopstream/internal/infra/config"
)

const defaultSearchLimit = 10

// reviews lookups are capped the way the upstream batch API is
const maxReviewBatch = 100

// seedReview is one row of the reviews seed file.
type seedReview struct {
	ProductID string `json:"product_id"`
	domain.ProductReviews
}

// Catalog serves product search, order history and review lookups from JSON
// seed files loaded at startup. The dataset is small enough that a linear
// keyword scan beats maintaining an index.
type Catalog struct {
	products     []domain.Product
	byID         map[string]int // product ID -> products index
	orders       []domain.Order
	reviews      map[string]domain.ProductReviews
	imageBaseURL string
	searchLimit  int
	logger       *slog.Logger
}

// NewCatalog loads the configured seed files. Orders and reviews paths are
// optional; a missing products path is an error.
func NewCatalog(cfg config.CatalogConfig, logger *slog.Logger) (*Catalog, error) {
	c := &Catalog{
		byID:         make(map[string]int),
		reviews:      make(map[string]domain.ProductReviews),
		imageBaseURL: strings.TrimRight(cfg.ImageBaseURL, "/"),
		searchLimit:  cfg.SearchLimit,
		logger:       logger,
	}
	if c.searchLimit <= 0 {
		c.searchLimit = defaultSearchLimit
	}

	if err := loadJSON(cfg.ProductsPath, &c.products); err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}
	for i, p := range c.products {
		c.byID[p.ID] = i
	}

	if cfg.OrdersPath != "" {
		if err := loadJSON(cfg.OrdersPath, &c.orders); err != nil {
			return nil, fmt.Errorf("load orders: %w", err)
		}
	}

	if cfg.ReviewsPath != "" {
		var rows []seedReview
		if err := loadJSON(cfg.ReviewsPath, &rows); err != nil {
			return nil, fmt.Errorf("load reviews: %w", err)
		}
		for _, r := range rows {
			c.reviews[r.ProductID] = r.ProductReviews
		}
	}

	logger.Info("catalog loaded",
		"products", len(c.products),
		"orders", len(c.orders),
		"reviews", len(c.reviews),
	)
	return c, nil
}

func loadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// SearchKeywords implements domain.ProductIndex. Each query token that
// matches name, category, style or description scores one point; hits are
// ranked by score with catalog order breaking ties.
func (c *Catalog) SearchKeywords(_ context.Context, query string, limit int) ([]domain.SearchHit, error) {
	tokens := strings.Fields(strings.ToLower(query))
	if len(tokens) == 0 {
		return nil, nil
	}
	if limit <= 0 || limit > c.searchLimit {
		limit = c.searchLimit
	}

	type scored struct {
		idx   int
		score float64
	}
	var matches []scored
	for i, p := range c.products {
		haystack := strings.ToLower(p.Name + " " + p.Category + " " + p.Style + " " + p.Description)
		score := 0.0
		for _, tok := range tokens {
			if strings.Contains(haystack, tok) {
				score++
			}
		}
		if score > 0 {
			matches = append(matches, scored{idx: i, score: score})
		}
	}

	sort.SliceStable(matches, func(a, b int) bool {
		return matches[a].score > matches[b].score
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}

	hits := make([]domain.SearchHit, 0, len(matches))
	for _, m := range matches {
		hits = append(hits, domain.SearchHit{Source: c.enrich(c.products[m.idx]), Score: m.score})
	}
	return hits, nil
}

// ItemsByID implements domain.ProductIndex.
func (c *Catalog) ItemsByID(_ context.Context, ids []string) ([]domain.SearchHit, error) {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}

	var hits []domain.SearchHit
	for _, p := range c.products {
		if want[p.ID] {
			hits = append(hits, domain.SearchHit{Source: c.enrich(p)})
		}
	}
	return hits, nil
}

// OrdersForUser implements domain.OrderBook. Item names are joined in from
// the product catalog.
func (c *Catalog) OrdersForUser(_ context.Context, userID string) ([]domain.Order, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", domain.ErrInvalidInput)
	}

	var orders []domain.Order
	for _, o := range c.orders {
		if o.UserID != userID {
			continue
		}
		if idx, ok := c.byID[o.ItemID]; ok {
			o.ItemName = c.products[idx].Name
		}
		orders = append(orders, o)
	}
	return orders, nil
}

// ReviewsFor implements domain.ReviewReader.
func (c *Catalog) ReviewsFor(_ context.Context, productIDs []string) (map[string]domain.ProductReviews, error) {
	if len(productIDs) > maxReviewBatch {
		productIDs = productIDs[:maxReviewBatch]
	}

	out := make(map[string]domain.ProductReviews)
	for _, id := range productIDs {
		if r, ok := c.reviews[id]; ok {
			out[id] = r
		}
	}
	return out, nil
}

// enrich fills the derived per-product fields: the CDN image URL and the
// attached review record.
func (c *Catalog) enrich(p domain.Product) domain.Product {
	if c.imageBaseURL != "" {
		p.ImageURL = c.imageBaseURL + "/" + p.ID + ".jpg"
	}
	if r, ok := c.reviews[p.ID]; ok {
		review := r
		p.Reviews = &review
	}
	return p
}

var (
	_ domain.ProductIndex = (*Catalog)(nil)
	_ domain.OrderBook    = (*Catalog)(nil)
	_ domain.ReviewReader = (*Catalog)(nil)
)
