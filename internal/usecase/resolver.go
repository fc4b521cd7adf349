package usecase

import (
	"context"
	"strings"

	"shopstream/internal/domain"
)

// SplitIdentifiers parses a comma-separated identifier list: split, trim,
// drop empties, preserve order. Duplicates are kept; matching is a
// per-identifier lookup, not set membership.
func SplitIdentifiers(raw string) []string {
	var ids []string
	for _, part := range strings.Split(raw, ",") {
		if id := strings.TrimSpace(part); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// ResolveProducts returns the hits whose product ID appears in ids,
// preserving the reference collection's original order.
func ResolveProducts(hits []domain.SearchHit, ids []string) []domain.SearchHit {
	if len(ids) == 0 || len(hits) == 0 {
		return nil
	}
	wanted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}

	var matched []domain.SearchHit
	for _, hit := range hits {
		if _, ok := wanted[hit.Source.ID]; ok {
			matched = append(matched, hit)
		}
	}
	return matched
}

// ResolveOrders returns one summary per identifier that matches an order,
// in identifier-list order. Identifiers without a match are skipped.
func ResolveOrders(orders []domain.Order, ids []string) []domain.OrderSummary {
	if len(ids) == 0 || len(orders) == 0 {
		return nil
	}

	var matched []domain.OrderSummary
	for _, id := range ids {
		for _, order := range orders {
			if order.OrderID == id {
				matched = append(matched, order.Summary())
				break
			}
		}
	}
	return matched
}

// emitProducts resolves a products section body and dispatches the matched
// hits as a single batch event. An empty match set is not an error; the
// section is still considered handled.
func (p *StreamParser) emitProducts(ctx context.Context, raw string) error {
	matched := ResolveProducts(p.searchResults, SplitIdentifiers(raw))
	if len(matched) == 0 {
		return nil
	}

	err := p.sink.Send(ctx, domain.ClientEvent{
		Type:    domain.EventProductSearch,
		Results: matched,
	})
	if err != nil {
		return domain.WrapOp("emit products", err)
	}
	p.logger.Info("sent highlighted products", "count", len(matched))
	return nil
}

// emitOrders resolves an orders section body and dispatches one event per
// matched order, in identifier-list order.
func (p *StreamParser) emitOrders(ctx context.Context, raw string) error {
	matched := ResolveOrders(p.orders, SplitIdentifiers(raw))
	for _, summary := range matched {
		err := p.sink.Send(ctx, domain.ClientEvent{
			Type:    domain.EventOrder,
			Content: summary,
		})
		if err != nil {
			return domain.WrapOp("emit order", err)
		}
	}
	return nil
}
