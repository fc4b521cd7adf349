package tool

import (
	"context"
	"encoding/json"

	"shopstream/internal/domain"
)

// ReviewsName is the tool name for batch review lookups.
const ReviewsName = "get_product_reviews"

var reviewsSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"product_ids": {
			"type": "array",
			"items": {
				"type": "string",
				"description": "The ID of the product to get reviews for"
			}
		}
	},
	"required": ["product_ids"]
}`)

// ReviewsTool returns aggregated reviews for a batch of products.
type ReviewsTool struct {
	reviews domain.ReviewReader
}

func NewReviewsTool(reviews domain.ReviewReader) *ReviewsTool {
	return &ReviewsTool{reviews: reviews}
}

func (t *ReviewsTool) Name() string { return ReviewsName }

func (t *ReviewsTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{
		Name:        ReviewsName,
		Description: "Get reviews for multiple products",
		InputSchema: reviewsSchema,
	}
}

func (t *ReviewsTool) Execute(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	var params struct {
		ProductIDs []string `json:"product_ids"`
	}
	if err := json.Unmarshal(input, &params); err != nil {
		return nil, err
	}

	reviews, err := t.reviews.ReviewsFor(ctx, params.ProductIDs)
	if err != nil {
		return nil, err
	}

	return json.Marshal(map[string]any{"reviews": reviews})
}

var _ domain.Tool = (*ReviewsTool)(nil)
