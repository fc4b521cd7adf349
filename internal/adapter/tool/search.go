package tool

import (
	"context"
	"encoding/json"
	"strings"

	"shopstream/internal/domain"
)

// SearchName is the tool name the model invokes for catalog search.
const SearchName = "keyword_product_search"

var searchSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"query_keywords": {
			"type": "array",
			"items": {"type": "string"},
			"description": "The keywords to search for in the product catalog"
		}
	},
	"required": ["query_keywords"]
}`)

// SearchTool searches the product catalog by keywords.
type SearchTool struct {
	index domain.ProductIndex
	limit int
}

// NewSearchTool creates the keyword search tool. limit caps results per
// query; zero uses the index default.
func NewSearchTool(index domain.ProductIndex, limit int) *SearchTool {
	return &SearchTool{index: index, limit: limit}
}

func (t *SearchTool) Name() string { return SearchName }

func (t *SearchTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{
		Name:        SearchName,
		Description: "Search for products by keywords in the product catalog",
		InputSchema: searchSchema,
	}
}

func (t *SearchTool) Execute(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	var params struct {
		QueryKeywords []string `json:"query_keywords"`
	}
	if err := json.Unmarshal(input, &params); err != nil {
		return nil, err
	}

	hits, err := t.index.SearchKeywords(ctx, strings.Join(params.QueryKeywords, " "), t.limit)
	if err != nil {
		return nil, err
	}
	if hits == nil {
		hits = []domain.SearchHit{}
	}

	return json.Marshal(map[string]any{"results": hits})
}

var _ domain.Tool = (*SearchTool)(nil)
