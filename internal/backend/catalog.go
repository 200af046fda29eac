package backend

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/oppa-kitchen/storefront/internal/enum"
	"github.com/oppa-kitchen/storefront/internal/menu"
	"go.uber.org/zap"
)

// Products fetches the catalog. The service answers either with a bare
// array or with {"data": [...]}. Entries that fail validation are skipped.
func (c *Client) Products(ctx context.Context) ([]menu.Item, error) {
	resp, err := c.do(ctx, call{method: http.MethodGet, path: "/api/products"})
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, statusError(resp, "Failed to fetch products")
	}

	raw := resp.Body
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if json.Unmarshal(raw, &env) == nil && len(env.Data) > 0 {
		raw = env.Data
	}
	var items []menu.Item
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, &Error{Kind: ErrUnavailable, Status: http.StatusBadGateway, Code: enum.ErrorCodeInvalidJSON, Message: "Unexpected product listing shape"}
	}

	out := items[:0]
	for _, it := range items {
		if err := it.Validate(); err != nil {
			c.log.Warn("skipping catalog entry", zap.String("id", string(it.ID)), zap.Error(err))
			continue
		}
		out = append(out, it)
	}
	return out, nil
}
