package api

import (
	"context"
	"encoding/json"
	"net/http"

	"paydash/internal/domain"
)

// Balances fetches the user's per-coin-network ledger balances.
func (c *Client) Balances(ctx context.Context) ([]domain.Balance, error) {
	raw, err := c.request(ctx, http.MethodGet, "/balances", nil, nil)
	if err != nil {
		return nil, err
	}
	var balances []domain.Balance
	if err := json.Unmarshal(unwrapList(raw), &balances); err != nil {
		return []domain.Balance{}, nil
	}
	return balances, nil
}
