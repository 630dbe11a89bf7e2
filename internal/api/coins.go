package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"paydash/internal/domain"
)

// Coins fetches the supported coin list.
func (c *Client) Coins(ctx context.Context) ([]domain.Coin, error) {
	raw, err := c.request(ctx, http.MethodGet, "/coins", nil, nil)
	if err != nil {
		return nil, err
	}
	var coins []domain.Coin
	if err := json.Unmarshal(unwrapList(raw), &coins); err != nil {
		return []domain.Coin{}, nil
	}
	return coins, nil
}

// CoinNetworks fetches the network pairings available for one coin symbol.
func (c *Client) CoinNetworks(ctx context.Context, symbol string) ([]domain.CoinNetwork, error) {
	raw, err := c.request(ctx, http.MethodGet, "/coins/"+url.PathEscape(symbol)+"/networks", nil, nil)
	if err != nil {
		return nil, err
	}
	var pairings []domain.CoinNetwork
	if err := json.Unmarshal(unwrapList(raw), &pairings); err != nil {
		return []domain.CoinNetwork{}, nil
	}
	return pairings, nil
}

// Networks fetches the network list. The default page size is deliberately
// large; networks are a small, slow-moving set.
func (c *Client) Networks(ctx context.Context) ([]domain.Network, error) {
	q := url.Values{}
	q.Set("limit", "100")
	raw, err := c.request(ctx, http.MethodGet, "/networks", q, nil)
	if err != nil {
		return nil, err
	}
	var networks []domain.Network
	if err := json.Unmarshal(unwrapList(raw), &networks); err != nil {
		return []domain.Network{}, nil
	}
	return networks, nil
}
