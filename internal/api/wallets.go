package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"paydash/internal/domain"
)

// Wallets fetches the user's registered withdrawal addresses.
func (c *Client) Wallets(ctx context.Context) ([]domain.Wallet, error) {
	raw, err := c.request(ctx, http.MethodGet, "/wallets", nil, nil)
	if err != nil {
		return nil, err
	}
	var wallets []domain.Wallet
	if err := json.Unmarshal(unwrapList(raw), &wallets); err != nil {
		return []domain.Wallet{}, nil
	}
	return wallets, nil
}

// WalletRequest is the payload for wallet create/update.
type WalletRequest struct {
	Label         string `json:"label"`
	Address       string `json:"address"`
	CoinNetworkID int64  `json:"coinNetworkId"`
}

// CreateWallet registers a withdrawal address.
func (c *Client) CreateWallet(ctx context.Context, req WalletRequest) (*domain.Wallet, error) {
	raw, err := c.request(ctx, http.MethodPost, "/wallets", nil, req)
	if err != nil {
		return nil, err
	}
	var w domain.Wallet
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, domain.NewFatalNetworkError("decode", err)
	}
	return &w, nil
}

// UpdateWallet rewrites a registered address record.
func (c *Client) UpdateWallet(ctx context.Context, id int64, req WalletRequest) (*domain.Wallet, error) {
	raw, err := c.request(ctx, http.MethodPut, fmt.Sprintf("/wallets/%d", id), nil, req)
	if err != nil {
		return nil, err
	}
	var w domain.Wallet
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, domain.NewFatalNetworkError("decode", err)
	}
	return &w, nil
}

// DeleteWallet removes a registered address.
func (c *Client) DeleteWallet(ctx context.Context, id int64) error {
	_, err := c.request(ctx, http.MethodDelete, fmt.Sprintf("/wallets/%d", id), nil, nil)
	return err
}
