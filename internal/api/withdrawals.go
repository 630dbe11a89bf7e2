package api

import (
	"context"
	"encoding/json"
	"net/http"

	"paydash/internal/domain"

	"github.com/shopspring/decimal"
)

// WithdrawalRequest is the payout creation payload.
type WithdrawalRequest struct {
	WalletID int64           `json:"walletId"`
	Amount   decimal.Decimal `json:"amount"`
}

// CreateWithdrawal submits a payout request.
func (c *Client) CreateWithdrawal(ctx context.Context, req WithdrawalRequest) (*domain.Withdrawal, error) {
	raw, err := c.request(ctx, http.MethodPost, "/withdrawals", nil, req)
	if err != nil {
		return nil, err
	}
	var w domain.Withdrawal
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, domain.NewFatalNetworkError("decode", err)
	}
	return &w, nil
}

// ListWithdrawals fetches the user's payout history.
func (c *Client) ListWithdrawals(ctx context.Context, opts ListOptions) ([]domain.Withdrawal, error) {
	raw, err := c.request(ctx, http.MethodGet, "/withdrawals", opts.query(), nil)
	if err != nil {
		return nil, err
	}
	var withdrawals []domain.Withdrawal
	if err := json.Unmarshal(unwrapList(raw), &withdrawals); err != nil {
		return []domain.Withdrawal{}, nil
	}
	return withdrawals, nil
}
