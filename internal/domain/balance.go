package domain

import "github.com/shopspring/decimal"

// Balance is one coin-network's ledger balance as reported by the backend.
// The backend computes it; the client only displays it.
type Balance struct {
	CoinNetworkID int64           `json:"coinNetworkId"`
	CoinSymbol    string          `json:"coinSymbol"`
	NetworkSymbol string          `json:"networkSymbol"`
	Amount        decimal.Decimal `json:"amount"`
	Locked        decimal.Decimal `json:"locked"` // reserved by pending withdrawals
}

// Available returns the spendable part of the balance, clamped at zero so a
// backend reporting locked > amount cannot render a negative figure.
func (b *Balance) Available() decimal.Decimal {
	avail := b.Amount.Sub(b.Locked)
	if avail.IsNegative() {
		return decimal.Zero
	}
	return avail
}

// Wallet is a user-registered withdrawal address.
type Wallet struct {
	ID            int64  `json:"id"`
	Label         string `json:"label"`
	Address       string `json:"address"`
	CoinNetworkID int64  `json:"coinNetworkId"`
}

// Withdrawal is a user-requested payout.
type Withdrawal struct {
	ID            int64           `json:"id"`
	WalletID      int64           `json:"walletId"`
	CoinNetworkID int64           `json:"coinNetworkId"`
	Amount        decimal.Decimal `json:"amount"`
	Fee           decimal.Decimal `json:"fee"`
	Status        string          `json:"status"`
	TxID          string          `json:"txId,omitempty"`
}
