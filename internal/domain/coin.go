package domain

import "github.com/shopspring/decimal"

// Coin represents a currency supported by the platform.
type Coin struct {
	ID      int64  `json:"id"`
	Symbol  string `json:"symbol"`
	Name    string `json:"name"`
	IconURL string `json:"iconUrl,omitempty"`
}

// Network represents a blockchain network.
type Network struct {
	ID          int64  `json:"id"`
	Symbol      string `json:"symbol"`
	Name        string `json:"name"`
	ExplorerURL string `json:"explorerUrl,omitempty"`
}

// CoinNetwork is a (coin, network) pairing with its own deposit/withdraw
// parameters. Invoices, wallets and withdrawals reference it by id.
type CoinNetwork struct {
	ID              int64           `json:"id"`
	CoinID          int64           `json:"coinId"`
	NetworkID       int64           `json:"networkId"`
	Decimals        int             `json:"decimals"`
	DepositEnabled  bool            `json:"depositEnabled"`
	WithdrawEnabled bool            `json:"withdrawEnabled"`
	WithdrawFee     decimal.Decimal `json:"withdrawFee"`
	MinDeposit      decimal.Decimal `json:"minDeposit"`
	Confirmations   int             `json:"confirmations"`
}

// CoinNetworkLabel is the display form of a pairing resolved from the
// separately fetched coin and network lists.
type CoinNetworkLabel struct {
	CoinSymbol  string
	CoinName    string
	NetSymbol   string
	NetName     string
	ExplorerURL string
}

const unknownLabel = "unknown"

// ResolveCoinNetwork joins a pairing against coin and network lists.
// There is no foreign-key guarantee; a missing side degrades to "unknown"
// labels instead of failing.
func ResolveCoinNetwork(cn CoinNetwork, coins []Coin, networks []Network) CoinNetworkLabel {
	label := CoinNetworkLabel{
		CoinSymbol: unknownLabel,
		CoinName:   unknownLabel,
		NetSymbol:  unknownLabel,
		NetName:    unknownLabel,
	}
	for _, c := range coins {
		if c.ID == cn.CoinID {
			label.CoinSymbol = c.Symbol
			label.CoinName = c.Name
			break
		}
	}
	for _, n := range networks {
		if n.ID == cn.NetworkID {
			label.NetSymbol = n.Symbol
			label.NetName = n.Name
			label.ExplorerURL = n.ExplorerURL
			break
		}
	}
	return label
}
