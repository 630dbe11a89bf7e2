package domain

import "testing"

func TestResolveCoinNetwork(t *testing.T) {
	coins := []Coin{
		{ID: 1, Symbol: "BTC", Name: "Bitcoin"},
		{ID: 2, Symbol: "USDT", Name: "Tether"},
	}
	networks := []Network{
		{ID: 10, Symbol: "BTC", Name: "Bitcoin", ExplorerURL: "https://mempool.space"},
		{ID: 20, Symbol: "TRX", Name: "Tron", ExplorerURL: "https://tronscan.org"},
	}

	t.Run("full match", func(t *testing.T) {
		label := ResolveCoinNetwork(CoinNetwork{CoinID: 2, NetworkID: 20}, coins, networks)
		if label.CoinSymbol != "USDT" || label.NetName != "Tron" {
			t.Errorf("unexpected label: %+v", label)
		}
		if label.ExplorerURL != "https://tronscan.org" {
			t.Errorf("explorer = %q", label.ExplorerURL)
		}
	})

	t.Run("missing coin degrades to unknown", func(t *testing.T) {
		label := ResolveCoinNetwork(CoinNetwork{CoinID: 99, NetworkID: 10}, coins, networks)
		if label.CoinSymbol != "unknown" {
			t.Errorf("CoinSymbol = %q, want unknown", label.CoinSymbol)
		}
		if label.NetSymbol != "BTC" {
			t.Errorf("NetSymbol = %q, want BTC", label.NetSymbol)
		}
	})

	t.Run("empty lists never panic", func(t *testing.T) {
		label := ResolveCoinNetwork(CoinNetwork{CoinID: 1, NetworkID: 10}, nil, nil)
		if label.CoinSymbol != "unknown" || label.NetName != "unknown" {
			t.Errorf("unexpected label: %+v", label)
		}
	})
}

func TestBalanceAvailable(t *testing.T) {
	t.Run("normal", func(t *testing.T) {
		b := Balance{Amount: d("10"), Locked: d("3")}
		if !b.Available().Equal(d("7")) {
			t.Errorf("Available = %s, want 7", b.Available())
		}
	})

	t.Run("locked exceeds amount clamps to zero", func(t *testing.T) {
		b := Balance{Amount: d("1"), Locked: d("2")}
		if !b.Available().IsZero() {
			t.Errorf("Available = %s, want 0", b.Available())
		}
	})
}

func TestPaymentEventIsCompletion(t *testing.T) {
	tests := []struct {
		name string
		ev   PaymentEvent
		want bool
	}{
		{"explicit marker", PaymentEvent{Type: "invoice_completed"}, true},
		{"paid status", PaymentEvent{Status: StatusPaid}, true},
		{"other status change", PaymentEvent{Status: StatusExpired}, false},
		{"empty", PaymentEvent{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.ev.IsCompletion(); got != tt.want {
				t.Errorf("IsCompletion() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestUserRecordBestIdentity(t *testing.T) {
	tests := []struct {
		name string
		u    *UserRecord
		want string
	}{
		{"numeric id wins", &UserRecord{ID: 7, AltID: "u-7", Email: "a@b.c"}, "7"},
		{"alt id next", &UserRecord{AltID: "u-7", Email: "a@b.c"}, "u-7"},
		{"email last", &UserRecord{Email: "a@b.c"}, "a@b.c"},
		{"nil user", nil, ""},
		{"all empty", &UserRecord{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.u.BestIdentity(); got != tt.want {
				t.Errorf("BestIdentity() = %q, want %q", got, tt.want)
			}
		})
	}
}
